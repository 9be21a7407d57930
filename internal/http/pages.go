package http

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"event-board/internal/auth"
	"event-board/internal/domain"
	"event-board/internal/repository"
	"event-board/internal/service"
)

const (
	homeTake       = 50
	homeFeatured   = 5
	backendPerPage = 10
)

//go:embed templates/*.html
var templateFS embed.FS

func loadTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"deref":      deref,
		"fmtTime":    fmtTime,
		"inputDates": inputDates,
		"firstDate":  firstDate,
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

func (h *Handler) registerPages(router *gin.Engine) {
	router.GET("/", h.homePage)
	router.GET("/events/:id", h.eventPage)

	router.GET("/login", h.loginPage)
	router.POST("/login", h.login)
	router.GET("/signup", h.signupPage)
	router.POST("/signup", h.signup)
	router.GET("/logout", h.logout)

	backend := router.Group("/backend", h.requirePageUser())
	{
		backend.GET("", h.backendPage)
		backend.GET("/events/new", h.newEventPage)
		backend.GET("/events/:id/edit", h.editEventPage)
		backend.POST("/events", h.createEventForm)
		backend.POST("/events/:id", h.updateEventForm)
		backend.POST("/events/:id/delete", h.deleteEventForm)
	}
}

// page builds template data shared by every page.
func (h *Handler) page(c *gin.Context, data gin.H) gin.H {
	_, loggedIn := h.sessions.OptionalUserID(c.Request)
	out := gin.H{
		"AppName":  h.appName,
		"LoggedIn": loggedIn,
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}

// requirePageUser redirects anonymous browsers to the login form.
func (h *Handler) requirePageUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := h.sessions.OptionalUserID(c.Request); !ok {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handler) homePage(c *gin.Context) {
	ctx := c.Request.Context()
	events, err := h.events.ListEvents(ctx, service.ListOptions{Take: homeTake, Sort: repository.SortByDate})
	if err != nil {
		h.renderError(c, err)
		return
	}
	featured, err := h.events.ListFeatured(ctx, homeFeatured)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "index.html", h.page(c, gin.H{
		"Title":    h.appName,
		"Events":   events,
		"Featured": featured,
	}))
}

func (h *Handler) eventPage(c *gin.Context) {
	event, err := h.events.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "event_detail.html", h.page(c, gin.H{
		"Title": event.Title,
		"Event": event,
	}))
}

func (h *Handler) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", h.page(c, gin.H{"Title": "Log in"}))
}

func (h *Handler) login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	token, err := h.accounts.SignIn(c.Request.Context(), email, c.PostForm("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrInvalidInput) {
			c.HTML(http.StatusUnauthorized, "login.html", h.page(c, gin.H{
				"Title": "Log in",
				"Email": email,
				"Error": "Invalid email or password",
			}))
			return
		}
		h.renderError(c, err)
		return
	}
	h.setSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, "/backend")
}

func (h *Handler) signupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", h.page(c, gin.H{"Title": "Sign up"}))
}

func (h *Handler) signup(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	_, token, err := h.accounts.SignUp(c.Request.Context(), email, c.PostForm("password"))
	if err != nil {
		var message string
		switch {
		case errors.Is(err, service.ErrDuplicateEmail):
			message = "Email already registered"
		case errors.Is(err, service.ErrInvalidInput):
			message = inputMessage(err)
		default:
			h.renderError(c, err)
			return
		}
		c.HTML(http.StatusBadRequest, "signup.html", h.page(c, gin.H{
			"Title": "Sign up",
			"Email": email,
			"Error": message,
		}))
		return
	}
	h.setSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, "/backend")
}

func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.secureCookies, true)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(h.tokenTTL.Seconds()), "/", "", h.secureCookies, true)
}

func (h *Handler) backendPage(c *gin.Context) {
	pageNum, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || pageNum < 1 {
		pageNum = 1
	}

	ctx := c.Request.Context()
	total, err := h.events.CountEvents(ctx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	events, err := h.events.ListEvents(ctx, service.ListOptions{
		Skip: (pageNum - 1) * backendPerPage,
		Take: backendPerPage,
		Sort: repository.SortByDate,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	pages := (total + backendPerPage - 1) / backendPerPage
	if pages == 0 {
		pages = 1
	}
	c.HTML(http.StatusOK, "backend_events.html", h.page(c, gin.H{
		"Title":  "Manage events",
		"Events": events,
		"Page":   pageNum,
		"Pages":  pages,
		"Total":  total,
	}))
}

func (h *Handler) newEventPage(c *gin.Context) {
	h.renderEventForm(c, http.StatusOK, &domain.Event{}, "/backend/events", "")
}

func (h *Handler) editEventPage(c *gin.Context) {
	event, err := h.events.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.renderEventForm(c, http.StatusOK, event, "/backend/events/"+event.ID, "")
}

func (h *Handler) createEventForm(c *gin.Context) {
	input := eventInputFromForm(c)
	if _, err := h.events.CreateEvent(c.Request.Context(), input); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.renderEventForm(c, http.StatusBadRequest, inputToEvent(input), "/backend/events", inputMessage(err))
			return
		}
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/backend")
}

func (h *Handler) updateEventForm(c *gin.Context) {
	id := c.Param("id")
	input := eventInputFromForm(c)
	if _, err := h.events.ReplaceEvent(c.Request.Context(), id, input); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			event := inputToEvent(input)
			event.ID = id
			h.renderEventForm(c, http.StatusBadRequest, event, "/backend/events/"+id, inputMessage(err))
			return
		}
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/backend")
}

func (h *Handler) deleteEventForm(c *gin.Context) {
	// a missing event counts as deleted
	err := h.events.DeleteEvent(c.Request.Context(), c.Param("id"))
	if err != nil && !errors.Is(err, service.ErrEventNotFound) {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/backend")
}

func (h *Handler) renderEventForm(c *gin.Context, status int, event *domain.Event, action, formErr string) {
	title := "New event"
	if event.ID != "" {
		title = "Edit event"
	}
	c.HTML(status, "event_form.html", h.page(c, gin.H{
		"Title":  title,
		"Event":  event,
		"Action": action,
		"Error":  formErr,
	}))
}

func (h *Handler) renderError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("page failed")
	}
	c.HTML(status, "error.html", h.page(c, gin.H{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	}))
	c.Abort()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fmtTime(t time.Time) string {
	return t.UTC().Format("Mon, Jan 2 2006 15:04 UTC")
}

func firstDate(event domain.Event) string {
	if t, ok := event.EarliestDate(); ok {
		return fmtTime(t)
	}
	return "-"
}

// inputDates renders event dates the way the edit form parses them back.
func inputDates(dates []domain.EventDate) string {
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, d.DateTime.UTC().Format(formDateLayouts[1]))
	}
	return strings.Join(parts, ", ")
}
