package http

import (
	"context"
	"errors"
	"html/template"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"event-board/internal/auth"
	"event-board/internal/repository"
	"event-board/internal/service"
)

const maxImageSize = 10 << 20

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies collects everything the HTTP layer needs.
type Dependencies struct {
	Events        service.EventService
	Accounts      service.AccountService
	Sessions      *auth.SessionResolver
	DB            Pinger
	Logger        *logrus.Logger
	AppName       string
	TokenTTL      time.Duration
	SecureCookies bool
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	events        service.EventService
	accounts      service.AccountService
	sessions      *auth.SessionResolver
	db            Pinger
	logger        *logrus.Logger
	appName       string
	tokenTTL      time.Duration
	secureCookies bool
	templates     *template.Template
}

func NewHandler(deps Dependencies) (*Handler, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		events:        deps.Events,
		accounts:      deps.Accounts,
		sessions:      deps.Sessions,
		db:            deps.DB,
		logger:        logger,
		appName:       deps.AppName,
		tokenTTL:      deps.TokenTTL,
		secureCookies: deps.SecureCookies,
		templates:     tmpl,
	}, nil
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(h.templates)
	router.Use(h.requestLogger())
	router.Use(corsMiddleware())

	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/signup", h.signUp)
		authGroup.POST("/signin", h.signIn)
		authGroup.GET("/me", h.requireUser(), h.me)

		events := api.Group("/events")
		events.GET("", h.listEvents)
		events.GET("/featured", h.listFeatured)
		events.GET("/:id", h.getEvent)
		events.GET("/:id/image", h.getEventImage)
		events.POST("", h.requireUser(), h.createEvent)
		events.PATCH("/:id", h.requireUser(), h.updateEvent)
		events.DELETE("/:id", h.requireUser(), h.deleteEvent)
		events.PUT("/:id/image", h.requireUser(), h.uploadEventImage)
	}

	h.registerPages(router)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location, WWW-Authenticate")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.WithError(err).Error("health check")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":   "error",
			"database": "disconnected",
			"detail":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
}

type signUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=100"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, token, err := h.accounts.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.accounts.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) me(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "email": user.Email})
}

func (h *Handler) listEvents(c *gin.Context) {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skip"})
		return
	}
	take, err := queryInt(c, "take", 20)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid take"})
		return
	}

	opts := service.ListOptions{
		Skip: skip,
		Take: take,
		Sort: repository.EventSort(c.DefaultQuery("sort", string(repository.SortByDate))),
	}
	if raw, ok := c.GetQuery("featured"); ok {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag featured"})
			return
		}
		opts.Featured = &featured
	}

	events, err := h.events.ListEvents(c.Request.Context(), opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventsToResponse(events))
}

func (h *Handler) listFeatured(c *gin.Context) {
	take, err := queryInt(c, "take", 5)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid take"})
		return
	}

	events, err := h.events.ListFeatured(c.Request.Context(), take)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventsToResponse(events))
}

func (h *Handler) getEvent(c *gin.Context) {
	event, err := h.events.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventToResponse(*event))
}

func (h *Handler) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.events.CreateEvent(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eventToResponse(*event))
}

func (h *Handler) updateEvent(c *gin.Context) {
	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.events.UpdateEvent(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventToResponse(*event))
}

func (h *Handler) deleteEvent(c *gin.Context) {
	if err := h.events.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) uploadEventImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageSize)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	event, err := h.events.AttachImage(c.Request.Context(), c.Param("id"), service.ImageUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Body:        file,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventToResponse(*event))
}

func (h *Handler) getEventImage(c *gin.Context) {
	location, err := h.events.ImageLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// writeError maps domain errors onto status codes and JSON bodies.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	switch {
	case status == http.StatusUnauthorized && errors.Is(err, auth.ErrUnauthenticated):
		c.Header("WWW-Authenticate", "Bearer")
	case status >= http.StatusInternalServerError:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, auth.ErrAccountNotFound):
		return http.StatusUnauthorized, "User not found"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, service.ErrDuplicateEmail):
		return http.StatusBadRequest, "Email already registered"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, inputMessage(err)
	case errors.Is(err, service.ErrEventNotFound):
		return http.StatusNotFound, "Event not found"
	case errors.Is(err, service.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "Image storage is not configured"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// inputMessage drops the sentinel prefix so validation errors read as plain
// sentences.
func inputMessage(err error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, service.ErrInvalidInput.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
