package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-board/internal/auth"
	"event-board/internal/service"
)

func TestHomePage(t *testing.T) {
	s := newTestServer(t)
	s.createEvent(t, service.EventInput{Title: "Open air cinema", Featured: true, Dates: []time.Time{at(4, 21)}})
	s.createEvent(t, service.EventInput{Title: "Book club"})

	s.api().
		Get("/").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Open air cinema")).
		Assert(bodyContains("Book club")).
		Assert(bodyContains("Featured")).
		Assert(bodyContains(`href="/login"`)).
		End()
}

func TestEventPage(t *testing.T) {
	s := newTestServer(t)
	event := s.createEvent(t, service.EventInput{
		Title:    "Open air cinema",
		Location: ptr("Park"),
		Dates:    []time.Time{at(4, 21)},
	})

	s.api().
		Get("/events/"+event.ID).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Open air cinema")).
		Assert(bodyContains("Park")).
		Assert(bodyContains("May 4 2026 21:00 UTC")).
		End()

	s.api().
		Get("/events/missing").
		Expect(t).
		Status(http.StatusNotFound).
		Assert(bodyContains("Event not found")).
		End()
}

func TestSignupForm(t *testing.T) {
	s := newTestServer(t)

	s.api().
		Post("/signup").
		FormData("email", "a@x.com").
		FormData("password", "secret1").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/backend").
		CookiePresent(auth.CookieName).
		End()

	s.api().
		Post("/signup").
		FormData("email", "a@x.com").
		FormData("password", "secret1").
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(bodyContains("Email already registered")).
		CookieNotPresent(auth.CookieName).
		End()

	s.api().
		Post("/signup").
		FormData("email", "b@x.com").
		FormData("password", "123").
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(bodyContains("password must be at least 6 characters")).
		Assert(bodyNotContains("invalid input")).
		End()
}

func TestLoginForm(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "a@x.com")

	s.api().
		Post("/login").
		FormData("email", "a@x.com").
		FormData("password", "wrong-password").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(bodyContains("Invalid email or password")).
		End()

	s.api().
		Post("/login").
		FormData("email", "a@x.com").
		FormData("password", "secret1").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/backend").
		Cookies(apitest.NewCookie(auth.CookieName).HttpOnly(true).Path("/").MaxAge(int(time.Hour.Seconds()))).
		End()
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signUp(t, "a@x.com")

	s.api().
		Get("/logout").
		Cookie(auth.CookieName, token).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		Cookies(apitest.NewCookie(auth.CookieName).Value("")).
		End()
}

func TestBackend_RequiresLogin(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/backend", "/backend/events/new"} {
		s.api().
			Get(path).
			Expect(t).
			Status(http.StatusSeeOther).
			Header("Location", "/login").
			End()
	}

	s.api().
		Post("/backend/events").
		FormData("title", "Sneaky").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/login").
		End()

	count, err := s.events.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	s.api().
		Get("/backend").
		Cookie(auth.CookieName, "expired-or-garbage").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/login").
		End()
}

func TestBackend_EventForms(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signUp(t, "a@x.com")
	ctx := context.Background()

	s.api().
		Post("/backend/events").
		Cookie(auth.CookieName, token).
		FormData("title", "Quiz night").
		FormData("location", "Pub").
		FormData("dates", "2026-05-01T19:00, not-a-date 2026-05-08").
		FormData("featured", "on").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/backend").
		End()

	events, err := s.events.ListEvents(ctx, service.ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	created := events[0]
	assert.Equal(t, "Quiz night", created.Title)
	assert.True(t, created.Featured)
	assert.Nil(t, created.Description)
	require.Len(t, created.Dates, 2)
	assert.True(t, at(1, 19).Equal(created.Dates[0].DateTime))
	assert.True(t, at(8, 0).Equal(created.Dates[1].DateTime))

	s.api().
		Get("/backend").
		Cookie(auth.CookieName, token).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Quiz night")).
		Assert(bodyContains("Page 1 of 1")).
		End()

	s.api().
		Get("/backend/events/"+created.ID+"/edit").
		Cookie(auth.CookieName, token).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains(`value="Quiz night"`)).
		Assert(bodyContains("2026-05-01T19:00:00, 2026-05-08T00:00:00")).
		End()

	s.api().
		Post("/backend/events/"+created.ID).
		Cookie(auth.CookieName, token).
		FormData("title", "Quiz night XL").
		FormData("description", "Bring friends").
		FormData("dates", "2026-06-01").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/backend").
		End()

	updated, err := s.events.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quiz night XL", updated.Title)
	assert.False(t, updated.Featured, "an unchecked box clears the flag")
	assert.Nil(t, updated.Location)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Bring friends", *updated.Description)
	require.Len(t, updated.Dates, 1)

	s.api().
		Post("/backend/events/"+created.ID).
		Cookie(auth.CookieName, token).
		FormData("title", "   ").
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(bodyContains("title is required")).
		Assert(bodyNotContains("invalid input")).
		End()

	s.api().
		Post("/backend/events/"+created.ID+"/delete").
		Cookie(auth.CookieName, token).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/backend").
		End()

	_, err = s.events.GetEvent(ctx, created.ID)
	assert.ErrorIs(t, err, service.ErrEventNotFound)

	s.api().
		Post("/backend/events/"+created.ID+"/delete").
		Cookie(auth.CookieName, token).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/backend").
		End()

	s.api().
		Get("/backend/events/"+created.ID+"/edit").
		Cookie(auth.CookieName, token).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestBackend_ListsByDate(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signUp(t, "a@x.com")
	s.createEvent(t, service.EventInput{Title: "Undated gig"})
	s.createEvent(t, service.EventInput{Title: "Sooner gig", Dates: []time.Time{at(3, 18)}})
	s.createEvent(t, service.EventInput{Title: "Later gig", Dates: []time.Time{at(20, 18)}})

	s.api().
		Get("/backend").
		Cookie(auth.CookieName, token).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyInOrder("Sooner gig", "Later gig", "Undated gig")).
		End()
}
