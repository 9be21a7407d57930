package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"event-board/internal/domain"
	"event-board/internal/repository"
)

// CookieName is the cookie carrying the access token for browser sessions.
const CookieName = "access_token"

var (
	// ErrUnauthenticated indicates a request without a valid access token.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrAccountNotFound indicates a valid token whose account no longer exists.
	ErrAccountNotFound = errors.New("user not found")
)

// UserLookup loads accounts by ID. Missing accounts are reported with
// repository.ErrNotFound.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// SessionResolver maps incoming requests to the user identity carried by
// their access token. It holds no mutable state.
type SessionResolver struct {
	tokens *TokenCodec
	users  UserLookup
}

func NewSessionResolver(tokens *TokenCodec, users UserLookup) *SessionResolver {
	return &SessionResolver{tokens: tokens, users: users}
}

// TokenFromRequest extracts the access token, preferring a bearer
// Authorization header over the session cookie.
func TokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token, true
			}
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// RequireUserID returns the user ID of the request or ErrUnauthenticated.
func (s *SessionResolver) RequireUserID(r *http.Request) (string, error) {
	token, ok := TokenFromRequest(r)
	if !ok {
		return "", fmt.Errorf("%w: no token", ErrUnauthenticated)
	}
	userID, err := s.tokens.Decode(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return userID, nil
}

// OptionalUserID returns the user ID of the request, if any.
func (s *SessionResolver) OptionalUserID(r *http.Request) (string, bool) {
	userID, err := s.RequireUserID(r)
	if err != nil {
		return "", false
	}
	return userID, true
}

// RequireUser resolves the request to a stored account. A valid token whose
// account was deleted yields ErrAccountNotFound.
func (s *SessionResolver) RequireUser(ctx context.Context, r *http.Request) (*domain.User, error) {
	userID, err := s.RequireUserID(r)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
