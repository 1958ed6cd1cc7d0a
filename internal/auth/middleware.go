// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/models"
)

type contextKey string

// UserContextKey carries the authenticated *models.User.
const UserContextKey contextKey = "user"

// ErrMissingToken is returned when a request carries no credential.
var ErrMissingToken = errors.New("missing token")

// UserLookup loads users by id.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Middleware authenticates requests with the session cookie or a bearer token.
type Middleware struct {
	jwt    *JWTManager
	users  UserLookup
	cookie CookieConfig
}

// NewMiddleware creates the authentication middleware.
func NewMiddleware(jwtManager *JWTManager, users UserLookup, cookie CookieConfig) *Middleware {
	if cookie.TTL <= 0 {
		cookie.TTL = jwtManager.TTL()
	}
	return &Middleware{jwt: jwtManager, users: users, cookie: cookie}
}

// Authenticate rejects requests without a valid token for an existing user
// and stores the user in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := TokenFromRequest(r, m.cookie.Name)
		if err != nil {
			writeUnauthorized(w, "Unauthorized - No token provided")
			return
		}

		user, err := m.authenticate(r.Context(), token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Token rejected")
			writeUnauthorized(w, "Unauthorized - Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	user, err := m.users.GetUser(ctx, claims.UserID())
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", claims.UserID(), err)
	}
	return user, nil
}

// ResolveIdentity validates a credential and returns the user id it names.
// The user must still exist.
func (m *Middleware) ResolveIdentity(ctx context.Context, credential string) (string, error) {
	user, err := m.authenticate(ctx, credential)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// SetSessionCookie issues a token for userID and sets it as the session cookie.
func (m *Middleware) SetSessionCookie(w http.ResponseWriter, userID string) (string, error) {
	token, err := m.jwt.GenerateToken(userID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// ClearSessionCookie expires the session cookie.
func (m *Middleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// UserFromContext returns the authenticated user stored by Authenticate.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// TokenFromRequest extracts the credential from the session cookie or an
// "Authorization: Bearer" header, in that order.
func TokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	})
}
