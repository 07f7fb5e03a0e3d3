package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"toursapp/internal/auth"
)

type ctxKey string

const userContextKey ctxKey = "currentUser"

// protect is the gatekeeper in front of every protected handler: it
// extracts the access token, verifies it, re-resolves the user and
// rejects tokens minted before the last password change. It attaches the
// resolved user to the request context and mutates nothing else.
func (s *Server) protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractAccessToken(r)
		if token == "" {
			s.fail(w, r, unauthorized("You are not logged in! Please log in to get access."))
			return
		}

		claims, err := s.Tokens.VerifyAccess(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				s.fail(w, r, unauthorized("Your token has expired! Please log in again."))
				return
			}
			s.fail(w, r, unauthorized("Invalid token. Please log in again!"))
			return
		}

		user, err := s.Users.FindByID(r.Context(), claims.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if user == nil {
			s.fail(w, r, unauthorized("The user belonging to this token does no longer exist."))
			return
		}

		if claims.IssuedAt != nil && user.ChangedPasswordAfter(claims.IssuedAt.Time) {
			s.fail(w, r, unauthorized("User recently changed password! Please log in again."))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// restrictTo allows only the given roles through. Must run after protect.
func (s *Server) restrictTo(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userFromContext(r.Context())
			if user == nil {
				s.fail(w, r, unauthorized("You are not logged in! Please log in to get access."))
				return
			}

			allowed := false
			for _, role := range roles {
				if user.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				s.fail(w, r, forbidden("You do not have permission to perform this action"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractAccessToken reads the access cookie, falling back to a bearer
// authorization header.
func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(auth.AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func userFromContext(ctx context.Context) *auth.User {
	if user, ok := ctx.Value(userContextKey).(*auth.User); ok {
		return user
	}
	return nil
}
