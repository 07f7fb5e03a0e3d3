package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"toursapp/internal/auth"
	"toursapp/internal/email"
)

type forgetPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req forgetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if !validateEmail(req.Email) {
		s.fail(w, r, badRequest("Invalid email address"))
		return
	}

	ctx := r.Context()

	cooldownKey := "forget_password_cooldown:" + req.Email
	if s.RateLimiter != nil {
		if ttl := s.RateLimiter.CooldownTTL(ctx, cooldownKey); ttl > 0 {
			s.fail(w, r, tooManyRequests("Please wait before making another request."))
			return
		}
	}

	user, err := s.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if user != nil {
		raw, err := auth.NewOpaqueToken(32)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		// Only the SHA-256 of the token is stored; the raw value goes out
		// by email and is never persisted.
		expires := time.Now().Add(s.Config.ResetTokenTTL)
		if err := s.Users.SetPasswordReset(ctx, user.ID, auth.HashToken(raw), expires); err != nil {
			s.fail(w, r, err)
			return
		}

		resetURL := s.Config.BaseURL + "/api/v1/reset-password/" + raw
		content := email.PasswordResetEmail(resetURL, int(s.Config.ResetTokenTTL.Minutes()))
		if err := s.Mailer.Send(ctx, user.Email, content.Subject, content.HTML); err != nil {
			// The emailed token never left the building; clear the stored
			// state so no orphaned reset window stays open.
			_ = s.Users.ClearPasswordReset(ctx, user.ID)
			s.fail(w, r, dependency("There was an error sending the email. Try again later!", err))
			return
		}
	}

	if s.RateLimiter != nil {
		s.RateLimiter.SetCooldown(ctx, cooldownKey, auth.EmailCooldown)
	}

	// Identical response whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "If the email address exists, password reset instructions have been sent",
	})
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		s.fail(w, r, badRequest("Reset token is required"))
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if err := validatePassword(req.Password); err != nil {
		s.fail(w, r, badRequest(err.Error()))
		return
	}
	if req.Password != req.PasswordConfirm {
		s.fail(w, r, badRequest("Passwords do not match"))
		return
	}

	ctx := r.Context()
	user, err := s.Users.FindByResetTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == nil {
		s.fail(w, r, unauthorized("Invalid or expired reset token"))
		return
	}

	// Stores the new hash, clears the reset fields and stamps
	// password_changed_at, which retires every previously issued token.
	if err := s.Users.UpdatePassword(ctx, user.ID, req.Password); err != nil {
		s.fail(w, r, err)
		return
	}

	pair, err := s.issueSession(ctx, w, r, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"data": map[string]interface{}{
			"user": userPayload(user),
		},
	})
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}

	user := userFromContext(r.Context())
	if !s.Hasher.Compare(user.PasswordHash, req.PasswordCurrent) {
		s.fail(w, r, unauthorized("Your current password is wrong."))
		return
	}
	if err := validatePassword(req.Password); err != nil {
		s.fail(w, r, badRequest(err.Error()))
		return
	}
	if req.Password != req.PasswordConfirm {
		s.fail(w, r, badRequest("Passwords do not match"))
		return
	}

	ctx := r.Context()
	if err := s.Users.UpdatePassword(ctx, user.ID, req.Password); err != nil {
		s.fail(w, r, err)
		return
	}

	pair, err := s.issueSession(ctx, w, r, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"data": map[string]interface{}{
			"user": userPayload(user),
		},
	})
}
