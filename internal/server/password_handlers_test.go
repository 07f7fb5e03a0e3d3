package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toursapp/internal/auth"
)

// resetTokenFromMail digs the raw reset token out of the emailed link.
func resetTokenFromMail(t *testing.T, mail *sentMail) string {
	t.Helper()
	require.NotNil(t, mail)

	const marker = "/api/v1/reset-password/"
	idx := strings.Index(mail.HTML, marker)
	require.GreaterOrEqual(t, idx, 0, "no reset link in %q", mail.HTML)

	rest := mail.HTML[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	require.GreaterOrEqual(t, end, 0)
	return rest[:end]
}

func TestForgetPasswordUnknownEmailStaysSilent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/forget-password", map[string]string{
		"email": "nobody@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], "If the email address exists")
	assert.Nil(t, env.mailer.last())
}

func TestForgetPasswordSendsResetLink(t *testing.T) {
	env := newTestEnv(t)
	id := env.verifiedUser(t, "Alice", "alice", "alice@example.com", "Aa1!aaaa")
	env.mailer.sent = nil

	rec := env.do(t, http.MethodPost, "/api/v1/forget-password", map[string]string{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	mail := env.mailer.last()
	require.NotNil(t, mail)
	assert.Equal(t, "alice@example.com", mail.To)

	raw := resetTokenFromMail(t, mail)
	assert.NotEmpty(t, raw)

	// Only the hash is stored, never the raw token.
	user, err := env.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user.ResetTokenHash)
	assert.NotEqual(t, raw, *user.ResetTokenHash)
	assert.Equal(t, auth.HashToken(raw), *user.ResetTokenHash)
}

func TestForgetPasswordSendFailureClearsResetState(t *testing.T) {
	env := newTestEnv(t)
	id := env.verifiedUser(t, "Alice", "alice", "alice@example.com", "Aa1!aaaa")
	env.mailer.err = assert.AnError

	rec := env.do(t, http.MethodPost, "/api/v1/forget-password", map[string]string{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "There was an error sending the email. Try again later!", decodeBody(t, rec)["message"])

	user, err := env.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, user.ResetTokenHash)
}

func TestResetPasswordRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.verifiedUser(t, "Alice", "alice", "alice@example.com", "Aa1!aaaa")
	env.mailer.sent = nil

	rec := env.do(t, http.MethodPost, "/api/v1/forget-password", map[string]string{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	raw := resetTokenFromMail(t, env.mailer.last())

	rec = env.do(t, http.MethodPatch, "/api/v1/reset-password/"+raw, map[string]string{
		"password":        "Cc3#cccc",
		"passwordConfirm": "Cc3#cccc",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])

	// Old credential retired, new one live.
	old := env.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "alice@example.com", "password": "Aa1!aaaa",
	})
	assert.Equal(t, http.StatusUnauthorized, old.Code)
	env.login(t, "alice@example.com", "Cc3#cccc")
}

func TestResetPasswordTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.verifiedUser(t, "Alice", "alice", "alice@example.com", "Aa1!aaaa")
	env.mailer.sent = nil

	env.do(t, http.MethodPost, "/api/v1/forget-password", map[string]string{
		"email": "alice@example.com",
	})
	raw := resetTokenFromMail(t, env.mailer.last())

	first := env.do(t, http.MethodPatch, "/api/v1/reset-password/"+raw, map[string]string{
		"password": "Cc3#cccc", "passwordConfirm": "Cc3#cccc",
	})
	require.Equal(t, http.StatusOK, first.Code)

	second := env.do(t, http.MethodPatch, "/api/v1/reset-password/"+raw, map[string]string{
		"password": "Dd4$dddd", "passwordConfirm": "Dd4$dddd",
	})
	require.Equal(t, http.StatusUnauthorized, second.Code)
	assert.Equal(t, "Invalid or expired reset token", decodeBody(t, second)["message"])
}

func TestResetPasswordExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	id := env.verifiedUser(t, "Alice", "alice", "alice@example.com", "Aa1!aaaa")
	env.mailer.sent = nil

	env.do(t, http.MethodPost, "/api/v1/forget-password", map[string]string{
		"email": "alice@example.com",
	})
	raw := resetTokenFromMail(t, env.mailer.last())

	expired := time.Now().Add(-time.Minute)
	env.users.mutate(id, func(u *auth.User) { u.ResetTokenExpires = &expired })

	rec := env.do(t, http.MethodPatch, "/api/v1/reset-password/"+raw, map[string]string{
		"password": "Cc3#cccc", "passwordConfirm": "Cc3#cccc",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetPasswordUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/api/v1/reset-password/deadbeef", map[string]string{
		"password": "Cc3#cccc", "passwordConfirm": "Cc3#cccc",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	env.verifiedUser(t, "Alice", "alice", "alice@example.com", "Aa1!aaaa")
	cookies := env.login(t, "alice@example.com", "Aa1!aaaa")

	rec := env.do(t, http.MethodPatch, "/api/v1/updateMyPassword", map[string]string{
		"passwordCurrent": "Aa1!aaaa",
		"password":        "Cc3#cccc",
		"passwordConfirm": "Cc3#cccc",
	}, cookies...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env.login(t, "alice@example.com", "Cc3#cccc")
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t)
	env.verifiedUser(t, "Alice", "alice", "alice@example.com", "Aa1!aaaa")
	cookies := env.login(t, "alice@example.com", "Aa1!aaaa")

	rec := env.do(t, http.MethodPatch, "/api/v1/updateMyPassword", map[string]string{
		"passwordCurrent": "Wrong1!aaaa",
		"password":        "Cc3#cccc",
		"passwordConfirm": "Cc3#cccc",
	}, cookies...)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Your current password is wrong.", decodeBody(t, rec)["message"])
}
