package auth

import (
	"net/http"
	"time"
)

const (
	// AccessCookieName carries the short-lived access token.
	AccessCookieName = "jwt"
	// RefreshCookieName carries the long-lived refresh token.
	RefreshCookieName = "jwtRefresh"
)

// SetAuthCookies writes both tokens as scoped http-only cookies. The
// secure flag must be set whenever the service terminates TLS.
func SetAuthCookies(w http.ResponseWriter, pair TokenPair, accessTTL, refreshTTL time.Duration, secure bool) {
	now := time.Now()
	setCookie(w, AccessCookieName, pair.AccessToken, now.Add(accessTTL), secure)
	setCookie(w, RefreshCookieName, pair.RefreshToken, now.Add(refreshTTL), secure)
}

// SetAccessCookie refreshes only the access cookie, used after a token
// refresh where the refresh token is not rotated.
func SetAccessCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	setCookie(w, AccessCookieName, token, time.Now().Add(ttl), secure)
}

// ClearAuthCookies overwrites both cookies with already-expired values,
// logging the client out of access and refresh state immediately.
func ClearAuthCookies(w http.ResponseWriter, secure bool) {
	expired := time.Unix(0, 0)
	setCookie(w, AccessCookieName, "", expired, secure)
	setCookie(w, RefreshCookieName, "", expired, secure)
}

func setCookie(w http.ResponseWriter, name, value string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}
