package auth

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the persisted credential record. PasswordHash, TOTPSecret and the
// reset/verification token material must never appear in API responses.
type User struct {
	ID                string
	Name              string
	Username          string
	Email             string
	PasswordHash      string
	Role              string
	Verified          bool
	VerifiedAt        *time.Time
	VerificationToken *string
	TOTPSecret        string
	PasswordChangedAt *time.Time
	ResetTokenHash    *string
	ResetTokenExpires *time.Time
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ChangedPasswordAfter reports whether the password was changed after the
// given token issue time. Tokens minted before a password change are stale.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Before(*u.PasswordChangedAt)
}

// RefreshSession is the server-side record behind a refresh token. A user
// owns at most one session; revoking it (logout) invalidates every refresh
// token that embeds its value.
type RefreshSession struct {
	ID        string
	UserID    string
	Value     string
	IP        string
	UserAgent string
	Valid     bool
	CreatedAt time.Time
}
