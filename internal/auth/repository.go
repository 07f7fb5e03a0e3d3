package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicate is returned when an insert violates the unique email or
// username index. Uniqueness is enforced at insertion time, never by a
// pre-check, so concurrent signups cannot slip past it.
var ErrDuplicate = errors.New("duplicate email or username")

const userColumns = `id, name, username, email, password_hash, role,
	verified, verified_at, verification_token, totp_secret,
	password_changed_at, reset_token_hash, reset_token_expires,
	active, created_at, updated_at`

// passwordChangeSkew is subtracted from the password_changed_at stamp so a
// token issued in the same request window is not rejected as stale.
const passwordChangeSkew = time.Second

type UserRepository struct {
	DB     *pgxpool.Pool
	Hasher PasswordHasher
}

func NewUserRepository(db *pgxpool.Pool, hasher PasswordHasher) *UserRepository {
	return &UserRepository{DB: db, Hasher: hasher}
}

type CreateUserParams struct {
	Name              string
	Username          string
	Email             string
	Password          string
	VerificationToken string
	TOTPSecret        string
}

// Create inserts a new user. The password is hashed here, in the store
// layer, and the role is decided inside the INSERT: the first row ever
// written gets the admin role, later rows get the user role. Deciding it
// in the statement closes the count-then-create race between two
// concurrent first signups.
func (r *UserRepository) Create(ctx context.Context, p CreateUserParams) (*User, error) {
	hashed, err := r.Hasher.Hash(p.Password)
	if err != nil {
		return nil, err
	}

	row := r.DB.QueryRow(ctx, `
		INSERT INTO users (id, name, username, email, password_hash, role, verification_token, totp_secret)
		VALUES ($1, $2, $3, lower($4), $5,
			CASE WHEN EXISTS (SELECT 1 FROM users) THEN 'user' ELSE 'admin' END,
			NULLIF($6, ''), $7)
		RETURNING `+userColumns,
		uuid.NewString(), p.Name, p.Username, p.Email, hashed, p.VerificationToken, p.TOTPSecret)

	user, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return user, err
}

// FindByEmail returns the user including the password hash, or nil when no
// active user matches.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = lower($1) AND active
	`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND active
	`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE active
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdatePassword hashes and stores a new password, clears any pending
// reset token and stamps password_changed_at slightly in the past.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, password string) error {
	hashed, err := r.Hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
		UPDATE users
		SET password_hash = $1,
		    password_changed_at = $2,
		    reset_token_hash = NULL,
		    reset_token_expires = NULL,
		    updated_at = NOW()
		WHERE id = $3
	`, hashed, time.Now().Add(-passwordChangeSkew), userID)
	return err
}

// SetVerified marks the account verified and clears the one-time token.
func (r *UserRepository) SetVerified(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET verified = TRUE,
		    verified_at = NOW(),
		    verification_token = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, userID)
	return err
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET reset_token_hash = $1,
		    reset_token_expires = $2,
		    updated_at = NOW()
		WHERE id = $3
	`, tokenHash, expires, userID)
	return err
}

func (r *UserRepository) ClearPasswordReset(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET reset_token_hash = NULL,
		    reset_token_expires = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, userID)
	return err
}

// FindByResetTokenHash matches the SHA-256 hash of a presented raw token
// against a stored, unexpired reset token.
func (r *UserRepository) FindByResetTokenHash(ctx context.Context, tokenHash string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires > NOW() AND active
	`, tokenHash)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// UpdateProfile changes name and/or email. Password updates go through
// UpdatePassword so the changed-at stamp is never skipped.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, name, email *string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE users
		SET name = COALESCE($1, name),
		    email = COALESCE(lower($2), email),
		    updated_at = NOW()
		WHERE id = $3 AND active
		RETURNING `+userColumns,
		name, email, userID)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return user, err
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID, role string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2
	`, role, userID)
	return err
}

// Deactivate soft-deletes the account; every read filters on active.
func (r *UserRepository) Deactivate(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1
	`, userID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                 User
		verifiedAt        sql.NullTime
		verificationToken sql.NullString
		passwordChangedAt sql.NullTime
		resetTokenHash    sql.NullString
		resetTokenExpires sql.NullTime
	)

	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Verified,
		&verifiedAt,
		&verificationToken,
		&u.TOTPSecret,
		&passwordChangedAt,
		&resetTokenHash,
		&resetTokenExpires,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	u.VerifiedAt = nullTimePtr(verifiedAt)
	u.VerificationToken = nullStringPtr(verificationToken)
	u.PasswordChangedAt = nullTimePtr(passwordChangedAt)
	u.ResetTokenHash = nullStringPtr(resetTokenHash)
	u.ResetTokenExpires = nullTimePtr(resetTokenExpires)
	return &u, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}
