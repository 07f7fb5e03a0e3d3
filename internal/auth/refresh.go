package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const refreshColumns = `id, user_id, value, ip, user_agent, valid, created_at`

type RefreshSessionRepository struct {
	DB *pgxpool.Pool
}

func NewRefreshSessionRepository(db *pgxpool.Pool) *RefreshSessionRepository {
	return &RefreshSessionRepository{DB: db}
}

// Create stores a new session for the user, replacing any previous one.
// The user_id unique index keeps the single-session invariant even when
// two logins race.
func (r *RefreshSessionRepository) Create(ctx context.Context, sess RefreshSession) (*RefreshSession, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO refresh_sessions (id, user_id, value, ip, user_agent, valid)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (user_id) DO UPDATE
			SET value = EXCLUDED.value,
			    ip = EXCLUDED.ip,
			    user_agent = EXCLUDED.user_agent,
			    valid = TRUE,
			    created_at = NOW()
		RETURNING `+refreshColumns,
		uuid.NewString(), sess.UserID, sess.Value, sess.IP, sess.UserAgent)
	return scanRefreshSession(row)
}

// FindByUser returns the user's session regardless of validity, or nil.
func (r *RefreshSessionRepository) FindByUser(ctx context.Context, userID string) (*RefreshSession, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+refreshColumns+`
		FROM refresh_sessions
		WHERE user_id = $1
	`, userID)
	sess, err := scanRefreshSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// FindValid returns the session only when the stored value matches and the
// record has not been invalidated. This is the server-side check that
// bounds the blast radius of a stolen refresh token.
func (r *RefreshSessionRepository) FindValid(ctx context.Context, userID, value string) (*RefreshSession, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+refreshColumns+`
		FROM refresh_sessions
		WHERE user_id = $1 AND value = $2 AND valid
	`, userID, value)
	sess, err := scanRefreshSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// DeleteByUser revokes the user's session. Subsequent refresh attempts
// with any previously issued refresh token fail.
func (r *RefreshSessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM refresh_sessions WHERE user_id = $1`, userID)
	return err
}

func (r *RefreshSessionRepository) Invalidate(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `UPDATE refresh_sessions SET valid = FALSE WHERE user_id = $1`, userID)
	return err
}

func scanRefreshSession(row pgx.Row) (*RefreshSession, error) {
	var s RefreshSession
	if err := row.Scan(&s.ID, &s.UserID, &s.Value, &s.IP, &s.UserAgent, &s.Valid, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
