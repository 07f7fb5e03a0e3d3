package reviews

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Review struct {
	ID        string    `json:"id"`
	TourID    string    `json:"tour"`
	UserID    string    `json:"user"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const reviewColumns = `id, tour_id, user_id, rating, comment, created_at, updated_at`

type Repository struct {
	DB *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{DB: db}
}

// List returns reviews, scoped to a tour when tourID is non-empty.
func (r *Repository) List(ctx context.Context, tourID string) ([]Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews`
	var args []interface{}
	if tourID != "" {
		query += ` WHERE tour_id = $1`
		args = append(args, tourID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rev)
	}
	return result, rows.Err()
}

func (r *Repository) Create(ctx context.Context, rev Review) (*Review, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO reviews (id, tour_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+reviewColumns,
		uuid.NewString(), rev.TourID, rev.UserID, rev.Rating, rev.Comment)
	return scanReview(row)
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Review, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	rev, err := scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rev, err
}

func (r *Repository) Update(ctx context.Context, id string, rating int, comment string) (*Review, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE reviews
		SET rating = $1, comment = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING `+reviewColumns,
		rating, comment, id)
	rev, err := scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rev, err
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanReview(row pgx.Row) (*Review, error) {
	var rev Review
	if err := row.Scan(&rev.ID, &rev.TourID, &rev.UserID, &rev.Rating, &rev.Comment, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
		return nil, err
	}
	return &rev, nil
}
