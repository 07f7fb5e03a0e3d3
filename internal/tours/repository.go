package tours

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDuplicateName = errors.New("tour name already exists")

const tourColumns = `id, name, price, country, summary, description, duration,
	start_point, image_cover, num_adults, num_children,
	rating_average, rating_quantity, created_at`

type Repository struct {
	DB *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) List(ctx context.Context, q ListQuery) ([]Tour, error) {
	tail, args := q.sql()
	rows, err := r.DB.Query(ctx, `SELECT `+tourColumns+` FROM tours`+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Tour
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *Repository) Create(ctx context.Context, t Tour) (*Tour, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO tours (id, name, price, country, summary, description, duration,
			start_point, image_cover, num_adults, num_children, rating_average, rating_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+tourColumns,
		uuid.NewString(), t.Name, t.Price, t.Country, t.Summary, t.Description, t.Duration,
		t.StartPoint, t.ImageCover, t.NumAdults, t.NumChildren, t.RatingAverage, t.RatingQuantity)
	created, err := scanTour(row)
	if err != nil && isUniqueViolation(err) {
		return nil, ErrDuplicateName
	}
	return created, err
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Tour, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+tourColumns+` FROM tours WHERE id = $1`, id)
	t, err := scanTour(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *Repository) Update(ctx context.Context, t Tour) (*Tour, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE tours
		SET name = $1, price = $2, country = $3, summary = $4, description = $5,
		    duration = $6, start_point = $7, image_cover = $8,
		    num_adults = $9, num_children = $10
		WHERE id = $11
		RETURNING `+tourColumns,
		t.Name, t.Price, t.Country, t.Summary, t.Description,
		t.Duration, t.StartPoint, t.ImageCover, t.NumAdults, t.NumChildren, t.ID)
	updated, err := scanTour(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil && isUniqueViolation(err) {
		return nil, ErrDuplicateName
	}
	return updated, err
}

func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM tours WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanTour(row pgx.Row) (*Tour, error) {
	var t Tour
	if err := row.Scan(
		&t.ID, &t.Name, &t.Price, &t.Country, &t.Summary, &t.Description, &t.Duration,
		&t.StartPoint, &t.ImageCover, &t.NumAdults, &t.NumChildren,
		&t.RatingAverage, &t.RatingQuantity, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	// pgconn error code 23505
	type coder interface{ SQLState() string }
	var c coder
	return errors.As(err, &c) && c.SQLState() == "23505"
}
