package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/ratings-api/internal/domain"
)

// RatingsRepository persists ratings in the ratings table.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// RatingCreateParams captures the payload required to insert a rating.
type RatingCreateParams struct {
	Identifier string
	Value      int
	Comments   *string
	DeviceID   string
	CreatedAt  time.Time
}

// Create inserts a rating inside its own transaction and returns the stored row.
func (r *RatingsRepository) Create(ctx context.Context, params RatingCreateParams) (domain.Rating, error) {
	const query = `
        INSERT INTO ratings (identifier, rating, comments, created_at, device_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at
    `

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Rating{}, fmt.Errorf("begin create rating: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	device := params.DeviceID
	rating := domain.Rating{
		Identifier: params.Identifier,
		Value:      params.Value,
		Comments:   params.Comments,
		DeviceID:   &device,
	}
	err = tx.QueryRow(ctx, query,
		params.Identifier,
		params.Value,
		params.Comments,
		params.CreatedAt,
		params.DeviceID,
	).Scan(&rating.ID, &rating.CreatedAt)
	if err != nil {
		return domain.Rating{}, fmt.Errorf("insert rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Rating{}, fmt.Errorf("commit rating: %w", err)
	}
	return rating, nil
}

// List returns every rating, most recent first.
func (r *RatingsRepository) List(ctx context.Context) ([]domain.Rating, error) {
	const query = `
        SELECT id, identifier, rating, comments, created_at, device_id
        FROM ratings
        ORDER BY created_at DESC, id DESC
    `

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}

	ratings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Rating, error) {
		var rating domain.Rating
		err := row.Scan(
			&rating.ID,
			&rating.Identifier,
			&rating.Value,
			&rating.Comments,
			&rating.CreatedAt,
			&rating.DeviceID,
		)
		return rating, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ratings: %w", err)
	}
	return ratings, nil
}
