package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trailhead-travel/trailhead/internal/domain"
)

// ReviewsRepository provides persistence helpers for review records.
type ReviewsRepository struct {
	pool *pgxpool.Pool
}

const reviewColumns = `
    id,
    tour_id,
    author_id,
    rating,
    body,
    created_at,
    updated_at
`

// ReviewCreateParams captures the payload required to create a review.
type ReviewCreateParams struct {
	TourID   string
	AuthorID string
	Rating   int
	Body     string
}

// Create inserts a new review. A second review by the same author for the
// same tour violates the unique index and returns ErrConflict; a missing tour
// returns ErrNotFound.
func (r *ReviewsRepository) Create(ctx context.Context, params ReviewCreateParams) (domain.Review, error) {
	query := fmt.Sprintf(`
        INSERT INTO reviews (id, tour_id, author_id, rating, body)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, reviewColumns)

	row := r.pool.QueryRow(ctx, query, uuid.NewString(), params.TourID, params.AuthorID, params.Rating, params.Body)
	review, err := scanReview(row)
	if err != nil {
		return domain.Review{}, mapPgError(err)
	}
	return review, nil
}

// GetByID fetches a review by its identifier. This is the pre-image read the
// aggregator performs before a destructive mutation.
func (r *ReviewsRepository) GetByID(ctx context.Context, id string) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	row := r.pool.QueryRow(ctx, query, id)
	review, err := scanReview(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, err
	}
	return review, nil
}

// Update modifies a review's rating and/or body.
func (r *ReviewsRepository) Update(ctx context.Context, id string, rating *int, body *string) (domain.Review, error) {
	query := fmt.Sprintf(`
        UPDATE reviews
        SET rating = COALESCE($2, rating),
            body = COALESCE($3, body),
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, reviewColumns)

	row := r.pool.QueryRow(ctx, query, id, rating, body)
	review, err := scanReview(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, err
	}
	return review, nil
}

// Delete removes a review.
func (r *ReviewsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByTour returns all reviews for a tour, newest first.
func (r *ReviewsRepository) ListByTour(ctx context.Context, tourID string) ([]domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE tour_id = $1 ORDER BY created_at DESC, id DESC`, reviewColumns)
	rows, err := r.pool.Query(ctx, query, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// AggregateByTour re-reads the entire current review set for a tour and
// returns its raw count and unrounded mean. Rounding and the zero-review
// default are applied by the aggregator, never here.
func (r *ReviewsRepository) AggregateByTour(ctx context.Context, tourID string) (domain.RatingSummary, error) {
	const query = `
        SELECT COUNT(*)::int8 AS quantity,
               COALESCE(AVG(rating)::float8, 0) AS average
        FROM reviews
        WHERE tour_id = $1
    `

	var summary domain.RatingSummary
	err := r.pool.QueryRow(ctx, query, tourID).Scan(&summary.Quantity, &summary.Average)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("aggregate reviews: %w", err)
	}
	return summary, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.TourID,
		&review.AuthorID,
		&review.Rating,
		&review.Body,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	return review, nil
}
