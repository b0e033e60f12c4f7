package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trailhead-travel/trailhead/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a uniqueness constraint was violated, e.g. a second
// review by the same author for the same tour.
var ErrConflict = errors.New("repository: conflict")

// ErrInvalidYear indicates a monthly-plan year outside the 4-digit range.
var ErrInvalidYear = errors.New("repository: year must be a 4-digit integer")

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Tours   *ToursRepository
	Reviews *ReviewsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Tours:   &ToursRepository{pool: pool},
		Reviews: &ReviewsRepository{pool: pool},
	}
}

// mapPgError translates Postgres constraint violations into sentinel errors.
// Anything else passes through and is treated as a transient store failure.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503":
			return ErrNotFound
		}
	}
	return err
}
