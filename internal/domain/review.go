package domain

import (
	"math"
	"time"
)

// Review represents a single author's rating and comment for a tour.
// At most one review exists per (TourID, AuthorID) pair.
type Review struct {
	ID        string
	TourID    string
	AuthorID  string
	Rating    int
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultRatingsAverage is the summary average for a tour with no reviews.
const DefaultRatingsAverage = 4.5

// RatingSummary is the denormalized {average, quantity} pair derived from a
// tour's current review set.
type RatingSummary struct {
	Average  float64
	Quantity int64
}

// DefaultRatingSummary is the summary written when a tour has no reviews.
func DefaultRatingSummary() RatingSummary {
	return RatingSummary{Average: DefaultRatingsAverage, Quantity: 0}
}

// RoundRating rounds half away from zero to one decimal place. Every average
// rating written anywhere in the system goes through this one function so
// direct assignment and aggregate recomputation never disagree.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
