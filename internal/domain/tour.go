package domain

import "time"

// Difficulty values accepted for a tour.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// ValidDifficulty reports whether v is one of the accepted difficulty values.
func ValidDifficulty(v string) bool {
	switch v {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
		return true
	}
	return false
}

// GeoPoint is a geographic coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Tour represents the canonical catalog entity in the database/service.
// RatingsAverage and RatingsQuantity are denormalized from the tour's reviews
// and written only by the rating aggregator.
type Tour struct {
	ID              string
	Name            string
	Slug            string
	Duration        int
	MaxGroupSize    int
	Difficulty      string
	RatingsAverage  float64
	RatingsQuantity int64
	Price           float64
	Summary         string
	Description     string
	StartLocation   GeoPoint
	StartDates      []time.Time
	Secret          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TourDistance is one row of a nearest-first distance projection.
type TourDistance struct {
	ID       string
	Name     string
	Distance float64
}

// DifficultyStats is one group of the difficulty-bucketed summary pipeline.
type DifficultyStats struct {
	Difficulty string
	NumTours   int64
	NumRatings int64
	AvgRating  float64
	MinRating  float64
	MaxRating  float64
	AvgPrice   float64
	MinPrice   float64
	MaxPrice   float64
}

// MonthlyPlanEntry is one month bucket of the start-date plan pipeline.
type MonthlyPlanEntry struct {
	Month         int
	NumTourStarts int64
	Tours         []string
}
