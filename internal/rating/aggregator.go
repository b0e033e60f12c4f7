// Package rating keeps each tour's denormalized rating summary consistent
// with its independently-mutated review set. The summary is always fully
// recomputed from the current review set, never patched incrementally, so a
// recompute can never double count under concurrent mutation.
package rating

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/trailhead-travel/trailhead/internal/domain"
	"github.com/trailhead-travel/trailhead/internal/repository"
)

// ReviewSource is the narrow read surface the aggregator needs from the
// review store.
type ReviewSource interface {
	GetByID(ctx context.Context, id string) (domain.Review, error)
	AggregateByTour(ctx context.Context, tourID string) (domain.RatingSummary, error)
}

// SummarySink is the narrow write surface the aggregator needs from the tour
// store: a partial update of the two summary columns.
type SummarySink interface {
	UpdateRatingSummary(ctx context.Context, tourID string, summary domain.RatingSummary) error
}

const shardCount = 64

// Aggregator recomputes tour rating summaries. Recomputes for the same tour
// are serialized through a sharded mutex keyed by tour id, so the write that
// lands last was derived from a review snapshot taken after every earlier
// write's snapshot.
type Aggregator struct {
	reviews    ReviewSource
	tours      SummarySink
	logger     *log.Logger
	attempts   int
	retryDelay time.Duration
	locks      [shardCount]sync.Mutex
}

// New constructs an Aggregator. attempts bounds the retry budget of
// RecomputeWithRetry; values below 1 fall back to 3.
func New(reviews ReviewSource, tours SummarySink, attempts int, logger *log.Logger) *Aggregator {
	if attempts < 1 {
		attempts = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		reviews:    reviews,
		tours:      tours,
		logger:     logger,
		attempts:   attempts,
		retryDelay: 100 * time.Millisecond,
	}
}

// OnReviewCreated must be called after a review has been durably inserted.
func (a *Aggregator) OnReviewCreated(ctx context.Context, review domain.Review) error {
	return a.RecomputeWithRetry(ctx, review.TourID)
}

// OnReviewWillMutate captures the parent tour id before a review is updated
// or deleted. After a delete the review is gone, so the caller must obtain
// the id here and pass it to RecomputeWithRetry once the mutation commits.
func (a *Aggregator) OnReviewWillMutate(ctx context.Context, reviewID string) (string, error) {
	review, err := a.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return "", err
	}
	return review.TourID, nil
}

// Recompute re-derives a tour's rating summary from its full current review
// set and persists it. Idempotent. A tour deleted concurrently with its
// reviews is a no-op, not an error; any other store failure is returned for
// the caller to retry.
func (a *Aggregator) Recompute(ctx context.Context, tourID string) error {
	// An abandoned recompute leaves the aggregate stale with nothing left to
	// repair it, so the store calls must outlive request cancellation.
	ctx = context.WithoutCancel(ctx)

	lock := a.lockFor(tourID)
	lock.Lock()
	defer lock.Unlock()

	summary, err := a.reviews.AggregateByTour(ctx, tourID)
	if err != nil {
		return fmt.Errorf("recompute tour %s: %w", tourID, err)
	}
	if summary.Quantity == 0 {
		summary = domain.DefaultRatingSummary()
	} else {
		summary.Average = domain.RoundRating(summary.Average)
	}

	if err := a.tours.UpdateRatingSummary(ctx, tourID, summary); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("recompute tour %s: %w", tourID, err)
	}
	return nil
}

// RecomputeWithRetry retries Recompute against transient store failures up to
// the configured budget. Exhausting the budget is logged as a consistency
// violation: no other mechanism repairs a stale aggregate.
func (a *Aggregator) RecomputeWithRetry(ctx context.Context, tourID string) error {
	var err error
	delay := a.retryDelay
	for attempt := 1; attempt <= a.attempts; attempt++ {
		if err = a.Recompute(ctx, tourID); err == nil {
			return nil
		}
		if attempt < a.attempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	a.logger.Printf("rating: consistency violation: recompute for tour %s failed after %d attempts: %v", tourID, a.attempts, err)
	return err
}

func (a *Aggregator) lockFor(tourID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tourID))
	return &a.locks[h.Sum32()%shardCount]
}
