package rating

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhead-travel/trailhead/internal/domain"
	"github.com/trailhead-travel/trailhead/internal/repository"
)

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory ReviewSource + SummarySink with failure injection.
type fakeStore struct {
	mu            sync.Mutex
	reviews       map[string]domain.Review
	summaries     map[string]domain.RatingSummary
	aggregateErrs int
	updateErrs    int
	updates       int
}

func newFakeStore(tourIDs ...string) *fakeStore {
	f := &fakeStore{
		reviews:   make(map[string]domain.Review),
		summaries: make(map[string]domain.RatingSummary),
	}
	for _, id := range tourIDs {
		f.summaries[id] = domain.DefaultRatingSummary()
	}
	return f
}

func (f *fakeStore) addReview(id, tourID string, ratingValue int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[id] = domain.Review{ID: id, TourID: tourID, AuthorID: "author-" + id, Rating: ratingValue}
}

func (f *fakeStore) deleteReview(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reviews, id)
}

func (f *fakeStore) GetByID(_ context.Context, id string) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	review, ok := f.reviews[id]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	return review, nil
}

func (f *fakeStore) AggregateByTour(_ context.Context, tourID string) (domain.RatingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aggregateErrs > 0 {
		f.aggregateErrs--
		return domain.RatingSummary{}, errStoreDown
	}
	var sum, count int64
	for _, review := range f.reviews {
		if review.TourID == tourID {
			sum += int64(review.Rating)
			count++
		}
	}
	if count == 0 {
		return domain.RatingSummary{}, nil
	}
	return domain.RatingSummary{Average: float64(sum) / float64(count), Quantity: count}, nil
}

func (f *fakeStore) UpdateRatingSummary(_ context.Context, tourID string, summary domain.RatingSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErrs > 0 {
		f.updateErrs--
		return errStoreDown
	}
	if _, ok := f.summaries[tourID]; !ok {
		return repository.ErrNotFound
	}
	f.summaries[tourID] = summary
	f.updates++
	return nil
}

func (f *fakeStore) summary(tourID string) domain.RatingSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaries[tourID]
}

func newTestAggregator(store *fakeStore) *Aggregator {
	agg := New(store, store, 3, log.New(io.Discard, "", 0))
	agg.retryDelay = time.Millisecond
	return agg
}

func TestRecompute_MeanAndCount(t *testing.T) {
	store := newFakeStore("tour-1")
	store.addReview("r1", "tour-1", 4)
	store.addReview("r2", "tour-1", 5)
	agg := newTestAggregator(store)

	require.NoError(t, agg.Recompute(context.Background(), "tour-1"))
	assert.Equal(t, domain.RatingSummary{Average: 4.5, Quantity: 2}, store.summary("tour-1"))
}

func TestRecompute_RoundsHalfAwayFromZero(t *testing.T) {
	store := newFakeStore("tour-1")
	store.addReview("r1", "tour-1", 4)
	store.addReview("r2", "tour-1", 5)
	store.addReview("r3", "tour-1", 5)
	agg := newTestAggregator(store)

	// mean 14/3 = 4.666... rounds to 4.7
	require.NoError(t, agg.Recompute(context.Background(), "tour-1"))
	assert.Equal(t, domain.RatingSummary{Average: 4.7, Quantity: 3}, store.summary("tour-1"))
}

func TestRecompute_EmptySetWritesDefault(t *testing.T) {
	store := newFakeStore("tour-1")
	agg := newTestAggregator(store)

	require.NoError(t, agg.Recompute(context.Background(), "tour-1"))
	assert.Equal(t, domain.RatingSummary{Average: 4.5, Quantity: 0}, store.summary("tour-1"))
}

func TestRecompute_Idempotent(t *testing.T) {
	store := newFakeStore("tour-1")
	store.addReview("r1", "tour-1", 3)
	agg := newTestAggregator(store)

	require.NoError(t, agg.Recompute(context.Background(), "tour-1"))
	first := store.summary("tour-1")
	require.NoError(t, agg.Recompute(context.Background(), "tour-1"))
	assert.Equal(t, first, store.summary("tour-1"))
}

func TestRecompute_MissingTourIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.addReview("r1", "tour-gone", 5)
	agg := newTestAggregator(store)

	assert.NoError(t, agg.Recompute(context.Background(), "tour-gone"))
}

func TestRecompute_SurvivesCancelledContext(t *testing.T) {
	store := newFakeStore("tour-1")
	store.addReview("r1", "tour-1", 2)
	agg := newTestAggregator(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, agg.Recompute(ctx, "tour-1"))
	assert.Equal(t, domain.RatingSummary{Average: 2, Quantity: 1}, store.summary("tour-1"))
}

func TestOnReviewWillMutate_CapturesTourID(t *testing.T) {
	store := newFakeStore("tour-1")
	store.addReview("r1", "tour-1", 5)
	agg := newTestAggregator(store)

	tourID, err := agg.OnReviewWillMutate(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "tour-1", tourID)

	_, err = agg.OnReviewWillMutate(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTwoPhaseDelete_RevertsToDefault(t *testing.T) {
	store := newFakeStore("tour-1")
	store.addReview("r1", "tour-1", 5)
	agg := newTestAggregator(store)
	ctx := context.Background()

	require.NoError(t, agg.OnReviewCreated(ctx, store.reviews["r1"]))
	assert.Equal(t, domain.RatingSummary{Average: 5, Quantity: 1}, store.summary("tour-1"))

	tourID, err := agg.OnReviewWillMutate(ctx, "r1")
	require.NoError(t, err)
	store.deleteReview("r1")
	require.NoError(t, agg.RecomputeWithRetry(ctx, tourID))

	assert.Equal(t, domain.RatingSummary{Average: 4.5, Quantity: 0}, store.summary("tour-1"))
}

func TestRecompute_TransientFailurePropagates(t *testing.T) {
	store := newFakeStore("tour-1")
	store.aggregateErrs = 1
	agg := newTestAggregator(store)

	err := agg.Recompute(context.Background(), "tour-1")
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRecomputeWithRetry_RecoversFromTransientFailure(t *testing.T) {
	store := newFakeStore("tour-1")
	store.addReview("r1", "tour-1", 4)
	store.aggregateErrs = 2
	agg := newTestAggregator(store)

	require.NoError(t, agg.RecomputeWithRetry(context.Background(), "tour-1"))
	assert.Equal(t, domain.RatingSummary{Average: 4, Quantity: 1}, store.summary("tour-1"))
}

func TestRecomputeWithRetry_ExhaustsBudget(t *testing.T) {
	store := newFakeStore("tour-1")
	store.aggregateErrs = 10
	agg := newTestAggregator(store)

	err := agg.RecomputeWithRetry(context.Background(), "tour-1")
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 0, store.updates)
}

func TestRecompute_ConcurrentCallsConverge(t *testing.T) {
	store := newFakeStore("tour-1")
	const reviews = 20
	for i := 0; i < reviews; i++ {
		store.addReview(fmt.Sprintf("r%d", i), "tour-1", 1+i%5)
	}
	agg := newTestAggregator(store)

	var wg sync.WaitGroup
	for i := 0; i < reviews; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := agg.Recompute(context.Background(), "tour-1"); err != nil {
				t.Errorf("concurrent recompute: %v", err)
			}
		}()
	}
	wg.Wait()

	// Every call re-read the full fixed review set, so whichever write landed
	// last carries the same correct summary.
	want := domain.RatingSummary{Average: 3, Quantity: reviews}
	assert.Equal(t, want, store.summary("tour-1"))
	assert.Equal(t, reviews, store.updates)
}
