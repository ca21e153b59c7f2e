package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/couchcryptid/tow-etl-service/internal/observability"
	"github.com/couchcryptid/tow-etl-service/internal/pipeline"
	"github.com/couchcryptid/tow-etl-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	pending   []store.PendingSummary
	published map[string]uint64
}

func newFakeSource(ids ...string) *fakeSource {
	src := &fakeSource{published: map[string]uint64{}}
	for i, id := range ids {
		src.pending = append(src.pending, store.PendingSummary{
			Summary:    domain.StationSummary{Station: domain.StationInfo{ID: id}},
			Generation: uint64(i + 1),
		})
	}
	return src
}

func (f *fakeSource) Pending() []store.PendingSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.PendingSummary
	for _, ps := range f.pending {
		if f.published[ps.Summary.Station.ID] < ps.Generation {
			out = append(out, ps)
		}
	}
	return out
}

func (f *fakeSource) MarkPublished(id string, generation uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[id] = generation
}

func (f *fakeSource) publishedGeneration(id string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[id]
}

type fakeSink struct {
	mu       sync.Mutex
	failures int
	batches  [][]domain.StationSummary
	attempts int
}

func (f *fakeSink) Publish(_ context.Context, summaries []domain.StationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("sink unavailable")
	}
	f.batches = append(f.batches, summaries)
	return nil
}

func (f *fakeSink) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestPublisher_PublishPending(t *testing.T) {
	src := newFakeSource("st-1", "st-2")
	sink := &fakeSink{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.NewPublisher(src, sink, clockwork.NewFakeClock(), time.Minute, discardLogger(), metrics)
	require.NoError(t, p.PublishPending(context.Background()))

	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 2)
	assert.Equal(t, "st-1", sink.batches[0][0].Station.ID)
	assert.Equal(t, uint64(2), src.publishedGeneration("st-2"))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SummariesPublished))

	// Nothing left to send.
	require.NoError(t, p.PublishPending(context.Background()))
	assert.Equal(t, 1, sink.attempts)
}

func TestPublisher_PublishPending_FailureKeepsPending(t *testing.T) {
	src := newFakeSource("st-1")
	sink := &fakeSink{failures: 1}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.NewPublisher(src, sink, clockwork.NewFakeClock(), time.Minute, discardLogger(), metrics)

	require.Error(t, p.PublishPending(context.Background()))
	assert.Zero(t, src.publishedGeneration("st-1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishErrors))
	assert.Len(t, src.Pending(), 1)
}

func TestPublisher_Run_PublishesOnTick(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	src := newFakeSource("st-1")
	sink := &fakeSink{}
	p := pipeline.NewPublisher(src, sink, clock, 30*time.Second, discardLogger(), observability.NewMetricsForTesting())

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(runCtx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Zero(t, sink.batchCount(), "nothing is sent before the first tick")

	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool { return sink.batchCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	stop()
	require.NoError(t, <-done)
}

func TestPublisher_Run_RetriesWithBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	src := newFakeSource("st-1")
	sink := &fakeSink{failures: 1}
	p := pipeline.NewPublisher(src, sink, clock, time.Hour, discardLogger(), observability.NewMetricsForTesting())

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(runCtx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Hour)

	// The failed publish arms a 200ms retry timer next to the ticker.
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	assert.Zero(t, sink.batchCount())

	clock.Advance(200 * time.Millisecond)
	assert.Eventually(t, func() bool { return sink.batchCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), src.publishedGeneration("st-1"))

	stop()
	require.NoError(t, <-done)
}
