package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/couchcryptid/tow-etl-service/internal/observability"
	"github.com/couchcryptid/tow-etl-service/internal/store"
	"github.com/jonboulle/clockwork"
)

// SummarySource yields station summaries that changed since their last
// acknowledged publish.
type SummarySource interface {
	Pending() []store.PendingSummary
	MarkPublished(stationID string, generation uint64)
}

// SummarySink writes station summaries to the destination.
type SummarySink interface {
	Publish(ctx context.Context, summaries []domain.StationSummary) error
}

// Publisher periodically pushes changed station summaries to a sink.
type Publisher struct {
	source   SummarySource
	sink     SummarySink
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewPublisher creates a Publisher that flushes every interval on clock.
func NewPublisher(source SummarySource, sink SummarySink, clock clockwork.Clock, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		source:   source,
		sink:     sink,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run publishes pending summaries on every tick until the context is
// cancelled. A failed publish is retried with exponential backoff; a tick
// arriving in the meantime also retries.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("summary publisher started", "interval", p.interval)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	backoff := initialBackoff
	var retry <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("summary publisher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		case <-retry:
		}

		retry = nil
		if err := p.PublishPending(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("publish summaries failed", "error", err, "retry_in", backoff)
			retry = p.clock.After(backoff)
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = initialBackoff
	}
}

// PublishPending sends every pending summary in one call and acknowledges
// them on success. Stations that accept readings while the publish is in
// flight stay pending.
func (p *Publisher) PublishPending(ctx context.Context) error {
	pending := p.source.Pending()
	if len(pending) == 0 {
		return nil
	}

	summaries := make([]domain.StationSummary, len(pending))
	for i, ps := range pending {
		summaries[i] = ps.Summary
	}

	if err := p.sink.Publish(ctx, summaries); err != nil {
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("publish %d summaries: %w", len(summaries), err)
	}

	for _, ps := range pending {
		p.source.MarkPublished(ps.Summary.Station.ID, ps.Generation)
	}
	p.metrics.SummariesPublished.Add(float64(len(pending)))
	p.logger.Info("summaries published", "count", len(pending))
	return nil
}
