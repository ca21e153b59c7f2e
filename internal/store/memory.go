package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/couchcryptid/tow-etl-service/internal/observability"
)

// ErrStationNotFound is returned when no reading has been seen for a station.
var ErrStationNotFound = errors.New("station not found")

// PendingSummary is a station summary not yet acknowledged as published.
type PendingSummary struct {
	Summary    domain.StationSummary
	Generation uint64
}

type stationEntry struct {
	station *domain.Station
	// generation counts accepted readings; published is the generation last
	// acknowledged by the sink.
	generation uint64
	published  uint64
}

// MemoryStore is a concurrency-safe registry of stations. Writers are
// serialized; summaries and coverage are derived under a read lock.
type MemoryStore struct {
	mu       sync.RWMutex
	stations map[string]*stationEntry

	cfg      domain.StationConfig
	cache    *summaryCache
	verdicts *verdictTracker
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewMemoryStore creates an empty store whose stations use cfg.
func NewMemoryStore(cfg domain.StationConfig, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *MemoryStore {
	return &MemoryStore{
		stations: make(map[string]*stationEntry),
		cfg:      cfg,
		cache:    newSummaryCache(cacheSize),
		verdicts: newVerdictTracker(metrics),
		logger:   logger,
		metrics:  metrics,
	}
}

// LoadBatch applies readings to their stations. A reading a station rejects
// is logged and counted, never returned: it cannot succeed on retry.
func (s *MemoryStore) LoadBatch(ctx context.Context, readings []domain.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range readings {
		e, ok := s.stations[r.StationID]
		if !ok {
			e = &stationEntry{station: domain.NewStation(r.StationID, s.cfg)}
			s.stations[r.StationID] = e
		}
		if err := e.station.Apply(r); err != nil {
			s.logger.Warn("reading rejected",
				"error", err,
				"station_id", r.StationID,
				"metric", r.Metric,
				"timestamp", r.Timestamp,
			)
			s.metrics.ReadingsRejected.WithLabelValues(rejectReason(err)).Inc()
			continue
		}
		e.generation++
		s.metrics.ReadingsApplied.WithLabelValues(string(r.Metric)).Inc()
	}
	s.metrics.StationsTracked.Set(float64(len(s.stations)))
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValueOutOfRange):
		return "out_of_range"
	case errors.Is(err, domain.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, domain.ErrMissingAirTemperature):
		return "missing_air_temp"
	case errors.Is(err, domain.ErrMissingBearing):
		return "missing_bearing"
	case errors.Is(err, domain.ErrUnknownMetric):
		return "unknown_metric"
	default:
		return "other"
	}
}

// StationIDs returns the known station ids in ascending order.
func (s *MemoryStore) StationIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.stations))
	for id := range s.stations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Summary returns the current summary of a station.
func (s *MemoryStore) Summary(id string) (domain.StationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.stations[id]
	if !ok {
		return domain.StationSummary{}, ErrStationNotFound
	}
	return s.summarize(e), nil
}

// Coverage scores one metric's coverage for a station year.
func (s *MemoryStore) Coverage(id string, year int, metric domain.Metric) (domain.CoverageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.stations[id]
	if !ok {
		return domain.CoverageResult{}, ErrStationNotFound
	}
	return e.station.Coverage(year, metric)
}

// Pending returns a summary for every station that accepted readings since
// its last acknowledged publish, ordered by station id.
func (s *MemoryStore) Pending() []PendingSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []PendingSummary
	for _, e := range s.stations {
		if e.generation == e.published {
			continue
		}
		out = append(out, PendingSummary{Summary: s.summarize(e), Generation: e.generation})
	}
	slices.SortFunc(out, func(a, b PendingSummary) int {
		return strings.Compare(a.Summary.Station.ID, b.Summary.Station.ID)
	})
	return out
}

// MarkPublished records that the summary at generation reached the sink.
// Readings accepted after that summary was built keep the station pending.
func (s *MemoryStore) MarkPublished(id string, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.stations[id]; ok && generation > e.published {
		e.published = generation
	}
}

// summarize must be called with s.mu held.
func (s *MemoryStore) summarize(e *stationEntry) domain.StationSummary {
	key := summaryKey{stationID: e.station.ID(), generation: e.generation}
	if sum, ok := s.cache.get(key); ok {
		s.metrics.SummaryCache.WithLabelValues("hit").Inc()
		return sum
	}
	s.metrics.SummaryCache.WithLabelValues("miss").Inc()

	start := time.Now()
	sum := e.station.Summary()
	s.metrics.SummaryBuildDuration.Observe(time.Since(start).Seconds())
	s.verdicts.update(e.station.ID(), sum.Air.TimeOfWetness.ByYear)

	s.cache.put(key, sum)
	return sum
}
