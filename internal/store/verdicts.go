package store

import (
	"sync"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/couchcryptid/tow-etl-service/internal/observability"
)

// verdictTracker keeps the YearVerdicts gauge equal to the number of station
// years currently holding each verdict. Summaries are built under the store's
// read lock, so it guards its own state.
type verdictTracker struct {
	mu        sync.Mutex
	byStation map[string]map[int]string
	metrics   *observability.Metrics
}

func newVerdictTracker(metrics *observability.Metrics) *verdictTracker {
	return &verdictTracker{
		byStation: make(map[string]map[int]string),
		metrics:   metrics,
	}
}

// update moves each year of a freshly built summary to its new verdict.
func (v *verdictTracker) update(stationID string, years domain.YearMap[domain.TOWYear]) {
	v.mu.Lock()
	defer v.mu.Unlock()

	prev, ok := v.byStation[stationID]
	if !ok {
		prev = make(map[int]string, len(years))
		v.byStation[stationID] = prev
	}
	for year, y := range years {
		state := yearVerdict(y)
		old, seen := prev[year]
		if seen && old == state {
			continue
		}
		if seen {
			v.metrics.YearVerdicts.WithLabelValues(old).Dec()
		}
		v.metrics.YearVerdicts.WithLabelValues(state).Inc()
		prev[year] = state
	}
}

func yearVerdict(y domain.TOWYear) string {
	if y.CoverageAnalysis != nil {
		return y.CoverageAnalysis.EnhancedQAState.String()
	}
	return y.QAState.String()
}
