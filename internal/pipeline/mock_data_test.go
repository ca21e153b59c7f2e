package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/couchcryptid/tow-etl-service/internal/observability"
	"github.com/couchcryptid/tow-etl-service/internal/pipeline"
	"github.com/couchcryptid/tow-etl-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// sliceExtractor serves pre-built events in batches and cancels the run once
// they are exhausted.
type sliceExtractor struct {
	events []domain.RawEvent
	pos    int
	done   context.CancelFunc
}

func (s *sliceExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	if s.pos >= len(s.events) {
		s.done()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	end := min(s.pos+batchSize, len(s.events))
	batch := s.events[s.pos:end]
	s.pos = end
	return batch, nil
}

// stationYear builds one reading per hour of 2023 for temperature and
// humidity. The first six hours of every day are wet. Humidity travels as
// MessagePack, everything else as JSON. January gets 1.5 mm of rain at noon
// each day.
func stationYear(t *testing.T, stationID string) []domain.RawEvent {
	t.Helper()
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	hours := domain.HoursInYear(2023)

	events := make([]domain.RawEvent, 0, 2*hours+31)
	for i := range hours {
		ts := start.Add(time.Duration(i) * time.Hour)
		temp, rh := 15.0, 60.0
		if ts.Hour() < 6 {
			temp, rh = 5.0, 90.0
		}
		events = append(events,
			encodeJSON(t, stationID, domain.MetricTemperature, temp, ts),
			encodeMsgpack(t, stationID, domain.MetricHumidity, rh, ts),
		)
		if ts.Month() == time.January && ts.Hour() == 12 {
			events = append(events, encodeJSON(t, stationID, domain.MetricPrecipitation, 1.5, ts))
		}
	}
	return events
}

func record(stationID string, metric domain.Metric, v float64, ts time.Time) domain.RawReadingRecord {
	return domain.RawReadingRecord{
		StationID:   stationID,
		StationName: "Harbour Pier",
		Metric:      string(metric),
		Value:       &v,
		Timestamp:   ts.Format(time.RFC3339),
	}
}

func encodeJSON(t *testing.T, stationID string, metric domain.Metric, v float64, ts time.Time) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(record(stationID, metric, v, ts))
	require.NoError(t, err)
	return domain.RawEvent{Key: []byte(stationID), Value: data}
}

func encodeMsgpack(t *testing.T, stationID string, metric domain.Metric, v float64, ts time.Time) domain.RawEvent {
	t.Helper()
	data, err := msgpack.Marshal(record(stationID, metric, v, ts))
	require.NoError(t, err)
	return domain.RawEvent{
		Key:     []byte(stationID),
		Value:   data,
		Headers: map[string]string{"content-type": domain.ContentTypeMsgpack},
	}
}

func TestPipeline_SyntheticStationYear(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.January, 2, 6, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	metrics := observability.NewMetricsForTesting()
	st := store.NewMemoryStore(domain.DefaultStationConfig(), 16, discardLogger(), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ext := &sliceExtractor{events: stationYear(t, "harbour"), done: cancel}
	p := pipeline.New(ext, pipeline.NewTransformer(discardLogger()), st, discardLogger(), metrics, 500)
	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.CheckReadiness(context.Background()))

	sum, err := st.Summary("harbour")
	require.NoError(t, err)

	assert.Equal(t, "Harbour Pier", sum.Station.Name)
	assert.Equal(t, domain.QAPass, sum.QAStatus)
	assert.Equal(t, time.Date(2024, time.January, 2, 6, 0, 0, 0, time.UTC), sum.GeneratedAt)

	air := sum.Air
	assert.Equal(t, 8760, air.TempC.Count)
	assert.InDelta(t, 12.5, *air.TempC.Mean, 1e-9)
	assert.InDelta(t, 5.0, *air.TempC.Min, 1e-9)
	assert.InDelta(t, 15.0, *air.TempC.Max, 1e-9)
	assert.InDelta(t, 67.5, *air.Humidity.Mean, 1e-9)
	assert.Zero(t, air.DewpointC.Count)
	assert.Nil(t, air.DewpointC.Mean)

	require.NotNil(t, air.PrecipitationMM.Total)
	assert.InDelta(t, 46.5, *air.PrecipitationMM.Total, 1e-9)
	assert.Equal(t, 31, air.PrecipitationMM.ByYear[2023].Count)

	year := air.TimeOfWetness.ByYear[2023]
	assert.Equal(t, 8760, year.MaxHours)
	assert.Equal(t, 8760, year.TotalHours)
	assert.Equal(t, 365*6, year.TimeOfWetnessActual)
	assert.Equal(t, domain.QAPass, year.QAState)
	require.NotNil(t, year.TimeOfWetness)
	assert.InDelta(t, 2190.0, *year.TimeOfWetness, 1e-9)
	require.NotNil(t, year.CoverageAnalysis)
	assert.Equal(t, domain.EnhancedPass, year.CoverageAnalysis.EnhancedQAState)
	assert.Equal(t, 365, year.CoverageAnalysis.Humidity.DaysWithData)

	assert.Equal(t, 1, air.TimeOfWetness.ValidYears)
	require.NotNil(t, air.TimeOfWetness.AnnualTimeOfWetness)
	assert.InDelta(t, 2190.0, *air.TimeOfWetness.AnnualTimeOfWetness, 1e-9)

	// The whole station reaches the sink exactly once.
	sink := &fakeSink{}
	pub := pipeline.NewPublisher(st, sink, clockwork.NewFakeClock(), time.Minute, discardLogger(), metrics)
	require.NoError(t, pub.PublishPending(context.Background()))
	require.NoError(t, pub.PublishPending(context.Background()))
	require.Len(t, sink.batches, 1)
	assert.Equal(t, sum, sink.batches[0][0])
}
