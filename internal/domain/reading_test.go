package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestParseRawEvent(t *testing.T) {
	t.Run("json reading", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"station_id":"KPDX","station_name":"Portland","metric":"temp_c","value":12.5,"timestamp":"2019-06-01T12:30:00Z"}`)}
		r, err := ParseRawEvent(raw)
		require.NoError(t, err)

		assert.Equal(t, "KPDX", r.StationID)
		assert.Equal(t, "Portland", r.StationName)
		assert.Equal(t, MetricTemperature, r.Metric)
		assert.Equal(t, 12.5, r.Value)
		assert.Nil(t, r.AirTempC)
		assert.Equal(t, time.Date(2019, 6, 1, 12, 30, 0, 0, time.UTC), r.Timestamp)
	})

	t.Run("offset timestamp normalized to UTC", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"station_id":"KPDX","metric":"rh","value":81,"timestamp":"2020-01-01T01:00:00+02:00"}`)}
		r, err := ParseRawEvent(raw)
		require.NoError(t, err)

		assert.Equal(t, time.UTC, r.Timestamp.Location())
		assert.Equal(t, 2019, r.Timestamp.Year())
		assert.Equal(t, 23, r.Timestamp.Hour())
	})

	t.Run("msgpack dewpoint", func(t *testing.T) {
		value, air := 9.0, 10.0
		payload, err := msgpack.Marshal(RawReadingRecord{
			StationID: "KSEA",
			Metric:    "dewpoint",
			Value:     &value,
			AirTempC:  &air,
			Timestamp: "2021-03-04T05:00:00Z",
		})
		require.NoError(t, err)

		r, err := ParseRawEvent(RawEvent{
			Value:   payload,
			Headers: map[string]string{"content-type": ContentTypeMsgpack},
		})
		require.NoError(t, err)
		assert.Equal(t, MetricDewpoint, r.Metric)
		require.NotNil(t, r.AirTempC)
		assert.Equal(t, 10.0, *r.AirTempC)
	})

	t.Run("json wind with bearing", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"station_id":"KPDX","metric":"wind","value":4.2,"bearing_deg":225,"timestamp":"2019-06-01T12:00:00Z"}`)}
		r, err := ParseRawEvent(raw)
		require.NoError(t, err)
		assert.Equal(t, MetricWind, r.Metric)
		require.NotNil(t, r.BearingDeg)
		assert.Equal(t, 225.0, *r.BearingDeg)
	})

	t.Run("zero value is a value", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"station_id":"X","metric":"precip","value":0,"timestamp":"2019-06-01T00:00:00Z"}`)}
		r, err := ParseRawEvent(raw)
		require.NoError(t, err)
		assert.Equal(t, 0.0, r.Value)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawEvent(RawEvent{Value: []byte("{invalid json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw event")
	})

	t.Run("missing value", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"station_id":"X","metric":"temp","timestamp":"2019-06-01T00:00:00Z"}`)}
		_, err := ParseRawEvent(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validate reading")
	})

	t.Run("bad timestamp", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"station_id":"X","metric":"temp","value":1,"timestamp":"yesterday"}`)}
		_, err := ParseRawEvent(raw)
		require.Error(t, err)
	})

	t.Run("unknown metric", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"station_id":"X","metric":"visibility","value":1,"timestamp":"2019-06-01T00:00:00Z"}`)}
		_, err := ParseRawEvent(raw)
		require.ErrorIs(t, err, ErrUnknownMetric)
	})
}

func TestParseMetric(t *testing.T) {
	tests := map[string]Metric{
		"temperature":       MetricTemperature,
		" TEMP ":            MetricTemperature,
		"air_temp_c":        MetricTemperature,
		"relative_humidity": MetricHumidity,
		"dewpoint_c":        MetricDewpoint,
		"pressure_hpa":      MetricPressure,
		"precipitation_mm":  MetricPrecipitation,
		"wind":              MetricWind,
		"wind_speed_m_s":    MetricWindSpeed,
		"wind_knots":        MetricWindSpeedKnots,
		"wind_direction":    MetricWindBearing,
		"PM2.5":             MetricPM25,
		"pm_10":             MetricPM10,
		"o3":                MetricOzone,
		"so2":               MetricSO2,
	}
	for in, want := range tests {
		got, err := ParseMetric(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMetric("")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}
