package domain

import (
	"fmt"
	"strings"
)

// Metric names a measured quantity.
type Metric string

const (
	MetricTemperature   Metric = "temperature"
	MetricHumidity      Metric = "humidity"
	MetricDewpoint      Metric = "dewpoint"
	MetricPressure      Metric = "pressure"
	MetricPrecipitation Metric = "precipitation"

	// MetricWind is a paired speed (m/s) and bearing reading.
	MetricWind           Metric = "wind"
	MetricWindSpeed      Metric = "wind_speed"
	MetricWindSpeedKnots Metric = "wind_speed_knots"
	MetricWindBearing    Metric = "wind_bearing"

	MetricPM25  Metric = "pm25"
	MetricPM10  Metric = "pm10"
	MetricOzone Metric = "ozone_ppb"
	MetricSO2   Metric = "so2"
)

// ParseMetric normalizes a metric name. It accepts the canonical names and the
// short aliases used by station exports ("temp", "rh", "temp_c").
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "temperature", "temp", "temp_c", "air_temp_c":
		return MetricTemperature, nil
	case "humidity", "rh", "relative_humidity":
		return MetricHumidity, nil
	case "dewpoint", "dewpoint_c":
		return MetricDewpoint, nil
	case "pressure", "pressure_hpa":
		return MetricPressure, nil
	case "precipitation", "precip", "precipitation_mm":
		return MetricPrecipitation, nil
	case "wind":
		return MetricWind, nil
	case "wind_speed", "wind_speed_m_s", "wind_speed_ms":
		return MetricWindSpeed, nil
	case "wind_speed_knots", "wind_speed_kt", "wind_knots":
		return MetricWindSpeedKnots, nil
	case "wind_bearing", "wind_direction", "wind_dir":
		return MetricWindBearing, nil
	case "pm25", "pm2.5", "pm_25", "pm2_5":
		return MetricPM25, nil
	case "pm10", "pm_10":
		return MetricPM10, nil
	case "ozone_ppb", "ozone", "o3":
		return MetricOzone, nil
	case "so2":
		return MetricSO2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// seriesMetric maps a metric to the series its readings are stored in. Knots
// are converted on the way in, so they share the wind speed series.
func (m Metric) seriesMetric() Metric {
	if m == MetricWindSpeedKnots {
		return MetricWindSpeed
	}
	return m
}

// coverageMetric restricts m to the two series the TOW calculator tracks.
func coverageMetric(m Metric) error {
	if m != MetricTemperature && m != MetricHumidity {
		return fmt.Errorf("%w: time of wetness tracks temperature and humidity, got %q", ErrUnknownMetric, m)
	}
	return nil
}
