package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Physically plausible bounds for station readings. The extremes recorded on
// earth are -89.2 °C and 56.7 °C.
const (
	minTemperatureC = -90.0
	maxTemperatureC = 60.0
	minHumidityPct  = 0.0
	maxHumidityPct  = 100.0
	minPressureHPa  = 800.0
	maxPressureHPa  = 1100.0
	maxAirQuality   = 1000.0

	// DefaultStatsPrecision is the number of decimals kept in summary statistics.
	DefaultStatsPrecision = 2
)

// OnErrorPolicy decides what a Station does with an implausible value.
type OnErrorPolicy uint8

const (
	// OnErrorRaise rejects the value with ErrValueOutOfRange.
	OnErrorRaise OnErrorPolicy = iota + 1
	// OnErrorIgnore drops the value and marks the station as failing QA.
	OnErrorIgnore
)

func (p OnErrorPolicy) String() string {
	switch p {
	case OnErrorRaise:
		return "raise"
	case OnErrorIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("OnErrorPolicy(%d)", uint8(p))
	}
}

// ParseOnErrorPolicy accepts "raise" or "ignore", case-insensitively.
func ParseOnErrorPolicy(s string) (OnErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raise":
		return OnErrorRaise, nil
	case "ignore":
		return OnErrorIgnore, nil
	default:
		return 0, fmt.Errorf("invalid on-error policy %q", s)
	}
}

// StationConfig tunes a Station.
type StationConfig struct {
	TOW               TOWConfig
	AdequateThreshold float64
	StatsPrecision    int
	EnhancedQA        bool
	OnError           OnErrorPolicy
}

// DefaultStationConfig returns enhanced QA with the raise policy.
func DefaultStationConfig() StationConfig {
	return StationConfig{
		TOW:               DefaultTOWConfig(),
		AdequateThreshold: DefaultAdequateThreshold,
		StatsPrecision:    DefaultStatsPrecision,
		EnhancedQA:        true,
		OnError:           OnErrorRaise,
	}
}

// series holds the accepted values of one metric and when they were taken.
type series struct {
	values []float64
	times  []time.Time
}

// Station accumulates every reading from one weather station: plain
// statistics per metric, hourly precipitation, wind vectors and the
// time-of-wetness series.
//
// A Station is not safe for concurrent use.
type Station struct {
	id   string
	name string
	cfg  StationConfig
	qa   QAState

	tow      *TOWCalculator
	enhanced *EnhancedQA
	analyzer *YearCoverageAnalyzer
	precip   *HourlyGrid
	wind     *windState
	obs      map[Metric]*series
}

// NewStation returns an empty station with QA status PASS.
func NewStation(id string, cfg StationConfig) *Station {
	tow := NewTOWCalculator(cfg.TOW)
	analyzer := NewYearCoverageAnalyzer(cfg.AdequateThreshold)
	return &Station{
		id:       id,
		cfg:      cfg,
		qa:       QAPass,
		tow:      tow,
		enhanced: NewEnhancedQA(tow, analyzer),
		analyzer: analyzer,
		precip:   NewHourlyGrid(),
		wind:     newWindState(),
		obs:      make(map[Metric]*series),
	}
}

func (s *Station) ID() string        { return s.id }
func (s *Station) Name() string      { return s.name }
func (s *Station) QAStatus() QAState { return s.qa }

// SetName records the human-readable station name. Empty names are ignored so
// records without a name do not clear an earlier one.
func (s *Station) SetName(name string) {
	if name != "" {
		s.name = name
	}
}

// TOW exposes the station's time-of-wetness calculator.
func (s *Station) TOW() *TOWCalculator { return s.tow }

// Coverage scores one metric's temporal coverage for year. Temperature and
// humidity are scored on the hours held by the TOW calculator; other metrics
// on the timestamps of their accepted readings.
func (s *Station) Coverage(year int, metric Metric) (CoverageResult, error) {
	switch metric.seriesMetric() {
	case MetricTemperature, MetricHumidity:
		return s.enhanced.AssessYearCoverage(year, metric)
	}
	ts, err := s.timestamps(metric)
	if err != nil {
		return CoverageResult{}, err
	}
	return s.analyzer.Analyze(ts, year), nil
}

// HasAdequateCoverage reports whether metric's coverage for year reaches the
// configured threshold.
func (s *Station) HasAdequateCoverage(year int, metric Metric) (bool, error) {
	res, err := s.Coverage(year, metric)
	if err != nil {
		return false, err
	}
	return res.AdequateCoverage, nil
}

// Months counts the accepted readings of metric per calendar month, across
// every year.
func (s *Station) Months(metric Metric) (MonthCounts, error) {
	ts, err := s.timestamps(metric)
	if err != nil {
		return nil, err
	}
	out := newMonthCounts()
	for _, t := range ts {
		out[t.Month()]++
	}
	return out, nil
}

// IsFullYearOfData reports whether metric has readings in all twelve months.
func (s *Station) IsFullYearOfData(metric Metric) (bool, error) {
	months, err := s.Months(metric)
	if err != nil {
		return false, err
	}
	return months.Full(), nil
}

func (s *Station) timestamps(metric Metric) ([]time.Time, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	metric = metric.seriesMetric()
	if metric == MetricWind {
		return s.wind.times(), nil
	}
	if ser, ok := s.obs[metric]; ok {
		return ser.times, nil
	}
	return nil, nil
}

func (s *Station) record(metric Metric, v float64, ts time.Time) {
	ser, ok := s.obs[metric]
	if !ok {
		ser = &series{}
		s.obs[metric] = ser
	}
	ser.values = append(ser.values, v)
	ser.times = append(ser.times, ts)
}

func (s *Station) values(metric Metric) []float64 {
	if ser, ok := s.obs[metric]; ok {
		return ser.values
	}
	return nil
}

// AddTemperature records an air temperature in °C.
func (s *Station) AddTemperature(v float64, ts time.Time) error {
	return s.policy(s.addTemperature(v, ts))
}

func (s *Station) addTemperature(v float64, ts time.Time) error {
	if ts.IsZero() {
		return ErrInvalidTimestamp
	}
	if v < minTemperatureC || v > maxTemperatureC {
		return outOfRange(MetricTemperature, v)
	}
	if err := s.tow.AddTemperature(v, ts); err != nil {
		return err
	}
	s.record(MetricTemperature, v, ts)
	return nil
}

// AddHumidity records relative humidity in percent, rounded to a whole
// percent before the range check.
func (s *Station) AddHumidity(v float64, ts time.Time) error {
	return s.policy(s.addHumidity(v, ts))
}

func (s *Station) addHumidity(v float64, ts time.Time) error {
	if ts.IsZero() {
		return ErrInvalidTimestamp
	}
	v = math.Round(v)
	if v < minHumidityPct || v > maxHumidityPct {
		return outOfRange(MetricHumidity, v)
	}
	return s.recordHumidity(v, ts)
}

func (s *Station) recordHumidity(v float64, ts time.Time) error {
	if err := s.tow.AddHumidity(v, ts); err != nil {
		return err
	}
	s.record(MetricHumidity, v, ts)
	return nil
}

// AddDewpoint records a dewpoint and the relative humidity derived from it and
// the concurrent air temperature. The derived humidity feeds the TOW series.
func (s *Station) AddDewpoint(dewpoint, airTemp float64, ts time.Time) error {
	return s.policy(s.addDewpoint(dewpoint, airTemp, ts))
}

func (s *Station) addDewpoint(dewpoint, airTemp float64, ts time.Time) error {
	if ts.IsZero() {
		return ErrInvalidTimestamp
	}
	if airTemp < minTemperatureC || airTemp > maxTemperatureC {
		return outOfRange(MetricTemperature, airTemp)
	}
	if err := s.recordHumidity(RelativeHumidity(airTemp, dewpoint), ts); err != nil {
		return err
	}
	s.record(MetricDewpoint, dewpoint, ts)
	return nil
}

// AddPressure records station pressure in hPa.
func (s *Station) AddPressure(v float64, ts time.Time) error {
	return s.policy(s.addBounded(MetricPressure, v, ts, minPressureHPa, maxPressureHPa))
}

// AddPrecipitation records the precipitation for the hour containing ts, in mm.
func (s *Station) AddPrecipitation(v float64, ts time.Time) error {
	return s.policy(s.addPrecipitation(v, ts))
}

func (s *Station) addPrecipitation(v float64, ts time.Time) error {
	if ts.IsZero() {
		return ErrInvalidTimestamp
	}
	if v < 0 {
		return outOfRange(MetricPrecipitation, v)
	}
	if err := s.precip.Add(ts, v); err != nil {
		return err
	}
	s.record(MetricPrecipitation, v, ts)
	return nil
}

// AddPM25 records fine particulate matter in µg/m³.
func (s *Station) AddPM25(v float64, ts time.Time) error {
	return s.policy(s.addBounded(MetricPM25, v, ts, 0, maxAirQuality))
}

// AddPM10 records coarse particulate matter in µg/m³.
func (s *Station) AddPM10(v float64, ts time.Time) error {
	return s.policy(s.addBounded(MetricPM10, v, ts, 0, maxAirQuality))
}

// AddOzone records ozone in ppb.
func (s *Station) AddOzone(v float64, ts time.Time) error {
	return s.policy(s.addBounded(MetricOzone, v, ts, 0, maxAirQuality))
}

// AddSO2 records sulphur dioxide.
func (s *Station) AddSO2(v float64, ts time.Time) error {
	return s.policy(s.addBounded(MetricSO2, v, ts, 0, maxAirQuality))
}

func (s *Station) addBounded(metric Metric, v float64, ts time.Time, lo, hi float64) error {
	if ts.IsZero() {
		return ErrInvalidTimestamp
	}
	if v < lo || v > hi {
		return outOfRange(metric, v)
	}
	s.record(metric, v, ts)
	return nil
}

// AddWind records a paired wind speed (m/s) and bearing (degrees from north).
func (s *Station) AddWind(speed, bearing float64, ts time.Time) error {
	return s.policy(s.addWind(speed, bearing, ts))
}

func (s *Station) addWind(speed, bearing float64, ts time.Time) error {
	speed, err := s.checkWindSpeed(speed, ts)
	if err != nil {
		return err
	}
	bearing, err = s.checkBearing(bearing)
	if err != nil {
		return err
	}
	s.record(MetricWindSpeed, speed, ts)
	s.record(MetricWindBearing, bearing, ts)
	s.wind.add(speed, bearing, ts)
	return nil
}

// AddWindSpeed records a wind speed in m/s. It forms a wind vector with a
// bearing reported for the same timestamp.
func (s *Station) AddWindSpeed(v float64, ts time.Time) error {
	return s.policy(s.addWindSpeed(v, ts))
}

// AddWindSpeedKnots records a wind speed given in knots.
func (s *Station) AddWindSpeedKnots(v float64, ts time.Time) error {
	return s.policy(s.addWindSpeed(v*knotsToMS, ts))
}

func (s *Station) addWindSpeed(v float64, ts time.Time) error {
	v, err := s.checkWindSpeed(v, ts)
	if err != nil {
		return err
	}
	s.record(MetricWindSpeed, v, ts)
	s.wind.addSpeed(v, ts)
	return nil
}

// AddWindBearing records a wind bearing in degrees. Negative bearings are
// folded into [0, 360).
func (s *Station) AddWindBearing(v float64, ts time.Time) error {
	return s.policy(s.addWindBearing(v, ts))
}

func (s *Station) addWindBearing(v float64, ts time.Time) error {
	if ts.IsZero() {
		return ErrInvalidTimestamp
	}
	v, err := s.checkBearing(v)
	if err != nil {
		return err
	}
	s.record(MetricWindBearing, v, ts)
	s.wind.addBearing(v, ts)
	return nil
}

func (s *Station) checkWindSpeed(v float64, ts time.Time) (float64, error) {
	if ts.IsZero() {
		return 0, ErrInvalidTimestamp
	}
	v = roundTo(v, s.cfg.StatsPrecision)
	if v < 0 || v > maxWindSpeedMS {
		return 0, outOfRange(MetricWindSpeed, v)
	}
	return v, nil
}

func (s *Station) checkBearing(v float64) (float64, error) {
	v = roundTo(normalizeBearing(v), s.cfg.StatsPrecision)
	if v < 0 || v > 360 {
		return 0, outOfRange(MetricWindBearing, v)
	}
	return v, nil
}

// Apply dispatches a reading to the Add method for its metric. The station
// name is taken from accepted readings only.
func (s *Station) Apply(r Reading) error {
	err := s.apply(r)
	if err == nil {
		s.SetName(r.StationName)
	}
	return s.policy(err)
}

func (s *Station) apply(r Reading) error {
	switch r.Metric {
	case MetricTemperature:
		return s.addTemperature(r.Value, r.Timestamp)
	case MetricHumidity:
		return s.addHumidity(r.Value, r.Timestamp)
	case MetricDewpoint:
		if r.AirTempC == nil {
			return fmt.Errorf("%w: dewpoint without air temperature", ErrMissingAirTemperature)
		}
		return s.addDewpoint(r.Value, *r.AirTempC, r.Timestamp)
	case MetricPressure:
		return s.addBounded(MetricPressure, r.Value, r.Timestamp, minPressureHPa, maxPressureHPa)
	case MetricPrecipitation:
		return s.addPrecipitation(r.Value, r.Timestamp)
	case MetricWind:
		if r.BearingDeg == nil {
			return fmt.Errorf("%w: wind speed without bearing", ErrMissingBearing)
		}
		return s.addWind(r.Value, *r.BearingDeg, r.Timestamp)
	case MetricWindSpeed:
		return s.addWindSpeed(r.Value, r.Timestamp)
	case MetricWindSpeedKnots:
		return s.addWindSpeed(r.Value*knotsToMS, r.Timestamp)
	case MetricWindBearing:
		return s.addWindBearing(r.Value, r.Timestamp)
	case MetricPM25, MetricPM10, MetricOzone, MetricSO2:
		return s.addBounded(r.Metric, r.Value, r.Timestamp, 0, maxAirQuality)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMetric, r.Metric)
	}
}

func outOfRange(metric Metric, v float64) error {
	return fmt.Errorf("%w: %s %g", ErrValueOutOfRange, metric, v)
}

// policy applies the on-error policy to rejected values. Other errors are
// returned unchanged.
func (s *Station) policy(err error) error {
	if err == nil || s.cfg.OnError != OnErrorIgnore {
		return err
	}
	if errors.Is(err, ErrValueOutOfRange) || errors.Is(err, ErrMissingAirTemperature) || errors.Is(err, ErrMissingBearing) {
		s.qa = QAFail
		return nil
	}
	return err
}

// RelativeHumidity derives relative humidity in percent from air temperature
// and dewpoint (°C) using the Magnus approximation. A dewpoint above the air
// temperature is treated as saturated.
func RelativeHumidity(airTemp, dewpoint float64) float64 {
	if dewpoint > airTemp {
		return 100
	}
	return 100 * vaporPressure(dewpoint) / vaporPressure(airTemp)
}

func vaporPressure(t float64) float64 {
	return 6.11 * math.Pow(10, 7.5*t/(237.3+t))
}

// StationInfo identifies a station in a summary.
type StationInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MetricStats summarizes one metric. Mean, Min and Max are nil when Count is 0.
type MetricStats struct {
	Mean  *float64 `json:"mean"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Count int      `json:"count"`
}

// PrecipitationSummary is the precipitation block of a StationSummary.
type PrecipitationSummary struct {
	Total  *float64           `json:"total"`
	ByYear YearMap[YearStats] `json:"by_year"`
}

// TOWYear is one year of a station's TOW summary. CoverageAnalysis is only
// set when the station runs enhanced QA.
type TOWYear struct {
	YearResult
	CoverageAnalysis *CoverageAnalysis `json:"coverage_analysis,omitempty"`
}

// TOWSummary is the time-of-wetness block of a StationSummary.
type TOWSummary struct {
	AnnualTimeOfWetness *float64         `json:"annual_time_of_wetness"`
	ValidYears          int              `json:"valid_years"`
	ByYear              YearMap[TOWYear] `json:"by_year"`
}

// AirSummary groups the per-metric blocks of a StationSummary.
type AirSummary struct {
	TempC           MetricStats          `json:"temp_c"`
	Humidity        MetricStats          `json:"humidity"`
	DewpointC       MetricStats          `json:"dewpoint_c"`
	PressureHPa     MetricStats          `json:"pressure_hpa"`
	PrecipitationMM PrecipitationSummary `json:"precipitation_mm"`
	Wind            WindSummary          `json:"wind"`
	PM25            MetricStats          `json:"pm25"`
	PM10            MetricStats          `json:"pm10"`
	OzonePPB        MetricStats          `json:"ozone_ppb"`
	SO2             MetricStats          `json:"so2"`
	TimeOfWetness   TOWSummary           `json:"time_of_wetness"`
}

// StationSummary is the serializable snapshot of a station.
type StationSummary struct {
	Station     StationInfo `json:"station"`
	QAStatus    QAState     `json:"qa_status"`
	GeneratedAt time.Time   `json:"generated_at"`
	Air         AirSummary  `json:"air"`
}

// Summary derives a snapshot of everything the station has accumulated.
func (s *Station) Summary() StationSummary {
	avg := s.tow.Averages()
	summary := StationSummary{
		Station:     StationInfo{ID: s.id, Name: s.name},
		QAStatus:    s.qa,
		GeneratedAt: clock.Now().UTC(),
		Air: AirSummary{
			TempC:       s.stats(MetricTemperature),
			Humidity:    s.stats(MetricHumidity),
			DewpointC:   s.stats(MetricDewpoint),
			PressureHPa: s.stats(MetricPressure),
			Wind:        s.wind.summary(s.cfg.StatsPrecision),
			PM25:        s.stats(MetricPM25),
			PM10:        s.stats(MetricPM10),
			OzonePPB:    s.stats(MetricOzone),
			SO2:         s.stats(MetricSO2),
			PrecipitationMM: PrecipitationSummary{
				ByYear: s.precip.TotalByYearDetailed(),
			},
			TimeOfWetness: TOWSummary{
				AnnualTimeOfWetness: avg.AnnualTimeOfWetness,
				ValidYears:          avg.ValidYears,
				ByYear:              s.towYears(),
			},
		},
	}
	if total, ok := s.precip.Total(); ok {
		summary.Air.PrecipitationMM.Total = float64Ptr(roundTo(total, s.cfg.StatsPrecision))
	}
	return summary
}

func (s *Station) towYears() YearMap[TOWYear] {
	out := make(YearMap[TOWYear])
	if !s.cfg.EnhancedQA {
		for year, res := range s.tow.Years() {
			out[year] = TOWYear{YearResult: res}
		}
		return out
	}
	for year, res := range s.enhanced.YearsWithCoverage() {
		analysis := res.CoverageAnalysis
		out[year] = TOWYear{YearResult: res.YearResult, CoverageAnalysis: &analysis}
	}
	return out
}

func (s *Station) stats(metric Metric) MetricStats {
	vals := s.values(metric)
	ms := MetricStats{Count: len(vals)}
	if len(vals) == 0 {
		return ms
	}
	p := s.cfg.StatsPrecision
	ms.Mean = float64Ptr(roundTo(stat.Mean(vals, nil), p))
	ms.Min = float64Ptr(roundTo(floats.Min(vals), p))
	ms.Max = float64Ptr(roundTo(floats.Max(vals), p))
	return ms
}
