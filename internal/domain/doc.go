// Package domain computes time of wetness (TOW) and its data-quality verdicts
// for weather station records.
//
// # Time of wetness
//
// An hour is wet when the mean of its temperature samples is above 0 °C and
// the mean of its relative humidity samples is above 80 %. Hours are
// calendar hours: samples are bucketed by the wall-clock hour of their
// timestamp, so callers that want UTC semantics pass UTC timestamps.
//
// Each calendar year is allocated in full on first touch (8760 hours, or
// 8784 in leap years). For a year:
//
//	percent_valid = round(hours_with_both_metrics / hours_in_year, precision)
//	qa_state      = PASS if percent_valid >= threshold, else FAIL
//	projected     = round(wet_hours / hours_with_both_metrics * hours_in_year, 2)
//
// The projection is only reported for passing years. Multi-year averages pool
// the passing years and scale to a 365-day year:
//
//	annual = round(Σ wet_hours / Σ hours_with_both_metrics * 8760, 0)
//
// # Coverage
//
// Density alone cannot tell a year observed evenly from one observed
// heavily for three months. [YearCoverageAnalyzer] scores the distinct days
// with data against the calendar: months touched, fraction of each
// astronomical season covered (fixed northern-hemisphere dates, winter
// wrapping the year boundary) and day density. Their mean is the overall
// score. [EnhancedQA] reports FAIL_DENSITY before FAIL_COVERAGE.
//
// # Stations
//
// [Station] is the per-station accumulator used by the service. It range
// checks incoming values, derives humidity from dewpoint, keeps hourly
// precipitation in an [HourlyGrid], pairs wind speed and bearing into
// vectors, and renders a [StationSummary] whose year-keyed maps serialize
// with string keys in ascending year order.
package domain
