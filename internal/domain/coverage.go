package domain

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultAdequateThreshold is the overall coverage score (0–100) a year needs
// to count as adequately covered.
const DefaultAdequateThreshold = 75.0

// Season is a fixed northern-hemisphere astronomical season.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
)

type monthDay struct {
	month time.Month
	day   int
}

func (md monthDay) ordinal() int { return int(md.month)*100 + md.day }

// seasonTable lists each season's first and last calendar day. Winter wraps
// the year boundary; its range is handled by seasonOf.
var seasonTable = []struct {
	season Season
	first  monthDay
	last   monthDay
}{
	{SeasonSpring, monthDay{time.March, 20}, monthDay{time.June, 20}},
	{SeasonSummer, monthDay{time.June, 21}, monthDay{time.September, 22}},
	{SeasonFall, monthDay{time.September, 23}, monthDay{time.December, 20}},
	{SeasonWinter, monthDay{time.December, 21}, monthDay{time.March, 19}},
}

// seasonOf maps a calendar day to its season.
func seasonOf(month time.Month, day int) Season {
	md := monthDay{month, day}.ordinal()
	for _, s := range seasonTable {
		lo, hi := s.first.ordinal(), s.last.ordinal()
		if (lo <= hi && md >= lo && md <= hi) || (lo > hi && (md >= lo || md <= hi)) {
			return s.season
		}
	}
	return SeasonWinter
}

// CoverageResult describes how evenly a year's observations are spread.
// Percentages are on a 0–100 scale.
type CoverageResult struct {
	DaysWithData      int            `json:"days_with_data"`
	MonthlyBreakdown  MonthCounts    `json:"monthly_breakdown"`
	SeasonalBreakdown map[Season]int `json:"seasonal_breakdown"`
	MonthlyCoverage   float64        `json:"monthly_coverage"`
	SeasonalCoverage  float64        `json:"seasonal_coverage"`
	DayDensity        float64        `json:"day_density"`
	LargestGapDays    int            `json:"largest_gap_days"`
	OverallScore      float64        `json:"overall_score"`
	AdequateCoverage  bool           `json:"adequate_coverage"`
	YearAnalyzed      int            `json:"year_analyzed"`
}

// YearCoverageAnalyzer scores the temporal distribution of observations
// within a calendar year, independent of how many observations there are.
type YearCoverageAnalyzer struct {
	adequateThreshold float64
}

// NewYearCoverageAnalyzer returns an analyzer that marks a year adequate when
// its overall score reaches threshold.
func NewYearCoverageAnalyzer(threshold float64) *YearCoverageAnalyzer {
	return &YearCoverageAnalyzer{adequateThreshold: threshold}
}

// AdequateThreshold returns the configured threshold.
func (a *YearCoverageAnalyzer) AdequateThreshold() float64 {
	return a.adequateThreshold
}

// Analyze scores the timestamps that fall within year. Timestamps from other
// years are ignored, as are repeated observations on the same day.
func (a *YearCoverageAnalyzer) Analyze(timestamps []time.Time, year int) CoverageResult {
	res := CoverageResult{
		MonthlyBreakdown:  newMonthCounts(),
		SeasonalBreakdown: make(map[Season]int, len(seasonTable)),
		YearAnalyzed:      year,
	}
	for _, s := range seasonTable {
		res.SeasonalBreakdown[s.season] = 0
	}

	// seen is indexed by day-of-year (1-based).
	var seen [367]bool
	for _, ts := range timestamps {
		if ts.Year() != year || seen[ts.YearDay()] {
			continue
		}
		seen[ts.YearDay()] = true
		res.DaysWithData++
		res.MonthlyBreakdown[ts.Month()]++
		res.SeasonalBreakdown[seasonOf(ts.Month(), ts.Day())]++
	}

	if res.DaysWithData == 0 {
		return res
	}

	var monthsWithData int
	for _, n := range res.MonthlyBreakdown {
		if n > 0 {
			monthsWithData++
		}
	}
	res.MonthlyCoverage = 100 * float64(monthsWithData) / 12

	seasonDays := seasonLengths(year)
	fractions := make([]float64, 0, len(seasonTable))
	for _, s := range seasonTable {
		fractions = append(fractions, float64(res.SeasonalBreakdown[s.season])/float64(seasonDays[s.season]))
	}
	res.SeasonalCoverage = 100 * stat.Mean(fractions, nil)

	res.LargestGapDays = largestGap(seen[:])
	res.DayDensity = 100 * float64(res.DaysWithData) / float64(DaysInYear(year))
	res.OverallScore = stat.Mean([]float64{res.SeasonalCoverage, res.MonthlyCoverage, res.DayDensity}, nil)
	res.AdequateCoverage = res.OverallScore >= a.adequateThreshold
	return res
}

// seasonLengths counts the calendar days of year that fall in each season.
// Leap years give winter 90 days.
func seasonLengths(year int) map[Season]int {
	out := make(map[Season]int, len(seasonTable))
	day := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for day.Year() == year {
		out[seasonOf(day.Month(), day.Day())]++
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// largestGap returns the widest step between consecutive observed days;
// adjacent days are a gap of 1. Fewer than two observed days yields 0.
func largestGap(seen []bool) int {
	prev, widest := 0, 0
	for day := 1; day < len(seen); day++ {
		if !seen[day] {
			continue
		}
		if prev > 0 && day-prev > widest {
			widest = day - prev
		}
		prev = day
	}
	return widest
}
