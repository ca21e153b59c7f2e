package domain

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// HourlyGrid accumulates one hourly metric (e.g. precipitation) over an
// irregular series of timestamps.
//
// Every hour between the earliest and latest inserted hour has a cell; hours
// never written hold the grid's default value. Cells are stored densely,
// indexed by elapsed hours since the grid start. The start is the wall-clock
// hour of the first timestamp added, in its location; later timestamps are
// placed by absolute time, so the two 01:00 hours of a DST fall-back land in
// separate cells.
//
// A grid is not safe for concurrent writers.
type HourlyGrid struct {
	loc      *time.Location
	start    time.Time
	cells    []gridCell
	fill     gridCell
	hasValue bool
}

type gridCell struct {
	value   float64
	present bool
}

// YearStats is the per-year rollup returned by TotalByYearDetailed.
// Mean, Min and Max are nil when the year holds no present value.
type YearStats struct {
	Total float64  `json:"total"`
	Mean  *float64 `json:"mean"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Count int      `json:"count"`
}

// NewHourlyGrid returns a grid whose densified hours are absent.
func NewHourlyGrid() *HourlyGrid {
	return &HourlyGrid{}
}

// NewHourlyGridWithDefault returns a grid whose densified hours hold v.
func NewHourlyGridWithDefault(v float64) *HourlyGrid {
	return &HourlyGrid{fill: gridCell{value: v, present: true}}
}

// Add records v for the hour containing ts. A later write to the same hour
// replaces the earlier one.
func (g *HourlyGrid) Add(ts time.Time, v float64) error {
	return g.set(ts, gridCell{value: v, present: true})
}

// AddMissing marks the hour containing ts as absent, extending the grid range
// if needed.
func (g *HourlyGrid) AddMissing(ts time.Time) error {
	return g.set(ts, gridCell{})
}

func (g *HourlyGrid) set(ts time.Time, c gridCell) error {
	if ts.IsZero() {
		return ErrInvalidTimestamp
	}
	if len(g.cells) == 0 {
		g.loc = ts.Location()
		g.start = truncateToHour(ts)
		g.cells = []gridCell{g.fill}
	}

	idx := hoursSince(g.start, ts)
	if idx < 0 {
		grown := make([]gridCell, -idx, -idx+len(g.cells))
		for i := range grown {
			grown[i] = g.fill
		}
		g.cells = append(grown, g.cells...)
		g.start = g.start.Add(time.Duration(idx) * time.Hour)
		idx = 0
	}

	for len(g.cells) <= idx {
		g.cells = append(g.cells, g.fill)
	}
	g.cells[idx] = c

	if c.present || g.fill.present {
		g.hasValue = true
	}
	return nil
}

// Start returns the earliest hour in the grid.
func (g *HourlyGrid) Start() (time.Time, bool) {
	if len(g.cells) == 0 {
		return time.Time{}, false
	}
	return g.start, true
}

// End returns the latest hour in the grid.
func (g *HourlyGrid) End() (time.Time, bool) {
	if len(g.cells) == 0 {
		return time.Time{}, false
	}
	return g.hourAt(len(g.cells) - 1), true
}

// Hours returns the number of hour cells, present or not.
func (g *HourlyGrid) Hours() int {
	return len(g.cells)
}

// Count returns the number of hours holding a value.
func (g *HourlyGrid) Count() int {
	return len(g.values(time.Time{}, time.Time{}, false))
}

// CountBetween returns the number of hours in [start, end] holding a value.
func (g *HourlyGrid) CountBetween(start, end time.Time) int {
	return len(g.values(start, end, true))
}

// Total sums every present value. ok is false when the grid has never held a
// value.
func (g *HourlyGrid) Total() (total float64, ok bool) {
	return g.total(time.Time{}, time.Time{}, false)
}

// TotalBetween sums the present values in the inclusive hour range.
func (g *HourlyGrid) TotalBetween(start, end time.Time) (float64, bool) {
	return g.total(start, end, true)
}

// Mean averages the present values; absent hours are not counted.
func (g *HourlyGrid) Mean() (float64, bool) {
	return g.reduce(time.Time{}, time.Time{}, false, meanOf)
}

// MeanBetween averages the present values in the inclusive hour range.
func (g *HourlyGrid) MeanBetween(start, end time.Time) (float64, bool) {
	return g.reduce(start, end, true, meanOf)
}

// Min returns the smallest present value.
func (g *HourlyGrid) Min() (float64, bool) {
	return g.reduce(time.Time{}, time.Time{}, false, floats.Min)
}

// MinBetween returns the smallest present value in the inclusive hour range.
func (g *HourlyGrid) MinBetween(start, end time.Time) (float64, bool) {
	return g.reduce(start, end, true, floats.Min)
}

// Max returns the largest present value.
func (g *HourlyGrid) Max() (float64, bool) {
	return g.reduce(time.Time{}, time.Time{}, false, floats.Max)
}

// MaxBetween returns the largest present value in the inclusive hour range.
func (g *HourlyGrid) MaxBetween(start, end time.Time) (float64, bool) {
	return g.reduce(start, end, true, floats.Max)
}

// TotalByYear sums present values per calendar year of the hour key.
func (g *HourlyGrid) TotalByYear() YearMap[float64] {
	out := make(YearMap[float64])
	for i, c := range g.cells {
		year := g.hourAt(i).Year()
		if _, seen := out[year]; !seen {
			out[year] = 0
		}
		if c.present {
			out[year] += c.value
		}
	}
	return out
}

// TotalByYearDetailed returns total, mean, min, max and count for every
// calendar year spanned by the grid. It returns nil for an empty grid.
func (g *HourlyGrid) TotalByYearDetailed() YearMap[YearStats] {
	first, ok := g.Start()
	if !ok {
		return nil
	}
	last, _ := g.End()

	out := make(YearMap[YearStats])
	for year := first.Year(); year <= last.Year(); year++ {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, g.loc)
		to := time.Date(year, time.December, 31, 23, 0, 0, 0, g.loc)

		vals := g.values(from, to, true)
		stats := YearStats{Count: len(vals)}
		if len(vals) > 0 {
			stats.Total = floats.Sum(vals)
			stats.Mean = float64Ptr(meanOf(vals))
			stats.Min = float64Ptr(floats.Min(vals))
			stats.Max = float64Ptr(floats.Max(vals))
		}
		out[year] = stats
	}
	return out
}

func (g *HourlyGrid) total(start, end time.Time, bounded bool) (float64, bool) {
	if !g.hasValue {
		return 0, false
	}
	return floats.Sum(g.values(start, end, bounded)), true
}

func (g *HourlyGrid) reduce(start, end time.Time, bounded bool, fn func([]float64) float64) (float64, bool) {
	if !g.hasValue {
		return 0, false
	}
	vals := g.values(start, end, bounded)
	if len(vals) == 0 {
		return 0, false
	}
	return fn(vals), true
}

// values collects present cell values, optionally restricted to [start, end].
func (g *HourlyGrid) values(start, end time.Time, bounded bool) []float64 {
	out := make([]float64, 0, len(g.cells))
	for i, c := range g.cells {
		if !c.present {
			continue
		}
		if bounded {
			h := g.hourAt(i)
			if h.Before(start) || h.After(end) {
				continue
			}
		}
		out = append(out, c.value)
	}
	return out
}

// hoursSince returns the whole hours elapsed from start to ts, rounded down.
func hoursSince(start, ts time.Time) int {
	d := ts.Sub(start)
	n := int(d / time.Hour)
	if d%time.Hour < 0 {
		n--
	}
	return n
}

func (g *HourlyGrid) hourAt(i int) time.Time {
	return g.start.Add(time.Duration(i) * time.Hour).In(g.loc)
}

func meanOf(vals []float64) float64 {
	return stat.Mean(vals, nil)
}

func float64Ptr(v float64) *float64 {
	return &v
}
