// Command validate performs end-to-end integrity checks on a JSON lines
// reading fixture such as the ones genmock writes. It decodes every record
// the way the pipeline does, accumulates the readings per station, checks the
// time-of-wetness and coverage invariants of every station year, and verifies
// that station summaries survive a JSON round trip.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -fixture data/mock/pier_2022_2023.jsonl \
//	  -expect 2022=PASS,2023=FAIL_DENSITY
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// line is one fixture line with its 1-based position.
type line struct {
	num  int
	data []byte
}

func main() {
	fixture := flag.String("fixture", "", "path to JSON lines reading fixture")
	expect := flag.String("expect", "", "expected verdict per year, e.g. 2022=PASS,2023=FAIL_DENSITY")
	flag.Parse()

	if *fixture == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixture, *expect); code != 0 {
		os.Exit(code)
	}
}

func run(fixturePath, expectSpec string) int {
	// Set a fixed clock so summaries compare equal across runs.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.January, 1, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Println("=== Reading Fixture Validation ===")
	fmt.Println()

	expected, err := parseExpect(expectSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse -expect: %v\n", err)
		return 1
	}

	lines, err := loadLines(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	cfg := domain.DefaultStationConfig()
	decode, readings := validateDecoding(lines)
	accumulate, stations := validateAccumulation(readings, cfg)

	phases := []*phase{
		decode,
		accumulate,
		validateYearInvariants(stations, cfg),
		validateSerialization(stations),
	}
	if len(expected) > 0 {
		phases = append(phases, validateExpectations(stations, expected))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d lines, %d readings, %d stations\n", len(lines), len(readings), len(stations))
	printYears(stations)

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadLines(path string) ([]line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []line
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		lines = append(lines, line{num: n, data: bytes.Clone(data)})
	}
	return lines, sc.Err()
}

func parseExpect(raw string) (map[int]domain.EnhancedQAState, error) {
	out := map[int]domain.EnhancedQAState{}
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		yearStr, stateStr, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("expected YEAR=STATE, got %q", pair)
		}
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q: %w", yearStr, err)
		}
		var state domain.EnhancedQAState
		if err := state.UnmarshalText([]byte(stateStr)); err != nil {
			return nil, err
		}
		out[year] = state
	}
	return out, nil
}

// ── Phase 1: Decoding ──
// Every line must decode and validate exactly as the pipeline transformer does.

func validateDecoding(lines []line) (*phase, []domain.Reading) {
	p := &phase{name: "Phase 1: Record Decoding"}
	readings := make([]domain.Reading, 0, len(lines))
	for _, l := range lines {
		r, err := domain.ParseRawEvent(domain.RawEvent{Value: l.data})
		if err != nil {
			p.errorf("line %d: %v", l.num, err)
			continue
		}
		readings = append(readings, r)
	}
	return p, readings
}

// ── Phase 2: Accumulation ──
// Every decoded reading must be accepted by its station under the raise policy.

func validateAccumulation(readings []domain.Reading, cfg domain.StationConfig) (*phase, map[string]*domain.Station) {
	p := &phase{name: "Phase 2: Station Accumulation"}
	stations := map[string]*domain.Station{}
	for i, r := range readings {
		st, ok := stations[r.StationID]
		if !ok {
			st = domain.NewStation(r.StationID, cfg)
			stations[r.StationID] = st
		}
		if err := st.Apply(r); err != nil {
			p.errorf("reading %d (%s %s %s): %v", i, r.StationID, r.Metric, r.Timestamp.Format(time.RFC3339), err)
		}
	}
	return p, stations
}

// ── Phase 3: Year invariants ──
// Recomputes each year's verdict from its raw counts.

func validateYearInvariants(stations map[string]*domain.Station, cfg domain.StationConfig) *phase {
	p := &phase{name: "Phase 3: TOW and Coverage Invariants"}

	for _, id := range sortedIDs(stations) {
		tow := stations[id].Summary().Air.TimeOfWetness
		var wet, total, valid int

		for _, year := range tow.ByYear.Years() {
			y := tow.ByYear[year]
			where := fmt.Sprintf("%s %d", id, year)

			if y.MaxHours != domain.HoursInYear(year) {
				p.errorf("%s: max_hours=%d, want %d", where, y.MaxHours, domain.HoursInYear(year))
			}
			if y.TimeOfWetnessActual > y.TotalHours || y.TotalHours > y.MaxHours {
				p.errorf("%s: wet=%d total=%d max=%d out of order", where, y.TimeOfWetnessActual, y.TotalHours, y.MaxHours)
			}

			ratio := float64(y.TotalHours) / float64(y.MaxHours)
			if math.Abs(ratio-y.PercentValid) > math.Pow(10, -float64(cfg.TOW.Precision)) {
				p.errorf("%s: percent_valid=%v, counts give %v", where, y.PercentValid, ratio)
			}

			pass := y.PercentValid >= cfg.TOW.QADensityThreshold && y.TotalHours > 0
			if pass != (y.QAState == domain.QAPass) {
				p.errorf("%s: qa_state=%s disagrees with percent_valid=%v", where, y.QAState, y.PercentValid)
			}
			if (y.TimeOfWetness != nil) != pass {
				p.errorf("%s: projected TOW present=%t with qa_state=%s", where, y.TimeOfWetness != nil, y.QAState)
			}
			if pass {
				valid++
				wet += y.TimeOfWetnessActual
				total += y.TotalHours
			}

			if y.CoverageAnalysis != nil {
				checkCoverage(p, where, y)
			}
		}

		if tow.ValidYears != valid {
			p.errorf("%s: valid_years=%d, want %d", id, tow.ValidYears, valid)
		}
		switch {
		case valid == 0 && tow.AnnualTimeOfWetness != nil:
			p.errorf("%s: annual TOW set without valid years", id)
		case valid > 0 && tow.AnnualTimeOfWetness == nil:
			p.errorf("%s: annual TOW missing with %d valid years", id, valid)
		case valid > 0:
			want := math.Round(float64(wet) / float64(total) * 8760)
			if *tow.AnnualTimeOfWetness != want {
				p.errorf("%s: annual TOW=%v, want %v", id, *tow.AnnualTimeOfWetness, want)
			}
		}
	}
	return p
}

func checkCoverage(p *phase, where string, y domain.TOWYear) {
	ca := y.CoverageAnalysis
	for _, c := range []struct {
		metric string
		res    domain.CoverageResult
	}{{"temperature", ca.Temperature}, {"humidity", ca.Humidity}} {
		if c.res.OverallScore < 0 || c.res.OverallScore > 100 {
			p.errorf("%s %s: overall_score=%v outside [0, 100]", where, c.metric, c.res.OverallScore)
		}
		if c.res.DaysWithData > domain.DaysInYear(c.res.YearAnalyzed) {
			p.errorf("%s %s: days_with_data=%d exceeds year length", where, c.metric, c.res.DaysWithData)
		}
	}

	var want domain.EnhancedQAState
	switch {
	case y.QAState != domain.QAPass:
		want = domain.EnhancedFailDensity
	case !ca.Temperature.AdequateCoverage || !ca.Humidity.AdequateCoverage:
		want = domain.EnhancedFailCoverage
	default:
		want = domain.EnhancedPass
	}
	if ca.EnhancedQAState != want {
		p.errorf("%s: enhanced_qa_state=%s, want %s", where, ca.EnhancedQAState, want)
	}
}

// ── Phase 4: Serialization ──
// Summaries must round-trip through JSON with year keys in ascending order.

func validateSerialization(stations map[string]*domain.Station) *phase {
	p := &phase{name: "Phase 4: Summary Serialization"}

	for _, id := range sortedIDs(stations) {
		summary := stations[id].Summary()
		data, err := json.Marshal(summary)
		if err != nil {
			p.errorf("%s: marshal: %v", id, err)
			continue
		}

		var decoded domain.StationSummary
		if err := json.Unmarshal(data, &decoded); err != nil {
			p.errorf("%s: unmarshal: %v", id, err)
			continue
		}
		if diff := cmp.Diff(summary, decoded); diff != "" {
			p.errorf("%s: round trip mismatch (-want +got):\n%s", id, diff)
		}

		byYear, err := json.Marshal(summary.Air.TimeOfWetness.ByYear)
		if err != nil {
			p.errorf("%s: marshal by_year: %v", id, err)
			continue
		}
		var last int
		for _, year := range summary.Air.TimeOfWetness.ByYear.Years() {
			key := []byte(`"` + strconv.Itoa(year) + `":`)
			pos := bytes.Index(byYear, key)
			if pos < 0 {
				p.errorf("%s: year %d missing from JSON", id, year)
				continue
			}
			if pos < last {
				p.errorf("%s: year %d serialized out of order", id, year)
			}
			last = pos
		}
	}
	return p
}

// ── Phase 5: Expectations ──

func validateExpectations(stations map[string]*domain.Station, expected map[int]domain.EnhancedQAState) *phase {
	p := &phase{name: "Phase 5: Expected Year Verdicts"}

	for _, id := range sortedIDs(stations) {
		byYear := stations[id].Summary().Air.TimeOfWetness.ByYear
		for year, want := range expected {
			y, ok := byYear[year]
			if !ok {
				p.errorf("%s: no data for %d", id, year)
				continue
			}
			if got := verdict(y); got != want.String() {
				p.errorf("%s %d: verdict=%s, want %s", id, year, got, want)
			}
		}
	}
	return p
}

func printYears(stations map[string]*domain.Station) {
	for _, id := range sortedIDs(stations) {
		tow := stations[id].Summary().Air.TimeOfWetness
		fmt.Printf("\n%s:\n", id)
		for _, year := range tow.ByYear.Years() {
			y := tow.ByYear[year]
			fmt.Printf("  %d  percent_valid=%.6f  wet=%d/%d  verdict=%s\n",
				year, y.PercentValid, y.TimeOfWetnessActual, y.TotalHours, verdict(y))
		}
	}
}

func verdict(y domain.TOWYear) string {
	if y.CoverageAnalysis != nil {
		return y.CoverageAnalysis.EnhancedQAState.String()
	}
	return y.QAState.String()
}

func sortedIDs(stations map[string]*domain.Station) []string {
	ids := make([]string, 0, len(stations))
	for id := range stations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
