// Command genmock writes a deterministic synthetic sensor-reading fixture for
// one station as JSON lines, one raw reading record per line, ready to be
// produced onto the source topic. Every record is run through the domain
// package before it is written, and the resulting per-year QA verdicts are
// printed so test assertions can be updated.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/pier_2022_2023.jsonl \
//	  -station pier -from-year 2022 -years 2 -profile outage
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Profiles shape which hours carry data.
const (
	profileFull   = "full"
	profileSparse = "sparse"
	profileOutage = "outage"
)

type options struct {
	out       string
	stationID string
	name      string
	fromYear  int
	years     int
	profile   string
	gapStart  int
	gapDays   int
	dewpoint  bool
	wind      bool
	seed      uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var o options
	flag.StringVar(&o.out, "out", "", "output path for the JSON lines fixture")
	flag.StringVar(&o.stationID, "station", "mock-001", "station id")
	flag.StringVar(&o.name, "name", "Mock Station", "station name")
	flag.IntVar(&o.fromYear, "from-year", 2022, "first calendar year")
	flag.IntVar(&o.years, "years", 1, "number of calendar years")
	flag.StringVar(&o.profile, "profile", profileFull, "hour selection: full, sparse (every 6th hour) or outage")
	flag.IntVar(&o.gapStart, "gap-start", 180, "outage profile: first day of year without data")
	flag.IntVar(&o.gapDays, "gap-days", 60, "outage profile: length of the outage in days")
	flag.BoolVar(&o.dewpoint, "dewpoint", false, "emit dewpoint with air temperature instead of humidity")
	flag.BoolVar(&o.wind, "wind", false, "emit paired wind speed and bearing readings")
	flag.Uint64Var(&o.seed, "seed", 1, "random seed")
	flag.Parse()

	if o.out == "" || o.years < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flag -out or invalid -years")
	}
	switch o.profile {
	case profileFull, profileSparse, profileOutage:
	default:
		return fmt.Errorf("unknown profile %q", o.profile)
	}

	// Set a fixed clock for reproducible generated_at timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(o.fromYear+o.years, time.January, 1, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	records := generate(o)
	log.Printf("%s: %d records (%s profile)", o.stationID, len(records), o.profile)

	station, err := replay(o.stationID, records)
	if err != nil {
		return err
	}

	if err := writeJSONLines(o.out, records); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", o.out)

	printStats(records, station)
	return nil
}

// generate models a temperate coastal station: a seasonal and a diurnal
// temperature cycle, humidity falling as temperature rises, and occasional
// showers.
func generate(o options) []domain.RawReadingRecord {
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	start := time.Date(o.fromYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(o.fromYear+o.years, time.January, 1, 0, 0, 0, 0, time.UTC)

	var out []domain.RawReadingRecord
	for i, ts := 0, start; ts.Before(end); i, ts = i+1, ts.Add(time.Hour) {
		if !keepHour(o, i, ts) {
			continue
		}

		season := math.Sin(2 * math.Pi * float64(ts.YearDay()-105) / 365)
		diurnal := math.Sin(2 * math.Pi * float64(ts.Hour()-9) / 24)
		temp := round1(10 + 12*season + 4*diurnal + rng.NormFloat64()*1.5)
		rh := math.Round(clamp(78-2*(temp-10)+rng.NormFloat64()*8, 5, 100))
		pressure := round1(1013 + rng.NormFloat64()*6)

		var precip float64
		if rng.Float64() < 0.04 {
			precip = round1(rng.ExpFloat64() * 1.2)
		}

		out = append(out, o.record(domain.MetricTemperature, temp, nil, ts))
		if o.dewpoint {
			out = append(out, o.record(domain.MetricDewpoint, round1(dewpointFrom(temp, rh)), &temp, ts))
		} else {
			out = append(out, o.record(domain.MetricHumidity, rh, nil, ts))
		}
		out = append(out,
			o.record(domain.MetricPressure, pressure, nil, ts),
			o.record(domain.MetricPrecipitation, precip, nil, ts),
		)
		if o.wind {
			// Prevailing westerlies with gusty afternoons.
			speed := round1(math.Max(0, 3+2*diurnal+rng.NormFloat64()*1.5))
			bearing := math.Round(math.Mod(270+rng.NormFloat64()*40+360, 360))
			rec := o.record(domain.MetricWind, speed, nil, ts)
			rec.BearingDeg = &bearing
			out = append(out, rec)
		}
	}
	return out
}

func keepHour(o options, i int, ts time.Time) bool {
	switch o.profile {
	case profileSparse:
		return i%6 == 0
	case profileOutage:
		day := ts.YearDay()
		return day < o.gapStart || day >= o.gapStart+o.gapDays
	default:
		return true
	}
}

func (o options) record(metric domain.Metric, v float64, airTemp *float64, ts time.Time) domain.RawReadingRecord {
	rec := domain.RawReadingRecord{
		StationID:   o.stationID,
		StationName: o.name,
		Metric:      string(metric),
		Value:       &v,
		Timestamp:   ts.Format(time.RFC3339),
	}
	if airTemp != nil {
		t := *airTemp
		rec.AirTempC = &t
	}
	return rec
}

// dewpointFrom inverts the Magnus approximation used by the domain package.
func dewpointFrom(temp, rh float64) float64 {
	gamma := math.Log(rh/100) + 17.27*temp/(237.3+temp)
	return 237.3 * gamma / (17.27 - gamma)
}

// replay runs every record through the same decoding and accumulation the
// pipeline uses.
func replay(stationID string, records []domain.RawReadingRecord) (*domain.Station, error) {
	station := domain.NewStation(stationID, domain.DefaultStationConfig())
	for i := range records {
		reading, err := records[i].Reading()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if err := station.Apply(reading); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return station, nil
}

func writeJSONLines(path string, records []domain.RawReadingRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func printStats(records []domain.RawReadingRecord, station *domain.Station) {
	summary := station.Summary()
	counts := map[string]int{}
	for i := range records {
		counts[records[i].Metric]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(records))
	fmt.Printf("By metric: temperature=%d, humidity=%d, dewpoint=%d, pressure=%d, precipitation=%d, wind=%d\n",
		counts["temperature"], counts["humidity"], counts["dewpoint"], counts["pressure"], counts["precipitation"], counts["wind"])

	months, _ := station.Months(domain.MetricTemperature)
	fmt.Printf("Temperature readings by month: %v (full year: %t)\n", monthList(months), months.Full())

	air := summary.Air
	if air.TempC.Mean != nil {
		fmt.Printf("Temperature: mean=%.2f min=%.2f max=%.2f\n", *air.TempC.Mean, *air.TempC.Min, *air.TempC.Max)
	}
	if air.PrecipitationMM.Total != nil {
		fmt.Printf("Precipitation total: %.2f mm\n", *air.PrecipitationMM.Total)
	}
	if w := air.Wind; w.Speed.VectorMean != nil {
		fmt.Printf("Wind vector mean: %.2f m/s from %.0f° (%s)\n", *w.Speed.VectorMean, *w.Bearing.VectorMean, *w.Bearing.VectorString)
	}

	fmt.Println("\nTime of wetness by year:")
	tow := air.TimeOfWetness
	for _, year := range tow.ByYear.Years() {
		y := tow.ByYear[year]
		verdict := y.QAState.String()
		if y.CoverageAnalysis != nil {
			verdict = y.CoverageAnalysis.EnhancedQAState.String()
		}
		projected := "-"
		if y.TimeOfWetness != nil {
			projected = fmt.Sprintf("%.2f", *y.TimeOfWetness)
		}
		fmt.Printf("  %d: hours=%d/%d wet=%d percent_valid=%.6f projected=%s verdict=%s\n",
			year, y.TotalHours, y.MaxHours, y.TimeOfWetnessActual, y.PercentValid, projected, verdict)
	}
	if tow.AnnualTimeOfWetness != nil {
		fmt.Printf("Annual TOW over %d valid years: %.0f\n", tow.ValidYears, *tow.AnnualTimeOfWetness)
	} else {
		fmt.Println("Annual TOW: no valid years")
	}
}

func monthList(m domain.MonthCounts) []int {
	out := make([]int, 0, 12)
	for month := time.January; month <= time.December; month++ {
		out = append(out, m[month])
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
