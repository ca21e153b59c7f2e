package domain

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// wetTemperatureC and wetHumidityPct are exclusive lower bounds: an hour
	// is wet when mean temperature > 0 °C and mean RH > 80 %.
	wetTemperatureC = 0.0
	wetHumidityPct  = 80.0

	// standardYearHours is the 365-day year that annualized figures refer to.
	standardYearHours = 8760

	DefaultPrecision          = 6
	DefaultQADensityThreshold = 0.75
)

// TOWConfig tunes a TOWCalculator.
type TOWConfig struct {
	// Precision is the number of decimal digits kept in PercentValid.
	Precision int
	// QADensityThreshold is the minimum PercentValid for a year to pass.
	QADensityThreshold float64
}

// DefaultTOWConfig returns precision 6 and a 0.75 density threshold.
func DefaultTOWConfig() TOWConfig {
	return TOWConfig{Precision: DefaultPrecision, QADensityThreshold: DefaultQADensityThreshold}
}

// YearResult is the time-of-wetness result for one calendar year.
// TimeOfWetness is nil whenever QAState is QAFail.
type YearResult struct {
	MaxHours            int      `json:"max_hours"`
	TotalHours          int      `json:"total_hours"`
	TimeOfWetnessActual int      `json:"time_of_wetness_actual"`
	TimeOfWetness       *float64 `json:"time_of_wetness"`
	PercentValid        float64  `json:"percent_valid"`
	QAState             QAState  `json:"qa_state"`
}

// Averages is the multi-year annualized TOW over years that passed QA.
// AnnualTimeOfWetness is nil when no year passed.
type Averages struct {
	ValidYears          int      `json:"valid_years"`
	AnnualTimeOfWetness *float64 `json:"annual_time_of_wetness"`
}

// TOWCalculator counts hours per calendar year in which the surface is wet,
// the input to ISO 9223 style corrosion-rate estimates.
type TOWCalculator struct {
	cfg   TOWConfig
	store *YearBucketStore
}

// NewTOWCalculator returns an empty calculator.
func NewTOWCalculator(cfg TOWConfig) *TOWCalculator {
	return &TOWCalculator{cfg: cfg, store: NewYearBucketStore()}
}

// AddTemperature records a temperature sample in °C.
func (c *TOWCalculator) AddTemperature(v float64, ts time.Time) error {
	return c.store.AddTemperature(v, ts)
}

// AddHumidity records a relative humidity sample in percent.
func (c *TOWCalculator) AddHumidity(v float64, ts time.Time) error {
	return c.store.AddHumidity(v, ts)
}

// Years derives a YearResult for every touched year. It reads the
// accumulated samples without modifying them.
func (c *TOWCalculator) Years() YearMap[YearResult] {
	out := make(YearMap[YearResult], len(c.store.years))
	for year, b := range c.store.years {
		out[year] = c.evaluate(b)
	}
	return out
}

func (c *TOWCalculator) evaluate(b *yearBucket) YearResult {
	maxHours := len(b.slots)

	var total, wet int
	for i := range b.slots {
		slot := &b.slots[i]
		if len(slot.temp) == 0 || len(slot.rh) == 0 {
			continue
		}
		total++
		if stat.Mean(slot.temp, nil) > wetTemperatureC && stat.Mean(slot.rh, nil) > wetHumidityPct {
			wet++
		}
	}

	res := YearResult{
		MaxHours:            maxHours,
		TotalHours:          total,
		TimeOfWetnessActual: wet,
		PercentValid:        roundTo(float64(total)/float64(maxHours), c.cfg.Precision),
		QAState:             QAFail,
	}
	if res.PercentValid >= c.cfg.QADensityThreshold && total > 0 {
		res.QAState = QAPass
		res.TimeOfWetness = float64Ptr(projectTOW(total, maxHours, wet))
	}
	return res
}

// projectTOW scales the observed wet hours to the full length of the year.
func projectTOW(hoursWithData, maxHours, wetHours int) float64 {
	return roundTo(float64(wetHours)/float64(hoursWithData)*float64(maxHours), 2)
}

// Averages pools every passing year: Σ wet hours / Σ observed hours, scaled
// to a 8760-hour year. Failing years are excluded entirely.
func (c *TOWCalculator) Averages() Averages {
	var avg Averages
	var wet, total int
	for _, r := range c.Years() {
		if r.QAState != QAPass {
			continue
		}
		avg.ValidYears++
		wet += r.TimeOfWetnessActual
		total += r.TotalHours
	}
	if avg.ValidYears > 0 && total > 0 {
		avg.AnnualTimeOfWetness = float64Ptr(roundTo(float64(wet)/float64(total)*standardYearHours, 0))
	}
	return avg
}

// Timestamps returns the start of every hour of year holding at least one
// sample of metric, which must be temperature or humidity.
func (c *TOWCalculator) Timestamps(year int, metric Metric) ([]time.Time, error) {
	if err := coverageMetric(metric); err != nil {
		return nil, err
	}
	return c.store.hoursWithSamples(year, metric), nil
}

// Annualize scales towHours observed over validHours to a 8760-hour year,
// truncating toward zero. It returns 0 when validHours is 0.
func Annualize(validHours, towHours int) int {
	if validHours == 0 {
		return 0
	}
	return int(float64(standardYearHours) * float64(towHours) / float64(validHours))
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
