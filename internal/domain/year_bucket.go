package domain

import (
	"slices"
	"time"
)

// hourSlot holds the raw samples that fell into one hour of a year.
type hourSlot struct {
	temp []float64
	rh   []float64
}

// yearBucket is one calendar year of hour slots, indexed by hour-of-year.
// len(slots) == HoursInYear(year) from the moment the bucket exists.
type yearBucket struct {
	year  int
	slots []hourSlot
}

func newYearBucket(year int) *yearBucket {
	return &yearBucket{year: year, slots: make([]hourSlot, HoursInYear(year))}
}

// YearBucketStore partitions per-hour temperature and humidity samples by
// calendar year. The first sample of a year allocates the whole year so every
// hour of every touched year is addressable.
type YearBucketStore struct {
	years map[int]*yearBucket
}

// NewYearBucketStore returns an empty store.
func NewYearBucketStore() *YearBucketStore {
	return &YearBucketStore{years: make(map[int]*yearBucket)}
}

// AddTemperature appends a temperature sample to the hour containing ts.
func (s *YearBucketStore) AddTemperature(v float64, ts time.Time) error {
	slot, err := s.slot(ts)
	if err != nil {
		return err
	}
	slot.temp = append(slot.temp, v)
	return nil
}

// AddHumidity appends a relative humidity sample to the hour containing ts.
func (s *YearBucketStore) AddHumidity(v float64, ts time.Time) error {
	slot, err := s.slot(ts)
	if err != nil {
		return err
	}
	slot.rh = append(slot.rh, v)
	return nil
}

func (s *YearBucketStore) slot(ts time.Time) (*hourSlot, error) {
	if ts.IsZero() {
		return nil, ErrInvalidTimestamp
	}
	b := s.bucket(ts.Year())
	return &b.slots[hourOfYear(ts)], nil
}

func (s *YearBucketStore) bucket(year int) *yearBucket {
	b, ok := s.years[year]
	if !ok {
		b = newYearBucket(year)
		s.years[year] = b
	}
	return b
}

// Years returns the touched years in ascending order.
func (s *YearBucketStore) Years() []int {
	years := make([]int, 0, len(s.years))
	for y := range s.years {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// Slots returns the number of hour slots allocated for year, 0 if untouched.
func (s *YearBucketStore) Slots(year int) int {
	b, ok := s.years[year]
	if !ok {
		return 0
	}
	return len(b.slots)
}

// hoursWithSamples lists the start of every hour of year that has at least one
// sample of the given metric.
func (s *YearBucketStore) hoursWithSamples(year int, metric Metric) []time.Time {
	b, ok := s.years[year]
	if !ok {
		return nil
	}
	var out []time.Time
	for i := range b.slots {
		samples := b.slots[i].temp
		if metric == MetricHumidity {
			samples = b.slots[i].rh
		}
		if len(samples) > 0 {
			out = append(out, hourAt(year, i))
		}
	}
	return out
}
