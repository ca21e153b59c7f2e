package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// MonthCounts counts observations per calendar month. On the wire the keys
// are month numbers ("1" to "12"), emitted January first.
type MonthCounts map[time.Month]int

func newMonthCounts() MonthCounts {
	out := make(MonthCounts, 12)
	for m := time.January; m <= time.December; m++ {
		out[m] = 0
	}
	return out
}

// Full reports whether every calendar month has at least one observation.
func (m MonthCounts) Full() bool {
	for month := time.January; month <= time.December; month++ {
		if m[month] == 0 {
			return false
		}
	}
	return true
}

// MarshalJSON writes the counts with month keys in calendar order.
func (m MonthCounts) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	keys := make([]int, 0, len(m))
	for month := range m {
		keys = append(keys, int(month))
	}
	slices.Sort(keys)
	return marshalIntKeyed(keys, func(k int) any { return m[time.Month(k)] })
}

// UnmarshalJSON reads month-number keys back into time.Month.
func (m *MonthCounts) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(MonthCounts, len(raw))
	for key, n := range raw {
		month, err := strconv.Atoi(key)
		if err != nil || month < 1 || month > 12 {
			return fmt.Errorf("month key %q out of range", key)
		}
		out[time.Month(month)] = n
	}
	*m = out
	return nil
}
