package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// YearMap is a map keyed by calendar year. On the wire the keys are strings
// (JSON object keys), emitted in ascending numeric order.
type YearMap[V any] map[int]V

// Years returns the map's years in ascending order.
func (m YearMap[V]) Years() []int {
	years := make([]int, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// MarshalJSON writes the map with numerically ordered string keys.
func (m YearMap[V]) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return marshalIntKeyed(m.Years(), func(year int) any { return m[year] })
}

// marshalIntKeyed writes a JSON object whose keys are the decimal forms of
// keys, in the order given.
func marshalIntKeyed(keys []int, value func(int) any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(key)))
		buf.WriteByte(':')
		val, err := json.Marshal(value(key))
		if err != nil {
			return nil, fmt.Errorf("marshal key %d: %w", key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads string year keys back into integers.
func (m *YearMap[V]) UnmarshalJSON(data []byte) error {
	var raw map[string]V
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(YearMap[V], len(raw))
	for key, v := range raw {
		year, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("year key %q: %w", key, err)
		}
		out[year] = v
	}
	*m = out
	return nil
}
