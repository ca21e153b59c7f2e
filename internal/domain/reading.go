package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vmihailenco/msgpack/v5"
)

// ContentTypeMsgpack is the content-type header value marking a MessagePack
// payload. Anything else is decoded as JSON.
const ContentTypeMsgpack = "application/msgpack"

var validate = validator.New()

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RawReadingRecord is one sensor reading as published by station collectors.
// AirTempC is only meaningful for dewpoint readings, BearingDeg for paired
// wind readings whose value is the speed.
type RawReadingRecord struct {
	StationID   string   `json:"station_id" msgpack:"station_id" validate:"required"`
	StationName string   `json:"station_name,omitempty" msgpack:"station_name,omitempty"`
	Metric      string   `json:"metric" msgpack:"metric" validate:"required"`
	Value       *float64 `json:"value" msgpack:"value" validate:"required"`
	AirTempC    *float64 `json:"air_temp_c,omitempty" msgpack:"air_temp_c,omitempty"`
	BearingDeg  *float64 `json:"bearing_deg,omitempty" msgpack:"bearing_deg,omitempty"`
	Timestamp   string   `json:"timestamp" msgpack:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// Reading is a validated sensor reading with a UTC timestamp.
type Reading struct {
	StationID   string
	StationName string
	Metric      Metric
	Value       float64
	AirTempC    *float64
	BearingDeg  *float64
	Timestamp   time.Time
}

// ParseRawEvent decodes and validates a RawEvent's value into a Reading.
func ParseRawEvent(raw RawEvent) (Reading, error) {
	var rec RawReadingRecord
	if err := decodeRecord(raw, &rec); err != nil {
		return Reading{}, fmt.Errorf("parse raw event: %w", err)
	}
	return rec.Reading()
}

func decodeRecord(raw RawEvent, rec *RawReadingRecord) error {
	if strings.EqualFold(raw.Headers["content-type"], ContentTypeMsgpack) {
		return msgpack.Unmarshal(raw.Value, rec)
	}
	return json.Unmarshal(raw.Value, rec)
}

// Reading validates the record and converts it to its domain form.
func (rec RawReadingRecord) Reading() (Reading, error) {
	if err := validate.Struct(rec); err != nil {
		return Reading{}, fmt.Errorf("validate reading: %w", err)
	}
	metric, err := ParseMetric(rec.Metric)
	if err != nil {
		return Reading{}, err
	}
	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
	}
	return Reading{
		StationID:   rec.StationID,
		StationName: rec.StationName,
		Metric:      metric,
		Value:       *rec.Value,
		AirTempC:    rec.AirTempC,
		BearingDeg:  rec.BearingDeg,
		Timestamp:   ts.UTC(),
	}, nil
}
