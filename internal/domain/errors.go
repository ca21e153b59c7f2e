package domain

import "errors"

var (
	// ErrInvalidTimestamp is returned when a sample carries a zero timestamp.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrUnknownMetric is returned for metric names outside the supported set.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrValueOutOfRange is returned when a reading is physically implausible
	// and the station is configured to raise on bad input.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrMissingAirTemperature is returned for a dewpoint reading that carries
	// no air temperature to derive humidity from.
	ErrMissingAirTemperature = errors.New("missing air temperature")

	// ErrMissingBearing is returned for a wind reading without a bearing.
	ErrMissingBearing = errors.New("missing wind bearing")
)
