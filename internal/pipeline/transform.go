package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/tow-etl-service/internal/domain"
)

// ReadingTransformer implements Transformer by decoding and validating the
// message payload with domain.ParseRawEvent.
type ReadingTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates a ReadingTransformer.
func NewTransformer(logger *slog.Logger) *ReadingTransformer {
	return &ReadingTransformer{logger: logger}
}

func (t *ReadingTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Reading, error) {
	reading, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.Reading{}, err
	}
	t.logger.Debug("reading decoded",
		"station_id", reading.StationID,
		"metric", reading.Metric,
		"offset", raw.Offset,
	)
	return reading, nil
}
