package observability

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/tow-etl-service/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a slog.Logger backed by zap. LOG_FORMAT "json" selects the
// production encoder; "text" or "console" selects the development console
// encoder. LOG_LEVEL accepts debug, info, warn and error.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	var zc zap.Config
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		zc = zap.NewProductionConfig()
	case "text", "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	zl, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return slog.New(zapslog.NewHandler(zl.Core())), nil
}
