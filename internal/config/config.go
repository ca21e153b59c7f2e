package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/tow-etl-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Time-of-wetness and QA tuning.
	TOWPrecision              int
	TOWQADensityThreshold     float64
	CoverageAdequateThreshold float64
	EnhancedQA                bool
	OnError                   domain.OnErrorPolicy

	// Summary publishing.
	SummaryInterval  time.Duration
	SummaryCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	precision, err := parseInt("TOW_PRECISION", domain.DefaultPrecision)
	if err != nil {
		return nil, err
	}
	if precision < 0 || precision > 15 {
		return nil, errors.New("TOW_PRECISION must be between 0 and 15")
	}

	density, err := parseFloat("TOW_QA_DENSITY_THRESHOLD", domain.DefaultQADensityThreshold)
	if err != nil {
		return nil, err
	}
	if density <= 0 || density > 1 {
		return nil, errors.New("TOW_QA_DENSITY_THRESHOLD must be in (0, 1]")
	}

	adequate, err := parseFloat("COVERAGE_ADEQUATE_THRESHOLD", domain.DefaultAdequateThreshold)
	if err != nil {
		return nil, err
	}
	if adequate <= 0 || adequate > 100 {
		return nil, errors.New("COVERAGE_ADEQUATE_THRESHOLD must be in (0, 100]")
	}

	enhanced, err := strconv.ParseBool(sharedcfg.EnvOrDefault("ENHANCED_QA", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid ENHANCED_QA: %w", err)
	}

	onError, err := domain.ParseOnErrorPolicy(sharedcfg.EnvOrDefault("ON_ERROR", "raise"))
	if err != nil {
		return nil, fmt.Errorf("invalid ON_ERROR: %w", err)
	}

	summaryInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("SUMMARY_INTERVAL", "30s"))
	if err != nil || summaryInterval <= 0 {
		return nil, errors.New("invalid SUMMARY_INTERVAL")
	}

	cacheSize, err := parseInt("SUMMARY_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	if cacheSize <= 0 {
		return nil, errors.New("SUMMARY_CACHE_SIZE must be positive")
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-sensor-readings"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "station-wetness-summaries"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "tow-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		TOWPrecision:              precision,
		TOWQADensityThreshold:     density,
		CoverageAdequateThreshold: adequate,
		EnhancedQA:                enhanced,
		OnError:                   onError,

		SummaryInterval:  summaryInterval,
		SummaryCacheSize: cacheSize,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

// StationConfig derives the per-station domain settings.
func (c *Config) StationConfig() domain.StationConfig {
	return domain.StationConfig{
		TOW: domain.TOWConfig{
			Precision:          c.TOWPrecision,
			QADensityThreshold: c.TOWQADensityThreshold,
		},
		AdequateThreshold: c.CoverageAdequateThreshold,
		StatsPrecision:    domain.DefaultStatsPrecision,
		EnhancedQA:        c.EnhancedQA,
		OnError:           c.OnError,
	}
}

func parseInt(key string, def int) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, strconv.Itoa(def)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
