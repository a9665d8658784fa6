package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Failure policies accepted by QC_FAILURE_POLICY.
const (
	PolicyFailFast = "fail_fast"
	PolicyIsolate  = "isolate"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	ChecksFile           string
	ClimatologyDir       string
	ClimatologyCacheSize int
	FailurePolicy        string

	// Summary publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers      []string
	KafkaSummaryTopic string
	PublishRetries    uint

	// DatabaseURL enables the Postgres flag sink when set.
	DatabaseURL string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cacheSize, err := positiveInt("QC_CLIMATOLOGY_CACHE_SIZE", "16")
	if err != nil {
		return nil, err
	}
	retries, err := positiveInt("QC_PUBLISH_RETRIES", "3")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:             sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:             sharedcfg.EnvOrDefault("HTTP_ADDR", ""),
		ShutdownTimeout:      shutdownTimeout,
		ChecksFile:           sharedcfg.EnvOrDefault("QC_CHECKS_FILE", "checks.yaml"),
		ClimatologyDir:       sharedcfg.EnvOrDefault("QC_CLIMATOLOGY_DIR", "."),
		ClimatologyCacheSize: cacheSize,
		FailurePolicy:        sharedcfg.EnvOrDefault("QC_FAILURE_POLICY", PolicyFailFast),
		KafkaBrokers:         brokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "")),
		KafkaSummaryTopic:    sharedcfg.EnvOrDefault("KAFKA_SUMMARY_TOPIC", "marine-qc-summaries"),
		PublishRetries:       uint(retries),
		DatabaseURL:          sharedcfg.EnvOrDefault("DATABASE_URL", ""),
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}
	switch cfg.FailurePolicy {
	case PolicyFailFast, PolicyIsolate:
	default:
		return nil, fmt.Errorf("invalid QC_FAILURE_POLICY %q", cfg.FailurePolicy)
	}
	if cfg.ChecksFile == "" {
		return nil, errors.New("QC_CHECKS_FILE is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSummaryTopic == "" {
		return nil, errors.New("KAFKA_SUMMARY_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether summaries go to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

func brokers(raw string) []string {
	if raw == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(raw)
}

func positiveInt(name, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(name, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
