package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "checks.yaml", cfg.ChecksFile)
	assert.Equal(t, ".", cfg.ClimatologyDir)
	assert.Equal(t, 16, cfg.ClimatologyCacheSize)
	assert.Equal(t, PolicyFailFast, cfg.FailurePolicy)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.PublishEnabled())
	assert.Equal(t, uint(3), cfg.PublishRetries)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("QC_CHECKS_FILE", "/etc/marineqc/checks.yaml")
	t.Setenv("QC_CLIMATOLOGY_DIR", "/data/clim")
	t.Setenv("QC_CLIMATOLOGY_CACHE_SIZE", "4")
	t.Setenv("QC_FAILURE_POLICY", "isolate")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SUMMARY_TOPIC", "qc-summaries")
	t.Setenv("QC_PUBLISH_RETRIES", "5")
	t.Setenv("DATABASE_URL", "postgres://qc@localhost/qc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/etc/marineqc/checks.yaml", cfg.ChecksFile)
	assert.Equal(t, "/data/clim", cfg.ClimatologyDir)
	assert.Equal(t, 4, cfg.ClimatologyCacheSize)
	assert.Equal(t, PolicyIsolate, cfg.FailurePolicy)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.PublishEnabled())
	assert.Equal(t, "qc-summaries", cfg.KafkaSummaryTopic)
	assert.Equal(t, uint(5), cfg.PublishRetries)
	assert.Equal(t, "postgres://qc@localhost/qc", cfg.DatabaseURL)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		env, value string
	}{
		{"QC_CLIMATOLOGY_CACHE_SIZE", "0"},
		{"QC_CLIMATOLOGY_CACHE_SIZE", "many"},
		{"QC_PUBLISH_RETRIES", "-2"},
		{"QC_FAILURE_POLICY", "retry"},
		{"LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.env)
		})
	}
}
