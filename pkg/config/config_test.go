package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, DefaultShmName, cfg.ShmName)
	assert.Equal(t, DefaultCapacity, cfg.Capacity)
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.DisconnectGrace)
}

func TestConfig_RingNames(t *testing.T) {
	cfg := &Config{ShmName: "/foo"}
	assert.Equal(t, "/foo_req", cfg.RequestRingName())
	assert.Equal(t, "/foo_resp", cfg.ResponseRingName())
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel logrus.Level
	}{
		{name: "creates logger with debug level", logLevel: logrus.DebugLevel},
		{name: "creates logger with info level", logLevel: logrus.InfoLevel},
		{name: "creates logger with warn level", logLevel: logrus.WarnLevel},
		{name: "creates logger with error level", logLevel: logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.logLevel, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_CustomValues(t *testing.T) {
	cfg := &Config{
		LogLevel:        logrus.DebugLevel,
		ShmName:         "/custom",
		Capacity:        4096,
		DefaultTimeout:  10 * time.Second,
		PollInterval:    5 * time.Millisecond,
		DisconnectGrace: time.Second,
	}

	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "/custom", cfg.ShmName)
	assert.Equal(t, 4096, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.DefaultTimeout)

	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestConfig_ZeroValues(t *testing.T) {
	cfg := &Config{}

	logger := cfg.NewLogger()
	assert.NotNil(t, logger)

	// Zero log level should default to PanicLevel (0)
	assert.Equal(t, logrus.PanicLevel, logger.GetLevel())
	assert.Equal(t, time.Duration(0), cfg.DefaultTimeout)
	assert.Equal(t, "", cfg.ShmName)
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}

func BenchmarkConfig_NewLogger(b *testing.B) {
	cfg := DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.NewLogger()
	}
}
