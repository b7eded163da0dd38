// Package config holds the core's configuration surface (spec.md §6).
package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultShmName is the base shared-memory name. The two ring mappings
// derive their names by appending "_req" and "_resp".
const DefaultShmName = "/assassinate_msf_ipc"

// DefaultCapacity is the default per-ring data area size (8 MiB).
const DefaultCapacity = 8 * 1024 * 1024

// Config holds the configuration surface of the IPC core.
type Config struct {
	LogLevel        logrus.Level  `json:"log_level"`
	ShmName         string        `json:"shm_name"`        // base name for the ring pair
	Capacity        int           `json:"capacity"`        // bytes per ring data area
	DefaultTimeout  time.Duration `json:"default_timeout"` // per-call wait cap
	PollInterval    time.Duration `json:"poll_interval"`   // idle back-off for the reader
	DisconnectGrace time.Duration `json:"disconnect_grace"` // join budget for reader on shutdown
}

// DefaultConfig returns the core's documented defaults (spec.md §6).
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        logrus.InfoLevel,
		ShmName:         DefaultShmName,
		Capacity:        DefaultCapacity,
		DefaultTimeout:  5 * time.Second,
		PollInterval:    time.Millisecond,
		DisconnectGrace: 2 * time.Second,
	}
}

// RequestRingName returns the shared-memory name for the request ring.
func (c *Config) RequestRingName() string {
	return c.ShmName + "_req"
}

// ResponseRingName returns the shared-memory name for the response ring.
func (c *Config) ResponseRingName() string {
	return c.ShmName + "_resp"
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
