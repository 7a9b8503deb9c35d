package scheduler

import (
	"time"
)

// Config controls scheduler intervals and job deadlines.
type Config struct {
	RunInterval    time.Duration
	JobTimeout     time.Duration
	ReconcileBatch int
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Minute,
		JobTimeout:     30 * time.Second,
		ReconcileBatch: 100,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.ReconcileBatch <= 0 {
		c.ReconcileBatch = defaults.ReconcileBatch
	}
	return c
}
