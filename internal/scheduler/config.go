package scheduler

import "time"

// Config controls the billing sweep schedule.
type Config struct {
	// Spec is a cron expression (robfig/cron syntax, descriptors allowed)
	// controlling how often the billing sweep runs.
	Spec       string
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Spec:       "@hourly",
		JobTimeout: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Spec == "" {
		c.Spec = defaults.Spec
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
