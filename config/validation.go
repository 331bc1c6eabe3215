package config

import (
	"fmt"
	"slices"
)

// Validate checks the loaded configuration for values the client
// cannot operate with.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateTimeout(); err != nil {
		return err
	}
	if err := c.validateRate(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateServer() error {
	if c.Server.URL == "" {
		return NewMissingFieldError("server.url", "MTAP_SERVER_URL", "server.url")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.Attempts < 1 {
		return NewValidationError("retry.attempts", "must be at least 1")
	}
	if c.Retry.BackoffFactor <= 0 {
		return NewValidationError("retry.backoff", "must be positive")
	}
	if c.Retry.MaxDelay < 0 {
		return NewValidationError("retry.maxdelay", "must not be negative")
	}
	for _, status := range c.Retry.RetryableStatuses {
		if status < 100 || status > 599 {
			return NewValidationError("retry.statuses", fmt.Sprintf("invalid status code %d", status))
		}
	}
	return nil
}

func (c *Config) validateTimeout() error {
	if c.Timeout.Connect <= 0 {
		return NewValidationError("timeout.connect", "must be positive")
	}
	if c.Timeout.Read <= 0 {
		return NewValidationError("timeout.read", "must be positive")
	}
	if c.Timeout.Write <= 0 {
		return NewValidationError("timeout.write", "must be positive")
	}
	return nil
}

func (c *Config) validateRate() error {
	if c.Rate.Limit < 0 {
		return NewValidationError("rate.limit", "must not be negative")
	}
	if c.Rate.Burst < 0 {
		return NewValidationError("rate.burst", "must not be negative")
	}
	return nil
}

func (c *Config) validateLog() error {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	if !slices.Contains(validLevels, c.Log.Level) {
		return NewInvalidFieldError("log.level", fmt.Sprintf("invalid log level '%s'", c.Log.Level), validLevels)
	}
	return nil
}
