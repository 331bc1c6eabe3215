package config

import (
	"fmt"
	"time"
)

// GetString retrieves a string value from the configuration or the
// provided default. Useful for custom keys outside the typed sections.
func (c *Config) GetString(key string, defaultVal ...string) string {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		if len(defaultVal) > 0 {
			return defaultVal[0]
		}
		return ""
	}
	return c.k.String(key)
}

// GetInt retrieves an int value from the configuration or the provided default.
func (c *Config) GetInt(key string, defaultVal ...int) int {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		if len(defaultVal) > 0 {
			return defaultVal[0]
		}
		return 0
	}
	return c.k.Int(key)
}

// GetBool retrieves a bool value from the configuration or the provided default.
func (c *Config) GetBool(key string, defaultVal ...bool) bool {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		if len(defaultVal) > 0 {
			return defaultVal[0]
		}
		return false
	}
	return c.k.Bool(key)
}

// GetDuration retrieves a duration value from the configuration or the provided default.
func (c *Config) GetDuration(key string, defaultVal ...time.Duration) time.Duration {
	if c == nil || c.k == nil || !c.k.Exists(key) {
		if len(defaultVal) > 0 {
			return defaultVal[0]
		}
		return 0
	}
	return c.k.Duration(key)
}

// Extension returns the raw configuration section for an extension,
// keyed under "extensions.<id>". Returns an error wrapping
// ErrNotConfigured when the section is absent; callers distinguish the
// intentionally-unconfigured case with IsNotConfigured.
func (c *Config) Extension(id string) (map[string]any, error) {
	if c == nil || c.k == nil {
		return nil, fmt.Errorf("extension %q: %w", id, ErrNotConfigured)
	}

	key := "extensions." + id
	if !c.k.Exists(key) {
		return nil, fmt.Errorf("extension %q: %w", id, ErrNotConfigured)
	}

	return c.k.Cut(key).Raw(), nil
}
