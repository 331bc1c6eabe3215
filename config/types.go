package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the root configuration structure for the MTAP client SDK.
type Config struct {
	Server     ServerConfig      `koanf:"server" json:"server" yaml:"server" toml:"server" mapstructure:"server"`
	Retry      RetryConfig       `koanf:"retry" json:"retry" yaml:"retry" toml:"retry" mapstructure:"retry"`
	Timeout    TimeoutConfig     `koanf:"timeout" json:"timeout" yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
	Rate       RateConfig        `koanf:"rate" json:"rate" yaml:"rate" toml:"rate" mapstructure:"rate"`
	Log        LogConfig         `koanf:"log" json:"log" yaml:"log" toml:"log" mapstructure:"log"`
	Headers    map[string]string `koanf:"headers" json:"headers" yaml:"headers" toml:"headers" mapstructure:"headers"`
	Governance GovernanceConfig  `koanf:"governance" json:"governance" yaml:"governance" toml:"governance" mapstructure:"governance"`

	k *koanf.Koanf
}

// ServerConfig identifies the MTAP server the client talks to.
type ServerConfig struct {
	URL string `koanf:"url" json:"url" yaml:"url" toml:"url" mapstructure:"url"`
}

// RetryConfig controls the retry policy applied to every request.
type RetryConfig struct {
	Attempts          int           `koanf:"attempts" json:"attempts" yaml:"attempts" toml:"attempts" mapstructure:"attempts"`
	BackoffFactor     time.Duration `koanf:"backoff" json:"backoff" yaml:"backoff" toml:"backoff" mapstructure:"backoff"`
	MaxDelay          time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" toml:"maxdelay" mapstructure:"maxdelay"`
	RetryableStatuses []int         `koanf:"statuses" json:"statuses" yaml:"statuses" toml:"statuses" mapstructure:"statuses"`
}

// TimeoutConfig holds the per-phase timeouts for HTTP exchanges.
type TimeoutConfig struct {
	Connect time.Duration `koanf:"connect" json:"connect" yaml:"connect" toml:"connect" mapstructure:"connect"`
	Read    time.Duration `koanf:"read" json:"read" yaml:"read" toml:"read" mapstructure:"read"`
	Write   time.Duration `koanf:"write" json:"write" yaml:"write" toml:"write" mapstructure:"write"`
}

// RateConfig holds the client-side request rate limit. A zero limit
// disables rate limiting.
type RateConfig struct {
	Limit int `koanf:"limit" json:"limit" yaml:"limit" toml:"limit" mapstructure:"limit"`
	Burst int `koanf:"burst" json:"burst" yaml:"burst" toml:"burst" mapstructure:"burst"`
}

// LogConfig controls the SDK's structured logging output.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" toml:"level" mapstructure:"level"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" toml:"pretty" mapstructure:"pretty"`
}

// GovernanceConfig holds defaults for governance-aware requests.
type GovernanceConfig struct {
	PolicySnapshotID string `koanf:"policysnapshot" json:"policysnapshot" yaml:"policysnapshot" toml:"policysnapshot" mapstructure:"policysnapshot"`
}
