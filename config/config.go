// Package config loads MTAP client configuration from layered sources:
// built-in defaults, an optional YAML file, MTAP_-prefixed environment
// variables, and an optional raw YAML overlay, in ascending precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultConfigFile is the YAML file consulted in the working
	// directory when present.
	DefaultConfigFile = "mtap.yaml"

	// EnvPrefix namespaces the environment variables read by Load.
	EnvPrefix = "MTAP_"
)

// Load builds a Config from defaults, the optional config file, and
// the environment, then validates it.
func Load() (*Config, error) {
	return LoadWithOverrides(nil)
}

// LoadWithOverrides behaves like Load but applies the given YAML
// document as a final highest-precedence layer. A nil overlay is
// ignored.
func LoadWithOverrides(overlay []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadConfigFile(k); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := loadEnvironment(k); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if len(overlay) > 0 {
		if err := k.Load(rawbytes.Provider(overlay), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(map[string]any{
		"server.url": "",

		"retry.attempts": 3,
		"retry.backoff":  "500ms",
		"retry.maxdelay": "60s",
		"retry.statuses": []int{500, 502, 503, 504},

		"timeout.connect": "5s",
		"timeout.read":    "30s",
		"timeout.write":   "30s",

		"rate.limit": 0,
		"rate.burst": 0,

		"log.level":  "info",
		"log.pretty": false,

		"governance.policysnapshot": "",
	}, "."), nil)
}

// loadConfigFile merges the optional YAML config file. A missing file
// is not an error; a malformed one is.
func loadConfigFile(k *koanf.Koanf) error {
	err := k.Load(file.Provider(DefaultConfigFile), yaml.Parser())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadEnvironment merges MTAP_-prefixed environment variables, mapping
// MTAP_SERVER_URL to server.url and so on.
func loadEnvironment(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", ".")
			return key, value
		},
	}), nil)
}
