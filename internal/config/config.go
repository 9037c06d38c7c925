// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/normalize"
)

// Default top-level settings.
const (
	DefaultWorkers         = 5
	DefaultFetchTimeoutSec = 60
	DefaultCacheTTLMin     = 30
	DefaultTickSec         = 60
)

// SourceConfig declares one source in the configuration file.
type SourceConfig struct {
	Key         string `yaml:"key" validate:"required"`
	DisplayName string `yaml:"display_name"`
	Type        string `yaml:"type" validate:"required,oneof=api scraper rss file stream"`
	Adapter     string `yaml:"adapter" validate:"required"`
	Tier        string `yaml:"tier" validate:"omitempty,oneof=critical high normal low daily"`
	Country     string `yaml:"country"`
	Currency    string `yaml:"currency"`
	BaseURL     string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the credential.
	// Keys never live in the file itself.
	APIKeyEnv string `yaml:"api_key_env"`
	Enabled   *bool  `yaml:"enabled"`

	UpdateIntervalMinutes int `yaml:"update_interval_minutes" validate:"gte=0"`

	// FieldMapping maps canonical field names to source-specific keys,
	// consulted before the built-in aliases.
	FieldMapping map[string][]string `yaml:"field_mapping"`
}

// Descriptor converts the config entry into a registry descriptor.
// Sources are enabled unless the file says otherwise.
func (c SourceConfig) Descriptor() domain.SourceDescriptor {
	tier := domain.PriorityTier(c.Tier)
	if c.Tier == "" {
		tier = domain.TierNormal
	}
	enabled := true
	if c.Enabled != nil {
		enabled = *c.Enabled
	}
	return domain.SourceDescriptor{
		Key:                   c.Key,
		DisplayName:           c.DisplayName,
		Type:                  domain.SourceType(c.Type),
		Adapter:               c.Adapter,
		Tier:                  tier,
		Country:               c.Country,
		DefaultCurrency:       c.Currency,
		BaseURL:               c.BaseURL,
		APIKey:                os.Getenv(c.APIKeyEnv),
		Enabled:               enabled,
		UpdateIntervalMinutes: c.UpdateIntervalMinutes,
	}
}

// Config is the full configuration file.
type Config struct {
	Workers          int `yaml:"workers" validate:"gte=0"`
	FetchTimeoutSec  int `yaml:"fetch_timeout_seconds" validate:"gte=0"`
	CacheTTLMinutes  int `yaml:"cache_ttl_minutes" validate:"gte=0"`
	SchedulerTickSec int `yaml:"scheduler_tick_seconds" validate:"gte=0"`

	Sources []SourceConfig `yaml:"sources" validate:"required,min=1,dive"`
}

// FetchTimeout returns the effective fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// CacheTTL returns the effective cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// SchedulerTick returns the effective scheduler tick.
func (c *Config) SchedulerTick() time.Duration {
	return time.Duration(c.SchedulerTickSec) * time.Second
}

// FieldMappings collects the per-source alias overrides keyed by source.
func (c *Config) FieldMappings() map[string]normalize.FieldMapping {
	out := make(map[string]normalize.FieldMapping)
	for _, s := range c.Sources {
		if len(s.FieldMapping) > 0 {
			out[s.Key] = normalize.FieldMapping(s.FieldMapping)
		}
	}
	return out
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.FetchTimeoutSec == 0 {
		cfg.FetchTimeoutSec = DefaultFetchTimeoutSec
	}
	if cfg.CacheTTLMinutes == 0 {
		cfg.CacheTTLMinutes = DefaultCacheTTLMin
	}
	if cfg.SchedulerTickSec == 0 {
		cfg.SchedulerTickSec = DefaultTickSec
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	keys := make(map[string]struct{}, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if _, dup := keys[s.Key]; dup {
			return nil, fmt.Errorf("validate config: duplicate source key %q", s.Key)
		}
		keys[s.Key] = struct{}{}
	}

	return &cfg, nil
}
