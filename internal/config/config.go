// Package config loads the engine configuration from a YAML file into one
// explicit Config value. Nothing here is global: the loaded Config is passed
// into the engine by the caller.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mkawato/shotline/internal/model"
)

type Config struct {
	Store   StoreConfig             `mapstructure:"store"`
	Paths   PathsConfig             `mapstructure:"paths"`
	Copy    CopyConfig              `mapstructure:"copy"`
	Actions map[string]ActionConfig `mapstructure:"actions"`
}

type StoreConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	ScriptName         string `mapstructure:"script_name"`
	APIKey             string `mapstructure:"api_key"`
	TimeoutSec         int    `mapstructure:"timeout_sec"`
	RetryMaxElapsedSec int    `mapstructure:"retry_max_elapsed_sec"`
}

func (s StoreConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

func (s StoreConfig) RetryMaxElapsed() time.Duration {
	return time.Duration(s.RetryMaxElapsedSec) * time.Second
}

type PathsConfig struct {
	WorkRoot    string `mapstructure:"work_root"`
	PublishRoot string `mapstructure:"publish_root"`
	LogFolder   string `mapstructure:"log_folder"`
}

type CopyConfig struct {
	BufferBytes int `mapstructure:"buffer_bytes"`
}

// ActionConfig is the per-action rule set.
type ActionConfig struct {
	ValidRoles         []string       `mapstructure:"valid_roles"`
	ValidLeadStatus    []model.Status `mapstructure:"valid_lead_status"`
	ValidLeadVerStatus []model.Status `mapstructure:"valid_lead_ver_status"`
	ValidSupStatus     []model.Status `mapstructure:"valid_sup_status"`
	ValidSupVerStatus  []model.Status `mapstructure:"valid_sup_ver_status"`
	// ClientQCSteps tolerate a missing status mapping and skip file
	// requirement enforcement.
	ClientQCSteps []string `mapstructure:"client_qc_steps"`
	// PublishTags are the distribution targets evaluated per slot.
	PublishTags []string `mapstructure:"publish_tags"`
	// Ignores are glob patterns skipped when copying folder slots.
	Ignores []string `mapstructure:"ignores"`
}

// Action looks up the rule set for a parsed action.
func (c *Config) Action(a model.Action) (ActionConfig, error) {
	ac, ok := c.Actions[string(a)]
	if !ok {
		return ActionConfig{}, fmt.Errorf("action %q is not configured", a)
	}
	return ac, nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SHOTLINE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store.TimeoutSec == 0 {
		cfg.Store.TimeoutSec = 30
	}
	if cfg.Store.RetryMaxElapsedSec == 0 {
		cfg.Store.RetryMaxElapsedSec = 30
	}
	if cfg.Copy.BufferBytes == 0 {
		cfg.Copy.BufferBytes = 25 * 1024 * 1024
	}
}

func validate(cfg *Config) error {
	if cfg.Store.BaseURL == "" {
		return fmt.Errorf("store.base_url is required")
	}
	if len(cfg.Actions) == 0 {
		return fmt.Errorf("no actions configured")
	}
	// Unknown action kinds are a configuration error, caught here rather
	// than at dispatch time.
	for name, ac := range cfg.Actions {
		if _, err := model.ParseAction(name); err != nil {
			return fmt.Errorf("actions: %w", err)
		}
		if len(ac.ValidRoles) == 0 {
			return fmt.Errorf("actions.%s: valid_roles is required", name)
		}
	}
	return nil
}
