// Package config loads the assistant configuration from YAML with
// environment overrides for secrets. A missing file is created with
// defaults on first run.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects and tunes the language model used for intent parsing.
type LLMConfig struct {
	// Provider is "anthropic" or "openai".
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model when non-empty.
	Model string `yaml:"model"`

	// APIKey is normally left empty in the file and supplied via
	// ANTHROPIC_API_KEY or OPENAI_API_KEY.
	APIKey string `yaml:"api_key,omitempty"`
}

// MapsConfig enables location enrichment and travel time lookups.
type MapsConfig struct {
	// APIKey is normally supplied via GOOGLE_MAPS_API_KEY. Empty disables
	// place enrichment.
	APIKey string `yaml:"api_key,omitempty"`

	// HomeAddress is the travel time origin for the nightly alarm.
	HomeAddress string `yaml:"home_address"`
}

// StorageConfig locates the on-disk state.
type StorageConfig struct {
	// ContactsPath is the SQLite file for the contact directory.
	ContactsPath string `yaml:"contacts_path"`

	// ChoresPath is the SQLite file for recurring chores.
	ChoresPath string `yaml:"chores_path"`

	// CalendarICS, when non-empty, backs the calendar with an ICS file
	// instead of the in-memory store.
	CalendarICS string `yaml:"calendar_ics,omitempty"`
}

// DigestConfig schedules the proactive daily pushes.
type DigestConfig struct {
	// MorningCron and NightlyCron are cron-style schedules.
	MorningCron string `yaml:"morning_cron"`
	NightlyCron string `yaml:"nightly_cron"`

	// PrepMinutes is the morning preparation budget for the alarm math.
	PrepMinutes int `yaml:"prep_minutes"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone the assistant schedules in.
	Timezone string `yaml:"timezone"`

	LLM     LLMConfig     `yaml:"llm"`
	Maps    MapsConfig    `yaml:"maps"`
	Storage StorageConfig `yaml:"storage"`
	Digest  DigestConfig  `yaml:"digest"`
}

// Default returns the in-memory default configuration.
func Default() *Config {
	return &Config{
		Timezone: "Asia/Jerusalem",
		LLM: LLMConfig{
			Provider: "anthropic",
		},
		Storage: StorageConfig{
			ContactsPath: "data/contacts.db",
			ChoresPath:   "data/chores.db",
		},
		Digest: DigestConfig{
			MorningCron: "0 8 * * *",
			NightlyCron: "0 21 * * *",
			PrepMinutes: 60,
		},
	}
}

// Normalize fills in missing values so partially-filled configs still work.
func (c *Config) Normalize() {
	def := Default()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		c.LLM.Provider = def.LLM.Provider
	}
	if c.Storage.ContactsPath == "" {
		c.Storage.ContactsPath = def.Storage.ContactsPath
	}
	if c.Storage.ChoresPath == "" {
		c.Storage.ChoresPath = def.Storage.ChoresPath
	}
	if c.Digest.MorningCron == "" {
		c.Digest.MorningCron = def.Digest.MorningCron
	}
	if c.Digest.NightlyCron == "" {
		c.Digest.NightlyCron = def.Digest.NightlyCron
	}
	if c.Digest.PrepMinutes <= 0 {
		c.Digest.PrepMinutes = def.Digest.PrepMinutes
	}
}

// applyEnv overlays secrets and overrides from the environment. Environment
// values win over the file so deployments never need keys on disk.
func (c *Config) applyEnv() {
	if v := os.Getenv("CALWEAVE_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("CALWEAVE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	switch c.LLM.Provider {
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.LLM.APIKey = v
		}
	default:
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		c.Maps.APIKey = v
	}
	if v := os.Getenv("CALWEAVE_HOME_ADDRESS"); v != "" {
		c.Maps.HomeAddress = v
	}
}

// Load reads the YAML config at path. A missing file is written with
// defaults and 0600 permissions. Environment overrides apply last.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			cfg.applyEnv()
			if serr := Save(path, cfg); serr != nil {
				return cfg, serr
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.applyEnv()
	return &cfg, nil
}

// Save writes the configuration atomically with 0600 permissions, creating
// the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calweave-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
