package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/recurcal/internal/recurrence"
)

// Config is the runtime configuration. Values come from defaults, then an
// optional YAML file, then RECUR_* environment variables.
type Config struct {
	LogLevel  string `yaml:"log_level" env:"RECUR_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"RECUR_LOG_FORMAT"`

	// HardCap bounds the number of occurrences of any expansion.
	HardCap int `yaml:"hard_cap" env:"RECUR_HARD_CAP"`

	// HorizonYears places the "repeat forever" horizon on Dec 31 of the
	// anchor's year plus HorizonYears.
	HorizonYears int `yaml:"horizon_years" env:"RECUR_HORIZON_YEARS"`

	// LeapDayPolicy is "clamp" or "leap-years-only".
	LeapDayPolicy string `yaml:"leap_day_policy" env:"RECUR_LEAP_DAY_POLICY"`

	DBPath string `yaml:"db_path" env:"RECUR_DB_PATH"`
}

func Default() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		HardCap:       recurrence.DefaultHardCap,
		HorizonYears:  recurrence.DefaultHorizonYears,
		LeapDayPolicy: recurrence.LeapDayClamp.String(),
		DBPath:        "recurcal.db",
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HardCap <= 0 {
		return fmt.Errorf("hard_cap must be positive, got %d", c.HardCap)
	}
	if c.HorizonYears <= 0 {
		return fmt.Errorf("horizon_years must be positive, got %d", c.HorizonYears)
	}
	if _, err := recurrence.ParseLeapDayPolicy(c.LeapDayPolicy); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Expander returns the recurrence expander the configuration describes.
// Call it on a validated config.
func (c *Config) Expander() recurrence.Expander {
	policy, _ := recurrence.ParseLeapDayPolicy(c.LeapDayPolicy)
	return recurrence.Expander{
		HardCap:      c.HardCap,
		HorizonYears: c.HorizonYears,
		LeapDay:      policy,
	}
}
