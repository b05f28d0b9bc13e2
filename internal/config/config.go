// Package config provides YAML-based configuration loading for Rite.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Rite configuration, loaded from rite.yaml.
type Config struct {
	DB         DBConfig         `yaml:"db"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Digest     DigestConfig     `yaml:"digest"`
	Automation AutomationConfig `yaml:"automation"`
}

// DBConfig holds connection settings for the MySQL-protocol SQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// DashboardConfig holds settings for the read-only operator dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// DigestConfig controls the scheduled transition digest.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`   // 5-field cron expression
	Tenant  string `yaml:"tenant"` // tenant slug whose adapter posts the digest
	Channel string `yaml:"channel"`
}

// AutomationConfig bounds platform automation calls.
type AutomationConfig struct {
	CallTimeoutSec int `yaml:"call_timeout_sec"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" {
		c.DB.Database = "rite"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 9 * * *"
	}
	if c.Automation.CallTimeoutSec == 0 {
		c.Automation.CallTimeoutSec = 8
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.DB.Port < 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("db.port %d is out of range", c.DB.Port))
	}
	if c.Automation.CallTimeoutSec < 1 {
		errs = append(errs, "automation.call_timeout_sec must be at least 1")
	}
	if c.Digest.Enabled {
		if c.Digest.Tenant == "" {
			errs = append(errs, "digest.tenant is required when digest is enabled")
		}
		if c.Digest.Channel == "" {
			errs = append(errs, "digest.channel is required when digest is enabled")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
