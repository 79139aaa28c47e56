// Package config loads the YAML configuration file, expanding
// environment variables so secrets stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Account    AccountConfig    `yaml:"account"`
	Session    SessionConfig    `yaml:"session"`
	Queue      QueueConfig      `yaml:"queue"`
	Automation AutomationConfig `yaml:"automation"`
	Harvest    HarvestConfig    `yaml:"harvest"`
	Browser    BrowserConfig    `yaml:"browser"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AccountConfig carries the account credentials. Both fields normally
// come from environment expansion, not literals in the file.
type AccountConfig struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

// SessionConfig tunes session establishment.
type SessionConfig struct {
	StoreDir         string `yaml:"store_dir"`
	SettleSeconds    int    `yaml:"settle_seconds"`
	LoginWaitSeconds int    `yaml:"login_wait_seconds"`
}

// QueueConfig tunes the request queue.
type QueueConfig struct {
	DelaySeconds int `yaml:"delay_seconds"`
}

// AutomationConfig tunes the interaction flows.
type AutomationConfig struct {
	SettleSeconds    int `yaml:"settle_seconds"`
	LikeDelaySeconds int `yaml:"like_delay_seconds"`
	LikeRounds       int `yaml:"like_rounds"`
}

// HarvestConfig tunes listing harvests.
type HarvestConfig struct {
	SettleSeconds int    `yaml:"settle_seconds"`
	MaxIterations int    `yaml:"max_iterations"`
	AvatarDir     string `yaml:"avatar_dir"`
}

// BrowserConfig tunes the browser launch.
type BrowserConfig struct {
	Headless bool   `yaml:"headless"`
	BinPath  string `yaml:"bin_path"`
}

// DatabaseConfig names the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	ToFile   bool   `yaml:"to_file"`
	FilePath string `yaml:"file_path"`
}

// Load reads the config file named by CONFIG_PATH (default
// ./config/config.yaml), expands ${VAR} and ${VAR:default} references
// and validates the result. A .env file, when present, seeds the
// environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Session.StoreDir == "" {
		c.Session.StoreDir = "."
	}
	if c.Session.SettleSeconds == 0 {
		c.Session.SettleSeconds = 2
	}
	if c.Session.LoginWaitSeconds == 0 {
		c.Session.LoginWaitSeconds = 30
	}
	if c.Queue.DelaySeconds == 0 {
		c.Queue.DelaySeconds = 5
	}
	if c.Automation.SettleSeconds == 0 {
		c.Automation.SettleSeconds = 2
	}
	if c.Automation.LikeDelaySeconds == 0 {
		c.Automation.LikeDelaySeconds = 2
	}
	if c.Automation.LikeRounds == 0 {
		c.Automation.LikeRounds = 5
	}
	if c.Harvest.SettleSeconds == 0 {
		c.Harvest.SettleSeconds = 5
	}
	if c.Harvest.MaxIterations == 0 {
		c.Harvest.MaxIterations = 40
	}
	if c.Harvest.AvatarDir == "" {
		c.Harvest.AvatarDir = "data"
	}
	if c.Database.Path == "" {
		c.Database.Path = "linkpilot.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Account.ID == "" {
		return fmt.Errorf("account id is required")
	}
	if c.Account.Secret == "" {
		return fmt.Errorf("account secret is required")
	}
	if c.Harvest.MaxIterations <= 0 {
		return fmt.Errorf("harvest max_iterations must be positive")
	}
	if c.Queue.DelaySeconds < 0 {
		return fmt.Errorf("queue delay_seconds must be non-negative")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	return nil
}

// SessionSettle returns the session settle delay.
func (c *Config) SessionSettle() time.Duration {
	return time.Duration(c.Session.SettleSeconds) * time.Second
}

// LoginWait returns the login wait budget.
func (c *Config) LoginWait() time.Duration {
	return time.Duration(c.Session.LoginWaitSeconds) * time.Second
}

// QueueDelay returns the pause between queued requests.
func (c *Config) QueueDelay() time.Duration {
	return time.Duration(c.Queue.DelaySeconds) * time.Second
}

// AutomationSettle returns the action settle delay.
func (c *Config) AutomationSettle() time.Duration {
	return time.Duration(c.Automation.SettleSeconds) * time.Second
}

// LikeDelay returns the pause between individual likes.
func (c *Config) LikeDelay() time.Duration {
	return time.Duration(c.Automation.LikeDelaySeconds) * time.Second
}

// HarvestSettle returns the delay after each harvest scroll round.
func (c *Config) HarvestSettle() time.Duration {
	return time.Duration(c.Harvest.SettleSeconds) * time.Second
}

// expandEnvVars expands ${VAR} and ${VAR:default} references.
func expandEnvVars(s string) string {
	pattern := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)
	return pattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := pattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}
