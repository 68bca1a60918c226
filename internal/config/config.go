// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
	ServerPort          string `env:"SERVER_PORT" envDefault:"8080"`
	DatabasePath        string `env:"DATABASE_PATH" envDefault:"ariadm.db"`
	PluginsDatabasePath string `env:"PLUGINS_DATABASE_PATH" envDefault:"plugins.db"`

	Aria2Host         string        `env:"ARIA2_HOST" envDefault:"localhost"`
	Aria2Port         int           `env:"ARIA2_PORT" envDefault:"6801"`
	Aria2Secret       string        `env:"ARIA2_SECRET"`
	Aria2Path         string        `env:"ARIA2_PATH" envDefault:"aria2c"`
	Aria2Spawn        bool          `env:"ARIA2_SPAWN" envDefault:"false"`
	EngineCallTimeout time.Duration `env:"ENGINE_CALL_TIMEOUT" envDefault:"10s"`

	DownloadPath     string `env:"DOWNLOAD_PATH" envDefault:"/downloads"`
	DownloadPathTemp string `env:"DOWNLOAD_PATH_TEMP" envDefault:"/tmp/ariadm"`
	Subfolder        bool   `env:"SUBFOLDER" envDefault:"true"`

	MaxTries             int  `env:"MAX_TRIES" envDefault:"5"`
	RetryWait            int  `env:"RETRY_WAIT" envDefault:"0"`
	Timeout              int  `env:"TIMEOUT" envDefault:"60"`
	DontCheckCertificate bool `env:"DONT_CHECK_CERTIFICATE" envDefault:"false"`

	PollInterval        time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	GatePollInterval    time.Duration `env:"GATE_POLL_INTERVAL" envDefault:"2100ms"`
	StopRetries         int           `env:"STOP_RETRIES" envDefault:"10"`
	StopRetryInterval   time.Duration `env:"STOP_RETRY_INTERVAL" envDefault:"1s"`
	PluginSweepInterval time.Duration `env:"PLUGIN_SWEEP_INTERVAL" envDefault:"24h"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevel := strings.ToLower(c.LogLevel)
	isValidLevel := false
	for _, level := range validLogLevels {
		if logLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.LogLevel, validLogLevels)
	}

	port, err := strconv.Atoi(c.ServerPort)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %q", c.ServerPort)
	}
	if c.Aria2Port < 1 || c.Aria2Port > 65535 {
		return fmt.Errorf("invalid ARIA2_PORT %d", c.Aria2Port)
	}
	if c.Aria2Host == "" {
		return fmt.Errorf("ARIA2_HOST cannot be empty")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH cannot be empty")
	}
	if c.PluginsDatabasePath == "" {
		return fmt.Errorf("PLUGINS_DATABASE_PATH cannot be empty")
	}

	downloadPath, err := cleanDir("DOWNLOAD_PATH", c.DownloadPath)
	if err != nil {
		return err
	}
	c.DownloadPath = downloadPath

	tempPath, err := cleanDir("DOWNLOAD_PATH_TEMP", c.DownloadPathTemp)
	if err != nil {
		return err
	}
	c.DownloadPathTemp = tempPath

	if c.MaxTries < 0 || c.RetryWait < 0 || c.Timeout < 0 || c.StopRetries < 0 {
		return fmt.Errorf("MAX_TRIES, RETRY_WAIT, TIMEOUT and STOP_RETRIES must not be negative")
	}

	durations := map[string]time.Duration{
		"ENGINE_CALL_TIMEOUT":   c.EngineCallTimeout,
		"POLL_INTERVAL":         c.PollInterval,
		"GATE_POLL_INTERVAL":    c.GatePollInterval,
		"STOP_RETRY_INTERVAL":   c.StopRetryInterval,
		"PLUGIN_SWEEP_INTERVAL": c.PluginSweepInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}

// EngineURL returns the JSON-RPC endpoint of the download engine
func (c *Config) EngineURL() string {
	return fmt.Sprintf("http://%s:%d/jsonrpc", c.Aria2Host, c.Aria2Port)
}

func cleanDir(name, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}

	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%s must be an absolute path, got: %s", name, path)
	}

	// Check if path exists and is a directory (only if it exists)
	if info, err := os.Stat(cleanPath); err == nil {
		if !info.IsDir() {
			return "", fmt.Errorf("%s must be a directory, got file: %s", name, cleanPath)
		}
	}

	return cleanPath, nil
}
