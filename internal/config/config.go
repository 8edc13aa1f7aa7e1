package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the tab cycler daemon.
type Config struct {
	// CDP connection settings
	CDPAddress   string
	CDPPort      int
	CDPTimeoutMS int

	// HTTP surface
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Logging
	LogLevel string
	LogFile  string

	// Settings persistence
	StorePath    string
	DefaultsFile string

	// Status history; empty disables it
	JournalDir string

	// Tab watching
	PollIntervalMS int

	// Optional browser launch
	LaunchBrowser bool
	ProfileDir    string

	// Optional ntfy endpoint notified when tracking stops
	NTFYEndpoint string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		CDPTimeoutMS:     getEnvIntOrDefault("TAB_CYCLER_CDP_TIMEOUT_MS", 5000),
		BindAddr:         getEnvOrDefault("TAB_CYCLER_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("TAB_CYCLER_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		PortAutoFallback: getEnvBoolOrDefault("TAB_CYCLER_PORT_AUTO_FALLBACK", true),
		LogLevel:         strings.ToLower(getEnvOrDefault("TAB_CYCLER_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("TAB_CYCLER_LOG_FILE", "logs/tab_cycler.log"),
		StorePath:        getEnvOrDefault("TAB_CYCLER_STORE_PATH", "./data/tab_cycler.db"),
		DefaultsFile:     getEnvOrDefault("TAB_CYCLER_DEFAULTS_FILE", ""),
		JournalDir:       os.Getenv("TAB_CYCLER_JOURNAL_DIR"),
		PollIntervalMS:   getEnvIntOrDefault("TAB_CYCLER_POLL_INTERVAL_MS", 1000),
		LaunchBrowser:    getEnvBoolOrDefault("TAB_CYCLER_LAUNCH_BROWSER", false),
		ProfileDir:       getEnvOrDefault("TAB_CYCLER_PROFILE_DIR", "./browser_profile"),
		NTFYEndpoint:     getEnvOrDefault("TAB_CYCLER_NTFY_ENDPOINT", ""),
	}
	if cfg.CDPTimeoutMS < 1000 {
		cfg.CDPTimeoutMS = 1000
	}
	if cfg.PollIntervalMS < 250 {
		cfg.PollIntervalMS = 250
	}
	if cfg.CDPPort <= 0 || cfg.CDPPort > 65535 {
		return nil, fmt.Errorf("invalid CHROMIUM_CDP_PORT: %d", cfg.CDPPort)
	}

	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint, e.g. "http://127.0.0.1:9220".
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

// CDPTimeout returns the per-command CDP timeout.
func (c *Config) CDPTimeout() time.Duration {
	return time.Duration(c.CDPTimeoutMS) * time.Millisecond
}

// PollInterval returns the tab visibility poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
