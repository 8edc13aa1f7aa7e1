package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CDPURL() != "http://127.0.0.1:9220" {
		t.Fatalf("CDPURL() = %q; want %q", cfg.CDPURL(), "http://127.0.0.1:9220")
	}
	if cfg.BindAddr != "127.0.0.1:8190" {
		t.Fatalf("BindAddr = %q; want %q", cfg.BindAddr, "127.0.0.1:8190")
	}
	if cfg.PollInterval() != time.Second {
		t.Fatalf("PollInterval() = %v; want 1s", cfg.PollInterval())
	}
	if cfg.LaunchBrowser {
		t.Fatalf("LaunchBrowser = true; want false")
	}
}

func TestLoadClampsAndParses(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TAB_CYCLER_CDP_TIMEOUT_MS", "10")
	t.Setenv("TAB_CYCLER_POLL_INTERVAL_MS", "5")
	t.Setenv("TAB_CYCLER_LOG_LEVEL", "DEBUG")
	t.Setenv("TAB_CYCLER_PORT_CANDIDATES", " 127.0.0.1:9001, ,127.0.0.1:9002 ")
	t.Setenv("TAB_CYCLER_LAUNCH_BROWSER", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CDPTimeout() != time.Second {
		t.Fatalf("CDPTimeout() = %v; want 1s", cfg.CDPTimeout())
	}
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Fatalf("PollInterval() = %v; want 250ms", cfg.PollInterval())
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
	want := []string{"127.0.0.1:9001", "127.0.0.1:9002"}
	if !reflect.DeepEqual(cfg.PortCandidates, want) {
		t.Fatalf("PortCandidates = %v; want %v", cfg.PortCandidates, want)
	}
	if !cfg.LaunchBrowser {
		t.Fatalf("LaunchBrowser = false; want true")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHROMIUM_CDP_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil; want invalid port error")
	}
}
