// Package browser launches a visible Chromium with a fixed remote debugging
// port when none is listening yet.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
)

const readyTimeout = 15 * time.Second

// Config holds browser launch configuration.
type Config struct {
	CDPAddress string
	CDPPort    int
	StartURL   string
	ProfileDir string
	ExecPath   string
	WindowW    int
	WindowH    int
}

// Launcher owns a browser started through chromedp's exec allocator.
type Launcher struct {
	cfg Config

	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	running       bool
}

func NewLauncher(cfg Config) *Launcher {
	if cfg.WindowW <= 0 || cfg.WindowH <= 0 {
		cfg.WindowW, cfg.WindowH = 1366, 900
	}
	return &Launcher{cfg: cfg}
}

// isPortInUse checks whether a TCP port is already listening.
func isPortInUse(address string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(address, strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", false),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.Flag("mute-audio", false),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("remote-debugging-port", strconv.Itoa(l.cfg.CDPPort)),
		chromedp.Flag("remote-debugging-address", l.cfg.CDPAddress),
		chromedp.UserDataDir(l.cfg.ProfileDir),
		chromedp.WindowSize(l.cfg.WindowW, l.cfg.WindowH),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts the browser unless the CDP port is already in use, opens the
// start URL and waits until /json/version answers.
func (l *Launcher) Launch(ctx context.Context) error {
	if isPortInUse(l.cfg.CDPAddress, l.cfg.CDPPort) {
		slog.Info("browser already running, skipping launch",
			"address", l.cfg.CDPAddress, "port", l.cfg.CDPPort)
		return nil
	}
	if err := os.MkdirAll(l.cfg.ProfileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	l.allocCancel, l.browserCancel = allocCancel, browserCancel

	var actions []chromedp.Action
	if l.cfg.StartURL != "" {
		actions = append(actions, chromedp.Navigate(l.cfg.StartURL))
	}
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		l.Stop()
		return fmt.Errorf("start browser: %w", err)
	}
	l.running = true
	slog.Info("browser process started", "profile_dir", l.cfg.ProfileDir, "start_url", l.cfg.StartURL)

	if err := waitForCDP(ctx, l.versionURL(), readyTimeout); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for CDP: %w", err)
	}
	slog.Info("CDP endpoint ready", "address", l.cfg.CDPAddress, "port", l.cfg.CDPPort)
	return nil
}

func (l *Launcher) versionURL() string {
	return "http://" + net.JoinHostPort(l.cfg.CDPAddress, strconv.Itoa(l.cfg.CDPPort)) + "/json/version"
}

// waitForCDP polls url until it answers 200 or timeout passes.
func waitForCDP(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("CDP did not become ready within %s at %s", timeout, url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Running reports whether this launcher spawned a browser process.
func (l *Launcher) Running() bool {
	return l.running
}

// Stop closes the browser if this launcher started it.
func (l *Launcher) Stop() {
	if l.browserCancel == nil {
		return
	}
	slog.Info("stopping browser")
	l.browserCancel()
	l.allocCancel()
	l.browserCancel, l.allocCancel = nil, nil
	l.running = false
}
