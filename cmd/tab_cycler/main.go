package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/tab_cycler/internal/alarm"
	"github.com/dgnsrekt/tab_cycler/internal/api"
	"github.com/dgnsrekt/tab_cycler/internal/badge"
	"github.com/dgnsrekt/tab_cycler/internal/browser"
	"github.com/dgnsrekt/tab_cycler/internal/config"
	"github.com/dgnsrekt/tab_cycler/internal/domain"
	"github.com/dgnsrekt/tab_cycler/internal/engine"
	"github.com/dgnsrekt/tab_cycler/internal/events"
	"github.com/dgnsrekt/tab_cycler/internal/journal"
	"github.com/dgnsrekt/tab_cycler/internal/kvstore"
	"github.com/dgnsrekt/tab_cycler/internal/netutil"
	"github.com/dgnsrekt/tab_cycler/internal/notify"
	"github.com/dgnsrekt/tab_cycler/internal/settings"
	"github.com/dgnsrekt/tab_cycler/internal/tabs"
	"gopkg.in/natefinch/lumberjack.v2"
)

const alarmBuffer = 4

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("tab cycler config loaded",
		"cdp_url", cfg.CDPURL(),
		"root_domain", domain.RootDomain,
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"store_path", cfg.StorePath,
		"defaults_file", cfg.DefaultsFile,
		"journal_dir", cfg.JournalDir,
		"poll_interval_ms", cfg.PollIntervalMS,
		"launch_browser", cfg.LaunchBrowser,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	defaults, err := settings.LoadDefaultsFile(cfg.DefaultsFile)
	if err != nil {
		slog.Warn("defaults file ignored", "path", cfg.DefaultsFile, "error", err)
	}

	store, err := kvstore.Open(ctx, cfg.StorePath)
	if err != nil {
		slog.Error("failed to open settings store", "path", cfg.StorePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	adapter := settings.NewAdapter(store, defaults)
	loaded := adapter.Load(ctx)

	var launcher *browser.Launcher
	if cfg.LaunchBrowser {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   loaded.URLList[0],
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind HTTP listener", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	dir := tabs.NewDirectory(cfg.CDPURL(), cfg.CDPTimeout())
	if err := dir.Connect(ctx); err != nil {
		slog.Warn("browser not reachable yet, will retry", "cdp_url", cfg.CDPURL(), "error", err)
	}
	defer func() { _ = dir.Close() }()
	watcher := tabs.NewWatcher(dir, cfg.PollInterval())

	alarms := alarm.NewService(alarmBuffer)
	defer alarms.Close()

	broker := events.NewBroker()
	deps := engine.Deps{
		Directory: dir,
		Events:    watcher.Events(),
		Timer:     alarms,
		Store:     adapter,
		Indicator: badge.NewIndicator(broker),
		Publisher: broker,
		Settings:  loaded,
	}
	if n := notify.New(cfg.NTFYEndpoint, &http.Client{Timeout: 10 * time.Second}); n != nil {
		deps.Notifier = n
	}
	eng := engine.New(deps)

	if cfg.JournalDir != "" {
		jw := journal.NewWriter(cfg.JournalDir, 10)
		defer func() { _ = jw.Close() }()
		go journal.Follow(ctx, broker, jw, events.FeedStatus)
		slog.Info("status journal enabled", "dir", cfg.JournalDir)
	}

	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("tab watcher stopped", "error", err)
		}
	}()
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("engine stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Handler:     api.NewServer(eng, broker),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		addr := ln.Addr().String()
		slog.Info("tab cycler listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("tab cycler server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	// Cancelling first ends open event streams so Shutdown does not wait on them.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("tab cycler shutdown failed", "error", err)
	}
	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		slog.Warn("engine did not stop in time")
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
