package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/tab_cycler/internal/settings"
	"github.com/dgnsrekt/tab_cycler/internal/types"
)

// saveTimeout bounds a settings write once it no longer follows the caller.
const saveTimeout = 5 * time.Second

// GetTimerState returns the current projection and settings.
func (e *Engine) GetTimerState(ctx context.Context) (types.TimerState, error) {
	var out types.TimerState
	err := e.submit(ctx, func() { out = e.timerState() })
	return out, err
}

// SaveSettings validates and applies c. A SETTINGS_INVALID error leaves the
// engine untouched; a STORE_FAILURE error means the settings are applied in
// memory but were not persisted.
func (e *Engine) SaveSettings(ctx context.Context, c settings.Candidate) error {
	var out error
	if err := e.submit(ctx, func() { out = e.saveSettings(ctx, c) }); err != nil {
		return err
	}
	return out
}

func (e *Engine) timerState() types.TimerState {
	st := e.project(e.now())
	s := e.settings.Clone()
	return types.TimerState{
		RemainingSeconds: st.RemainingSeconds,
		Status:           st.Status,
		IsActive:         st.IsActive,
		MinIntervalS:     s.MinIntervalS,
		MaxIntervalS:     s.MaxIntervalS,
		URLList:          s.URLList,
	}
}

func (e *Engine) saveSettings(ctx context.Context, c settings.Candidate) error {
	s, err := settings.ParseCandidate(c)
	if err != nil {
		slog.Warn("settings rejected", "error", err)
		return err
	}

	e.applySettings(s)
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	saveErr := e.store.Save(saveCtx, s)
	cancel()
	if saveErr != nil {
		slog.Error("settings save failed, keeping them in memory", "error", saveErr)
	}
	slog.Info("settings applied", "min_interval_s", s.MinIntervalS, "max_interval_s", s.MaxIntervalS, "urls", len(s.URLList))

	if e.tracked != "" {
		e.arm(true)
	} else if err := e.badge.SetText(""); err != nil {
		slog.Debug("badge clear failed", "error", err)
	}
	return saveErr
}
