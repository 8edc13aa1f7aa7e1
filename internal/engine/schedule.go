package engine

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dgnsrekt/tab_cycler/internal/settings"
	"github.com/dgnsrekt/tab_cycler/internal/types"
)

const floorDelayMS = settings.FloorIntervalS * 1000

// arm replaces the pending alarm with a freshly drawn one. Without a tracked
// target the alarm stays off unless force is set.
func (e *Engine) arm(force bool) {
	e.disarm()
	if e.tracked == "" && !force {
		slog.Debug("arm skipped, no tracked tab")
		return
	}

	delay := e.drawDelay()
	if err := e.timer.Create(AlarmName, delay); err != nil {
		slog.Warn("arm failed", "error", types.NewError(types.CodeTimerArmFailure, "create "+AlarmName, err))
		return
	}
	e.dueAt = e.now().Add(delay)
	slog.Info("next cycle scheduled", "tab_id", e.tracked, "delay_ms", delay.Milliseconds(), "due_at", e.dueAt.Format(time.RFC3339))
}

func (e *Engine) disarm() {
	if e.timer.Clear(AlarmName) {
		slog.Debug("alarm cleared", "name", AlarmName)
	}
	e.dueAt = time.Time{}
}

// drawDelay picks a delay uniformly from the clamped interval bounds,
// inclusive at both ends, in whole milliseconds.
func (e *Engine) drawDelay() time.Duration {
	lower := max(floorDelayMS, e.settings.MinIntervalS*1000)
	upper := max(lower, e.settings.MaxIntervalS*1000)
	ms := lower + e.intN(upper-lower+1)
	return time.Duration(ms) * time.Millisecond
}

// onFire performs one cycling action on the tracked tab and re-arms.
func (e *Engine) onFire(ctx context.Context, name string) {
	if name != AlarmName {
		return
	}
	if _, pending := e.timer.Get(AlarmName); pending {
		slog.Debug("stale alarm fire ignored", "name", name)
		return
	}
	e.dueAt = time.Time{}

	if e.tracked == "" {
		slog.Debug("alarm fired with no tracked tab")
		return
	}

	tab, err := e.dir.Get(ctx, e.tracked)
	if types.HasCode(err, types.CodeTargetTransient) {
		// Skip this cycle; the tab is still open.
		slog.Warn("tracked tab not readable, retrying next cycle", "tab_id", e.tracked, "error", err)
		e.arm(false)
		return
	}
	if err != nil {
		slog.Warn("tracked tab lookup failed", "tab_id", e.tracked, "error", err)
		e.untrack("tab unavailable")
		return
	}
	if !e.matches(tab.URL) {
		e.untrack("tab left the domain")
		return
	}

	if len(e.urls) == 0 {
		e.arm(false)
		return
	}
	next := e.urls[e.index]
	if strings.TrimSpace(next) == "" {
		slog.Warn("empty cycle url skipped", "index", e.index)
	} else if err := e.dir.Update(ctx, e.tracked, next); err != nil {
		slog.Warn("cycle navigation failed", "tab_id", e.tracked, "url", next, "error", err)
	} else {
		slog.Info("tab cycled", "tab_id", e.tracked, "index", e.index, "url", next)
	}
	e.index = (e.index + 1) % len(e.urls)
	e.arm(false)
}

// remainingSeconds is nil when nothing is scheduled.
func (e *Engine) remainingSeconds(now time.Time) *int {
	if e.dueAt.IsZero() {
		return nil
	}
	secs := int(math.Round(float64(e.dueAt.Sub(now).Milliseconds()) / 1000))
	secs = max(0, secs)
	return &secs
}
