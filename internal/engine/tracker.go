package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/tab_cycler/internal/types"
)

const notifyTimeout = 10 * time.Second

// onLifecycleEvent reconciles the tracked target with one tab event.
func (e *Engine) onLifecycleEvent(ctx context.Context, evt types.LifecycleEvent) {
	switch evt.Kind {
	case types.EventRemoved:
		if evt.TabID != "" && evt.TabID == e.tracked {
			e.untrack("tab closed")
		}
		return
	case types.EventUpdated:
		if !evt.Changed.Relevant() {
			return
		}
	}
	e.checkTab(ctx, evt.TabID)
}

// SyncActive checks the currently active tabs. It runs once when the loop
// starts.
func (e *Engine) SyncActive(ctx context.Context) {
	tabs, err := e.dir.QueryActive(ctx)
	if err != nil {
		slog.Warn("active tab query failed", "error", err)
		if e.tracked != "" {
			e.untrack("active tab query failed")
		}
		return
	}
	if len(tabs) == 0 {
		if e.tracked != "" {
			e.untrack("no active tab")
		}
		return
	}

	pick := tabs[0]
	for _, tab := range tabs {
		if e.matches(tab.URL) {
			pick = tab
			break
		}
	}
	e.checkTab(ctx, pick.ID)
}

func (e *Engine) checkTab(ctx context.Context, id string) {
	if id == "" {
		return
	}
	tab, err := e.dir.Get(ctx, id)
	if types.HasCode(err, types.CodeTargetTransient) {
		slog.Debug("tab not readable yet, keeping state", "tab_id", id, "error", err)
		return
	}
	if err != nil {
		slog.Debug("tab lookup failed", "tab_id", id, "error", err)
		if id == e.tracked {
			e.untrack("tab unavailable")
		}
		return
	}

	if !tab.Active {
		if id == e.tracked {
			e.untrack("tab no longer active")
		}
		return
	}

	if e.matches(tab.URL) {
		if id != e.tracked {
			e.tracked = id
			e.index = 0
			slog.Info("tracking tab", "tab_id", id, "window_id", tab.WindowID, "url", tab.URL)
			e.arm(true)
		} else if e.dueAt.IsZero() {
			e.arm(false)
		}
		return
	}

	if e.tracked != "" {
		e.untrack("active tab left the domain")
	}
}

// untrack drops the tracked target and everything scheduled against it.
func (e *Engine) untrack(reason string) {
	id := e.tracked
	e.tracked = ""
	e.index = 0
	e.disarm()
	if err := e.badge.SetText(""); err != nil {
		slog.Debug("badge clear failed", "error", err)
	}
	slog.Info("tab untracked", "tab_id", id, "reason", reason)

	if e.notifier == nil || id == "" {
		return
	}
	go func(n Notifier, msg string) {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.Send(ctx, msg); err != nil {
			slog.Warn("untrack notification failed", "error", err)
		}
	}(e.notifier, "tab cycling stopped: "+reason)
}
