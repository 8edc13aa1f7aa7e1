package tabs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_cycler/internal/types"
)

const eventBufSize = 256

type tabState struct {
	url     string
	visible bool
}

// Watcher turns CDP target events and periodic visibility polls into tab
// lifecycle events.
type Watcher struct {
	dir      *Directory
	interval time.Duration
	events   chan types.LifecycleEvent

	mu    sync.Mutex
	known map[string]tabState
}

func NewWatcher(dir *Directory, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		events:   make(chan types.LifecycleEvent, eventBufSize),
		known:    make(map[string]tabState),
	}
}

// Events delivers lifecycle events in the order they were observed.
func (w *Watcher) Events() <-chan types.LifecycleEvent {
	return w.events
}

// Run subscribes to target events and polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.dir.Subscribe(ctx, "Target.targetInfoChanged", w.onTargetInfoChanged); err != nil {
		slog.Warn("subscribe targetInfoChanged failed", "error", err)
	}
	if err := w.dir.Subscribe(ctx, "Target.targetDestroyed", w.onTargetDestroyed); err != nil {
		slog.Warn("subscribe targetDestroyed failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll diffs the current page targets against the last observation.
func (w *Watcher) poll(ctx context.Context) {
	tabs, present, err := w.dir.snapshot(ctx)
	if err != nil {
		slog.Debug("tab poll failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, tab := range tabs {
		prev, seen := w.known[tab.ID]
		w.known[tab.ID] = tabState{url: tab.URL, visible: tab.Active}
		switch {
		case !seen:
			if tab.Active {
				w.emit(types.LifecycleEvent{Kind: types.EventActivated, TabID: tab.ID})
			}
		case tab.Active && !prev.visible:
			w.emit(types.LifecycleEvent{Kind: types.EventActivated, TabID: tab.ID})
		case !tab.Active && prev.visible:
			w.emit(types.LifecycleEvent{Kind: types.EventUpdated, TabID: tab.ID, Changed: types.Change{Activity: true}})
		case tab.URL != prev.url:
			w.emit(types.LifecycleEvent{Kind: types.EventUpdated, TabID: tab.ID, Changed: types.Change{URL: tab.URL}})
		}
	}

	for id := range w.known {
		if !present[id] {
			delete(w.known, id)
			w.emit(types.LifecycleEvent{Kind: types.EventRemoved, TabID: id})
		}
	}
}

func (w *Watcher) onTargetInfoChanged(_ string, params json.RawMessage) {
	var evt target.EventTargetInfoChanged
	if err := json.Unmarshal(params, &evt); err != nil || evt.TargetInfo == nil {
		return
	}
	info := evt.TargetInfo
	if info.Type != "page" {
		return
	}
	id := string(info.TargetID)

	w.mu.Lock()
	defer w.mu.Unlock()
	prev, seen := w.known[id]
	if !seen || prev.url == info.URL {
		return
	}
	prev.url = info.URL
	w.known[id] = prev
	w.emit(types.LifecycleEvent{Kind: types.EventUpdated, TabID: id, Changed: types.Change{URL: info.URL}})
}

func (w *Watcher) onTargetDestroyed(_ string, params json.RawMessage) {
	var evt target.EventTargetDestroyed
	if err := json.Unmarshal(params, &evt); err != nil || evt.TargetID == "" {
		return
	}
	id := string(evt.TargetID)

	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.known, id)
	w.emit(types.LifecycleEvent{Kind: types.EventRemoved, TabID: id})
}

// emit must not block: it runs on the CDP read loop.
func (w *Watcher) emit(evt types.LifecycleEvent) {
	select {
	case w.events <- evt:
	default:
		slog.Warn("tab event dropped, engine not keeping up", "kind", evt.Kind, "tab_id", evt.TabID)
	}
}
