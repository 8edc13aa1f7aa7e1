// Package engine is the tab-cycling state machine: it tracks at most one
// matching tab, keeps one jittered one-shot alarm armed against it, navigates
// the tab through the configured URLs when the alarm fires, and answers the
// display client's requests.
//
// All state is owned by the goroutine running Run. Lifecycle events, alarm
// fires, badge ticks and requests are handled one at a time, each to
// completion, so no locks guard the engine's fields.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/dgnsrekt/tab_cycler/internal/alarm"
	"github.com/dgnsrekt/tab_cycler/internal/badge"
	"github.com/dgnsrekt/tab_cycler/internal/domain"
	"github.com/dgnsrekt/tab_cycler/internal/events"
	"github.com/dgnsrekt/tab_cycler/internal/settings"
	"github.com/dgnsrekt/tab_cycler/internal/types"
)

// AlarmName is the one-shot alarm the engine arms.
const AlarmName = "tabCycleAlarm"

// ErrStopped is returned by requests submitted after Run has returned.
var ErrStopped = errors.New("engine stopped")

// TabDirectory is the engine's view of the browser's tabs.
type TabDirectory interface {
	Get(ctx context.Context, id string) (types.TabInfo, error)
	Update(ctx context.Context, id, url string) error
	QueryActive(ctx context.Context) ([]types.TabInfo, error)
}

// Timer is a named one-shot timer whose fires arrive on Fired.
type Timer interface {
	Create(name string, delay time.Duration) error
	Clear(name string) bool
	Get(name string) (alarm.Alarm, bool)
	Fired() <-chan string
}

// SettingsStore persists saved settings.
type SettingsStore interface {
	Save(ctx context.Context, s settings.Settings) error
}

// Indicator is the badge surface.
type Indicator interface {
	SetText(text string) error
	SetColor(color string) error
}

// Publisher receives a status event after every state change.
type Publisher interface {
	PublishJSON(feed string, v any)
}

// Notifier is told why tracking stopped.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Deps wires an Engine to its collaborators. Publisher, Notifier, Now, Rand
// and Matches are optional.
type Deps struct {
	Directory TabDirectory
	Events    <-chan types.LifecycleEvent
	Timer     Timer
	Store     SettingsStore
	Indicator Indicator
	Publisher Publisher
	Notifier  Notifier
	Settings  settings.Settings
	Now       func() time.Time
	Rand      *rand.Rand
	Matches   func(location string) bool
}

type published struct {
	status string
	active bool
	dueAt  time.Time
}

// Engine owns the tracked target, schedule, cycle and settings.
type Engine struct {
	dir      TabDirectory
	events   <-chan types.LifecycleEvent
	timer    Timer
	store    SettingsStore
	badge    Indicator
	pub      Publisher
	notifier Notifier
	now      func() time.Time
	intN     func(n int) int
	matches  func(string) bool

	tracked  string
	dueAt    time.Time
	settings settings.Settings
	urls     []string
	index    int

	requests chan func()
	stopped  chan struct{}
	ticker   *time.Ticker
	last     published
}

func New(d Deps) *Engine {
	e := &Engine{
		dir:      d.Directory,
		events:   d.Events,
		timer:    d.Timer,
		store:    d.Store,
		badge:    d.Indicator,
		pub:      d.Publisher,
		notifier: d.Notifier,
		now:      d.Now,
		intN:     rand.IntN,
		matches:  d.Matches,
		requests: make(chan func()),
		stopped:  make(chan struct{}),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if d.Rand != nil {
		e.intN = d.Rand.IntN
	}
	if e.matches == nil {
		e.matches = domain.Matches
	}
	e.applySettings(d.Settings)
	return e
}

// Run processes events until ctx is done. It must be called once.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)

	if err := e.badge.SetColor(badge.Color); err != nil {
		slog.Debug("badge color failed", "error", err)
	}
	e.SyncActive(ctx)
	e.settle()
	slog.Info("engine started", "min_interval_s", e.settings.MinIntervalS, "max_interval_s", e.settings.MaxIntervalS, "urls", len(e.urls))

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case evt, ok := <-e.events:
			if !ok {
				e.events = nil
				slog.Warn("tab event stream closed")
				continue
			}
			e.onLifecycleEvent(ctx, evt)
		case name := <-e.timer.Fired():
			e.onFire(ctx, name)
		case fn := <-e.requests:
			fn()
		case <-e.tickC():
		}
		e.settle()
	}
}

// submit runs fn on the loop goroutine and waits for it to finish.
func (e *Engine) submit(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}
	select {
	case e.requests <- req:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) applySettings(s settings.Settings) {
	e.settings = s.Clone()
	e.urls = slices.Clone(s.URLList)
	e.index = 0
}

// settle refreshes the badge and publishes the status when it changed.
func (e *Engine) settle() {
	st := e.project(e.now())
	e.syncBadge(st.RemainingSeconds)

	cur := published{status: st.Status, active: st.IsActive, dueAt: e.dueAt}
	if cur == e.last {
		return
	}
	e.last = cur
	if e.pub != nil {
		e.pub.PublishJSON(events.FeedStatus, st)
	}
}

func (e *Engine) tickC() <-chan time.Time {
	if e.ticker == nil {
		return nil
	}
	return e.ticker.C
}

func (e *Engine) shutdown() {
	e.disarm()
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	if err := e.badge.SetText(""); err != nil {
		slog.Debug("badge clear failed", "error", err)
	}
	slog.Info("engine stopped", "tracked", e.tracked)
}
