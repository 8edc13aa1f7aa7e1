package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/tab_cycler/internal/alarm"
	"github.com/dgnsrekt/tab_cycler/internal/events"
	"github.com/dgnsrekt/tab_cycler/internal/settings"
	"github.com/dgnsrekt/tab_cycler/internal/types"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeDirectory struct {
	mu        sync.Mutex
	tabs      map[string]types.TabInfo
	updated   []string
	updateErr error
	queryErr  error
	getErr    error
}

func (f *fakeDirectory) Get(_ context.Context, id string) (types.TabInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return types.TabInfo{}, f.getErr
	}
	tab, ok := f.tabs[id]
	if !ok {
		return types.TabInfo{}, types.NewError(types.CodeTargetUnavailable, "tab not found: "+id, nil)
	}
	return tab, nil
}

func (f *fakeDirectory) Update(_ context.Context, id, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	tab, ok := f.tabs[id]
	if !ok {
		return types.NewError(types.CodeTargetUnavailable, "tab not found: "+id, nil)
	}
	tab.URL = url
	f.tabs[id] = tab
	f.updated = append(f.updated, url)
	return nil
}

func (f *fakeDirectory) QueryActive(context.Context) ([]types.TabInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []types.TabInfo
	for _, id := range []string{"A", "B", "C", "D"} {
		if tab, ok := f.tabs[id]; ok && tab.Active {
			out = append(out, tab)
		}
	}
	return out, nil
}

func (f *fakeDirectory) set(tab types.TabInfo) {
	f.mu.Lock()
	f.tabs[tab.ID] = tab
	f.mu.Unlock()
}

func (f *fakeDirectory) remove(id string) {
	f.mu.Lock()
	delete(f.tabs, id)
	f.mu.Unlock()
}

func (f *fakeDirectory) navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updated...)
}

type fakeTimer struct {
	pending   map[string]time.Duration
	created   []time.Duration
	createErr error
	fired     chan string
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{pending: make(map[string]time.Duration), fired: make(chan string, 4)}
}

func (f *fakeTimer) Create(name string, delay time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.pending[name] = delay
	f.created = append(f.created, delay)
	return nil
}

func (f *fakeTimer) Clear(name string) bool {
	_, ok := f.pending[name]
	delete(f.pending, name)
	return ok
}

func (f *fakeTimer) Get(name string) (alarm.Alarm, bool) {
	delay, ok := f.pending[name]
	if !ok {
		return alarm.Alarm{}, false
	}
	return alarm.Alarm{Name: name, ScheduledAt: testNow.Add(delay)}, true
}

func (f *fakeTimer) Fired() <-chan string { return f.fired }

// due consumes the pending alarm the way the real service does before
// delivering a fire.
func (f *fakeTimer) due(name string) {
	delete(f.pending, name)
}

type fakeStore struct {
	saved []settings.Settings
	err   error
	// ctxErr and hasDeadline describe the context the last save ran under.
	ctxErr      error
	hasDeadline bool
}

func (f *fakeStore) Save(ctx context.Context, s settings.Settings) error {
	f.ctxErr = ctx.Err()
	_, f.hasDeadline = ctx.Deadline()
	if f.err != nil {
		return types.NewError(types.CodeStoreFailure, "write settings", f.err)
	}
	f.saved = append(f.saved, s)
	return nil
}

type fakeIndicator struct {
	mu    sync.Mutex
	text  string
	color string
	texts []string
}

func (f *fakeIndicator) SetText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if text != f.text {
		f.texts = append(f.texts, text)
	}
	f.text = text
	return nil
}

func (f *fakeIndicator) SetColor(color string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.color = color
	return nil
}

type fakePublisher struct {
	feeds []string
	last  any
}

func (f *fakePublisher) PublishJSON(feed string, v any) {
	f.feeds = append(f.feeds, feed)
	f.last = v
}

type fakeNotifier struct {
	sent chan string
}

func (f *fakeNotifier) Send(_ context.Context, message string) error {
	f.sent <- message
	return nil
}

type harness struct {
	e     *Engine
	dir   *fakeDirectory
	timer *fakeTimer
	store *fakeStore
	badge *fakeIndicator
	pub   *fakePublisher
	now   time.Time
}

func newHarness(t *testing.T, tabs ...types.TabInfo) *harness {
	t.Helper()
	h := &harness{
		dir:   &fakeDirectory{tabs: make(map[string]types.TabInfo)},
		timer: newFakeTimer(),
		store: &fakeStore{},
		badge: &fakeIndicator{},
		pub:   &fakePublisher{},
		now:   testNow,
	}
	for _, tab := range tabs {
		h.dir.tabs[tab.ID] = tab
	}
	h.e = New(Deps{
		Directory: h.dir,
		Timer:     h.timer,
		Store:     h.store,
		Indicator: h.badge,
		Publisher: h.pub,
		Settings: settings.Settings{
			MinIntervalS: 300,
			MaxIntervalS: 600,
			URLList:      []string{"https://www.fiverr.com/A", "https://www.fiverr.com/B", "https://www.fiverr.com/C"},
		},
		Now:  func() time.Time { return h.now },
		Rand: rand.New(rand.NewPCG(1, 2)),
	})
	return h
}

func fiverrTab(id, path string) types.TabInfo {
	return types.TabInfo{ID: id, URL: "https://www.fiverr.com" + path, Active: true, WindowID: 1}
}

func TestRunServesRequestsAndFires(t *testing.T) {
	h := newHarness(t, fiverrTab("A", "/inbox"))
	lifecycle := make(chan types.LifecycleEvent, 1)
	h.e.events = lifecycle

	// The loop owns the fake timer from here on; fires are injected only
	// through its channel.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.e.Run(ctx) }()

	state, err := h.e.GetTimerState(ctx)
	if err != nil {
		t.Fatalf("GetTimerState() error = %v", err)
	}
	if !state.IsActive || state.RemainingSeconds == nil {
		t.Fatalf("GetTimerState() after startup = %+v; want tracked and armed", state)
	}

	err = h.e.submit(ctx, func() { h.timer.due(AlarmName) })
	if err != nil {
		t.Fatalf("submit() error = %v", err)
	}
	h.timer.fired <- AlarmName

	deadline := time.Now().Add(2 * time.Second)
	for len(h.dir.navigations()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.dir.navigations(); len(got) != 1 || got[0] != "https://www.fiverr.com/A" {
		t.Fatalf("navigations = %v; want [https://www.fiverr.com/A]", got)
	}

	lifecycle <- types.LifecycleEvent{Kind: types.EventRemoved, TabID: "A"}
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, err = h.e.GetTimerState(ctx)
		if err != nil {
			t.Fatalf("GetTimerState() error = %v", err)
		}
		if !state.IsActive {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if state.IsActive || state.Status != statusNoTarget {
		t.Fatalf("GetTimerState() after removal = %+v; want untracked", state)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v; want context.Canceled", err)
	}
	if _, err := h.e.GetTimerState(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("GetTimerState() after stop error = %v; want ErrStopped", err)
	}
	if h.badge.color == "" {
		t.Fatalf("badge color was never set")
	}
}

func TestSettlePublishesStatusOnChange(t *testing.T) {
	h := newHarness(t, fiverrTab("A", "/inbox"))

	h.e.settle()
	h.e.settle()
	if len(h.pub.feeds) != 1 || h.pub.feeds[0] != events.FeedStatus {
		t.Fatalf("published feeds = %v; want one status event", h.pub.feeds)
	}

	h.e.checkTab(context.Background(), "A")
	h.e.settle()
	if len(h.pub.feeds) != 2 {
		t.Fatalf("published feeds = %v; want a second status event after tracking", h.pub.feeds)
	}
	st, ok := h.pub.last.(types.Status)
	if !ok || !st.IsActive {
		t.Fatalf("last status = %#v; want active", h.pub.last)
	}
}

func TestUntrackNotifies(t *testing.T) {
	h := newHarness(t, fiverrTab("A", "/inbox"))
	n := &fakeNotifier{sent: make(chan string, 1)}
	h.e.notifier = n

	h.e.checkTab(context.Background(), "A")
	h.e.onLifecycleEvent(context.Background(), types.LifecycleEvent{Kind: types.EventRemoved, TabID: "A"})

	select {
	case msg := <-n.sent:
		if msg != "tab cycling stopped: tab closed" {
			t.Fatalf("notification = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification sent")
	}
}
