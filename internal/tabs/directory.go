// Package tabs is the Tab Directory: browser page targets reached over the
// Chrome DevTools Protocol, and a watcher that turns target changes into tab
// lifecycle events.
package tabs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_cycler/internal/types"
)

const jsVisibilityState = `document.visibilityState`

type subscription struct {
	method string
	fn     func(sessionID string, params json.RawMessage)
}

// Directory answers get/update/query operations on browser tabs.
type Directory struct {
	cdpURL  string
	timeout time.Duration

	mu       sync.Mutex
	cdp      *rawCDP
	sessions map[target.ID]string
	subs     []subscription
}

func NewDirectory(cdpURL string, timeout time.Duration) *Directory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Directory{
		cdpURL:   cdpURL,
		timeout:  timeout,
		sessions: make(map[target.ID]string),
	}
}

// Connect dials the browser. Later calls reconnect on demand when the
// connection drops.
func (d *Directory) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectLocked(ctx)
}

func (d *Directory) connectLocked(ctx context.Context) error {
	if d.cdpURL == "" {
		return types.NewError(types.CodeCDPUnavailable, "missing CDP URL", nil)
	}
	if d.cdp != nil {
		d.cdp.close()
		d.cdp = nil
	}
	d.sessions = make(map[target.ID]string)

	cdp := newRawCDP(d.cdpURL)
	if err := cdp.connect(ctx); err != nil {
		return types.NewError(types.CodeCDPUnavailable, "connect to CDP failed", err)
	}
	for _, s := range d.subs {
		cdp.registerEventHandler(s.method, s.fn)
	}
	if len(d.subs) > 0 {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := cdp.setDiscoverTargets(callCtx)
		cancel()
		if err != nil {
			cdp.close()
			return types.NewError(types.CodeCDPUnavailable, "enable target discovery failed", err)
		}
	}
	d.cdp = cdp
	slog.Info("tab directory connected", "cdp_url", d.cdpURL, "subscriptions", len(d.subs))
	return nil
}

// Close detaches sessions and drops the connection.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cdp == nil {
		return nil
	}
	for id, sid := range d.sessions {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = d.cdp.detachFromTarget(ctx, sid)
		cancel()
		delete(d.sessions, id)
	}
	d.cdp.close()
	d.cdp = nil
	return nil
}

// Subscribe registers fn for a CDP event method on the current and every
// future connection, and turns target discovery on.
func (d *Directory) Subscribe(ctx context.Context, method string, fn func(sessionID string, params json.RawMessage)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, subscription{method: method, fn: fn})
	if d.cdp == nil || !d.cdp.alive() {
		return nil
	}
	d.cdp.registerEventHandler(method, fn)
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.cdp.setDiscoverTargets(callCtx); err != nil {
		return types.NewError(types.CodeCDPUnavailable, "enable target discovery failed", err)
	}
	return nil
}

// Get returns the current record of tab id.
func (d *Directory) Get(ctx context.Context, id string) (types.TabInfo, error) {
	pages, err := d.pages(ctx)
	if err != nil {
		return types.TabInfo{}, err
	}
	for _, p := range pages {
		if string(p.TargetID) == id {
			return d.inspect(ctx, p)
		}
	}
	return types.TabInfo{}, types.NewError(types.CodeTargetUnavailable, "tab not found: "+id, nil)
}

// Update navigates tab id to url.
func (d *Directory) Update(ctx context.Context, id, url string) error {
	cdp, err := d.conn(ctx)
	if err != nil {
		return err
	}
	sid, err := d.session(ctx, cdp, target.ID(id))
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := cdp.navigate(callCtx, sid, url); err != nil {
		d.drop(cdp, target.ID(id), sid)
		return types.NewError(types.CodeTargetUnavailable, "navigate tab "+id, err)
	}
	slog.Debug("tab navigated", "tab_id", id, "url", truncateURL(url))
	return nil
}

// QueryActive returns the tabs that are the active (visible) tab of their
// window.
func (d *Directory) QueryActive(ctx context.Context) ([]types.TabInfo, error) {
	pages, err := d.pages(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.TabInfo
	for _, p := range pages {
		info, err := d.inspect(ctx, p)
		if err != nil {
			slog.Debug("tab inspect failed", "tab_id", p.TargetID, "error", err)
			continue
		}
		if info.Active {
			out = append(out, info)
		}
	}
	return out, nil
}

// snapshot inspects every page target. present holds all page ids, including
// the ones whose inspection failed and are therefore missing from tabs.
func (d *Directory) snapshot(ctx context.Context) (tabs []types.TabInfo, present map[string]bool, err error) {
	pages, err := d.pages(ctx)
	if err != nil {
		return nil, nil, err
	}
	present = make(map[string]bool, len(pages))
	tabs = make([]types.TabInfo, 0, len(pages))
	for _, p := range pages {
		present[string(p.TargetID)] = true
		info, err := d.inspect(ctx, p)
		if err != nil {
			slog.Debug("tab inspect failed", "tab_id", p.TargetID, "error", err)
			continue
		}
		tabs = append(tabs, info)
	}
	return tabs, present, nil
}

func (d *Directory) pages(ctx context.Context) ([]*target.Info, error) {
	cdp, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	targets, err := cdp.listTargets(ctx)
	if err != nil {
		return nil, types.NewError(types.CodeCDPUnavailable, "failed to list targets", err)
	}
	out := targets[:0]
	present := make(map[target.ID]bool, len(targets))
	for _, t := range targets {
		if t.Type == "page" {
			out = append(out, t)
			present[t.TargetID] = true
		}
	}

	d.mu.Lock()
	for id := range d.sessions {
		if !present[id] {
			delete(d.sessions, id)
		}
	}
	d.mu.Unlock()
	return out, nil
}

func (d *Directory) inspect(ctx context.Context, t *target.Info) (types.TabInfo, error) {
	info := types.TabInfo{ID: string(t.TargetID), URL: t.URL, Title: t.Title}

	cdp, err := d.conn(ctx)
	if err != nil {
		return types.TabInfo{}, err
	}
	sid, err := d.session(ctx, cdp, t.TargetID)
	if err != nil {
		return types.TabInfo{}, err
	}

	state, err := d.visibility(ctx, cdp, sid)
	if err != nil {
		// A page committing a navigation has no execution context yet.
		d.drop(cdp, t.TargetID, sid)
		if sid, err = d.session(ctx, cdp, t.TargetID); err != nil {
			return types.TabInfo{}, err
		}
		if state, err = d.visibility(ctx, cdp, sid); err != nil {
			return types.TabInfo{}, types.NewError(types.CodeTargetTransient, "read visibility of "+info.ID, err)
		}
	}
	info.Active = state == "visible"

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if wid, err := cdp.windowForTarget(callCtx, t.TargetID); err == nil {
		info.WindowID = wid
	} else {
		slog.Debug("window lookup failed", "tab_id", info.ID, "error", err)
	}
	return info, nil
}

func (d *Directory) visibility(ctx context.Context, cdp *rawCDP, sid string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return cdp.evaluateString(callCtx, sid, jsVisibilityState)
}

// conn returns a live connection, reconnecting when the previous one died.
func (d *Directory) conn(ctx context.Context) (*rawCDP, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cdp != nil && d.cdp.alive() {
		return d.cdp, nil
	}
	if d.cdp != nil {
		slog.Warn("tab directory connection lost, reconnecting", "cdp_url", d.cdpURL)
	}
	if err := d.connectLocked(ctx); err != nil {
		return nil, err
	}
	return d.cdp, nil
}

// session returns a flat session for the target, attaching if needed.
func (d *Directory) session(ctx context.Context, cdp *rawCDP, id target.ID) (string, error) {
	d.mu.Lock()
	sid, ok := d.sessions[id]
	d.mu.Unlock()
	if ok {
		return sid, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	sid, err := cdp.attachToTarget(callCtx, id)
	if err != nil {
		return "", types.NewError(types.CodeTargetUnavailable, "attach to tab "+string(id), err)
	}

	d.mu.Lock()
	if won, ok := d.sessions[id]; ok {
		d.mu.Unlock()
		d.detach(cdp, sid)
		return won, nil
	}
	d.sessions[id] = sid
	d.mu.Unlock()
	slog.Debug("tab session attached", "tab_id", id, "session_id", sid)
	return sid, nil
}

// drop forgets the cached session sid of id and detaches it, so the next
// call attaches afresh. A session already replaced by another caller stays.
func (d *Directory) drop(cdp *rawCDP, id target.ID, sid string) {
	d.mu.Lock()
	if d.sessions[id] == sid {
		delete(d.sessions, id)
	}
	d.mu.Unlock()
	d.detach(cdp, sid)
}

func (d *Directory) detach(cdp *rawCDP, sid string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cdp.detachFromTarget(ctx, sid); err != nil {
		slog.Debug("tab session detach failed", "session_id", sid, "error", err)
	}
}

func truncateURL(url string) string {
	url = strings.TrimSpace(url)
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
