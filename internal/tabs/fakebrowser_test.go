package tabs

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type fakePage struct {
	id      string
	url     string
	visible bool
	window  int64
	// evalFailures makes that many visibility reads fail the way a page
	// mid-navigation does.
	evalFailures int
}

// fakeBrowser speaks the subset of CDP the directory uses.
type fakeBrowser struct {
	srv *httptest.Server

	mu        sync.Mutex
	pages     []*fakePage
	navigated []string
	discover  bool
	attaches  int
	sessions  map[string]string
	detached  []string
	conns     []net.Conn
	writeMu   sync.Mutex
}

func newFakeBrowser(t *testing.T, pages ...*fakePage) *fakeBrowser {
	t.Helper()
	f := &fakeBrowser{pages: pages, sessions: make(map[string]string)}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/browser/fake",
		})
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		entries := []map[string]string{{"id": "worker-1", "type": "service_worker", "url": "https://x/sw.js"}}
		for _, p := range f.pages {
			entries = append(entries, map[string]string{"id": p.id, "type": "page", "url": p.url, "title": p.id})
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(entries)
	})
	mux.HandleFunc("/devtools/browser/fake", f.serveWS)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.mu.Lock()
		for _, c := range f.conns {
			_ = c.Close()
		}
		f.mu.Unlock()
		f.srv.Close()
	})
	return f
}

func (f *fakeBrowser) URL() string { return f.srv.URL }

func (f *fakeBrowser) page(id string) *fakePage {
	for _, p := range f.pages {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (f *fakeBrowser) setVisible(id string, visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.page(id); p != nil {
		p.visible = visible
	}
}

func (f *fakeBrowser) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.pages {
		if p.id == id {
			f.pages = append(f.pages[:i], f.pages[i+1:]...)
			return
		}
	}
}

func (f *fakeBrowser) failEvaluate(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.page(id); p != nil {
		p.evalFailures = n
	}
}

func (f *fakeBrowser) detachedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.detached...)
}

func (f *fakeBrowser) liveSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeBrowser) attachCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attaches
}

// bySession resolves a session id to its page.
func (f *fakeBrowser) bySession(sid string) *fakePage {
	id, ok := f.sessions[sid]
	if !ok {
		return nil
	}
	return f.page(id)
}

func (f *fakeBrowser) discovering() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discover
}

// push sends an event to every connected client.
func (f *fakeBrowser) push(method string, params any) {
	data, _ := json.Marshal(map[string]any{"method": method, "params": params})
	f.mu.Lock()
	conns := append([]net.Conn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		f.writeMu.Lock()
		_ = wsutil.WriteServerText(c, data)
		f.writeMu.Unlock()
	}
}

func (f *fakeBrowser) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	go func() {
		defer conn.Close()
		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}
			var req struct {
				ID        int64           `json:"id"`
				Method    string          `json:"method"`
				SessionID string          `json:"sessionId"`
				Params    json.RawMessage `json:"params"`
			}
			if json.Unmarshal(data, &req) != nil {
				continue
			}
			result, errMsg := f.handle(req.Method, req.SessionID, req.Params)
			resp := map[string]any{"id": req.ID}
			if errMsg != "" {
				resp["error"] = map[string]any{"code": -32000, "message": errMsg}
			} else {
				resp["result"] = result
			}
			out, _ := json.Marshal(resp)
			f.writeMu.Lock()
			err = wsutil.WriteServerText(conn, out)
			f.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}()
}

func (f *fakeBrowser) handle(method, sessionID string, raw json.RawMessage) (any, string) {
	var params struct {
		TargetID  string `json:"targetId"`
		SessionID string `json:"sessionId"`
		URL       string `json:"url"`
	}
	_ = json.Unmarshal(raw, &params)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch method {
	case "Target.attachToTarget":
		if f.page(params.TargetID) == nil {
			return nil, "No target with given id found"
		}
		f.attaches++
		sid := fmt.Sprintf("s-%s-%d", params.TargetID, f.attaches)
		f.sessions[sid] = params.TargetID
		return map[string]string{"sessionId": sid}, ""
	case "Target.detachFromTarget":
		delete(f.sessions, params.SessionID)
		f.detached = append(f.detached, params.SessionID)
		return map[string]any{}, ""
	case "Target.setDiscoverTargets":
		f.discover = true
		return map[string]any{}, ""
	case "Browser.getWindowForTarget":
		p := f.page(params.TargetID)
		if p == nil {
			return nil, "No target with given id found"
		}
		return map[string]any{"windowId": p.window}, ""
	case "Runtime.evaluate":
		p := f.bySession(sessionID)
		if p == nil {
			return nil, "Session with given id not found"
		}
		if p.evalFailures > 0 {
			p.evalFailures--
			return nil, "Cannot find default execution context"
		}
		state := "hidden"
		if p.visible {
			state = "visible"
		}
		return map[string]any{"result": map[string]any{"type": "string", "value": state}}, ""
	case "Page.navigate":
		p := f.bySession(sessionID)
		if p == nil {
			return nil, "Session with given id not found"
		}
		if strings.Contains(params.URL, "unreachable") {
			return map[string]string{"frameId": "f", "errorText": "net::ERR_NAME_NOT_RESOLVED"}, ""
		}
		p.url = params.URL
		f.navigated = append(f.navigated, params.URL)
		return map[string]string{"frameId": "f"}, ""
	}
	return nil, "unknown method " + method
}
