package engine

import (
	"context"
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func TestFormatBadge(t *testing.T) {
	cases := []struct {
		in   *int
		want string
	}{
		{nil, ""},
		{intp(-1), ""},
		{intp(0), "0s"},
		{intp(59), "59s"},
		{intp(60), "1m"},
		{intp(61), "2m"},
		{intp(600), "10m"},
	}
	for _, c := range cases {
		if got := FormatBadge(c.in); got != c.want {
			t.Fatalf("FormatBadge(%v) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestProjectUntracked(t *testing.T) {
	h := newHarness(t)
	st := h.e.project(h.now)
	if st.IsActive || st.RemainingSeconds != nil || st.Status != "No active target" {
		t.Fatalf("project() = %+v; want inactive with no countdown", st)
	}
}

func TestProjectWaitingAndNext(t *testing.T) {
	h := newHarness(t, fiverrTab("T", "/inbox"))
	h.e.tracked = "T"
	if st := h.e.project(h.now); st.Status != statusWaiting || !st.IsActive || st.RemainingSeconds != nil {
		t.Fatalf("project() tracked but disarmed = %+v", st)
	}

	h.e.urls = []string{"https://www.fiverr.com/seller_dashboard", "https://www.fiverr.com/"}
	h.e.dueAt = h.now.Add(42 * time.Second)
	st := h.e.project(h.now)
	if st.Status != "Next: seller_dashboard in..." || st.RemainingSeconds == nil || *st.RemainingSeconds != 42 {
		t.Fatalf("project() armed = %+v", st)
	}

	h.e.index = 1
	if st := h.e.project(h.now); st.Status != "Next: page in..." {
		t.Fatalf("project() with trailing slash = %q; want %q", st.Status, "Next: page in...")
	}
}

func TestBadgeFollowsCountdown(t *testing.T) {
	h := newHarness(t, fiverrTab("T", "/inbox"))
	h.e.checkTab(context.Background(), "T")
	h.e.dueAt = h.now.Add(30 * time.Second)

	h.e.settle()
	if h.badge.text != "30s" || h.e.ticker == nil {
		t.Fatalf("badge = %q ticker = %v; want 30s and running", h.badge.text, h.e.ticker)
	}

	h.now = h.now.Add(time.Second)
	h.e.settle()
	if h.badge.text != "29s" {
		t.Fatalf("badge after a second = %q; want 29s", h.badge.text)
	}

	h.e.disarm()
	h.e.settle()
	if h.badge.text != "" || h.e.ticker != nil {
		t.Fatalf("badge = %q ticker = %v; want cleared and stopped", h.badge.text, h.e.ticker)
	}
}
