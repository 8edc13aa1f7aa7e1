package engine

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/tab_cycler/internal/types"
)

const (
	statusNoTarget = "No active target"
	statusWaiting  = "Waiting to schedule…"
)

// project reports the countdown and status text at now.
func (e *Engine) project(now time.Time) types.Status {
	st := types.Status{
		RemainingSeconds: e.remainingSeconds(now),
		IsActive:         e.tracked != "",
	}
	switch {
	case e.tracked == "":
		st.Status = statusNoTarget
		st.RemainingSeconds = nil
	case st.RemainingSeconds == nil:
		st.Status = statusWaiting
	default:
		st.Status = "Next: " + destinationLabel(e.nextURL()) + " in..."
	}
	return st
}

func (e *Engine) nextURL() string {
	if len(e.urls) == 0 {
		return ""
	}
	return e.urls[e.index]
}

// destinationLabel is the last path segment of url, or "page".
func destinationLabel(url string) string {
	seg := url[strings.LastIndex(url, "/")+1:]
	if seg == "" {
		return "page"
	}
	return seg
}

// FormatBadge renders a countdown for the badge: whole minutes rounded up
// from a minute on, seconds below that, nothing when there is no countdown.
func FormatBadge(seconds *int) string {
	if seconds == nil || *seconds < 0 {
		return ""
	}
	if *seconds >= 60 {
		return strconv.Itoa((*seconds+59)/60) + "m"
	}
	return strconv.Itoa(*seconds) + "s"
}

// syncBadge writes the countdown and keeps the one-second ticker running
// only while there is one.
func (e *Engine) syncBadge(remaining *int) {
	if err := e.badge.SetText(FormatBadge(remaining)); err != nil {
		slog.Debug("badge update failed", "error", err)
	}
	switch {
	case remaining != nil && e.ticker == nil:
		e.ticker = time.NewTicker(time.Second)
	case remaining == nil && e.ticker != nil:
		e.ticker.Stop()
		e.ticker = nil
	}
}
