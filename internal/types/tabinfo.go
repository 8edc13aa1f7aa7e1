package types

// TabInfo is the Tab Directory's record for one browser page target.
type TabInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	WindowID int64  `json:"window_id,omitempty"`
	Active   bool   `json:"active"` // visible tab of its window
}

// EventKind names a tab lifecycle notification.
type EventKind string

const (
	EventActivated EventKind = "activated"
	EventUpdated   EventKind = "updated"
	EventRemoved   EventKind = "removed"
)

// Change describes what an Updated event changed.
type Change struct {
	URL      string `json:"url,omitempty"`
	Activity bool   `json:"activity,omitempty"`
}

// Relevant reports whether an update is worth re-checking the tab for.
func (c Change) Relevant() bool {
	return c.URL != "" || c.Activity
}

// LifecycleEvent is delivered by the Tab Directory watcher.
type LifecycleEvent struct {
	Kind    EventKind
	TabID   string
	Changed Change
}

