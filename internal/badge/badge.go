// Package badge is the short-text indicator surface. Changes are published
// on the events broker's badge feed for display clients.
package badge

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/tab_cycler/internal/events"
)

// Color is the indicator background used while a countdown is shown.
const Color = "#007bff"

// Publisher is the fan-out the indicator writes to.
type Publisher interface {
	PublishJSON(feed string, v any)
}

// Indicator holds the current badge text and colour.
type Indicator struct {
	pub Publisher

	mu    sync.Mutex
	text  string
	color string
}

func NewIndicator(pub Publisher) *Indicator {
	return &Indicator{pub: pub}
}

// SetText sets the badge label; "" clears it. Unchanged text is not
// republished.
func (i *Indicator) SetText(text string) error {
	i.mu.Lock()
	changed := i.text != text
	i.text = text
	i.mu.Unlock()
	if changed && i.pub != nil {
		i.pub.PublishJSON(events.FeedBadge, map[string]string{"text": text})
	}
	return nil
}

// SetColor sets the badge background colour.
func (i *Indicator) SetColor(color string) error {
	if color == "" {
		return fmt.Errorf("badge color is required")
	}
	i.mu.Lock()
	i.color = color
	i.mu.Unlock()
	if i.pub != nil {
		i.pub.PublishJSON(events.FeedBadge, map[string]string{"color": color})
	}
	slog.Debug("badge color set", "color", color)
	return nil
}

// Text returns the current label.
func (i *Indicator) Text() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.text
}

// State returns the current label and colour.
func (i *Indicator) State() (text, color string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.text, i.color
}
