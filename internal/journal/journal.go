// Package journal appends engine events to JSONL files partitioned by UTC
// date, one rotating file per feed and day.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/tab_cycler/internal/events"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one journal line.
type Entry struct {
	Time  time.Time       `json:"time"`
	ID    string          `json:"id,omitempty"`
	Feed  string          `json:"feed"`
	Event json.RawMessage `json:"event"`
}

type file struct {
	date string
	out  *lumberjack.Logger
}

// Writer owns the open file of each feed.
type Writer struct {
	dir       string
	maxSizeMB int
	now       func() time.Time

	mu    sync.Mutex
	files map[string]*file
}

func NewWriter(dir string, maxSizeMB int) *Writer {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &Writer{dir: dir, maxSizeMB: maxSizeMB, now: time.Now, files: make(map[string]*file)}
}

// Append writes e under <dir>/<date>/<feed>.jsonl.
func (w *Writer) Append(e Entry) error {
	if e.Feed == "" {
		return fmt.Errorf("journal entry without feed")
	}
	if e.Time.IsZero() {
		e.Time = w.now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.fileFor(e.Feed, e.Time.UTC().Format(time.DateOnly))
	if err != nil {
		return err
	}
	if _, err := f.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

func (w *Writer) fileFor(feed, date string) (*file, error) {
	if f, ok := w.files[feed]; ok && f.date == date {
		return f, nil
	} else if ok {
		_ = f.out.Close()
	}

	dir := filepath.Join(w.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f := &file{
		date: date,
		out: &lumberjack.Logger{
			Filename:   filepath.Join(dir, feed+".jsonl"),
			MaxSize:    w.maxSizeMB,
			MaxBackups: 20,
			MaxAge:     30,
		},
	}
	w.files[feed] = f
	slog.Debug("journal file opened", "feed", feed, "date", date, "file", f.out.Filename)
	return f, nil
}

// Close closes every open file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var first error
	for feed, f := range w.files {
		if err := f.out.Close(); err != nil && first == nil {
			first = err
		}
		delete(w.files, feed)
	}
	return first
}

// Follow journals broker events of the given feeds until ctx is done.
func Follow(ctx context.Context, broker *events.Broker, w *Writer, feeds ...string) {
	want := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		want[f] = true
	}

	id, ch := broker.Subscribe()
	defer broker.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if !want[evt.Feed] {
				continue
			}
			err := w.Append(Entry{ID: evt.ID, Feed: evt.Feed, Event: json.RawMessage(evt.Payload)})
			if err != nil {
				slog.Warn("journal append failed", "feed", evt.Feed, "error", err)
			}
		}
	}
}
