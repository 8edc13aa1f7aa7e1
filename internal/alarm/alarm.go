// Package alarm is a named one-shot timer service. Each name holds at most
// one pending alarm; creating a name again replaces the previous alarm.
// Fires are delivered as names on a single channel.
package alarm

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrClosed = errors.New("alarm service closed")

// Alarm describes a pending alarm.
type Alarm struct {
	Name        string
	ScheduledAt time.Time
}

type entry struct {
	alarm Alarm
	gen   uint64
	timer *time.Timer
}

// Service owns the pending alarms.
type Service struct {
	mu      sync.Mutex
	alarms  map[string]*entry
	gen     uint64
	closed  bool
	done    chan struct{}
	fired   chan string
	nowFunc func() time.Time
}

// NewService returns a service whose fire channel buffers up to buf names.
func NewService(buf int) *Service {
	if buf < 1 {
		buf = 1
	}
	return &Service{
		alarms:  make(map[string]*entry),
		done:    make(chan struct{}),
		fired:   make(chan string, buf),
		nowFunc: time.Now,
	}
}

// Fired delivers the name of each alarm as it comes due.
func (s *Service) Fired() <-chan string {
	return s.fired
}

// Create schedules name to fire after delay, replacing any pending alarm of
// the same name.
func (s *Service) Create(name string, delay time.Duration) error {
	if name == "" {
		return errors.New("alarm name is required")
	}
	if delay <= 0 {
		return fmt.Errorf("alarm %s: delay must be positive, got %v", name, delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.clearLocked(name)
	s.gen++
	gen := s.gen
	e := &entry{alarm: Alarm{Name: name, ScheduledAt: s.nowFunc().Add(delay)}, gen: gen}
	e.timer = time.AfterFunc(delay, func() { s.fire(name, gen) })
	s.alarms[name] = e
	slog.Debug("alarm created", "name", name, "delay_ms", delay.Milliseconds())
	return nil
}

// Clear drops the pending alarm of name. It reports whether one existed.
func (s *Service) Clear(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(name)
}

// Get returns the pending alarm of name.
func (s *Service) Get(name string) (Alarm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.alarms[name]
	if !ok {
		return Alarm{}, false
	}
	return e.alarm, true
}

// Close stops every pending alarm and releases fires still waiting for a
// reader. Create fails afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for name := range s.alarms {
		s.clearLocked(name)
	}
	s.closed = true
	close(s.done)
}

func (s *Service) clearLocked(name string) bool {
	e, ok := s.alarms[name]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.alarms, name)
	return true
}

func (s *Service) fire(name string, gen uint64) {
	s.mu.Lock()
	e, ok := s.alarms[name]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.alarms, name)
	s.mu.Unlock()

	// The entry is already gone, so the name has to reach the consumer.
	select {
	case s.fired <- name:
	case <-s.done:
		slog.Debug("alarm fire discarded, service closed", "name", name)
	}
}
