// Package offset holds the single source of truth for the current
// audio/video skew candidate. Positive values mean audio lags video and
// must be delayed; negative values mean audio leads.
package offset

import (
	"sync"

	"github.com/driftfix/driftfix-agent/internal/config"
)

// Source records where the current value came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceServer Source = "server"
	SourceUser   Source = "user"
)

// Store is a pure state holder for the candidate offset in
// milliseconds. It never rounds to the control's step granularity;
// rounding is a presentation concern of the numeric control.
type Store struct {
	mu     sync.Mutex
	ms     float64
	source Source
	subs   []func(ms float64, source Source)
}

func NewStore() *Store {
	return &Store{source: SourceNone}
}

// SetFromDetection stores a server-detected offset verbatim, without
// clamping. The raw value is kept until the user reconciles it through
// the bounded control.
func (s *Store) SetFromDetection(ms float64) {
	s.mu.Lock()
	s.ms = ms
	s.source = SourceServer
	subs := append(([]func(ms float64, source Source))(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ms, SourceServer)
	}
}

// SetFromUser stores a user-adjusted offset, clamped to the control
// range.
func (s *Store) SetFromUser(ms float64) {
	if ms > config.OffsetMaxMs {
		ms = config.OffsetMaxMs
	}
	if ms < config.OffsetMinMs {
		ms = config.OffsetMinMs
	}

	s.mu.Lock()
	s.ms = ms
	s.source = SourceUser
	subs := append(([]func(ms float64, source Source))(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ms, SourceUser)
	}
}

// Get returns the current semantic offset value.
func (s *Store) Get() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ms
}

// GetSource returns the provenance of the current value.
func (s *Store) GetSource() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Reset returns the store to zero with no provenance. Called when a new
// asset is selected.
func (s *Store) Reset() {
	s.mu.Lock()
	s.ms = 0
	s.source = SourceNone
	s.mu.Unlock()
}

// Subscribe registers a callback invoked after every mutation. Callbacks
// run outside the store lock.
func (s *Store) Subscribe(fn func(ms float64, source Source)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}
