package preview

import (
	"sync"
	"time"
)

// StreamPort is a playback-capable resource handle. The controller owns
// two of them (video and audio) and drives them in lockstep with the
// offset skew.
type StreamPort interface {
	Play()
	Pause()
	Rewind()
}

// PortState is a point-in-time view of one stream port.
type PortState struct {
	Name      string    `json:"name"`
	Playing   bool      `json:"playing"`
	AtZero    bool      `json:"at_zero"`
	ChangedAt time.Time `json:"changed_at"`
}

// StatePort mirrors play/pause/rewind transitions so the browser
// surface can poll them. It is the production StreamPort.
type StatePort struct {
	name string

	mu        sync.Mutex
	playing   bool
	atZero    bool
	changedAt time.Time

	// onEvent, when set, observes every transition. Tests use it to
	// capture exact wake-up timing.
	onEvent func(event string, at time.Time)
}

func NewStatePort(name string) *StatePort {
	return &StatePort{name: name, atZero: true}
}

// SetEventFunc installs a transition observer.
func (p *StatePort) SetEventFunc(fn func(event string, at time.Time)) {
	p.mu.Lock()
	p.onEvent = fn
	p.mu.Unlock()
}

func (p *StatePort) Play() {
	p.transition("play", func() {
		p.playing = true
		p.atZero = false
	})
}

func (p *StatePort) Pause() {
	p.transition("pause", func() {
		p.playing = false
	})
}

func (p *StatePort) Rewind() {
	p.transition("rewind", func() {
		p.atZero = true
	})
}

func (p *StatePort) transition(event string, apply func()) {
	now := time.Now()
	p.mu.Lock()
	apply()
	p.changedAt = now
	fn := p.onEvent
	p.mu.Unlock()

	if fn != nil {
		fn(event, now)
	}
}

// State returns a snapshot of the port.
func (p *StatePort) State() PortState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PortState{
		Name:      p.name,
		Playing:   p.playing,
		AtZero:    p.atZero,
		ChangedAt: p.changedAt,
	}
}

// Playing reports whether the port is currently playing.
func (p *StatePort) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
