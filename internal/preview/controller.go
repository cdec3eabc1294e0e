// Package preview drives a play/stop cycle of the two media streams
// with a deliberate start-time skew equal to the current offset, so the
// user hears the corrected alignment before committing to an export.
package preview

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/driftfix/driftfix-agent/internal/offset"
)

// State is the controller state.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
)

// Stream names used in wake-up reporting.
const (
	StreamVideo = "video"
	StreamAudio = "audio"
)

// Controller is the dual-stream preview state machine. It owns both
// stream ports and the single cancellable wake-up timer; the offset
// store is read-only from here.
type Controller struct {
	video  StreamPort
	audio  StreamPort
	store  *offset.Store
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	stateFunc  func(State)
	timer      *time.Timer
	generation uint64
	pending    string  // stream awaiting its wake-up, "" if none
	pendingMs  float64 // scheduled delay of the pending wake-up
}

func NewController(video, audio StreamPort, store *offset.Store, logger *slog.Logger) *Controller {
	return &Controller{
		video:  video,
		audio:  audio,
		store:  store,
		logger: logger,
		state:  StateIdle,
	}
}

// Preview starts a new play cycle. Any pending wake-up from a prior
// cycle is superseded before the new one is scheduled, so at most one
// wake-up exists at a time. A positive offset means audio lags video,
// so video starts now and audio starts after the offset elapses; a
// negative offset flips the roles.
// SetStateFunc registers an observer for state transitions. Callbacks
// run outside the controller lock.
func (c *Controller) SetStateFunc(fn func(State)) {
	c.mu.Lock()
	c.stateFunc = fn
	c.mu.Unlock()
}

func (c *Controller) Preview() {
	c.mu.Lock()

	c.cancelWakeLocked()

	c.video.Pause()
	c.audio.Pause()
	c.video.Rewind()
	c.audio.Rewind()

	d := c.store.Get()
	delay := time.Duration(math.Abs(d) * float64(time.Millisecond))

	var lead StreamPort
	var lag StreamPort
	var lagName string
	if d >= 0 {
		lead, lag, lagName = c.video, c.audio, StreamAudio
	} else {
		lead, lag, lagName = c.audio, c.video, StreamVideo
	}

	c.state = StatePlaying
	lead.Play()

	c.generation++
	gen := c.generation
	c.pending = lagName
	c.pendingMs = math.Abs(d)
	c.timer = time.AfterFunc(delay, func() {
		c.wake(gen, lag)
	})

	if c.logger != nil {
		c.logger.Info("preview started", "offset_ms", d, "lagging_stream", lagName)
	}
	notify := c.stateFunc
	c.mu.Unlock()

	if notify != nil {
		notify(StatePlaying)
	}
}

// wake starts the lagging stream, unless a newer Preview or a Stop has
// superseded this schedule in the meantime.
func (c *Controller) wake(gen uint64, lag StreamPort) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.state != StatePlaying {
		return
	}

	c.pending = ""
	c.pendingMs = 0
	c.timer = nil
	lag.Play()
}

// Stop pauses both streams without rewinding and cancels any pending
// wake-up.
func (c *Controller) Stop() {
	c.mu.Lock()

	c.cancelWakeLocked()
	c.video.Pause()
	c.audio.Pause()
	c.state = StateIdle

	if c.logger != nil {
		c.logger.Info("preview stopped")
	}
	notify := c.stateFunc
	c.mu.Unlock()

	if notify != nil {
		notify(StateIdle)
	}
}

// cancelWakeLocked supersedes any scheduled wake-up. The generation
// bump guards against a timer callback that already fired but has not
// taken the lock yet.
func (c *Controller) cancelWakeLocked() {
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = ""
	c.pendingMs = 0
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot is a point-in-time view of the preview session.
type Snapshot struct {
	State          State   `json:"state"`
	PendingStream  string  `json:"pending_stream,omitempty"`
	PendingDelayMs float64 `json:"pending_delay_ms,omitempty"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:          c.state,
		PendingStream:  c.pending,
		PendingDelayMs: c.pendingMs,
	}
}
