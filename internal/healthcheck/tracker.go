package healthcheck

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Snapshot describes the latest poll cycle.
type Snapshot struct {
	LastCycleTime   *time.Time `json:"last_cycle_time"`
	CycleDurationMS int64      `json:"cycle_duration_ms"`
	LastOutcome     string     `json:"last_outcome,omitempty"`
	Cursor          int64      `json:"cursor"`
}

// Tracker records cycle results for health endpoints. It is written by the
// poll loop and read by HTTP handlers.
type Tracker struct {
	clock         clockwork.Clock
	mu            sync.RWMutex
	lastCycle     time.Time
	cycleDuration time.Duration
	lastOutcome   string
	cursor        int64
	ready         bool
}

// NewTracker constructs a Tracker using the given clock (nil means real time).
func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{clock: clock}
}

// RecordCycle stores the result of a finished cycle and marks the tracker ready.
func (t *Tracker) RecordCycle(duration time.Duration, outcome string, cursor int64) {
	if t == nil {
		return
	}
	now := t.clock.Now().UTC()
	t.mu.Lock()
	t.lastCycle = now
	t.cycleDuration = duration
	t.lastOutcome = outcome
	t.cursor = cursor
	t.ready = true
	t.mu.Unlock()
}

// Snapshot returns the current tracker snapshot.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if !t.lastCycle.IsZero() {
		value := t.lastCycle
		last = &value
	}
	return Snapshot{
		LastCycleTime:   last,
		CycleDurationMS: int64(t.cycleDuration / time.Millisecond),
		LastOutcome:     t.lastOutcome,
		Cursor:          t.cursor,
	}
}

// Ready reports whether at least one cycle has completed.
func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Healthy reports whether the last cycle finished within 2x the poll interval.
func (t *Tracker) Healthy(pollInterval time.Duration) bool {
	if t == nil || pollInterval <= 0 {
		return false
	}
	now := t.clock.Now().UTC()
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastCycle.IsZero() {
		return false
	}
	return now.Sub(t.lastCycle) <= 2*pollInterval
}
