// Package projection maintains the read-side view of the progression state.
// It keeps the latest snapshot and fans committed (snapshot, events) pairs
// out to subscribers in commit order. Slow subscribers drop updates rather
// than block the writer; there is no replay.
package projection

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/debugmaster-hub/progression-engine/internal/domain/economy"
	"github.com/debugmaster-hub/progression-engine/internal/domain/progress"
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
	"github.com/debugmaster-hub/progression-engine/pkg/logger"
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is an immutable point-in-time view of all progression state.
// Copies only; mutating a Snapshot never affects the engine.
type Snapshot struct {
	// Seq is a monotonic sequence number assigned at publish time.
	Seq uint64 `json:"seq"`

	TakenAt time.Time `json:"taken_at"`

	Progress  progress.UserProgress `json:"progress"`
	Wallet    economy.Wallet        `json:"wallet"`
	Inventory map[shared.ConsumableKind]int `json:"inventory"`

	// Unlocked holds achievement IDs in unlock order.
	Unlocked []string `json:"unlocked"`

	Completions int `json:"completions"`
}

// Level returns the derived level for the snapshot's XP.
func (s Snapshot) Level() uint64 {
	return s.Progress.Level()
}

// XPProgress returns XP accumulated inside the current level.
func (s Snapshot) XPProgress() uint64 {
	return s.Progress.ProgressInLevel()
}

// LastCompletionDate returns the calendar day of the most recent completion.
func (s Snapshot) LastCompletionDate() timeutil.Date {
	return s.Progress.LastCompletionDate
}

// Update pairs a committed snapshot with the events produced by the
// mutation that committed it.
type Update struct {
	Snapshot Snapshot
	Events   []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTION
// ══════════════════════════════════════════════════════════════════════════════

// ErrClosed is returned when operations are attempted on a closed projection.
var ErrClosed = errors.New("projection is closed")

// Projection holds the latest snapshot and broadcasts updates to subscribers.
// Publish must be called in commit order; the projection assigns sequence
// numbers and never reorders.
type Projection struct {
	mu          sync.RWMutex
	latest      Snapshot
	hasSnapshot bool
	seq         uint64
	subscribers map[string]chan Update
	dropped     uint64
	logger      *logger.Logger
	closed      bool
}

// New creates an empty projection. Latest returns false until the first Publish.
func New(log *logger.Logger) *Projection {
	if log == nil {
		log = logger.Default()
	}
	return &Projection{
		subscribers: make(map[string]chan Update),
		logger:      log.With(logger.Component("projection")),
	}
}

// Publish installs snap as the latest snapshot and fans the update out.
// Subscribers whose buffers are full miss this update; they will observe
// the next one instead.
func (p *Projection) Publish(snap Snapshot, events []shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	p.seq++
	snap.Seq = p.seq
	p.latest = snap
	p.hasSnapshot = true

	update := Update{Snapshot: snap, Events: events}
	for id, ch := range p.subscribers {
		select {
		case ch <- update:
		default:
			p.dropped++
			p.logger.Warn("subscriber buffer full, update dropped",
				logger.String("subscriber_id", id),
				logger.F("seq", snap.Seq),
			)
		}
	}

	return nil
}

// Latest returns the most recent snapshot. The bool is false before the
// first publish.
func (p *Projection) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasSnapshot
}

// Subscribe registers a new subscriber and returns its ID and channel.
// New subscribers receive only updates published after subscription.
func (p *Projection) Subscribe(buffer int) (string, <-chan Update, error) {
	if buffer <= 0 {
		buffer = 16
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", nil, ErrClosed
	}

	id := uuid.NewString()
	ch := make(chan Update, buffer)
	p.subscribers[id] = ch

	p.logger.Debug("subscriber registered", logger.String("subscriber_id", id))
	return id, ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
// Unknown IDs are ignored.
func (p *Projection) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.subscribers[id]
	if !ok {
		return
	}
	delete(p.subscribers, id)
	close(ch)
}

// Dropped returns the number of updates lost to slow subscribers.
func (p *Projection) Dropped() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropped
}

// Close shuts the projection down and closes all subscriber channels.
// Idempotent.
func (p *Projection) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for id, ch := range p.subscribers {
		delete(p.subscribers, id)
		close(ch)
	}

	p.logger.Info("projection closed")
	return nil
}
