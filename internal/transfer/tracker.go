package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/models"
)

// historySize bounds the released sessions kept for display.
const historySize = 20

// Tracker holds the open session of each kind and a short history of
// released ones. It publishes a TransferEvent for every change.
type Tracker struct {
	bus *events.EventBus

	mu      sync.RWMutex
	open    map[Kind]*Session
	history []State
}

// NewTracker creates a tracker publishing to bus, which may be nil.
func NewTracker(bus *events.EventBus) *Tracker {
	return &Tracker{
		bus:  bus,
		open: make(map[Kind]*Session),
	}
}

// Begin opens a session of kind. It fails with ErrUploadInFlight or
// ErrRetrievalInFlight while another session of the same kind is open,
// including one that settled but has not been released.
func (t *Tracker) Begin(kind Kind, name string, size models.ByteCount) (*Session, error) {
	t.mu.Lock()
	if cur, busy := t.open[kind]; busy {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", busyError(kind), cur.State().Name)
	}
	s := newSession(t, kind, name, size)
	t.open[kind] = s
	t.mu.Unlock()

	t.publish(events.EventTransferStarted, s.State())
	return s, nil
}

func busyError(kind Kind) error {
	if kind == KindDownload {
		return models.ErrRetrievalInFlight
	}
	return models.ErrUploadInFlight
}

// Active returns the open session of kind, if any.
func (t *Tracker) Active(kind Kind) (State, bool) {
	t.mu.RLock()
	s, ok := t.open[kind]
	t.mu.RUnlock()
	if !ok {
		return State{}, false
	}
	return s.State(), true
}

// Busy reports whether a session of kind is open.
func (t *Tracker) Busy(kind Kind) bool {
	_, ok := t.Active(kind)
	return ok
}

// History returns released sessions, most recent last.
func (t *Tracker) History() []State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make([]State, len(t.history))
	copy(result, t.history)
	return result
}

func (t *Tracker) release(s *Session, snap State) {
	t.mu.Lock()
	if t.open[snap.Kind] == s {
		delete(t.open, snap.Kind)
	}
	t.history = append(t.history, snap)
	if len(t.history) > historySize {
		t.history = t.history[len(t.history)-historySize:]
	}
	t.mu.Unlock()

	t.publish(events.EventTransferReleased, snap)
}

func (t *Tracker) publish(eventType events.EventType, s State) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(&events.TransferEvent{
		BaseEvent: events.BaseEvent{EventType: eventType, Time: time.Now()},
		SessionID: s.ID,
		Kind:      string(s.Kind),
		Name:      s.Name,
		Size:      s.Size.String(),
		Progress:  float64(s.Progress),
		Error:     s.Err,
	})
}
