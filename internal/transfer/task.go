// Package transfer tracks the transient state of upload and download
// sessions and publishes it on the event bus.
//
// The tracker observes sessions; the coordinators run them. At most one
// session per kind is open at a time.
package transfer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/models"
)

// Kind indicates whether a session is an upload or a download.
type Kind string

const (
	KindUpload   Kind = "upload"
	KindDownload Kind = "download"
)

// Phase is where a session is in its lifetime.
type Phase string

const (
	PhaseActive    Phase = "active"    // Remote call outstanding
	PhaseSucceeded Phase = "succeeded" // Settled successfully, waiting to be cleared
	PhaseFailed    Phase = "failed"    // Settled with an error
	PhaseReleased  Phase = "released"  // Transient state cleared
)

// State is a copy of a session's fields for display.
type State struct {
	ID        string
	Kind      Kind
	Name      string
	Size      models.ByteCount
	Phase     Phase
	Progress  int // 0 to 100
	Err       error
	StartedAt time.Time
	SettledAt time.Time
}

// Settled reports whether the remote call has finished.
func (s State) Settled() bool {
	return s.Phase != PhaseActive
}

// Session is one open upload or download. Its ID is the correlation handle
// for progress tracking. Thread-safe.
type Session struct {
	tracker *Tracker

	mu    sync.RWMutex
	state State
}

func newSession(t *Tracker, kind Kind, name string, size models.ByteCount) *Session {
	return &Session{
		tracker: t,
		state: State{
			ID:        uuid.NewString(),
			Kind:      kind,
			Name:      name,
			Size:      size,
			Phase:     PhaseActive,
			StartedAt: time.Now(),
		},
	}
}

// ID returns the correlation handle.
func (s *Session) ID() string {
	return s.state.ID
}

// State returns a copy of the session's current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetProgress records percent while the session is active. Values that
// would move progress backwards are ignored.
func (s *Session) SetProgress(percent int) {
	s.mu.Lock()
	if s.state.Phase != PhaseActive || percent <= s.state.Progress {
		s.mu.Unlock()
		return
	}
	s.state.Progress = percent
	snap := s.state
	s.mu.Unlock()

	s.tracker.publish(events.EventTransferProgress, snap)
}

// Succeed settles the session successfully. Progress is left where the
// caller put it; the upload path completes its illusion first.
func (s *Session) Succeed() {
	s.settle(PhaseSucceeded, nil)
}

// Fail settles the session with err.
func (s *Session) Fail(err error) {
	s.settle(PhaseFailed, err)
}

func (s *Session) settle(phase Phase, err error) {
	s.mu.Lock()
	if s.state.Phase != PhaseActive {
		s.mu.Unlock()
		return
	}
	s.state.Phase = phase
	s.state.Err = err
	s.state.SettledAt = time.Now()
	snap := s.state
	s.mu.Unlock()

	if phase == PhaseSucceeded {
		s.tracker.publish(events.EventTransferCompleted, snap)
	} else {
		s.tracker.publish(events.EventTransferFailed, snap)
	}
}

// Release clears the session's transient state and frees its kind for the
// next session. Idempotent.
func (s *Session) Release() {
	s.mu.Lock()
	if s.state.Phase == PhaseReleased {
		s.mu.Unlock()
		return
	}
	s.state.Phase = PhaseReleased
	snap := s.state
	s.mu.Unlock()

	s.tracker.release(s, snap)
}
