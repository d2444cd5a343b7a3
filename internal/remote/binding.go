// Package remote defines the capability set of the remote file store and the
// binding through which every component reaches it.
package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
)

// Actor is the remote store. Each call is one request and one response.
type Actor interface {
	ListFiles(ctx context.Context) ([]models.FileRecord, error)

	// AddFile registers metadata only; no bytes are transmitted.
	AddFile(ctx context.Context, name string, size models.ByteCount) (models.FileRecord, error)

	// GetFileContent returns (nil, nil) when the store has no content for id.
	GetFileContent(ctx context.Context, id models.FileID) (*models.RetrievedContent, error)
}

// Dialer produces a ready actor, or fails.
type Dialer func(ctx context.Context) (Actor, error)

// State of a Binding.
type State int

const (
	Unready State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "unready"
}

// Binding is either Unready or Ready(actor). Callers reach the actor only
// through Acquire, which makes the unready case explicit at every call site.
type Binding struct {
	mu       sync.RWMutex
	actor    Actor
	reason   string
	bus      *events.EventBus
	logger   *logging.Logger
	callWait time.Duration
}

// NewBinding returns an unready binding.
func NewBinding(bus *events.EventBus, logger *logging.Logger) *Binding {
	return &Binding{
		bus:    bus,
		logger: logging.OrDefault(logger).Component("binding"),
		reason: "not connected",
	}
}

// SetCallTimeout bounds each remote call made through Acquire's actor.
// Zero, the default, leaves calls bounded only by the caller's context.
func (b *Binding) SetCallTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callWait = d
}

// Bind moves the binding to Ready.
func (b *Binding) Bind(actor Actor) {
	if actor == nil {
		panic("remote: Bind with nil actor")
	}
	b.mu.Lock()
	b.actor = actor
	b.reason = ""
	b.mu.Unlock()

	b.logger.Info().Msg("Remote store connected")
	b.bus.PublishBindingState(true, "")
}

// Unbind moves the binding back to Unready.
func (b *Binding) Unbind(reason string) {
	b.mu.Lock()
	b.actor = nil
	b.reason = reason
	b.mu.Unlock()

	b.logger.Warn().Str("reason", reason).Msg("Remote store disconnected")
	b.bus.PublishBindingState(false, reason)
}

// Acquire returns the actor, or ErrBindingUnavailable while unready.
func (b *Binding) Acquire() (Actor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.actor == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBindingUnavailable, b.reason)
	}
	if b.callWait > 0 {
		return &timeoutActor{next: b.actor, d: b.callWait}, nil
	}
	return b.actor, nil
}

// State reports the current variant.
func (b *Binding) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.actor == nil {
		return Unready
	}
	return Ready
}

// Ready is shorthand for State() == Ready.
func (b *Binding) Ready() bool { return b.State() == Ready }

// Connect dials once and binds on success. The binding stays Unready while
// the dial runs and after it fails.
func (b *Binding) Connect(ctx context.Context, dial Dialer) error {
	actor, err := dial(ctx)
	if err != nil {
		b.Unbind(err.Error())
		return fmt.Errorf("connect to remote store: %w", err)
	}
	b.Bind(actor)
	return nil
}

// timeoutActor bounds each call with its own deadline.
type timeoutActor struct {
	next Actor
	d    time.Duration
}

func (t *timeoutActor) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.ListFiles(ctx)
}

func (t *timeoutActor) AddFile(ctx context.Context, name string, size models.ByteCount) (models.FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.AddFile(ctx, name, size)
}

func (t *timeoutActor) GetFileContent(ctx context.Context, id models.FileID) (*models.RetrievedContent, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.GetFileContent(ctx, id)
}
