package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/models"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// File listing
	EventFileListChanged EventType = "file_list_changed" // Cache replaced wholesale
	EventFileListLoading EventType = "file_list_loading" // Refresh started or finished
	EventFileListError   EventType = "file_list_error"   // Refresh failed, previous list kept

	// Remote binding
	EventBindingState EventType = "binding_state"

	// Upload/download sessions
	EventTransferStarted   EventType = "transfer_started"
	EventTransferProgress  EventType = "transfer_progress"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferFailed    EventType = "transfer_failed"
	EventTransferReleased  EventType = "transfer_released" // Transient state cleared

	// User-facing notifications
	EventNotification EventType = "notification"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelSuccess:
		return "SUCCESS"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func base(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// FileListChangedEvent is published after the file cache replaced its contents.
type FileListChangedEvent struct {
	BaseEvent
	Count      int
	Generation uint64
}

// FileListLoadingEvent reports whether a refresh is in flight.
type FileListLoadingEvent struct {
	BaseEvent
	Loading bool
}

// FileListErrorEvent is published when a refresh fails.
type FileListErrorEvent struct {
	BaseEvent
	Error error
}

// BindingStateEvent reports a remote binding transition.
type BindingStateEvent struct {
	BaseEvent
	Ready  bool
	Reason string // set when the binding dropped or failed to connect
}

// TransferEvent represents an upload or download session change.
type TransferEvent struct {
	BaseEvent
	SessionID string  // Correlation handle
	Kind      string  // "upload" or "download"
	Name      string  // Display name (filename)
	Size      string  // Decimal byte count, unbounded
	Progress  float64 // 0 to 100
	Error     error   // Set on failure
}

// NotificationEvent is a transient message for the user.
type NotificationEvent struct {
	BaseEvent
	Level   Level
	Title   string
	Message string
	Kind    string // models.ErrorKind of Err, "" for non-errors
	Err     error
}

// subscription is one channel and the event types it receives.
// An empty filter receives everything.
type subscription struct {
	ch     chan Event
	filter map[EventType]bool
}

func (s *subscription) accepts(t EventType) bool {
	return len(s.filter) == 0 || s.filter[t]
}

// EventBus fans events out to subscriber channels. Publish never blocks:
// an event is dropped for a subscriber whose buffer is full.
type EventBus struct {
	mu      sync.RWMutex
	subs    []*subscription
	buffer  int
	closed  bool
	dropped atomic.Int64
}

// NewEventBus returns a bus whose subscriber channels hold buffer events.
// Out-of-range sizes are clamped.
func NewEventBus(buffer int) *EventBus {
	switch {
	case buffer <= 0:
		buffer = constants.EventBusDefaultBuffer
	case buffer > constants.EventBusMaxBuffer:
		buffer = constants.EventBusMaxBuffer
	}
	return &EventBus{buffer: buffer}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given. After Close the channel is closed.
func (eb *EventBus) Subscribe(types ...EventType) <-chan Event {
	sub := &subscription{ch: make(chan Event, eb.buffer)}
	if len(types) > 0 {
		sub.filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.filter[t] = true
		}
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		close(sub.ch)
		return sub.ch
	}
	eb.subs = append(eb.subs, sub)
	return sub.ch
}

// SubscribeAll is Subscribe with no filter.
func (eb *EventBus) SubscribeAll() <-chan Event {
	return eb.Subscribe()
}

// Unsubscribe detaches ch and closes it. Unknown channels are ignored.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subs {
		if sub.ch == ch {
			eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Publish delivers event to every matching subscriber. A nil bus or a
// closed bus discards it.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}
	for _, sub := range eb.subs {
		if !sub.accepts(event.Type()) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			eb.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

// Close closes every subscriber channel. Later calls do nothing.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for _, sub := range eb.subs {
		close(sub.ch)
	}
	eb.subs = nil
}

// Notify publishes a notification. err, when set, also fills Kind.
func (eb *EventBus) Notify(level Level, title, message string, err error) {
	eb.Publish(&NotificationEvent{
		BaseEvent: base(EventNotification),
		Level:     level,
		Title:     title,
		Message:   message,
		Kind:      models.ErrorKind(err),
		Err:       err,
	})
}

// NotifyError publishes an error notification whose message is the
// human-readable summary of err.
func (eb *EventBus) NotifyError(title string, err error) {
	eb.Notify(LevelError, title, models.Summary(err), err)
}

// PublishFileListChanged is a convenience method for cache replacements
func (eb *EventBus) PublishFileListChanged(count int, generation uint64) {
	eb.Publish(&FileListChangedEvent{
		BaseEvent:  base(EventFileListChanged),
		Count:      count,
		Generation: generation,
	})
}

// PublishFileListLoading is a convenience method for refresh start/stop
func (eb *EventBus) PublishFileListLoading(loading bool) {
	eb.Publish(&FileListLoadingEvent{
		BaseEvent: base(EventFileListLoading),
		Loading:   loading,
	})
}

// PublishFileListError is a convenience method for refresh failures
func (eb *EventBus) PublishFileListError(err error) {
	eb.Publish(&FileListErrorEvent{
		BaseEvent: base(EventFileListError),
		Error:     err,
	})
}

// PublishBindingState is a convenience method for binding transitions
func (eb *EventBus) PublishBindingState(ready bool, reason string) {
	eb.Publish(&BindingStateEvent{
		BaseEvent: base(EventBindingState),
		Ready:     ready,
		Reason:    reason,
	})
}
