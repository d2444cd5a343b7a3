// Package notify mirrors user notifications from the event bus to the
// desktop. It uses github.com/gen2brain/beeep for cross-platform support.
package notify

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/logging"
)

// Notifier forwards NotificationEvents to desktop notifications. Info-level
// events stay in the terminal.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	mu      sync.RWMutex

	// Overridable in tests.
	notify func(title, message string) error
	alert  func(title, message string) error
}

// NewNotifier creates a notifier from cfg.
func NewNotifier(cfg config.NotificationConfig, logger *logging.Logger) *Notifier {
	return &Notifier{
		logger:  logging.OrDefault(logger).Component("notify"),
		enabled: cfg.Enabled,
		notify: func(title, message string) error {
			// beeep.Notify is cross-platform:
			// - Windows: toast notifications
			// - macOS: NSUserNotificationCenter
			// - Linux: D-Bus notifications
			return beeep.Notify(title, message, "")
		},
		alert: func(title, message string) error {
			return beeep.Alert(title, message, "")
		},
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// Run forwards notifications from bus until ctx ends or the bus closes.
func (n *Notifier) Run(ctx context.Context, bus *events.EventBus) {
	ch := bus.Subscribe(events.EventNotification)
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if note, isNote := ev.(*events.NotificationEvent); isNote {
				n.Handle(note)
			}
		}
	}
}

// Handle sends one notification to the desktop.
func (n *Notifier) Handle(note *events.NotificationEvent) {
	if !n.IsEnabled() || note.Level == events.LevelInfo {
		return
	}

	title := constants.AppName + ": " + note.Title
	message := truncate(note.Message, 200)

	if note.Level == events.LevelError {
		if err := n.alert(title, message); err != nil {
			// Fall back to regular notify
			if err := n.notify(title, message); err != nil {
				n.logger.Error().Err(err).Str("title", note.Title).Msg("Failed to send alert notification")
			}
		}
		return
	}

	if err := n.notify(title, message); err != nil {
		n.logger.Warn().Err(err).Str("title", note.Title).Msg("Failed to send notification")
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// ShortenPath abbreviates a long path for display in notifications.
func ShortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	// Try to show drive/root + ... + last 2 path components
	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))

	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}

	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}

	return short
}
