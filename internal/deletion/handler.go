// Package deletion holds a delete request until the user confirms or
// cancels it. The remote store cannot delete, so a confirmed request always
// fails with ErrUnsupportedOperation. The file cache is never touched.
package deletion

import (
	"fmt"
	"sync"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
)

// Handler is a two-state machine: Idle, or PendingConfirmation(id).
type Handler struct {
	bus    *events.EventBus
	logger *logging.Logger

	mu      sync.Mutex
	pending *models.FileID
}

// New returns an idle handler.
func New(bus *events.EventBus, logger *logging.Logger) *Handler {
	return &Handler{
		bus:    bus,
		logger: logging.OrDefault(logger).Component("deletion"),
	}
}

// RequestDelete opens confirmation for id, replacing any earlier request.
func (h *Handler) RequestDelete(id models.FileID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = &id
	h.logger.Debug().Str("id", id.String()).Msg("Deletion awaiting confirmation")
}

// Pending returns the id awaiting confirmation.
func (h *Handler) Pending() (models.FileID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return 0, false
	}
	return *h.pending, true
}

// Cancel returns to Idle.
func (h *Handler) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = nil
}

// Confirm returns to Idle and reports the deletion as unsupported. It makes
// no remote call. With nothing pending it returns ErrNoPendingDeletion.
func (h *Handler) Confirm() error {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	if pending == nil {
		return models.ErrNoPendingDeletion
	}

	err := fmt.Errorf("delete file %s: %w", *pending, models.ErrUnsupportedOperation)
	h.logger.Warn().Str("id", pending.String()).Msg("Deletion requested but not supported by the file store")
	h.bus.NotifyError("Delete failed", err)
	return err
}
