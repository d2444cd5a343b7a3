// Package download retrieves one file's content at a time and hands it to a
// Materializer. Retrieved bytes are never cached.
package download

import (
	"context"
	"fmt"
	"sync"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/remote"
	"github.com/canfiles/canfiles/internal/transfer"
)

// ActorSource is the part of *remote.Binding the coordinator uses.
type ActorSource interface {
	Acquire() (remote.Actor, error)
	Ready() bool
}

// Result describes a completed retrieval.
type Result struct {
	ID          models.FileID
	Name        string // as reported by the remote store
	Location    string
	ContentType string
	Size        models.ByteCount
}

// Coordinator runs retrievals, one at a time.
type Coordinator struct {
	source  ActorSource
	mat     Materializer
	tracker *transfer.Tracker
	bus     *events.EventBus
	logger  *logging.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a coordinator.
func New(source ActorSource, mat Materializer, tracker *transfer.Tracker, bus *events.EventBus, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		source:  source,
		mat:     mat,
		tracker: tracker,
		bus:     bus,
		logger:  logging.OrDefault(logger).Component("download"),
	}
}

// Retrieve fetches the content of id once and materializes it under the
// name the remote store reports. The cache is not consulted: an id missing
// from the listing may still have content, and a listed id may have none.
func (c *Coordinator) Retrieve(ctx context.Context, id models.FileID) (Result, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Result{}, models.ErrClosed
	}

	actor, err := c.source.Acquire()
	if err != nil {
		c.bus.NotifyError("Download failed", err)
		return Result{}, err
	}

	session, err := c.tracker.Begin(transfer.KindDownload, "file "+id.String(), models.ByteCount{})
	if err != nil {
		return Result{}, err
	}
	defer session.Release()

	c.logger.Info().Str("session", session.ID()).Str("id", id.String()).Msg("Retrieval started")

	content, err := actor.GetFileContent(ctx, id)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return Result{}, c.fail(session, cerr)
		}
		return Result{}, c.fail(session, models.Reject("getFileContent", err))
	}
	if content == nil {
		return Result{}, c.fail(session, fmt.Errorf("file %s: %w", id, models.ErrNotFound))
	}

	res := Result{
		ID:   id,
		Name: content.Name,
		Size: models.NewByteCount(uint64(len(content.Bytes))),
	}
	saved, err := c.mat.Materialize(ctx, id, content.Name, content.Bytes)
	content.Bytes = nil
	if err != nil {
		return Result{}, c.fail(session, fmt.Errorf("%w: %w", models.ErrMaterializeFailure, err))
	}
	res.Location = saved.Path
	res.ContentType = saved.ContentType

	session.SetProgress(100)
	session.Succeed()
	c.logger.Info().Str("session", session.ID()).Str("path", res.Location).Msg("Retrieval complete")
	c.bus.Notify(events.LevelSuccess, "Download complete", fmt.Sprintf("%s saved to %s", res.Name, res.Location), nil)
	return res, nil
}

func (c *Coordinator) fail(session *transfer.Session, err error) error {
	session.Fail(err)
	c.logger.Error().Err(err).Str("session", session.ID()).Msg("Retrieval failed")
	c.bus.NotifyError("Download failed", err)
	return err
}

// CanRetrieve reports whether the download control should be enabled.
func (c *Coordinator) CanRetrieve() bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	return !closed && c.source.Ready() && !c.tracker.Busy(transfer.KindDownload)
}

// Close refuses further retrievals. One already running finishes.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
