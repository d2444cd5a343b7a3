// Package upload sequences an upload intent: validate, submit the metadata
// once, refresh the file cache, then settle.
//
// Only the name and size reach the remote store. No file bytes are sent.
package upload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/progress"
	"github.com/canfiles/canfiles/internal/remote"
	"github.com/canfiles/canfiles/internal/transfer"
)

// ActorSource is the part of *remote.Binding the coordinator uses.
type ActorSource interface {
	Acquire() (remote.Actor, error)
	Ready() bool
}

// Refresher is the part of *filecache.Cache the coordinator uses.
type Refresher interface {
	InvalidateAndRefresh(ctx context.Context) error
}

// Options tunes the coordinator. Zero values take the defaults.
type Options struct {
	Illusion    progress.Illusion
	SettleDelay time.Duration
}

// Coordinator runs one upload at a time.
type Coordinator struct {
	source   ActorSource
	cache    Refresher
	tracker  *transfer.Tracker
	bus      *events.EventBus
	logger   *logging.Logger
	illusion progress.Illusion
	settle   time.Duration

	mu     sync.Mutex
	timers map[*transfer.Session]*time.Timer
	closed bool
}

// New creates a coordinator.
func New(source ActorSource, cache Refresher, tracker *transfer.Tracker, bus *events.EventBus, logger *logging.Logger, opts Options) *Coordinator {
	if opts.Illusion == (progress.Illusion{}) {
		opts.Illusion = progress.DefaultIllusion()
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = constants.SettleDelay
	}
	return &Coordinator{
		source:   source,
		cache:    cache,
		tracker:  tracker,
		bus:      bus,
		logger:   logging.OrDefault(logger).Component("upload"),
		illusion: opts.Illusion,
		settle:   opts.SettleDelay,
		timers:   make(map[*transfer.Session]*time.Timer),
	}
}

// Submit uploads the metadata for one file. It returns the record the
// remote store assigned.
//
// The session stays open until the settle delay passes after a success, so
// a second Submit in that window fails with ErrUploadInFlight. After a
// failure the session is released immediately.
func (c *Coordinator) Submit(ctx context.Context, name string, size models.ByteCount) (models.FileRecord, error) {
	if strings.TrimSpace(name) == "" {
		err := fmt.Errorf("upload: %w", models.ErrInvalidName)
		c.bus.NotifyError("Upload failed", err)
		return models.FileRecord{}, err
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return models.FileRecord{}, models.ErrClosed
	}

	actor, err := c.source.Acquire()
	if err != nil {
		c.bus.NotifyError("Upload failed", err)
		return models.FileRecord{}, err
	}

	session, err := c.tracker.Begin(transfer.KindUpload, name, size)
	if err != nil {
		return models.FileRecord{}, err
	}

	c.logger.Info().Str("session", session.ID()).Str("name", name).Str("size", size.String()).Msg("Upload started")
	c.bus.Notify(events.LevelInfo, "File selected", fmt.Sprintf("%s (%s)", name, size.Human()), nil)

	run := c.illusion.Start(ctx, session.SetProgress)
	defer run.Stop()

	rec, err := actor.AddFile(ctx, name, size)
	if err != nil {
		run.Discard()
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		} else {
			err = models.Reject("addFile", err)
		}
		session.Fail(err)
		session.Release()

		c.logger.Error().Err(err).Str("session", session.ID()).Msg("Upload rejected")
		c.bus.NotifyError("Upload failed", err)
		return models.FileRecord{}, err
	}

	// The record exists remotely from here on. A failed refresh leaves the
	// list stale but does not undo the upload.
	if rerr := c.cache.InvalidateAndRefresh(ctx); rerr != nil {
		c.logger.Warn().Err(rerr).Msg("File list refresh after upload failed")
		c.bus.Notify(events.LevelWarn, "File list not refreshed", models.Summary(rerr), rerr)
	}

	run.Complete()
	session.Succeed()
	c.logger.Info().Str("session", session.ID()).Str("id", rec.ID.String()).Msg("Upload accepted")
	c.bus.Notify(events.LevelSuccess, "Upload complete", fmt.Sprintf("%s stored as file %s", rec.Name, rec.ID), nil)

	c.releaseAfterSettle(session)
	return rec, nil
}

func (c *Coordinator) releaseAfterSettle(s *transfer.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		s.Release()
		return
	}
	c.timers[s] = time.AfterFunc(c.settle, func() {
		c.mu.Lock()
		_, owned := c.timers[s]
		delete(c.timers, s)
		c.mu.Unlock()
		if owned {
			s.Release()
		}
	})
}

// CanSubmit reports whether the upload control should be enabled: the
// binding is ready and no upload session is open.
func (c *Coordinator) CanSubmit() bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	return !closed && c.source.Ready() && !c.tracker.Busy(transfer.KindUpload)
}

// State returns the open upload session, if any.
func (c *Coordinator) State() (transfer.State, bool) {
	return c.tracker.Active(transfer.KindUpload)
}

// Close cancels pending settle timers and releases their sessions now.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	pending := c.timers
	c.timers = make(map[*transfer.Session]*time.Timer)
	c.mu.Unlock()

	for s, t := range pending {
		t.Stop()
		s.Release()
	}
}
