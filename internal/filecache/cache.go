// Package filecache holds the client's view of the remote file collection.
//
// The cache is replaced wholesale by Refresh and never patched. Reads serve
// the last successful refresh while a new one is in flight.
package filecache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/remote"
)

// ActorSource hands out the remote actor. *remote.Binding implements it.
type ActorSource interface {
	Acquire() (remote.Actor, error)
}

// Snapshot is a consistent view of the cache at one instant.
type Snapshot struct {
	Items       []models.FileRecord
	Loading     bool
	LastError   error
	RefreshedAt time.Time
	// Loaded is false until the first successful refresh.
	Loaded bool
}

// Empty reports the empty-collection state: loaded, and nothing in it.
func (s Snapshot) Empty() bool {
	return s.Loaded && len(s.Items) == 0
}

// Cache is an observable, wholesale-replaced list of FileRecords.
// Thread-safe for concurrent access.
type Cache struct {
	source ActorSource
	bus    *events.EventBus
	logger *logging.Logger
	group  singleflight.Group

	mu          sync.RWMutex
	items       []models.FileRecord
	index       map[models.FileID]int
	inflight    int
	lastErr     error
	refreshedAt time.Time
	loaded      bool
	closed      bool

	// gen is bumped by InvalidateAndRefresh so a post-mutation refresh never
	// joins a fetch issued before the mutation.
	gen uint64
	// issued and applied order fetch results; an older result never
	// overwrites a newer one.
	issued  uint64
	applied uint64
}

// New returns an empty, unloaded cache.
func New(source ActorSource, bus *events.EventBus, logger *logging.Logger) *Cache {
	return &Cache{
		source: source,
		bus:    bus,
		logger: logging.OrDefault(logger).Component("filecache"),
		index:  make(map[models.FileID]int),
	}
}

// Refresh fetches the authoritative list and replaces the cache with it.
// Concurrent calls in the same generation share one fetch.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.RLock()
	closed, gen := c.closed, c.gen
	c.mu.RUnlock()
	if closed {
		return models.ErrClosed
	}

	_, err, shared := c.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return nil, c.fetch(ctx)
	})
	if shared {
		c.logger.Debug().Uint64("generation", gen).Msg("Joined in-flight refresh")
	}
	return err
}

// InvalidateAndRefresh discards any in-flight generation and fetches anew.
// Used after every accepted mutation.
func (c *Cache) InvalidateAndRefresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.ErrClosed
	}
	c.gen++
	c.mu.Unlock()
	return c.Refresh(ctx)
}

func (c *Cache) fetch(ctx context.Context) error {
	actor, err := c.source.Acquire()
	if err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.inflight++
	startLoading := c.inflight == 1
	c.mu.Unlock()
	if startLoading {
		c.bus.PublishFileListLoading(true)
	}
	defer c.doneLoading()

	files, err := actor.ListFiles(ctx)
	if err != nil {
		c.fail(err)
		return err
	}

	items := make([]models.FileRecord, len(files))
	copy(items, files)
	index := make(map[models.FileID]int, len(items))
	for i, rec := range items {
		if err := rec.Validate(); err != nil {
			c.fail(err)
			return err
		}
		if _, dup := index[rec.ID]; dup {
			err := fmt.Errorf("%w: %s", models.ErrDuplicateID, rec.ID)
			c.fail(err)
			return err
		}
		index[rec.ID] = i
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.ErrClosed
	}
	if seq < c.applied {
		c.mu.Unlock()
		c.logger.Debug().Uint64("seq", seq).Msg("Discarding stale listing")
		return nil
	}
	c.applied = seq
	c.items = items
	c.index = index
	c.lastErr = nil
	c.loaded = true
	c.refreshedAt = time.Now()
	gen := c.gen
	c.mu.Unlock()

	c.logger.Debug().Int("count", len(items)).Uint64("generation", gen).Msg("File list replaced")
	c.bus.PublishFileListChanged(len(items), gen)
	return nil
}

func (c *Cache) doneLoading() {
	c.mu.Lock()
	c.inflight--
	stopped := c.inflight == 0
	c.mu.Unlock()
	if stopped {
		c.bus.PublishFileListLoading(false)
	}
}

// fail records err and keeps the previous items.
func (c *Cache) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Warn().Err(err).Msg("File list refresh failed")
	c.bus.PublishFileListError(err)
}

// Items returns a copy of the cached records in remote order.
func (c *Cache) Items() []models.FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]models.FileRecord, len(c.items))
	copy(result, c.items)
	return result
}

// Snapshot returns the items together with the refresh state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]models.FileRecord, len(c.items))
	copy(items, c.items)
	return Snapshot{
		Items:       items,
		Loading:     c.inflight > 0,
		LastError:   c.lastErr,
		RefreshedAt: c.refreshedAt,
		Loaded:      c.loaded,
	}
}

// FindByID looks a record up in the last successful listing.
func (c *Cache) FindByID(id models.FileID) (models.FileRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return models.FileRecord{}, false
	}
	return c.items[i], true
}

// Count returns the number of cached records.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// IsEmpty reports whether the last successful listing had no records.
func (c *Cache) IsEmpty() bool {
	return c.Snapshot().Empty()
}

// Close ends the cache's lifetime. Results of fetches still in flight are
// dropped and later refreshes return ErrClosed.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
