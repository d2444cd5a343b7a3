package filecache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/remote"
	"github.com/canfiles/canfiles/internal/remote/remotetest"
)

func rec(id models.FileID, name string, size uint64) models.FileRecord {
	return models.FileRecord{ID: id, Name: name, Size: models.NewByteCount(size)}
}

func newCache(t *testing.T, fake *remotetest.Fake) (*Cache, *events.EventBus) {
	t.Helper()
	bus := events.NewEventBus(64)
	t.Cleanup(bus.Close)
	binding := remote.NewBinding(bus, logging.Nop())
	if fake != nil {
		binding.Bind(fake)
	}
	return New(binding, bus, logging.Nop()), bus
}

func TestEmptyCollection(t *testing.T) {
	c, _ := newCache(t, remotetest.NewFake())

	assert.False(t, c.IsEmpty(), "unloaded cache is not the empty marker")
	require.NoError(t, c.Refresh(context.Background()))

	snap := c.Snapshot()
	assert.True(t, snap.Loaded)
	assert.True(t, snap.Empty())
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, c.Count())
}

func TestRefreshReplacesWholesale(t *testing.T) {
	fake := remotetest.NewFake(rec(1, "a.txt", 1), rec(2, "b.txt", 2))
	c, bus := newCache(t, fake)
	changed := bus.Subscribe(events.EventFileListChanged)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []models.FileRecord{rec(1, "a.txt", 1), rec(2, "b.txt", 2)}, c.Items())

	select {
	case ev := <-changed:
		assert.Equal(t, 2, ev.(*events.FileListChangedEvent).Count)
	case <-time.After(time.Second):
		t.Fatal("no FileListChanged event")
	}

	got, ok := c.FindByID(2)
	require.True(t, ok)
	assert.Equal(t, "b.txt", got.Name)
	_, ok = c.FindByID(99)
	assert.False(t, ok)
}

func TestRefreshIsIdempotent(t *testing.T) {
	fake := remotetest.NewFake(rec(3, "x", 10), rec(1, "y", 20))
	c, _ := newCache(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	first := c.Items()
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, first, c.Items())
}

func TestFailedRefreshKeepsItems(t *testing.T) {
	fake := remotetest.NewFake(rec(1, "keep.me", 5))
	c, bus := newCache(t, fake)
	errs := bus.Subscribe(events.EventFileListError)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	fake.FailList(errors.New("boom"))
	require.Error(t, c.Refresh(ctx))

	snap := c.Snapshot()
	assert.Equal(t, []models.FileRecord{rec(1, "keep.me", 5)}, snap.Items)
	assert.EqualError(t, snap.LastError, "boom")

	select {
	case <-errs:
	case <-time.After(time.Second):
		t.Fatal("no FileListError event")
	}
}

func TestDuplicateIDsRejected(t *testing.T) {
	fake := remotetest.NewFake(rec(1, "a", 1))
	c, _ := newCache(t, fake)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	dup := remotetest.NewFake(rec(4, "a", 1), rec(4, "b", 2))
	c.source = bindingTo(t, dup)

	err := c.Refresh(ctx)
	assert.ErrorIs(t, err, models.ErrDuplicateID)
	assert.Equal(t, []models.FileRecord{rec(1, "a", 1)}, c.Items())
}

func TestEmptyNameRejected(t *testing.T) {
	fake := remotetest.NewFake(rec(1, "a", 1))
	c, _ := newCache(t, fake)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	for _, name := range []string{"", "   "} {
		c.source = bindingTo(t, remotetest.NewFake(rec(2, "b", 1), rec(3, name, 3)))

		err := c.Refresh(ctx)
		assert.ErrorIs(t, err, models.ErrInvalidName)
		assert.Equal(t, []models.FileRecord{rec(1, "a", 1)}, c.Items())
		assert.Error(t, c.Snapshot().LastError)
	}
}

func bindingTo(t *testing.T, actor remote.Actor) *remote.Binding {
	t.Helper()
	b := remote.NewBinding(nil, logging.Nop())
	b.Bind(actor)
	return b
}

func TestUnboundRefresh(t *testing.T) {
	c, _ := newCache(t, nil)
	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, models.ErrBindingUnavailable)
	assert.False(t, c.Snapshot().Loaded)
}

func TestReadsDoNotBlockOnRefresh(t *testing.T) {
	fake := remotetest.NewFake(rec(1, "old", 1))
	c, _ := newCache(t, fake)
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	gate := fake.GateList()
	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()

	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []models.FileRecord{rec(1, "old", 1)}, c.Items())

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, c.Snapshot().Loading)
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	fake := remotetest.NewFake(rec(1, "a", 1))
	c, _ := newCache(t, fake)
	ctx := context.Background()

	gate := fake.GateList()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Refresh(ctx))
		}()
	}
	require.Eventually(t, func() bool { return fake.ListCalls() == 1 }, time.Second, 5*time.Millisecond)
	// Give the remaining callers time to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, fake.ListCalls())
}

func TestInvalidateStartsNewFetch(t *testing.T) {
	fake := remotetest.NewFake()
	c, _ := newCache(t, fake)
	ctx := context.Background()

	gate := fake.GateList()
	stale := make(chan error, 1)
	go func() { stale <- c.Refresh(ctx) }()
	require.Eventually(t, func() bool { return fake.ListCalls() == 1 }, time.Second, 5*time.Millisecond)

	// A record accepted after the first fetch started must be visible after
	// InvalidateAndRefresh, so it cannot reuse that fetch.
	_, err := fake.AddFile(ctx, "new.pdf", models.NewByteCount(7))
	require.NoError(t, err)
	fresh := make(chan error, 1)
	go func() { fresh <- c.InvalidateAndRefresh(ctx) }()
	require.Eventually(t, func() bool { return fake.ListCalls() == 2 }, time.Second, 5*time.Millisecond)

	close(gate)
	require.NoError(t, <-fresh)
	require.NoError(t, <-stale)
	assert.Len(t, c.Items(), 1)
}

func TestClose(t *testing.T) {
	c, _ := newCache(t, remotetest.NewFake(rec(1, "a", 1)))
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	c.Close()
	assert.ErrorIs(t, c.Refresh(ctx), models.ErrClosed)
	assert.ErrorIs(t, c.InvalidateAndRefresh(ctx), models.ErrClosed)
	assert.Len(t, c.Items(), 1)
}
