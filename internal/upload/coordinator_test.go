package upload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/filecache"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/progress"
	"github.com/canfiles/canfiles/internal/remote"
	"github.com/canfiles/canfiles/internal/remote/remotetest"
	"github.com/canfiles/canfiles/internal/transfer"
)

type harness struct {
	fake    *remotetest.Fake
	binding *remote.Binding
	cache   *filecache.Cache
	tracker *transfer.Tracker
	bus     *events.EventBus
	coord   *Coordinator

	mu            sync.Mutex
	progress      []int
	notifications []*events.NotificationEvent
}

func newHarness(t *testing.T, settle time.Duration) *harness {
	t.Helper()
	h := &harness{fake: remotetest.NewFake()}
	h.bus = events.NewEventBus(256)
	h.binding = remote.NewBinding(h.bus, logging.Nop())
	h.binding.Bind(h.fake)
	h.cache = filecache.New(h.binding, h.bus, logging.Nop())
	h.tracker = transfer.NewTracker(h.bus)
	h.coord = New(h.binding, h.cache, h.tracker, h.bus, logging.Nop(), Options{
		Illusion:    progress.Illusion{Tick: time.Millisecond, Ramp: 30 * time.Millisecond, Ceiling: 95},
		SettleDelay: settle,
	})

	all := h.bus.SubscribeAll()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range all {
			h.mu.Lock()
			switch e := ev.(type) {
			case *events.TransferEvent:
				if e.Type() == events.EventTransferProgress {
					h.progress = append(h.progress, int(e.Progress))
				}
			case *events.NotificationEvent:
				h.notifications = append(h.notifications, e)
			}
			h.mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		h.coord.Close()
		h.bus.Close()
		<-done
	})
	return h
}

func (h *harness) progressValues() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.progress...)
}

func (h *harness) notification(title string) *events.NotificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, n := range h.notifications {
		if n.Title == title {
			return n
		}
	}
	return nil
}

func TestSubmitSuccess(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	h.fake.SetNextID(7)
	ctx := context.Background()

	rec, err := h.coord.Submit(ctx, "report.pdf", models.NewByteCount(204800))
	require.NoError(t, err)
	want := models.FileRecord{ID: 7, Name: "report.pdf", Size: models.NewByteCount(204800)}
	assert.Equal(t, want, rec)

	// The cache was refreshed after acceptance.
	got, ok := h.cache.FindByID(7)
	require.True(t, ok)
	assert.Equal(t, want, got)

	st, open := h.coord.State()
	require.True(t, open, "session stays open until the settle delay passes")
	assert.Equal(t, transfer.PhaseSucceeded, st.Phase)
	assert.Equal(t, 100, st.Progress)
	assert.False(t, h.coord.CanSubmit())

	require.Eventually(t, func() bool {
		_, open := h.coord.State()
		return !open
	}, time.Second, 5*time.Millisecond)
	assert.True(t, h.coord.CanSubmit())

	require.Eventually(t, func() bool {
		return h.notification("Upload complete") != nil
	}, time.Second, 5*time.Millisecond)
	assert.NotNil(t, h.notification("File selected"))

	values := h.progressValues()
	require.NotEmpty(t, values)
	assert.Equal(t, 100, values[len(values)-1])
	assert.Equal(t, 1, h.fake.AddCalls())
}

func TestSubmitFailureLeavesCacheUnchanged(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, h.cache.Refresh(ctx))
	before := h.cache.Items()

	h.fake.FailAdd(errors.New("quota exceeded"))
	_, err := h.coord.Submit(ctx, "x.bin", models.NewByteCount(10))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRemoteRejected)

	assert.Equal(t, before, h.cache.Items())
	_, open := h.coord.State()
	assert.False(t, open, "failed session clears immediately")
	assert.True(t, h.coord.CanSubmit())
	assert.NotContains(t, h.progressValues(), 100)

	require.Eventually(t, func() bool {
		return h.notification("Upload failed") != nil
	}, time.Second, 5*time.Millisecond)
	n := h.notification("Upload failed")
	assert.Equal(t, "quota exceeded", n.Message)
	assert.Equal(t, events.LevelError, n.Level)
	assert.Equal(t, models.KindRemoteRejected, n.Kind)
}

func TestSubmitCanceledIsNotARejection(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.fake.GateAdd()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := h.coord.Submit(ctx, "a.txt", models.NewByteCount(1))
		done <- err
	}()
	require.Eventually(t, func() bool { return h.fake.AddCalls() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, models.ErrRemoteRejected)
	assert.True(t, h.coord.CanSubmit())

	require.Eventually(t, func() bool {
		return h.notification("Upload failed") != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.KindCanceled, h.notification("Upload failed").Kind)
}

func TestSecondSubmitRejectedWhilePending(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	gate := h.fake.GateAdd()

	first := make(chan error, 1)
	go func() {
		_, err := h.coord.Submit(ctx, "a.txt", models.NewByteCount(1))
		first <- err
	}()
	require.Eventually(t, func() bool { return h.fake.AddCalls() == 1 }, time.Second, time.Millisecond)

	_, err := h.coord.Submit(ctx, "b.txt", models.NewByteCount(2))
	assert.ErrorIs(t, err, models.ErrUploadInFlight)
	assert.Equal(t, 1, h.fake.AddCalls(), "second submit never reaches the remote")

	close(gate)
	require.NoError(t, <-first)
}

func TestSubmitRequiresBinding(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.binding.Unbind("test")

	assert.False(t, h.coord.CanSubmit())
	_, err := h.coord.Submit(context.Background(), "a", models.NewByteCount(1))
	assert.ErrorIs(t, err, models.ErrBindingUnavailable)
	assert.Equal(t, 0, h.fake.AddCalls())
	_, open := h.coord.State()
	assert.False(t, open)
}

func TestSubmitValidatesName(t *testing.T) {
	h := newHarness(t, time.Hour)
	_, err := h.coord.Submit(context.Background(), "  ", models.NewByteCount(1))
	assert.ErrorIs(t, err, models.ErrInvalidName)
	assert.Equal(t, 0, h.fake.AddCalls())
}

func TestRefreshFailureAfterAcceptStillSucceeds(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.fake.FailList(errors.New("list broke"))

	rec, err := h.coord.Submit(context.Background(), "a", models.NewByteCount(1))
	require.NoError(t, err)
	assert.Equal(t, models.FileID(1), rec.ID)

	st, _ := h.coord.State()
	assert.Equal(t, 100, st.Progress)
	require.Eventually(t, func() bool {
		return h.notification("File list not refreshed") != nil
	}, time.Second, 5*time.Millisecond)
}

func TestCloseReleasesPendingSettle(t *testing.T) {
	h := newHarness(t, time.Hour)
	_, err := h.coord.Submit(context.Background(), "a", models.NewByteCount(1))
	require.NoError(t, err)
	_, open := h.coord.State()
	require.True(t, open)

	h.coord.Close()
	_, open = h.coord.State()
	assert.False(t, open)

	_, err = h.coord.Submit(context.Background(), "b", models.NewByteCount(1))
	assert.ErrorIs(t, err, models.ErrClosed)
}
