package core

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/remote"
	"github.com/canfiles/canfiles/internal/remote/memstore"
)

func memoryConfig() *config.Config {
	cfg := config.New()
	cfg.Remote.Backend = config.BackendMemory
	cfg.Downloads.Dir = "/downloads"
	cfg.Progress.Tick = time.Millisecond
	cfg.Progress.Ramp = 10 * time.Millisecond
	cfg.Progress.SettleDelay = 20 * time.Millisecond
	return cfg
}

func TestEngineEndToEnd(t *testing.T) {
	store := memstore.New()
	seeded := store.Seed("notes.txt", []byte("hello"))
	fs := afero.NewMemMapFs()

	e, err := NewEngine(memoryConfig(), WithMemoryStore(store), WithFs(fs), WithLogger(logging.Nop()))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Connect(ctx))
	assert.Equal(t, []models.FileRecord{seeded}, e.Cache().Items())

	rec, err := e.Uploads().Submit(ctx, "report.pdf", models.NewByteCount(204800))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Cache().Count())

	res, err := e.Downloads().Retrieve(ctx, seeded.ID)
	require.NoError(t, err)
	data, err := afero.ReadFile(fs, res.Location)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Metadata-only upload: the record exists but has no content.
	_, err = e.Downloads().Retrieve(ctx, rec.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	before := e.Cache().Items()
	e.Deletions().RequestDelete(rec.ID)
	assert.ErrorIs(t, e.Deletions().Confirm(), models.ErrUnsupportedOperation)
	assert.Equal(t, before, e.Cache().Items())
}

func TestEngineUnreadyUntilStarted(t *testing.T) {
	gate := make(chan struct{})
	store := memstore.New()
	dial := func(ctx context.Context) (remote.Actor, error) {
		<-gate
		return store, nil
	}
	e, err := NewEngine(memoryConfig(), WithDialer(dial), WithFs(afero.NewMemMapFs()), WithLogger(logging.Nop()))
	require.NoError(t, err)
	defer e.Close()

	e.Start()
	_, err = e.Uploads().Submit(context.Background(), "a", models.NewByteCount(1))
	assert.ErrorIs(t, err, models.ErrBindingUnavailable)
	assert.False(t, e.Uploads().CanSubmit())

	close(gate)
	require.Eventually(t, func() bool { return e.Cache().Snapshot().Loaded }, time.Second, 5*time.Millisecond)
	assert.True(t, e.Cache().IsEmpty())
	assert.True(t, e.Uploads().CanSubmit())
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Remote.Backend = "ftp"
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

func TestEngineCloseReleasesSessions(t *testing.T) {
	cfg := memoryConfig()
	cfg.Progress.SettleDelay = time.Hour
	e, err := NewEngine(cfg, WithFs(afero.NewMemMapFs()), WithLogger(logging.Nop()))
	require.NoError(t, err)
	require.NoError(t, e.Connect(context.Background()))

	_, err = e.Uploads().Submit(context.Background(), "a", models.NewByteCount(1))
	require.NoError(t, err)
	assert.True(t, e.Tracker().Busy("upload"))

	e.Close()
	e.Close()
	assert.False(t, e.Tracker().Busy("upload"))
	assert.False(t, e.Binding().Ready())
}
