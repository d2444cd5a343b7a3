// Package remotetest provides a scriptable remote.Actor for tests.
package remotetest

import (
	"context"
	"sync"

	"github.com/canfiles/canfiles/internal/models"
)

// Fake is a remote.Actor whose results tests control. Gates, when set,
// block the matching call until the gate is closed or the context ends.
type Fake struct {
	mu sync.Mutex

	files   []models.FileRecord
	content map[models.FileID]*models.RetrievedContent
	nextID  models.FileID

	listErr    error
	addErr     error
	contentErr error

	listGate    chan struct{}
	addGate     chan struct{}
	contentGate chan struct{}

	listCalls    int
	addCalls     int
	contentCalls int
}

// NewFake returns a fake holding files. New records get ids after the
// largest existing one.
func NewFake(files ...models.FileRecord) *Fake {
	f := &Fake{content: make(map[models.FileID]*models.RetrievedContent)}
	for _, rec := range files {
		f.files = append(f.files, rec)
		if rec.ID > f.nextID {
			f.nextID = rec.ID
		}
	}
	return f
}

// SetNextID makes the next AddFile return id.
func (f *Fake) SetNextID(id models.FileID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = id - 1
}

// SetContent registers retrievable content for id.
func (f *Fake) SetContent(id models.FileID, name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[id] = &models.RetrievedContent{Name: name, Bytes: data}
}

func (f *Fake) FailList(err error)    { f.mu.Lock(); f.listErr = err; f.mu.Unlock() }
func (f *Fake) FailAdd(err error)     { f.mu.Lock(); f.addErr = err; f.mu.Unlock() }
func (f *Fake) FailContent(err error) { f.mu.Lock(); f.contentErr = err; f.mu.Unlock() }

// GateList blocks ListFiles until the returned channel is closed.
func (f *Fake) GateList() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listGate = make(chan struct{})
	return f.listGate
}

// GateAdd blocks AddFile until the returned channel is closed.
func (f *Fake) GateAdd() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addGate = make(chan struct{})
	return f.addGate
}

// GateContent blocks GetFileContent until the returned channel is closed.
func (f *Fake) GateContent() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentGate = make(chan struct{})
	return f.contentGate
}

func (f *Fake) ListCalls() int    { f.mu.Lock(); defer f.mu.Unlock(); return f.listCalls }
func (f *Fake) AddCalls() int     { f.mu.Lock(); defer f.mu.Unlock(); return f.addCalls }
func (f *Fake) ContentCalls() int { f.mu.Lock(); defer f.mu.Unlock(); return f.contentCalls }

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate
	f.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.FileRecord, len(f.files))
	copy(out, f.files)
	return out, nil
}

func (f *Fake) AddFile(ctx context.Context, name string, size models.ByteCount) (models.FileRecord, error) {
	f.mu.Lock()
	f.addCalls++
	gate := f.addGate
	f.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return models.FileRecord{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return models.FileRecord{}, f.addErr
	}
	f.nextID++
	rec := models.FileRecord{ID: f.nextID, Name: name, Size: size}
	f.files = append(f.files, rec)
	return rec, nil
}

func (f *Fake) GetFileContent(ctx context.Context, id models.FileID) (*models.RetrievedContent, error) {
	f.mu.Lock()
	f.contentCalls++
	gate := f.contentGate
	f.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	c, ok := f.content[id]
	if !ok {
		return nil, nil
	}
	buf := make([]byte, len(c.Bytes))
	copy(buf, c.Bytes)
	return &models.RetrievedContent{Name: c.Name, Bytes: buf}, nil
}
