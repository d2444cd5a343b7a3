// Package memstore is an in-process remote store. It backs the memory
// backend, the development store server and tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/canfiles/canfiles/internal/models"
)

// ErrQuotaExceeded is returned by AddFile when a quota is set and the new
// file would exceed it.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Store keeps file metadata in insertion order and content by id.
// It satisfies remote.Actor.
type Store struct {
	mu      sync.RWMutex
	lastID  models.FileID
	files   []models.FileRecord
	content map[models.FileID][]byte
	quota   *big.Int
}

// New returns an empty store.
func New() *Store {
	return &Store{content: make(map[models.FileID][]byte)}
}

// ListFiles returns a copy of every record, oldest first.
func (s *Store) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileRecord, len(s.files))
	copy(out, s.files)
	return out, nil
}

// AddFile registers a new record and assigns the next id.
func (s *Store) AddFile(ctx context.Context, name string, size models.ByteCount) (models.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.FileRecord{}, err
	}
	if strings.TrimSpace(name) == "" {
		return models.FileRecord{}, models.ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota != nil {
		used := new(big.Int)
		for _, f := range s.files {
			used.Add(used, f.Size.Big())
		}
		if used.Add(used, size.Big()).Cmp(s.quota) > 0 {
			return models.FileRecord{}, ErrQuotaExceeded
		}
	}

	s.lastID++
	rec := models.FileRecord{ID: s.lastID, Name: name, Size: size}
	s.files = append(s.files, rec)
	return rec, nil
}

// GetFileContent returns the bytes stored for id under the record's current
// name, or (nil, nil) when there are none.
func (s *Store) GetFileContent(ctx context.Context, id models.FileID) (*models.RetrievedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.content[id]
	if !ok {
		return nil, nil
	}
	name := ""
	for _, f := range s.files {
		if f.ID == id {
			name = f.Name
			break
		}
	}
	if name == "" {
		return nil, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &models.RetrievedContent{Name: name, Bytes: buf}, nil
}

// Seed adds a record together with its content.
func (s *Store) Seed(name string, data []byte) models.FileRecord {
	rec, err := s.AddFile(context.Background(), name, models.NewByteCount(uint64(len(data))))
	if err != nil {
		panic(fmt.Sprintf("memstore: seed %q: %v", name, err))
	}
	if err := s.PutContent(rec.ID, data); err != nil {
		panic(err)
	}
	return rec
}

// PutContent stores bytes for an existing id.
func (s *Store) PutContent(id models.FileID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.ID == id {
			buf := make([]byte, len(data))
			copy(buf, data)
			s.content[id] = buf
			return nil
		}
	}
	return fmt.Errorf("file %s: %w", id, models.ErrNotFound)
}

// Rename replaces the record for id with one carrying newName.
func (s *Store) Rename(id models.FileID, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.files {
		if f.ID == id {
			s.files[i] = models.FileRecord{ID: f.ID, Name: newName, Size: f.Size}
			return nil
		}
	}
	return fmt.Errorf("file %s: %w", id, models.ErrNotFound)
}

// SetQuota limits the total registered size. Zero removes the limit.
func (s *Store) SetQuota(total models.ByteCount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total.IsZero() {
		s.quota = nil
		return
	}
	s.quota = total.Big()
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
