// Package objectstore keeps the file store in an object bucket (S3 or Azure
// Blob Storage) and exposes it as a remote.Actor.
//
// Layout under the configured prefix:
//
//	meta/<id>.json   the FileRecord
//	content/<id>     the file bytes, when any were ever put there
//
// Ids are allocated as the largest existing id plus one, written with a
// create-only put so two clients cannot claim the same id.
package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/remote"
)

// Bucket errors reported by implementations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectExists   = errors.New("object already exists")
)

// Bucket is the small subset of an object store the actor needs.
type Bucket interface {
	// List returns every key starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Get returns ErrObjectNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Create writes key only if it does not exist, else ErrObjectExists.
	Create(ctx context.Context, key string, data []byte) error
	// Put writes key unconditionally.
	Put(ctx context.Context, key string, data []byte) error
}

const maxAllocAttempts = 8

// Actor implements remote.Actor over a Bucket.
type Actor struct {
	bucket Bucket
	prefix string
	logger *logging.Logger
}

// New returns an actor storing objects under prefix in bucket.
func New(bucket Bucket, prefix string, logger *logging.Logger) *Actor {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Actor{
		bucket: bucket,
		prefix: prefix,
		logger: logging.OrDefault(logger).Component("objectstore"),
	}
}

func (a *Actor) metaKey(id models.FileID) string {
	return a.prefix + "meta/" + id.String() + ".json"
}

func (a *Actor) contentKey(id models.FileID) string {
	return a.prefix + "content/" + id.String()
}

// ListFiles reads every metadata object, ordered by id.
func (a *Actor) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	const op = "listFiles"
	ids, err := a.ids(ctx)
	if err != nil {
		return nil, models.Reject(op, err)
	}

	files := make([]models.FileRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := a.readMeta(ctx, id)
		if errors.Is(err, ErrObjectNotFound) {
			// Deleted between list and get.
			continue
		}
		if err != nil {
			return nil, models.Reject(op, err)
		}
		files = append(files, rec)
	}
	return files, nil
}

// AddFile writes a metadata object under a fresh id. No content is written.
func (a *Actor) AddFile(ctx context.Context, name string, size models.ByteCount) (models.FileRecord, error) {
	const op = "addFile"
	if strings.TrimSpace(name) == "" {
		return models.FileRecord{}, models.Reject(op, models.ErrInvalidName)
	}

	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		ids, err := a.ids(ctx)
		if err != nil {
			return models.FileRecord{}, models.Reject(op, err)
		}
		var next models.FileID = 1
		if len(ids) > 0 {
			next = ids[len(ids)-1] + 1
		}

		rec := models.FileRecord{ID: next, Name: name, Size: size}
		data, err := json.Marshal(rec)
		if err != nil {
			return models.FileRecord{}, models.Reject(op, err)
		}

		err = a.bucket.Create(ctx, a.metaKey(next), data)
		if errors.Is(err, ErrObjectExists) {
			a.logger.Debug().Str("id", next.String()).Msg("Id taken by another writer, reallocating")
			continue
		}
		if err != nil {
			return models.FileRecord{}, models.Reject(op, err)
		}
		return rec, nil
	}
	return models.FileRecord{}, models.Reject(op, fmt.Errorf("could not allocate an id after %d attempts", maxAllocAttempts))
}

// GetFileContent returns the content object under the record's current name.
// A missing record or content object means absent.
func (a *Actor) GetFileContent(ctx context.Context, id models.FileID) (*models.RetrievedContent, error) {
	const op = "getFileContent"
	rec, err := a.readMeta(ctx, id)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.Reject(op, err)
	}

	data, err := a.bucket.Get(ctx, a.contentKey(id))
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.Reject(op, err)
	}
	return &models.RetrievedContent{Name: rec.Name, Bytes: data}, nil
}

// PutContent uploads bytes for an existing record. The client's upload path
// never calls it; the dev tooling and tests do.
func (a *Actor) PutContent(ctx context.Context, id models.FileID, data []byte) error {
	if _, err := a.readMeta(ctx, id); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return fmt.Errorf("file %s: %w", id, models.ErrNotFound)
		}
		return err
	}
	return a.bucket.Put(ctx, a.contentKey(id), data)
}

func (a *Actor) readMeta(ctx context.Context, id models.FileID) (models.FileRecord, error) {
	data, err := a.bucket.Get(ctx, a.metaKey(id))
	if err != nil {
		return models.FileRecord{}, err
	}
	var rec models.FileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.FileRecord{}, fmt.Errorf("corrupt metadata for file %s: %w", id, err)
	}
	if rec.ID != id {
		return models.FileRecord{}, fmt.Errorf("metadata for file %s claims id %s", id, rec.ID)
	}
	return rec, nil
}

// ids returns the ids that have metadata, ascending.
func (a *Actor) ids(ctx context.Context) ([]models.FileID, error) {
	metaPrefix := a.prefix + "meta/"
	keys, err := a.bucket.List(ctx, metaPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]models.FileID, 0, len(keys))
	for _, key := range keys {
		base := path.Base(key)
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(base, ".json"), 10, 64)
		if err != nil {
			a.logger.Warn().Str("key", key).Msg("Ignoring metadata object with non-numeric name")
			continue
		}
		ids = append(ids, models.FileID(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Dialer opens the bucket and checks it can be listed before the binding
// becomes ready.
func Dialer(open func(ctx context.Context) (Bucket, error), prefix string, logger *logging.Logger) remote.Dialer {
	return func(ctx context.Context) (remote.Actor, error) {
		bucket, err := open(ctx)
		if err != nil {
			return nil, err
		}
		a := New(bucket, prefix, logger)
		if _, err := a.ids(ctx); err != nil {
			return nil, fmt.Errorf("object store not reachable: %w", err)
		}
		return a, nil
	}
}
