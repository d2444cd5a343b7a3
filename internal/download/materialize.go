package download

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/util/paths"
	"github.com/canfiles/canfiles/internal/util/sanitize"
)

// Saved describes where retrieved bytes ended up.
type Saved struct {
	Path        string
	ContentType string
}

// Materializer presents retrieved bytes to the user. It must not keep data
// after returning.
type Materializer interface {
	Materialize(ctx context.Context, id models.FileID, name string, data []byte) (Saved, error)
}

// DirMaterializer saves files into a directory.
type DirMaterializer struct {
	fs         afero.Fs
	dir        string
	logger     *logging.Logger
	checkSpace func(dir string, need uint64) error
}

// NewDirMaterializer saves into dir on fs. Use afero.NewOsFs() for the real
// filesystem.
func NewDirMaterializer(fs afero.Fs, dir string, logger *logging.Logger) *DirMaterializer {
	return &DirMaterializer{
		fs:     fs,
		dir:    dir,
		logger: logging.OrDefault(logger).Component("materialize"),
	}
}

// CheckSpace makes Materialize call fn before writing. fn receives the
// download directory and the number of bytes about to be written.
func (m *DirMaterializer) CheckSpace(fn func(dir string, need uint64) error) *DirMaterializer {
	m.checkSpace = fn
	return m
}

// Materialize writes data under a sanitized form of name. An existing file
// is never overwritten; the id is inserted before the extension instead.
// The file appears only once fully written.
func (m *DirMaterializer) Materialize(ctx context.Context, id models.FileID, name string, data []byte) (Saved, error) {
	if err := ctx.Err(); err != nil {
		return Saved{}, err
	}
	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("create download directory: %w", err)
	}
	if m.checkSpace != nil {
		if err := m.checkSpace(m.dir, uint64(len(data))); err != nil {
			return Saved{}, err
		}
	}

	tmp, err := afero.TempFile(m.fs, m.dir, ".canfiles-*.part")
	if err != nil {
		return Saved{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = m.fs.Remove(tmpName)
		return Saved{}, fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = m.fs.Remove(tmpName)
		return Saved{}, fmt.Errorf("close %s: %w", tmpName, err)
	}

	target := filepath.Join(m.dir, sanitize.FileName(name))
	target, err = paths.Resolve(target, id.String(), func(p string) (bool, error) {
		return afero.Exists(m.fs, p)
	})
	if err != nil {
		_ = m.fs.Remove(tmpName)
		return Saved{}, fmt.Errorf("resolve target path: %w", err)
	}
	if err := m.fs.Rename(tmpName, target); err != nil {
		_ = m.fs.Remove(tmpName)
		return Saved{}, fmt.Errorf("rename to %s: %w", target, err)
	}

	contentType := mimetype.Detect(data).String()
	m.logger.Info().
		Str("id", id.String()).
		Str("path", target).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("File saved")
	return Saved{Path: target, ContentType: contentType}, nil
}
