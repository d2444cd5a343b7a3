// Package diskspace checks free space on the filesystem that will receive a
// downloaded file.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// DefaultMargin is the headroom requested on top of the file size.
const DefaultMargin = 1.1

// InsufficientSpaceError reports that a directory cannot hold a file.
type InsufficientSpaceError struct {
	Path      string
	Required  uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space in %s: need %s, have %s",
		e.Path, humanize.IBytes(e.Required), humanize.IBytes(e.Available))
}

// IsInsufficientSpace reports whether err is or wraps an InsufficientSpaceError.
func IsInsufficientSpace(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}

// Available returns the bytes available to the current user on the
// filesystem holding dir. ok is false when the platform cannot tell.
func Available(dir string) (free uint64, ok bool) {
	return available(filepath.Clean(dir))
}

// Check returns an InsufficientSpaceError when dir has less than
// need*DefaultMargin bytes free. Filesystems that cannot be queried pass.
func Check(dir string, need uint64) error {
	return check(dir, need, DefaultMargin, Available)
}

func check(dir string, need uint64, margin float64, probe func(string) (uint64, bool)) error {
	free, ok := probe(dir)
	if !ok {
		return nil
	}
	required := uint64(float64(need) * margin)
	if free < required {
		return &InsufficientSpaceError{Path: dir, Required: required, Available: free}
	}
	return nil
}
