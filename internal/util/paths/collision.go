// Package paths provides utilities for file path handling in downloads.
package paths

import (
	"fmt"
	"path/filepath"
)

// WithID inserts id before the extension of path.
//
// Example: WithID("/dest/output.zip", "7") → "/dest/output_7.zip"
func WithID(path, id string) string {
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	return fmt.Sprintf("%s_%s%s", base, id, ext)
}

// Resolve returns path if nothing exists there, otherwise the first of
// WithID(path, id), WithID(path, id-2), WithID(path, id-3), ... that is free.
func Resolve(path, id string, exists func(string) (bool, error)) (string, error) {
	taken, err := exists(path)
	if err != nil || !taken {
		return path, err
	}
	candidate := WithID(path, id)
	for n := 2; ; n++ {
		taken, err := exists(candidate)
		if err != nil || !taken {
			return candidate, err
		}
		candidate = WithID(path, fmt.Sprintf("%s-%d", id, n))
	}
}
