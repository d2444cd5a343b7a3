package models

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// FileID identifies a file in the remote store. Ids are assigned by the store,
// never reused, and ordered by assignment.
type FileID uint64

func (id FileID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseFileID parses a decimal file id as typed by a user.
func ParseFileID(s string) (FileID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file id %q: %w", s, err)
	}
	return FileID(n), nil
}

// FileRecord is one stored file as the remote store reports it.
// Records are values; once observed they are never modified in place.
type FileRecord struct {
	ID   FileID    `json:"id"`
	Name string    `json:"name"`
	Size ByteCount `json:"size"`
}

// Validate checks the fields a listing must carry.
func (r FileRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("file %s: %w", r.ID, ErrInvalidName)
	}
	return nil
}

// Extension returns the lower-cased suffix without the dot, or "" when the
// name has none. Display code keys icons on it.
func (r FileRecord) Extension() string {
	ext := path.Ext(r.Name)
	if ext == "" || ext == r.Name {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ShareURL builds the link shown next to a file in listings.
func (r FileRecord) ShareURL(base string) string {
	base = strings.TrimRight(base, "/")
	return base + "/files/" + r.ID.String() + "/" + url.PathEscape(r.Name)
}

// RetrievedContent is the payload of one download. It is owned by a single
// retrieval and dropped once materialized.
type RetrievedContent struct {
	Name  string
	Bytes []byte
}

// AddFileRequest is the metadata sent when registering a new file.
// No byte payload accompanies it.
type AddFileRequest struct {
	Name string    `json:"name"`
	Size ByteCount `json:"size"`
}
