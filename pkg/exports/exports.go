// Package exports defines where exported boot images are written and looked
// up. Backends: a local downloads directory and an S3 bucket.
package exports

import (
	"context"
	"errors"
	"io"
	"sort"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

var ErrNotFound = errors.New("export not found")

// Entry identifies a stored export. ID is backend-specific (a path or an
// object key); Name is the base file name the naming convention applies to.
type Entry struct {
	ID   string
	Name string
}

// Store is the content collaborator the engine reads and writes exports
// through.
type Store interface {
	// List returns the entries whose name starts with prefix, sorted by name.
	List(ctx context.Context, prefix string) ([]Entry, error)
	// Open returns the contents of an entry.
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	// Put stores r under name, replacing any existing entry, and returns it.
	Put(ctx context.Context, name string, r io.Reader) (Entry, error)
	// NotifyInserted tells the platform index about a new entry.
	NotifyInserted(ctx context.Context, e Entry) error
	// Type returns the backend type identifier.
	Type() string
}

// SortByName orders entries by name, then ID.
func SortByName(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
}
