package storage

import (
	"context"

	"github.com/IshaanNene/driverscout/internal/types"
)

// Storage is the interface for all result backends.
type Storage interface {
	// Store persists one result document.
	Store(ctx context.Context, doc *types.ResultDocument) (Location, error)

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Location describes where a result document ended up.
type Location struct {
	JSONPath     string
	MarkdownPath string
	ArchiveID    string

	// ArchiveErrors holds failures of secondary backends. The primary
	// location is still valid when this is non-empty.
	ArchiveErrors []error
}

func (l *Location) merge(other Location) {
	if l.JSONPath == "" {
		l.JSONPath = other.JSONPath
	}
	if l.MarkdownPath == "" {
		l.MarkdownPath = other.MarkdownPath
	}
	if l.ArchiveID == "" {
		l.ArchiveID = other.ArchiveID
	}
}
