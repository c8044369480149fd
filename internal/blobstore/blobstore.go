// Package blobstore holds uploaded spreadsheet payloads between the upload
// request and the import run. Entries are short-lived: the runner deletes
// them after processing and a periodic sweep reclaims anything left behind.
package blobstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSizeExceeded = errors.New("blobstore: payload exceeds maximum upload size")
	ErrNotFound     = errors.New("blobstore: file not found")
)

// StoredFile describes one stored payload. Handle is an opaque random token,
// unique and immutable for the life of the entry.
type StoredFile struct {
	Handle     string
	MerchantID string
	Path       string
	Size       int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

type SweepResult struct {
	Removed int
	Scanned int
}

type Store interface {
	Put(ctx context.Context, data []byte, originalName, merchantID, userID string) (*StoredFile, error)
	Get(ctx context.Context, handle string) ([]byte, error)
	// Delete is best-effort; a missing file is not an error.
	Delete(ctx context.Context, handle string) error
	// Sweep removes entries whose last modification is older than the TTL.
	// It runs on an external schedule, never from the import flow itself.
	Sweep(ctx context.Context) (SweepResult, error)
}
