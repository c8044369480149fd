package blobstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// recognized upload extensions, in lookup order
var extensions = []string{".xlsx", ".xls"}

// LocalStore keeps blobs as files under a single directory, named
// <handle><ext> with the extension carried over from the original upload.
type LocalStore struct {
	dir      string
	ttl      time.Duration
	maxBytes int64
	logger   *zap.Logger
}

type LocalConfig struct {
	Dir            string
	TTL            time.Duration
	MaxUploadBytes int64
}

func NewLocalStore(cfg *LocalConfig, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create dir: %w", err)
	}
	return &LocalStore{
		dir:      cfg.Dir,
		ttl:      cfg.TTL,
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger,
	}, nil
}

func (s *LocalStore) Put(ctx context.Context, data []byte, originalName, merchantID, userID string) (*StoredFile, error) {
	if int64(len(data)) > s.maxBytes {
		return nil, ErrSizeExceeded
	}

	handle, err := newHandle()
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if !recognized(ext) {
		ext = ".xlsx"
	}

	path := filepath.Join(s.dir, handle+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("blobstore: write: %w", err)
	}

	now := time.Now()
	s.logger.Debug("stored upload",
		zap.String("handle", handle),
		zap.String("merchant_id", merchantID),
		zap.String("user_id", userID),
		zap.Int("size", len(data)),
	)

	return &StoredFile{
		Handle:     handle,
		MerchantID: merchantID,
		Path:       path,
		Size:       int64(len(data)),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}, nil
}

func (s *LocalStore) Get(ctx context.Context, handle string) ([]byte, error) {
	for _, ext := range extensions {
		data, err := os.ReadFile(filepath.Join(s.dir, handle+ext))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("blobstore: read: %w", err)
		}
	}
	return nil, ErrNotFound
}

func (s *LocalStore) Delete(ctx context.Context, handle string) error {
	for _, ext := range extensions {
		err := os.Remove(filepath.Join(s.dir, handle+ext))
		if err == nil {
			return nil
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("blobstore: delete: %w", err)
		}
	}
	// already cleaned up
	return nil
}

func (s *LocalStore) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return res, fmt.Errorf("blobstore: sweep: %w", err)
	}

	cutoff := time.Now().Add(-s.ttl)
	for _, entry := range entries {
		if entry.IsDir() || !recognized(strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}
		res.Scanned++

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Warn("sweep: remove failed", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		res.Removed++
	}

	return res, nil
}

func newHandle() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("blobstore: handle: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

func recognized(ext string) bool {
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
