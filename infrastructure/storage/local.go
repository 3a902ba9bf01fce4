// Package storage keeps uploaded images and generated exports.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"scribe/application/ports"
	pkgerrors "scribe/pkg/errors"

	"go.uber.org/zap"
)

// LocalStore keeps objects as files under a root directory.
type LocalStore struct {
	root   string
	logger *zap.Logger
}

var _ ports.ObjectStore = (*LocalStore)(nil)

// NewLocalStore creates the root directory if it is missing.
func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root, logger: logger}, nil
}

// path resolves key inside root and rejects keys that would escape it.
func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", pkgerrors.NewValidationError("storage key cannot be empty")
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes through a temporary file so readers never see a partial object.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return pkgerrors.NewStorageError("put", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return pkgerrors.NewStorageError("put", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return pkgerrors.NewStorageError("put", err)
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.NewStorageError("put", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return pkgerrors.NewStorageError("put", err)
	}

	s.logger.Debug("Stored object",
		zap.String("key", key),
		zap.String("contentType", contentType),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Get reads an object; a missing key is NotFound.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, pkgerrors.NewNotFoundError("object")
		}
		return nil, pkgerrors.NewStorageError("get", err)
	}
	return data, nil
}

// Delete removes an object. Deleting a missing key succeeds.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return pkgerrors.NewStorageError("delete", err)
	}
	return nil
}
