package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studio/internal/domain"
)

// File persists records onto the local filesystem, one file per (user, key)
// under basePath/<user>/<key>.json. It is the default backend for a
// single-node deployment.
type File struct {
	basePath      string
	maxValueBytes int
}

// NewFile initializes a File store rooted at basePath. maxValueBytes <= 0
// disables the per-value quota.
func NewFile(basePath string, maxValueBytes int) (*File, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("store: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}
	return &File{basePath: basePath, maxValueBytes: maxValueBytes}, nil
}

func (f *File) Get(ctx context.Context, userID, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.path(userID, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: read %s/%s: %w", userID, key, err)
	}
	return data, nil
}

func (f *File) Set(ctx context.Context, userID, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.maxValueBytes > 0 && len(value) > f.maxValueBytes {
		return domain.ErrStorageQuota
	}
	path, err := f.path(userID, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: ensure directory: %w", err)
	}
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return fmt.Errorf("store: write %s/%s: %w", userID, key, err)
	}
	return nil
}

func (f *File) Delete(ctx context.Context, userID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(userID, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s/%s: %w", userID, key, err)
	}
	return nil
}

// path sanitizes the user and key segments to prevent escaping the store root.
func (f *File) path(userID, key string) (string, error) {
	user, err := sanitizeSegment(userID)
	if err != nil {
		return "", err
	}
	k, err := sanitizeSegment(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.basePath, user, k+".json"), nil
}

func sanitizeSegment(segment string) (string, error) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", errors.New("store: empty key segment")
	}
	cleaned := filepath.Clean(segment)
	if cleaned != segment || strings.ContainsAny(cleaned, "/\\") || cleaned == "." || cleaned == ".." {
		return "", fmt.Errorf("store: invalid key segment %q", segment)
	}
	return cleaned, nil
}

var _ Store = (*File)(nil)
