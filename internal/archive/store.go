package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a name would escape the store directory.
var ErrPathTraversal = errors.New("path traversal detected")

// ErrNotArchive is returned for names that do not end in Extension.
var ErrNotArchive = errors.New("only .zip archives may be stored")

// Store persists downloaded archives.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

// LocalStore writes archives into a directory on the local filesystem.
type LocalStore struct {
	baseDir string
}

// NewLocalStore checks that baseDir exists (creating it if needed) and is a
// writable directory.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("archive directory is required")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create archive directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat archive directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("archive path %q is not a directory", baseDir)
	}

	probe, err := os.CreateTemp(baseDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("archive directory is not writable: %w", err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Dir returns the store directory.
func (s *LocalStore) Dir() string {
	return s.baseDir
}

// Put streams r into name under the store directory and returns the final
// path. Data is written to a temporary file first and renamed into place so a
// failed download never leaves a partial archive behind.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if !strings.HasSuffix(name, Extension) {
		return "", ErrNotArchive
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || name == ".." {
		return "", ErrPathTraversal
	}
	base := filepath.Clean(s.baseDir)
	full := filepath.Join(base, name)
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	tmp, err := os.CreateTemp(base, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("move archive into place: %w", err)
	}
	return full, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
