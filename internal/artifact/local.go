package artifact

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalSink stores artifacts under a base directory on the local
// filesystem. It tracks an md5 etag per artifact so callers can verify
// what a path holds without re-reading it.
type LocalSink struct {
	baseDir string

	mu    sync.RWMutex
	etags map[string]string
}

// NewLocalSink creates the base directory and returns a sink rooted there.
func NewLocalSink(baseDir string) (*LocalSink, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create base directory: %v", ErrWriteFailed, err)
	}
	return &LocalSink{
		baseDir: baseDir,
		etags:   make(map[string]string),
	}, nil
}

// Write stores data at baseDir/name, creating parent directories as needed,
// and returns the filesystem path.
func (l *LocalSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := l.fullPath(name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	sum := md5.Sum(data)
	l.mu.Lock()
	l.etags[name] = hex.EncodeToString(sum[:])
	l.mu.Unlock()

	return dest, nil
}

// Read returns the stored artifact's content.
func (l *LocalSink) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.fullPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// List returns every artifact name under the given prefix, relative to the
// base directory and in slash form.
func (l *LocalSink) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchDir := l.fullPath(prefix)
	var names []string
	err := filepath.Walk(searchDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(l.baseDir, p)
			if err != nil {
				return err
			}
			names = append(names, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ETag returns the md5 etag recorded for an artifact written through this
// sink instance.
func (l *LocalSink) ETag(name string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	etag, ok := l.etags[name]
	return etag, ok
}

func (l *LocalSink) fullPath(name string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(name))
}
