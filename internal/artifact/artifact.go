// Package artifact persists generated outputs: cleanup scripts, diagrams,
// exports, and compare reports. Every artifact lands in a local directory;
// an optional S3 mirror receives a copy of each write.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"
)

// Common errors for artifact operations.
var (
	ErrNotFound    = errors.New("artifact not found")
	ErrWriteFailed = errors.New("artifact write failed")
)

// Sink persists named artifacts. Names use forward slashes regardless of
// platform; sinks translate as needed. Write returns where the artifact
// landed, in a form suitable for display and the run history.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) (location string, err error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Name builds the conventional artifact path: subdir/base_YYYYMMDD_HHMMSS.ext.
func Name(subdir, base, ext string, t time.Time) string {
	return path.Join(subdir, fmt.Sprintf("%s_%s.%s", base, t.Format("20060102_150405"), ext))
}

// Mirror writes every artifact to a primary sink and best-effort copies it
// to a secondary one. The secondary is typically an S3 bucket; a failed
// mirror write logs a warning and never fails the run, since the local copy
// already exists.
type Mirror struct {
	primary   Sink
	secondary Sink
	log       *slog.Logger
}

// NewMirror wraps primary with a best-effort secondary. A nil logger falls
// back to slog.Default.
func NewMirror(primary, secondary Sink, log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{primary: primary, secondary: secondary, log: log}
}

// Write stores the artifact in the primary sink, then mirrors it. The
// returned location is always the primary's.
func (m *Mirror) Write(ctx context.Context, name string, data []byte) (string, error) {
	location, err := m.primary.Write(ctx, name, data)
	if err != nil {
		return "", err
	}
	if mirrored, err := m.secondary.Write(ctx, name, data); err != nil {
		m.log.Warn("artifact mirror write failed", "name", name, "error", err)
	} else {
		m.log.Debug("artifact mirrored", "name", name, "location", mirrored)
	}
	return location, nil
}

// List lists from the primary sink.
func (m *Mirror) List(ctx context.Context, prefix string) ([]string, error) {
	return m.primary.List(ctx, prefix)
}
