package queue

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "tgcourier/pkg/logx"

	"tgcourier/internal/task"
)

const (
	taskExt       = ".json"
	quarantineDir = "quarantine"
)

// DirStore is the file-backed queue. It takes no locks against the producer;
// races resolve through ErrNotFound-tolerant reads and idempotent removes.
type DirStore struct {
	dir string
	log logx.Logger
}

// Open ensures the queue directory exists and returns a store over it.
func Open(dir string, log logx.Logger) (*DirStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("queue dir is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DirStore{dir: dir, log: log}, nil
}

// Dir returns the queue directory path.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) path(id string) string {
	return filepath.Join(s.dir, id+taskExt)
}

func (s *DirStore) List(ctx context.Context) ([]string, error) {
	_ = ctx
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, taskExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, taskExt))
	}
	return ids, nil
}

func (s *DirStore) Read(ctx context.Context, id string) (task.Task, error) {
	_ = ctx
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return task.Task{}, ErrNotFound
		}
		return task.Task{}, err
	}
	t, err := task.Decode(id, data)
	if err != nil {
		return task.Task{}, &MalformedError{ID: id, Err: err}
	}
	return t, nil
}

// Write is atomic relative to concurrent reads: the document is staged under
// a non-.json name first, then renamed into place.
func (s *DirStore) Write(ctx context.Context, t task.Task) error {
	_ = ctx
	data, err := task.Encode(t)
	if err != nil {
		return err
	}
	tmp := s.path(t.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path(t.ID)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *DirStore) Remove(ctx context.Context, id string) error {
	_ = ctx
	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DirStore) Quarantine(ctx context.Context, id string) error {
	_ = ctx
	qdir := filepath.Join(s.dir, quarantineDir)
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		return err
	}
	err := os.Rename(s.path(id), filepath.Join(qdir, id+taskExt))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err == nil {
		s.log.Warn("task quarantined", logx.String("task", id))
	}
	return nil
}

// SweepQuarantine removes quarantined documents older than maxAge and returns
// how many were deleted. Used by the maintenance schedule.
func (s *DirStore) SweepQuarantine(ctx context.Context, maxAge time.Duration) (int, error) {
	_ = ctx
	qdir := filepath.Join(s.dir, quarantineDir)
	entries, err := os.ReadDir(qdir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(qdir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
