package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"tgcourier/internal/task"
	logx "tgcourier/pkg/logx"
)

func openTestStore(t *testing.T) *DirStore {
	t.Helper()
	s, err := Open(t.TempDir(), logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "queue")
	if _, err := Open(dir, logx.Nop()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("queue dir not created: %v", err)
	}
}

func TestWriteListReadRemove(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tk := task.Task{
		ID:         "t1",
		Kind:       task.KindMessage,
		Recipients: []string{"123"},
		Text:       "hello",
	}
	if err := s.Write(ctx, tk); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("List = %v", ids)
	}

	got, err := s.Read(ctx, "t1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Text != "hello" || got.Recipients[0] != "123" {
		t.Fatalf("Read = %+v", got)
	}

	if err := s.Remove(ctx, "t1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// removing again must be a no-op
	if err := s.Remove(ctx, "t1"); err != nil {
		t.Fatalf("Remove (absent): %v", err)
	}
	if _, err := s.Read(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read after remove = %v, want ErrNotFound", err)
	}
}

func TestListIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	// a staged write, an unrelated file, and a subdirectory
	for _, name := range []string{"half.json.tmp", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(s.Dir(), name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(s.Dir(), "quarantine"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, task.Task{ID: "real", Kind: task.KindMessage, Recipients: []string{"1"}, Text: "x"}); err != nil {
		t.Fatal(err)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != "real" {
		t.Fatalf("List = %v, want [real]", ids)
	}
}

func TestReadMalformed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte(`{"type": "nope"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Read(ctx, "broken")
	if !IsMalformed(err) {
		t.Fatalf("Read = %v, want MalformedError", err)
	}
	var me *MalformedError
	if !errors.As(err, &me) || me.ID != "broken" {
		t.Fatalf("malformed id = %+v", me)
	}
}

func TestQuarantine(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := os.WriteFile(filepath.Join(s.Dir(), "bad.json"), []byte(`not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Quarantine(ctx, "bad"); err != nil {
		t.Fatalf("Quarantine: %v", err)
	}

	// gone from the queue listing, preserved on disk
	ids, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("List after quarantine = %v", ids)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "quarantine", "bad.json")); err != nil {
		t.Fatalf("quarantined file missing: %v", err)
	}

	// quarantining an absent id is a no-op
	if err := s.Quarantine(ctx, "ghost"); err != nil {
		t.Fatalf("Quarantine (absent): %v", err)
	}
}

func TestSweepQuarantine(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	qdir := filepath.Join(s.Dir(), "quarantine")
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := filepath.Join(qdir, "old.json")
	fresh := filepath.Join(qdir, "fresh.json")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	removed, err := s.SweepQuarantine(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepQuarantine: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("old file still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
}

func TestWriteOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := task.Task{ID: "t", Kind: task.KindMessage, Recipients: []string{"1"}, Text: "v1"}
	if err := s.Write(ctx, base); err != nil {
		t.Fatal(err)
	}
	base.Text = "v2"
	if err := s.Write(ctx, base); err != nil {
		t.Fatal(err)
	}

	got, err := s.Read(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "v2" {
		t.Fatalf("Text = %q, want v2", got.Text)
	}

	ids, _ := s.List(ctx)
	sort.Strings(ids)
	if len(ids) != 1 {
		t.Fatalf("List = %v", ids)
	}
}
