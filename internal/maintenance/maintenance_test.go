package maintenance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tgcourier/internal/queue"
	logx "tgcourier/pkg/logx"
)

func TestSweepPrunesOldQuarantine(t *testing.T) {
	ctx := context.Background()
	store, err := queue.Open(t.TempDir(), logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	qdir := filepath.Join(store.Dir(), "quarantine")
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := filepath.Join(qdir, "stale.json")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(old, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	svc := New(Config{Enabled: true, QuarantineMaxAge: 7 * 24 * time.Hour}, store, nil, logx.Nop())
	svc.Sweep(ctx)

	if _, err := os.Stat(old); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("stale quarantine file not pruned")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	store, err := queue.Open(t.TempDir(), logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	svc := New(Config{Enabled: true, Cron: "every other blue moon"}, store, nil, logx.Nop())
	if err := svc.Start(context.Background()); err == nil {
		t.Fatal("invalid cron expression accepted")
	}
}

func TestStartStop(t *testing.T) {
	store, err := queue.Open(t.TempDir(), logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	svc := New(Config{Enabled: true, Cron: "0 3 * * *"}, store, nil, logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// idempotent start
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.Stop(ctx)
}
