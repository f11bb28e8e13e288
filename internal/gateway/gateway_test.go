package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "tgcourier/pkg/logx"
)

func TestToRecipient(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123456789", "123456789"},
		{"-1001234567890", "-1001234567890"},
		{"@channel", "@channel"},
		{"channel", "@channel"},
	}
	for _, c := range cases {
		if got := toRecipient(c.in).Recipient(); got != c.want {
			t.Errorf("toRecipient(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if _, ok := toRecipient("42").(tele.ChatID); !ok {
		t.Error("numeric id should resolve to a chat id, not a username")
	}
}

func TestCheckAttachment(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "nope.jpg")
	if err := checkAttachment(missing); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("missing file: %v", err)
	}

	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := checkAttachment(empty); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("empty file: %v", err)
	}

	real := filepath.Join(dir, "pic.jpg")
	if err := os.WriteFile(real, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := checkAttachment(real); err != nil {
		t.Fatalf("valid file: %v", err)
	}
}

// countingGateway fails a fixed number of times before succeeding.
type countingGateway struct {
	failures int
	calls    int
	err      error
}

func (g *countingGateway) attempt() (int, error) {
	g.calls++
	if g.calls <= g.failures {
		return 0, g.err
	}
	return 99, nil
}

func (g *countingGateway) SendText(context.Context, string, string) (int, error) { return g.attempt() }
func (g *countingGateway) SendPhoto(context.Context, string, string, string) (int, error) {
	return g.attempt()
}
func (g *countingGateway) SendDocument(context.Context, string, string, string) (int, error) {
	return g.attempt()
}
func (g *countingGateway) SendPoll(context.Context, string, string, []string, int) (int, error) {
	return g.attempt()
}
func (g *countingGateway) DeleteMessage(context.Context, string, int) error {
	_, err := g.attempt()
	return err
}

func TestWithRetryDisabledReturnsInner(t *testing.T) {
	inner := &countingGateway{}
	if got := WithRetry(inner, RetryConfig{Max: 0}, logx.Nop()); got != Gateway(inner) {
		t.Fatal("Max=0 must return the inner gateway unchanged")
	}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	inner := &countingGateway{failures: 2, err: errors.New("telegram: 502")}
	gw := WithRetry(inner, RetryConfig{Max: 2, Base: time.Millisecond}, logx.Nop())

	id, err := gw.SendText(context.Background(), "1", "hi")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != 99 || inner.calls != 3 {
		t.Fatalf("id = %d, calls = %d", id, inner.calls)
	}
}

func TestRetryGivesUpAfterMax(t *testing.T) {
	inner := &countingGateway{failures: 10, err: errors.New("telegram: 502")}
	gw := WithRetry(inner, RetryConfig{Max: 2, Base: time.Millisecond}, logx.Nop())

	if _, err := gw.SendText(context.Background(), "1", "hi"); err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3 (1 + 2 retries)", inner.calls)
	}
}

func TestRetrySkipsPermanentFailures(t *testing.T) {
	inner := &countingGateway{failures: 10, err: ErrBadPayload}
	gw := WithRetry(inner, RetryConfig{Max: 3, Base: time.Millisecond}, logx.Nop())

	if _, err := gw.SendText(context.Background(), "1", "hi"); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("err = %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retries on bad payload)", inner.calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &countingGateway{failures: 10, err: errors.New("telegram: 502")}
	gw := WithRetry(inner, RetryConfig{Max: 5, Base: 50 * time.Millisecond}, logx.Nop())

	if _, err := gw.SendText(ctx, "1", "hi"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}

func TestNewTelegramRejectsEmptyToken(t *testing.T) {
	if _, err := NewTelegram(Config{}, logx.Nop()); err == nil {
		t.Fatal("empty token accepted")
	}
}
