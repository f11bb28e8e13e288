package task

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeMessageDocument(t *testing.T) {
	doc := `{
		"type": "message",
		"recipients": [123456789, "@channel"],
		"content": "hello",
		"send_at": "2026-01-15T09:30:00",
		"expires_in_hours": 2.5,
		"label": "morning brief"
	}`

	tk, err := Decode("abc", []byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tk.ID != "abc" {
		t.Fatalf("id = %q, want abc", tk.ID)
	}
	if tk.Kind != KindMessage {
		t.Fatalf("kind = %q", tk.Kind)
	}
	if len(tk.Recipients) != 2 || tk.Recipients[0] != "123456789" || tk.Recipients[1] != "@channel" {
		t.Fatalf("recipients = %v", tk.Recipients)
	}
	if tk.Text != "hello" {
		t.Fatalf("text = %q", tk.Text)
	}
	want := time.Date(2026, 1, 15, 9, 30, 0, 0, time.Local)
	if !tk.NotBefore.Equal(want) {
		t.Fatalf("not_before = %v, want %v", tk.NotBefore, want)
	}
	if tk.ExpiresAfter != 2*time.Hour+30*time.Minute {
		t.Fatalf("expires_after = %v", tk.ExpiresAfter)
	}
	if tk.Label != "morning brief" {
		t.Fatalf("label = %q", tk.Label)
	}
}

func TestDecodePollDocument(t *testing.T) {
	doc := `{
		"type": "poll",
		"recipients": ["42"],
		"content": {"question": "2+2?", "options": ["3", "4", "5"], "correct": 1}
	}`

	tk, err := Decode("p1", []byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tk.Kind != KindPoll || tk.Quiz == nil {
		t.Fatalf("quiz not decoded: %+v", tk)
	}
	if tk.Quiz.Question != "2+2?" || len(tk.Quiz.Options) != 3 || tk.Quiz.Correct != 1 {
		t.Fatalf("quiz = %+v", tk.Quiz)
	}
}

func TestDecodeDeleteDocument(t *testing.T) {
	doc := `{"type": "delete_message", "chat_id": 987654321, "message_id": 55}`

	tk, err := Decode("d1", []byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tk.ChatID != "987654321" || tk.MessageID != 55 {
		t.Fatalf("delete payload = %q/%d", tk.ChatID, tk.MessageID)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{{{`,
		"unknown type":      `{"type": "carrier_pigeon", "recipients": ["1"]}`,
		"no recipients":     `{"type": "message", "content": "hi"}`,
		"empty message":     `{"type": "message", "recipients": ["1"]}`,
		"bad quiz":          `{"type": "poll", "recipients": ["1"], "content": {"question": "q", "options": ["only"], "correct": 0}}`,
		"correct oob":       `{"type": "poll", "recipients": ["1"], "content": {"question": "q", "options": ["a","b"], "correct": 2}}`,
		"delete no chat":    `{"type": "delete_message", "message_id": 5}`,
		"delete no message": `{"type": "delete_message", "chat_id": "1"}`,
		"bad send_at":       `{"type": "message", "recipients": ["1"], "content": "x", "send_at": "tomorrow-ish"}`,
	}
	for name, doc := range cases {
		if _, err := Decode("bad", []byte(doc)); err == nil {
			t.Errorf("%s: Decode accepted malformed document", name)
		}
	}
}

func TestDecodeSendAtLayouts(t *testing.T) {
	for _, s := range []string{
		"2026-01-15T09:30:00Z",
		"2026-01-15T09:30:00+07:00",
		"2026-01-15T09:30:00.123456",
		"2026-01-15T09:30:00",
	} {
		doc := `{"type": "message", "recipients": ["1"], "content": "x", "send_at": "` + s + `"}`
		tk, err := Decode("t", []byte(doc))
		if err != nil {
			t.Errorf("send_at %q rejected: %v", s, err)
			continue
		}
		if tk.NotBefore.IsZero() {
			t.Errorf("send_at %q produced zero NotBefore", s)
		}
	}
}

func TestReady(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name      string
		notBefore time.Time
		want      bool
	}{
		{"zero is always ready", time.Time{}, true},
		{"past", now.Add(-time.Minute), true},
		{"exactly now", now, true},
		{"future", now.Add(time.Minute), false},
	}
	for _, c := range cases {
		tk := Task{NotBefore: c.notBefore}
		if got := tk.Ready(now); got != c.want {
			t.Errorf("%s: Ready = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	orig := Task{
		ID:           "rt",
		Kind:         KindMessage,
		Recipients:   []string{"123", "@name"},
		Text:         "payload",
		FilePath:     "/tmp/pic.jpg",
		FileType:     AttachmentPhoto,
		NotBefore:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local),
		ExpiresAfter: time.Hour,
		Label:        "round trip",
	}

	b, err := Encode(orig)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// numeric recipient must stay a JSON number for the front-end
	if !strings.Contains(string(b), "123,") && !strings.Contains(string(b), "123\n") {
		t.Fatalf("numeric recipient not preserved as number:\n%s", b)
	}

	got, err := Decode("rt", b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Text != orig.Text || got.FilePath != orig.FilePath || got.FileType != orig.FileType {
		t.Fatalf("payload mismatch: %+v", got)
	}
	if !got.NotBefore.Equal(orig.NotBefore) {
		t.Fatalf("not_before = %v, want %v", got.NotBefore, orig.NotBefore)
	}
	if got.ExpiresAfter != orig.ExpiresAfter {
		t.Fatalf("expires_after = %v", got.ExpiresAfter)
	}
}

func TestDeriveDeletion(t *testing.T) {
	parent := Task{
		ID:         "parent",
		Kind:       KindMessage,
		Recipients: []string{"100", "200"},
		Text:       "vanishing",
		Label:      "teaser",
	}
	deleteAt := time.Now().Add(30 * time.Minute)

	d := DeriveDeletion(parent, "100", 777, deleteAt)
	if d.Kind != KindDelete {
		t.Fatalf("kind = %q", d.Kind)
	}
	if d.ID == "" || d.ID == parent.ID {
		t.Fatalf("derived task must get its own id, got %q", d.ID)
	}
	if d.ChatID != "100" || d.MessageID != 777 {
		t.Fatalf("target = %q/%d", d.ChatID, d.MessageID)
	}
	if !d.NotBefore.Equal(deleteAt) {
		t.Fatalf("not_before = %v, want %v", d.NotBefore, deleteAt)
	}
	if d.Label != "expire: teaser" {
		t.Fatalf("label = %q", d.Label)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("derived task invalid: %v", err)
	}
	if d.Ready(time.Now()) {
		t.Fatalf("derived deletion must not be ready before deleteAt")
	}
}
