package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// document is the wire representation of a Task: one JSON object per file in
// the queue directory. The schema is shared with the admin front-end, which
// historically wrote numeric chat IDs into "recipients" and naive local
// timestamps into "send_at"; decoding stays tolerant of both.
type document struct {
	Type       string            `json:"type"`
	Recipients []json.RawMessage `json:"recipients,omitempty"`
	Content    json.RawMessage   `json:"content,omitempty"`
	FilePath   string            `json:"file_path,omitempty"`
	FileType   string            `json:"file_type,omitempty"`
	SendAt     *string           `json:"send_at,omitempty"`
	ExpiresIn  *float64          `json:"expires_in_hours,omitempty"`
	ChatID     json.RawMessage   `json:"chat_id,omitempty"`
	MessageID  int               `json:"message_id,omitempty"`
	Label      string            `json:"label,omitempty"`
}

// sendAtLayouts covers RFC 3339 and the zone-less ISO-8601 strings the
// front-end produces (Python datetime.isoformat() without tzinfo).
var sendAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Decode parses one task document. The id comes from the storage key
// (file name), not from the document itself.
func Decode(id string, data []byte) (Task, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Task{}, fmt.Errorf("task %s: %w", id, err)
	}

	t := Task{
		ID:       id,
		Kind:     Kind(doc.Type),
		FilePath: doc.FilePath,
		FileType: doc.FileType,
		Label:    doc.Label,
	}
	if !t.Kind.Valid() {
		return Task{}, fmt.Errorf("task %s: unknown type %q", id, doc.Type)
	}

	for i, raw := range doc.Recipients {
		r, err := decodeOpaqueID(raw)
		if err != nil {
			return Task{}, fmt.Errorf("task %s: recipient %d: %w", id, i, err)
		}
		if r != "" {
			t.Recipients = append(t.Recipients, r)
		}
	}

	switch t.Kind {
	case KindMessage:
		if len(doc.Content) > 0 {
			if err := json.Unmarshal(doc.Content, &t.Text); err != nil {
				return Task{}, fmt.Errorf("task %s: content: %w", id, err)
			}
		}
	case KindPoll:
		var q Quiz
		if err := json.Unmarshal(doc.Content, &q); err != nil {
			return Task{}, fmt.Errorf("task %s: quiz content: %w", id, err)
		}
		t.Quiz = &q
	case KindDelete:
		chat, err := decodeOpaqueID(doc.ChatID)
		if err != nil {
			return Task{}, fmt.Errorf("task %s: chat_id: %w", id, err)
		}
		t.ChatID = chat
		t.MessageID = doc.MessageID
	}

	if doc.SendAt != nil && strings.TrimSpace(*doc.SendAt) != "" {
		at, err := parseSendAt(*doc.SendAt)
		if err != nil {
			return Task{}, fmt.Errorf("task %s: send_at: %w", id, err)
		}
		t.NotBefore = at
	}
	if doc.ExpiresIn != nil && *doc.ExpiresIn > 0 {
		t.ExpiresAfter = time.Duration(*doc.ExpiresIn * float64(time.Hour))
	}

	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Encode renders the task back into its wire document.
func Encode(t Task) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	doc := document{
		Type:      string(t.Kind),
		FilePath:  t.FilePath,
		FileType:  t.FileType,
		MessageID: t.MessageID,
		Label:     t.Label,
	}
	for _, r := range t.Recipients {
		doc.Recipients = append(doc.Recipients, encodeOpaqueID(r))
	}
	switch t.Kind {
	case KindMessage:
		b, err := json.Marshal(t.Text)
		if err != nil {
			return nil, err
		}
		doc.Content = b
	case KindPoll:
		b, err := json.Marshal(t.Quiz)
		if err != nil {
			return nil, err
		}
		doc.Content = b
	case KindDelete:
		doc.ChatID = encodeOpaqueID(t.ChatID)
	}
	if !t.NotBefore.IsZero() {
		s := t.NotBefore.Format(time.RFC3339)
		doc.SendAt = &s
	}
	if t.ExpiresAfter > 0 {
		h := t.ExpiresAfter.Hours()
		doc.ExpiresIn = &h
	}
	return json.MarshalIndent(doc, "", "  ")
}

func parseSendAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sendAtLayouts {
		if at, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// decodeOpaqueID accepts a JSON string or number and normalizes it to a string.
func decodeOpaqueID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case json.Number:
		return x.String(), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string or number, got %T", v)
	}
}

// encodeOpaqueID preserves numeric IDs as JSON numbers so documents round-trip
// the way the front-end wrote them.
func encodeOpaqueID(id string) json.RawMessage {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return json.RawMessage(id)
	}
	b, _ := json.Marshal(id)
	return b
}
