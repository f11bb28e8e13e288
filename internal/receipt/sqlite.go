package receipt

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "tgcourier/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open creates (or opens) the receipt database and applies migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("receipt db path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, r Receipt) error {
	if r.SentAt.IsZero() {
		r.SentAt = time.Now()
	}
	if r.Status == "" {
		r.Status = StatusSent
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_messages(task_id, chat_id, message_id, sent_at, status)
		 VALUES(?,?,?,?,?)`,
		r.TaskID, r.ChatID, r.MessageID, r.SentAt.Format(time.RFC3339Nano), string(r.Status),
	)
	return err
}

func (s *sqliteStore) MarkDeleted(ctx context.Context, chatID string, messageID int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sent_messages SET status=?, last_updated=?
		 WHERE chat_id=? AND message_id=? AND status=?`,
		string(StatusDeleted), time.Now().Format(time.RFC3339Nano),
		chatID, messageID, string(StatusSent),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) ListTrackable(ctx context.Context) ([]Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, chat_id, message_id, sent_at, status, views, forwards, reactions, replies, last_updated
		 FROM sent_messages WHERE status=?`, string(StatusSent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var (
			r           Receipt
			sentAt      string
			status      string
			lastUpdated sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &r.ChatID, &r.MessageID, &sentAt, &status,
			&r.Views, &r.Forwards, &r.Reactions, &r.Replies, &lastUpdated); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		r.SentAt, _ = time.Parse(time.RFC3339Nano, sentAt)
		if lastUpdated.Valid {
			r.LastUpdated, _ = time.Parse(time.RFC3339Nano, lastUpdated.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateEngagement(ctx context.Context, chatID string, messageID int, eg Engagement, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sent_messages SET views=?, forwards=?, reactions=?, replies=?, last_updated=?
		 WHERE chat_id=? AND message_id=?`,
		eg.Views, eg.Forwards, eg.Reactions, eg.Replies, at.Format(time.RFC3339Nano),
		chatID, messageID,
	)
	return err
}

func (s *sqliteStore) AppendHistory(ctx context.Context, e HistoryEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_history(task_id, kind, label, recipients, ok, failed, took_ms, err, processed_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		e.TaskID, e.Kind, nullStr(e.Label), e.Recipients, e.OK, e.Failed,
		e.Took.Milliseconds(), nullStr(e.Error), e.At.Format(time.RFC3339Nano),
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
