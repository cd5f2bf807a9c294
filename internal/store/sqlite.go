// Package store persists transcripts, settings, users and access counters
// in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"melobot/internal/domain"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the domain persistence interfaces using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL UNIQUE,
		title       TEXT,
		user_id     TEXT,
		bot_id      TEXT,
		start_time  DATETIME,
		end_time    DATETIME,
		messages    TEXT NOT NULL,
		logged_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_logged ON chat_sessions(logged_at);

	CREATE TABLE IF NOT EXISTS app_settings (
		key    TEXT PRIMARY KEY,
		value  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		username           TEXT PRIMARY KEY,
		password_hash      TEXT,
		system_instruction TEXT,
		created_at         DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bot_ranking (
		bot_id      TEXT PRIMARY KEY,
		bot_name    TEXT,
		count       INTEGER NOT NULL DEFAULT 0,
		last_access DATETIME
	);

	CREATE TABLE IF NOT EXISTS access_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		date       TEXT,
		time       TEXT,
		ip         TEXT,
		bot_name   TEXT,
		action     TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_access_time ON access_log(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save upserts a transcript keyed by session ID. The client resends the full
// accumulated message list on every save, so the stored row is simply
// replaced. Returns the row's stable ID.
func (s *SQLiteStore) Save(ctx context.Context, t domain.Transcript) (string, error) {
	if t.SessionID == "" {
		return "", fmt.Errorf("transcript has no session ID")
	}
	if t.LoggedAt.IsZero() {
		t.LoggedAt = time.Now()
	}

	payload, err := json.Marshal(t.Messages)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, session_id, title, user_id, bot_id, start_time, end_time, messages, logged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			title      = excluded.title,
			user_id    = excluded.user_id,
			bot_id     = excluded.bot_id,
			start_time = excluded.start_time,
			end_time   = excluded.end_time,
			messages   = excluded.messages,
			logged_at  = excluded.logged_at`,
		id, t.SessionID, t.Title, t.UserID, t.BotID, t.StartTime, t.EndTime, string(payload), t.LoggedAt,
	)
	if err != nil {
		return "", err
	}

	// The upsert keeps the original id on conflict; read back the winner.
	var stored string
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM chat_sessions WHERE session_id = ?`, t.SessionID,
	).Scan(&stored); err != nil {
		return "", err
	}
	return stored, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, title, user_id, bot_id, start_time, end_time, messages, logged_at
		 FROM chat_sessions WHERE id = ?`, id,
	)
	t, err := scanTranscript(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]domain.Transcript, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, title, user_id, bot_id, start_time, end_time, messages, logged_at
		 FROM chat_sessions ORDER BY start_time DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Rename(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chat_sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranscript(r rowScanner) (*domain.Transcript, error) {
	var t domain.Transcript
	var start, end, logged sql.NullTime
	var payload string
	if err := r.Scan(&t.ID, &t.SessionID, &t.Title, &t.UserID, &t.BotID,
		&start, &end, &payload, &logged); err != nil {
		return nil, err
	}
	if start.Valid {
		t.StartTime = start.Time
	}
	if end.Valid {
		t.EndTime = end.Time
	}
	if logged.Valid {
		t.LoggedAt = logged.Time
	}
	if err := json.Unmarshal([]byte(payload), &t.Messages); err != nil {
		return nil, fmt.Errorf("corrupt message payload for session %s: %w", t.SessionID, err)
	}
	return &t, nil
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM app_settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	var hash, instruction sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, system_instruction, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.Username, &hash, &instruction, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash.String
	u.SystemInstruction = instruction.String
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, system_instruction, created_at)
		 VALUES (?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.SystemInstruction, u.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) SetUserInstruction(ctx context.Context, username, instruction string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET system_instruction = ? WHERE username = ?`,
		instruction, username,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) RecordAccess(ctx context.Context, botID, botName string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_ranking (bot_id, bot_name, count, last_access)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(bot_id) DO UPDATE SET
			count       = count + 1,
			bot_name    = excluded.bot_name,
			last_access = excluded.last_access`,
		botID, botName, at,
	)
	return err
}

func (s *SQLiteStore) All(ctx context.Context) ([]domain.RankingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bot_id, bot_name, count, last_access FROM bot_ranking ORDER BY count DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RankingEntry
	for rows.Next() {
		var e domain.RankingEntry
		var name sql.NullString
		var last sql.NullTime
		if err := rows.Scan(&e.BotID, &name, &e.Count, &last); err != nil {
			return nil, err
		}
		e.BotName = name.String
		if last.Valid {
			e.LastAccess = last.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendAccess(ctx context.Context, e domain.AccessLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_log (date, time, ip, bot_name, action) VALUES (?, ?, ?, ?, ?)`,
		e.Date, e.Time, e.IP, e.BotName, e.Action,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var (
	_ domain.TranscriptStore = (*SQLiteStore)(nil)
	_ domain.SettingStore    = (*SQLiteStore)(nil)
	_ domain.UserStore       = (*SQLiteStore)(nil)
	_ domain.RankingStore    = (*SQLiteStore)(nil)
	_ domain.AccessLogStore  = (*SQLiteStore)(nil)
)
