package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by store mutations that target a missing row.
var ErrNotFound = errors.New("not found")

// Transcript is one persisted conversation session. The client owns the
// session lifecycle and resends the full accumulated message list on every
// save, so Save has overwrite semantics keyed by SessionID.
type Transcript struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title"`
	UserID    string    `json:"userId"`
	BotID     string    `json:"botId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Messages  []Message `json:"messages"`
	LoggedAt  time.Time `json:"loggedAt"`
}

// TranscriptStore persists conversation transcripts.
type TranscriptStore interface {
	Save(ctx context.Context, t Transcript) (string, error)
	Get(ctx context.Context, id string) (*Transcript, error)
	List(ctx context.Context, limit int) ([]Transcript, error)
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, title string) error
}

// Setting keys stored in SettingStore.
const (
	SettingSystemInstruction = "systemInstruction"
	SettingAdminPasswordHash = "adminPasswordHash"
)

// SettingStore is a persisted key/value map for app-level configuration
// that admins can change at runtime (global system instruction, admin
// password hash). Get returns "" for absent keys.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// User is a registered chat user with an optional personal instruction.
type User struct {
	Username          string    `json:"username"`
	PasswordHash      string    `json:"-"`
	SystemInstruction string    `json:"systemInstruction"`
	CreatedAt         time.Time `json:"createdAt"`
}

// UserStore persists users. GetUser returns (nil, nil) for unknown users.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u User) error
	SetUserInstruction(ctx context.Context, username, instruction string) error
}

// RankingEntry is one bot's access counter for the showcase ranking.
type RankingEntry struct {
	BotID      string    `json:"botId"`
	BotName    string    `json:"nomeBot"`
	Count      int64     `json:"contagem"`
	LastAccess time.Time `json:"ultimoAcesso"`
}

// RankingStore counts bot accesses. All returns entries sorted by Count
// descending.
type RankingStore interface {
	RecordAccess(ctx context.Context, botID, botName string, at time.Time) error
	All(ctx context.Context) ([]RankingEntry, error)
}

// AccessLogEntry mirrors the legacy connection-log row layout.
type AccessLogEntry struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	IP      string `json:"ip"`
	BotName string `json:"botName"`
	Action  string `json:"action"`
}

// AccessLogStore appends connection audit rows.
type AccessLogStore interface {
	AppendAccess(ctx context.Context, e AccessLogEntry) error
}
