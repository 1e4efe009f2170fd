package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// SQLiteStore is the zero-infrastructure backend for local development.
// It has no push channel, so the sync engine runs it in polling mode.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite store.
// If dbPath is empty, defaults to "./data/sohbetchat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/sohbetchat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, E(KindValidation, "sqlite.open", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, E(KindValidation, "sqlite.open", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, E(KindNetwork, "sqlite.ping", err)
	}

	s := &SQLiteStore{db: db}

	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		body TEXT NOT NULL,
		channel TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'USER',
		ts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_channel_ts ON chat_messages(channel, ts);

	CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		nickname TEXT UNIQUE NOT NULL,
		full_name TEXT DEFAULT '',
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_registrations_status ON registrations(status);

	CREATE TABLE IF NOT EXISTS system_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return E(KindNetwork, "sqlite.init_schema", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return E(KindNetwork, "sqlite.ping", err)
	}
	return nil
}

// Insert persists a message.
func (s *SQLiteStore) Insert(ctx context.Context, sender, text string, typ models.MessageType, channel string) (*models.Message, error) {
	if text == "" {
		return nil, E(KindValidation, "sqlite.insert", fmt.Errorf("empty message body"))
	}

	msg := &models.Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		Channel:   channel,
		Type:      typ,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, sender, body, channel, type, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.Sender, msg.Text, msg.Channel, string(msg.Type), msg.Timestamp)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, E(KindValidation, "sqlite.insert", err)
		}
		return nil, E(KindNetwork, "sqlite.insert", err)
	}

	return msg, nil
}

// ListChannel returns up to limit messages for a channel, oldest first.
func (s *SQLiteStore) ListChannel(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, body, channel, type, ts FROM (
			SELECT id, sender, body, channel, type, ts
			FROM chat_messages
			WHERE channel = ?
			ORDER BY ts DESC, id DESC
			LIMIT ?
		)
		ORDER BY ts ASC, id ASC
	`, channel, limit)
	if err != nil {
		return nil, E(KindNetwork, "sqlite.list_channel", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var typ string
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Text, &msg.Channel, &typ, &msg.Timestamp); err != nil {
			return nil, E(KindNetwork, "sqlite.list_channel", err)
		}
		msg.Type = models.MessageType(typ)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Subscribe is unsupported; SQLite has no push channel.
func (s *SQLiteStore) Subscribe(ctx context.Context, onCreate func(models.Message)) (Subscription, error) {
	return nil, ErrPushUnsupported
}

// ListApproved returns approved registrations for the participant sync.
func (s *SQLiteStore) ListApproved(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nickname, full_name, email, status, created_at
		FROM registrations
		WHERE status = 'approved'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, E(KindNetwork, "sqlite.list_approved", err)
	}
	defer rows.Close()

	return s.scanRegistrations(rows)
}

// CreateRegistration stores a new pending application.
func (s *SQLiteStore) CreateRegistration(ctx context.Context, reg *models.Registration, passwordHash string) (*models.Registration, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (id, nickname, full_name, email, password_hash, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)
	`, id, reg.Nickname, reg.FullName, reg.Email, passwordHash, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, E(KindValidation, "sqlite.create_registration", err)
		}
		return nil, E(KindNetwork, "sqlite.create_registration", err)
	}

	return &models.Registration{
		ID:        id,
		Nickname:  reg.Nickname,
		FullName:  reg.FullName,
		Email:     reg.Email,
		Status:    models.StatusPending,
		CreatedAt: now,
	}, nil
}

// GetRegistrationByEmail returns an application and its password hash.
func (s *SQLiteStore) GetRegistrationByEmail(ctx context.Context, email string) (*models.Registration, string, error) {
	reg := &models.Registration{}
	var status, hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nickname, full_name, email, status, created_at, password_hash
		FROM registrations WHERE email = ?
	`, email).Scan(&reg.ID, &reg.Nickname, &reg.FullName, &reg.Email, &status, &reg.CreatedAt, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", E(KindNotFound, "sqlite.get_registration", err)
		}
		return nil, "", E(KindNetwork, "sqlite.get_registration", err)
	}
	reg.Status = models.RegistrationStatus(status)
	return reg, hash, nil
}

// FindConflict reports an existing registration colliding on email or nickname.
func (s *SQLiteStore) FindConflict(ctx context.Context, email, nickname string) (*models.Registration, error) {
	reg := &models.Registration{}
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nickname, full_name, email, status, created_at
		FROM registrations WHERE email = ? OR nickname = ?
		LIMIT 1
	`, email, nickname).Scan(&reg.ID, &reg.Nickname, &reg.FullName, &reg.Email, &status, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, E(KindNetwork, "sqlite.find_conflict", err)
	}
	reg.Status = models.RegistrationStatus(status)
	return reg, nil
}

// ListRegistrations returns all applications, newest first.
func (s *SQLiteStore) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nickname, full_name, email, status, created_at
		FROM registrations
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, E(KindNetwork, "sqlite.list_registrations", err)
	}
	defer rows.Close()

	return s.scanRegistrations(rows)
}

// UpdateRegistrationStatus approves or rejects an application.
func (s *SQLiteStore) UpdateRegistrationStatus(ctx context.Context, id string, status models.RegistrationStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registrations SET status = ? WHERE id = ?
	`, string(status), id)
	if err != nil {
		return E(KindNetwork, "sqlite.update_status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return E(KindNotFound, "sqlite.update_status", fmt.Errorf("registration %s not found", id))
	}
	return nil
}

// GetBotPersonality returns the configured bot personality prompt.
func (s *SQLiteStore) GetBotPersonality(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM system_config WHERE key = 'bot_personality'
	`).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultBotPersonality, nil
		}
		return "", E(KindNetwork, "sqlite.get_bot_personality", err)
	}
	return value, nil
}

// SetBotPersonality stores the bot personality prompt.
func (s *SQLiteStore) SetBotPersonality(ctx context.Context, personality string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_config (key, value) VALUES ('bot_personality', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, personality)
	if err != nil {
		return E(KindNetwork, "sqlite.set_bot_personality", err)
	}
	return nil
}

// scanRegistrations reads registration rows.
func (s *SQLiteStore) scanRegistrations(rows *sql.Rows) ([]models.Registration, error) {
	var regs []models.Registration
	for rows.Next() {
		var reg models.Registration
		var status string
		if err := rows.Scan(&reg.ID, &reg.Nickname, &reg.FullName, &reg.Email, &status, &reg.CreatedAt); err != nil {
			return nil, E(KindNetwork, "sqlite.scan", err)
		}
		reg.Status = models.RegistrationStatus(status)
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}
