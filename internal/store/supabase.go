package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// notifyChannel is the Postgres NOTIFY channel for message creation events.
const notifyChannel = "sohbetchat_messages"

// SupabaseStore talks directly to the Supabase Postgres database. Messages
// live in chat_messages; push mode rides on LISTEN/NOTIFY so no extra
// infrastructure is needed. It also backs the registration roster and the
// system config table.
type SupabaseStore struct {
	pool *pgxpool.Pool
	url  string
}

// NewSupabaseStore creates a Postgres-backed store with a connection pool.
func NewSupabaseStore(ctx context.Context, databaseURL string) (*SupabaseStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, E(KindValidation, "supabase.connect", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, E(KindNetwork, "supabase.ping", err)
	}

	s := &SupabaseStore{pool: pool, url: databaseURL}

	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *SupabaseStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		body TEXT NOT NULL,
		channel TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'USER',
		ts BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_channel_ts ON chat_messages(channel, ts);

	CREATE TABLE IF NOT EXISTS registrations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		nickname TEXT UNIQUE NOT NULL,
		full_name TEXT DEFAULT '',
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_registrations_status ON registrations(status);

	CREATE TABLE IF NOT EXISTS system_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return E(KindNetwork, "supabase.init_schema", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *SupabaseStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return E(KindNetwork, "supabase.ping", err)
	}
	return nil
}

// Insert persists a message and notifies listeners.
func (s *SupabaseStore) Insert(ctx context.Context, sender, text string, typ models.MessageType, channel string) (*models.Message, error) {
	if text == "" {
		return nil, E(KindValidation, "supabase.insert", fmt.Errorf("empty message body"))
	}

	msg := &models.Message{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		Channel:   channel,
		Type:      typ,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, E(KindValidation, "supabase.insert", err)
	}

	// Insert and notify in one transaction so a delivered event always
	// refers to a committed row.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, E(KindNetwork, "supabase.insert", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_messages (id, sender, body, channel, type, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.Sender, msg.Text, msg.Channel, string(msg.Type), msg.Timestamp)
	if err != nil {
		return nil, wrapPgError("supabase.insert", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		return nil, E(KindNetwork, "supabase.insert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, E(KindNetwork, "supabase.insert", err)
	}

	return msg, nil
}

// ListChannel returns up to limit messages for a channel, oldest first.
func (s *SupabaseStore) ListChannel(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender, body, channel, type, ts FROM (
			SELECT id, sender, body, channel, type, ts
			FROM chat_messages
			WHERE channel = $1
			ORDER BY ts DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY ts ASC, id ASC
	`, channel, limit)
	if err != nil {
		return nil, E(KindNetwork, "supabase.list_channel", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var typ string
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Text, &msg.Channel, &typ, &msg.Timestamp); err != nil {
			return nil, E(KindNetwork, "supabase.list_channel", err)
		}
		msg.Type = models.MessageType(typ)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// pgSubscription wraps a dedicated LISTEN connection.
type pgSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (s *pgSubscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Subscribe opens a dedicated connection and listens for creation events.
func (s *SupabaseStore) Subscribe(ctx context.Context, onCreate func(models.Message)) (Subscription, error) {
	conn, err := pgx.Connect(ctx, s.url)
	if err != nil {
		return nil, E(KindNetwork, "supabase.subscribe", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		_ = conn.Close(ctx)
		return nil, E(KindNetwork, "supabase.subscribe", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())

	go func() {
		defer conn.Close(context.Background())
		for {
			n, err := conn.WaitForNotification(subCtx)
			if err != nil {
				// Cancelled or connection lost; the engine handles
				// re-subscription, not the store.
				return
			}
			var msg models.Message
			if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
				continue
			}
			onCreate(msg)
		}
	}()

	return &pgSubscription{cancel: cancel}, nil
}

// ListApproved returns approved registrations for the participant sync.
func (s *SupabaseStore) ListApproved(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, nickname, full_name, email, status, created_at
		FROM registrations
		WHERE status = 'approved'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, E(KindNetwork, "supabase.list_approved", err)
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

// CreateRegistration stores a new pending application.
func (s *SupabaseStore) CreateRegistration(ctx context.Context, reg *models.Registration, passwordHash string) (*models.Registration, error) {
	out := &models.Registration{}
	var status string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO registrations (nickname, full_name, email, password_hash, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, nickname, full_name, email, status, created_at
	`, reg.Nickname, reg.FullName, reg.Email, passwordHash).Scan(
		&out.ID, &out.Nickname, &out.FullName, &out.Email, &status, &out.CreatedAt,
	)
	if err != nil {
		return nil, wrapPgError("supabase.create_registration", err)
	}
	out.Status = models.RegistrationStatus(status)
	return out, nil
}

// GetRegistrationByEmail returns an application and its password hash.
func (s *SupabaseStore) GetRegistrationByEmail(ctx context.Context, email string) (*models.Registration, string, error) {
	reg := &models.Registration{}
	var status, hash string
	err := s.pool.QueryRow(ctx, `
		SELECT id, nickname, full_name, email, status, created_at, password_hash
		FROM registrations WHERE email = $1
	`, email).Scan(&reg.ID, &reg.Nickname, &reg.FullName, &reg.Email, &status, &reg.CreatedAt, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", E(KindNotFound, "supabase.get_registration", err)
		}
		return nil, "", E(KindNetwork, "supabase.get_registration", err)
	}
	reg.Status = models.RegistrationStatus(status)
	return reg, hash, nil
}

// FindConflict reports an existing registration colliding on email or nickname.
func (s *SupabaseStore) FindConflict(ctx context.Context, email, nickname string) (*models.Registration, error) {
	reg := &models.Registration{}
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, nickname, full_name, email, status, created_at
		FROM registrations WHERE email = $1 OR nickname = $2
		LIMIT 1
	`, email, nickname).Scan(&reg.ID, &reg.Nickname, &reg.FullName, &reg.Email, &status, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, E(KindNetwork, "supabase.find_conflict", err)
	}
	reg.Status = models.RegistrationStatus(status)
	return reg, nil
}

// ListRegistrations returns all applications, newest first.
func (s *SupabaseStore) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, nickname, full_name, email, status, created_at
		FROM registrations
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, E(KindNetwork, "supabase.list_registrations", err)
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

// UpdateRegistrationStatus approves or rejects an application.
func (s *SupabaseStore) UpdateRegistrationStatus(ctx context.Context, id string, status models.RegistrationStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE registrations SET status = $2 WHERE id = $1
	`, id, string(status))
	if err != nil {
		return E(KindNetwork, "supabase.update_status", err)
	}
	if tag.RowsAffected() == 0 {
		return E(KindNotFound, "supabase.update_status", fmt.Errorf("registration %s not found", id))
	}
	return nil
}

// GetBotPersonality returns the configured bot personality prompt.
func (s *SupabaseStore) GetBotPersonality(ctx context.Context) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM system_config WHERE key = 'bot_personality'
	`).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultBotPersonality, nil
		}
		return "", E(KindNetwork, "supabase.get_bot_personality", err)
	}
	return value, nil
}

// SetBotPersonality stores the bot personality prompt.
func (s *SupabaseStore) SetBotPersonality(ctx context.Context, personality string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_config (key, value) VALUES ('bot_personality', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, personality)
	if err != nil {
		return E(KindNetwork, "supabase.set_bot_personality", err)
	}
	return nil
}

// scanRegistrations reads registration rows.
func scanRegistrations(rows pgx.Rows) ([]models.Registration, error) {
	var regs []models.Registration
	for rows.Next() {
		var reg models.Registration
		var status string
		if err := rows.Scan(&reg.ID, &reg.Nickname, &reg.FullName, &reg.Email, &status, &reg.CreatedAt); err != nil {
			return nil, E(KindNetwork, "supabase.scan", err)
		}
		reg.Status = models.RegistrationStatus(status)
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// wrapPgError maps driver errors onto the store taxonomy.
func wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return E(KindValidation, op, err) // unique constraint
	}
	return E(KindNetwork, op, err)
}
