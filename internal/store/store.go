package store

import (
	"context"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// MessageStore is the durable append-only message store, keyed by channel
// name. Both backing engines implement this interface; the sync engine
// never knows which one is active.
type MessageStore interface {
	// Insert persists a new message and returns it with its store-assigned
	// id and timestamp filled in.
	Insert(ctx context.Context, sender, text string, typ models.MessageType, channel string) (*models.Message, error)

	// ListChannel returns up to limit messages for a channel, ascending by
	// creation time. Failures are returned as typed errors; callers decide
	// whether to skip or surface them.
	ListChannel(ctx context.Context, channel string, limit int) ([]models.Message, error)

	// Subscribe registers a callback for newly created messages across all
	// channels. Delivery is at-least-once; deduplication is the consumer's
	// responsibility. Stores without a push channel return ErrPushUnsupported.
	Subscribe(ctx context.Context, onCreate func(models.Message)) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// Subscription is a handle to an active push subscription.
type Subscription interface {
	Unsubscribe()
}

// RosterProvider exposes the external roster of membership applications.
type RosterProvider interface {
	// ListApproved returns registrations with approved status.
	ListApproved(ctx context.Context) ([]models.Registration, error)
}

// RegistrationStore manages membership applications.
type RegistrationStore interface {
	RosterProvider

	// CreateRegistration stores a new pending application. The password is
	// stored as a bcrypt hash, never in clear.
	CreateRegistration(ctx context.Context, reg *models.Registration, passwordHash string) (*models.Registration, error)

	// GetRegistrationByEmail returns an application and its password hash.
	GetRegistrationByEmail(ctx context.Context, email string) (*models.Registration, string, error)

	// FindConflict reports an existing registration that collides with the
	// given email or nickname, or nil when both are free.
	FindConflict(ctx context.Context, email, nickname string) (*models.Registration, error)

	ListRegistrations(ctx context.Context) ([]models.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, id string, status models.RegistrationStatus) error
}

// ConfigStore holds small key/value system settings, such as the bot
// personality prompt edited from the admin dashboard.
type ConfigStore interface {
	GetBotPersonality(ctx context.Context) (string, error)
	SetBotPersonality(ctx context.Context, personality string) error
}

// DefaultBotPersonality is used when no personality has been configured.
const DefaultBotPersonality = "You are Lara, an mIRC chat bot. Warm and helpful."
