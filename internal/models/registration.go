package models

import "time"

// RegistrationStatus is the moderation state of a membership application.
type RegistrationStatus string

const (
	StatusPending  RegistrationStatus = "pending"
	StatusApproved RegistrationStatus = "approved"
	StatusRejected RegistrationStatus = "rejected"
)

// Registration represents a membership application in the external roster.
// Only approved registrations become room participants.
type Registration struct {
	ID        string             `json:"id"`
	Nickname  string             `json:"nickname"`
	FullName  string             `json:"full_name,omitempty"`
	Email     string             `json:"email"`
	Status    RegistrationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// LoadingStatus is the bot-reply generation state.
type LoadingStatus string

const (
	LoadingIdle     LoadingStatus = "idle"
	LoadingThinking LoadingStatus = "thinking"
)

// LoadingState is the observable typing indicator. At most one bot is in
// the thinking state at a time.
type LoadingState struct {
	Status        LoadingStatus `json:"status"`
	ParticipantID string        `json:"participant_id,omitempty"`
}
