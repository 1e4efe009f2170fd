// Package bot generates simulated participant replies. The generation call
// is an external collaborator: it may fail or time out, and callers always
// receive usable text.
package bot

import (
	"context"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// FallbackText is returned when generation fails. The chat never shows a
// hard error for a bot, only a degraded reply.
const FallbackText = "... (connection error: the bot is not responding right now)"

// Responder produces reply text for a bot given the room context.
// personality is the operator-configured base prompt shared by every bot;
// it is layered under the target's own persona.
type Responder interface {
	// Generate returns reply text for the target bot. Implementations
	// return FallbackText together with the error when generation fails,
	// so callers can log the cause and still post a reply.
	Generate(ctx context.Context, target models.Participant, participants []models.Participant, history []models.Message, topic, personality string) (string, error)
}

// StaticResponder replies with fixed text. Used in development mode and
// tests where no generation backend is configured.
type StaticResponder struct {
	Text string
}

func (s StaticResponder) Generate(ctx context.Context, target models.Participant, participants []models.Participant, history []models.Message, topic, personality string) (string, error) {
	if s.Text == "" {
		return "hey :)", nil
	}
	return s.Text, nil
}
