package chat

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/volkanakbulut73/sohbetchat/internal/bot"
	"github.com/volkanakbulut73/sohbetchat/internal/metrics"
	"github.com/volkanakbulut73/sohbetchat/internal/models"
	"github.com/volkanakbulut73/sohbetchat/internal/store"
)

// TriggerPolicy decides whether (and which) bot replies to a user message
// in a channel room. Private rooms bypass the policy: an AI counterpart
// always replies.
type TriggerPolicy interface {
	Pick(room models.ChatRoom) (models.Participant, bool)
}

// RandomPolicy picks a random AI participant with a fixed probability.
// The probability is product tuning, not a contract, which is why the
// policy is injected rather than hardcoded in the engine.
type RandomPolicy struct {
	Probability float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy creates a policy with the given trigger probability.
func NewRandomPolicy(probability float64) *RandomPolicy {
	return &RandomPolicy{
		Probability: probability,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *RandomPolicy) Pick(room models.ChatRoom) (models.Participant, bool) {
	bots := room.AIParticipants()
	if len(bots) == 0 {
		return models.Participant{}, false
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	idx := p.rng.Intn(len(bots))
	p.mu.Unlock()

	if roll >= p.Probability {
		return models.Participant{}, false
	}
	return bots[idx], true
}

// TriggerBots schedules a bot reply for a room after a user message, per
// the trigger policy. The reply is generated asynchronously behind an
// artificial typing delay and persisted through the same store path as
// user messages, so the sync engine picks it up like any other record.
func (e *Engine) TriggerBots(roomID string) {
	if e.responder == nil {
		return
	}

	room, ok := e.reg.Room(roomID)
	if !ok {
		return
	}

	var target models.Participant
	var found bool
	switch room.Type {
	case models.RoomPrivate:
		if t, ok := room.Participant(room.TargetUserID); ok && t.IsAI {
			target, found = t, true
		}
	case models.RoomChannel:
		if e.policy != nil {
			target, found = e.policy.Pick(room)
		}
	}
	if !found {
		return
	}

	// Triggers arrive from HTTP handlers, so the reply goroutine must only
	// be registered with the wait group while the engine is running.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return
	}

	// One typing indicator at a time; a pending reply suppresses new
	// triggers rather than queueing them.
	if !e.beginThinking(target.ID) {
		return
	}

	e.wg.Add(1)
	go e.runBotReply(e.runCtx, target, roomID)
}

// runBotReply generates and persists one bot reply. The thinking state is
// cleared on every path, including cancellation and generation failure.
func (e *Engine) runBotReply(ctx context.Context, target models.Participant, roomID string) {
	defer e.wg.Done()
	defer e.endThinking()

	select {
	case <-ctx.Done():
		return
	case <-time.After(e.cfg.TypingDelay):
	}

	// Re-read the room after the delay; history may have moved on.
	room, ok := e.reg.Room(roomID)
	if !ok {
		return
	}

	personality := store.DefaultBotPersonality
	if e.sysCfg != nil {
		p, err := e.sysCfg.GetBotPersonality(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("bot personality fetch failed, using default")
		} else if p != "" {
			personality = p
		}
	}

	start := time.Now()
	text, err := e.responder.Generate(ctx, target, room.Participants, room.Messages, room.Topic, personality)
	metrics.BotLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.BotReplies.WithLabelValues("fallback").Inc()
		e.log.Warn().Err(err).Str("bot", target.Name).Msg("bot generation failed, using fallback")
		if text == "" {
			text = bot.FallbackText
		}
	} else {
		metrics.BotReplies.WithLabelValues("ok").Inc()
	}

	if _, err := e.msgStore.Insert(ctx, target.Name, text, models.MessageUser, room.Name); err != nil {
		e.log.Warn().Err(err).Str("bot", target.Name).Msg("failed to persist bot reply")
	}
}
