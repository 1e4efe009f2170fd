package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/volkanakbulut73/sohbetchat/internal/bot"
	"github.com/volkanakbulut73/sohbetchat/internal/metrics"
	"github.com/volkanakbulut73/sohbetchat/internal/models"
	"github.com/volkanakbulut73/sohbetchat/internal/store"
)

// Mode selects the sync strategy.
type Mode string

const (
	// ModePoll fetches every channel on a fixed interval.
	ModePoll Mode = "poll"
	// ModePush uses the store's creation-event stream, with an initial
	// backfill. Falls back to polling when the store has no push channel.
	ModePush Mode = "push"
)

// SystemSender is the sentinel identity assigned to messages whose sender
// cannot be resolved against the room's participant set.
const SystemSender = "SYSTEM"

// EngineConfig tunes the sync engine.
type EngineConfig struct {
	Mode           Mode
	PollInterval   time.Duration // message poll cadence
	RosterInterval time.Duration // roster reconciliation cadence
	FetchLimit     int           // per-channel fetch window
	TypingDelay    time.Duration // artificial delay before a bot reply
}

func (c *EngineConfig) defaults() {
	if c.Mode == "" {
		c.Mode = ModePoll
	}
	if c.PollInterval == 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.RosterInterval == 0 {
		c.RosterInterval = 30 * time.Second
	}
	if c.FetchLimit == 0 {
		c.FetchLimit = 100
	}
	if c.TypingDelay == 0 {
		c.TypingDelay = 1500 * time.Millisecond
	}
}

// Engine reconciles the registry against the message store. It owns its
// timers and subscription handle; Start and Stop bound its lifetime, and
// every exit path releases the resources.
type Engine struct {
	msgStore  store.MessageStore
	roster    store.RosterProvider
	sysCfg    store.ConfigStore
	reg       *Registry
	responder bot.Responder
	policy    TriggerPolicy
	cfg       EngineConfig
	log       zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	runCtx context.Context
	sub    store.Subscription
	wg     sync.WaitGroup

	loadingMu sync.Mutex
	loading   models.LoadingState
}

// NewEngine wires a sync engine. roster, sysCfg, responder and policy may
// be nil; the corresponding features are then disabled.
func NewEngine(msgStore store.MessageStore, roster store.RosterProvider, sysCfg store.ConfigStore, reg *Registry, responder bot.Responder, policy TriggerPolicy, cfg EngineConfig, log zerolog.Logger) *Engine {
	cfg.defaults()
	return &Engine{
		msgStore:  msgStore,
		roster:    roster,
		sysCfg:    sysCfg,
		reg:       reg,
		responder: responder,
		policy:    policy,
		cfg:       cfg,
		log:       log.With().Str("component", "sync").Logger(),
		loading:   models.LoadingState{Status: models.LoadingIdle},
	}
}

// Start begins syncing: an immediate backfill of every room, then the
// configured strategy plus the roster loop. Returns an error if the
// engine is already running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return fmt.Errorf("sync: engine already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.runCtx = runCtx
	e.cancel = cancel

	// Backfill before the subscription is live so history and push events
	// overlap rather than gap; the id dedup absorbs the overlap.
	e.PollAll(runCtx)

	mode := e.cfg.Mode
	if mode == ModePush {
		if err := e.subscribeLocked(runCtx); err != nil {
			if errors.Is(err, store.ErrPushUnsupported) {
				e.log.Info().Msg("store has no push channel, falling back to polling")
			} else {
				e.log.Warn().Err(err).Msg("subscription failed, falling back to polling")
			}
			mode = ModePoll
		}
	}

	if mode == ModePoll {
		e.wg.Add(1)
		go e.pollLoop(runCtx)
	}

	if e.roster != nil {
		if err := e.SyncRoster(runCtx); err != nil {
			e.log.Warn().Err(err).Msg("initial roster sync failed")
		}
		e.wg.Add(1)
		go e.rosterLoop(runCtx)
	}

	e.log.Info().Str("mode", string(mode)).Msg("sync engine started")
	return nil
}

// Stop tears down timers and the subscription and waits for in-flight
// work. Safe to call multiple times.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	sub := e.sub
	e.cancel = nil
	e.runCtx = nil
	e.sub = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if sub != nil {
		sub.Unsubscribe()
	}
	e.wg.Wait()
	e.log.Info().Msg("sync engine stopped")
}

// subscribeLocked establishes the push subscription, tearing down any
// prior one first so at most one listener is ever live. Caller holds e.mu.
func (e *Engine) subscribeLocked(ctx context.Context) error {
	if e.sub != nil {
		e.sub.Unsubscribe()
		e.sub = nil
	}

	sub, err := e.msgStore.Subscribe(ctx, e.handleRecord)
	if err != nil {
		return err
	}
	e.sub = sub
	return nil
}

// pollLoop drives PollAll on the configured interval until cancelled.
func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.PollAll(ctx)
		}
	}
}

// rosterLoop drives SyncRoster on the configured interval until cancelled.
func (e *Engine) rosterLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.RosterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.SyncRoster(ctx); err != nil {
				e.log.Warn().Err(err).Msg("roster sync failed")
			}
		}
	}
}

// PollAll fetches every room's channel. The room list is read fresh on
// each cycle rather than captured once, and one channel's failure never
// aborts the others.
func (e *Engine) PollAll(ctx context.Context) {
	for _, room := range e.reg.Rooms() {
		if err := e.PollChannel(ctx, room.Name); err != nil {
			e.log.Warn().Err(err).Str("channel", room.Name).Msg("poll failed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// PollChannel fetches a channel's recent window and merges it into the
// owning room. Repeated calls with no new store data are no-ops.
func (e *Engine) PollChannel(ctx context.Context, channel string) error {
	msgs, err := e.msgStore.ListChannel(ctx, channel, e.cfg.FetchLimit)
	if err != nil {
		metrics.PollCycles.WithLabelValues("error").Inc()
		return err
	}

	added, ok := e.reg.MergeMessages(channel, msgs)
	if !ok {
		// Room was removed between the fetch and the merge; nothing to do.
		return nil
	}

	metrics.PollCycles.WithLabelValues("ok").Inc()
	if added > 0 {
		metrics.MessagesMerged.Add(float64(added))
		e.log.Debug().Str("channel", channel).Int("added", added).Msg("merged messages")
	}
	return nil
}

// handleRecord dispatches one push-delivered message. Subscriptions can
// redeliver or race a concurrent poll, so the merge dedups exactly like
// the polling path.
func (e *Engine) handleRecord(msg models.Message) {
	metrics.PushEvents.Inc()

	room, ok := e.reg.RoomByChannel(msg.Channel)
	if !ok {
		e.log.Debug().Str("channel", msg.Channel).Msg("push event for unknown channel, dropped")
		return
	}

	// Resolve the sender against the current participant set; unknown
	// senders get the system sentinel instead of failing the merge.
	if msg.Type == models.MessageUser {
		if !participantNamed(room, msg.Sender) {
			msg.Sender = SystemSender
			msg.Type = models.MessageSystem
		}
	}

	added, _ := e.reg.MergeMessages(msg.Channel, []models.Message{msg})
	if added > 0 {
		metrics.MessagesMerged.Add(float64(added))
	}
}

// Loading returns the current bot typing indicator state.
func (e *Engine) Loading() models.LoadingState {
	e.loadingMu.Lock()
	defer e.loadingMu.Unlock()
	return e.loading
}

// beginThinking claims the single thinking slot. Returns false when
// another bot reply is already pending.
func (e *Engine) beginThinking(participantID string) bool {
	e.loadingMu.Lock()
	defer e.loadingMu.Unlock()

	if e.loading.Status == models.LoadingThinking {
		return false
	}
	e.loading = models.LoadingState{Status: models.LoadingThinking, ParticipantID: participantID}
	return true
}

// endThinking resets the typing indicator.
func (e *Engine) endThinking() {
	e.loadingMu.Lock()
	defer e.loadingMu.Unlock()
	e.loading = models.LoadingState{Status: models.LoadingIdle}
}

// participantNamed reports whether the room has a participant with the
// given display name.
func participantNamed(room models.ChatRoom, name string) bool {
	for _, p := range room.Participants {
		if p.Name == name {
			return true
		}
	}
	return false
}
