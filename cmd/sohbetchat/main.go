package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/volkanakbulut73/sohbetchat/internal/api"
	"github.com/volkanakbulut73/sohbetchat/internal/bot"
	"github.com/volkanakbulut73/sohbetchat/internal/chat"
	"github.com/volkanakbulut73/sohbetchat/internal/config"
	"github.com/volkanakbulut73/sohbetchat/internal/handlers"
	"github.com/volkanakbulut73/sohbetchat/internal/models"
	"github.com/volkanakbulut73/sohbetchat/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Select the storage backend. Redis carries messages only; the other
	// backends also hold registrations and system config.
	var (
		msgStore store.MessageStore
		regs     store.RegistrationStore
		sysCfg   store.ConfigStore
		roster   store.RosterProvider
	)

	switch cfg.Backend {
	case "redis":
		st, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer st.Close()
		msgStore = st
		logger.Info().Msg("connected to Redis")

	case "supabase":
		st, err := store.NewSupabaseStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer st.Close()
		msgStore, regs, sysCfg, roster = st, st, st, st
		logger.Info().Msg("connected to PostgreSQL")

	case "pocketbase":
		st := store.NewPocketBaseStore(cfg.PocketBaseURL)
		defer st.Close()
		msgStore, regs, sysCfg, roster = st, st, st, st
		logger.Info().Str("url", cfg.PocketBaseURL).Msg("using PocketBase")

	case "sqlite":
		st, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer st.Close()
		msgStore, regs, sysCfg, roster = st, st, st, st
		logger.Info().Msg("using SQLite")

	default:
		logger.Fatal().Str("backend", cfg.Backend).Msg("unknown backend")
	}

	// Seed the lobby with its resident bots and welcome message.
	self := models.Participant{
		ID:      "user-1",
		Name:    "Lider",
		Persona: "Sohbet kanalının yöneticisi ve moderatörü.",
		Avatar:  "https://picsum.photos/id/64/200/200",
		Color:   "bg-slate-700",
	}
	bots := []models.Participant{
		{
			ID:      "bot-lara",
			Name:    "Lara",
			Persona: "Kanalın neşeli ve yardımsever mIRC botu. Hoşgeldin mesajları yazar, espri yapar ve kullanıcılara yardımcı olur.",
			Avatar:  "https://picsum.photos/id/1012/200/200",
			IsAI:    true,
			Color:   "bg-pink-600",
		},
		{
			ID:      "bot-socrates",
			Name:    "Sokrates",
			Persona: "Antik Yunan filozofu. Her şeyi mIRC jargonuna uygun şekilde sorgular, bilgece ve bazen iğneleyici konuşur.",
			Avatar:  "https://picsum.photos/id/1025/200/200",
			IsAI:    true,
			Color:   "bg-stone-600",
		},
	}

	registry := chat.NewRegistry(self, bots)
	registry.AddChannel("#Sohbet", "Workigom Secure Network - Gerçek ve Onaylı Kullanıcılar Odası", []models.Message{
		{
			ID:        "msg-start",
			Sender:    "Lara",
			Text:      "Selam millet! Workigom güvenli ağına hoş geldiniz. Sadece onaylı üyeler ve aktif botlar burada yer alabilir.",
			Timestamp: time.Now().UnixMilli(),
			Channel:   "#Sohbet",
			Type:      models.MessageUser,
		},
	})

	// Bot replies: Gemini when a key is configured, canned lines otherwise.
	var responder bot.Responder
	if cfg.GeminiAPIKey != "" {
		responder = bot.NewGeminiResponder(cfg.GeminiAPIKey)
		logger.Info().Msg("bot replies via Gemini")
	} else {
		responder = bot.StaticResponder{}
		logger.Info().Msg("GEMINI_API_KEY not set, bot replies are canned")
	}

	engine := chat.NewEngine(msgStore, roster, sysCfg, registry, responder, chat.NewRandomPolicy(cfg.TriggerProbability), chat.EngineConfig{
		Mode:           chat.Mode(cfg.SyncMode),
		PollInterval:   cfg.PollInterval,
		RosterInterval: cfg.RosterInterval,
		FetchLimit:     cfg.FetchLimit,
		TypingDelay:    cfg.TypingDelay,
	}, logger)

	if err := engine.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("sync engine failed to start")
	}

	// Create router
	h := handlers.NewHandler(msgStore, regs, sysCfg, registry, engine, logger)
	router := api.NewRouter(logger, cfg, h)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("backend", cfg.Backend).
			Msg("starting sohbetchat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	engine.Stop()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
