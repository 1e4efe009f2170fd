package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/volkanakbulut73/sohbetchat/internal/chat"
	"github.com/volkanakbulut73/sohbetchat/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	msgStore store.MessageStore
	regs     store.RegistrationStore
	sysCfg   store.ConfigStore
	registry *chat.Registry
	engine   *chat.Engine
	log      zerolog.Logger
}

// NewHandler creates a new Handler. regs and sysCfg may be nil when the
// active backend doesn't provide them; the corresponding endpoints then
// return 503.
func NewHandler(msgStore store.MessageStore, regs store.RegistrationStore, sysCfg store.ConfigStore, registry *chat.Registry, engine *chat.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		msgStore: msgStore,
		regs:     regs,
		sysCfg:   sysCfg,
		registry: registry,
		engine:   engine,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// StoreError maps a typed store failure onto an HTTP response. Write-path
// failures are surfaced to the caller instead of being swallowed.
func (h *Handler) StoreError(w http.ResponseWriter, err error) {
	switch store.KindOf(err) {
	case store.KindValidation:
		h.Error(w, http.StatusUnprocessableEntity, err.Error())
	case store.KindAuth:
		h.Error(w, http.StatusForbidden, "store rejected credentials")
	case store.KindNotFound:
		h.Error(w, http.StatusNotFound, "not found")
	default:
		h.Error(w, http.StatusBadGateway, "message store unavailable")
	}
}

// sanitizeName trims and limits a handle to 100 characters, removing
// control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
