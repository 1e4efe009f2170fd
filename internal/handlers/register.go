package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/volkanakbulut73/sohbetchat/internal/metrics"
	"github.com/volkanakbulut73/sohbetchat/internal/models"
	"github.com/volkanakbulut73/sohbetchat/internal/store"
)

// Nickname validation: alphanumeric, hyphens, underscores, 2-32 chars
var nicknameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,32}$`)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Nickname string `json:"nickname"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse represents the registration response.
type RegisterResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Register handles membership applications. New applications start in
// pending state and become visible in rooms only after admin approval.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.regs == nil {
		h.Error(w, http.StatusServiceUnavailable, "registrations not available on this backend")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Nickname = sanitizeName(req.Nickname)
	if !nicknameRegex.MatchString(req.Nickname) {
		h.Error(w, http.StatusBadRequest, "nickname must be 2-32 characters, alphanumeric with hyphens and underscores only")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < 8 {
		h.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	// Explicit conflict check first, for a clean user-facing message.
	existing, err := h.regs.FindConflict(r.Context(), req.Email, req.Nickname)
	if err != nil {
		h.StoreError(w, err)
		return
	}
	if existing != nil {
		if existing.Email == req.Email {
			h.Error(w, http.StatusConflict, "this email address is already registered")
		} else {
			h.Error(w, http.StatusConflict, "this nickname is already taken")
		}
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	reg, err := h.regs.CreateRegistration(r.Context(), &models.Registration{
		Nickname: req.Nickname,
		FullName: sanitizeName(req.FullName),
		Email:    req.Email,
	}, string(hash))
	if err != nil {
		// The conflict check races concurrent registrations; the store's
		// unique constraint is the authority.
		if store.KindOf(err) == store.KindValidation {
			h.Error(w, http.StatusConflict, "email or nickname already in use")
			return
		}
		h.StoreError(w, err)
		return
	}

	metrics.RegistrationsCreated.Inc()

	h.JSON(w, http.StatusCreated, RegisterResponse{
		ID:     reg.ID,
		Status: string(reg.Status),
	})
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login.
type LoginResponse struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email"`
}

// Login verifies credentials against the registration roster. Pending and
// rejected applications get explicit messages rather than a generic
// failure, matching the product's onboarding flow.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.regs == nil {
		h.Error(w, http.StatusServiceUnavailable, "login not available on this backend")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reg, hash, err := h.regs.GetRegistrationByEmail(r.Context(), req.Email)
	if err != nil {
		if store.IsNotFound(err) {
			h.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.StoreError(w, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		h.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	switch reg.Status {
	case models.StatusRejected:
		h.Error(w, http.StatusForbidden, "your application was rejected, please contact an administrator")
		return
	case models.StatusPending:
		h.Error(w, http.StatusForbidden, "your account has not been approved yet, please wait")
		return
	}

	h.JSON(w, http.StatusOK, LoginResponse{
		ID:       reg.ID,
		Nickname: reg.Nickname,
		FullName: reg.FullName,
		Email:    reg.Email,
	})
}
