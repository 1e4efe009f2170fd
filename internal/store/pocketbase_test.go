package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

func TestPocketBaseInsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/collections/messages/records" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		if payload["sender"] != "Lider" || payload["channel"] != "#Sohbet" {
			t.Fatalf("unexpected payload: %v", payload)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":      "rec123",
			"sender":  payload["sender"],
			"text":    payload["text"],
			"type":    payload["type"],
			"channel": payload["channel"],
			"created": "2026-08-31 12:00:00.000Z",
		})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	msg, err := s.Insert(context.Background(), "Lider", "merhaba", models.MessageUser, "#Sohbet")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "rec123" {
		t.Fatalf("expected server-assigned id, got %s", msg.ID)
	}
	if msg.Timestamp == 0 {
		t.Fatal("created time not parsed into a timestamp")
	}
}

func TestPocketBaseInsertEmptyText(t *testing.T) {
	s := NewPocketBaseStore("http://unused.invalid")
	_, err := s.Insert(context.Background(), "Lider", "", models.MessageUser, "#Sohbet")
	if err == nil {
		t.Fatal("expected validation error for empty text")
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation kind, got %s", KindOf(err))
	}
}

func TestPocketBaseListChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("filter") != "channel='#Sohbet'" {
			t.Fatalf("unexpected filter: %s", q.Get("filter"))
		}
		if q.Get("sort") != "created" {
			t.Fatalf("unexpected sort: %s", q.Get("sort"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"totalItems": 2,
			"items": []map[string]string{
				{"id": "a1", "sender": "Lara", "text": "selam", "type": "USER", "channel": "#Sohbet", "created": "2026-08-31 12:00:00.000Z"},
				{"id": "a2", "sender": "Lider", "text": "merhaba", "channel": "#Sohbet", "created": "2026-08-31 12:00:01.000Z"},
			},
		})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	msgs, err := s.ListChannel(context.Background(), "#Sohbet", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "a1" || msgs[1].ID != "a2" {
		t.Fatal("messages out of order")
	}
	// Records without a type default to USER.
	if msgs[1].Type != models.MessageUser {
		t.Fatalf("expected default USER type, got %s", msgs[1].Type)
	}
}

func TestPocketBaseErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusBadRequest, KindValidation},
		{http.StatusInternalServerError, KindNetwork},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
		}))

		s := NewPocketBaseStore(srv.URL)
		_, err := s.ListChannel(context.Background(), "#Sohbet", 10)
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if KindOf(err) != tc.kind {
			t.Fatalf("status %d: expected kind %s, got %s", tc.status, tc.kind, KindOf(err))
		}
	}
}

func TestPocketBaseUnreachable(t *testing.T) {
	s := NewPocketBaseStore("http://127.0.0.1:1")
	_, err := s.ListChannel(context.Background(), "#Sohbet", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network kind, got %s", KindOf(err))
	}
}

func TestPocketBaseListApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/collections/registrations/records" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("filter") != "status='approved'" {
			t.Fatalf("unexpected filter: %s", r.URL.Query().Get("filter"))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"totalItems": 1,
			"items": []map[string]string{
				{"id": "reg1", "nickname": "ayse", "full_name": "Ayse Yilmaz", "email": "ayse@example.com", "status": "approved", "created": "2026-08-30 09:00:00.000Z"},
			},
		})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	regs, err := s.ListApproved(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(regs) != 1 {
		t.Fatalf("expected 1 registration, got %d", len(regs))
	}
	if regs[0].Nickname != "ayse" || regs[0].Status != models.StatusApproved {
		t.Fatalf("unexpected registration: %+v", regs[0])
	}
	if regs[0].CreatedAt.IsZero() {
		t.Fatal("created time not parsed")
	}
}

func TestPocketBaseFilterEscapesQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") != `channel='#o\'hara'` {
			t.Fatalf("quote not escaped in filter: %s", r.URL.Query().Get("filter"))
		}
		json.NewEncoder(w).Encode(map[string]any{"totalItems": 0, "items": []any{}})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	if _, err := s.ListChannel(context.Background(), "#o'hara", 10); err != nil {
		t.Fatal(err)
	}
}

func TestPocketBaseCreateRegistration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/collections/registrations/records" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		if payload["status"] != "pending" {
			t.Fatalf("new applications must be pending, got %s", payload["status"])
		}
		if payload["password_hash"] != "bcrypt-hash" {
			t.Fatalf("password hash not persisted: %v", payload)
		}

		json.NewEncoder(w).Encode(map[string]string{
			"id":        "reg1",
			"nickname":  payload["nickname"],
			"full_name": payload["full_name"],
			"email":     payload["email"],
			"status":    payload["status"],
			"created":   "2026-08-31 12:00:00.000Z",
		})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	out, err := s.CreateRegistration(context.Background(), &models.Registration{
		Nickname: "ayse",
		FullName: "Ayse Yilmaz",
		Email:    "ayse@example.com",
	}, "bcrypt-hash")
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != "reg1" || out.Status != models.StatusPending {
		t.Fatalf("unexpected registration: %+v", out)
	}
}

func TestPocketBaseGetRegistrationByEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") != "email='ayse@example.com'" {
			t.Fatalf("unexpected filter: %s", r.URL.Query().Get("filter"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"totalItems": 1,
			"items": []map[string]string{
				{"id": "reg1", "nickname": "ayse", "email": "ayse@example.com", "password_hash": "bcrypt-hash", "status": "approved", "created": "2026-08-30 09:00:00.000Z"},
			},
		})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	reg, hash, err := s.GetRegistrationByEmail(context.Background(), "ayse@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if reg.Nickname != "ayse" || hash != "bcrypt-hash" {
		t.Fatalf("unexpected result: %+v hash=%q", reg, hash)
	}
}

func TestPocketBaseGetRegistrationByEmailNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"totalItems": 0, "items": []any{}})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	_, _, err := s.GetRegistrationByEmail(context.Background(), "nobody@example.com")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestPocketBaseFindConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") != "email='ayse@example.com' || nickname='ayse'" {
			t.Fatalf("unexpected filter: %s", r.URL.Query().Get("filter"))
		}
		json.NewEncoder(w).Encode(map[string]any{"totalItems": 0, "items": []any{}})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	reg, err := s.FindConflict(context.Background(), "ayse@example.com", "ayse")
	if err != nil {
		t.Fatal(err)
	}
	if reg != nil {
		t.Fatalf("expected no conflict, got %+v", reg)
	}
}

func TestPocketBaseUpdateRegistrationStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/collections/registrations/records/reg1" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["status"] != "approved" {
			t.Fatalf("unexpected payload: %v", payload)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "reg1", "status": "approved"})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	if err := s.UpdateRegistrationStatus(context.Background(), "reg1", models.StatusApproved); err != nil {
		t.Fatal(err)
	}
}

func TestPocketBaseUpdateRegistrationStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	err := s.UpdateRegistrationStatus(context.Background(), "missing", models.StatusRejected)
	if !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestPocketBaseBotPersonalityDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/collections/system_config/records" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("filter") != "key='bot_personality'" {
			t.Fatalf("unexpected filter: %s", r.URL.Query().Get("filter"))
		}
		json.NewEncoder(w).Encode(map[string]any{"totalItems": 0, "items": []any{}})
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	got, err := s.GetBotPersonality(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != DefaultBotPersonality {
		t.Fatalf("expected the default personality, got %q", got)
	}
}

func TestPocketBaseSetBotPersonalityUpdatesExisting(t *testing.T) {
	patched := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/collections/system_config/records":
			json.NewEncoder(w).Encode(map[string]any{
				"totalItems": 1,
				"items": []map[string]string{
					{"id": "cfg1", "key": "bot_personality", "value": "old"},
				},
			})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/collections/system_config/records/cfg1":
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["value"] != "new personality" {
				t.Fatalf("unexpected payload: %v", payload)
			}
			patched = true
			json.NewEncoder(w).Encode(map[string]string{"id": "cfg1"})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	if err := s.SetBotPersonality(context.Background(), "new personality"); err != nil {
		t.Fatal(err)
	}
	if !patched {
		t.Fatal("existing config record not updated")
	}
}

func TestPocketBaseSetBotPersonalityCreatesRecord(t *testing.T) {
	created := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/collections/system_config/records":
			json.NewEncoder(w).Encode(map[string]any{"totalItems": 0, "items": []any{}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/collections/system_config/records":
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["key"] != "bot_personality" || payload["value"] != "fresh" {
				t.Fatalf("unexpected payload: %v", payload)
			}
			created = true
			json.NewEncoder(w).Encode(map[string]string{"id": "cfg1"})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	if err := s.SetBotPersonality(context.Background(), "fresh"); err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("missing config record not created")
	}
}

func TestPocketBaseDispatchConnect(t *testing.T) {
	activated := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/realtime" {
			var payload struct {
				ClientID      string   `json:"clientId"`
				Subscriptions []string `json:"subscriptions"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			if payload.ClientID != "client-1" {
				t.Fatalf("unexpected client id: %s", payload.ClientID)
			}
			activated <- payload.Subscriptions
			w.WriteHeader(http.StatusNoContent)
			return
		}
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	s := NewPocketBaseStore(srv.URL)
	s.dispatchEvent(context.Background(), "PB_CONNECT", `{"clientId":"client-1"}`, nil)

	select {
	case subs := <-activated:
		if len(subs) != 1 || subs[0] != "messages" {
			t.Fatalf("unexpected subscriptions: %v", subs)
		}
	default:
		t.Fatal("PB_CONNECT did not activate the subscription")
	}
}

func TestPocketBaseDispatchCreate(t *testing.T) {
	s := NewPocketBaseStore("http://unused.invalid")

	var got models.Message
	data := `{"action":"create","record":{"id":"rec1","sender":"Lara","text":"selam","type":"USER","channel":"#Sohbet","created":"2026-08-31 12:00:00.000Z"}}`
	s.dispatchEvent(context.Background(), "messages", data, func(m models.Message) { got = m })

	if got.ID != "rec1" || got.Channel != "#Sohbet" {
		t.Fatalf("create event not dispatched: %+v", got)
	}
}

func TestPocketBaseDispatchIgnoresUpdates(t *testing.T) {
	s := NewPocketBaseStore("http://unused.invalid")

	called := false
	data := `{"action":"update","record":{"id":"rec1"}}`
	s.dispatchEvent(context.Background(), "messages", data, func(models.Message) { called = true })

	if called {
		t.Fatal("non-create event reached the callback")
	}
}
