package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerEmitsNormalizedRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/rooms/%23Sohbet/messages", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output not valid JSON: %v", err)
	}
	if entry["component"] != "http" {
		t.Fatalf("expected component tag, got %v", entry["component"])
	}
	if entry["route"] != "/rooms/{id}/messages" {
		t.Fatalf("expected normalized route, got %v", entry["route"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Fatalf("expected status 201, got %v", entry["status"])
	}
	if entry["bytes"] != float64(2) {
		t.Fatalf("expected 2 bytes written, got %v", entry["bytes"])
	}
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/rooms/#Sohbet/messages", "/rooms/{id}/messages"},
		{"/rooms/private:u-1:u-2", "/rooms/{id}"},
		{"/rooms/active", "/rooms/active"},
		{"/rooms/private", "/rooms/private"},
		{"/admin/registrations/abc123/status", "/admin/registrations/{id}/status"},
		{"/health", "/health"},
	}

	for _, tc := range cases {
		if got := normalizePath(tc.path); got != tc.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
