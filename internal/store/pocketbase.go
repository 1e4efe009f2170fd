package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

// pbTimeLayout is PocketBase's record timestamp format.
const pbTimeLayout = "2006-01-02 15:04:05.000Z"

// PocketBaseStore talks to a PocketBase instance over its REST API.
// Messages live in the "messages" collection, applications in
// "registrations", settings in "system_config". Raw records are converted
// at this boundary; nothing above the store sees a PocketBase shape.
type PocketBaseStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewPocketBaseStore creates a PocketBase-backed store.
func NewPocketBaseStore(baseURL string) *PocketBaseStore {
	return &PocketBaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// pbRecord is the raw wire shape of a messages-collection record.
type pbRecord struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Text    string `json:"text"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Created string `json:"created"`
}

// pbListResponse is the paginated list envelope.
type pbListResponse struct {
	Items      []json.RawMessage `json:"items"`
	TotalItems int               `json:"totalItems"`
}

// toMessage converts a raw record into the strict message type.
func (r pbRecord) toMessage() models.Message {
	var ts int64
	if t, err := time.Parse(pbTimeLayout, r.Created); err == nil {
		ts = t.UnixMilli()
	}
	typ := models.MessageType(r.Type)
	if typ == "" {
		typ = models.MessageUser
	}
	return models.Message{
		ID:        r.ID,
		Sender:    r.Sender,
		Text:      r.Text,
		Timestamp: ts,
		Channel:   r.Channel,
		Type:      typ,
	}
}

// pbFilterQuote wraps a value as a single-quoted PocketBase filter literal.
// Values are interpolated into the filter expression, so embedded quotes
// and backslashes must be escaped at this boundary.
func pbFilterQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "'", `\'`)
	return "'" + v + "'"
}

// doRequest performs an HTTP request against the PocketBase API.
func (s *PocketBaseStore) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, E(KindValidation, "pocketbase.request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, E(KindNetwork, "pocketbase.request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, E(KindNetwork, "pocketbase.request", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		err := fmt.Errorf("pocketbase %d: %s", resp.StatusCode, errResp.Message)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, E(KindNotFound, "pocketbase.request", err)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, E(KindAuth, "pocketbase.request", err)
		case resp.StatusCode < 500:
			return nil, E(KindValidation, "pocketbase.request", err)
		default:
			return nil, E(KindNetwork, "pocketbase.request", err)
		}
	}

	return respBody, nil
}

// Ping checks the PocketBase health endpoint.
func (s *PocketBaseStore) Ping(ctx context.Context) error {
	_, err := s.doRequest(ctx, http.MethodGet, "/api/health", nil)
	return err
}

// Close is a no-op; the store holds no persistent connections.
func (s *PocketBaseStore) Close() error { return nil }

// Insert creates a message record. The record id and creation time are
// assigned server-side and read back from the response.
func (s *PocketBaseStore) Insert(ctx context.Context, sender, text string, typ models.MessageType, channel string) (*models.Message, error) {
	if text == "" {
		return nil, E(KindValidation, "pocketbase.insert", fmt.Errorf("empty message body"))
	}

	payload, _ := json.Marshal(map[string]string{
		"sender":  sender,
		"text":    text,
		"type":    string(typ),
		"channel": channel,
	})

	respBody, err := s.doRequest(ctx, http.MethodPost, "/api/collections/messages/records", payload)
	if err != nil {
		return nil, err
	}

	var rec pbRecord
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, E(KindNetwork, "pocketbase.insert", err)
	}

	msg := rec.toMessage()
	return &msg, nil
}

// ListChannel returns up to limit messages for a channel, oldest first.
func (s *PocketBaseStore) ListChannel(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	q := url.Values{}
	q.Set("filter", "channel="+pbFilterQuote(channel))
	q.Set("sort", "created")
	q.Set("perPage", fmt.Sprintf("%d", limit))

	respBody, err := s.doRequest(ctx, http.MethodGet, "/api/collections/messages/records?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var list pbListResponse
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, E(KindNetwork, "pocketbase.list_channel", err)
	}

	messages := make([]models.Message, 0, len(list.Items))
	for _, item := range list.Items {
		var rec pbRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		messages = append(messages, rec.toMessage())
	}

	return messages, nil
}

// sseSubscription wraps an active realtime stream.
type sseSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (s *sseSubscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Subscribe opens the PocketBase realtime SSE stream and registers for
// create events on the messages collection.
func (s *PocketBaseStore) Subscribe(ctx context.Context, onCreate func(models.Message)) (Subscription, error) {
	subCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(subCtx, http.MethodGet, s.baseURL+"/api/realtime", nil)
	if err != nil {
		cancel()
		return nil, E(KindValidation, "pocketbase.subscribe", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streaming request: no client timeout, lifetime is bound to subCtx.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		cancel()
		return nil, E(KindNetwork, "pocketbase.subscribe", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		cancel()
		return nil, E(KindNetwork, "pocketbase.subscribe", fmt.Errorf("realtime endpoint returned %d", resp.StatusCode))
	}

	go func() {
		defer resp.Body.Close()
		s.readEvents(subCtx, resp.Body, onCreate)
	}()

	return &sseSubscription{cancel: cancel}, nil
}

// readEvents parses the SSE stream. The first PB_CONNECT event carries the
// client id, which must be echoed back to activate the subscription.
func (s *PocketBaseStore) readEvents(ctx context.Context, body io.Reader, onCreate func(models.Message)) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			// Dispatch the completed event.
			s.dispatchEvent(ctx, event, data, onCreate)
			event, data = "", ""
		}
	}
}

// dispatchEvent handles one completed SSE event.
func (s *PocketBaseStore) dispatchEvent(ctx context.Context, event, data string, onCreate func(models.Message)) {
	switch event {
	case "PB_CONNECT":
		var connect struct {
			ClientID string `json:"clientId"`
		}
		if err := json.Unmarshal([]byte(data), &connect); err != nil || connect.ClientID == "" {
			return
		}
		payload, _ := json.Marshal(map[string]any{
			"clientId":      connect.ClientID,
			"subscriptions": []string{"messages"},
		})
		_, _ = s.doRequest(ctx, http.MethodPost, "/api/realtime", payload)

	case "messages":
		var ev struct {
			Action string   `json:"action"`
			Record pbRecord `json:"record"`
		}
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return
		}
		if ev.Action != "create" {
			return
		}
		onCreate(ev.Record.toMessage())
	}
}

// pbRegistration is the raw wire shape of a registrations-collection record.
type pbRegistration struct {
	ID           string `json:"id"`
	Nickname     string `json:"nickname"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Status       string `json:"status"`
	Created      string `json:"created"`
}

func (r pbRegistration) toRegistration() models.Registration {
	created, _ := time.Parse(pbTimeLayout, r.Created)
	return models.Registration{
		ID:        r.ID,
		Nickname:  r.Nickname,
		FullName:  r.FullName,
		Email:     r.Email,
		Status:    models.RegistrationStatus(r.Status),
		CreatedAt: created,
	}
}

// listRegistrationRecords fetches registration records matching the query.
func (s *PocketBaseStore) listRegistrationRecords(ctx context.Context, op string, q url.Values) ([]pbRegistration, error) {
	respBody, err := s.doRequest(ctx, http.MethodGet, "/api/collections/registrations/records?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var list pbListResponse
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, E(KindNetwork, op, err)
	}

	recs := make([]pbRegistration, 0, len(list.Items))
	for _, item := range list.Items {
		var rec pbRegistration
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ListApproved returns approved registrations for the participant sync.
func (s *PocketBaseStore) ListApproved(ctx context.Context) ([]models.Registration, error) {
	q := url.Values{}
	q.Set("filter", "status='approved'")
	q.Set("perPage", "200")

	recs, err := s.listRegistrationRecords(ctx, "pocketbase.list_approved", q)
	if err != nil {
		return nil, err
	}

	regs := make([]models.Registration, 0, len(recs))
	for _, rec := range recs {
		regs = append(regs, rec.toRegistration())
	}
	return regs, nil
}

// CreateRegistration stores a new pending application.
func (s *PocketBaseStore) CreateRegistration(ctx context.Context, reg *models.Registration, passwordHash string) (*models.Registration, error) {
	payload, _ := json.Marshal(map[string]string{
		"nickname":      reg.Nickname,
		"full_name":     reg.FullName,
		"email":         reg.Email,
		"password_hash": passwordHash,
		"status":        string(models.StatusPending),
	})

	respBody, err := s.doRequest(ctx, http.MethodPost, "/api/collections/registrations/records", payload)
	if err != nil {
		return nil, err
	}

	var rec pbRegistration
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, E(KindNetwork, "pocketbase.create_registration", err)
	}

	out := rec.toRegistration()
	return &out, nil
}

// GetRegistrationByEmail returns an application and its password hash.
func (s *PocketBaseStore) GetRegistrationByEmail(ctx context.Context, email string) (*models.Registration, string, error) {
	q := url.Values{}
	q.Set("filter", "email="+pbFilterQuote(email))
	q.Set("perPage", "1")

	recs, err := s.listRegistrationRecords(ctx, "pocketbase.get_registration", q)
	if err != nil {
		return nil, "", err
	}
	if len(recs) == 0 {
		return nil, "", E(KindNotFound, "pocketbase.get_registration", fmt.Errorf("no registration for %s", email))
	}

	reg := recs[0].toRegistration()
	return &reg, recs[0].PasswordHash, nil
}

// FindConflict reports an existing registration colliding on email or nickname.
func (s *PocketBaseStore) FindConflict(ctx context.Context, email, nickname string) (*models.Registration, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("email=%s || nickname=%s", pbFilterQuote(email), pbFilterQuote(nickname)))
	q.Set("perPage", "1")

	recs, err := s.listRegistrationRecords(ctx, "pocketbase.find_conflict", q)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	reg := recs[0].toRegistration()
	return &reg, nil
}

// ListRegistrations returns all applications, newest first.
func (s *PocketBaseStore) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	q := url.Values{}
	q.Set("sort", "-created")
	q.Set("perPage", "200")

	recs, err := s.listRegistrationRecords(ctx, "pocketbase.list_registrations", q)
	if err != nil {
		return nil, err
	}

	regs := make([]models.Registration, 0, len(recs))
	for _, rec := range recs {
		regs = append(regs, rec.toRegistration())
	}
	return regs, nil
}

// UpdateRegistrationStatus approves or rejects an application.
func (s *PocketBaseStore) UpdateRegistrationStatus(ctx context.Context, id string, status models.RegistrationStatus) error {
	payload, _ := json.Marshal(map[string]string{"status": string(status)})
	_, err := s.doRequest(ctx, http.MethodPatch, "/api/collections/registrations/records/"+url.PathEscape(id), payload)
	return err
}

// pbConfigRecord is the raw wire shape of a system_config record.
type pbConfigRecord struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// findConfigRecord returns the record holding the given key, or nil.
func (s *PocketBaseStore) findConfigRecord(ctx context.Context, key string) (*pbConfigRecord, error) {
	q := url.Values{}
	q.Set("filter", "key="+pbFilterQuote(key))
	q.Set("perPage", "1")

	respBody, err := s.doRequest(ctx, http.MethodGet, "/api/collections/system_config/records?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var list pbListResponse
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, E(KindNetwork, "pocketbase.get_config", err)
	}
	if len(list.Items) == 0 {
		return nil, nil
	}

	var rec pbConfigRecord
	if err := json.Unmarshal(list.Items[0], &rec); err != nil {
		return nil, E(KindNetwork, "pocketbase.get_config", err)
	}
	return &rec, nil
}

// GetBotPersonality returns the configured bot personality prompt.
func (s *PocketBaseStore) GetBotPersonality(ctx context.Context) (string, error) {
	rec, err := s.findConfigRecord(ctx, "bot_personality")
	if err != nil {
		return "", err
	}
	if rec == nil || rec.Value == "" {
		return DefaultBotPersonality, nil
	}
	return rec.Value, nil
}

// SetBotPersonality stores the bot personality prompt, updating the
// existing record when one exists.
func (s *PocketBaseStore) SetBotPersonality(ctx context.Context, personality string) error {
	rec, err := s.findConfigRecord(ctx, "bot_personality")
	if err != nil {
		return err
	}

	if rec != nil {
		payload, _ := json.Marshal(map[string]string{"value": personality})
		_, err := s.doRequest(ctx, http.MethodPatch, "/api/collections/system_config/records/"+url.PathEscape(rec.ID), payload)
		return err
	}

	payload, _ := json.Marshal(map[string]string{"key": "bot_personality", "value": personality})
	_, err = s.doRequest(ctx, http.MethodPost, "/api/collections/system_config/records", payload)
	return err
}
