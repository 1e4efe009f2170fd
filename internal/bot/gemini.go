package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/volkanakbulut73/sohbetchat/internal/models"
)

const defaultModel = "gemini-2.0-flash"

// historyWindow bounds how many recent messages are sent as context.
const historyWindow = 15

// GeminiResponder calls the Gemini generateContent REST endpoint.
type GeminiResponder struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiResponder creates a responder for the given API key.
func NewGeminiResponder(apiKey string) *GeminiResponder {
	return &GeminiResponder{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    "https://generativelanguage.googleapis.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// geminiPart is a single content fragment.
type geminiPart struct {
	Text string `json:"text"`
}

// geminiContent is one conversation turn.
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
		TopP        float64 `json:"topP"`
		TopK        int     `json:"topK"`
	} `json:"generationConfig"`
}

// geminiResponse is the subset of the response we read.
type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate builds the room-context prompt and requests a reply. On any
// failure it returns FallbackText alongside the error.
func (g *GeminiResponder) Generate(ctx context.Context, target models.Participant, participants []models.Participant, history []models.Message, topic, personality string) (string, error) {
	req := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: buildSystemInstruction(target, participants, topic, personality)}},
		},
		Contents: buildHistory(target, history),
	}
	req.GenerationConfig.Temperature = 0.8
	req.GenerationConfig.TopP = 0.95
	req.GenerationConfig.TopK = 40

	body, err := json.Marshal(req)
	if err != nil {
		return FallbackText, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return FallbackText, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return FallbackText, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return FallbackText, err
	}
	if resp.StatusCode >= 400 {
		return FallbackText, fmt.Errorf("gemini error %d: %s", resp.StatusCode, string(respBody))
	}

	var out geminiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return FallbackText, err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return FallbackText, fmt.Errorf("gemini returned no candidates")
	}

	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "...", nil
	}
	return text, nil
}

// buildSystemInstruction describes the room, the participants and the
// target bot's character. The operator-configured personality comes first
// so it frames the per-bot persona below it.
func buildSystemInstruction(target models.Participant, participants []models.Participant, topic, personality string) string {
	var b strings.Builder
	if personality != "" {
		b.WriteString(personality + "\n\n")
	}
	b.WriteString("You are in an mIRC chat room (Workigom Secure Network).\n")
	b.WriteString("Topic: " + topic + "\n\n")
	b.WriteString("Participants in the room:\n")
	for _, p := range participants {
		kind := "Human"
		if p.IsAI {
			kind = "Bot"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", p.Name, kind, p.Persona)
	}
	b.WriteString("\nYour character:\n")
	b.WriteString("Name: " + target.Name + "\n")
	b.WriteString("Personality: " + target.Persona + "\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Speak ONLY as " + target.Name + ".\n")
	b.WriteString("2. Never prefix your message with your name or \"Assistant:\".\n")
	b.WriteString("3. Use mIRC jargon: short, casual, the occasional emoji.\n")
	b.WriteString("4. React naturally to what other users wrote.\n")
	b.WriteString("5. Behave like a real mIRC user.\n")
	return b.String()
}

// buildHistory converts the recent room history into conversation turns.
// Messages sent by the target bot map to model turns, everything else to
// user turns prefixed with the sender's handle.
func buildHistory(target models.Participant, history []models.Message) []geminiContent {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	contents := make([]geminiContent, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Sender == target.Name {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Sender + ": " + m.Text}},
		})
	}

	if len(contents) == 0 {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: "Say hello to the room."}},
		})
	}
	return contents
}
