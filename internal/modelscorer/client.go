// Package modelscorer calls the remote model for C5, adapted from the
// teacher's internal/annotation_client (a thin JSON-over-HTTP wrapper with a
// zap logger) generalized to a chat-completions call whose response is
// parsed, validated, and sanitized into a CoachingAdvice (spec.md §4.5).
package modelscorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"coachline/internal/models"
)

const (
	requestTimeout  = 8 * time.Second
	temperature     = 0.15
	maxTokens       = 240
	maxChunks       = 40
)

// ModelError is raised for any non-2xx response; RetryAfterMs is non-zero
// only when the upstream sent a Retry-After hint.
type ModelError struct {
	Status       int
	RetryAfterMs int64
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model scorer: upstream status %d", e.Status)
}

// Client talks to an OpenAI-chat-completions-shaped endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey, model string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: requestTimeout + time.Second},
		logger:     logger,
	}
}

// Configured reports whether an API key is present (spec.md §4.5: "Returns
// null if the API key is not configured").
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Score calls the remote model with the last chunks plus the previous
// advice snapshot and returns sanitized advice, or nil if the client isn't
// configured. It returns a *ModelError for any non-2xx response.
func (c *Client) Score(ctx context.Context, chunks []models.TranscriptChunk, previous *models.CoachingAdvice) (*models.CoachingAdvice, error) {
	if !c.Configured() {
		return nil, nil
	}
	if len(chunks) > maxChunks {
		chunks = chunks[len(chunks)-maxChunks:]
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserMessage(chunks, previous)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("model scorer request failed", zap.Error(err))
		return nil, &ModelError{Status: 0}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ModelError{
			Status:       resp.StatusCode,
			RetryAfterMs: parseRetryAfterMs(resp.Header.Get("Retry-After")),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("model response had no choices")
	}

	raw, err := extractJSONObject(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to extract advice JSON: %w", err)
	}

	advice, err := sanitizeAdvice(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid advice from model: %w", err)
	}
	return advice, nil
}

const systemPrompt = `You are a real-time anti-scam call coach. Given a live phone transcript, output ONLY a JSON object with exactly these fields: risk_score (integer 0-100), feedback (string, <=220 chars), what_to_say (string, <=220 chars), what_to_do (string, <=220 chars), next_steps (array of up to 2 short strings), confidence (number 0-1). Rules: never advise sharing personal data, a code, a password, or an account number; be action-first; do not move the score sharply without concrete evidence.`

func buildUserMessage(chunks []models.TranscriptChunk, previous *models.CoachingAdvice) string {
	var b strings.Builder
	if previous != nil {
		snapshot, _ := json.Marshal(previous)
		b.WriteString("Previous advice snapshot: ")
		b.Write(snapshot)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript (oldest first):\n")
	for _, c := range chunks {
		speaker := string(c.Speaker)
		if speaker == "" {
			speaker = "unknown"
		}
		fmt.Fprintf(&b, "%s: %s\n", capitalize(speaker), c.Text)
	}
	return b.String()
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSONObject accepts a bare JSON object, a fenced ```json block, or
// the first {...} substring, in that priority order (spec.md §4.5).
func extractJSONObject(content string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(content)

	var bare map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &bare); err == nil {
		return bare, nil
	}

	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		var fenced map[string]interface{}
		if err := json.Unmarshal([]byte(m[1]), &fenced); err == nil {
			return fenced, nil
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		var substr map[string]interface{}
		if err := json.Unmarshal([]byte(content[start:end+1]), &substr); err == nil {
			return substr, nil
		}
	}

	return nil, fmt.Errorf("no parseable JSON object in model response")
}

func sanitizeAdvice(raw map[string]interface{}) (*models.CoachingAdvice, error) {
	score, ok := numberField(raw, "risk_score")
	if !ok {
		return nil, fmt.Errorf("missing risk_score")
	}
	feedback, _ := stringField(raw, "feedback")
	whatToSay, _ := stringField(raw, "what_to_say")
	whatToDo, ok := stringField(raw, "what_to_do")
	if !ok {
		return nil, fmt.Errorf("missing what_to_do")
	}
	confidence, ok := numberField(raw, "confidence")
	if !ok {
		return nil, fmt.Errorf("missing confidence")
	}

	var nextSteps []string
	if arr, ok := raw["next_steps"].([]interface{}); ok {
		for _, item := range arr {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				nextSteps = append(nextSteps, s)
				if len(nextSteps) == 2 {
					break
				}
			}
		}
	}

	riskScore := clampInt(int(score+0.5), 0, 100)
	clampedConfidence := clampFloat(confidence, 0, 1)

	return &models.CoachingAdvice{
		RiskScore:  riskScore,
		RiskLevel:  models.LevelForScore(riskScore),
		Feedback:   truncate(feedback, 220),
		WhatToSay:  truncate(whatToSay, 220),
		WhatToDo:   truncate(whatToDo, 220),
		NextSteps:  nextSteps,
		Confidence: clampedConfidence,
	}, nil
}

func numberField(raw map[string]interface{}, key string) (float64, bool) {
	v, ok := raw[key].(float64)
	return v, ok
}

func stringField(raw map[string]interface{}, key string) (string, bool) {
	v, ok := raw[key].(string)
	return v, ok
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func parseRetryAfterMs(header string) int64 {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return int64(secs) * 1000
	}
	return 0
}
