package modelscorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"coachline/internal/models"
)

func TestClient_NotConfiguredReturnsNil(t *testing.T) {
	c := NewClient("", "", "", zap.NewNop())
	advice, err := c.Score(context.Background(), nil, nil)
	if err != nil || advice != nil {
		t.Fatalf("expected nil, nil when unconfigured, got %+v %v", advice, err)
	}
}

func TestClient_ParsesFencedJSONAndSanitizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{
					"content": "here you go:\n```json\n{\"risk_score\": 142, \"feedback\": \"be careful\", \"what_to_say\": \"no\", \"what_to_do\": \"hang up\", \"next_steps\": [\"call back\", \"tell family\", \"ignore this one\"], \"confidence\": 1.4}\n```",
				}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", zap.NewNop())
	advice, err := c.Score(context.Background(), []models.TranscriptChunk{{Text: "hello"}}, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if advice == nil {
		t.Fatal("expected advice")
	}
	if advice.RiskScore != 100 {
		t.Fatalf("expected score clamped to 100, got %d", advice.RiskScore)
	}
	if advice.Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %v", advice.Confidence)
	}
	if len(advice.NextSteps) != 2 {
		t.Fatalf("expected next_steps truncated to 2, got %v", advice.NextSteps)
	}
	if advice.RiskLevel != models.RiskHigh {
		t.Fatalf("expected high risk level derived from score, got %q", advice.RiskLevel)
	}
}

func TestClient_NonTwoXXReturnsModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "8")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", zap.NewNop())
	_, err := c.Score(context.Background(), []models.TranscriptChunk{{Text: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	modelErr, ok := err.(*ModelError)
	if !ok {
		t.Fatalf("expected *ModelError, got %T", err)
	}
	if modelErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", modelErr.Status)
	}
	if modelErr.RetryAfterMs != 8000 {
		t.Fatalf("expected retry-after 8000ms, got %d", modelErr.RetryAfterMs)
	}
}

func TestClient_BareJSONObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{
					"content": `{"risk_score": 30, "feedback": "ok", "what_to_say": "ok", "what_to_do": "listen", "confidence": 0.5}`,
				}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", zap.NewNop())
	advice, err := c.Score(context.Background(), []models.TranscriptChunk{{Text: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if advice.RiskScore != 30 {
		t.Fatalf("expected score 30, got %d", advice.RiskScore)
	}
}
