package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_PlaceCallSetsIdempotencyKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewEncoder(w).Encode(PlaceCallResponse{CallID: "CA123", Status: "queued"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "AC1", "token")
	resp, err := c.PlaceCall(context.Background(), "brave-otter-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CallID != "CA123" {
		t.Fatalf("expected call id CA123, got %q", resp.CallID)
	}
	if gotKey == "" {
		t.Fatal("expected a non-empty idempotency key header")
	}
}

func TestClient_PlaceCallNonTwoXXReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "AC1", "token")
	if _, err := c.PlaceCall(context.Background(), "slug"); err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}

func TestClient_GetCallStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(CallStatusResponse{CallID: "CA123", Status: "in-progress"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "AC1", "token")
	resp, err := c.GetCallStatus(context.Background(), "CA123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "in-progress" {
		t.Fatalf("expected status in-progress, got %q", resp.Status)
	}
}
