// Package telephony is the thin out-of-core collaborator behind POST /call
// (SPEC_FULL.md §6): a single outbound POST against a configurable provider
// base URL. Adapted from the teacher's internal/ml_client HTTP-wrapper
// shape (NewClient(baseURL) + one JSON-in/JSON-out method per endpoint).
package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client places calls against the provider's telephony API. Real dialing,
// media, and webhook delivery back to this service are provider-owned and
// out of scope; this client only issues the placement request.
type Client struct {
	baseURL    string
	accountID  string
	authToken  string
	httpClient *http.Client
}

func NewClient(baseURL, accountID, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		accountID: accountID,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type placeCallRequest struct {
	AccountID string `json:"accountId"`
	Slug      string `json:"slug"`
}

// PlaceCallResponse carries the provider-assigned call_id a fresh
// CallSession is upserted under.
type PlaceCallResponse struct {
	CallID string `json:"callId"`
	Status string `json:"status"`
}

// PlaceCall issues one outbound-call placement request, tagged with a
// fresh idempotency key so a client-side retry can't double-dial.
func (c *Client) PlaceCall(ctx context.Context, slug string) (*PlaceCallResponse, error) {
	body, err := json.Marshal(placeCallRequest{AccountID: c.accountID, Slug: slug})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal place-call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build place-call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send place-call request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out PlaceCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode place-call response: %w", err)
	}
	return &out, nil
}

// CallStatusResponse mirrors whatever raw status string the provider's
// webhook would otherwise deliver; callers normalize it with
// internal/statemachine.Normalize.
type CallStatusResponse struct {
	CallID string `json:"callId"`
	Status string `json:"status"`
}

// GetCallStatus polls the provider directly, used by the admin oversight
// view to refresh a session that hasn't received a webhook in a while.
func (c *Client) GetCallStatus(ctx context.Context, callID string) (*CallStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/"+callID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build call-status request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send call-status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out CallStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode call-status response: %w", err)
	}
	return &out, nil
}
