package webhooksig

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"
)

func TestVerifyForm_RoundTrip(t *testing.T) {
	authToken := "secret-token"
	candidateURL := "https://example.com/webhook?slug=grandma-tuesday"
	form := url.Values{"CallSid": {"CA123"}, "CallStatus": {"ringing"}}

	expected := signForm(authToken, candidateURL, sortedParamConcat(form))

	if !VerifyForm(authToken, []string{candidateURL}, form, expected) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifyForm(authToken, []string{candidateURL}, form, "bogus") {
		t.Fatal("expected invalid signature to fail")
	}
}

func TestVerifyForm_TriesMultipleURLCandidates(t *testing.T) {
	authToken := "secret-token"
	proxied := "https://internal.example.com/webhook?slug=x"
	public := "https://public.example.com/webhook?slug=x"
	form := url.Values{"a": {"1"}}

	expected := signForm(authToken, public, sortedParamConcat(form))

	if !VerifyForm(authToken, []string{proxied, public}, form, expected) {
		t.Fatal("expected match against the second URL candidate")
	}
}

func TestVerifyJSON_RequiresMatchingBodyHash(t *testing.T) {
	authToken := "secret-token"
	body := []byte(`{"call_sid":"CA1"}`)
	sum := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(sum[:])
	candidateURL := "https://example.com/webhook?slug=x&bodySHA256=" + bodyHash

	mac := signForm(authToken, candidateURL, "")
	if !VerifyJSON(authToken, []string{candidateURL}, body, bodyHash, mac) {
		t.Fatal("expected valid JSON signature to verify")
	}

	if VerifyJSON(authToken, []string{candidateURL}, []byte("tampered"), bodyHash, mac) {
		t.Fatal("expected tampered body to fail hash check")
	}
}

func TestBuildURLCandidates_IncludesProxyRewrite(t *testing.T) {
	candidates := BuildURLCandidates("https://internal:8080/webhook", "public.example.com", "https")
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(candidates), candidates)
	}
	if candidates[1] != "https://public.example.com/webhook" {
		t.Fatalf("unexpected rewritten candidate: %q", candidates[1])
	}
}

func TestBuildURLCandidates_NoHeadersNoop(t *testing.T) {
	candidates := BuildURLCandidates("https://example.com/webhook", "", "")
	if len(candidates) != 1 {
		t.Fatalf("expected only the as-received URL, got %v", candidates)
	}
}
