// Package webhooksig verifies the provider webhook signature of spec.md §6.
// The teacher has no HMAC verification anywhere to adapt; this is fresh code
// written directly against stdlib crypto/hmac and crypto/subtle (no library
// in the pack addresses signature verification, and stdlib is the obvious
// correct tool for it), generalized to the form/JSON dual scheme and a small
// set of tried URL variants.
package webhooksig

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// BuildURLCandidates returns the as-received URL plus, when a reverse proxy
// rewrote host/proto, a variant reconstructed from those headers — the
// "small set of URL variants" spec.md §6 calls for.
func BuildURLCandidates(receivedURL, forwardedHost, forwardedProto string) []string {
	candidates := []string{receivedURL}

	if forwardedHost == "" && forwardedProto == "" {
		return candidates
	}

	u, err := url.Parse(receivedURL)
	if err != nil {
		return candidates
	}
	rewritten := *u
	if forwardedHost != "" {
		rewritten.Host = forwardedHost
	}
	if forwardedProto != "" {
		rewritten.Scheme = forwardedProto
	}
	rewrittenStr := rewritten.String()
	if rewrittenStr != receivedURL {
		candidates = append(candidates, rewrittenStr)
	}
	return candidates
}

// VerifyForm checks a form-encoded webhook: HMAC-SHA1(authToken, url +
// concat(sorted k,v)), base64-encoded, tried against each of urlCandidates.
func VerifyForm(authToken string, urlCandidates []string, form url.Values, signatureB64 string) bool {
	if signatureB64 == "" || authToken == "" {
		return false
	}
	suffix := sortedParamConcat(form)
	for _, candidate := range urlCandidates {
		expected := signForm(authToken, candidate, suffix)
		if constantTimeEqual(expected, signatureB64) {
			return true
		}
	}
	return false
}

func signForm(authToken, url, paramSuffix string) string {
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(url + paramSuffix))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func sortedParamConcat(form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := form[k]
		v := ""
		if len(vs) > 0 {
			v = vs[0]
		}
		b.WriteString(k)
		b.WriteString(v)
	}
	return b.String()
}

// VerifyJSON checks a JSON webhook: the URL must carry a bodySHA256 query
// parameter equal to hex(sha256(body)), and the signature signs the URL
// alone (spec.md §6).
func VerifyJSON(authToken string, urlCandidates []string, body []byte, bodySHA256Hex, signatureB64 string) bool {
	if signatureB64 == "" || authToken == "" || bodySHA256Hex == "" {
		return false
	}

	sum := sha256.Sum256(body)
	actualHex := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(actualHex), []byte(bodySHA256Hex)) != 1 {
		return false
	}

	for _, candidate := range urlCandidates {
		mac := hmac.New(sha1.New, []byte(authToken))
		mac.Write([]byte(candidate))
		expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if constantTimeEqual(expected, signatureB64) {
			return true
		}
	}
	return false
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
