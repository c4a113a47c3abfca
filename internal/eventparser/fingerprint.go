package eventparser

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Fingerprint computes the deterministic dedup key C1 hands to the live
// store as source_event_id: the call_id, a primary_id identifying the
// originating provider event/segment, and the normalized transcript text,
// joined and hashed with SHA-1 (spec.md §4.1, §4.3).
func Fingerprint(callID, primaryID, text string) string {
	normalizedText := strings.ToLower(strings.TrimSpace(text))
	h := sha1.New()
	h.Write([]byte(callID))
	h.Write([]byte{'|'})
	h.Write([]byte(primaryID))
	h.Write([]byte{'|'})
	h.Write([]byte(normalizedText))
	return hex.EncodeToString(h.Sum(nil))
}
