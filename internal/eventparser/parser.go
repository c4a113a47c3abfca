// Package eventparser turns an arbitrary webhook payload, form-encoded or
// JSON, into the normalized fields the rest of the pipeline needs (spec.md
// §4.1, component C1).
package eventparser

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"coachline/internal/models"
)

var (
	aliasesCallID    = []string{"CallSid", "callSid", "call_sid", "CallId", "callId", "call_id"}
	aliasesAccountID = []string{"AccountSid", "accountSid", "account_sid", "AccountId", "accountId", "account_id"}
	aliasesSlug      = []string{"Slug", "slug"}
	aliasesStatus    = []string{"CallStatus", "callStatus", "call_status", "Status", "status"}
	aliasesText      = []string{"TranscriptionText", "transcriptionText", "transcript", "Transcript", "text", "Text", "SpeechResult"}
	aliasesTrack     = []string{"Track", "track", "Channel", "channel", "ParticipantRole", "participantRole", "participant_role"}
	aliasesIsFinal   = []string{"IsFinal", "isFinal", "is_final", "Final", "final"}
	aliasesEventType = []string{"EventType", "eventType", "event_type", "Event", "event"}
	aliasesSegmentID = []string{"SegmentSid", "segmentSid", "segment_sid", "SegmentId", "segmentId"}
	aliasesSourceID  = []string{"SourceEventId", "sourceEventId", "source_event_id", "EventSid", "eventSid", "MessageSid", "messageSid"}
	aliasesTransSID  = []string{"TranscriptionSid", "transcriptionSid", "transcription_sid"}
	aliasesSeqID     = []string{"SequenceId", "sequenceId", "sequence_id", "SequenceNumber", "sequenceNumber"}
	aliasesTimestamp = []string{"Timestamp", "timestamp"}
)

var finalityHintRe = regexp.MustCompile(`(?i)(final|complete|stopped)`)

// TranscriptFields holds everything needed to append a TranscriptChunk, once
// extracted and classified; Fingerprint is the C1 dedup key (spec.md §4.1,
// §4.3).
type TranscriptFields struct {
	Text        string
	Speaker     models.Speaker
	IsFinal     bool
	TimestampMs int64
	Fingerprint string
}

// ParsedEvent is the output of Parse: every field is optional because a
// given webhook delivery might carry only a status update, only a
// transcript fragment, or both.
type ParsedEvent struct {
	CallID     string
	AccountID  string
	Slug       string
	RawStatus  string
	HasStatus  bool
	Transcript *TranscriptFields
}

// Parse sniffs the content type of body and extracts the fields the rest of
// the pipeline cares about. slugHint is the slug taken from the request
// path/query, used as a fallback when the payload itself carries none.
func Parse(body []byte, contentType string, slugHint string) (ParsedEvent, error) {
	extractor, err := buildExtractor(body, contentType)
	if err != nil {
		return ParsedEvent{}, err
	}

	ev := ParsedEvent{}
	if v, ok := extractor.Get(aliasesCallID...); ok {
		ev.CallID = v
	}
	if v, ok := extractor.Get(aliasesAccountID...); ok {
		ev.AccountID = v
	}
	if v, ok := extractor.Get(aliasesSlug...); ok {
		ev.Slug = v
	} else {
		ev.Slug = slugHint
	}
	if v, ok := extractor.Get(aliasesStatus...); ok {
		ev.RawStatus = v
		ev.HasStatus = true
	}

	if text, ok := extractor.Get(aliasesText...); ok && strings.TrimSpace(text) != "" {
		ev.Transcript = buildTranscriptFields(extractor, ev.CallID, text)
	}

	return ev, nil
}

func buildExtractor(body []byte, contentType string) (FieldExtractor, error) {
	if looksLikeJSON(body, contentType) {
		var tree interface{}
		if err := json.Unmarshal(body, &tree); err != nil {
			return nil, err
		}
		return newJSONExtractor(tree), nil
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	return newFormExtractor(values), nil
}

func looksLikeJSON(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func buildTranscriptFields(extractor FieldExtractor, callID, text string) *TranscriptFields {
	speaker := classifySpeaker(extractor)
	isFinal := classifyFinality(extractor)
	timestampMs := extractTimestampMs(extractor)

	primaryID := firstNonEmpty(
		getOrEmpty(extractor, aliasesSegmentID),
		getOrEmpty(extractor, aliasesSourceID),
		joinIfBothPresent(extractor, aliasesTransSID, aliasesSeqID),
	)
	if primaryID == "" {
		primaryID = strconv.FormatInt(timestampMs, 10) + ":" + string(speaker)
	}

	return &TranscriptFields{
		Text:        text,
		Speaker:     speaker,
		IsFinal:     isFinal,
		TimestampMs: timestampMs,
		Fingerprint: Fingerprint(callID, primaryID, text),
	}
}

func classifySpeaker(extractor FieldExtractor) models.Speaker {
	v, ok := extractor.Get(aliasesTrack...)
	if !ok {
		return models.SpeakerUnknown
	}
	lv := strings.ToLower(v)
	switch {
	case strings.Contains(lv, "caller"), strings.Contains(lv, "customer"), strings.Contains(lv, "inbound"):
		return models.SpeakerCaller
	case strings.Contains(lv, "outbound"), strings.Contains(lv, "callee"), strings.Contains(lv, "agent"), strings.Contains(lv, "recipient"), strings.Contains(lv, "other"):
		return models.SpeakerOther
	default:
		return models.SpeakerUnknown
	}
}

func classifyFinality(extractor FieldExtractor) bool {
	if v, ok := extractor.Get(aliasesIsFinal...); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	if v, ok := extractor.Get(aliasesEventType...); ok {
		return finalityHintRe.MatchString(v)
	}
	return false
}

func extractTimestampMs(extractor FieldExtractor) int64 {
	v, ok := extractor.Get(aliasesTimestamp...)
	if !ok {
		return 0
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ms
	}
	return 0
}

func getOrEmpty(extractor FieldExtractor, aliases []string) string {
	v, _ := extractor.Get(aliases...)
	return v
}

func joinIfBothPresent(extractor FieldExtractor, aliasesA, aliasesB []string) string {
	a, okA := extractor.Get(aliasesA...)
	b, okB := extractor.Get(aliasesB...)
	if !okA || !okB {
		return ""
	}
	return a + ":" + b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
