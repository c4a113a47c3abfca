package models

// Speaker classifies which side of the call a transcript chunk came from.
type Speaker string

const (
	SpeakerCaller  Speaker = "caller"
	SpeakerOther   Speaker = "other"
	SpeakerUnknown Speaker = "unknown"
)

// TranscriptChunk is an append-only fragment of the live transcript,
// deduplicated by (call_id, source_event_id). See spec.md §3.
type TranscriptChunk struct {
	ID            int64   `db:"id" json:"id"`
	CallID        string  `db:"call_id" json:"callId"`
	SourceEventID string  `db:"source_event_id" json:"-"`
	Speaker       Speaker `db:"speaker" json:"speaker"`
	Text          string  `db:"text" json:"text"`
	TimestampMs   int64   `db:"timestamp_ms" json:"timestampMs"`
	IsFinal       bool    `db:"is_final" json:"isFinal"`
}
