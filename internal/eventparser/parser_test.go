package eventparser

import (
	"testing"

	"coachline/internal/models"
)

func TestParse_FormEncodedStatusUpdate(t *testing.T) {
	body := []byte("CallSid=CA123&CallStatus=in-progress&AccountSid=AC9")
	ev, err := Parse(body, "application/x-www-form-urlencoded", "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.CallID != "CA123" || ev.AccountID != "AC9" {
		t.Fatalf("unexpected ids: %+v", ev)
	}
	if !ev.HasStatus || ev.RawStatus != "in-progress" {
		t.Fatalf("expected status in-progress, got %+v", ev)
	}
	if ev.Transcript != nil {
		t.Fatalf("expected no transcript fields, got %+v", ev.Transcript)
	}
}

func TestParse_FormEncodedTranscript(t *testing.T) {
	body := []byte("CallSid=CA123&TranscriptionText=hello+there&Track=inbound_track&IsFinal=true")
	ev, err := Parse(body, "application/x-www-form-urlencoded", "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Transcript == nil {
		t.Fatalf("expected transcript fields")
	}
	if ev.Transcript.Text != "hello there" {
		t.Fatalf("unexpected text: %q", ev.Transcript.Text)
	}
	if ev.Transcript.Speaker != models.SpeakerCaller {
		t.Fatalf("expected caller speaker, got %q", ev.Transcript.Speaker)
	}
	if !ev.Transcript.IsFinal {
		t.Fatalf("expected final")
	}
}

func TestParse_JSONNestedTranscriptionData(t *testing.T) {
	body := []byte(`{
		"call_sid": "CA999",
		"transcription_data": {
			"segments": [
				{"text": "we need your social security number", "is_final": true}
			]
		},
		"track": "outbound_track"
	}`)
	ev, err := Parse(body, "application/json", "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Transcript == nil {
		t.Fatalf("expected transcript fields")
	}
	if ev.Transcript.Text != "we need your social security number" {
		t.Fatalf("unexpected text: %q", ev.Transcript.Text)
	}
	if !ev.Transcript.IsFinal {
		t.Fatalf("expected is_final from nested segment")
	}
	if ev.Transcript.Speaker != models.SpeakerOther {
		t.Fatalf("expected other speaker, got %q", ev.Transcript.Speaker)
	}
}

func TestParse_JSONSniffedWithoutContentType(t *testing.T) {
	body := []byte(`{"callId": "CA1", "status": "completed"}`)
	ev, err := Parse(body, "", "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.CallID != "CA1" || ev.RawStatus != "completed" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParse_SlugFallsBackToHint(t *testing.T) {
	body := []byte("CallSid=CA1")
	ev, err := Parse(body, "application/x-www-form-urlencoded", "grandma-tuesday")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Slug != "grandma-tuesday" {
		t.Fatalf("expected slug hint fallback, got %q", ev.Slug)
	}
}

func TestParse_EventTypeFinalityFallback(t *testing.T) {
	body := []byte("CallSid=CA1&TranscriptionText=done&EventType=transcription.completed")
	ev, err := Parse(body, "application/x-www-form-urlencoded", "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Transcript == nil || !ev.Transcript.IsFinal {
		t.Fatalf("expected event-type-derived finality, got %+v", ev.Transcript)
	}
}

func TestParse_TopLevelIsFinalWinsOverNested(t *testing.T) {
	body := []byte(`{
		"call_sid": "CA1",
		"is_final": false,
		"transcription_data": {"segments": [{"text": "hi", "is_final": true}]}
	}`)
	ev, err := Parse(body, "application/json", "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Transcript == nil {
		t.Fatalf("expected transcript")
	}
	if ev.Transcript.IsFinal {
		t.Fatalf("expected top-level is_final=false to win over nested true")
	}
}
