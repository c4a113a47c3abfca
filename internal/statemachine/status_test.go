package statemachine

import (
	"testing"

	"coachline/internal/models"
)

func TestNormalize(t *testing.T) {
	cases := map[string]models.Status{
		"queued":                  models.StatusQueued,
		"call-queued":             models.StatusQueued,
		"ringing":                 models.StatusRinging,
		"in-progress":             models.StatusInProgress,
		"in progress":             models.StatusInProgress,
		"active":                  models.StatusInProgress,
		"busy":                    models.StatusFailed,
		"failed":                  models.StatusFailed,
		"error-no-answer":         models.StatusFailed,
		"completed":               models.StatusEnded,
		"call-ended":              models.StatusEnded,
		"canceled":                models.StatusEnded,
		"something-else-entirely": models.StatusUnknown,
	}
	for raw, want := range cases {
		if got := Normalize(raw); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNextStatus_TerminalFinality(t *testing.T) {
	next, ok := NextStatus(models.StatusEnded, "ringing")
	if ok || next != models.StatusEnded {
		t.Fatalf("expected terminal status to be final, got %q ok=%v", next, ok)
	}

	next, ok = NextStatus(models.StatusInProgress, "completed")
	if !ok || next != models.StatusEnded {
		t.Fatalf("expected transition to ended, got %q ok=%v", next, ok)
	}
}

func TestTerminal(t *testing.T) {
	if !Terminal(models.StatusEnded) || !Terminal(models.StatusFailed) {
		t.Fatal("ended/failed must be terminal")
	}
	if Terminal(models.StatusRinging) || Terminal(models.StatusQueued) || Terminal(models.StatusUnknown) {
		t.Fatal("non-terminal statuses must not report terminal")
	}
}
