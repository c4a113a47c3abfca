package scoring

import (
	"strings"
	"testing"

	"coachline/internal/models"
)

func chunk(text string) models.TranscriptChunk {
	return models.TranscriptChunk{Text: text}
}

func TestHeuristic_NoSignal(t *testing.T) {
	advice := Heuristic([]models.TranscriptChunk{chunk("hey, how's the weather today")})
	if advice.RiskScore != 20 {
		t.Fatalf("expected base score 20, got %d", advice.RiskScore)
	}
	if advice.RiskLevel != models.RiskLow {
		t.Fatalf("expected low risk, got %q", advice.RiskLevel)
	}
}

func TestHeuristic_HighBankRaisesScoreAboveMediumFloor(t *testing.T) {
	advice := Heuristic([]models.TranscriptChunk{chunk("wire transfer urgent immediately")})
	if advice.RiskScore < 40 {
		t.Fatalf("expected score >= 40, got %d", advice.RiskScore)
	}
	if advice.RiskLevel != models.RiskMedium && advice.RiskLevel != models.RiskHigh {
		t.Fatalf("expected medium or high, got %q", advice.RiskLevel)
	}
	if !strings.Contains(strings.ToLower(advice.Feedback), "verif") && !strings.Contains(strings.ToLower(advice.WhatToDo), "verif") {
		t.Fatalf("expected verification language, got feedback=%q whatToDo=%q", advice.Feedback, advice.WhatToDo)
	}
	forbidden := []string{"share your code", "share your password", "share your account"}
	lower := strings.ToLower(advice.WhatToDo)
	for _, f := range forbidden {
		if strings.Contains(lower, f) {
			t.Fatalf("whatToDo must never direct sharing credentials, got %q", advice.WhatToDo)
		}
	}
}

func TestHeuristic_ClampsToRange(t *testing.T) {
	spam := strings.Repeat("gift card wire transfer crypto ssn arrest warrant ", 10)
	advice := Heuristic([]models.TranscriptChunk{chunk(spam)})
	if advice.RiskScore > 95 {
		t.Fatalf("expected score clamped to 95, got %d", advice.RiskScore)
	}
}

func TestHeuristic_MediumBankMatch(t *testing.T) {
	advice := Heuristic([]models.TranscriptChunk{chunk("this is the refund department, please confirm your identity")})
	if advice.RiskScore < 20+8 {
		t.Fatalf("expected at least one medium bump, got %d", advice.RiskScore)
	}
}
