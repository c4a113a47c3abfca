package scoring

import (
	"strings"
	"testing"

	"coachline/internal/models"
)

func TestStabilize_DeadZoneHoldsScore(t *testing.T) {
	prev := models.CoachingAdvice{RiskScore: 25}
	next := models.CoachingAdvice{RiskScore: 27, Confidence: 0.9}
	out := Stabilize(&prev, next, DefaultStepCaps)
	if out.RiskScore != 25 {
		t.Fatalf("expected dead-zone to hold at 25, got %d", out.RiskScore)
	}
}

func TestStabilize_LowConfidenceCapsStep(t *testing.T) {
	prev := models.CoachingAdvice{RiskScore: 25}
	next := models.CoachingAdvice{RiskScore: 90, Confidence: 0.4}
	out := Stabilize(&prev, next, DefaultStepCaps)
	if out.RiskScore > 35 {
		t.Fatalf("expected step capped to 25+10=35, got %d", out.RiskScore)
	}
}

func TestStabilize_BandCrossingAcceleration(t *testing.T) {
	prev := models.CoachingAdvice{RiskScore: 68}
	next := models.CoachingAdvice{RiskScore: 92, Confidence: 0.8}
	out := Stabilize(&prev, next, DefaultStepCaps)
	if out.RiskScore-prev.RiskScore > 22 {
		t.Fatalf("expected move capped to at most 22 from previous, got %d -> %d", prev.RiskScore, out.RiskScore)
	}
	if out.RiskLevel != models.RiskHigh {
		t.Fatalf("expected risk level high after crossing, got %q", out.RiskLevel)
	}
}

func TestStabilize_NilPreviousPassesThrough(t *testing.T) {
	next := models.CoachingAdvice{RiskScore: 55, Confidence: 0.6, WhatToDo: "verify the caller"}
	out := Stabilize(nil, next, DefaultStepCaps)
	if out.RiskScore != 55 {
		t.Fatalf("expected unmodified score on first cycle, got %d", out.RiskScore)
	}
}

func TestMergeActions_DedupesCaseInsensitive(t *testing.T) {
	whatToDo, nextSteps := mergeActions(
		"Verify the caller.",
		[]string{"Stay calm."},
		"verify the caller.",
		[]string{"Do not share codes.", "Stay   calm."},
	)
	if whatToDo != "Verify the caller." {
		t.Fatalf("expected next.what_to_do to win, got %q", whatToDo)
	}
	for _, s := range nextSteps {
		if canonicalizeAction(s) == "" {
			t.Fatalf("expected no empty entries, got %v", nextSteps)
		}
	}
	seen := map[string]bool{}
	all := append([]string{whatToDo}, nextSteps...)
	for _, s := range all {
		key := canonicalizeAction(s)
		lower := strings.ToLower(key)
		if seen[lower] {
			t.Fatalf("expected no case-insensitive duplicates, got %v", all)
		}
		seen[lower] = true
	}
	if len(nextSteps) > 2 {
		t.Fatalf("expected at most 2 next steps, got %d", len(nextSteps))
	}
}

func TestMergeActions_FallsBackWhenEmpty(t *testing.T) {
	whatToDo, nextSteps := mergeActions("", nil, "", nil)
	if whatToDo != fallbackAction {
		t.Fatalf("expected fallback action, got %q", whatToDo)
	}
	if nextSteps != nil {
		t.Fatalf("expected no next steps, got %v", nextSteps)
	}
}
