// Package scoring implements the pure advice sources: the regex-bank
// heuristic scorer (C4) and the confidence-weighted stabilizer (C6). The
// teacher has no equivalent of either — its own scoring step is fully
// delegated to an external ML service — so both are fresh code written
// directly from spec.md §4.4/§4.6's rule tables.
package scoring

import (
	"regexp"
	"strings"

	"coachline/internal/models"
)

// highBank and mediumBank are the closed sets of spec.md §4.4, each compiled
// once as a single alternation for speed.
var (
	highBank = regexp.MustCompile(`(?i)gift card|wire transfer|crypto|bitcoin|one[- ]?time passcode|otp|verification code|ssn|social security|bank account|routing number|remote access|screen share|install app|urgent|immediately|act now|final warning|arrest|warrant|lawsuit|jail`)

	mediumBank = regexp.MustCompile(`(?i)keep confidential|don't tell|suspicious activity|refund department|tech support|pay now|security hold|confirm your identity`)
)

const (
	heuristicBaseScore = 20
	heuristicHighStep   = 15
	heuristicMediumStep = 8
	heuristicScoreMin   = 5
	heuristicScoreMax   = 95

	confidenceLow    = 0.45
	confidenceMedium = 0.50
	confidenceHigh   = 0.55
)

// Heuristic computes provisional advice from the last transcript chunks,
// using only regex matching on the concatenated lowercased text (spec.md
// §4.4). It is pure and does not look at previous advice; the previous
// snapshot is consulted only by Stabilize.
func Heuristic(chunks []models.TranscriptChunk) models.CoachingAdvice {
	text := strings.ToLower(joinText(chunks))

	score := heuristicBaseScore
	score += heuristicHighStep * len(highBank.FindAllString(text, -1))
	score += heuristicMediumStep * len(mediumBank.FindAllString(text, -1))
	score = clamp(score, heuristicScoreMin, heuristicScoreMax)

	level := models.LevelForScore(score)
	feedback, whatToSay, whatToDo, nextSteps, confidence := templateFor(level)

	return models.CoachingAdvice{
		RiskScore:  score,
		RiskLevel:  level,
		Feedback:   feedback,
		WhatToSay:  whatToSay,
		WhatToDo:   whatToDo,
		NextSteps:  nextSteps,
		Confidence: confidence,
	}
}

func joinText(chunks []models.TranscriptChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.Text)
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// templateFor returns the level-specific prose; these templates are an
// implementation detail the spec leaves to the glossary's "see glossary"
// pointer without fixing exact wording, so the invariants that matter are
// the ones tests assert against (verification language at medium/high,
// never a directive to share codes/passwords/accounts).
func templateFor(level models.RiskLevel) (feedback, whatToSay, whatToDo string, nextSteps []string, confidence float64) {
	switch level {
	case models.RiskHigh:
		return "Multiple high-risk phrases detected. This has the shape of a scam call.",
			"I'm not comfortable continuing. I'll call the company back on the number from my card or statement.",
			"Hang up now and verify independently using a number you already trust.",
			[]string{"Do not share any code, password, or account number.", "Tell a trusted contact before taking any action."},
			confidenceHigh
	case models.RiskMedium:
		return "Some pressure or verification-request language detected. Stay cautious.",
			"I need to verify this independently before I do anything.",
			"Ask for a callback number and verify it against the official site before continuing.",
			[]string{"Do not confirm personal details over this call."},
			confidenceMedium
	default:
		return "Nothing alarming detected yet. Keep listening.",
			"Can you tell me more about why you're calling?",
			"Stay on the line and keep listening for pressure tactics.",
			nil,
			confidenceLow
	}
}
