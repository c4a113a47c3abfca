package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RiskLevel is always a pure derivation of RiskScore; see LevelForScore.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// LevelForScore derives the risk level band for a clamped [0,100] score (I1).
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// CoachingAdvice is a pure value persisted as a jsonb column on sessions.
// See spec.md §3.
type CoachingAdvice struct {
	RiskScore   int       `json:"riskScore"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Feedback    string    `json:"feedback"`
	WhatToSay   string    `json:"whatToSay"`
	WhatToDo    string    `json:"whatToDo"`
	NextSteps   []string  `json:"nextSteps"`
	Confidence  float64   `json:"confidence"`
	UpdatedAtMs int64     `json:"updatedAt"`
}

// Value implements driver.Valuer so CoachingAdvice can be written to a jsonb column.
func (a CoachingAdvice) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner so CoachingAdvice can be read back from a jsonb column.
func (a *CoachingAdvice) Scan(src interface{}) error {
	if src == nil {
		*a = CoachingAdvice{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("advice: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*a = CoachingAdvice{}
		return nil
	}
	return json.Unmarshal(raw, a)
}
