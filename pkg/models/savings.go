package models

import (
	"time"

	"github.com/google/uuid"
)

// MinutesRange is a time-saved estimate in minutes. Min == Max for point estimates.
type MinutesRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SavingEvent is one entry of the ledger history, newest first.
type SavingEvent struct {
	ToolID     string  `json:"tool_id"`
	Minutes    float64 `json:"minutes"`
	MinutesMin float64 `json:"minutes_min"`
	MinutesMax float64 `json:"minutes_max"`
	Timestamp  float64 `json:"timestamp"`
	Time       string  `json:"time"`
	Message    string  `json:"message,omitempty"`
}

// TimeSavings is the hub-owned ledger snapshot. The orchestrator only reads it.
type TimeSavings struct {
	TotalSeconds    float64        `json:"totalSeconds"`
	TotalSecondsMin *float64       `json:"totalSecondsMin,omitempty"`
	TotalSecondsMax *float64       `json:"totalSecondsMax,omitempty"`
	Executed        map[string]int `json:"executed"`
	History         []SavingEvent  `json:"history"`
}

// CreditEvent records one attempt to credit a completed job to the ledger.
type CreditEvent struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	JobID      string    `db:"job_id"      json:"job_id"`
	ToolID     string    `db:"tool_id"     json:"tool_id"`
	SessionID  string    `db:"session_id"  json:"session_id"`
	MinutesMin float64   `db:"minutes_min" json:"minutes_min"`
	MinutesMax float64   `db:"minutes_max" json:"minutes_max"`
	Succeeded  bool      `db:"succeeded"   json:"succeeded"`
	Error      *string   `db:"error"       json:"error,omitempty"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}
