package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one recorded pipeline run
type Run struct {
	ID          uuid.UUID       `json:"id"`
	Mode        string          `json:"mode"`
	Fonts       []string        `json:"fonts"`
	Status      string          `json:"status"`
	Subsets     int             `json:"subsets"`
	Diagnostics int             `json:"diagnostics"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// RunOutcome is what a finished run reports back
type RunOutcome struct {
	Status      string
	Subsets     int
	Diagnostics int
	Summary     any
}

// StatusFor picks the final status of a run from its diagnostics count
func StatusFor(err error, diagnostics int) string {
	if err != nil {
		return RunStatusFailed
	}
	if diagnostics > 0 {
		return RunStatusCompleted + "_with_errors"
	}
	return RunStatusCompleted
}
