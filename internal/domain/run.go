package domain

import (
	"encoding/json"
	"time"
)

// RunStatus represents the processing state of a run.
type RunStatus string

const (
	RunStatusRunning        RunStatus = "RUNNING"
	RunStatusCompleted      RunStatus = "COMPLETED"
	RunStatusPartialFailure RunStatus = "PARTIAL_FAILURE"
	RunStatusFailed         RunStatus = "FAILED"
)

func (s RunStatus) String() string { return string(s) }

// IsTerminal reports whether a run in this status will not change again.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusPartialFailure || s == RunStatusFailed
}

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusPartialFailure, RunStatusFailed:
		return true
	}
	return false
}

// RunSummary is the single artifact a finished run hands back.
type RunSummary struct {
	TotalRecords      int
	Elapsed           time.Duration
	PermanentlyFailed []Payload
}

func (s RunSummary) ElapsedSeconds() float64 {
	return s.Elapsed.Seconds()
}

// Status derives the terminal run status from the summary.
func (s RunSummary) Status() RunStatus {
	if len(s.PermanentlyFailed) > 0 {
		return RunStatusPartialFailure
	}
	return RunStatusCompleted
}

type runSummaryJSON struct {
	TotalRecords      int       `json:"total_records"`
	ElapsedSeconds    float64   `json:"elapsed_seconds"`
	PermanentlyFailed []Payload `json:"permanently_failed"`
}

func (s RunSummary) MarshalJSON() ([]byte, error) {
	failed := s.PermanentlyFailed
	if failed == nil {
		failed = []Payload{}
	}
	return json.Marshal(runSummaryJSON{
		TotalRecords:      s.TotalRecords,
		ElapsedSeconds:    s.ElapsedSeconds(),
		PermanentlyFailed: failed,
	})
}

func (s *RunSummary) UnmarshalJSON(data []byte) error {
	var raw runSummaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	failed := raw.PermanentlyFailed
	if failed == nil {
		failed = []Payload{}
	}
	*s = RunSummary{
		TotalRecords:      raw.TotalRecords,
		Elapsed:           time.Duration(raw.ElapsedSeconds * float64(time.Second)),
		PermanentlyFailed: failed,
	}
	return nil
}

// Run is a history entry for one pipeline execution.
type Run struct {
	ID           string
	Source       string
	Endpoint     string
	Status       RunStatus
	TotalRecords int
	Summary      *RunSummary
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
