package domain

import "time"

// Attempt records a single delivery attempt of one record within a run.
type Attempt struct {
	ID        string
	RunID     string
	Pass      Pass
	Sequence  int
	Total     int
	Payload   Payload
	Outcome   Outcome
	Duration  time.Duration
	CreatedAt time.Time
}
