package domain

import "fmt"

// Pass identifies which loop of a run produced an attempt.
type Pass string

const (
	PassDispatch Pass = "DISPATCH"
	PassRetry    Pass = "RETRY"
)

func (p Pass) String() string { return string(p) }

func (p Pass) IsValid() bool {
	switch p {
	case PassDispatch, PassRetry:
		return true
	}
	return false
}

// FailureKind tells a request that never completed apart from one that
// completed with a non-success status.
type FailureKind string

const (
	FailureTransport   FailureKind = "TRANSPORT"
	FailureApplication FailureKind = "APPLICATION"
)

func (k FailureKind) String() string { return string(k) }

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Delivered  bool
	Kind       FailureKind
	StatusCode int
	Reason     string
}

func DeliveredOutcome(statusCode int) Outcome {
	return Outcome{Delivered: true, StatusCode: statusCode}
}

func FailedOutcome(kind FailureKind, statusCode int, reason string) Outcome {
	return Outcome{Kind: kind, StatusCode: statusCode, Reason: reason}
}

func (o Outcome) String() string {
	if o.Delivered {
		return fmt.Sprintf("delivered (status=%d)", o.StatusCode)
	}
	if o.StatusCode > 0 {
		return fmt.Sprintf("failed %s (status=%d): %s", o.Kind, o.StatusCode, o.Reason)
	}
	return fmt.Sprintf("failed %s: %s", o.Kind, o.Reason)
}
