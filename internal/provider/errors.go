package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/rowhook/internal/domain"
)

// DeliveryError classifies a failed delivery as transport or application level.
type DeliveryError struct {
	Kind       domain.FailureKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "delivery error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf reports the failure kind of err. Errors that are not a
// DeliveryError count as transport failures.
func KindOf(err error) domain.FailureKind {
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) && deliveryErr.Kind != "" {
		return deliveryErr.Kind
	}
	return domain.FailureTransport
}

// OutcomeOf folds a Send result into an attempt outcome.
func OutcomeOf(resp *Response, err error) domain.Outcome {
	if err == nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		return domain.DeliveredOutcome(statusCode)
	}

	statusCode := 0
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		statusCode = deliveryErr.StatusCode
	}
	return domain.FailedOutcome(KindOf(err), statusCode, err.Error())
}
