package provider

import (
	"context"

	"github.com/kursadbilgin/rowhook/internal/domain"
)

// Sender is the outbound record delivery port.
type Sender interface {
	Send(ctx context.Context, endpoint string, payload domain.Payload) (*Response, error)
}

// Response stores receiver call metadata for logging and the attempt journal.
type Response struct {
	StatusCode int
	Body       string
}
