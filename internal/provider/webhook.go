package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/rowhook/internal/domain"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	// successStatus is the only status code counted as delivered.
	successStatus = http.StatusOK
)

// WebhookProvider posts payloads as JSON bodies to a webhook endpoint.
type WebhookProvider struct {
	client *resty.Client
}

func NewWebhookProvider(timeout time.Duration) *WebhookProvider {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &WebhookProvider{client: client}
}

func NewWebhookProviderWithClient(client *resty.Client) (*WebhookProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookProvider{client: client}, nil
}

func (p *WebhookProvider) Send(ctx context.Context, endpoint string, payload domain.Payload) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	body, err := payload.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, &DeliveryError{
			Kind:    domain.FailureTransport,
			Message: "request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return nil, &DeliveryError{
			Kind:    domain.FailureTransport,
			Message: "receiver returned empty response",
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode == successStatus {
		return &Response{
			StatusCode: statusCode,
			Body:       responseBody,
		}, nil
	}

	return &Response{StatusCode: statusCode, Body: responseBody}, &DeliveryError{
		Kind:       domain.FailureApplication,
		StatusCode: statusCode,
		Message:    receiverErrorMessage(statusCode, responseBody),
	}
}

func receiverErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("receiver returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
