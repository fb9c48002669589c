package domain

import (
	"context"
	"errors"
	"net/http"
)

// Service consumes provider webhook deliveries.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error
}

// ProviderError carries a provider-side failure message back to the caller.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "provider_error"
}

func (e *ProviderError) Unwrap() error { return e.Err }

var (
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidConfig         = errors.New("invalid_config")
	ErrInvalidPriceID        = errors.New("invalid_price_id")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
