package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/stripe/stripe-go/v82/webhook"
)

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return paymentdomain.ErrInvalidConfig
	}
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}
	if err := webhook.ValidatePayload(payload, sigHeader, a.webhookSecret); err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

// Parse reduces a verified event to the fields the dispatcher routes on.
// Unrecognized types come back with only ID and Type set.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	out := &paymentdomain.Event{
		ID:        event.ID,
		Type:      strings.TrimSpace(event.Type),
		CreatedAt: derefTime(unixTime(event.Created)),
	}

	switch out.Type {
	case paymentdomain.EventTypeSubscriptionCreated,
		paymentdomain.EventTypeSubscriptionUpdated,
		paymentdomain.EventTypeSubscriptionDeleted:
		sub, err := DecodeSubscription(event.Data.Object)
		if err != nil {
			return nil, err
		}
		out.Subscription = sub
		out.SubscriptionID = sub.ID
		out.CustomerID = sub.CustomerID
		out.Metadata = sub.Metadata

	case paymentdomain.EventTypeCheckoutSessionCompleted:
		var session stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		out.CustomerID = session.Customer.ID
		out.SubscriptionID = session.Subscription.ID
		out.Metadata = session.Metadata

	case paymentdomain.EventTypeInvoicePaymentSucceeded:
		var invoice stripeInvoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		out.CustomerID = invoice.Customer.ID
		out.SubscriptionID = invoice.Subscription.ID
		out.Metadata = invoice.Metadata

		details := invoice.SubscriptionDetails
		if invoice.Parent != nil && invoice.Parent.SubscriptionDetails != nil {
			details = invoice.Parent.SubscriptionDetails
		}
		if details != nil {
			if out.SubscriptionID == "" {
				out.SubscriptionID = details.Subscription.ID
			}
			if len(details.Metadata) > 0 {
				out.Metadata = details.Metadata
			}
		}
	}

	return out, nil
}

func derefTime[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
