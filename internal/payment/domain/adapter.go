package domain

import (
	"context"
	"net/http"
)

// WebhookAdapter authenticates and decodes provider webhook deliveries.
type WebhookAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

// Gateway is the subset of the provider API the sync and session flows use.
type Gateway interface {
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context, in ListCustomersInput) (*CustomerPage, error)
	CreateCustomer(ctx context.Context, in CreateCustomerInput) (*Customer, error)

	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, in ListSubscriptionsInput) (*SubscriptionPage, error)

	ListProducts(ctx context.Context, in ListInput) (*ProductPage, error)
	ListPrices(ctx context.Context, in ListInput) (*PricePage, error)

	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, in PortalSessionInput) (*PortalSession, error)
}
