package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
)

// FakeGateway is an in-memory stand-in for the Stripe API. Customer
// creation honours idempotency keys the way the real API does.
type FakeGateway struct {
	mu sync.Mutex

	customers     []paymentdomain.Customer
	subscriptions map[string]paymentdomain.Subscription
	idempotent    map[string]string
	seq           int

	Products *paymentdomain.ProductPage
	Prices   *paymentdomain.PricePage

	CustomersCreated int
	CheckoutInputs   []paymentdomain.CheckoutSessionInput
	PortalInputs     []paymentdomain.PortalSessionInput

	// CreateCustomerCalls counts every create request, replays included.
	CreateCustomerCalls int

	// CheckoutErr fails the next checkout session when set.
	CheckoutErr error
}

var _ paymentdomain.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		subscriptions: make(map[string]paymentdomain.Subscription),
		idempotent:    make(map[string]string),
	}
}

func (g *FakeGateway) AddCustomer(c paymentdomain.Customer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers = append(g.customers, c)
}

func (g *FakeGateway) AddSubscription(s paymentdomain.Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptions[s.ID] = s
}

func (g *FakeGateway) Customers() []paymentdomain.Customer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]paymentdomain.Customer(nil), g.customers...)
}

func (g *FakeGateway) GetCustomer(_ context.Context, id string) (*paymentdomain.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.customers {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, &paymentdomain.ProviderError{Code: "resource_missing", Message: "No such customer: '" + id + "'"}
}

func (g *FakeGateway) ListCustomers(_ context.Context, in paymentdomain.ListCustomersInput) (*paymentdomain.CustomerPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var matched []paymentdomain.Customer
	for _, c := range g.customers {
		if in.Email != "" && !strings.EqualFold(c.Email, in.Email) {
			continue
		}
		matched = append(matched, c)
	}
	data, more := window(matched, in.ListInput, func(c paymentdomain.Customer) string { return c.ID })
	return &paymentdomain.CustomerPage{Data: data, HasMore: more}, nil
}

func (g *FakeGateway) CreateCustomer(_ context.Context, in paymentdomain.CreateCustomerInput) (*paymentdomain.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.CreateCustomerCalls++

	if in.IdempotencyKey != "" {
		if id, ok := g.idempotent[in.IdempotencyKey]; ok {
			for _, c := range g.customers {
				if c.ID == id {
					c := c
					return &c, nil
				}
			}
		}
	}

	g.seq++
	c := paymentdomain.Customer{
		ID:       fmt.Sprintf("cus_fake_%04d", g.seq),
		Email:    in.Email,
		Metadata: in.Metadata,
	}
	g.customers = append(g.customers, c)
	g.CustomersCreated++
	if in.IdempotencyKey != "" {
		g.idempotent[in.IdempotencyKey] = c.ID
	}
	return &c, nil
}

func (g *FakeGateway) GetSubscription(_ context.Context, id string) (*paymentdomain.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.subscriptions[id]
	if !ok {
		return nil, &paymentdomain.ProviderError{Code: "resource_missing", Message: "No such subscription: '" + id + "'"}
	}
	return &s, nil
}

func (g *FakeGateway) ListSubscriptions(_ context.Context, in paymentdomain.ListSubscriptionsInput) (*paymentdomain.SubscriptionPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var matched []paymentdomain.Subscription
	for _, s := range g.subscriptions {
		if in.Status != "" && in.Status != "all" && s.Status != in.Status {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	data, more := window(matched, in.ListInput, func(s paymentdomain.Subscription) string { return s.ID })
	return &paymentdomain.SubscriptionPage{Data: data, HasMore: more}, nil
}

func (g *FakeGateway) ListProducts(context.Context, paymentdomain.ListInput) (*paymentdomain.ProductPage, error) {
	if g.Products == nil {
		return &paymentdomain.ProductPage{}, nil
	}
	return g.Products, nil
}

func (g *FakeGateway) ListPrices(context.Context, paymentdomain.ListInput) (*paymentdomain.PricePage, error) {
	if g.Prices == nil {
		return &paymentdomain.PricePage{}, nil
	}
	return g.Prices, nil
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, in paymentdomain.CheckoutSessionInput) (*paymentdomain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.CheckoutErr; err != nil {
		g.CheckoutErr = nil
		return nil, err
	}
	g.CheckoutInputs = append(g.CheckoutInputs, in)
	g.seq++
	id := fmt.Sprintf("cs_fake_%04d", g.seq)
	return &paymentdomain.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (g *FakeGateway) CreatePortalSession(_ context.Context, in paymentdomain.PortalSessionInput) (*paymentdomain.PortalSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.PortalInputs = append(g.PortalInputs, in)
	g.seq++
	id := fmt.Sprintf("bps_fake_%04d", g.seq)
	return &paymentdomain.PortalSession{ID: id, URL: "https://billing.stripe.test/" + id}, nil
}

func window[T any](items []T, in paymentdomain.ListInput, id func(T) string) ([]T, bool) {
	start := 0
	if in.StartingAfter != "" {
		for i, it := range items {
			if id(it) == in.StartingAfter {
				start = i + 1
				break
			}
		}
	}
	items = items[start:]
	limit := int(in.Limit)
	if limit <= 0 || limit >= len(items) {
		return items, false
	}
	return items[:limit], true
}
