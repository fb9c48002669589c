package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/railzwaylabs/stripesync/internal/config"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/subscription"
)

// Adapter talks to the Stripe API and decodes Stripe webhook deliveries.
type Adapter struct {
	apiKey        string
	webhookSecret string
	backend       stripe.Backend
}

func New(cfg config.StripeConfig) *Adapter {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
	})
	return &Adapter{
		apiKey:        strings.TrimSpace(cfg.APISecret),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		backend:       backend,
	}
}

func (a *Adapter) ready() error {
	if a.apiKey == "" {
		return paymentdomain.ErrInvalidConfig
	}
	return nil
}

func (a *Adapter) GetCustomer(ctx context.Context, id string) (*paymentdomain.Customer, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	client := customer.Client{B: a.backend, Key: a.apiKey}
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := client.Get(id, params)
	if err != nil {
		return nil, wrapError(err)
	}
	out := toCustomer(c)
	return &out, nil
}

func (a *Adapter) ListCustomers(ctx context.Context, in paymentdomain.ListCustomersInput) (*paymentdomain.CustomerPage, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	client := customer.Client{B: a.backend, Key: a.apiKey}
	params := &stripe.CustomerListParams{}
	applyListInput(&params.ListParams, ctx, in.ListInput)
	if in.Email != "" {
		params.Email = stripe.String(in.Email)
	}

	it := client.List(params)
	page := &paymentdomain.CustomerPage{}
	for it.Next() {
		c := it.Customer()
		if c.Deleted {
			continue
		}
		page.Data = append(page.Data, toCustomer(c))
	}
	if err := it.Err(); err != nil {
		return nil, wrapError(err)
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

func (a *Adapter) CreateCustomer(ctx context.Context, in paymentdomain.CreateCustomerInput) (*paymentdomain.Customer, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	client := customer.Client{B: a.backend, Key: a.apiKey}
	params := &stripe.CustomerParams{Email: stripe.String(in.Email)}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(in.IdempotencyKey)
	}

	c, err := client.New(params)
	if err != nil {
		return nil, wrapError(err)
	}
	out := toCustomer(c)
	return &out, nil
}

func (a *Adapter) GetSubscription(ctx context.Context, id string) (*paymentdomain.Subscription, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	client := subscription.Client{B: a.backend, Key: a.apiKey}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	s, err := client.Get(id, params)
	if err != nil {
		return nil, wrapError(err)
	}
	out := toSubscription(s)
	return &out, nil
}

func (a *Adapter) ListSubscriptions(ctx context.Context, in paymentdomain.ListSubscriptionsInput) (*paymentdomain.SubscriptionPage, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	client := subscription.Client{B: a.backend, Key: a.apiKey}
	params := &stripe.SubscriptionListParams{}
	applyListInput(&params.ListParams, ctx, in.ListInput)
	if in.Status != "" {
		params.Status = stripe.String(in.Status)
	}

	it := client.List(params)
	page := &paymentdomain.SubscriptionPage{}
	for it.Next() {
		page.Data = append(page.Data, toSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, wrapError(err)
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

func (a *Adapter) ListProducts(ctx context.Context, in paymentdomain.ListInput) (*paymentdomain.ProductPage, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	client := product.Client{B: a.backend, Key: a.apiKey}
	params := &stripe.ProductListParams{}
	applyListInput(&params.ListParams, ctx, in)

	it := client.List(params)
	page := &paymentdomain.ProductPage{}
	for it.Next() {
		p := it.Product()
		page.Data = append(page.Data, paymentdomain.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Active:      p.Active,
			Metadata:    p.Metadata,
		})
	}
	if err := it.Err(); err != nil {
		return nil, wrapError(err)
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

func (a *Adapter) ListPrices(ctx context.Context, in paymentdomain.ListInput) (*paymentdomain.PricePage, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	client := price.Client{B: a.backend, Key: a.apiKey}
	params := &stripe.PriceListParams{}
	applyListInput(&params.ListParams, ctx, in)

	it := client.List(params)
	page := &paymentdomain.PricePage{}
	for it.Next() {
		page.Data = append(page.Data, toPrice(it.Price()))
	}
	if err := it.Err(); err != nil {
		return nil, wrapError(err)
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, in paymentdomain.CheckoutSessionInput) (*paymentdomain.CheckoutSession, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.PriceID) == "" {
		return nil, paymentdomain.ErrInvalidPriceID
	}
	client := checkoutsession.Client{B: a.backend, Key: a.apiKey}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(in.Mode),
		Customer:           stripe.String(in.CustomerID),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
		PaymentMethodTypes: stripe.StringSlice(in.PaymentMethodTypes),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(in.Quantity),
			},
		},
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	if len(in.Discounts) > 0 {
		for _, d := range in.Discounts {
			dp := &stripe.CheckoutSessionDiscountParams{}
			if d.Coupon != "" {
				dp.Coupon = stripe.String(d.Coupon)
			}
			if d.PromotionCode != "" {
				dp.PromotionCode = stripe.String(d.PromotionCode)
			}
			params.Discounts = append(params.Discounts, dp)
		}
	} else {
		params.AllowPromotionCodes = stripe.Bool(in.AllowPromotionCodes)
	}

	if in.Mode == string(stripe.CheckoutSessionModeSubscription) {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: in.Metadata,
		}
		if in.TrialPeriodDays > 0 {
			params.SubscriptionData.TrialPeriodDays = stripe.Int64(in.TrialPeriodDays)
		}
	}

	session, err := client.New(params)
	if err != nil {
		return nil, wrapError(err)
	}
	return &paymentdomain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (a *Adapter) CreatePortalSession(ctx context.Context, in paymentdomain.PortalSessionInput) (*paymentdomain.PortalSession, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	client := portalsession.Client{B: a.backend, Key: a.apiKey}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(in.CustomerID),
		ReturnURL: stripe.String(in.ReturnURL),
	}
	params.Context = ctx

	session, err := client.New(params)
	if err != nil {
		return nil, wrapError(err)
	}
	return &paymentdomain.PortalSession{ID: session.ID, URL: session.URL}, nil
}

func applyListInput(lp *stripe.ListParams, ctx context.Context, in paymentdomain.ListInput) {
	lp.Context = ctx
	lp.Single = true
	if in.Limit > 0 {
		lp.Limit = stripe.Int64(in.Limit)
	}
	if in.StartingAfter != "" {
		lp.StartingAfter = stripe.String(in.StartingAfter)
	}
}

func wrapError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &paymentdomain.ProviderError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
			Err:     err,
		}
	}
	return &paymentdomain.ProviderError{Message: err.Error(), Err: err}
}

func toCustomer(c *stripe.Customer) paymentdomain.Customer {
	return paymentdomain.Customer{
		ID:          c.ID,
		Email:       c.Email,
		Name:        c.Name,
		Description: c.Description,
		Phone:       c.Phone,
		Metadata:    c.Metadata,
	}
}

func toSubscription(s *stripe.Subscription) paymentdomain.Subscription {
	out := paymentdomain.Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAt:          unixTime(s.CancelAt),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		EndedAt:           unixTime(s.EndedAt),
		TrialStart:        unixTime(s.TrialStart),
		TrialEnd:          unixTime(s.TrialEnd),
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items == nil {
		return out
	}

	var start, end int64
	for _, item := range s.Items.Data {
		if start == 0 {
			start = item.CurrentPeriodStart
		}
		if end == 0 {
			end = item.CurrentPeriodEnd
		}
		si := paymentdomain.SubscriptionItem{ID: item.ID, Quantity: item.Quantity}
		if item.Price != nil {
			si.PriceID = item.Price.ID
		}
		out.Items = append(out.Items, si)
	}
	out.CurrentPeriodStart = unixTime(start)
	out.CurrentPeriodEnd = unixTime(end)
	return out
}

func toPrice(p *stripe.Price) paymentdomain.Price {
	out := paymentdomain.Price{
		ID:         p.ID,
		Nickname:   p.Nickname,
		Currency:   string(p.Currency),
		UnitAmount: p.UnitAmount,
		Active:     p.Active,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Recurring = &paymentdomain.Recurring{
			Interval:      string(p.Recurring.Interval),
			IntervalCount: p.Recurring.IntervalCount,
		}
	}
	return out
}
