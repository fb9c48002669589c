// Package stack wires the sync services over an in-memory database and a
// fake gateway for tests.
package stack

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingaccountdomain "github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	billingaccountrepo "github.com/railzwaylabs/stripesync/internal/billingaccount/repository"
	billingaccountservice "github.com/railzwaylabs/stripesync/internal/billingaccount/service"
	"github.com/railzwaylabs/stripesync/internal/clock"
	"github.com/railzwaylabs/stripesync/internal/config"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	customerrepo "github.com/railzwaylabs/stripesync/internal/customer/repository"
	customerservice "github.com/railzwaylabs/stripesync/internal/customer/service"
	"github.com/railzwaylabs/stripesync/internal/observability"
	"github.com/railzwaylabs/stripesync/internal/payment/adapters/stripe"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	paymentrepo "github.com/railzwaylabs/stripesync/internal/payment/repository"
	paymentservice "github.com/railzwaylabs/stripesync/internal/payment/service"
	"github.com/railzwaylabs/stripesync/internal/payment/webhook"
	pricedomain "github.com/railzwaylabs/stripesync/internal/price/domain"
	pricerepo "github.com/railzwaylabs/stripesync/internal/price/repository"
	priceservice "github.com/railzwaylabs/stripesync/internal/price/service"
	productdomain "github.com/railzwaylabs/stripesync/internal/product/domain"
	productrepo "github.com/railzwaylabs/stripesync/internal/product/repository"
	productservice "github.com/railzwaylabs/stripesync/internal/product/service"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	subscriptionrepo "github.com/railzwaylabs/stripesync/internal/subscription/repository"
	subscriptionservice "github.com/railzwaylabs/stripesync/internal/subscription/service"
	"github.com/railzwaylabs/stripesync/internal/testutil"
	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	userrepo "github.com/railzwaylabs/stripesync/internal/user/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WebhookSecret signs test deliveries.
const WebhookSecret = "whsec_test_secret"

// Now is the instant reported by the stack's clock.
var Now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type Stack struct {
	DB      *gorm.DB
	Gateway *testutil.FakeGateway
	Config  *config.BillingConfigHolder
	Metrics *observability.Metrics

	UserRepo         userdomain.Repository
	CustomerRepo     customerdomain.Repository
	AccountRepo      billingaccountdomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
	ProductRepo      productdomain.Repository
	PriceRepo        pricedomain.Repository
	EventRepo        paymentdomain.EventRepository

	Accounts      billingaccountdomain.Service
	Customers     customerdomain.Service
	Subscriptions subscriptiondomain.Service
	Products      productdomain.Service
	Prices        pricedomain.Service
	Checkout      paymentdomain.CheckoutService
	Portal        paymentdomain.PortalService
	Webhook       paymentdomain.Service
}

type Option func(*options)

type options struct {
	billing func(*config.BillingConfig)
	redis   *redis.Client
	shared  bool
	stripe  func(*config.StripeConfig)
}

// WithBilling adjusts the billing settings before the services are built.
func WithBilling(fn func(*config.BillingConfig)) Option {
	return func(o *options) { o.billing = fn }
}

// WithRedis backs the webhook ledger with redis.
func WithRedis(client *redis.Client) Option {
	return func(o *options) { o.redis = client }
}

// WithSharedDB runs the stack on a pooled file database so concurrent
// callers use separate connections.
func WithSharedDB() Option {
	return func(o *options) { o.shared = true }
}

// WithStripe adjusts the provider settings the webhook adapter is built with.
func WithStripe(fn func(*config.StripeConfig)) Option {
	return func(o *options) { o.stripe = fn }
}

func New(t testing.TB, opts ...Option) *Stack {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Stripe.WebhookSecret = WebhookSecret
	cfg.Webhook.ReplayTTL = time.Hour
	if o.stripe != nil {
		o.stripe(&cfg.Stripe)
	}

	conn := testutil.NewDB
	if o.shared {
		conn = testutil.NewSharedDB
	}

	s := &Stack{
		DB:      conn(t),
		Gateway: testutil.NewFakeGateway(),
		Config:  testutil.BillingHolder(t, o.billing),
		Metrics: observability.NopMetrics(),

		UserRepo:         userrepo.Provide(),
		CustomerRepo:     customerrepo.Provide(),
		AccountRepo:      billingaccountrepo.Provide(),
		SubscriptionRepo: subscriptionrepo.Provide(),
		ProductRepo:      productrepo.Provide(),
		PriceRepo:        pricerepo.Provide(),
		EventRepo:        paymentrepo.Provide(),
	}
	log := zap.NewNop()
	clk := clock.Fixed(Now)

	s.Accounts = billingaccountservice.New(billingaccountservice.Params{
		DB:       s.DB,
		Log:      log,
		GenID:    genID,
		Repo:     s.AccountRepo,
		UserRepo: s.UserRepo,
		Gateway:  s.Gateway,
		Config:   s.Config,
	})
	s.Customers = customerservice.New(customerservice.Params{
		DB:       s.DB,
		Log:      log,
		GenID:    genID,
		Repo:     s.CustomerRepo,
		UserRepo: s.UserRepo,
		Accounts: s.Accounts,
		Gateway:  s.Gateway,
		Config:   s.Config,
		Metrics:  s.Metrics,
	})
	s.Subscriptions = subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:           s.DB,
		Log:          log,
		Clock:        clk,
		Repo:         s.SubscriptionRepo,
		CustomerRepo: s.CustomerRepo,
		ProductRepo:  s.ProductRepo,
		Customers:    s.Customers,
		Accounts:     s.Accounts,
		Gateway:      s.Gateway,
		Metrics:      s.Metrics,
	})
	s.Products = productservice.New(productservice.Params{
		DB:      s.DB,
		Log:     log,
		Clock:   clk,
		Repo:    s.ProductRepo,
		Gateway: s.Gateway,
		Metrics: s.Metrics,
	})
	s.Prices = priceservice.New(priceservice.Params{
		DB:            s.DB,
		Log:           log,
		Clock:         clk,
		Repo:          s.PriceRepo,
		ProductRepo:   s.ProductRepo,
		Subscriptions: s.Subscriptions,
		Gateway:       s.Gateway,
		Metrics:       s.Metrics,
	})
	s.Checkout = paymentservice.NewCheckoutService(paymentservice.CheckoutServiceParams{
		DB:            s.DB,
		Logger:        log,
		Gateway:       s.Gateway,
		Customers:     s.Customers,
		Accounts:      s.Accounts,
		Subscriptions: s.Subscriptions,
		Config:        s.Config,
		Metrics:       s.Metrics,
	})
	s.Portal = paymentservice.NewPortalService(paymentservice.PortalServiceParams{
		Logger:    log,
		Gateway:   s.Gateway,
		Customers: s.Customers,
		Config:    s.Config,
		Metrics:   s.Metrics,
	})
	s.Webhook = webhook.NewService(webhook.Params{
		DB:            s.DB,
		Log:           log,
		GenID:         genID,
		Adapter:       stripe.New(cfg.Stripe),
		Gateway:       s.Gateway,
		Events:        s.EventRepo,
		Subscriptions: s.Subscriptions,
		Customers:     s.Customers,
		Accounts:      s.Accounts,
		Cfg:           cfg,
		Redis:         o.redis,
		Metrics:       s.Metrics,
	})
	return s
}

// SeedCatalog syncs the recorded product and price pages.
func (s *Stack) SeedCatalog(t testing.TB) {
	t.Helper()
	ctx := context.Background()

	products, err := stripe.DecodeProductList(testutil.Fixture(t, "product_list.json"))
	require.NoError(t, err)
	_, err = s.Products.SyncProducts(ctx, productdomain.SyncRequest{Limit: 100, Page: products})
	require.NoError(t, err)

	prices, err := stripe.DecodePriceList(testutil.Fixture(t, "price_list.json"))
	require.NoError(t, err)
	_, err = s.Prices.SyncPrices(ctx, pricedomain.SyncRequest{Limit: 100, Page: prices})
	require.NoError(t, err)
}
