package service_test

import (
	"context"
	"errors"
	"testing"

	billingaccountdomain "github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	"github.com/railzwaylabs/stripesync/internal/config"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	"github.com/railzwaylabs/stripesync/internal/payment/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"github.com/railzwaylabs/stripesync/internal/testutil"
	"github.com/railzwaylabs/stripesync/internal/testutil/stack"
	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCheckout_LegacyUser(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	res, err := s.Checkout.CreateSession(ctx, domain.CheckoutRequest{ActorUserID: 1, PriceID: " price_0001 "})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.NotEmpty(t, res.URL)

	require.Len(t, s.Gateway.CheckoutInputs, 1)
	in := s.Gateway.CheckoutInputs[0]
	assert.Equal(t, "price_0001", in.PriceID)
	assert.Equal(t, "cus_fake_0001", in.CustomerID)
	assert.EqualValues(t, 1, in.Quantity)
	assert.Equal(t, "subscription", in.Mode)
	assert.Equal(t, []string{"card"}, in.PaymentMethodTypes)
	assert.Equal(t, "http://localhost:3000/payment?session={CHECKOUT_SESSION_ID}", in.SuccessURL)
	assert.Equal(t, "http://localhost:3000/manage-subscription", in.CancelURL)
	assert.True(t, in.AllowPromotionCodes)
	assert.Empty(t, in.Discounts)
	assert.Zero(t, in.TrialPeriodDays)
	assert.Equal(t, map[string]string{
		domain.MetadataOwnerType: "user",
		domain.MetadataOwnerID:   "1",
	}, in.Metadata)

	su, err := s.CustomerRepo.FindByUserID(ctx, s.DB, 1)
	require.NoError(t, err)
	assert.Equal(t, in.CustomerID, su.Customer())
}

func TestCheckout_InvalidRequests(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()

	_, err := s.Checkout.CreateSession(ctx, domain.CheckoutRequest{ActorUserID: 1, PriceID: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidPriceID)

	_, err = s.Checkout.CreateSession(ctx, domain.CheckoutRequest{ActorUserID: 404, PriceID: "price_1"})
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)
	assert.Empty(t, s.Gateway.CheckoutInputs)
}

func TestCheckout_TrialOnlyForFirstSubscription(t *testing.T) {
	s := stack.New(t, stack.WithBilling(func(cfg *config.BillingConfig) {
		cfg.NewUserFreeTrialDays = 14
	}))
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	_, err := s.Checkout.CreateSession(ctx, domain.CheckoutRequest{ActorUserID: 1, PriceID: "price_1"})
	require.NoError(t, err)
	assert.EqualValues(t, 14, s.Gateway.CheckoutInputs[0].TrialPeriodDays)

	customerID := s.Gateway.CheckoutInputs[0].CustomerID
	_, err = s.Subscriptions.Apply(ctx, nil, domain.Subscription{
		ID:         "sub_1",
		CustomerID: customerID,
		Status:     subscriptiondomain.StatusCanceled,
	}, nil)
	require.NoError(t, err)

	_, err = s.Checkout.CreateSession(ctx, domain.CheckoutRequest{ActorUserID: 1, PriceID: "price_1"})
	require.NoError(t, err)
	assert.Zero(t, s.Gateway.CheckoutInputs[1].TrialPeriodDays)
}

func TestCheckout_DefaultDiscountsDisablePromotionCodes(t *testing.T) {
	s := stack.New(t, stack.WithBilling(func(cfg *config.BillingConfig) {
		cfg.DefaultDiscounts = []config.Discount{{Coupon: "WELCOME"}}
	}))
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	_, err := s.Checkout.CreateSession(context.Background(), domain.CheckoutRequest{ActorUserID: 1, PriceID: "price_1"})
	require.NoError(t, err)

	in := s.Gateway.CheckoutInputs[0]
	assert.False(t, in.AllowPromotionCodes)
	assert.Equal(t, []domain.Discount{{Coupon: "WELCOME"}}, in.Discounts)
}

func TestCheckout_SelfOwnedAccount(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	_, err := s.Checkout.CreateSession(ctx, domain.CheckoutRequest{ActorUserID: 1, PriceID: "price_1"})
	require.NoError(t, err)

	acct, err := s.Accounts.Find(ctx, nil, billingaccountdomain.OwnerRef{Type: "user", ID: 1}, "")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.True(t, acct.CanManageBilling(1))

	in := s.Gateway.CheckoutInputs[0]
	assert.Equal(t, acct.CustomerID(), in.CustomerID)
	assert.Equal(t, "user", in.Metadata[domain.MetadataOwnerType])

	created := s.Gateway.Customers()[0]
	assert.Equal(t, "a@example.com", created.Email)
	assert.Equal(t, "1", created.Metadata[domain.MetadataOwnerID])
}

func TestCheckout_ConcurrentSessionsCreateOneCustomer(t *testing.T) {
	cases := []struct {
		name string
		opts []stack.Option
	}{
		{"legacy user", nil},
		{"self-owned account", []stack.Option{stack.WithBilling(testutil.WithBundledAccounts)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := stack.New(t, append(tc.opts, stack.WithSharedDB())...)
			ctx := context.Background()
			testutil.SeedUser(t, s.DB, 1, "a@example.com")

			var g errgroup.Group
			for range 8 {
				g.Go(func() error {
					_, err := s.Checkout.CreateSession(ctx, domain.CheckoutRequest{ActorUserID: 1, PriceID: "price_1"})
					return err
				})
			}
			require.NoError(t, g.Wait())

			assert.Equal(t, 1, s.Gateway.CreateCustomerCalls)
			assert.Equal(t, 1, s.Gateway.CustomersCreated)
			require.Len(t, s.Gateway.CheckoutInputs, 8)
			customerID := s.Gateway.CheckoutInputs[0].CustomerID
			assert.NotEmpty(t, customerID)
			for _, in := range s.Gateway.CheckoutInputs {
				assert.Equal(t, customerID, in.CustomerID)
			}
		})
	}
}

func TestCheckout_OrganizationAccountUsesSeats(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 7, "manager@example.com")
	require.NoError(t, s.DB.Create(&testutil.Organization{ID: 42, Name: "acme"}).Error)

	owner := billingaccountdomain.OwnerRef{Type: "organization", ID: 42}
	acct, err := s.Accounts.GetOrCreate(ctx, nil, owner, 7)
	require.NoError(t, err)
	require.NoError(t, s.DB.Model(&billingaccountdomain.Record{}).
		Where("id = ?", acct.ID).
		Updates(map[string]any{"manager_user_id": 7, "seats": 5}).Error)

	_, err = s.Checkout.CreateSession(ctx, domain.CheckoutRequest{
		ActorUserID: 7,
		PriceID:     "price_1",
		OwnerType:   "tests.Organization",
		OwnerID:     "42",
	})
	require.NoError(t, err)

	in := s.Gateway.CheckoutInputs[0]
	assert.EqualValues(t, 5, in.Quantity)
	assert.Equal(t, map[string]string{
		domain.MetadataOwnerType: "organization",
		domain.MetadataOwnerID:   "42",
	}, in.Metadata)
}

func TestCheckout_NonManagerLeavesNoTrace(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 7, "member@example.com")
	require.NoError(t, s.DB.Create(&testutil.Organization{ID: 42, Name: "acme"}).Error)

	_, err := s.Checkout.CreateSession(ctx, domain.CheckoutRequest{
		ActorUserID: 7,
		PriceID:     "price_1",
		OwnerType:   "organization",
		OwnerID:     "42",
	})
	assert.ErrorIs(t, err, billingaccountdomain.ErrNotBillingManager)

	var accounts int64
	require.NoError(t, s.DB.Model(&billingaccountdomain.Record{}).Count(&accounts).Error)
	assert.Zero(t, accounts)
	assert.Zero(t, s.Gateway.CustomersCreated)
	assert.Empty(t, s.Gateway.CheckoutInputs)
}

func TestCheckout_UnknownOwner(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	testutil.SeedUser(t, s.DB, 7, "member@example.com")

	_, err := s.Checkout.CreateSession(context.Background(), domain.CheckoutRequest{
		ActorUserID: 7,
		PriceID:     "price_1",
		OwnerType:   "organization",
		OwnerID:     "42",
	})
	assert.ErrorIs(t, err, billingaccountdomain.ErrOwnerNotFound)
}

func TestCheckout_GatewayFailure(t *testing.T) {
	s := stack.New(t)
	testutil.SeedUser(t, s.DB, 1, "a@example.com")
	s.Gateway.CheckoutErr = &domain.ProviderError{Code: "resource_missing", Message: "No such price: 'price_x'"}

	_, err := s.Checkout.CreateSession(context.Background(), domain.CheckoutRequest{ActorUserID: 1, PriceID: "price_x"})
	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "resource_missing", perr.Code)
}

func TestPortal(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	session, err := s.Portal.CreateSession(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, session.URL)

	require.Len(t, s.Gateway.PortalInputs, 1)
	in := s.Gateway.PortalInputs[0]
	assert.Equal(t, "http://localhost:3000/manage-subscription/", in.ReturnURL)

	su, err := s.Customers.ResolveUser(ctx, nil, customerdomain.ByUserID(1))
	require.NoError(t, err)
	assert.Equal(t, su.Customer(), in.CustomerID)
	assert.Equal(t, 1, s.Gateway.CustomersCreated)

	_, err = s.Portal.CreateSession(ctx, 404)
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)
}
