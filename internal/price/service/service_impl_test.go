package service_test

import (
	"context"
	"testing"

	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/railzwaylabs/stripesync/internal/price/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"github.com/railzwaylabs/stripesync/internal/testutil"
	"github.com/railzwaylabs/stripesync/internal/testutil/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreq(t *testing.T) {
	assert.Equal(t, "month_1", domain.Freq("month", 1))
	assert.Equal(t, "week_2", domain.Freq("week", 2))
}

func TestSyncPrices(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	s.SeedCatalog(t)

	monthly, err := s.PriceRepo.FindByID(ctx, s.DB, "price_0001")
	require.NoError(t, err)
	require.NotNil(t, monthly)
	assert.EqualValues(t, 1000, monthly.UnitAmount)
	require.NotNil(t, monthly.Freq)
	assert.Equal(t, "month_1", *monthly.Freq)
	assert.Equal(t, "Starter monthly", *monthly.Nickname)

	setup, err := s.PriceRepo.FindByID(ctx, s.DB, "price_0003")
	require.NoError(t, err)
	assert.Nil(t, setup.Freq)
	assert.False(t, setup.Active)
}

func TestSyncPrices_SkipsUnknownProducts(t *testing.T) {
	s := stack.New(t)
	page := &paymentdomain.PricePage{Data: []paymentdomain.Price{
		{ID: "price_orphan", ProductID: "prod_missing", Currency: "usd", UnitAmount: 100, Active: true},
	}}

	res, err := s.Prices.SyncPrices(context.Background(), domain.SyncRequest{Limit: 10, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Created)
	assert.Equal(t, "price_orphan", res.LastID)

	_, err = s.Prices.SyncPrices(context.Background(), domain.SyncRequest{Limit: 101})
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestSyncPrices_UpdatesExisting(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	s.SeedCatalog(t)

	res, err := s.Prices.SyncPrices(ctx, domain.SyncRequest{Limit: 10, Page: &paymentdomain.PricePage{
		Data: []paymentdomain.Price{{ID: "price_0001", ProductID: "prod_0001", Currency: "usd", UnitAmount: 1200, Active: false}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	p, err := s.PriceRepo.FindByID(ctx, s.DB, "price_0001")
	require.NoError(t, err)
	assert.EqualValues(t, 1200, p.UnitAmount)
	assert.False(t, p.Active)
	assert.Nil(t, p.Freq)
}

func TestListAvailablePrices(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	s.SeedCatalog(t)

	prices, err := s.Prices.ListAvailablePrices(ctx, false)
	require.NoError(t, err)
	require.Len(t, prices, 2, "inactive prices are hidden")
	assert.Equal(t, "price_0001", prices[0].PriceID)
	assert.Equal(t, "Starter", prices[0].Product.Name)
	assert.Empty(t, prices[0].Product.Features)

	expanded, err := s.Prices.ListAvailablePrices(ctx, true)
	require.NoError(t, err)
	require.Len(t, expanded[0].Product.Features, 2)
	require.Len(t, expanded[1].Product.Features, 2)
	assert.Equal(t, "seats", expanded[1].Product.Features[1].FeatureID)
}

func TestListAvailablePrices_HidesInactiveProducts(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	s.SeedCatalog(t)

	require.NoError(t, s.DB.Exec(`UPDATE products SET active = ? WHERE product_id = ?`, false, "prod_0002").Error)

	prices, err := s.Prices.ListAvailablePrices(ctx, false)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "prod_0001", prices[0].Product.ProductID)
}

func TestListSubscribablePrices(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	s.SeedCatalog(t)
	testutil.SeedUser(t, s.DB, 1, "tester1@example.com")
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_tester", Email: "tester1@example.com"})

	_, err := s.Subscriptions.Apply(ctx, nil, paymentdomain.Subscription{
		ID:         "sub_1",
		CustomerID: "cus_tester",
		Status:     subscriptiondomain.StatusActive,
		Items:      []paymentdomain.SubscriptionItem{{ID: "si_1", PriceID: "price_0001", Quantity: 1}},
	}, nil)
	require.NoError(t, err)

	prices, err := s.Prices.ListSubscribablePrices(ctx, 1)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "price_0002", prices[0].PriceID)
	assert.NotEmpty(t, prices[0].Product.Features)

	_, err = s.Subscriptions.Apply(ctx, nil, paymentdomain.Subscription{
		ID:         "sub_1",
		CustomerID: "cus_tester",
		Status:     subscriptiondomain.StatusCanceled,
		Items:      []paymentdomain.SubscriptionItem{{ID: "si_1", PriceID: "price_0001", Quantity: 1}},
	}, nil)
	require.NoError(t, err)

	prices, err = s.Prices.ListSubscribablePrices(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, prices, 2)
}
