package service_test

import (
	"context"
	"testing"

	"github.com/railzwaylabs/stripesync/internal/payment/adapters/stripe"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/railzwaylabs/stripesync/internal/product/domain"
	"github.com/railzwaylabs/stripesync/internal/product/service"
	"github.com/railzwaylabs/stripesync/internal/testutil"
	"github.com/railzwaylabs/stripesync/internal/testutil/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeatureIDs(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", []string{}},
		{"reports", []string{"reports"}},
		{"reports, exports", []string{"reports", "exports"}},
		{"reports seats\texports", []string{"reports", "seats", "exports"}},
		{"a,,a , b", []string{"a", "b"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, service.ParseFeatureIDs(tc.raw), tc.raw)
	}
}

func TestSyncProducts(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()

	page, err := stripe.DecodeProductList(testutil.Fixture(t, "product_list.json"))
	require.NoError(t, err)

	res, err := s.Products.SyncProducts(ctx, domain.SyncRequest{Limit: 100, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, "prod_0002", res.LastID)

	starter, err := s.ProductRepo.FindByID(ctx, s.DB, "prod_0001")
	require.NoError(t, err)
	require.NotNil(t, starter)
	assert.Equal(t, "Starter", starter.Name)
	require.NotNil(t, starter.Description)
	assert.Equal(t, "Starter plan", *starter.Description)

	team, err := s.ProductRepo.FindByID(ctx, s.DB, "prod_0002")
	require.NoError(t, err)
	assert.Nil(t, team.Description)

	features, err := s.ProductRepo.ListFeatures(ctx, s.DB, []string{"prod_0001", "prod_0002"})
	require.NoError(t, err)
	require.Len(t, features["prod_0002"], 2)
	assert.Equal(t, "reports", features["prod_0002"][0].FeatureID)
	assert.Equal(t, "seats", features["prod_0002"][1].FeatureID)

	var shared int64
	require.NoError(t, s.DB.Model(&domain.Feature{}).Where("feature_id = ?", "reports").Count(&shared).Error)
	assert.EqualValues(t, 1, shared)
}

func TestSyncProducts_ReplacesFeatures(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()

	sync := func(features string) *domain.SyncResult {
		res, err := s.Products.SyncProducts(ctx, domain.SyncRequest{Limit: 10, Page: &paymentdomain.ProductPage{
			Data: []paymentdomain.Product{{
				ID:       "prod_1",
				Name:     "Pro",
				Active:   true,
				Metadata: map[string]string{domain.MetadataFeatures: features},
			}},
		}})
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, 1, sync("a b").Created)
	assert.Equal(t, 1, sync("b c").Updated)

	features, err := s.ProductRepo.ListFeatures(ctx, s.DB, []string{"prod_1"})
	require.NoError(t, err)
	var ids []string
	for _, f := range features["prod_1"] {
		ids = append(ids, f.FeatureID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)

	sync("")
	features, err = s.ProductRepo.ListFeatures(ctx, s.DB, []string{"prod_1"})
	require.NoError(t, err)
	assert.Empty(t, features["prod_1"])
}

func TestSyncProducts_FromGateway(t *testing.T) {
	s := stack.New(t)
	page, err := stripe.DecodeProductList(testutil.Fixture(t, "product_list.json"))
	require.NoError(t, err)
	s.Gateway.Products = page

	res, err := s.Products.SyncProducts(context.Background(), domain.SyncRequest{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	_, err = s.Products.SyncProducts(context.Background(), domain.SyncRequest{Limit: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}
