package service_test

import (
	"context"
	"testing"

	"github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	"github.com/railzwaylabs/stripesync/internal/config"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	"github.com/railzwaylabs/stripesync/internal/payment/adapters/stripe"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/railzwaylabs/stripesync/internal/testutil"
	"github.com/railzwaylabs/stripesync/internal/testutil/stack"
	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func disableUserCreation(cfg *config.BillingConfig) {
	cfg.UserModel.CreateDefaultsAttributeMap = nil
}

func TestGetUser(t *testing.T) {
	s := stack.New(t)
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	u, err := s.Customers.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = s.Customers.GetUser(context.Background(), 2)
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)
}

func TestResolveUser_ByUserIDCreatesCustomerOnce(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	su, err := s.Customers.ResolveUser(ctx, nil, customerdomain.ByUserID(1))
	require.NoError(t, err)
	assert.EqualValues(t, 1, su.UserID)
	assert.Equal(t, "cus_fake_0001", su.Customer())

	again, err := s.Customers.ResolveUser(ctx, nil, customerdomain.ByUserIDAndEmail(1, "a@example.com"))
	require.NoError(t, err)
	assert.Equal(t, su.Customer(), again.Customer())
	assert.Equal(t, 1, s.Gateway.CustomersCreated)
}

func TestResolveUser_ReusesRemoteCustomerWithSameEmail(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_existing", Email: "A@example.com"})

	u, err := s.Customers.GetUser(ctx, 1)
	require.NoError(t, err)

	su, err := s.Customers.ResolveUser(ctx, nil, customerdomain.ByUser(u))
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", su.Customer())
	assert.Zero(t, s.Gateway.CustomersCreated)
}

func TestResolveUser_ConcurrentCallersShareOneCustomer(t *testing.T) {
	s := stack.New(t, stack.WithSharedDB())
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	ids := make([]string, 6)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			su, err := s.Customers.ResolveUser(ctx, nil, customerdomain.ByUserID(1))
			if err != nil {
				return err
			}
			ids[i] = su.Customer()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, s.Gateway.CustomersCreated)
	assert.Equal(t, 1, s.Gateway.CreateCustomerCalls)
}

func TestResolveUser_ByCustomerIDLinksExistingUser(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_a", Email: "a@example.com"})

	su, err := s.Customers.ResolveUser(ctx, nil, customerdomain.ByCustomerID("cus_a"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, su.UserID)
	assert.Equal(t, "cus_a", su.Customer())

	stored, err := s.CustomerRepo.FindByCustomerID(ctx, s.DB, "cus_a")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.EqualValues(t, 1, stored.UserID)
}

func TestResolveUser_ByCustomerIDCreatesUser(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_new", Email: "new@example.com"})

	su, err := s.Customers.ResolveUser(ctx, nil, customerdomain.ByCustomerID("cus_new"))
	require.NoError(t, err)

	var user userdomain.User
	require.NoError(t, s.DB.First(&user, su.UserID).Error)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "new@example.com", user.Username)
}

func TestResolveUser_UserCreationDisabled(t *testing.T) {
	s := stack.New(t, stack.WithBilling(disableUserCreation))
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_new", Email: "new@example.com"})

	_, err := s.Customers.ResolveUser(context.Background(), nil, customerdomain.ByCustomerID("cus_new"))
	assert.ErrorIs(t, err, customerdomain.ErrUserCreationDisabled)

	var count int64
	require.NoError(t, s.DB.Model(&customerdomain.StripeUser{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestResolveUser_ConflictingMapping(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_a", Email: "a@example.com"})
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_b", Email: "a@example.com"})

	_, err := s.Customers.ResolveUser(ctx, nil, customerdomain.ByCustomerID("cus_a"))
	require.NoError(t, err)

	_, err = s.Customers.ResolveUser(ctx, nil, customerdomain.ByCustomerID("cus_b"))
	assert.ErrorIs(t, err, customerdomain.ErrConflictingCustomerMapping)

	stored, err := s.CustomerRepo.FindByUserID(ctx, s.DB, 1)
	require.NoError(t, err)
	assert.Equal(t, "cus_a", stored.Customer())
}

func TestResolveUser_InvalidLookups(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()

	_, err := s.Customers.ResolveUser(ctx, nil, customerdomain.UserLookup{})
	assert.ErrorIs(t, err, customerdomain.ErrInvalidLookup)

	_, err = s.Customers.ResolveUser(ctx, nil, customerdomain.ByUserID(404))
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)

	_, err = s.Customers.ResolveUser(ctx, nil, customerdomain.ByCustomerID("cus_missing"))
	var perr *paymentdomain.ProviderError
	assert.ErrorAs(t, err, &perr)
}

func TestResolveUserFromRemoteCustomer_MissingEmail(t *testing.T) {
	s := stack.New(t)
	_, err := s.Customers.ResolveUserFromRemoteCustomer(context.Background(), nil, paymentdomain.Customer{ID: "cus_x"})
	assert.ErrorIs(t, err, customerdomain.ErrMissingEmail)
}

func TestGetOrCreateRemoteCustomerByEmail(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()

	first, err := s.Customers.GetOrCreateRemoteCustomerByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	second, err := s.Customers.GetOrCreateRemoteCustomerByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, s.Gateway.CustomersCreated)

	_, err = s.Customers.GetOrCreateRemoteCustomerByEmail(ctx, "  ")
	assert.ErrorIs(t, err, customerdomain.ErrMissingEmail)
}

func TestSyncCustomers_FromRecordedPage(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "tester1@example.com")

	page, err := stripe.DecodeCustomerList(testutil.Fixture(t, "customer_list.json"))
	require.NoError(t, err)

	res, err := s.Customers.SyncCustomers(ctx, customerdomain.CustomerSyncRequest{Limit: 100, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.UsersCreated)
	assert.Equal(t, 2, res.StripeUsersCreated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "cus_noemail", res.LastID)
	assert.False(t, res.HasMore)

	su, err := s.CustomerRepo.FindByCustomerID(ctx, s.DB, "cus_tester")
	require.NoError(t, err)
	require.NotNil(t, su)
	assert.EqualValues(t, 1, su.UserID)

	again, err := s.Customers.SyncCustomers(ctx, customerdomain.CustomerSyncRequest{Limit: 100, Page: page})
	require.NoError(t, err)
	assert.Zero(t, again.UsersCreated)
	assert.Zero(t, again.StripeUsersCreated)
}

func TestSyncCustomers_SkipsWhenUserCreationDisabled(t *testing.T) {
	s := stack.New(t, stack.WithBilling(disableUserCreation))
	testutil.SeedUser(t, s.DB, 1, "tester1@example.com")

	page, err := stripe.DecodeCustomerList(testutil.Fixture(t, "customer_list.json"))
	require.NoError(t, err)

	res, err := s.Customers.SyncCustomers(context.Background(), customerdomain.CustomerSyncRequest{Limit: 100, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StripeUsersCreated)
	assert.Equal(t, 2, res.Skipped)
}

func TestSyncCustomers_PagesThroughGateway(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_1", Email: "one@example.com"})
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_2", Email: "two@example.com"})
	s.Gateway.AddCustomer(paymentdomain.Customer{ID: "cus_3", Email: "three@example.com"})

	first, err := s.Customers.SyncCustomers(ctx, customerdomain.CustomerSyncRequest{Limit: 2})
	require.NoError(t, err)
	assert.True(t, first.HasMore)
	assert.Equal(t, "cus_2", first.LastID)

	rest, err := s.Customers.SyncCustomers(ctx, customerdomain.CustomerSyncRequest{Limit: 2, StartingAfter: first.LastID})
	require.NoError(t, err)
	assert.False(t, rest.HasMore)
	assert.Equal(t, 1, rest.Processed)
	assert.Equal(t, "cus_3", rest.LastID)
}

func TestSyncCustomers_LinksManagedAccount(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 7, "manager@example.com")

	_, err := s.Accounts.GetOrCreate(ctx, nil, domain.OwnerRef{Type: "user", ID: 7}, 7)
	require.NoError(t, err)

	page := &paymentdomain.CustomerPage{Data: []paymentdomain.Customer{{ID: "cus_m", Email: "manager@example.com"}}}
	res, err := s.Customers.SyncCustomers(ctx, customerdomain.CustomerSyncRequest{Limit: 10, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AccountsLinked)

	acct, err := s.Accounts.FindByCustomerID(ctx, nil, "cus_m")
	require.NoError(t, err)
	assert.NotNil(t, acct)
}

func TestSyncCustomers_InvalidLimit(t *testing.T) {
	s := stack.New(t)
	for _, limit := range []int64{0, -1, 101} {
		_, err := s.Customers.SyncCustomers(context.Background(), customerdomain.CustomerSyncRequest{Limit: limit})
		assert.ErrorIs(t, err, customerdomain.ErrInvalidLimit)
	}
}
