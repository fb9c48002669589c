package service_test

import (
	"context"
	"testing"

	"github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	"github.com/railzwaylabs/stripesync/internal/billingaccount/service"
	"github.com/railzwaylabs/stripesync/internal/config"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/railzwaylabs/stripesync/internal/testutil"
	"github.com/railzwaylabs/stripesync/internal/testutil/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func seedOrganization(t *testing.T, s *stack.Stack, id int64) {
	t.Helper()
	require.NoError(t, s.DB.Create(&testutil.Organization{ID: id, Name: "acme"}).Error)
}

func TestLegacyModeShortCircuits(t *testing.T) {
	s := stack.New(t)
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 1, "a@example.com")

	assert.False(t, s.Accounts.Enabled())

	acct, err := s.Accounts.GetOrCreate(ctx, nil, domain.OwnerRef{Type: "user", ID: 1}, 1)
	require.NoError(t, err)
	assert.Nil(t, acct)

	acct, err = s.Accounts.FindForCustomer(ctx, nil, "cus_x", nil)
	require.NoError(t, err)
	assert.Nil(t, acct)

	managed, err := s.Accounts.ListManaged(ctx, nil, 1)
	require.NoError(t, err)
	assert.Empty(t, managed)
}

func TestStrategyOrder(t *testing.T) {
	s := stack.New(t)

	var names []string
	for _, st := range s.AccountRepo.Strategies() {
		names = append(names, st.Name())
	}
	assert.Equal(t, []string{"generic", "foreign_key", "primary_key"}, names)

	cases := []struct {
		name  string
		model domain.Model
		want  string
	}{
		{"generic", domain.Model{Table: "billing_accounts", GenericRelation: true, ForeignKeys: []string{"owner"}}, "generic"},
		{"foreign key", domain.Model{Table: "companies", ForeignKeys: []string{"team", "organization"}}, "foreign_key"},
		{"primary key", domain.Model{Table: "companies"}, "primary_key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var first string
			for _, st := range s.AccountRepo.Strategies() {
				if st.Supports(tc.model) {
					first = st.Name()
					break
				}
			}
			assert.Equal(t, tc.want, first)
		})
	}
}

func TestResolveOwner(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithCompanies))
	ctx := context.Background()
	seedOrganization(t, s, 42)
	testutil.SeedUser(t, s.DB, 7, "m@example.com")

	owner, err := s.Accounts.ResolveOwner(ctx, nil, domain.OwnerRef{Type: "tests.Organization", ID: 42})
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerRef{Type: "organization", ID: 42}, owner)

	owner, err = s.Accounts.ResolveOwner(ctx, nil, domain.OwnerRef{Type: "User", ID: 7})
	require.NoError(t, err)
	assert.Equal(t, "user", owner.Type)

	_, err = s.Accounts.ResolveOwner(ctx, nil, domain.OwnerRef{Type: "team", ID: 42})
	assert.ErrorIs(t, err, domain.ErrUnknownOwnerType)
	assert.True(t, domain.IsResolutionError(err))

	_, err = s.Accounts.ResolveOwner(ctx, nil, domain.OwnerRef{Type: "organization", ID: 99})
	assert.ErrorIs(t, err, domain.ErrOwnerNotFound)

	_, err = s.Accounts.ResolveOwner(ctx, nil, domain.OwnerRef{Type: "organization"})
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
}

func TestParseOwnerRef(t *testing.T) {
	ref, ok, err := service.ParseOwnerRef("organization", "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.OwnerRef{Type: "organization", ID: 42}, ref)

	_, ok, err = service.ParseOwnerRef("", "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = service.ParseOwnerRef("organization", "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
}

func TestGetOrCreate_ForeignKeyModel(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithCompanies))
	ctx := context.Background()
	seedOrganization(t, s, 42)

	owner := domain.OwnerRef{Type: "organization", ID: 42}
	acct, err := s.Accounts.GetOrCreate(ctx, nil, owner, 7)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Nil(t, acct.ManagerUserID, "manager is only implied for self-owned accounts")
	assert.False(t, acct.CanManageBilling(7))

	var company testutil.Company
	require.NoError(t, s.DB.First(&company, acct.ID).Error)
	require.NotNil(t, company.OrganizationID)
	assert.EqualValues(t, 42, *company.OrganizationID)

	again, err := s.Accounts.GetOrCreate(ctx, nil, owner, 7)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, again.ID)
}

func TestGetOrCreate_ForeignKeyModelWithSeveralOwnerColumns(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithWorkspaces))
	ctx := context.Background()
	seedOrganization(t, s, 42)
	require.NoError(t, s.DB.Create(&testutil.Team{ID: 5, Name: "core"}).Error)
	require.NoError(t, s.DB.Create(&testutil.Team{ID: 6, Name: "infra"}).Error)

	teamID := int64(5)
	require.NoError(t, s.DB.Create(&testutil.Workspace{ID: 300, TeamID: &teamID}).Error)

	team, err := s.Accounts.ResolveOwner(ctx, nil, domain.OwnerRef{Type: "tests.Team", ID: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerRef{Type: "team", ID: 5}, team)

	found, err := s.Accounts.Find(ctx, nil, team, "")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.EqualValues(t, 300, found.ID)

	acct, err := s.Accounts.GetOrCreate(ctx, nil, team, 7)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.EqualValues(t, 300, acct.ID)

	created, err := s.Accounts.GetOrCreate(ctx, nil, domain.OwnerRef{Type: "team", ID: 6}, 7)
	require.NoError(t, err)
	require.NotNil(t, created)
	var ws testutil.Workspace
	require.NoError(t, s.DB.First(&ws, created.ID).Error)
	require.NotNil(t, ws.TeamID)
	assert.EqualValues(t, 6, *ws.TeamID)
	assert.Nil(t, ws.OrganizationID)

	org, err := s.Accounts.GetOrCreate(ctx, nil, domain.OwnerRef{Type: "organization", ID: 42}, 7)
	require.NoError(t, err)
	require.NotNil(t, org)
	ws = testutil.Workspace{}
	require.NoError(t, s.DB.First(&ws, org.ID).Error)
	require.NotNil(t, ws.OrganizationID)
	assert.EqualValues(t, 42, *ws.OrganizationID)
	assert.Nil(t, ws.TeamID)

	var count int64
	require.NoError(t, s.DB.Model(&testutil.Workspace{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestFind_FallsBackToCustomerID(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithCompanies))
	ctx := context.Background()
	seedOrganization(t, s, 42)

	customer := "cus_shared"
	require.NoError(t, s.DB.Create(&testutil.Company{ID: 900, StripeCustomerID: &customer}).Error)

	owner := domain.OwnerRef{Type: "organization", ID: 42}
	acct, err := s.Accounts.Find(ctx, nil, owner, "")
	require.NoError(t, err)
	assert.Nil(t, acct)

	acct, err = s.Accounts.Find(ctx, nil, owner, "cus_shared")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.EqualValues(t, 900, acct.ID)

	acct, err = s.Accounts.Find(ctx, nil, owner, "cus_unknown")
	require.NoError(t, err)
	assert.Nil(t, acct)

	// the owner's own account wins over the customer match
	orgID := int64(42)
	require.NoError(t, s.DB.Create(&testutil.Company{ID: 901, OrganizationID: &orgID}).Error)
	acct, err = s.Accounts.Find(ctx, nil, owner, "cus_shared")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.EqualValues(t, 901, acct.ID)
}

func TestGetOrCreate_PrimaryKeyModel(t *testing.T) {
	s := stack.New(t, stack.WithBilling(func(cfg *config.BillingConfig) {
		testutil.WithCompanies(cfg)
		cfg.BillingAccount.ForeignKeys = nil
	}))
	ctx := context.Background()
	seedOrganization(t, s, 42)

	acct, err := s.Accounts.GetOrCreate(ctx, nil, domain.OwnerRef{Type: "organization", ID: 42}, 7)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.EqualValues(t, 42, acct.ID)
}

func TestGetOrCreate_SelfOwnedSetsManager(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 7, "m@example.com")

	acct, err := s.Accounts.GetOrCreate(ctx, nil, domain.OwnerRef{Type: "user", ID: 7}, 7)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.True(t, acct.CanManageBilling(7))
	assert.False(t, acct.CanManageBilling(8))

	managed, err := s.Accounts.ListManaged(ctx, nil, 7)
	require.NoError(t, err)
	require.Len(t, managed, 1)
	assert.Equal(t, acct.ID, managed[0].ID)
}

func TestGetOrCreate_ConcurrentCallersShareOneAccount(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts), stack.WithSharedDB())
	ctx := context.Background()
	seedOrganization(t, s, 42)

	owner := domain.OwnerRef{Type: "organization", ID: 42}
	ids := make([]int64, 8)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			acct, err := s.Accounts.GetOrCreate(ctx, nil, owner, 7)
			if err != nil {
				return err
			}
			ids[i] = acct.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	require.NoError(t, s.DB.Model(&domain.Record{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureRemoteCustomer(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	seedOrganization(t, s, 42)

	owner := domain.OwnerRef{Type: "organization", ID: 42}
	acct, err := s.Accounts.GetOrCreate(ctx, nil, owner, 7)
	require.NoError(t, err)

	id, err := s.Accounts.EnsureRemoteCustomer(ctx, nil, acct, "billing@acme.test", owner)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, s.Gateway.CustomersCreated)

	created := s.Gateway.Customers()[0]
	assert.Equal(t, "organization", created.Metadata[paymentdomain.MetadataOwnerType])
	assert.Equal(t, "42", created.Metadata[paymentdomain.MetadataOwnerID])

	fresh, err := s.Accounts.Find(ctx, nil, owner, "")
	require.NoError(t, err)
	assert.Equal(t, id, fresh.CustomerID())

	again, err := s.Accounts.EnsureRemoteCustomer(ctx, nil, fresh, "billing@acme.test", owner)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, s.Gateway.CustomersCreated)
}

func TestEnsureRemoteCustomer_StoredIDWins(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	seedOrganization(t, s, 42)

	owner := domain.OwnerRef{Type: "organization", ID: 42}
	acct, err := s.Accounts.GetOrCreate(ctx, nil, owner, 7)
	require.NoError(t, err)

	require.NoError(t, s.DB.Model(&domain.Record{}).
		Where("id = ?", acct.ID).
		Update("stripe_customer_id", "cus_winner").Error)

	// acct is stale and still has no customer
	id, err := s.Accounts.EnsureRemoteCustomer(ctx, nil, acct, "billing@acme.test", owner)
	require.NoError(t, err)
	assert.Equal(t, "cus_winner", id)
	assert.Equal(t, "cus_winner", acct.CustomerID())
}

func TestLinkRemote(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	seedOrganization(t, s, 42)

	owner := domain.OwnerRef{Type: "organization", ID: 42}
	acct, err := s.Accounts.GetOrCreate(ctx, nil, owner, 7)
	require.NoError(t, err)

	require.NoError(t, s.Accounts.LinkRemote(ctx, nil, acct, "cus_1", "sub_1"))
	require.NoError(t, s.Accounts.LinkRemote(ctx, nil, acct, "cus_2", "sub_2"))

	fresh, err := s.Accounts.FindByCustomerID(ctx, nil, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, acct.ID, fresh.ID)
	assert.Equal(t, "sub_2", fresh.SubscriptionID())

	missing, err := s.Accounts.FindByCustomerID(ctx, nil, "cus_2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindForCustomer_FallsBackToManager(t *testing.T) {
	s := stack.New(t, stack.WithBilling(testutil.WithBundledAccounts))
	ctx := context.Background()
	testutil.SeedUser(t, s.DB, 7, "m@example.com")

	acct, err := s.Accounts.GetOrCreate(ctx, nil, domain.OwnerRef{Type: "user", ID: 7}, 7)
	require.NoError(t, err)

	manager := int64(7)
	found, err := s.Accounts.FindForCustomer(ctx, nil, "cus_unknown", &manager)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, acct.ID, found.ID)

	linked, err := s.Accounts.LinkManagerCustomer(ctx, nil, 7, "cus_m")
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = s.Accounts.LinkManagerCustomer(ctx, nil, 7, "cus_other")
	require.NoError(t, err)
	assert.False(t, linked)
}
