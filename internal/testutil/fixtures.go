package testutil

import (
	"embed"
	"testing"

	"github.com/railzwaylabs/stripesync/internal/config"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/*.json
var fixtures embed.FS

// Fixture returns a recorded Stripe API payload from testdata.
func Fixture(t testing.TB, name string) []byte {
	t.Helper()
	raw, err := fixtures.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return raw
}

// BillingHolder returns a config holder seeded with the defaults after
// mutate has run.
func BillingHolder(t testing.TB, mutate func(*config.BillingConfig)) *config.BillingConfigHolder {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg.Billing)
	}
	require.NoError(t, cfg.Billing.Validate())
	return config.NewBillingConfigHolder(cfg)
}

// WithCompanies points the billing-account model at the companies table
// keyed by organization.
func WithCompanies(cfg *config.BillingConfig) {
	cfg.BillingAccount.Table = "companies"
	cfg.BillingAccount.GenericRelation = false
	cfg.BillingAccount.ForeignKeys = []string{"organization"}
	cfg.BillingAccount.SeatsColumn = "seats"
	cfg.BillingAccount.OwnerTypes = map[string]string{
		"tests.Organization": "organizations",
	}
}

// WithWorkspaces points the billing-account model at the workspaces table,
// which has both an organization and a team owner column.
func WithWorkspaces(cfg *config.BillingConfig) {
	cfg.BillingAccount.Table = "workspaces"
	cfg.BillingAccount.GenericRelation = false
	cfg.BillingAccount.ForeignKeys = []string{"organization", "team"}
	cfg.BillingAccount.SeatsColumn = ""
	cfg.BillingAccount.OwnerTypes = map[string]string{
		"tests.Organization": "organizations",
		"tests.Team":         "teams",
	}
}

// WithBundledAccounts enables the generic billing_accounts table.
func WithBundledAccounts(cfg *config.BillingConfig) {
	cfg.BillingAccount.Table = "billing_accounts"
	cfg.BillingAccount.GenericRelation = true
	cfg.BillingAccount.SeatsColumn = "seats"
	cfg.BillingAccount.OwnerTypes = map[string]string{
		"tests.Organization": "organizations",
	}
}
