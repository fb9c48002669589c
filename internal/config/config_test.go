package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stripesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:3000", cfg.Billing.FrontEndBaseURL)
	assert.Equal(t, "payment", cfg.Billing.CheckoutSuccessURLPath)
	assert.Equal(t, "manage-subscription", cfg.Billing.CheckoutCancelURLPath)
	assert.Equal(t, "manage-subscription", cfg.Billing.CustomerPortalReturnURLPath)
	assert.Equal(t, []string{"card"}, cfg.Billing.DefaultPaymentMethodTypes)
	assert.Equal(t, "subscription", cfg.Billing.DefaultCheckoutMode)
	assert.True(t, cfg.Billing.AllowPromotionCodes)
	assert.Empty(t, cfg.Billing.DefaultDiscounts)
	assert.Zero(t, cfg.Billing.NewUserFreeTrialDays)
	assert.Equal(t, "users", cfg.Billing.UserModel.Table)
	assert.Equal(t, "email", cfg.Billing.UserModel.EmailField)
	assert.Equal(t, map[string]string{"username": "email"}, cfg.Billing.UserModel.CreateDefaultsAttributeMap)
	assert.False(t, cfg.Billing.BillingAccount.Enabled())
	assert.EqualValues(t, 1, cfg.Billing.DefaultSubscriptionQuantity)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  dsn: "file::memory:"
billing:
  front_end_base_url: "https://app.example.com/"
  billing_account:
    table: companies
    generic_relation: false
    foreign_keys: [Organization]
    seats_column: ""
`)
	t.Setenv("STRIPESYNC_STRIPE_API_SECRET", "sk_test_123")
	t.Setenv("STRIPESYNC_BILLING_DEFAULT_SUBSCRIPTION_QUANTITY", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "https://app.example.com", cfg.Billing.FrontEndBaseURL)
	assert.Equal(t, "sk_test_123", cfg.Stripe.APISecret)
	assert.EqualValues(t, 5, cfg.Billing.DefaultSubscriptionQuantity)
	assert.True(t, cfg.Billing.BillingAccount.Enabled())
	assert.False(t, cfg.Billing.BillingAccount.GenericRelation)
	assert.Equal(t, []string{"organization"}, cfg.Billing.BillingAccount.ForeignKeys)
	assert.Empty(t, cfg.Billing.BillingAccount.SeatsColumn)
}

func TestLoad_RejectsUnknownSetting(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
billing:
  not_a_setting: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid setting")
}

func TestBillingConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BillingConfig)
		want   error
	}{
		{"zero quantity", func(b *BillingConfig) { b.DefaultSubscriptionQuantity = 0 }, ErrInvalidQuantity},
		{"bad mode", func(b *BillingConfig) { b.DefaultCheckoutMode = "donation" }, ErrInvalidCheckoutMode},
		{"bad user table", func(b *BillingConfig) { b.UserModel.Table = "users; drop table users" }, ErrInvalidIdentifier},
		{"bad attribute", func(b *BillingConfig) {
			b.UserModel.CreateDefaultsAttributeMap = map[string]string{"username": "address"}
		}, ErrInvalidCustomerAttribute},
		{"bad foreign key", func(b *BillingConfig) {
			b.BillingAccount.Table = "companies"
			b.BillingAccount.ForeignKeys = []string{"tenant"}
		}, ErrInvalidForeignKey},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default().Billing
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}
}

func TestBillingConfigHolder_SetAndReload(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
billing:
  checkout_success_url_path: paid
`)

	h, _, err := NewBillingConfigHolderFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "paid", h.Get().CheckoutSuccessURLPath)

	var seen []string
	h.OnChange(func(b BillingConfig) { seen = append(seen, b.CheckoutSuccessURLPath) })

	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
billing:
  checkout_success_url_path: thanks
`), 0o600))
	require.NoError(t, h.Reload())
	assert.Equal(t, "thanks", h.Get().CheckoutSuccessURLPath)

	invalid := h.Get()
	invalid.DefaultSubscriptionQuantity = 0
	assert.ErrorIs(t, h.Set(invalid), ErrInvalidQuantity)
	assert.Equal(t, "thanks", h.Get().CheckoutSuccessURLPath)
	assert.Equal(t, []string{"thanks"}, seen)
}
