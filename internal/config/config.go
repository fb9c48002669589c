package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "STRIPESYNC"

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Billing       BillingConfig       `mapstructure:"billing"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

type StripeConfig struct {
	APISecret         string `mapstructure:"api_secret"`
	WebhookSecret     string `mapstructure:"webhook_secret"`
	MaxNetworkRetries int64  `mapstructure:"max_network_retries"`
}

type WebhookConfig struct {
	ReplayTTL time.Duration `mapstructure:"replay_ttl"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
}

// BillingConfig carries every knob the billing flows read at request time.
// It is swapped as a whole on reload.
type BillingConfig struct {
	FrontEndBaseURL             string               `mapstructure:"front_end_base_url"`
	NewUserFreeTrialDays        int64                `mapstructure:"new_user_free_trial_days"`
	CheckoutSuccessURLPath      string               `mapstructure:"checkout_success_url_path"`
	CheckoutCancelURLPath       string               `mapstructure:"checkout_cancel_url_path"`
	CustomerPortalReturnURLPath string               `mapstructure:"customer_portal_return_url_path"`
	DefaultPaymentMethodTypes   []string             `mapstructure:"default_payment_method_types"`
	DefaultCheckoutMode         string               `mapstructure:"default_checkout_mode"`
	DefaultDiscounts            []Discount           `mapstructure:"default_discounts"`
	AllowPromotionCodes         bool                 `mapstructure:"allow_promotion_codes"`
	UserModel                   UserModelConfig      `mapstructure:"user_model"`
	BillingAccount              BillingAccountConfig `mapstructure:"billing_account"`
	DefaultSubscriptionQuantity int64                `mapstructure:"default_subscription_quantity"`
}

type Discount struct {
	Coupon        string `mapstructure:"coupon"`
	PromotionCode string `mapstructure:"promotion_code"`
}

type UserModelConfig struct {
	Table      string `mapstructure:"table"`
	EmailField string `mapstructure:"email_field"`
	// CreateDefaultsAttributeMap maps a user column to the remote customer
	// attribute it is filled from. Empty disables user creation.
	CreateDefaultsAttributeMap map[string]string `mapstructure:"create_defaults_attribute_map"`
}

// BillingAccountConfig declares the billing-account table and how it points
// at its owner. An empty Table keeps the service in per-user mode.
type BillingAccountConfig struct {
	Table           string            `mapstructure:"table"`
	GenericRelation bool              `mapstructure:"generic_relation"`
	ForeignKeys     []string          `mapstructure:"foreign_keys"`
	SeatsColumn     string            `mapstructure:"seats_column"`
	OwnerTypes      map[string]string `mapstructure:"owner_types"`
}

func (c BillingAccountConfig) Enabled() bool {
	return strings.TrimSpace(c.Table) != ""
}

var (
	ErrInvalidIdentifier        = errors.New("invalid_identifier")
	ErrInvalidForeignKey        = errors.New("invalid_foreign_key")
	ErrInvalidCustomerAttribute = errors.New("invalid_customer_attribute")
	ErrInvalidQuantity          = errors.New("invalid_default_subscription_quantity")
	ErrInvalidCheckoutMode      = errors.New("invalid_checkout_mode")
	ErrInvalidDatabaseDriver    = errors.New("invalid_database_driver")
)

// OwnerFieldCandidates are the foreign-key names a billing account may use to
// reference its owner, in probing order.
var OwnerFieldCandidates = []string{"owner", "user", "organization", "team"}

// CustomerAttributes lists the remote customer attributes a new user can be
// populated from.
var CustomerAttributes = []string{"id", "email", "name", "description", "phone"}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stripesync")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")

	v.SetDefault("stripe.api_secret", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.max_network_retries", 2)

	v.SetDefault("webhook.replay_ttl", 72*time.Hour)

	v.SetDefault("observability.service_name", "stripesync")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_insecure", false)

	v.SetDefault("billing.front_end_base_url", "http://localhost:3000")
	v.SetDefault("billing.new_user_free_trial_days", 0)
	v.SetDefault("billing.checkout_success_url_path", "payment")
	v.SetDefault("billing.checkout_cancel_url_path", "manage-subscription")
	v.SetDefault("billing.customer_portal_return_url_path", "manage-subscription")
	v.SetDefault("billing.default_payment_method_types", []string{"card"})
	v.SetDefault("billing.default_checkout_mode", "subscription")
	v.SetDefault("billing.default_discounts", []map[string]any{})
	v.SetDefault("billing.allow_promotion_codes", true)
	v.SetDefault("billing.user_model.table", "users")
	v.SetDefault("billing.user_model.email_field", "email")
	v.SetDefault("billing.user_model.create_defaults_attribute_map", map[string]string{"username": "email"})
	v.SetDefault("billing.billing_account.table", "")
	v.SetDefault("billing.billing_account.generic_relation", true)
	v.SetDefault("billing.billing_account.foreign_keys", []string{})
	v.SetDefault("billing.billing_account.seats_column", "seats")
	v.SetDefault("billing.billing_account.owner_types", map[string]string{"user": "users"})
	v.SetDefault("billing.default_subscription_quantity", 1)
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads defaults, an optional config file and STRIPESYNC_* environment
// variables, in that order of precedence.
func Load(path string) (Config, error) {
	_, cfg, err := load(path)
	return cfg, err
}

func load(path string) (*viper.Viper, Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	v := newViper()
	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, Config{}, err
	}
	return v, cfg, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid setting: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Billing.FrontEndBaseURL = strings.TrimRight(strings.TrimSpace(c.Billing.FrontEndBaseURL), "/")
	c.Billing.CheckoutSuccessURLPath = strings.Trim(strings.TrimSpace(c.Billing.CheckoutSuccessURLPath), "/")
	c.Billing.CheckoutCancelURLPath = strings.Trim(strings.TrimSpace(c.Billing.CheckoutCancelURLPath), "/")
	c.Billing.CustomerPortalReturnURLPath = strings.Trim(strings.TrimSpace(c.Billing.CustomerPortalReturnURLPath), "/")
	c.Billing.BillingAccount.Table = strings.TrimSpace(c.Billing.BillingAccount.Table)
	c.Billing.BillingAccount.SeatsColumn = strings.TrimSpace(c.Billing.BillingAccount.SeatsColumn)
	for i, fk := range c.Billing.BillingAccount.ForeignKeys {
		c.Billing.BillingAccount.ForeignKeys[i] = strings.ToLower(strings.TrimSpace(fk))
	}
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDatabaseDriver, c.Database.Driver)
	}
	return c.Billing.Validate()
}

func (b BillingConfig) Validate() error {
	if b.DefaultSubscriptionQuantity < 1 {
		return ErrInvalidQuantity
	}
	switch b.DefaultCheckoutMode {
	case "subscription", "payment", "setup":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCheckoutMode, b.DefaultCheckoutMode)
	}

	if err := validateIdentifier(b.UserModel.Table); err != nil {
		return err
	}
	if err := validateIdentifier(b.UserModel.EmailField); err != nil {
		return err
	}
	for column, attr := range b.UserModel.CreateDefaultsAttributeMap {
		if err := validateIdentifier(column); err != nil {
			return err
		}
		if !contains(CustomerAttributes, attr) {
			return fmt.Errorf("%w: %q", ErrInvalidCustomerAttribute, attr)
		}
	}

	ba := b.BillingAccount
	if !ba.Enabled() {
		return nil
	}
	if err := validateIdentifier(ba.Table); err != nil {
		return err
	}
	if ba.SeatsColumn != "" {
		if err := validateIdentifier(ba.SeatsColumn); err != nil {
			return err
		}
	}
	for _, fk := range ba.ForeignKeys {
		if !contains(OwnerFieldCandidates, fk) {
			return fmt.Errorf("%w: %q", ErrInvalidForeignKey, fk)
		}
	}
	for _, table := range ba.OwnerTypes {
		if err := validateIdentifier(table); err != nil {
			return err
		}
	}
	return nil
}

func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
