package domain

import (
	"context"
	"errors"

	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	pricedomain "github.com/railzwaylabs/stripesync/internal/price/domain"
	"gorm.io/gorm"
)

// Service mirrors remote subscriptions into the local tables and answers
// entitlement queries. Methods taking a *gorm.DB join that transaction; nil
// uses the service's own handle.
type Service interface {
	SyncSubscriptions(ctx context.Context, req SyncRequest) (*SyncResult, error)
	Apply(ctx context.Context, db *gorm.DB, remote paymentdomain.Subscription, hint map[string]string) (*ApplyResult, error)
	HasSubscriptions(ctx context.Context, db *gorm.DB, owner Owner) (bool, error)

	ListUserSubscriptions(ctx context.Context, userID int64, current bool) ([]Subscription, error)
	ListUserSubscriptionItems(ctx context.Context, userID int64, current bool) ([]ItemView, error)
	ListUserSubscriptionProducts(ctx context.Context, userID int64, current bool) ([]string, error)

	MigrateLegacyBilling(ctx context.Context) (*MigrationResult, error)
}

// MissingUserMode decides what a bulk pull does with a subscription whose
// customer maps to no local user.
type MissingUserMode int

const (
	FailOnMissingUser MissingUserMode = iota
	SkipMissingUser
)

type SyncRequest struct {
	Status        string
	Limit         int64
	StartingAfter string
	// Page replaces the remote fetch when set.
	Page         *paymentdomain.SubscriptionPage
	MissingUsers MissingUserMode
}

type SyncResult struct {
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id,omitempty"`
}

type ApplyResult struct {
	Subscription *Subscription
	Created      bool
}

// ItemView is a subscription item with its price, product and features.
type ItemView struct {
	SubItemID      string                `json:"sub_item_id"`
	SubscriptionID string                `json:"subscription_id"`
	Status         string                `json:"status"`
	Quantity       int64                 `json:"quantity"`
	Price          pricedomain.PriceView `json:"price"`
}

// ItemQuery selects items by subscription id.
type ItemQuery struct {
	SubscriptionIDs []string
}

// OwnerQuery selects subscriptions held by a legacy user or by any of the
// listed billing accounts.
type OwnerQuery struct {
	StripeUserID *int64
	AccountTable string
	AccountIDs   []int64
	Statuses     []string
}

type MigrationResult struct {
	AccountsLinked      int      `json:"accounts_linked"`
	SubscriptionsMoved  int      `json:"subscriptions_moved"`
	ManualSubscriptions []string `json:"manual_subscriptions,omitempty"`
}

var (
	ErrInvalidLimit            = errors.New("invalid_limit")
	ErrInvalidStatus           = errors.New("invalid_status")
	ErrInvalidSubscription     = errors.New("invalid_subscription")
	ErrMissingCustomer         = errors.New("missing_customer")
	ErrBillingAccountsDisabled = errors.New("billing_accounts_disabled")
)

const MaxPageSize = 100
