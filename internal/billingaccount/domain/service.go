package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Service resolves owners to billing accounts. With no billing-account table
// configured every lookup returns nil and never fails.
type Service interface {
	Model() Model
	Enabled() bool
	ResolveOwner(ctx context.Context, db *gorm.DB, ref OwnerRef) (OwnerRef, error)
	Find(ctx context.Context, db *gorm.DB, owner OwnerRef, customerID string) (*BillingAccount, error)
	FindByCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*BillingAccount, error)
	FindForCustomer(ctx context.Context, db *gorm.DB, customerID string, managerUserID *int64) (*BillingAccount, error)
	ListManaged(ctx context.Context, db *gorm.DB, managerUserID int64) ([]BillingAccount, error)
	GetOrCreate(ctx context.Context, db *gorm.DB, owner OwnerRef, actorUserID int64) (*BillingAccount, error)
	EnsureRemoteCustomer(ctx context.Context, db *gorm.DB, acct *BillingAccount, email string, owner OwnerRef) (string, error)
	LinkRemote(ctx context.Context, db *gorm.DB, acct *BillingAccount, customerID, subscriptionID string) error
	LinkManagerCustomer(ctx context.Context, db *gorm.DB, managerUserID int64, customerID string) (bool, error)
}

var (
	ErrUnknownOwnerType           = errors.New("unknown_owner_type")
	ErrOwnerNotFound              = errors.New("owner_not_found")
	ErrInvalidOwner               = errors.New("invalid_owner")
	ErrUnresolvableBillingAccount = errors.New("unresolvable_billing_account")
	ErrNotBillingManager          = errors.New("not_billing_manager")
)

// IsResolutionError reports whether err means the owner could not be mapped
// to a single billing account.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrUnknownOwnerType) ||
		errors.Is(err, ErrOwnerNotFound) ||
		errors.Is(err, ErrInvalidOwner) ||
		errors.Is(err, ErrUnresolvableBillingAccount)
}
