package domain

import (
	"context"

	"gorm.io/gorm"
)

// NewAccount is the initial state of an account created during resolution.
type NewAccount struct {
	ID               int64
	ManagerUserID    *int64
	StripeCustomerID *string
}

// Strategy is one way a billing account can reference its owner. Strategies
// are tried in a fixed order; the first one the model supports is used.
type Strategy interface {
	Name() string
	Supports(model Model) bool
	Find(ctx context.Context, db *gorm.DB, model Model, owner OwnerRef) (*BillingAccount, error)
	// Insert creates the owner's account unless one already exists. It
	// reports whether a row was written.
	Insert(ctx context.Context, db *gorm.DB, model Model, owner OwnerRef, acct NewAccount) (bool, error)
}
