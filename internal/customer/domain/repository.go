package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists StripeUser rows. Lookups that find nothing return
// (nil, nil).
type Repository interface {
	InsertIfAbsent(ctx context.Context, db *gorm.DB, su *StripeUser) (bool, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*StripeUser, error)
	FindByCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*StripeUser, error)
	SetCustomerIDIfEmpty(ctx context.Context, db *gorm.DB, userID int64, customerID string) (bool, error)
	List(ctx context.Context, db *gorm.DB) ([]StripeUser, error)
}
