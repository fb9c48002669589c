package domain

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and writes the configured billing-account table. Lookups
// that find nothing return (nil, nil).
type Repository interface {
	FindOne(ctx context.Context, db *gorm.DB, model Model, conds ...clause.Expression) (*BillingAccount, error)
	FindAll(ctx context.Context, db *gorm.DB, model Model, conds ...clause.Expression) ([]BillingAccount, error)
	InsertIgnore(ctx context.Context, db *gorm.DB, model Model, values map[string]any) (bool, error)
	SetCustomerIDIfEmpty(ctx context.Context, db *gorm.DB, model Model, id int64, customerID string) (bool, error)
	SetSubscriptionID(ctx context.Context, db *gorm.DB, model Model, id int64, subscriptionID string) error
	Strategies() []Strategy
}
