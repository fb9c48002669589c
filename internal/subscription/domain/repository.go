package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists subscriptions and their items. Lookups that find
// nothing return (nil, nil).
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, subscriptionID string) (*Subscription, error)
	Upsert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	ReplaceItems(ctx context.Context, db *gorm.DB, subscriptionID string, items []SubscriptionItem) error
	ExistsForOwner(ctx context.Context, db *gorm.DB, owner Owner) (bool, error)
	List(ctx context.Context, db *gorm.DB, q OwnerQuery) ([]Subscription, error)
	ListItems(ctx context.Context, db *gorm.DB, q ItemQuery) ([]ItemView, error)
	ListLegacy(ctx context.Context, db *gorm.DB) ([]Subscription, error)
	MoveToAccount(ctx context.Context, db *gorm.DB, stripeUserID int64, table string, accountID int64) (int64, error)
}
