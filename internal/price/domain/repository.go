package domain

import (
	"context"

	"gorm.io/gorm"
)

// ListOptions filters the active catalog.
type ListOptions struct {
	ExcludeProductIDs []string
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, priceID string) (*Price, error)
	Upsert(ctx context.Context, db *gorm.DB, price *Price) error
	ListAvailable(ctx context.Context, db *gorm.DB, opts ListOptions) ([]PriceView, error)
}
