package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, productID string) (*Product, error)
	Upsert(ctx context.Context, db *gorm.DB, product *Product) error
	EnsureFeatures(ctx context.Context, db *gorm.DB, featureIDs []string) error
	ReplaceFeatures(ctx context.Context, db *gorm.DB, productID string, featureIDs []string) error
	ListFeatures(ctx context.Context, db *gorm.DB, productIDs []string) (map[string][]Feature, error)
}
