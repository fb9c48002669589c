package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository reads and writes the configured user table. Lookups that find
// nothing return (nil, nil).
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, model Model, id int64) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, model Model, email string) (*User, error)
	Insert(ctx context.Context, db *gorm.DB, model Model, id int64, values map[string]any) error
	RowExists(ctx context.Context, db *gorm.DB, table string, id int64) (bool, error)
}
