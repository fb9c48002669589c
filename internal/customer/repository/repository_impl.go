package repository

import (
	"context"
	"time"

	"github.com/railzwaylabs/stripesync/internal/customer/domain"
	pkgdb "github.com/railzwaylabs/stripesync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, su *domain.StripeUser) (bool, error) {
	now := time.Now().UTC()
	if su.CreatedAt.IsZero() {
		su.CreatedAt = now
	}
	su.UpdatedAt = now

	result := pkgdb.InsertIgnore(db.WithContext(ctx)).Create(su)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*domain.StripeUser, error) {
	var su domain.StripeUser
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, customer_id, created_at, updated_at
		 FROM stripe_users WHERE user_id = ?`,
		userID,
	).Scan(&su).Error
	if err != nil {
		return nil, err
	}
	if su.UserID == 0 {
		return nil, nil
	}
	return &su, nil
}

func (r *repo) FindByCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*domain.StripeUser, error) {
	var su domain.StripeUser
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, customer_id, created_at, updated_at
		 FROM stripe_users WHERE customer_id = ?
		 ORDER BY user_id ASC LIMIT 1`,
		customerID,
	).Scan(&su).Error
	if err != nil {
		return nil, err
	}
	if su.UserID == 0 {
		return nil, nil
	}
	return &su, nil
}

func (r *repo) SetCustomerIDIfEmpty(ctx context.Context, db *gorm.DB, userID int64, customerID string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE stripe_users SET customer_id = ?, updated_at = ?
		 WHERE user_id = ? AND (customer_id IS NULL OR customer_id = '')`,
		customerID,
		time.Now().UTC(),
		userID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.StripeUser, error) {
	var items []domain.StripeUser
	err := db.WithContext(ctx).
		Model(&domain.StripeUser{}).
		Order("user_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
