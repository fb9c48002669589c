package repository

import (
	"context"
	"time"

	"github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	pkgdb "github.com/railzwaylabs/stripesync/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	strategies []domain.Strategy
}

func Provide() domain.Repository {
	r := &repo{}
	r.strategies = []domain.Strategy{
		&genericStrategy{repo: r},
		&foreignKeyStrategy{repo: r},
		&primaryKeyStrategy{repo: r},
	}
	return r
}

func (r *repo) Strategies() []domain.Strategy {
	return r.strategies
}

func (r *repo) query(ctx context.Context, db *gorm.DB, model domain.Model, conds []clause.Expression) *gorm.DB {
	columns := "id, stripe_customer_id, stripe_subscription_id, manager_user_id"
	var vars []any
	if model.SeatsColumn != "" {
		columns += ", ? AS seats"
		vars = append(vars, clause.Column{Name: model.SeatsColumn})
	}
	if model.GenericRelation {
		columns += ", owner_type, owner_id"
	}
	return db.WithContext(ctx).
		Table(model.Table).
		Select(columns, vars...).
		Where(clause.And(conds...)).
		Order("id ASC")
}

func (r *repo) FindOne(ctx context.Context, db *gorm.DB, model domain.Model, conds ...clause.Expression) (*domain.BillingAccount, error) {
	var acct domain.BillingAccount
	if err := r.query(ctx, db, model, conds).Limit(1).Scan(&acct).Error; err != nil {
		return nil, err
	}
	if acct.ID == 0 {
		return nil, nil
	}
	return &acct, nil
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB, model domain.Model, conds ...clause.Expression) ([]domain.BillingAccount, error) {
	var items []domain.BillingAccount
	if err := r.query(ctx, db, model, conds).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertIgnore(ctx context.Context, db *gorm.DB, model domain.Model, values map[string]any) (bool, error) {
	result := pkgdb.InsertIgnore(db.WithContext(ctx).Table(model.Table)).Create(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetCustomerIDIfEmpty never replaces a stored customer id.
func (r *repo) SetCustomerIDIfEmpty(ctx context.Context, db *gorm.DB, model domain.Model, id int64, customerID string) (bool, error) {
	result := db.WithContext(ctx).
		Table(model.Table).
		Where("id = ?", id).
		Where("(stripe_customer_id IS NULL OR stripe_customer_id = '')").
		Updates(stamp(map[string]any{"stripe_customer_id": customerID}, model, false))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetSubscriptionID(ctx context.Context, db *gorm.DB, model domain.Model, id int64, subscriptionID string) error {
	return db.WithContext(ctx).
		Table(model.Table).
		Where("id = ?", id).
		Updates(stamp(map[string]any{"stripe_subscription_id": subscriptionID}, model, false)).Error
}

func newAccountValues(acct domain.NewAccount) map[string]any {
	return map[string]any{
		"id":                 acct.ID,
		"stripe_customer_id": acct.StripeCustomerID,
		"manager_user_id":    acct.ManagerUserID,
	}
}

// stamp fills the bookkeeping columns of the bundled table. Custom tables
// manage their own.
func stamp(values map[string]any, model domain.Model, created bool) map[string]any {
	if model.Table != (domain.Record{}).TableName() {
		return values
	}
	now := time.Now().UTC()
	values["updated_at"] = now
	if created {
		values["created_at"] = now
	}
	return values
}
