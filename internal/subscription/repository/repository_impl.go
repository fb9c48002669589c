package repository

import (
	"context"
	"strings"
	"time"

	pricedomain "github.com/railzwaylabs/stripesync/internal/price/domain"
	"github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Limit(1).
		Find(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionID == "" {
		return nil, nil
	}
	return &sub, nil
}

// Upsert replaces every mirrored column of the row.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_user_id", "billing_account_type", "billing_account_id",
			"status", "period_start", "period_end", "trial_start", "trial_end",
			"cancel_at", "cancel_at_period_end", "ended_at", "updated_at",
		}),
	}).Create(sub).Error
}

func (r *repo) ReplaceItems(ctx context.Context, db *gorm.DB, subscriptionID string, items []domain.SubscriptionItem) error {
	// TODO: lock the subscription row before the delete so concurrent syncs
	// of one subscription cannot interleave their item sets.
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Delete(&domain.SubscriptionItem{}).Error
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) ExistsForOwner(ctx context.Context, db *gorm.DB, owner domain.Owner) (bool, error) {
	stmt := db.WithContext(ctx).Model(&domain.Subscription{})
	switch {
	case owner.StripeUserID != nil:
		stmt = stmt.Where("stripe_user_id = ?", *owner.StripeUserID)
	case owner.AccountTable != "":
		stmt = stmt.Where("billing_account_type = ? AND billing_account_id = ?", owner.AccountTable, owner.AccountID)
	default:
		return false, nil
	}
	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, q domain.OwnerQuery) ([]domain.Subscription, error) {
	var (
		conds []string
		args  []any
	)
	if q.StripeUserID != nil {
		conds = append(conds, "stripe_user_id = ?")
		args = append(args, *q.StripeUserID)
	}
	if q.AccountTable != "" && len(q.AccountIDs) > 0 {
		conds = append(conds, "(billing_account_type = ? AND billing_account_id IN ?)")
		args = append(args, q.AccountTable, q.AccountIDs)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	stmt := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("("+strings.Join(conds, " OR ")+")", args...)
	if len(q.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", q.Statuses)
	}

	var items []domain.Subscription
	if err := stmt.Order("created_at ASC, subscription_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

type itemRow struct {
	SubItemID          string
	SubscriptionID     string
	Status             string
	Quantity           int64
	PriceID            string
	Nickname           *string
	Price              int64
	Freq               *string
	Currency           string
	ProductID          string
	ProductName        string
	ProductDescription *string
}

// ListItems joins items to their catalog rows. Items whose price has not
// been synced yet are left out.
func (r *repo) ListItems(ctx context.Context, db *gorm.DB, q domain.ItemQuery) ([]domain.ItemView, error) {
	if len(q.SubscriptionIDs) == 0 {
		return nil, nil
	}
	var rows []itemRow
	err := db.WithContext(ctx).Raw(
		`SELECT si.sub_item_id, si.subscription_id, s.status, si.quantity,
			p.price_id, p.nickname, p.price, p.freq, p.currency,
			pr.product_id, pr.name AS product_name, pr.description AS product_description
		 FROM subscription_items si
		 JOIN subscriptions s ON s.subscription_id = si.subscription_id
		 JOIN prices p ON p.price_id = si.price_id
		 JOIN products pr ON pr.product_id = p.product_id
		 WHERE si.subscription_id IN ?
		 ORDER BY si.subscription_id, si.sub_item_id`,
		q.SubscriptionIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.ItemView, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ItemView{
			SubItemID:      row.SubItemID,
			SubscriptionID: row.SubscriptionID,
			Status:         row.Status,
			Quantity:       row.Quantity,
			Price: pricedomain.PriceView{
				PriceID:    row.PriceID,
				Nickname:   row.Nickname,
				UnitAmount: row.Price,
				Freq:       row.Freq,
				Currency:   row.Currency,
				Product: pricedomain.ProductView{
					ProductID:   row.ProductID,
					Name:        row.ProductName,
					Description: row.ProductDescription,
				},
			},
		})
	}
	return out, nil
}

func (r *repo) ListLegacy(ctx context.Context, db *gorm.DB) ([]domain.Subscription, error) {
	var items []domain.Subscription
	err := db.WithContext(ctx).
		Where("stripe_user_id IS NOT NULL").
		Order("subscription_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MoveToAccount(ctx context.Context, db *gorm.DB, stripeUserID int64, table string, accountID int64) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("stripe_user_id = ?", stripeUserID).
		Updates(map[string]any{
			"stripe_user_id":       nil,
			"billing_account_type": table,
			"billing_account_id":   accountID,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
