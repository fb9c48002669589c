package repository

import (
	"context"

	"github.com/railzwaylabs/stripesync/internal/price/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, priceID string) (*domain.Price, error) {
	var p domain.Price
	err := db.WithContext(ctx).
		Where("price_id = ?", priceID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.PriceID == "" {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, p *domain.Price) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "price_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id", "nickname", "price", "freq", "active", "currency", "updated_at",
		}),
	}).Create(p).Error
}

type priceRow struct {
	PriceID            string
	Nickname           *string
	Price              int64
	Freq               *string
	Currency           string
	ProductID          string
	ProductName        string
	ProductDescription *string
}

func (r *repo) ListAvailable(ctx context.Context, db *gorm.DB, opts domain.ListOptions) ([]domain.PriceView, error) {
	stmt := db.WithContext(ctx).
		Table("prices").
		Select(`prices.price_id, prices.nickname, prices.price, prices.freq, prices.currency,
			products.product_id, products.name AS product_name, products.description AS product_description`).
		Joins("JOIN products ON products.product_id = prices.product_id").
		Where("prices.active = ? AND products.active = ?", true, true)
	if len(opts.ExcludeProductIDs) > 0 {
		stmt = stmt.Where("products.product_id NOT IN ?", opts.ExcludeProductIDs)
	}

	var rows []priceRow
	if err := stmt.Order("products.product_id, prices.price").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.PriceView, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PriceView{
			PriceID:    row.PriceID,
			Nickname:   row.Nickname,
			UnitAmount: row.Price,
			Freq:       row.Freq,
			Currency:   row.Currency,
			Product: domain.ProductView{
				ProductID:   row.ProductID,
				Name:        row.ProductName,
				Description: row.ProductDescription,
			},
		})
	}
	return out, nil
}
