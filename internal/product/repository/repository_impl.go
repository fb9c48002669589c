package repository

import (
	"context"

	"github.com/railzwaylabs/stripesync/internal/product/domain"
	pkgdb "github.com/railzwaylabs/stripesync/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, productID string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ProductID == "" {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "name", "description", "metadata", "updated_at"}),
	}).Create(product).Error
}

func (r *repo) EnsureFeatures(ctx context.Context, db *gorm.DB, featureIDs []string) error {
	if len(featureIDs) == 0 {
		return nil
	}
	features := make([]domain.Feature, 0, len(featureIDs))
	for _, id := range featureIDs {
		features = append(features, domain.Feature{FeatureID: id})
	}
	return pkgdb.InsertIgnore(db.WithContext(ctx)).Create(&features).Error
}

func (r *repo) ReplaceFeatures(ctx context.Context, db *gorm.DB, productID string, featureIDs []string) error {
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&domain.ProductFeature{}).Error
	if err != nil {
		return err
	}
	if len(featureIDs) == 0 {
		return nil
	}
	links := make([]domain.ProductFeature, 0, len(featureIDs))
	for _, id := range featureIDs {
		links = append(links, domain.ProductFeature{ProductID: productID, FeatureID: id})
	}
	return db.WithContext(ctx).Create(&links).Error
}

type featureRow struct {
	ProductID   string
	FeatureID   string
	Description *string
}

func (r *repo) ListFeatures(ctx context.Context, db *gorm.DB, productIDs []string) (map[string][]domain.Feature, error) {
	out := make(map[string][]domain.Feature, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []featureRow
	err := db.WithContext(ctx).Raw(
		`SELECT pf.product_id, f.feature_id, f.description
		 FROM product_features pf
		 JOIN features f ON f.feature_id = pf.feature_id
		 WHERE pf.product_id IN ?
		 ORDER BY pf.product_id, f.feature_id`,
		productIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = append(out[row.ProductID], domain.Feature{
			FeatureID:   row.FeatureID,
			Description: row.Description,
		})
	}
	return out, nil
}
