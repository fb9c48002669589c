package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Product struct {
	ProductID   string            `json:"product_id" gorm:"primaryKey;type:varchar(256)"`
	Active      bool              `json:"active" gorm:"not null;default:true"`
	Name        string            `json:"name" gorm:"type:varchar(256);not null"`
	Description *string           `json:"description,omitempty" gorm:"type:varchar(1024)"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"-" gorm:"not null"`
	UpdatedAt   time.Time         `json:"-" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

type Feature struct {
	FeatureID   string  `json:"feature_id" gorm:"primaryKey;type:varchar(64)"`
	Description *string `json:"description,omitempty" gorm:"type:varchar(256)"`
}

func (Feature) TableName() string { return "features" }

// ProductFeature links a product to one feature. The pair is unique.
type ProductFeature struct {
	ProductID string `gorm:"primaryKey;type:varchar(256)"`
	FeatureID string `gorm:"primaryKey;type:varchar(64)"`
}

func (ProductFeature) TableName() string { return "product_features" }

// MetadataFeatures is the product metadata key listing feature ids.
const MetadataFeatures = "features"
