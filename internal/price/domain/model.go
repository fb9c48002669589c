package domain

import (
	"fmt"
	"time"

	productdomain "github.com/railzwaylabs/stripesync/internal/product/domain"
)

type Price struct {
	PriceID    string    `json:"price_id" gorm:"primaryKey;type:varchar(256)"`
	ProductID  string    `json:"product_id" gorm:"type:varchar(256);not null;index"`
	Nickname   *string   `json:"nickname,omitempty" gorm:"type:varchar(256)"`
	UnitAmount int64     `json:"price" gorm:"column:price;not null;default:0"`
	Freq       *string   `json:"freq,omitempty" gorm:"type:varchar(64);index:idx_prices_active_freq,priority:2"`
	Active     bool      `json:"active" gorm:"not null;default:true;index:idx_prices_active_freq,priority:1"`
	Currency   string    `json:"currency" gorm:"type:varchar(3);not null"`
	CreatedAt  time.Time `json:"-" gorm:"not null"`
	UpdatedAt  time.Time `json:"-" gorm:"not null"`
}

func (Price) TableName() string { return "prices" }

// Freq renders a recurring interval as "<interval>_<count>", e.g. "month_1".
func Freq(interval string, count int64) string {
	return fmt.Sprintf("%s_%d", interval, count)
}

// PriceView is a price with its product, as served to clients.
type PriceView struct {
	PriceID    string      `json:"price_id"`
	Nickname   *string     `json:"nickname,omitempty"`
	UnitAmount int64       `json:"price"`
	Freq       *string     `json:"freq,omitempty"`
	Currency   string      `json:"currency"`
	Product    ProductView `json:"product"`
}

type ProductView struct {
	ProductID   string                  `json:"product_id"`
	Name        string                  `json:"name"`
	Description *string                 `json:"description,omitempty"`
	Features    []productdomain.Feature `json:"features,omitempty"`
}
