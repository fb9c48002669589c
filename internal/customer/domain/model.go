package domain

import (
	"time"
)

// StripeUser links a local user to its remote customer. There is at most one
// row per user.
type StripeUser struct {
	UserID     int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false;index:idx_stripe_users_user_customer,priority:1"`
	CustomerID *string   `json:"customer_id" gorm:"type:varchar(128);index:idx_stripe_users_user_customer,priority:2;index:idx_stripe_users_customer"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null"`
}

func (StripeUser) TableName() string { return "stripe_users" }

func (s *StripeUser) Customer() string {
	if s == nil || s.CustomerID == nil {
		return ""
	}
	return *s.CustomerID
}
