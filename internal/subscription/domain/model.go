package domain

import (
	"time"
)

// Subscription mirrors a remote subscription. Its owner is either a legacy
// StripeUser or a billing account, never both.
type Subscription struct {
	SubscriptionID     string     `json:"subscription_id" gorm:"primaryKey;type:varchar(256)"`
	StripeUserID       *int64     `json:"stripe_user_id,omitempty" gorm:"index:idx_subscriptions_user_status,priority:1"`
	BillingAccountType *string    `json:"billing_account_type,omitempty" gorm:"type:varchar(128);index:idx_subscriptions_account_status,priority:1"`
	BillingAccountID   *int64     `json:"billing_account_id,omitempty" gorm:"index:idx_subscriptions_account_status,priority:2"`
	Status             string     `json:"status" gorm:"type:varchar(64);not null;index:idx_subscriptions_user_status,priority:2;index:idx_subscriptions_account_status,priority:3"`
	PeriodStart        *time.Time `json:"period_start"`
	PeriodEnd          *time.Time `json:"period_end"`
	TrialStart         *time.Time `json:"trial_start"`
	TrialEnd           *time.Time `json:"trial_end"`
	CancelAt           *time.Time `json:"cancel_at"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end" gorm:"not null;default:false"`
	EndedAt            *time.Time `json:"ended_at"`
	CreatedAt          time.Time  `json:"-" gorm:"not null"`
	UpdatedAt          time.Time  `json:"-" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Owner returns the owner recorded on the row.
func (s *Subscription) Owner() Owner {
	if s.StripeUserID != nil {
		return UserOwner(*s.StripeUserID)
	}
	if s.BillingAccountType != nil && s.BillingAccountID != nil {
		return AccountOwner(*s.BillingAccountType, *s.BillingAccountID)
	}
	return Owner{}
}

type SubscriptionItem struct {
	SubItemID      string `json:"sub_item_id" gorm:"primaryKey;type:varchar(256)"`
	SubscriptionID string `json:"subscription_id" gorm:"type:varchar(256);not null;index"`
	PriceID        string `json:"price_id" gorm:"type:varchar(256);not null;index"`
	Quantity       int64  `json:"quantity" gorm:"not null;default:1"`
}

func (SubscriptionItem) TableName() string { return "subscription_items" }

// Owner is the holder of a subscription: a StripeUser in legacy mode, a row
// of the billing-account table otherwise.
type Owner struct {
	StripeUserID *int64
	AccountTable string
	AccountID    int64
}

func UserOwner(userID int64) Owner {
	return Owner{StripeUserID: &userID}
}

func AccountOwner(table string, id int64) Owner {
	return Owner{AccountTable: table, AccountID: id}
}

func (o Owner) IsZero() bool {
	return o.StripeUserID == nil && o.AccountTable == ""
}

// Assign writes the owner columns, clearing the other association.
func (o Owner) Assign(sub *Subscription) {
	if o.StripeUserID != nil {
		id := *o.StripeUserID
		sub.StripeUserID = &id
		sub.BillingAccountType = nil
		sub.BillingAccountID = nil
		return
	}
	table, id := o.AccountTable, o.AccountID
	sub.StripeUserID = nil
	sub.BillingAccountType = &table
	sub.BillingAccountID = &id
}

const (
	StatusActive            = "active"
	StatusPastDue           = "past_due"
	StatusUnpaid            = "unpaid"
	StatusCanceled          = "canceled"
	StatusIncomplete        = "incomplete"
	StatusIncompleteExpired = "incomplete_expired"
	StatusTrialing          = "trialing"
	StatusPaused            = "paused"

	// List filters accepted by the remote API besides the statuses.
	StatusFilterAll   = "all"
	StatusFilterEnded = "ended"
)

// AccessGrantingStatuses are the statuses that entitle the owner to the
// subscribed products.
var AccessGrantingStatuses = []string{StatusTrialing, StatusActive, StatusPastDue}

func GrantsAccess(status string) bool {
	for _, s := range AccessGrantingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ValidStatusFilter reports whether status may be passed to a bulk pull.
func ValidStatusFilter(status string) bool {
	switch status {
	case "", StatusActive, StatusPastDue, StatusUnpaid, StatusCanceled,
		StatusIncomplete, StatusIncompleteExpired, StatusTrialing,
		StatusFilterAll, StatusFilterEnded:
		return true
	}
	return false
}
