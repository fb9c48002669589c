package domain

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/railzwaylabs/stripesync/internal/config"
)

// BillingAccount is the projection of a billing-account row the sync flows
// need, whatever table it lives in.
type BillingAccount struct {
	ID                   int64   `json:"id"`
	OwnerType            *string `json:"owner_type,omitempty"`
	OwnerID              *int64  `json:"owner_id,omitempty"`
	StripeCustomerID     *string `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string `json:"stripe_subscription_id,omitempty"`
	ManagerUserID        *int64  `json:"manager_user_id,omitempty"`
	Seats                *int64  `json:"seats,omitempty"`
}

// CanManageBilling reports whether userID is the account's billing manager.
func (a *BillingAccount) CanManageBilling(userID int64) bool {
	return a != nil && a.ManagerUserID != nil && *a.ManagerUserID == userID
}

func (a *BillingAccount) CustomerID() string {
	if a == nil || a.StripeCustomerID == nil {
		return ""
	}
	return *a.StripeCustomerID
}

func (a *BillingAccount) SubscriptionID() string {
	if a == nil || a.StripeSubscriptionID == nil {
		return ""
	}
	return *a.StripeSubscriptionID
}

// Record is the bundled billing_accounts table. It uses the generic owner
// association.
type Record struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement:false"`
	Name                 string    `gorm:"type:varchar(255);not null;default:''"`
	OwnerType            *string   `gorm:"type:varchar(128);uniqueIndex:ux_billing_accounts_owner,priority:1"`
	OwnerID              *int64    `gorm:"uniqueIndex:ux_billing_accounts_owner,priority:2"`
	StripeCustomerID     *string   `gorm:"type:varchar(128);index"`
	StripeSubscriptionID *string   `gorm:"type:varchar(256)"`
	ManagerUserID        *int64    `gorm:"index"`
	Seats                *int64    `gorm:""`
	CreatedAt            time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Record) TableName() string { return "billing_accounts" }

// OwnerRef points at the entity that owns a billing account.
type OwnerRef struct {
	Type string
	ID   int64
}

// Model describes the configured billing-account table.
type Model struct {
	Table           string
	GenericRelation bool
	ForeignKeys     []string
	SeatsColumn     string
	OwnerTypes      map[string]string
}

func ModelFromConfig(billing config.BillingConfig) Model {
	ba := billing.BillingAccount
	m := Model{
		Table:           ba.Table,
		GenericRelation: ba.GenericRelation,
		ForeignKeys:     ba.ForeignKeys,
		SeatsColumn:     ba.SeatsColumn,
		OwnerTypes:      make(map[string]string, len(ba.OwnerTypes)+1),
	}
	for name, table := range ba.OwnerTypes {
		m.OwnerTypes[NormalizeOwnerType(name)] = table
	}
	if _, ok := m.OwnerTypes[OwnerTypeUser]; !ok || billing.UserModel.Table != "users" {
		m.OwnerTypes[OwnerTypeUser] = billing.UserModel.Table
	}
	return m
}

func (m Model) Enabled() bool {
	return m.Table != ""
}

// DeclaresForeignKey reports whether name is one of the model's owner columns.
func (m Model) DeclaresForeignKey(name string) bool {
	for _, fk := range m.ForeignKeys {
		if fk == name {
			return true
		}
	}
	return false
}

const OwnerTypeUser = "user"

// NormalizeOwnerType folds "tests.Company", "Company" and "company" to one key.
func NormalizeOwnerType(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "."); i >= 0 {
		raw = raw[i+1:]
	}
	return slug.Make(raw)
}
