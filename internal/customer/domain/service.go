package domain

import (
	"context"
	"errors"

	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	"gorm.io/gorm"
)

// Service maps local users to remote customers. Methods taking a *gorm.DB
// join that transaction; nil uses the service's own handle.
type Service interface {
	GetUser(ctx context.Context, userID int64) (*userdomain.User, error)
	ResolveUser(ctx context.Context, db *gorm.DB, lookup UserLookup) (*StripeUser, error)
	ResolveUserFromRemoteCustomer(ctx context.Context, db *gorm.DB, customer paymentdomain.Customer) (*StripeUser, error)
	GetOrCreateRemoteCustomerByEmail(ctx context.Context, email string) (*paymentdomain.Customer, error)
	SyncCustomers(ctx context.Context, req CustomerSyncRequest) (*CustomerSyncResult, error)
}

// UserLookup identifies a user in one of four ways. Build it with ByUser,
// ByUserID, ByUserIDAndEmail or ByCustomerID.
type UserLookup struct {
	user       *userdomain.User
	userID     int64
	email      string
	customerID string
}

func ByUser(u *userdomain.User) UserLookup {
	return UserLookup{user: u}
}

func ByUserID(id int64) UserLookup {
	return UserLookup{userID: id}
}

func ByUserIDAndEmail(id int64, email string) UserLookup {
	return UserLookup{userID: id, email: email}
}

func ByCustomerID(customerID string) UserLookup {
	return UserLookup{customerID: customerID}
}

func (l UserLookup) User() *userdomain.User { return l.user }
func (l UserLookup) UserID() int64          { return l.userID }
func (l UserLookup) Email() string          { return l.email }
func (l UserLookup) CustomerID() string     { return l.customerID }

type CustomerSyncRequest struct {
	Limit         int64
	StartingAfter string
	// Page replaces the remote fetch when set.
	Page *paymentdomain.CustomerPage
}

type CustomerSyncResult struct {
	Processed          int    `json:"processed"`
	UsersCreated       int    `json:"users_created"`
	StripeUsersCreated int    `json:"stripe_users_created"`
	AccountsLinked     int    `json:"accounts_linked"`
	Skipped            int    `json:"skipped"`
	HasMore            bool   `json:"has_more"`
	LastID             string `json:"last_id,omitempty"`
}

var (
	ErrUserCreationDisabled       = errors.New("user_creation_disabled")
	ErrConflictingCustomerMapping = errors.New("conflicting_customer_mapping")
	ErrMissingEmail               = errors.New("missing_email")
	ErrInvalidLookup              = errors.New("invalid_user_lookup")
	ErrInvalidLimit               = errors.New("invalid_limit")
)

const MaxPageSize = 100
