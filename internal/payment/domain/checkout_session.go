package domain

import "context"

type Discount struct {
	Coupon        string
	PromotionCode string
}

type CheckoutSessionInput struct {
	CustomerID          string
	PriceID             string
	Quantity            int64
	Mode                string
	PaymentMethodTypes  []string
	SuccessURL          string
	CancelURL           string
	Metadata            map[string]string
	AllowPromotionCodes bool
	Discounts           []Discount
	TrialPeriodDays     int64
}

type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url,omitempty"`
}

type PortalSessionInput struct {
	CustomerID string
	ReturnURL  string
}

type PortalSession struct {
	ID  string `json:"-"`
	URL string `json:"url"`
}

// CheckoutService opens hosted checkout sessions for a local owner.
type CheckoutService interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

// PortalService opens billing portal sessions for a local user.
type PortalService interface {
	CreateSession(ctx context.Context, userID int64) (*PortalSession, error)
}

// CheckoutRequest is made on behalf of ActorUserID. OwnerType and OwnerID
// name the billing owner; empty means the actor.
type CheckoutRequest struct {
	ActorUserID int64
	PriceID     string
	OwnerType   string
	OwnerID     string
}

type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url,omitempty"`
}
