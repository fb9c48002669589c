package domain

import (
	"time"

	"gorm.io/datatypes"
)

// EventRecord is the durable trail of webhook deliveries. A row with
// ProcessedAt set marks the event as applied.
type EventRecord struct {
	ID              int64          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider        string         `json:"provider" gorm:"type:varchar(32);not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	EventType       string         `json:"event_type" gorm:"type:varchar(128);not null"`
	Payload         datatypes.JSON `json:"payload"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutSessionCompleted = "checkout.session.completed"
	EventTypeInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventTypeSubscriptionCreated      = "customer.subscription.created"
	EventTypeSubscriptionUpdated      = "customer.subscription.updated"
	EventTypeSubscriptionDeleted      = "customer.subscription.deleted"
)

// Metadata keys written on checkout sessions and read back from webhooks.
const (
	MetadataOwnerType = "owner_type"
	MetadataOwnerID   = "owner_id"
)

// Event is a verified provider event reduced to the fields the dispatcher
// routes on. Subscription is set for customer.subscription.* events.
type Event struct {
	ID             string
	Type           string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
	Subscription   *Subscription
	CreatedAt      time.Time
}

type Customer struct {
	ID          string
	Email       string
	Name        string
	Description string
	Phone       string
	Metadata    map[string]string
}

// Attribute returns a customer attribute by its API name.
func (c Customer) Attribute(name string) string {
	switch name {
	case "id":
		return c.ID
	case "email":
		return c.Email
	case "name":
		return c.Name
	case "description":
		return c.Description
	case "phone":
		return c.Phone
	}
	return ""
}

type CustomerPage struct {
	Data    []Customer
	HasMore bool
}

type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAt           *time.Time
	CancelAtPeriodEnd  bool
	EndedAt            *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	Metadata           map[string]string
	Items              []SubscriptionItem
}

type SubscriptionItem struct {
	ID       string
	PriceID  string
	Quantity int64
}

type SubscriptionPage struct {
	Data    []Subscription
	HasMore bool
}

type Product struct {
	ID          string
	Name        string
	Description string
	Active      bool
	Metadata    map[string]string
}

type ProductPage struct {
	Data    []Product
	HasMore bool
}

type Recurring struct {
	Interval      string
	IntervalCount int64
}

type Price struct {
	ID         string
	ProductID  string
	Nickname   string
	Currency   string
	UnitAmount int64
	Active     bool
	Recurring  *Recurring
}

type PricePage struct {
	Data    []Price
	HasMore bool
}

type ListInput struct {
	Limit         int64
	StartingAfter string
}

type ListCustomersInput struct {
	ListInput
	Email string
}

type ListSubscriptionsInput struct {
	ListInput
	Status string
}

type CreateCustomerInput struct {
	Email          string
	Metadata       map[string]string
	IdempotencyKey string
}
