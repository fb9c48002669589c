package stripe

import (
	"encoding/json"
	"time"

	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
)

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// expandable is a reference the API sends either as an id or as the full
// object when expanded.
type expandable struct {
	ID string
}

func (e *expandable) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &e.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.ID = obj.ID
	return nil
}

type stripeList[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

type stripeCustomer struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Phone       string            `json:"phone"`
	Metadata    map[string]string `json:"metadata"`
	Deleted     bool              `json:"deleted"`
}

type stripeSubscription struct {
	ID                 string                   `json:"id"`
	Customer           expandable               `json:"customer"`
	Status             string                   `json:"status"`
	CurrentPeriodStart int64                    `json:"current_period_start"`
	CurrentPeriodEnd   int64                    `json:"current_period_end"`
	CancelAt           int64                    `json:"cancel_at"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
	EndedAt            int64                    `json:"ended_at"`
	TrialStart         int64                    `json:"trial_start"`
	TrialEnd           int64                    `json:"trial_end"`
	Metadata           map[string]string        `json:"metadata"`
	Items              stripeList[stripeSubItem] `json:"items"`
}

type stripeSubItem struct {
	ID                 string     `json:"id"`
	Price              expandable `json:"price"`
	Quantity           int64      `json:"quantity"`
	CurrentPeriodStart int64      `json:"current_period_start"`
	CurrentPeriodEnd   int64      `json:"current_period_end"`
}

type stripeCheckoutSession struct {
	ID           string            `json:"id"`
	Customer     expandable        `json:"customer"`
	Subscription expandable        `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeSubscriptionDetails struct {
	Subscription expandable        `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID                  string                     `json:"id"`
	Customer            expandable                 `json:"customer"`
	Subscription        expandable                 `json:"subscription"`
	Metadata            map[string]string          `json:"metadata"`
	SubscriptionDetails *stripeSubscriptionDetails `json:"subscription_details"`
	Parent              *struct {
		SubscriptionDetails *stripeSubscriptionDetails `json:"subscription_details"`
	} `json:"parent"`
}

type stripeProduct struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Active      bool              `json:"active"`
	Metadata    map[string]string `json:"metadata"`
}

type stripePrice struct {
	ID         string     `json:"id"`
	Product    expandable `json:"product"`
	Nickname   string     `json:"nickname"`
	Currency   string     `json:"currency"`
	UnitAmount int64      `json:"unit_amount"`
	Active     bool       `json:"active"`
	Recurring  *struct {
		Interval      string `json:"interval"`
		IntervalCount int64  `json:"interval_count"`
	} `json:"recurring"`
}

func (c stripeCustomer) toDomain() paymentdomain.Customer {
	return paymentdomain.Customer{
		ID:          c.ID,
		Email:       c.Email,
		Name:        c.Name,
		Description: c.Description,
		Phone:       c.Phone,
		Metadata:    c.Metadata,
	}
}

func (s stripeSubscription) toDomain() paymentdomain.Subscription {
	out := paymentdomain.Subscription{
		ID:                s.ID,
		CustomerID:        s.Customer.ID,
		Status:            s.Status,
		CancelAt:          unixTime(s.CancelAt),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		EndedAt:           unixTime(s.EndedAt),
		TrialStart:        unixTime(s.TrialStart),
		TrialEnd:          unixTime(s.TrialEnd),
		Metadata:          s.Metadata,
	}

	start, end := s.CurrentPeriodStart, s.CurrentPeriodEnd
	for _, item := range s.Items.Data {
		if start == 0 {
			start = item.CurrentPeriodStart
		}
		if end == 0 {
			end = item.CurrentPeriodEnd
		}
		out.Items = append(out.Items, paymentdomain.SubscriptionItem{
			ID:       item.ID,
			PriceID:  item.Price.ID,
			Quantity: item.Quantity,
		})
	}
	out.CurrentPeriodStart = unixTime(start)
	out.CurrentPeriodEnd = unixTime(end)
	return out
}

func (p stripeProduct) toDomain() paymentdomain.Product {
	return paymentdomain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		Metadata:    p.Metadata,
	}
}

func (p stripePrice) toDomain() paymentdomain.Price {
	out := paymentdomain.Price{
		ID:         p.ID,
		ProductID:  p.Product.ID,
		Nickname:   p.Nickname,
		Currency:   p.Currency,
		UnitAmount: p.UnitAmount,
		Active:     p.Active,
	}
	if p.Recurring != nil {
		out.Recurring = &paymentdomain.Recurring{
			Interval:      p.Recurring.Interval,
			IntervalCount: p.Recurring.IntervalCount,
		}
	}
	return out
}

// DecodeCustomerList reads a customer list response, e.g. a saved API page.
func DecodeCustomerList(raw []byte) (*paymentdomain.CustomerPage, error) {
	var list stripeList[stripeCustomer]
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	page := &paymentdomain.CustomerPage{HasMore: list.HasMore}
	for _, c := range list.Data {
		if c.Deleted {
			continue
		}
		page.Data = append(page.Data, c.toDomain())
	}
	return page, nil
}

func DecodeSubscriptionList(raw []byte) (*paymentdomain.SubscriptionPage, error) {
	var list stripeList[stripeSubscription]
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	page := &paymentdomain.SubscriptionPage{HasMore: list.HasMore}
	for _, s := range list.Data {
		page.Data = append(page.Data, s.toDomain())
	}
	return page, nil
}

func DecodeSubscription(raw []byte) (*paymentdomain.Subscription, error) {
	var s stripeSubscription
	if err := json.Unmarshal(raw, &s); err != nil || s.ID == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}
	out := s.toDomain()
	return &out, nil
}

func DecodeProductList(raw []byte) (*paymentdomain.ProductPage, error) {
	var list stripeList[stripeProduct]
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	page := &paymentdomain.ProductPage{HasMore: list.HasMore}
	for _, p := range list.Data {
		page.Data = append(page.Data, p.toDomain())
	}
	return page, nil
}

func DecodePriceList(raw []byte) (*paymentdomain.PricePage, error) {
	var list stripeList[stripePrice]
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	page := &paymentdomain.PricePage{HasMore: list.HasMore}
	for _, p := range list.Data {
		page.Data = append(page.Data, p.toDomain())
	}
	return page, nil
}

func unixTime(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
