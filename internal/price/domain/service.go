package domain

import (
	"context"
	"errors"

	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
)

type Service interface {
	SyncPrices(ctx context.Context, req SyncRequest) (*SyncResult, error)
	ListAvailablePrices(ctx context.Context, expandFeatures bool) ([]PriceView, error)
	ListSubscribablePrices(ctx context.Context, userID int64) ([]PriceView, error)
}

type SyncRequest struct {
	Limit         int64
	StartingAfter string
	// Page replaces the remote fetch when set.
	Page *paymentdomain.PricePage
}

type SyncResult struct {
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id,omitempty"`
}

var (
	ErrInvalidLimit   = errors.New("invalid_limit")
	ErrUnknownProduct = errors.New("unknown_product")
)

const MaxPageSize = 100
