package domain

import (
	"context"
	"errors"

	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
)

type Service interface {
	SyncProducts(ctx context.Context, req SyncRequest) (*SyncResult, error)
}

type SyncRequest struct {
	Limit         int64
	StartingAfter string
	// Page replaces the remote fetch when set.
	Page *paymentdomain.ProductPage
}

type SyncResult struct {
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id,omitempty"`
}

var ErrInvalidLimit = errors.New("invalid_limit")

const MaxPageSize = 100
