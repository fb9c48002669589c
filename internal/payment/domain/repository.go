package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// EventRepository stores the webhook delivery trail.
type EventRepository interface {
	Record(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindByProviderEventID(ctx context.Context, db *gorm.DB, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, providerEventID string, at time.Time) error
}
