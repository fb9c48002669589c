package repository

import (
	"context"
	"time"

	"github.com/railzwaylabs/stripesync/internal/payment/domain"
	pkgdb "github.com/railzwaylabs/stripesync/pkg/db"
	"gorm.io/gorm"
)

type eventRepo struct{}

func Provide() domain.EventRepository {
	return &eventRepo{}
}

// Record inserts the delivery unless the event id is already known.
func (r *eventRepo) Record(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	result := pkgdb.InsertIgnore(db.WithContext(ctx)).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *eventRepo) FindByProviderEventID(ctx context.Context, db *gorm.DB, providerEventID string) (*domain.EventRecord, error) {
	var rec domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, payload, received_at, processed_at
		 FROM payment_events WHERE provider_event_id = ? LIMIT 1`,
		providerEventID,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *eventRepo) MarkProcessed(ctx context.Context, db *gorm.DB, providerEventID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events SET processed_at = ? WHERE provider_event_id = ?`,
		at,
		providerEventID,
	).Error
}
