package webhook

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ledger remembers which events were applied so redeliveries are no-ops.
type Ledger interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, event *domain.Event, payload []byte) error
}

const redisKeyPrefix = "stripesync:webhook:event:"

type redisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) Ledger {
	return &redisLedger{client: client, ttl: ttl}
}

func (l *redisLedger) Processed(ctx context.Context, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, redisKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *redisLedger) MarkProcessed(ctx context.Context, event *domain.Event, _ []byte) error {
	return l.client.SetNX(ctx, redisKeyPrefix+event.ID, event.Type, l.ttl).Err()
}

// dbLedger keeps the trail in payment_events. It is used when redis is not
// configured.
type dbLedger struct {
	db    *gorm.DB
	genID *snowflake.Node
	repo  domain.EventRepository
	now   func() time.Time
}

func NewDBLedger(db *gorm.DB, genID *snowflake.Node, repo domain.EventRepository) Ledger {
	return &dbLedger{
		db:    db,
		genID: genID,
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (l *dbLedger) Processed(ctx context.Context, eventID string) (bool, error) {
	rec, err := l.repo.FindByProviderEventID(ctx, l.db, eventID)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.ProcessedAt != nil, nil
}

func (l *dbLedger) MarkProcessed(ctx context.Context, event *domain.Event, payload []byte) error {
	now := l.now()
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := l.repo.Record(ctx, tx, &domain.EventRecord{
			ID:              l.genID.Generate().Int64(),
			Provider:        "stripe",
			ProviderEventID: event.ID,
			EventType:       event.Type,
			Payload:         datatypes.JSON(payload),
			ReceivedAt:      now,
			ProcessedAt:     &now,
		})
		if err != nil || created {
			return err
		}
		return l.repo.MarkProcessed(ctx, tx, event.ID, now)
	})
}
