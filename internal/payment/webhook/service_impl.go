package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingaccountdomain "github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	billingaccountservice "github.com/railzwaylabs/stripesync/internal/billingaccount/service"
	"github.com/railzwaylabs/stripesync/internal/config"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	"github.com/railzwaylabs/stripesync/internal/observability"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Adapter       paymentdomain.WebhookAdapter
	Gateway       paymentdomain.Gateway
	Events        paymentdomain.EventRepository
	Subscriptions subscriptiondomain.Service
	Customers     customerdomain.Service
	Accounts      billingaccountdomain.Service
	Cfg           config.Config
	Redis         *redis.Client          `optional:"true"`
	Metrics       *observability.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	adapter       paymentdomain.WebhookAdapter
	gateway       paymentdomain.Gateway
	subscriptions subscriptiondomain.Service
	customers     customerdomain.Service
	accounts      billingaccountdomain.Service
	ledger        Ledger
	metrics       *observability.Metrics
}

func NewService(p Params) paymentdomain.Service {
	var ledger Ledger
	if p.Redis != nil {
		ledger = NewRedisLedger(p.Redis, p.Cfg.Webhook.ReplayTTL)
	} else {
		ledger = NewDBLedger(p.DB, p.GenID, p.Events)
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.webhook"),
		adapter:       p.Adapter,
		gateway:       p.Gateway,
		subscriptions: p.Subscriptions,
		customers:     p.Customers,
		accounts:      p.Accounts,
		ledger:        ledger,
		metrics:       p.Metrics,
	}
}

// IngestWebhook verifies and applies one delivery. A nil error means the
// delivery may be acknowledged.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	if err := s.adapter.Verify(ctx, payload, headers); err != nil {
		s.metrics.Webhook("unknown", "rejected")
		return err
	}

	event, err := s.adapter.Parse(ctx, payload)
	if err != nil {
		s.metrics.Webhook("unknown", "rejected")
		return err
	}
	log := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	done, err := s.ledger.Processed(ctx, event.ID)
	if err != nil {
		return err
	}
	if done {
		s.metrics.Webhook(event.Type, "duplicate")
		log.Debug("webhook event already processed")
		return nil
	}

	handled, err := s.dispatch(ctx, event)
	switch {
	case err == nil:
	case billingaccountdomain.IsResolutionError(err),
		errors.Is(err, subscriptiondomain.ErrMissingCustomer):
		s.metrics.Webhook(event.Type, "unresolved")
		log.Warn("webhook event not resolvable, acknowledged", zap.Error(err))
	default:
		s.metrics.Webhook(event.Type, "failed")
		log.Error("webhook processing failed", zap.Error(err))
		return err
	}

	if err := s.ledger.MarkProcessed(ctx, event, maskPayload(payload)); err != nil {
		log.Warn("webhook event not recorded", zap.Error(err))
	}
	if handled {
		s.metrics.Webhook(event.Type, "processed")
		log.Info("webhook event processed",
			zap.String("subscription_id", event.SubscriptionID),
			zap.String("customer_id", event.CustomerID),
		)
	} else {
		s.metrics.Webhook(event.Type, "ignored")
		log.Debug("webhook event ignored")
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *paymentdomain.Event) (bool, error) {
	switch event.Type {
	case paymentdomain.EventTypeSubscriptionCreated,
		paymentdomain.EventTypeSubscriptionUpdated,
		paymentdomain.EventTypeSubscriptionDeleted:
		if event.Subscription == nil {
			return false, paymentdomain.ErrInvalidEvent
		}
		_, err := s.subscriptions.Apply(ctx, nil, *event.Subscription, nil)
		return true, err

	case paymentdomain.EventTypeCheckoutSessionCompleted,
		paymentdomain.EventTypeInvoicePaymentSucceeded:
		if event.SubscriptionID != "" {
			remote, err := s.gateway.GetSubscription(ctx, event.SubscriptionID)
			if err != nil {
				return false, fmt.Errorf("fetch subscription %s: %w", event.SubscriptionID, err)
			}
			_, err = s.subscriptions.Apply(ctx, nil, *remote, event.Metadata)
			return true, err
		}
		if event.CustomerID == "" {
			return false, nil
		}
		return true, s.linkCustomer(ctx, event)
	}
	return false, nil
}

// linkCustomer records the customer of a payment that carries no
// subscription, on the hinted billing account or on the customer's user.
// An account already storing the customer stands in for a hinted owner that
// has none.
func (s *Service) linkCustomer(ctx context.Context, event *paymentdomain.Event) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !s.accounts.Enabled() {
			_, err := s.customers.ResolveUser(ctx, tx, customerdomain.ByCustomerID(event.CustomerID))
			return err
		}

		ref, ok, err := billingaccountservice.ParseOwnerRef(
			event.Metadata[paymentdomain.MetadataOwnerType],
			event.Metadata[paymentdomain.MetadataOwnerID],
		)
		if err != nil || !ok {
			return err
		}
		owner, err := s.accounts.ResolveOwner(ctx, tx, ref)
		if err != nil {
			return err
		}
		acct, err := s.accounts.Find(ctx, tx, owner, event.CustomerID)
		if err != nil {
			return err
		}
		if acct == nil {
			return fmt.Errorf("%w: %s %d", billingaccountdomain.ErrUnresolvableBillingAccount, owner.Type, owner.ID)
		}
		return s.accounts.LinkRemote(ctx, tx, acct, event.CustomerID, "")
	})
}

// maskPayload blanks payment instrument details before the payload is kept.
func maskPayload(raw []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	maskMap(obj)
	masked, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return masked
}

func maskMap(m map[string]any) {
	for k, v := range m {
		switch strings.ToLower(k) {
		case "card", "billing_details", "shipping_details", "payment_method_details":
			m[k] = "***"
		default:
			if nested, ok := v.(map[string]any); ok {
				maskMap(nested)
			} else if arr, ok := v.([]any); ok {
				for _, item := range arr {
					if itemMap, ok := item.(map[string]any); ok {
						maskMap(itemMap)
					}
				}
			}
		}
	}
}
