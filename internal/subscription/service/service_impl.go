package service

import (
	"context"
	"errors"
	"fmt"

	billingaccountdomain "github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	billingaccountservice "github.com/railzwaylabs/stripesync/internal/billingaccount/service"
	"github.com/railzwaylabs/stripesync/internal/clock"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	"github.com/railzwaylabs/stripesync/internal/observability"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	productdomain "github.com/railzwaylabs/stripesync/internal/product/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/railzwaylabs/stripesync/internal/subscription")

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Repo         subscriptiondomain.Repository
	CustomerRepo customerdomain.Repository
	ProductRepo  productdomain.Repository
	Customers    customerdomain.Service
	Accounts     billingaccountdomain.Service
	Gateway      paymentdomain.Gateway
	Metrics      *observability.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock        clock.Clock
	repo         subscriptiondomain.Repository
	customerRepo customerdomain.Repository
	productRepo  productdomain.Repository

	customers customerdomain.Service
	accounts  billingaccountdomain.Service
	gateway   paymentdomain.Gateway
	metrics   *observability.Metrics
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		clock:        p.Clock,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		productRepo:  p.ProductRepo,

		customers: p.Customers,
		accounts:  p.Accounts,
		gateway:   p.Gateway,
		metrics:   p.Metrics,
	}
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db == nil {
		return s.db
	}
	return db
}

// SyncSubscriptions mirrors one page of remote subscriptions. Each
// subscription is applied in its own transaction; the caller pages with
// LastID.
func (s *Service) SyncSubscriptions(ctx context.Context, req subscriptiondomain.SyncRequest) (*subscriptiondomain.SyncResult, error) {
	if req.Limit < 1 || req.Limit > subscriptiondomain.MaxPageSize {
		return nil, subscriptiondomain.ErrInvalidLimit
	}
	if !subscriptiondomain.ValidStatusFilter(req.Status) {
		return nil, fmt.Errorf("%w: %q", subscriptiondomain.ErrInvalidStatus, req.Status)
	}

	ctx, span := tracer.Start(ctx, "subscription.sync")
	defer span.End()

	page := req.Page
	if page == nil {
		var err error
		page, err = s.gateway.ListSubscriptions(ctx, paymentdomain.ListSubscriptionsInput{
			ListInput: paymentdomain.ListInput{Limit: req.Limit, StartingAfter: req.StartingAfter},
			Status:    req.Status,
		})
		if err != nil {
			return nil, err
		}
	}

	result := &subscriptiondomain.SyncResult{HasMore: page.HasMore}
	for _, remote := range page.Data {
		result.LastID = remote.ID

		res, err := s.Apply(ctx, nil, remote, nil)
		if err != nil {
			if s.skippable(err, req.MissingUsers) {
				result.Skipped++
				s.metrics.Sync("subscription", "skipped")
				s.log.Warn("subscription skipped",
					zap.String("subscription_id", remote.ID),
					zap.String("customer_id", remote.CustomerID),
					zap.Error(err),
				)
				continue
			}
			s.metrics.Sync("subscription", "failed")
			return result, fmt.Errorf("sync subscription %s: %w", remote.ID, err)
		}
		if res.Created {
			result.Created++
		} else {
			result.Updated++
		}
		s.metrics.Sync("subscription", "applied")
	}

	span.SetAttributes(
		attribute.Int("subscriptions.created", result.Created),
		attribute.Int("subscriptions.updated", result.Updated),
		attribute.Int("subscriptions.skipped", result.Skipped),
	)
	s.log.Info("subscriptions synced",
		zap.String("status", req.Status),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Bool("has_more", result.HasMore),
	)
	return result, nil
}

func (s *Service) skippable(err error, mode subscriptiondomain.MissingUserMode) bool {
	switch {
	case errors.Is(err, customerdomain.ErrUserCreationDisabled):
		return mode == subscriptiondomain.SkipMissingUser
	case billingaccountdomain.IsResolutionError(err),
		errors.Is(err, customerdomain.ErrMissingEmail),
		errors.Is(err, customerdomain.ErrConflictingCustomerMapping):
		return true
	}
	return false
}

// Apply writes the remote subscription and its items as they are now. hint
// carries owner metadata that takes precedence over the subscription's own.
func (s *Service) Apply(ctx context.Context, db *gorm.DB, remote paymentdomain.Subscription, hint map[string]string) (*subscriptiondomain.ApplyResult, error) {
	if remote.ID == "" {
		return nil, subscriptiondomain.ErrInvalidSubscription
	}
	if remote.CustomerID == "" {
		return nil, fmt.Errorf("%w: subscription %s", subscriptiondomain.ErrMissingCustomer, remote.ID)
	}

	ctx, span := tracer.Start(ctx, "subscription.apply", trace.WithAttributes(
		attribute.String("subscription.id", remote.ID),
		attribute.String("subscription.status", remote.Status),
	))
	defer span.End()

	var out *subscriptiondomain.ApplyResult
	err := s.conn(db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := s.resolveOwner(ctx, tx, remote, hint)
		if err != nil {
			return err
		}

		existing, err := s.repo.FindByID(ctx, tx, remote.ID)
		if err != nil {
			return err
		}

		now := s.clock.Now(ctx)
		sub := &subscriptiondomain.Subscription{
			SubscriptionID:    remote.ID,
			Status:            remote.Status,
			PeriodStart:       remote.CurrentPeriodStart,
			PeriodEnd:         remote.CurrentPeriodEnd,
			TrialStart:        remote.TrialStart,
			TrialEnd:          remote.TrialEnd,
			CancelAt:          remote.CancelAt,
			CancelAtPeriodEnd: remote.CancelAtPeriodEnd,
			EndedAt:           remote.EndedAt,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if existing != nil {
			sub.CreatedAt = existing.CreatedAt
		}
		owner.Assign(sub)

		if err := s.repo.Upsert(ctx, tx, sub); err != nil {
			return err
		}

		items := make([]subscriptiondomain.SubscriptionItem, 0, len(remote.Items))
		for _, it := range remote.Items {
			items = append(items, subscriptiondomain.SubscriptionItem{
				SubItemID:      it.ID,
				SubscriptionID: remote.ID,
				PriceID:        it.PriceID,
				Quantity:       it.Quantity,
			})
		}
		if err := s.repo.ReplaceItems(ctx, tx, remote.ID, items); err != nil {
			return err
		}

		out = &subscriptiondomain.ApplyResult{Subscription: sub, Created: existing == nil}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.log.Debug("subscription applied",
		zap.String("subscription_id", remote.ID),
		zap.String("status", remote.Status),
		zap.Bool("created", out.Created),
	)
	return out, nil
}

// resolveOwner maps the customer to its StripeUser first, creating the user
// when configured. With billing accounts enabled the account then comes from
// the metadata hint, the customer id, or the user as manager. Without an
// account the StripeUser owns the subscription.
//
// A user already linked to another customer only fails the subscription
// when no billing account claims it.
func (s *Service) resolveOwner(ctx context.Context, tx *gorm.DB, remote paymentdomain.Subscription, hint map[string]string) (subscriptiondomain.Owner, error) {
	su, userErr := s.customers.ResolveUser(ctx, tx, customerdomain.ByCustomerID(remote.CustomerID))
	if !s.accounts.Enabled() {
		if userErr != nil {
			return subscriptiondomain.Owner{}, userErr
		}
		return subscriptiondomain.UserOwner(su.UserID), nil
	}
	if userErr != nil && !errors.Is(userErr, customerdomain.ErrConflictingCustomerMapping) {
		return subscriptiondomain.Owner{}, userErr
	}

	acct, err := s.accountFromMetadata(ctx, tx, remote.CustomerID, hint, remote.Metadata)
	if err != nil {
		return subscriptiondomain.Owner{}, err
	}
	if acct == nil {
		var manager *int64
		if su != nil {
			manager = &su.UserID
		}
		if acct, err = s.accounts.FindForCustomer(ctx, tx, remote.CustomerID, manager); err != nil {
			return subscriptiondomain.Owner{}, err
		}
	}
	if acct == nil {
		if userErr != nil {
			return subscriptiondomain.Owner{}, userErr
		}
		return subscriptiondomain.UserOwner(su.UserID), nil
	}

	if err := s.accounts.LinkRemote(ctx, tx, acct, remote.CustomerID, remote.ID); err != nil {
		return subscriptiondomain.Owner{}, err
	}
	return subscriptiondomain.AccountOwner(s.accounts.Model().Table, acct.ID), nil
}

func (s *Service) accountFromMetadata(ctx context.Context, tx *gorm.DB, customerID string, sources ...map[string]string) (*billingaccountdomain.BillingAccount, error) {
	for _, md := range sources {
		ref, ok, err := billingaccountservice.ParseOwnerRef(
			md[paymentdomain.MetadataOwnerType],
			md[paymentdomain.MetadataOwnerID],
		)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		owner, err := s.accounts.ResolveOwner(ctx, tx, ref)
		if err != nil {
			return nil, err
		}
		return s.accounts.Find(ctx, tx, owner, customerID)
	}
	return nil, nil
}

func (s *Service) HasSubscriptions(ctx context.Context, db *gorm.DB, owner subscriptiondomain.Owner) (bool, error) {
	return s.repo.ExistsForOwner(ctx, s.conn(db), owner)
}

func (s *Service) ownerQuery(ctx context.Context, userID int64, current bool) (subscriptiondomain.OwnerQuery, error) {
	uid := userID
	q := subscriptiondomain.OwnerQuery{StripeUserID: &uid}
	if current {
		q.Statuses = subscriptiondomain.AccessGrantingStatuses
	}
	if !s.accounts.Enabled() {
		return q, nil
	}

	accounts, err := s.accounts.ListManaged(ctx, s.db, userID)
	if err != nil {
		return q, err
	}
	q.AccountTable = s.accounts.Model().Table
	for _, acct := range accounts {
		q.AccountIDs = append(q.AccountIDs, acct.ID)
	}
	return q, nil
}

// ListUserSubscriptions returns the user's own subscriptions and those of
// the billing accounts it manages.
func (s *Service) ListUserSubscriptions(ctx context.Context, userID int64, current bool) ([]subscriptiondomain.Subscription, error) {
	q, err := s.ownerQuery(ctx, userID, current)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, q)
}

func (s *Service) ListUserSubscriptionItems(ctx context.Context, userID int64, current bool) ([]subscriptiondomain.ItemView, error) {
	subs, err := s.ListUserSubscriptions(ctx, userID, current)
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.SubscriptionID)
	}

	items, err := s.repo.ListItems(ctx, s.db, subscriptiondomain.ItemQuery{SubscriptionIDs: ids})
	if err != nil {
		return nil, err
	}

	productIDs := make([]string, 0, len(items))
	for _, it := range items {
		productIDs = append(productIDs, it.Price.Product.ProductID)
	}
	features, err := s.productRepo.ListFeatures(ctx, s.db, productIDs)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Price.Product.Features = features[items[i].Price.Product.ProductID]
	}
	return items, nil
}

// ListUserSubscriptionProducts returns the distinct product ids behind the
// user's subscription items.
func (s *Service) ListUserSubscriptionProducts(ctx context.Context, userID int64, current bool) ([]string, error) {
	items, err := s.ListUserSubscriptionItems(ctx, userID, current)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		id := it.Price.Product.ProductID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// MigrateLegacyBilling moves every StripeUser onto a billing account owned
// by that user and re-homes its subscriptions. Only generic associations can
// hold a user owner; for other models the legacy subscriptions are
// reported for manual migration.
func (s *Service) MigrateLegacyBilling(ctx context.Context) (*subscriptiondomain.MigrationResult, error) {
	model := s.accounts.Model()
	if !model.Enabled() {
		return nil, subscriptiondomain.ErrBillingAccountsDisabled
	}

	result := &subscriptiondomain.MigrationResult{}
	if !model.GenericRelation {
		legacy, err := s.repo.ListLegacy(ctx, s.db)
		if err != nil {
			return nil, err
		}
		for _, sub := range legacy {
			result.ManualSubscriptions = append(result.ManualSubscriptions, sub.SubscriptionID)
		}
		if len(legacy) > 0 {
			s.log.Warn("legacy subscriptions need manual migration",
				zap.String("billing_account_table", model.Table),
				zap.Int("count", len(legacy)),
			)
		}
		return result, nil
	}

	stripeUsers, err := s.customerRepo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for _, su := range stripeUsers {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			owner := billingaccountdomain.OwnerRef{Type: billingaccountdomain.OwnerTypeUser, ID: su.UserID}
			acct, err := s.accounts.GetOrCreate(ctx, tx, owner, su.UserID)
			if err != nil {
				return err
			}
			if err := s.accounts.LinkRemote(ctx, tx, acct, su.Customer(), ""); err != nil {
				return err
			}
			moved, err := s.repo.MoveToAccount(ctx, tx, su.UserID, model.Table, acct.ID)
			if err != nil {
				return err
			}
			result.AccountsLinked++
			result.SubscriptionsMoved += int(moved)
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("migrate user %d: %w", su.UserID, err)
		}
	}

	s.log.Info("legacy billing migrated",
		zap.Int("accounts_linked", result.AccountsLinked),
		zap.Int("subscriptions_moved", result.SubscriptionsMoved),
	)
	return result, nil
}
