package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/railzwaylabs/stripesync/internal/clock"
	"github.com/railzwaylabs/stripesync/internal/observability"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/railzwaylabs/stripesync/internal/price/domain"
	productdomain "github.com/railzwaylabs/stripesync/internal/product/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Repo          domain.Repository
	ProductRepo   productdomain.Repository
	Subscriptions subscriptiondomain.Service
	Gateway       paymentdomain.Gateway
	Metrics       *observability.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	repo          domain.Repository
	productRepo   productdomain.Repository
	subscriptions subscriptiondomain.Service
	gateway       paymentdomain.Gateway
	metrics       *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("price.service"),
		clock:         p.Clock,
		repo:          p.Repo,
		productRepo:   p.ProductRepo,
		subscriptions: p.Subscriptions,
		gateway:       p.Gateway,
		metrics:       p.Metrics,
	}
}

// SyncPrices upserts one page of remote prices. Prices of products that have
// not been synced are skipped.
func (s *Service) SyncPrices(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
	if req.Limit < 1 || req.Limit > domain.MaxPageSize {
		return nil, domain.ErrInvalidLimit
	}

	page := req.Page
	if page == nil {
		var err error
		page, err = s.gateway.ListPrices(ctx, paymentdomain.ListInput{
			Limit:         req.Limit,
			StartingAfter: req.StartingAfter,
		})
		if err != nil {
			return nil, err
		}
	}

	result := &domain.SyncResult{HasMore: page.HasMore}
	for _, remote := range page.Data {
		result.LastID = remote.ID

		created, err := s.apply(ctx, remote)
		switch {
		case err == nil:
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			s.metrics.Sync("price", "applied")
		case errors.Is(err, domain.ErrUnknownProduct):
			result.Skipped++
			s.metrics.Sync("price", "skipped")
			s.log.Warn("price skipped",
				zap.String("price_id", remote.ID),
				zap.String("product_id", remote.ProductID),
				zap.Error(err),
			)
		default:
			s.metrics.Sync("price", "failed")
			return result, fmt.Errorf("sync price %s: %w", remote.ID, err)
		}
	}

	s.log.Info("prices synced",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Bool("has_more", result.HasMore),
	)
	return result, nil
}

func (s *Service) apply(ctx context.Context, remote paymentdomain.Price) (bool, error) {
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.productRepo.FindByID(ctx, tx, remote.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("%w: %s", domain.ErrUnknownProduct, remote.ProductID)
		}

		existing, err := s.repo.FindByID(ctx, tx, remote.ID)
		if err != nil {
			return err
		}
		created = existing == nil

		now := s.clock.Now(ctx)
		price := &domain.Price{
			PriceID:    remote.ID,
			ProductID:  remote.ProductID,
			UnitAmount: remote.UnitAmount,
			Active:     remote.Active,
			Currency:   remote.Currency,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if remote.Nickname != "" {
			nickname := remote.Nickname
			price.Nickname = &nickname
		}
		if remote.Recurring != nil {
			freq := domain.Freq(remote.Recurring.Interval, remote.Recurring.IntervalCount)
			price.Freq = &freq
		}
		return s.repo.Upsert(ctx, tx, price)
	})
	return created, err
}

func (s *Service) ListAvailablePrices(ctx context.Context, expandFeatures bool) ([]domain.PriceView, error) {
	return s.list(ctx, domain.ListOptions{}, expandFeatures)
}

// ListSubscribablePrices leaves out products the user already holds a
// current subscription to.
func (s *Service) ListSubscribablePrices(ctx context.Context, userID int64) ([]domain.PriceView, error) {
	held, err := s.subscriptions.ListUserSubscriptionProducts(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, domain.ListOptions{ExcludeProductIDs: held}, true)
}

func (s *Service) list(ctx context.Context, opts domain.ListOptions, expandFeatures bool) ([]domain.PriceView, error) {
	prices, err := s.repo.ListAvailable(ctx, s.db, opts)
	if err != nil || !expandFeatures || len(prices) == 0 {
		return prices, err
	}

	productIDs := make([]string, 0, len(prices))
	for _, p := range prices {
		productIDs = append(productIDs, p.Product.ProductID)
	}
	features, err := s.productRepo.ListFeatures(ctx, s.db, productIDs)
	if err != nil {
		return nil, err
	}
	for i := range prices {
		prices[i].Product.Features = features[prices[i].Product.ProductID]
	}
	return prices, nil
}
