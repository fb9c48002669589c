package service

import (
	"context"

	"github.com/railzwaylabs/stripesync/internal/config"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	"github.com/railzwaylabs/stripesync/internal/observability"
	"github.com/railzwaylabs/stripesync/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type PortalServiceParams struct {
	fx.In

	Logger    *zap.Logger
	Gateway   domain.Gateway
	Customers customerdomain.Service
	Config    *config.BillingConfigHolder
	Metrics   *observability.Metrics `optional:"true"`
}

type PortalServiceImpl struct {
	logger    *zap.Logger
	gateway   domain.Gateway
	customers customerdomain.Service
	cfg       *config.BillingConfigHolder
	metrics   *observability.Metrics
}

func NewPortalService(p PortalServiceParams) domain.PortalService {
	return &PortalServiceImpl{
		logger:    p.Logger.Named("payment.portal"),
		gateway:   p.Gateway,
		customers: p.Customers,
		cfg:       p.Config,
		metrics:   p.Metrics,
	}
}

func (s *PortalServiceImpl) CreateSession(ctx context.Context, userID int64) (*domain.PortalSession, error) {
	cfg := s.cfg.Get()

	user, err := s.customers.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	su, err := s.customers.ResolveUser(ctx, nil, customerdomain.ByUser(user))
	if err != nil {
		s.metrics.Session("portal", "failed")
		return nil, err
	}

	session, err := s.gateway.CreatePortalSession(ctx, domain.PortalSessionInput{
		CustomerID: su.Customer(),
		ReturnURL:  joinURL(cfg.FrontEndBaseURL, cfg.CustomerPortalReturnURLPath) + "/",
	})
	if err != nil {
		s.metrics.Session("portal", "failed")
		return nil, err
	}
	s.metrics.Session("portal", "created")
	s.logger.Debug("portal session created",
		zap.Int64("user_id", userID),
		zap.String("customer_id", su.Customer()),
	)
	return session, nil
}
