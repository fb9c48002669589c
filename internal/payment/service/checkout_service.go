package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	billingaccountdomain "github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	billingaccountservice "github.com/railzwaylabs/stripesync/internal/billingaccount/service"
	"github.com/railzwaylabs/stripesync/internal/config"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	"github.com/railzwaylabs/stripesync/internal/observability"
	"github.com/railzwaylabs/stripesync/internal/payment/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// checkoutSessionPlaceholder is expanded by the provider to the session id.
const checkoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

type CheckoutServiceParams struct {
	fx.In

	DB            *gorm.DB
	Logger        *zap.Logger
	Gateway       domain.Gateway
	Customers     customerdomain.Service
	Accounts      billingaccountdomain.Service
	Subscriptions subscriptiondomain.Service
	Config        *config.BillingConfigHolder
	Metrics       *observability.Metrics `optional:"true"`
}

type CheckoutServiceImpl struct {
	db            *gorm.DB
	logger        *zap.Logger
	gateway       domain.Gateway
	customers     customerdomain.Service
	accounts      billingaccountdomain.Service
	subscriptions subscriptiondomain.Service
	cfg           *config.BillingConfigHolder
	metrics       *observability.Metrics
}

func NewCheckoutService(p CheckoutServiceParams) domain.CheckoutService {
	return &CheckoutServiceImpl{
		db:            p.DB,
		logger:        p.Logger.Named("payment.checkout"),
		gateway:       p.Gateway,
		customers:     p.Customers,
		accounts:      p.Accounts,
		subscriptions: p.Subscriptions,
		cfg:           p.Config,
		metrics:       p.Metrics,
	}
}

// CreateSession opens a subscription checkout for the price. With billing
// accounts enabled only the account's billing manager may check out, and a
// refused request leaves no trace.
func (s *CheckoutServiceImpl) CreateSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	priceID := strings.TrimSpace(req.PriceID)
	if priceID == "" {
		return nil, domain.ErrInvalidPriceID
	}
	cfg := s.cfg.Get()

	user, err := s.customers.GetUser(ctx, req.ActorUserID)
	if err != nil {
		return nil, err
	}

	input := domain.CheckoutSessionInput{
		PriceID:            priceID,
		Quantity:           cfg.DefaultSubscriptionQuantity,
		Mode:               cfg.DefaultCheckoutMode,
		PaymentMethodTypes: cfg.DefaultPaymentMethodTypes,
		SuccessURL:         joinURL(cfg.FrontEndBaseURL, cfg.CheckoutSuccessURLPath) + "?session=" + checkoutSessionPlaceholder,
		CancelURL:          joinURL(cfg.FrontEndBaseURL, cfg.CheckoutCancelURLPath),
	}
	if len(cfg.DefaultDiscounts) > 0 {
		for _, d := range cfg.DefaultDiscounts {
			input.Discounts = append(input.Discounts, domain.Discount{Coupon: d.Coupon, PromotionCode: d.PromotionCode})
		}
	} else {
		input.AllowPromotionCodes = cfg.AllowPromotionCodes
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			owner    billingaccountdomain.OwnerRef
			subOwner subscriptiondomain.Owner
		)

		if !s.accounts.Enabled() {
			su, err := s.customers.ResolveUser(ctx, tx, customerdomain.ByUser(user))
			if err != nil {
				return err
			}
			input.CustomerID = su.Customer()
			owner = billingaccountdomain.OwnerRef{Type: billingaccountdomain.OwnerTypeUser, ID: user.ID}
			subOwner = subscriptiondomain.UserOwner(user.ID)
		} else {
			ref := billingaccountdomain.OwnerRef{Type: billingaccountdomain.OwnerTypeUser, ID: user.ID}
			explicit, ok, err := billingaccountservice.ParseOwnerRef(req.OwnerType, req.OwnerID)
			if err != nil {
				return err
			}
			if ok {
				ref = explicit
			}

			owner, err = s.accounts.ResolveOwner(ctx, tx, ref)
			if err != nil {
				return err
			}
			acct, err := s.accounts.GetOrCreate(ctx, tx, owner, user.ID)
			if err != nil {
				return err
			}
			if !acct.CanManageBilling(user.ID) {
				return fmt.Errorf("%w: user %d on %s %d", billingaccountdomain.ErrNotBillingManager, user.ID, owner.Type, owner.ID)
			}
			if input.CustomerID, err = s.accounts.EnsureRemoteCustomer(ctx, tx, acct, user.Email, owner); err != nil {
				return err
			}
			if acct.Seats != nil && *acct.Seats > 0 {
				input.Quantity = *acct.Seats
			}
			subOwner = subscriptiondomain.AccountOwner(s.accounts.Model().Table, acct.ID)
		}

		if cfg.NewUserFreeTrialDays > 0 {
			has, err := s.subscriptions.HasSubscriptions(ctx, tx, subOwner)
			if err != nil {
				return err
			}
			if !has {
				input.TrialPeriodDays = cfg.NewUserFreeTrialDays
			}
		}

		input.Metadata = map[string]string{
			domain.MetadataOwnerType: owner.Type,
			domain.MetadataOwnerID:   strconv.FormatInt(owner.ID, 10),
		}
		return nil
	})
	if err != nil {
		outcome := "failed"
		if errors.Is(err, billingaccountdomain.ErrNotBillingManager) {
			outcome = "forbidden"
		}
		s.metrics.Session("checkout", outcome)
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, input)
	if err != nil {
		s.metrics.Session("checkout", "failed")
		s.logger.Warn("checkout session failed",
			zap.Int64("user_id", user.ID),
			zap.String("price_id", priceID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.Session("checkout", "created")
	s.logger.Info("checkout session created",
		zap.Int64("user_id", user.ID),
		zap.String("customer_id", input.CustomerID),
		zap.String("price_id", priceID),
		zap.Int64("quantity", input.Quantity),
		zap.Int64("trial_days", input.TrialPeriodDays),
	)
	return &domain.CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Trim(path, "/")
}
