package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	billingaccountdomain "github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	"github.com/railzwaylabs/stripesync/internal/config"
	"github.com/railzwaylabs/stripesync/internal/customer/domain"
	"github.com/railzwaylabs/stripesync/internal/observability"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/railzwaylabs/stripesync/internal/customer")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	UserRepo userdomain.Repository
	Accounts billingaccountdomain.Service
	Gateway  paymentdomain.Gateway
	Config   *config.BillingConfigHolder
	Metrics  *observability.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	userRepo userdomain.Repository
	accounts billingaccountdomain.Service
	gateway  paymentdomain.Gateway
	cfg      *config.BillingConfigHolder
	metrics  *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("customer.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		accounts: p.Accounts,
		gateway:  p.Gateway,
		cfg:      p.Config,
		metrics:  p.Metrics,
	}
}

// linkResult records what a resolution wrote.
type linkResult struct {
	stripeUser  *domain.StripeUser
	userCreated bool
	linkCreated bool
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db == nil {
		return s.db
	}
	return db
}

func userModel(cfg config.BillingConfig) userdomain.Model {
	return userdomain.Model{
		Table:      cfg.UserModel.Table,
		EmailField: cfg.UserModel.EmailField,
	}
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*userdomain.User, error) {
	u, err := s.userRepo.FindByID(ctx, s.db, userModel(s.cfg.Get()), userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, userdomain.ErrUserNotFound
	}
	return u, nil
}

// ResolveUser returns the StripeUser for the lookup, creating the row and,
// when needed, the remote customer.
func (s *Service) ResolveUser(ctx context.Context, db *gorm.DB, lookup domain.UserLookup) (*domain.StripeUser, error) {
	var out *domain.StripeUser
	err := s.conn(db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg := s.cfg.Get()

		switch {
		case lookup.CustomerID() != "":
			if lookup.User() != nil || lookup.UserID() != 0 {
				return domain.ErrInvalidLookup
			}
			res, err := s.resolveByCustomerID(ctx, tx, cfg, lookup.CustomerID())
			if err != nil {
				return err
			}
			out = res.stripeUser

		case lookup.User() != nil:
			su, err := s.resolveByUserID(ctx, tx, lookup.User().ID, lookup.User().Email)
			if err != nil {
				return err
			}
			out = su

		case lookup.UserID() != 0:
			email := lookup.Email()
			if email == "" {
				u, err := s.userRepo.FindByID(ctx, tx, userModel(cfg), lookup.UserID())
				if err != nil {
					return err
				}
				if u == nil {
					return fmt.Errorf("%w: %d", userdomain.ErrUserNotFound, lookup.UserID())
				}
				email = u.Email
			}
			su, err := s.resolveByUserID(ctx, tx, lookup.UserID(), email)
			if err != nil {
				return err
			}
			out = su

		default:
			return domain.ErrInvalidLookup
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) resolveByUserID(ctx context.Context, tx *gorm.DB, userID int64, email string) (*domain.StripeUser, error) {
	su := &domain.StripeUser{UserID: userID}
	created, err := s.repo.InsertIfAbsent(ctx, tx, su)
	if err != nil {
		return nil, err
	}
	if !created {
		if su, err = s.repo.FindByUserID(ctx, tx, userID); err != nil {
			return nil, err
		}
		if su == nil {
			return nil, fmt.Errorf("stripe user %d vanished after insert", userID)
		}
	}
	if su.Customer() != "" {
		return su, nil
	}

	cus, err := s.GetOrCreateRemoteCustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.SetCustomerIDIfEmpty(ctx, tx, userID, cus.ID)
	if err != nil {
		return nil, err
	}
	if !updated {
		return s.repo.FindByUserID(ctx, tx, userID)
	}
	su.CustomerID = &cus.ID
	return su, nil
}

func (s *Service) resolveByCustomerID(ctx context.Context, tx *gorm.DB, cfg config.BillingConfig, customerID string) (*linkResult, error) {
	su, err := s.repo.FindByCustomerID(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if su != nil {
		return &linkResult{stripeUser: su}, nil
	}

	cus, err := s.gateway.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.fromRemoteCustomer(ctx, tx, cfg, *cus)
}

// ResolveUserFromRemoteCustomer maps an already fetched customer to its
// local user. An existing mapping to a different customer is reported,
// never overwritten.
func (s *Service) ResolveUserFromRemoteCustomer(ctx context.Context, db *gorm.DB, customer paymentdomain.Customer) (*domain.StripeUser, error) {
	var out *domain.StripeUser
	err := s.conn(db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.fromRemoteCustomer(ctx, tx, s.cfg.Get(), customer)
		if err != nil {
			return err
		}
		out = res.stripeUser
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) fromRemoteCustomer(ctx context.Context, tx *gorm.DB, cfg config.BillingConfig, customer paymentdomain.Customer) (*linkResult, error) {
	su, err := s.repo.FindByCustomerID(ctx, tx, customer.ID)
	if err != nil {
		return nil, err
	}
	if su != nil {
		return &linkResult{stripeUser: su}, nil
	}

	user, userCreated, err := s.findOrCreateUser(ctx, tx, cfg, customer)
	if err != nil {
		return nil, err
	}

	customerID := customer.ID
	su = &domain.StripeUser{UserID: user.ID, CustomerID: &customerID}
	created, err := s.repo.InsertIfAbsent(ctx, tx, su)
	if err != nil {
		return nil, err
	}
	res := &linkResult{stripeUser: su, userCreated: userCreated, linkCreated: created}
	if created {
		return res, nil
	}

	existing, err := s.repo.FindByUserID(ctx, tx, user.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("stripe user %d vanished after insert", user.ID)
	}
	switch current := existing.Customer(); {
	case current == "":
		if _, err := s.repo.SetCustomerIDIfEmpty(ctx, tx, user.ID, customer.ID); err != nil {
			return nil, err
		}
		existing.CustomerID = &customerID
	case current != customer.ID:
		return nil, fmt.Errorf("%w: user %d is linked to %s, not %s",
			domain.ErrConflictingCustomerMapping, user.ID, current, customer.ID)
	}
	res.stripeUser = existing
	return res, nil
}

// findOrCreateUser matches the customer to a local user by email, creating
// one from the attribute map when creation is enabled.
func (s *Service) findOrCreateUser(ctx context.Context, tx *gorm.DB, cfg config.BillingConfig, customer paymentdomain.Customer) (*userdomain.User, bool, error) {
	email := strings.TrimSpace(customer.Email)
	if email == "" {
		return nil, false, fmt.Errorf("%w: customer %s", domain.ErrMissingEmail, customer.ID)
	}
	model := userModel(cfg)

	u, err := s.userRepo.FindByEmail(ctx, tx, model, email)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, nil
	}

	attrs := cfg.UserModel.CreateDefaultsAttributeMap
	if len(attrs) == 0 {
		return nil, false, fmt.Errorf("%w: no user for %s", domain.ErrUserCreationDisabled, email)
	}

	values := make(map[string]any, len(attrs)+1)
	for column, attr := range attrs {
		values[column] = customer.Attribute(attr)
	}
	values[model.EmailField] = email

	id := s.genID.Generate().Int64()
	if err := s.userRepo.Insert(ctx, tx, model, id, values); err != nil {
		return nil, false, fmt.Errorf("create user for %s: %w", customer.ID, err)
	}
	s.log.Info("user created from customer",
		zap.Int64("user_id", id),
		zap.String("customer_id", customer.ID),
	)
	return &userdomain.User{ID: id, Email: email}, true, nil
}

// GetOrCreateRemoteCustomerByEmail returns the first remote customer with the
// email, creating one if none exists.
func (s *Service) GetOrCreateRemoteCustomerByEmail(ctx context.Context, email string) (*paymentdomain.Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domain.ErrMissingEmail
	}

	page, err := s.gateway.ListCustomers(ctx, paymentdomain.ListCustomersInput{
		ListInput: paymentdomain.ListInput{Limit: 1},
		Email:     email,
	})
	if err != nil {
		return nil, err
	}
	if page != nil && len(page.Data) > 0 {
		return &page.Data[0], nil
	}

	return s.gateway.CreateCustomer(ctx, paymentdomain.CreateCustomerInput{
		Email:          email,
		IdempotencyKey: "stripesync:customer:email:" + strings.ToLower(email),
	})
}

// SyncCustomers reconciles one page of remote customers with local users.
// Each customer is applied in its own transaction.
func (s *Service) SyncCustomers(ctx context.Context, req domain.CustomerSyncRequest) (*domain.CustomerSyncResult, error) {
	if req.Limit < 1 || req.Limit > domain.MaxPageSize {
		return nil, domain.ErrInvalidLimit
	}
	ctx, span := tracer.Start(ctx, "customer.sync")
	defer span.End()

	page := req.Page
	if page == nil {
		var err error
		page, err = s.gateway.ListCustomers(ctx, paymentdomain.ListCustomersInput{
			ListInput: paymentdomain.ListInput{Limit: req.Limit, StartingAfter: req.StartingAfter},
		})
		if err != nil {
			return nil, err
		}
	}

	result := &domain.CustomerSyncResult{HasMore: page.HasMore}
	for _, customer := range page.Data {
		result.Processed++
		result.LastID = customer.ID

		if strings.TrimSpace(customer.Email) == "" {
			result.Skipped++
			s.metrics.Sync("customer", "skipped")
			s.log.Debug("customer without email skipped", zap.String("customer_id", customer.ID))
			continue
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res, err := s.fromRemoteCustomer(ctx, tx, s.cfg.Get(), customer)
			if err != nil {
				return err
			}
			if res.userCreated {
				result.UsersCreated++
			}
			if res.linkCreated {
				result.StripeUsersCreated++
			}
			linked, err := s.accounts.LinkManagerCustomer(ctx, tx, res.stripeUser.UserID, customer.ID)
			if err != nil {
				return err
			}
			if linked {
				result.AccountsLinked++
			}
			return nil
		})
		switch {
		case err == nil:
			s.metrics.Sync("customer", "applied")
		case errors.Is(err, domain.ErrUserCreationDisabled), errors.Is(err, domain.ErrConflictingCustomerMapping):
			result.Skipped++
			s.metrics.Sync("customer", "skipped")
			s.log.Warn("customer skipped", zap.String("customer_id", customer.ID), zap.Error(err))
		default:
			s.metrics.Sync("customer", "failed")
			return result, fmt.Errorf("sync customer %s: %w", customer.ID, err)
		}
	}

	span.SetAttributes(
		attribute.Int("customers.processed", result.Processed),
		attribute.Int("customers.skipped", result.Skipped),
	)
	s.log.Info("customers synced",
		zap.Int("processed", result.Processed),
		zap.Int("users_created", result.UsersCreated),
		zap.Int("stripe_users_created", result.StripeUsersCreated),
		zap.Int("accounts_linked", result.AccountsLinked),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
