package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	"github.com/railzwaylabs/stripesync/internal/config"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	UserRepo userdomain.Repository
	Gateway  paymentdomain.Gateway
	Config   *config.BillingConfigHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	userRepo userdomain.Repository
	gateway  paymentdomain.Gateway
	cfg      *config.BillingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billingaccount.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		gateway:  p.Gateway,
		cfg:      p.Config,
	}
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db == nil {
		return s.db
	}
	return db
}

func (s *Service) Model() domain.Model {
	return domain.ModelFromConfig(s.cfg.Get())
}

func (s *Service) Enabled() bool {
	return s.Model().Enabled()
}

// strategy returns the first strategy the model supports.
func (s *Service) strategy(model domain.Model) domain.Strategy {
	for _, st := range s.repo.Strategies() {
		if st.Supports(model) {
			return st
		}
	}
	return nil
}

// ResolveOwner validates an owner reference against the declared owner types
// and returns it with the canonical type name.
func (s *Service) ResolveOwner(ctx context.Context, db *gorm.DB, ref domain.OwnerRef) (domain.OwnerRef, error) {
	model := s.Model()
	typ := domain.NormalizeOwnerType(ref.Type)
	if typ == "" || ref.ID <= 0 {
		return domain.OwnerRef{}, domain.ErrInvalidOwner
	}

	table, ok := model.OwnerTypes[typ]
	if !ok {
		return domain.OwnerRef{}, fmt.Errorf("%w: %q", domain.ErrUnknownOwnerType, ref.Type)
	}

	exists, err := s.userRepo.RowExists(ctx, s.conn(db), table, ref.ID)
	if err != nil {
		return domain.OwnerRef{}, err
	}
	if !exists {
		return domain.OwnerRef{}, fmt.Errorf("%w: %s %d", domain.ErrOwnerNotFound, typ, ref.ID)
	}
	return domain.OwnerRef{Type: typ, ID: ref.ID}, nil
}

// ParseOwnerRef builds an owner reference from string metadata.
func ParseOwnerRef(ownerType, ownerID string) (domain.OwnerRef, bool, error) {
	ownerType = strings.TrimSpace(ownerType)
	ownerID = strings.TrimSpace(ownerID)
	if ownerType == "" && ownerID == "" {
		return domain.OwnerRef{}, false, nil
	}
	id, err := strconv.ParseInt(ownerID, 10, 64)
	if err != nil || ownerType == "" {
		return domain.OwnerRef{}, false, domain.ErrInvalidOwner
	}
	return domain.OwnerRef{Type: ownerType, ID: id}, true, nil
}

// Find looks the owner's account up through the strategies, then falls back
// to the account already storing customerID when one is given.
func (s *Service) Find(ctx context.Context, db *gorm.DB, owner domain.OwnerRef, customerID string) (*domain.BillingAccount, error) {
	model := s.Model()
	if !model.Enabled() {
		return nil, nil
	}
	for _, st := range s.repo.Strategies() {
		if !st.Supports(model) {
			continue
		}
		acct, err := st.Find(ctx, s.conn(db), model, owner)
		if err != nil {
			return nil, err
		}
		if acct != nil {
			return acct, nil
		}
	}
	return s.FindByCustomerID(ctx, db, customerID)
}

func (s *Service) FindByCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*domain.BillingAccount, error) {
	model := s.Model()
	if !model.Enabled() || strings.TrimSpace(customerID) == "" {
		return nil, nil
	}
	return s.repo.FindOne(ctx, s.conn(db), model,
		clause.Eq{Column: clause.Column{Name: "stripe_customer_id"}, Value: customerID},
	)
}

// FindForCustomer looks the account up by customer id, then by the manager
// user when one is given.
func (s *Service) FindForCustomer(ctx context.Context, db *gorm.DB, customerID string, managerUserID *int64) (*domain.BillingAccount, error) {
	acct, err := s.FindByCustomerID(ctx, db, customerID)
	if err != nil || acct != nil {
		return acct, err
	}
	if managerUserID == nil {
		return nil, nil
	}
	return s.findByManager(ctx, db, *managerUserID)
}

func (s *Service) findByManager(ctx context.Context, db *gorm.DB, userID int64) (*domain.BillingAccount, error) {
	model := s.Model()
	if !model.Enabled() {
		return nil, nil
	}
	return s.repo.FindOne(ctx, s.conn(db), model,
		clause.Eq{Column: clause.Column{Name: "manager_user_id"}, Value: userID},
	)
}

// ListManaged returns every account the user manages.
func (s *Service) ListManaged(ctx context.Context, db *gorm.DB, managerUserID int64) ([]domain.BillingAccount, error) {
	model := s.Model()
	if !model.Enabled() {
		return nil, nil
	}
	return s.repo.FindAll(ctx, s.conn(db), model,
		clause.Eq{Column: clause.Column{Name: "manager_user_id"}, Value: managerUserID},
	)
}

// GetOrCreate returns the owner's account, creating it at most once even
// under concurrent callers. A user owning its own account becomes its
// manager.
func (s *Service) GetOrCreate(ctx context.Context, db *gorm.DB, owner domain.OwnerRef, actorUserID int64) (*domain.BillingAccount, error) {
	model := s.Model()
	if !model.Enabled() {
		return nil, nil
	}
	st := s.strategy(model)
	if st == nil {
		return nil, domain.ErrUnresolvableBillingAccount
	}
	conn := s.conn(db)

	acct, err := st.Find(ctx, conn, model, owner)
	if err != nil || acct != nil {
		return acct, err
	}

	na := domain.NewAccount{ID: s.genID.Generate().Int64()}
	if owner.Type == domain.OwnerTypeUser && owner.ID == actorUserID {
		manager := actorUserID
		na.ManagerUserID = &manager
	}

	created, err := st.Insert(ctx, conn, model, owner, na)
	if err != nil {
		return nil, err
	}

	acct, err = st.Find(ctx, conn, model, owner)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, domain.ErrUnresolvableBillingAccount
	}
	if created {
		s.log.Info("billing account created",
			zap.String("strategy", st.Name()),
			zap.String("owner_type", owner.Type),
			zap.Int64("owner_id", owner.ID),
			zap.Int64("billing_account_id", acct.ID),
		)
	}
	return acct, nil
}

// EnsureRemoteCustomer returns the account's customer id, creating the
// remote customer when the account has none. A concurrently stored id wins
// over the one created here.
func (s *Service) EnsureRemoteCustomer(ctx context.Context, db *gorm.DB, acct *domain.BillingAccount, email string, owner domain.OwnerRef) (string, error) {
	if acct == nil {
		return "", domain.ErrUnresolvableBillingAccount
	}
	if id := acct.CustomerID(); id != "" {
		return id, nil
	}
	model := s.Model()

	cus, err := s.gateway.CreateCustomer(ctx, paymentdomain.CreateCustomerInput{
		Email: email,
		Metadata: map[string]string{
			paymentdomain.MetadataOwnerType: owner.Type,
			paymentdomain.MetadataOwnerID:   strconv.FormatInt(owner.ID, 10),
		},
		IdempotencyKey: fmt.Sprintf("stripesync:%s:%d:customer", model.Table, acct.ID),
	})
	if err != nil {
		return "", err
	}

	conn := s.conn(db)
	updated, err := s.repo.SetCustomerIDIfEmpty(ctx, conn, model, acct.ID, cus.ID)
	if err != nil {
		return "", err
	}
	if !updated {
		fresh, err := s.repo.FindOne(ctx, conn, model, clause.Eq{Column: clause.Column{Name: "id"}, Value: acct.ID})
		if err != nil {
			return "", err
		}
		if fresh != nil && fresh.CustomerID() != "" {
			s.log.Warn("billing account customer set concurrently",
				zap.Int64("billing_account_id", acct.ID),
				zap.String("kept_customer_id", fresh.CustomerID()),
				zap.String("discarded_customer_id", cus.ID),
			)
			acct.StripeCustomerID = fresh.StripeCustomerID
			return fresh.CustomerID(), nil
		}
	}
	acct.StripeCustomerID = &cus.ID
	return cus.ID, nil
}

// LinkRemote records the remote ids on the account. A stored customer id is
// never replaced; the subscription id follows the latest subscription.
func (s *Service) LinkRemote(ctx context.Context, db *gorm.DB, acct *domain.BillingAccount, customerID, subscriptionID string) error {
	if acct == nil {
		return nil
	}
	model := s.Model()
	conn := s.conn(db)

	if customerID != "" {
		switch current := acct.CustomerID(); {
		case current == "":
			if _, err := s.repo.SetCustomerIDIfEmpty(ctx, conn, model, acct.ID, customerID); err != nil {
				return err
			}
			acct.StripeCustomerID = &customerID
		case current != customerID:
			s.log.Warn("billing account keeps existing customer",
				zap.Int64("billing_account_id", acct.ID),
				zap.String("stored_customer_id", current),
				zap.String("remote_customer_id", customerID),
			)
		}
	}

	if subscriptionID != "" && acct.SubscriptionID() != subscriptionID {
		if prev := acct.SubscriptionID(); prev != "" {
			s.log.Info("billing account subscription changed",
				zap.Int64("billing_account_id", acct.ID),
				zap.String("from", prev),
				zap.String("to", subscriptionID),
			)
		}
		if err := s.repo.SetSubscriptionID(ctx, conn, model, acct.ID, subscriptionID); err != nil {
			return err
		}
		acct.StripeSubscriptionID = &subscriptionID
	}
	return nil
}

// LinkManagerCustomer stores customerID on the account managed by the user
// when that account has no customer yet.
func (s *Service) LinkManagerCustomer(ctx context.Context, db *gorm.DB, managerUserID int64, customerID string) (bool, error) {
	acct, err := s.findByManager(ctx, db, managerUserID)
	if err != nil || acct == nil {
		return false, err
	}
	if acct.CustomerID() != "" {
		return false, nil
	}
	return s.repo.SetCustomerIDIfEmpty(ctx, s.conn(db), s.Model(), acct.ID, customerID)
}
