package repository

import (
	"context"

	"github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// genericStrategy matches on the (owner_type, owner_id) pair.
type genericStrategy struct {
	repo *repo
}

func (s *genericStrategy) Name() string { return "generic" }

func (s *genericStrategy) Supports(model domain.Model) bool {
	return model.GenericRelation
}

func (s *genericStrategy) Find(ctx context.Context, db *gorm.DB, model domain.Model, owner domain.OwnerRef) (*domain.BillingAccount, error) {
	return s.repo.FindOne(ctx, db, model,
		clause.Eq{Column: clause.Column{Name: "owner_type"}, Value: owner.Type},
		clause.Eq{Column: clause.Column{Name: "owner_id"}, Value: owner.ID},
	)
}

func (s *genericStrategy) Insert(ctx context.Context, db *gorm.DB, model domain.Model, owner domain.OwnerRef, acct domain.NewAccount) (bool, error) {
	values := newAccountValues(acct)
	values["owner_type"] = owner.Type
	values["owner_id"] = owner.ID
	return s.repo.InsertIgnore(ctx, db, model, stamp(values, model, true))
}
