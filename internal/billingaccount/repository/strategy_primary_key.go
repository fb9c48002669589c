package repository

import (
	"context"

	"github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// primaryKeyStrategy treats the owner id as the account id. It is the
// fallback for tables with no declared owner columns.
type primaryKeyStrategy struct {
	repo *repo
}

func (s *primaryKeyStrategy) Name() string { return "primary_key" }

func (s *primaryKeyStrategy) Supports(model domain.Model) bool {
	return !model.GenericRelation && len(model.ForeignKeys) == 0
}

func (s *primaryKeyStrategy) Find(ctx context.Context, db *gorm.DB, model domain.Model, owner domain.OwnerRef) (*domain.BillingAccount, error) {
	return s.repo.FindOne(ctx, db, model, clause.Eq{Column: clause.Column{Name: "id"}, Value: owner.ID})
}

func (s *primaryKeyStrategy) Insert(ctx context.Context, db *gorm.DB, model domain.Model, owner domain.OwnerRef, acct domain.NewAccount) (bool, error) {
	acct.ID = owner.ID
	return s.repo.InsertIgnore(ctx, db, model, stamp(newAccountValues(acct), model, true))
}
