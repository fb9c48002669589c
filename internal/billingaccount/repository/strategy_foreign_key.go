package repository

import (
	"context"

	"github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	"github.com/railzwaylabs/stripesync/internal/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// foreignKeyStrategy matches on a conventional "<name>_id" column. The
// "owner" column accepts any owner type; the others only their namesake.
type foreignKeyStrategy struct {
	repo *repo
}

func (s *foreignKeyStrategy) Name() string { return "foreign_key" }

func (s *foreignKeyStrategy) Supports(model domain.Model) bool {
	if model.GenericRelation {
		return false
	}
	for _, candidate := range config.OwnerFieldCandidates {
		if model.DeclaresForeignKey(candidate) {
			return true
		}
	}
	return false
}

// column returns the first declared candidate column that can hold the
// owner: "owner_id" for any type, otherwise the one named after the type.
func (s *foreignKeyStrategy) column(model domain.Model, owner domain.OwnerRef) (string, bool) {
	for _, candidate := range config.OwnerFieldCandidates {
		if !model.DeclaresForeignKey(candidate) {
			continue
		}
		if candidate == "owner" || candidate == owner.Type {
			return candidate + "_id", true
		}
	}
	return "", false
}

func (s *foreignKeyStrategy) Find(ctx context.Context, db *gorm.DB, model domain.Model, owner domain.OwnerRef) (*domain.BillingAccount, error) {
	column, ok := s.column(model, owner)
	if !ok {
		return nil, nil
	}
	return s.repo.FindOne(ctx, db, model, clause.Eq{Column: clause.Column{Name: column}, Value: owner.ID})
}

func (s *foreignKeyStrategy) Insert(ctx context.Context, db *gorm.DB, model domain.Model, owner domain.OwnerRef, acct domain.NewAccount) (bool, error) {
	column, ok := s.column(model, owner)
	if !ok {
		return false, domain.ErrInvalidOwner
	}
	values := newAccountValues(acct)
	values[column] = owner.ID
	return s.repo.InsertIgnore(ctx, db, model, stamp(values, model, true))
}
