package repository

import (
	"context"

	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, model userdomain.Model, id int64) (*userdomain.User, error) {
	return r.findOne(ctx, db, model, clause.Eq{Column: clause.Column{Name: "id"}, Value: id})
}

// FindByEmail returns the oldest user carrying the email.
func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, model userdomain.Model, email string) (*userdomain.User, error) {
	return r.findOne(ctx, db, model, clause.Eq{Column: clause.Column{Name: model.EmailField}, Value: email})
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, model userdomain.Model, cond clause.Expression) (*userdomain.User, error) {
	var u userdomain.User
	err := db.WithContext(ctx).
		Table(model.Table).
		Select("id, ? AS email", clause.Column{Name: model.EmailField}).
		Where(cond).
		Order("id ASC").
		Limit(1).
		Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, model userdomain.Model, id int64, values map[string]any) error {
	row := make(map[string]any, len(values)+1)
	for k, v := range values {
		row[k] = v
	}
	row["id"] = id
	return db.WithContext(ctx).Table(model.Table).Create(row).Error
}

func (r *repo) RowExists(ctx context.Context, db *gorm.DB, table string, id int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
