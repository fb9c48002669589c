package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/railzwaylabs/stripesync/internal/clock"
	"github.com/railzwaylabs/stripesync/internal/observability"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	"github.com/railzwaylabs/stripesync/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Gateway paymentdomain.Gateway
	Metrics *observability.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	gateway paymentdomain.Gateway
	metrics *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("product.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		gateway: p.Gateway,
		metrics: p.Metrics,
	}
}

// SyncProducts upserts one page of remote products and replaces their
// feature links from the "features" metadata entry.
func (s *Service) SyncProducts(ctx context.Context, req domain.SyncRequest) (*domain.SyncResult, error) {
	if req.Limit < 1 || req.Limit > domain.MaxPageSize {
		return nil, domain.ErrInvalidLimit
	}

	page := req.Page
	if page == nil {
		var err error
		page, err = s.gateway.ListProducts(ctx, paymentdomain.ListInput{
			Limit:         req.Limit,
			StartingAfter: req.StartingAfter,
		})
		if err != nil {
			return nil, err
		}
	}

	result := &domain.SyncResult{HasMore: page.HasMore}
	for _, remote := range page.Data {
		created, err := s.apply(ctx, remote)
		if err != nil {
			s.metrics.Sync("product", "failed")
			return result, fmt.Errorf("sync product %s: %w", remote.ID, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.LastID = remote.ID
		s.metrics.Sync("product", "applied")
	}

	s.log.Info("products synced",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Bool("has_more", result.HasMore),
	)
	return result, nil
}

func (s *Service) apply(ctx context.Context, remote paymentdomain.Product) (bool, error) {
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, remote.ID)
		if err != nil {
			return err
		}
		created = existing == nil

		now := s.clock.Now(ctx)
		product := &domain.Product{
			ProductID: remote.ID,
			Active:    remote.Active,
			Name:      remote.Name,
			Metadata:  toJSONMap(remote.Metadata),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if remote.Description != "" {
			desc := remote.Description
			product.Description = &desc
		}
		if err := s.repo.Upsert(ctx, tx, product); err != nil {
			return err
		}

		features := ParseFeatureIDs(remote.Metadata[domain.MetadataFeatures])
		if err := s.repo.EnsureFeatures(ctx, tx, features); err != nil {
			return err
		}
		return s.repo.ReplaceFeatures(ctx, tx, remote.ID, features)
	})
	return created, err
}

// ParseFeatureIDs splits a feature list on commas and whitespace, dropping
// duplicates.
func ParseFeatureIDs(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func toJSONMap(in map[string]string) datatypes.JSONMap {
	if len(in) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
