// Package services – AdminService
//
// Thin façade over AccessService and the aggregate repo queries. It owns no
// invariants of its own; grant/extend/deactivate delegate to the gate so the
// upsert semantics stay in one place.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/leadvane/adkey-backend/internal/domain"
	"github.com/leadvane/adkey-backend/internal/repo"
)

// Stats is the aggregate usage view for administrators.
type Stats struct {
	Grants           repo.GrantCounts `json:"grants"`
	FunnelSteps      map[string]int64 `json:"funnel_steps"`
	CompletedFunnels int64            `json:"completed_funnels"`
	KeysByPlatform   map[string]int64 `json:"keys_by_platform"`
}

// AdminService exposes grant listing and usage statistics.
type AdminService struct {
	DB     *gorm.DB
	Access *AccessService
}

// NewAdminService constructs an AdminService over the given gate.
func NewAdminService(db *gorm.DB, access *AccessService) *AdminService {
	return &AdminService{DB: db, Access: access}
}

// Grant delegates to the access gate.
func (s *AdminService) Grant(ctx context.Context, adminID, target int64, days int, notes string) (*domain.AccessGrant, error) {
	return s.Access.Grant(ctx, adminID, target, days, notes)
}

// Extend delegates to the access gate.
func (s *AdminService) Extend(ctx context.Context, adminID, target int64, days int) (*domain.AccessGrant, error) {
	return s.Access.Extend(ctx, adminID, target, days)
}

// Deactivate delegates to the access gate.
func (s *AdminService) Deactivate(ctx context.Context, adminID, target int64, reason string) error {
	return s.Access.Deactivate(ctx, adminID, target, reason)
}

// ListGrants returns a page of grants ordered soonest-expiring first, with
// the total count for pagination metadata.
func (s *AdminService) ListGrants(ctx context.Context, page, pageSize int) ([]domain.AccessGrant, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountGrants(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.AccessGrant{}, 0, nil
	}
	items, err := repo.ListGrantsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Stats aggregates grant lifecycle counts, the open-funnel step histogram,
// and key counts by platform.
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	now := time.Now().UTC()

	grants, err := repo.CountGrantBuckets(ctx, s.DB, now)
	if err != nil {
		return nil, err
	}
	steps, err := repo.FunnelStepHistogram(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	completed, err := repo.CompletedFunnelCount(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	keys, err := repo.KeyCountsByPlatform(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Grants:           *grants,
		FunnelSteps:      steps,
		CompletedFunnels: completed,
		KeysByPlatform:   keys,
	}, nil
}

// KeyCount returns the number of stored keys for one user (shown by the
// transport in the user's status view).
func (s *AdminService) KeyCount(ctx context.Context, userID int64) (int64, error) {
	return repo.CountKeys(ctx, s.DB, userID)
}
