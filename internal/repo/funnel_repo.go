// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the FunnelState
// model.
//
// Error semantics:
//   - When no open funnel exists, functions return ErrNotFound.
//   - CreateFunnel maps a partial-unique-index violation (second open funnel
//     for the same user) to ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadvane/adkey-backend/internal/domain"
)

// GetOpenFunnel returns the single incomplete funnel for userID, or ErrNotFound.
func GetOpenFunnel(ctx context.Context, db *gorm.DB, userID int64) (*domain.FunnelState, error) {
	var f domain.FunnelState
	err := db.WithContext(ctx).
		Where("user_id = ? AND completed = ?", userID, false).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFunnel inserts a fresh funnel for userID at the category step.
// The partial unique index ux_funnels_user_open rejects a second open funnel;
// that outcome is surfaced as ErrDuplicate.
func CreateFunnel(ctx context.Context, db *gorm.DB, userID int64) (*domain.FunnelState, error) {
	f := &domain.FunnelState{
		ID:        uuid.NewString(),
		UserID:    userID,
		Step:      domain.StepCategory,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return f, nil
}

// SaveFunnel persists the current state of f (step transitions, captured
// fields, completion flag).
func SaveFunnel(ctx context.Context, db *gorm.DB, f *domain.FunnelState) error {
	return db.WithContext(ctx).Save(f).Error
}

// DeleteFunnel removes an open funnel row (goBack from the first step exits
// the dialogue entirely). Completed funnels are history and are never deleted.
func DeleteFunnel(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Where("id = ? AND completed = ?", id, false).
		Delete(&domain.FunnelState{}).Error
}

// ListFunnelsPage returns a page of funnels (open and completed), newest first.
func ListFunnelsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.FunnelState, error) {
	var out []domain.FunnelState
	err := db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountFunnels returns the total number of funnel rows.
func CountFunnels(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.FunnelState{}).Count(&total).Error
	return total, err
}

// ListStaleFunnels returns open funnels not touched since cutoff, oldest
// first. Used by the external reminder job; read-only.
func ListStaleFunnels(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.FunnelState, error) {
	var out []domain.FunnelState
	q := db.WithContext(ctx).
		Where("completed = ? AND updated_at < ?", false, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
