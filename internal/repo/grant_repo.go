// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the AccessGrant
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Grant semantics (extension arithmetic,
// admin exclusion) live in services.AccessService.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/leadvane/adkey-backend/internal/domain"
)

// GetGrant fetches the single grant row for userID, or ErrNotFound.
func GetGrant(ctx context.Context, db *gorm.DB, userID int64) (*domain.AccessGrant, error) {
	var g domain.AccessGrant
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveGrant inserts or fully updates the grant row for g.UserID. The caller
// is responsible for having computed GrantedAt/ExpiresAt; SaveGrant only
// persists. Because UserID is the primary key, Save acts as an upsert and the
// one-grant-per-user invariant holds by construction.
func SaveGrant(ctx context.Context, db *gorm.DB, g *domain.AccessGrant) error {
	return db.WithContext(ctx).Save(g).Error
}

// DeactivateGrant flips is_active off for userID without touching expiry.
// Returns ErrNotFound when no grant row exists.
func DeactivateGrant(ctx context.Context, db *gorm.DB, userID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.AccessGrant{}).
		Where("user_id = ?", userID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListGrantsPage returns a page of grants ordered soonest-expiring first.
func ListGrantsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.AccessGrant, error) {
	var out []domain.AccessGrant
	err := db.WithContext(ctx).
		Order("expires_at ASC, user_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountGrants returns the total number of grant rows.
func CountGrants(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.AccessGrant{}).Count(&total).Error
	return total, err
}

// GrantExists reports whether a grant row exists for userID without loading it.
func GrantExists(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	_, err := GetGrant(ctx, db, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// TouchGrantWindow recomputes GrantedAt/ExpiresAt on an existing grant per
// re-grant semantics: expiry moves to now+days and, when the previous window
// had already lapsed, the granted-at marker resets to now.
func TouchGrantWindow(g *domain.AccessGrant, now time.Time, days int) {
	if !g.ExpiresAt.After(now) {
		g.GrantedAt = now
	}
	g.ExpiresAt = now.Add(time.Duration(days) * 24 * time.Hour)
	g.IsActive = true
}
