// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind the admin
// stats view: grant counts by lifecycle bucket, the funnel-step histogram,
// and key counts by platform. Each function is context-aware and safe to call
// from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/leadvane/adkey-backend/internal/domain"
)

// GrantCounts buckets every grant row by lifecycle state relative to now.
// A deactivated grant counts as deactivated regardless of expiry; active and
// expired partition the remainder.
type GrantCounts struct {
	Total          int64 `json:"total"`
	Active         int64 `json:"active"`
	ExpiringWithin int64 `json:"expiring_within_7d"`
	Expired        int64 `json:"expired"`
	Deactivated    int64 `json:"deactivated"`
}

// CountGrantBuckets computes GrantCounts in four scoped count queries.
func CountGrantBuckets(ctx context.Context, db *gorm.DB, now time.Time) (*GrantCounts, error) {
	var out GrantCounts
	m := db.WithContext(ctx).Model(&domain.AccessGrant{})

	if err := m.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if err := m.Session(&gorm.Session{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Count(&out.Active).Error; err != nil {
		return nil, err
	}
	if err := m.Session(&gorm.Session{}).
		Where("is_active = ? AND expires_at > ? AND expires_at <= ?", true, now, now.Add(7*24*time.Hour)).
		Count(&out.ExpiringWithin).Error; err != nil {
		return nil, err
	}
	if err := m.Session(&gorm.Session{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Count(&out.Expired).Error; err != nil {
		return nil, err
	}
	if err := m.Session(&gorm.Session{}).
		Where("is_active = ?", false).
		Count(&out.Deactivated).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// FunnelStepHistogram counts open funnels per current step.
func FunnelStepHistogram(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	type row struct {
		Step string
		N    int64
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.FunnelState{}).
		Select("step, COUNT(*) AS n").
		Where("completed = ?", false).
		Group("step").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Step] = r.N
	}
	return out, nil
}

// KeyCountsByPlatform counts stored keys grouped by source platform.
func KeyCountsByPlatform(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	type row struct {
		SourcePlatform string
		N              int64
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.StoredKey{}).
		Select("source_platform, COUNT(*) AS n").
		Group("source_platform").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.SourcePlatform] = r.N
	}
	return out, nil
}

// CompletedFunnelCount returns the number of completed funnels, used for the
// stats view alongside the open-step histogram.
func CompletedFunnelCount(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.FunnelState{}).
		Where("completed = ?", true).
		Count(&total).Error
	return total, err
}
