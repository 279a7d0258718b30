package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadvane/adkey-backend/internal/domain"
)

func TestGetGrant_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetGrant(context.Background(), db, 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveGrant_UpsertsByUserID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	g := &domain.AccessGrant{
		UserID:    42,
		GrantedAt: now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		IsActive:  true,
		GrantedBy: 1,
	}
	if err := SaveGrant(ctx, db, g); err != nil {
		t.Fatalf("save: %v", err)
	}

	g.ExpiresAt = now.Add(14 * 24 * time.Hour)
	g.Notes = "extended"
	if err := SaveGrant(ctx, db, g); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	got, err := GetGrant(ctx, db, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ExpiresAt.Equal(g.ExpiresAt) || got.Notes != "extended" {
		t.Fatalf("update lost: %+v", got)
	}

	var total int64
	db.Model(&domain.AccessGrant{}).Count(&total)
	if total != 1 {
		t.Fatalf("rows = %d, want 1", total)
	}
}

func TestDeactivateGrant(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := DeactivateGrant(ctx, db, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without a row, got %v", err)
	}

	g := &domain.AccessGrant{
		UserID:    42,
		GrantedAt: now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		IsActive:  true,
		GrantedBy: 1,
	}
	if err := SaveGrant(ctx, db, g); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := DeactivateGrant(ctx, db, 42); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := GetGrant(ctx, db, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsActive {
		t.Fatalf("still active")
	}
	if !got.ExpiresAt.Equal(g.ExpiresAt) {
		t.Fatalf("deactivate touched expiry")
	}
}

func TestGrantExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ok, err := GrantExists(ctx, db, 42)
	if err != nil || ok {
		t.Fatalf("exists = %v err=%v, want false", ok, err)
	}

	now := time.Now().UTC()
	if err := SaveGrant(ctx, db, &domain.AccessGrant{
		UserID: 42, GrantedAt: now, ExpiresAt: now.Add(time.Hour), IsActive: true, GrantedBy: 1,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err = GrantExists(ctx, db, 42)
	if err != nil || !ok {
		t.Fatalf("exists = %v err=%v, want true", ok, err)
	}
}

func TestListGrantsPage_OrderedByExpiry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, userID := range []int64{3, 1, 2} {
		g := &domain.AccessGrant{
			UserID:    userID,
			GrantedAt: now,
			ExpiresAt: now.Add(time.Duration(userID) * time.Hour),
			IsActive:  true,
			GrantedBy: 9,
		}
		if err := SaveGrant(ctx, db, g); err != nil {
			t.Fatalf("seed %d: %v", userID, err)
		}
	}

	out, err := ListGrantsPage(ctx, db, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 || out[0].UserID != 1 || out[1].UserID != 2 || out[2].UserID != 3 {
		t.Fatalf("order wrong: %+v", out)
	}

	total, err := CountGrants(ctx, db)
	if err != nil || total != 3 {
		t.Fatalf("count = %d err=%v, want 3", total, err)
	}
}

func TestTouchGrantWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Live grant: expiry moves, GrantedAt stays.
	live := &domain.AccessGrant{
		GrantedAt: now.Add(-24 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
		IsActive:  true,
	}
	TouchGrantWindow(live, now, 7)
	if !live.GrantedAt.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("live grant GrantedAt reset")
	}
	if !live.ExpiresAt.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want now+7d", live.ExpiresAt)
	}

	// Lapsed grant: both move, and the grant reactivates.
	lapsed := &domain.AccessGrant{
		GrantedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
		IsActive:  false,
	}
	TouchGrantWindow(lapsed, now, 7)
	if !lapsed.GrantedAt.Equal(now) {
		t.Fatalf("lapsed grant GrantedAt not reset")
	}
	if !lapsed.IsActive {
		t.Fatalf("lapsed grant not reactivated")
	}
}
