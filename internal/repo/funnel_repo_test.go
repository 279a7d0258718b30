package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadvane/adkey-backend/internal/domain"
)

func TestCreateFunnel_StartsAtCategory(t *testing.T) {
	db := newTestDB(t)

	f, err := CreateFunnel(context.Background(), db, 42)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.Step != domain.StepCategory || f.Completed {
		t.Fatalf("unexpected funnel: %+v", f)
	}
	if f.ID == "" {
		t.Fatalf("missing id")
	}
}

func TestCreateFunnel_SecondOpenIsDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateFunnel(ctx, db, 42); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateFunnel(ctx, db, 42); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate from the partial index, got %v", err)
	}
}

func TestCreateFunnel_AllowedAfterCompletion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	f, err := CreateFunnel(ctx, db, 42)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.Completed = true
	if err := SaveFunnel(ctx, db, f); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// The partial index only guards open rows.
	if _, err := CreateFunnel(ctx, db, 42); err != nil {
		t.Fatalf("new funnel after completion: %v", err)
	}
}

func TestGetOpenFunnel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetOpenFunnel(ctx, db, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := CreateFunnel(ctx, db, 42)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := GetOpenFunnel(ctx, db, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("got %s, want %s", got.ID, created.ID)
	}

	got.Completed = true
	if err := SaveFunnel(ctx, db, got); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := GetOpenFunnel(ctx, db, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("completed funnel still returned as open: %v", err)
	}
}

func TestDeleteFunnel_OnlyOpenRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	open, err := CreateFunnel(ctx, db, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	done, err := CreateFunnel(ctx, db, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	done.Completed = true
	if err := SaveFunnel(ctx, db, done); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := DeleteFunnel(ctx, db, open.ID); err != nil {
		t.Fatalf("delete open: %v", err)
	}
	if err := DeleteFunnel(ctx, db, done.ID); err != nil {
		t.Fatalf("delete completed: %v", err)
	}

	var total int64
	db.Model(&domain.FunnelState{}).Count(&total)
	if total != 1 {
		t.Fatalf("rows = %d, want completed history preserved", total)
	}
}

func TestListStaleFunnels_OldestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	older, err := CreateFunnel(ctx, db, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	old, err := CreateFunnel(ctx, db, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateFunnel(ctx, db, 3); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	db.Exec("UPDATE funnels SET updated_at = ? WHERE id = ?", now.Add(-72*time.Hour), older.ID)
	db.Exec("UPDATE funnels SET updated_at = ? WHERE id = ?", now.Add(-36*time.Hour), old.ID)

	out, err := ListStaleFunnels(ctx, db, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(out) != 2 || out[0].ID != older.ID || out[1].ID != old.ID {
		t.Fatalf("stale = %+v, want [older old]", out)
	}

	limited, err := ListStaleFunnels(ctx, db, now.Add(-24*time.Hour), 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit not applied: len=%d err=%v", len(limited), err)
	}
}

func TestListFunnelsPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		if _, err := CreateFunnel(ctx, db, id); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}

	out, err := ListFunnelsPage(ctx, db, 0, 2)
	if err != nil || len(out) != 2 {
		t.Fatalf("page 1: len=%d err=%v", len(out), err)
	}
	out, err = ListFunnelsPage(ctx, db, 2, 2)
	if err != nil || len(out) != 1 {
		t.Fatalf("page 2: len=%d err=%v", len(out), err)
	}

	total, err := CountFunnels(ctx, db)
	if err != nil || total != 3 {
		t.Fatalf("count = %d err=%v, want 3", total, err)
	}
}
