package repo

import (
	"context"
	"testing"

	"github.com/leadvane/adkey-backend/internal/domain"
)

func TestTrySaveKey_FreshInsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	res, err := TrySaveKey(ctx, db, 42, "token-aaaabbbbccccdddd", "Meta", "category=Finance geo=DE price=10")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Duplicate {
		t.Fatalf("fresh insert flagged duplicate")
	}
	if res.Key == nil || res.Key.ID == "" {
		t.Fatalf("missing key row: %+v", res)
	}
	if res.Key.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt not set")
	}
}

func TestTrySaveKey_DuplicateReportsFirstSeen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := TrySaveKey(ctx, db, 42, "token-aaaabbbbccccdddd", "Meta", "")
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	second, err := TrySaveKey(ctx, db, 42, "token-aaaabbbbccccdddd", "TikTok", "")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected duplicate outcome")
	}
	if !second.Since.Equal(first.Key.CreatedAt) {
		t.Fatalf("Since = %v, want first CreatedAt %v", second.Since, first.Key.CreatedAt)
	}

	var total int64
	db.Model(&domain.StoredKey{}).Count(&total)
	if total != 1 {
		t.Fatalf("rows = %d, want 1", total)
	}
}

func TestTrySaveKey_ScopedPerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if res, err := TrySaveKey(ctx, db, 1, "token-aaaabbbbccccdddd", "Meta", ""); err != nil || res.Duplicate {
		t.Fatalf("user 1: res=%+v err=%v", res, err)
	}
	if res, err := TrySaveKey(ctx, db, 2, "token-aaaabbbbccccdddd", "Meta", ""); err != nil || res.Duplicate {
		t.Fatalf("user 2 must not collide with user 1: res=%+v err=%v", res, err)
	}
}

func TestCountAndListKeys(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, text := range []string{"token-one-aaaabbbbcccc", "token-two-aaaabbbbcccc"} {
		if _, err := TrySaveKey(ctx, db, 42, text, "Google", ""); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := CountKeys(ctx, db, 42)
	if err != nil || n != 2 {
		t.Fatalf("count = %d err=%v, want 2", n, err)
	}

	keys, err := ListKeys(ctx, db, 42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("len = %d, want 2", len(keys))
	}
}
