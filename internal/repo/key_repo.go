// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the StoredKey
// model, including the atomic duplicate-detecting insert.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadvane/adkey-backend/internal/domain"
)

// KeySaveResult is the outcome of TrySaveKey. Exactly one of the two shapes
// applies: a fresh save (Duplicate=false, Key set) or a detected duplicate
// (Duplicate=true, Since carries the first submission's timestamp).
type KeySaveResult struct {
	Key       *domain.StoredKey
	Duplicate bool
	Since     time.Time
}

// TrySaveKey inserts a key row and lets the ux_keys_user_text unique index
// arbitrate concurrent submissions of the same text. No SELECT-then-INSERT:
// the constraint is the serialization point, so a double-tapped submit cannot
// yield two rows. On a violation the existing row is re-read to report when
// the key was first stored.
func TrySaveKey(ctx context.Context, db *gorm.DB, userID int64, keyText, platform, metadata string) (*KeySaveResult, error) {
	k := &domain.StoredKey{
		ID:             uuid.NewString(),
		UserID:         userID,
		KeyText:        keyText,
		SourcePlatform: platform,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	err := db.WithContext(ctx).Create(k).Error
	if err == nil {
		return &KeySaveResult{Key: k}, nil
	}
	if !isUniqueViolation(err) {
		return nil, err
	}

	var existing domain.StoredKey
	if rerr := db.WithContext(ctx).
		Where("user_id = ? AND key_text = ?", userID, keyText).
		First(&existing).Error; rerr != nil {
		// Constraint fired but the row is unreadable; report the raw failure.
		return nil, err
	}
	return &KeySaveResult{Duplicate: true, Since: existing.CreatedAt}, nil
}

// CountKeys returns the number of stored keys for userID.
func CountKeys(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.StoredKey{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListKeys returns all keys for userID, newest first.
func ListKeys(ctx context.Context, db *gorm.DB, userID int64) ([]domain.StoredKey, error) {
	var out []domain.StoredKey
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	return out, err
}
