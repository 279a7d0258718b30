// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file writes the append-only administrative audit log.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadvane/adkey-backend/internal/domain"
)

// Admin log action kinds.
const (
	ActionGrant      = "grant"
	ActionExtend     = "extend"
	ActionDeactivate = "deactivate"
)

// AppendAdminLog records an administrative action. Entries are never mutated
// or deleted and are not consulted by any access decision.
func AppendAdminLog(ctx context.Context, db *gorm.DB, adminID int64, action string, targetID int64, detail string) error {
	e := &domain.AdminLogEntry{
		ID:        uuid.NewString(),
		AdminID:   adminID,
		Action:    action,
		TargetID:  targetID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(e).Error
}
