// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file centralizes repo-level error values and the
// driver-agnostic detection of unique-constraint violations.
package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an insert collided with a unique constraint
// (for example a second incomplete funnel for a user, or a re-submitted key).
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations,
// so the gorm sentinel alone is not enough.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
