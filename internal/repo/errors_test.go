package repo

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{errors.New("UNIQUE constraint failed: stored_keys.user_id, stored_keys.key_text"), true},
		{errors.New("constraint failed: UNIQUE constraint failed: funnels.user_id (2067)"), true},
		{errors.New("duplicate key value violates unique constraint"), true},
		{errors.New("no such table: stored_keys"), false},
		{gorm.ErrRecordNotFound, false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Errorf("isUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestErrNotFound_AliasesGorm(t *testing.T) {
	if !errors.Is(ErrNotFound, gorm.ErrRecordNotFound) {
		t.Fatalf("ErrNotFound must match gorm.ErrRecordNotFound")
	}
}
