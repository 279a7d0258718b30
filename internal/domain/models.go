// Package domain defines the persistence models for access grants, key-intake
// funnels, stored advertising-platform keys, and the administrative audit log.
// These types are mapped with GORM and form the core data layer of the bot
// backend.
package domain

import "time"

// Funnel steps, in the order a user walks through them.
const (
	StepCategory  = "category"
	StepGeography = "geography"
	StepSource    = "source"
	StepPrice     = "price"
	StepKey       = "key"
)

// Categories a submitted key may belong to. Closed set; the transport renders
// these as menu buttons and the engine rejects anything else.
var Categories = []string{"Gambling", "Finance", "Crypto", "Nutra", "Dating", "Ecommerce", "Other"}

// SourcePlatforms is the closed set of advertising platforms a key can
// originate from.
var SourcePlatforms = []string{"Meta", "TikTok", "Google", "Other"}

// AccessGrant is the single time-bounded access record for a user. Re-granting
// updates the row in place (UserID is the primary key), so at most one grant
// can exist per user. A grant is valid iff IsActive and ExpiresAt is in the
// future. Administrators never have a grant row; they are an out-of-band
// allow-list checked before this table is consulted.
//
// Rows are never deleted; Deactivate flips IsActive and the audit trail lives
// in AdminLogEntry.
type AccessGrant struct {
	UserID    int64     `json:"user_id"    gorm:"primaryKey;autoIncrement:false"`
	GrantedAt time.Time `json:"granted_at" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index:idx_grants_expiry"`
	IsActive  bool      `json:"is_active"  gorm:"not null;default:true"`
	GrantedBy int64     `json:"granted_by" gorm:"not null"`
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for AccessGrant.
func (AccessGrant) TableName() string { return "access_grants" }

// Valid reports whether the grant currently admits the user.
func (g *AccessGrant) Valid(now time.Time) bool {
	return g.IsActive && g.ExpiresAt.After(now)
}

// FunnelState is one pass of a user through the guided key-submission
// dialogue. Step fields are filled strictly in order (Category → Geography →
// Source → Price → Key) and Step always names the field awaited next.
//
// The open-funnel invariant (at most one row per user with completed=0) is
// enforced by a partial unique index created in repo.AutoMigrate (GORM tags
// cannot express partial indexes portably). Completed rows accumulate as
// history.
type FunnelState struct {
	ID             string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID         int64     `json:"user_id" gorm:"not null;index:idx_funnels_user"`
	Step           string    `json:"step"    gorm:"type:varchar(16);not null"`
	Category       string    `json:"category,omitempty"        gorm:"type:varchar(32)"`
	Geography      string    `json:"geography,omitempty"       gorm:"type:varchar(64)"`
	SourcePlatform string    `json:"source_platform,omitempty" gorm:"type:varchar(16)"`
	Price          *float64  `json:"price,omitempty"`
	SubmittedKey   string    `json:"-"         gorm:"type:text"`
	Completed      bool      `json:"completed" gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"index:idx_funnels_touched"`
}

// TableName returns the database table name for FunnelState.
func (FunnelState) TableName() string { return "funnels" }

// StoredKey is an accepted advertising-platform API key. The (user_id,
// key_text) pair is unique at the storage layer so a double-tapped submit
// cannot produce two rows; resubmission surfaces as repo.ErrDuplicate.
// Rows are immutable once written.
type StoredKey struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         int64     `json:"user_id"         gorm:"not null;index;uniqueIndex:ux_keys_user_text,priority:1"`
	KeyText        string    `json:"-"               gorm:"type:text;not null;uniqueIndex:ux_keys_user_text,priority:2"`
	SourcePlatform string    `json:"source_platform" gorm:"type:varchar(16);not null;index:idx_keys_platform"`
	Metadata       string    `json:"metadata"        gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for StoredKey.
func (StoredKey) TableName() string { return "stored_keys" }

// AdminLogEntry is the append-only audit record of administrative actions.
// Never read by any access decision.
type AdminLogEntry struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	AdminID   int64     `gorm:"not null;index"`
	Action    string    `gorm:"type:varchar(32);not null"`
	TargetID  int64     `gorm:"not null;index"`
	Detail    string    `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName returns the database table name for AdminLogEntry.
func (AdminLogEntry) TableName() string { return "admin_log" }
