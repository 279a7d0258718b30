// Package services – AccessService
//
// This file implements the AccessService, the access gate and its
// administrative operations. CheckAccess is a read-only decision: admins are
// always allowed via the injected allow-list, everyone else is judged by
// their single AccessGrant row. The check fails closed: a store error yields
// allowed=false together with the raw error, so callers can show a transient
// failure instead of a denial.
//
// Grant/Extend/Deactivate are idempotent, append to the admin audit log, and
// notify the affected user best-effort.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/leadvane/adkey-backend/internal/domain"
	"github.com/leadvane/adkey-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AdminDaysRemaining is the sentinel DaysRemaining reported for
// administrators, whose access never expires.
const AdminDaysRemaining = 1 << 30

// Access is the result of an access check.
type Access struct {
	Allowed       bool
	DaysRemaining int
	ExpiresAt     *time.Time
}

// AccessService implements the access gate and grant administration.
type AccessService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// IsAdmin is the out-of-band administrator predicate, resolved once at
	// process start. Admins bypass grants entirely.
	IsAdmin func(userID int64) bool

	// Notify delivers courtesy messages to affected users. Optional.
	Notify Notifier

	// DefaultDays is the grant duration applied when a command omits one.
	DefaultDays int

	// Now overrides the clock in tests. Nil means time.Now().UTC.
	Now func() time.Time
}

// NewAccessService constructs an AccessService with a 30-day default grant.
func NewAccessService(db *gorm.DB, isAdmin func(int64) bool, n Notifier) *AccessService {
	if n == nil {
		n = NopNotifier{}
	}
	return &AccessService{DB: db, IsAdmin: isAdmin, Notify: n, DefaultDays: 30}
}

func (s *AccessService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *AccessService) isAdmin(userID int64) bool {
	return s.IsAdmin != nil && s.IsAdmin(userID)
}

// CheckAccess decides whether userID may use the funnel.
//
// Outcomes:
//   - admin: always allowed, DaysRemaining = AdminDaysRemaining.
//   - no grant row: denied with ErrNoAccess.
//   - grant present but inactive or lapsed: denied with ErrAccessExpired
//     (ExpiresAt still reported so the transport can say when it ended).
//   - store unreachable: denied with the raw error; fail closed, and the
//     caller must not present this as "no subscription".
//
// Read-only; no side effects.
func (s *AccessService) CheckAccess(ctx context.Context, userID int64) (Access, error) {
	tr := otel.Tracer("services/AccessService")
	ctx, span := tr.Start(ctx, "CheckAccess",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	if s.isAdmin(userID) {
		return Access{Allowed: true, DaysRemaining: AdminDaysRemaining}, nil
	}

	g, err := repo.GetGrant(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Access{}, ErrNoAccess
		}
		return Access{}, err
	}

	now := s.now()
	exp := g.ExpiresAt
	if !g.Valid(now) {
		return Access{ExpiresAt: &exp}, ErrAccessExpired
	}
	return Access{
		Allowed:       true,
		DaysRemaining: daysRemaining(now, g.ExpiresAt),
		ExpiresAt:     &exp,
	}, nil
}

// Grant upserts the access grant for targetUser, extending expiry to
// now+days. Re-granting is idempotent: a second call lands on the same
// now+days window, it never stacks. GrantedAt is preserved across extensions
// of a live grant and resets when the previous window had already lapsed.
//
// Granting to the acting admin or to any other administrator identity is
// rejected with ErrAdminGrant; no row is written.
func (s *AccessService) Grant(ctx context.Context, adminID, targetUser int64, days int, notes string) (*domain.AccessGrant, error) {
	tr := otel.Tracer("services/AccessService")
	ctx, span := tr.Start(ctx, "Grant",
		trace.WithAttributes(
			attribute.Int64("admin.id", adminID),
			attribute.Int64("user.id", targetUser),
			attribute.Int("days", days),
		),
	)
	defer span.End()

	if days <= 0 {
		days = s.DefaultDays
	}
	if days <= 0 {
		return nil, ErrBadDays
	}
	if s.isAdmin(targetUser) {
		return nil, ErrAdminGrant
	}

	now := s.now()
	var g *domain.AccessGrant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.GetGrant(ctx, tx, targetUser)
		switch {
		case err == nil:
			g = existing
			repo.TouchGrantWindow(g, now, days)
			if notes != "" {
				g.Notes = notes
			}
		case errors.Is(err, repo.ErrNotFound):
			g = &domain.AccessGrant{
				UserID:    targetUser,
				GrantedAt: now,
				ExpiresAt: now.Add(time.Duration(days) * 24 * time.Hour),
				IsActive:  true,
				GrantedBy: adminID,
				Notes:     notes,
			}
		default:
			return err
		}
		g.GrantedBy = adminID
		if err := repo.SaveGrant(ctx, tx, g); err != nil {
			return err
		}
		return repo.AppendAdminLog(ctx, tx, adminID, repo.ActionGrant, targetUser,
			fmt.Sprintf("days=%d notes=%q", days, notes))
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, targetUser, fmt.Sprintf(
		"Access granted until %s (%d days).", g.ExpiresAt.Format("2006-01-02"), days))
	return g, nil
}

// Extend re-invokes Grant semantics.
func (s *AccessService) Extend(ctx context.Context, adminID, targetUser int64, days int) (*domain.AccessGrant, error) {
	g, err := s.Grant(ctx, adminID, targetUser, days, "")
	if err != nil {
		return nil, err
	}
	// The grant path logged ActionGrant; record the extend intent as well.
	if lerr := repo.AppendAdminLog(ctx, s.DB, adminID, repo.ActionExtend, targetUser,
		fmt.Sprintf("days=%d", days)); lerr != nil {
		log.Warn().Err(lerr).Int64("user_id", targetUser).Msg("admin log append failed")
	}
	return g, nil
}

// Deactivate flips the administrative kill-switch without touching expiry, so
// a later re-grant restores the user where they left off. Deactivating a user
// without a grant yields ErrGrantNotFound.
func (s *AccessService) Deactivate(ctx context.Context, adminID, targetUser int64, reason string) error {
	tr := otel.Tracer("services/AccessService")
	ctx, span := tr.Start(ctx, "Deactivate",
		trace.WithAttributes(
			attribute.Int64("admin.id", adminID),
			attribute.Int64("user.id", targetUser),
		),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DeactivateGrant(ctx, tx, targetUser); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrGrantNotFound
			}
			return err
		}
		return repo.AppendAdminLog(ctx, tx, adminID, repo.ActionDeactivate, targetUser,
			fmt.Sprintf("reason=%q", reason))
	})
	if err != nil {
		return err
	}

	s.notify(ctx, targetUser, "Your access has been deactivated.")
	return nil
}

// notify sends best-effort; failures are logged and swallowed so the durable
// grant effect is never rolled back over a courtesy message.
func (s *AccessService) notify(ctx context.Context, userID int64, text string) {
	if s.Notify == nil {
		return
	}
	if err := s.Notify.Send(ctx, userID, text); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("notification failed")
	}
}

// daysRemaining is ceil((expiresAt-now)/24h), floored at zero.
func daysRemaining(now, expiresAt time.Time) int {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
