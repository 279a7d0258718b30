// Package services – FunnelService
//
// This file implements FunnelService, the state machine that walks a user
// through the ordered key-submission steps: Category → Geography → Source →
// Price → Key. Each transition is a single atomic read-modify-write against
// the open funnel row, so a user's messages are applied in order and a
// duplicate network retry can never skip a step.
//
// Validation failures are recoverable sentinels; the funnel stays on the
// same step and no field is mutated. A re-submitted key is not an error: it
// is a terminal outcome that still closes the funnel, otherwise the user
// would be stuck behind the one-open-funnel invariant.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the user id and step.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/leadvane/adkey-backend/internal/domain"
	"github.com/leadvane/adkey-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultMinKeyRunes is the minimum length for a submission to count as
// key-shaped. Short tokens are almost certainly chat text, not a secret.
const DefaultMinKeyRunes = 16

// keyShapedRE is the allowed character class for pasted keys.
var keyShapedRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// upperCaser uppercases geography tokens ("de" → "DE").
var upperCaser = cases.Upper(language.Und)

// StepResult is the outcome of a successful Advance call.
type StepResult struct {
	// State is the funnel after the transition.
	State *domain.FunnelState
	// Completed is true when the key step finished (fresh save or duplicate).
	Completed bool
	// Duplicate marks the duplicate terminal outcome; Since is the first
	// submission's timestamp.
	Duplicate bool
	Since     time.Time
}

// FunnelService drives the per-user key-intake dialogue.
type FunnelService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Notify delivers the completion result to the user. Optional.
	Notify Notifier

	// MinKeyRunes overrides the key-shaped length threshold. Zero means
	// DefaultMinKeyRunes.
	MinKeyRunes int

	// Reserved reports whether input is a menu/navigation token that must
	// never be captured as step data. Inputs starting with "/" are always
	// reserved. Optional.
	Reserved func(input string) bool
}

// NewFunnelService constructs a FunnelService with default thresholds.
func NewFunnelService(db *gorm.DB, n Notifier) *FunnelService {
	if n == nil {
		n = NopNotifier{}
	}
	return &FunnelService{DB: db, Notify: n, MinKeyRunes: DefaultMinKeyRunes}
}

// Begin returns the user's open funnel, creating one at the category step if
// none exists. Calling Begin again without completing is an idempotent
// resume: it returns the existing funnel unchanged and resumed=true.
func (s *FunnelService) Begin(ctx context.Context, userID int64) (f *domain.FunnelState, resumed bool, err error) {
	tr := otel.Tracer("services/FunnelService")
	ctx, span := tr.Start(ctx, "Begin",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	f, err = repo.GetOpenFunnel(ctx, s.DB, userID)
	if err == nil {
		return f, true, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}

	f, err = repo.CreateFunnel(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost a race with another insert for the same user; resume that one.
		f, err = repo.GetOpenFunnel(ctx, s.DB, userID)
		return f, true, err
	}
	return f, false, err
}

// Advance applies raw input to the user's current step.
//
// The transition runs in one transaction: load the open funnel, validate the
// input against the step it is currently awaiting, set exactly that step's
// field, and move to the next step. On the key step the duplicate check and
// the completion flag commit together, so either outcome (fresh save or
// duplicate) closes the funnel atomically.
//
// Errors: ErrNoFunnel when nothing is in progress, ErrReservedInput for menu
// tokens, and the per-step validation sentinels (ErrBadCategory,
// ErrBadGeography, ErrBadSource, ErrBadPrice, ErrBadKey). Validation errors
// leave the row untouched. Infrastructure errors propagate raw.
func (s *FunnelService) Advance(ctx context.Context, userID int64, raw string) (*StepResult, error) {
	tr := otel.Tracer("services/FunnelService")
	ctx, span := tr.Start(ctx, "Advance",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	input := strings.TrimSpace(raw)
	if s.isReserved(input) {
		return nil, ErrReservedInput
	}

	var res StepResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := repo.GetOpenFunnel(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNoFunnel
			}
			return err
		}
		span.SetAttributes(attribute.String("funnel.step", f.Step))

		switch f.Step {
		case domain.StepCategory:
			cat, ok := matchChoice(input, domain.Categories)
			if !ok {
				return ErrBadCategory
			}
			f.Category = cat
			f.Step = domain.StepGeography

		case domain.StepGeography:
			if input == "" {
				return ErrBadGeography
			}
			f.Geography = upperCaser.String(input)
			f.Step = domain.StepSource

		case domain.StepSource:
			src, ok := matchChoice(input, domain.SourcePlatforms)
			if !ok {
				return ErrBadSource
			}
			f.SourcePlatform = src
			f.Step = domain.StepPrice

		case domain.StepPrice:
			p, err := parsePrice(input)
			if err != nil {
				return err
			}
			f.Price = &p
			f.Step = domain.StepKey

		case domain.StepKey:
			if !s.keyShaped(input) {
				return ErrBadKey
			}
			saved, err := repo.TrySaveKey(ctx, tx, userID, input, f.SourcePlatform, funnelMetadata(f))
			if err != nil {
				return err
			}
			f.SubmittedKey = input
			f.Completed = true
			res.Completed = true
			res.Duplicate = saved.Duplicate
			res.Since = saved.Since

		default:
			return fmt.Errorf("funnel %s: unknown step %q", f.ID, f.Step)
		}

		if err := repo.SaveFunnel(ctx, tx, f); err != nil {
			return err
		}
		res.State = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Completed {
		s.notifyCompletion(ctx, userID, &res)
	}
	return &res, nil
}

// GoBack moves the funnel one step toward the start without clearing any
// field already captured. From the category step it exits the funnel
// entirely: the open row is deleted and exited=true is returned.
func (s *FunnelService) GoBack(ctx context.Context, userID int64) (f *domain.FunnelState, exited bool, err error) {
	tr := otel.Tracer("services/FunnelService")
	ctx, span := tr.Start(ctx, "GoBack",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetOpenFunnel(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNoFunnel
			}
			return err
		}
		if cur.Step == domain.StepCategory {
			exited = true
			return repo.DeleteFunnel(ctx, tx, cur.ID)
		}
		cur.Step = previousStep(cur.Step)
		if err := repo.SaveFunnel(ctx, tx, cur); err != nil {
			return err
		}
		f = cur
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return f, exited, nil
}

// ListStale returns open funnels untouched for longer than olderThan, oldest
// first. Read-only reporting hook for the external reminder job; the engine
// never times a funnel out on its own.
func (s *FunnelService) ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]domain.FunnelState, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return repo.ListStaleFunnels(ctx, s.DB, cutoff, limit)
}

// Get returns the user's open funnel, or ErrNoFunnel.
func (s *FunnelService) Get(ctx context.Context, userID int64) (*domain.FunnelState, error) {
	f, err := repo.GetOpenFunnel(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoFunnel
	}
	return f, err
}

// ListPage returns a page of funnels (open and completed) with the total.
func (s *FunnelService) ListPage(ctx context.Context, page, pageSize int) ([]domain.FunnelState, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountFunnels(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.FunnelState{}, 0, nil
	}
	items, err := repo.ListFunnelsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

func (s *FunnelService) isReserved(input string) bool {
	if strings.HasPrefix(input, "/") {
		return true
	}
	return s.Reserved != nil && s.Reserved(input)
}

func (s *FunnelService) keyShaped(input string) bool {
	min := s.MinKeyRunes
	if min <= 0 {
		min = DefaultMinKeyRunes
	}
	return utf8.RuneCountInString(input) >= min && keyShapedRE.MatchString(input)
}

func (s *FunnelService) notifyCompletion(ctx context.Context, userID int64, res *StepResult) {
	text := "Your key was accepted and queued for processing."
	if res.Duplicate {
		text = fmt.Sprintf("You already submitted this key on %s.", res.Since.Format("2006-01-02"))
	}
	if err := s.Notify.Send(ctx, userID, text); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("completion notification failed")
	}
}

// matchChoice matches input against a closed set, case-insensitively, and
// returns the canonical spelling.
func matchChoice(input string, choices []string) (string, bool) {
	for _, c := range choices {
		if strings.EqualFold(input, c) {
			return c, true
		}
	}
	return "", false
}

// parsePrice accepts decimal text that parses to a finite number > 0.
func parsePrice(input string) (float64, error) {
	input = strings.ReplaceAll(input, ",", ".")
	p, err := strconv.ParseFloat(input, 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, ErrBadPrice
	}
	return p, nil
}

// funnelMetadata is the denormalized snapshot stored next to the key.
func funnelMetadata(f *domain.FunnelState) string {
	price := ""
	if f.Price != nil {
		price = strconv.FormatFloat(*f.Price, 'f', -1, 64)
	}
	return fmt.Sprintf("category=%s geo=%s price=%s", f.Category, f.Geography, price)
}

// previousStep maps a step to the one before it. StepCategory has no
// predecessor; callers handle that case as funnel exit.
func previousStep(step string) string {
	switch step {
	case domain.StepGeography:
		return domain.StepCategory
	case domain.StepSource:
		return domain.StepGeography
	case domain.StepPrice:
		return domain.StepSource
	case domain.StepKey:
		return domain.StepPrice
	}
	return domain.StepCategory
}
