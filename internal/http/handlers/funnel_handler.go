// Funnel HTTP handlers.
//
// Read-only queries for external tooling:
//   - GET /funnels              (paginated, open and completed)
//   - GET /funnels/stale        (open funnels untouched past a threshold)
//   - GET /funnels/{user}       (a user's open funnel)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadvane/adkey-backend/internal/domain"
	"github.com/leadvane/adkey-backend/internal/services"
	"github.com/leadvane/adkey-backend/internal/utils"
)

// FunnelService defines the funnel queries consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type FunnelService interface {
	// Get returns the user's open funnel, or services.ErrNoFunnel.
	Get(ctx context.Context, userID int64) (*domain.FunnelState, error)
	// ListPage returns a page of funnels and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.FunnelState, int64, error)
	// ListStale returns open funnels untouched for longer than olderThan.
	ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]domain.FunnelState, error)
}

// AdminService defines the administrative read queries consumed by handlers.
type AdminService interface {
	ListGrants(ctx context.Context, page, pageSize int) ([]domain.AccessGrant, int64, error)
	Stats(ctx context.Context) (*services.Stats, error)
}

// Handlers groups the HTTP endpoints for relay, funnel, and admin queries.
type Handlers struct {
	funnel   FunnelService
	admin    AdminService
	notifier services.Notifier

	// StaleAfter is the default /funnels/stale threshold.
	StaleAfter time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(funnel FunnelService, admin AdminService, notifier services.Notifier, staleAfter time.Duration) *Handlers {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &Handlers{
		funnel:     funnel,
		admin:      admin,
		notifier:   notifierOrNop(notifier),
		StaleAfter: staleAfter,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListFunnelsResponse wraps a page of funnels and pagination information.
type ListFunnelsResponse struct {
	Funnels    []domain.FunnelState `json:"funnels"`
	Pagination Pagination           `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// ListFunnels returns a page of funnels, newest first.
func (h *Handlers) ListFunnels(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.funnel.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListFunnelsResponse{
		Funnels: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetUserFunnel returns the open funnel for one user, or 404.
func (h *Handlers) GetUserFunnel(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user must be a numeric chat id")
		return
	}

	f, err := h.funnel.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNoFunnel) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no funnel in progress")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, f)
}

// ListStaleFunnels returns open funnels untouched past older_than (duration
// string, default from config), capped at limit rows.
func (h *Handlers) ListStaleFunnels(c *gin.Context) {
	olderThan := h.StaleAfter
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "older_than must be a positive duration, e.g. 24h")
			return
		}
		olderThan = d
	}
	limit := utils.AtoiDefault(c.Query("limit"), 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	items, err := h.funnel.ListStale(c.Request.Context(), olderThan, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"funnels": items, "older_than": olderThan.String()})
}
