// Admin HTTP handlers.
//
// Read-only mirrors of the admin console for external tooling:
//   - GET /admin/grants  (paginated, soonest-expiring first)
//   - GET /admin/stats   (grant buckets, funnel-step histogram, keys by platform)
//
// Grant mutation stays on the chat transport where actions are attributable
// to an administrator identity.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadvane/adkey-backend/internal/domain"
)

// ListGrantsResponse wraps a page of grants and pagination information.
type ListGrantsResponse struct {
	Grants     []domain.AccessGrant `json:"grants"`
	Pagination Pagination           `json:"pagination"`
}

// ListGrants returns a page of access grants ordered soonest-expiring first.
func (h *Handlers) ListGrants(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.admin.ListGrants(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListGrantsResponse{
		Grants: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetStats returns the aggregate usage view.
func (h *Handlers) GetStats(c *gin.Context) {
	st, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}
