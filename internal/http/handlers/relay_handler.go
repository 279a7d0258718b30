// Relay HTTP handler.
//
// POST /relay accepts "deliver text T to user U" requests from upstream
// systems (for example the analytics pipeline that processed a submitted key)
// and forwards them over the messaging transport. Authentication of the
// endpoint is an edge concern and not handled here.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leadvane/adkey-backend/internal/http/middleware"
	"github.com/leadvane/adkey-backend/internal/services"
)

// RelayRequest is the JSON payload for a relayed notification.
type RelayRequest struct {
	User int64  `json:"user" binding:"required"`
	Text string `json:"text" binding:"required"`
}

// RelayResponse reports the delivery outcome.
type RelayResponse struct {
	Status string `json:"status"` // delivered | failed
	Reason string `json:"reason,omitempty"`
}

// RelayNotification forwards a text to a user.
//
// A transport failure is reported as 502 with the reason, but it is the
// caller's business whether to retry; nothing durable happens here.
func (h *Handlers) RelayNotification(c *gin.Context) {
	var req RelayRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user and text are required")
		return
	}

	if err := h.notifier.Send(c.Request.Context(), req.User, req.Text); err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Err(err).Int64("user_id", req.User).Msg("relay delivery failed")
		c.JSON(http.StatusBadGateway, RelayResponse{Status: "failed", Reason: err.Error()})
		return
	}
	ok(c, http.StatusOK, RelayResponse{Status: "delivered"})
}

// notifierOrNop guards against a nil transport (HTTP-only deployments).
func notifierOrNop(n services.Notifier) services.Notifier {
	if n == nil {
		return services.NopNotifier{}
	}
	return n
}
