package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leadvane/adkey-backend/internal/config"
	"github.com/leadvane/adkey-backend/internal/repo"
)

func init() { gin.SetMode(gin.TestMode) }

type captureNotifier struct {
	gotUser int64
	gotText string
}

func (n *captureNotifier) Send(_ context.Context, userID int64, text string) error {
	n.gotUser, n.gotText = userID, text
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *captureNotifier) {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := config.Config{
		APIBasePath: "/api/v1",
		GrantDays:   30,
		MinKeyRunes: 16,
		StaleAfter:  24 * time.Hour,
		RateRPS:     1000,
		RateBurst:   1000,
	}

	n := &captureNotifier{}
	r := gin.New()
	RegisterRoutes(r, db, n, cfg)
	return r, n
}

func TestRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("prometheus exposition missing")
	}
}

func TestRouter_NoRouteEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRouter_NoMethodEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/relay", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "method_not_allowed") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRouter_RelayDelivers(t *testing.T) {
	r, n := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/relay", strings.NewReader(`{"user":42,"text":"processed"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if n.gotUser != 42 || n.gotText != "processed" {
		t.Fatalf("notifier got user=%d text=%q", n.gotUser, n.gotText)
	}
}

func TestRouter_FunnelEndpointsWired(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/funnels", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/funnels status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/funnels/42", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("/funnels/42 status = %d, want 404 with empty store", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/funnels/stale", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/funnels/stale status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/grants", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/admin/grants status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/admin/stats status = %d", w.Code)
	}
}

func TestRouter_CORSWildcardByDefault(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("ACAO = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}
