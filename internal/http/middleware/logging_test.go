package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	rid := w.Header().Get("X-Request-ID")
	if rid == "" {
		t.Fatalf("expected a generated request id")
	}
	if len(rid) != 36 {
		t.Fatalf("id %q does not look like a uuid", rid)
	}
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		v, _ := c.Get("requestID")
		c.String(http.StatusOK, "%v", v)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") != "client-supplied-id" {
		t.Fatalf("incoming id not echoed: %q", w.Header().Get("X-Request-ID"))
	}
	if w.Body.String() != "client-supplied-id" {
		t.Fatalf("id not stored in context: %q", w.Body.String())
	}
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("body = %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "request_id") {
		t.Fatalf("500 envelope missing request id: %s", w.Body.String())
	}
}

func TestLoggerFrom_FallbackWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("expected non-nil logger")
	}
}
