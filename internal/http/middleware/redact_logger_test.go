package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedact(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"uuid", "id=6ba7b810-9dad-11d1-80b4-00c04fd430c8", "id=[REDACTED:id]"},
		{"email", "contact bob@example.com please", "contact [REDACTED:email] please"},
		{"key shaped", "token=sk-live_AbCdEf1234567890", "token=[REDACTED:secret]"},
		{"long token", "AbCdEfGh12345678", "[REDACTED:secret]"},
		{"short token kept", "abc123", "abc123"},
	}
	for _, tc := range cases {
		if got := redact(tc.in); got != tc.want {
			t.Errorf("%s: redact(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestRedact_UUIDNotLabeledSecret(t *testing.T) {
	got := redact("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	if strings.Contains(got, "secret") {
		t.Fatalf("uuid misclassified: %q", got)
	}
	if got != "[REDACTED:id]" {
		t.Fatalf("got %q", got)
	}
}

func TestRedactingLogger_AttachesRequestLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-API-Key"}}))
	r.GET("/x", func(c *gin.Context) {
		if _, ok := c.Get("logger"); !ok {
			t.Errorf("request-scoped logger not attached")
		}
		lg := LoggerFrom(c)
		if lg == nil {
			t.Errorf("LoggerFrom returned nil")
		}
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/x?token=AbCdEfGh1234567890", nil)
	req.Header.Set("X-API-Key", "super-secret-value")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRedactingLogger_StatusSeverities(t *testing.T) {
	// The middleware must not disturb responses at any severity tier.
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/bad", func(c *gin.Context) { c.String(http.StatusBadRequest, "bad") })
	r.GET("/boom", func(c *gin.Context) { c.String(http.StatusInternalServerError, "boom") })

	for path, want := range map[string]int{"/ok": 200, "/bad": 400, "/boom": 500} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("%s: status = %d, want %d", path, w.Code, want)
		}
	}
}
