package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS adds Strict-Transport-Security on HTTPS responses.
	EnableHSTS bool
	// HSTSMaxAge is the max-age in seconds for HSTS; <= 0 falls back to 180 days.
	HSTSMaxAge int
	// NoStore adds Cache-Control: no-store. The API serves per-user state,
	// so intermediaries must not cache responses.
	NoStore bool
	// EnablePolicy adds a restrictive Content-Security-Policy and
	// Permissions-Policy suitable for a JSON-only API.
	EnablePolicy bool
}

// SecurityHeaders sets conservative security headers on every response.
func SecurityHeaders(opts SecurityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opts.NoStore {
			h.Set("Cache-Control", "no-store")
		}
		if opts.EnablePolicy {
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		}
		if opts.EnableHSTS && isHTTPS(c) {
			maxAge := opts.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 15552000
			}
			h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(maxAge)+"; includeSubDomains")
		}

		c.Next()
	}
}

// isHTTPS reports whether the request arrived over TLS, directly or via a
// trusted proxy's X-Forwarded-Proto.
func isHTTPS(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
}
