// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the structured access logger. Because
// this service exists to move secret API keys around, the logger scrubs
// key-shaped tokens (long runs of [A-Za-z0-9._-]) in addition to the usual
// identifiers before anything reaches the log stream. Bodies are never logged.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
// MaskHeaders lists extra header names (case-insensitive) whose values are
// fully replaced; it is merged with the built-in sensitive set
// (Authorization, Cookie, Set-Cookie).
type RedactOptions struct {
	MaskHeaders []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// secretRE matches key-shaped tokens: 16+ chars of the key alphabet.
	// Applied after uuidRE so a UUID is labeled as an id, not a secret.
	secretRE = regexp.MustCompile(`\b[A-Za-z0-9._-]{16,}\b`)
)

// redact scrubs identifiers and key-shaped secrets from a log value.
func redact(s string) string {
	if s == "" {
		return s
	}
	out := uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
	out = secretRE.ReplaceAllString(out, "[REDACTED:secret]")
	return out
}

// RedactingLogger returns a Gin middleware that logs each request with
// sensitive values scrubbed: method, route path, query, status, size,
// latency, and scrubbed request headers. Severity follows the outcome
// (info, warn for 4xx, error for 5xx). It also attaches a request-scoped
// zerolog.Logger for LoggerFrom.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := redact(c.Request.URL.RawQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, masked := maskHeaders[strings.ToLower(k)]; masked {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		rid, _ := c.Get(requestIDKey)
		l := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		ev.
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
