// Package handlers defines HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case; generic codes mirror HTTP status
// semantics, domain-specific codes cover outcomes a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeDeliveryFailed = "delivery_failed"
	ErrCodeListFailed     = "list_failed"
	ErrCodeStatsFailed    = "stats_failed"
)
