// Package services defines the business logic for access control, the
// key-intake funnel, and administration. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// transport/handler layer. Per the error taxonomy, a denial (ErrNoAccess,
// ErrAccessExpired) is distinct from an infrastructure failure: infra errors
// are never one of these sentinels and always propagate raw.
package services

import "errors"

// Access-control errors.
var (
	// ErrNoAccess indicates the user has never been granted access.
	ErrNoAccess = errors.New("no access grant")

	// ErrAccessExpired indicates the user's grant exists but has lapsed or
	// was administratively deactivated.
	ErrAccessExpired = errors.New("access grant expired or deactivated")

	// ErrAdminGrant is returned when an administrator attempts to grant
	// access to themselves or to another administrator. Admin identities
	// bypass grants entirely and must never acquire a grant row.
	ErrAdminGrant = errors.New("cannot grant access to an administrator")

	// ErrGrantNotFound indicates a deactivate targeted a user without a grant.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrBadDays is returned when a grant duration is not a positive day count.
	ErrBadDays = errors.New("days must be a positive number")
)

// Funnel errors. The validation sentinels are recoverable: the user stays on
// the same step and receives a corrective prompt.
var (
	// ErrNoFunnel indicates the user has no funnel in progress.
	ErrNoFunnel = errors.New("no funnel in progress")

	// ErrReservedInput is returned when step input matches a menu/navigation
	// token; such text is never captured as step data.
	ErrReservedInput = errors.New("input is a reserved menu token")

	// ErrBadCategory is returned when the category token is not in the
	// recognized set.
	ErrBadCategory = errors.New("unrecognized category")

	// ErrBadGeography is returned when the geography token is empty.
	ErrBadGeography = errors.New("geography must not be empty")

	// ErrBadSource is returned when the source platform is not recognized.
	ErrBadSource = errors.New("unrecognized source platform")

	// ErrBadPrice is returned when the price does not parse to a finite
	// positive number.
	ErrBadPrice = errors.New("enter a valid positive number")

	// ErrBadKey is returned when the submitted text is not key-shaped
	// (too short or containing characters outside [A-Za-z0-9._-]).
	ErrBadKey = errors.New("not a key-shaped string")
)
