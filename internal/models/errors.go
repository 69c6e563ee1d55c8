package models

import "github.com/pkg/errors"

var (
	// ErrDeliveryNotFound covers both an unknown tracking number and a wrong
	// secret for an existing one, so callers cannot probe which numbers exist.
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrLinkExpired means the credentials matched but the tracking link's
	// retention window has passed.
	ErrLinkExpired = errors.New("tracking link expired")

	// ErrRateLimited means the per-delivery location feed exceeded its
	// configured updates-per-minute budget.
	ErrRateLimited = errors.New("location update rate limit exceeded")
)
