package domain

import "errors"

var (
	// ErrImageNotFound is returned when the input path does not resolve to a readable image
	ErrImageNotFound = errors.New("image not found")

	// ErrSourceImageUnreadable is returned when the source image cannot be re-opened for annotation
	ErrSourceImageUnreadable = errors.New("source image unreadable")

	// ErrModelUnavailable is returned when the detection capability cannot be invoked
	ErrModelUnavailable = errors.New("detection model unavailable")

	// ErrRateLimitExceeded is returned when the detection service keeps rate limiting after all retries
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCatalogMalformed is returned when catalog data does not parse into the expected shape
	ErrCatalogMalformed = errors.New("catalog malformed")

	// ErrImageWrite is returned when an annotated image cannot be persisted
	ErrImageWrite = errors.New("annotated image write failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrResultNotFound is returned when a stored result is missing or expired
	ErrResultNotFound = errors.New("result not found")

	// ErrSpeciesNotFound is returned when a species has no catalog entry
	ErrSpeciesNotFound = errors.New("species not found in catalog")
)
