package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrPageNotFound signals an unknown or torn-down page session.
	ErrPageNotFound = errors.New("page not found")
	// ErrTooManyPages signals that the page session limit is reached.
	ErrTooManyPages = errors.New("too many pages")
	// ErrCollectionNotLoaded signals that the feature collection is not published.
	ErrCollectionNotLoaded = errors.New("feature collection not loaded")
	// ErrInvalidSource signals an unsupported or malformed geodata source.
	ErrInvalidSource = errors.New("invalid geodata source")
	// ErrInvalidCoordinates signals a pointer or click position off the globe.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrQueryQuotaExceeded signals an exhausted query quota.
	ErrQueryQuotaExceeded = errors.New("query quota exceeded")
	// ErrQueryProviderError signals a text-generation provider failure.
	ErrQueryProviderError = errors.New("query provider error")
)
