package zonemap

import "github.com/kailas-cloud/zonemap/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrCollectionNotLoaded = domain.ErrCollectionNotLoaded
	ErrInvalidSource       = domain.ErrInvalidSource
	ErrInvalidCoordinates  = domain.ErrInvalidCoordinates
	ErrQueryQuotaExceeded  = domain.ErrQueryQuotaExceeded
	ErrQueryProviderError  = domain.ErrQueryProviderError
)
