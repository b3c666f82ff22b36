package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrGeoBlocked indicates the content is not available in the current region.
	ErrGeoBlocked = errors.New("content is not available in your region")
	// ErrLoginRequired indicates the content sits behind the subscription paywall.
	ErrLoginRequired = errors.New("content is only available to subscribers")
	// ErrNotYetAvailable indicates the content has not been released yet.
	ErrNotYetAvailable = errors.New("content is not yet available")
	// ErrTooManyPages indicates a listing endpoint kept reporting further pages
	// past the configured bound.
	ErrTooManyPages = errors.New("too many listing pages")
	// ErrInvalidID indicates the input is not a recognized video or channel identifier.
	ErrInvalidID = errors.New("invalid content identifier")
)

// APIError carries a server-reported error message verbatim.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s", e.Message)
}
