package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Error taxonomy for the sheet data source. Authentication and access errors
// are fatal to the current render; transient errors are safe for the caller
// to retry with backoff. This layer never retries on its own.
var (
	// ErrSheetNotFound indicates the document or worksheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrAccessDenied indicates the credential lacks read access.
	ErrAccessDenied = errors.New("access denied")

	// ErrAuthRejected indicates the remote service declined the credential
	// (expired, revoked, insufficient scope).
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrTransientNetwork indicates a timeout or connection failure.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrSchemaMismatch indicates an expected column is absent.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// classifyAPIError maps a Sheets API failure onto the taxonomy above.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrSheetNotFound, err)
		case apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case apiErr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrAuthRejected, err)
		case apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", ErrTransientNetwork, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}

	return err
}
