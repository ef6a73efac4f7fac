package types

import "fmt"

// APIError represents a non-2xx response from the Gamma API.
type APIError struct {
	Status   int    // HTTP status code
	Endpoint string // Path that failed
	Body     string // Truncated response body for diagnostics
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gamma %s returned %d: %s", e.Endpoint, e.Status, e.Body)
	}

	return fmt.Sprintf("gamma %s returned %d", e.Endpoint, e.Status)
}
