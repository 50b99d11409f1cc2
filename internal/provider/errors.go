// ABOUTME: Error types for live-mode failures
// ABOUTME: Timeouts and transport failures trigger retries; ExhaustedRetriesError is terminal

package provider

import (
	"fmt"
	"time"
)

// TimeoutError reports that an attempt got no response within the timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("chat request timed out after %s", e.After)
}

// Timeout reports true, matching the net.Error convention.
func (e *TimeoutError) Timeout() bool {
	return true
}

// TransportError reports a non-success status, a network failure, or a
// response body that could not be decoded.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("chat backend returned HTTP %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("chat backend returned HTTP %d", e.StatusCode)
	default:
		return fmt.Sprintf("chat request failed: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ExhaustedRetriesError is returned once every attempt has failed.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("chat request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Last
}
