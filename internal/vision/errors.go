package vision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/api/googleapi"
)

// ============================================================================
// Error Classification
// ============================================================================
//
// Transient failures (timeouts, 5xx, rate limiting) are retried by the
// client. Fatal failures (bad credentials, exhausted quota, malformed
// requests) are returned immediately and abort the run.
// ============================================================================

// ErrNoAPIKey indicates the selected provider has no credential configured.
var ErrNoAPIKey = errors.New("missing API key")

// ErrorCategory classifies a vision service failure for retry purposes.
type ErrorCategory int

const (
	CategoryTransient ErrorCategory = iota
	CategoryAuth
	CategoryQuota
	CategoryInvalidArgument
)

// String returns a short label for logging.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryAuth:
		return "auth"
	case CategoryQuota:
		return "quota"
	case CategoryInvalidArgument:
		return "invalid-argument"
	default:
		return "transient"
	}
}

// ServiceError is a classified failure from a vision backend.
type ServiceError struct {
	Category ErrorCategory
	Status   int // HTTP-ish status code when known, else 0
	Message  string
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("vision service error (%s, status %d): %s", e.Category, e.Status, e.Message)
	}
	return fmt.Sprintf("vision service error (%s): %s", e.Category, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure should be retried.
func (e *ServiceError) Transient() bool {
	return e.Category == CategoryTransient
}

// IsFatal reports whether err is a vision failure that must never be
// retried (auth, quota, invalid argument). A missing API key is fatal too.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoAPIKey) {
		return true
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return !se.Transient()
	}
	return false
}

// IsTransient reports whether err is a retryable vision failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return false
}

// classifyStatus maps an HTTP status and response body to a ServiceError.
// 429 is rate limiting (transient) unless the body names quota exhaustion.
func classifyStatus(status int, body string) *ServiceError {
	category := CategoryTransient
	switch {
	case status == 401 || status == 403:
		category = CategoryAuth
	case status == 429:
		if strings.Contains(strings.ToLower(body), "quota") {
			category = CategoryQuota
		}
	case status == 400 || status == 404 || status == 422:
		category = CategoryInvalidArgument
	case status >= 500:
		category = CategoryTransient
	}
	msg := body
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return &ServiceError{Category: category, Status: status, Message: msg}
}

// classifyErr maps transport-level and SDK errors to a ServiceError.
func classifyErr(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		classified := classifyStatus(gerr.Code, gerr.Message)
		classified.Err = err
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Category: CategoryTransient, Message: "request timed out", Err: err}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &ServiceError{Category: CategoryTransient, Message: "network timeout", Err: err}
	}

	// Unrecognized failures default to transient so a flaky connection gets
	// its retry budget before the image is marked errored.
	return &ServiceError{Category: CategoryTransient, Message: err.Error(), Err: err}
}
