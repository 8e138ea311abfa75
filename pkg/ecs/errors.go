package ecs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrAuthentication marks a failed login. Callers must not issue any
	// further requests after seeing it.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotAuthenticated is returned by calls made before a successful Login.
	ErrNotAuthenticated = errors.New("no session token, call Login first")
)

// APIError is a non-200 answer from the management API. The ECS error body
// looks like {"code":1004,"description":"...","details":"...","retryable":false}.
type APIError struct {
	StatusCode  int
	Code        int    `json:"code"`
	Description string `json:"description"`
	Details     string `json:"details"`
	Retryable   bool   `json:"retryable"`
	// Raw response body, kept when it is not a structured error
	Body string `json:"-"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Description == "" {
		*apiErr = APIError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
	return apiErr
}

func (e *APIError) Error() string {
	if e.Description == "" {
		if e.Body == "" {
			return fmt.Sprintf("status %d", e.StatusCode)
		}
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
	}

	msg := fmt.Sprintf("status %d, code %d: %s", e.StatusCode, e.Code, e.Description)
	// ECS often repeats the description as details
	if e.Details != "" && e.Details != e.Description {
		msg += " (" + e.Details + ")"
	}
	return msg
}

// IsAuthError reports whether err comes from a failed login.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthentication)
}
