package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrMissingCredentials is returned when a backend that needs an API key
// has none configured.
var ErrMissingCredentials = errors.New("missing API credentials")

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned an unusable response,
// e.g. no choices or no text content.
type ErrInvalidResponse struct {
	Content string
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit. Content and Usage hold what did arrive.
type ErrMaxTokensExceeded struct {
	Content string
	Usage   Usage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// ErrAuthentication indicates the credentials were rejected. Never retried.
type ErrAuthentication struct {
	Err error
}

func (e *ErrAuthentication) Error() string {
	return fmt.Sprintf("LLM authentication failed: %v", e.Err)
}

func (e *ErrAuthentication) Unwrap() error { return e.Err }

// ErrBadRequest indicates the provider rejected the request itself
// (unknown model, malformed parameters). Never retried.
type ErrBadRequest struct {
	Err error
}

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("LLM request rejected: %v", e.Err)
}

func (e *ErrBadRequest) Unwrap() error { return e.Err }

// ErrTimeout indicates a single call ran past its per-attempt deadline.
// Retried like any other transient failure.
type ErrTimeout struct {
	After time.Duration
	Err   error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("LLM call timed out after %s", e.After)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a non-transient provider failure.
func IsPermanent(err error) bool {
	var auth *ErrAuthentication
	var bad *ErrBadRequest
	return errors.As(err, &auth) || errors.As(err, &bad)
}

// classifyStatus maps an HTTP status from a provider SDK error.
func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ErrAuthentication{Err: err}
	case status == http.StatusTooManyRequests:
		return &ErrRateLimit{Err: err}
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return classifyMessage(err, &ErrBadRequest{Err: err})
	case status >= 500:
		return &ErrProviderUnavailable{Err: err}
	}
	return classifyMessage(err, &ErrProviderUnavailable{Err: err})
}

// permanentMarkers are error message fragments that identify failures a
// retry cannot fix.
var permanentMarkers = []string{
	"unauthorized",
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"authentication",
	"permission denied",
}

// classifyMessage inspects the error text for credential failures and
// returns fallback otherwise.
func classifyMessage(err error, fallback error) error {
	msg := strings.ToLower(err.Error())
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return &ErrAuthentication{Err: err}
		}
	}
	if strings.Contains(msg, "invalid_request") {
		return &ErrBadRequest{Err: err}
	}
	return fallback
}
