package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StatusError is a non-2xx response from the backend. Message carries the
// server's display message when the error body could be parsed.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error: status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend error: status %d", e.Code)
}

// IsRateLimited reports whether this response means the daily quota is
// exhausted.
func (e *StatusError) IsRateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

func newStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{Code: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return statusErr
	}

	var errBody ErrorBody
	if err := json.Unmarshal(body, &errBody); err == nil {
		statusErr.Message = errBody.DisplayMessage()
	}

	return statusErr
}

// FailureKind is an advisory classification of an upstream failure message,
// used only to pick a user-facing notice. It carries no correctness weight.
type FailureKind int

const (
	FailureGeneric FailureKind = iota
	FailureRateLimited
	FailureServiceUnavailable
	FailureUnauthorized
)

// ClassifyFailure buckets an error message by substring. The matching is
// deliberately loose; misclassification only changes wording, never state.
func ClassifyFailure(message string) FailureKind {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "quota"):
		return FailureRateLimited
	case strings.Contains(lower, "api key"),
		strings.Contains(lower, "service unavailable"),
		strings.Contains(lower, "not configured"):
		return FailureServiceUnavailable
	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "sign in"),
		strings.Contains(lower, "session expired"):
		return FailureUnauthorized
	default:
		return FailureGeneric
	}
}

// FailureNotice returns the user-facing message for a classified failure
func FailureNotice(kind FailureKind) string {
	switch kind {
	case FailureRateLimited:
		return "The assistant is handling a lot of requests right now. Please try again in a moment."
	case FailureServiceUnavailable:
		return "The assistant is temporarily unavailable. Please try again later."
	case FailureUnauthorized:
		return "Your session has expired. Please sign in again."
	default:
		return "Something went wrong. Please try again."
	}
}
