package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrUnauthorized      = errors.New("not authorized")
	ErrSessionExpired    = errors.New("session expired, please log in again")
	ErrRefreshFailed     = errors.New("session refresh failed")
	ErrNoPreviousTrack   = errors.New("no previous track")
	ErrPreviousForbidden = errors.New("going back is not allowed right now")
	ErrNoTarget          = errors.New("select a track first")
	ErrNetworkError      = errors.New("network error")
	ErrTimeout           = errors.New("request timeout")
	ErrMalformedResponse = errors.New("malformed response")
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Kind classifies an error by how the client reacts to it.
type Kind int

const (
	KindNone Kind = iota
	// KindTransport is a network error or a non-auth non-2xx status.
	// Shown as a transient message, never retried.
	KindTransport
	// KindAuthorization is a 401/403. Routed to the reactive refresh.
	KindAuthorization
	// KindMalformed is an unparseable body; treated as "no data".
	KindMalformed
	// KindPrecondition is a user action that cannot proceed; no request is made.
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuthorization:
		return "authorization"
	case KindMalformed:
		return "malformed"
	case KindPrecondition:
		return "precondition"
	default:
		return "none"
	}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrSessionExpired), errors.Is(err, ErrRefreshFailed):
		return KindAuthorization
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, ErrNoTarget), errors.Is(err, ErrNoPreviousTrack), errors.Is(err, ErrPreviousForbidden):
		return KindPrecondition
	default:
		return KindTransport
	}
}

// IsAuthFailure reports whether err is an authorization failure status.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsCanceled reports whether err came from a canceled context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// RiffError wraps an error with a user-friendly suggestion.
type RiffError struct {
	Err        error
	Suggestion string
}

func (e *RiffError) Error() string {
	return e.Err.Error()
}

func (e *RiffError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &RiffError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var riffErr *RiffError
	if errors.As(err, &riffErr) && riffErr.Suggestion != "" {
		return riffErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrRefreshFailed), errors.Is(err, ErrUnauthorized):
		return "Run 'riffbar auth login' to sign in again"

	case errors.Is(err, ErrNoTarget):
		return "Pick a result with 'riffbar queue add <query>' or pass --uri spotify:track:..."

	case errors.Is(err, ErrPreviousForbidden):
		return "The player does not allow going back here; try 'riffbar restart'"

	case errors.Is(err, ErrNetworkError), errors.Is(err, ErrTimeout),
		strings.Contains(errStr, "timeout"), strings.Contains(errStr, "connection refused"):
		return "Check your internet connection and the backend.url setting"

	case errors.Is(err, ErrConfigNotFound):
		return "Run 'riffbar config init' to create a configuration file"

	case errors.Is(err, ErrInvalidConfig):
		return "Fix the settings above with 'riffbar config edit' or 'riffbar config set'"

	case strings.Contains(errStr, "status 5"):
		return "The backend is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// UserMessage returns the short text shown in a status line for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrRefreshFailed):
		return "Session expired, please log in again"
	case errors.Is(err, ErrNoPreviousTrack):
		return "No previous track"
	case errors.Is(err, ErrPreviousForbidden):
		return "Going back is not allowed right now"
	case errors.Is(err, ErrNoTarget):
		return "Please select a track first"
	case errors.Is(err, ErrNetworkError), errors.Is(err, ErrTimeout):
		return "Backend unreachable"
	default:
		return "Error: " + err.Error()
	}
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
