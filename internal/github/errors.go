package gh

import (
	"errors"
	"fmt"
)

// Kind classifies provider failures by the HTTP status the provider returned.
type Kind string

const (
	KindBadRequest         Kind = "bad_request"          // 400
	KindInvalidCredentials Kind = "invalid_credentials"  // 401
	KindNotFound           Kind = "not_found"            // 404
	KindConflict           Kind = "merge_conflict"       // 409
	KindUnprocessable      Kind = "unprocessable_entity" // 422
	KindProvider           Kind = "provider_error"       // everything else
)

// APIError wraps a provider failure with its classified kind and status code.
// The underlying go-github error is preserved verbatim for callers that need
// the provider's message.
type APIError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("github %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InvalidRefError indicates an identifier that is neither a 40-hex SHA nor a
// resolvable branch or tag name.
type InvalidRefError struct {
	Identifier string
}

func (e *InvalidRefError) Error() string {
	return fmt.Sprintf("%q could not be resolved to a commit SHA", e.Identifier)
}

// KindOf returns the classified kind of a provider error, or false when err
// did not originate from a provider call.
func KindOf(err error) (Kind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return "", false
}

// IsNotFound reports whether err represents a missing remote object or file.
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}

// IsInvalidRef reports whether err came from an unresolvable ref identifier.
func IsInvalidRef(err error) bool {
	var target *InvalidRefError
	return errors.As(err, &target)
}
