package errs

import (
	"fmt"

	"dash/internal/pkg/logx"
)

// CustomError is the failure value returned by handlers.
// It is serialized to clients as {"error_type": Kind, "message": Message} with HTTP Status.
type CustomError struct {
	// Kind is the taxonomy tag.
	Kind Kind `json:"error_type"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Status is the HTTP status code paired with Kind.
	Status int `json:"-"`
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Message)
}

// Is reports whether target carries the same Kind, so errors.Is works on wrapped values.
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError returns a fresh *CustomError for kind. Unknown kinds map to ServerError.
// An optional cause is logged and never exposed to the client.
func NewError(kind Kind, cause ...error) *CustomError {
	template, ok := errorMap[kind]
	if !ok {
		logx.Error(
			fmt.Errorf("unknown failure kind %q", kind),
			"Unknown error kind requested",
		)
		template = errorMap[ServerError]
	}

	if len(cause) > 0 && cause[0] != nil {
		if template.Status >= 500 {
			logx.Error(cause[0], "Request failed with internal error", "error_type", string(template.Kind))
		} else {
			logx.Warn("Request rejected", "error_type", string(template.Kind), "cause", cause[0].Error())
		}
	}

	customErr := template
	return &customErr
}
