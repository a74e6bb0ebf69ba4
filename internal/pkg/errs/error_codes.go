/*
Package errs provides the authentication failure taxonomy shared by every HTTP handler.

Each Kind is a stable, machine-readable tag that is sent to clients verbatim in the
"error_type" field of an error body.
*/
package errs

// Kind identifies one member of the failure taxonomy.
type Kind string

// Request and account errors.
const (
	// MissingFields indicates that a required field was empty or the body could not be decoded.
	MissingFields Kind = "MissingFields"

	// InvalidEmail indicates that the supplied email address is not syntactically valid.
	InvalidEmail Kind = "InvalidEmail"

	// UserExists indicates that the username or email is already registered.
	UserExists Kind = "UserExists"

	// UserNotExist indicates that the addressed user could not be found.
	UserNotExist Kind = "UserNotExist"

	// WrongCredentials indicates a failed password check.
	WrongCredentials Kind = "WrongCredentials"

	// TooManyRequests indicates that the caller exceeded the per-IP request rate.
	TooManyRequests Kind = "TooManyRequests"
)

// Token and privilege errors.
const (
	// InvalidToken covers every bearer token verification failure. The reason is never disclosed.
	InvalidToken Kind = "InvalidToken"

	// AccessDenied indicates a valid identity without the elevated flag required by the operation.
	AccessDenied Kind = "AccessDenied"

	// TokenGeneration indicates that a token could not be minted.
	TokenGeneration Kind = "TokenGeneration"
)

// Internal errors.
const (
	// ServerError represents an unclassified internal failure.
	ServerError Kind = "ServerError"
)
