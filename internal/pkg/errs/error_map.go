package errs

import "net/http"

// errorMap holds the single status/message pair of every Kind.
var errorMap = map[Kind]CustomError{
	MissingFields:    {Kind: MissingFields, Message: "Missing required fields", Status: http.StatusBadRequest},
	InvalidEmail:     {Kind: InvalidEmail, Message: "Invalid email address", Status: http.StatusBadRequest},
	UserExists:       {Kind: UserExists, Message: "User already exists", Status: http.StatusConflict},
	UserNotExist:     {Kind: UserNotExist, Message: "User does not exist", Status: http.StatusNotFound},
	WrongCredentials: {Kind: WrongCredentials, Message: "Wrong credentials", Status: http.StatusUnauthorized},
	TooManyRequests:  {Kind: TooManyRequests, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	InvalidToken:    {Kind: InvalidToken, Message: "Invalid token", Status: http.StatusForbidden},
	AccessDenied:    {Kind: AccessDenied, Message: "Access denied", Status: http.StatusForbidden},
	TokenGeneration: {Kind: TokenGeneration, Message: "Token generation failed", Status: http.StatusInternalServerError},

	ServerError: {Kind: ServerError, Message: "Server error", Status: http.StatusInternalServerError},
}

// Kinds returns every member of the taxonomy.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(errorMap))
	for k := range errorMap {
		kinds = append(kinds, k)
	}
	return kinds
}
