/*
Package resp writes JSON responses and failure bodies.

Success payloads are written as-is; failures are written as the errs.CustomError body
{"error_type", "message"} with the status paired to its kind.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"dash/internal/pkg/errs"
	"dash/internal/pkg/logx"
)

// TokenHeader is an issued token rendered for the Authorization response header.
type TokenHeader interface {
	Header() string
}

// RespondJSON writes payload with httpStatus.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Ctx(r.Context()).Error().
			Err(err).
			Int("http_status", httpStatus).
			Msg("Error encoding JSON response")

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondWithToken sets the Authorization header to token and writes payload.
func RespondWithToken(w http.ResponseWriter, r *http.Request, httpStatus int, token TokenHeader, payload any) {
	w.Header().Set("Authorization", token.Header())

	if payload == nil {
		w.WriteHeader(httpStatus)
		return
	}
	RespondJSON(w, r, httpStatus, payload)
}

// RespondError writes the failure body of customErr.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ServerError)
	}

	RespondJSON(w, r, customErr.Status, customErr)
}
