/*
Package req decodes JSON request bodies.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"dash/internal/pkg/errs"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes int64 = 64 << 10 // 64 KB

// ErrNotJSON is returned for requests without an application/json content type.
var ErrNotJSON = errors.New("request content type is not application/json")

// BindJSON decodes the request body into dst, rejecting unknown fields and trailing data.
// Every failure maps to MissingFields; the underlying cause is logged.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	if err := decode(w, r, dst); err != nil {
		return errs.NewError(errs.MissingFields, err)
	}
	return nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return ErrNotJSON
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}

	if decoder.More() {
		return errors.New("request body contains data after the JSON value")
	}

	return nil
}
