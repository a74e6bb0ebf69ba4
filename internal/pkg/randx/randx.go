/*
Package randx generates the random identifiers handed out by the server.

Public user ids are UUID v4 strings; they are the subject of every issued token.
*/
package randx

import (
	"github.com/google/uuid"
)

// PublicID generates a UUID v4 string to serve as the public id of a new identity.
func PublicID() string {
	return uuid.New().String()
}

// IsValidPublicID checks if the given string is a canonical UUID.
func IsValidPublicID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
