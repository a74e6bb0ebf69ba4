package jwt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsHeader carries verified claims between stages inside the process.
// It is stripped from every inbound request and only set by Propagate.
const ClaimsHeader = "X-Claims"

// ErrNoClaims is returned when a request carries no verified claims.
var ErrNoClaims = errors.New("no verified claims on request")

// Claims is the contract shared by the session and request claim variants.
type Claims interface {
	jwt.Claims

	// UserID returns the public id of the user the claims speak for.
	UserID() string

	// Kind names the variant, "session" or "request".
	Kind() string
}

// claimsPtr constrains generic helpers to pointers of claim structs.
type claimsPtr[T any] interface {
	*T
	Claims
}

// SessionClaims is the user-facing credential minted on login and registration.
// Elevated gates administrative operations.
type SessionClaims struct {
	jwt.RegisteredClaims

	Elevated bool `json:"acc"`
}

// UserID implements Claims.
func (c *SessionClaims) UserID() string { return c.Subject }

// Kind implements Claims.
func (c *SessionClaims) Kind() string { return "session" }

// ToToken signs the claims.
func (c *SessionClaims) ToToken(codec *Codec) (Token, error) {
	return codec.Issue(c)
}

// RequestClaims asserts who is acting without asserting a privilege level.
// It is used for internal hops and the realtime handshake.
type RequestClaims struct {
	jwt.RegisteredClaims
}

// UserID implements Claims.
func (c *RequestClaims) UserID() string { return c.Subject }

// Kind implements Claims.
func (c *RequestClaims) Kind() string { return "request" }

// ToToken signs the claims.
func (c *RequestClaims) ToToken(codec *Codec) (Token, error) {
	return codec.Issue(c)
}

// PrivilegeLookup resolves the elevated flag of a user by public id.
// It returns an error when the user does not exist.
type PrivilegeLookup interface {
	Elevated(ctx context.Context, userID string) (bool, error)
}

// IssueSession builds session claims for userID, taking the elevated flag from lookup.
func IssueSession(ctx context.Context, codec *Codec, lookup PrivilegeLookup, userID string) (*SessionClaims, error) {
	elevated, err := lookup.Elevated(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving user %s: %w", ErrTokenGeneration, userID, err)
	}

	return &SessionClaims{
		RegisteredClaims: codec.registered(userID),
		Elevated:         elevated,
	}, nil
}

// IssueRequest builds request claims for userID. The caller is trusted to have resolved the id.
func IssueRequest(codec *Codec, userID string) *RequestClaims {
	return &RequestClaims{RegisteredClaims: codec.registered(userID)}
}

// FromSignedToken verifies tokenString and decodes it as claims of type T.
func FromSignedToken[T any, P claimsPtr[T]](codec *Codec, tokenString string) (P, error) {
	claims := P(new(T))
	if err := codec.Verify(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// FromTrustedHeader decodes claims written by Propagate. It performs no signature check:
// the header is trusted only because inbound copies are always stripped at the edge.
func FromTrustedHeader[T any, P claimsPtr[T]](header http.Header) (P, error) {
	encoded := header.Get(ClaimsHeader)
	if encoded == "" {
		return nil, ErrNoClaims
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding %s header: %w", ClaimsHeader, err)
	}

	claims := P(new(T))
	if err := json.Unmarshal(raw, claims); err != nil {
		return nil, fmt.Errorf("unmarshaling %s header: %w", ClaimsHeader, err)
	}

	return claims, nil
}

// encodeHeader serializes claims for ClaimsHeader.
func encodeHeader(claims Claims) (string, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
