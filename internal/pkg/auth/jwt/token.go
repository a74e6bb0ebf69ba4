package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dash/internal/pkg/logx"
	"dash/internal/pkg/metrics"
)

const (
	// TokenType is the authorization scheme of every token the codec issues.
	TokenType = "Bearer"

	// DefaultLeeway is the clock skew tolerated on the iat check.
	DefaultLeeway = 5 * time.Second
)

var (
	// ErrInvalidToken is returned for every verification failure. Callers cannot
	// tell a bad signature from an expired or foreign token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenGeneration is returned when a token cannot be minted.
	ErrTokenGeneration = errors.New("token generation failed")

	// ErrInvalidSettings is returned by NewCodec for incomplete settings.
	ErrInvalidSettings = errors.New("invalid token settings")
)

// Settings is the immutable signing configuration, built once at startup.
type Settings struct {
	// Secret is the HMAC key shared by signing and verification.
	Secret []byte

	// Issuer is stamped into iss and required on verification.
	Issuer string

	// Audience is stamped into aud and required on verification.
	Audience string

	// Lifetime is added to the issue time to produce exp.
	Lifetime time.Duration

	// Leeway is the tolerated clock skew. Zero means DefaultLeeway.
	Leeway time.Duration
}

// Token is a signed identity token together with its scheme label.
type Token struct {
	Value string `json:"token"`
	Type  string `json:"token_type"`
}

// String returns the raw signed token.
func (t Token) String() string {
	return t.Value
}

// Header returns the token formatted for an Authorization header.
func (t Token) Header() string {
	return t.Type + " " + t.Value
}

// Codec signs and verifies HS256 tokens.
// A Codec is safe for concurrent use; its settings never change after construction.
type Codec struct {
	settings Settings
	parser   *jwt.Parser
}

// NewCodec validates settings and returns a Codec. Missing values are fatal to startup.
func NewCodec(settings Settings) (*Codec, error) {
	switch {
	case len(settings.Secret) == 0:
		return nil, fmt.Errorf("%w: secret is empty", ErrInvalidSettings)
	case settings.Issuer == "":
		return nil, fmt.Errorf("%w: issuer is empty", ErrInvalidSettings)
	case settings.Audience == "":
		return nil, fmt.Errorf("%w: audience is empty", ErrInvalidSettings)
	case settings.Lifetime <= 0:
		return nil, fmt.Errorf("%w: lifetime must be positive", ErrInvalidSettings)
	}

	if settings.Leeway == 0 {
		settings.Leeway = DefaultLeeway
	}

	secret := make([]byte, len(settings.Secret))
	copy(secret, settings.Secret)
	settings.Secret = secret

	// exp is checked without leeway; the skew allowance only covers iat, see Verify.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(settings.Issuer),
		jwt.WithAudience(settings.Audience),
		jwt.WithExpirationRequired(),
	)

	return &Codec{settings: settings, parser: parser}, nil
}

// registered builds the standard claims for a token about userID issued now.
func (c *Codec) registered(userID string) jwt.RegisteredClaims {
	now := time.Now()

	return jwt.RegisteredClaims{
		Issuer:    c.settings.Issuer,
		Subject:   userID,
		Audience:  jwt.ClaimStrings{c.settings.Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(c.settings.Lifetime)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

// Issue signs claims with the process secret.
func (c *Codec) Issue(claims Claims) (Token, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.settings.Secret)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrTokenGeneration, err)
	}

	metrics.Default().TokensIssued.WithLabelValues(claims.Kind()).Inc()

	return Token{Value: signed, Type: TokenType}, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry of tokenString and
// decodes its payload into claims. Every failure is reported as ErrInvalidToken.
func (c *Codec) Verify(tokenString string, claims Claims) error {
	token, err := c.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return c.settings.Secret, nil
	})
	if err == nil && !token.Valid {
		err = errors.New("token not valid")
	}
	if err == nil {
		err = c.checkIssuedAt(claims)
	}
	if err != nil {
		metrics.Default().TokenVerifyFailures.Inc()
		logx.Debug("Token verification failed", "kind", claims.Kind(), "reason", err.Error())
		return ErrInvalidToken
	}

	return nil
}

// checkIssuedAt requires iat and rejects tokens issued further in the future than the leeway.
func (c *Codec) checkIssuedAt(claims Claims) error {
	iat, err := claims.GetIssuedAt()
	if err != nil {
		return err
	}
	if iat == nil {
		return errors.New("token has no iat claim")
	}
	if iat.After(time.Now().Add(c.settings.Leeway)) {
		return jwt.ErrTokenUsedBeforeIssued
	}
	return nil
}
