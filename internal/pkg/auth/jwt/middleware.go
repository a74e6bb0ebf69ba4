package jwt

import (
	"context"
	"net/http"
	"strings"

	"dash/internal/pkg/errs"
	"dash/internal/pkg/logx"
	"dash/internal/pkg/resp"
)

// contextKey prevents collisions with context keys of other packages.
type contextKey string

// ContextClaimsKey stores the verified claims of the current request.
const ContextClaimsKey contextKey = "verified_claims"

// StripTrustedHeader removes any client-supplied ClaimsHeader. It runs first on every route.
func StripTrustedHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header[ClaimsHeader]; ok {
			logx.Ctx(r.Context()).Warn().Msg("Dropped client-supplied claims header")
			r.Header.Del(ClaimsHeader)
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], TokenType) {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Authenticate verifies the bearer token as claims of type T and stores them on the
// request context. Requests without a valid token are rejected with InvalidToken and
// never reach the next stage.
func Authenticate[T any, P claimsPtr[T]](codec *Codec) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				resp.RespondError(w, r, errs.NewError(errs.InvalidToken))
				return
			}

			claims, err := FromSignedToken[T, P](codec, tokenString)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.InvalidToken))
				return
			}

			ctx := context.WithValue(r.Context(), ContextClaimsKey, Claims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Propagate re-stamps the claims verified by Authenticate onto the request as the single
// ClaimsHeader, after deleting every pre-existing copy. Without verified claims the
// request is rejected.
func Propagate[T any, P claimsPtr[T]](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext[T, P](r.Context())
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.InvalidToken))
			return
		}

		encoded, err := encodeHeader(claims)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		r.Header.Del(ClaimsHeader)
		r.Header.Set(ClaimsHeader, encoded)

		next.ServeHTTP(w, r)
	})
}

// Protect composes Authenticate and Propagate for claims of type T.
func Protect[T any, P claimsPtr[T]](codec *Codec) func(next http.Handler) http.Handler {
	authenticate := Authenticate[T, P](codec)
	return func(next http.Handler) http.Handler {
		return authenticate(Propagate[T, P](next))
	}
}

// FromContext returns the verified claims of type T stored by Authenticate.
func FromContext[T any, P claimsPtr[T]](ctx context.Context) (P, bool) {
	claims, ok := ctx.Value(ContextClaimsKey).(P)
	return claims, ok && claims != nil
}

// ClaimsFrom returns the verified claims of the request, preferring the typed context
// value and falling back to the trusted header.
func ClaimsFrom[T any, P claimsPtr[T]](r *http.Request) (P, error) {
	if claims, ok := FromContext[T, P](r.Context()); ok {
		return claims, nil
	}
	return FromTrustedHeader[T, P](r.Header)
}
