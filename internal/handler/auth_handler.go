/*
Package handler provides the HTTP handlers for authentication, user management and the
realtime chat upgrade.
*/
package handler

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"dash/internal/app/user"
	"dash/internal/pkg/auth/jwt"
	"dash/internal/pkg/errs"
	"dash/internal/pkg/logx"
	"dash/internal/pkg/password"
	"dash/internal/pkg/randx"
	"dash/internal/pkg/req"
	"dash/internal/pkg/resp"
)

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	// Username matches either the username or the email of the account.
	Username string `json:"username"`
	Password string `json:"password"`
}

// isValidEmail accepts a bare address without display name.
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// HandleRegister creates an account and responds with a session token.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Username = strings.TrimSpace(input.Username)
		input.Email = strings.TrimSpace(input.Email)

		if input.Username == "" || input.Email == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.MissingFields))
			return
		}

		if !isValidEmail(input.Email) {
			resp.RespondError(w, r, errs.NewError(errs.InvalidEmail))
			return
		}

		hash, err := deps.Hasher.Hash(input.Password)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		identity, err := deps.Directory.Insert(r.Context(), user.Registration{
			PublicID:     randx.PublicID(),
			Username:     input.Username,
			Email:        input.Email,
			PasswordHash: hash,
		})
		if err != nil {
			if errors.Is(err, user.ErrConflict) {
				logx.Warn("registration conflict: username or email already exists", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.UserExists))
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		respondWithSession(w, r, deps, identity, http.StatusCreated)
	}
}

// HandleLogin verifies credentials and responds with a session token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if strings.TrimSpace(input.Username) == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.WrongCredentials))
			return
		}

		identity, err := deps.Directory.FindByUsernameOrEmail(r.Context(), strings.TrimSpace(input.Username))
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.UserNotExist))
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		if err := deps.Hasher.Verify(input.Password, identity.PasswordHash); err != nil {
			if errors.Is(err, password.ErrMismatch) {
				logx.Warn("login: password mismatch", "username", identity.Username)
				resp.RespondError(w, r, errs.NewError(errs.WrongCredentials))
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		respondWithSession(w, r, deps, identity, http.StatusOK)
	}
}

// respondWithSession issues a session token for identity and writes it with the public identity.
func respondWithSession(w http.ResponseWriter, r *http.Request, deps *AppDeps, identity user.Identity, status int) {
	claims, err := jwt.IssueSession(r.Context(), deps.Codec, deps.privileges(), identity.PublicID)
	if err != nil {
		resp.RespondError(w, r, errs.NewError(errs.TokenGeneration, err))
		return
	}

	token, err := claims.ToToken(deps.Codec)
	if err != nil {
		resp.RespondError(w, r, errs.NewError(errs.TokenGeneration, err))
		return
	}

	resp.RespondWithToken(w, r, status, token, identity.Public())
}

// HandleRequestToken exchanges a verified request token for a fresh one about the same user.
func HandleRequestToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := jwt.ClaimsFrom[jwt.RequestClaims](r)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.InvalidToken, err))
			return
		}

		if _, err := deps.Directory.FindByID(r.Context(), claims.UserID()); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.AccessDenied, err))
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		token, err := jwt.IssueRequest(deps.Codec, claims.UserID()).ToToken(deps.Codec)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.TokenGeneration, err))
			return
		}

		resp.RespondWithToken(w, r, http.StatusCreated, token, nil)
	}
}

// HandleAuthTest reports whether the session token is valid.
func HandleAuthTest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := jwt.ClaimsFrom[jwt.SessionClaims](r)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.InvalidToken, err))
			return
		}

		logx.Ctx(r.Context()).Debug().
			Str("user_id", claims.UserID()).
			Bool("elevated", claims.Elevated).
			Msg("Authentication test passed")

		resp.RespondJSON(w, r, http.StatusOK, "Authenticated")
	}
}
