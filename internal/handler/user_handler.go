package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"dash/internal/app/user"
	"dash/internal/pkg/auth/jwt"
	"dash/internal/pkg/errs"
	"dash/internal/pkg/logx"
	"dash/internal/pkg/randx"
	"dash/internal/pkg/req"
	"dash/internal/pkg/resp"
)

// DeleteUserInput names the account to delete. The body is either {"uuid": "..."}
// or a bare JSON string.
type DeleteUserInput struct {
	UUID string
}

func (d *DeleteUserInput) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		d.UUID = bare
		return nil
	}

	var wrapped struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	d.UUID = wrapped.UUID
	return nil
}

// HandleUserInfo returns the public identity of the caller.
func HandleUserInfo(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := jwt.ClaimsFrom[jwt.RequestClaims](r)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.InvalidToken, err))
			return
		}

		identity, err := deps.Directory.FindByID(r.Context(), claims.UserID())
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.UserNotExist))
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		resp.RespondJSON(w, r, http.StatusOK, identity.Public())
	}
}

// HandleListUsers returns every account. Elevated sessions only.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := jwt.ClaimsFrom[jwt.SessionClaims](r)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.InvalidToken, err))
			return
		}

		if !claims.Elevated {
			resp.RespondError(w, r, errs.NewError(errs.AccessDenied))
			return
		}

		identities, err := deps.Directory.ListAll(r.Context())
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		users := make([]user.PublicIdentity, 0, len(identities))
		for _, identity := range identities {
			users = append(users, identity.Public())
		}

		resp.RespondJSON(w, r, http.StatusOK, users)
	}
}

// HandleDeleteUser deletes an account by public id. Elevated sessions only.
func HandleDeleteUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := jwt.ClaimsFrom[jwt.SessionClaims](r)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.InvalidToken, err))
			return
		}

		if !claims.Elevated {
			resp.RespondError(w, r, errs.NewError(errs.AccessDenied))
			return
		}

		var input DeleteUserInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidPublicID(input.UUID) {
			resp.RespondError(w, r, errs.NewError(errs.MissingFields))
			return
		}

		if err := deps.Directory.DeleteByID(r.Context(), input.UUID); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.UserNotExist))
				return
			}

			resp.RespondError(w, r, errs.NewError(errs.ServerError, err))
			return
		}

		logx.Ctx(r.Context()).Info().
			Str("deleted_user", input.UUID).
			Str("deleted_by", claims.UserID()).
			Msg("User deleted")

		w.WriteHeader(http.StatusOK)
	}
}
