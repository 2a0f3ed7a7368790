package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shamba/internal/store"
)

// activateUserHandler flips the account active using the plain invitation
// token from the activation link. The stored token is the sha256 of the
// plain one, so the database never holds a usable token.
func (app *application) activateUserHandler(w http.ResponseWriter, r *http.Request) {
	plainToken := chi.URLParam(r, "token")

	hash := sha256.Sum256([]byte(plainToken))
	hashToken := hex.EncodeToString(hash[:])

	err := app.store.Users.Activate(r.Context(), hashToken)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "account activated"); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deactivateUserHandler soft-deletes the caller's own account. Profiles and
// history stay; the account just stops authenticating.
func (app *application) deactivateUserHandler(w http.ResponseWriter, r *http.Request) {
	p := getPrincipalFromContext(r)

	ctx := r.Context()

	if err := app.store.Users.Deactivate(ctx, p.UserID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.store.Users.DeleteRefreshToken(ctx, p.UserID); err != nil {
		app.logger.Errorw("error deleting refresh token on deactivation", "error", err)
	}

	if err := app.jsonResponse(w, http.StatusOK, "account deactivated"); err != nil {
		app.internalServerError(w, r, err)
	}
}

type GrantRolePayload struct {
	Role string `json:"role" validate:"required,max=50"`
}

// grantRoleHandler adds a role to an account. Admin-only; the profile row for
// profile-owning roles is still the holder's to create. Granting a role the
// user already holds is a no-op.
func (app *application) grantRoleHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload GrantRolePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	roleName := strings.ToUpper(strings.TrimSpace(payload.Role))

	if err := app.store.Roles.Grant(r.Context(), userID, roleName); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, "role granted"); err != nil {
		app.internalServerError(w, r, err)
	}
}

type PushTokenPayload struct {
	Token string `json:"token" validate:"required"`
}

func (app *application) registerPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload PushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipalFromContext(r)

	if err := app.store.PushTokens.Save(r.Context(), p.UserID, payload.Token); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, "push token saved"); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deletePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload PushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p := getPrincipalFromContext(r)

	if err := app.store.PushTokens.Delete(r.Context(), p.UserID, payload.Token); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "push token deleted"); err != nil {
		app.internalServerError(w, r, err)
	}
}
