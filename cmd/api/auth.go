package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"shamba/internal/auth"
	"shamba/internal/mailer"
	"shamba/internal/store"
)

type RegisterUserPayload struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Phone     string `json:"phone" validate:"required,kenyanphone"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Role      string `json:"role" validate:"required,oneof=FARMER BUYER EXPORTER"`

	// Role-specific profile fields. Farmers supply farm name and county,
	// buyers a company name, exporters a company name and license number.
	FarmName    string `json:"farm_name,omitempty" validate:"omitempty,max=100"`
	County      string `json:"county,omitempty" validate:"omitempty,max=50"`
	CompanyName string `json:"company_name,omitempty" validate:"omitempty,max=100"`
	LicenseNo   string `json:"license_no,omitempty" validate:"omitempty,max=50"`
}

type UserWithToken struct {
	*store.User `json:"user"`
	Token       string `json:"token"`
}

// registerUserHandler creates an inactive account with its role and profile,
// then emails an activation link. The plain invitation token is returned in
// the response for clients that confirm in-app.
func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := &store.User{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
	}
	if err := user.Password.Set(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx := r.Context()

	plainToken := uuid.New().String()
	hash := sha256.Sum256([]byte(plainToken))
	hashToken := hex.EncodeToString(hash[:])

	err := app.store.Users.CreateAndInvite(ctx, user, hashToken, app.config.mail.exp, payload.Role)
	if err != nil {
		switch err {
		case store.ErrDuplicateEmail, store.ErrDuplicatePhoneNumber:
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if _, err := app.createProfile(r, user.ID, payload); err != nil {
		app.logger.Errorw("error creating profile, rolling back user", "error", err)
		if err := app.store.Users.Delete(ctx, user.ID); err != nil {
			app.logger.Errorw("error deleting user", "error", err)
		}
		if errors.Is(err, store.ErrConflict) {
			app.conflictResponse(w, r, err)
		} else {
			app.internalServerError(w, r, err)
		}
		return
	}

	userWithToken := UserWithToken{
		User:  user,
		Token: plainToken,
	}

	activationURL := fmt.Sprintf("%s/confirm?token=%s", app.config.frontendURL, plainToken)

	vars := struct {
		Username      string
		ActivationURL string
	}{
		Username:      user.FirstName,
		ActivationURL: activationURL,
	}

	status, err := app.mailer.Send(mailer.UserWelcomeTemplate, user.FirstName, user.Email, vars)
	if err != nil {
		app.logger.Errorw("error sending welcome email", "error", err)

		// rollback user creation if email fails (SAGA pattern)
		if err := app.store.Users.Delete(ctx, user.ID); err != nil {
			app.logger.Errorw("error deleting user", "error", err)
		}

		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("welcome email sent", "status code", status)

	if err := app.jsonResponse(w, http.StatusCreated, userWithToken); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) createProfile(r *http.Request, userID int64, payload RegisterUserPayload) (*store.Profile, error) {
	ctx := r.Context()

	switch payload.Role {
	case store.RoleFarmer:
		return app.store.Profiles.CreateFarmer(ctx, userID, payload.FarmName, payload.County)
	case store.RoleBuyer:
		return app.store.Profiles.CreateBuyer(ctx, userID, payload.CompanyName)
	case store.RoleExporter:
		return app.store.Profiles.CreateExporter(ctx, userID, payload.CompanyName, payload.LicenseNo)
	default:
		return nil, fmt.Errorf("role %q does not own a profile", payload.Role)
	}
}

type CreateTokenPayload struct {
	// Identifier is an email address or a phone number.
	Identifier string `json:"identifier" validate:"required,max=255"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Role       string `json:"role,omitempty" validate:"omitempty,max=50"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// createTokenHandler authenticates a user and issues an access/refresh token
// pair. The subject of the access token is the role-specific profile id
// picked by the resolver, not the account id.
func (app *application) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	actor, err := app.resolver.Resolve(ctx, payload.Identifier, payload.Role)
	if err != nil {
		var profileErr *auth.ProfileNotFoundError
		switch {
		case errors.Is(err, auth.ErrIdentifierNotFound),
			errors.Is(err, auth.ErrInvalidCredentialState),
			errors.Is(err, auth.ErrNoRoleAvailable),
			errors.Is(err, auth.ErrRoleMismatch):
			app.unauthorizedErrorResponse(w, r, err)
		case errors.As(err, &profileErr):
			app.unauthorizedErrorResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if !actor.User.IsActive {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("account is not activated"))
		return
	}

	if err := actor.User.Password.Compare(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("invalid credentials"))
		return
	}

	permissions, err := app.store.Roles.GetPermissions(ctx, actor.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	accessToken, refreshToken, err := app.authenticator.GenerateTokens(auth.Claims{
		ActorID:     actor.Profile.ID,
		UserID:      actor.User.ID,
		Role:        actor.Role,
		Roles:       actor.User.Roles,
		Permissions: permissions,
	})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.SaveRefreshToken(ctx, actor.User.ID, refreshToken); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

type RefreshTokenPayload struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	Role         string `json:"role,omitempty" validate:"omitempty,max=50"`
}

// refreshTokenHandler exchanges a valid refresh token for a new token pair.
// The stored token must match the presented one, so a rotation invalidates
// every previously issued refresh token for the account.
func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RefreshTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	jwtToken, err := app.authenticator.ValidateRefreshToken(payload.RefreshToken)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	mapClaims, ok := jwtToken.Claims.(jwt.MapClaims)
	if !ok {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("invalid refresh token claims"))
		return
	}
	sub, ok := mapClaims["sub"].(float64)
	if !ok {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("missing subject in refresh token"))
		return
	}
	userID := int64(sub)

	ctx := r.Context()

	stored, err := app.store.Users.GetRefreshToken(ctx, userID)
	if err != nil || stored != payload.RefreshToken {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("refresh token is no longer valid"))
		return
	}

	user, err := app.store.Users.GetByID(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.unauthorizedErrorResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	actor, err := app.resolver.Resolve(ctx, user.Email, payload.Role)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	permissions, err := app.store.Roles.GetPermissions(ctx, actor.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	accessToken, refreshToken, err := app.authenticator.GenerateTokens(auth.Claims{
		ActorID:     actor.Profile.ID,
		UserID:      user.ID,
		Role:        actor.Role,
		Roles:       user.Roles,
		Permissions: permissions,
	})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.SaveRefreshToken(ctx, user.ID, refreshToken); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resp := TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// logoutHandler deletes the stored refresh token. The access token stays
// valid until it expires; clients are expected to discard it.
func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	p := getPrincipalFromContext(r)

	if err := app.store.Users.DeleteRefreshToken(r.Context(), p.UserID); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "logged out"); err != nil {
		app.internalServerError(w, r, err)
	}
}
