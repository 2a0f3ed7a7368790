package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shamba/internal/store"
)

var (
	ErrIdentifierNotFound     = errors.New("no account matches that identifier")
	ErrInvalidCredentialState = errors.New("account has no usable credential")
	ErrNoRoleAvailable        = errors.New("account holds no roles")
	ErrRoleMismatch           = errors.New("account does not hold the requested role")
)

// ProfileNotFoundError reports which role was missing its profile, so login
// failures for "registered as buyer, tried to log in as farmer" stay
// diagnosable.
type ProfileNotFoundError struct {
	Role string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("no %s profile for this account", strings.ToLower(e.Role))
}

// UserSource is the slice of the user store the resolver needs.
type UserSource interface {
	GetByIdentifier(ctx context.Context, identifier string) (*store.User, error)
}

// ProfileLookup resolves the role-specific profile for a user id.
type ProfileLookup func(ctx context.Context, userID int64) (*store.Profile, error)

// ResolvedActor is the outcome of login resolution: the account, the role it
// authenticates under, and the role-specific profile whose id becomes the
// principal.
type ResolvedActor struct {
	User    *store.User
	Role    string
	Profile *store.Profile
}

// Resolver turns a login identifier plus an optional role hint into a
// role-specific actor identity. Role dispatch is a lookup table populated at
// startup, one entry per role that owns a profile table.
type Resolver struct {
	users   UserSource
	lookups map[string]ProfileLookup
}

func NewResolver(users UserSource) *Resolver {
	return &Resolver{
		users:   users,
		lookups: make(map[string]ProfileLookup),
	}
}

// Register adds a profile lookup for a role. Later registrations replace
// earlier ones.
func (r *Resolver) Register(role string, lookup ProfileLookup) {
	r.lookups[strings.ToUpper(role)] = lookup
}

// Resolve is read-only: nothing is persisted, the caller signs the result
// into a token.
func (r *Resolver) Resolve(ctx context.Context, identifier, roleHint string) (*ResolvedActor, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrIdentifierNotFound
	}

	user, err := r.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrIdentifierNotFound
		}
		return nil, err
	}

	if !user.HasCredential() {
		return nil, ErrInvalidCredentialState
	}

	role := strings.ToUpper(strings.TrimSpace(roleHint))
	if role == "" {
		// Roles come back in grant order, so the first one is stable.
		if len(user.Roles) == 0 {
			return nil, ErrNoRoleAvailable
		}
		role = user.Roles[0]
	}

	if !user.HasRole(role) {
		return nil, ErrRoleMismatch
	}

	lookup, ok := r.lookups[role]
	if !ok {
		return nil, &ProfileNotFoundError{Role: role}
	}

	profile, err := lookup(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ProfileNotFoundError{Role: role}
		}
		return nil, err
	}

	return &ResolvedActor{User: user, Role: role, Profile: profile}, nil
}

// NewStoreResolver wires the resolver against the storage layer with one
// lookup per profile-owning role.
func NewStoreResolver(storage store.Storage) *Resolver {
	r := NewResolver(storage.Users)
	r.Register(store.RoleFarmer, storage.Profiles.FarmerByUserID)
	r.Register(store.RoleBuyer, storage.Profiles.BuyerByUserID)
	r.Register(store.RoleExporter, storage.Profiles.ExporterByUserID)
	return r
}
