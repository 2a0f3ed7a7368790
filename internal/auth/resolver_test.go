package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shamba/internal/store"
)

type fakeUserSource struct {
	users map[string]*store.User
}

func (f *fakeUserSource) GetByIdentifier(_ context.Context, identifier string) (*store.User, error) {
	u, ok := f.users[identifier]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func testUser(t *testing.T, roles ...string) *store.User {
	t.Helper()
	u := &store.User{ID: 10, Email: "wanjiku@example.com", Phone: "0712345678", Roles: roles}
	require.NoError(t, u.Password.Set("secret-password"))
	return u
}

func newTestResolver(u *store.User) *Resolver {
	src := &fakeUserSource{users: map[string]*store.User{}}
	if u != nil {
		src.users[u.Email] = u
		src.users[u.Phone] = u
	}

	r := NewResolver(src)
	r.Register(store.RoleFarmer, func(_ context.Context, userID int64) (*store.Profile, error) {
		return &store.Profile{ID: 100, UserID: userID, Role: store.RoleFarmer}, nil
	})
	r.Register(store.RoleBuyer, func(_ context.Context, userID int64) (*store.Profile, error) {
		return nil, store.ErrNotFound
	})
	return r
}

func TestResolveByEmailAndPhone(t *testing.T) {
	u := testUser(t, store.RoleFarmer)
	r := newTestResolver(u)

	for _, identifier := range []string{u.Email, u.Phone} {
		actor, err := r.Resolve(context.Background(), identifier, store.RoleFarmer)
		require.NoError(t, err)
		assert.Equal(t, u.ID, actor.User.ID)
		assert.Equal(t, store.RoleFarmer, actor.Role)
		assert.Equal(t, int64(100), actor.Profile.ID)
	}
}

func TestResolveUnknownIdentifier(t *testing.T) {
	r := newTestResolver(testUser(t, store.RoleFarmer))

	_, err := r.Resolve(context.Background(), "nobody@example.com", "")
	assert.ErrorIs(t, err, ErrIdentifierNotFound)
}

func TestResolveBlankIdentifier(t *testing.T) {
	r := newTestResolver(testUser(t, store.RoleFarmer))

	_, err := r.Resolve(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrIdentifierNotFound)
}

func TestResolveNoCredential(t *testing.T) {
	u := &store.User{ID: 11, Email: "no-pass@example.com", Roles: []string{store.RoleFarmer}}
	r := newTestResolver(u)

	_, err := r.Resolve(context.Background(), u.Email, store.RoleFarmer)
	assert.ErrorIs(t, err, ErrInvalidCredentialState)
}

func TestResolveNoRoleAvailable(t *testing.T) {
	u := testUser(t)
	r := newTestResolver(u)

	_, err := r.Resolve(context.Background(), u.Email, "")
	assert.ErrorIs(t, err, ErrNoRoleAvailable)
}

func TestResolveRoleMismatch(t *testing.T) {
	u := testUser(t, store.RoleFarmer)
	r := newTestResolver(u)

	_, err := r.Resolve(context.Background(), u.Email, store.RoleBuyer)
	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestResolveDefaultsToFirstGrantedRole(t *testing.T) {
	u := testUser(t, store.RoleFarmer, store.RoleBuyer)
	r := newTestResolver(u)

	actor, err := r.Resolve(context.Background(), u.Email, "")
	require.NoError(t, err)
	assert.Equal(t, store.RoleFarmer, actor.Role)
}

func TestResolveRoleHintIsNormalized(t *testing.T) {
	u := testUser(t, store.RoleFarmer)
	r := newTestResolver(u)

	actor, err := r.Resolve(context.Background(), u.Email, "  farmer ")
	require.NoError(t, err)
	assert.Equal(t, store.RoleFarmer, actor.Role)
}

func TestResolveMissingProfile(t *testing.T) {
	u := testUser(t, store.RoleBuyer)
	r := newTestResolver(u)

	_, err := r.Resolve(context.Background(), u.Email, store.RoleBuyer)

	var profileErr *ProfileNotFoundError
	require.True(t, errors.As(err, &profileErr))
	assert.Equal(t, store.RoleBuyer, profileErr.Role)
}

func TestResolveRoleWithoutLookup(t *testing.T) {
	u := testUser(t, store.RoleAdmin)
	r := newTestResolver(u)

	_, err := r.Resolve(context.Background(), u.Email, store.RoleAdmin)

	var profileErr *ProfileNotFoundError
	assert.True(t, errors.As(err, &profileErr))
}
