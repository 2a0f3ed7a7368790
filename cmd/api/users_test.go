package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"shamba/internal/store"
)

type fakeRolesStore struct {
	known   map[string]bool
	granted map[int64][]string
}

func (f *fakeRolesStore) GetByName(ctx context.Context, name string) (*store.Role, error) {
	if !f.known[name] {
		return nil, store.ErrNotFound
	}
	return &store.Role{Name: name}, nil
}

func (f *fakeRolesStore) GetPermissions(ctx context.Context, roleName string) ([]string, error) {
	return nil, nil
}

func (f *fakeRolesStore) Grant(ctx context.Context, userID int64, roleName string) error {
	if !f.known[roleName] {
		return store.ErrNotFound
	}
	if f.granted == nil {
		f.granted = map[int64][]string{}
	}
	f.granted[userID] = append(f.granted[userID], roleName)
	return nil
}

func grantRequest(userID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/users/"+userID+"/roles", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGrantRoleHandler(t *testing.T) {
	app := newTestApp(t)
	roles := &fakeRolesStore{known: map[string]bool{store.RoleExporter: true}}
	app.store = store.Storage{Roles: roles}

	r := chi.NewRouter()
	r.Post("/users/{userID}/roles", app.grantRoleHandler)

	t.Run("grants a known role", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, grantRequest("42", `{"role":" exporter "}`))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, []string{store.RoleExporter}, roles.granted[42])
	})

	t.Run("unknown role is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, grantRequest("42", `{"role":"WAREHOUSE"}`))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad user id is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, grantRequest("abc", `{"role":"EXPORTER"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing role is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, grantRequest("42", `{}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
