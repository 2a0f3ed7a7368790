package main

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shamba/internal/auth"
	"shamba/internal/store"
)

func newTestApp(t *testing.T) *application {
	t.Helper()
	return &application{
		config: config{
			auth: authConfig{
				basic: basicConfig{user: "admin", pass: "secret"},
			},
		},
		logger: zap.NewNop().Sugar(),
		authenticator: auth.NewJWTAuthenticator(
			"access-secret", "refresh-secret",
			"shamba-test", "shamba-test",
			time.Hour, 24*time.Hour,
		),
	}
}

func accessTokenFor(t *testing.T, app *application, claims auth.Claims) string {
	t.Helper()
	token, _, err := app.authenticator.GenerateTokens(claims)
	require.NoError(t, err)
	return token
}

// protectedEcho wraps a principal-echoing handler in the token filter plus
// the given guards, the way mount() layers them.
func protectedEcho(app *application, guards ...func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := getPrincipalFromContext(r)
		if p == nil {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(p.Role))
	})
	for i := len(guards) - 1; i >= 0; i-- {
		h = guards[i](h)
	}
	return app.ContextAuthMiddleware(h)
}

func TestTokenFilterValidToken(t *testing.T) {
	app := newTestApp(t)
	token := accessTokenFor(t, app, auth.Claims{
		ActorID: 5, UserID: 2, Role: store.RoleFarmer,
		Roles: []string{store.RoleFarmer},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	protectedEcho(app).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.RoleFarmer, rec.Body.String())
}

func TestTokenFilterMissingTokenIsAnonymous(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	protectedEcho(app).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

// A bad token must look exactly like no token: the filter never rejects,
// rejection is the guards' job.
func TestTokenFilterBadTokenIsAnonymous(t *testing.T) {
	app := newTestApp(t)

	for name, header := range map[string]string{
		"garbage":      "Bearer not.a.token",
		"wrong scheme": "Token abc",
		"no value":     "Bearer",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()

			protectedEcho(app).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "anonymous", rec.Body.String())
		})
	}
}

func TestTokenFilterExpiredTokenIsAnonymous(t *testing.T) {
	app := newTestApp(t)

	expiredAuth := auth.NewJWTAuthenticator(
		"access-secret", "refresh-secret",
		"shamba-test", "shamba-test",
		-time.Minute, 24*time.Hour,
	)
	token, _, err := expiredAuth.GenerateTokens(auth.Claims{ActorID: 5, UserID: 2, Role: store.RoleFarmer})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	protectedEcho(app).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestRequireAuthenticated(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	protectedEcho(app, app.requireAuthenticated).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := accessTokenFor(t, app, auth.Claims{ActorID: 5, UserID: 2, Role: store.RoleBuyer})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	protectedEcho(app, app.requireAuthenticated).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	app := newTestApp(t)
	guard := protectedEcho(app, app.requireRole(store.RoleBuyer))

	// No token: 401.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Farmer token on a buyer route: 403.
	farmerToken := accessTokenFor(t, app, auth.Claims{
		ActorID: 5, UserID: 2, Role: store.RoleFarmer,
		Roles: []string{store.RoleFarmer},
	})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+farmerToken)
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Buyer token: 200.
	buyerToken := accessTokenFor(t, app, auth.Claims{
		ActorID: 7, UserID: 3, Role: store.RoleBuyer,
		Roles: []string{store.RoleBuyer},
	})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+buyerToken)
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	app := newTestApp(t)
	guard := protectedEcho(app, app.requirePermission("orders:write"))

	token := accessTokenFor(t, app, auth.Claims{
		ActorID: 5, UserID: 2, Role: store.RoleFarmer,
		Roles:       []string{store.RoleFarmer},
		Permissions: []string{"orders:write"},
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	noPermToken := accessTokenFor(t, app, auth.Claims{
		ActorID: 5, UserID: 2, Role: store.RoleFarmer,
		Roles: []string{store.RoleFarmer},
	})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+noPermToken)
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBasicAuthMiddleware(t *testing.T) {
	app := newTestApp(t)
	handler := app.BasicAuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	creds := base64.StdEncoding.EncodeToString([]byte("admin:wrong"))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic "+creds)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	creds = base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic "+creds)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
