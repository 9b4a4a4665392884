package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_RegisterLoginRefresh(t *testing.T) {
	env := newTestEnv(t)
	creds := map[string]string{"username": "owner", "password": "correct horse"}

	require.Equal(t, http.StatusCreated, env.doJSON(t, http.MethodPost, "/v1/auth/register", 0, creds).Code)
	assert.Equal(t, http.StatusConflict, env.doJSON(t, http.MethodPost, "/v1/auth/register", 0, creds).Code)
	assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPost, "/v1/auth/register", 0, map[string]string{"username": "x", "password": "short"}).Code)

	wrong := env.doJSON(t, http.MethodPost, "/v1/auth/login", 0, map[string]string{"username": "owner", "password": "battery staple"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)

	login := env.doJSON(t, http.MethodPost, "/v1/auth/login", 0, creds)
	require.Equal(t, http.StatusOK, login.Code, "body=%s", login.Body.String())
	tokens := decode(t, login)
	access, _ := tokens["accessToken"].(string)
	refresh, _ := tokens["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := env.auth.ValidateToken(access, "access")
	require.NoError(t, err)
	assert.NotZero(t, claims.UserID)

	rotated := env.doJSON(t, http.MethodPost, "/v1/auth/refresh", 0, map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rotated.Code, "body=%s", rotated.Body.String())

	reused := env.doJSON(t, http.MethodPost, "/v1/auth/refresh", 0, map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, reused.Code)

	assert.Equal(t, http.StatusUnauthorized, env.doJSON(t, http.MethodPost, "/v1/auth/refresh", 0, map[string]string{"refreshToken": access}).Code)
}

func TestAuth_LocksAccountAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	creds := map[string]string{"username": "owner", "password": "correct horse"}
	require.Equal(t, http.StatusCreated, env.doJSON(t, http.MethodPost, "/v1/auth/register", 0, creds).Code)

	bad := map[string]string{"username": "owner", "password": "guess guess"}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, env.doJSON(t, http.MethodPost, "/v1/auth/login", 0, bad).Code)
	}

	locked := env.doJSON(t, http.MethodPost, "/v1/auth/login", 0, creds)
	assert.Equal(t, http.StatusTooManyRequests, locked.Code)
}
