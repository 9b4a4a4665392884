package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocations_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, http.MethodGet, "/v1/locations", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["configured"])

	put := env.doJSON(t, http.MethodPut, "/v1/locations", 1, map[string]float64{"latitude": 51.5, "longitude": -0.12, "radiusMeters": 250})
	require.Equal(t, http.StatusOK, put.Code, "body=%s", put.Body.String())

	w = env.doJSON(t, http.MethodGet, "/v1/locations", 1, nil)
	body := decode(t, w)
	assert.Equal(t, true, body["configured"])
	assert.Equal(t, 51.5, body["latitude"])
	assert.Equal(t, float64(250), body["radiusMeters"])

	other := env.doJSON(t, http.MethodGet, "/v1/locations", 2, nil)
	assert.Equal(t, false, decode(t, other)["configured"])

	assert.Equal(t, http.StatusNoContent, env.doJSON(t, http.MethodDelete, "/v1/locations", 1, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodDelete, "/v1/locations", 1, nil).Code)
}

func TestLocations_PutValidates(t *testing.T) {
	env := newTestEnv(t)

	cases := []map[string]float64{
		{"latitude": 91, "longitude": 0, "radiusMeters": 10},
		{"latitude": 0, "longitude": 181, "radiusMeters": 10},
		{"latitude": 0, "longitude": 0, "radiusMeters": -1},
		{"latitude": 0, "longitude": 0},
	}
	for _, body := range cases {
		w := env.doJSON(t, http.MethodPut, "/v1/locations", 1, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body=%v", body)
	}
}

func TestLocations_FenceAppliesToOwnersCode(t *testing.T) {
	env := newTestEnv(t)
	seedCode(t, env, 1, "fair", nil)

	point := map[string]float64{"latitude": 48.8566, "longitude": 2.3522}
	assert.Equal(t, http.StatusOK, env.doJSON(t, http.MethodPost, "/v1/qrcodes/validate/fair", 0, point).Code)

	put := env.doJSON(t, http.MethodPut, "/v1/locations", 1, map[string]float64{"latitude": 40, "longitude": -74, "radiusMeters": 100})
	require.Equal(t, http.StatusOK, put.Code)

	assert.Equal(t, http.StatusForbidden, env.doJSON(t, http.MethodPost, "/v1/qrcodes/validate/fair", 0, point).Code)
}
