package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{Validation("name is required"), http.StatusBadRequest},
		{NotFound("qr code not found"), http.StatusNotFound},
		{Conflict("code already exists"), http.StatusConflict},
		{Forbidden("outside allowed area"), http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{Infra("query qr code", errors.New("conn reset")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("gone")), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "err=%v", tc.err)
	}
}

func TestPublicMessageHidesInfrastructureCause(t *testing.T) {
	err := Infra("query qr code", errors.New(`pq: relation "qr_codes" does not exist`))

	assert.Equal(t, "internal error", PublicMessage(err))
	assert.Contains(t, err.Error(), "qr_codes")
	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.Equal(t, "email is invalid", PublicMessage(Validation("email is invalid")))
}
