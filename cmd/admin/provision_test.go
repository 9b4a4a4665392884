package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"qrintake/internal/auth"
	"qrintake/internal/database"
	"qrintake/internal/database/dbtest"
	"qrintake/internal/geofence"
)

func TestProvision_OwnerOnly(t *testing.T) {
	db := dbtest.Open(t)

	out, err := provision(context.Background(), db, provisionRequest{Username: "hiring"})
	require.NoError(t, err)

	assert.NotZero(t, out.User.ID)
	assert.Nil(t, out.QrCode)
	assert.True(t, auth.CheckPasswordHash(out.Password, out.User.PasswordHash))

	var codes int64
	require.NoError(t, db.Model(&database.QrCode{}).Count(&codes).Error)
	assert.Zero(t, codes)
}

func TestProvision_CodeAndGeofence(t *testing.T) {
	db := dbtest.Open(t)
	fence := geofence.Location{Latitude: 40, Longitude: -74, RadiusMeters: 150}

	out, err := provision(context.Background(), db, provisionRequest{
		Username: "hiring",
		WithCode: true,
		BaseURL:  "https://apply.example.com/",
		Fence:    &fence,
	})
	require.NoError(t, err)
	require.NotNil(t, out.QrCode)

	assert.Equal(t, out.User.ID, out.QrCode.OwnerID)
	assert.Len(t, out.QrCode.Code, 32)
	assert.Equal(t, "https://apply.example.com/form/"+out.QrCode.Code, out.QrCode.URL)

	loc, ok, err := geofence.NewPolicy(db).LocationForOwner(context.Background(), out.User.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fence, loc)
}

func TestProvision_RejectedCodeLeavesNoAccount(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	_, err := provision(ctx, db, provisionRequest{Username: "first", Code: "booth", WithCode: true, BaseURL: "https://apply.example.com"})
	require.NoError(t, err)

	_, err = provision(ctx, db, provisionRequest{Username: "second", Code: "booth", WithCode: true, BaseURL: "https://apply.example.com"})
	require.Error(t, err)

	var users int64
	require.NoError(t, db.Model(&database.User{}).Where("username = ?", "second").Count(&users).Error)
	assert.Zero(t, users)
}

func TestProvision_DuplicateUsername(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	_, err := provision(ctx, db, provisionRequest{Username: "hiring"})
	require.NoError(t, err)
	_, err = provision(ctx, db, provisionRequest{Username: "hiring"})
	assert.ErrorContains(t, err, "already exists")
}

func TestProvision_CodeNeedsBaseURL(t *testing.T) {
	_, err := provision(context.Background(), dbtest.Open(t), provisionRequest{Username: "hiring", WithCode: true})
	assert.ErrorContains(t, err, "base url")
}

func TestParseGeofence(t *testing.T) {
	loc, err := parseGeofence(" 51.5, -0.12 , 250")
	require.NoError(t, err)
	assert.Equal(t, geofence.Location{Latitude: 51.5, Longitude: -0.12, RadiusMeters: 250}, loc)

	for _, bad := range []string{"51.5,-0.12", "a,b,c", "91,0,10", "0,0,-1"} {
		_, err := parseGeofence(bad)
		assert.Error(t, err, bad)
	}
}

func TestWriteSummary_PrintsOwnerID(t *testing.T) {
	var buf bytes.Buffer
	err := writeSummary(&buf, &provisioned{
		User:     database.User{Model: gorm.Model{ID: 7}, Username: "hiring"},
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "owner id:  7\n")
	assert.Contains(t, buf.String(), "ownerId 7")
	assert.Contains(t, buf.String(), "geofence:  none")
}

func TestDBFlagsConfig(t *testing.T) {
	t.Setenv("DATABASE_HOST", "")
	t.Setenv("DATABASE_PORT", "6543")
	t.Setenv("POSTGRES_DB", "intake")
	t.Setenv("POSTGRES_USER", "intake")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("DATABASE_SSLMODE", "")

	cfg, err := dbFlags{user: "override"}.config()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "override", cfg.User)
	assert.Equal(t, "disable", cfg.SSLMode)

	t.Setenv("POSTGRES_PASSWORD", "")
	_, err = dbFlags{}.config()
	assert.ErrorContains(t, err, "POSTGRES_PASSWORD")
}
