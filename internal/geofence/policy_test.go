package geofence

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrintake/internal/database/dbtest"
	"qrintake/internal/errcode"
)

func TestLocationForOwner_UnsetIsNotAnError(t *testing.T) {
	p := NewPolicy(dbtest.Open(t))

	_, ok, err := p.LocationForOwner(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsert_ReplacesExistingLocation(t *testing.T) {
	ctx := context.Background()
	p := NewPolicy(dbtest.Open(t))

	_, err := p.Upsert(ctx, 1, Location{Latitude: 10, Longitude: 20, RadiusMeters: 50})
	require.NoError(t, err)
	_, err = p.Upsert(ctx, 1, Location{Latitude: -33.8688, Longitude: 151.2093, RadiusMeters: 200})
	require.NoError(t, err)

	loc, ok, err := p.LocationForOwner(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Location{Latitude: -33.8688, Longitude: 151.2093, RadiusMeters: 200}, loc)
}

func TestUpsert_RejectsInvalidShape(t *testing.T) {
	ctx := context.Background()
	p := NewPolicy(dbtest.Open(t))

	invalid := []Location{
		{Latitude: 91, Longitude: 0, RadiusMeters: 10},
		{Latitude: 0, Longitude: -181, RadiusMeters: 10},
		{Latitude: 0, Longitude: 0, RadiusMeters: -1},
		{Latitude: math.NaN(), Longitude: 0, RadiusMeters: 10},
		{Latitude: 0, Longitude: 0, RadiusMeters: math.Inf(1)},
	}
	for _, loc := range invalid {
		_, err := p.Upsert(ctx, 1, loc)
		assert.ErrorIs(t, err, errcode.ErrValidation, "loc=%+v", loc)
	}

	_, ok, err := p.LocationForOwner(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsert_ZeroRadiusAllowed(t *testing.T) {
	_, err := NewPolicy(dbtest.Open(t)).Upsert(context.Background(), 1, Location{RadiusMeters: 0})
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	p := NewPolicy(dbtest.Open(t))

	assert.ErrorIs(t, p.Delete(ctx, 1), errcode.ErrNotFound)

	_, err := p.Upsert(ctx, 1, Location{Latitude: 1, Longitude: 1, RadiusMeters: 1})
	require.NoError(t, err)
	require.NoError(t, p.Delete(ctx, 1))

	_, ok, err := p.LocationForOwner(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
