package submission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrintake/internal/database"
	"qrintake/internal/database/dbtest"
	"qrintake/internal/errcode"
)

func seed(t *testing.T, s *Store, ownerID uint, name string) *database.Submission {
	t.Helper()
	sub := &database.Submission{
		QrCodeID:        1,
		OwnerID:         ownerID,
		Name:            name,
		Email:           name + "@x.com",
		ApplicationType: "interview",
		Status:          database.StatusPending,
	}
	require.NoError(t, s.Create(context.Background(), sub))
	return sub
}

func strPtr(s string) *string { return &s }

func TestCreate_DefaultsToPendingUnreviewed(t *testing.T) {
	s := NewStore(dbtest.Open(t))
	sub := seed(t, s, 1, "jane")

	got, err := s.Get(context.Background(), sub.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, got.Status)
	assert.False(t, got.Reviewed)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestListByOwner_ScopesAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbtest.Open(t))
	first := seed(t, s, 1, "ann")
	seed(t, s, 1, "bob")
	seed(t, s, 2, "eve")

	_, err := s.ApplyReview(ctx, first.ID, 1, Review{Status: strPtr(database.StatusAccepted)})
	require.NoError(t, err)

	all, err := s.ListByOwner(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "bob", all[0].Name)

	accepted, err := s.ListByOwner(ctx, 1, database.StatusAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "ann", accepted[0].Name)

	_, err = s.ListByOwner(ctx, 1, "archived")
	assert.ErrorIs(t, err, errcode.ErrValidation)
}

func TestApplyReview(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbtest.Open(t))
	sub := seed(t, s, 1, "jane")

	got, err := s.ApplyReview(ctx, sub.ID, 1, Review{
		Status:      strPtr(database.StatusShortlisted),
		Designation: strPtr(" Engineer "),
		Department:  strPtr("R&D"),
	})
	require.NoError(t, err)
	assert.True(t, got.Reviewed)
	assert.Equal(t, database.StatusShortlisted, got.Status)
	assert.Equal(t, "Engineer", got.Designation)
	assert.Equal(t, "R&D", got.Department)

	_, err = s.ApplyReview(ctx, sub.ID, 2, Review{Status: strPtr(database.StatusRejected)})
	assert.ErrorIs(t, err, errcode.ErrNotFound)

	_, err = s.ApplyReview(ctx, sub.ID, 1, Review{Status: strPtr("hired")})
	assert.ErrorIs(t, err, errcode.ErrValidation)
}
