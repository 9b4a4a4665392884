package qrcode

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qrintake/internal/database/dbtest"
	"qrintake/internal/errcode"
)

func createReq(owner uint, code string) CreateRequest {
	return CreateRequest{
		ActorID:   owner,
		OwnerID:   owner,
		Code:      code,
		TargetURL: FormURL("https://apply.example.com", code),
	}
}

func TestCreate_PersistsAndFindsByCode(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(dbtest.Open(t))

	qr, err := dir.Create(ctx, createReq(1, "abc123"))
	require.NoError(t, err)
	assert.NotZero(t, qr.ID)
	assert.Equal(t, "https://apply.example.com/form/abc123", qr.URL)

	found, err := dir.FindByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, qr.ID, found.ID)
	assert.Equal(t, uint(1), found.OwnerID)
}

func TestCreate_DuplicateCodeConflicts(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(dbtest.Open(t))

	_, err := dir.Create(ctx, createReq(1, "shared"))
	require.NoError(t, err)

	_, err = dir.Create(ctx, createReq(2, "shared"))
	assert.ErrorIs(t, err, errcode.ErrConflict)
}

func TestCreate_SecondCodeForOwnerConflicts(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(dbtest.Open(t))

	_, err := dir.Create(ctx, createReq(7, "first"))
	require.NoError(t, err)

	_, err = dir.Create(ctx, createReq(7, "second"))
	assert.ErrorIs(t, err, errcode.ErrConflict)

	codes, err := dir.ListByOwner(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, codes, 1)
}

func TestCreate_ConcurrentSameOwnerExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(dbtest.Open(t))

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := dir.Create(ctx, createReq(3, NewCode()))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errcode.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
}

func TestCreate_InvalidInput(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(dbtest.Open(t))

	cases := map[string]CreateRequest{
		"missing code":  {ActorID: 1, OwnerID: 1, TargetURL: "https://x/form/a"},
		"missing url":   {ActorID: 1, OwnerID: 1, Code: "a"},
		"missing owner": {Code: "a", TargetURL: "https://x/form/a"},
		"actor differs": {ActorID: 2, OwnerID: 1, Code: "a", TargetURL: "https://x/form/a"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := dir.Create(ctx, req)
			assert.ErrorIs(t, err, errcode.ErrValidation)
		})
	}
}

func TestFindByCode_Unknown(t *testing.T) {
	dir := NewDirectory(dbtest.Open(t))

	_, err := dir.FindByCode(context.Background(), "missing")
	assert.ErrorIs(t, err, errcode.ErrNotFound)
}

func TestDeleteByOwner_HidesOtherOwnersCodes(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(dbtest.Open(t))

	qr, err := dir.Create(ctx, createReq(1, "mine"))
	require.NoError(t, err)

	_, err = dir.DeleteByOwner(ctx, qr.ID, 2)
	assert.ErrorIs(t, err, errcode.ErrNotFound)

	_, err = dir.DeleteByOwner(ctx, qr.ID+100, 1)
	assert.ErrorIs(t, err, errcode.ErrNotFound)

	deleted, err := dir.DeleteByOwner(ctx, qr.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "mine", deleted.Code)

	_, err = dir.FindByCode(ctx, "mine")
	assert.ErrorIs(t, err, errcode.ErrNotFound)

	// The owner may create a new code once the old one is gone.
	_, err = dir.Create(ctx, createReq(1, "replacement"))
	assert.NoError(t, err)
}

func TestSetImage(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(dbtest.Open(t))

	qr, err := dir.Create(ctx, createReq(1, "img"))
	require.NoError(t, err)

	require.NoError(t, dir.SetImage(ctx, qr.ID, "qrcodes/1/img.png"))
	found, err := dir.FindForOwner(ctx, qr.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "qrcodes/1/img.png", found.Image)

	assert.ErrorIs(t, dir.SetImage(ctx, qr.ID+1, "x"), errcode.ErrNotFound)
}

func TestFindByCode_StorageFaultIsInfrastructure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "qr_codes" WHERE code = $1`)).
		WillReturnError(errors.New("connection reset by peer"))

	_, err = NewDirectory(db).FindByCode(context.Background(), "abc")
	assert.ErrorIs(t, err, errcode.ErrInfrastructure)
	assert.Equal(t, "internal error", errcode.PublicMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
