package storage_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudspend/sentinel/pkg/model"
	"github.com/cloudspend/sentinel/pkg/storage"
)

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testToken(prefix string) string {
	return prefix + strings.Repeat("0", 64-len(prefix))
}

func TestSQLite_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reg := &model.DeviceRegistration{
		Token:       testToken("aa"),
		EndpointARN: "arn:aws:sns:endpoint/1",
		UserID:      "user-1",
		Enabled:     true,
	}
	require.NoError(t, store.Upsert(ctx, reg))
	assert.NotEmpty(t, reg.ID)
	assert.False(t, reg.CreatedAt.IsZero())

	got, err := store.Get(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Token, got.Token)
	assert.Equal(t, "arn:aws:sns:endpoint/1", got.EndpointARN)
	assert.Equal(t, "user-1", got.UserID)
	assert.True(t, got.Enabled)
}

func TestSQLite_UpsertIsIdempotentPerToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	token := testToken("bb")

	require.NoError(t, store.Upsert(ctx, &model.DeviceRegistration{
		Token: token, EndpointARN: "arn:old", UserID: "user-1", Enabled: true,
	}))
	require.NoError(t, store.Upsert(ctx, &model.DeviceRegistration{
		Token: token, EndpointARN: "arn:new", UserID: "user-1", Enabled: true,
	}))

	regs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "arn:new", regs[0].EndpointARN)
}

func TestSQLite_GetByEndpoint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &model.DeviceRegistration{
		Token: testToken("cc"), EndpointARN: "arn:ep/42", Enabled: true,
	}))

	got, err := store.GetByEndpoint(ctx, "arn:ep/42")
	require.NoError(t, err)
	assert.Equal(t, testToken("cc"), got.Token)

	_, err = store.GetByEndpoint(ctx, "arn:ep/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), testToken("dd"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	token := testToken("ee")

	require.NoError(t, store.Upsert(ctx, &model.DeviceRegistration{Token: token, Enabled: true}))
	require.NoError(t, store.Delete(ctx, token))

	_, err := store.Get(ctx, token)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, store.Delete(ctx, token))
}

func TestSQLite_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, prefix := range []string{"a1", "b2", "c3"} {
		require.NoError(t, store.Upsert(ctx, &model.DeviceRegistration{
			Token: testToken(prefix), Enabled: true,
		}))
	}

	regs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, regs, 3)
}
