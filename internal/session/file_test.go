package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsalazar/workchat/internal/domain"
)

func newFileStore(t *testing.T, ttl time.Duration) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), ttl)
	require.NoError(t, err)
	return store
}

func TestFileStore_CreateAndGet(t *testing.T) {
	store := newFileStore(t, 0)
	ctx := context.Background()

	user := domain.Identity{Subject: "sub-1", Name: "gabriel", Email: "g@x.com"}
	id, err := store.Create(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user, sess.User)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestFileStore_Get_UnknownToken(t *testing.T) {
	store := newFileStore(t, 0)

	_, err := store.Get(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFileStore_Delete_Idempotent(t *testing.T) {
	store := newFileStore(t, 0)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Identity{Name: "gabriel"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id)) // second delete is a no-op

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFileStore_SetDisplayName(t *testing.T) {
	store := newFileStore(t, 0)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Identity{Name: "gabriel", Email: "g@x.com"})
	require.NoError(t, err)

	sess, err := store.SetDisplayName(ctx, id, "Gabriel M.")
	require.NoError(t, err)
	assert.Equal(t, "Gabriel M.", sess.User.DisplayName)
	assert.Equal(t, "Gabriel M.", sess.User.Label())

	// Persisted, not just returned
	sess, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Gabriel M.", sess.User.DisplayName)
}

func TestFileStore_SetDisplayName_UnknownToken(t *testing.T) {
	store := newFileStore(t, 0)

	_, err := store.SetDisplayName(context.Background(), "no-such-token", "x")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFileStore_TTLExpiry(t *testing.T) {
	store := newFileStore(t, 10*time.Millisecond)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Identity{Name: "gabriel"})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir, 0)
	require.NoError(t, err)
	id, err := store.Create(ctx, domain.Identity{Name: "gabriel", Email: "g@x.com"})
	require.NoError(t, err)

	reopened, err := NewFileStore(dir, 0)
	require.NoError(t, err)
	sess, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "gabriel", sess.User.Name)
}

func TestFileStore_UpsertRecordsUser(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, 0)
	require.NoError(t, err)

	user := domain.Identity{Subject: "sub-1", Name: "gabriel", Email: "g@x.com"}
	require.NoError(t, store.Upsert(context.Background(), user))

	data, err := os.ReadFile(filepath.Join(dir, "users.json"))
	require.NoError(t, err)

	var users map[string]domain.Identity
	require.NoError(t, json.Unmarshal(data, &users))
	assert.Equal(t, user, users["sub-1"])
}
