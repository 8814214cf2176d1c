package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStore_ReadTail_MissingRoomIsEmpty(t *testing.T) {
	store := newTestStore(t)

	lines, err := store.ReadTail("nowhere", 50)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestStore_AppendThenReadTail(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("default", "first"))
	require.NoError(t, store.Append("default", "second"))
	require.NoError(t, store.Append("default", "third"))

	lines, err := store.ReadTail("default", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

func TestStore_ReadTail_TrimsToMostRecent(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Append("default", fmt.Sprintf("line-%d", i)))
	}

	lines, err := store.ReadTail("default", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"line-7", "line-8", "line-9"}, lines)
}

func TestStore_RoomsAreIndependent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("alpha", "hello alpha"))
	require.NoError(t, store.Append("beta", "hello beta"))

	alpha, err := store.ReadTail("alpha", 50)
	require.NoError(t, err)
	beta, err := store.ReadTail("beta", 50)
	require.NoError(t, err)

	assert.Equal(t, []string{"hello alpha"}, alpha)
	assert.Equal(t, []string{"hello beta"}, beta)
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append("default", "before restart"))

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	lines, err := reopened.ReadTail("default", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"before restart"}, lines)
}

func TestStore_RoomNameWithPathSyntax(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("../evil/room", "contained"))
	lines, err := store.ReadTail("../evil/room", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"contained"}, lines)
}

func TestStore_ConcurrentAppendsAreAllKept(t *testing.T) {
	store := newTestStore(t)

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, store.Append("default", fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	lines, err := store.ReadTail("default", -1)
	require.NoError(t, err)
	assert.Len(t, lines, writers*perWriter)
}
