package kvstore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestStore_InMemory(t *testing.T) {
	s, err := Open("", 0)
	require.NoError(t, err)

	_, ok := s.Get("a")
	assert.False(t, ok)

	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b", "2"))
	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, s.Remove("a"))
	require.NoError(t, s.Remove("missing"))
	assert.Equal(t, []string{"b"}, s.Keys(""))

	used, quota := s.Size()
	assert.Equal(t, int64(2), used)
	assert.Equal(t, int64(DefaultQuota), quota)

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Keys(""))
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ls.json")

	s, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Set("almacen.memories", `[{"id":1}]`))
	require.NoError(t, s.Set("almacen.settings", `{}`))

	again, err := Open(path, 0)
	require.NoError(t, err)
	v, ok := again.Get("almacen.memories")
	require.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, v)
	assert.Equal(t, []string{"almacen.memories", "almacen.settings"}, again.Keys("almacen."))
	used, _ := again.Size()
	used0, _ := s.Size()
	assert.Equal(t, used0, used)
}

func TestStore_Quota(t *testing.T) {
	s, err := Open("", 10)
	require.NoError(t, err)

	require.NoError(t, s.Set("k", "123456789"))
	err = s.Set("k2", "x")
	require.ErrorIs(t, err, common.ErrQuotaExceeded)
	_, ok := s.Get("k2")
	assert.False(t, ok)

	require.NoError(t, s.Set("k", "12"), "shrinking an existing value fits")
	require.NoError(t, s.Set("k2", "x"))
}

func TestStore_SetItemsIsAllOrNothing(t *testing.T) {
	s, err := Open("", 20)
	require.NoError(t, err)
	require.NoError(t, s.Set("old", "v"))

	err = s.SetItems(map[string]*string{"a": ptr("1"), "b": ptr("this value is far too long")})
	require.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.Equal(t, []string{"old"}, s.Keys(""))

	require.NoError(t, s.SetItems(map[string]*string{"a": ptr("1"), "old": nil}))
	assert.Equal(t, []string{"a"}, s.Keys(""))
}

func TestStore_UpdateErrorLeavesValue(t *testing.T) {
	s, err := Open("", 0)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v"))

	boom := errors.New("boom")
	err = s.Update("k", func(old string, ok bool) (string, bool, error) {
		assert.True(t, ok)
		assert.Equal(t, "v", old)
		return "", false, boom
	})
	require.ErrorIs(t, err, boom)
	v, _ := s.Get("k")
	assert.Equal(t, "v", v)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "ls.json"), 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update("n", func(old string, _ bool) (string, bool, error) {
				return old + "x", true, nil
			})
		}()
	}
	wg.Wait()

	v, _ := s.Get("n")
	assert.Len(t, v, 20)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ls.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := Open(path, 0)
	require.ErrorIs(t, err, common.ErrStorage)
}
