package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/regbrowser/pkg/registry/cache"
)

func openTemp(t *testing.T) (*Storage, string) {
	path := filepath.Join(t.TempDir(), "nested", DBFilename)
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStorage_ReadWrite(t *testing.T) {
	s, _ := openTemp(t)

	_, err := s.Get("missing")
	assert.Equal(t, cache.ErrNotCached, err)

	require.NoError(t, s.Set("regbrowser:tags:a", []byte("one")))
	require.NoError(t, s.Set("regbrowser:tags:a", []byte("two")))
	v, err := s.Get("regbrowser:tags:a")
	require.NoError(t, err)
	assert.Equal(t, "two", string(v))

	require.NoError(t, s.Delete("regbrowser:tags:a"))
	require.NoError(t, s.Delete("regbrowser:tags:a"))
	_, err = s.Get("regbrowser:tags:a")
	assert.Equal(t, cache.ErrNotCached, err)
}

func TestStorage_KeysByPrefix(t *testing.T) {
	s, _ := openTemp(t)
	for _, k := range []string{"regbrowser:tags:b", "regbrowser:tags:a", "regbrowser:imageinfo:a:1", "other_%"} {
		require.NoError(t, s.Set(k, []byte("x")))
	}
	keys, err := s.Keys("regbrowser:tags:")
	require.NoError(t, err)
	assert.Equal(t, []string{"regbrowser:tags:a", "regbrowser:tags:b"}, keys)

	keys, err = s.Keys("other_")
	require.NoError(t, err)
	assert.Equal(t, []string{"other_%"}, keys)
}

func TestStorage_Persists(t *testing.T) {
	s, path := openTemp(t)
	clock := clockwork.NewFakeClock()
	store := cache.NewStore(s, log.NewNopLogger(), cache.WithClock(clock))
	store.Save(cache.TagsKey("app"), []string{"v1"})
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	store = cache.NewStore(reopened, log.NewNopLogger(), cache.WithClock(clock))

	clock.Advance(time.Hour)
	var tags []string
	assert.True(t, store.Get(cache.TagsKey("app"), &tags))
	assert.Equal(t, []string{"v1"}, tags)
	assert.Equal(t, 1, store.Stats().Entries)
}
