// +build integration

package redis

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/regbrowser/pkg/registry/cache"
)

var (
	redisHost = flag.String("redis-host", "127.0.0.1", "redis host to connect to")
	redisPort = flag.Int("redis-port", 6379, "redis port to connect to")
)

func TestRedis_ReadWrite(t *testing.T) {
	r := NewRedisClient(RedisConfig{
		Service: *redisHost,
		Port:    *redisPort,
		Timeout: time.Second,
	})
	defer r.Close()

	store := cache.NewStore(r, log.NewLogfmtLogger(os.Stderr))
	store.ClearAll()
	require.NoError(t, r.Set("unrelated", []byte("x")))
	defer r.Delete("unrelated")

	store.Save(cache.ImageInfoKey("app", "v1"), map[string]int64{"size": 10})
	store.Save(cache.TagsKey("app"), []string{"v1"})

	var info map[string]int64
	require.True(t, store.Get(cache.ImageInfoKey("app", "v1"), &info))
	assert.Equal(t, int64(10), info["size"])
	assert.Equal(t, 2, store.Stats().Entries)

	store.ClearAll()
	assert.False(t, store.Get(cache.TagsKey("app"), &info))
	_, err := r.Get("unrelated")
	assert.NoError(t, err)
}
