//go:build integration

package redislimiter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisFixedWindow(t *testing.T) {
	url := os.Getenv("DJIBGO_TEST_REDIS_URL")
	if url == "" {
		t.Skip("DJIBGO_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	l := New(rdb, map[string]Limit{"b": {Limit: 2, Window: time.Minute}})
	key := "test:rl:" + uuid.NewString()
	defer rdb.Del(context.Background(), key)

	ok, err := l.AllowNamed("b", key)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = l.AllowNamed("b", key)
	require.True(t, ok)
	ok, _ = l.AllowNamed("b", key)
	require.False(t, ok)

	ttl, err := rdb.PTTL(context.Background(), key).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
