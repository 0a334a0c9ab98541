package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// delIfValue deletes KEYS[1] only while it still holds ARGV[1].
var delIfValue = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// KV is a Redis-backed ephemeral key-value store with TTL support. It backs
// the per-account issuance lock across replicas.
type KV struct {
	rdb redis.UniversalClient
}

func NewKV(rdb redis.UniversalClient) *KV {
	return &KV{rdb: rdb}
}

// SetNX maps to SET key value NX PX ttl.
func (k *KV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return k.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (k *KV) DelIfValue(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := delIfValue.Run(ctx, k.rdb, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
