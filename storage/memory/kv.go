package memorystore

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type kvItem struct {
	value   []byte
	expires time.Time
}

// KV is a simple in-memory key-value store with TTL support. It backs the
// per-account issuance lock in single-process deployments.
type KV struct {
	mu    sync.Mutex
	items map[string]kvItem
	now   func() time.Time
}

func NewKV() *KV {
	return &KV{items: make(map[string]kvItem), now: time.Now}
}

// live returns the item for key, dropping it when expired. Callers hold mu.
func (k *KV) live(key string) (kvItem, bool) {
	it, ok := k.items[key]
	if !ok {
		return kvItem{}, false
	}
	if !it.expires.IsZero() && k.now().After(it.expires) {
		delete(k.items, key)
		return kvItem{}, false
	}
	return it, true
}

func (k *KV) item(value []byte, ttl time.Duration) kvItem {
	var exp time.Time
	if ttl > 0 {
		exp = k.now().Add(ttl)
	}
	return kvItem{value: append([]byte(nil), value...), expires: exp}
}

func (k *KV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.live(key); ok {
		return false, nil
	}
	k.items[key] = k.item(value, ttl)
	return true, nil
}

func (k *KV) DelIfValue(ctx context.Context, key string, value []byte) (bool, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	it, ok := k.live(key)
	if !ok || !bytes.Equal(it.value, value) {
		return false, nil
	}
	delete(k.items, key)
	return true, nil
}
