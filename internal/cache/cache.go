package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort byte cache. Callers must tolerate misses and
// errors; the database stays the source of truth.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
