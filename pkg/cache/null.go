package cache

import (
	"context"
	"time"
)

// NullCache stores nothing: every Get misses. The CLI falls back to it for
// --no-cache, for backend = "none", and when Redis cannot be reached.
type NullCache struct{}

var _ Cache = NullCache{}

// NewNullCache returns a cache that disables caching.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)       { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }
