package strata

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

const (
	DefaultProgramExpiration = 30 * time.Minute
	DefaultProgramCleanup    = time.Hour
)

// MemoryProgramCache is an in-process ProgramCache with expiry.
type MemoryProgramCache struct {
	cache *gocache.Cache
}

// NewMemoryProgramCache builds a cache whose entries expire after expiration;
// zero selects DefaultProgramExpiration and a negative value never expires.
func NewMemoryProgramCache(expiration time.Duration) *MemoryProgramCache {
	if expiration == 0 {
		expiration = DefaultProgramExpiration
	}
	cleanup := DefaultProgramCleanup
	if expiration < 0 {
		expiration = gocache.NoExpiration
		cleanup = 0
	}
	return &MemoryProgramCache{cache: gocache.New(expiration, cleanup)}
}

// Get implements ProgramCache.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

// Set implements ProgramCache.
func (c *MemoryProgramCache) Set(key string, value any) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.SetDefault(key, value)
}

// Len reports the number of cached programs, expired ones included until the
// next cleanup.
func (c *MemoryProgramCache) Len() int {
	if c == nil || c.cache == nil {
		return 0
	}
	return c.cache.ItemCount()
}
