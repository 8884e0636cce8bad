package utils

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

var (
	globalCache   *cache.Cache
	globalCacheMu sync.Mutex
)

// InitGlobalCache (re)creates the process wide cache.
func InitGlobalCache(defaultExpiration, cleanupInterval time.Duration) *cache.Cache {
	globalCacheMu.Lock()
	defer globalCacheMu.Unlock()
	globalCache = cache.New(defaultExpiration, cleanupInterval)
	return globalCache
}

// GlobalCache returns the process wide cache, creating one with a five minute
// expiration if InitGlobalCache was never called.
func GlobalCache() *cache.Cache {
	globalCacheMu.Lock()
	defer globalCacheMu.Unlock()
	if globalCache == nil {
		globalCache = cache.New(5*time.Minute, 10*time.Minute)
	}
	return globalCache
}
