// Package cmap provides a sharded, string-keyed concurrent map.
//
// Each shard has its own RWMutex, so callers keyed by client address
// rarely contend with each other:
//
//	limiters := cmap.New[*rate.Limiter]()
//	l := limiters.GetOrCreate(ip, func() *rate.Limiter { return rate.NewLimiter(r, b) })
//
// DeleteFunc sweeps shard by shard; it never holds more than one lock.
package cmap
