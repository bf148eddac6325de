package repository

import "context"

// CacheGeneration identifies the cache epoch a read happened in. Invalidate
// starts a new epoch.
type CacheGeneration int64

// DashboardCache stores rendered read models. Invalidate drops everything
// cached so far.
type DashboardCache interface {
	// Get reports the generation it looked in, hit or miss.
	Get(ctx context.Context, key string, dest interface{}) (CacheGeneration, bool, error)
	// Set stores value under gen, which must be the generation returned by
	// the Get that preceded building value. A value built across an
	// Invalidate is filed under a retired generation and never served.
	Set(ctx context.Context, gen CacheGeneration, key string, value interface{}) error
	Invalidate(ctx context.Context) error
}
