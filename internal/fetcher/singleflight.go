package fetcher

import (
	"golang.org/x/sync/singleflight"
)

// Group collapses concurrent lookups of the same cache key into one request.
type Group struct {
	g singleflight.Group
}

func (g *Group) Do(key string, fn func() (interface{}, error)) (interface{}, error, bool) {
	return g.g.Do(key, fn)
}
