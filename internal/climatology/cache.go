package climatology

import (
	"container/list"
	"slices"
	"strings"
	"sync"
)

// origin records where a cached field came from.
type origin int

const (
	fromFile origin = iota
	fromFallback
)

// result is the lookup label a first load of this origin counts under.
func (o origin) result() string {
	if o == fromFallback {
		return "fallback"
	}
	return "miss"
}

type cachedField struct {
	ref    Ref
	field  *Field
	origin origin
}

// loadFunc reads the field a ref names and reports where it came from.
type loadFunc func(Ref) (*Field, origin, error)

// fieldCache keeps the most recently used fields keyed by file and
// variable. Loads happen under the lock, so each ref is read at most once
// while it stays cached.
type fieldCache struct {
	mu       sync.Mutex
	limit    int
	recent   *list.List // of *cachedField, most recent first
	byRef    map[Ref]*list.Element
	onLookup func(result string)
}

func newFieldCache(limit int, onLookup func(string)) *fieldCache {
	if limit < 1 {
		limit = 1
	}
	if onLookup == nil {
		onLookup = func(string) {}
	}
	return &fieldCache{
		limit:    limit,
		recent:   list.New(),
		byRef:    make(map[Ref]*list.Element),
		onLookup: onLookup,
	}
}

// resolve returns the field for ref, calling load on a cache miss. A
// failed load is not cached.
func (c *fieldCache) resolve(ref Ref, load loadFunc) (*Field, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byRef[ref]; ok {
		c.recent.MoveToFront(el)
		c.onLookup("hit")
		return el.Value.(*cachedField).field, nil
	}
	f, o, err := load(ref)
	if err != nil {
		return nil, err
	}
	c.onLookup(o.result())
	c.byRef[ref] = c.recent.PushFront(&cachedField{ref: ref, field: f, origin: o})
	for c.recent.Len() > c.limit {
		oldest := c.recent.Back()
		c.recent.Remove(oldest)
		delete(c.byRef, oldest.Value.(*cachedField).ref)
	}
	return f, nil
}

func (c *fieldCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.Len()
}

// fallbacks lists the cached refs served by a missing field, ordered by
// file then variable.
func (c *fieldCache) fallbacks() []Ref {
	c.mu.Lock()
	defer c.mu.Unlock()
	var refs []Ref
	for el := c.recent.Front(); el != nil; el = el.Next() {
		if cf := el.Value.(*cachedField); cf.origin == fromFallback {
			refs = append(refs, cf.ref)
		}
	}
	slices.SortFunc(refs, func(a, b Ref) int {
		if n := strings.Compare(a.File, b.File); n != 0 {
			return n
		}
		return strings.Compare(a.Variable, b.Variable)
	})
	return refs
}
