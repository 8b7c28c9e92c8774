// Package router maps (method, path) pairs to handlers using a hash bucket
// table for literal routes and a linear scan over parameterized (`:name`)
// patterns. Grounded on the teacher's fast router
// (core/router/fast.go)'s FNV-1a hashRoute and word-wise
// stringHasPrefix fast path, simplified from its three-tier
// literal/compiled/radix design down to the spec's two-table model.
package router

import "strings"

// Handler is invoked with a resolved Request/Response pair. Defined as
// a function of two opaque values so this package has no dependency on
// core/http, matching the leaf position (core/router, "no router
// dependency edges downstream) the teacher's layout gives it.
type Handler func(req, resp any)

const defaultBuckets = 127

type literalRoute struct {
	method string
	path   string
	handler Handler
	next    *literalRoute // bucket chain
}

type paramRoute struct {
	method   string
	segments []string // "" pattern segments; ":name" entries capture
	handler  Handler
}

// Router holds the literal hash table and the parameterized route list.
// Routes are registered before Listen; after that it is read-only and
// requires no locking (spec §5).
type Router struct {
	buckets    []*literalRoute
	paramRoutes []paramRoute
}

// New creates a Router with the default bucket count.
func New() *Router {
	return NewWithBuckets(defaultBuckets)
}

// NewWithBuckets creates a Router with a caller-chosen bucket count.
func NewWithBuckets(n int) *Router {
	if n <= 0 {
		n = defaultBuckets
	}
	return &Router{buckets: make([]*literalRoute, n)}
}

// Add registers a handler for (method, pattern). Patterns containing a
// `:name` segment go into the parameterized list; all others into the
// literal hash table. Re-registering an identical literal (method, path)
// replaces the handler in place.
func (r *Router) Add(method, pattern string, handler Handler) {
	if strings.Contains(pattern, ":") {
		r.paramRoutes = append(r.paramRoutes, paramRoute{
			method:   method,
			segments: strings.Split(pattern, "/"),
			handler:  handler,
		})
		return
	}

	idx := hashRoute(method, pattern) % uint32(len(r.buckets))
	for n := r.buckets[idx]; n != nil; n = n.next {
		if n.method == method && n.path == pattern {
			n.handler = handler
			return
		}
	}
	r.buckets[idx] = &literalRoute{
		method:  method,
		path:    pattern,
		handler: handler,
		next:    r.buckets[idx],
	}
}

// Find resolves (method, path) to a handler and its captured path
// parameters, per spec §4.3's lookup protocol: literal bucket first,
// then a linear scan of parameterized routes, literal always winning,
// insertion order deciding among parameterized matches.
func (r *Router) Find(method, path string) (Handler, map[string]string) {
	idx := hashRoute(method, path) % uint32(len(r.buckets))
	for n := r.buckets[idx]; n != nil; n = n.next {
		if n.method == method && stringsEqualFast(n.path, path) {
			return n.handler, nil
		}
	}

	for i := range r.paramRoutes {
		pr := &r.paramRoutes[i]
		if pr.method != method {
			continue
		}
		if params, ok := matchSegments(pr.segments, path); ok {
			return pr.handler, params
		}
	}

	return nil, nil
}

// matchSegments implements the §4.3 match algorithm: split both pattern
// and path on '/', every literal segment must match exactly, every
// `:name` segment captures, and the segment counts must be equal.
func matchSegments(patternSegs []string, path string) (map[string]string, bool) {
	pathSegs := strings.Split(path, "/")
	if len(pathSegs) != len(patternSegs) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range patternSegs {
		if len(seg) > 0 && seg[0] == ':' {
			if params == nil {
				params = make(map[string]string, 4)
			}
			params[seg[1:]] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return nil, false
		}
	}
	return params, true
}

// hashRoute computes FNV-1a(method+path), grounded directly on
// core/router/fast.go's hashRoute (same constants, same method+path
// concatenation order).
func hashRoute(method, path string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < len(method); i++ {
		h ^= uint32(method[i])
		h *= prime32
	}
	for i := 0; i < len(path); i++ {
		h ^= uint32(path[i])
		h *= prime32
	}
	return h
}

// stringsEqualFast compares two strings: a length check first, then
// Go's built-in string equality. It has no separate word-at-a-time path
// for short (≤ 8 byte) strings.
func stringsEqualFast(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return a == b
}
