// Package bdr implements the "Big Dumb Reply" learning cache: an inline
// cache that watches GET traffic, decides which endpoints return
// byte-identical responses across repeated calls, freezes the serialized
// bytes, and serves them back with a single socket write.
//
// Grounded directly on original_source/include/cwist/sys/app/big_dumb_reply.h
// and big_dumb_reply.c's bdr_entry_t / cwist_bdr_t and the
// get/put/stabilize/demote state machine; no Go file in the teacher
// implements anything like it. Eviction (TTL, revalidate-by-hits, byte
// cap, round-robin sweep) is named in the C header's field comments
// ("TTL for cached replies", "force refresh after this many hits",
// "round-robin sweep cursor") but the C function bodies never exercise
// them — that part is built from the header's intent plus the spec.
package bdr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/arcedge/bdrserver/internal/siphash"
)

const (
	DefaultBuckets           = 1024
	DefaultMaxBytes          = 32 * 1024 * 1024
	DefaultMaxEntryAge       = 300 * time.Second
	DefaultRevalidateHits    = 100000
	DefaultLatencyThresholdMs = 10
	gcSweepBuckets           = 8
)

// Config tunes the cache's limits. Zero values are replaced by the
// defaults above (spec §8 boundary: "max_bytes = 0: caching disabled...
// the reference implementation substitutes a default").
type Config struct {
	Buckets            int
	MaxBytes           int64
	MaxEntryAge        time.Duration
	RevalidateHits     uint64
	LatencyThresholdMs int64
}

func (c Config) withDefaults() Config {
	if c.Buckets <= 0 {
		c.Buckets = DefaultBuckets
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxEntryAge <= 0 {
		c.MaxEntryAge = DefaultMaxEntryAge
	}
	if c.RevalidateHits == 0 {
		c.RevalidateHits = DefaultRevalidateHits
	}
	if c.LatencyThresholdMs <= 0 {
		c.LatencyThresholdMs = DefaultLatencyThresholdMs
	}
	return c
}

// entry mirrors bdr_entry_t: a candidate holds only a response
// fingerprint; a stable entry additionally holds the frozen blob.
type entry struct {
	requestHash  uint64
	responseHash uint64
	stable       bool
	blob         []byte
	hits         uint64
	createdAt    time.Time
	next         *entry
}

// Cache is the BDR store: fixed hash buckets, a single mutex (spec §5:
// "the simplest correct implementation guards bucket mutations with a
// single mutex around get/put"), and a persistent round-robin GC cursor.
type Cache struct {
	mu           sync.Mutex
	cfg          Config
	buckets      []*entry
	currentBytes int64
	gcCursor     int

	stabilized atomic.Uint64
	demoted    atomic.Uint64
	evicted    atomic.Uint64
}

// Stats is a snapshot of the cache's learning/eviction activity, exposed
// for core/observability's periodic reporting.
type Stats struct {
	Stabilized   uint64
	Demoted      uint64
	Evicted      uint64
	CurrentBytes int64
}

// Stats returns a snapshot of the cache's stabilize/demote/evict counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Stabilized:   c.stabilized.Load(),
		Demoted:      c.demoted.Load(),
		Evicted:      c.evicted.Load(),
		CurrentBytes: c.CurrentBytes(),
	}
}

// New creates a Cache with cfg's limits, substituting defaults for any
// zero field.
func New(cfg Config) *Cache {
	cfg = cfg.withDefaults()
	return &Cache{
		cfg:     cfg,
		buckets: make([]*entry, cfg.Buckets),
	}
}

// SetLimits adjusts the cache's guard-rail policy at runtime. Unlike New,
// a zero/non-positive argument here means "keep the current value",
// matching cwist_bdr_set_limits's semantics
// ("max_bytes 0 keeps default... max_entry_age_sec <=0 keeps default").
func (c *Cache) SetLimits(maxBytes int64, maxEntryAge time.Duration, revalidateHits uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if maxBytes > 0 {
		c.cfg.MaxBytes = maxBytes
	}
	if maxEntryAge > 0 {
		c.cfg.MaxEntryAge = maxEntryAge
	}
	if revalidateHits > 0 {
		c.cfg.RevalidateHits = revalidateHits
	}
}

// LatencyThreshold returns the duration a handler must exceed before its
// response becomes eligible for Put.
func (c *Cache) LatencyThreshold() time.Duration {
	return time.Duration(c.cfg.LatencyThresholdMs) * time.Millisecond
}

// fingerprint computes the BDR key: SipHash-2-4(path) XOR first byte of
// method (spec §4.6). Requests are cached by their full path including
// any query string: siphash.FingerprintRequest hashes the path argument
// as given, and core.Engine passes req.Path with "?"+RawQuery appended
// whenever the request has a query.
func fingerprint(method, path string) uint64 {
	return siphash.FingerprintRequest(method, path)
}

// Get looks up (method, path). Only GET participates; any other method
// is always a miss. A match increments the hit counter; a decayed match
// (TTL or revalidate-hits exceeded) is evicted on the spot and reported
// as a miss.
func (c *Cache) Get(method, path string) ([]byte, bool) {
	if method != "GET" {
		return nil, false
	}
	h := fingerprint(method, path)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := int(h % uint64(len(c.buckets)))
	var prev *entry
	for e := c.buckets[idx]; e != nil; e = e.next {
		if e.requestHash != h {
			prev = e
			continue
		}

		e.hits++
		if c.decayed(e) {
			c.unlink(idx, prev, e)
			return nil, false
		}
		if e.stable && e.blob != nil {
			return e.blob, true
		}
		return nil, false
	}
	return nil, false
}

// Put records one observation of a GET response. The first observation
// for a key creates an unstable candidate holding only the response
// fingerprint; the second either stabilizes (fingerprints match) or
// keeps the candidate fresh (they don't); subsequent puts on an already
// stable entry either no-op or demote it (spec §4.6).
func (c *Cache) Put(method, path string, data []byte) {
	if method != "GET" || len(data) == 0 {
		return
	}
	reqHash := fingerprint(method, path)
	resHash := xxhash.Sum64(data)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := int(reqHash % uint64(len(c.buckets)))
	for e := c.buckets[idx]; e != nil; e = e.next {
		if e.requestHash != reqHash {
			continue
		}

		switch {
		case e.stable && e.responseHash == resHash:
			// no-op: unchanged stable entry
		case e.stable:
			c.currentBytes -= int64(len(e.blob))
			e.blob = nil
			e.stable = false
			e.responseHash = resHash
			e.hits = 0
			c.demoted.Add(1)
		case e.responseHash == resHash:
			e.blob = append([]byte(nil), data...)
			e.stable = true
			e.hits = 0
			e.createdAt = time.Now()
			c.currentBytes += int64(len(e.blob))
			c.stabilized.Add(1)
		default:
			e.responseHash = resHash
		}

		c.enforceByteCap()
		c.sweep()
		return
	}

	c.buckets[idx] = &entry{
		requestHash:  reqHash,
		responseHash: resHash,
		createdAt:    time.Now(),
		next:         c.buckets[idx],
	}

	c.enforceByteCap()
	c.sweep()
}

// decayed reports whether e should be evicted under trigger 1 (TTL) or
// trigger 2 (revalidate-by-hits). Caller holds c.mu.
func (c *Cache) decayed(e *entry) bool {
	if time.Since(e.createdAt) > c.cfg.MaxEntryAge {
		return true
	}
	if e.stable && e.hits > c.cfg.RevalidateHits {
		return true
	}
	return false
}

// unlink removes e from bucket idx's chain, releasing its blob's byte
// accounting. Caller holds c.mu.
func (c *Cache) unlink(idx int, prev, e *entry) {
	if prev == nil {
		c.buckets[idx] = e.next
	} else {
		prev.next = e.next
	}
	if e.stable {
		c.currentBytes -= int64(len(e.blob))
	}
	c.evicted.Add(1)
}

// enforceByteCap implements trigger 3: while over budget, evict the
// globally oldest stable entry. Caller holds c.mu.
func (c *Cache) enforceByteCap() {
	for c.currentBytes > c.cfg.MaxBytes {
		if !c.evictOldestStable() {
			return
		}
	}
}

func (c *Cache) evictOldestStable() bool {
	var (
		oldestBucket int
		oldestPrev   *entry
		oldest       *entry
	)
	for i, head := range c.buckets {
		var prev *entry
		for e := head; e != nil; e = e.next {
			if e.stable && (oldest == nil || e.createdAt.Before(oldest.createdAt)) {
				oldest = e
				oldestPrev = prev
				oldestBucket = i
			}
			prev = e
		}
	}
	if oldest == nil {
		return false
	}
	c.unlink(oldestBucket, oldestPrev, oldest)
	return true
}

// sweep performs the round-robin GC pass: gcSweepBuckets buckets per
// Put, starting from the persistent cursor, discarding any entry that
// meets trigger 1 or 2 (spec §4.6: "every put performs a round-robin GC
// sweep of 8 buckets").
func (c *Cache) sweep() {
	n := len(c.buckets)
	if n == 0 {
		return
	}
	visit := gcSweepBuckets
	if visit > n {
		visit = n
	}
	for i := 0; i < visit; i++ {
		idx := (c.gcCursor + i) % n
		var prev *entry
		e := c.buckets[idx]
		for e != nil {
			next := e.next
			if c.decayed(e) {
				c.unlink(idx, prev, e)
				e = next
				continue
			}
			prev = e
			e = next
		}
	}
	c.gcCursor = (c.gcCursor + visit) % n
}

// CurrentBytes reports the total bytes currently held by stable entries.
func (c *Cache) CurrentBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBytes
}
