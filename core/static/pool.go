// Package static implements the fixed-capacity, zero-copy static asset
// arena: file bodies loaded once into memory, handed out via
// reference-counted nodes, and hot-reloaded in the background without
// disrupting in-flight sends.
//
// Grounded on original_source/src/sys/app/app.c's cwist_fix_server_mem
// machinery (cwist_mem_init/cwist_mem_register_file/cwist_mem_refresh_file/
// cwist_mem_watcher/cwist_static_handler) — the teacher's Go code
// (core/sendfile/sendfile.go) only caches open file descriptors for
// sendfile(2), it never holds file bodies in memory with reference
// counting, so this package has no direct Go precedent beyond
// sendfile.go's GetContentType extension table.
package static

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultRetireGrace is the minimum delay between a node's last
	// reference drop and its actual deallocation (spec §4.5).
	DefaultRetireGrace = 5 * time.Second
	// DefaultCheckInterval is how often the background watcher re-stats
	// every registered file (spec §4.5).
	DefaultCheckInterval = 2 * time.Second
	minAutoCapacity      = 1 << 20 // 1 MiB floor for the auto-sized capacity
)

// Mapping pairs a URL prefix with the filesystem directory it serves.
type Mapping struct {
	URLPrefix string
	FSRoot    string
}

// Node is a reference-counted allocation holding one file's bytes. A
// node becomes eligible for deallocation only once its refcount is zero
// AND its retirement deadline has passed (spec §5: "quiescent node").
type Node struct {
	data      []byte
	refs      int32
	expiresAt atomic.Int64 // UnixNano; 0 means "not retired"
}

func newNode(data []byte) *Node {
	return &Node{data: data, refs: 1}
}

// Acquire increments the node's reference count and returns its bytes.
func (n *Node) Acquire() []byte {
	atomic.AddInt32(&n.refs, 1)
	return n.data
}

// Release decrements the reference count. Safe to call from any thread
// (spec §5: cleanup callbacks must be internally thread-safe).
func (n *Node) Release() {
	atomic.AddInt32(&n.refs, -1)
}

func (n *Node) quiescent(now time.Time) bool {
	if atomic.LoadInt32(&n.refs) > 0 {
		return false
	}
	exp := n.expiresAt.Load()
	return exp != 0 && now.UnixNano() >= exp
}

func (n *Node) retire(grace time.Duration) {
	n.expiresAt.Store(time.Now().Add(grace).UnixNano())
	n.Release() // drop the initial reference held since newNode
}

// entry is one loaded file: its current node plus the bookkeeping the
// watcher needs to detect changes and the pool needs for capacity
// accounting.
type entry struct {
	fsPath string
	size   int64
	mtime  time.Time
	node   *Node
}

// Pool is the static asset arena. One mutex covers the entry map and
// current_used (spec §5); node reference counts are atomic and
// independent of it.
type Pool struct {
	mu          sync.Mutex
	mappings    []Mapping
	entries     map[string]*entry // keyed by absolute fs path
	currentUsed int64
	capacity    int64
	retireGrace time.Duration

	retiring []*Node

	checkInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	watcherDone   chan struct{}

	retiredCount atomic.Uint64
}

// Stats is a snapshot of the pool's capacity and retirement activity,
// exposed for core/observability's periodic reporting.
type Stats struct {
	CurrentUsed  int64
	Capacity     int64
	RetiredCount uint64
}

// Stats returns a snapshot of the pool's usage and lifetime retirement
// count.
func (p *Pool) Stats() Stats {
	return Stats{
		CurrentUsed:  p.CurrentUsed(),
		Capacity:     p.Capacity(),
		RetiredCount: p.retiredCount.Load(),
	}
}

// New walks each mapping's directory tree once to size the pool
// (capacity = capacityBytes if > 0, else 2x the scanned total floored
// at 1 MiB), then walks again to load every regular file (spec §4.5
// Initialization).
func New(mappings []Mapping, capacityBytes int64) (*Pool, error) {
	p := &Pool{
		mappings:      mappings,
		entries:       make(map[string]*entry),
		retireGrace:   DefaultRetireGrace,
		checkInterval: DefaultCheckInterval,
		stopCh:        make(chan struct{}),
		watcherDone:   make(chan struct{}),
	}

	var totalSize int64
	for _, m := range mappings {
		walkRegularFiles(m.FSRoot, func(path string, info os.FileInfo) {
			totalSize += info.Size()
		})
	}

	if capacityBytes > 0 {
		p.capacity = capacityBytes
	} else {
		p.capacity = totalSize * 2
		if p.capacity < minAutoCapacity {
			p.capacity = minAutoCapacity
		}
	}

	for _, m := range mappings {
		walkRegularFiles(m.FSRoot, func(path string, info os.FileInfo) {
			if err := p.loadFile(path, info); err != nil {
				// Resource exhaustion or a short read during static-pool
				// load: skip the file and keep serving the rest (§7).
				log.Printf("static: skipping %s: %v", path, err)
				return
			}
		})
	}

	return p, nil
}

func walkRegularFiles(root string, fn func(path string, info os.FileInfo)) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, de := range entries {
		full := filepath.Join(root, de.Name())
		if de.IsDir() {
			walkRegularFiles(full, fn)
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		fn(full, info)
	}
}

func (p *Pool) hasCapacity(incoming, reclaimable int64) bool {
	if p.capacity == 0 {
		return true
	}
	if incoming > p.capacity {
		return false
	}
	used := p.currentUsed
	if reclaimable > used {
		reclaimable = used
	}
	return used-reclaimable+incoming <= p.capacity
}

// loadFile reads fsPath fully into a new node and registers it, subject
// to the capacity discipline check (spec §4.5 Capacity discipline).
func (p *Pool) loadFile(fsPath string, info os.FileInfo) error {
	data, err := os.ReadFile(fsPath)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasCapacity(int64(len(data)), 0) {
		return errCapacityExceeded
	}

	p.entries[fsPath] = &entry{
		fsPath: fsPath,
		size:   int64(len(data)),
		mtime:  info.ModTime(),
		node:   newNode(data),
	}
	p.currentUsed += int64(len(data))
	return nil
}

// refreshFile reloads fsPath's contents into a new node, atomically
// swapping the entry under the pool mutex and retiring the old node
// with the grace-period delay (spec §4.5 Hot reload).
func (p *Pool) refreshFile(fsPath string, info os.FileInfo) {
	data, err := os.ReadFile(fsPath)
	if err != nil {
		return
	}

	p.mu.Lock()
	e, ok := p.entries[fsPath]
	if !ok {
		p.mu.Unlock()
		return
	}

	if !p.hasCapacity(int64(len(data)), e.size) {
		p.mu.Unlock()
		return
	}

	old := e.node
	oldSize := e.size

	e.node = newNode(data)
	e.size = int64(len(data))
	e.mtime = info.ModTime()

	p.currentUsed -= oldSize
	p.currentUsed += e.size
	p.retiring = append(p.retiring, old)
	p.retiredCount.Add(1)
	p.mu.Unlock()

	old.retire(p.retireGrace)
}

var errCapacityExceeded = &capacityError{}

type capacityError struct{}

func (*capacityError) Error() string { return "static: capacity exceeded" }

// MatchPrefix resolves a request path to a filesystem path, per spec
// §6's static-asset URL rules: a match requires the prefix followed by
// end-of-string, '/', or the prefix itself being "/". Paths containing a
// ".." segment are rejected. The root of a prefix maps to "index.html".
func (p *Pool) MatchPrefix(reqPath string) (fsPath string, forbidden, ok bool) {
	if containsDotDot(reqPath) {
		return "", true, false
	}

	for _, m := range p.mappings {
		relative, useIndex, matched := matchOne(m.URLPrefix, reqPath)
		if !matched {
			continue
		}
		name := relative
		if useIndex || name == "" {
			name = "index.html"
		}
		return filepath.Join(m.FSRoot, name), false, true
	}
	return "", false, false
}

func matchOne(prefix, path string) (relative string, useIndex, matched bool) {
	if prefix == "/" {
		return strings.TrimPrefix(path, "/"), path == "/", true
	}
	if path == prefix {
		return "", true, true
	}
	if strings.HasPrefix(path, prefix+"/") {
		return path[len(prefix)+1:], false, true
	}
	return "", false, false
}

func containsDotDot(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// Acquire returns the current bytes, size, and content type for fsPath,
// acquiring a reference on its node. The caller MUST call the returned
// release func exactly once when done with the bytes.
func (p *Pool) Acquire(fsPath string) (data []byte, size int64, contentType string, release func(), ok bool) {
	p.mu.Lock()
	e, found := p.entries[fsPath]
	p.mu.Unlock()
	if !found {
		return nil, 0, "", nil, false
	}

	node := e.node
	bytes := node.Acquire()
	return bytes, e.size, contentTypeFor(fsPath), node.Release, true
}

// Stat returns an entry's size and content type without acquiring a
// body reference, for HEAD requests (spec §4.5: "For HEAD requests, the
// pool returns size and content-type but no body reference").
func (p *Pool) Stat(fsPath string) (size int64, contentType string, ok bool) {
	p.mu.Lock()
	e, found := p.entries[fsPath]
	p.mu.Unlock()
	if !found {
		return 0, "", false
	}
	return e.size, contentTypeFor(fsPath), true
}

// CurrentUsed reports the pool's current byte usage.
func (p *Pool) CurrentUsed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentUsed
}

// Capacity reports the pool's total byte budget.
func (p *Pool) Capacity() int64 {
	return p.capacity
}

// contentTypeFor implements the spec §6 Content-Type table.
func contentTypeFor(fsPath string) string {
	ext := strings.ToLower(filepath.Ext(fsPath))
	switch ext {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".ico":
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}

// StartWatcher launches the background hot-reload watcher: an fsnotify
// watch on every registered directory for fast-path change notification,
// plus the mtime poll sweep cwist_mem_watcher performs every
// checkInterval, since fsnotify can miss events delivered by editors
// that replace files via rename/atomic-swap on some platforms.
func (p *Pool) StartWatcher() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, m := range p.mappings {
		addWatchRecursive(fsw, m.FSRoot)
	}

	go p.watchLoop(fsw)
	return nil
}

func addWatchRecursive(fsw *fsnotify.Watcher, root string) {
	fsw.Add(root)
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, de := range entries {
		if de.IsDir() {
			addWatchRecursive(fsw, filepath.Join(root, de.Name()))
		}
	}
}

func (p *Pool) watchLoop(fsw *fsnotify.Watcher) {
	defer fsw.Close()
	defer close(p.watcherDone)

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweepForChanges()
		case ev, ok := <-fsw.Events:
			if !ok {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				p.checkOne(ev.Name)
			}
		case <-fsw.Errors:
			// Transport failure on the watch channel: fall back to the
			// poll sweep, which still runs on its own ticker.
		}
	}
}

func (p *Pool) checkOne(fsPath string) {
	info, err := os.Stat(fsPath)
	if err != nil {
		return
	}
	p.mu.Lock()
	e, ok := p.entries[fsPath]
	p.mu.Unlock()
	if !ok || !info.ModTime().After(e.mtime) {
		return
	}
	p.refreshFile(fsPath, info)
}

func (p *Pool) sweepForChanges() {
	p.mu.Lock()
	paths := make([]string, 0, len(p.entries))
	for path := range p.entries {
		paths = append(paths, path)
	}
	p.mu.Unlock()

	now := time.Now()
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue // spec §9 open question: missing files are not evicted
		}
		p.mu.Lock()
		e := p.entries[path]
		p.mu.Unlock()
		if e != nil && info.ModTime().After(e.mtime) {
			p.refreshFile(path, info)
		}
	}
	p.reapRetired(now)
}

// reapRetired frees node byte slices that have become quiescent: zero
// references AND past their grace-period deadline.
func (p *Pool) reapRetired(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	live := p.retiring[:0]
	for _, n := range p.retiring {
		if n.quiescent(now) {
			n.data = nil // release the backing array to the GC
			continue
		}
		live = append(live, n)
	}
	p.retiring = live
}

// Stop halts the background watcher.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.watcherDone
}
