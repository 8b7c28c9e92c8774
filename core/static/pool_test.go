package static

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return full
}

func TestLoadAndAcquire(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<h1>hi</h1>")

	pool, err := New([]Mapping{{URLPrefix: "/", FSRoot: dir}}, 0)
	if err != nil {
		t.Fatal(err)
	}

	fsPath, forbidden, ok := pool.MatchPrefix("/")
	if forbidden || !ok {
		t.Fatalf("MatchPrefix(/) = forbidden=%v ok=%v", forbidden, ok)
	}

	data, size, ct, release, ok := pool.Acquire(fsPath)
	if !ok {
		t.Fatal("expected Acquire to find the loaded index.html")
	}
	defer release()

	if string(data) != "<h1>hi</h1>" || size != int64(len(data)) {
		t.Fatalf("unexpected body: %q size=%d", data, size)
	}
	if ct != "text/html; charset=utf-8" {
		t.Fatalf("content-type = %q", ct)
	}
}

func TestPrefixRejectsDotDot(t *testing.T) {
	dir := t.TempDir()
	pool, _ := New([]Mapping{{URLPrefix: "/static", FSRoot: dir}}, 0)

	_, forbidden, ok := pool.MatchPrefix("/static/../secret")
	if !forbidden || ok {
		t.Fatalf("expected forbidden=true ok=false for a path containing '..', got forbidden=%v ok=%v", forbidden, ok)
	}
}

func TestPrefixMatchingRules(t *testing.T) {
	dir := t.TempDir()
	pool, _ := New([]Mapping{{URLPrefix: "/assets", FSRoot: dir}}, 0)

	if _, _, ok := pool.MatchPrefix("/assets"); !ok {
		t.Error("prefix alone should match")
	}
	if _, _, ok := pool.MatchPrefix("/assets/logo.png"); !ok {
		t.Error("prefix/ should match")
	}
	if _, _, ok := pool.MatchPrefix("/assetsmalicious"); ok {
		t.Error("prefix must not match as a bare string prefix without separator")
	}
}

func TestCapacityGuardRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a", string(make([]byte, 900)))
	writeFile(t, dir, "b", string(make([]byte, 200)))

	pool, err := New([]Mapping{{URLPrefix: "/", FSRoot: dir}}, 1024)
	if err != nil {
		t.Fatal(err)
	}

	if pool.CurrentUsed() != 900 {
		t.Fatalf("CurrentUsed = %d, want 900 (file b must be rejected)", pool.CurrentUsed())
	}

	if _, _, _, _, ok := pool.Acquire(filepath.Join(dir, "b")); ok {
		t.Fatal("file b should not have been loaded")
	}
}

func TestRefreshReplacesNodeAndRetiresOld(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.txt", "v1")

	pool, err := New([]Mapping{{URLPrefix: "/", FSRoot: dir}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	pool.retireGrace = 10 * time.Millisecond

	_, _, _, release, ok := pool.Acquire(path)
	if !ok {
		t.Fatal("expected initial acquire to succeed")
	}

	// Simulate the file changing on disk and the watcher noticing it,
	// while the caller above still holds its reference.
	time.Sleep(5 * time.Millisecond)
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(path)
	pool.refreshFile(path, info)

	data2, _, _, release2, ok := pool.Acquire(path)
	if !ok || string(data2) != "v2" {
		t.Fatalf("expected new acquire to see v2, got %q ok=%v", data2, ok)
	}
	release2()

	// Release the original reference; the retired node should become
	// quiescent only after the grace period elapses.
	release()
	time.Sleep(20 * time.Millisecond)
	pool.reapRetired(time.Now())

	if len(pool.retiring) != 0 {
		t.Fatalf("expected retired node to be reaped after grace period, got %d pending", len(pool.retiring))
	}
	if got := pool.Stats().RetiredCount; got != 1 {
		t.Fatalf("expected 1 retirement recorded, got %d", got)
	}
}

func TestContentTypeTable(t *testing.T) {
	cases := map[string]string{
		"a.html": "text/html; charset=utf-8",
		"a.css":  "text/css; charset=utf-8",
		"a.js":   "application/javascript",
		"a.json": "application/json",
		"a.png":  "image/png",
		"a.jpg":  "image/jpeg",
		"a.gif":  "image/gif",
		"a.svg":  "image/svg+xml",
		"a.txt":  "text/plain; charset=utf-8",
		"a.ico":  "image/x-icon",
		"a.bin":  "application/octet-stream",
	}
	for name, want := range cases {
		if got := contentTypeFor(name); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}
