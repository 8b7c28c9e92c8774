package buf

import "testing"

func TestAppendAndSize(t *testing.T) {
	b := New(0)
	b.AppendString("hello")
	if b.Size() != 5 {
		t.Fatalf("expected size 5, got %d", b.Size())
	}
	if string(b.Bytes()) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", b.Bytes())
	}
}

func TestResizeGrowZeroFills(t *testing.T) {
	b := FromBytes([]byte("ab"))
	b.Resize(5)
	if b.Size() != 5 {
		t.Fatalf("expected size 5, got %d", b.Size())
	}
	want := []byte{'a', 'b', 0, 0, 0}
	got := b.Bytes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: want %d got %d", i, want[i], got[i])
		}
	}
}

func TestTrim(t *testing.T) {
	b := FromBytes([]byte("hello world"))
	b.Trim(5)
	if string(b.Bytes()) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", b.Bytes())
	}
	// Trimming beyond size is a no-op.
	b.Trim(100)
	if b.Size() != 5 {
		t.Fatalf("expected trim beyond size to be a no-op, got size %d", b.Size())
	}
}

func TestSubstring(t *testing.T) {
	b := FromBytes([]byte("hello world"))
	if got := string(b.Substring(6, 11)); got != "world" {
		t.Fatalf("expected %q, got %q", "world", got)
	}
}

func TestCompare(t *testing.T) {
	a := FromBytes([]byte("abc"))
	c := FromBytes([]byte("abd"))
	if a.Compare(c) >= 0 {
		t.Fatalf("expected a < c")
	}
	if c.Compare(a) <= 0 {
		t.Fatalf("expected c > a")
	}
	d := FromBytes([]byte("abc"))
	if a.Compare(d) != 0 {
		t.Fatalf("expected equal buffers to compare 0")
	}
}

func TestCapacityInvariant(t *testing.T) {
	b := New(10)
	b.Resize(10)
	// Buffer must always have room for size+1 (trailing NUL headroom).
	if cap(b.Bytes()) < b.Size()+1 {
		t.Fatalf("capacity invariant violated: cap=%d size=%d", cap(b.Bytes()), b.Size())
	}
}

func TestAssignReplacesContents(t *testing.T) {
	b := FromBytes([]byte("first"))
	b.Assign([]byte("second value"))
	if string(b.Bytes()) != "second value" {
		t.Fatalf("expected %q, got %q", "second value", b.Bytes())
	}
}

func TestResetKeepsCapacity(t *testing.T) {
	b := FromBytes([]byte("hello"))
	capBefore := cap(b.Bytes())
	b.Reset()
	if b.Size() != 0 {
		t.Fatalf("expected size 0 after reset, got %d", b.Size())
	}
	if cap(b.Bytes()) != capBefore {
		t.Fatalf("expected capacity to be retained across reset")
	}
}
