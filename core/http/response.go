package http

import (
	"github.com/arcedge/bdrserver/internal/buf"
)

// CleanupFunc releases a borrowed body's underlying lifetime claim. It must
// be safe to call from any goroutine (spec §5: "the cleanup callback may run
// on any thread").
type CleanupFunc func(ptr []byte, ctx any)

// bodyKind tags which body variant is active.
type bodyKind uint8

const (
	bodyOwned bodyKind = iota
	bodyBorrowed
)

// Response is created with defaults (200 OK, HTTP/1.1, keep-alive true),
// mutated by the handler, and destroyed after write. Exactly one body
// variant is active at a time; switching variants releases any previously
// registered cleanup (spec §3 Response).
//
// Grounded on original_source/include/cwist/net/http/http.h's
// cwist_http_response (is_ptr_body / ptr_body / ptr_body_cleanup), since the
// teacher (core/http/context*.go) has no zero-copy response body at all.
type Response struct {
	Proto      string
	StatusCode int
	StatusText string
	Headers    HeaderList

	kind   bodyKind
	owned  buf.Buffer
	borrow []byte
	cleanup CleanupFunc
	cleanupCtx any
	cleanupDone bool
}

// NewResponse creates a Response with the spec's defaults.
func NewResponse() *Response {
	r := &Response{
		Proto:      "HTTP/1.1",
		StatusCode: 200,
		StatusText: "OK",
	}
	return r
}

// SetBodyOwned replaces the body with owned content, releasing any borrowed
// cleanup first.
func (r *Response) SetBodyOwned(data []byte) {
	r.runCleanup()
	r.kind = bodyOwned
	r.owned.Assign(data)
	r.borrow = nil
	r.cleanup = nil
	r.cleanupCtx = nil
}

// SetBodyBorrowed replaces the body with a borrowed region: ptr is read but
// never copied, and cleanup (if non-nil) is invoked exactly once, either
// here (when the variant is switched again or the response is destroyed) or
// by ResponseWriter.Send after the bytes have been written.
func (r *Response) SetBodyBorrowed(ptr []byte, cleanup CleanupFunc, ctx any) {
	r.runCleanup()
	r.kind = bodyBorrowed
	r.borrow = ptr
	r.cleanup = cleanup
	r.cleanupCtx = ctx
	r.cleanupDone = false
	r.owned.Reset()
}

// Body returns the bytes that would be sent for this response, regardless
// of which variant is active.
func (r *Response) Body() []byte {
	if r.kind == bodyBorrowed {
		return r.borrow
	}
	return r.owned.Bytes()
}

// runCleanup invokes the borrowed-body cleanup exactly once, if one is
// registered and hasn't already fired. Idempotent by construction: every
// path that can retire a borrowed body (variant switch, Destroy, a
// successful Send) funnels through this method.
func (r *Response) runCleanup() {
	if r.kind == bodyBorrowed && r.cleanup != nil && !r.cleanupDone {
		r.cleanupDone = true
		r.cleanup(r.borrow, r.cleanupCtx)
	}
}

// Destroy releases the response, invoking the borrowed-body cleanup exactly
// once if it has not already run (spec §3 Response invariant, §8 property 2).
func (r *Response) Destroy() {
	r.runCleanup()
	r.borrow = nil
	r.cleanup = nil
	r.cleanupCtx = nil
}

// Reset clears the response for pooled reuse, running any pending cleanup
// first so a borrowed body never outlives the response that owns its
// cleanup registration.
func (r *Response) Reset() {
	r.runCleanup()
	r.Proto = "HTTP/1.1"
	r.StatusCode = 200
	r.StatusText = "OK"
	r.Headers.Reset()
	r.kind = bodyOwned
	r.owned.Reset()
	r.borrow = nil
	r.cleanup = nil
	r.cleanupCtx = nil
	r.cleanupDone = false
}

// KeepAlive reports the response's desired keep-alive state, derived from
// an explicit "Connection" header if one was set by the handler, defaulting
// to true otherwise (spec §3 Response default: keep-alive true).
func (r *Response) KeepAlive() bool {
	if v, ok := r.Headers.Get("Connection"); ok {
		return !equalFoldASCII(v, "close")
	}
	return true
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
