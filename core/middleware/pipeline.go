// Package middleware implements the ordered pipeline invoked before a
// route's handler. Grounded on the teacher's core/middleware/pipeline.go
// Pipeline, replacing its abort-flag-on-Context model with the explicit
// continuation the spec requires: each middleware receives the request,
// the response, and a next func(), and a fresh cursor is allocated per
// invocation so recursive or concurrent Execute calls never share mutable
// chain state (spec §9: "a shared mutable cursor in the chain itself is a
// concurrency bug").
package middleware

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcedge/bdrserver/core/http"
)

// Next advances the chain by exactly one stage.
type Next func()

// Handler is a single middleware stage. It may do work before calling
// next, after, both, or not at all (short-circuiting by mutating resp
// and returning without calling next).
type Handler func(req *http.Request, resp *http.Response, next Next)

// FinalHandler is the route handler the chain eventually reaches.
type FinalHandler func(req *http.Request, resp *http.Response)

// Chain is an ordered list of middleware stages.
type Chain struct {
	stages []Handler
}

// New creates an empty Chain.
func New() *Chain {
	return &Chain{stages: make([]Handler, 0, 8)}
}

// Use appends a stage to the chain.
func (c *Chain) Use(h Handler) *Chain {
	c.stages = append(c.stages, h)
	return c
}

// Execute invokes the chain against one request/response pair. Each call
// gets its own cursor (the closure over i below), so the same Chain can
// be driven by many goroutines concurrently without synchronization
// (spec §4.4: "re-entrancy into the chain must be safe").
func (c *Chain) Execute(req *http.Request, resp *http.Response, final FinalHandler) {
	i := 0
	var step func()
	step = func() {
		if i >= len(c.stages) {
			final(req, resp)
			return
		}
		stage := c.stages[i]
		i++
		stage(req, resp, step)
	}
	step()
}

// Recovery recovers from a panicking handler or middleware stage,
// writing a 500 response instead of letting the goroutine crash the
// connection's serve loop.
func Recovery() Handler {
	return func(req *http.Request, resp *http.Response, next Next) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("middleware: recovered panic on %s %s: %v", req.Method, req.Path, err)
				resp.StatusCode = 500
				resp.StatusText = "Internal Server Error"
				resp.SetBodyOwned([]byte("Internal Server Error"))
			}
		}()
		next()
	}
}

// Logger logs each request's method and path after it has been handled.
func Logger() Handler {
	return func(req *http.Request, resp *http.Response, next Next) {
		start := time.Now()
		next()
		log.Printf("%s %s -> %d (%s)", req.Method, req.Path, resp.StatusCode, time.Since(start))
	}
}

// CORS adds permissive CORS headers and short-circuits OPTIONS preflight
// requests with a 204.
func CORS() Handler {
	return func(req *http.Request, resp *http.Response, next Next) {
		resp.Headers.Set("Access-Control-Allow-Origin", "*")
		resp.Headers.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
		resp.Headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if req.Method == http.MethodOptions {
			resp.StatusCode = 204
			resp.StatusText = "No Content"
			return // short-circuit: next is never called
		}
		next()
	}
}

// RateLimiter implements a simple token-bucket limiter shared across all
// requests the returned Handler sees.
func RateLimiter(requestsPerSecond int) Handler {
	var (
		mu         sync.Mutex
		tokens     = requestsPerSecond
		lastRefill = time.Now()
	)

	return func(req *http.Request, resp *http.Response, next Next) {
		mu.Lock()
		now := time.Now()
		if now.Sub(lastRefill) > time.Second {
			tokens = requestsPerSecond
			lastRefill = now
		}
		if tokens > 0 {
			tokens--
			mu.Unlock()
			next()
			return
		}
		mu.Unlock()

		resp.StatusCode = 429
		resp.StatusText = "Too Many Requests"
		resp.SetBodyOwned([]byte("Too Many Requests"))
	}
}

// RequestID stamps each response with a monotonically increasing
// X-Request-ID header.
func RequestID() Handler {
	var counter uint64
	return func(req *http.Request, resp *http.Response, next Next) {
		id := atomic.AddUint64(&counter, 1)
		resp.Headers.Set("X-Request-ID", fmt.Sprintf("%d", id))
		next()
	}
}
