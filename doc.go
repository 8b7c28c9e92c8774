/*
Package bdrserver is a single-binary HTTP application runtime built around
three ideas: a learning reply cache that serves byte-identical GET
responses from a frozen blob after observing them twice, a
reference-counted static asset pool that serves files with zero-copy
sends and hot-reloads them without disrupting in-flight readers, and a
thread-per-connection accept loop that keeps both correct under
keep-alive and pipelining.

Features

  - BDR ("Big Dumb Reply") cache: stabilizes after two identical GET
    observations, evicts by TTL, hit-count revalidation, and a byte cap,
    with a round-robin GC sweep on every write
  - Static asset pool: atomic reference-counted nodes, fsnotify-driven
    hot-reload with grace-period retirement, capacity-guarded loading
  - Router: literal hash-bucket table plus a parameterized (":name")
    route list
  - Middleware chain with a fresh per-call cursor, safe for concurrent
    reuse across connections
  - Accept loop: one goroutine per connection, correct keep-alive and
    connection-lifecycle handling, no per-request total deadline

Quick Start

Basic usage example:

	package main

	import (
	    "github.com/arcedge/bdrserver/app"
	    "github.com/arcedge/bdrserver/config"
	    "github.com/arcedge/bdrserver/core/http"
	)

	func main() {
	    cfg := config.New()
	    application, err := app.New(cfg)
	    if err != nil {
	        panic(err)
	    }

	    engine := application.Engine()
	    engine.GET("/hello", func(req *http.Request, resp *http.Response) {
	        resp.SetBodyOwned([]byte("Hello, World!"))
	    })

	    engine.GET("/users/:id", func(req *http.Request, resp *http.Response) {
	        resp.Headers.Set("Content-Type", "application/json")
	        resp.SetBodyOwned([]byte(`{"id":"` + req.PathParam("id") + `"}`))
	    })

	    if err := application.Run(); err != nil {
	        panic(err)
	    }
	}

Modules

The module is organized into:

  - app: application lifecycle (startup, signal-triggered shutdown)
  - config: flag- and environment-driven configuration
  - core: the Engine accept loop binding everything together
  - core/http: request/response types, RequestReader, ResponseWriter
  - core/router: literal + parameterized route resolution
  - core/middleware: the request-handling chain
  - core/bdr: the Big Dumb Reply learning cache
  - core/static: the reference-counted, hot-reloading static asset pool
  - core/pools: object pooling (connection slots, responses) and GC
    tuning
  - core/observability: request and cache performance monitoring
  - internal/siphash: the request-fingerprinting hash BDR keys on
  - internal/buf: the owned, growable buffer backing Response bodies

For more information on the learning cache and static pool's concurrency
model, see DESIGN.md.
*/
package bdrserver
