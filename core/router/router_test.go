package router

import "testing"

func TestLiteralRouteMatches(t *testing.T) {
	r := New()
	called := false
	r.Add("GET", "/health", func(req, resp any) { called = true })

	h, params := r.Find("GET", "/health")
	if h == nil {
		t.Fatal("expected handler for literal route")
	}
	h(nil, nil)
	if !called {
		t.Fatal("handler was not invoked")
	}
	if params != nil {
		t.Fatalf("literal route should not capture params, got %v", params)
	}
}

func TestParameterizedRouteCapturesSegment(t *testing.T) {
	r := New()
	r.Add("GET", "/users/:id/posts", func(req, resp any) {})

	h, params := r.Find("GET", "/users/42/posts")
	if h == nil {
		t.Fatal("expected match for /users/42/posts")
	}
	if params["id"] != "42" {
		t.Fatalf("params[id] = %q, want 42", params["id"])
	}

	if h, _ := r.Find("GET", "/users/42"); h != nil {
		t.Fatal("/users/42 should not match /users/:id/posts")
	}
}

func TestLiteralWinsOverParameterized(t *testing.T) {
	r := New()
	r.Add("GET", "/users/:id", func(req, resp any) {})
	var literalCalled bool
	r.Add("GET", "/users/me", func(req, resp any) { literalCalled = true })

	h, params := r.Find("GET", "/users/me")
	if h == nil {
		t.Fatal("expected a match")
	}
	h(nil, nil)
	if !literalCalled || params != nil {
		t.Fatalf("expected literal /users/me to win, got params=%v", params)
	}
}

func TestParameterizedInsertionOrderBreaksTies(t *testing.T) {
	r := New()
	r.Add("GET", "/a/:x/c", func(req, resp any) {})
	secondCalled := false
	r.Add("GET", "/a/:x/:y", func(req, resp any) { secondCalled = true })

	// /a/1/c matches both patterns; the first-registered pattern must win.
	h, params := r.Find("GET", "/a/1/c")
	if h == nil {
		t.Fatal("expected a match")
	}
	h(nil, nil)
	if secondCalled {
		t.Fatal("second-registered pattern matched instead of the first")
	}
	if len(params) != 1 || params["x"] != "1" {
		t.Fatalf("first pattern captures only x=1, got %v", params)
	}
}

func TestReRegisteringLiteralReplacesHandler(t *testing.T) {
	r := New()
	r.Add("GET", "/x", func(req, resp any) {})
	second := false
	r.Add("GET", "/x", func(req, resp any) { second = true })

	h, _ := r.Find("GET", "/x")
	h(nil, nil)
	if !second {
		t.Fatal("expected second registration to replace the first")
	}
}

func TestNoMatchReturnsNilHandler(t *testing.T) {
	r := New()
	r.Add("GET", "/known", func(req, resp any) {})

	if h, _ := r.Find("GET", "/unknown"); h != nil {
		t.Fatal("expected nil handler for unregistered path")
	}
}

func TestMethodMismatchDoesNotMatch(t *testing.T) {
	r := New()
	r.Add("GET", "/only-get", func(req, resp any) {})

	if h, _ := r.Find("POST", "/only-get"); h != nil {
		t.Fatal("expected nil handler for method mismatch")
	}
}
