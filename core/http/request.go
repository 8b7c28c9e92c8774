package http

// Request is constructed fresh at the start of each request and discarded
// at the end (spec §3 Request). Grounded on core/http/request.go's pooled
// Request shape, reworked to carry an ordered HeaderList and the query/path
// parameter maps the spec's Router and RequestReader need.
type Request struct {
	Method        Method
	Path          string
	RawQuery      string
	Query         map[string]string
	PathParams    map[string]string
	Proto         string
	Headers       HeaderList
	Body          []byte
	KeepAlive     bool
	ContentLength int64

	// App is an observed back-reference to the owning application, set by
	// the serve loop before dispatch. Never owned by the Request (spec §9:
	// "request -> app -> router is a back-reference, observation never
	// ownership").
	App any

	// DB is an observed back-reference to a shared database handle (spec §3
	// Request). The module has no persistence layer of its own and the
	// serve loop leaves this field nil; an embedding application can set it
	// (for example from a middleware stage) to thread its own handle through
	// to handlers without a global.
	DB any

	// Upgraded records whether the Connection header requested a protocol
	// upgrade (e.g. "Connection: Upgrade"). WebSocket framing itself is out
	// of scope; this flag only feeds the keep-alive computation in the
	// serve loop (§4.7 step h).
	Upgraded bool
}

// NewRequest allocates a zero-value Request with sensible defaults.
func NewRequest() *Request {
	return &Request{
		Proto: "HTTP/1.1",
	}
}

// Reset clears the request for reuse by a pool, retaining map/slice
// capacity the way core/http/request.go's Reset does.
func (r *Request) Reset() {
	r.Method = MethodGet
	r.Path = ""
	r.RawQuery = ""
	r.Proto = ""
	r.Body = r.Body[:0]
	r.KeepAlive = false
	r.ContentLength = 0
	r.App = nil
	r.DB = nil
	r.Upgraded = false
	r.Headers.Reset()

	for k := range r.Query {
		delete(r.Query, k)
	}
	for k := range r.PathParams {
		delete(r.PathParams, k)
	}
}

// SetPathParam records a captured `:name` segment. Path parameters are
// reset per request (spec §3 Request).
func (r *Request) SetPathParam(name, value string) {
	if r.PathParams == nil {
		r.PathParams = make(map[string]string, 4)
	}
	r.PathParams[name] = value
}

// PathParam returns a captured path parameter, or "" if absent.
func (r *Request) PathParam(name string) string {
	if r.PathParams == nil {
		return ""
	}
	return r.PathParams[name]
}

// QueryParam returns a parsed query-string parameter, or "" if absent.
func (r *Request) QueryParam(name string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query[name]
}

// Header returns a request header value, case-insensitively.
func (r *Request) Header(name string) string {
	v, _ := r.Headers.Get(name)
	return v
}
