package http

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// Default limits and timeouts from spec §4.1.
const (
	DefaultReadTimeout    = 5 * time.Second
	DefaultWorkingBufSize = 16 * 1024
	DefaultHeaderCap      = 8 * 1024
	DefaultBodyCap        = 10 * 1024 * 1024
)

// ReaderConfig tunes RequestReader's limits.
type ReaderConfig struct {
	ReadTimeout time.Duration
	BufferSize  int
	HeaderCap   int
	BodyCap     int64
}

// DefaultReaderConfig returns the spec's default limits.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		ReadTimeout: DefaultReadTimeout,
		BufferSize:  DefaultWorkingBufSize,
		HeaderCap:   DefaultHeaderCap,
		BodyCap:     DefaultBodyCap,
	}
}

// ConnBuffer is the per-connection working buffer RequestReader reads into.
// It persists across requests on the same connection so pipelined bytes are
// retained between calls to Receive (spec §4.1).
type ConnBuffer struct {
	data []byte
	n    int // valid bytes are data[0:n]
}

// NewConnBuffer allocates a working buffer of the given capacity.
func NewConnBuffer(size int) *ConnBuffer {
	return &ConnBuffer{data: make([]byte, size)}
}

func (c *ConnBuffer) bytes() []byte { return c.data[:c.n] }

// Reset discards any buffered bytes, retaining the backing array. Used when
// a connection slot is returned to its pool for reuse by a future
// connection (core.Engine's connection pool).
func (c *ConnBuffer) Reset() { c.n = 0 }

// compact discards the first k bytes, shifting any remainder to the front.
func (c *ConnBuffer) compact(k int) {
	remaining := c.n - k
	if remaining > 0 {
		copy(c.data[0:remaining], c.data[k:c.n])
	}
	c.n = remaining
}

// RequestReader consumes bytes from a connection into a caller-owned
// ConnBuffer and produces parsed Requests. Grounded on
// core/http/parser.go's zero-copy request-line/header scan, reworked to add
// the bounded-read-with-timeout and leftover-handoff behavior spec §4.1
// requires (the teacher's epoll engine never blocks on reads at all, so the
// polling loop itself has no teacher precedent beyond
// core/sendfile/sendfile.go's EAGAIN retry idiom).
type RequestReader struct {
	cfg ReaderConfig
}

// NewRequestReader creates a RequestReader with the given configuration.
func NewRequestReader(cfg ReaderConfig) *RequestReader {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultWorkingBufSize
	}
	if cfg.HeaderCap <= 0 {
		cfg.HeaderCap = DefaultHeaderCap
	}
	if cfg.BodyCap <= 0 {
		cfg.BodyCap = DefaultBodyCap
	}
	return &RequestReader{cfg: cfg}
}

var crlfcrlf = []byte("\r\n\r\n")

// Receive reads one full request (request-line + headers + body) from conn,
// using wbuf as the persistent per-connection scratch space. Bytes beyond
// the parsed request's boundary are left in wbuf for the next call (HTTP/1.1
// pipelining, spec §4.1 step 4).
func (rr *RequestReader) Receive(conn net.Conn, wbuf *ConnBuffer) (*Request, error) {
	headerEnd, err := rr.fillUntilHeaders(conn, wbuf)
	if err != nil {
		return nil, err
	}

	req := NewRequest()
	if err := parseHead(req, wbuf.data[:headerEnd]); err != nil {
		return nil, err
	}

	bodyStart := headerEnd + len(crlfcrlf)
	if req.ContentLength > rr.cfg.BodyCap {
		return nil, ErrBodyTooLarge
	}

	if err := rr.readBody(conn, wbuf, req, bodyStart); err != nil {
		return nil, err
	}

	applyKeepAliveDefaults(req)
	return req, nil
}

// fillUntilHeaders polls the connection until wbuf contains a full
// CRLFCRLF-terminated header block, returning the index of the CRLFCRLF.
func (rr *RequestReader) fillUntilHeaders(conn net.Conn, wbuf *ConnBuffer) (int, error) {
	for {
		if idx := bytes.Index(wbuf.bytes(), crlfcrlf); idx != -1 {
			if idx > rr.cfg.HeaderCap {
				return 0, ErrHeaderTooLarge
			}
			return idx, nil
		}

		if wbuf.n > rr.cfg.HeaderCap {
			return 0, ErrHeaderTooLarge
		}
		if wbuf.n >= len(wbuf.data) {
			return 0, ErrBufferExhausted
		}

		n, err := rr.readDeadline(conn, wbuf.data[wbuf.n:])
		if err != nil {
			return 0, err
		}
		wbuf.n += n
	}
}

// readDeadline performs one bounded read against conn honoring the
// configured per-request timeout, translating timeouts and EOF into the
// sentinel errors the serve loop expects.
func (rr *RequestReader) readDeadline(conn net.Conn, p []byte) (int, error) {
	if rr.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(rr.cfg.ReadTimeout))
	}
	n, err := conn.Read(p)
	if err != nil {
		if n > 0 {
			return n, nil
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, ErrReadTimeout
		}
		return 0, ErrPeerClosed
	}
	if n == 0 {
		return 0, ErrPeerClosed
	}
	return n, nil
}

// readBody satisfies req.ContentLength, first from any bytes already
// buffered in wbuf (pipelined ahead-of-time reads), then with additional
// deadline-bound reads directly into req.Body. Bytes in wbuf beyond the
// body boundary are retained (compacted to the front) as leftovers for the
// next request on this connection.
func (rr *RequestReader) readBody(conn net.Conn, wbuf *ConnBuffer, req *Request, bodyStart int) error {
	need := int(req.ContentLength)
	available := wbuf.n - bodyStart
	if available < 0 {
		available = 0
	}

	fromBuf := available
	if fromBuf > need {
		fromBuf = need
	}

	req.Body = append(req.Body[:0], wbuf.data[bodyStart:bodyStart+fromBuf]...)
	remaining := need - fromBuf

	if remaining == 0 {
		wbuf.compact(bodyStart + fromBuf)
		return nil
	}

	// The body exceeds what's currently buffered: the rest must come
	// straight from the connection. Since we consumed everything in wbuf
	// up to bodyStart+fromBuf == wbuf.n, the working buffer is now empty.
	wbuf.compact(wbuf.n)

	req.Body = append(req.Body, make([]byte, remaining)...)
	dst := req.Body[fromBuf:]
	for len(dst) > 0 {
		n, err := rr.readDeadline(conn, dst)
		if err != nil {
			return err
		}
		dst = dst[n:]
	}
	return nil
}

// parseHead parses the request line and header block (everything before the
// terminating CRLFCRLF) into req.
func parseHead(req *Request, head []byte) error {
	lineEnd := bytes.IndexByte(head, '\n')
	if lineEnd == -1 {
		return ErrInvalidRequest
	}
	line := head[:lineEnd]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	if err := parseRequestLine(req, line); err != nil {
		return err
	}

	rest := head[lineEnd+1:]
	for len(rest) > 0 {
		end := bytes.IndexByte(rest, '\n')
		var line []byte
		if end == -1 {
			line = rest
			rest = nil
		} else {
			line = rest[:end]
			rest = rest[end+1:]
		}
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) == 0 {
			continue
		}
		if err := parseHeaderLine(req, line); err != nil {
			return err
		}
	}
	return nil
}

func parseRequestLine(req *Request, line []byte) error {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return ErrInvalidRequest
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 == -1 {
		return ErrInvalidRequest
	}

	method := string(line[:sp1])
	path := string(rest[:sp2])
	proto := string(rest[sp2+1:])
	if method == "" || path == "" || proto == "" {
		return ErrInvalidRequest
	}

	req.Method = ParseMethod(method)
	req.Proto = proto

	if q := strings.IndexByte(path, '?'); q != -1 {
		req.Path = path[:q]
		req.RawQuery = path[q+1:]
		req.Query = parseQueryString(req.RawQuery)
	} else {
		req.Path = path
	}
	return nil
}

func parseQueryString(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		if eq := strings.IndexByte(pair, '='); eq != -1 {
			out[pair[:eq]] = pair[eq+1:]
		} else {
			out[pair] = ""
		}
	}
	return out
}

func parseHeaderLine(req *Request, line []byte) error {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return nil // malformed individual header line: ignore rather than fail the whole request
	}
	name := string(bytes.TrimSpace(line[:colon]))
	value := string(bytes.TrimLeft(line[colon+1:], " \t"))
	value = strings.TrimRight(value, " \t")

	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return nil // malformed field per RFC 7230 token/value grammar: ignore rather than fail the whole request
	}

	req.Headers.Add(name, value)

	switch {
	case strings.EqualFold(name, "Connection"):
		lower := strings.ToLower(value)
		if strings.Contains(lower, "close") {
			req.KeepAlive = false
		} else if strings.Contains(lower, "keep-alive") {
			req.KeepAlive = true
		}
		if strings.Contains(lower, "upgrade") {
			req.Upgraded = true
		}
	case strings.EqualFold(name, "Content-Length"):
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return ErrInvalidRequest
		}
		req.ContentLength = n
	}
	return nil
}

// applyKeepAliveDefaults sets req.KeepAlive from the protocol version when
// no Connection header overrode it. RequestReader.Receive always calls this
// after headers are parsed, so the "initialized from version, then
// overridden by Connection" ordering from spec §3 Request holds regardless
// of header order.
func applyKeepAliveDefaults(req *Request) {
	if v, ok := req.Headers.Get("Connection"); ok {
		lower := strings.ToLower(v)
		if strings.Contains(lower, "close") || strings.Contains(lower, "keep-alive") {
			return // already set by parseHeaderLine
		}
	}
	req.KeepAlive = req.Proto == "HTTP/1.1"
}
