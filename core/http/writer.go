package http

import (
	"net"
	"strconv"
)

// DefaultResponseHeaderCap bounds the serialized status-line+header block,
// mirroring RequestReader's header cap (spec §4.2).
const DefaultResponseHeaderCap = 8 * 1024

// ResponseWriter serializes a Response onto a connection. Grounded on
// core/http/context_fd.go's appendInt/statusText status-line assembly,
// generalized from that file's fixed-field Context onto the ordered
// HeaderList and tagged owned/borrowed Response body.
type ResponseWriter struct {
	headerCap int
}

// NewResponseWriter creates a ResponseWriter with the given header
// block capacity. A cap of 0 selects DefaultResponseHeaderCap.
func NewResponseWriter(headerCap int) *ResponseWriter {
	if headerCap <= 0 {
		headerCap = DefaultResponseHeaderCap
	}
	return &ResponseWriter{headerCap: headerCap}
}

// Send serializes resp's status line, headers (synthesizing Content-Length
// and Connection when the handler left them unset) and body, and writes
// them to conn as a single scatter/gather call. The borrowed-body cleanup
// callback, if any, runs exactly once regardless of whether the write
// succeeds (spec §4.2 step f, §8 property 2).
func (w *ResponseWriter) Send(conn net.Conn, resp *Response) error {
	body := resp.Body()

	head := make([]byte, 0, w.headerCap)
	head = appendStatusLine(head, resp)
	head, err := appendHeaders(head, resp, len(body), w.headerCap)
	if err != nil {
		resp.runCleanup()
		return err
	}

	bufs := net.Buffers{head, body}
	_, werr := bufs.WriteTo(conn)

	resp.runCleanup()
	return werr
}

// Serialize builds resp's full wire representation (status line, headers,
// and body) as a single owned byte slice without writing it anywhere. The
// serve loop uses this to freeze a response for the BDR cache (spec §4.7
// step g: "serialize the response and call BDR.put").
func (w *ResponseWriter) Serialize(resp *Response) ([]byte, error) {
	body := resp.Body()
	head := make([]byte, 0, w.headerCap)
	head = appendStatusLine(head, resp)
	head, err := appendHeaders(head, resp, len(body), w.headerCap)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head...)
	out = append(out, body...)
	return out, nil
}

func appendStatusLine(dst []byte, resp *Response) []byte {
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	dst = append(dst, proto...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(resp.StatusCode), 10)
	dst = append(dst, ' ')
	text := resp.StatusText
	if text == "" {
		text = statusText(resp.StatusCode)
	}
	dst = append(dst, text...)
	dst = append(dst, '\r', '\n')
	return dst
}

func appendHeaders(dst []byte, resp *Response, bodyLen int, cap int) ([]byte, error) {
	hasContentLength := false
	hasConnection := false

	for _, h := range resp.Headers.All() {
		if equalFoldASCII(h.Name, "Content-Length") {
			hasContentLength = true
		}
		if equalFoldASCII(h.Name, "Connection") {
			hasConnection = true
		}
		var err error
		dst, err = appendHeaderLine(dst, h.Name, h.Value, cap)
		if err != nil {
			return dst, err
		}
	}

	var err error
	if !hasContentLength {
		dst, err = appendHeaderLine(dst, "Content-Length", strconv.Itoa(bodyLen), cap)
		if err != nil {
			return dst, err
		}
	}
	if !hasConnection {
		conn := "keep-alive"
		if !resp.KeepAlive() {
			conn = "close"
		}
		dst, err = appendHeaderLine(dst, "Connection", conn, cap)
		if err != nil {
			return dst, err
		}
	}

	dst = append(dst, '\r', '\n')
	if len(dst) > cap {
		return dst, ErrHeaderTooLarge
	}
	return dst, nil
}

func appendHeaderLine(dst []byte, name, value string, cap int) ([]byte, error) {
	dst = append(dst, name...)
	dst = append(dst, ':', ' ')
	dst = append(dst, value...)
	dst = append(dst, '\r', '\n')
	if len(dst) > cap {
		return dst, ErrHeaderTooLarge
	}
	return dst, nil
}

// statusText returns the reason phrase for common status codes, falling
// back to an empty string for anything a handler didn't label explicitly.
func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 202:
		return "Accepted"
	case 204:
		return "No Content"
	case 206:
		return "Partial Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 413:
		return "Payload Too Large"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 503:
		return "Service Unavailable"
	default:
		return ""
	}
}
