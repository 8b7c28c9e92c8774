package http

import (
	"net"
	"testing"
	"time"
)

// pipeConn wraps a net.Pipe half so tests can write request bytes from a
// goroutine while Receive reads from the other end.
func newPipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	c, s := net.Pipe()
	t.Cleanup(func() { c.Close(); s.Close() })
	return c, s
}

func TestReceiveSimpleGet(t *testing.T) {
	client, server := newPipe(t)
	go func() {
		client.Write([]byte("GET /hello?x=1 HTTP/1.1\r\nHost: a\r\n\r\n"))
	}()

	rr := NewRequestReader(DefaultReaderConfig())
	wbuf := NewConnBuffer(DefaultWorkingBufSize)

	req, err := rr.Receive(server, wbuf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if req.Method != MethodGet || req.Path != "/hello" || req.QueryParam("x") != "1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !req.KeepAlive {
		t.Fatalf("expected keep-alive true for HTTP/1.1 with no Connection header")
	}
}

func TestReceiveWithBody(t *testing.T) {
	client, server := newPipe(t)
	go func() {
		client.Write([]byte("POST /items HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
	}()

	rr := NewRequestReader(DefaultReaderConfig())
	wbuf := NewConnBuffer(DefaultWorkingBufSize)

	req, err := rr.Receive(server, wbuf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(req.Body) != "hello" {
		t.Fatalf("body = %q, want %q", req.Body, "hello")
	}
}

func TestReceivePipelinedLeavesLeftovers(t *testing.T) {
	client, server := newPipe(t)
	go func() {
		client.Write([]byte("GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n"))
	}()

	rr := NewRequestReader(DefaultReaderConfig())
	wbuf := NewConnBuffer(DefaultWorkingBufSize)

	first, err := rr.Receive(server, wbuf)
	if err != nil {
		t.Fatalf("first Receive: %v", err)
	}
	if first.Path != "/a" {
		t.Fatalf("first.Path = %q", first.Path)
	}

	second, err := rr.Receive(server, wbuf)
	if err != nil {
		t.Fatalf("second Receive: %v", err)
	}
	if second.Path != "/b" {
		t.Fatalf("second.Path = %q", second.Path)
	}
}

func TestReceiveConnectionCloseOverridesKeepAlive(t *testing.T) {
	client, server := newPipe(t)
	go func() {
		client.Write([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
	}()

	rr := NewRequestReader(DefaultReaderConfig())
	wbuf := NewConnBuffer(DefaultWorkingBufSize)

	req, err := rr.Receive(server, wbuf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if req.KeepAlive {
		t.Fatalf("expected keep-alive false after Connection: close")
	}
}

func TestReceiveHeaderTooLarge(t *testing.T) {
	client, server := newPipe(t)
	go func() {
		big := make([]byte, DefaultHeaderCap+100)
		for i := range big {
			big[i] = 'a'
		}
		client.Write([]byte("GET / HTTP/1.1\r\nX-Big: "))
		client.Write(big)
		client.Write([]byte("\r\n\r\n"))
	}()

	rr := NewRequestReader(DefaultReaderConfig())
	wbuf := NewConnBuffer(DefaultWorkingBufSize)

	_, err := rr.Receive(server, wbuf)
	if err != ErrHeaderTooLarge {
		t.Fatalf("err = %v, want ErrHeaderTooLarge", err)
	}
}

func TestReceiveBodyTooLarge(t *testing.T) {
	client, server := newPipe(t)
	go func() {
		client.Write([]byte("POST / HTTP/1.1\r\nContent-Length: 999999999999\r\n\r\n"))
	}()

	rr := NewRequestReader(DefaultReaderConfig())
	wbuf := NewConnBuffer(DefaultWorkingBufSize)

	_, err := rr.Receive(server, wbuf)
	if err != ErrBodyTooLarge {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestReceiveReadTimeout(t *testing.T) {
	_, server := newPipe(t)

	rr := NewRequestReader(ReaderConfig{
		ReadTimeout: 20 * time.Millisecond,
		BufferSize:  DefaultWorkingBufSize,
		HeaderCap:   DefaultHeaderCap,
		BodyCap:     DefaultBodyCap,
	})
	wbuf := NewConnBuffer(DefaultWorkingBufSize)

	_, err := rr.Receive(server, wbuf)
	if err != ErrReadTimeout {
		t.Fatalf("err = %v, want ErrReadTimeout", err)
	}
}
