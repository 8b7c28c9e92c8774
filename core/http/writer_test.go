package http

import (
	"bufio"
	"net"
	"strings"
	"testing"
)

func TestSendSynthesizesContentLengthAndConnection(t *testing.T) {
	client, server := newPipe(t)

	resp := NewResponse()
	resp.SetBodyOwned([]byte("hi"))

	done := make(chan error, 1)
	go func() {
		w := NewResponseWriter(0)
		err := w.Send(server, resp)
		server.Close()
		done <- err
	}()

	raw := readAll(t, client)
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if !strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("status line wrong: %q", raw)
	}
	if !strings.Contains(raw, "Content-Length: 2\r\n") {
		t.Fatalf("missing synthesized Content-Length: %q", raw)
	}
	if !strings.Contains(raw, "Connection: keep-alive\r\n") {
		t.Fatalf("missing synthesized Connection: %q", raw)
	}
	if !strings.HasSuffix(raw, "hi") {
		t.Fatalf("missing body: %q", raw)
	}
}

func TestSendRunsBorrowedCleanupExactlyOnce(t *testing.T) {
	client, server := newPipe(t)

	calls := 0
	resp := NewResponse()
	resp.SetBodyBorrowed([]byte("zero-copy"), func([]byte, any) { calls++ }, nil)

	done := make(chan error, 1)
	go func() {
		w := NewResponseWriter(0)
		err := w.Send(server, resp)
		server.Close()
		done <- err
	}()

	readAll(t, client)
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if calls != 1 {
		t.Fatalf("cleanup calls = %d, want 1", calls)
	}

	resp.Destroy()
	if calls != 1 {
		t.Fatalf("cleanup ran again on Destroy: calls = %d", calls)
	}
}

func TestSendRespectsExplicitConnectionHeader(t *testing.T) {
	client, server := newPipe(t)

	resp := NewResponse()
	resp.Headers.Set("Connection", "close")
	resp.SetBodyOwned([]byte("x"))

	done := make(chan error, 1)
	go func() {
		w := NewResponseWriter(0)
		err := w.Send(server, resp)
		server.Close()
		done <- err
	}()

	raw := readAll(t, client)
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(raw, "Connection: close\r\n") {
		t.Fatalf("expected explicit Connection: close preserved: %q", raw)
	}
}

func TestSerializeMatchesSendWithoutWriting(t *testing.T) {
	resp := NewResponse()
	resp.SetBodyOwned([]byte("frozen body"))

	w := NewResponseWriter(0)
	out, err := w.Serialize(resp)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if !strings.HasPrefix(string(out), "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("status line wrong: %q", out)
	}
	if !strings.Contains(string(out), "Content-Length: 11\r\n") {
		t.Fatalf("missing synthesized Content-Length: %q", out)
	}
	if !strings.Contains(string(out), "Connection: keep-alive\r\n") {
		t.Fatalf("missing synthesized Connection: %q", out)
	}
	if !strings.HasSuffix(string(out), "frozen body") {
		t.Fatalf("missing body: %q", out)
	}

	// Serialize must not invoke the borrowed-body cleanup: the caller (BDR
	// put) still owns the original response and its release semantics.
	calls := 0
	resp2 := NewResponse()
	resp2.SetBodyBorrowed([]byte("zc"), func([]byte, any) { calls++ }, nil)
	if _, err := w.Serialize(resp2); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if calls != 0 {
		t.Fatalf("Serialize ran borrowed cleanup, calls = %d, want 0", calls)
	}
}

func TestSerializeProducesSameBytesAsSend(t *testing.T) {
	client, server := newPipe(t)

	resp := NewResponse()
	resp.Headers.Set("X-Custom", "yes")
	resp.SetBodyOwned([]byte("hello"))

	w := NewResponseWriter(0)
	serialized, err := w.Serialize(resp)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	sendResp := NewResponse()
	sendResp.Headers.Set("X-Custom", "yes")
	sendResp.SetBodyOwned([]byte("hello"))

	done := make(chan error, 1)
	go func() {
		err := w.Send(server, sendResp)
		server.Close()
		done <- err
	}()

	raw := readAll(t, client)
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	if string(serialized) != raw {
		t.Fatalf("Serialize output diverges from Send output:\nserialize=%q\nsend=     %q", serialized, raw)
	}
}

func readAll(t *testing.T, conn net.Conn) string {
	t.Helper()
	r := bufio.NewReader(conn)
	var sb strings.Builder
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}
