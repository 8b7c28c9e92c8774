package http

import "errors"

// Sentinel errors surfaced by RequestReader.Receive and ResponseWriter.Send.
// All are treated as "drop the connection" by the serve loop except where
// noted.
var (
	ErrInvalidRequest  = errors.New("http: malformed request line")
	ErrHeaderTooLarge  = errors.New("http: header block exceeds cap")
	ErrBodyTooLarge    = errors.New("http: body exceeds cap")
	ErrReadTimeout     = errors.New("http: read timeout")
	ErrPeerClosed      = errors.New("http: peer closed connection")
	ErrBufferExhausted = errors.New("http: working buffer exhausted before CRLFCRLF")
)
