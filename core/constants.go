package core

// Header name constants for the headers the engine itself sets, as
// opposed to ones merely passed through from a handler's Response.
const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
)
