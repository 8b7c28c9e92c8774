//go:build darwin || freebsd || netbsd || openbsd

package core

import "golang.org/x/sys/unix"

// applyPlatformSockopts sets SO_NOSIGPIPE on BSD-family systems, where a
// write to a peer that has closed its read side raises SIGPIPE unless the
// socket opts out (spec §6: "SO_NOSIGPIPE on BSD-family systems").
func applyPlatformSockopts(fd uintptr) {
	unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
}
