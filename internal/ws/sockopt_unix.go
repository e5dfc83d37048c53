//go:build linux || darwin || freebsd

package ws

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl returns the socket setup hook for listeners, or nil when no
// options are requested.
func listenControl(config Config) func(network, address string, c syscall.RawConn) error {
	if !config.ReusePort {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
