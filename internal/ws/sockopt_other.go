//go:build !linux && !darwin && !freebsd

package ws

import (
	"errors"
	"syscall"
)

// listenControl rejects SO_REUSEPORT on platforms where x/sys/unix does not
// expose it.
func listenControl(config Config) func(network, address string, c syscall.RawConn) error {
	if !config.ReusePort {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		return errors.New("ws: SO_REUSEPORT is not supported on this platform")
	}
}
