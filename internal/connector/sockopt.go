package connector

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrControl turns SO_REUSEADDR on before the dialer connects the
// socket, matching the rest of the socket configuration applied after dial.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
