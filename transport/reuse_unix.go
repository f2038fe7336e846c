//go:build unix

package transport

import (
	"os"
	"syscall"
)

func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}

	if sockErr != nil {
		return os.NewSyscallError("setsockopt", sockErr)
	}

	return nil
}
