//go:build !unix

package transport

import "syscall"

// Windows listeners opt into exclusive address use instead; nothing to set.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
