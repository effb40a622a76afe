//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package boardcast

import "syscall"

func reuseControl(network, address string, c syscall.RawConn) error {
	return nil
}
