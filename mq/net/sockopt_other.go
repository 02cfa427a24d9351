//go:build !unix

package mqnet

import "syscall"

func dualStackControl(network, address string, rc syscall.RawConn) error { return nil }
