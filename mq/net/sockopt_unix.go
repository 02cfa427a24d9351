//go:build unix

package mqnet

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// dualStackControl clears IPV6_V6ONLY so one IPv6 socket also serves IPv4 peers.
// Some systems (OpenBSD) refuse, then socket stays IPv6 only.
func dualStackControl(network, address string, rc syscall.RawConn) error {
	if network != "udp6" {
		return nil
	}
	return rc.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
	})
}
