// Package netutil provides small network helpers for the local tunnel.
package netutil

import (
	"fmt"
	"net"
	"time"
)

// PortFree reports whether the local TCP port can be bound. The tunnel uses
// it to fail fast before spawning a port-forward child that would lose the
// bind race anyway.
func PortFree(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// PortOpen reports whether something is accepting connections on the local
// TCP port.
func PortOpen(port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
