package netutil

import (
	"fmt"
	"syscall"
)

// QoS is the marking applied to one class of traffic.
type QoS struct {
	TOS int
	COS int
}

// Mark applies q to the socket behind c. Sockets that do not expose a
// descriptor are left alone.
func Mark(c any, q QoS) error {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("raw socket: %w", err)
	}
	var opErr error
	err = raw.Control(func(fd uintptr) {
		opErr = setQoS(int(fd), q)
	})
	if err != nil {
		return fmt.Errorf("socket control: %w", err)
	}
	return opErr
}
