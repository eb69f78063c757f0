//go:build linux

package netutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func setQoS(fd int, q QoS) error {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, q.TOS&0xFF); err != nil {
		return fmt.Errorf("set tos 0x%02x: %w", q.TOS, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_PRIORITY, q.COS); err != nil {
		return fmt.Errorf("set cos %d: %w", q.COS, err)
	}
	return nil
}
