//go:build !linux

package netutil

// setQoS is a no-op where socket priorities are not available.
func setQoS(int, QoS) error { return nil }
