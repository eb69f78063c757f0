package main

import (
	"fmt"
	"net"
	"net/netip"
)

// detectHostIP returns the first IPv4 address of the host outside
// 127.0.0.0/8. Phones must be able to reach it, so it is the default RTP
// address of the built in PBX.
func detectHostIP() (netip.Addr, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipnet.IP.To4())
		if !ok || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		return ip, nil
	}
	return netip.Addr{}, fmt.Errorf("no non-loopback IPv4 address found")
}
