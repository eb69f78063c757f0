// Package netutil holds the host access lists and the socket QoS helpers.
package netutil

import (
	"fmt"
	"net/netip"
	"strings"
)

// Rule is one permit or deny entry.
type Rule struct {
	Permit bool
	Prefix netip.Prefix
}

func (r Rule) String() string {
	if r.Permit {
		return "permit " + r.Prefix.String()
	}
	return "deny " + r.Prefix.String()
}

// ACL is an ordered rule list. An address is allowed unless the last rule
// matching it is a deny.
type ACL []Rule

// internal is what the word "internal" expands to in a permit or deny.
var internal = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
}

// ParsePrefixes reads one permit/deny value: "internal", an address, an
// address with a prefix length, or an address with a dotted netmask.
func ParsePrefixes(entry string) ([]netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.EqualFold(entry, "internal") {
		return append([]netip.Prefix(nil), internal...), nil
	}
	addr, mask, found := strings.Cut(entry, "/")
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("bad address %q: %w", entry, err)
	}
	ip = ip.Unmap()
	if !found {
		return []netip.Prefix{netip.PrefixFrom(ip, ip.BitLen())}, nil
	}
	bits, err := maskBits(mask, ip.BitLen())
	if err != nil {
		return nil, fmt.Errorf("bad mask in %q: %w", entry, err)
	}
	return []netip.Prefix{netip.PrefixFrom(ip, bits).Masked()}, nil
}

func maskBits(mask string, max int) (int, error) {
	if m, err := netip.ParseAddr(mask); err == nil {
		b := m.AsSlice()
		n, zero := 0, false
		for _, octet := range b {
			for i := 7; i >= 0; i-- {
				set := octet&(1<<i) != 0
				switch {
				case set && zero:
					return 0, fmt.Errorf("non contiguous netmask %s", mask)
				case set:
					n++
				default:
					zero = true
				}
			}
		}
		return n, nil
	}
	var n int
	if _, err := fmt.Sscanf(mask, "%d", &n); err != nil || n < 0 || n > max {
		return 0, fmt.Errorf("prefix length %q out of range", mask)
	}
	return n, nil
}

// Add returns a with entry appended as a permit or deny.
func (a ACL) Add(permit bool, entry string) (ACL, error) {
	prefixes, err := ParsePrefixes(entry)
	if err != nil {
		return a, err
	}
	out := append(ACL(nil), a...)
	for _, p := range prefixes {
		out = append(out, Rule{Permit: permit, Prefix: p})
	}
	return out, nil
}

// Allows reports whether addr may connect.
func (a ACL) Allows(addr netip.Addr) bool {
	addr = addr.Unmap()
	allowed := true
	for _, r := range a {
		if r.Prefix.Contains(addr) {
			allowed = r.Permit
		}
	}
	return allowed
}

// Contains reports whether any rule of a matches addr, regardless of its
// verdict. localnet lists use it.
func (a ACL) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, r := range a {
		if r.Prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Equal compares two lists rule by rule.
func (a ACL) Equal(b ACL) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
