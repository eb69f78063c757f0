package skinny

import (
	"bytes"
	"encoding/binary"
	"net/netip"
)

// writer accumulates a little-endian payload.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *writer) zeros(n int) { w.buf = append(w.buf, make([]byte, n)...) }

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

// str writes s into a fixed-size NUL padded field, truncating so that at
// least one terminating NUL remains.
func (w *writer) str(s string, size int) {
	if len(s) > size-1 {
		s = s[:size-1]
	}
	w.buf = append(w.buf, s...)
	w.zeros(size - len(s))
}

// ip4 writes an IPv4 address in network order.
func (w *writer) ip4(a netip.Addr) {
	if a.Is4() || a.Is4In6() {
		b := a.Unmap().As4()
		w.raw(b[:])
		return
	}
	w.zeros(4)
}

// ip16 writes an address into a 16 byte network order buffer. IPv4 goes
// into the first four bytes.
func (w *writer) ip16(a netip.Addr) {
	switch {
	case a.Is4() || a.Is4In6():
		b := a.Unmap().As4()
		w.raw(b[:])
		w.zeros(12)
	case a.Is6():
		b := a.As16()
		w.raw(b[:])
	default:
		w.zeros(16)
	}
}

// ipv writes the address-family word followed by a 16 byte address.
func (w *writer) ipv(a netip.Addr) {
	if a.Is6() && !a.Is4In6() {
		w.u32(1)
	} else {
		w.u32(0)
	}
	w.ip16(a)
}

// strs writes NUL separated strings padded to a four byte boundary.
func (w *writer) strs(ss ...string) {
	n := 0
	for _, s := range ss {
		w.buf = append(w.buf, s...)
		w.u8(0)
		n += len(s) + 1
	}
	if pad := (4 - n%4) % 4; pad > 0 {
		w.zeros(pad)
	}
}

// reader consumes a little-endian payload. Reads past the end yield zero
// values; phones routinely send shorter variants of a message.
type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) []byte {
	out := make([]byte, n)
	if r.off < len(r.buf) {
		copy(out, r.buf[r.off:])
	}
	r.off += n
	return out
}

func (r *reader) u8() uint8 { return r.take(1)[0] }

func (r *reader) u16() uint16 { return binary.LittleEndian.Uint16(r.take(2)) }

func (r *reader) u32() uint32 { return binary.LittleEndian.Uint32(r.take(4)) }

func (r *reader) skip(n int) { r.off += n }

func (r *reader) str(size int) string {
	b := r.take(size)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (r *reader) ip4() netip.Addr {
	return netip.AddrFrom4([4]byte(r.take(4)))
}

func (r *reader) ip16(v6 bool) netip.Addr {
	b := r.take(16)
	if v6 {
		return netip.AddrFrom16([16]byte(b))
	}
	return netip.AddrFrom4([4]byte(b[:4]))
}

func (r *reader) ipv() netip.Addr {
	return r.ip16(r.u32() == 1)
}

// strs reads n NUL separated strings and skips the alignment padding.
func (r *reader) strs(n int) []string {
	out := make([]string, 0, n)
	start := r.off
	for i := 0; i < n; i++ {
		if r.off >= len(r.buf) {
			out = append(out, "")
			continue
		}
		end := bytes.IndexByte(r.buf[r.off:], 0)
		if end < 0 {
			out = append(out, string(r.buf[r.off:]))
			r.off = len(r.buf)
			continue
		}
		out = append(out, string(r.buf[r.off:r.off+end]))
		r.off += end + 1
	}
	if consumed := r.off - start; consumed%4 != 0 {
		r.off += 4 - consumed%4
	}
	return out
}

func (r *reader) rest() []byte {
	if r.off >= len(r.buf) {
		return nil
	}
	out := append([]byte(nil), r.buf[r.off:]...)
	r.off = len(r.buf)
	return out
}
