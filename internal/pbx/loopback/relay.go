package loopback

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"

	"sccpd/internal/netutil"
	"sccpd/internal/pbx"
	"sccpd/internal/skinny"
)

const maxPacket = 1500

// relay is the media endpoint of one channel. Packets from the phone are
// parsed and handed to the target relay, which writes them to its own
// phone. A relay targeting itself echoes.
type relay struct {
	conn *net.UDPConn
	log  *logrus.Entry

	mu    sync.Mutex
	phone netip.AddrPort
	codec skinny.Codec
	qos   netutil.QoS
	held  bool

	target atomic.Pointer[relay]

	packets atomic.Uint64
	octets  atomic.Uint64
	dropped atomic.Uint64
	done    chan struct{}
}

func newRelay(addr netip.Addr, qos netutil.QoS, log *logrus.Entry) (*relay, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, 0)))
	if err != nil {
		return nil, err
	}
	if err := netutil.Mark(conn, qos); err != nil {
		log.Warnf("rtp qos: %v", err)
	}
	r := &relay{conn: conn, log: log, qos: qos, done: make(chan struct{})}
	go r.run()
	return r, nil
}

func (r *relay) port() uint16 {
	return r.conn.LocalAddr().(*net.UDPAddr).AddrPort().Port()
}

// setPhone records where the phone listens and re-marks the socket with
// the marking of that phone.
func (r *relay) setPhone(m pbx.PhoneMedia) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phone = m.Addr
	r.codec = m.Codec
	if m.QoS == (netutil.QoS{}) || m.QoS == r.qos {
		return
	}
	if err := netutil.Mark(r.conn, m.QoS); err != nil {
		r.log.Warnf("rtp qos for %s: %v", m.Addr, err)
		return
	}
	r.qos = m.QoS
}

func (r *relay) marking() netutil.QoS {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.qos
}

func (r *relay) setHeld(held bool) {
	r.mu.Lock()
	r.held = held
	r.mu.Unlock()
}

func (r *relay) run() {
	defer close(r.done)
	buf := make([]byte, maxPacket)
	for {
		n, from, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				r.log.Warnf("rtp read: %v", err)
			}
			return
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			r.dropped.Add(1)
			r.log.Tracef("dropping non rtp datagram from %s: %v", from, err)
			continue
		}
		r.learn(from)
		r.packets.Add(1)
		r.octets.Add(uint64(len(pkt.Payload)))

		r.mu.Lock()
		held := r.held
		r.mu.Unlock()
		if held {
			continue
		}
		if t := r.target.Load(); t != nil {
			t.deliver(pkt)
		}
	}
}

// learn takes the source of the first packet as the phone address when
// none was signalled, as behind NAT.
func (r *relay) learn(from netip.AddrPort) {
	r.mu.Lock()
	if !r.phone.IsValid() {
		r.phone = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
	}
	r.mu.Unlock()
}

func (r *relay) deliver(pkt *rtp.Packet) {
	r.mu.Lock()
	to, held := r.phone, r.held
	r.mu.Unlock()
	if !to.IsValid() || held {
		return
	}
	raw, err := pkt.Marshal()
	if err != nil {
		r.log.Debugf("rtp marshal: %v", err)
		return
	}
	if _, err := r.conn.WriteToUDPAddrPort(raw, to); err != nil {
		r.log.Debugf("rtp write to %s: %v", to, err)
	}
}

func (r *relay) close() {
	r.conn.Close()
	<-r.done
}
