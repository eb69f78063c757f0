// Package rtp negotiates the media streams between a phone and the PBX:
// the receive channel the phone opens, the transmission it starts, and
// their teardown.
package rtp

import (
	"errors"
	"fmt"
	"net/netip"

	"sccpd/internal/model"
	"sccpd/internal/netutil"
	"sccpd/internal/skinny"
)

// ErrRtpNegotiation reports an ack with a non-zero status. The call goes
// to Congestion.
var ErrRtpNegotiation = errors.New("rtp: negotiation failed")

// ErrNoCodec is returned when the phone and the configuration share no
// codec.
var ErrNoCodec = errors.New("rtp: no common codec")

const (
	defaultPacketSize  = 20
	defaultDTMFPayload = 101
	defaultRTPTimeout  = 10
)

// Policy is the media configuration of one device.
type Policy struct {
	// TrustPhoneIP uses the address the phone reports in its acks; when
	// unset the signaling peer address is used.
	TrustPhoneIP bool
	NAT          bool
	DirectRTP    bool
	// ExternIP replaces the PBX media address for phones outside LocalNet.
	ExternIP           netip.Addr
	LocalNet           netutil.ACL
	SilenceSuppression bool
	PacketSize         uint32
	// Codecs are the configured preferences, best first.
	Codecs []skinny.Codec
}

func (p Policy) packetSize() uint32 {
	if p.PacketSize == 0 {
		return defaultPacketSize
	}
	return p.PacketSize
}

// ChooseCodec picks the first preference the phone can receive. Without
// capabilities the first preference is taken.
func ChooseCodec(prefs []skinny.Codec, caps []skinny.MediaCapability) (skinny.Codec, error) {
	if len(prefs) == 0 {
		return skinny.CodecNone, ErrNoCodec
	}
	if len(caps) == 0 {
		return prefs[0], nil
	}
	for _, p := range prefs {
		for _, c := range caps {
			if c.Codec == p {
				return p, nil
			}
		}
	}
	return skinny.CodecNone, ErrNoCodec
}

// OpenReceive starts the receive side of c. It returns nil when the
// channel is already open or opening.
func OpenReceive(c *model.Channel, codec skinny.Codec, pol Policy, pbxAddr netip.Addr) *skinny.OpenReceiveChannel {
	var opened bool
	c.UpdateMedia(func(m *model.Media) {
		if m.Rx != model.MediaClosed {
			return
		}
		m.Rx = model.MediaOpening
		m.Codec = codec
		opened = true
	})
	if !opened {
		return nil
	}
	vad := uint32(0)
	if pol.SilenceSuppression {
		vad = 1
	}
	return &skinny.OpenReceiveChannel{
		ConferenceID:    c.CallRef,
		PassThruPartyID: c.PassThruID,
		Media: skinny.MediaParams{
			PacketSize:  pol.packetSize(),
			Codec:       codec,
			DTMFPayload: defaultDTMFPayload,
			RTPTimeout:  defaultRTPTimeout,
		},
		VAD:           vad,
		CallReference: c.CallRef,
		RemoteIP:      pbxAddr,
	}
}

// HandleOpenAck records where the phone receives. peer is the signaling
// address of the phone and replaces the reported address unless the phone
// is trusted and not behind NAT.
func HandleOpenAck(c *model.Channel, ack *skinny.OpenReceiveChannelAck, peer netip.Addr, pol Policy) (netip.AddrPort, error) {
	if ack.Status != 0 {
		c.UpdateMedia(func(m *model.Media) { m.Rx = model.MediaClosed })
		return netip.AddrPort{}, fmt.Errorf("%w: open receive channel status %d on %s", ErrRtpNegotiation, ack.Status, c)
	}
	ip := ack.IP.Unmap()
	if !pol.TrustPhoneIP || pol.NAT || !ip.IsValid() || ip.IsUnspecified() {
		ip = peer.Unmap()
	}
	addr := netip.AddrPortFrom(ip, uint16(ack.Port))
	c.UpdateMedia(func(m *model.Media) {
		m.Phone = addr
		m.Rx = model.MediaOpen
	})
	return addr, nil
}

// StartTransmission points the phone of c at remote. Phones outside the
// local networks are sent ExternIP instead of the remote address.
func StartTransmission(c *model.Channel, remote netip.AddrPort, pol Policy, peer netip.Addr) *skinny.StartMediaTransmission {
	if pol.ExternIP.IsValid() && len(pol.LocalNet) > 0 && !pol.LocalNet.Contains(peer) {
		remote = netip.AddrPortFrom(pol.ExternIP, remote.Port())
	}
	var codec skinny.Codec
	c.UpdateMedia(func(m *model.Media) {
		m.Remote = remote
		m.Tx = model.MediaOpening
		codec = m.Codec
	})
	ss := uint32(0)
	if pol.SilenceSuppression {
		ss = 1
	}
	return &skinny.StartMediaTransmission{
		ConferenceID:    c.CallRef,
		PassThruPartyID: c.PassThruID,
		RemoteIP:        remote.Addr(),
		RemotePort:      uint32(remote.Port()),
		Media: skinny.MediaParams{
			PacketSize:  pol.packetSize(),
			Codec:       codec,
			DTMFPayload: defaultDTMFPayload,
			RTPTimeout:  defaultRTPTimeout,
		},
		SilenceSuppression: ss,
		CallReference:      c.CallRef,
	}
}

// HandleStartAck completes the transmit side.
func HandleStartAck(c *model.Channel, ack *skinny.StartMediaTransmissionAck) error {
	if ack.Status != 0 {
		c.UpdateMedia(func(m *model.Media) { m.Tx = model.MediaClosed })
		return fmt.Errorf("%w: start media transmission status %d on %s", ErrRtpNegotiation, ack.Status, c)
	}
	c.UpdateMedia(func(m *model.Media) { m.Tx = model.MediaOpen })
	return nil
}

// Teardown closes both directions of c. With stats, a statistics request
// goes first while the streams still exist.
func Teardown(c *model.Channel, stats bool) []skinny.Message {
	var out []skinny.Message
	c.UpdateMedia(func(m *model.Media) {
		if stats && (m.Rx != model.MediaClosed || m.Tx != model.MediaClosed) {
			out = append(out, &skinny.ConnectionStatisticsReq{DirectoryNumber: c.Line.Name, CallReference: c.CallRef})
		}
		if m.Rx != model.MediaClosed {
			out = append(out, &skinny.CloseReceiveChannel{ConferenceID: c.CallRef, PassThruPartyID: c.PassThruID, CallReference: c.CallRef})
			m.Rx = model.MediaClosed
		}
		if m.Tx != model.MediaClosed {
			out = append(out, &skinny.StopMediaTransmission{ConferenceID: c.CallRef, PassThruPartyID: c.PassThruID, CallReference: c.CallRef})
			m.Tx = model.MediaClosed
		}
		m.Direct = 0
	})
	return out
}

// StopTransmission closes only the transmit side of c, leaving the
// receive channel open for a new StartMediaTransmission. It returns nil
// when nothing is being sent.
func StopTransmission(c *model.Channel) *skinny.StopMediaTransmission {
	var stop *skinny.StopMediaTransmission
	c.UpdateMedia(func(m *model.Media) {
		if m.Tx == model.MediaClosed {
			return
		}
		stop = &skinny.StopMediaTransmission{ConferenceID: c.CallRef, PassThruPartyID: c.PassThruID, CallReference: c.CallRef}
		m.Tx = model.MediaClosed
		m.Direct = 0
	})
	return stop
}

// RecordStats keeps the counters the phone reported for c.
func RecordStats(c *model.Channel, res *skinny.ConnectionStatisticsRes) {
	c.UpdateMedia(func(m *model.Media) { m.Stats = res })
}

// Direct points two phones at each other when both allow direct media,
// both receive channels are open, neither phone transmits yet and they use
// the same codec. Each channel records the other as its Direct peer.
func Direct(a, b *model.Channel, pa, pb Policy) (toA, toB *skinny.StartMediaTransmission, ok bool) {
	if !pa.DirectRTP || !pb.DirectRTP {
		return nil, nil, false
	}
	ma, mb := a.Media(), b.Media()
	if ma.Rx != model.MediaOpen || mb.Rx != model.MediaOpen || ma.Codec != mb.Codec {
		return nil, nil, false
	}
	if ma.Tx != model.MediaClosed || mb.Tx != model.MediaClosed {
		return nil, nil, false
	}
	toA = StartTransmission(a, mb.Phone, Policy{PacketSize: pa.PacketSize, SilenceSuppression: pa.SilenceSuppression}, ma.Phone.Addr())
	toB = StartTransmission(b, ma.Phone, Policy{PacketSize: pb.PacketSize, SilenceSuppression: pb.SilenceSuppression}, mb.Phone.Addr())
	a.UpdateMedia(func(m *model.Media) { m.Direct = b.CallRef })
	b.UpdateMedia(func(m *model.Media) { m.Direct = a.CallRef })
	return toA, toB, true
}
