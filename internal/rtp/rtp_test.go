package rtp

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/config"
	"sccpd/internal/model"
	"sccpd/internal/netutil"
	"sccpd/internal/refcount"
	"sccpd/internal/skinny"
)

func newChannel(t *testing.T, r *model.Registry, dev, line string) *model.Channel {
	t.Helper()
	d := model.NewDevice(dev, &config.Device{}, nil)
	l := model.NewLine(line, &config.Line{}, nil, false)
	require.NoError(t, r.AddDevice(d))
	require.NoError(t, r.AddLine(l))
	c, err := r.NewChannel(d, l, 1, skinny.CallTypeOutbound)
	require.NoError(t, err)
	return c
}

func TestChooseCodec(t *testing.T) {
	caps := []skinny.MediaCapability{{Codec: skinny.CodecG729}, {Codec: skinny.CodecG711Alaw64k}}
	c, err := ChooseCodec([]skinny.Codec{skinny.CodecG711Ulaw64k, skinny.CodecG711Alaw64k}, caps)
	require.NoError(t, err)
	assert.Equal(t, skinny.CodecG711Alaw64k, c)

	c, err = ChooseCodec([]skinny.Codec{skinny.CodecG722_64k}, nil)
	require.NoError(t, err)
	assert.Equal(t, skinny.CodecG722_64k, c)

	_, err = ChooseCodec([]skinny.Codec{skinny.CodecG722_64k}, caps)
	assert.ErrorIs(t, err, ErrNoCodec)
	_, err = ChooseCodec(nil, caps)
	assert.ErrorIs(t, err, ErrNoCodec)
}

func TestOpenReceiveHandshake(t *testing.T) {
	r := model.NewRegistry(refcount.NewRegistry(nil), nil)
	c := newChannel(t, r, "SEP001122334455", "100")
	pbxAddr := netip.MustParseAddr("10.0.0.1")

	open := OpenReceive(c, skinny.CodecG711Ulaw64k, Policy{}, pbxAddr)
	require.NotNil(t, open)
	assert.Equal(t, c.CallRef, open.ConferenceID)
	assert.Equal(t, c.PassThruID, open.PassThruPartyID)
	assert.Equal(t, uint32(20), open.Media.PacketSize)
	assert.Equal(t, uint32(101), open.Media.DTMFPayload)
	assert.Equal(t, uint32(10), open.Media.RTPTimeout)
	assert.Nil(t, OpenReceive(c, skinny.CodecG711Ulaw64k, Policy{}, pbxAddr), "already opening")

	peer := netip.MustParseAddr("192.0.2.7")
	ack := &skinny.OpenReceiveChannelAck{IP: netip.MustParseAddr("10.0.0.10"), Port: 16384, PassThruPartyID: c.PassThruID}
	addr, err := HandleOpenAck(c, ack, peer, Policy{TrustPhoneIP: true})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.10:16384", addr.String())
	assert.Equal(t, model.MediaOpen, c.Media().Rx)

	addr, err = HandleOpenAck(c, ack, peer, Policy{})
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.7:16384", addr.String(), "untrusted phones use the peer address")

	addr, err = HandleOpenAck(c, ack, peer, Policy{TrustPhoneIP: true, NAT: true})
	require.NoError(t, err)
	assert.Equal(t, peer, addr.Addr())
}

func TestFailedAckIsNegotiationError(t *testing.T) {
	r := model.NewRegistry(refcount.NewRegistry(nil), nil)
	c := newChannel(t, r, "SEP001122334455", "100")
	OpenReceive(c, skinny.CodecG711Ulaw64k, Policy{}, netip.Addr{})

	_, err := HandleOpenAck(c, &skinny.OpenReceiveChannelAck{Status: 1}, netip.Addr{}, Policy{})
	assert.ErrorIs(t, err, ErrRtpNegotiation)
	assert.Equal(t, model.MediaClosed, c.Media().Rx)

	err = HandleStartAck(c, &skinny.StartMediaTransmissionAck{Status: 2})
	assert.ErrorIs(t, err, ErrRtpNegotiation)
}

func TestStartTransmissionExternIP(t *testing.T) {
	r := model.NewRegistry(refcount.NewRegistry(nil), nil)
	c := newChannel(t, r, "SEP001122334455", "100")
	OpenReceive(c, skinny.CodecG729, Policy{}, netip.Addr{})
	remote := netip.MustParseAddrPort("10.0.0.1:20000")

	local, err := netutil.ACL(nil).Add(true, "internal")
	require.NoError(t, err)
	pol := Policy{ExternIP: netip.MustParseAddr("203.0.113.5"), LocalNet: local}

	start := StartTransmission(c, remote, pol, netip.MustParseAddr("10.1.2.3"))
	assert.Equal(t, remote.Addr(), start.RemoteIP)
	assert.Equal(t, uint32(20000), start.RemotePort)
	assert.Equal(t, skinny.CodecG729, start.Media.Codec)

	start = StartTransmission(c, remote, pol, netip.MustParseAddr("198.51.100.9"))
	assert.Equal(t, pol.ExternIP, start.RemoteIP)
	assert.Equal(t, model.MediaOpening, c.Media().Tx)

	require.NoError(t, HandleStartAck(c, &skinny.StartMediaTransmissionAck{}))
	assert.Equal(t, model.MediaOpen, c.Media().Tx)
}

func TestTeardown(t *testing.T) {
	r := model.NewRegistry(refcount.NewRegistry(nil), nil)
	c := newChannel(t, r, "SEP001122334455", "100")
	assert.Empty(t, Teardown(c, true))

	OpenReceive(c, skinny.CodecG711Ulaw64k, Policy{}, netip.Addr{})
	StartTransmission(c, netip.MustParseAddrPort("10.0.0.1:20000"), Policy{}, netip.Addr{})
	msgs := Teardown(c, true)
	require.Len(t, msgs, 3)
	assert.Equal(t, skinny.ConnectionStatisticsReqMessage, msgs[0].ID())
	assert.Equal(t, skinny.CloseReceiveChannelMessage, msgs[1].ID())
	assert.Equal(t, skinny.StopMediaTransmissionMessage, msgs[2].ID())
	assert.Empty(t, Teardown(c, true))

	RecordStats(c, &skinny.ConnectionStatisticsRes{SentPackets: 10})
	assert.Equal(t, uint32(10), c.Media().Stats.SentPackets)
}

func TestDirect(t *testing.T) {
	r := model.NewRegistry(refcount.NewRegistry(nil), nil)
	a := newChannel(t, r, "SEP000000000001", "100")
	b := newChannel(t, r, "SEP000000000002", "200")
	on := Policy{DirectRTP: true}

	_, _, ok := Direct(a, b, on, on)
	assert.False(t, ok, "receive channels not open")

	for i, c := range []*model.Channel{a, b} {
		OpenReceive(c, skinny.CodecG711Ulaw64k, Policy{}, netip.Addr{})
		port := uint32(16384 + i)
		_, err := HandleOpenAck(c, &skinny.OpenReceiveChannelAck{IP: netip.MustParseAddr("10.0.0.10"), Port: port}, netip.MustParseAddr("10.0.0.10"), Policy{TrustPhoneIP: true})
		require.NoError(t, err)
	}
	_, _, ok = Direct(a, b, on, Policy{})
	assert.False(t, ok)

	toA, toB, ok := Direct(a, b, on, on)
	require.True(t, ok)
	assert.Equal(t, uint32(16385), toA.RemotePort)
	assert.Equal(t, uint32(16384), toB.RemotePort)
	assert.Equal(t, b.CallRef, a.Media().Direct)
	assert.Equal(t, a.CallRef, b.Media().Direct)

	_, _, ok = Direct(a, b, on, on)
	assert.False(t, ok, "already transmitting")

	stop := StopTransmission(a)
	require.NotNil(t, stop)
	assert.Equal(t, a.CallRef, stop.CallReference)
	assert.Equal(t, model.MediaOpen, a.Media().Rx)
	assert.Equal(t, model.MediaClosed, a.Media().Tx)
	assert.Zero(t, a.Media().Direct)
	assert.Nil(t, StopTransmission(a))

	Teardown(b, false)
	assert.Zero(t, b.Media().Direct)
}
