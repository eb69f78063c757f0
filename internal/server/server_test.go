package server

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/config"
	"sccpd/internal/model"
	"sccpd/internal/netutil"
	"sccpd/internal/pbx/loopback"
	"sccpd/internal/refcount"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

const phoneVersion = 17

const baseConf = `
[general]
context = sccp
allow = ulaw
earlyrtp = none
hotline_extension = 600

[SEP00000000000A]
type = device
button = line, 100

[SEP00000000000B]
type = device
button = line, 200

[SEP00000000000C]
type = device
button = line, 300

[100]
type = line
pin = 1
label = Alice
cid_name = Alice
cid_num = 100
mailbox = 100

[200]
type = line
pin = 2
label = Bob
cid_name = Bob
cid_num = 200

[300]
type = line
pin = 3
label = Carol
cid_name = Carol
cid_num = 300
`

type harness struct {
	t   *testing.T
	ctx context.Context
	srv *Server
	pbx *loopback.PBX
}

func parseConf(t *testing.T, text string) *config.File {
	t.Helper()
	f, err := config.Parse([]byte(text), "sccp.conf")
	require.NoError(t, err)
	return f
}

func newHarness(t *testing.T, conf string) *harness {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	entry := logrus.NewEntry(log)

	ctx, cancel := context.WithCancel(context.Background())
	reg := model.NewRegistry(refcount.NewRegistry(entry), entry)
	var srv *Server
	px := loopback.New(loopback.Options{
		BindAddr: netip.MustParseAddr("127.0.0.1"),
		Lines:    func() map[string]string { return srv.LineContexts() },
	}, entry)
	srv, err := New(reg, px, WithLoggers(entry, nil, nil, nil, nil))
	require.NoError(t, err)
	_, err = srv.Apply(ctx, parseConf(t, conf))
	require.NoError(t, err)

	px.Dialplan().Add("sccp", "600", loopback.Route{Kind: loopback.KindEcho})
	px.Dialplan().Add("sccp", "601", loopback.Route{Kind: loopback.KindBusy})
	px.RefreshLines()
	go func() { _ = px.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
	})
	return &harness{t: t, ctx: ctx, srv: srv, pbx: px}
}

type testPhone struct {
	t    *testing.T
	id   string
	conn net.Conn
	in   chan skinny.Message

	mu   sync.Mutex
	seen []skinny.Message
}

// connect opens a session for a phone named id without registering it.
func (h *harness) connect(id string) *testPhone {
	h.t.Helper()
	server, client := net.Pipe()
	go func() { _ = h.srv.ServeConn(h.ctx, server) }()
	return h.attach(id, client)
}

// attach reads the server side of conn as phone id.
func (h *harness) attach(id string, conn net.Conn) *testPhone {
	p := &testPhone{t: h.t, id: id, conn: conn, in: make(chan skinny.Message, 1024)}
	go p.read()
	h.t.Cleanup(func() { _ = conn.Close() })
	return p
}

func (p *testPhone) read() {
	defer close(p.in)
	for {
		f, err := skinny.ReadFrame(p.conn)
		if err != nil {
			return
		}
		m, err := skinny.Decode(f, phoneVersion)
		if err != nil {
			continue
		}
		p.mu.Lock()
		p.seen = append(p.seen, m)
		p.mu.Unlock()
		p.in <- m
	}
}

func (p *testPhone) send(m skinny.Message) {
	p.t.Helper()
	require.NoError(p.t, skinny.WriteMessage(p.conn, m, phoneVersion))
}

func (p *testPhone) next() skinny.Message {
	p.t.Helper()
	select {
	case m, ok := <-p.in:
		if !ok {
			p.t.Fatalf("%s: connection closed", p.id)
		}
		return m
	case <-time.After(3 * time.Second):
		p.t.Fatalf("%s: no message", p.id)
	}
	return nil
}

// expect skips messages until one of type T arrives.
func expect[T skinny.Message](p *testPhone) T {
	p.t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case m, ok := <-p.in:
			if !ok {
				var zero T
				p.t.Fatalf("%s: connection closed waiting for %T", p.id, zero)
			}
			if v, ok := m.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			p.t.Fatalf("%s: timed out waiting for %T", p.id, zero)
		}
	}
}

func count[T skinny.Message](p *testPhone) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.seen {
		if _, ok := m.(T); ok {
			n++
		}
	}
	return n
}

func (p *testPhone) expectState(st skinny.CallState) *skinny.CallStateMsg {
	p.t.Helper()
	for {
		m := expect[*skinny.CallStateMsg](p)
		if m.State == st {
			return m
		}
	}
}

// sync waits until everything the phone sent before has been handled.
func (p *testPhone) sync() {
	p.t.Helper()
	p.send(&skinny.TimeDateReq{})
	expect[*skinny.DefineTimeDate](p)
}

func (p *testPhone) registerMsg() *skinny.Register {
	return &skinny.Register{
		Station:       skinny.StationIdentifier{DeviceName: p.id},
		StationIP:     netip.MustParseAddr("127.0.0.1"),
		DeviceType:    skinny.DeviceType7970,
		MaxStreams:    5,
		PhoneFeatures: phoneVersion,
	}
}

// register runs a phone through registration into service.
func (h *harness) register(id string) *testPhone {
	h.t.Helper()
	p := h.connect(id)
	p.send(p.registerMsg())
	expect[*skinny.RegisterAck](p)
	expect[*skinny.CapabilitiesReq](p)
	p.send(&skinny.CapabilitiesRes{Caps: []skinny.MediaCapability{{Codec: skinny.CodecG711Ulaw64k, MaxFramesPerPacket: 40}}})
	p.sync()
	return p
}

func (p *testPhone) ackOpen(m *skinny.OpenReceiveChannel, port uint32) {
	p.send(&skinny.OpenReceiveChannelAck{
		IP:              netip.MustParseAddr("127.0.0.1"),
		Port:            port,
		PassThruPartyID: m.PassThruPartyID,
		CallReference:   m.CallReference,
	})
}

func (p *testPhone) dial(number string) {
	for _, c := range number {
		p.send(&skinny.KeypadButton{Button: uint32(c - '0')})
	}
}

// channel returns the live call of device id.
func (h *harness) channel(id string) ChannelInfo {
	for _, c := range h.srv.Channels() {
		if c.Device == id {
			return c
		}
	}
	h.t.Fatalf("no call on %s", id)
	return ChannelInfo{}
}

func (h *harness) device(id string) DeviceInfo {
	for _, d := range h.srv.Devices() {
		if d.ID == id {
			return d
		}
	}
	h.t.Fatalf("no device %s", id)
	return DeviceInfo{}
}

func TestRegistrationSequence(t *testing.T) {
	h := newHarness(t, baseConf)
	p := h.connect("SEP00000000000A")

	p.send(&skinny.RegisterTokenReq{Station: skinny.StationIdentifier{DeviceName: p.id}})
	assert.IsType(t, &skinny.RegisterTokenAck{}, p.next())

	p.send(p.registerMsg())
	ack, ok := p.next().(*skinny.RegisterAck)
	require.True(t, ok)
	assert.Equal(t, uint32(60), ack.KeepAlive)
	assert.Equal(t, uint8(phoneVersion), ack.ProtocolVer)

	tmpl, ok := p.next().(*skinny.ButtonTemplate)
	require.True(t, ok)
	assert.NotEmpty(t, tmpl.Definitions)
	assert.IsType(t, &skinny.SoftKeySetRes{}, p.next())
	ls, ok := p.next().(*skinny.LineStat)
	require.True(t, ok)
	assert.Equal(t, uint32(1), ls.LineNumber)
	assert.Equal(t, "100", ls.DirNumber)
	assert.Equal(t, "Alice", ls.DisplayName)
	assert.IsType(t, &skinny.DefineTimeDate{}, p.next())
	assert.IsType(t, &skinny.CapabilitiesReq{}, p.next())
	require.Eventually(t, func() bool { return h.device(p.id).State == "registered" }, 2*time.Second, 10*time.Millisecond)

	p.send(&skinny.CapabilitiesRes{Caps: []skinny.MediaCapability{{Codec: skinny.CodecG711Ulaw64k}}})
	p.sync()
	d := h.device(p.id)
	assert.True(t, d.Registered)
	assert.Equal(t, "in_service", d.State)
	assert.Equal(t, uint8(phoneVersion), d.Protocol)

	p.send(&skinny.KeepAlive{})
	expect[*skinny.KeepAliveAck](p)
}

func TestUnknownDeviceIsRejected(t *testing.T) {
	h := newHarness(t, baseConf)
	p := h.connect("SEP0000000000FF")
	p.send(p.registerMsg())
	rej := expect[*skinny.RegisterReject](p)
	assert.Equal(t, "Unknown Device", rej.Text)
	_, open := <-p.in
	assert.False(t, open, "session closes after a reject")
}

func TestSecondDeviceSessionIsRejected(t *testing.T) {
	h := newHarness(t, baseConf)
	h.register("SEP00000000000A")
	p := h.connect("SEP00000000000A")
	p.send(p.registerMsg())
	rej := expect[*skinny.RegisterReject](p)
	assert.Equal(t, "Device already registered", rej.Text)
}

func TestTokenFallback(t *testing.T) {
	h := newHarness(t, baseConf+"\n[general]\nsecondary = yes\nfallback = odd\nbackoff_time = 60\n")

	odd := h.connect("SEP00000000000B")
	odd.send(&skinny.RegisterTokenReq{Station: skinny.StationIdentifier{DeviceName: odd.id}})
	rej := expect[*skinny.RegisterTokenReject](odd)
	assert.Equal(t, uint32(60), rej.WaitTime)
	_, open := <-odd.in
	assert.False(t, open)

	even := h.connect("SEP00000000000A")
	even.send(&skinny.RegisterTokenReq{Station: skinny.StationIdentifier{DeviceName: even.id}})
	assert.IsType(t, &skinny.RegisterTokenAck{}, even.next())
}

// call places a call from a to b's line and answers it.
func call(t *testing.T, a, b *testPhone, number string) {
	t.Helper()
	a.send(&skinny.OffHook{LineInstance: 1})
	a.expectState(skinny.CallStateOffHook)
	a.dial(number)
	a.expectState(skinny.CallStateProceed)
	b.expectState(skinny.CallStateRingIn)
	ringer := expect[*skinny.SetRinger](b)
	assert.Equal(t, skinny.RingInside, ringer.Mode)
	a.expectState(skinny.CallStateRingOut)

	b.send(&skinny.OffHook{LineInstance: 1})
	open := expect[*skinny.OpenReceiveChannel](b)
	b.expectState(skinny.CallStateConnected)
	b.ackOpen(open, 20000)
	expect[*skinny.StartMediaTransmission](b)

	open = expect[*skinny.OpenReceiveChannel](a)
	assert.Equal(t, skinny.CodecG711Ulaw64k, open.Media.Codec)
	a.expectState(skinny.CallStateConnected)
	keys := expect[*skinny.SelectSoftKeys](a)
	assert.Equal(t, uint32(softkey.KeyModeConnTrans), keys.SetIndex)
	a.ackOpen(open, 20002)
	start := expect[*skinny.StartMediaTransmission](a)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), start.RemoteIP)
	assert.NotZero(t, start.RemotePort)
}

func TestLineToLineCall(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	b := h.register("SEP00000000000B")

	call(t, a, b, "200")
	chans := h.srv.Channels()
	require.Len(t, chans, 2)
	for _, c := range chans {
		assert.Equal(t, "connected", c.State)
	}
	assert.Equal(t, "outbound", chans[0].Direction)
	assert.Equal(t, "200", chans[0].Called)
	assert.Equal(t, "inbound", chans[1].Direction)
	assert.Equal(t, "100", chans[1].Calling)

	a.send(&skinny.OnHook{LineInstance: 1})
	a.expectState(skinny.CallStateOnHook)
	expect[*skinny.CloseReceiveChannel](b)
	b.expectState(skinny.CallStateOnHook)
	assert.Eventually(t, func() bool { return len(h.srv.Channels()) == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestBusyAndUnknownNumbers(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")

	a.send(&skinny.OffHook{LineInstance: 1})
	a.dial("601")
	a.expectState(skinny.CallStateBusy)
	a.send(&skinny.OnHook{LineInstance: 1})
	a.expectState(skinny.CallStateOnHook)

	a.send(&skinny.OffHook{LineInstance: 1})
	a.expectState(skinny.CallStateOffHook)
	a.dial("9")
	a.expectState(skinny.CallStateInvalidNumber)
}

func TestBlindTransfer(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	b := h.register("SEP00000000000B")
	c := h.register("SEP00000000000C")
	call(t, a, b, "200")

	held := h.srv.Channels()[0]
	a.send(&skinny.SoftKeyEvent{Event: uint32(softkey.LabelTransfer), LineInstance: 1, CallReference: held.CallRef})
	a.expectState(skinny.CallStateHold)
	a.expectState(skinny.CallStateOffHook)
	a.dial("300")
	a.expectState(skinny.CallStateProceed)
	c.expectState(skinny.CallStateRingIn)
	a.expectState(skinny.CallStateRingOut)

	var consult uint32
	for _, ch := range h.srv.Channels() {
		if ch.Device == a.id && ch.CallRef != held.CallRef {
			consult = ch.CallRef
		}
	}
	require.NotZero(t, consult)
	a.send(&skinny.SoftKeyEvent{Event: uint32(softkey.LabelTransfer), LineInstance: 1, CallReference: consult})
	a.expectState(skinny.CallStateOnHook)
	a.expectState(skinny.CallStateOnHook)

	c.send(&skinny.OffHook{LineInstance: 1})
	c.expectState(skinny.CallStateConnected)
	assert.Eventually(t, func() bool {
		for _, ch := range h.srv.Channels() {
			if ch.Device == a.id {
				return false
			}
		}
		return true
	}, 2*time.Second, 20*time.Millisecond)

	b.sync()
	states := map[string]string{}
	for _, ch := range h.srv.Channels() {
		states[ch.Device] = ch.State
	}
	assert.Equal(t, map[string]string{b.id: "connected", c.id: "connected"}, states)
}

func TestReloadDefersResetUntilIdle(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")

	a.send(&skinny.OffHook{LineInstance: 1})
	a.expectState(skinny.CallStateOffHook)

	res, err := h.srv.Apply(h.ctx, parseConf(t, baseConf+"\n[SEP00000000000A]\nallow = alaw\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{a.id}, res.Deferred)
	a.sync()
	assert.Zero(t, count[*skinny.Reset](a), "a phone in a call is never reset")
	assert.True(t, h.device(a.id).PendingReset)

	a.send(&skinny.OnHook{LineInstance: 1})
	reset := expect[*skinny.Reset](a)
	assert.Equal(t, skinny.ResetSoft, reset.Type)
	a.sync()
	assert.Equal(t, 1, count[*skinny.Reset](a))
	assert.False(t, h.device(a.id).PendingReset)
}

func TestReloadResetsIdlePhone(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	res, err := h.srv.Apply(h.ctx, parseConf(t, baseConf+"\n[100]\nlabel = Alice Smith\n"))
	require.NoError(t, err)
	assert.Contains(t, res.Reset, a.id)
	assert.Equal(t, skinny.ResetSoft, expect[*skinny.Reset](a).Type)
}

func TestDNDRejectsCalls(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	b := h.register("SEP00000000000B")

	b.send(&skinny.SoftKeyEvent{Event: uint32(softkey.LabelDND)})
	n := expect[*skinny.DisplayDynamicNotify](b)
	assert.Equal(t, softkey.LabelDND.WireText(), n.Text)
	b.sync()
	assert.Equal(t, "reject", h.device(b.id).DND)

	a.send(&skinny.OffHook{LineInstance: 1})
	a.dial("200")
	a.expectState(skinny.CallStateBusy)
	assert.Zero(t, count[*skinny.SetRinger](b))

	kv, err := h.srv.store.Family(h.ctx, deviceFamily(b.id))
	require.NoError(t, err)
	assert.Equal(t, "reject", kv[keyDND])

	b.send(&skinny.SoftKeyEvent{Event: uint32(softkey.LabelDND)})
	b.sync()
	assert.Equal(t, "off", h.device(b.id).DND)
}

func TestInactiveKeyIsRefused(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	a.send(&skinny.SoftKeyEvent{Event: uint32(softkey.LabelHold)})
	n := expect[*skinny.DisplayDynamicNotify](a)
	assert.Equal(t, softkey.LabelKeyIsNotActive.WireText(), n.Text)
}

func TestEchoAndDigitsAfterConnect(t *testing.T) {
	h := newHarness(t, baseConf+"\n[SEP00000000000A]\ndtmfmode = outofband\n")
	a := h.register("SEP00000000000A")
	a.send(&skinny.EnblocCall{CalledParty: "600"})
	open := expect[*skinny.OpenReceiveChannel](a)
	a.expectState(skinny.CallStateConnected)
	a.ackOpen(open, 20000)
	expect[*skinny.StartMediaTransmission](a)

	a.send(&skinny.KeypadButton{Button: 5})
	a.sync()
	chans := h.srv.Channels()
	require.Len(t, chans, 1)
	assert.Equal(t, "5", h.pbx.Digits(chans[0].PBX))
	assert.Equal(t, "600", chans[0].Called)
}

func TestRedialUsesLastNumber(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	a.send(&skinny.EnblocCall{CalledParty: "601"})
	a.expectState(skinny.CallStateBusy)
	a.send(&skinny.OnHook{LineInstance: 1})
	a.expectState(skinny.CallStateOnHook)

	a.send(&skinny.SoftKeyEvent{Event: uint32(softkey.LabelRedial)})
	a.expectState(skinny.CallStateBusy)
	kv, err := h.srv.store.Family(h.ctx, deviceFamily(a.id))
	require.NoError(t, err)
	assert.Equal(t, "601", kv[keyLastDialed])
}

func TestMessageWaitingLamp(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	h.pbx.SetMailbox("100", 2, 1)
	for {
		lamp := expect[*skinny.SetLamp](a)
		if lamp.Stimulus == skinny.StimulusVoiceMail {
			assert.NotEqual(t, skinny.LampOff, lamp.Mode)
			break
		}
	}
	for _, l := range h.srv.Lines() {
		if l.Name == "100" {
			assert.Equal(t, 2, l.NewMessages)
			assert.Equal(t, []string{a.id}, l.Devices)
		}
	}
}

func TestHotline(t *testing.T) {
	h := newHarness(t, baseConf+"\n[general]\nhotline_enabled = yes\n")
	p := h.register("SEP0000000000EE")
	assert.True(t, h.device(p.id).Hotline)

	p.send(&skinny.OffHook{LineInstance: 1})
	open := expect[*skinny.OpenReceiveChannel](p)
	p.expectState(skinny.CallStateConnected)
	p.ackOpen(open, 20000)
	expect[*skinny.StartMediaTransmission](p)

	p.send(&skinny.Unregister{})
	expect[*skinny.UnregisterAck](p)
	assert.Eventually(t, func() bool { return h.srv.Registry().Device(p.id) == nil }, 2*time.Second, 20*time.Millisecond)
	assert.Empty(t, h.srv.Channels())
}

func TestIdleMessage(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	require.NoError(t, h.srv.SetMessage("maintenance at 6", 0))
	prompt := expect[*skinny.DisplayDynamicPromptStatus](a)
	assert.Equal(t, "maintenance at 6", prompt.Text)

	kv, err := h.srv.store.Family(h.ctx, messageFamily)
	require.NoError(t, err)
	assert.Equal(t, "maintenance at 6", kv[keyText])

	require.NoError(t, h.srv.SetMessage("", 0))
	expect[*skinny.ClearPromptStatus](a)
}

func TestResetDevice(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	require.NoError(t, h.srv.ResetDevice(a.id, skinny.ResetRestart))
	assert.Equal(t, skinny.ResetRestart, expect[*skinny.Reset](a).Type)
	assert.ErrorIs(t, h.srv.ResetDevice("SEP0000000000FF", skinny.ResetSoft), ErrUnknownDevice)
	assert.ErrorIs(t, h.srv.ResetDevice("SEP00000000000B", skinny.ResetSoft), model.ErrNotRegistered)
}

func TestInbandDigitsStayInMedia(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	a.send(&skinny.EnblocCall{CalledParty: "600"})
	open := expect[*skinny.OpenReceiveChannel](a)
	a.expectState(skinny.CallStateConnected)
	a.ackOpen(open, 20000)
	expect[*skinny.StartMediaTransmission](a)

	a.send(&skinny.KeypadButton{Button: 5})
	a.sync()
	assert.Empty(t, h.pbx.Digits(h.channel(a.id).PBX))
	assert.Equal(t, "inband", h.device(a.id).DTMFMode)
}

func TestOverlapDialing(t *testing.T) {
	h := newHarness(t, baseConf+"\n[SEP00000000000A]\nallowoverlap = yes\n")
	h.pbx.Dialplan().Add("sccp", "20", loopback.Route{Kind: loopback.KindLine, Line: "200"})
	a := h.register("SEP00000000000A")
	b := h.register("SEP00000000000B")

	a.send(&skinny.OffHook{LineInstance: 1})
	a.expectState(skinny.CallStateOffHook)
	a.dial("20")
	a.expectState(skinny.CallStateProceed)
	b.expectState(skinny.CallStateRingIn)
	a.expectState(skinny.CallStateRingOut)

	a.dial("0")
	a.sync()
	out := h.channel(a.id)
	assert.Equal(t, "20", out.Called)
	assert.Equal(t, "0", h.pbx.Digits(out.PBX))
}

func TestNoOverlapWaitsForDigits(t *testing.T) {
	h := newHarness(t, baseConf)
	h.pbx.Dialplan().Add("sccp", "20", loopback.Route{Kind: loopback.KindLine, Line: "200"})
	a := h.register("SEP00000000000A")

	a.send(&skinny.OffHook{LineInstance: 1})
	a.expectState(skinny.CallStateOffHook)
	a.dial("20")
	a.sync()
	assert.Equal(t, "digitsfoll", h.channel(a.id).State)
}

func TestSecondaryDialTone(t *testing.T) {
	h := newHarness(t, baseConf)
	h.pbx.Dialplan().Add("sccp", "_9.", loopback.Route{Kind: loopback.KindBusy})
	a := h.register("SEP00000000000A")

	a.send(&skinny.OffHook{LineInstance: 1})
	a.expectState(skinny.CallStateOffHook)
	a.dial("9")
	for {
		if tone := expect[*skinny.StartTone](a); tone.Tone == skinny.ToneOutsideDialTone {
			break
		}
	}
	a.dial("1")
	expect[*skinny.StopTone](a)
	a.sync()
	assert.Equal(t, "digitsfoll", h.channel(a.id).State)
}

func TestAudioQoSReachesRelay(t *testing.T) {
	h := newHarness(t, baseConf+"\n[SEP00000000000A]\naudio_tos = 0x68\naudio_cos = 4\n")
	a := h.register("SEP00000000000A")
	a.send(&skinny.EnblocCall{CalledParty: "600"})
	open := expect[*skinny.OpenReceiveChannel](a)
	a.ackOpen(open, 20000)
	expect[*skinny.StartMediaTransmission](a)

	want := netutil.QoS{TOS: 0x68, COS: 4}
	qos, ok := h.pbx.MediaQoS(h.channel(a.id).PBX)
	require.True(t, ok)
	assert.Equal(t, want, qos)
	assert.Equal(t, want, h.device(a.id).AudioQoS)
}

const directConf = `
[SEP00000000000A]
directrtp = yes

[SEP00000000000B]
directrtp = yes
`

func TestDirectRTPBetweenPhones(t *testing.T) {
	h := newHarness(t, baseConf+directConf)
	a := h.register("SEP00000000000A")
	b := h.register("SEP00000000000B")

	a.send(&skinny.OffHook{LineInstance: 1})
	a.dial("200")
	b.expectState(skinny.CallStateRingIn)
	a.expectState(skinny.CallStateRingOut)

	b.send(&skinny.OffHook{LineInstance: 1})
	b.ackOpen(expect[*skinny.OpenReceiveChannel](b), 20000)
	a.ackOpen(expect[*skinny.OpenReceiveChannel](a), 20002)

	toA := expect[*skinny.StartMediaTransmission](a)
	toB := expect[*skinny.StartMediaTransmission](b)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), toA.RemoteIP)
	assert.Equal(t, uint32(20000), toA.RemotePort)
	assert.Equal(t, uint32(20002), toB.RemotePort)

	// b goes back to the pbx while a is on hold
	a.send(&skinny.SoftKeyEvent{Event: uint32(softkey.LabelHold), LineInstance: 1, CallReference: h.channel(a.id).CallRef})
	a.expectState(skinny.CallStateHold)
	expect[*skinny.StopMediaTransmission](b)
	relay := expect[*skinny.StartMediaTransmission](b)
	assert.NotEqual(t, uint32(20002), relay.RemotePort)
	assert.NotZero(t, relay.RemotePort)
}

func TestDirectRTPNeedsBothPhones(t *testing.T) {
	h := newHarness(t, baseConf+"\n[SEP00000000000A]\ndirectrtp = yes\n")
	a := h.register("SEP00000000000A")
	b := h.register("SEP00000000000B")

	// call expects each phone to be pointed at the pbx relay
	call(t, a, b, "200")
	a.sync()
	b.sync()
	assert.Equal(t, 1, count[*skinny.StartMediaTransmission](a))
	assert.Equal(t, 1, count[*skinny.StartMediaTransmission](b))
}

func TestPermitHost(t *testing.T) {
	h := newHarness(t, baseConf+`
[SEP00000000000A]
deny = 0.0.0.0/0.0.0.0
permit = 10.0.0.0/8
permithost = phone-a.example

[SEP00000000000B]
deny = 0.0.0.0/0.0.0.0
permithost = phone-b.example
`)
	h.srv.resolve = func(ctx context.Context, host string) ([]netip.Addr, error) {
		switch host {
		case "phone-a.example":
			return []netip.Addr{netip.MustParseAddr("127.0.0.1")}, nil
		case "phone-b.example":
			return []netip.Addr{netip.MustParseAddr("10.9.9.9")}, nil
		}
		return nil, errors.New("no such host")
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = h.srv.Serve(h.ctx, ln) }()

	dial := func(id string) *testPhone {
		conn, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		return h.attach(id, conn)
	}

	a := dial("SEP00000000000A")
	a.send(a.registerMsg())
	expect[*skinny.RegisterAck](a)

	b := dial("SEP00000000000B")
	b.send(b.registerMsg())
	rej := expect[*skinny.RegisterReject](b)
	assert.Equal(t, "Device ip not authorized", rej.Text)
}

func TestFailedOpenAckHangsUp(t *testing.T) {
	h := newHarness(t, baseConf)
	a := h.register("SEP00000000000A")
	a.send(&skinny.EnblocCall{CalledParty: "600"})
	open := expect[*skinny.OpenReceiveChannel](a)
	a.send(&skinny.OpenReceiveChannelAck{Status: 1, PassThruPartyID: open.PassThruPartyID, CallReference: open.CallReference})
	a.expectState(skinny.CallStateCongestion)
	assert.Eventually(t, func() bool { return h.pbx.Channels() == 0 }, 2*time.Second, 20*time.Millisecond)
	assert.Empty(t, h.channel(a.id).PBX)
}
