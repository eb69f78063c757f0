package loopback

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/netutil"
	"sccpd/internal/pbx"
	"sccpd/internal/skinny"
)

type event struct {
	kind  string
	id    string
	ind   pbx.Indication
	cause pbx.Cause
	in    pbx.Incoming
	msgs  [2]int
}

type recorder struct {
	mu     sync.Mutex
	reject error
	ch     chan event
}

func newRecorder() *recorder { return &recorder{ch: make(chan event, 32)} }

func (r *recorder) Offer(in pbx.Incoming) error {
	r.ch <- event{kind: "offer", id: in.ID, in: in}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reject
}

func (r *recorder) Indicate(id string, ind pbx.Indication) {
	r.ch <- event{kind: "indicate", id: id, ind: ind}
}

func (r *recorder) Hangup(id string, cause pbx.Cause) {
	r.ch <- event{kind: "hangup", id: id, cause: cause}
}

func (r *recorder) MessageWaiting(mailbox string, newMsgs, oldMsgs int) {
	r.ch <- event{kind: "mwi", id: mailbox, msgs: [2]int{newMsgs, oldMsgs}}
}

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pbx event")
	}
	return event{}
}

func start(t *testing.T) (*PBX, *recorder) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	p := New(Options{
		BindAddr: netip.MustParseAddr("127.0.0.1"),
		Lines:    func() map[string]string { return map[string]string{"100": "default", "200": "default"} },
	}, logrus.NewEntry(log))
	p.Dialplan().Add("default", "600", Route{Kind: KindEcho})
	p.Dialplan().Add("default", "601", Route{Kind: KindBusy})
	rec := newRecorder()
	p.Subscribe(rec)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, rec
}

func TestPatternMatching(t *testing.T) {
	d := NewDialplan()
	d.Add("ctx", "123", Route{Kind: KindBusy})
	d.Add("ctx", "_9NXX", Route{Kind: KindCongestion})
	d.Add("ctx", "_0.", Route{Kind: KindEcho})

	assert.Equal(t, pbx.Match{Exists: false, MoreDigits: true}, d.Match("ctx", "12"))
	assert.Equal(t, pbx.Match{Exists: true, MoreDigits: false}, d.Match("ctx", "123"))
	assert.Equal(t, pbx.Match{}, d.Match("ctx", "1234"))
	assert.Equal(t, pbx.Match{MoreDigits: true}, d.Match("ctx", "9"))
	assert.Equal(t, pbx.Match{}, d.Match("ctx", "91"))
	assert.Equal(t, pbx.Match{Exists: true}, d.Match("ctx", "9234"))
	assert.Equal(t, pbx.Match{MoreDigits: true}, d.Match("ctx", "0"))
	assert.Equal(t, pbx.Match{Exists: true, MoreDigits: true}, d.Match("ctx", "0044"))
	assert.Equal(t, pbx.Match{}, d.Match("other", "123"))

	r, ok := d.Resolve("ctx", "9234")
	require.True(t, ok)
	assert.Equal(t, KindCongestion, r.Kind)
	_, ok = d.Resolve("ctx", "92")
	assert.False(t, ok)
}

func TestSetLinesKeepsOtherRoutes(t *testing.T) {
	d := NewDialplan()
	d.Add("default", "600", Route{Kind: KindEcho})
	d.Add("default", "700", Route{Kind: KindLine, Line: "100"})
	d.Add("default", "300", Route{Kind: KindBusy})
	d.SetLines(map[string]string{"100": "default"})
	d.SetLines(map[string]string{"200": "default", "300": "default"})

	_, ok := d.Resolve("default", "100")
	assert.False(t, ok)
	r, ok := d.Resolve("default", "200")
	require.True(t, ok)
	assert.Equal(t, Route{Kind: KindLine, Line: "200"}, r)
	r, _ = d.Resolve("default", "600")
	assert.Equal(t, KindEcho, r.Kind)
	r, ok = d.Resolve("default", "700")
	require.True(t, ok, "configured line route survives a refresh")
	assert.Equal(t, Route{Kind: KindLine, Line: "100"}, r)
	r, _ = d.Resolve("default", "300")
	assert.Equal(t, KindBusy, r.Kind)

	k, err := ParseKind(" Congestion ")
	require.NoError(t, err)
	assert.Equal(t, KindCongestion, k)
	_, err = ParseKind("voicemail")
	assert.Error(t, err)
}

func TestLineToLineCall(t *testing.T) {
	p, rec := start(t)
	ctx := context.Background()
	p.RefreshLines()

	a, err := p.NewChannel(ctx, pbx.ChannelRequest{Line: "100", Context: "default", CallerName: "Alice", CallerNumber: "100"})
	require.NoError(t, err)
	require.NoError(t, p.Dial(ctx, a, "200"))

	assert.Equal(t, event{kind: "indicate", id: a, ind: pbx.IndicateProceeding}, rec.next(t))
	offer := rec.next(t)
	require.Equal(t, "offer", offer.kind)
	assert.Equal(t, "200", offer.in.Line)
	assert.Equal(t, "Alice", offer.in.CallerName)
	assert.Equal(t, "200", offer.in.CalledNumber)
	assert.Equal(t, event{kind: "indicate", id: a, ind: pbx.IndicateRinging}, rec.next(t))

	_, ok := p.Peer(a)
	assert.False(t, ok, "not answered")

	require.NoError(t, p.Answer(ctx, offer.id))
	assert.Equal(t, event{kind: "indicate", id: a, ind: pbx.IndicateAnswer}, rec.next(t))
	peer, ok := p.Peer(a)
	require.True(t, ok)
	assert.Equal(t, offer.id, peer)
	peer, _ = p.Peer(offer.id)
	assert.Equal(t, a, peer)

	require.NoError(t, p.SendDigit(ctx, a, '5'))
	assert.Equal(t, "5", p.Digits(a))

	require.NoError(t, p.Hangup(ctx, a, pbx.CauseNormal))
	assert.Equal(t, event{kind: "hangup", id: offer.id, cause: pbx.CauseNormal}, rec.next(t))
	assert.Equal(t, 0, p.Channels())

	err = p.Hangup(ctx, a, pbx.CauseNormal)
	assert.True(t, errors.Is(err, pbx.ErrNoChannel))
}

func TestRefusedOfferIsBusy(t *testing.T) {
	p, rec := start(t)
	ctx := context.Background()
	p.RefreshLines()
	rec.mu.Lock()
	rec.reject = errors.New("dnd")
	rec.mu.Unlock()

	a, err := p.NewChannel(ctx, pbx.ChannelRequest{Line: "100", Context: "default"})
	require.NoError(t, err)
	require.NoError(t, p.Dial(ctx, a, "200"))
	rec.next(t)
	assert.Equal(t, "offer", rec.next(t).kind)
	assert.Equal(t, event{kind: "indicate", id: a, ind: pbx.IndicateBusy}, rec.next(t))
	assert.Equal(t, 1, p.Channels())
}

func TestBusyAndUnknownExtensions(t *testing.T) {
	p, rec := start(t)
	ctx := context.Background()

	a, _ := p.NewChannel(ctx, pbx.ChannelRequest{Context: "default"})
	require.NoError(t, p.Dial(ctx, a, "601"))
	assert.Equal(t, event{kind: "indicate", id: a, ind: pbx.IndicateBusy}, rec.next(t))

	b, _ := p.NewChannel(ctx, pbx.ChannelRequest{Context: "default"})
	require.NoError(t, p.Dial(ctx, b, "999"))
	assert.Equal(t, event{kind: "hangup", id: b, cause: pbx.CauseUnallocated}, rec.next(t))

	m, err := p.MatchExtension(ctx, "default", "60")
	require.NoError(t, err)
	assert.True(t, m.MoreDigits)
}

func TestEchoRelay(t *testing.T) {
	p, rec := start(t)
	ctx := context.Background()

	a, _ := p.NewChannel(ctx, pbx.ChannelRequest{Context: "default"})
	require.NoError(t, p.Dial(ctx, a, "600"))
	assert.Equal(t, pbx.IndicateProceeding, rec.next(t).ind)
	assert.Equal(t, pbx.IndicateAnswer, rec.next(t).ind)

	media, err := p.MediaAddr(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", media.Addr().String())

	phone, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer phone.Close()
	qos := netutil.QoS{TOS: 0xB8, COS: 5}
	require.NoError(t, p.SetPhoneMedia(ctx, a, pbx.PhoneMedia{
		Addr:  phone.LocalAddr().(*net.UDPAddr).AddrPort(),
		Codec: skinny.CodecG711Ulaw64k,
		QoS:   qos,
	}))
	got, ok := p.MediaQoS(a)
	require.True(t, ok)
	assert.Equal(t, qos, got)
	_, ok = p.Peer(a)
	assert.False(t, ok, "echo has no peer")

	out := &rtp.Packet{Header: rtp.Header{Version: 2, PayloadType: 0, SequenceNumber: 7, SSRC: 42}, Payload: []byte{1, 2, 3}}
	raw, err := out.Marshal()
	require.NoError(t, err)
	_, err = phone.WriteToUDPAddrPort(raw, media)
	require.NoError(t, err)

	buf := make([]byte, maxPacket)
	require.NoError(t, phone.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := phone.Read(buf)
	require.NoError(t, err)
	in := &rtp.Packet{}
	require.NoError(t, in.Unmarshal(buf[:n]))
	assert.Equal(t, uint16(7), in.SequenceNumber)
	assert.Equal(t, []byte{1, 2, 3}, in.Payload)
}

func TestBridgeJoinsFarEnds(t *testing.T) {
	p, rec := start(t)
	ctx := context.Background()
	p.RefreshLines()

	a, _ := p.NewChannel(ctx, pbx.ChannelRequest{Line: "100", Context: "default"})
	require.NoError(t, p.Dial(ctx, a, "200"))
	rec.next(t)
	x := rec.next(t).id
	rec.next(t)
	require.NoError(t, p.Answer(ctx, x))
	rec.next(t)

	b, _ := p.NewChannel(ctx, pbx.ChannelRequest{Line: "100", Context: "default"})
	require.NoError(t, p.Dial(ctx, b, "600"))
	rec.next(t)
	rec.next(t)

	require.NoError(t, p.Bridge(ctx, a, b))
	assert.Equal(t, event{kind: "hangup", id: a, cause: pbx.CauseNormal}, rec.next(t))
	assert.Equal(t, event{kind: "hangup", id: b, cause: pbx.CauseNormal}, rec.next(t))
	assert.Equal(t, 1, p.Channels())

	require.NoError(t, p.Hangup(ctx, x, pbx.CauseNormal))
	assert.Equal(t, 0, p.Channels())
}

func TestMailbox(t *testing.T) {
	p, rec := start(t)
	p.SetMailbox("100@default", 3, 1)
	ev := rec.next(t)
	assert.Equal(t, "mwi", ev.kind)
	assert.Equal(t, "100@default", ev.id)
	assert.Equal(t, [2]int{3, 1}, ev.msgs)
	n, o, err := p.Mailbox(context.Background(), "100@default")
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 1}, [2]int{n, o})
}
