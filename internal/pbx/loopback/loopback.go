// Package loopback is a self contained PBX for the driver: a small
// dialplan, line to line calls, an echo test and an RTP relay. It lets
// phones call each other without an external switch.
package loopback

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sccpd/internal/netutil"
	"sccpd/internal/pbx"
)

// Options configure a PBX.
type Options struct {
	// MediaAddr is the address announced to phones for RTP.
	MediaAddr netip.Addr
	// BindAddr is where relay sockets listen.
	BindAddr netip.Addr
	QoS      netutil.QoS
	// Lines returns the line name to dial context map the dialplan is
	// refreshed from.
	Lines           func() map[string]string
	RefreshInterval time.Duration
}

type legState int

const (
	legIdle legState = iota
	legRinging
	legUp
)

// leg is one PBX channel.
type leg struct {
	id       string
	req      pbx.ChannelRequest
	line     string
	outbound bool
	state    legState
	peer     *leg
	echo     bool
	relay    *relay
	digits   []byte
}

type offerEvent struct {
	in     pbx.Incoming
	caller string
}

type indicateEvent struct {
	id  string
	ind pbx.Indication
}

type hangupEvent struct {
	id    string
	cause pbx.Cause
}

type mwiEvent struct {
	mailbox        string
	newMsgs, oldMsgs int
}

// PBX implements pbx.PBX in process.
type PBX struct {
	opts Options
	log  *logrus.Entry
	plan *Dialplan

	mu        sync.Mutex
	legs      map[string]*leg
	mailboxes map[string][2]int
	handler   pbx.Handler

	events chan interface{}
}

var (
	_ pbx.PBX       = (*PBX)(nil)
	_ pbx.LocalPeer = (*PBX)(nil)
)

// New creates a PBX. Run must be running for events to be delivered.
func New(opts Options, log *logrus.Entry) *PBX {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Minute
	}
	return &PBX{
		opts:      opts,
		log:       log,
		plan:      NewDialplan(),
		legs:      make(map[string]*leg),
		mailboxes: make(map[string][2]int),
		events:    make(chan interface{}, 256),
	}
}

// Dialplan returns the routing table.
func (p *PBX) Dialplan() *Dialplan { return p.plan }

// Run delivers events to the subscribed handler until ctx is canceled.
func (p *PBX) Run(ctx context.Context) error {
	p.refreshLines()
	ticker := time.NewTicker(p.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case ev := <-p.events:
			p.deliver(ev)
		case <-ticker.C:
			p.refreshLines()
		case <-ctx.Done():
			p.closeAll()
			return nil
		}
	}
}

// RefreshLines reloads the line extensions now.
func (p *PBX) RefreshLines() { p.refreshLines() }

func (p *PBX) refreshLines() {
	if p.opts.Lines == nil {
		return
	}
	lines := p.opts.Lines()
	p.plan.SetLines(lines)
	p.log.Debugf("dialplan refreshed with %d lines", len(lines))
}

func (p *PBX) post(ev interface{}) { p.events <- ev }

func (p *PBX) currentHandler() pbx.Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler
}

func (p *PBX) deliver(ev interface{}) {
	h := p.currentHandler()
	if h == nil {
		p.log.Debugf("no handler for event %#v", ev)
		return
	}
	switch e := ev.(type) {
	case offerEvent:
		if err := h.Offer(e.in); err != nil {
			p.log.Infof("offer of %s to line %s refused: %v", e.in.ID, e.in.Line, err)
			p.mu.Lock()
			p.dropLocked(e.in.ID)
			if c := p.legs[e.caller]; c != nil {
				c.peer = nil
			}
			p.mu.Unlock()
			h.Indicate(e.caller, pbx.IndicateBusy)
			return
		}
		h.Indicate(e.caller, pbx.IndicateRinging)
	case indicateEvent:
		h.Indicate(e.id, e.ind)
	case hangupEvent:
		h.Hangup(e.id, e.cause)
	case mwiEvent:
		h.MessageWaiting(e.mailbox, e.newMsgs, e.oldMsgs)
	default:
		p.log.Warnf("unknown event %T", ev)
	}
}

// Subscribe installs the event handler.
func (p *PBX) Subscribe(h pbx.Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// NewChannel creates an outbound leg.
func (p *PBX) NewChannel(ctx context.Context, req pbx.ChannelRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l := &leg{id: uuid.New().String(), req: req, line: req.Line, outbound: true}
	p.mu.Lock()
	p.legs[l.id] = l
	p.mu.Unlock()
	p.log.WithField("channel", l.id).Debugf("new channel for line %s in %s", req.Line, req.Context)
	return l.id, nil
}

func (p *PBX) lookup(id string) (*leg, error) {
	l, ok := p.legs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pbx.ErrNoChannel, id)
	}
	return l, nil
}

// Dial routes exten. Unknown numbers hang the leg up as unallocated.
func (p *PBX) Dial(ctx context.Context, id, exten string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	l, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	route, ok := p.plan.Resolve(l.req.Context, exten)
	if !ok {
		p.mu.Unlock()
		p.log.WithField("channel", id).Infof("no extension %s in %s", exten, l.req.Context)
		p.post(hangupEvent{id: id, cause: pbx.CauseUnallocated})
		return nil
	}
	p.log.WithField("channel", id).Infof("dial %s -> %s %s", exten, route.Kind, route.Line)

	switch route.Kind {
	case KindEcho:
		l.echo = true
		l.state = legUp
		if l.relay != nil {
			l.relay.target.Store(l.relay)
		}
		p.mu.Unlock()
		p.post(indicateEvent{id: id, ind: pbx.IndicateProceeding})
		p.post(indicateEvent{id: id, ind: pbx.IndicateAnswer})
	case KindBusy:
		p.mu.Unlock()
		p.post(indicateEvent{id: id, ind: pbx.IndicateBusy})
	case KindCongestion:
		p.mu.Unlock()
		p.post(indicateEvent{id: id, ind: pbx.IndicateCongestion})
	default:
		in := &leg{id: uuid.New().String(), line: route.Line, state: legRinging, peer: l}
		l.peer = in
		l.state = legRinging
		p.legs[in.id] = in
		p.mu.Unlock()
		p.post(indicateEvent{id: id, ind: pbx.IndicateProceeding})
		p.post(offerEvent{caller: id, in: pbx.Incoming{
			ID:           in.id,
			Line:         route.Line,
			CallerName:   l.req.CallerName,
			CallerNumber: l.req.CallerNumber,
			CalledNumber: exten,
		}})
	}
	return nil
}

// Answer connects an offered leg to its caller.
func (p *PBX) Answer(ctx context.Context, id string) error {
	p.mu.Lock()
	l, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	l.state = legUp
	peer := l.peer
	notify := peer != nil && peer.state != legUp
	if peer != nil {
		peer.state = legUp
		connect(l, peer)
	}
	p.mu.Unlock()
	if notify {
		p.post(indicateEvent{id: peer.id, ind: pbx.IndicateAnswer})
	}
	return nil
}

// connect points the relays of two up legs at each other.
func connect(a, b *leg) {
	if a.relay == nil || b.relay == nil {
		return
	}
	a.relay.target.Store(b.relay)
	b.relay.target.Store(a.relay)
}

// Hangup ends a leg and its far end.
func (p *PBX) Hangup(ctx context.Context, id string, cause pbx.Cause) error {
	p.mu.Lock()
	l, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	peer := l.peer
	p.dropLocked(id)
	if peer != nil {
		p.dropLocked(peer.id)
	}
	p.mu.Unlock()
	p.log.WithField("channel", id).Debugf("hangup (%s)", cause)
	if peer != nil {
		p.post(hangupEvent{id: peer.id, cause: cause})
	}
	return nil
}

// dropLocked forgets a leg and closes its relay; caller holds p.mu.
func (p *PBX) dropLocked(id string) {
	l, ok := p.legs[id]
	if !ok {
		return
	}
	delete(p.legs, id)
	if l.relay != nil {
		go l.relay.close()
	}
}

// Indicate applies hold to the media of id and passes progress
// indications on to the far end.
func (p *PBX) Indicate(ctx context.Context, id string, ind pbx.Indication) error {
	p.mu.Lock()
	l, err := p.lookup(id)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	peer := l.peer
	if (ind == pbx.IndicateHold || ind == pbx.IndicateUnhold) && l.relay != nil {
		l.relay.setHeld(ind == pbx.IndicateHold)
	}
	p.mu.Unlock()
	switch ind {
	case pbx.IndicateHold, pbx.IndicateUnhold:
	default:
		if peer != nil {
			p.post(indicateEvent{id: peer.id, ind: ind})
		}
	}
	return nil
}

// SendDigit records an out of band digit.
func (p *PBX) SendDigit(ctx context.Context, id string, digit byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, err := p.lookup(id)
	if err != nil {
		return err
	}
	l.digits = append(l.digits, digit)
	p.log.WithField("channel", id).Debugf("dtmf %c", digit)
	return nil
}

// Digits returns the digits sent on a leg.
func (p *PBX) Digits(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.legs[id]; ok {
		return string(l.digits)
	}
	return ""
}

// Bridge joins the far ends of a and b and hangs both legs up.
func (p *PBX) Bridge(ctx context.Context, a, b string) error {
	p.mu.Lock()
	la, err := p.lookup(a)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	lb, err := p.lookup(b)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	fa, fb := la.peer, lb.peer
	switch {
	case fa != nil && fb != nil:
		fa.peer, fb.peer = fb, fa
		connect(fa, fb)
	case fa != nil && lb.echo:
		fa.peer, fa.echo = nil, true
		if fa.relay != nil {
			fa.relay.target.Store(fa.relay)
		}
	case fb != nil && la.echo:
		fb.peer, fb.echo = nil, true
		if fb.relay != nil {
			fb.relay.target.Store(fb.relay)
		}
	default:
		p.mu.Unlock()
		return fmt.Errorf("%w: nothing to bridge between %s and %s", pbx.ErrNoChannel, a, b)
	}
	la.peer, lb.peer = nil, nil
	p.dropLocked(a)
	p.dropLocked(b)
	p.mu.Unlock()
	p.log.Infof("bridged far ends of %s and %s", a, b)
	p.post(hangupEvent{id: a, cause: pbx.CauseNormal})
	p.post(hangupEvent{id: b, cause: pbx.CauseNormal})
	return nil
}

// MatchExtension looks exten up in the dialplan.
func (p *PBX) MatchExtension(ctx context.Context, dialContext, exten string) (pbx.Match, error) {
	if err := ctx.Err(); err != nil {
		return pbx.Match{}, err
	}
	return p.plan.Match(dialContext, exten), nil
}

func (p *PBX) announce() netip.Addr {
	switch {
	case p.opts.MediaAddr.IsValid() && !p.opts.MediaAddr.IsUnspecified():
		return p.opts.MediaAddr
	case p.opts.BindAddr.IsValid() && !p.opts.BindAddr.IsUnspecified():
		return p.opts.BindAddr
	}
	return netip.AddrFrom4([4]byte{127, 0, 0, 1})
}

// relayLocked returns the relay of l, opening it on first use; caller
// holds p.mu.
func (p *PBX) relayLocked(l *leg) (*relay, error) {
	if l.relay != nil {
		return l.relay, nil
	}
	bind := p.opts.BindAddr
	if !bind.IsValid() {
		bind = netip.IPv4Unspecified()
	}
	r, err := newRelay(bind, p.opts.QoS, p.log.WithField("channel", l.id))
	if err != nil {
		return nil, fmt.Errorf("%w: rtp socket: %v", pbx.ErrPbxUnavailable, err)
	}
	l.relay = r
	switch {
	case l.echo:
		r.target.Store(r)
	case l.peer != nil && l.state == legUp:
		connect(l, l.peer)
	}
	return r, nil
}

// MediaAddr returns the relay endpoint of id.
func (p *PBX) MediaAddr(ctx context.Context, id string) (netip.AddrPort, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, err := p.lookup(id)
	if err != nil {
		return netip.AddrPort{}, err
	}
	r, err := p.relayLocked(l)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(p.announce(), r.port()), nil
}

// SetPhoneMedia records where the phone of id receives RTP.
func (p *PBX) SetPhoneMedia(ctx context.Context, id string, m pbx.PhoneMedia) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, err := p.lookup(id)
	if err != nil {
		return err
	}
	r, err := p.relayLocked(l)
	if err != nil {
		return err
	}
	r.setPhone(m)
	return nil
}

// MediaQoS returns the marking of the relay of id.
func (p *PBX) MediaQoS(id string) (netutil.QoS, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.legs[id]
	if !ok || l.relay == nil {
		return netutil.QoS{}, false
	}
	return l.relay.marking(), true
}

// Peer returns the leg answered to id. Echo legs have none.
func (p *PBX) Peer(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.legs[id]
	if !ok || l.echo || l.state != legUp || l.peer == nil || l.peer.state != legUp {
		return "", false
	}
	return l.peer.id, true
}

// Mailbox returns the counters of a mailbox; unknown ones are empty.
func (p *PBX) Mailbox(ctx context.Context, mailbox string) (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.mailboxes[mailbox]
	return c[0], c[1], nil
}

// SetMailbox changes the counters of a mailbox and notifies the handler.
func (p *PBX) SetMailbox(mailbox string, newMsgs, oldMsgs int) {
	p.mu.Lock()
	p.mailboxes[mailbox] = [2]int{newMsgs, oldMsgs}
	p.mu.Unlock()
	p.post(mwiEvent{mailbox: mailbox, newMsgs: newMsgs, oldMsgs: oldMsgs})
}

// Channels returns the number of live legs.
func (p *PBX) Channels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.legs)
}

func (p *PBX) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.legs {
		p.dropLocked(id)
	}
}
