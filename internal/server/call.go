package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sccpd/internal/callstate"
	"sccpd/internal/config"
	"sccpd/internal/model"
	"sccpd/internal/pbx"
	"sccpd/internal/scheduler"
	"sccpd/internal/skinny"
)

// Everything in this file runs with the phone lock held.

var errNoLine = errors.New("server: no line on button")

// indicate moves c to st and renders it on the phone.
func (s *Server) indicate(p *phone, c *model.Channel, st callstate.State) {
	prev := c.SetState(st)
	d := p.dev
	in := callstate.Indication{
		State:         st,
		LineInstance:  c.LineInstance,
		CallReference: c.CallRef,
		Lamp:          d.Lamp(c.LineInstance),
		Transfer:      d.Config().Transfer,
		Priority:      c.Priority(),
	}
	if st == callstate.CallWaiting {
		tone := s.Global().CallWaitingTone
		in.CallWaitingTone = &tone
	}
	shared := st.Terminal() && s.instanceBusy(p, c)
	if shared {
		// another call still lights the line
		in.Lamp = callstate.Lamp(st)
	}
	msgs, lamp := callstate.Messages(p.sess.Protocol(), in)
	if !shared {
		d.SetLamp(c.LineInstance, lamp)
	}
	s.send(p, msgs...)
	s.callLog.WithField("device", d.ID).Debugf("call %d %s -> %s", c.CallRef, prev, st)
}

func (s *Server) send(p *phone, msgs ...skinny.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := p.sess.SendAll(msgs...); err != nil {
		p.sess.Log().Debugf("send: %v", err)
	}
}

// instanceBusy reports whether a call other than c is live on the line
// instance of c.
func (s *Server) instanceBusy(p *phone, c *model.Channel) bool {
	for _, o := range s.reg.DeviceChannels(p.dev.ID) {
		if o != c && o.LineInstance == c.LineInstance && !o.State().Terminal() {
			return true
		}
	}
	return false
}

// activeChannel returns the newest call of the phone that is neither
// ringing nor held, optionally restricted to one line instance.
func (s *Server) activeChannel(p *phone, instance uint32) *model.Channel {
	var found *model.Channel
	for _, c := range s.reg.DeviceChannels(p.dev.ID) {
		switch c.State() {
		case callstate.Hold, callstate.RingIn, callstate.CallWaiting:
			continue
		}
		if c.State().Terminal() || (instance != 0 && c.LineInstance != instance) {
			continue
		}
		found = c
	}
	return found
}

// channelFor resolves the call a phone message refers to: by call
// reference when given, otherwise the active call.
func (s *Server) channelFor(p *phone, instance, ref uint32) *model.Channel {
	if ref != 0 {
		if c := s.reg.Channel(ref); c != nil && c.Device == p.dev {
			return c
		}
	}
	return s.activeChannel(p, instance)
}

func (s *Server) ringing(p *phone) []*model.Channel {
	var out []*model.Channel
	for _, c := range s.reg.DeviceChannels(p.dev.ID) {
		if st := c.State(); st == callstate.RingIn || st == callstate.CallWaiting {
			out = append(out, c)
		}
	}
	return out
}

// pickRinging chooses the call an off hook answers.
func (s *Server) pickRinging(p *phone, ref uint32) *model.Channel {
	if ref != 0 {
		if c := s.reg.Channel(ref); c != nil && c.Device == p.dev {
			if st := c.State(); st == callstate.RingIn || st == callstate.CallWaiting {
				return c
			}
		}
	}
	list := s.ringing(p)
	if i := s.Global().CallAnswerOrder.Pick(len(list)); i >= 0 {
		return list[i]
	}
	return nil
}

func (s *Server) offHook(p *phone, instance, ref uint32) error {
	if c := s.pickRinging(p, ref); c != nil {
		return s.answer(p, c)
	}
	if c := s.activeChannel(p, 0); c != nil {
		// handset lifted during a speaker call
		return nil
	}
	_, err := s.newCall(p, instance)
	return err
}

// newCall takes a line off hook and plays dial tone.
func (s *Server) newCall(p *phone, instance uint32) (*model.Channel, error) {
	d := p.dev
	tmpl := d.Template()
	if instance == 0 {
		instance = tmpl.DefaultLine()
	}
	name, ok := tmpl.Line(instance)
	if !ok {
		return nil, fmt.Errorf("instance %d: %w", instance, errNoLine)
	}
	l := s.reg.Line(name)
	if l == nil {
		return nil, fmt.Errorf("line %s: %w", name, model.ErrGone)
	}
	c, err := s.reg.NewChannel(d, l, instance, skinny.CallTypeOutbound)
	if err != nil {
		return nil, err
	}
	s.metrics.ChannelOpened()
	lc := l.Config()
	c.SetParties(model.Party{Name: lc.CIDName, Number: lc.CIDNum}, model.Party{})

	s.send(p,
		&skinny.SetLamp{Stimulus: skinny.StimulusLine, Instance: instance, Mode: skinny.LampOn},
		&skinny.SetSpeakerMode{Mode: skinny.SpeakerOn},
	)
	d.SetLamp(instance, skinny.LampOn)
	s.indicate(p, c, callstate.OffHook)

	g := s.Global()
	if d.Hotline() {
		return c, s.dial(p, c, g.HotlineExtension)
	}
	if d.Config().EarlyRTP.Opens(callstate.OffHook) {
		if err := s.ensurePBX(p, c); err == nil {
			s.openMedia(p, c)
		}
	}
	s.armDigitTimer(p, c, time.Duration(g.FirstDigitTimeout)*time.Second)
	return c, nil
}

func (s *Server) digitTimeout(p *phone) time.Duration {
	if t := p.dev.Config().DigitTimeout; t > 0 {
		return time.Duration(t) * time.Second
	}
	return time.Duration(s.Global().DigitTimeout) * time.Second
}

// armDigitTimer replaces the inter digit timer of c. When it expires with
// the digits unchanged, the collected number is dialed; with no digits at
// all the call goes to congestion.
func (s *Server) armDigitTimer(p *phone, c *model.Channel, after time.Duration) {
	s.cancelDigitTimer(c)
	if after <= 0 {
		return
	}
	digits := c.Digits()
	id, err := s.timers.After(after, func() {
		go s.withPhone(p.dev.ID, func(p *phone) { s.digitTimerFired(p, c, digits) })
	})
	if err != nil {
		s.callLog.Warnf("digit timer: %v", err)
		return
	}
	c.SwapDigitTimer(uint64(id))
}

func (s *Server) cancelDigitTimer(c *model.Channel) {
	if id := c.SwapDigitTimer(0); id != 0 {
		s.timers.Cancel(scheduler.ID(id))
	}
}

func (s *Server) digitTimerFired(p *phone, c *model.Channel, digits string) {
	if s.reg.Channel(c.CallRef) != c || c.Digits() != digits {
		return
	}
	switch c.State() {
	case callstate.OffHook, callstate.DigitsFoll, callstate.GetDigits:
	default:
		return
	}
	c.SwapDigitTimer(0)
	if digits == "" {
		s.callLog.WithField("device", p.dev.ID).Debugf("call %d: no digits dialed", c.CallRef)
		s.indicate(p, c, callstate.Congestion)
		return
	}
	if err := s.dial(p, c, digits); err != nil {
		s.callLog.Warnf("dial %s: %v", digits, err)
	}
}

func (s *Server) digit(p *phone, instance, ref uint32, b byte) error {
	if b == 0 {
		return nil
	}
	c := s.channelFor(p, instance, ref)
	if c == nil {
		return nil
	}
	switch c.State() {
	case callstate.OffHook, callstate.DigitsFoll, callstate.GetDigits:
	case callstate.Connected:
		if p.dev.Config().DTMFMode == config.DTMFInband && c.Media().Tx != model.MediaClosed {
			// the phone plays the digit into its own stream
			return nil
		}
		return s.sendDigit(c, b)
	case callstate.Proceed, callstate.Progress, callstate.RingOut:
		return s.sendDigit(c, b)
	default:
		return nil
	}

	g := s.Global()
	if b == g.DigitTimeoutChar && c.Digits() != "" {
		if g.RecordDigitTimeoutChar {
			c.AppendDigit(b)
		}
		return s.dial(p, c, c.Digits())
	}
	digits := c.AppendDigit(b)
	if c.State() == callstate.OffHook {
		s.indicate(p, c, callstate.DigitsFoll)
	}
	s.dialTone(p, c, digits)
	if p.forwardRef == c.CallRef {
		s.armDigitTimer(p, c, s.digitTimeout(p))
		return nil
	}

	ctx, cancel := s.opContext()
	m, err := s.pbx.MatchExtension(ctx, s.dialContext(c), digits)
	cancel()
	switch {
	case err != nil:
		s.callLog.Warnf("match %s: %v", digits, err)
		s.armDigitTimer(p, c, s.digitTimeout(p))
	case m.Exists && !m.MoreDigits:
		return s.dial(p, c, digits)
	case m.Exists && p.dev.Config().AllowOverlap:
		// later digits follow the call as dtmf
		return s.dial(p, c, digits)
	case m.Exists || m.MoreDigits:
		s.armDigitTimer(p, c, s.digitTimeout(p))
	default:
		s.cancelDigitTimer(c)
		s.indicate(p, c, callstate.InvalidNumber)
	}
	return nil
}

func (s *Server) sendDigit(c *model.Channel, b byte) error {
	id := c.PBXID()
	if id == "" {
		return nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	return s.pbx.SendDigit(ctx, id, b)
}

// dialTone plays the secondary dial tone once the outside access digits
// of the line are dialed, and stops it on the next digit.
func (s *Server) dialTone(p *phone, c *model.Channel, digits string) {
	lc := c.Line.Config()
	sec := lc.SecondaryDialtoneDigits
	if sec == "" || !strings.HasPrefix(digits, sec) {
		return
	}
	switch len(digits) {
	case len(sec):
		s.send(p, &skinny.StartTone{Tone: lc.SecondaryDialtoneTone, LineInstance: c.LineInstance, CallReference: c.CallRef})
	case len(sec) + 1:
		s.send(p, &skinny.StopTone{LineInstance: c.LineInstance, CallReference: c.CallRef})
	}
}

func (s *Server) backspace(p *phone, c *model.Channel) {
	switch c.State() {
	case callstate.DigitsFoll, callstate.GetDigits:
	default:
		return
	}
	s.send(p, &skinny.BackSpaceReq{LineInstance: c.LineInstance, CallReference: c.CallRef})
	if c.Backspace() == "" {
		s.indicate(p, c, callstate.OffHook)
	}
	s.armDigitTimer(p, c, s.digitTimeout(p))
}

func (s *Server) dialContext(c *model.Channel) string {
	if ctx := c.Line.Config().Context; ctx != "" {
		return ctx
	}
	return s.Global().Context
}

// dial places the call of c to number.
func (s *Server) dial(p *phone, c *model.Channel, number string) error {
	s.cancelDigitTimer(c)
	if p.forwardRef == c.CallRef {
		s.finishForward(p, c, number)
		return nil
	}
	d := p.dev
	c.SetDigits(number)
	c.SetDialed(number)
	d.UpdateFeatures(func(f *model.Features) { f.LastDialed = number })
	s.putFeature(d.ID, keyLastDialed, number)
	calling, _ := c.Parties()
	c.SetParties(calling, model.Party{Number: number})

	if err := s.ensurePBX(p, c); err != nil {
		s.indicate(p, c, callstate.Congestion)
		return err
	}
	s.send(p, &skinny.StopTone{LineInstance: c.LineInstance, CallReference: c.CallRef})
	s.indicate(p, c, callstate.Proceed)
	if d.Config().EarlyRTP.Opens(callstate.Proceed) {
		s.openMedia(p, c)
	}
	s.send(p, p.sess.Protocol().DialedNumber(c.LineInstance, c.CallRef, number))
	s.callLog.WithField("device", d.ID).Infof("call %d on %s dials %s", c.CallRef, c.Line.Name, number)

	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.pbx.Dial(ctx, c.PBXID(), number); err != nil {
		s.indicate(p, c, callstate.Congestion)
		return err
	}
	return nil
}

// ensurePBX creates the PBX side of c on first use.
func (s *Server) ensurePBX(p *phone, c *model.Channel) error {
	if c.PBXID() != "" {
		return nil
	}
	cfg := p.dev.Config()
	lc := c.Line.Config()
	calling, _ := c.Parties()
	vars := make(map[string]string, len(cfg.Variables)+len(lc.Variables))
	for _, v := range cfg.Variables {
		vars[v.Name] = v.Value
	}
	for _, v := range lc.Variables {
		vars[v.Name] = v.Value
	}
	if p.dev.Features().Privacy != 0 {
		calling = model.Party{}
	}
	req := pbx.ChannelRequest{
		Line:         c.Line.Name,
		Context:      s.dialContext(c),
		CallerName:   calling.Name,
		CallerNumber: calling.Number,
		Language:     lc.Language,
		MusicClass:   lc.MusicClass,
		AccountCode:  lc.AccountCode,
		Codecs:       cfg.Codecs(),
		Variables:    vars,
	}
	ctx, cancel := s.opContext()
	defer cancel()
	id, err := s.pbx.NewChannel(ctx, req)
	if err != nil {
		return fmt.Errorf("pbx channel for %s: %w", c, err)
	}
	c.SetPBXID(id)
	s.bind(id, c.CallRef)
	return nil
}

// answer picks up an offered call.
func (s *Server) answer(p *phone, c *model.Channel) error {
	if other := s.activeChannel(p, 0); other != nil && other != c {
		if other.State() == callstate.Connected {
			s.hold(p, other)
		} else {
			s.endCall(p, other, true)
		}
	}
	ctx, cancel := s.opContext()
	err := s.pbx.Answer(ctx, c.PBXID())
	cancel()
	if err != nil {
		s.endCall(p, c, false)
		return fmt.Errorf("answer %s: %w", c, err)
	}
	s.stopOtherRinging(c)
	s.send(p, &skinny.SetRinger{Mode: skinny.RingOff, LineInstance: c.LineInstance, CallReference: c.CallRef})
	s.connected(p, c)
	return nil
}

// stopOtherRinging ends the legs an offer to a shared line rang on other
// devices.
func (s *Server) stopOtherRinging(c *model.Channel) {
	var others []uint32
	for _, ref := range s.boundTo(c.PBXID()) {
		if ref != c.CallRef {
			others = append(others, ref)
		}
	}
	if len(others) == 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, ref := range others {
			o := s.reg.Channel(ref)
			if o == nil {
				continue
			}
			s.withPhone(o.Device.ID, func(p *phone) { s.endCall(p, o, false) })
		}
	}()
}

// connected shows an answered call and starts its media.
func (s *Server) connected(p *phone, c *model.Channel) {
	if c.State() == callstate.Connected {
		return
	}
	switch c.Media().Rx {
	case model.MediaOpen:
		s.mediaReady(p, c)
	case model.MediaClosed:
		s.openMedia(p, c)
	}
	s.indicate(p, c, callstate.Connected)
	s.send(p, p.sess.Protocol().CallInfo(c.CallInfo()))
}

func (s *Server) hold(p *phone, c *model.Channel) {
	if c.State() != callstate.Connected {
		return
	}
	ctx, cancel := s.opContext()
	if err := s.pbx.Indicate(ctx, c.PBXID(), pbx.IndicateHold); err != nil {
		s.callLog.Warnf("hold %s: %v", c, err)
	}
	cancel()
	s.teardown(p, c, false)
	s.indicate(p, c, callstate.Hold)
}

func (s *Server) resume(p *phone, c *model.Channel) {
	if c.State() != callstate.Hold {
		return
	}
	if other := s.activeChannel(p, 0); other != nil && other != c {
		if other.State() == callstate.Connected {
			s.hold(p, other)
		} else {
			s.endCall(p, other, true)
		}
	}
	ctx, cancel := s.opContext()
	if err := s.pbx.Indicate(ctx, c.PBXID(), pbx.IndicateUnhold); err != nil {
		s.callLog.Warnf("unhold %s: %v", c, err)
	}
	cancel()
	s.indicate(p, c, callstate.Connected)
	s.openMedia(p, c)
}

// transfer starts a consultation call from a connected call, or completes
// the transfer when pressed on either leg of one.
func (s *Server) transfer(p *phone, c *model.Channel) error {
	if !p.dev.Config().Transfer {
		return fmt.Errorf("transfer on %s: disabled", p.dev.ID)
	}
	if rel := c.Related(); rel != 0 {
		if o := s.reg.Channel(rel); o != nil && o.Device == p.dev {
			held, consult := o, c
			if c.State() == callstate.Hold {
				held, consult = c, o
			}
			return s.completeTransfer(p, held, consult)
		}
	}
	if c.State() != callstate.Connected {
		return nil
	}
	s.hold(p, c)
	consult, err := s.newCall(p, c.LineInstance)
	if err != nil {
		return err
	}
	consult.SetRelated(c.CallRef)
	c.SetRelated(consult.CallRef)
	return nil
}

// completeTransfer joins the far end of the held call with the target of
// the consultation call and releases both local legs. When the target has
// not answered yet the transferred party hears ringing or music on hold.
func (s *Server) completeTransfer(p *phone, held, consult *model.Channel) error {
	if held.PBXID() == "" || consult.PBXID() == "" {
		return fmt.Errorf("transfer %s to %s: nothing dialed", held, consult)
	}
	ctx, cancel := s.opContext()
	defer cancel()
	if consult.State() != callstate.Connected {
		ind := pbx.IndicateRinging
		if s.Global().BlindTransferIndication == callstate.BlindTransferMOH {
			ind = pbx.IndicateHold
		}
		if err := s.pbx.Indicate(ctx, held.PBXID(), ind); err != nil {
			s.callLog.Warnf("blind transfer %s: %v", ind, err)
		}
		s.indicate(p, consult, callstate.BlindTransfer)
	}
	if err := s.pbx.Bridge(ctx, held.PBXID(), consult.PBXID()); err != nil {
		return fmt.Errorf("transfer %s to %s: %w", held, consult, err)
	}
	s.callLog.WithField("device", p.dev.ID).Infof("transferred call %d to %s", held.CallRef, consult.Dialed())
	s.endCall(p, consult, false)
	s.endCall(p, held, false)
	return nil
}

func (s *Server) onHook(p *phone, instance, ref uint32) error {
	c := s.channelFor(p, instance, ref)
	if c == nil {
		return nil
	}
	s.endCall(p, c, true)
	return nil
}

// endCall releases c. With hangupPBX the PBX leg is hung up as well; it is
// false when the PBX ended the call. The last call of a device with a
// pending configuration change takes the deferred reset.
func (s *Server) endCall(p *phone, c *model.Channel, hangupPBX bool) {
	if !c.MarkHangup() {
		return
	}
	s.cancelDigitTimer(c)
	if p.forwardRef == c.CallRef {
		p.forwardRef = 0
	}
	if id := c.PBXID(); id != "" {
		s.unbind(id, c.CallRef)
		if hangupPBX {
			ctx, cancel := s.opContext()
			if err := s.pbx.Hangup(ctx, id, pbx.CauseNormal); err != nil && !errors.Is(err, pbx.ErrNoChannel) {
				s.callLog.Warnf("hangup %s: %v", c, err)
			}
			cancel()
		}
	}
	last := c.State()
	s.teardown(p, c, true)
	s.indicate(p, c, callstate.OnHook)
	if rel := c.Related(); rel != 0 {
		if o := s.reg.Channel(rel); o != nil {
			o.SetRelated(0)
		}
	}

	d := p.dev
	left := s.reg.EndChannel(c)
	s.metrics.ChannelClosed(last.String())
	s.callLog.WithField("device", d.ID).Infof("call %d ended in %s, %d left", c.CallRef, last, left)
	if left == 0 {
		s.send(p, &skinny.SetSpeakerMode{Mode: skinny.SpeakerOff})
		if n, _ := c.Line.Messages(); n > 0 {
			mode := d.Config().MWILamp
			s.send(p, &skinny.SetLamp{Stimulus: skinny.StimulusLine, Instance: c.LineInstance, Mode: mode})
			d.SetLamp(c.LineInstance, mode)
		}
		if d.TakePendingUpdate() {
			s.resetDevice(d, skinny.ResetSoft)
		}
	}
}

// ring offers a call to one appearance of a line.
func (s *Server) ring(p *phone, l *model.Line, instance uint32, in pbx.Incoming, silent bool) error {
	d := p.dev
	c, err := s.reg.NewChannel(d, l, instance, skinny.CallTypeInbound)
	if err != nil {
		return err
	}
	s.metrics.ChannelOpened()
	c.SetPBXID(in.ID)
	s.bind(in.ID, c.CallRef)
	lc := l.Config()
	c.SetParties(
		model.Party{Name: in.CallerName, Number: in.CallerNumber},
		model.Party{Name: lc.CIDName, Number: in.CalledNumber},
	)
	c.SetDialed(in.CalledNumber)

	st := callstate.RingIn
	if s.activeChannel(p, 0) != nil {
		st = callstate.CallWaiting
	}
	s.indicate(p, c, st)
	s.send(p, p.sess.Protocol().CallInfo(c.CallInfo()))
	if st == callstate.RingIn {
		mode := skinny.RingInside
		if silent {
			mode = skinny.RingSilent
		}
		s.send(p, &skinny.SetRinger{Mode: mode, RingDuration: 1, LineInstance: instance, CallReference: c.CallRef})
	}
	s.callLog.WithField("device", d.ID).Infof("call %d rings %s from %s", c.CallRef, l.Name, in.CallerNumber)
	return nil
}
