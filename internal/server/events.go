package server

import (
	"errors"
	"fmt"
	"net/netip"

	"sccpd/internal/callstate"
	"sccpd/internal/config"
	"sccpd/internal/model"
	"sccpd/internal/netutil"
	"sccpd/internal/pbx"
	"sccpd/internal/rtp"
	"sccpd/internal/skinny"
)

var errNotRinging = errors.New("server: no device to ring")

var _ pbx.Handler = (*Server)(nil)

// Offer rings every registered appearance of the line. It fails when no
// device could ring, so the PBX reports busy to the caller.
func (s *Server) Offer(in pbx.Incoming) error {
	l := s.reg.Line(in.Line)
	if l == nil {
		return fmt.Errorf("line %s: %w", in.Line, errNotRinging)
	}
	var rung, dnd int
	for _, a := range l.Appearances() {
		s.withPhone(a.Device, func(p *phone) {
			silent := false
			switch p.dev.Features().DND {
			case config.DNDReject:
				dnd++
				s.callLog.WithField("device", p.dev.ID).Infof("call to %s rejected by dnd", l.Name)
				return
			case config.DNDSilent:
				silent = true
			}
			if err := s.ring(p, l, a.Instance, in, silent); err != nil {
				s.callLog.Warnf("ring %s on %s: %v", l.Name, a.Device, err)
				return
			}
			rung++
		})
	}
	if rung == 0 {
		return fmt.Errorf("line %s (%d in dnd): %w", l.Name, dnd, errNotRinging)
	}
	return nil
}

// Indicate applies far end progress to the legs bound to id.
func (s *Server) Indicate(id string, ind pbx.Indication) {
	for _, ref := range s.boundTo(id) {
		c := s.reg.Channel(ref)
		if c == nil {
			continue
		}
		s.withPhone(c.Device.ID, func(p *phone) {
			if s.reg.Channel(ref) != c {
				return
			}
			s.farIndicate(p, c, ind)
		})
	}
}

func (s *Server) farIndicate(p *phone, c *model.Channel, ind pbx.Indication) {
	st := c.State()
	early := p.dev.Config().EarlyRTP
	switch ind {
	case pbx.IndicateProceeding:
		if st == callstate.OffHook || st == callstate.DigitsFoll {
			s.indicate(p, c, callstate.Proceed)
		}
	case pbx.IndicateProgress:
		if st == callstate.Proceed || st == callstate.RingOut {
			s.indicate(p, c, callstate.Progress)
		}
		if early.Opens(callstate.Progress) {
			s.openMedia(p, c)
		}
	case pbx.IndicateRinging:
		switch st {
		case callstate.Proceed, callstate.Progress, callstate.OffHook, callstate.DigitsFoll:
			s.indicate(p, c, callstate.RingOut)
			if early.Opens(callstate.RingOut) {
				s.openMedia(p, c)
			}
		}
	case pbx.IndicateAnswer:
		if c.Type == skinny.CallTypeOutbound {
			s.connected(p, c)
		}
	case pbx.IndicateBusy:
		if !st.Terminal() && st != callstate.Connected {
			s.indicate(p, c, callstate.Busy)
		}
	case pbx.IndicateCongestion:
		if !st.Terminal() && st != callstate.Connected {
			s.indicate(p, c, callstate.Congestion)
		}
	default:
		s.callLog.Debugf("call %d: far end %s", c.CallRef, ind)
	}
}

// Hangup handles a PBX side hangup. A call that never connected keeps
// its leg to show why it failed until the phone hangs up.
func (s *Server) Hangup(id string, cause pbx.Cause) {
	for _, ref := range s.boundTo(id) {
		c := s.reg.Channel(ref)
		if c == nil {
			continue
		}
		s.withPhone(c.Device.ID, func(p *phone) {
			if s.reg.Channel(ref) != c {
				return
			}
			s.farHangup(p, c, cause)
		})
	}
}

func (s *Server) farHangup(p *phone, c *model.Channel, cause pbx.Cause) {
	s.callLog.WithField("device", p.dev.ID).Debugf("call %d: pbx hangup (%s)", c.CallRef, cause)
	if c.Type == skinny.CallTypeOutbound {
		var show callstate.State
		switch c.State() {
		case callstate.OffHook, callstate.DigitsFoll, callstate.Proceed, callstate.Progress, callstate.RingOut:
			switch cause {
			case pbx.CauseBusy:
				show = callstate.Busy
			case pbx.CauseUnallocated:
				show = callstate.InvalidNumber
			case pbx.CauseCongestion, pbx.CauseRejected:
				show = callstate.Congestion
			}
		}
		if show != callstate.Down {
			s.unbind(c.PBXID(), c.CallRef)
			c.SetPBXID("")
			s.teardown(p, c, false)
			s.indicate(p, c, show)
			return
		}
	}
	s.endCall(p, c, false)
}

// MessageWaiting updates the lines watching mailbox and their lamps.
func (s *Server) MessageWaiting(mailbox string, newMsgs, oldMsgs int) {
	var devices []string
	s.reg.EachLine(func(l *model.Line) {
		for _, mb := range l.Config().Mailboxes {
			if mb.String() != mailbox && mb.Mailbox != mailbox {
				continue
			}
			if l.SetMessages(newMsgs, oldMsgs) {
				for _, a := range l.Appearances() {
					devices = append(devices, a.Device)
				}
			}
			return
		}
	})
	for _, id := range devices {
		s.withPhone(id, func(p *phone) {
			s.send(p, s.mwiLamps(p.dev)...)
		})
	}
}

// mwiLamps renders the voicemail lamps of d: the line lamp of each line
// with new messages unless the line is in a call, and the voicemail lamp.
func (s *Server) mwiLamps(d *model.Device) []skinny.Message {
	cfg := d.Config()
	waiting := false
	var out []skinny.Message
	for _, e := range d.Template().Lines() {
		l := s.reg.Line(e.Button.Name)
		if l == nil {
			continue
		}
		inst := uint32(e.Instance)
		mode := skinny.LampOff
		if n, _ := l.Messages(); n > 0 {
			mode, waiting = cfg.MWILamp, true
		}
		busy := false
		for _, c := range s.reg.DeviceChannels(d.ID) {
			if c.LineInstance == inst && !c.State().Terminal() {
				busy = true
			}
		}
		if busy && !cfg.MWIOnCall {
			continue
		}
		if busy {
			// the call lamp wins over an unlit mwi lamp
			if mode == skinny.LampOff {
				continue
			}
		}
		if d.Lamp(inst) != mode {
			out = append(out, &skinny.SetLamp{Stimulus: skinny.StimulusLine, Instance: inst, Mode: mode})
			d.SetLamp(inst, mode)
		}
	}
	vm := skinny.LampOff
	if waiting {
		vm = cfg.MWILamp
	}
	return append(out, &skinny.SetLamp{Stimulus: skinny.StimulusVoiceMail, Mode: vm})
}

// policy is the media configuration of d.
func (s *Server) policy(d *model.Device) rtp.Policy {
	g := s.Global()
	cfg := d.Config()
	local := make(netutil.ACL, 0, len(g.LocalNet))
	for _, p := range g.LocalNet {
		local = append(local, netutil.Rule{Permit: true, Prefix: p})
	}
	return rtp.Policy{
		TrustPhoneIP:       cfg.TrustPhoneIP,
		NAT:                cfg.NAT,
		DirectRTP:          cfg.DirectRTP,
		ExternIP:           g.ExternIP,
		LocalNet:           local,
		SilenceSuppression: g.SilenceSuppression,
		Codecs:             cfg.Codecs(),
	}
}

// phoneAddr is the signaling address of the phone, or the address it
// registered with when the socket has none.
func (s *Server) phoneAddr(p *phone) netip.Addr {
	if a := peerAddr(p.sess.RemoteAddr()); a.IsValid() {
		return a
	}
	return p.dev.Registration().PhoneIP
}

func mediaCaps(codecs []skinny.Codec) []skinny.MediaCapability {
	out := make([]skinny.MediaCapability, len(codecs))
	for i, c := range codecs {
		out[i] = skinny.MediaCapability{Codec: c}
	}
	return out
}

// openMedia asks the phone to open its receive channel for c.
func (s *Server) openMedia(p *phone, c *model.Channel) {
	if c.PBXID() == "" || c.Media().Rx != model.MediaClosed {
		return
	}
	log := s.rtpLog.WithField("device", p.dev.ID)
	ctx, cancel := s.opContext()
	addr, err := s.pbx.MediaAddr(ctx, c.PBXID())
	cancel()
	if err != nil {
		log.Warnf("call %d: media address: %v", c.CallRef, err)
		return
	}
	pol := s.policy(p.dev)
	codec, err := rtp.ChooseCodec(pol.Codecs, mediaCaps(p.dev.Caps()))
	if err != nil {
		log.Warnf("call %d: %v", c.CallRef, err)
		return
	}
	if m := rtp.OpenReceive(c, codec, pol, addr.Addr()); m != nil {
		log.Debugf("call %d: open receive %s from %s", c.CallRef, codec.Name(), addr)
		s.send(p, m)
	}
}

// startMedia points the phone of c at the PBX.
func (s *Server) startMedia(p *phone, c *model.Channel) {
	if c.PBXID() == "" || c.Media().Tx != model.MediaClosed {
		return
	}
	ctx, cancel := s.opContext()
	addr, err := s.pbx.MediaAddr(ctx, c.PBXID())
	cancel()
	if err != nil {
		s.rtpLog.Warnf("call %d: media address: %v", c.CallRef, err)
		return
	}
	m := rtp.StartTransmission(c, addr, s.policy(p.dev), s.phoneAddr(p))
	s.rtpLog.WithField("device", p.dev.ID).Debugf("call %d: transmit to %s:%d", c.CallRef, m.RemoteIP, m.RemotePort)
	s.send(p, m)
}

func (s *Server) mediaChannel(p *phone, ref, passThru uint32) *model.Channel {
	if c := s.reg.Channel(ref); c != nil && c.Device == p.dev {
		return c
	}
	for _, c := range s.reg.DeviceChannels(p.dev.ID) {
		if c.PassThruID == passThru {
			return c
		}
	}
	return nil
}

func (s *Server) openAck(p *phone, ack *skinny.OpenReceiveChannelAck) error {
	c := s.mediaChannel(p, ack.CallReference, ack.PassThruPartyID)
	if c == nil {
		s.rtpLog.Debugf("open receive ack for unknown call %d", ack.CallReference)
		return nil
	}
	addr, err := rtp.HandleOpenAck(c, ack, s.phoneAddr(p), s.policy(p.dev))
	if err != nil {
		s.indicate(p, c, callstate.Congestion)
		if id := c.PBXID(); id != "" {
			s.unbind(id, c.CallRef)
			c.SetPBXID("")
			ctx, cancel := s.opContext()
			if err := s.pbx.Hangup(ctx, id, pbx.CauseCongestion); err != nil && !errors.Is(err, pbx.ErrNoChannel) {
				s.callLog.Warnf("hangup %s after failed media: %v", c, err)
			}
			cancel()
		}
		return err
	}
	ctx, cancel := s.opContext()
	err = s.pbx.SetPhoneMedia(ctx, c.PBXID(), pbx.PhoneMedia{
		Addr:  addr,
		Codec: c.Media().Codec,
		QoS:   p.dev.Config().AudioQoS,
	})
	cancel()
	if err != nil {
		s.rtpLog.Warnf("call %d: phone media: %v", c.CallRef, err)
	}
	s.rtpLog.WithField("device", p.dev.ID).Debugf("call %d: phone receives on %s", c.CallRef, addr)
	if c.State() == callstate.Connected {
		s.mediaReady(p, c)
	}
	return nil
}

// mediaReady starts the transmission of a connected call whose receive
// channel is open. Two phones of this driver that both allow direct RTP
// and are bridged to each other are pointed at one another; everything
// else sends to the PBX.
func (s *Server) mediaReady(p *phone, c *model.Channel) {
	q, peer := s.directPeer(p, c)
	if peer == nil {
		s.startMedia(p, c)
		return
	}
	s.directMu.Lock()
	defer s.directMu.Unlock()
	if c.Media().Tx != model.MediaClosed {
		return
	}
	pm := peer.Media()
	switch {
	case pm.Tx != model.MediaClosed:
		s.startMedia(p, c)
		return
	case pm.Rx == model.MediaOpening || peer.State().Setup():
		// the peer pairs both phones once its receive channel is open
		s.rtpLog.WithField("device", p.dev.ID).Debugf("call %d: waiting for call %d", c.CallRef, peer.CallRef)
		return
	case pm.Rx != model.MediaOpen:
		s.startMedia(p, c)
		return
	}
	toC, toPeer, ok := rtp.Direct(c, peer, s.policy(p.dev), s.policy(q.dev))
	if !ok {
		s.startMedia(p, c)
		s.startMedia(q, peer)
		return
	}
	s.rtpLog.WithField("device", p.dev.ID).Infof("call %d: direct rtp with call %d on %s", c.CallRef, peer.CallRef, q.dev.ID)
	s.send(p, toC)
	s.send(q, toPeer)
}

// directPeer returns the channel bridged to c on another phone of this
// driver when both devices allow direct RTP.
func (s *Server) directPeer(p *phone, c *model.Channel) (*phone, *model.Channel) {
	lp, ok := s.pbx.(pbx.LocalPeer)
	if !ok || !p.dev.Config().DirectRTP || c.PBXID() == "" {
		return nil, nil
	}
	id, ok := lp.Peer(c.PBXID())
	if !ok {
		return nil, nil
	}
	for _, ref := range s.boundTo(id) {
		peer := s.reg.Channel(ref)
		if peer == nil || peer.Device == p.dev || peer.State().Terminal() {
			continue
		}
		q := s.phone(peer.Device.ID)
		if q == nil || !q.dev.Config().DirectRTP {
			return nil, nil
		}
		return q, peer
	}
	return nil, nil
}

// redirect moves the phone of call ref, sending directly to call from,
// back to the PBX or to a new direct peer.
func (s *Server) redirect(ref, from uint32) {
	peer := s.reg.Channel(ref)
	if peer == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.withPhone(peer.Device.ID, func(q *phone) {
			if s.reg.Channel(ref) != peer || peer.State().Terminal() {
				return
			}
			var stop *skinny.StopMediaTransmission
			s.directMu.Lock()
			if peer.Media().Direct == from {
				stop = rtp.StopTransmission(peer)
			}
			s.directMu.Unlock()
			if stop == nil {
				return
			}
			s.send(q, stop)
			if peer.State() == callstate.Connected && peer.Media().Rx == model.MediaOpen {
				s.mediaReady(q, peer)
			}
		})
	}()
}

// teardown closes the media of c and releases the phone sending to it
// directly.
func (s *Server) teardown(p *phone, c *model.Channel, stats bool) {
	direct := c.Media().Direct
	s.send(p, rtp.Teardown(c, stats)...)
	if direct != 0 {
		s.redirect(direct, c.CallRef)
	}
}

func (s *Server) startAck(p *phone, ack *skinny.StartMediaTransmissionAck) error {
	c := s.mediaChannel(p, ack.CallReference, ack.PassThruPartyID)
	if c == nil {
		return nil
	}
	return rtp.HandleStartAck(c, ack)
}
