package server

import (
	"fmt"
	"time"

	"sccpd/internal/callstate"
	"sccpd/internal/model"
	"sccpd/internal/rtp"
	"sccpd/internal/session"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

var _ session.Handler = (*Server)(nil)

// HandleMessage dispatches a decoded phone message. Registration runs on
// any session; everything else needs the session to own a registered
// device and runs under that device's lock.
func (s *Server) HandleMessage(sess *session.Session, msg skinny.Message) error {
	switch m := msg.(type) {
	case *skinny.RegisterTokenReq:
		return s.handleToken(sess, m.Station.DeviceName, false)
	case *skinny.SPCPRegisterTokenRequest:
		return s.handleToken(sess, m.Station.DeviceName, true)
	case *skinny.Register:
		return s.handleRegister(sess, m)
	case *skinny.Alarm:
		sess.Log().Infof("alarm %d: %s (%d, %d)", m.Severity, m.Text, m.Param1, m.Param2)
		return nil
	case *skinny.XMLAlarm:
		sess.Log().Infof("xml alarm: %s", m.Data)
		return nil
	}

	p := s.phone(sess.DeviceID())
	if p == nil || p.sess != sess {
		sess.Log().Debugf("%s before registration", msg.ID())
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.handlePhone(p, msg)
}

func (s *Server) handlePhone(p *phone, msg skinny.Message) error {
	d := p.dev
	switch m := msg.(type) {
	case *skinny.ButtonTemplateReq:
		s.send(p, d.Template().Message())
	case *skinny.SoftKeyTemplateReq:
		s.send(p, softkey.TemplateMessage())
	case *skinny.SoftKeySetReq:
		s.send(p, s.softKeySet(d).SetMessage(keyEnabled(d.Config())))
	case *skinny.LineStatReq:
		name, ok := d.Template().Line(m.LineNumber)
		if !ok {
			return fmt.Errorf("line status for unknown instance %d", m.LineNumber)
		}
		s.send(p, s.lineStat(m.LineNumber, name))
	case *skinny.SpeedDialStatReq:
		b, _ := d.Template().SpeedDial(m.Number)
		s.send(p, &skinny.SpeedDialStat{Number: m.Number, DirNumber: b.Option, DisplayName: b.Name})
	case *skinny.ForwardStatReq:
		s.send(p, p.sess.Protocol().CallForward(forwardStat(m.LineNumber, d.Forward(m.LineNumber))))
	case *skinny.ConfigStatReq:
		tmpl := d.Template()
		s.send(p, &skinny.ConfigStat{
			Station:          skinny.StationIdentifier{DeviceName: d.ID},
			ServerName:       s.Global().ServerName,
			NumberLines:      uint32(len(tmpl.Lines())),
			NumberSpeedDials: uint32(len(tmpl.SpeedDials())),
		})
	case *skinny.TimeDateReq:
		s.send(p, timeDate(time.Now(), d.Config().TZOffset))
	case *skinny.VersionReq:
		s.send(p, &skinny.Version{Version: d.Config().ImageVersion})
	case *skinny.ServiceURLStatReq:
		b, _ := d.Template().ServiceURL(m.Index)
		s.send(p, &skinny.ServiceURLStat{Index: m.Index, URL: b.Option, Label: b.Name})
	case *skinny.FeatureStatReq:
		b, ok := d.Template().Feature(m.Instance)
		if !ok {
			return fmt.Errorf("feature status for unknown instance %d", m.Instance)
		}
		s.send(p, featureStat(m.Instance, b, d.Features()))

	case *skinny.CapabilitiesRes:
		s.capabilities(p, m.Caps)
	case *skinny.UpdateCapabilities:
		s.capabilities(p, m.AudioCaps)

	case *skinny.HeadsetStatus:
		p.sess.Log().Debugf("headset mode %d", m.Mode)
	case *skinny.AccessoryStatus:
		p.sess.Log().Debugf("accessory %d status %d", m.Accessory, m.Status)
	case *skinny.RegisterAvailableLines:
		p.sess.Log().Debugf("%d lines available", m.MaxLines)
	case *skinny.IpPort:
		p.sess.Log().Debugf("rtp port %d", m.RTPPort)
	case *skinny.DialedPhoneBook:
		p.sess.Log().Debugf("phone book entry %d: %s", m.NumberIndex, m.PhoneNumber)

	case *skinny.OpenReceiveChannelAck:
		return s.openAck(p, m)
	case *skinny.OpenMultiMediaReceiveChannelAck:
		return s.openAck(p, &m.OpenReceiveChannelAck)
	case *skinny.StartMediaTransmissionAck:
		return s.startAck(p, m)
	case *skinny.ConnectionStatisticsRes:
		if c := s.reg.Channel(m.CallReference); c != nil {
			rtp.RecordStats(c, m)
		}
		s.rtpLog.WithField("device", d.ID).Debugf("call %d: sent %d recv %d lost %d jitter %d",
			m.CallReference, m.SentPackets, m.RecvPackets, m.LostPackets, m.Jitter)

	case *skinny.OffHook:
		return s.offHook(p, m.LineInstance, m.CallReference)
	case *skinny.OffHookWithCgpn:
		return s.offHook(p, 0, 0)
	case *skinny.OnHook:
		return s.onHook(p, m.LineInstance, m.CallReference)
	case *skinny.KeypadButton:
		return s.digit(p, m.LineInstance, m.CallReference, m.Digit())
	case *skinny.EnblocCall:
		return s.enbloc(p, m.CalledParty)
	case *skinny.StimulusMsg:
		return s.stimulus(p, m.Stimulus, m.Instance)
	case *skinny.SoftKeyEvent:
		return s.softKeyEvent(p, softkey.Event{
			Label:         softkey.Label(m.Event),
			LineInstance:  m.LineInstance,
			CallReference: m.CallReference,
		})
	case *skinny.HookFlash:
		if c := s.activeChannel(p, 0); c != nil {
			return s.transfer(p, c)
		}

	default:
		p.sess.Log().Debugf("unhandled %s", msg.ID())
	}
	return nil
}

// capabilities records the codecs of the phone. The first report takes
// the device into service.
func (s *Server) capabilities(p *phone, caps []skinny.MediaCapability) {
	codecs := make([]skinny.Codec, 0, len(caps))
	for _, c := range caps {
		codecs = append(codecs, c.Codec)
	}
	p.dev.SetCaps(codecs)
	if p.sess.State() != session.StateRegistered {
		return
	}
	if err := p.sess.Fire(session.EventInService); err != nil {
		p.sess.Log().Debugf("in service: %v", err)
		return
	}
	s.inService(p)
}

// enbloc dials a whole number at once, on the call collecting digits or a
// new one.
func (s *Server) enbloc(p *phone, number string) error {
	c := s.collecting(p)
	if c == nil {
		var err error
		if c, err = s.newCall(p, 0); err != nil {
			return err
		}
	}
	return s.dial(p, c, number)
}

// collecting returns the call that is waiting for digits, if any.
func (s *Server) collecting(p *phone) *model.Channel {
	c := s.activeChannel(p, 0)
	if c == nil {
		return nil
	}
	switch c.State() {
	case callstate.OffHook, callstate.DigitsFoll, callstate.GetDigits:
		return c
	}
	return nil
}
