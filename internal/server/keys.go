package server

import (
	"errors"
	"fmt"

	"sccpd/internal/callstate"
	"sccpd/internal/config"
	"sccpd/internal/model"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

var errFeatureOff = errors.New("server: feature disabled")

// Feature button ids, taken from the option of a feature button.
const (
	featureDND     = "dnd"
	featurePrivacy = "privacy"
	featureMonitor = "monitor"
)

func (s *Server) newDispatcher() *softkey.Dispatcher[*phone] {
	k := softkey.NewDispatcher[*phone]()
	k.Handle(softkey.LabelRedial, func(p *phone, ev softkey.Event) error { return s.redial(p, ev.LineInstance) })
	k.Handle(softkey.LabelNewCall, func(p *phone, ev softkey.Event) error {
		if c := s.activeChannel(p, 0); c != nil {
			if c.State() != callstate.Connected {
				return nil
			}
			s.hold(p, c)
		}
		_, err := s.newCall(p, ev.LineInstance)
		return err
	})
	k.Handle(softkey.LabelDial, func(p *phone, ev softkey.Event) error {
		if c := s.channelFor(p, ev.LineInstance, ev.CallReference); c != nil && c.Digits() != "" {
			return s.dial(p, c, c.Digits())
		}
		return nil
	})
	k.Handle(softkey.LabelHold, func(p *phone, ev softkey.Event) error {
		if c := s.channelFor(p, ev.LineInstance, ev.CallReference); c != nil {
			s.hold(p, c)
		}
		return nil
	})
	k.Handle(softkey.LabelResume, func(p *phone, ev softkey.Event) error {
		if c := s.heldChannel(p, ev.CallReference); c != nil {
			s.resume(p, c)
		}
		return nil
	})
	xfer := func(p *phone, ev softkey.Event) error {
		if c := s.channelFor(p, ev.LineInstance, ev.CallReference); c != nil {
			return s.transfer(p, c)
		}
		return nil
	}
	k.Handle(softkey.LabelTransfer, xfer)
	k.Handle(softkey.LabelDirTrfr, xfer)
	k.Handle(softkey.LabelEndCall, func(p *phone, ev softkey.Event) error {
		if c := s.channelFor(p, ev.LineInstance, ev.CallReference); c != nil {
			s.endCall(p, c, true)
			return nil
		}
		if c := s.pickRinging(p, ev.CallReference); c != nil {
			s.endCall(p, c, false)
		}
		return nil
	})
	k.Handle(softkey.LabelAnswer, func(p *phone, ev softkey.Event) error {
		if c := s.pickRinging(p, ev.CallReference); c != nil {
			return s.answer(p, c)
		}
		return nil
	})
	k.Handle(softkey.LabelBackspace, func(p *phone, ev softkey.Event) error {
		if c := s.channelFor(p, ev.LineInstance, ev.CallReference); c != nil {
			s.backspace(p, c)
		}
		return nil
	})
	k.Handle(softkey.LabelCfwdAll, func(p *phone, ev softkey.Event) error { return s.forwardAll(p, ev.LineInstance) })
	k.Handle(softkey.LabelDND, func(p *phone, _ softkey.Event) error { return s.toggleDND(p) })
	k.Handle(softkey.LabelPrivate, func(p *phone, _ softkey.Event) error { return s.togglePrivacy(p) })
	k.Handle(softkey.LabelVoicemail, func(p *phone, ev softkey.Event) error { return s.voicemail(p, ev.LineInstance) })
	return k
}

// softKeyEvent runs a softkey against the row the phone shows for the
// call it was pressed on.
func (s *Server) softKeyEvent(p *phone, ev softkey.Event) error {
	mode := softkey.KeyModeOnHook
	c := s.channelFor(p, ev.LineInstance, ev.CallReference)
	if c == nil {
		c = s.pickRinging(p, ev.CallReference)
	}
	if c != nil {
		mode = callstate.KeyMode(c.State())
		if c.State() == callstate.Connected && p.dev.Config().Transfer {
			mode = softkey.KeyModeConnTrans
		}
	}
	err := s.keys.Dispatch(p, s.softKeySet(p.dev), mode, ev)
	if errors.Is(err, softkey.ErrKeyNotActive) || errors.Is(err, softkey.ErrNoHandler) {
		p.sess.Log().Debugf("softkey: %v", err)
		s.send(p, p.sess.Protocol().DisplayNotify(5, softkey.LabelKeyIsNotActive.WireText()))
		return nil
	}
	return err
}

// stimulus handles a press of a template button.
func (s *Server) stimulus(p *phone, st skinny.Stimulus, instance uint32) error {
	d := p.dev
	switch st {
	case skinny.StimulusLine:
		for _, c := range s.ringing(p) {
			if c.LineInstance == instance {
				return s.answer(p, c)
			}
		}
		if c := s.activeChannel(p, 0); c != nil {
			if c.State() != callstate.Connected {
				return nil
			}
			s.hold(p, c)
		}
		_, err := s.newCall(p, instance)
		return err
	case skinny.StimulusSpeedDial:
		b, ok := d.Template().SpeedDial(instance)
		if !ok {
			return fmt.Errorf("speeddial %d: not configured", instance)
		}
		return s.dialNumber(p, 0, b.Option)
	case skinny.StimulusLastNumberRedial:
		return s.redial(p, 0)
	case skinny.StimulusHold:
		if c := s.activeChannel(p, 0); c != nil {
			s.hold(p, c)
		} else if c := s.heldChannel(p, 0); c != nil {
			s.resume(p, c)
		}
	case skinny.StimulusTransfer:
		if c := s.activeChannel(p, 0); c != nil {
			return s.transfer(p, c)
		}
	case skinny.StimulusForwardAll:
		return s.forwardAll(p, instance)
	case skinny.StimulusVoiceMail:
		return s.voicemail(p, 0)
	case skinny.StimulusFeature:
		b, ok := d.Template().Feature(instance)
		if !ok {
			return fmt.Errorf("feature %d: not configured", instance)
		}
		switch b.Option {
		case featureDND:
			return s.toggleDND(p)
		case featurePrivacy:
			return s.togglePrivacy(p)
		case featureMonitor:
			f := d.UpdateFeatures(func(f *model.Features) { f.Monitor = !f.Monitor })
			value := ""
			if f.Monitor {
				value = "on"
			}
			s.putFeature(d.ID, keyMonitor, value)
			s.send(p, s.featureStats(p, featureMonitor)...)
		default:
			return fmt.Errorf("feature %d: unknown id %q", instance, b.Option)
		}
	case skinny.StimulusServiceURL:
		p.sess.Log().Debugf("service url %d pressed", instance)
	default:
		p.sess.Log().Debugf("unhandled stimulus %#x on %d", uint32(st), instance)
	}
	return nil
}

// heldChannel returns the held call ref, or the newest held call.
func (s *Server) heldChannel(p *phone, ref uint32) *model.Channel {
	if c := s.reg.Channel(ref); c != nil && c.Device == p.dev && c.State() == callstate.Hold {
		return c
	}
	var found *model.Channel
	for _, c := range s.reg.DeviceChannels(p.dev.ID) {
		if c.State() == callstate.Hold {
			found = c
		}
	}
	return found
}

// dialNumber dials number on the call collecting digits, or on a new call
// of instance.
func (s *Server) dialNumber(p *phone, instance uint32, number string) error {
	c := s.collecting(p)
	if c == nil {
		if a := s.activeChannel(p, 0); a != nil {
			if a.State() != callstate.Connected {
				return nil
			}
			s.hold(p, a)
		}
		var err error
		if c, err = s.newCall(p, instance); err != nil {
			return err
		}
	}
	return s.dial(p, c, number)
}

func (s *Server) redial(p *phone, instance uint32) error {
	last := p.dev.Features().LastDialed
	if last == "" {
		p.sess.Log().Debugf("redial: nothing dialed yet")
		return nil
	}
	return s.dialNumber(p, instance, last)
}

func (s *Server) voicemail(p *phone, instance uint32) error {
	tmpl := p.dev.Template()
	if instance == 0 {
		instance = tmpl.DefaultLine()
	}
	name, ok := tmpl.Line(instance)
	if !ok {
		return fmt.Errorf("voicemail on instance %d: %w", instance, errNoLine)
	}
	l := s.reg.Line(name)
	if l == nil || l.Config().VMNum == "" {
		return fmt.Errorf("voicemail on %s: no vmnum", name)
	}
	return s.dialNumber(p, instance, l.Config().VMNum)
}

// forwardAll switches call forward all off, or opens a call collecting
// the forward target.
func (s *Server) forwardAll(p *phone, instance uint32) error {
	d := p.dev
	if !d.Config().CfwdAll {
		return fmt.Errorf("cfwdall on %s: %w", d.ID, errFeatureOff)
	}
	if instance == 0 {
		instance = d.Template().DefaultLine()
	}
	if fwd := d.Forward(instance); fwd.All != "" {
		fwd.All = ""
		d.SetForward(instance, fwd)
		s.send(p, p.sess.Protocol().CallForward(forwardStat(instance, fwd)))
		s.callLog.WithField("device", d.ID).Infof("forward all on %d cleared", instance)
		return nil
	}
	if s.activeChannel(p, 0) != nil {
		return nil
	}
	c, err := s.newCall(p, instance)
	if err != nil {
		return err
	}
	p.forwardRef = c.CallRef
	s.send(p, p.sess.Protocol().DisplayPrompt(instance, c.CallRef, 0, softkey.LabelCfwdAll.WireText()))
	return nil
}

// finishForward stores the collected forward target and drops the
// collecting call.
func (s *Server) finishForward(p *phone, c *model.Channel, number string) {
	d := p.dev
	inst := c.LineInstance
	fwd := d.Forward(inst)
	fwd.All = number
	d.SetForward(inst, fwd)
	p.forwardRef = 0
	s.endCall(p, c, true)
	proto := p.sess.Protocol()
	s.send(p,
		proto.CallForward(forwardStat(inst, fwd)),
		proto.DisplayNotify(5, softkey.LabelForwardedTo.WireText()+" "+number),
	)
	s.callLog.WithField("device", d.ID).Infof("forward all on %d to %s", inst, number)
}

func forwardStat(instance uint32, fwd model.Forward) skinny.ForwardStat {
	fs := skinny.ForwardStat{
		LineNumber:         instance,
		CfwdAllNumber:      fwd.All,
		CfwdBusyNumber:     fwd.Busy,
		CfwdNoAnswerNumber: fwd.NoAnswer,
	}
	if fwd.All != "" {
		fs.CfwdAllStatus, fs.Status = 1, 1
	}
	if fwd.Busy != "" {
		fs.CfwdBusyStatus, fs.Status = 1, 1
	}
	if fwd.NoAnswer != "" {
		fs.CfwdNoAnswerStatus, fs.Status = 1, 1
	}
	return fs
}

// toggleDND switches do not disturb off, or on in the mode of the
// device's default line.
func (s *Server) toggleDND(p *phone) error {
	d := p.dev
	if !d.Config().DNDFeature {
		return fmt.Errorf("dnd on %s: %w", d.ID, errFeatureOff)
	}
	next := config.DNDOff
	if d.Features().DND == config.DNDOff {
		next = config.DNDReject
		if name, ok := d.Template().Line(d.Template().DefaultLine()); ok {
			if l := s.reg.Line(name); l != nil && l.Config().DND == config.DNDSilent {
				next = config.DNDSilent
			}
		}
	}
	d.UpdateFeatures(func(f *model.Features) { f.DND = next })
	value := ""
	if next != config.DNDOff {
		value = next.String()
	}
	s.putFeature(d.ID, keyDND, value)

	msgs := s.featureStats(p, featureDND)
	if next != config.DNDOff {
		msgs = append(msgs, p.sess.Protocol().DisplayNotify(5, softkey.LabelDND.WireText()))
	} else {
		msgs = append(msgs, &skinny.ClearNotify{})
	}
	s.send(p, msgs...)
	s.callLog.WithField("device", d.ID).Infof("dnd %s", next)
	return nil
}

// togglePrivacy hides or shows the caller id on the next calls.
func (s *Server) togglePrivacy(p *phone) error {
	d := p.dev
	if !d.Config().Private {
		return fmt.Errorf("privacy on %s: %w", d.ID, errFeatureOff)
	}
	f := d.UpdateFeatures(func(f *model.Features) {
		if f.Privacy == 0 {
			f.Privacy = 1
		} else {
			f.Privacy = 0
		}
	})
	value := ""
	if f.Privacy != 0 {
		value = "1"
	}
	s.putFeature(d.ID, keyPrivacy, value)
	msgs := s.featureStats(p, featurePrivacy)
	if f.Privacy != 0 {
		msgs = append(msgs, p.sess.Protocol().DisplayNotify(5, softkey.LabelPrivate.WireText()))
	}
	s.send(p, msgs...)
	return nil
}

// featureStats renders every feature button bound to id.
func (s *Server) featureStats(p *phone, id string) []skinny.Message {
	f := p.dev.Features()
	var out []skinny.Message
	for _, e := range p.dev.Template().Features() {
		if e.Button.Option == id {
			out = append(out, featureStat(uint32(e.Instance), e.Button, f))
		}
	}
	return out
}

func featureStat(instance uint32, b config.Button, f model.Features) *skinny.FeatureStat {
	on := false
	switch b.Option {
	case featureDND:
		on = f.DND != config.DNDOff
	case featurePrivacy:
		on = f.Privacy != 0
	case featureMonitor:
		on = f.Monitor
	}
	status := skinny.FeatureStatusOff
	if on {
		status = skinny.FeatureStatusOn
	}
	return &skinny.FeatureStat{
		Instance:  instance,
		FeatureID: uint32(skinny.StimulusFeature),
		Label:     b.Name,
		Status:    status,
	}
}
