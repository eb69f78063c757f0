package server

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"sccpd/internal/config"
	"sccpd/internal/model"
	"sccpd/internal/session"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

// Feature store layout. Per device keys live in the family
// "SCCP/<device>"; the idle message of every phone in "SCCP/message".
const (
	messageFamily = "SCCP/message"

	keyDND        = "dnd"
	keyMonitor    = "monitor"
	keyPrivacy    = "privacy"
	keyLastDialed = "lastDialedNumber"
	keyText       = "text"
	keyTimeout    = "timeout"
)

func deviceFamily(id string) string { return "SCCP/" + id }

// permitted applies the access list of a device. An address the list
// denies is still let in when one of the permithost names resolves to it.
func (s *Server) permitted(cfg *config.Device, peer netip.Addr) bool {
	if cfg.ACL().Allows(peer) {
		return true
	}
	peer = peer.Unmap()
	for _, host := range cfg.PermitHosts {
		ctx, cancel := s.opContext()
		addrs, err := s.resolve(ctx, host)
		cancel()
		if err != nil {
			s.log.Debugf("permithost %s: %v", host, err)
			continue
		}
		for _, a := range addrs {
			if a.Unmap() == peer {
				return true
			}
		}
	}
	return false
}

func (s *Server) handleToken(sess *session.Session, id string, spcp bool) error {
	if err := sess.Fire(session.EventToken); err != nil {
		sess.Log().Debugf("token: %v", err)
	}
	g := s.Global()
	pol := session.TokenPolicy{
		Secondary: g.Secondary,
		Mode:      g.Fallback,
		Backoff:   time.Duration(g.BackoffTime) * time.Second,
	}
	if pol.Defer(id) {
		s.metrics.Registration("token_rejected")
		sess.Log().Infof("token for %s rejected, retry in %s", id, pol.Backoff)
		var msg skinny.Message = &skinny.RegisterTokenReject{WaitTime: uint32(pol.Backoff / time.Second)}
		if spcp {
			msg = &skinny.SPCPRegisterTokenReject{}
		}
		if err := sess.Send(msg); err != nil {
			sess.Log().Debugf("token reject: %v", err)
		}
		return fmt.Errorf("%s: %w", id, session.ErrTokenDeny)
	}
	if spcp {
		return sess.Send(&skinny.SPCPRegisterTokenAck{})
	}
	return sess.Send(&skinny.RegisterTokenAck{})
}

// reject refuses a registration and ends the session.
func (s *Server) reject(sess *session.Session, id, text string) error {
	s.metrics.Registration("rejected")
	sess.Log().Warnf("registration of %s rejected: %s", id, text)
	if err := sess.Send(&skinny.RegisterReject{Text: text}); err != nil {
		sess.Log().Debugf("register reject: %v", err)
	}
	return fmt.Errorf("%s: %s: %w", id, text, session.ErrAuth)
}

func (s *Server) handleRegister(sess *session.Session, m *skinny.Register) error {
	id := m.Station.DeviceName
	if err := sess.Fire(session.EventRegister); err != nil {
		sess.Log().Warnf("register of %s in state %s ignored", id, sess.State())
		return nil
	}
	if id == "" {
		return s.reject(sess, id, "No Device Name")
	}

	g := s.Global()
	peer := peerAddr(sess.RemoteAddr())
	if peer.IsValid() && !g.ACL().Allows(peer) {
		return s.reject(sess, id, "Device ip not authorized")
	}

	d, ok := s.reg.RetainDevice(id)
	if !ok {
		var err error
		if d, err = s.hotlineDevice(id); err != nil {
			return s.reject(sess, id, "Unknown Device")
		}
	}
	cfg := d.Config()
	if peer.IsValid() && !s.permitted(cfg, peer) {
		s.reg.Refs().Release(d)
		return s.reject(sess, id, "Device ip not authorized")
	}

	err := d.Attach(sess, model.Registration{
		Type:       m.DeviceType,
		Addr:       peer,
		PhoneIP:    m.StationIP,
		MaxStreams: m.MaxStreams,
		MaxButtons: m.MaxButtons,
	})
	if err != nil {
		s.reg.Refs().Release(d)
		if errors.Is(err, model.ErrAlreadyRegistered) {
			return s.reject(sess, id, "Device already registered")
		}
		return s.reject(sess, id, err.Error())
	}

	p := &phone{dev: d, sess: sess}
	p.mu.Lock()
	defer p.mu.Unlock()
	s.mu.Lock()
	s.phones[id] = p
	s.mu.Unlock()

	sess.SetDeviceID(id)
	sess.SetVersion(m.ProtocolVersion())
	sess.SetKeepAlive(cfg.KeepAliveInterval())

	tmpl := model.BuildTemplate(cfg.Buttons, model.Capacity(m.DeviceType, m.MaxButtons, cfg.Addons))
	if tmpl.Dropped > 0 {
		sess.Log().Warnf("%d buttons do not fit on a type %d phone", tmpl.Dropped, m.DeviceType)
	}
	d.SetTemplate(tmpl)
	for _, e := range tmpl.Lines() {
		if l := s.reg.Line(e.Button.Name); l != nil {
			l.AddAppearance(id, uint32(e.Instance))
		} else {
			sess.Log().Warnf("button %d names unknown line %s", e.Instance, e.Button.Name)
		}
	}
	s.restoreFeatures(d)

	proto := sess.Protocol()
	msgs := []skinny.Message{
		proto.RegisterAck(uint32(cfg.KeepAlive), g.DateFormat),
		tmpl.Message(),
		s.softKeySet(d).SetMessage(keyEnabled(cfg)),
	}
	for _, e := range tmpl.Lines() {
		msgs = append(msgs, s.lineStat(uint32(e.Instance), e.Button.Name))
	}
	msgs = append(msgs, timeDate(time.Now(), cfg.TZOffset), &skinny.CapabilitiesReq{})
	if err := sess.SendAll(msgs...); err != nil {
		return err
	}
	if err := sess.Fire(session.EventRegistered); err != nil {
		sess.Log().Debugf("registered: %v", err)
	}
	s.metrics.Registration("ok")
	sess.Log().Infof("registered %s type %d protocol %d from %s", id, m.DeviceType, sess.Version(), sess.RemoteAddr())
	return nil
}

// hotlineDevice builds a device for an unconfigured phone when the hotline
// is enabled. The returned device is retained for the caller.
func (s *Server) hotlineDevice(id string) (*model.Device, error) {
	g := s.Global()
	if !g.HotlineEnabled {
		return nil, ErrUnknownDevice
	}
	globalSec := s.pipeline.GlobalSection()
	if s.reg.Line(model.HotlineName) == nil {
		lc := &config.Line{}
		config.ApplyLine(lc, nil, nil, globalSec)
		lc.Label = "Hotline"
		lc.Context = g.HotlineContext
		lc.CIDName = "hotline"
		if err := s.reg.AddLine(model.NewLine(model.HotlineName, lc, nil, false)); err != nil && !errors.Is(err, model.ErrExists) {
			return nil, err
		}
	}
	cfg := config.NewDevice(globalSec)
	cfg.Buttons = []config.Button{{Type: config.ButtonLine, Name: model.HotlineName, Option: "default"}}
	d := model.NewDevice(id, cfg, nil)
	d.SetHotline(true)
	if err := s.reg.AddDevice(d); err != nil && !errors.Is(err, model.ErrExists) {
		return nil, err
	}
	d, ok := s.reg.RetainDevice(id)
	if !ok {
		return nil, ErrUnknownDevice
	}
	s.log.Infof("%s registers as hotline to %s", id, g.HotlineExtension)
	return d, nil
}

// restoreFeatures reads the persisted toggles of d.
func (s *Server) restoreFeatures(d *model.Device) {
	ctx, cancel := s.opContext()
	defer cancel()
	kv, err := s.store.Family(ctx, deviceFamily(d.ID))
	if err != nil {
		s.log.Warnf("feature store for %s: %v", d.ID, err)
		return
	}
	d.UpdateFeatures(func(f *model.Features) {
		switch v, ok := kv[keyDND]; {
		case !ok:
		case v == config.DNDSilent.String():
			f.DND = config.DNDSilent
		default:
			f.DND = config.DNDReject
		}
		_, f.Monitor = kv[keyMonitor]
		if v, ok := kv[keyPrivacy]; ok {
			if n, err := strconv.ParseUint(v, 10, 32); err == nil {
				f.Privacy = uint32(n)
			}
		}
		f.LastDialed = kv[keyLastDialed]
	})
}

func (s *Server) putFeature(id, key, value string) {
	ctx, cancel := s.opContext()
	defer cancel()
	var err error
	if value == "" {
		err = s.store.Delete(ctx, deviceFamily(id), key)
	} else {
		err = s.store.Put(ctx, deviceFamily(id), key, value)
	}
	if err != nil {
		s.log.Warnf("feature store %s/%s: %v", id, key, err)
	}
}

// inService completes the registration once the phone has reported its
// capabilities: voicemail lamps, feature buttons and the idle message.
func (s *Server) inService(p *phone) {
	d := p.dev
	cfg := d.Config()
	tmpl := d.Template()
	var msgs []skinny.Message

	for _, e := range tmpl.Lines() {
		l := s.reg.Line(e.Button.Name)
		if l == nil {
			continue
		}
		ctx, cancel := s.opContext()
		var total, old int
		for _, mb := range l.Config().Mailboxes {
			n, o, err := s.pbx.Mailbox(ctx, mb.String())
			if err != nil {
				s.log.Debugf("mailbox %s: %v", mb, err)
				continue
			}
			total, old = total+n, old+o
		}
		cancel()
		l.SetMessages(total, old)
	}
	msgs = append(msgs, s.mwiLamps(d)...)

	f := d.Features()
	for _, e := range tmpl.Features() {
		msgs = append(msgs, featureStat(uint32(e.Instance), e.Button, f))
	}
	if f.DND != config.DNDOff && cfg.DNDFeature {
		msgs = append(msgs, p.sess.Protocol().DisplayNotify(5, softkey.LabelDND.WireText()))
	}
	msgs = append(msgs, s.idleMessage(p)...)
	if err := p.sess.SendAll(msgs...); err != nil {
		p.sess.Log().Debugf("in service: %v", err)
	}
}

// idleMessage renders the sticky text set for all phones, or the device's
// own message.
func (s *Server) idleMessage(p *phone) []skinny.Message {
	f := p.dev.Features()
	text, timeout := f.Message, f.MessageTimeout
	if text == "" {
		ctx, cancel := s.opContext()
		kv, err := s.store.Family(ctx, messageFamily)
		cancel()
		if err != nil {
			s.log.Debugf("message store: %v", err)
			return nil
		}
		text = kv[keyText]
		if n, err := strconv.ParseUint(kv[keyTimeout], 10, 32); err == nil {
			timeout = uint32(n)
		}
	}
	if text == "" {
		return nil
	}
	proto := p.sess.Protocol()
	if timeout > 0 {
		return []skinny.Message{proto.DisplayPriNotify(skinny.PriorityMedium, timeout, text)}
	}
	return []skinny.Message{proto.DisplayPrompt(0, 0, 0, text)}
}

// SetMessage shows text on every registered phone and keeps it for phones
// registering later. An empty text clears it.
func (s *Server) SetMessage(text string, timeout uint32) error {
	ctx, cancel := s.opContext()
	defer cancel()
	if text == "" {
		if err := s.store.Delete(ctx, messageFamily, keyText); err != nil {
			return err
		}
	} else {
		if err := s.store.Put(ctx, messageFamily, keyText, text); err != nil {
			return err
		}
		if err := s.store.Put(ctx, messageFamily, keyTimeout, strconv.FormatUint(uint64(timeout), 10)); err != nil {
			return err
		}
	}
	for _, p := range s.registered() {
		p.mu.Lock()
		msgs := s.idleMessage(p)
		if text == "" {
			msgs = []skinny.Message{&skinny.ClearPromptStatus{}}
		}
		if err := p.sess.SendAll(msgs...); err != nil {
			p.sess.Log().Debugf("message: %v", err)
		}
		p.mu.Unlock()
	}
	return nil
}

func (s *Server) registered() []*phone {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*phone, 0, len(s.phones))
	for _, p := range s.phones {
		out = append(out, p)
	}
	return out
}

// Unregister releases the device of a session leaving service: calls are
// hung up and the line appearances removed.
func (s *Server) Unregister(sess *session.Session, cause error) {
	id := sess.DeviceID()
	p := s.phone(id)
	if p == nil || p.sess != sess {
		return
	}
	p.mu.Lock()
	for _, c := range s.reg.DeviceChannels(id) {
		s.endCall(p, c, true)
	}
	d := p.dev
	d.Detach()
	for _, e := range d.Template().Lines() {
		if l := s.reg.Line(e.Button.Name); l != nil {
			l.RemoveAppearance(id)
		}
	}
	p.mu.Unlock()

	s.mu.Lock()
	delete(s.phones, id)
	s.mu.Unlock()
	if d.Hotline() {
		s.reg.RemoveDevice(id)
	}
	s.reg.Refs().Release(d)

	if cause != nil {
		sess.Log().Infof("unregistered %s: %v", id, cause)
	} else {
		sess.Log().Infof("unregistered %s", id)
	}
}

func (s *Server) softKeySet(d *model.Device) *softkey.Set {
	return s.reg.SoftKeySet(d.Config().SoftKeySet)
}

// keyEnabled vetoes the softkeys of features the device has switched off.
func keyEnabled(cfg *config.Device) func(softkey.Label) bool {
	return func(l softkey.Label) bool {
		switch l {
		case softkey.LabelTransfer, softkey.LabelDirTrfr:
			return cfg.Transfer
		case softkey.LabelPark:
			return cfg.Park
		case softkey.LabelCfwdAll:
			return cfg.CfwdAll
		case softkey.LabelCfwdBusy:
			return cfg.CfwdBusy
		case softkey.LabelCfwdNoAnswer:
			return cfg.CfwdNoAnswer
		case softkey.LabelDND:
			return cfg.DNDFeature
		case softkey.LabelPrivate:
			return cfg.Private
		case softkey.LabelMeetMe:
			return cfg.MeetMe
		}
		return true
	}
}

func (s *Server) lineStat(instance uint32, name string) *skinny.LineStat {
	m := &skinny.LineStat{LineNumber: instance, DirNumber: name}
	if l := s.reg.Line(name); l != nil {
		lc := l.Config()
		m.FullyQualifiedDisplayName = lc.CIDName
		m.DisplayName = lc.Label
	}
	return m
}

func timeDate(now time.Time, tzOffset int) *skinny.DefineTimeDate {
	t := now.Add(time.Duration(tzOffset) * time.Hour)
	return &skinny.DefineTimeDate{
		Year:         uint32(t.Year()),
		Month:        uint32(t.Month()),
		DayOfWeek:    uint32(t.Weekday()),
		Day:          uint32(t.Day()),
		Hour:         uint32(t.Hour()),
		Minute:       uint32(t.Minute()),
		Seconds:      uint32(t.Second()),
		Milliseconds: uint32(t.Nanosecond() / int(time.Millisecond)),
		SystemTime:   uint32(now.Unix()),
	}
}
