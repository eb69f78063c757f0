package model

import (
	"errors"
	"net/netip"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sccpd/internal/config"
	"sccpd/internal/protocol"
	"sccpd/internal/skinny"
)

// ErrNotRegistered is returned when sending to a device without a session.
var ErrNotRegistered = errors.New("model: device not registered")

// ErrAlreadyRegistered is returned by Attach when another session holds the
// device.
var ErrAlreadyRegistered = errors.New("model: device already registered")

// Link is the session a registered device talks through.
type Link interface {
	Send(msg skinny.Message) error
	SendAll(msgs ...skinny.Message) error
	Protocol() protocol.Adaptor
	Close(cause error)
}

// Registration is what the phone told about itself when it registered.
type Registration struct {
	Type       uint32
	Addr       netip.Addr // socket peer
	PhoneIP    netip.Addr // address in the Register message
	MaxStreams uint32
	MaxButtons uint32
}

// Forward is the call forward state of one line appearance.
type Forward struct {
	All      string
	Busy     string
	NoAnswer string
}

// Features are the runtime toggles that survive a restart through the
// feature store.
type Features struct {
	DND        config.DNDMode
	Privacy    uint32
	Monitor    bool
	LastDialed string

	// Message is the sticky notification shown while idle.
	Message        string
	MessageTimeout uint32
}

// Device is a phone, configured or registered.
type Device struct {
	ID string

	mu       sync.RWMutex
	cfg      *config.Device
	section  *config.Section
	link     Link
	reg      Registration
	since    time.Time
	caps     []skinny.Codec
	template *Template
	features Features
	forwards map[uint32]Forward
	lamps    map[uint32]skinny.LampMode
	calls    map[uint32]struct{}
	hotline  bool

	pendingUpdate atomic.Bool
	pendingDelete atomic.Bool
}

// NewDevice creates a device from its applied configuration. sec is the
// section it came from; lines on the device inherit from it.
func NewDevice(id string, cfg *config.Device, sec *config.Section) *Device {
	return &Device{
		ID:       id,
		cfg:      cfg,
		section:  sec,
		forwards: make(map[uint32]Forward),
		lamps:    make(map[uint32]skinny.LampMode),
		calls:    make(map[uint32]struct{}),
	}
}

// Config returns the current configuration. It is replaced, never
// modified, so the caller may keep it.
func (d *Device) Config() *config.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Section returns the configuration section of the device.
func (d *Device) Section() *config.Section {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.section
}

// SetConfig replaces the configuration.
func (d *Device) SetConfig(cfg *config.Device, sec *config.Section) {
	d.mu.Lock()
	d.cfg = cfg
	d.section = sec
	d.mu.Unlock()
}

// Attach binds a registered session to the device.
func (d *Device) Attach(link Link, reg Registration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.link != nil {
		return ErrAlreadyRegistered
	}
	d.link = link
	d.reg = reg
	d.since = time.Now()
	return nil
}

// Detach unbinds the session and clears the per registration state. It
// returns the link that was attached.
func (d *Device) Detach() Link {
	d.mu.Lock()
	defer d.mu.Unlock()
	link := d.link
	d.link = nil
	d.caps = nil
	d.template = nil
	clear(d.lamps)
	return link
}

// Link returns the attached session, nil when unregistered.
func (d *Device) Link() Link {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.link
}

// Registered reports whether a session is attached.
func (d *Device) Registered() bool { return d.Link() != nil }

// Registration returns what the phone reported at registration.
func (d *Device) Registration() Registration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reg
}

// RegisteredAt returns when the current session attached.
func (d *Device) RegisteredAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.since
}

// Send writes msgs in order to the phone.
func (d *Device) Send(msgs ...skinny.Message) error {
	link := d.Link()
	if link == nil {
		return ErrNotRegistered
	}
	return link.SendAll(msgs...)
}

// Protocol returns the encoders of the attached session.
func (d *Device) Protocol() protocol.Adaptor {
	if link := d.Link(); link != nil {
		return link.Protocol()
	}
	return protocol.For(skinny.MinProtocolVersion)
}

// Caps returns the codecs the phone announced.
func (d *Device) Caps() []skinny.Codec {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.caps
}

// SetCaps records the codecs the phone announced.
func (d *Device) SetCaps(caps []skinny.Codec) {
	d.mu.Lock()
	d.caps = caps
	d.mu.Unlock()
}

// Template returns the button template built at registration.
func (d *Device) Template() *Template {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.template
}

// SetTemplate stores the button template.
func (d *Device) SetTemplate(t *Template) {
	d.mu.Lock()
	d.template = t
	d.mu.Unlock()
}

// Features returns a copy of the runtime toggles.
func (d *Device) Features() Features {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.features
}

// UpdateFeatures changes the runtime toggles under the device lock.
func (d *Device) UpdateFeatures(fn func(*Features)) Features {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.features)
	return d.features
}

// Forward returns the call forward state of a line instance.
func (d *Device) Forward(instance uint32) Forward {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.forwards[instance]
}

// SetForward changes the call forward state of a line instance.
func (d *Device) SetForward(instance uint32, f Forward) {
	d.mu.Lock()
	if f == (Forward{}) {
		delete(d.forwards, instance)
	} else {
		d.forwards[instance] = f
	}
	d.mu.Unlock()
}

// Lamp returns the lamp mode a line button currently shows.
func (d *Device) Lamp(instance uint32) skinny.LampMode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if m, ok := d.lamps[instance]; ok {
		return m
	}
	return skinny.LampOff
}

// SetLamp records the lamp mode of a line button.
func (d *Device) SetLamp(instance uint32, m skinny.LampMode) {
	d.mu.Lock()
	d.lamps[instance] = m
	d.mu.Unlock()
}

// Hotline reports whether the device registered without a configuration
// of its own.
func (d *Device) Hotline() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hotline
}

// SetHotline marks the device as a hotline phone.
func (d *Device) SetHotline(v bool) {
	d.mu.Lock()
	d.hotline = v
	d.mu.Unlock()
}

func (d *Device) addCall(ref uint32) {
	d.mu.Lock()
	d.calls[ref] = struct{}{}
	d.mu.Unlock()
}

func (d *Device) removeCall(ref uint32) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.calls, ref)
	return len(d.calls)
}

// CallCount returns the number of live call legs.
func (d *Device) CallCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.calls)
}

// Calls lists the call references of the live legs in ascending order.
func (d *Device) Calls() []uint32 {
	d.mu.RLock()
	out := make([]uint32, 0, len(d.calls))
	for ref := range d.calls {
		out = append(out, ref)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PendingUpdate reports whether a configuration change waits for a reset.
func (d *Device) PendingUpdate() bool { return d.pendingUpdate.Load() }

// SetPendingUpdate flags or clears a waiting reset.
func (d *Device) SetPendingUpdate(v bool) { d.pendingUpdate.Store(v) }

// PendingDelete reports whether the last reload did not mention the device.
func (d *Device) PendingDelete() bool { return d.pendingDelete.Load() }

// SetPendingDelete flags or clears the device for removal.
func (d *Device) SetPendingDelete(v bool) { d.pendingDelete.Store(v) }

// TakePendingUpdate clears the pending update flag and reports whether it
// was set. Only one caller wins.
func (d *Device) TakePendingUpdate() bool { return d.pendingUpdate.CompareAndSwap(true, false) }
