// Package model holds the live devices, lines, channels and softkey sets.
//
// Devices and lines refer to each other by name only. A channel holds a
// reference on its device and its line for as long as it lives.
package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"sccpd/internal/refcount"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

var (
	// ErrExists is returned when an object with the same name is already
	// registered.
	ErrExists = errors.New("model: already exists")
	// ErrGone is returned when an object could not be retained.
	ErrGone = errors.New("model: object is being destroyed")
)

// Registry is the set of live objects of one server.
type Registry struct {
	refs *refcount.Registry
	log  *logrus.Entry

	devMu   sync.RWMutex
	devices map[string]*Device

	lineMu sync.RWMutex
	lines  map[string]*Line

	setMu sync.RWMutex
	sets  map[string]*softkey.Set

	chanMu   sync.RWMutex
	channels map[uint32]*Channel

	callRef  atomic.Uint32
	passThru atomic.Uint32
}

// NewRegistry creates an empty registry on top of refs.
func NewRegistry(refs *refcount.Registry, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Registry{
		refs:     refs,
		log:      log,
		devices:  make(map[string]*Device),
		lines:    make(map[string]*Line),
		sets:     make(map[string]*softkey.Set),
		channels: make(map[uint32]*Channel),
	}
	r.passThru.Store(0x1000)
	r.sets[softkey.DefaultSetName] = softkey.Default()
	return r
}

// Refs returns the reference registry the objects live in.
func (r *Registry) Refs() *refcount.Registry { return r.refs }

// AddDevice publishes d. The registry owns the initial reference until
// RemoveDevice.
func (r *Registry) AddDevice(d *Device) error {
	r.devMu.Lock()
	defer r.devMu.Unlock()
	if _, ok := r.devices[d.ID]; ok {
		return fmt.Errorf("device %s: %w", d.ID, ErrExists)
	}
	id := d.ID
	if err := r.refs.Alloc(d, refcount.TypeDevice, id, func() {
		r.log.Debugf("device %s destroyed", id)
	}); err != nil {
		return err
	}
	r.devices[d.ID] = d
	return nil
}

// Device looks up a device without taking a reference.
func (r *Registry) Device(id string) *Device {
	r.devMu.RLock()
	defer r.devMu.RUnlock()
	return r.devices[id]
}

// RetainDevice looks up a device and takes a reference the caller must
// release.
func (r *Registry) RetainDevice(id string) (*Device, bool) {
	d := r.Device(id)
	if d == nil || !r.refs.Retain(d) {
		return nil, false
	}
	return d, true
}

// RemoveDevice unpublishes a device and drops the registry reference.
func (r *Registry) RemoveDevice(id string) bool {
	r.devMu.Lock()
	d, ok := r.devices[id]
	delete(r.devices, id)
	r.devMu.Unlock()
	if ok {
		r.refs.Release(d)
	}
	return ok
}

// EachDevice calls fn for every device, sorted by name. The list is taken
// under the read lock and each device is retained while fn runs, so fn may
// block or call back into the registry.
func (r *Registry) EachDevice(fn func(*Device)) {
	r.devMu.RLock()
	list := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		if r.refs.Retain(d) {
			list = append(list, d)
		}
	}
	r.devMu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	for _, d := range list {
		fn(d)
		r.refs.Release(d)
	}
}

// AddLine publishes l.
func (r *Registry) AddLine(l *Line) error {
	r.lineMu.Lock()
	defer r.lineMu.Unlock()
	if _, ok := r.lines[l.Name]; ok {
		return fmt.Errorf("line %s: %w", l.Name, ErrExists)
	}
	name := l.Name
	if err := r.refs.Alloc(l, refcount.TypeLine, name, func() {
		r.log.Debugf("line %s destroyed", name)
	}); err != nil {
		return err
	}
	r.lines[l.Name] = l
	return nil
}

// Line looks up a line without taking a reference.
func (r *Registry) Line(name string) *Line {
	r.lineMu.RLock()
	defer r.lineMu.RUnlock()
	return r.lines[name]
}

// RetainLine looks up a line and takes a reference.
func (r *Registry) RetainLine(name string) (*Line, bool) {
	l := r.Line(name)
	if l == nil || !r.refs.Retain(l) {
		return nil, false
	}
	return l, true
}

// RemoveLine unpublishes a line and drops the registry reference. Channels
// still on the line keep it alive until they end.
func (r *Registry) RemoveLine(name string) bool {
	r.lineMu.Lock()
	l, ok := r.lines[name]
	delete(r.lines, name)
	r.lineMu.Unlock()
	if ok {
		r.refs.Release(l)
	}
	return ok
}

// EachLine is EachDevice for lines.
func (r *Registry) EachLine(fn func(*Line)) {
	r.lineMu.RLock()
	list := make([]*Line, 0, len(r.lines))
	for _, l := range r.lines {
		if r.refs.Retain(l) {
			list = append(list, l)
		}
	}
	r.lineMu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	for _, l := range list {
		fn(l)
		r.refs.Release(l)
	}
}

// SoftKeySet returns the named set, or the default set when there is none.
func (r *Registry) SoftKeySet(name string) *softkey.Set {
	r.setMu.RLock()
	defer r.setMu.RUnlock()
	if s, ok := r.sets[name]; ok && !s.PendingDelete {
		return s
	}
	return r.sets[softkey.DefaultSetName]
}

// LookupSoftKeySet returns the named set only.
func (r *Registry) LookupSoftKeySet(name string) (*softkey.Set, bool) {
	r.setMu.RLock()
	defer r.setMu.RUnlock()
	s, ok := r.sets[name]
	return s, ok
}

// PutSoftKeySet adds or replaces a set.
func (r *Registry) PutSoftKeySet(s *softkey.Set) {
	r.setMu.Lock()
	r.sets[s.Name] = s
	r.setMu.Unlock()
}

// RemoveSoftKeySet drops a set. The default set cannot be removed.
func (r *Registry) RemoveSoftKeySet(name string) bool {
	if name == softkey.DefaultSetName {
		return false
	}
	r.setMu.Lock()
	defer r.setMu.Unlock()
	_, ok := r.sets[name]
	delete(r.sets, name)
	return ok
}

// SoftKeySets lists the sets sorted by name.
func (r *Registry) SoftKeySets() []*softkey.Set {
	r.setMu.RLock()
	out := make([]*softkey.Set, 0, len(r.sets))
	for _, s := range r.sets {
		out = append(out, s)
	}
	r.setMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MarkSoftKeySets sets the pending flags of every set but the default one.
func (r *Registry) MarkSoftKeySets(pendingDelete, pendingUpdate bool) {
	r.setMu.Lock()
	defer r.setMu.Unlock()
	for name, s := range r.sets {
		if name == softkey.DefaultSetName {
			continue
		}
		s.PendingDelete = pendingDelete
		s.PendingUpdate = pendingUpdate
	}
}

// NewChannel allocates a call leg on line l of device d with a fresh call
// reference. The channel holds a reference on d and l until it is
// destroyed.
func (r *Registry) NewChannel(d *Device, l *Line, instance uint32, typ skinny.CallType) (*Channel, error) {
	if !r.refs.Retain(d) {
		return nil, fmt.Errorf("device %s: %w", d.ID, ErrGone)
	}
	if !r.refs.Retain(l) {
		r.refs.Release(d)
		return nil, fmt.Errorf("line %s: %w", l.Name, ErrGone)
	}
	c := newChannel(r.callRef.Add(1), r.passThru.Add(1), d, l, instance, typ)
	if err := r.refs.Alloc(c, refcount.TypeChannel, c.String(), func() {
		r.refs.Release(l)
		r.refs.Release(d)
		r.log.Debugf("channel %d destroyed", c.CallRef)
	}); err != nil {
		r.refs.Release(l)
		r.refs.Release(d)
		return nil, err
	}
	r.chanMu.Lock()
	r.channels[c.CallRef] = c
	r.chanMu.Unlock()
	d.addCall(c.CallRef)
	return c, nil
}

// Channel looks up a live call leg by call reference.
func (r *Registry) Channel(ref uint32) *Channel {
	r.chanMu.RLock()
	defer r.chanMu.RUnlock()
	return r.channels[ref]
}

// RetainChannel looks up a call leg and takes a reference.
func (r *Registry) RetainChannel(ref uint32) (*Channel, bool) {
	c := r.Channel(ref)
	if c == nil || !r.refs.Retain(c) {
		return nil, false
	}
	return c, true
}

// EndChannel unpublishes c and drops the registry reference. It returns
// the number of calls left on the device.
func (r *Registry) EndChannel(c *Channel) int {
	r.chanMu.Lock()
	_, ok := r.channels[c.CallRef]
	delete(r.channels, c.CallRef)
	r.chanMu.Unlock()
	left := c.Device.removeCall(c.CallRef)
	if ok {
		r.refs.Release(c)
	}
	return left
}

// Channels lists the live call legs sorted by call reference.
func (r *Registry) Channels() []*Channel {
	r.chanMu.RLock()
	out := make([]*Channel, 0, len(r.channels))
	for _, c := range r.channels {
		out = append(out, c)
	}
	r.chanMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CallRef < out[j].CallRef })
	return out
}

// DeviceChannels lists the live call legs of one device, oldest first.
func (r *Registry) DeviceChannels(deviceID string) []*Channel {
	var out []*Channel
	for _, c := range r.Channels() {
		if c.Device.ID == deviceID {
			out = append(out, c)
		}
	}
	return out
}

// Counts reports the number of published devices, lines and channels.
func (r *Registry) Counts() (devices, lines, channels int) {
	r.devMu.RLock()
	devices = len(r.devices)
	r.devMu.RUnlock()
	r.lineMu.RLock()
	lines = len(r.lines)
	r.lineMu.RUnlock()
	r.chanMu.RLock()
	channels = len(r.channels)
	r.chanMu.RUnlock()
	return devices, lines, channels
}
