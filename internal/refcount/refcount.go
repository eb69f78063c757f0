// Package refcount keeps a process-wide table of reference counted objects.
//
// Objects are registered by identity (a comparable value, normally a pointer)
// together with a type tag, a human readable identifier and a destructor. The
// destructor runs synchronously on the release that drops the count to zero.
package refcount

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Type tags the kind of a registered object.
type Type string

const (
	TypeDevice  Type = "device"
	TypeLine    Type = "line"
	TypeChannel Type = "channel"
	TypeSession Type = "session"
	TypeEvent   Type = "event"
)

type object struct {
	typ        Type
	identifier atomic.Value // string
	refs       int32
	destructor func()
}

// Info is a point-in-time view of one registered object.
type Info struct {
	Type       Type
	Identifier string
	Refs       int32
}

// Registry maps object identity to its reference count.
type Registry struct {
	mu      sync.RWMutex
	objects map[any]*object

	pendingMu sync.Mutex
	pending   []any

	log *logrus.Entry
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{objects: make(map[any]*object), log: log}
}

// Alloc registers obj with a count of one. The caller owns that reference.
func (r *Registry) Alloc(obj any, typ Type, identifier string, destructor func()) error {
	o := &object{typ: typ, refs: 1, destructor: destructor}
	o.identifier.Store(identifier)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[obj]; ok {
		return fmt.Errorf("refcount: %s %q already registered", typ, identifier)
	}
	r.objects[obj] = o
	return nil
}

// Retain takes a new reference. It fails when obj is unknown or already
// on its way to destruction.
func (r *Registry) Retain(obj any) bool {
	if obj == nil {
		return false
	}
	r.mu.RLock()
	o, ok := r.objects[obj]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	for {
		n := atomic.LoadInt32(&o.refs)
		if n <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&o.refs, n, n+1) {
			return true
		}
	}
}

// Release drops a reference. The release that reaches zero unregisters the
// object and runs its destructor before returning.
func (r *Registry) Release(obj any) {
	if obj == nil {
		return
	}
	r.mu.RLock()
	o, ok := r.objects[obj]
	r.mu.RUnlock()
	if !ok {
		r.log.Warnf("release of unknown object %T", obj)
		return
	}
	n := atomic.AddInt32(&o.refs, -1)
	switch {
	case n > 0:
		return
	case n < 0:
		r.log.Errorf("over-release of %s %q", o.typ, o.identifier.Load())
		return
	}

	r.mu.Lock()
	delete(r.objects, obj)
	r.mu.Unlock()

	r.log.Debugf("destroying %s %q", o.typ, o.identifier.Load())
	if o.destructor != nil {
		o.destructor()
	}
}

// WithRef runs fn while holding a reference on obj. fn is skipped when the
// reference cannot be taken; the reference is always dropped after fn, even
// when fn panics.
func (r *Registry) WithRef(obj any, fn func()) bool {
	if !r.Retain(obj) {
		r.log.Debugf("with ref: failed to retain %T", obj)
		return false
	}
	defer r.Release(obj)
	fn()
	return true
}

// UpdateIdentifier renames a registered object.
func (r *Registry) UpdateIdentifier(obj any, identifier string) {
	r.mu.RLock()
	o, ok := r.objects[obj]
	r.mu.RUnlock()
	if ok {
		o.identifier.Store(identifier)
	}
}

// ScheduleCleanup queues a release of obj to be performed by the next Sweep.
func (r *Registry) ScheduleCleanup(obj any) {
	r.pendingMu.Lock()
	r.pending = append(r.pending, obj)
	r.pendingMu.Unlock()
}

// Sweep performs all queued releases and returns how many ran.
func (r *Registry) Sweep() int {
	r.pendingMu.Lock()
	pending := r.pending
	r.pending = nil
	r.pendingMu.Unlock()

	for _, obj := range pending {
		r.Release(obj)
	}
	return len(pending)
}

// Refs returns the current count of obj, zero when unknown.
func (r *Registry) Refs(obj any) int32 {
	r.mu.RLock()
	o, ok := r.objects[obj]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt32(&o.refs)
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Snapshot lists live objects sorted by type and identifier.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.objects))
	for _, o := range r.objects {
		out = append(out, Info{
			Type:       o.typ,
			Identifier: o.identifier.Load().(string),
			Refs:       atomic.LoadInt32(&o.refs),
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}
