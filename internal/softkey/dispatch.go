package softkey

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrKeyNotActive is returned for a key that is not on the row the
	// phone is currently showing.
	ErrKeyNotActive = errors.New("softkey: key is not active")
	// ErrNoHandler is returned for a label nothing is registered for.
	ErrNoHandler = errors.New("softkey: no handler")
)

// Event is a decoded SoftKeyEvent.
type Event struct {
	Label         Label
	LineInstance  uint32
	CallReference uint32
}

// HandlerFunc runs the feature bound to a softkey. C is whatever context the
// caller resolves for the event, normally the device the key was pressed on.
type HandlerFunc[C any] func(c C, ev Event) error

// Dispatcher maps labels to feature handlers.
type Dispatcher[C any] struct {
	mu       sync.RWMutex
	handlers map[Label]HandlerFunc[C]
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher[C any]() *Dispatcher[C] {
	return &Dispatcher[C]{handlers: make(map[Label]HandlerFunc[C])}
}

// Handle binds fn to label l, replacing an earlier binding.
func (d *Dispatcher[C]) Handle(l Label, fn HandlerFunc[C]) {
	d.mu.Lock()
	d.handlers[l] = fn
	d.mu.Unlock()
}

// Handles reports whether a handler is bound to l.
func (d *Dispatcher[C]) Handles(l Label) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[l]
	return ok
}

// Dispatch resolves ev against the row of mode in set and runs the bound
// handler. A nil set skips the row check, which is what a phone pressing a
// key outside any call (on a fresh registration) needs.
func (d *Dispatcher[C]) Dispatch(c C, set *Set, mode KeyMode, ev Event) error {
	if set != nil && !set.Contains(mode, ev.Label) {
		return fmt.Errorf("%s in %s: %w", ev.Label, mode, ErrKeyNotActive)
	}
	d.mu.RLock()
	fn, ok := d.handlers[ev.Label]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", ev.Label, ErrNoHandler)
	}
	return fn(c, ev)
}
