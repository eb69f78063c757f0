package model

import (
	"sort"
	"sync"
	"sync/atomic"

	"sccpd/internal/config"
)

// Appearance is a line shown on a device button.
type Appearance struct {
	Device   string
	Instance uint32
}

// HotlineName names the line unknown devices are bound to when the
// hotline is enabled.
const HotlineName = "hotline"

// Line is a directory number. It may appear on several devices.
type Line struct {
	Name string

	mu          sync.RWMutex
	cfg         *config.Line
	section     *config.Section
	realtime    bool
	appearances map[string]uint32
	newMsgs     int
	oldMsgs     int

	pendingUpdate atomic.Bool
	pendingDelete atomic.Bool
}

// NewLine creates a line from its applied configuration. realtime marks
// lines read from the database rather than the file.
func NewLine(name string, cfg *config.Line, sec *config.Section, realtime bool) *Line {
	return &Line{
		Name:        name,
		cfg:         cfg,
		section:     sec,
		realtime:    realtime,
		appearances: make(map[string]uint32),
	}
}

// Config returns the current configuration. It is replaced, never
// modified.
func (l *Line) Config() *config.Line {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Section returns the section the line was applied from.
func (l *Line) Section() *config.Section {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.section
}

// SetConfig replaces the configuration.
func (l *Line) SetConfig(cfg *config.Line, sec *config.Section, realtime bool) {
	l.mu.Lock()
	l.cfg = cfg
	l.section = sec
	l.realtime = realtime
	l.mu.Unlock()
}

// Realtime reports whether the line came from the database.
func (l *Line) Realtime() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realtime
}

// AddAppearance records that device shows the line on button instance.
func (l *Line) AddAppearance(device string, instance uint32) {
	l.mu.Lock()
	l.appearances[device] = instance
	l.mu.Unlock()
}

// RemoveAppearance forgets device and returns how many appearances remain.
// A line without appearances stays configured but idle.
func (l *Line) RemoveAppearance(device string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.appearances, device)
	return len(l.appearances)
}

// Instance returns the button instance of the line on device.
func (l *Line) Instance(device string) (uint32, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.appearances[device]
	return i, ok
}

// Appearances lists the devices showing the line, sorted by device.
func (l *Line) Appearances() []Appearance {
	l.mu.RLock()
	out := make([]Appearance, 0, len(l.appearances))
	for dev, inst := range l.appearances {
		out = append(out, Appearance{Device: dev, Instance: inst})
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}

// Messages returns the voicemail counters.
func (l *Line) Messages() (newMsgs, oldMsgs int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.newMsgs, l.oldMsgs
}

// SetMessages stores the voicemail counters and reports whether the
// message waiting indication changed.
func (l *Line) SetMessages(newMsgs, oldMsgs int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := (l.newMsgs > 0) != (newMsgs > 0)
	l.newMsgs, l.oldMsgs = newMsgs, oldMsgs
	return changed
}

// PendingUpdate reports whether the line changed in a way that needs its
// devices reset.
func (l *Line) PendingUpdate() bool { return l.pendingUpdate.Load() }

// SetPendingUpdate sets the pending update flag.
func (l *Line) SetPendingUpdate(v bool) { l.pendingUpdate.Store(v) }

// PendingDelete reports whether the last reload did not mention the line.
func (l *Line) PendingDelete() bool { return l.pendingDelete.Load() }

// SetPendingDelete sets the pending delete flag.
func (l *Line) SetPendingDelete(v bool) { l.pendingDelete.Store(v) }
