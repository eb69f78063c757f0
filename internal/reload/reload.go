// Package reload applies a parsed configuration file to the live registry.
//
// A run marks everything pending delete, applies the file, re-fetches
// realtime lines and then drops what the file no longer names. Devices
// whose changes need a reset are reset when idle; a device with calls is
// left pending update and reset when its last call ends.
package reload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"sccpd/internal/config"
	"sccpd/internal/metrics"
	"sccpd/internal/model"
	"sccpd/internal/realtime"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

// LineSource fetches line sections that are not in the file.
type LineSource interface {
	Line(ctx context.Context, name string) (*config.Section, error)
}

// ResetFunc asks a registered device to reset or restart.
type ResetFunc func(d *model.Device, t skinny.ResetType)

// Result is the outcome of one run.
type Result struct {
	Global config.Change

	DevicesAdded   []string
	DevicesChanged []string
	DevicesRemoved []string
	LinesAdded     []string
	LinesChanged   []string
	LinesRemoved   []string
	SetsRemoved    []string

	// Reset lists the devices reset by this run, Deferred those waiting
	// for their calls to end.
	Reset    []string
	Deferred []string

	Warnings []error
	Errors   []error
}

func (r *Result) merge(rep *config.Report) {
	r.Warnings = append(r.Warnings, rep.Warnings...)
	r.Errors = append(r.Errors, rep.Errors...)
}

// Label is the metric label of the run.
func (r *Result) Label() string {
	switch {
	case len(r.Errors) > 0:
		return "errors"
	case len(r.Warnings) > 0:
		return "warnings"
	}
	return "ok"
}

// Pipeline owns the [general] configuration and reconciles the registry
// with each new file. Runs are serialized.
type Pipeline struct {
	reg     *model.Registry
	lines   LineSource
	reset   ResetFunc
	metrics *metrics.Metrics
	log     *logrus.Entry

	run sync.Mutex

	mu        sync.RWMutex
	global    *config.Global
	globalSec *config.Section
	loaded    bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLineSource sets where realtime lines are fetched from.
func WithLineSource(s LineSource) Option { return func(p *Pipeline) { p.lines = s } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

func WithLogger(l *logrus.Entry) Option { return func(p *Pipeline) { p.log = l } }

// New creates a pipeline over reg. reset is called for idle devices that
// need a reset and may be nil.
func New(reg *model.Registry, reset ResetFunc, opts ...Option) *Pipeline {
	p := &Pipeline{
		reg:    reg,
		reset:  reset,
		global: config.NewGlobal(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if p.reset == nil {
		p.reset = func(*model.Device, skinny.ResetType) {}
	}
	return p
}

// Global returns the current [general] configuration. It is replaced on
// reload, never modified.
func (p *Pipeline) Global() *config.Global {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.global
}

// GlobalSection returns the [general] section the global was applied
// from, for inheritance.
func (p *Pipeline) GlobalSection() *config.Section {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.globalSec
}

// Load reads path and runs the pipeline over it.
func (p *Pipeline) Load(ctx context.Context, path string) (*Result, error) {
	f, err := config.Load(path)
	if err != nil {
		p.metrics.Reload("failed")
		return nil, err
	}
	return p.Run(ctx, f)
}

// Run applies f to the registry.
func (p *Pipeline) Run(ctx context.Context, f *config.File) (*Result, error) {
	if f == nil {
		return nil, errors.New("reload: no configuration")
	}
	p.run.Lock()
	defer p.run.Unlock()

	res := &Result{}
	deferred := p.markAll()

	globalReset := p.applyGlobal(f, res)
	p.applySoftKeySets(f, res)
	owners := p.applyDevices(f, res)
	if globalReset {
		p.reg.EachDevice(func(d *model.Device) {
			if !d.PendingDelete() && d.Registered() {
				d.SetPendingUpdate(true)
			}
		})
	}
	p.applyLines(f, owners, res)

	if err := p.fetchRealtime(ctx, f, owners, res); err != nil {
		// Leave the registry marked; the next run starts from scratch.
		p.metrics.Reload("failed")
		return res, err
	}

	p.sweepLines(res)
	p.sweepDevices(deferred, res)
	p.sweepSoftKeySets(res)

	p.metrics.Reload(res.Label())
	p.log.Infof("reload of %s: %d devices added, %d changed, %d removed; %d lines added, %d changed, %d removed; %d reset, %d deferred",
		f.Path, len(res.DevicesAdded), len(res.DevicesChanged), len(res.DevicesRemoved),
		len(res.LinesAdded), len(res.LinesChanged), len(res.LinesRemoved), len(res.Reset), len(res.Deferred))
	for _, w := range res.Warnings {
		p.log.Warn(w)
	}
	for _, e := range res.Errors {
		p.log.Error(e)
	}
	return res, nil
}

// markAll sets pendingDelete on every device, line and softkey set and
// clears pendingUpdate. It returns the devices that were already waiting
// for a reset so the deferral survives the run. Hotline objects are not
// in any file and are left alone.
func (p *Pipeline) markAll() map[string]bool {
	waiting := make(map[string]bool)
	p.reg.EachDevice(func(d *model.Device) {
		if d.Hotline() {
			return
		}
		if d.PendingUpdate() {
			waiting[d.ID] = true
		}
		d.SetPendingDelete(true)
		d.SetPendingUpdate(false)
	})
	p.reg.EachLine(func(l *model.Line) {
		if l.Name == model.HotlineName {
			return
		}
		l.SetPendingDelete(true)
		l.SetPendingUpdate(false)
	})
	p.reg.MarkSoftKeySets(true, false)
	return waiting
}

func (p *Pipeline) applyGlobal(f *config.File, res *Result) bool {
	p.mu.RLock()
	next := *p.global
	first := !p.loaded
	p.mu.RUnlock()

	rep := config.GlobalSchema.Apply(&next, f.Global, config.Inherit{})
	res.merge(rep)
	res.Global = rep.Change

	p.mu.Lock()
	p.global = &next
	p.globalSec = f.Global
	p.loaded = true
	p.mu.Unlock()
	return rep.NeedsReset() && !first
}

func (p *Pipeline) applySoftKeySets(f *config.File, res *Result) {
	for _, sec := range f.SoftKeySets {
		set := softkey.New(sec.Name)
		if old, ok := p.reg.LookupSoftKeySet(sec.Name); ok {
			cp := *old
			set = &cp
		}
		rep := config.ApplySoftKeySet(set, sec)
		res.merge(rep)
		set.PendingDelete = false
		set.PendingUpdate = rep.Change == config.ChangeSoft
		p.reg.PutSoftKeySet(set)
	}
}

// applyDevices returns, for each line name, the section of the first
// device that shows it. Lines inherit from that device.
func (p *Pipeline) applyDevices(f *config.File, res *Result) map[string]*config.Section {
	owners := make(map[string]*config.Section)
	for _, sec := range f.Devices {
		cfg := p.applyDevice(sec, f.Global, res)
		if cfg == nil {
			continue
		}
		for _, name := range cfg.Lines() {
			if _, ok := owners[name]; !ok {
				owners[name] = sec
			}
		}
	}
	return owners
}

func (p *Pipeline) applyDevice(sec, global *config.Section, res *Result) *config.Device {
	d := p.reg.Device(sec.Name)
	if d == nil {
		cfg := &config.Device{}
		res.merge(config.ApplyDevice(cfg, sec, global))
		if err := p.reg.AddDevice(model.NewDevice(sec.Name, cfg, sec)); err != nil {
			res.Errors = append(res.Errors, err)
			return nil
		}
		res.DevicesAdded = append(res.DevicesAdded, sec.Name)
		return cfg
	}

	cfg := *d.Config()
	rep := config.ApplyDevice(&cfg, sec, global)
	res.merge(rep)
	d.SetConfig(&cfg, sec)
	d.SetPendingDelete(false)
	if rep.Change >= config.ChangeSoft {
		res.DevicesChanged = append(res.DevicesChanged, d.ID)
	}
	if d.Hotline() {
		// The phone registered before it was configured.
		d.SetHotline(false)
		d.SetPendingUpdate(d.Registered())
		return &cfg
	}
	if rep.NeedsReset() && d.Registered() {
		d.SetPendingUpdate(true)
	}
	return &cfg
}

func (p *Pipeline) applyLines(f *config.File, owners map[string]*config.Section, res *Result) {
	for _, sec := range f.Lines {
		p.applyLine(sec.Name, sec, owners[sec.Name], f.Global, false, res)
	}
}

func (p *Pipeline) applyLine(name string, sec, device, global *config.Section, realtime bool, res *Result) {
	l := p.reg.Line(name)
	if l == nil {
		cfg := &config.Line{}
		res.merge(config.ApplyLine(cfg, sec, device, global))
		if err := p.reg.AddLine(model.NewLine(name, cfg, sec, realtime)); err != nil {
			res.Errors = append(res.Errors, err)
			return
		}
		res.LinesAdded = append(res.LinesAdded, name)
		return
	}

	cfg := *l.Config()
	rep := config.ApplyLine(&cfg, sec, device, global)
	res.merge(rep)
	l.SetConfig(&cfg, sec, realtime)
	l.SetPendingDelete(false)
	if rep.Change >= config.ChangeSoft {
		res.LinesChanged = append(res.LinesChanged, name)
	}
	if rep.NeedsReset() {
		l.SetPendingUpdate(true)
		p.touchAppearances(l)
	}
}

// touchAppearances marks every registered device showing l pending
// update.
func (p *Pipeline) touchAppearances(l *model.Line) {
	for _, a := range l.Appearances() {
		if d := p.reg.Device(a.Device); d != nil && d.Registered() {
			d.SetPendingUpdate(true)
		}
	}
}

// fetchRealtime re-reads realtime lines that the file did not name, and
// fetches lines that buttons reference but nothing defines. A line the
// source does not hold stays pending delete.
func (p *Pipeline) fetchRealtime(ctx context.Context, f *config.File, owners map[string]*config.Section, res *Result) error {
	if p.lines == nil {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	p.reg.EachLine(func(l *model.Line) {
		if l.Realtime() && l.PendingDelete() {
			names = append(names, l.Name)
			seen[l.Name] = true
		}
	})
	for _, sec := range f.Devices {
		d := p.reg.Device(sec.Name)
		if d == nil {
			continue
		}
		for _, name := range d.Config().Lines() {
			if seen[name] || f.Line(name) != nil || p.reg.Line(name) != nil {
				continue
			}
			names = append(names, name)
			seen[name] = true
		}
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		sec, err := p.lines.Line(ctx, name)
		switch {
		case errors.Is(err, realtime.ErrNotFound):
			continue
		case err != nil:
			res.Warnings = append(res.Warnings, fmt.Errorf("realtime line %s: %w", name, err))
			if l := p.reg.Line(name); l != nil {
				l.SetPendingDelete(false)
			}
			continue
		}
		p.applyLine(name, sec, owners[name], f.Global, true, res)
	}
	return nil
}

func (p *Pipeline) sweepLines(res *Result) {
	var gone []*model.Line
	p.reg.EachLine(func(l *model.Line) {
		if l.PendingDelete() {
			gone = append(gone, l)
		}
	})
	for _, l := range gone {
		p.touchAppearances(l)
		if p.reg.RemoveLine(l.Name) {
			res.LinesRemoved = append(res.LinesRemoved, l.Name)
		}
	}
}

func (p *Pipeline) sweepDevices(waiting map[string]bool, res *Result) {
	var gone, update []*model.Device
	p.reg.EachDevice(func(d *model.Device) {
		switch {
		case d.PendingDelete():
			gone = append(gone, d)
		case d.PendingUpdate() || waiting[d.ID]:
			update = append(update, d)
		}
	})

	for _, d := range gone {
		if d.Registered() {
			if d.CallCount() == 0 {
				d.SetPendingUpdate(false)
				p.reset(d, skinny.ResetRestart)
				res.Reset = append(res.Reset, d.ID)
			} else {
				d.SetPendingUpdate(true)
				res.Deferred = append(res.Deferred, d.ID)
			}
		}
		if p.reg.RemoveDevice(d.ID) {
			res.DevicesRemoved = append(res.DevicesRemoved, d.ID)
		}
	}

	for _, d := range update {
		if !d.Registered() {
			d.SetPendingUpdate(false)
			continue
		}
		d.SetPendingUpdate(true)
		if d.CallCount() > 0 {
			res.Deferred = append(res.Deferred, d.ID)
			continue
		}
		if d.TakePendingUpdate() {
			p.reset(d, skinny.ResetSoft)
			res.Reset = append(res.Reset, d.ID)
		}
	}
}

func (p *Pipeline) sweepSoftKeySets(res *Result) {
	for _, s := range p.reg.SoftKeySets() {
		if s.PendingDelete && p.reg.RemoveSoftKeySet(s.Name) {
			res.SetsRemoved = append(res.SetsRemoved, s.Name)
		}
	}
}
