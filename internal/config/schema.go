// Package config is the declarative option engine of the driver. Each
// segment (general, device, line) has a schema: a table of options with
// flags, a change class, a default and a setter. Applying a section to a
// target runs the setters, fills unset options from the inheritance chain
// and reports what changed and whether the change needs a device reset.
package config

import (
	"fmt"
	"strings"
)

// Segment names the part of the configuration a schema applies to.
type Segment string

const (
	SegmentGlobal  Segment = "general"
	SegmentDevice  Segment = "device"
	SegmentLine    Segment = "line"
	SegmentSoftKey Segment = "softkeyset"
)

// Flag modifies how an option is read.
type Flag uint16

const (
	// FlagIgnore options are accepted and skipped silently.
	FlagIgnore Flag = 1 << iota
	// FlagDeprecated options are applied with a warning.
	FlagDeprecated
	// FlagObsolete options are skipped with a warning.
	FlagObsolete
	// FlagChanged marks an option whose meaning changed; it is applied and
	// the description is logged.
	FlagChanged
	// FlagRequired options warn when absent and are invalid when empty.
	FlagRequired
	// FlagInheritDevice options default to the value of the device section.
	FlagInheritDevice
	// FlagInheritGlobal options default to the value of [general].
	FlagInheritGlobal
	// FlagMulti options receive every value of a repeated key.
	FlagMulti
)

// ChangeClass says what a change of the option requires of a registered
// device.
type ChangeClass int

const (
	NoUpdateNeeded ChangeClass = iota
	NeedsDeviceReset
)

// Result is what a setter did with its values.
type Result int

const (
	NoChange Result = iota
	Changed
	Invalid
)

func (r Result) String() string {
	switch r {
	case Changed:
		return "changed"
	case Invalid:
		return "invalid"
	}
	return "nochange"
}

// Change is the effective outcome of applying a section, ordered so the
// larger value wins when aggregating.
type Change int

const (
	ChangeNone Change = iota
	ChangeInvalid
	ChangeSoft
	ChangeReset
)

func (c Change) String() string {
	switch c {
	case ChangeInvalid:
		return "invalid"
	case ChangeSoft:
		return "changed"
	case ChangeReset:
		return "changed-needs-reset"
	}
	return "nochange"
}

// Setter stores values into t. A nil slice resets the field to its zero
// value. The error explains an Invalid result and is a warning otherwise.
type Setter[T any] func(t *T, values []string) (Result, error)

// Option is one schema row.
type Option[T any] struct {
	// Name is the key; alternative spellings follow separated by "|".
	Name        string
	Flags       Flag
	Class       ChangeClass
	Default     string
	Description string
	Set         Setter[T]
}

// Has reports whether f is set on o.
func (o *Option[T]) Has(f Flag) bool { return o.Flags&f != 0 }

// Key returns the canonical option name.
func (o *Option[T]) Key() string {
	name, _, _ := strings.Cut(o.Name, "|")
	return name
}

// Schema is the option table of one segment.
type Schema[T any] struct {
	Segment Segment
	options []*Option[T]
	index   map[string]*Option[T]
}

// NewSchema indexes opts by every spelling of their names.
func NewSchema[T any](seg Segment, opts ...*Option[T]) *Schema[T] {
	s := &Schema[T]{Segment: seg, options: opts, index: make(map[string]*Option[T])}
	for _, o := range opts {
		for _, n := range strings.Split(o.Name, "|") {
			s.index[strings.ToLower(n)] = o
		}
	}
	return s
}

// Lookup finds the row for key, ignoring case.
func (s *Schema[T]) Lookup(key string) (*Option[T], bool) {
	o, ok := s.index[strings.ToLower(strings.TrimSpace(key))]
	return o, ok
}

// Options returns the rows in table order.
func (s *Schema[T]) Options() []*Option[T] { return s.options }

// Default returns the default of key as written in the table.
func (s *Schema[T]) Default(key string) (string, bool) {
	o, ok := s.Lookup(key)
	if !ok {
		return "", false
	}
	return o.Default, true
}

// Inherit holds the sections unset options take their values from.
type Inherit struct {
	Device *Section
	Global *Section
}

// Report collects the outcome of one Apply.
type Report struct {
	Change Change
	// Set holds the options given explicitly.
	Set map[string]bool
	// Changed lists the options whose value moved, in table order for
	// defaults and file order for explicit values.
	Changed  []string
	Warnings []error
	Errors   []error
}

func newReport() *Report { return &Report{Set: make(map[string]bool)} }

// NeedsReset reports whether a registered device must be reset for the
// changes to take effect.
func (r *Report) NeedsReset() bool { return r.Change == ChangeReset }

// Merge folds o into r.
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	r.Change = max(r.Change, o.Change)
	for k := range o.Set {
		r.Set[k] = true
	}
	r.Changed = append(r.Changed, o.Changed...)
	r.Warnings = append(r.Warnings, o.Warnings...)
	r.Errors = append(r.Errors, o.Errors...)
}

// Apply sets the entries of sec on t and then fills every option that was
// not given from its default chain. sec may be nil to load pure defaults.
func (s *Schema[T]) Apply(t *T, sec *Section, inh Inherit) *Report {
	if sec == nil {
		sec = &Section{}
	}
	r := newReport()
	seen := make(map[*Option[T]]bool)

	for _, e := range sec.Entries {
		o, ok := s.Lookup(e.Key)
		if !ok {
			r.Warnings = append(r.Warnings, s.optionError(sec, e.Key, strings.Join(e.Values, ","), ErrUnknownOption))
			continue
		}
		if o.Has(FlagIgnore) || seen[o] {
			continue
		}
		seen[o] = true
		values := e.Values
		if !o.Has(FlagMulti) && len(values) > 1 {
			values = values[len(values)-1:]
		}
		raw := strings.Join(values, ",")

		switch {
		case o.Has(FlagObsolete):
			r.Warnings = append(r.Warnings, s.optionError(sec, e.Key, raw, ErrConfigObsolete))
			r.Set[o.Key()] = true
			continue
		case o.Has(FlagDeprecated):
			r.Warnings = append(r.Warnings, s.optionError(sec, e.Key, raw, ErrConfigDeprecated))
		case o.Has(FlagChanged):
			r.Warnings = append(r.Warnings, s.optionError(sec, e.Key, raw, fmt.Errorf("option changed: %s", o.Description)))
		}
		if o.Has(FlagRequired) && strings.TrimSpace(raw) == "" {
			r.Change = max(r.Change, ChangeInvalid)
			r.Errors = append(r.Errors, s.optionError(sec, e.Key, raw, fmt.Errorf("%w: empty value", ErrConfigInvalid)))
			continue
		}
		res, err := o.Set(t, values)
		s.record(r, sec, o, raw, res, err)
		if res != Invalid {
			r.Set[o.Key()] = true
		}
	}

	for _, o := range s.options {
		if o.Has(FlagIgnore) || o.Has(FlagObsolete) || r.Set[o.Key()] {
			continue
		}
		if o.Has(FlagRequired) && !seen[o] {
			r.Warnings = append(r.Warnings, s.optionError(sec, o.Key(), "", ErrRequired))
		}
		values := defaultValues(o, inh)
		res, err := o.Set(t, values)
		s.record(r, sec, o, strings.Join(values, ","), res, err)
	}
	return r
}

func (s *Schema[T]) record(r *Report, sec *Section, o *Option[T], raw string, res Result, err error) {
	switch res {
	case Invalid:
		r.Change = max(r.Change, ChangeInvalid)
		if err == nil {
			err = fmt.Errorf("rejected")
		}
		r.Errors = append(r.Errors, s.optionError(sec, o.Key(), raw, fmt.Errorf("%w: %v", ErrConfigInvalid, err)))
		return
	case Changed:
		r.Changed = append(r.Changed, o.Key())
		if o.Class == NeedsDeviceReset {
			r.Change = max(r.Change, ChangeReset)
		} else {
			r.Change = max(r.Change, ChangeSoft)
		}
	}
	if err != nil {
		r.Warnings = append(r.Warnings, s.optionError(sec, o.Key(), raw, err))
	}
}

func (s *Schema[T]) optionError(sec *Section, key, value string, err error) *OptionError {
	return &OptionError{Segment: s.Segment, File: sec.File, Section: sec.Name, Option: key, Value: value, Err: err}
}

// defaultValues walks the default chain of o: the inherited section, the
// default of the same option in the inherited segment, then o's own
// default. An empty result resets the field.
func defaultValues[T any](o *Option[T], inh Inherit) []string {
	multi := o.Has(FlagMulti)
	switch {
	case o.Has(FlagInheritDevice):
		if v, ok := inh.Device.Values(o.Key()); ok {
			return pick(v, multi)
		}
		if d, ok := DeviceSchema.Default(o.Key()); ok && strings.TrimSpace(d) != "" {
			return []string{d}
		}
	case o.Has(FlagInheritGlobal):
		if v, ok := inh.Global.Values(o.Key()); ok {
			return pick(v, multi)
		}
		if d, ok := GlobalSchema.Default(o.Key()); ok && strings.TrimSpace(d) != "" {
			return []string{d}
		}
	}
	if strings.TrimSpace(o.Default) == "" {
		return nil
	}
	return []string{o.Default}
}

func pick(values []string, multi bool) []string {
	if multi || len(values) <= 1 {
		return values
	}
	return values[len(values)-1:]
}
