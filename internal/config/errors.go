package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigInvalid reports a value its converter rejected. The default
	// stays in effect and parsing continues.
	ErrConfigInvalid = errors.New("config: invalid value")
	// ErrConfigObsolete reports an option that is no longer read.
	ErrConfigObsolete = errors.New("config: obsolete option")
	// ErrConfigDeprecated reports an option that is still applied but will
	// be removed.
	ErrConfigDeprecated = errors.New("config: deprecated option")
	// ErrUnknownOption reports a key no schema row matches.
	ErrUnknownOption = errors.New("config: unknown option")
	// ErrRequired reports a required option left out of a section.
	ErrRequired = errors.New("config: required option missing")
)

// OptionError locates a problem with one option.
type OptionError struct {
	Segment Segment
	File    string
	Section string
	Option  string
	Value   string
	Err     error
}

func (e *OptionError) Error() string {
	loc := e.Section
	if e.File != "" {
		loc = e.File + ":" + e.Section
	}
	if e.Value != "" {
		return fmt.Sprintf("%s [%s] %s=%q: %v", e.Segment, loc, e.Option, e.Value, e.Err)
	}
	return fmt.Sprintf("%s [%s] %s: %v", e.Segment, loc, e.Option, e.Err)
}

func (e *OptionError) Unwrap() error { return e.Err }
