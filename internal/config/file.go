package config

import (
	"fmt"
	"strings"

	ini "gopkg.in/ini.v1"
)

// Entry is one key with every value it was given, in file order.
type Entry struct {
	Key    string
	Values []string
}

// Section is a named group of entries, from the file or from a realtime
// row.
type Section struct {
	Name    string
	File    string
	Entries []Entry
}

// Values returns the values of key, ignoring case.
func (s *Section) Values(key string) ([]string, bool) {
	if s == nil {
		return nil, false
	}
	for _, e := range s.Entries {
		if strings.EqualFold(e.Key, key) {
			return e.Values, true
		}
	}
	return nil, false
}

// Value returns the last value of key.
func (s *Section) Value(key string) string {
	v, ok := s.Values(key)
	if !ok || len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

// Add appends value to key, creating the entry when needed.
func (s *Section) Add(key, value string) {
	for i := range s.Entries {
		if strings.EqualFold(s.Entries[i].Key, key) {
			s.Entries[i].Values = append(s.Entries[i].Values, value)
			return
		}
	}
	s.Entries = append(s.Entries, Entry{Key: key, Values: []string{value}})
}

// File is a parsed configuration split by segment.
type File struct {
	Path        string
	Global      *Section
	Devices     []*Section
	Lines       []*Section
	SoftKeySets []*Section
	// Skipped holds sections without a usable type.
	Skipped []string
}

// processSections belong to the process settings, not to the driver
// schema.
var processSections = map[string]bool{
	strings.ToLower(ini.DefaultSection): true,
	"logging":                           true,
	"redis":                             true,
	"realtime":                          true,
	"admin":                             true,
	"loopback":                          true,
}

var loadOptions = ini.LoadOptions{
	AllowShadows:               true,
	AllowDuplicateShadowValues: true,
	IgnoreInlineComment:        true,
	KeyValueDelimiters:         "=",
}

// Load reads and classifies the configuration at path.
func Load(path string) (*File, error) {
	cfg, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return fromINI(cfg, path), nil
}

// Parse classifies an in-memory configuration. name labels errors.
func Parse(data []byte, name string) (*File, error) {
	cfg, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return fromINI(cfg, name), nil
}

func fromINI(cfg *ini.File, path string) *File {
	f := &File{Path: path, Global: &Section{Name: string(SegmentGlobal), File: path}}
	for _, is := range cfg.Sections() {
		name := is.Name()
		if processSections[strings.ToLower(name)] {
			continue
		}
		sec := &Section{Name: name, File: path}
		for _, k := range is.Keys() {
			values := k.ValueWithShadows()
			for i := range values {
				values[i] = stripComment(values[i])
			}
			sec.Entries = append(sec.Entries, Entry{Key: k.Name(), Values: values})
		}
		if strings.EqualFold(name, string(SegmentGlobal)) {
			f.Global = sec
			continue
		}
		switch Segment(strings.ToLower(sec.Value("type"))) {
		case SegmentDevice:
			f.Devices = append(f.Devices, sec)
		case SegmentLine:
			f.Lines = append(f.Lines, sec)
		case SegmentSoftKey:
			f.SoftKeySets = append(f.SoftKeySets, sec)
		default:
			f.Skipped = append(f.Skipped, name)
		}
	}
	return f
}

// stripComment drops a trailing "; comment". A backslash escapes the
// semicolon.
func stripComment(v string) string {
	for i := 0; i < len(v); i++ {
		if v[i] != ';' {
			continue
		}
		if i > 0 && v[i-1] == '\\' {
			v = v[:i-1] + v[i:]
			i--
			continue
		}
		return strings.TrimSpace(v[:i])
	}
	return strings.TrimSpace(v)
}

// Device returns the device section named name.
func (f *File) Device(name string) *Section { return find(f.Devices, name) }

// Line returns the line section named name.
func (f *File) Line(name string) *Section { return find(f.Lines, name) }

func find(secs []*Section, name string) *Section {
	for _, s := range secs {
		if s.Name == name {
			return s
		}
	}
	return nil
}
