package config

import (
	"strings"

	"sccpd/internal/softkey"
)

// ApplySoftKeySet rebuilds set from a softkeyset section. Modes the
// section does not name keep their built-in rows. A change takes effect
// when a device next fetches its softkey sets.
func ApplySoftKeySet(set *softkey.Set, sec *Section) *Report {
	r := newReport()
	next := softkey.New(set.Name)
	for _, e := range sec.Entries {
		if strings.EqualFold(e.Key, "type") {
			continue
		}
		if !next.Apply(e.Key, last(e.Values)) {
			r.Warnings = append(r.Warnings, &OptionError{Segment: SegmentSoftKey, File: sec.File, Section: sec.Name, Option: e.Key, Err: ErrUnknownOption})
			continue
		}
		r.Set[strings.ToLower(e.Key)] = true
	}
	if !next.Equal(set) {
		set.Modes = next.Modes
		r.Change = ChangeSoft
		r.Changed = append(r.Changed, "modes")
	}
	return r
}
