package model

import (
	"sccpd/internal/config"
	"sccpd/internal/skinny"
)

// baseButtons is the number of buttons of each model without addons.
var baseButtons = map[uint32]int{
	skinny.DeviceType7910:   1,
	skinny.DeviceType7911:   1,
	skinny.DeviceType7906:   1,
	skinny.DeviceType7940:   2,
	skinny.DeviceType7941:   2,
	skinny.DeviceType7941GE: 2,
	skinny.DeviceType7942:   2,
	skinny.DeviceType7945:   2,
	skinny.DeviceType7960:   6,
	skinny.DeviceType7961:   6,
	skinny.DeviceType7961GE: 6,
	skinny.DeviceType7962:   6,
	skinny.DeviceType7965:   6,
	skinny.DeviceType7921:   6,
	skinny.DeviceType7970:   8,
	skinny.DeviceType7971:   8,
	skinny.DeviceType7975:   8,
	skinny.DeviceType7931:   24,
}

// addonButtons is the number of buttons an expansion module adds.
var addonButtons = map[uint32]int{
	skinny.DeviceType7914: 14,
	skinny.DeviceType7915: 24,
	skinny.DeviceType7916: 24,
}

// Capacity returns how many template entries a phone can show. The count
// the phone reported wins over the model table; addons add their own
// buttons and the total never exceeds the wire template.
func Capacity(deviceType, reported uint32, addons []uint32) int {
	n := int(reported)
	if n == 0 {
		n = baseButtons[deviceType]
	}
	if n == 0 {
		n = 6
	}
	for _, a := range addons {
		n += addonButtons[a]
	}
	return min(n, skinny.MaxButtonTemplate)
}

// Entry is one slot of a button template.
type Entry struct {
	Type     skinny.ButtonType
	Instance uint8
	Button   config.Button
}

// Template maps configured buttons to the slots and instances the phone
// uses to refer to them. Lines, speeddials, service URLs and features are
// each numbered from one in button order.
type Template struct {
	Entries []Entry
	// Dropped counts configured buttons beyond the capacity.
	Dropped int
}

// BuildTemplate lays out buttons for a phone with room for capacity
// entries.
func BuildTemplate(buttons []config.Button, capacity int) *Template {
	t := &Template{}
	var lines, speeddials, services, features uint8
	for _, b := range buttons {
		if len(t.Entries) == capacity {
			t.Dropped++
			continue
		}
		e := Entry{Button: b}
		switch b.Type {
		case config.ButtonLine:
			lines++
			e.Type, e.Instance = skinny.ButtonLine, lines
		case config.ButtonSpeedDial:
			speeddials++
			e.Type, e.Instance = skinny.ButtonSpeedDial, speeddials
		case config.ButtonService:
			services++
			e.Type, e.Instance = skinny.ButtonServiceURL, services
		case config.ButtonFeature:
			features++
			e.Type, e.Instance = skinny.ButtonFeature, features
		default:
			e.Type = skinny.ButtonUndefined
		}
		t.Entries = append(t.Entries, e)
	}
	return t
}

// Message renders the template for ButtonTemplateReq.
func (t *Template) Message() *skinny.ButtonTemplate {
	m := &skinny.ButtonTemplate{TotalButtonCount: uint32(len(t.Entries))}
	for _, e := range t.Entries {
		m.Definitions = append(m.Definitions, skinny.ButtonDefinition{Instance: e.Instance, Type: e.Type})
	}
	return m
}

func (t *Template) find(typ skinny.ButtonType, instance uint32) (config.Button, bool) {
	if t == nil {
		return config.Button{}, false
	}
	for _, e := range t.Entries {
		if e.Type == typ && uint32(e.Instance) == instance {
			return e.Button, true
		}
	}
	return config.Button{}, false
}

// Line returns the line name on instance.
func (t *Template) Line(instance uint32) (string, bool) {
	b, ok := t.find(skinny.ButtonLine, instance)
	return b.Name, ok
}

// LineInstance returns the instance of the first button showing line.
func (t *Template) LineInstance(line string) (uint32, bool) {
	if t == nil {
		return 0, false
	}
	for _, e := range t.Entries {
		if e.Type == skinny.ButtonLine && e.Button.Name == line {
			return uint32(e.Instance), true
		}
	}
	return 0, false
}

// Lines returns the line entries in instance order.
func (t *Template) Lines() []Entry { return t.ofType(skinny.ButtonLine) }

// SpeedDial returns speeddial n.
func (t *Template) SpeedDial(n uint32) (config.Button, bool) { return t.find(skinny.ButtonSpeedDial, n) }

// ServiceURL returns service URL n.
func (t *Template) ServiceURL(n uint32) (config.Button, bool) { return t.find(skinny.ButtonServiceURL, n) }

// Feature returns feature button n.
func (t *Template) Feature(n uint32) (config.Button, bool) { return t.find(skinny.ButtonFeature, n) }

// Features returns the feature entries in instance order.
func (t *Template) Features() []Entry { return t.ofType(skinny.ButtonFeature) }

// SpeedDials returns the speeddial entries in instance order.
func (t *Template) SpeedDials() []Entry { return t.ofType(skinny.ButtonSpeedDial) }

func (t *Template) ofType(typ skinny.ButtonType) []Entry {
	if t == nil {
		return nil
	}
	var out []Entry
	for _, e := range t.Entries {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// DefaultLine returns the first line instance, or zero when the device has
// no line.
func (t *Template) DefaultLine() uint32 {
	if l := t.Lines(); len(l) > 0 {
		return uint32(l[0].Instance)
	}
	return 0
}
