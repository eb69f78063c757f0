package softkey

import (
	"strings"

	"sccpd/internal/skinny"
)

// DefaultSetName is the set used by devices that name none.
const DefaultSetName = "default"

// Set is a named softkey configuration: one ordered label row per keymode.
type Set struct {
	Name  string
	Modes [NumKeyModes][]Label

	PendingDelete bool
	PendingUpdate bool
}

var defaultModes = [NumKeyModes][]Label{
	KeyModeOnHook:          {LabelRedial, LabelNewCall, LabelCfwdAll, LabelDND, LabelPickup, LabelGPickup},
	KeyModeConnected:       {LabelHold, LabelEndCall, LabelPark, LabelSelect, LabelCfwdAll, LabelCfwdBusy, LabelIDivert},
	KeyModeOnHold:          {LabelResume, LabelEndCall, LabelNewCall, LabelTransfer, LabelConfList, LabelSelect, LabelDirTrfr, LabelIDivert},
	KeyModeRingIn:          {LabelAnswer, LabelEndCall, LabelTrnsfVM, LabelIDivert},
	KeyModeOffHook:         {LabelRedial, LabelEndCall, LabelPrivate, LabelCfwdAll, LabelCfwdBusy, LabelPickup, LabelGPickup, LabelMeetMe, LabelBarge},
	KeyModeConnTrans:       {LabelHold, LabelEndCall, LabelTransfer, LabelConfrn, LabelPark, LabelSelect, LabelDirTrfr, LabelCfwdAll, LabelCfwdBusy, LabelVideoMode},
	KeyModeDigitsFoll:      {LabelBackspace, LabelEndCall, LabelDial},
	KeyModeConnConf:        {LabelHold, LabelEndCall, LabelJoin},
	KeyModeRingOut:         {LabelEmpty, LabelEndCall, LabelTransfer, LabelCfwdAll, LabelIDivert},
	KeyModeOffHookFeat:     {LabelRedial, LabelEndCall},
	KeyModeInUseHint:       {LabelNewCall, LabelPickup, LabelBarge},
	KeyModeOnHookStealable: {LabelRedial, LabelNewCall, LabelCfwdAll, LabelPickup, LabelGPickup, LabelDND, LabelIntrcpt},
}

// Default returns a fresh copy of the built-in set.
func Default() *Set {
	s := &Set{Name: DefaultSetName}
	for i, row := range defaultModes {
		s.Modes[i] = append([]Label(nil), row...)
	}
	return s
}

// New returns a set named name that starts from the built-in rows; modes
// named in the config section replace them.
func New(name string) *Set {
	s := Default()
	s.Name = name
	return s
}

// Keys returns the label row of mode m.
func (s *Set) Keys(m KeyMode) []Label {
	if int(m) >= NumKeyModes {
		return nil
	}
	return s.Modes[m]
}

// Contains reports whether label l is on the row of mode m.
func (s *Set) Contains(m KeyMode, l Label) bool {
	for _, k := range s.Keys(m) {
		if k == l {
			return true
		}
	}
	return false
}

// ParseMode reads a comma separated label list. At most MaxKeysPerMode-1
// labels are kept; unknown words become LabelEmpty.
func ParseMode(value string) []Label {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []Label
	for _, word := range strings.Split(value, ",") {
		if len(out) == MaxKeysPerMode-1 {
			break
		}
		l, _ := LabelByName(word)
		out = append(out, l)
	}
	return out
}

// Apply sets one key of a softkeyset section. It reports whether the key
// named a keymode; "type" and unknown keys are ignored by the caller.
func (s *Set) Apply(key, value string) bool {
	m, ok := KeyModeByName(key)
	if !ok {
		return false
	}
	s.Modes[m] = ParseMode(value)
	return true
}

// Equal compares the label rows of two sets.
func (s *Set) Equal(o *Set) bool {
	if s == nil || o == nil {
		return s == o
	}
	for i := range s.Modes {
		if len(s.Modes[i]) != len(o.Modes[i]) {
			return false
		}
		for j := range s.Modes[i] {
			if s.Modes[i][j] != o.Modes[i][j] {
				return false
			}
		}
	}
	return true
}

// Template is the order in which labels are declared to the phone by
// SoftKeyTemplateRes. Set rows refer to labels by their position here.
var Template = []Label{
	LabelRedial, LabelNewCall, LabelHold, LabelTransfer, LabelCfwdAll,
	LabelCfwdBusy, LabelCfwdNoAnswer, LabelBackspace, LabelEndCall, LabelResume,
	LabelAnswer, LabelInfo, LabelConfrn, LabelPark, LabelJoin, LabelMeetMe,
	LabelPickup, LabelGPickup, LabelRmLstC, LabelCallback, LabelBarge, LabelDND,
	LabelConfList, LabelSelect, LabelPrivate, LabelTrnsfVM, LabelDirTrfr,
	LabelIDivert, LabelVideoMode, LabelIntrcpt, LabelEmpty, LabelDial,
}

// TemplateIndex returns the one based template position of l, zero when l
// is not declared.
func TemplateIndex(l Label) uint8 {
	for i, t := range Template {
		if t == l {
			return uint8(i + 1)
		}
	}
	return 0
}

// TemplateMessage builds the SoftKeyTemplateRes declaring every label. The
// event a phone reports for a key is the label id.
func TemplateMessage() *skinny.SoftKeyTemplateRes {
	defs := make([]skinny.SoftKeyDefinition, len(Template))
	for i, l := range Template {
		defs[i] = skinny.SoftKeyDefinition{Label: l.WireText(), Event: uint32(l)}
	}
	return &skinny.SoftKeyTemplateRes{Total: uint32(len(defs)), Definitions: defs}
}

// SetMessage builds the SoftKeySetRes for s. enabled may veto labels the
// device has switched off; vetoed keys are sent as empty slots so the
// positions of the others do not move.
func (s *Set) SetMessage(enabled func(Label) bool) *skinny.SoftKeySetRes {
	res := &skinny.SoftKeySetRes{Total: uint32(NumKeyModes)}
	res.Sets = make([]skinny.SoftKeySetDefinition, NumKeyModes)
	for m := 0; m < NumKeyModes; m++ {
		def := &res.Sets[m]
		for i, l := range s.Modes[m] {
			if i >= MaxKeysPerMode {
				break
			}
			if enabled != nil && l != LabelEmpty && !enabled(l) {
				continue
			}
			idx := TemplateIndex(l)
			def.TemplateIndex[i] = idx
			if idx != 0 {
				def.InfoIndex[i] = uint16(300 + int(idx))
			}
		}
	}
	return res
}
