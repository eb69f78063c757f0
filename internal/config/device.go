package config

import (
	"net/netip"
	"time"

	"sccpd/internal/callstate"
	"sccpd/internal/netutil"
	"sccpd/internal/skinny"
)

// Device is the configuration of one phone.
type Device struct {
	Type         string
	Description  string
	KeepAlive    int
	TZOffset     int
	Allow        []string
	Disallow     []string
	Transfer     bool
	Park         bool
	CfwdAll      bool
	CfwdBusy     bool
	CfwdNoAnswer bool
	DNDFeature   bool
	DTMFMode     DTMFMode
	ImageVersion string
	Deny         []netip.Prefix
	Permit       []netip.Prefix
	AudioQoS     netutil.QoS
	VideoQoS     netutil.QoS
	TrustPhoneIP bool
	NAT          bool
	DirectRTP    bool
	EarlyRTP     callstate.EarlyRTP
	Private      bool
	Privacy      PrivacyMode
	MWILamp      skinny.LampMode
	MWIOnCall    bool
	MeetMe       bool
	MeetMeOpts   string
	SoftKeySet   string

	UseRedialMenu    bool
	PickupExten      bool
	PickupContext    string
	PickupModeAnswer bool
	Monitor          bool
	AllowOverlap     bool

	Variables   []Variable
	PermitHosts []string
	Addons      []uint32
	Buttons     []Button

	DigitTimeout int
}

// NewDevice returns a device with every option at its default, inheriting
// from global.
func NewDevice(global *Section) *Device {
	d := &Device{}
	DeviceSchema.Apply(d, nil, Inherit{Global: global})
	return d
}

// ApplyDevice applies a device section over d.
func ApplyDevice(d *Device, sec, global *Section) *Report {
	return DeviceSchema.Apply(d, sec, Inherit{Global: global})
}

// ACL is the per device access list.
func (d *Device) ACL() netutil.ACL { return buildACL(d.Deny, d.Permit) }

// Codecs returns the codec preferences.
func (d *Device) Codecs() []skinny.Codec { return Codecs(d.Allow, d.Disallow) }

// KeepAliveInterval returns the keepalive as a duration.
func (d *Device) KeepAliveInterval() time.Duration { return time.Duration(d.KeepAlive) * time.Second }

// Lines returns the names of the lines the buttons reference, in button
// order.
func (d *Device) Lines() []string {
	var out []string
	for _, b := range d.Buttons {
		if b.Type == ButtonLine {
			out = append(out, b.Name)
		}
	}
	return out
}

// DeviceSchema is the option table of device sections.
var DeviceSchema = NewSchema(SegmentDevice,
	&Option[Device]{Name: "name", Flags: FlagIgnore},
	&Option[Device]{Name: "type", Flags: FlagIgnore},
	&Option[Device]{Name: "devicetype|device", Class: NeedsDeviceReset, Description: "phone model, e.g. 7960",
		Set: String(func(d *Device) *string { return &d.Type })},
	&Option[Device]{Name: "description", Class: NeedsDeviceReset, Description: "free text",
		Set: String(func(d *Device) *string { return &d.Description })},
	&Option[Device]{Name: "keepalive", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Description: "keepalive interval in seconds",
		Set: Int(func(d *Device) *int { return &d.KeepAlive }, 60, 65535)},
	&Option[Device]{Name: "tzoffset", Default: "0", Description: "hours added to the server time",
		Set: Int(func(d *Device) *int { return &d.TZOffset }, -12, 14)},
	&Option[Device]{Name: "disallow", Flags: FlagInheritGlobal | FlagMulti, Class: NeedsDeviceReset, Description: "codecs to remove",
		Set: List(func(d *Device) *[]string { return &d.Disallow }, parseCodecs)},
	&Option[Device]{Name: "allow", Flags: FlagInheritGlobal | FlagMulti, Class: NeedsDeviceReset, Description: "codecs in order of preference",
		Set: List(func(d *Device) *[]string { return &d.Allow }, parseCodecs)},
	&Option[Device]{Name: "transfer", Default: "on", Description: "transfer softkey",
		Set: Bool(func(d *Device) *bool { return &d.Transfer })},
	&Option[Device]{Name: "park", Default: "on", Description: "park softkey",
		Set: Bool(func(d *Device) *bool { return &d.Park })},
	&Option[Device]{Name: "cfwdall", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Default: "off", Description: "call forward all",
		Set: Bool(func(d *Device) *bool { return &d.CfwdAll })},
	&Option[Device]{Name: "cfwdbusy", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Default: "off", Description: "call forward busy",
		Set: Bool(func(d *Device) *bool { return &d.CfwdBusy })},
	&Option[Device]{Name: "cfwdnoanswer", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Default: "off", Description: "call forward no answer",
		Set: Bool(func(d *Device) *bool { return &d.CfwdNoAnswer })},
	&Option[Device]{Name: "dnd", Flags: FlagObsolete, Description: "use dndFeature and the line dnd option"},
	&Option[Device]{Name: "dndFeature", Default: "on", Description: "DND softkey",
		Set: Bool(func(d *Device) *bool { return &d.DNDFeature })},
	&Option[Device]{Name: "dtmfmode", Flags: FlagInheritGlobal, Default: "inband", Description: "inband or outofband",
		Set: Value(func(d *Device) *DTMFMode { return &d.DTMFMode }, ParseDTMF)},
	&Option[Device]{Name: "imageversion", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Description: "firmware load the phone should run",
		Set: String(func(d *Device) *string { return &d.ImageVersion })},
	&Option[Device]{Name: "deny", Flags: FlagInheritGlobal | FlagMulti, Class: NeedsDeviceReset, Description: "networks refused for this device",
		Set: List(func(d *Device) *[]netip.Prefix { return &d.Deny }, netutil.ParsePrefixes)},
	&Option[Device]{Name: "permit", Flags: FlagInheritGlobal | FlagMulti, Class: NeedsDeviceReset, Description: "networks allowed for this device",
		Set: List(func(d *Device) *[]netip.Prefix { return &d.Permit }, netutil.ParsePrefixes)},
	&Option[Device]{Name: "audio_tos", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Description: "audio type of service",
		Set: tosSetter(func(d *Device) *netutil.QoS { return &d.AudioQoS })},
	&Option[Device]{Name: "audio_cos", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Description: "audio class of service",
		Set: cosSetter(func(d *Device) *netutil.QoS { return &d.AudioQoS })},
	&Option[Device]{Name: "video_tos", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Description: "video type of service",
		Set: tosSetter(func(d *Device) *netutil.QoS { return &d.VideoQoS })},
	&Option[Device]{Name: "video_cos", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Description: "video class of service",
		Set: cosSetter(func(d *Device) *netutil.QoS { return &d.VideoQoS })},
	&Option[Device]{Name: "trustphoneip", Flags: FlagInheritGlobal, Class: NeedsDeviceReset, Description: "use the address the phone reports",
		Set: Bool(func(d *Device) *bool { return &d.TrustPhoneIP })},
	&Option[Device]{Name: "nat", Flags: FlagDeprecated | FlagInheritGlobal, Description: "device is behind NAT",
		Set: Bool(func(d *Device) *bool { return &d.NAT })},
	&Option[Device]{Name: "directrtp", Flags: FlagInheritGlobal, Description: "direct media between phones",
		Set: Bool(func(d *Device) *bool { return &d.DirectRTP })},
	&Option[Device]{Name: "earlyrtp", Flags: FlagInheritGlobal, Description: "none, offhook, dial, ringout or progress",
		Set: earlyRTP(func(d *Device) *callstate.EarlyRTP { return &d.EarlyRTP })},
	&Option[Device]{Name: "private", Flags: FlagInheritGlobal, Description: "private softkey",
		Set: Bool(func(d *Device) *bool { return &d.Private })},
	&Option[Device]{Name: "privacy", Description: "full, on or off",
		Set: Value(func(d *Device) *PrivacyMode { return &d.Privacy }, ParsePrivacy)},
	&Option[Device]{Name: "mwilamp", Flags: FlagInheritGlobal, Description: "message waiting lamp",
		Set: Value(func(d *Device) *skinny.LampMode { return &d.MWILamp }, ParseLampMode)},
	&Option[Device]{Name: "mwioncall", Flags: FlagInheritGlobal, Description: "update the message lamp during calls",
		Set: Bool(func(d *Device) *bool { return &d.MWIOnCall })},
	&Option[Device]{Name: "meetme", Flags: FlagInheritGlobal, Description: "conference softkey",
		Set: Bool(func(d *Device) *bool { return &d.MeetMe })},
	&Option[Device]{Name: "meetmeopts", Flags: FlagInheritGlobal, Description: "conference application options",
		Set: String(func(d *Device) *string { return &d.MeetMeOpts })},
	&Option[Device]{Name: "softkeyset", Class: NeedsDeviceReset, Description: "softkey set name",
		Set: String(func(d *Device) *string { return &d.SoftKeySet })},
	&Option[Device]{Name: "useRedialMenu", Default: "off", Description: "redial shows the dialed numbers list",
		Set: Bool(func(d *Device) *bool { return &d.UseRedialMenu })},
	&Option[Device]{Name: "pickupexten", Default: "off", Description: "directed pickup softkey",
		Set: Bool(func(d *Device) *bool { return &d.PickupExten })},
	&Option[Device]{Name: "pickupcontext", Default: "sccp", Description: "context searched by directed pickup",
		Set: String(func(d *Device) *string { return &d.PickupContext })},
	&Option[Device]{Name: "pickupmodeanswer", Default: "on", Description: "answer picked up calls",
		Set: Bool(func(d *Device) *bool { return &d.PickupModeAnswer })},
	&Option[Device]{Name: "monitor", Description: "call recording softkey",
		Set: Bool(func(d *Device) *bool { return &d.Monitor })},
	&Option[Device]{Name: "allowoverlap", Flags: FlagInheritGlobal, Description: "overlap dialing",
		Set: Bool(func(d *Device) *bool { return &d.AllowOverlap })},
	&Option[Device]{Name: "setvar", Flags: FlagMulti, Description: "channel variable name=value",
		Set: listWith(func(d *Device) *[]Variable { return &d.Variables }, one(parseVariable), prepend)},
	&Option[Device]{Name: "permithost", Flags: FlagMulti, Class: NeedsDeviceReset, Description: "host names allowed for this device",
		Set: List(func(d *Device) *[]string { return &d.PermitHosts }, one(func(s string) (string, error) { return s, nil }))},
	&Option[Device]{Name: "addon", Flags: FlagMulti, Class: NeedsDeviceReset, Description: "7914, 7915 or 7916",
		Set: List(func(d *Device) *[]uint32 { return &d.Addons }, one(ParseAddon))},
	&Option[Device]{Name: "button", Flags: FlagMulti, Class: NeedsDeviceReset, Description: "TYPE,NAME[,OPTION[,ARGS]]",
		Set: List(func(d *Device) *[]Button { return &d.Buttons }, one(ParseButton))},
	&Option[Device]{Name: "digittimeout", Flags: FlagInheritGlobal, Default: "8", Description: "seconds to wait for further digits",
		Set: Value(func(d *Device) *int { return &d.DigitTimeout }, ParseSmallInt)},
)
