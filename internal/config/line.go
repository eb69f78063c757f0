package config

import "sccpd/internal/skinny"

// Line is the configuration of one directory number.
type Line struct {
	ID          string
	Pin         string
	Label       string
	Description string
	Context     string
	CIDName     string
	CIDNum      string

	DefaultSubscriptionName   string
	DefaultSubscriptionNumber string

	Mailboxes   []Mailbox
	VMNum       string
	AdhocNumber string
	MeetMe      bool
	MeetMeNum   string
	MeetMeOpts  string
	Transfer    bool

	IncomingLimit      int
	EchoCancel         bool
	SilenceSuppression bool
	Language           string
	MusicClass         string
	AccountCode        string
	AMAFlags           int
	CallGroup          uint64
	PickupGroup        uint64
	TransferVM         string

	SecondaryDialtoneDigits string
	SecondaryDialtoneTone   skinny.Tone

	Variables []Variable
	DND       DNDMode
	RegExten  string
}

// ApplyLine applies a line section over l. device is the section of a
// device the line appears on and may be nil.
func ApplyLine(l *Line, sec, device, global *Section) *Report {
	return LineSchema.Apply(l, sec, Inherit{Device: device, Global: global})
}

// LineSchema is the option table of line sections.
var LineSchema = NewSchema(SegmentLine,
	&Option[Line]{Name: "name", Flags: FlagIgnore},
	&Option[Line]{Name: "line", Flags: FlagIgnore},
	&Option[Line]{Name: "type", Flags: FlagIgnore},
	&Option[Line]{Name: "id", Description: "id shown on the phone",
		Set: String(func(l *Line) *string { return &l.ID })},
	&Option[Line]{Name: "pin", Flags: FlagRequired, Description: "pin used to log in to the line",
		Set: String(func(l *Line) *string { return &l.Pin })},
	&Option[Line]{Name: "label", Flags: FlagRequired, Class: NeedsDeviceReset, Description: "text next to the line button",
		Set: String(func(l *Line) *string { return &l.Label })},
	&Option[Line]{Name: "description", Description: "text on the display header",
		Set: String(func(l *Line) *string { return &l.Description })},
	&Option[Line]{Name: "context", Flags: FlagInheritGlobal, Description: "dialplan context",
		Set: String(func(l *Line) *string { return &l.Context })},
	&Option[Line]{Name: "cid_name", Flags: FlagRequired, Description: "caller id name",
		Set: String(func(l *Line) *string { return &l.CIDName })},
	&Option[Line]{Name: "cid_num", Flags: FlagRequired, Description: "caller id number",
		Set: String(func(l *Line) *string { return &l.CIDNum })},
	&Option[Line]{Name: "defaultSubscriptionId_name", Description: "caller name used without a subscription id",
		Set: String(func(l *Line) *string { return &l.DefaultSubscriptionName })},
	&Option[Line]{Name: "defaultSubscriptionId_number", Description: "caller number used without a subscription id",
		Set: String(func(l *Line) *string { return &l.DefaultSubscriptionNumber })},
	&Option[Line]{Name: "callerid", Flags: FlagObsolete, Description: "use cid_name and cid_num"},
	&Option[Line]{Name: "mailbox", Flags: FlagMulti, Description: "mailbox[@context], several allowed",
		Set: listWith(func(l *Line) *[]Mailbox { return &l.Mailboxes }, parseMailboxes, dedupMailboxes)},
	&Option[Line]{Name: "vmnum", Description: "number dialed by the messages button",
		Set: String(func(l *Line) *string { return &l.VMNum })},
	&Option[Line]{Name: "adhocNumber", Description: "number dialed on off hook",
		Set: String(func(l *Line) *string { return &l.AdhocNumber })},
	&Option[Line]{Name: "meetme", Flags: FlagInheritDevice, Description: "conference softkey",
		Set: Bool(func(l *Line) *bool { return &l.MeetMe })},
	&Option[Line]{Name: "meetmenum", Flags: FlagInheritGlobal, Description: "conference room number",
		Set: String(func(l *Line) *string { return &l.MeetMeNum })},
	&Option[Line]{Name: "meetmeopts", Flags: FlagInheritDevice, Description: "conference application options",
		Set: String(func(l *Line) *string { return &l.MeetMeOpts })},
	&Option[Line]{Name: "transfer", Flags: FlagInheritDevice, Default: "on", Description: "transfer allowed",
		Set: Bool(func(l *Line) *bool { return &l.Transfer })},
	&Option[Line]{Name: "incominglimit", Description: "concurrent incoming calls, 0 for no limit",
		Set: Int(func(l *Line) *int { return &l.IncomingLimit }, 0, 255)},
	&Option[Line]{Name: "echocancel", Flags: FlagInheritGlobal, Description: "echo cancellation",
		Set: Bool(func(l *Line) *bool { return &l.EchoCancel })},
	&Option[Line]{Name: "silencesuppression", Flags: FlagInheritGlobal, Description: "silence suppression",
		Set: Bool(func(l *Line) *bool { return &l.SilenceSuppression })},
	&Option[Line]{Name: "language", Flags: FlagInheritGlobal, Description: "prompt language",
		Set: String(func(l *Line) *string { return &l.Language })},
	&Option[Line]{Name: "musicclass", Flags: FlagInheritGlobal, Description: "music on hold class",
		Set: String(func(l *Line) *string { return &l.MusicClass })},
	&Option[Line]{Name: "accountcode", Flags: FlagInheritGlobal, Description: "CDR account code",
		Set: String(func(l *Line) *string { return &l.AccountCode })},
	&Option[Line]{Name: "amaflags", Flags: FlagInheritGlobal, Description: "CDR AMA flags",
		Set: Value(func(l *Line) *int { return &l.AMAFlags }, ParseAMAFlags)},
	&Option[Line]{Name: "callgroup", Flags: FlagInheritGlobal, Description: "call groups",
		Set: Group(func(l *Line) *uint64 { return &l.CallGroup })},
	&Option[Line]{Name: "pickupgroup", Flags: FlagInheritGlobal, Description: "pickup groups",
		Set: Group(func(l *Line) *uint64 { return &l.PickupGroup })},
	&Option[Line]{Name: "trnsfvm", Description: "extension transfer to voicemail dials",
		Set: String(func(l *Line) *string { return &l.TransferVM })},
	&Option[Line]{Name: "secondary_dialtone_digits", Default: "9", Description: "prefix that switches to the outside dial tone",
		Set: Value(func(l *Line) *string { return &l.SecondaryDialtoneDigits }, parseSecondaryDigits)},
	&Option[Line]{Name: "secondary_dialtone_tone", Default: "0x22", Description: "outside dial tone",
		Set: Value(func(l *Line) *skinny.Tone { return &l.SecondaryDialtoneTone }, parseTone)},
	&Option[Line]{Name: "setvar", Flags: FlagMulti, Description: "channel variable name=value",
		Set: listWith(func(l *Line) *[]Variable { return &l.Variables }, one(parseVariable), prepend)},
	&Option[Line]{Name: "dnd", Flags: FlagInheritGlobal, Default: "reject", Description: "off, reject, silent or user",
		Set: Value(func(l *Line) *DNDMode { return &l.DND }, ParseDND)},
	&Option[Line]{Name: "regexten", Description: "extension registered in regcontext",
		Set: String(func(l *Line) *string { return &l.RegExten })},
)
