package config

import (
	"net/netip"
	"time"

	"sccpd/internal/callstate"
	"sccpd/internal/netutil"
	"sccpd/internal/skinny"
)

// Global is the [general] section.
type Global struct {
	ServerName string
	KeepAlive  int
	Debug      string
	Context    string
	DateFormat string
	BindAddr   netip.Addr
	Port       int
	Allow      []string
	Disallow   []string
	Deny       []netip.Prefix
	Permit     []netip.Prefix

	QualityOverSize bool
	LocalNet        []netip.Prefix
	ExternIP        netip.Addr
	ExternHost      string
	ExternRefresh   int

	FirstDigitTimeout      int
	DigitTimeout           int
	DigitTimeoutChar       byte
	RecordDigitTimeoutChar bool
	SimulateEnbloc         bool

	AutoAnswerRingTime int
	AutoAnswerTone     skinny.Tone
	RemoteHangupTone   skinny.Tone
	TransferTone       skinny.Tone
	CallWaitingTone    skinny.Tone

	MusicClass  string
	Language    string
	AccountCode string

	SCCPQoS  netutil.QoS
	AudioQoS netutil.QoS
	VideoQoS netutil.QoS

	EchoCancel              bool
	SilenceSuppression      bool
	TrustPhoneIP            bool
	EarlyRTP                callstate.EarlyRTP
	DND                     DNDMode
	Private                 bool
	MWILamp                 skinny.LampMode
	MWIOnCall               bool
	BlindTransferIndication callstate.BlindTransferIndication
	CfwdAll                 bool
	CfwdBusy                bool
	CfwdNoAnswer            bool
	NAT                     bool
	DirectRTP               bool
	AllowOverlap            bool
	CallGroup               uint64
	PickupGroup             uint64
	PickupModeAnswer        bool
	AMAFlags                int
	CallAnswerOrder         callstate.AnswerOrder
	RegContext              string
	MeetMe                  bool
	MeetMeOpts              string

	HotlineEnabled   bool
	HotlineContext   string
	HotlineExtension string

	Secondary         bool
	Fallback          string
	BackoffTime       int
	RealtimeLineTable string
}

// NewGlobal returns [general] with every option at its default.
func NewGlobal() *Global {
	g := &Global{}
	GlobalSchema.Apply(g, nil, Inherit{})
	return g
}

// ACL is the registration access list: the denies, then the permits, so
// a permit overrides a broader deny.
func (g *Global) ACL() netutil.ACL { return buildACL(g.Deny, g.Permit) }

// Codecs returns the codec preferences.
func (g *Global) Codecs() []skinny.Codec { return Codecs(g.Allow, g.Disallow) }

// KeepAliveInterval returns the keepalive as a duration.
func (g *Global) KeepAliveInterval() time.Duration { return time.Duration(g.KeepAlive) * time.Second }

// ListenAddr returns the signaling address.
func (g *Global) ListenAddr() netip.AddrPort { return netip.AddrPortFrom(g.BindAddr, uint16(g.Port)) }

func buildACL(deny, permit []netip.Prefix) netutil.ACL {
	acl := make(netutil.ACL, 0, len(deny)+len(permit))
	for _, p := range deny {
		acl = append(acl, netutil.Rule{Prefix: p})
	}
	for _, p := range permit {
		acl = append(acl, netutil.Rule{Permit: true, Prefix: p})
	}
	return acl
}

// GlobalSchema is the option table of [general].
var GlobalSchema = NewSchema(SegmentGlobal,
	&Option[Global]{Name: "servername", Default: "sccpd", Description: "name shown on the phone at registration",
		Set: String(func(g *Global) *string { return &g.ServerName })},
	&Option[Global]{Name: "keepalive", Class: NeedsDeviceReset, Default: "60", Description: "keepalive interval in seconds, at least 60",
		Set: Int(func(g *Global) *int { return &g.KeepAlive }, 60, 65535)},
	&Option[Global]{Name: "debug", Default: "core", Description: "debug categories",
		Set: String(func(g *Global) *string { return &g.Debug })},
	&Option[Global]{Name: "context", Class: NeedsDeviceReset, Default: "sccp", Description: "dialplan context",
		Set: String(func(g *Global) *string { return &g.Context })},
	&Option[Global]{Name: "dateformat", Class: NeedsDeviceReset, Default: "D.M.Y", Description: "M-D-Y in any order, M/D/YA for 12h",
		Set: Value(func(g *Global) *string { return &g.DateFormat }, parseDateFormat)},
	&Option[Global]{Name: "bindaddr", Class: NeedsDeviceReset, Default: "0.0.0.0", Description: "signaling listen address",
		Set: Value(func(g *Global) *netip.Addr { return &g.BindAddr }, ParseIP)},
	&Option[Global]{Name: "port", Class: NeedsDeviceReset, Default: "2000", Description: "signaling listen port",
		Set: Int(func(g *Global) *int { return &g.Port }, 1, 65535)},
	&Option[Global]{Name: "disallow", Flags: FlagMulti, Class: NeedsDeviceReset, Description: "codecs to remove, 'all' first",
		Set: List(func(g *Global) *[]string { return &g.Disallow }, parseCodecs)},
	&Option[Global]{Name: "allow", Flags: FlagMulti, Class: NeedsDeviceReset, Description: "codecs in order of preference",
		Set: List(func(g *Global) *[]string { return &g.Allow }, parseCodecs)},
	&Option[Global]{Name: "deny", Flags: FlagMulti, Class: NeedsDeviceReset, Default: "0.0.0.0/0.0.0.0", Description: "networks refused registration",
		Set: List(func(g *Global) *[]netip.Prefix { return &g.Deny }, netutil.ParsePrefixes)},
	&Option[Global]{Name: "permit", Flags: FlagMulti, Class: NeedsDeviceReset, Default: "internal", Description: "networks allowed to register",
		Set: List(func(g *Global) *[]netip.Prefix { return &g.Permit }, netutil.ParsePrefixes)},
	&Option[Global]{Name: "quality_over_size", Default: "true", Description: "prefer quality over packet size when choosing codecs",
		Set: Bool(func(g *Global) *bool { return &g.QualityOverSize })},
	&Option[Global]{Name: "localnet", Flags: FlagMulti, Class: NeedsDeviceReset, Description: "networks not behind NAT",
		Set: List(func(g *Global) *[]netip.Prefix { return &g.LocalNet }, netutil.ParsePrefixes)},
	&Option[Global]{Name: "externip", Class: NeedsDeviceReset, Description: "address announced for media to NATed phones",
		Set: Value(func(g *Global) *netip.Addr { return &g.ExternIP }, ParseIP)},
	&Option[Global]{Name: "externhost", Class: NeedsDeviceReset, Description: "host name resolved for externip",
		Set: String(func(g *Global) *string { return &g.ExternHost })},
	&Option[Global]{Name: "externrefresh", Class: NeedsDeviceReset, Default: "60", Description: "seconds between externhost lookups",
		Set: Value(func(g *Global) *int { return &g.ExternRefresh }, ParseSmallInt)},
	&Option[Global]{Name: "firstdigittimeout", Default: "16", Description: "seconds to wait for the first digit",
		Set: Value(func(g *Global) *int { return &g.FirstDigitTimeout }, ParseSmallInt)},
	&Option[Global]{Name: "digittimeout", Default: "8", Description: "seconds to wait for further digits",
		Set: Value(func(g *Global) *int { return &g.DigitTimeout }, ParseSmallInt)},
	&Option[Global]{Name: "digittimeoutchar", Default: "#", Description: "key that dials immediately",
		Set: Char(func(g *Global) *byte { return &g.DigitTimeoutChar })},
	&Option[Global]{Name: "recorddigittimeoutchar", Default: "false", Description: "keep the dial key in the dialed number",
		Set: Bool(func(g *Global) *bool { return &g.RecordDigitTimeoutChar })},
	&Option[Global]{Name: "simulate_enbloc", Default: "true", Description: "collect digits dialed on hook as one number",
		Set: Bool(func(g *Global) *bool { return &g.SimulateEnbloc })},
	&Option[Global]{Name: "autoanswer_ring_time", Default: "1", Description: "ring seconds before auto answer",
		Set: Value(func(g *Global) *int { return &g.AutoAnswerRingTime }, ParseSmallInt)},
	&Option[Global]{Name: "autoanswer_tone", Default: "0x32", Description: "tone played on auto answer",
		Set: Value(func(g *Global) *skinny.Tone { return &g.AutoAnswerTone }, parseTone)},
	&Option[Global]{Name: "remotehangup_tone", Default: "0x32", Description: "tone played when the far end hangs up",
		Set: Value(func(g *Global) *skinny.Tone { return &g.RemoteHangupTone }, parseTone)},
	&Option[Global]{Name: "transfer_tone", Default: "0", Description: "tone played to the transferred party",
		Set: Value(func(g *Global) *skinny.Tone { return &g.TransferTone }, parseTone)},
	&Option[Global]{Name: "callwaiting_tone", Default: "0x2d", Description: "call waiting tone, 0 to disable",
		Set: Value(func(g *Global) *skinny.Tone { return &g.CallWaitingTone }, parseTone)},
	&Option[Global]{Name: "musicclass", Default: "default", Description: "music on hold class",
		Set: String(func(g *Global) *string { return &g.MusicClass })},
	&Option[Global]{Name: "language", Class: NeedsDeviceReset, Default: "en", Description: "prompt language",
		Set: String(func(g *Global) *string { return &g.Language })},
	&Option[Global]{Name: "accountcode", Default: "skinny", Description: "CDR account code",
		Set: String(func(g *Global) *string { return &g.AccountCode })},
	&Option[Global]{Name: "sccp_tos", Class: NeedsDeviceReset, Default: "0x68", Description: "signaling type of service",
		Set: tosSetter(func(g *Global) *netutil.QoS { return &g.SCCPQoS })},
	&Option[Global]{Name: "sccp_cos", Class: NeedsDeviceReset, Default: "4", Description: "signaling class of service",
		Set: cosSetter(func(g *Global) *netutil.QoS { return &g.SCCPQoS })},
	&Option[Global]{Name: "audio_tos", Class: NeedsDeviceReset, Default: "0xB8", Description: "audio type of service",
		Set: tosSetter(func(g *Global) *netutil.QoS { return &g.AudioQoS })},
	&Option[Global]{Name: "audio_cos", Class: NeedsDeviceReset, Default: "6", Description: "audio class of service",
		Set: cosSetter(func(g *Global) *netutil.QoS { return &g.AudioQoS })},
	&Option[Global]{Name: "video_tos", Class: NeedsDeviceReset, Default: "0x88", Description: "video type of service",
		Set: tosSetter(func(g *Global) *netutil.QoS { return &g.VideoQoS })},
	&Option[Global]{Name: "video_cos", Class: NeedsDeviceReset, Default: "5", Description: "video class of service",
		Set: cosSetter(func(g *Global) *netutil.QoS { return &g.VideoQoS })},
	&Option[Global]{Name: "echocancel", Default: "on", Description: "phone echo cancellation",
		Set: Bool(func(g *Global) *bool { return &g.EchoCancel })},
	&Option[Global]{Name: "silencesuppression", Default: "off", Description: "phone silence suppression",
		Set: Bool(func(g *Global) *bool { return &g.SilenceSuppression })},
	&Option[Global]{Name: "trustphoneip", Default: "no", Description: "use the address the phone reports instead of the socket peer",
		Set: Bool(func(g *Global) *bool { return &g.TrustPhoneIP })},
	&Option[Global]{Name: "earlyrtp", Default: "progress", Description: "none, offhook, dial, ringout or progress",
		Set: earlyRTP(func(g *Global) *callstate.EarlyRTP { return &g.EarlyRTP })},
	&Option[Global]{Name: "dnd", Default: "reject", Description: "off, reject, silent or user",
		Set: Value(func(g *Global) *DNDMode { return &g.DND }, ParseDND)},
	&Option[Global]{Name: "private", Default: "on", Description: "offer the private softkey",
		Set: Bool(func(g *Global) *bool { return &g.Private })},
	&Option[Global]{Name: "mwilamp", Default: "on", Description: "message waiting lamp: off, on, wink, flash or blink",
		Set: Value(func(g *Global) *skinny.LampMode { return &g.MWILamp }, ParseLampMode)},
	&Option[Global]{Name: "mwioncall", Default: "off", Description: "update the message lamp during calls",
		Set: Bool(func(g *Global) *bool { return &g.MWIOnCall })},
	&Option[Global]{Name: "blindtransferindication", Default: "ring", Description: "moh or ring",
		Set: Value(func(g *Global) *callstate.BlindTransferIndication { return &g.BlindTransferIndication }, callstate.ParseBlindTransferIndication)},
	&Option[Global]{Name: "cfwdall", Class: NeedsDeviceReset, Default: "on", Description: "offer call forward all",
		Set: Bool(func(g *Global) *bool { return &g.CfwdAll })},
	&Option[Global]{Name: "cfwdbusy", Class: NeedsDeviceReset, Default: "on", Description: "offer call forward busy",
		Set: Bool(func(g *Global) *bool { return &g.CfwdBusy })},
	&Option[Global]{Name: "cfwdnoanswer", Class: NeedsDeviceReset, Default: "on", Description: "offer call forward no answer",
		Set: Bool(func(g *Global) *bool { return &g.CfwdNoAnswer })},
	&Option[Global]{Name: "nat", Class: NeedsDeviceReset, Default: "off", Description: "phones are behind NAT",
		Set: Bool(func(g *Global) *bool { return &g.NAT })},
	&Option[Global]{Name: "directrtp", Default: "off", Description: "let phones exchange media directly",
		Set: Bool(func(g *Global) *bool { return &g.DirectRTP })},
	&Option[Global]{Name: "allowoverlap", Default: "off", Description: "overlap dialing",
		Set: Bool(func(g *Global) *bool { return &g.AllowOverlap })},
	&Option[Global]{Name: "callgroup", Description: "call groups, e.g. 1,3-5",
		Set: Group(func(g *Global) *uint64 { return &g.CallGroup })},
	&Option[Global]{Name: "pickupgroup", Description: "pickup groups, e.g. 1,3-5",
		Set: Group(func(g *Global) *uint64 { return &g.PickupGroup })},
	&Option[Global]{Name: "pickupmodeanswer", Description: "answer picked up calls",
		Set: Bool(func(g *Global) *bool { return &g.PickupModeAnswer })},
	&Option[Global]{Name: "amaflags", Description: "default, omit, billing or documentation",
		Set: Value(func(g *Global) *int { return &g.AMAFlags }, ParseAMAFlags)},
	&Option[Global]{Name: "protocolversion", Flags: FlagObsolete, Default: "20", Description: "the version is negotiated with each phone"},
	&Option[Global]{Name: "callanswerorder", Default: "oldestfirst", Description: "oldestfirst or latestfirst",
		Set: Value(func(g *Global) *callstate.AnswerOrder { return &g.CallAnswerOrder }, callstate.ParseAnswerOrder)},
	&Option[Global]{Name: "regcontext", Class: NeedsDeviceReset, Default: "sccpregistration", Description: "context lines are registered in",
		Set: String(func(g *Global) *string { return &g.RegContext })},
	&Option[Global]{Name: "meetme", Default: "on", Description: "conference softkey",
		Set: Bool(func(g *Global) *bool { return &g.MeetMe })},
	&Option[Global]{Name: "meetmeopts", Default: "qxd", Description: "conference application options",
		Set: String(func(g *Global) *string { return &g.MeetMeOpts })},
	&Option[Global]{Name: "hotline_enabled", Default: "no", Description: "let unknown phones register on the hotline",
		Set: Bool(func(g *Global) *bool { return &g.HotlineEnabled })},
	&Option[Global]{Name: "hotline_context", Default: "sccp", Description: "context of the hotline line",
		Set: String(func(g *Global) *string { return &g.HotlineContext })},
	&Option[Global]{Name: "hotline_extension", Default: "111", Description: "number the hotline dials on off hook",
		Set: String(func(g *Global) *string { return &g.HotlineExtension })},
	&Option[Global]{Name: "secondary", Default: "no", Description: "a higher priority server serves these phones",
		Set: Bool(func(g *Global) *bool { return &g.Secondary })},
	&Option[Global]{Name: "fallback", Default: "false", Description: "true, false, odd or even",
		Set: Value(func(g *Global) *string { return &g.Fallback }, ParseFallback)},
	&Option[Global]{Name: "backoff_time", Default: "60", Description: "seconds a rejected phone waits before retrying",
		Set: Int(func(g *Global) *int { return &g.BackoffTime }, 1, 65535)},
	&Option[Global]{Name: "linetable|realtimelinetable", Default: "sccplines", Description: "realtime line table",
		Set: Value(func(g *Global) *string { return &g.RealtimeLineTable }, ParseTableName)},
)
