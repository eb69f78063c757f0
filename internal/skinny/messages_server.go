package skinny

import (
	"net/netip"
	"time"
)

// Messages sent by the server.

type RegisterAck struct {
	KeepAlive          uint32
	DateTemplate       string
	SecondaryKeepAlive uint32
	ProtocolVer        uint8
	Unknown1           uint8
	Unknown2           uint8
	Unknown3           uint8
}

func (*RegisterAck) ID() MessageID { return RegisterAckMessage }

func (m *RegisterAck) encode(w *writer, _ uint8) {
	w.u32(m.KeepAlive)
	w.str(m.DateTemplate, DateTemplateSize)
	w.u8(0)
	w.u8(0)
	w.u32(m.SecondaryKeepAlive)
	w.u8(m.ProtocolVer)
	w.u8(m.Unknown1)
	w.u8(m.Unknown2)
	w.u8(m.Unknown3)
}

func (m *RegisterAck) decode(r *reader, _ uint8) {
	m.KeepAlive = r.u32()
	m.DateTemplate = r.str(DateTemplateSize)
	r.skip(2)
	m.SecondaryKeepAlive = r.u32()
	m.ProtocolVer = r.u8()
	m.Unknown1 = r.u8()
	m.Unknown2 = r.u8()
	m.Unknown3 = r.u8()
}

type StartTone struct {
	Tone          Tone
	Timeout       uint32
	LineInstance  uint32
	CallReference uint32
}

func (*StartTone) ID() MessageID { return StartToneMessage }

func (m *StartTone) encode(w *writer, _ uint8) {
	w.u32(uint32(m.Tone))
	w.u32(m.Timeout)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *StartTone) decode(r *reader, _ uint8) {
	m.Tone = Tone(r.u32())
	m.Timeout = r.u32()
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type StopTone struct {
	LineInstance  uint32
	CallReference uint32
}

func (*StopTone) ID() MessageID { return StopToneMessage }

func (m *StopTone) encode(w *writer, _ uint8) {
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.u32(0)
}

func (m *StopTone) decode(r *reader, _ uint8) {
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

// SetRinger.RingDuration values.
const (
	RingForever uint32 = 1
	RingOnce    uint32 = 2
)

type SetRinger struct {
	Mode          RingMode
	RingDuration  uint32
	LineInstance  uint32
	CallReference uint32
}

func (*SetRinger) ID() MessageID { return SetRingerMessage }

func (m *SetRinger) encode(w *writer, _ uint8) {
	w.u32(uint32(m.Mode))
	w.u32(m.RingDuration)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *SetRinger) decode(r *reader, _ uint8) {
	m.Mode = RingMode(r.u32())
	m.RingDuration = r.u32()
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type SetLamp struct {
	Stimulus Stimulus
	Instance uint32
	Mode     LampMode
}

func (*SetLamp) ID() MessageID { return SetLampMessage }

func (m *SetLamp) encode(w *writer, _ uint8) {
	w.u32(uint32(m.Stimulus))
	w.u32(m.Instance)
	w.u32(uint32(m.Mode))
}

func (m *SetLamp) decode(r *reader, _ uint8) {
	m.Stimulus = Stimulus(r.u32())
	m.Instance = r.u32()
	m.Mode = LampMode(r.u32())
}

type SetSpeakerMode struct {
	Mode SpeakerMode
}

func (*SetSpeakerMode) ID() MessageID               { return SetSpeakerModeMessage }
func (m *SetSpeakerMode) encode(w *writer, _ uint8) { w.u32(uint32(m.Mode)) }
func (m *SetSpeakerMode) decode(r *reader, _ uint8) { m.Mode = SpeakerMode(r.u32()) }

// MediaParams are the RTP stream parameters shared by the receive and
// transmit channel messages.
type MediaParams struct {
	PacketSize  uint32 // milliseconds of audio per packet
	Codec       Codec
	G723BitRate uint32
	DTMFPayload uint32
	RTPTimeout  uint32
}

// StartMediaTransmission points the phone at the far end of the RTP stream.
type StartMediaTransmission struct {
	ConferenceID       uint32
	PassThruPartyID    uint32
	RemoteIP           netip.Addr
	RemotePort         uint32
	Media              MediaParams
	Precedence         uint32
	SilenceSuppression uint32
	MaxFramesPerPacket uint32
	CallReference      uint32
}

func (*StartMediaTransmission) ID() MessageID { return StartMediaTransmissionMessage }

func (m *StartMediaTransmission) encode(w *writer, ver uint8) {
	w.u32(m.ConferenceID)
	w.u32(m.PassThruPartyID)
	if ver >= 17 {
		w.ipv(m.RemoteIP)
	} else {
		w.ip4(m.RemoteIP)
	}
	w.u32(m.RemotePort)
	w.u32(m.Media.PacketSize)
	w.u32(uint32(m.Media.Codec))
	w.u32(m.Precedence)
	w.u32(m.SilenceSuppression)
	w.u32(m.MaxFramesPerPacket)
	w.u32(m.Media.G723BitRate)
	w.u32(m.CallReference)
	w.zeros(14 * 4)
	w.u32(m.Media.DTMFPayload)
	w.u32(m.Media.RTPTimeout)
	w.zeros(2 * 4)
}

func (m *StartMediaTransmission) decode(r *reader, ver uint8) {
	m.ConferenceID = r.u32()
	m.PassThruPartyID = r.u32()
	if ver >= 17 {
		m.RemoteIP = r.ipv()
	} else {
		m.RemoteIP = r.ip4()
	}
	m.RemotePort = r.u32()
	m.Media.PacketSize = r.u32()
	m.Media.Codec = Codec(r.u32())
	m.Precedence = r.u32()
	m.SilenceSuppression = r.u32()
	m.MaxFramesPerPacket = r.u32()
	m.Media.G723BitRate = r.u32()
	m.CallReference = r.u32()
	r.skip(14 * 4)
	m.Media.DTMFPayload = r.u32()
	m.Media.RTPTimeout = r.u32()
}

type StopMediaTransmission struct {
	ConferenceID    uint32
	PassThruPartyID uint32
	CallReference   uint32
}

func (*StopMediaTransmission) ID() MessageID { return StopMediaTransmissionMessage }

func (m *StopMediaTransmission) encode(w *writer, _ uint8) {
	w.u32(m.ConferenceID)
	w.u32(m.PassThruPartyID)
	w.u32(m.CallReference)
	w.u32(0)
}

func (m *StopMediaTransmission) decode(r *reader, _ uint8) {
	m.ConferenceID = r.u32()
	m.PassThruPartyID = r.u32()
	m.CallReference = r.u32()
}

// CallInfo describes the parties of a call for the phone display.
type CallInfo struct {
	CallingPartyName            string
	CallingParty                string
	CalledPartyName             string
	CalledParty                 string
	LineInstance                uint32
	CallReference               uint32
	CallType                    CallType
	OriginalCalledPartyName     string
	OriginalCalledParty         string
	LastRedirectingPartyName    string
	LastRedirectingParty        string
	OriginalCdpnRedirectReason  uint32
	LastRedirectingReason       uint32
	CgpnVoiceMailbox            string
	CdpnVoiceMailbox            string
	OriginalCdpnVoiceMailbox    string
	LastRedirectingVoiceMailbox string
	CallInstance                uint32
	CallSecurityStatus          uint32
	PartyPIRestrictionBits      uint32
}

func (*CallInfo) ID() MessageID { return CallInfoMessage }

func (m *CallInfo) encode(w *writer, _ uint8) {
	w.str(m.CallingPartyName, NameSize)
	w.str(m.CallingParty, DirNumSize)
	w.str(m.CalledPartyName, NameSize)
	w.str(m.CalledParty, DirNumSize)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.u32(uint32(m.CallType))
	w.str(m.OriginalCalledPartyName, NameSize)
	w.str(m.OriginalCalledParty, DirNumSize)
	w.str(m.LastRedirectingPartyName, NameSize)
	w.str(m.LastRedirectingParty, DirNumSize)
	w.u32(m.OriginalCdpnRedirectReason)
	w.u32(m.LastRedirectingReason)
	w.str(m.CgpnVoiceMailbox, DirNumSize)
	w.str(m.CdpnVoiceMailbox, DirNumSize)
	w.str(m.OriginalCdpnVoiceMailbox, DirNumSize)
	w.str(m.LastRedirectingVoiceMailbox, DirNumSize)
	w.u32(m.CallInstance)
	w.u32(m.CallSecurityStatus)
	w.u32(m.PartyPIRestrictionBits)
}

func (m *CallInfo) decode(r *reader, _ uint8) {
	m.CallingPartyName = r.str(NameSize)
	m.CallingParty = r.str(DirNumSize)
	m.CalledPartyName = r.str(NameSize)
	m.CalledParty = r.str(DirNumSize)
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
	m.CallType = CallType(r.u32())
	m.OriginalCalledPartyName = r.str(NameSize)
	m.OriginalCalledParty = r.str(DirNumSize)
	m.LastRedirectingPartyName = r.str(NameSize)
	m.LastRedirectingParty = r.str(DirNumSize)
	m.OriginalCdpnRedirectReason = r.u32()
	m.LastRedirectingReason = r.u32()
	m.CgpnVoiceMailbox = r.str(DirNumSize)
	m.CdpnVoiceMailbox = r.str(DirNumSize)
	m.OriginalCdpnVoiceMailbox = r.str(DirNumSize)
	m.LastRedirectingVoiceMailbox = r.str(DirNumSize)
	m.CallInstance = r.u32()
	m.CallSecurityStatus = r.u32()
	m.PartyPIRestrictionBits = r.u32()
}

// CallInfoDynamic carries the same data as CallInfo with the strings packed
// after the fixed fields.
type CallInfoDynamic struct {
	CallInfo
}

func (*CallInfoDynamic) ID() MessageID { return CallInfoDynamicMessage }

func (m *CallInfoDynamic) encode(w *writer, _ uint8) {
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.u32(uint32(m.CallType))
	w.u32(m.OriginalCdpnRedirectReason)
	w.u32(m.LastRedirectingReason)
	w.u32(m.CallInstance)
	w.u32(m.CallSecurityStatus)
	w.u32(m.PartyPIRestrictionBits)
	w.strs(
		m.CallingParty, m.CalledParty, m.OriginalCalledParty, m.LastRedirectingParty,
		m.CgpnVoiceMailbox, m.CdpnVoiceMailbox, m.OriginalCdpnVoiceMailbox, m.LastRedirectingVoiceMailbox,
		m.CallingPartyName, m.CalledPartyName, m.OriginalCalledPartyName, m.LastRedirectingPartyName,
	)
}

func (m *CallInfoDynamic) decode(r *reader, _ uint8) {
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
	m.CallType = CallType(r.u32())
	m.OriginalCdpnRedirectReason = r.u32()
	m.LastRedirectingReason = r.u32()
	m.CallInstance = r.u32()
	m.CallSecurityStatus = r.u32()
	m.PartyPIRestrictionBits = r.u32()
	s := r.strs(12)
	m.CallingParty, m.CalledParty, m.OriginalCalledParty, m.LastRedirectingParty = s[0], s[1], s[2], s[3]
	m.CgpnVoiceMailbox, m.CdpnVoiceMailbox, m.OriginalCdpnVoiceMailbox, m.LastRedirectingVoiceMailbox = s[4], s[5], s[6], s[7]
	m.CallingPartyName, m.CalledPartyName, m.OriginalCalledPartyName, m.LastRedirectingPartyName = s[8], s[9], s[10], s[11]
}

// ForwardStat reports call forward settings of a line. v19 appends a
// trailing word.
type ForwardStat struct {
	Status             uint32
	LineNumber         uint32
	CfwdAllStatus      uint32
	CfwdAllNumber      string
	CfwdBusyStatus     uint32
	CfwdBusyNumber     string
	CfwdNoAnswerStatus uint32
	CfwdNoAnswerNumber string
}

func (*ForwardStat) ID() MessageID { return ForwardStatMessage }

func (m *ForwardStat) encode(w *writer, ver uint8) {
	w.u32(m.Status)
	w.u32(m.LineNumber)
	w.u32(m.CfwdAllStatus)
	w.str(m.CfwdAllNumber, DirNumSize)
	w.u32(m.CfwdBusyStatus)
	w.str(m.CfwdBusyNumber, DirNumSize)
	w.u32(m.CfwdNoAnswerStatus)
	w.str(m.CfwdNoAnswerNumber, DirNumSize)
	if ver >= 19 {
		w.u32(0)
	}
}

func (m *ForwardStat) decode(r *reader, _ uint8) {
	m.Status = r.u32()
	m.LineNumber = r.u32()
	m.CfwdAllStatus = r.u32()
	m.CfwdAllNumber = r.str(DirNumSize)
	m.CfwdBusyStatus = r.u32()
	m.CfwdBusyNumber = r.str(DirNumSize)
	m.CfwdNoAnswerStatus = r.u32()
	m.CfwdNoAnswerNumber = r.str(DirNumSize)
}

type SpeedDialStat struct {
	Number      uint32
	DirNumber   string
	DisplayName string
}

func (*SpeedDialStat) ID() MessageID { return SpeedDialStatMessage }

func (m *SpeedDialStat) encode(w *writer, _ uint8) {
	w.u32(m.Number)
	w.str(m.DirNumber, DirNumSize)
	w.str(m.DisplayName, NameSize)
}

func (m *SpeedDialStat) decode(r *reader, _ uint8) {
	m.Number = r.u32()
	m.DirNumber = r.str(DirNumSize)
	m.DisplayName = r.str(NameSize)
}

type LineStat struct {
	LineNumber                uint32
	DirNumber                 string
	FullyQualifiedDisplayName string
	DisplayName               string
}

func (*LineStat) ID() MessageID { return LineStatMessage }

func (m *LineStat) encode(w *writer, _ uint8) {
	w.u32(m.LineNumber)
	w.str(m.DirNumber, DirNumSize)
	w.str(m.FullyQualifiedDisplayName, NameSize)
	w.str(m.DisplayName, ButtonTemplateNameSize)
}

func (m *LineStat) decode(r *reader, _ uint8) {
	m.LineNumber = r.u32()
	m.DirNumber = r.str(DirNumSize)
	m.FullyQualifiedDisplayName = r.str(NameSize)
	m.DisplayName = r.str(ButtonTemplateNameSize)
}

type ConfigStat struct {
	Station          StationIdentifier
	UserName         string
	ServerName       string
	NumberLines      uint32
	NumberSpeedDials uint32
}

func (*ConfigStat) ID() MessageID { return ConfigStatMessage }

func (m *ConfigStat) encode(w *writer, _ uint8) {
	m.Station.encode(w)
	w.str(m.UserName, NameSize)
	w.str(m.ServerName, NameSize)
	w.u32(m.NumberLines)
	w.u32(m.NumberSpeedDials)
}

func (m *ConfigStat) decode(r *reader, _ uint8) {
	m.Station.decode(r)
	m.UserName = r.str(NameSize)
	m.ServerName = r.str(NameSize)
	m.NumberLines = r.u32()
	m.NumberSpeedDials = r.u32()
}

type DefineTimeDate struct {
	Year         uint32
	Month        uint32
	DayOfWeek    uint32
	Day          uint32
	Hour         uint32
	Minute       uint32
	Seconds      uint32
	Milliseconds uint32
	SystemTime   uint32
}

// NewDefineTimeDate fills the message from t in its own location.
func NewDefineTimeDate(t time.Time) *DefineTimeDate {
	return &DefineTimeDate{
		Year:         uint32(t.Year()),
		Month:        uint32(t.Month()),
		DayOfWeek:    uint32(t.Weekday()),
		Day:          uint32(t.Day()),
		Hour:         uint32(t.Hour()),
		Minute:       uint32(t.Minute()),
		Seconds:      uint32(t.Second()),
		Milliseconds: uint32(t.Nanosecond() / int(time.Millisecond)),
		SystemTime:   uint32(t.Unix()),
	}
}

func (*DefineTimeDate) ID() MessageID { return DefineTimeDateMessage }

func (m *DefineTimeDate) encode(w *writer, _ uint8) {
	for _, v := range []uint32{m.Year, m.Month, m.DayOfWeek, m.Day, m.Hour, m.Minute, m.Seconds, m.Milliseconds, m.SystemTime} {
		w.u32(v)
	}
}

func (m *DefineTimeDate) decode(r *reader, _ uint8) {
	for _, p := range []*uint32{&m.Year, &m.Month, &m.DayOfWeek, &m.Day, &m.Hour, &m.Minute, &m.Seconds, &m.Milliseconds, &m.SystemTime} {
		*p = r.u32()
	}
}

// ButtonDefinition binds a template slot to a button kind.
type ButtonDefinition struct {
	Instance uint8
	Type     ButtonType
}

// ButtonTemplate always occupies the full fixed table on the wire; only the
// counted entries are meaningful.
type ButtonTemplate struct {
	ButtonOffset     uint32
	TotalButtonCount uint32
	Definitions      []ButtonDefinition
}

func (*ButtonTemplate) ID() MessageID { return ButtonTemplateMessage }

func (m *ButtonTemplate) encode(w *writer, _ uint8) {
	n := min(len(m.Definitions), MaxButtonTemplate)
	w.u32(m.ButtonOffset)
	w.u32(uint32(n))
	w.u32(m.TotalButtonCount)
	for _, d := range m.Definitions[:n] {
		w.u8(d.Instance)
		w.u8(uint8(d.Type))
	}
	w.zeros(2 * (MaxButtonTemplate - n))
}

func (m *ButtonTemplate) decode(r *reader, _ uint8) {
	m.ButtonOffset = r.u32()
	n := int(min(r.u32(), MaxButtonTemplate))
	m.TotalButtonCount = r.u32()
	m.Definitions = make([]ButtonDefinition, n)
	for i := range m.Definitions {
		m.Definitions[i].Instance = r.u8()
		m.Definitions[i].Type = ButtonType(r.u8())
	}
}

type Version struct {
	Version string
}

func (*Version) ID() MessageID               { return VersionMessage }
func (m *Version) encode(w *writer, _ uint8) { w.str(m.Version, VersionSize) }
func (m *Version) decode(r *reader, _ uint8) { m.Version = r.str(VersionSize) }

type DisplayText struct {
	Text string
}

func (*DisplayText) ID() MessageID               { return DisplayTextMessage }
func (m *DisplayText) encode(w *writer, _ uint8) { w.str(m.Text, DisplayTextSize) }
func (m *DisplayText) decode(r *reader, _ uint8) { m.Text = r.str(DisplayTextSize) }

type ClearDisplay struct{}

func (*ClearDisplay) ID() MessageID         { return ClearDisplayMessage }
func (*ClearDisplay) encode(*writer, uint8) {}
func (*ClearDisplay) decode(*reader, uint8) {}

type CapabilitiesReq struct{}

func (*CapabilitiesReq) ID() MessageID         { return CapabilitiesReqMessage }
func (*CapabilitiesReq) encode(*writer, uint8) {}
func (*CapabilitiesReq) decode(*reader, uint8) {}

type RegisterReject struct {
	Text string
}

func (*RegisterReject) ID() MessageID               { return RegisterRejectMessage }
func (m *RegisterReject) encode(w *writer, _ uint8) { w.str(m.Text, DisplayTextSize) }
func (m *RegisterReject) decode(r *reader, _ uint8) { m.Text = r.str(DisplayTextSize) }

type Reset struct {
	Type ResetType
}

func (*Reset) ID() MessageID               { return ResetMessage }
func (m *Reset) encode(w *writer, _ uint8) { w.u32(uint32(m.Type)) }
func (m *Reset) decode(r *reader, _ uint8) { m.Type = ResetType(r.u32()) }

type KeepAliveAck struct{}

func (*KeepAliveAck) ID() MessageID         { return KeepAliveAckMessage }
func (*KeepAliveAck) encode(*writer, uint8) {}
func (*KeepAliveAck) decode(*reader, uint8) {}

// OpenReceiveChannel asks the phone to open an RTP listener. The remote
// address tells the phone where media will come from.
type OpenReceiveChannel struct {
	ConferenceID    uint32
	PassThruPartyID uint32
	Media           MediaParams
	VAD             uint32
	CallReference   uint32
	RemoteIP        netip.Addr
}

func (*OpenReceiveChannel) ID() MessageID { return OpenReceiveChannelMessage }

func (m *OpenReceiveChannel) encode(w *writer, ver uint8) {
	w.u32(m.ConferenceID)
	w.u32(m.PassThruPartyID)
	w.u32(m.Media.PacketSize)
	w.u32(uint32(m.Media.Codec))
	w.u32(m.VAD)
	w.u32(m.Media.G723BitRate)
	w.u32(m.CallReference)
	w.zeros(14 * 4)
	w.u32(m.Media.DTMFPayload)
	w.u32(m.Media.RTPTimeout)
	if ver >= 17 {
		w.zeros(2 * 4)
		w.ipv(m.RemoteIP)
		w.zeros(2 * 4)
		return
	}
	w.zeros(2 * 4)
	w.ip16(m.RemoteIP)
	w.u32(0)
}

func (m *OpenReceiveChannel) decode(r *reader, ver uint8) {
	m.ConferenceID = r.u32()
	m.PassThruPartyID = r.u32()
	m.Media.PacketSize = r.u32()
	m.Media.Codec = Codec(r.u32())
	m.VAD = r.u32()
	m.Media.G723BitRate = r.u32()
	m.CallReference = r.u32()
	r.skip(14 * 4)
	m.Media.DTMFPayload = r.u32()
	m.Media.RTPTimeout = r.u32()
	r.skip(2 * 4)
	if ver >= 17 {
		m.RemoteIP = r.ipv()
		return
	}
	m.RemoteIP = r.ip16(false)
}

type CloseReceiveChannel struct {
	ConferenceID    uint32
	PassThruPartyID uint32
	CallReference   uint32
}

func (*CloseReceiveChannel) ID() MessageID { return CloseReceiveChannelMessage }

func (m *CloseReceiveChannel) encode(w *writer, _ uint8) {
	w.u32(m.ConferenceID)
	w.u32(m.PassThruPartyID)
	w.u32(m.CallReference)
}

func (m *CloseReceiveChannel) decode(r *reader, _ uint8) {
	m.ConferenceID = r.u32()
	m.PassThruPartyID = r.u32()
	m.CallReference = r.u32()
}

// Statistics processing modes.
const (
	StatsClear      uint32 = 0
	StatsDoNotClear uint32 = 1
)

// ConnectionStatisticsReq asks for media counters of a call. v19 inserts a
// single byte after the directory number.
type ConnectionStatisticsReq struct {
	DirectoryNumber string
	CallReference   uint32
	Processing      uint32
}

func (*ConnectionStatisticsReq) ID() MessageID { return ConnectionStatisticsReqMessage }

func (m *ConnectionStatisticsReq) encode(w *writer, ver uint8) {
	w.str(m.DirectoryNumber, DirNumSize)
	if ver >= 19 {
		w.u8(0)
	}
	w.u32(m.CallReference)
	w.u32(m.Processing)
}

func (m *ConnectionStatisticsReq) decode(r *reader, ver uint8) {
	m.DirectoryNumber = r.str(DirNumSize)
	if ver >= 19 {
		r.skip(1)
	}
	m.CallReference = r.u32()
	m.Processing = r.u32()
}

// SoftKeyDefinition is one entry of the softkey template.
type SoftKeyDefinition struct {
	Label string
	Event uint32
}

type SoftKeyTemplateRes struct {
	Offset      uint32
	Total       uint32
	Definitions []SoftKeyDefinition
}

func (*SoftKeyTemplateRes) ID() MessageID { return SoftKeyTemplateResMessage }

func (m *SoftKeyTemplateRes) encode(w *writer, _ uint8) {
	n := min(len(m.Definitions), MaxSoftKeyDefinitions)
	w.u32(m.Offset)
	w.u32(uint32(n))
	w.u32(m.Total)
	for _, d := range m.Definitions[:n] {
		w.str(d.Label, SoftKeyLabelSize)
		w.u32(d.Event)
	}
}

func (m *SoftKeyTemplateRes) decode(r *reader, _ uint8) {
	m.Offset = r.u32()
	n := int(min(r.u32(), MaxSoftKeyDefinitions))
	m.Total = r.u32()
	m.Definitions = make([]SoftKeyDefinition, n)
	for i := range m.Definitions {
		m.Definitions[i].Label = r.str(SoftKeyLabelSize)
		m.Definitions[i].Event = r.u32()
	}
}

// SoftKeySetDefinition lists, per softkey position, the template index
// (one based, zero for empty) and an info index.
type SoftKeySetDefinition struct {
	TemplateIndex [SoftKeyIndexSize]uint8
	InfoIndex     [SoftKeyIndexSize]uint16
}

// SoftKeySetRes always carries the full table of sets.
type SoftKeySetRes struct {
	Offset uint32
	Total  uint32
	Sets   []SoftKeySetDefinition
}

func (*SoftKeySetRes) ID() MessageID { return SoftKeySetResMessage }

func (m *SoftKeySetRes) encode(w *writer, _ uint8) {
	n := min(len(m.Sets), MaxSoftKeySets)
	w.u32(m.Offset)
	w.u32(uint32(n))
	w.u32(m.Total)
	for i := 0; i < MaxSoftKeySets; i++ {
		var d SoftKeySetDefinition
		if i < n {
			d = m.Sets[i]
		}
		w.raw(d.TemplateIndex[:])
		for _, v := range d.InfoIndex {
			w.u16(v)
		}
	}
}

func (m *SoftKeySetRes) decode(r *reader, _ uint8) {
	m.Offset = r.u32()
	n := int(min(r.u32(), MaxSoftKeySets))
	m.Total = r.u32()
	m.Sets = make([]SoftKeySetDefinition, n)
	for i := range m.Sets {
		copy(m.Sets[i].TemplateIndex[:], r.take(SoftKeyIndexSize))
		for j := range m.Sets[i].InfoIndex {
			m.Sets[i].InfoIndex[j] = r.u16()
		}
	}
}

type SelectSoftKeys struct {
	LineInstance  uint32
	CallReference uint32
	SetIndex      uint32
	ValidKeyMask  uint32
}

func (*SelectSoftKeys) ID() MessageID { return SelectSoftKeysMessage }

func (m *SelectSoftKeys) encode(w *writer, _ uint8) {
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.u32(m.SetIndex)
	w.u32(m.ValidKeyMask)
}

func (m *SelectSoftKeys) decode(r *reader, _ uint8) {
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
	m.SetIndex = r.u32()
	m.ValidKeyMask = r.u32()
}

type CallStateMsg struct {
	State         CallState
	LineInstance  uint32
	CallReference uint32
	Visibility    uint32
	Priority      uint32
}

func (*CallStateMsg) ID() MessageID { return CallStateMessage }

func (m *CallStateMsg) encode(w *writer, _ uint8) {
	w.u32(uint32(m.State))
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.u32(m.Visibility)
	w.u32(m.Priority)
	w.u32(0)
}

func (m *CallStateMsg) decode(r *reader, _ uint8) {
	m.State = CallState(r.u32())
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
	m.Visibility = r.u32()
	m.Priority = r.u32()
}

type DisplayPromptStatus struct {
	Timeout       uint32
	Text          string
	LineInstance  uint32
	CallReference uint32
}

func (*DisplayPromptStatus) ID() MessageID { return DisplayPromptStatusMessage }

func (m *DisplayPromptStatus) encode(w *writer, _ uint8) {
	w.u32(m.Timeout)
	w.str(m.Text, PromptSize)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *DisplayPromptStatus) decode(r *reader, _ uint8) {
	m.Timeout = r.u32()
	m.Text = r.str(PromptSize)
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type ClearPromptStatus struct {
	LineInstance  uint32
	CallReference uint32
}

func (*ClearPromptStatus) ID() MessageID { return ClearPromptStatusMessage }

func (m *ClearPromptStatus) encode(w *writer, _ uint8) {
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *ClearPromptStatus) decode(r *reader, _ uint8) {
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type DisplayNotify struct {
	Timeout uint32
	Text    string
}

func (*DisplayNotify) ID() MessageID { return DisplayNotifyMessage }

func (m *DisplayNotify) encode(w *writer, _ uint8) {
	w.u32(m.Timeout)
	w.str(m.Text, DisplayNotifySize)
}

func (m *DisplayNotify) decode(r *reader, _ uint8) {
	m.Timeout = r.u32()
	m.Text = r.str(DisplayNotifySize)
}

type ClearNotify struct{}

func (*ClearNotify) ID() MessageID         { return ClearNotifyMessage }
func (*ClearNotify) encode(*writer, uint8) {}
func (*ClearNotify) decode(*reader, uint8) {}

type ActivateCallPlane struct {
	LineInstance uint32
}

func (*ActivateCallPlane) ID() MessageID               { return ActivateCallPlaneMessage }
func (m *ActivateCallPlane) encode(w *writer, _ uint8) { w.u32(m.LineInstance) }
func (m *ActivateCallPlane) decode(r *reader, _ uint8) { m.LineInstance = r.u32() }

type DeactivateCallPlane struct{}

func (*DeactivateCallPlane) ID() MessageID         { return DeactivateCallPlaneMessage }
func (*DeactivateCallPlane) encode(*writer, uint8) {}
func (*DeactivateCallPlane) decode(*reader, uint8) {}

type UnregisterAck struct {
	Status uint32
}

func (*UnregisterAck) ID() MessageID               { return UnregisterAckMessage }
func (m *UnregisterAck) encode(w *writer, _ uint8) { w.u32(m.Status) }
func (m *UnregisterAck) decode(r *reader, _ uint8) { m.Status = r.u32() }

type BackSpaceReq struct {
	LineInstance  uint32
	CallReference uint32
}

func (*BackSpaceReq) ID() MessageID { return BackSpaceReqMessage }

func (m *BackSpaceReq) encode(w *writer, _ uint8) {
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *BackSpaceReq) decode(r *reader, _ uint8) {
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type RegisterTokenAck struct{}

func (*RegisterTokenAck) ID() MessageID         { return RegisterTokenAckMessage }
func (*RegisterTokenAck) encode(*writer, uint8) {}
func (*RegisterTokenAck) decode(*reader, uint8) {}

type RegisterTokenReject struct {
	WaitTime uint32
}

func (*RegisterTokenReject) ID() MessageID               { return RegisterTokenRejectMessage }
func (m *RegisterTokenReject) encode(w *writer, _ uint8) { w.u32(m.WaitTime) }
func (m *RegisterTokenReject) decode(r *reader, _ uint8) { m.WaitTime = r.u32() }

// DialedNumber echoes the number being dialled. v19 widened the number to
// 25 bytes and pads the message back to a word boundary.
type DialedNumber struct {
	CalledParty   string
	LineInstance  uint32
	CallReference uint32
}

func (*DialedNumber) ID() MessageID { return DialedNumberMessage }

func (m *DialedNumber) encode(w *writer, ver uint8) {
	if ver >= 19 {
		w.str(m.CalledParty, 25)
	} else {
		w.str(m.CalledParty, DirNumSize)
	}
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	if ver >= 19 {
		w.zeros(3)
	}
}

func (m *DialedNumber) decode(r *reader, ver uint8) {
	if ver >= 19 {
		m.CalledParty = r.str(25)
	} else {
		m.CalledParty = r.str(DirNumSize)
	}
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type UserToDeviceData struct {
	AppID         uint32
	LineInstance  uint32
	CallReference uint32
	TransactionID uint32
	Data          []byte
}

func (*UserToDeviceData) ID() MessageID { return UserToDeviceDataMessage }

func (m *UserToDeviceData) encode(w *writer, _ uint8) {
	data := m.Data
	if len(data) > XMLMessageSize {
		data = data[:XMLMessageSize]
	}
	w.u32(m.AppID)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.u32(m.TransactionID)
	w.u32(uint32(len(data)))
	w.raw(data)
	w.zeros((4 - len(data)%4) % 4)
}

func (m *UserToDeviceData) decode(r *reader, _ uint8) {
	m.AppID = r.u32()
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
	m.TransactionID = r.u32()
	n := int(min(r.u32(), XMLMessageSize))
	m.Data = r.take(n)
}

type UserToDeviceDataVersion1 struct {
	AppID           uint32
	LineInstance    uint32
	CallReference   uint32
	TransactionID   uint32
	SequenceFlag    uint32
	DisplayPriority uint32
	ConferenceID    uint32
	AppInstanceID   uint32
	Routing         uint32
	Data            []byte
}

func (*UserToDeviceDataVersion1) ID() MessageID { return UserToDeviceDataVersion1Message }

func (m *UserToDeviceDataVersion1) encode(w *writer, _ uint8) {
	data := m.Data
	if len(data) > XMLMessageSize {
		data = data[:XMLMessageSize]
	}
	w.u32(m.AppID)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.u32(m.TransactionID)
	w.u32(uint32(len(data)))
	w.u32(m.SequenceFlag)
	w.u32(m.DisplayPriority)
	w.u32(m.ConferenceID)
	w.u32(m.AppInstanceID)
	w.u32(m.Routing)
	w.raw(data)
	w.zeros((4 - len(data)%4) % 4)
}

func (m *UserToDeviceDataVersion1) decode(r *reader, _ uint8) {
	m.AppID = r.u32()
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
	m.TransactionID = r.u32()
	n := int(min(r.u32(), XMLMessageSize))
	m.SequenceFlag = r.u32()
	m.DisplayPriority = r.u32()
	m.ConferenceID = r.u32()
	m.AppInstanceID = r.u32()
	m.Routing = r.u32()
	m.Data = r.take(n)
}

// Feature status values.
const (
	FeatureStatusOff uint32 = 0
	FeatureStatusOn  uint32 = 1
)

type FeatureStat struct {
	Instance  uint32
	FeatureID uint32
	Label     string
	Status    uint32
}

func (*FeatureStat) ID() MessageID { return FeatureStatMessage }

func (m *FeatureStat) encode(w *writer, _ uint8) {
	w.u32(m.Instance)
	w.u32(m.FeatureID)
	w.str(m.Label, NameSize)
	w.u32(m.Status)
}

func (m *FeatureStat) decode(r *reader, _ uint8) {
	m.Instance = r.u32()
	m.FeatureID = r.u32()
	m.Label = r.str(NameSize)
	m.Status = r.u32()
}

type DisplayPriNotify struct {
	Timeout  uint32
	Priority uint32
	Text     string
}

func (*DisplayPriNotify) ID() MessageID { return DisplayPriNotifyMessage }

func (m *DisplayPriNotify) encode(w *writer, _ uint8) {
	w.u32(m.Timeout)
	w.u32(m.Priority)
	w.str(m.Text, DisplayNotifySize)
}

func (m *DisplayPriNotify) decode(r *reader, _ uint8) {
	m.Timeout = r.u32()
	m.Priority = r.u32()
	m.Text = r.str(DisplayNotifySize)
}

type ServiceURLStat struct {
	Index uint32
	URL   string
	Label string
}

func (*ServiceURLStat) ID() MessageID { return ServiceURLStatMessage }

func (m *ServiceURLStat) encode(w *writer, _ uint8) {
	w.u32(m.Index)
	w.str(m.URL, ServiceURLSize)
	w.str(m.Label, NameSize)
}

func (m *ServiceURLStat) decode(r *reader, _ uint8) {
	m.Index = r.u32()
	m.URL = r.str(ServiceURLSize)
	m.Label = r.str(NameSize)
}

// videoParameterBytes is the size of the video parameter block that trails
// the multimedia channel messages. Only the bit rate is interpreted.
const videoParameterBytes = 4 + 4 + 5*8 + 4 + 6*4 + 2*2 + 6*4

type OpenMultiMediaChannel struct {
	ConferenceID        uint32
	PassThruPartyID     uint32
	Codec               Codec
	LineInstance        uint32
	CallReference       uint32
	PayloadRFCNumber    uint32
	PayloadType         uint32
	IsConferenceCreator uint32
	BitRate             uint32
}

func (*OpenMultiMediaChannel) ID() MessageID { return OpenMultiMediaChannelMessage }

func (m *OpenMultiMediaChannel) encode(w *writer, _ uint8) {
	w.u32(m.ConferenceID)
	w.u32(m.PassThruPartyID)
	w.u32(uint32(m.Codec))
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.u32(m.PayloadRFCNumber)
	w.u32(m.PayloadType)
	w.u32(m.IsConferenceCreator)
	w.u32(m.BitRate)
	w.zeros(videoParameterBytes - 4)
}

func (m *OpenMultiMediaChannel) decode(r *reader, _ uint8) {
	m.ConferenceID = r.u32()
	m.PassThruPartyID = r.u32()
	m.Codec = Codec(r.u32())
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
	m.PayloadRFCNumber = r.u32()
	m.PayloadType = r.u32()
	m.IsConferenceCreator = r.u32()
	m.BitRate = r.u32()
}

type StartMultiMediaTransmission struct {
	ConferenceID     uint32
	PassThruPartyID  uint32
	Codec            Codec
	RemoteIP         netip.Addr
	RemotePort       uint32
	CallReference    uint32
	PayloadRFCNumber uint32
	PayloadType      uint32
	DSCP             uint32
	BitRate          uint32
}

func (*StartMultiMediaTransmission) ID() MessageID { return StartMultiMediaTransmissionMessage }

func (m *StartMultiMediaTransmission) encode(w *writer, ver uint8) {
	w.u32(m.ConferenceID)
	w.u32(m.PassThruPartyID)
	w.u32(uint32(m.Codec))
	if ver >= 17 {
		w.ipv(m.RemoteIP)
	} else {
		w.ip4(m.RemoteIP)
	}
	w.u32(m.RemotePort)
	w.u32(m.CallReference)
	w.u32(m.PayloadRFCNumber)
	w.u32(m.PayloadType)
	w.u32(m.DSCP)
	w.u32(m.BitRate)
	w.zeros(videoParameterBytes - 4)
}

func (m *StartMultiMediaTransmission) decode(r *reader, ver uint8) {
	m.ConferenceID = r.u32()
	m.PassThruPartyID = r.u32()
	m.Codec = Codec(r.u32())
	if ver >= 17 {
		m.RemoteIP = r.ipv()
	} else {
		m.RemoteIP = r.ip4()
	}
	m.RemotePort = r.u32()
	m.CallReference = r.u32()
	m.PayloadRFCNumber = r.u32()
	m.PayloadType = r.u32()
	m.DSCP = r.u32()
	m.BitRate = r.u32()
}

// Miscellaneous command types.
const (
	MiscVideoFreezePicture     uint32 = 0
	MiscVideoFastUpdatePicture uint32 = 1
)

type MiscellaneousCommand struct {
	ConferenceID    uint32
	PassThruPartyID uint32
	CallReference   uint32
	CommandType     uint32
}

func (*MiscellaneousCommand) ID() MessageID { return MiscellaneousCommandMessage }

func (m *MiscellaneousCommand) encode(w *writer, _ uint8) {
	w.u32(m.ConferenceID)
	w.u32(m.PassThruPartyID)
	w.u32(m.CallReference)
	w.u32(m.CommandType)
	w.zeros(10 * 4)
}

func (m *MiscellaneousCommand) decode(r *reader, _ uint8) {
	m.ConferenceID = r.u32()
	m.PassThruPartyID = r.u32()
	m.CallReference = r.u32()
	m.CommandType = r.u32()
}

type FlowControlCommand struct {
	ConferenceID    uint32
	PassThruPartyID uint32
	CallReference   uint32
	MaxBitRate      uint32
}

func (*FlowControlCommand) ID() MessageID { return FlowControlCommandMessage }

func (m *FlowControlCommand) encode(w *writer, _ uint8) {
	w.u32(m.ConferenceID)
	w.u32(m.PassThruPartyID)
	w.u32(m.CallReference)
	w.u32(m.MaxBitRate)
}

func (m *FlowControlCommand) decode(r *reader, _ uint8) {
	m.ConferenceID = r.u32()
	m.PassThruPartyID = r.u32()
	m.CallReference = r.u32()
	m.MaxBitRate = r.u32()
}

type DisplayDynamicNotify struct {
	Timeout uint32
	Text    string
}

func (*DisplayDynamicNotify) ID() MessageID { return DisplayDynamicNotifyMessage }

func (m *DisplayDynamicNotify) encode(w *writer, _ uint8) {
	w.u32(m.Timeout)
	w.strs(m.Text)
}

func (m *DisplayDynamicNotify) decode(r *reader, _ uint8) {
	m.Timeout = r.u32()
	m.Text = r.strs(1)[0]
}

type DisplayDynamicPriNotify struct {
	Timeout  uint32
	Priority uint32
	Text     string
}

func (*DisplayDynamicPriNotify) ID() MessageID { return DisplayDynamicPriNotifyMessage }

func (m *DisplayDynamicPriNotify) encode(w *writer, _ uint8) {
	w.u32(m.Timeout)
	w.u32(m.Priority)
	w.strs(m.Text)
}

func (m *DisplayDynamicPriNotify) decode(r *reader, _ uint8) {
	m.Timeout = r.u32()
	m.Priority = r.u32()
	m.Text = r.strs(1)[0]
}

type DisplayDynamicPromptStatus struct {
	Timeout       uint32
	LineInstance  uint32
	CallReference uint32
	Text          string
}

func (*DisplayDynamicPromptStatus) ID() MessageID { return DisplayDynamicPromptStatusMessage }

func (m *DisplayDynamicPromptStatus) encode(w *writer, _ uint8) {
	w.u32(m.Timeout)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
	w.strs(m.Text)
}

func (m *DisplayDynamicPromptStatus) decode(r *reader, _ uint8) {
	m.Timeout = r.u32()
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
	m.Text = r.strs(1)[0]
}

type SPCPRegisterTokenAck struct {
	Features uint32
}

func (*SPCPRegisterTokenAck) ID() MessageID               { return SPCPRegisterTokenAckMessage }
func (m *SPCPRegisterTokenAck) encode(w *writer, _ uint8) { w.u32(m.Features) }
func (m *SPCPRegisterTokenAck) decode(r *reader, _ uint8) { m.Features = r.u32() }

type SPCPRegisterTokenReject struct {
	Features uint32
}

func (*SPCPRegisterTokenReject) ID() MessageID               { return SPCPRegisterTokenRejectMessage }
func (m *SPCPRegisterTokenReject) encode(w *writer, _ uint8) { w.u32(m.Features) }
func (m *SPCPRegisterTokenReject) decode(r *reader, _ uint8) { m.Features = r.u32() }
