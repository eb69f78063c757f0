package skinny

import "net/netip"

// Messages sent by the phone.

type KeepAlive struct{}

func (*KeepAlive) ID() MessageID         { return KeepAliveMessage }
func (*KeepAlive) encode(*writer, uint8) {}
func (*KeepAlive) decode(*reader, uint8) {}

// StationIdentifier names a device on the wire.
type StationIdentifier struct {
	DeviceName string
	UserID     uint32
	Instance   uint32
}

func (s *StationIdentifier) encode(w *writer) {
	w.str(s.DeviceName, DeviceNameSize)
	w.u32(s.UserID)
	w.u32(s.Instance)
}

func (s *StationIdentifier) decode(r *reader) {
	s.DeviceName = r.str(DeviceNameSize)
	s.UserID = r.u32()
	s.Instance = r.u32()
}

type Register struct {
	Station       StationIdentifier
	StationIP     netip.Addr
	DeviceType    uint32
	MaxStreams    uint32
	ActiveStreams uint32
	// PhoneFeatures carries the highest protocol version the phone speaks
	// in its low byte; the upper bits are feature flags.
	PhoneFeatures uint32
	SocketType    uint32
	MaxButtons    uint32
	IPv6          netip.Addr
	LoadInfo      string
}

func (*Register) ID() MessageID { return RegisterMessage }

// ProtocolVersion is the version advertised by the phone.
func (m *Register) ProtocolVersion() uint8 { return uint8(m.PhoneFeatures & 0xFF) }

func (m *Register) encode(w *writer, _ uint8) {
	m.Station.encode(w)
	w.ip4(m.StationIP)
	w.u32(m.DeviceType)
	w.u32(m.MaxStreams)
	w.u32(m.ActiveStreams)
	w.u32(m.PhoneFeatures)
	w.u32(m.SocketType)
	w.u32(0)
	w.zeros(12)
	w.u32(0)
	w.u32(m.MaxButtons)
	writeOptIP6(w, m.IPv6)
	w.u32(0)
	w.str(m.LoadInfo, 32)
}

func (m *Register) decode(r *reader, _ uint8) {
	m.Station.decode(r)
	m.StationIP = r.ip4()
	m.DeviceType = r.u32()
	m.MaxStreams = r.u32()
	m.ActiveStreams = r.u32()
	m.PhoneFeatures = r.u32()
	m.SocketType = r.u32()
	r.skip(4 + 12 + 4)
	m.MaxButtons = r.u32()
	m.IPv6 = readOptIP6(r)
	r.skip(4)
	m.LoadInfo = r.str(32)
}

func writeOptIP6(w *writer, a netip.Addr) {
	if a.Is6() && !a.Is4In6() {
		b := a.As16()
		w.raw(b[:])
		return
	}
	w.zeros(16)
}

func readOptIP6(r *reader) netip.Addr {
	b := [16]byte(r.take(16))
	if b == [16]byte{} {
		return netip.Addr{}
	}
	return netip.AddrFrom16(b)
}

type IpPort struct {
	RTPPort uint32
}

func (*IpPort) ID() MessageID               { return IpPortMessage }
func (m *IpPort) encode(w *writer, _ uint8) { w.u32(m.RTPPort) }
func (m *IpPort) decode(r *reader, _ uint8) { m.RTPPort = r.u32() }

// Keypad button values beyond the digits 0..9.
const (
	KeypadStar  uint32 = 0x0E
	KeypadPound uint32 = 0x0F
)

type KeypadButton struct {
	Button        uint32
	LineInstance  uint32
	CallReference uint32
}

func (*KeypadButton) ID() MessageID { return KeypadButtonMessage }

// Digit maps the button to its dial character.
func (m *KeypadButton) Digit() byte {
	switch {
	case m.Button <= 9:
		return '0' + byte(m.Button)
	case m.Button == KeypadStar:
		return '*'
	case m.Button == KeypadPound:
		return '#'
	}
	return 0
}

func (m *KeypadButton) encode(w *writer, _ uint8) {
	w.u32(m.Button)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *KeypadButton) decode(r *reader, _ uint8) {
	m.Button = r.u32()
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type EnblocCall struct {
	CalledParty string
}

func (*EnblocCall) ID() MessageID               { return EnblocCallMessage }
func (m *EnblocCall) encode(w *writer, _ uint8) { w.str(m.CalledParty, DirNumSize) }
func (m *EnblocCall) decode(r *reader, _ uint8) { m.CalledParty = r.str(DirNumSize) }

type StimulusMsg struct {
	Stimulus Stimulus
	Instance uint32
}

func (*StimulusMsg) ID() MessageID { return StimulusMessage }

func (m *StimulusMsg) encode(w *writer, _ uint8) {
	w.u32(uint32(m.Stimulus))
	w.u32(m.Instance)
}

func (m *StimulusMsg) decode(r *reader, _ uint8) {
	m.Stimulus = Stimulus(r.u32())
	m.Instance = r.u32()
}

// OffHook may carry the line and call the phone selected; older loads send
// an empty payload.
type OffHook struct {
	LineInstance  uint32
	CallReference uint32
}

func (*OffHook) ID() MessageID { return OffHookMessage }

func (m *OffHook) encode(w *writer, _ uint8) {
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *OffHook) decode(r *reader, _ uint8) {
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type OnHook struct {
	LineInstance  uint32
	CallReference uint32
}

func (*OnHook) ID() MessageID { return OnHookMessage }

func (m *OnHook) encode(w *writer, _ uint8) {
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *OnHook) decode(r *reader, _ uint8) {
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type HookFlash struct{}

func (*HookFlash) ID() MessageID         { return HookFlashMessage }
func (*HookFlash) encode(*writer, uint8) {}
func (*HookFlash) decode(*reader, uint8) {}

type ForwardStatReq struct {
	LineNumber uint32
}

func (*ForwardStatReq) ID() MessageID               { return ForwardStatReqMessage }
func (m *ForwardStatReq) encode(w *writer, _ uint8) { w.u32(m.LineNumber) }
func (m *ForwardStatReq) decode(r *reader, _ uint8) { m.LineNumber = r.u32() }

type SpeedDialStatReq struct {
	Number uint32
}

func (*SpeedDialStatReq) ID() MessageID               { return SpeedDialStatReqMessage }
func (m *SpeedDialStatReq) encode(w *writer, _ uint8) { w.u32(m.Number) }
func (m *SpeedDialStatReq) decode(r *reader, _ uint8) { m.Number = r.u32() }

type LineStatReq struct {
	LineNumber uint32
}

func (*LineStatReq) ID() MessageID               { return LineStatReqMessage }
func (m *LineStatReq) encode(w *writer, _ uint8) { w.u32(m.LineNumber) }
func (m *LineStatReq) decode(r *reader, _ uint8) { m.LineNumber = r.u32() }

type ConfigStatReq struct{}

func (*ConfigStatReq) ID() MessageID         { return ConfigStatReqMessage }
func (*ConfigStatReq) encode(*writer, uint8) {}
func (*ConfigStatReq) decode(*reader, uint8) {}

type TimeDateReq struct{}

func (*TimeDateReq) ID() MessageID         { return TimeDateReqMessage }
func (*TimeDateReq) encode(*writer, uint8) {}
func (*TimeDateReq) decode(*reader, uint8) {}

type ButtonTemplateReq struct {
	TotalButtonCount uint32
}

func (*ButtonTemplateReq) ID() MessageID               { return ButtonTemplateReqMessage }
func (m *ButtonTemplateReq) encode(w *writer, _ uint8) { w.u32(m.TotalButtonCount) }
func (m *ButtonTemplateReq) decode(r *reader, _ uint8) { m.TotalButtonCount = r.u32() }

type VersionReq struct{}

func (*VersionReq) ID() MessageID         { return VersionReqMessage }
func (*VersionReq) encode(*writer, uint8) {}
func (*VersionReq) decode(*reader, uint8) {}

// MediaCapability is one codec the phone can receive.
type MediaCapability struct {
	Codec              Codec
	MaxFramesPerPacket uint32
	G723BitRate        uint8
}

type CapabilitiesRes struct {
	Caps []MediaCapability
}

func (*CapabilitiesRes) ID() MessageID { return CapabilitiesResMessage }

func (m *CapabilitiesRes) encode(w *writer, _ uint8) {
	n := min(len(m.Caps), MaxCapabilities)
	w.u32(uint32(n))
	for _, c := range m.Caps[:n] {
		w.u32(uint32(c.Codec))
		w.u32(c.MaxFramesPerPacket)
		w.u8(c.G723BitRate)
		w.zeros(7)
	}
}

func (m *CapabilitiesRes) decode(r *reader, _ uint8) {
	n := int(r.u32())
	if n > MaxCapabilities {
		n = MaxCapabilities
	}
	m.Caps = make([]MediaCapability, n)
	for i := range m.Caps {
		m.Caps[i].Codec = Codec(r.u32())
		m.Caps[i].MaxFramesPerPacket = r.u32()
		m.Caps[i].G723BitRate = r.u8()
		r.skip(7)
	}
}

type Alarm struct {
	Severity uint32
	Text     string
	Param1   uint32
	Param2   uint32
}

func (*Alarm) ID() MessageID { return AlarmMessage }

func (m *Alarm) encode(w *writer, _ uint8) {
	w.u32(m.Severity)
	w.str(m.Text, 80)
	w.u32(m.Param1)
	w.u32(m.Param2)
}

func (m *Alarm) decode(r *reader, _ uint8) {
	m.Severity = r.u32()
	m.Text = r.str(80)
	m.Param1 = r.u32()
	m.Param2 = r.u32()
}

// OpenReceiveChannelAck reports where the phone listens for RTP. From v17
// the address is a family word plus a 16 byte buffer.
type OpenReceiveChannelAck struct {
	Status          uint32
	IP              netip.Addr
	Port            uint32
	PassThruPartyID uint32
	CallReference   uint32
}

func (*OpenReceiveChannelAck) ID() MessageID { return OpenReceiveChannelAckMessage }

func (m *OpenReceiveChannelAck) encode(w *writer, ver uint8) {
	w.u32(m.Status)
	if ver >= 17 {
		w.ipv(m.IP)
	} else {
		w.ip4(m.IP)
	}
	w.u32(m.Port)
	w.u32(m.PassThruPartyID)
	w.u32(m.CallReference)
}

func (m *OpenReceiveChannelAck) decode(r *reader, ver uint8) {
	m.Status = r.u32()
	if ver >= 17 {
		m.IP = r.ipv()
	} else {
		m.IP = r.ip4()
	}
	m.Port = r.u32()
	m.PassThruPartyID = r.u32()
	m.CallReference = r.u32()
}

type OpenMultiMediaReceiveChannelAck struct {
	OpenReceiveChannelAck
}

func (*OpenMultiMediaReceiveChannelAck) ID() MessageID { return OpenMultiMediaReceiveChannelAckMessage }

// ConnectionStatisticsRes carries end of call media counters. v19 widened
// the directory number and dropped the processing type.
type ConnectionStatisticsRes struct {
	DirectoryNumber string
	CallReference   uint32
	ProcessingType  uint32
	SentPackets     uint32
	SentOctets      uint32
	RecvPackets     uint32
	RecvOctets      uint32
	LostPackets     uint32
	Jitter          uint32
	Latency         uint32
}

func (*ConnectionStatisticsRes) ID() MessageID { return ConnectionStatisticsResMessage }

func (m *ConnectionStatisticsRes) encode(w *writer, ver uint8) {
	if ver >= 19 {
		w.str(m.DirectoryNumber, 28)
		w.u32(m.CallReference)
	} else {
		w.str(m.DirectoryNumber, DirNumSize)
		w.u32(m.CallReference)
		w.u32(m.ProcessingType)
	}
	w.u32(m.SentPackets)
	w.u32(m.SentOctets)
	w.u32(m.RecvPackets)
	w.u32(m.RecvOctets)
	w.u32(m.LostPackets)
	w.u32(m.Jitter)
	w.u32(m.Latency)
	if ver >= 19 {
		w.zeros(2)
	}
}

func (m *ConnectionStatisticsRes) decode(r *reader, ver uint8) {
	if ver >= 19 {
		m.DirectoryNumber = r.str(28)
		m.CallReference = r.u32()
	} else {
		m.DirectoryNumber = r.str(DirNumSize)
		m.CallReference = r.u32()
		m.ProcessingType = r.u32()
	}
	m.SentPackets = r.u32()
	m.SentOctets = r.u32()
	m.RecvPackets = r.u32()
	m.RecvOctets = r.u32()
	m.LostPackets = r.u32()
	m.Jitter = r.u32()
	m.Latency = r.u32()
}

type OffHookWithCgpn struct {
	CallingParty string
}

func (*OffHookWithCgpn) ID() MessageID               { return OffHookWithCgpnMessage }
func (m *OffHookWithCgpn) encode(w *writer, _ uint8) { w.str(m.CallingParty, DirNumSize) }
func (m *OffHookWithCgpn) decode(r *reader, _ uint8) { m.CallingParty = r.str(DirNumSize) }

type SoftKeySetReq struct{}

func (*SoftKeySetReq) ID() MessageID         { return SoftKeySetReqMessage }
func (*SoftKeySetReq) encode(*writer, uint8) {}
func (*SoftKeySetReq) decode(*reader, uint8) {}

type SoftKeyEvent struct {
	Event         uint32
	LineInstance  uint32
	CallReference uint32
}

func (*SoftKeyEvent) ID() MessageID { return SoftKeyEventMessage }

func (m *SoftKeyEvent) encode(w *writer, _ uint8) {
	w.u32(m.Event)
	w.u32(m.LineInstance)
	w.u32(m.CallReference)
}

func (m *SoftKeyEvent) decode(r *reader, _ uint8) {
	m.Event = r.u32()
	m.LineInstance = r.u32()
	m.CallReference = r.u32()
}

type Unregister struct{}

func (*Unregister) ID() MessageID         { return UnregisterMessage }
func (*Unregister) encode(*writer, uint8) {}
func (*Unregister) decode(*reader, uint8) {}

type SoftKeyTemplateReq struct{}

func (*SoftKeyTemplateReq) ID() MessageID         { return SoftKeyTemplateReqMessage }
func (*SoftKeyTemplateReq) encode(*writer, uint8) {}
func (*SoftKeyTemplateReq) decode(*reader, uint8) {}

type RegisterTokenReq struct {
	Station    StationIdentifier
	StationIP  netip.Addr
	DeviceType uint32
	IPv6       netip.Addr
}

func (*RegisterTokenReq) ID() MessageID { return RegisterTokenReqMessage }

func (m *RegisterTokenReq) encode(w *writer, _ uint8) {
	m.Station.encode(w)
	w.ip4(m.StationIP)
	w.u32(m.DeviceType)
	writeOptIP6(w, m.IPv6)
	w.u32(0)
}

func (m *RegisterTokenReq) decode(r *reader, _ uint8) {
	m.Station.decode(r)
	m.StationIP = r.ip4()
	m.DeviceType = r.u32()
	m.IPv6 = readOptIP6(r)
}

type HeadsetStatus struct {
	Mode uint32
}

func (*HeadsetStatus) ID() MessageID               { return HeadsetStatusMessage }
func (m *HeadsetStatus) encode(w *writer, _ uint8) { w.u32(m.Mode) }
func (m *HeadsetStatus) decode(r *reader, _ uint8) { m.Mode = r.u32() }

type RegisterAvailableLines struct {
	MaxLines uint32
}

func (*RegisterAvailableLines) ID() MessageID               { return RegisterAvailableLinesMessage }
func (m *RegisterAvailableLines) encode(w *writer, _ uint8) { w.u32(m.MaxLines) }
func (m *RegisterAvailableLines) decode(r *reader, _ uint8) { m.MaxLines = r.u32() }

// UpdateCapabilities is read for its audio capability list; the video and
// data sections that follow are not interpreted.
type UpdateCapabilities struct {
	VideoCapCount uint32
	DataCapCount  uint32
	AudioCaps     []MediaCapability
}

func (*UpdateCapabilities) ID() MessageID { return UpdateCapabilitiesMessage }

const (
	customPictureFormatBytes = 6 * 20
	serviceResourceBytes     = 4 * (4 + 5*4 + 4*4)
)

func (m *UpdateCapabilities) encode(w *writer, _ uint8) {
	n := min(len(m.AudioCaps), MaxCapabilities)
	w.u32(uint32(n))
	w.u32(m.VideoCapCount)
	w.u32(m.DataCapCount)
	w.u32(0) // RTP payload format
	w.u32(0) // custom picture format count
	w.zeros(customPictureFormatBytes)
	w.u32(0) // active streams on registration
	w.u32(0) // max bandwidth
	w.u32(0) // service resource count
	w.zeros(serviceResourceBytes)
	for _, c := range m.AudioCaps[:n] {
		w.u32(uint32(c.Codec))
		w.u32(c.MaxFramesPerPacket)
		w.zeros(8)
	}
}

func (m *UpdateCapabilities) decode(r *reader, _ uint8) {
	n := int(r.u32())
	if n > MaxCapabilities {
		n = MaxCapabilities
	}
	m.VideoCapCount = r.u32()
	m.DataCapCount = r.u32()
	r.skip(8 + customPictureFormatBytes + 12 + serviceResourceBytes)
	m.AudioCaps = make([]MediaCapability, n)
	for i := range m.AudioCaps {
		m.AudioCaps[i].Codec = Codec(r.u32())
		m.AudioCaps[i].MaxFramesPerPacket = r.u32()
		r.skip(8)
	}
}

type ServiceURLStatReq struct {
	Index uint32
}

func (*ServiceURLStatReq) ID() MessageID               { return ServiceURLStatReqMessage }
func (m *ServiceURLStatReq) encode(w *writer, _ uint8) { w.u32(m.Index) }
func (m *ServiceURLStatReq) decode(r *reader, _ uint8) { m.Index = r.u32() }

type FeatureStatReq struct {
	Instance uint32
	Unknown  uint32
}

func (*FeatureStatReq) ID() MessageID { return FeatureStatReqMessage }

func (m *FeatureStatReq) encode(w *writer, _ uint8) {
	w.u32(m.Instance)
	w.u32(m.Unknown)
}

func (m *FeatureStatReq) decode(r *reader, _ uint8) {
	m.Instance = r.u32()
	m.Unknown = r.u32()
}

// DialedPhoneBook is sent by wireless phones to sync their call list. The
// index arrives shifted left by four bits.
type DialedPhoneBook struct {
	NumberIndex  uint32
	LineInstance uint32
	Unknown      uint32
	PhoneNumber  string
}

func (*DialedPhoneBook) ID() MessageID { return DialedPhoneBookMessage }

func (m *DialedPhoneBook) encode(w *writer, _ uint8) {
	w.u32(m.NumberIndex)
	w.u32(m.LineInstance)
	w.u32(m.Unknown)
	w.str(m.PhoneNumber, 260)
}

func (m *DialedPhoneBook) decode(r *reader, _ uint8) {
	m.NumberIndex = r.u32()
	m.LineInstance = r.u32()
	m.Unknown = r.u32()
	m.PhoneNumber = r.str(260)
}

type AccessoryStatus struct {
	Accessory uint32
	Status    uint32
	Unknown   uint32
}

func (*AccessoryStatus) ID() MessageID { return AccessoryStatusMessage }

func (m *AccessoryStatus) encode(w *writer, _ uint8) {
	w.u32(m.Accessory)
	w.u32(m.Status)
	w.u32(m.Unknown)
}

func (m *AccessoryStatus) decode(r *reader, _ uint8) {
	m.Accessory = r.u32()
	m.Status = r.u32()
	m.Unknown = r.u32()
}

type StartMediaTransmissionAck struct {
	CallReference   uint32
	PassThruPartyID uint32
	CallReference1  uint32
	IP              netip.Addr
	Port            uint32
	Status          uint32
}

func (*StartMediaTransmissionAck) ID() MessageID { return StartMediaTransmissionAckMessage }

func (m *StartMediaTransmissionAck) encode(w *writer, _ uint8) {
	w.u32(m.CallReference)
	w.u32(m.PassThruPartyID)
	w.u32(m.CallReference1)
	w.ipv(m.IP)
	w.u32(m.Port)
	w.u32(m.Status)
	w.u32(0)
}

func (m *StartMediaTransmissionAck) decode(r *reader, _ uint8) {
	m.CallReference = r.u32()
	m.PassThruPartyID = r.u32()
	m.CallReference1 = r.u32()
	m.IP = r.ipv()
	m.Port = r.u32()
	m.Status = r.u32()
}

type XMLAlarm struct {
	Data string
}

func (*XMLAlarm) ID() MessageID { return XMLAlarmMessage }

func (m *XMLAlarm) encode(w *writer, _ uint8) {
	w.raw([]byte(m.Data))
	w.u8(0)
}

func (m *XMLAlarm) decode(r *reader, _ uint8) {
	m.Data = r.str(len(r.buf))
}

type SPCPRegisterTokenRequest struct {
	Station    StationIdentifier
	StationIP  netip.Addr
	DeviceType uint32
	MaxStreams uint32
}

func (*SPCPRegisterTokenRequest) ID() MessageID { return SPCPRegisterTokenRequestMessage }

func (m *SPCPRegisterTokenRequest) encode(w *writer, _ uint8) {
	m.Station.encode(w)
	w.ip4(m.StationIP)
	w.u32(m.DeviceType)
	w.u32(m.MaxStreams)
}

func (m *SPCPRegisterTokenRequest) decode(r *reader, _ uint8) {
	m.Station.decode(r)
	m.StationIP = r.ip4()
	m.DeviceType = r.u32()
	m.MaxStreams = r.u32()
}
