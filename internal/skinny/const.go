package skinny

// Field sizes shared by several messages.
const (
	DeviceNameSize         = 16
	DirNumSize             = 24
	NameSize               = 40
	ButtonTemplateNameSize = 44
	DisplayTextSize        = 32
	DisplayNotifySize      = 32
	PromptSize             = 32
	SoftKeyLabelSize       = 16
	SoftKeyIndexSize       = 16
	VersionSize            = 16
	ServiceURLSize         = 256
	DateTemplateSize       = 6
	XMLMessageSize         = 2048
	MaxButtonTemplate      = 56
	MaxSoftKeyDefinitions  = 32
	MaxSoftKeySets         = 16
	MaxCapabilities        = 18
)

// Tone is a StartTone selector.
type Tone uint32

const (
	ToneSilence          Tone = 0x00
	ToneInsideDialTone   Tone = 0x21
	ToneOutsideDialTone  Tone = 0x22
	ToneLineBusy         Tone = 0x23
	ToneAlerting         Tone = 0x24
	ToneReorder          Tone = 0x25
	ToneRecorderWarning  Tone = 0x26
	ToneReceiverOffHook  Tone = 0x29
	TonePartialDialTone  Tone = 0x2A
	ToneNoSuchNumber     Tone = 0x2B
	ToneBusyVerification Tone = 0x2C
	ToneCallWaiting      Tone = 0x2D
	ToneConfirmation     Tone = 0x2E
	ToneCampOnIndication Tone = 0x2F
	ToneRecallDial       Tone = 0x30
	ToneZipZip           Tone = 0x31
	ToneZip              Tone = 0x32
	ToneBeepBonk         Tone = 0x33
	ToneMusic            Tone = 0x34
	ToneHold             Tone = 0x35
	ToneTest             Tone = 0x36
	ToneAddCallWaiting   Tone = 0x40
	TonePriorityCallWait Tone = 0x41
	ToneNoTone           Tone = 0x7F
)

// LampMode drives SetLamp.
type LampMode uint32

const (
	LampOff   LampMode = 1
	LampOn    LampMode = 2
	LampWink  LampMode = 3
	LampFlash LampMode = 4
	LampBlink LampMode = 5
)

// CallState is the call state as the phone understands it.
type CallState uint32

const (
	CallStateOffHook             CallState = 1
	CallStateOnHook              CallState = 2
	CallStateRingOut             CallState = 3
	CallStateRingIn              CallState = 4
	CallStateConnected           CallState = 5
	CallStateBusy                CallState = 6
	CallStateCongestion          CallState = 7
	CallStateHold                CallState = 8
	CallStateCallWaiting         CallState = 9
	CallStateCallTransfer        CallState = 10
	CallStateCallPark            CallState = 11
	CallStateProceed             CallState = 12
	CallStateCallRemoteMultiline CallState = 13
	CallStateInvalidNumber       CallState = 14
)

// Stimulus identifies a physical key press.
type Stimulus uint32

const (
	StimulusLastNumberRedial Stimulus = 0x01
	StimulusSpeedDial        Stimulus = 0x02
	StimulusHold             Stimulus = 0x03
	StimulusTransfer         Stimulus = 0x04
	StimulusForwardAll       Stimulus = 0x05
	StimulusForwardBusy      Stimulus = 0x06
	StimulusForwardNoAnswer  Stimulus = 0x07
	StimulusDisplay          Stimulus = 0x08
	StimulusLine             Stimulus = 0x09
	StimulusVoiceMail        Stimulus = 0x0F
	StimulusAutoAnswer       Stimulus = 0x11
	StimulusFeature          Stimulus = 0x13
	StimulusServiceURL       Stimulus = 0x14
	StimulusBLFSpeedDial     Stimulus = 0x15
	StimulusConference       Stimulus = 0x7D
	StimulusCallPark         Stimulus = 0x7E
	StimulusCallPickup       Stimulus = 0x7F
	StimulusGroupCallPickup  Stimulus = 0x80
)

// ButtonType is a ButtonTemplate definition.
type ButtonType uint8

const (
	ButtonUnused           ButtonType = 0x00
	ButtonLastNumberRedial ButtonType = 0x01
	ButtonSpeedDial        ButtonType = 0x02
	ButtonHold             ButtonType = 0x03
	ButtonTransfer         ButtonType = 0x04
	ButtonForwardAll       ButtonType = 0x05
	ButtonLine             ButtonType = 0x09
	ButtonVoiceMail        ButtonType = 0x0F
	ButtonFeature          ButtonType = 0x13
	ButtonServiceURL       ButtonType = 0x14
	ButtonBLFSpeedDial     ButtonType = 0x15
	ButtonMultiBlink       ButtonType = 0x26
	ButtonConference       ButtonType = 0x7D
	ButtonCallPark         ButtonType = 0x7E
	ButtonCallPickup       ButtonType = 0x7F
	ButtonGroupCallPickup  ButtonType = 0x80
	ButtonKeypad           ButtonType = 0xF0
	ButtonUndefined        ButtonType = 0xFF
)

// RingMode drives SetRinger.
type RingMode uint32

const (
	RingOff     RingMode = 1
	RingInside  RingMode = 2
	RingOutside RingMode = 3
	RingFeature RingMode = 4
	RingSilent  RingMode = 5
	RingUrgent  RingMode = 6
)

// SpeakerMode drives SetSpeakerMode.
type SpeakerMode uint32

const (
	SpeakerOn  SpeakerMode = 1
	SpeakerOff SpeakerMode = 2
)

// ResetType selects a soft reset or a full restart.
type ResetType uint32

const (
	ResetSoft    ResetType = 1
	ResetRestart ResetType = 2
)

// CallType as carried in CallInfo.
type CallType uint32

const (
	CallTypeInbound  CallType = 1
	CallTypeOutbound CallType = 2
	CallTypeForward  CallType = 3
)

// Visibility of a CallState.
const (
	VisibilityCollapsed uint32 = 0
	VisibilityDefault   uint32 = 1
)

// Call priorities.
const (
	PriorityHighest uint32 = 0
	PriorityHigh    uint32 = 1
	PriorityMedium  uint32 = 2
	PriorityLow     uint32 = 3
	PriorityLowest  uint32 = 4
)

// Accessory identifiers and states reported by AccessoryStatus.
const (
	AccessoryHeadset uint32 = 1
	AccessoryHandset uint32 = 2
	AccessorySpeaker uint32 = 3

	AccessoryOffHook uint32 = 1
	AccessoryOnHook  uint32 = 2
)

// Codec is a media payload capability.
type Codec uint32

const (
	CodecNone        Codec = 0
	CodecG711Alaw64k Codec = 2
	CodecG711Alaw56k Codec = 3
	CodecG711Ulaw64k Codec = 4
	CodecG711Ulaw56k Codec = 5
	CodecG722_64k    Codec = 6
	CodecG722_56k    Codec = 7
	CodecG722_48k    Codec = 8
	CodecG723_1      Codec = 9
	CodecG728        Codec = 10
	CodecG729        Codec = 11
	CodecG729A       Codec = 12
	CodecG729B       Codec = 15
	CodecG729AB      Codec = 16
	CodecGSMFullRate Codec = 18
	CodecWideband256 Codec = 25
	CodecG722_1_32k  Codec = 40
	CodecG722_1_24k  Codec = 41
	CodecGSM         Codec = 80
	CodecG726_32k    Codec = 82
	CodecG726_24k    Codec = 83
	CodecG726_16k    Codec = 84
	CodecISAC        Codec = 89
	CodecH261        Codec = 100
	CodecH263        Codec = 101
	CodecH264        Codec = 103
	CodecRFC2833     Codec = 257
)

type codecInfo struct {
	name string
	pt   uint8 // static RTP payload type, 0xFF when dynamic
}

var codecs = map[Codec]codecInfo{
	CodecG711Alaw64k: {"alaw", 8},
	CodecG711Alaw56k: {"alaw", 8},
	CodecG711Ulaw64k: {"ulaw", 0},
	CodecG711Ulaw56k: {"ulaw", 0},
	CodecG722_64k:    {"g722", 9},
	CodecG722_56k:    {"g722", 9},
	CodecG722_48k:    {"g722", 9},
	CodecG723_1:      {"g723", 4},
	CodecG728:        {"g728", 15},
	CodecG729:        {"g729", 18},
	CodecG729A:       {"g729", 18},
	CodecG729B:       {"g729", 18},
	CodecG729AB:      {"g729", 18},
	CodecGSMFullRate: {"gsm", 3},
	CodecGSM:         {"gsm", 3},
	CodecWideband256: {"slin16", 0xFF},
	CodecG722_1_32k:  {"g722.1", 0xFF},
	CodecG722_1_24k:  {"g722.1", 0xFF},
	CodecG726_32k:    {"g726", 2},
	CodecG726_24k:    {"g726", 0xFF},
	CodecG726_16k:    {"g726", 0xFF},
	CodecISAC:        {"isac", 0xFF},
	CodecH261:        {"h261", 31},
	CodecH263:        {"h263", 34},
	CodecH264:        {"h264", 0xFF},
}

// Name returns the short configuration name of c ("ulaw", "g729", ...).
func (c Codec) Name() string {
	return codecs[c].name
}

// RTPPayloadType returns the static RTP payload type of c, or 0xFF.
func (c Codec) RTPPayloadType() uint8 {
	if i, ok := codecs[c]; ok {
		return i.pt
	}
	return 0xFF
}

// CodecsByName returns every codec whose short name is name, preferred
// variant first.
func CodecsByName(name string) []Codec {
	order := []Codec{
		CodecG711Ulaw64k, CodecG711Ulaw56k, CodecG711Alaw64k, CodecG711Alaw56k,
		CodecG722_64k, CodecG722_56k, CodecG722_48k, CodecG723_1, CodecG728,
		CodecG729, CodecG729A, CodecG729B, CodecG729AB, CodecGSMFullRate, CodecGSM,
		CodecWideband256, CodecG722_1_32k, CodecG722_1_24k, CodecG726_32k,
		CodecG726_24k, CodecG726_16k, CodecISAC, CodecH261, CodecH263, CodecH264,
	}
	var out []Codec
	for _, c := range order {
		if codecs[c].name == name {
			out = append(out, c)
		}
	}
	return out
}

// Device types the driver knows by number.
const (
	DeviceType7910    uint32 = 6
	DeviceType7960    uint32 = 7
	DeviceType7940    uint32 = 8
	DeviceType7941    uint32 = 115
	DeviceType7971    uint32 = 119
	DeviceType7914    uint32 = 124
	DeviceType7915_12 uint32 = 227
	DeviceType7915    uint32 = 228
	DeviceType7916_12 uint32 = 229
	DeviceType7916    uint32 = 230
	DeviceType7911    uint32 = 307
	DeviceType7961GE  uint32 = 308
	DeviceType7941GE  uint32 = 309
	DeviceType7931    uint32 = 348
	DeviceType7921    uint32 = 365
	DeviceType7906    uint32 = 369
	DeviceType7962    uint32 = 404
	DeviceType7942    uint32 = 434
	DeviceType7945    uint32 = 435
	DeviceType7965    uint32 = 436
	DeviceType7975    uint32 = 437
	DeviceType7970    uint32 = 30006
	DeviceType7961    uint32 = 30018
)

// Protocol version bounds.
const (
	MinProtocolVersion uint8 = 3
	MaxProtocolVersion uint8 = 20
)
