package skinny

import "fmt"

// MessageID selects the payload layout of a frame.
type MessageID uint32

// Phone to server.
const (
	KeepAliveMessage                       MessageID = 0x0000
	RegisterMessage                        MessageID = 0x0001
	IpPortMessage                          MessageID = 0x0002
	KeypadButtonMessage                    MessageID = 0x0003
	EnblocCallMessage                      MessageID = 0x0004
	StimulusMessage                        MessageID = 0x0005
	OffHookMessage                         MessageID = 0x0006
	OnHookMessage                          MessageID = 0x0007
	HookFlashMessage                       MessageID = 0x0008
	ForwardStatReqMessage                  MessageID = 0x0009
	SpeedDialStatReqMessage                MessageID = 0x000A
	LineStatReqMessage                     MessageID = 0x000B
	ConfigStatReqMessage                   MessageID = 0x000C
	TimeDateReqMessage                     MessageID = 0x000D
	ButtonTemplateReqMessage               MessageID = 0x000E
	VersionReqMessage                      MessageID = 0x000F
	CapabilitiesResMessage                 MessageID = 0x0010
	AlarmMessage                           MessageID = 0x0020
	OpenReceiveChannelAckMessage           MessageID = 0x0022
	ConnectionStatisticsResMessage         MessageID = 0x0023
	OffHookWithCgpnMessage                 MessageID = 0x0024
	SoftKeySetReqMessage                   MessageID = 0x0025
	SoftKeyEventMessage                    MessageID = 0x0026
	UnregisterMessage                      MessageID = 0x0027
	SoftKeyTemplateReqMessage              MessageID = 0x0028
	RegisterTokenReqMessage                MessageID = 0x0029
	HeadsetStatusMessage                   MessageID = 0x002B
	RegisterAvailableLinesMessage          MessageID = 0x002D
	UpdateCapabilitiesMessage              MessageID = 0x0030
	OpenMultiMediaReceiveChannelAckMessage MessageID = 0x0031
	ServiceURLStatReqMessage               MessageID = 0x0033
	FeatureStatReqMessage                  MessageID = 0x0034
	DialedPhoneBookMessage                 MessageID = 0x0048
	AccessoryStatusMessage                 MessageID = 0x0049
	StartMediaTransmissionAckMessage       MessageID = 0x0154
	XMLAlarmMessage                        MessageID = 0x015A
	SPCPRegisterTokenRequestMessage        MessageID = 0x8000
)

// Server to phone.
const (
	RegisterAckMessage                 MessageID = 0x0081
	StartToneMessage                   MessageID = 0x0082
	StopToneMessage                    MessageID = 0x0083
	SetRingerMessage                   MessageID = 0x0085
	SetLampMessage                     MessageID = 0x0086
	SetSpeakerModeMessage              MessageID = 0x0088
	StartMediaTransmissionMessage      MessageID = 0x008A
	StopMediaTransmissionMessage       MessageID = 0x008B
	CallInfoMessage                    MessageID = 0x008F
	ForwardStatMessage                 MessageID = 0x0090
	SpeedDialStatMessage               MessageID = 0x0091
	LineStatMessage                    MessageID = 0x0092
	ConfigStatMessage                  MessageID = 0x0093
	DefineTimeDateMessage              MessageID = 0x0094
	ButtonTemplateMessage              MessageID = 0x0097
	VersionMessage                     MessageID = 0x0098
	DisplayTextMessage                 MessageID = 0x0099
	ClearDisplayMessage                MessageID = 0x009A
	CapabilitiesReqMessage             MessageID = 0x009B
	RegisterRejectMessage              MessageID = 0x009D
	ResetMessage                       MessageID = 0x009F
	KeepAliveAckMessage                MessageID = 0x0100
	OpenReceiveChannelMessage          MessageID = 0x0105
	CloseReceiveChannelMessage         MessageID = 0x0106
	ConnectionStatisticsReqMessage     MessageID = 0x0107
	SoftKeyTemplateResMessage          MessageID = 0x0108
	SoftKeySetResMessage               MessageID = 0x0109
	SelectSoftKeysMessage              MessageID = 0x0110
	CallStateMessage                   MessageID = 0x0111
	DisplayPromptStatusMessage         MessageID = 0x0112
	ClearPromptStatusMessage           MessageID = 0x0113
	DisplayNotifyMessage               MessageID = 0x0114
	ClearNotifyMessage                 MessageID = 0x0115
	ActivateCallPlaneMessage           MessageID = 0x0116
	DeactivateCallPlaneMessage         MessageID = 0x0117
	UnregisterAckMessage               MessageID = 0x0118
	BackSpaceReqMessage                MessageID = 0x0119
	RegisterTokenAckMessage            MessageID = 0x011A
	RegisterTokenRejectMessage         MessageID = 0x011B
	DialedNumberMessage                MessageID = 0x011D
	UserToDeviceDataMessage            MessageID = 0x011E
	FeatureStatMessage                 MessageID = 0x011F
	DisplayPriNotifyMessage            MessageID = 0x0120
	ServiceURLStatMessage              MessageID = 0x012F
	OpenMultiMediaChannelMessage       MessageID = 0x0131
	StartMultiMediaTransmissionMessage MessageID = 0x0132
	MiscellaneousCommandMessage        MessageID = 0x0134
	FlowControlCommandMessage          MessageID = 0x0135
	UserToDeviceDataVersion1Message    MessageID = 0x013F
	DisplayDynamicNotifyMessage        MessageID = 0x0143
	DisplayDynamicPriNotifyMessage     MessageID = 0x0144
	DisplayDynamicPromptStatusMessage  MessageID = 0x0145
	CallInfoDynamicMessage             MessageID = 0x014A
	SPCPRegisterTokenAckMessage        MessageID = 0x8100
	SPCPRegisterTokenRejectMessage     MessageID = 0x8101
)

var messageNames = map[MessageID]string{
	KeepAliveMessage:                       "KeepAlive",
	RegisterMessage:                        "Register",
	IpPortMessage:                          "IpPort",
	KeypadButtonMessage:                    "KeypadButton",
	EnblocCallMessage:                      "EnblocCall",
	StimulusMessage:                        "Stimulus",
	OffHookMessage:                         "OffHook",
	OnHookMessage:                          "OnHook",
	HookFlashMessage:                       "HookFlash",
	ForwardStatReqMessage:                  "ForwardStatReq",
	SpeedDialStatReqMessage:                "SpeedDialStatReq",
	LineStatReqMessage:                     "LineStatReq",
	ConfigStatReqMessage:                   "ConfigStatReq",
	TimeDateReqMessage:                     "TimeDateReq",
	ButtonTemplateReqMessage:               "ButtonTemplateReq",
	VersionReqMessage:                      "VersionReq",
	CapabilitiesResMessage:                 "CapabilitiesRes",
	AlarmMessage:                           "Alarm",
	OpenReceiveChannelAckMessage:           "OpenReceiveChannelAck",
	ConnectionStatisticsResMessage:         "ConnectionStatisticsRes",
	OffHookWithCgpnMessage:                 "OffHookWithCgpn",
	SoftKeySetReqMessage:                   "SoftKeySetReq",
	SoftKeyEventMessage:                    "SoftKeyEvent",
	UnregisterMessage:                      "Unregister",
	SoftKeyTemplateReqMessage:              "SoftKeyTemplateReq",
	RegisterTokenReqMessage:                "RegisterTokenReq",
	HeadsetStatusMessage:                   "HeadsetStatus",
	RegisterAvailableLinesMessage:          "RegisterAvailableLines",
	UpdateCapabilitiesMessage:              "UpdateCapabilities",
	OpenMultiMediaReceiveChannelAckMessage: "OpenMultiMediaReceiveChannelAck",
	ServiceURLStatReqMessage:               "ServiceURLStatReq",
	FeatureStatReqMessage:                  "FeatureStatReq",
	DialedPhoneBookMessage:                 "DialedPhoneBook",
	AccessoryStatusMessage:                 "AccessoryStatus",
	StartMediaTransmissionAckMessage:       "StartMediaTransmissionAck",
	XMLAlarmMessage:                        "XMLAlarm",
	SPCPRegisterTokenRequestMessage:        "SPCPRegisterTokenRequest",

	RegisterAckMessage:                 "RegisterAck",
	StartToneMessage:                   "StartTone",
	StopToneMessage:                    "StopTone",
	SetRingerMessage:                   "SetRinger",
	SetLampMessage:                     "SetLamp",
	SetSpeakerModeMessage:              "SetSpeakerMode",
	StartMediaTransmissionMessage:      "StartMediaTransmission",
	StopMediaTransmissionMessage:       "StopMediaTransmission",
	CallInfoMessage:                    "CallInfo",
	ForwardStatMessage:                 "ForwardStat",
	SpeedDialStatMessage:               "SpeedDialStat",
	LineStatMessage:                    "LineStat",
	ConfigStatMessage:                  "ConfigStat",
	DefineTimeDateMessage:              "DefineTimeDate",
	ButtonTemplateMessage:              "ButtonTemplate",
	VersionMessage:                     "Version",
	DisplayTextMessage:                 "DisplayText",
	ClearDisplayMessage:                "ClearDisplay",
	CapabilitiesReqMessage:             "CapabilitiesReq",
	RegisterRejectMessage:              "RegisterReject",
	ResetMessage:                       "Reset",
	KeepAliveAckMessage:                "KeepAliveAck",
	OpenReceiveChannelMessage:          "OpenReceiveChannel",
	CloseReceiveChannelMessage:         "CloseReceiveChannel",
	ConnectionStatisticsReqMessage:     "ConnectionStatisticsReq",
	SoftKeyTemplateResMessage:          "SoftKeyTemplateRes",
	SoftKeySetResMessage:               "SoftKeySetRes",
	SelectSoftKeysMessage:              "SelectSoftKeys",
	CallStateMessage:                   "CallState",
	DisplayPromptStatusMessage:         "DisplayPromptStatus",
	ClearPromptStatusMessage:           "ClearPromptStatus",
	DisplayNotifyMessage:               "DisplayNotify",
	ClearNotifyMessage:                 "ClearNotify",
	ActivateCallPlaneMessage:           "ActivateCallPlane",
	DeactivateCallPlaneMessage:         "DeactivateCallPlane",
	UnregisterAckMessage:               "UnregisterAck",
	BackSpaceReqMessage:                "BackSpaceReq",
	RegisterTokenAckMessage:            "RegisterTokenAck",
	RegisterTokenRejectMessage:         "RegisterTokenReject",
	DialedNumberMessage:                "DialedNumber",
	UserToDeviceDataMessage:            "UserToDeviceData",
	FeatureStatMessage:                 "FeatureStat",
	DisplayPriNotifyMessage:            "DisplayPriNotify",
	ServiceURLStatMessage:              "ServiceURLStat",
	OpenMultiMediaChannelMessage:       "OpenMultiMediaChannel",
	StartMultiMediaTransmissionMessage: "StartMultiMediaTransmission",
	MiscellaneousCommandMessage:        "MiscellaneousCommand",
	FlowControlCommandMessage:          "FlowControlCommand",
	UserToDeviceDataVersion1Message:    "UserToDeviceDataVersion1",
	DisplayDynamicNotifyMessage:        "DisplayDynamicNotify",
	DisplayDynamicPriNotifyMessage:     "DisplayDynamicPriNotify",
	DisplayDynamicPromptStatusMessage:  "DisplayDynamicPromptStatus",
	CallInfoDynamicMessage:             "CallInfoDynamic",
	SPCPRegisterTokenAckMessage:        "SPCPRegisterTokenAck",
	SPCPRegisterTokenRejectMessage:     "SPCPRegisterTokenReject",
}

func (id MessageID) String() string {
	if n, ok := messageNames[id]; ok {
		return n
	}
	return fmt.Sprintf("Unknown(0x%04X)", uint32(id))
}
