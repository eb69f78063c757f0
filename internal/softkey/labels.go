// Package softkey holds the softkey label table, the keymode presets and the
// dispatch of SoftKeyEvent input to feature handlers.
package softkey

import (
	"fmt"
	"strings"
)

// Label is a phone resident display string. Softkeys and prompts refer to
// labels by id so the phone renders them in its own locale.
type Label uint8

const (
	LabelEmpty            Label = 0
	LabelRedial           Label = 1
	LabelNewCall          Label = 2
	LabelHold             Label = 3
	LabelTransfer         Label = 4
	LabelCfwdAll          Label = 5
	LabelCfwdBusy         Label = 6
	LabelCfwdNoAnswer     Label = 7
	LabelBackspace        Label = 8
	LabelEndCall          Label = 9
	LabelResume           Label = 10
	LabelAnswer           Label = 11
	LabelInfo             Label = 12
	LabelConfrn           Label = 13
	LabelPark             Label = 14
	LabelJoin             Label = 15
	LabelMeetMe           Label = 16
	LabelPickup           Label = 17
	LabelGPickup          Label = 18
	LabelOffHook          Label = 20
	LabelOnHook           Label = 21
	LabelRingOut          Label = 22
	LabelFrom             Label = 23
	LabelConnected        Label = 24
	LabelBusy             Label = 25
	LabelLineInUse        Label = 26
	LabelCallWaiting      Label = 27
	LabelCallTransfer     Label = 28
	LabelCallPark         Label = 29
	LabelCallProceed      Label = 30
	LabelInUseRemote      Label = 31
	LabelEnterNumber      Label = 32
	LabelCallParkAt       Label = 33
	LabelTempFail         Label = 35
	LabelYouHaveVoicemail Label = 36
	LabelForwardedTo      Label = 37
	LabelKeyIsNotActive   Label = 45
	LabelConference       Label = 52
	LabelPrivate          Label = 54
	LabelUnknownNumber    Label = 56
	LabelRmLstC           Label = 57
	LabelVoicemail        Label = 58
	LabelIntrcpt          Label = 60
	LabelTrnsfVM          Label = 62
	LabelDND              Label = 63
	LabelCallback         Label = 65
	LabelBarge            Label = 67
	LabelDirTrfr          Label = 77
	LabelSelect           Label = 78
	LabelConfList         Label = 79
	LabelIDivert          Label = 80
	LabelCBarge           Label = 81
	LabelVideoMode        Label = 88

	// LabelDial is not part of the phone table; it is sent as literal text.
	LabelDial Label = 0x9A
)

var labelNames = map[Label]string{
	LabelEmpty:            "",
	LabelRedial:           "Redial",
	LabelNewCall:          "NewCall",
	LabelHold:             "Hold",
	LabelTransfer:         "Transfer",
	LabelCfwdAll:          "CFwdALL",
	LabelCfwdBusy:         "CFwdBusy",
	LabelCfwdNoAnswer:     "CFwdNoAnswer",
	LabelBackspace:        "<<",
	LabelEndCall:          "EndCall",
	LabelResume:           "Resume",
	LabelAnswer:           "Answer",
	LabelInfo:             "Info",
	LabelConfrn:           "Confrn",
	LabelPark:             "Park",
	LabelJoin:             "Join",
	LabelMeetMe:           "MeetMe",
	LabelPickup:           "PickUp",
	LabelGPickup:          "GPickUp",
	LabelOffHook:          "Off Hook",
	LabelOnHook:           "On Hook",
	LabelRingOut:          "Ring out",
	LabelFrom:             "From",
	LabelConnected:        "Connected",
	LabelBusy:             "Busy",
	LabelLineInUse:        "Line In Use",
	LabelCallWaiting:      "Call Waiting",
	LabelCallTransfer:     "Call Transfer",
	LabelCallPark:         "Call Park",
	LabelCallProceed:      "Call Proceed",
	LabelInUseRemote:      "In Use Remote",
	LabelEnterNumber:      "Enter number",
	LabelCallParkAt:       "Call park At",
	LabelTempFail:         "Temp Fail",
	LabelYouHaveVoicemail: "You Have VoiceMail",
	LabelForwardedTo:      "Forwarded to",
	LabelKeyIsNotActive:   "Key Is Not Active",
	LabelConference:       "Conference",
	LabelPrivate:          "Private",
	LabelUnknownNumber:    "Unknown Number",
	LabelRmLstC:           "RmLstC",
	LabelVoicemail:        "Voicemail",
	LabelIntrcpt:          "Intrcpt",
	LabelTrnsfVM:          "TrnsfVM",
	LabelDND:              "DND",
	LabelCallback:         "CallBack",
	LabelBarge:            "Barge",
	LabelDirTrfr:          "DirTrfr",
	LabelSelect:           "Select",
	LabelConfList:         "ConfList",
	LabelIDivert:          "iDivert",
	LabelCBarge:           "cBarge",
	LabelVideoMode:        "Video Mode",
	LabelDial:             "Dial",
}

// configNames maps the words accepted in a softkeyset section to labels.
var configNames = map[string]Label{
	"empty":        LabelEmpty,
	"redial":       LabelRedial,
	"newcall":      LabelNewCall,
	"hold":         LabelHold,
	"transfer":     LabelTransfer,
	"cfwdall":      LabelCfwdAll,
	"cfwdbusy":     LabelCfwdBusy,
	"cfwdnoanswer": LabelCfwdNoAnswer,
	"back":         LabelBackspace,
	"backspace":    LabelBackspace,
	"endcall":      LabelEndCall,
	"resume":       LabelResume,
	"answer":       LabelAnswer,
	"info":         LabelInfo,
	"conf":         LabelConfrn,
	"confrn":       LabelConfrn,
	"park":         LabelPark,
	"join":         LabelJoin,
	"meetme":       LabelMeetMe,
	"pickup":       LabelPickup,
	"gpickup":      LabelGPickup,
	"rmlstc":       LabelRmLstC,
	"intrcpt":      LabelIntrcpt,
	"transvm":      LabelTrnsfVM,
	"trnsfvm":      LabelTrnsfVM,
	"dnd":          LabelDND,
	"callback":     LabelCallback,
	"barge":        LabelBarge,
	"dirtrfr":      LabelDirTrfr,
	"select":       LabelSelect,
	"conflist":     LabelConfList,
	"idivert":      LabelIDivert,
	"cbarge":       LabelCBarge,
	"vidmode":      LabelVideoMode,
	"private":      LabelPrivate,
	"dial":         LabelDial,
}

// String returns the English text of l.
func (l Label) String() string {
	if s, ok := labelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Label(%d)", uint8(l))
}

// WireText is the text put on the wire for l: the 0x80 escape followed by
// the label id, which the phone replaces with its localized string.
func (l Label) WireText() string {
	switch l {
	case LabelEmpty:
		return ""
	case LabelDial:
		return labelNames[LabelDial]
	}
	return string([]byte{0x80, byte(l)})
}

// LabelByName resolves a softkeyset word. Unknown words report false.
func LabelByName(name string) (Label, bool) {
	l, ok := configNames[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}
