// Package callstate maps the internal state of a call leg to the commands a
// phone needs to display it, and carries the per device call policies.
package callstate

import (
	"fmt"

	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

// State is the internal call state. It is a superset of what the phone can
// show; Wire folds the extra states onto phone states.
type State int

const (
	Down State = iota
	OffHook
	OnHook
	RingOut
	RingIn
	Connected
	Busy
	Congestion
	Hold
	CallWaiting
	CallTransfer
	CallPark
	Proceed
	CallRemoteMultiline
	InvalidNumber
	Dialing
	Progress
	GetDigits
	CallConference
	SpeedDial
	DigitsFoll
	BlindTransfer
	Zombie
	DND
)

var stateNames = map[State]string{
	Down:                "down",
	OffHook:             "offhook",
	OnHook:              "onhook",
	RingOut:             "ringout",
	RingIn:              "ringin",
	Connected:           "connected",
	Busy:                "busy",
	Congestion:          "congestion",
	Hold:                "hold",
	CallWaiting:         "callwaiting",
	CallTransfer:        "calltransfer",
	CallPark:            "callpark",
	Proceed:             "proceed",
	CallRemoteMultiline: "callremotemultiline",
	InvalidNumber:       "invalidnumber",
	Dialing:             "dialing",
	Progress:            "progress",
	GetDigits:           "getdigits",
	CallConference:      "callconference",
	SpeedDial:           "speeddial",
	DigitsFoll:          "digitsfoll",
	BlindTransfer:       "blindtransfer",
	Zombie:              "zombie",
	DND:                 "dnd",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether s ends the call leg.
func (s State) Terminal() bool {
	return s == Down || s == OnHook || s == Zombie
}

// Setup reports whether s is a leg on its way to being connected.
func (s State) Setup() bool {
	switch s {
	case OffHook, GetDigits, SpeedDial, DigitsFoll, Dialing, Proceed, Progress, RingOut, RingIn, CallWaiting:
		return true
	}
	return false
}

// Active reports whether a leg in state s counts as a call in progress for
// reset deferral.
func (s State) Active() bool {
	return !s.Terminal() && s != DND
}

// display describes how a state is rendered on the phone.
type display struct {
	wire   skinny.CallState
	mode   softkey.KeyMode
	lamp   skinny.LampMode
	prompt softkey.Label
	tone   skinny.Tone
	// stop silences any running tone instead of starting one.
	stop bool
}

var displays = map[State]display{
	Down:                {wire: skinny.CallStateOnHook, mode: softkey.KeyModeOnHook, lamp: skinny.LampOff, stop: true},
	OnHook:              {wire: skinny.CallStateOnHook, mode: softkey.KeyModeOnHook, lamp: skinny.LampOff, stop: true},
	Zombie:              {wire: skinny.CallStateOnHook, mode: softkey.KeyModeOnHook, lamp: skinny.LampOff, stop: true},
	OffHook:             {wire: skinny.CallStateOffHook, mode: softkey.KeyModeOffHook, lamp: skinny.LampOn, prompt: softkey.LabelEnterNumber, tone: skinny.ToneInsideDialTone},
	GetDigits:           {wire: skinny.CallStateOffHook, mode: softkey.KeyModeDigitsFoll, lamp: skinny.LampOn, prompt: softkey.LabelEnterNumber},
	DigitsFoll:          {wire: skinny.CallStateOffHook, mode: softkey.KeyModeDigitsFoll, lamp: skinny.LampOn, stop: true},
	SpeedDial:           {wire: skinny.CallStateOffHook, mode: softkey.KeyModeOffHook, lamp: skinny.LampOn},
	Dialing:             {wire: skinny.CallStateOffHook, mode: softkey.KeyModeDigitsFoll, lamp: skinny.LampOn, stop: true},
	Proceed:             {wire: skinny.CallStateProceed, mode: softkey.KeyModeRingOut, lamp: skinny.LampOn, prompt: softkey.LabelCallProceed},
	Progress:            {wire: skinny.CallStateProceed, mode: softkey.KeyModeRingOut, lamp: skinny.LampOn, prompt: softkey.LabelCallProceed},
	RingOut:             {wire: skinny.CallStateRingOut, mode: softkey.KeyModeRingOut, lamp: skinny.LampOn, prompt: softkey.LabelRingOut, tone: skinny.ToneAlerting},
	RingIn:              {wire: skinny.CallStateRingIn, mode: softkey.KeyModeRingIn, lamp: skinny.LampBlink, prompt: softkey.LabelFrom},
	Connected:           {wire: skinny.CallStateConnected, mode: softkey.KeyModeConnected, lamp: skinny.LampOn, prompt: softkey.LabelConnected, stop: true},
	Busy:                {wire: skinny.CallStateBusy, mode: softkey.KeyModeOffHookFeat, lamp: skinny.LampOn, prompt: softkey.LabelBusy, tone: skinny.ToneLineBusy},
	Congestion:          {wire: skinny.CallStateCongestion, mode: softkey.KeyModeOffHookFeat, lamp: skinny.LampOn, prompt: softkey.LabelTempFail, tone: skinny.ToneReorder},
	InvalidNumber:       {wire: skinny.CallStateInvalidNumber, mode: softkey.KeyModeOffHookFeat, lamp: skinny.LampOn, prompt: softkey.LabelUnknownNumber, tone: skinny.ToneReorder},
	Hold:                {wire: skinny.CallStateHold, mode: softkey.KeyModeOnHold, lamp: skinny.LampWink, prompt: softkey.LabelHold, stop: true},
	CallWaiting:         {wire: skinny.CallStateCallWaiting, mode: softkey.KeyModeRingIn, lamp: skinny.LampBlink, prompt: softkey.LabelCallWaiting, tone: skinny.ToneCallWaiting},
	CallTransfer:        {wire: skinny.CallStateCallTransfer, mode: softkey.KeyModeConnTrans, lamp: skinny.LampOn, prompt: softkey.LabelCallTransfer},
	BlindTransfer:       {wire: skinny.CallStateCallTransfer, mode: softkey.KeyModeRingOut, lamp: skinny.LampOn, prompt: softkey.LabelCallTransfer},
	CallPark:            {wire: skinny.CallStateCallPark, mode: softkey.KeyModeOnHook, lamp: skinny.LampOff, prompt: softkey.LabelCallPark},
	CallRemoteMultiline: {wire: skinny.CallStateCallRemoteMultiline, mode: softkey.KeyModeOnHookStealable, lamp: skinny.LampFlash, prompt: softkey.LabelInUseRemote},
	CallConference:      {wire: skinny.CallStateConnected, mode: softkey.KeyModeConnConf, lamp: skinny.LampOn, prompt: softkey.LabelConference, stop: true},
	DND:                 {wire: skinny.CallStateOnHook, mode: softkey.KeyModeOnHook, lamp: skinny.LampOff, prompt: softkey.LabelDND},
}

func lookup(s State) display {
	if d, ok := displays[s]; ok {
		return d
	}
	return displays[Down]
}

// Wire returns the phone call state for s.
func Wire(s State) skinny.CallState { return lookup(s).wire }

// KeyMode returns the softkey row shown in state s.
func KeyMode(s State) softkey.KeyMode { return lookup(s).mode }

// Lamp returns the line lamp mode for s.
func Lamp(s State) skinny.LampMode { return lookup(s).lamp }

// Prompt returns the status line label for s, if any.
func Prompt(s State) (softkey.Label, bool) {
	d := lookup(s)
	return d.prompt, d.prompt != softkey.LabelEmpty
}
