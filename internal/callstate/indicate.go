package callstate

import (
	"sccpd/internal/protocol"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

// Indication is everything needed to render one state change of a leg.
type Indication struct {
	State         State
	LineInstance  uint32
	CallReference uint32
	// Lamp is the lamp mode the line currently shows. SetLamp is only sent
	// when the new state needs a different one.
	Lamp skinny.LampMode
	// Transfer selects the transfer capable row while connected.
	Transfer bool
	// CallWaitingTone replaces the default call waiting tone; ToneSilence
	// disables it.
	CallWaitingTone *skinny.Tone
	Visibility      uint32
	Priority        uint32
}

// Messages builds the frames for in, in the order the phone expects them:
// CallState, SetLamp, SelectSoftKeys, the prompt, then the tone. The second
// result is the lamp mode the line shows afterwards.
func Messages(p protocol.Adaptor, in Indication) ([]skinny.Message, skinny.LampMode) {
	d := lookup(in.State)
	out := make([]skinny.Message, 0, 5)

	out = append(out, &skinny.CallStateMsg{
		State:         d.wire,
		LineInstance:  in.LineInstance,
		CallReference: in.CallReference,
		Visibility:    in.Visibility,
		Priority:      in.Priority,
	})

	lamp := in.Lamp
	if d.lamp != lamp {
		out = append(out, &skinny.SetLamp{Stimulus: skinny.StimulusLine, Instance: in.LineInstance, Mode: d.lamp})
		lamp = d.lamp
	}

	mode := d.mode
	if in.State == Connected && in.Transfer {
		mode = softkey.KeyModeConnTrans
	}
	out = append(out, &skinny.SelectSoftKeys{
		LineInstance:  in.LineInstance,
		CallReference: in.CallReference,
		SetIndex:      uint32(mode),
		ValidKeyMask:  0xFFFFFFFF,
	})

	switch {
	case d.prompt != softkey.LabelEmpty:
		out = append(out, p.DisplayPrompt(in.LineInstance, in.CallReference, 0, d.prompt.WireText()))
	case in.State.Terminal():
		out = append(out, &skinny.ClearPromptStatus{LineInstance: in.LineInstance, CallReference: in.CallReference})
	}

	tone := d.tone
	if in.State == CallWaiting && in.CallWaitingTone != nil {
		tone = *in.CallWaitingTone
	}
	switch {
	case tone != skinny.ToneSilence:
		out = append(out, &skinny.StartTone{Tone: tone, LineInstance: in.LineInstance, CallReference: in.CallReference})
	case d.stop:
		out = append(out, &skinny.StopTone{LineInstance: in.LineInstance, CallReference: in.CallReference})
	}
	return out, lamp
}
