package callstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/protocol"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

func TestOffHookEmitsInOrder(t *testing.T) {
	msgs, lamp := Messages(protocol.For(3), Indication{State: OffHook, LineInstance: 1, CallReference: 7})
	require.Len(t, msgs, 5)
	assert.Equal(t, &skinny.CallStateMsg{State: skinny.CallStateOffHook, LineInstance: 1, CallReference: 7}, msgs[0])
	assert.Equal(t, &skinny.SetLamp{Stimulus: skinny.StimulusLine, Instance: 1, Mode: skinny.LampOn}, msgs[1])
	assert.Equal(t, uint32(softkey.KeyModeOffHook), msgs[2].(*skinny.SelectSoftKeys).SetIndex)
	assert.Equal(t, skinny.DisplayPromptStatusMessage, msgs[3].ID())
	assert.Equal(t, &skinny.StartTone{Tone: skinny.ToneInsideDialTone, LineInstance: 1, CallReference: 7}, msgs[4])
	assert.Equal(t, skinny.LampOn, lamp)
}

func TestLampIsOnlySentOnChange(t *testing.T) {
	msgs, _ := Messages(protocol.For(3), Indication{State: OffHook, LineInstance: 1, CallReference: 7, Lamp: skinny.LampOn})
	for _, m := range msgs {
		assert.NotEqual(t, skinny.SetLampMessage, m.ID())
	}
	assert.Equal(t, skinny.CallStateMessage, msgs[0].ID())
	assert.Equal(t, skinny.SelectSoftKeysMessage, msgs[1].ID())
}

func TestConnectedWithTransferUsesConnTrans(t *testing.T) {
	msgs, _ := Messages(protocol.For(3), Indication{State: Connected, Transfer: true, Lamp: skinny.LampOn})
	assert.Equal(t, uint32(softkey.KeyModeConnTrans), msgs[1].(*skinny.SelectSoftKeys).SetIndex)
	assert.IsType(t, &skinny.StopTone{}, msgs[len(msgs)-1])

	msgs, _ = Messages(protocol.For(3), Indication{State: Connected, Lamp: skinny.LampOn})
	assert.Equal(t, uint32(softkey.KeyModeConnected), msgs[1].(*skinny.SelectSoftKeys).SetIndex)
}

func TestOnHookClearsPrompt(t *testing.T) {
	msgs, lamp := Messages(protocol.For(3), Indication{State: OnHook, LineInstance: 2, CallReference: 9, Lamp: skinny.LampOn})
	require.Len(t, msgs, 5)
	assert.Equal(t, skinny.CallStateOnHook, msgs[0].(*skinny.CallStateMsg).State)
	assert.Equal(t, skinny.LampOff, msgs[1].(*skinny.SetLamp).Mode)
	assert.IsType(t, &skinny.ClearPromptStatus{}, msgs[3])
	assert.IsType(t, &skinny.StopTone{}, msgs[4])
	assert.Equal(t, skinny.LampOff, lamp)
}

func TestCallWaitingToneOverride(t *testing.T) {
	off := skinny.ToneSilence
	msgs, _ := Messages(protocol.For(3), Indication{State: CallWaiting, CallWaitingTone: &off})
	for _, m := range msgs {
		assert.NotEqual(t, skinny.StartToneMessage, m.ID())
	}
	msgs, _ = Messages(protocol.For(3), Indication{State: CallWaiting})
	assert.Equal(t, skinny.ToneCallWaiting, msgs[len(msgs)-1].(*skinny.StartTone).Tone)
}

func TestDynamicPromptAtV17(t *testing.T) {
	msgs, _ := Messages(protocol.For(17), Indication{State: RingOut, Lamp: skinny.LampOn})
	assert.Equal(t, skinny.DisplayDynamicPromptStatusMessage, msgs[2].ID())
}

func TestWireFolding(t *testing.T) {
	assert.Equal(t, skinny.CallStateOffHook, Wire(Dialing))
	assert.Equal(t, skinny.CallStateProceed, Wire(Progress))
	assert.Equal(t, skinny.CallStateCallTransfer, Wire(BlindTransfer))
	assert.Equal(t, softkey.KeyModeConnConf, KeyMode(CallConference))
	l, ok := Prompt(Congestion)
	assert.True(t, ok)
	assert.Equal(t, softkey.LabelTempFail, l)
	_, ok = Prompt(SpeedDial)
	assert.False(t, ok)
	assert.True(t, OnHook.Terminal())
	assert.False(t, Hold.Terminal())
	assert.Equal(t, "blindtransfer", BlindTransfer.String())
	assert.True(t, RingOut.Setup())
	assert.True(t, RingIn.Setup())
	assert.False(t, Connected.Setup())
	assert.False(t, Hold.Setup())
}

func TestEarlyRTP(t *testing.T) {
	p, err := ParseEarlyRTP("Progress")
	require.NoError(t, err)
	assert.Equal(t, EarlyRTPProgress, p)

	_, err = ParseEarlyRTP("sometimes")
	assert.Error(t, err)
}

func TestEarlyRTPThresholds(t *testing.T) {
	states := []State{OffHook, DigitsFoll, Proceed, RingOut, Progress, Connected}
	// opens[threshold] lists, in the order of states, whether the receive
	// channel is open once the call is in that state.
	opens := map[EarlyRTP][]bool{
		EarlyRTPNone:     {false, false, false, false, false, true},
		EarlyRTPOffHook:  {true, true, true, true, true, true},
		EarlyRTPDial:     {false, true, true, true, true, true},
		EarlyRTPRingOut:  {false, false, false, true, true, true},
		EarlyRTPProgress: {false, false, false, false, true, true},
	}
	for threshold, want := range opens {
		for i, st := range states {
			assert.Equal(t, want[i], threshold.Opens(st), "earlyrtp=%s in %s", threshold, st)
		}
	}
	for _, e := range []EarlyRTP{EarlyRTPNone, EarlyRTPOffHook, EarlyRTPProgress} {
		assert.False(t, e.Opens(RingIn), "earlyrtp=%s on an incoming call", e)
		assert.False(t, e.Opens(Hold))
	}
}

func TestAnswerOrder(t *testing.T) {
	o, err := ParseAnswerOrder("latestfirst")
	require.NoError(t, err)
	assert.Equal(t, 2, o.Pick(3))
	assert.Equal(t, 0, AnswerOldestFirst.Pick(3))
	assert.Equal(t, -1, AnswerOldestFirst.Pick(0))
	_, err = ParseAnswerOrder("random")
	assert.Error(t, err)
}

func TestBlindTransferIndication(t *testing.T) {
	b, err := ParseBlindTransferIndication("MOH")
	require.NoError(t, err)
	assert.Equal(t, BlindTransferMOH, b)
	assert.Equal(t, "ring", BlindTransferRing.String())
	_, err = ParseBlindTransferIndication("silence")
	assert.Error(t, err)
}
