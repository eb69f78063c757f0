package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/skinny"
)

func TestNegotiateClamps(t *testing.T) {
	assert.Equal(t, uint8(3), Negotiate(0))
	assert.Equal(t, uint8(3), Negotiate(2))
	assert.Equal(t, uint8(11), Negotiate(11))
	assert.Equal(t, uint8(17), Negotiate(17))
	assert.Equal(t, uint8(20), Negotiate(20))
	assert.Equal(t, uint8(20), Negotiate(22))
	assert.Equal(t, uint8(20), Negotiate(255))
}

func TestRegisterAckPerVersion(t *testing.T) {
	ack := For(5).RegisterAck(60, "D.M.Y").(*skinny.RegisterAck)
	assert.Equal(t, uint8(5), ack.ProtocolVer)
	assert.Zero(t, ack.Unknown1)

	ack = For(17).RegisterAck(60, "D.M.Y").(*skinny.RegisterAck)
	assert.Equal(t, uint32(60), ack.KeepAlive)
	assert.Equal(t, uint32(60), ack.SecondaryKeepAlive)
	assert.Equal(t, "D.M.Y", ack.DateTemplate)
	assert.Equal(t, uint8(17), ack.ProtocolVer)
	assert.Equal(t, uint8(0x20), ack.Unknown1)
	assert.Equal(t, uint8(0xFF), ack.Unknown3)
}

func TestDisplaySelectsDynamicFrom16(t *testing.T) {
	assert.IsType(t, &skinny.DisplayPromptStatus{}, For(11).DisplayPrompt(1, 2, 0, "x"))
	assert.IsType(t, &skinny.DisplayDynamicPromptStatus{}, For(16).DisplayPrompt(1, 2, 0, "x"))
	assert.IsType(t, &skinny.DisplayNotify{}, For(15).DisplayNotify(5, "x"))
	assert.IsType(t, &skinny.DisplayDynamicNotify{}, For(20).DisplayNotify(5, "x"))
	assert.IsType(t, &skinny.DisplayPriNotify{}, For(3).DisplayPriNotify(1, 5, "x"))
	assert.IsType(t, &skinny.DisplayDynamicPriNotify{}, For(19).DisplayPriNotify(1, 5, "x"))
	assert.IsType(t, &skinny.CallInfo{}, For(11).CallInfo(skinny.CallInfo{}))
	assert.IsType(t, &skinny.CallInfoDynamic{}, For(17).CallInfo(skinny.CallInfo{}))
}

func TestUserToDeviceDataVersion1From17(t *testing.T) {
	d := skinny.UserToDeviceData{AppID: 1, TransactionID: 9, Data: []byte("<x/>")}
	assert.IsType(t, &skinny.UserToDeviceData{}, For(16).UserToDeviceData(d))
	m, ok := For(17).UserToDeviceData(d).(*skinny.UserToDeviceDataVersion1)
	require.True(t, ok)
	assert.Equal(t, uint32(9), m.TransactionID)
	assert.Equal(t, []byte("<x/>"), m.Data)
}

func TestEveryAdaptorMessageEncodesAtItsVersion(t *testing.T) {
	for ver := skinny.MinProtocolVersion; ver <= skinny.MaxProtocolVersion; ver++ {
		a := For(ver)
		require.Equal(t, ver, a.Version())
		msgs := []skinny.Message{
			a.RegisterAck(30, "M/D/Y"),
			a.CallInfo(skinny.CallInfo{CallingParty: "100", CalledParty: "200"}),
			a.DisplayPrompt(1, 2, 0, "prompt"),
			a.DisplayNotify(5, "notify"),
			a.DisplayPriNotify(1, 5, "pri"),
			a.CallForward(skinny.ForwardStat{LineNumber: 1}),
			a.UserToDeviceData(skinny.UserToDeviceData{Data: []byte("x")}),
			a.DialedNumber(1, 2, "1000"),
		}
		for _, m := range msgs {
			f := skinny.Encode(m, ver)
			got, err := skinny.Decode(f, ver)
			require.NoError(t, err, "%s v%d", m.ID(), ver)
			assert.Equal(t, m, got, "%s v%d", m.ID(), ver)
		}
	}
}
