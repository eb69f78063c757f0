package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/callstate"
	"sccpd/internal/config"
	"sccpd/internal/protocol"
	"sccpd/internal/refcount"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
)

type fakeLink struct {
	sent   []skinny.Message
	closed error
}

func (f *fakeLink) Send(m skinny.Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeLink) SendAll(ms ...skinny.Message) error {
	f.sent = append(f.sent, ms...)
	return nil
}

func (f *fakeLink) Protocol() protocol.Adaptor { return protocol.For(17) }
func (f *fakeLink) Close(cause error)          { f.closed = cause }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(refcount.NewRegistry(nil), nil)
}

func TestChannelKeepsDeviceAndLineAlive(t *testing.T) {
	r := newTestRegistry(t)
	d := NewDevice("SEP001122334455", &config.Device{}, nil)
	l := NewLine("100", &config.Line{}, nil, false)
	require.NoError(t, r.AddDevice(d))
	require.NoError(t, r.AddLine(l))
	assert.ErrorIs(t, r.AddDevice(NewDevice("SEP001122334455", nil, nil)), ErrExists)

	c, err := r.NewChannel(d, l, 1, skinny.CallTypeOutbound)
	require.NoError(t, err)
	assert.Equal(t, 1, d.CallCount())
	assert.Same(t, c, r.Channel(c.CallRef))

	r.RemoveDevice(d.ID)
	r.RemoveLine(l.Name)
	assert.Equal(t, int32(1), r.Refs().Refs(d), "held by the channel")
	assert.Equal(t, int32(1), r.Refs().Refs(l))

	assert.Equal(t, 0, r.EndChannel(c))
	assert.Nil(t, r.Channel(c.CallRef))
	assert.Equal(t, 0, r.Refs().Len(), "nothing leaks")
}

func TestRetainedChannelOutlivesEnd(t *testing.T) {
	r := newTestRegistry(t)
	d := NewDevice("SEP1", &config.Device{}, nil)
	l := NewLine("100", &config.Line{}, nil, false)
	require.NoError(t, r.AddDevice(d))
	require.NoError(t, r.AddLine(l))

	c, err := r.NewChannel(d, l, 1, skinny.CallTypeInbound)
	require.NoError(t, err)
	held, ok := r.RetainChannel(c.CallRef)
	require.True(t, ok)

	r.EndChannel(c)
	_, ok = r.RetainChannel(c.CallRef)
	assert.False(t, ok, "unpublished")
	assert.Equal(t, int32(1), r.Refs().Refs(held))

	r.Refs().Release(held)
	assert.Equal(t, int32(0), r.Refs().Refs(c))
	assert.Equal(t, 2, r.Refs().Len(), "device and line remain registered")
}

func TestCallReferencesAreUnique(t *testing.T) {
	r := newTestRegistry(t)
	d := NewDevice("SEP1", &config.Device{}, nil)
	l := NewLine("100", &config.Line{}, nil, false)
	require.NoError(t, r.AddDevice(d))
	require.NoError(t, r.AddLine(l))

	seen := map[uint32]bool{}
	passThru := map[uint32]bool{}
	for i := 0; i < 10; i++ {
		c, err := r.NewChannel(d, l, 1, skinny.CallTypeOutbound)
		require.NoError(t, err)
		assert.False(t, seen[c.CallRef])
		assert.False(t, passThru[c.PassThruID])
		seen[c.CallRef] = true
		passThru[c.PassThruID] = true
	}
	assert.Len(t, r.DeviceChannels("SEP1"), 10)
	assert.Equal(t, d.Calls()[0], r.Channels()[0].CallRef)
}

func TestNewChannelOnDestroyedDevice(t *testing.T) {
	r := newTestRegistry(t)
	d := NewDevice("SEP1", &config.Device{}, nil)
	l := NewLine("100", &config.Line{}, nil, false)
	require.NoError(t, r.AddDevice(d))
	require.NoError(t, r.AddLine(l))
	r.RemoveDevice(d.ID)

	_, err := r.NewChannel(d, l, 1, skinny.CallTypeOutbound)
	assert.ErrorIs(t, err, ErrGone)
	assert.Equal(t, int32(1), r.Refs().Refs(l), "line reference not leaked")
}

func TestEachDeviceIsSortedAndRetained(t *testing.T) {
	r := newTestRegistry(t)
	for _, id := range []string{"SEPB", "SEPA", "SEPC"} {
		require.NoError(t, r.AddDevice(NewDevice(id, &config.Device{}, nil)))
	}
	var order []string
	r.EachDevice(func(d *Device) {
		order = append(order, d.ID)
		assert.Equal(t, int32(2), r.Refs().Refs(d))
		r.RemoveDevice(d.ID)
	})
	assert.Equal(t, []string{"SEPA", "SEPB", "SEPC"}, order)
	assert.Equal(t, 0, r.Refs().Len())
}

func TestAttachOnce(t *testing.T) {
	d := NewDevice("SEP1", &config.Device{}, nil)
	assert.ErrorIs(t, d.Send(&skinny.KeepAliveAck{}), ErrNotRegistered)

	link := &fakeLink{}
	require.NoError(t, d.Attach(link, Registration{Type: skinny.DeviceType7960}))
	assert.ErrorIs(t, d.Attach(&fakeLink{}, Registration{}), ErrAlreadyRegistered)
	assert.Equal(t, uint8(17), d.Protocol().Version())

	d.SetLamp(1, skinny.LampOn)
	require.NoError(t, d.Send(&skinny.KeepAliveAck{}, &skinny.StopTone{}))
	assert.Len(t, link.sent, 2)

	assert.Same(t, link, d.Detach())
	assert.False(t, d.Registered())
	assert.Equal(t, skinny.LampOff, d.Lamp(1), "lamps reset with the session")
}

func TestPendingUpdateTakenOnce(t *testing.T) {
	d := NewDevice("SEP1", &config.Device{}, nil)
	d.SetPendingUpdate(true)
	assert.True(t, d.TakePendingUpdate())
	assert.False(t, d.TakePendingUpdate())
}

func TestTemplateNumbering(t *testing.T) {
	buttons := []config.Button{
		{Type: config.ButtonLine, Name: "100"},
		{Type: config.ButtonSpeedDial, Name: "Mom", Option: "200"},
		{Type: config.ButtonEmpty},
		{Type: config.ButtonLine, Name: "101"},
		{Type: config.ButtonFeature, Name: "DND", Option: "dnd"},
		{Type: config.ButtonSpeedDial, Name: "Dad", Option: "201"},
		{Type: config.ButtonService, Name: "News", Option: "http://x/"},
	}
	tpl := BuildTemplate(buttons, 6)
	require.Len(t, tpl.Entries, 6)
	assert.Equal(t, 1, tpl.Dropped)

	inst, ok := tpl.LineInstance("101")
	require.True(t, ok)
	assert.Equal(t, uint32(2), inst)
	name, ok := tpl.Line(1)
	require.True(t, ok)
	assert.Equal(t, "100", name)

	sd, ok := tpl.SpeedDial(2)
	require.True(t, ok)
	assert.Equal(t, "Dad", sd.Name)
	_, ok = tpl.ServiceURL(1)
	assert.False(t, ok, "dropped beyond capacity")

	msg := tpl.Message()
	assert.Equal(t, uint32(6), msg.TotalButtonCount)
	assert.Equal(t, skinny.ButtonDefinition{Instance: 0, Type: skinny.ButtonUndefined}, msg.Definitions[2])
	assert.Equal(t, skinny.ButtonDefinition{Instance: 1, Type: skinny.ButtonFeature}, msg.Definitions[4])
	assert.Equal(t, uint32(1), tpl.DefaultLine())
}

func TestCapacity(t *testing.T) {
	assert.Equal(t, 6, Capacity(skinny.DeviceType7960, 0, nil))
	assert.Equal(t, 8, Capacity(skinny.DeviceType7960, 8, nil), "reported count wins")
	assert.Equal(t, 6+14+24, Capacity(skinny.DeviceType7960, 0, []uint32{skinny.DeviceType7914, skinny.DeviceType7915}))
	assert.Equal(t, skinny.MaxButtonTemplate, Capacity(skinny.DeviceType7931, 0, []uint32{skinny.DeviceType7916, skinny.DeviceType7916}))
}

func TestSoftKeySetFallback(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, softkey.DefaultSetName, r.SoftKeySet("missing").Name)

	s := softkey.New("mine")
	r.PutSoftKeySet(s)
	assert.Same(t, s, r.SoftKeySet("mine"))

	r.MarkSoftKeySets(true, false)
	assert.Equal(t, softkey.DefaultSetName, r.SoftKeySet("mine").Name, "pending delete sets are not handed out")
	assert.False(t, r.SoftKeySet(softkey.DefaultSetName).PendingDelete)
	assert.False(t, r.RemoveSoftKeySet(softkey.DefaultSetName))
	assert.True(t, r.RemoveSoftKeySet("mine"))
}

func TestChannelState(t *testing.T) {
	r := newTestRegistry(t)
	d := NewDevice("SEP1", &config.Device{}, nil)
	l := NewLine("100", &config.Line{}, nil, false)
	require.NoError(t, r.AddDevice(d))
	require.NoError(t, r.AddLine(l))
	c, err := r.NewChannel(d, l, 1, skinny.CallTypeOutbound)
	require.NoError(t, err)

	assert.Equal(t, callstate.Down, c.SetState(callstate.OffHook))
	c.AppendDigit('1')
	assert.Equal(t, "10", c.AppendDigit('0'))
	assert.Equal(t, "1", c.Backspace())
	c.SetState(callstate.Connected)
	assert.Equal(t, callstate.OffHook, c.PreviousState())
	assert.False(t, c.Answered().IsZero())

	assert.True(t, c.MarkHangup())
	assert.False(t, c.MarkHangup())

	c.SetParties(Party{"Alice", "100"}, Party{"", "200"})
	ci := c.CallInfo()
	assert.Equal(t, "100", ci.CallingParty)
	assert.Equal(t, skinny.CallTypeOutbound, ci.CallType)
	assert.Equal(t, c.CallRef, ci.CallReference)
}

func TestLineAppearances(t *testing.T) {
	l := NewLine("100", &config.Line{}, nil, false)
	l.AddAppearance("SEPB", 2)
	l.AddAppearance("SEPA", 1)
	assert.Equal(t, []Appearance{{"SEPA", 1}, {"SEPB", 2}}, l.Appearances())
	assert.Equal(t, 1, l.RemoveAppearance("SEPA"))
	_, ok := l.Instance("SEPA")
	assert.False(t, ok)

	assert.True(t, l.SetMessages(2, 0))
	assert.False(t, l.SetMessages(3, 1))
	assert.True(t, l.SetMessages(0, 4))
}
