package reload

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/config"
	"sccpd/internal/model"
	"sccpd/internal/protocol"
	"sccpd/internal/realtime"
	"sccpd/internal/refcount"
	"sccpd/internal/skinny"
)

type link struct{}

func (link) Send(skinny.Message) error      { return nil }
func (link) SendAll(...skinny.Message) error { return nil }
func (link) Protocol() protocol.Adaptor     { return protocol.For(17) }
func (link) Close(error)                    {}

type resets struct {
	mu  sync.Mutex
	got map[string]skinny.ResetType
}

func (r *resets) fn(d *model.Device, t skinny.ResetType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.got == nil {
		r.got = make(map[string]skinny.ResetType)
	}
	r.got[d.ID] = t
}

type lineSource map[string]*config.Section

func (s lineSource) Line(_ context.Context, name string) (*config.Section, error) {
	if name == "broken" {
		return nil, errors.New("connection refused")
	}
	sec, ok := s[name]
	if !ok {
		return nil, realtime.ErrNotFound
	}
	return sec, nil
}

const base = `
[general]
keepalive = 60
allow = ulaw

[SEP001122334455]
type = device
button = line, 100

[100]
type = line
pin = 1234
label = Alice
cid_name = Alice
cid_num = 100
`

func parse(t *testing.T, text string) *config.File {
	t.Helper()
	f, err := config.Parse([]byte(text), "sccp.conf")
	require.NoError(t, err)
	return f
}

func newPipeline(t *testing.T, opts ...Option) (*Pipeline, *model.Registry, *resets) {
	t.Helper()
	reg := model.NewRegistry(refcount.NewRegistry(nil), nil)
	r := &resets{}
	return New(reg, r.fn, opts...), reg, r
}

func register(t *testing.T, reg *model.Registry, id string) *model.Device {
	t.Helper()
	d := reg.Device(id)
	require.NotNil(t, d)
	require.NoError(t, d.Attach(link{}, model.Registration{}))
	if l := reg.Line("100"); l != nil {
		l.AddAppearance(id, 1)
	}
	return d
}

func TestFirstLoadBuildsObjects(t *testing.T) {
	p, reg, r := newPipeline(t)
	res, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)

	assert.Equal(t, []string{"SEP001122334455"}, res.DevicesAdded)
	assert.Equal(t, []string{"100"}, res.LinesAdded)
	assert.Empty(t, res.Reset)
	assert.Equal(t, 60, p.Global().KeepAlive)
	assert.NotNil(t, p.GlobalSection())

	d := reg.Device("SEP001122334455")
	require.NotNil(t, d)
	assert.False(t, d.PendingDelete())
	assert.Equal(t, []string{"ulaw"}, d.Config().Allow, "inherited from [general]")
	assert.Equal(t, "Alice", reg.Line("100").Config().Label)
	assert.Empty(t, r.got)
}

func TestUnchangedReloadTouchesNothing(t *testing.T) {
	p, reg, r := newPipeline(t)
	_, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	d := register(t, reg, "SEP001122334455")

	res, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	assert.Empty(t, res.DevicesChanged)
	assert.Empty(t, res.DevicesRemoved)
	assert.Empty(t, res.LinesRemoved)
	assert.False(t, d.PendingUpdate())
	assert.False(t, d.PendingDelete())
	assert.Empty(t, r.got)
}

func TestResetChangeOnIdleDevice(t *testing.T) {
	p, reg, r := newPipeline(t)
	_, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	register(t, reg, "SEP001122334455")

	changed := base + "\n[SEP001122334455]\nallow = alaw\n"
	res, err := p.Run(context.Background(), parse(t, changed))
	require.NoError(t, err)
	assert.Equal(t, []string{"SEP001122334455"}, res.DevicesChanged)
	assert.Equal(t, []string{"SEP001122334455"}, res.Reset)
	assert.Equal(t, skinny.ResetSoft, r.got["SEP001122334455"])
	assert.Equal(t, []string{"alaw"}, reg.Device("SEP001122334455").Config().Allow)
}

func TestResetIsDeferredWhileCallsExist(t *testing.T) {
	p, reg, r := newPipeline(t)
	_, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	d := register(t, reg, "SEP001122334455")
	c, err := reg.NewChannel(d, reg.Line("100"), 1, skinny.CallTypeOutbound)
	require.NoError(t, err)

	changed := base + "\n[SEP001122334455]\nallow = alaw\n"
	res, err := p.Run(context.Background(), parse(t, changed))
	require.NoError(t, err)
	assert.Empty(t, res.Reset)
	assert.Equal(t, []string{"SEP001122334455"}, res.Deferred)
	assert.Empty(t, r.got, "a live call is never interrupted")
	assert.True(t, d.PendingUpdate())

	// Another reload before the call ends keeps the deferral.
	_, err = p.Run(context.Background(), parse(t, changed))
	require.NoError(t, err)
	assert.True(t, d.PendingUpdate())

	assert.Equal(t, 0, reg.EndChannel(c))
	assert.True(t, d.TakePendingUpdate(), "the last call end takes the reset")
	assert.False(t, d.PendingUpdate())
}

func TestSoftChangeDoesNotReset(t *testing.T) {
	p, reg, r := newPipeline(t)
	_, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	d := register(t, reg, "SEP001122334455")

	res, err := p.Run(context.Background(), parse(t, base+"\n[SEP001122334455]\npark = off\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"SEP001122334455"}, res.DevicesChanged)
	assert.Empty(t, res.Reset)
	assert.False(t, d.PendingUpdate())
	assert.False(t, d.Config().Park)
	assert.Empty(t, r.got)
}

func TestRemovedObjectsAreSwept(t *testing.T) {
	p, reg, r := newPipeline(t)
	_, err := p.Run(context.Background(), parse(t, base+`
[SEP00AABBCCDDEE]
type = device
button = line, 200

[200]
type = line
pin = 1
label = Bob
cid_name = Bob
cid_num = 200

[quiet]
type = softkeyset
onhook = redial
`))
	require.NoError(t, err)
	_, ok := reg.LookupSoftKeySet("quiet")
	require.True(t, ok)
	register(t, reg, "SEP00AABBCCDDEE")

	res, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	assert.Equal(t, []string{"SEP00AABBCCDDEE"}, res.DevicesRemoved)
	assert.Equal(t, []string{"200"}, res.LinesRemoved)
	assert.Equal(t, []string{"quiet"}, res.SetsRemoved)
	assert.Equal(t, skinny.ResetRestart, r.got["SEP00AABBCCDDEE"])
	assert.Nil(t, reg.Device("SEP00AABBCCDDEE"))
	assert.Nil(t, reg.Line("200"))
	_, ok = reg.LookupSoftKeySet("quiet")
	assert.False(t, ok)
	assert.NotNil(t, reg.SoftKeySet("default"))
}

func TestGlobalResetChangeMarksDevices(t *testing.T) {
	p, reg, r := newPipeline(t)
	_, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	register(t, reg, "SEP001122334455")

	res, err := p.Run(context.Background(), parse(t, base+"\n[general]\ndateformat = M/D/Y\n"))
	require.NoError(t, err)
	assert.Equal(t, config.ChangeReset, res.Global)
	assert.Equal(t, skinny.ResetSoft, r.got["SEP001122334455"])
	assert.Equal(t, "M/D/Y", p.Global().DateFormat)
}

func TestLineResetChangeMarksAppearances(t *testing.T) {
	p, reg, r := newPipeline(t)
	_, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	register(t, reg, "SEP001122334455")

	res, err := p.Run(context.Background(), parse(t, base+"\n[100]\nlabel = Alice Smith\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"100"}, res.LinesChanged)
	assert.Equal(t, skinny.ResetSoft, r.got["SEP001122334455"])
}

func TestRealtimeLines(t *testing.T) {
	rt := lineSource{"300": &config.Section{Name: "300", Entries: []config.Entry{
		{Key: "type", Values: []string{"line"}},
		{Key: "label", Values: []string{"Carol"}},
		{Key: "cid_name", Values: []string{"Carol"}},
		{Key: "cid_num", Values: []string{"300"}},
		{Key: "pin", Values: []string{"0"}},
	}}}
	p, reg, _ := newPipeline(t, WithLineSource(rt))
	text := base + `
[SEP0000000000AA]
type = device
button = line, 300
button = line, broken
`
	res, err := p.Run(context.Background(), parse(t, text))
	require.NoError(t, err)
	assert.Contains(t, res.LinesAdded, "300")
	require.NotNil(t, reg.Line("300"))
	assert.True(t, reg.Line("300").Realtime())
	assert.Equal(t, "Carol", reg.Line("300").Config().Label)
	assert.Nil(t, reg.Line("broken"))
	assert.NotEmpty(t, res.Warnings)

	// The row disappears.
	delete(rt, "300")
	res, err = p.Run(context.Background(), parse(t, text))
	require.NoError(t, err)
	assert.Equal(t, []string{"300"}, res.LinesRemoved)
	assert.Nil(t, reg.Line("300"))
}

func TestHotlineObjectsSurvive(t *testing.T) {
	p, reg, r := newPipeline(t)
	_, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)

	hd := model.NewDevice("SEP0000DEADBEEF", config.NewDevice(nil), nil)
	hd.SetHotline(true)
	require.NoError(t, reg.AddDevice(hd))
	require.NoError(t, reg.AddLine(model.NewLine(model.HotlineName, &config.Line{}, nil, false)))
	require.NoError(t, hd.Attach(link{}, model.Registration{}))

	res, err := p.Run(context.Background(), parse(t, base))
	require.NoError(t, err)
	assert.Empty(t, res.DevicesRemoved)
	assert.NotNil(t, reg.Device("SEP0000DEADBEEF"))
	assert.NotNil(t, reg.Line(model.HotlineName))

	// Configured later: the hotline phone re-registers with its real
	// configuration.
	res, err = p.Run(context.Background(), parse(t, base+"\n[SEP0000DEADBEEF]\ntype = device\nbutton = line, 100\n"))
	require.NoError(t, err)
	assert.False(t, hd.Hotline())
	assert.Equal(t, skinny.ResetSoft, r.got["SEP0000DEADBEEF"])
	assert.Contains(t, res.Reset, "SEP0000DEADBEEF")
}

func TestLoadMissingFile(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.Load(context.Background(), "/nonexistent/sccp.conf")
	assert.Error(t, err)
	_, err = p.Run(context.Background(), nil)
	assert.Error(t, err)
}
