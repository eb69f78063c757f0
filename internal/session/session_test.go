package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccpd/internal/scheduler"
	"sccpd/internal/skinny"
)

type recordingHandler struct {
	mu          sync.Mutex
	msgs        []skinny.Message
	unregisters atomic.Int32
	cause       error
	reply       func(s *Session, msg skinny.Message) error
}

func (h *recordingHandler) HandleMessage(s *Session, msg skinny.Message) error {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
	if h.reply != nil {
		return h.reply(s, msg)
	}
	return nil
}

func (h *recordingHandler) Unregister(_ *Session, cause error) {
	h.unregisters.Add(1)
	h.mu.Lock()
	h.cause = cause
	h.mu.Unlock()
}

func (h *recordingHandler) received() []skinny.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]skinny.Message(nil), h.msgs...)
}

type phone struct {
	t    *testing.T
	conn net.Conn
	ver  uint8
}

func (p *phone) send(m skinny.Message) {
	require.NoError(p.t, skinny.WriteMessage(p.conn, m, p.ver))
}

func (p *phone) recv() skinny.Message {
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := skinny.ReadFrame(p.conn)
	require.NoError(p.t, err)
	m, err := skinny.Decode(f, p.ver)
	require.NoError(p.t, err)
	return m
}

func startSession(t *testing.T, h Handler, opts ...Option) (*Session, *phone, chan error) {
	server, client := net.Pipe()
	s := New(server, h, opts...)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	t.Cleanup(func() { _ = client.Close() })
	return s, &phone{t: t, conn: client, ver: 3}, done
}

func wait(t *testing.T, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("session did not stop")
		return nil
	}
}

func TestKeepAliveIsAcked(t *testing.T) {
	h := &recordingHandler{}
	_, p, _ := startSession(t, h)

	p.send(&skinny.KeepAlive{})
	assert.IsType(t, &skinny.KeepAliveAck{}, p.recv())
	assert.Empty(t, h.received())
}

func TestHandlerReceivesMessages(t *testing.T) {
	h := &recordingHandler{reply: func(s *Session, msg skinny.Message) error {
		if _, ok := msg.(*skinny.TimeDateReq); ok {
			return s.Send(skinny.NewDefineTimeDate(time.Now()))
		}
		return nil
	}}
	_, p, _ := startSession(t, h)

	p.send(&skinny.TimeDateReq{})
	assert.IsType(t, &skinny.DefineTimeDate{}, p.recv())
	require.Len(t, h.received(), 1)
}

func TestPhoneUnregister(t *testing.T) {
	h := &recordingHandler{}
	s, p, done := startSession(t, h)
	s.SetDeviceID("SEP001122334455")

	p.send(&skinny.Unregister{})
	assert.IsType(t, &skinny.UnregisterAck{}, p.recv())
	assert.NoError(t, wait(t, done))
	assert.Equal(t, int32(1), h.unregisters.Load())
	assert.NoError(t, h.cause)
	assert.Equal(t, StateClosed, s.State())
}

func TestMalformedFrameClosesWithoutReply(t *testing.T) {
	h := &recordingHandler{}
	s, p, done := startSession(t, h)

	_, err := p.conn.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0})
	require.NoError(t, err)
	err = wait(t, done)
	assert.ErrorIs(t, err, skinny.ErrMalformed)
	assert.Zero(t, h.unregisters.Load(), "no device was bound")
	assert.Equal(t, StateClosed, s.State())

	_ = p.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, err = skinny.ReadFrame(p.conn)
	assert.Error(t, err, "nothing was written back")
}

func TestUnknownVariantIsSkipped(t *testing.T) {
	h := &recordingHandler{}
	_, p, _ := startSession(t, h)

	// dynamic notify has no layout at v3
	p.send(&skinny.DisplayDynamicNotify{Text: "x"})
	p.send(&skinny.KeepAlive{})
	assert.IsType(t, &skinny.KeepAliveAck{}, p.recv())
	assert.Empty(t, h.received())
}

func TestAuthErrorClosesSession(t *testing.T) {
	h := &recordingHandler{reply: func(s *Session, msg skinny.Message) error {
		_ = s.Send(&skinny.RegisterReject{Text: "Unknown Device"})
		return ErrAuth
	}}
	_, p, done := startSession(t, h)

	p.send(&skinny.Register{Station: skinny.StationIdentifier{DeviceName: "SEP000000000001"}})
	assert.Equal(t, &skinny.RegisterReject{Text: "Unknown Device"}, p.recv())
	assert.ErrorIs(t, wait(t, done), ErrAuth)
}

func TestKeepAliveTimeoutUnregistersOnce(t *testing.T) {
	sched, err := scheduler.New(5*time.Millisecond, nil)
	require.NoError(t, err)
	defer sched.Shutdown()

	h := &recordingHandler{}
	s, p, done := startSession(t, h, WithTimers(sched), WithKeepAlive(20*time.Millisecond))
	s.SetDeviceID("SEP001122334455")
	require.NoError(t, s.Fire(EventRegister))

	// traffic inside the window keeps the session alive
	for i := 0; i < 3; i++ {
		time.Sleep(15 * time.Millisecond)
		p.send(&skinny.KeepAlive{})
		p.recv()
	}
	assert.Zero(t, h.unregisters.Load())

	assert.ErrorIs(t, wait(t, done), ErrTimeout)
	assert.Equal(t, int32(1), h.unregisters.Load())
	assert.ErrorIs(t, h.cause, ErrTimeout)
	assert.Equal(t, StateClosed, s.State())

	// a silent phone gets no frame, only the closed socket
	_, err = skinny.ReadFrame(p.conn)
	assert.Error(t, err)
}

func TestSendIsOrdered(t *testing.T) {
	h := &recordingHandler{}
	s, p, _ := startSession(t, h)

	go func() {
		_ = s.SendAll(
			&skinny.CallStateMsg{State: skinny.CallStateOffHook},
			&skinny.SelectSoftKeys{SetIndex: 4},
			&skinny.StartTone{Tone: skinny.ToneInsideDialTone},
		)
	}()
	assert.IsType(t, &skinny.CallStateMsg{}, p.recv())
	assert.IsType(t, &skinny.SelectSoftKeys{}, p.recv())
	assert.IsType(t, &skinny.StartTone{}, p.recv())
}

func TestVersionNegotiationClamps(t *testing.T) {
	s := New(pipeEnd(t), &recordingHandler{})
	s.SetVersion(22)
	assert.Equal(t, uint8(20), s.Version())
	assert.Equal(t, uint8(20), s.Protocol().Version())
	s.SetVersion(1)
	assert.Equal(t, uint8(3), s.Version())
}

func TestStateMachine(t *testing.T) {
	s := New(pipeEnd(t), &recordingHandler{})
	assert.Equal(t, StateConnecting, s.State())
	require.NoError(t, s.Fire(EventToken))
	require.NoError(t, s.Fire(EventRegister))
	require.NoError(t, s.Fire(EventRegistered))
	require.NoError(t, s.Fire(EventInService))
	assert.Equal(t, StateInService, s.State())
	assert.Error(t, s.Fire(EventToken), "token after registration")
	require.NoError(t, s.Fire(EventUnregister))
	require.NoError(t, s.Fire(EventClose))
	assert.Equal(t, StateClosed, s.State())
}

func pipeEnd(t *testing.T) net.Conn {
	a, b := net.Pipe()
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })
	return a
}

func TestFallbackMatches(t *testing.T) {
	assert.True(t, FallbackMatches("true", "SEP001122334455"))
	assert.False(t, FallbackMatches("false", "SEP001122334455"))
	assert.True(t, FallbackMatches("odd", "SEP001122334453"))
	assert.False(t, FallbackMatches("even", "SEP001122334453"))
	assert.True(t, FallbackMatches("even", "SEP00112233445A"))
	assert.False(t, FallbackMatches("odd", ""))
	assert.False(t, FallbackMatches("bogus", "SEP001122334453"))
}

func TestTokenPolicyDefersOnlyOnSecondary(t *testing.T) {
	p := TokenPolicy{Mode: FallbackOdd, Backoff: time.Minute}
	assert.False(t, p.Defer("SEP001122334453"), "primary keeps every phone")
	p.Secondary = true
	assert.True(t, p.Defer("SEP001122334453"))
	assert.False(t, p.Defer("SEP001122334454"))
}
