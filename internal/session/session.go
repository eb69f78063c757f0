// Package session runs one phone connection: the frame read loop, ordered
// writes, the registration state machine and the keepalive watchdog.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"sccpd/internal/metrics"
	"sccpd/internal/protocol"
	"sccpd/internal/scheduler"
	"sccpd/internal/skinny"
)

var (
	// ErrAuth reports an ACL deny or a rejected registration.
	ErrAuth = errors.New("session: registration refused")
	// ErrTimeout reports a phone that stopped sending keepalives.
	ErrTimeout = errors.New("session: keepalive timeout")
	// ErrTokenDeny reports a token request rejected by the fallback policy.
	ErrTokenDeny = errors.New("session: token denied")
)

// Session states.
const (
	StateConnecting     = "connecting"
	StateTokenRequested = "token_requested"
	StateRegistering    = "registering"
	StateRegistered     = "registered"
	StateInService      = "in_service"
	StateUnregistering  = "unregistering"
	StateClosed         = "closed"
)

// Session events.
const (
	EventToken      = "token"
	EventRegister   = "register"
	EventRegistered = "registered"
	EventInService  = "in_service"
	EventUnregister = "unregister"
	EventClose      = "close"
)

// DefaultKeepAlive is used until registration negotiates an interval.
const DefaultKeepAlive = 60 * time.Second

// keepAliveMisses is the number of silent intervals tolerated.
const keepAliveMisses = 3

// Handler receives every decoded frame except KeepAlive and Unregister,
// which the session answers itself.
type Handler interface {
	HandleMessage(s *Session, msg skinny.Message) error
	// Unregister is called exactly once when the session leaves service,
	// before the socket is closed. cause is nil for a phone initiated
	// unregister.
	Unregister(s *Session, cause error)
}

// Timers schedules the keepalive watchdog.
type Timers interface {
	After(d time.Duration, fn func()) (scheduler.ID, error)
	Cancel(id scheduler.ID) bool
}

// Session is one phone connection.
type Session struct {
	ID string

	conn    net.Conn
	handler Handler
	timers  Timers
	metrics *metrics.Metrics
	logp    atomic.Pointer[logrus.Entry]
	fsm     *fsm.FSM

	ver       atomic.Uint32
	keepAlive atomic.Int64
	lastSeen  atomic.Int64
	watchdog  atomic.Uint64

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}

	causeMu sync.Mutex
	cause   error

	// DeviceID is set by the registration handler once the phone has
	// identified itself.
	deviceID atomic.Value
}

// Option configures a Session.
type Option func(*Session)

// WithMetrics records frame counters.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Session) { s.metrics = m } }

// WithLogger sets the session logger.
func WithLogger(l *logrus.Entry) Option { return func(s *Session) { s.logp.Store(l) } }

// WithKeepAlive sets the initial keepalive interval.
func WithKeepAlive(d time.Duration) Option { return func(s *Session) { s.keepAlive.Store(int64(d)) } }

// WithTimers sets the scheduler used for the keepalive watchdog. Without
// it the watchdog is disabled.
func WithTimers(t Timers) Option { return func(s *Session) { s.timers = t } }

// New wraps an accepted connection.
func New(conn net.Conn, h Handler, opts ...Option) *Session {
	s := &Session{
		ID:      conn.RemoteAddr().String(),
		conn:    conn,
		handler: h,
		closed:  make(chan struct{}),
	}
	s.keepAlive.Store(int64(DefaultKeepAlive))
	for _, o := range opts {
		o(s)
	}
	l := s.logp.Load()
	if l == nil {
		l = logrus.NewEntry(logrus.StandardLogger())
	}
	s.logp.Store(l.WithField("peer", s.ID))
	s.ver.Store(uint32(skinny.MinProtocolVersion))
	s.deviceID.Store("")
	s.fsm = fsm.NewFSM(
		StateConnecting,
		fsm.Events{
			{Name: EventToken, Src: []string{StateConnecting}, Dst: StateTokenRequested},
			{Name: EventRegister, Src: []string{StateConnecting, StateTokenRequested}, Dst: StateRegistering},
			{Name: EventRegistered, Src: []string{StateRegistering}, Dst: StateRegistered},
			{Name: EventInService, Src: []string{StateRegistered}, Dst: StateInService},
			{Name: EventUnregister, Src: []string{StateConnecting, StateTokenRequested, StateRegistering, StateRegistered, StateInService}, Dst: StateUnregistering},
			{Name: EventClose, Src: []string{StateConnecting, StateTokenRequested, StateRegistering, StateRegistered, StateInService, StateUnregistering}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.Log().Debugf("session %s -> %s", e.Src, e.Dst)
			},
		},
	)
	return s
}

// State returns the current state name.
func (s *Session) State() string { return s.fsm.Current() }

// Fire moves the state machine. Events that do not apply to the current
// state are reported as errors; a no-op transition is not an error.
func (s *Session) Fire(event string) error {
	err := s.fsm.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

// Version returns the negotiated protocol version.
func (s *Session) Version() uint8 { return uint8(s.ver.Load()) }

// SetVersion records the version negotiated at registration.
func (s *Session) SetVersion(v uint8) { s.ver.Store(uint32(protocol.Negotiate(v))) }

// Protocol returns the encoder set for the negotiated version.
func (s *Session) Protocol() protocol.Adaptor { return protocol.For(s.Version()) }

// KeepAlive returns the negotiated keepalive interval.
func (s *Session) KeepAlive() time.Duration { return time.Duration(s.keepAlive.Load()) }

// SetKeepAlive changes the interval the watchdog enforces. A running
// watchdog is re-armed for the new deadline.
func (s *Session) SetKeepAlive(d time.Duration) {
	s.keepAlive.Store(int64(d))
	if id := s.watchdog.Load(); id != 0 && s.timers != nil {
		s.timers.Cancel(scheduler.ID(id))
		s.armWatchdog(d * keepAliveMisses)
	}
}

// DeviceID returns the identifier the phone registered with.
func (s *Session) DeviceID() string { return s.deviceID.Load().(string) }

// SetDeviceID binds the session to a device.
func (s *Session) SetDeviceID(id string) {
	s.deviceID.Store(id)
	s.logp.Store(s.Log().WithField("device", id))
}

// Log returns the session logger.
func (s *Session) Log() *logrus.Entry { return s.logp.Load() }

// RemoteAddr returns the phone address.
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// LocalAddr returns the server side address of the connection.
func (s *Session) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Conn exposes the socket for option tuning.
func (s *Session) Conn() net.Conn { return s.conn }

// Done is closed once the session has torn down.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Send encodes msg at the negotiated version. Writes from concurrent
// callers are serialized, so frames leave in the order Send returns.
func (s *Session) Send(msg skinny.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.closed:
		return net.ErrClosed
	default:
	}
	if err := skinny.WriteMessage(s.conn, msg, s.Version()); err != nil {
		return fmt.Errorf("send %s: %w", msg.ID(), err)
	}
	s.metrics.FrameSent(msg.ID().String())
	s.Log().Tracef("sent %s", msg.ID())
	return nil
}

// SendAll sends msgs in order and stops at the first failure.
func (s *Session) SendAll(msgs ...skinny.Message) error {
	for _, m := range msgs {
		if err := s.Send(m); err != nil {
			return err
		}
	}
	return nil
}

// Run reads frames until the connection fails, the phone unregisters or
// ctx is canceled. The returned error is nil for an orderly close.
func (s *Session) Run(ctx context.Context) error {
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	stop := context.AfterFunc(ctx, func() { s.Unregister(context.Cause(ctx)) })
	defer stop()

	s.touch()
	s.armWatchdog(s.KeepAlive() * keepAliveMisses)

	var err error
	for err == nil {
		err = s.readOne()
	}

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		err = nil
	case errors.Is(err, skinny.ErrMalformed):
		s.Log().Warnf("closing on malformed frame: %v", err)
	}
	if c := s.Cause(); c != nil {
		err = c
	}
	s.teardown(err)
	return err
}

func (s *Session) readOne() error {
	f, err := skinny.ReadFrame(s.conn)
	if err != nil {
		select {
		case <-s.closed:
			return net.ErrClosed
		default:
		}
		return err
	}
	s.touch()
	msg, err := skinny.Decode(f, s.Version())
	if errors.Is(err, skinny.ErrUnknownVariant) {
		s.metrics.UnknownFrame()
		s.Log().Debugf("skipping frame: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	s.metrics.FrameReceived(f.ID.String())
	s.Log().Tracef("received %s", f.ID)

	switch msg.(type) {
	case *skinny.KeepAlive:
		return s.Send(&skinny.KeepAliveAck{})
	case *skinny.Unregister:
		s.Unregister(nil)
		return net.ErrClosed
	}
	if err := s.handler.HandleMessage(s, msg); err != nil {
		if errors.Is(err, ErrAuth) || errors.Is(err, ErrTokenDeny) {
			s.setCause(err)
			return net.ErrClosed
		}
		s.Log().Warnf("%s: %v", f.ID, err)
	}
	return nil
}

// Cause returns the error that ended the session, if any.
func (s *Session) Cause() error {
	s.causeMu.Lock()
	defer s.causeMu.Unlock()
	return s.cause
}

// setCause keeps the first non-nil cause.
func (s *Session) setCause(err error) {
	s.causeMu.Lock()
	defer s.causeMu.Unlock()
	if s.cause == nil {
		s.cause = err
	}
}

func (s *Session) touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// armWatchdog checks the deadline after d. A phone that kept talking moves
// the deadline forward and the check re-arms for the remainder.
func (s *Session) armWatchdog(d time.Duration) {
	if s.timers == nil {
		return
	}
	id, err := s.timers.After(d, s.checkKeepAlive)
	if err != nil {
		s.Log().Warnf("keepalive watchdog: %v", err)
		return
	}
	s.watchdog.Store(uint64(id))
}

func (s *Session) checkKeepAlive() {
	select {
	case <-s.closed:
		return
	default:
	}
	deadline := time.Unix(0, s.lastSeen.Load()).Add(s.KeepAlive() * keepAliveMisses)
	if remaining := time.Until(deadline); remaining > 0 {
		s.armWatchdog(remaining)
		return
	}
	s.metrics.KeepaliveTimeout()
	s.Log().Warnf("no keepalive for %s", s.KeepAlive()*keepAliveMisses)
	s.Unregister(ErrTimeout)
}

// Unregister takes the session out of service exactly once: the handler
// releases the device, the phone gets UnregisterAck when it asked for it
// and the socket is closed.
func (s *Session) Unregister(cause error) {
	s.once.Do(func() {
		s.setCause(cause)
		if err := s.Fire(EventUnregister); err != nil {
			s.Log().Debugf("unregister: %v", err)
		}
		s.handler.Unregister(s, cause)
		if cause == nil {
			if err := s.Send(&skinny.UnregisterAck{}); err != nil {
				s.Log().Debugf("unregister ack: %v", err)
			}
		}
		s.writeMu.Lock()
		close(s.closed)
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

// Close drops the connection without the unregister exchange, as on a
// rejected registration. Pending writes are flushed first.
func (s *Session) Close(cause error) {
	s.once.Do(func() {
		s.setCause(cause)
		s.writeMu.Lock()
		close(s.closed)
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

func (s *Session) teardown(err error) {
	if s.State() != StateUnregistering && s.State() != StateClosed && s.DeviceID() != "" {
		// the socket died under a registered phone
		cause := err
		if cause == nil {
			cause = io.EOF
		}
		s.Unregister(cause)
	}
	s.Close(err)
	if id := s.watchdog.Load(); id != 0 && s.timers != nil {
		s.timers.Cancel(scheduler.ID(id))
	}
	if err := s.Fire(EventClose); err != nil {
		s.Log().Debugf("close: %v", err)
	}
}
