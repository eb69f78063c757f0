// Package server is the driver context: it accepts phone connections,
// registers devices, runs their calls against the PBX and applies
// configuration reloads.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sccpd/internal/config"
	"sccpd/internal/metrics"
	"sccpd/internal/model"
	"sccpd/internal/netutil"
	"sccpd/internal/pbx"
	"sccpd/internal/reload"
	"sccpd/internal/scheduler"
	"sccpd/internal/session"
	"sccpd/internal/skinny"
	"sccpd/internal/softkey"
	"sccpd/internal/store"
)

// opTimeout bounds each call into the PBX and the store.
const opTimeout = 5 * time.Second

// ErrUnknownDevice is returned for a reset of a device that is not
// configured.
var ErrUnknownDevice = errors.New("server: unknown device")

// phone is a registered device and its session. mu serializes the call
// handling of one device between its session, the PBX and the timers.
type phone struct {
	mu   sync.Mutex
	dev  *model.Device
	sess *session.Session
	// forwardRef is the call collecting a call forward target.
	forwardRef uint32
}

// Server is the driver context.
type Server struct {
	reg      *model.Registry
	pbx      pbx.PBX
	store    store.Store
	timers   *scheduler.Scheduler
	ownTimer bool
	metrics  *metrics.Metrics
	pipeline *reload.Pipeline
	keys     *softkey.Dispatcher[*phone]
	path     string

	log     *logrus.Entry
	sessLog *logrus.Entry
	callLog *logrus.Entry
	rtpLog  *logrus.Entry

	mu     sync.Mutex
	phones map[string]*phone
	// bound maps a PBX channel id to the call legs it feeds. An offer to
	// a shared line feeds one leg per ringing device.
	bound map[string][]uint32
	// directMu pairs the transmissions of two phones sending RTP to each
	// other. It is taken with a phone lock held, never the other way.
	directMu sync.Mutex
	// resolve looks up permithost names.
	resolve func(ctx context.Context, host string) ([]netip.Addr, error)

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*options)

type options struct {
	store   store.Store
	lines   reload.LineSource
	timers  *scheduler.Scheduler
	metrics *metrics.Metrics
	path    string
	log     *logrus.Entry
	sessLog *logrus.Entry
	callLog *logrus.Entry
	rtpLog  *logrus.Entry
	cfgLog  *logrus.Entry
}

// WithStore sets the feature store. The default is in memory.
func WithStore(s store.Store) Option { return func(o *options) { o.store = s } }

// WithLineSource sets where realtime lines are read from.
func WithLineSource(s reload.LineSource) Option { return func(o *options) { o.lines = s } }

// WithScheduler shares a scheduler; otherwise the server starts its own.
func WithScheduler(s *scheduler.Scheduler) Option { return func(o *options) { o.timers = s } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithConfigPath sets the file Reload reads.
func WithConfigPath(path string) Option { return func(o *options) { o.path = path } }

// WithLoggers sets the core, session, call, rtp and config loggers. nil
// entries fall back to the core logger.
func WithLoggers(core, sess, call, rtp, cfg *logrus.Entry) Option {
	return func(o *options) {
		o.log, o.sessLog, o.callLog, o.rtpLog, o.cfgLog = core, sess, call, rtp, cfg
	}
}

// New creates a server over reg and subscribes it to px.
func New(reg *model.Registry, px pbx.PBX, opts ...Option) (*Server, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	for _, l := range []**logrus.Entry{&o.sessLog, &o.callLog, &o.rtpLog, &o.cfgLog} {
		if *l == nil {
			*l = o.log
		}
	}
	if o.store == nil {
		o.store = store.NewMemory()
	}
	s := &Server{
		reg:     reg,
		pbx:     px,
		store:   o.store,
		timers:  o.timers,
		metrics: o.metrics,
		path:    o.path,
		log:     o.log,
		sessLog: o.sessLog,
		callLog: o.callLog,
		rtpLog:  o.rtpLog,
		phones:  make(map[string]*phone),
		bound:   make(map[string][]uint32),
		resolve: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
	}
	if s.timers == nil {
		t, err := scheduler.New(scheduler.DefaultTick, o.log)
		if err != nil {
			return nil, err
		}
		s.timers, s.ownTimer = t, true
	}
	ropts := []reload.Option{reload.WithMetrics(o.metrics), reload.WithLogger(o.cfgLog)}
	if o.lines != nil {
		ropts = append(ropts, reload.WithLineSource(o.lines))
	}
	s.pipeline = reload.New(reg, s.resetDevice, ropts...)
	s.keys = s.newDispatcher()
	o.metrics.WatchObjects(reg.Refs().Len)
	px.Subscribe(s)
	return s, nil
}

// Registry returns the live objects.
func (s *Server) Registry() *model.Registry { return s.reg }

// Global returns the current [general] configuration.
func (s *Server) Global() *config.Global { return s.pipeline.Global() }

// Reload re-reads the configuration file.
func (s *Server) Reload(ctx context.Context) (*reload.Result, error) {
	if s.path == "" {
		return nil, errors.New("server: no configuration file")
	}
	return s.pipeline.Load(ctx, s.path)
}

// Apply runs the reload pipeline over an already parsed file.
func (s *Server) Apply(ctx context.Context, f *config.File) (*reload.Result, error) {
	return s.pipeline.Run(ctx, f)
}

// ListenAndServe listens on the configured signaling address.
func (s *Server) ListenAndServe(ctx context.Context) error {
	g := s.Global()
	addr := g.ListenAddr()
	if !addr.Addr().IsValid() {
		addr = netip.AddrPortFrom(netip.IPv4Unspecified(), addr.Port())
	}
	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.log.Infof("listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts phones on ln until ctx is canceled, then waits for the
// sessions to end.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warnf("accept: %v", err)
				continue
			}
			return err
		}
		if !s.admit(conn) {
			_ = conn.Close()
			continue
		}
		if err := netutil.Mark(conn, s.Global().SCCPQoS); err != nil {
			s.log.Debugf("sccp qos on %s: %v", conn.RemoteAddr(), err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.ServeConn(ctx, conn)
		}()
	}
}

// admit applies the global access list before a session is created.
func (s *Server) admit(conn net.Conn) bool {
	addr := peerAddr(conn.RemoteAddr())
	if addr.IsValid() && !s.Global().ACL().Allows(addr) {
		s.log.Warnf("connection from %s denied by acl", addr)
		return false
	}
	return true
}

// ServeConn runs one phone session on conn until it ends.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	g := s.Global()
	sess := session.New(conn, s,
		session.WithLogger(s.sessLog),
		session.WithMetrics(s.metrics),
		session.WithTimers(s.timers),
		session.WithKeepAlive(g.KeepAliveInterval()),
	)
	s.sessLog.Debugf("session from %s", conn.RemoteAddr())
	err := sess.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.sessLog.Infof("session %s ended: %v", sess.ID, err)
	}
	return err
}

// Shutdown stops the timers the server owns.
func (s *Server) Shutdown() {
	if s.ownTimer {
		s.timers.Shutdown()
	}
}

// ResetDevice asks a registered device to reset or restart now, whatever
// its calls.
func (s *Server) ResetDevice(id string, t skinny.ResetType) error {
	d := s.reg.Device(id)
	if d == nil {
		return fmt.Errorf("%s: %w", id, ErrUnknownDevice)
	}
	if !d.Registered() {
		return fmt.Errorf("%s: %w", id, model.ErrNotRegistered)
	}
	s.resetDevice(d, t)
	return nil
}

func (s *Server) resetDevice(d *model.Device, t skinny.ResetType) {
	s.log.Infof("resetting %s (%d)", d.ID, t)
	if err := d.Send(&skinny.Reset{Type: t}); err != nil {
		s.log.Warnf("reset %s: %v", d.ID, err)
		return
	}
	s.metrics.DeviceReset()
}

func (s *Server) phone(id string) *phone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phones[id]
}

// withPhone runs fn under the lock of the device's phone. It reports
// false when the device is not registered.
func (s *Server) withPhone(id string, fn func(p *phone)) bool {
	p := s.phone(id)
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
	return true
}

func (s *Server) bind(pbxID string, ref uint32) {
	s.mu.Lock()
	s.bound[pbxID] = append(s.bound[pbxID], ref)
	s.mu.Unlock()
}

func (s *Server) unbind(pbxID string, ref uint32) {
	if pbxID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := s.bound[pbxID]
	for i, r := range refs {
		if r == ref {
			refs = append(refs[:i], refs[i+1:]...)
			break
		}
	}
	if len(refs) == 0 {
		delete(s.bound, pbxID)
		return
	}
	s.bound[pbxID] = refs
}

func (s *Server) boundTo(pbxID string) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.bound[pbxID]...)
}

func (s *Server) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// peerAddr extracts the IP of a socket address. Addresses without one,
// such as in-memory pipes, give the zero Addr.
func peerAddr(a net.Addr) netip.Addr {
	if a == nil {
		return netip.Addr{}
	}
	if ap, err := netip.ParseAddrPort(a.String()); err == nil {
		return ap.Addr().Unmap()
	}
	return netip.Addr{}
}
