package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"sccpd/internal/admin"
	"sccpd/internal/metrics"
	"sccpd/internal/model"
	"sccpd/internal/netutil"
	"sccpd/internal/pbx/loopback"
	"sccpd/internal/realtime"
	"sccpd/internal/refcount"
	"sccpd/internal/scheduler"
	"sccpd/internal/server"
	"sccpd/internal/store"
)

// Gateway wires the SCCP server to the built in PBX, the feature store,
// the realtime line source and the admin api, and runs them together.
type Gateway struct {
	settings *Settings
	path     string

	metrics *metrics.Metrics
	timers  *scheduler.Scheduler
	store   store.Store
	lines   *realtime.Source
	pbx     *loopback.PBX
	srv     *server.Server
	admin   *admin.Server

	errs chan error
	wg   sync.WaitGroup
}

// NewGateway builds every component. Connections to redis and postgres
// are made here, so a wrong address fails at startup.
func NewGateway(ctx context.Context, settings *Settings, path string) (*Gateway, error) {
	g := &Gateway{
		settings: settings,
		path:     path,
		metrics:  metrics.New(),
		errs:     make(chan error, 4),
	}
	var err error
	if g.timers, err = scheduler.New(scheduler.DefaultTick, callLog); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	if addr := settings.RedisAddr(); addr != "" {
		g.store, err = store.OpenRedis(ctx, store.RedisConfig{
			Addr:     addr,
			Password: settings.RedisPassword(),
			DB:       settings.RedisDB(),
			Prefix:   settings.RedisPrefix(),
		})
		if err != nil {
			g.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		coreLog.Infof("feature store on redis %s", addr)
	} else {
		g.store = store.NewMemory()
		coreLog.Warn("no [redis] addr, feature status is kept in memory")
	}

	opts := []server.Option{
		server.WithStore(g.store),
		server.WithScheduler(g.timers),
		server.WithMetrics(g.metrics),
		server.WithConfigPath(path),
		server.WithLoggers(coreLog, sessionLog, callLog, rtpLog, configLog),
	}
	if dsn := settings.RealtimeDSN(); dsn != "" {
		g.lines, err = realtime.Open(ctx, realtime.Config{DSN: dsn, Table: settings.RealtimeTable()}, configLog)
		if err != nil {
			g.close()
			return nil, fmt.Errorf("realtime: %w", err)
		}
		opts = append(opts, server.WithLineSource(g.lines))
	}

	media := settings.MediaAddr()
	if !media.IsValid() {
		if media, err = detectHostIP(); err != nil {
			pbxLog.Warnf("media address: %v, announcing the bind address", err)
		}
	}
	g.pbx = loopback.New(loopback.Options{
		MediaAddr:       media,
		BindAddr:        settings.BindAddr(),
		QoS:             netutil.QoS{TOS: settings.AudioTOS(), COS: settings.AudioCOS()},
		Lines:           func() map[string]string { return g.srv.LineContexts() },
		RefreshInterval: settings.RefreshInterval(),
	}, pbxLog)
	if err := g.dialplan(); err != nil {
		g.close()
		return nil, err
	}

	refs := refcount.NewRegistry(coreLog)
	g.srv, err = server.New(model.NewRegistry(refs, coreLog), g.pbx, opts...)
	if err != nil {
		g.close()
		return nil, err
	}

	if listen := settings.AdminListen(); listen != "" {
		g.admin = admin.New(g.srv, g.metrics, admin.Options{
			Listen:    listen,
			JWTSecret: settings.JWTSecret(),
			Issuer:    settings.JWTIssuer(),
			Mailboxes: g.pbx,
		}, adminLog)
	}
	return g, nil
}

// dialplan adds the service extensions of [loopback].
func (g *Gateway) dialplan() error {
	plan := g.pbx.Dialplan()
	for _, e := range g.settings.Extensions() {
		parts := strings.Split(e, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 2 || parts[0] == "" {
			return fmt.Errorf("loopback.exten %q: want number,kind[,line]", e)
		}
		kind, err := loopback.ParseKind(parts[1])
		if err != nil {
			return fmt.Errorf("loopback.exten %q: %w", e, err)
		}
		r := loopback.Route{Kind: kind}
		if kind == loopback.KindLine {
			if len(parts) < 3 {
				return fmt.Errorf("loopback.exten %q: line route without a line", e)
			}
			r.Line = parts[2]
		}
		plan.Add(g.settings.DialContext(), parts[0], r)
	}
	return nil
}

// Start loads the configuration and serves until ctx is canceled. SIGHUP
// reloads the configuration.
func (g *Gateway) Start(ctx context.Context) error {
	res, err := g.srv.Reload(ctx)
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		coreLog.Errorf("config: %v", e)
	}
	coreLog.Infof("configuration loaded: %d devices, %d lines", len(res.DevicesAdded), len(res.LinesAdded))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.run(func() error { return g.pbx.Run(ctx) })
	g.run(func() error { return g.srv.ListenAndServe(ctx) })
	if g.admin != nil {
		g.run(func() error { return g.admin.Run(ctx) })
	}
	if every := g.settings.StatusInterval(); every > 0 {
		if _, err := g.timers.Every(every, func() bool { g.status(); return true }); err != nil {
			coreLog.Warnf("status timer: %v", err)
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			g.reload(ctx)
		case err := <-g.errs:
			cancel()
			g.wg.Wait()
			return err
		case <-ctx.Done():
			g.wg.Wait()
			return nil
		}
	}
}

func (g *Gateway) run(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			g.errs <- err
		}
	}()
}

func (g *Gateway) reload(ctx context.Context) {
	res, err := g.srv.Reload(ctx)
	if err != nil {
		coreLog.Errorf("reload: %v", err)
		return
	}
	g.pbx.RefreshLines()
	coreLog.Infof("reload %s: %d reset, %d deferred", res.Label(), len(res.Reset), len(res.Deferred))
}

// status logs a summary line of the live objects.
func (g *Gateway) status() {
	registered := 0
	for _, d := range g.srv.Devices() {
		if d.Registered {
			registered++
		}
	}
	coreLog.Infof("%d devices registered, %d calls, %d pbx channels",
		registered, len(g.srv.Channels()), g.pbx.Channels())
}

// close releases what NewGateway opened.
func (g *Gateway) close() {
	if g.srv != nil {
		g.srv.Shutdown()
	}
	if g.timers != nil {
		g.timers.Shutdown()
	}
	if g.lines != nil {
		_ = g.lines.Close()
	}
	if g.store != nil {
		_ = g.store.Close()
	}
}

// startGateway runs the driver until SIGINT or SIGTERM.
func startGateway(settings *Settings, path string) error {
	coreLog.Info("starting sccpd")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := NewGateway(ctx, settings, path)
	if err != nil {
		return err
	}
	defer gw.close()
	start := time.Now()
	err = gw.Start(ctx)
	coreLog.Infof("stopped after %s", time.Since(start).Round(time.Second))
	return err
}
