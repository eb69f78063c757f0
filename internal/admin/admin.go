// Package admin is the HTTP surface of the driver: health, prometheus
// metrics and a small JSON API to inspect devices and calls, reload the
// configuration and reset phones.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sccpd/internal/metrics"
	"sccpd/internal/model"
	"sccpd/internal/reload"
	"sccpd/internal/server"
	"sccpd/internal/skinny"
)

const headerRequestID = "X-Request-Id"

// Driver is the part of the driver the API drives.
type Driver interface {
	Devices() []server.DeviceInfo
	Lines() []server.LineInfo
	Channels() []server.ChannelInfo
	Reload(ctx context.Context) (*reload.Result, error)
	ResetDevice(id string, t skinny.ResetType) error
	SetMessage(text string, timeout uint32) error
}

// Mailboxes sets voicemail counters on a PBX that keeps them itself.
type Mailboxes interface {
	SetMailbox(mailbox string, newMsgs, oldMsgs int)
}

// Options configure the API.
type Options struct {
	Listen    string
	// JWTSecret enables bearer authentication of /v1 when set.
	JWTSecret string
	Issuer    string
	Mailboxes Mailboxes
}

// Server serves the API.
type Server struct {
	drv     Driver
	metrics *metrics.Metrics
	opts    Options
	secret  []byte
	log     *logrus.Entry
	engine  *gin.Engine
	now     func() time.Time
}

// New builds the routes. m may be nil.
func New(drv Driver, m *metrics.Metrics, opts Options, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	a := &Server{
		drv:     drv,
		metrics: m,
		opts:    opts,
		secret:  []byte(opts.JWTSecret),
		log:     log,
		now:     time.Now,
	}
	gin.SetMode(gin.ReleaseMode)
	a.engine = gin.New()
	a.engine.Use(gin.Recovery(), a.requestLog())
	a.routes()
	return a
}

// Handler returns the router.
func (a *Server) Handler() http.Handler { return a.engine }

func (a *Server) routes() {
	r := a.engine
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if a.metrics != nil {
		r.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	v1 := r.Group("/v1")
	if len(a.secret) > 0 {
		v1.Use(a.requireToken())
	} else {
		a.log.Warn("admin api has no jwt_secret, /v1 is open")
	}
	v1.GET("/devices", a.devices)
	v1.GET("/lines", a.lines)
	v1.GET("/channels", a.channels)
	v1.POST("/reload", a.reload)
	v1.POST("/devices/:id/reset", a.reset)
	v1.POST("/message", a.message)
	if a.opts.Mailboxes != nil {
		v1.PUT("/mailboxes/:mailbox", a.mailbox)
	}
}

// Run serves until ctx ends.
func (a *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.opts.Listen,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	a.log.Infof("admin api on %s", a.opts.Listen)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

// requestLog tags every request with an id and logs a summary line.
func (a *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		entry := a.log.WithFields(logrus.Fields{
			"request_id": rid,
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start),
		})
		if sub, ok := c.Get("subject"); ok {
			entry = entry.WithField("subject", sub)
		}
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Debug("request")
	}
}

func (a *Server) devices(c *gin.Context) {
	c.JSON(http.StatusOK, a.drv.Devices())
}

func (a *Server) lines(c *gin.Context) {
	c.JSON(http.StatusOK, a.drv.Lines())
}

func (a *Server) channels(c *gin.Context) {
	c.JSON(http.StatusOK, a.drv.Channels())
}

type reloadResponse struct {
	Result   string   `json:"result"`
	Added    []string `json:"devices_added,omitempty"`
	Changed  []string `json:"devices_changed,omitempty"`
	Removed  []string `json:"devices_removed,omitempty"`
	Lines    []string `json:"lines_changed,omitempty"`
	Reset    []string `json:"reset,omitempty"`
	Deferred []string `json:"deferred,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

func (a *Server) reload(c *gin.Context) {
	res, err := a.drv.Reload(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	lines := append(append(append([]string{}, res.LinesAdded...), res.LinesChanged...), res.LinesRemoved...)
	c.JSON(http.StatusOK, reloadResponse{
		Result:   res.Label(),
		Added:    res.DevicesAdded,
		Changed:  res.DevicesChanged,
		Removed:  res.DevicesRemoved,
		Lines:    lines,
		Reset:    res.Reset,
		Deferred: res.Deferred,
		Warnings: errorStrings(res.Warnings),
		Errors:   errorStrings(res.Errors),
	})
}

func (a *Server) reset(c *gin.Context) {
	id := c.Param("id")
	kind, t := "reset", skinny.ResetSoft
	if c.Query("type") == "restart" {
		kind, t = "restart", skinny.ResetRestart
	}
	err := a.drv.ResetDevice(id, t)
	switch {
	case errors.Is(err, server.ErrUnknownDevice):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown device"})
	case errors.Is(err, model.ErrNotRegistered):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "device not registered"})
	case err != nil:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"device": id, "type": kind})
	}
}

type messageRequest struct {
	Text    string `json:"text"`
	Timeout uint32 `json:"timeout"`
}

func (a *Server) message(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := a.drv.SetMessage(req.Text, req.Timeout); err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type mailboxRequest struct {
	New int `json:"new" binding:"min=0"`
	Old int `json:"old" binding:"min=0"`
}

func (a *Server) mailbox(c *gin.Context) {
	var req mailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	a.opts.Mailboxes.SetMailbox(c.Param("mailbox"), req.New, req.Old)
	c.Status(http.StatusNoContent)
}
