package main

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func loadConf(t *testing.T, text string) *ini.File {
	t.Helper()
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, IgnoreInlineComment: true}, []byte(text))
	require.NoError(t, err)
	return cfg
}

func TestSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(loadConf(t, "[general]\ncontext=sccp\n"))
	require.NoError(t, err)

	assert.Empty(t, s.RedisAddr())
	assert.Equal(t, "sccpd:", s.RedisPrefix())
	assert.Equal(t, "sccplines", s.RealtimeTable())
	assert.Empty(t, s.AdminListen())
	assert.Equal(t, "sccpd", s.JWTIssuer())
	assert.Equal(t, 5*time.Minute, s.StatusInterval())
	assert.False(t, s.MediaAddr().IsValid())
	assert.Equal(t, 0xB8, s.AudioTOS())
	assert.Equal(t, 6, s.AudioCOS())
	assert.Equal(t, "sccp", s.DialContext())
	assert.Equal(t, time.Minute, s.RefreshInterval())
	assert.Empty(t, s.Extensions())
}

func TestSettingsSections(t *testing.T) {
	s, err := LoadSettings(loadConf(t, `
[redis]
addr = 10.0.0.5:6379
db = 3

[admin]
listen = :8080
jwt_secret = 0123456789abcdef0123

[loopback]
media_addr = 192.0.2.10
exten = 600,echo
exten = 601,busy
exten = 700,line,100
`))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:6379", s.RedisAddr())
	assert.Equal(t, 3, s.RedisDB())
	assert.Equal(t, ":8080", s.AdminListen())
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), s.MediaAddr())
	assert.Equal(t, []string{"600,echo", "601,busy", "700,line,100"}, s.Extensions())
}

func TestSettingsRejects(t *testing.T) {
	_, err := LoadSettings(loadConf(t, "[admin]\nlisten=:8080\njwt_secret=short\n"))
	assert.ErrorContains(t, err, "jwt_secret")

	_, err = LoadSettings(loadConf(t, "[loopback]\nbind_addr=not-an-ip\n"))
	assert.ErrorContains(t, err, "bind_addr")
}

func TestToLogrusLevel(t *testing.T) {
	assert.Equal(t, logrus.TraceLevel, toLogrusLevel(-1))
	assert.Equal(t, logrus.InfoLevel, toLogrusLevel(2))
	assert.Equal(t, logrus.FatalLevel, toLogrusLevel(5))
	assert.Equal(t, logrus.PanicLevel, toLogrusLevel(9))
}

func TestFrameDumpFilter(t *testing.T) {
	var file bytes.Buffer
	log := newLogger("session", logrus.TraceLevel, logrus.PanicLevel, logrus.TraceLevel, &file, isFrameDump)

	log.Trace("sent KeepAliveAck")
	log.Trace("received KeepAlive")
	log.Trace("token request from SEP0001")
	log.Info("registered")

	out := file.String()
	assert.NotContains(t, out, "KeepAlive")
	assert.NotContains(t, out, "level=fatal")
	assert.Contains(t, out, "token request")
	assert.Contains(t, out, "registered")
	assert.Contains(t, out, "name=session")
}

func TestFrameDumpKeptWhenEnabled(t *testing.T) {
	var file bytes.Buffer
	log := newLogger("session", logrus.TraceLevel, logrus.PanicLevel, logrus.TraceLevel, &file, nil)
	log.Trace("sent KeepAliveAck")
	assert.Contains(t, file.String(), "level=trace")
	assert.Contains(t, file.String(), "sent KeepAliveAck")
}
