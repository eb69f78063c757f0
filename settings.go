package main

import (
	"fmt"
	"net/netip"
	"time"

	ini "gopkg.in/ini.v1"
)

// Settings holds the process configuration kept next to the driver
// configuration in sccp.conf: logging, the feature store, the realtime
// database, the admin api and the built in PBX.
type Settings struct {
	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string

	realtimeDSN   string
	realtimeTable string

	adminListen string
	jwtSecret   string
	jwtIssuer   string

	mediaAddr       netip.Addr
	bindAddr        netip.Addr
	audioTOS        int
	audioCOS        int
	dialContext     string
	extensions      []string
	refreshInterval int

	statusInterval int
}

// LoadSettings reads the process sections of cfg.
func LoadSettings(cfg *ini.File) (*Settings, error) {
	s := &Settings{}

	sec := cfg.Section("redis")
	s.redisAddr = sec.Key("addr").String()
	s.redisPassword = sec.Key("password").String()
	s.redisDB = sec.Key("db").MustInt(0)
	s.redisPrefix = sec.Key("prefix").MustString("sccpd:")

	sec = cfg.Section("realtime")
	s.realtimeDSN = sec.Key("dsn").String()
	s.realtimeTable = sec.Key("table").MustString("sccplines")

	sec = cfg.Section("admin")
	s.adminListen = sec.Key("listen").String()
	s.jwtSecret = sec.Key("jwt_secret").String()
	s.jwtIssuer = sec.Key("jwt_issuer").MustString("sccpd")
	s.statusInterval = sec.Key("status_interval").MustInt(300)

	sec = cfg.Section("loopback")
	var err error
	if s.mediaAddr, err = optionalAddr(sec.Key("media_addr").String()); err != nil {
		return nil, fmt.Errorf("loopback.media_addr: %w", err)
	}
	if s.bindAddr, err = optionalAddr(sec.Key("bind_addr").String()); err != nil {
		return nil, fmt.Errorf("loopback.bind_addr: %w", err)
	}
	s.audioTOS = sec.Key("audio_tos").MustInt(0xB8)
	s.audioCOS = sec.Key("audio_cos").MustInt(6)
	s.dialContext = sec.Key("context").MustString("sccp")
	if sec.HasKey("exten") {
		s.extensions = sec.Key("exten").ValueWithShadows()
	}
	s.refreshInterval = sec.Key("refresh_interval").MustInt(60)

	if s.adminListen != "" && s.jwtSecret != "" && len(s.jwtSecret) < 16 {
		return nil, fmt.Errorf("admin.jwt_secret must be at least 16 characters")
	}
	return s, nil
}

func optionalAddr(v string) (netip.Addr, error) {
	if v == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(v)
}

func (s *Settings) RedisAddr() string     { return s.redisAddr }
func (s *Settings) RedisPassword() string { return s.redisPassword }
func (s *Settings) RedisDB() int          { return s.redisDB }
func (s *Settings) RedisPrefix() string   { return s.redisPrefix }

func (s *Settings) RealtimeDSN() string   { return s.realtimeDSN }
func (s *Settings) RealtimeTable() string { return s.realtimeTable }

func (s *Settings) AdminListen() string { return s.adminListen }
func (s *Settings) JWTSecret() string   { return s.jwtSecret }
func (s *Settings) JWTIssuer() string   { return s.jwtIssuer }

func (s *Settings) MediaAddr() netip.Addr { return s.mediaAddr }
func (s *Settings) BindAddr() netip.Addr  { return s.bindAddr }
func (s *Settings) AudioTOS() int         { return s.audioTOS }
func (s *Settings) AudioCOS() int         { return s.audioCOS }
func (s *Settings) DialContext() string   { return s.dialContext }

// Extensions are the service routes of the built in PBX, one
// "number,kind[,line]" entry each.
func (s *Settings) Extensions() []string { return s.extensions }

func (s *Settings) RefreshInterval() time.Duration {
	return time.Duration(s.refreshInterval) * time.Second
}

func (s *Settings) StatusInterval() time.Duration {
	return time.Duration(s.statusInterval) * time.Second
}
