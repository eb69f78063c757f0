package main

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	coreLog    *logrus.Entry
	sessionLog *logrus.Entry
	configLog  *logrus.Entry
	callLog    *logrus.Entry
	rtpLog     *logrus.Entry
	pbxLog     *logrus.Entry
	adminLog   *logrus.Entry
	logFile    *lumberjack.Logger
)

// frameDump controls whether every sent and received frame is logged.
var frameDump bool

// initLogging sets up one logger per subsystem from the [logging] section.
// Every logger writes to stdout and to the rotating sccpd.log, each with
// its own minimum level.
func initLogging(cfg *ini.File) {
	sec := cfg.Section("logging")

	consoleMin := toLogrusLevel(sec.Key("console_min_level").MustInt(0))
	fileMin := toLogrusLevel(sec.Key("file_min_level").MustInt(0))

	logFile = &lumberjack.Logger{
		Filename:   sec.Key("file").MustString("sccpd.log"),
		MaxSize:    100, // megabytes
		MaxBackups: 1,
	}

	level := func(key string, def int) logrus.Level {
		return toLogrusLevel(sec.Key(key).MustInt(def))
	}
	coreLog = newLogger("core", level("core", 2), consoleMin, fileMin, logFile, nil)
	frameDump = sec.Key("frame_dump").MustBool(false)
	var drop func(*logrus.Entry) bool
	if !frameDump {
		drop = isFrameDump
	}
	sessionLog = newLogger("session", level("session", 2), consoleMin, fileMin, logFile, drop)
	configLog = newLogger("config", level("config", 2), consoleMin, fileMin, logFile, nil)
	callLog = newLogger("call", level("call", 2), consoleMin, fileMin, logFile, nil)
	rtpLog = newLogger("rtp", level("rtp", 3), consoleMin, fileMin, logFile, nil)
	pbxLog = newLogger("pbx", level("pbx", 2), consoleMin, fileMin, logFile, nil)
	adminLog = newLogger("admin", level("admin", 3), consoleMin, fileMin, logFile, nil)
}

// closeLogging flushes and closes the log file.
func closeLogging() {
	if logFile != nil {
		_ = logFile.Close()
	}
}

// writerHook writes entries of the given levels to Writer. Entries Drop
// reports are skipped.
type writerHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
	Drop      func(*logrus.Entry) bool
}

func (h *writerHook) Fire(e *logrus.Entry) error {
	if h.Drop != nil && h.Drop(e) {
		return nil
	}
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.Writer.Write([]byte(line))
	return err
}

func (h *writerHook) Levels() []logrus.Level {
	return h.LogLevels
}

// newLogger builds a logger that only writes through its writer hooks.
// drop may be nil.
func newLogger(name string, level, consoleMin, fileMin logrus.Level, file io.Writer, drop func(*logrus.Entry) bool) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.AddHook(&writerHook{Writer: os.Stdout, LogLevels: availableLevels(consoleMin), Drop: drop})
	logger.AddHook(&writerHook{Writer: file, LogLevels: availableLevels(fileMin), Drop: drop})
	return logger.WithField("name", name)
}

func availableLevels(min logrus.Level) []logrus.Level {
	levels := []logrus.Level{}
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}
	return levels
}

// toLogrusLevel maps 0 trace .. 5 fatal; 6 and above turn a logger off.
func toLogrusLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.TraceLevel
	case v == 1:
		return logrus.DebugLevel
	case v == 2:
		return logrus.InfoLevel
	case v == 3:
		return logrus.WarnLevel
	case v == 4:
		return logrus.ErrorLevel
	case v == 5:
		return logrus.FatalLevel
	default:
		return logrus.PanicLevel
	}
}

// isFrameDump matches the per frame trace lines of the session logger.
func isFrameDump(e *logrus.Entry) bool {
	if e.Level != logrus.TraceLevel {
		return false
	}
	return strings.HasPrefix(e.Message, "sent ") || strings.HasPrefix(e.Message, "received ")
}
