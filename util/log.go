package util

import (
	"bytes"
	"io"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

var (
	loggers = map[string]*Logger{}
	levels  = map[string]jww.Threshold{}

	loggersMux sync.Mutex

	// OutThreshold is the default console log level
	OutThreshold = jww.LevelError
)

// LogAreaPadding of log areas
var LogAreaPadding = 6

// Logger wraps a jww notepad to avoid leaking implementation detail
type Logger struct {
	*jww.Notepad
	name string
}

// NewLogger creates a logger with the given log area and adds it to the registry
func NewLogger(area string) *Logger {
	loggersMux.Lock()
	defer loggersMux.Unlock()

	if logger, ok := loggers[area]; ok {
		return logger
	}

	padded := area
	for len(padded) < LogAreaPadding {
		padded = padded + " "
	}

	level := LogLevelForArea(area)
	notepad := jww.NewNotepad(level, level, os.Stdout, io.Discard, padded, log.Ldate|log.Ltime)

	logger := &Logger{
		Notepad: notepad,
		name:    area,
	}
	loggers[area] = logger
	return logger
}

// Name returns the loggers name
func (l *Logger) Name() string {
	return l.name
}

// Redact replaces the given strings with *** on the trace output, keeping
// broker credentials and tokens out of verbose logs
func (l *Logger) Redact(redact ...string) {
	r := &redactor{w: l.TRACE.Writer()}
	for _, s := range redact {
		if s != "" {
			r.secrets = append(r.secrets, []byte(s), []byte(url.QueryEscape(s)))
		}
	}
	l.TRACE.SetOutput(r)
}

type redactor struct {
	secrets [][]byte
	w       io.Writer
}

func (r *redactor) Write(p []byte) (int, error) {
	b := p
	for _, s := range r.secrets {
		b = bytes.ReplaceAll(b, s, []byte("***"))
	}
	return r.w.Write(b)
}

// LogLevelForArea gets the log level for given log area
func LogLevelForArea(area string) jww.Threshold {
	level, ok := levels[strings.ToLower(area)]
	if !ok {
		level = OutThreshold
	}
	return level
}

// LogLevel sets log level for all loggers
func LogLevel(defaultLevel string, areaLevels map[string]string) {
	OutThreshold = LogLevelToThreshold(defaultLevel)

	for area, level := range areaLevels {
		levels[strings.ToLower(area)] = LogLevelToThreshold(level)
	}

	loggersMux.Lock()
	defer loggersMux.Unlock()

	for name, logger := range loggers {
		logger.SetStdoutThreshold(LogLevelForArea(name))
	}
}

// LogLevelToThreshold converts log level string to a jww Threshold
func LogLevelToThreshold(level string) jww.Threshold {
	switch strings.ToUpper(level) {
	case "FATAL":
		return jww.LevelFatal
	case "ERROR":
		return jww.LevelError
	case "WARN":
		return jww.LevelWarn
	case "INFO":
		return jww.LevelInfo
	case "DEBUG":
		return jww.LevelDebug
	case "TRACE":
		return jww.LevelTrace
	default:
		panic("invalid log level " + level)
	}
}
