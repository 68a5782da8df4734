// Package logging configures the zerolog logger used by mauidev.
//
// Diagnostics always go to stderr so that the live output of wrapped build
// tools owns stdout.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "MAUIDEV_LOG_LEVEL"
	EnvLogNoColor = "MAUIDEV_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Options controls logger construction. Zero value is the runtime profile
// writing to stderr at info level.
type Options struct {
	Profile Profile
	Out     io.Writer
	Verbose bool
}

// New builds a console logger and applies environment overrides.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	timestamp := true
	if opts.Profile == ProfileTest {
		level = zerolog.DebugLevel
		timestamp = false
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}
	noColor, _ := parseBool(os.Getenv(EnvLogNoColor))

	writer := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	if !timestamp {
		writer.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	ctx := zerolog.New(writer).Level(level).With()
	if timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
