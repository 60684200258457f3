// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Formats.
const (
	FormatAuto    = ""        // console for stdout/stderr, JSON for files
	FormatConsole = "console" // human readable, colored
	FormatJSON    = "json"    // one JSON object per line
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or file path
	Level  string // "trace", "debug", "info", "warn", "error"
	Format string // FormatAuto, FormatConsole or FormatJSON
}

// Init initializes the global zerolog logger with the given configuration.
// The returned function closes the log file, if any, and is never nil.
func Init(cfg Config) (func() error, error) {
	closeFn := func() error { return nil }
	level := parseLevel(cfg.Level)

	var writer io.Writer
	toFile := false
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		if dir := filepath.Dir(cfg.Output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return closeFn, errors.Wrapf(err, "failed to create log directory: %s", dir)
			}
		}
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closeFn, errors.Wrapf(err, "failed to open log file: %s", cfg.Output)
		}
		writer = f
		toFile = true
		closeFn = f.Close
	}

	format := strings.ToLower(cfg.Format)
	if format == FormatAuto {
		format = FormatConsole
		if toFile {
			format = FormatJSON
		}
	}
	if format != FormatConsole && format != FormatJSON {
		closeFn()
		return func() error { return nil }, errors.Newf("unknown log format: %s", cfg.Format)
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller

	logger := newLogger(writer, format, level)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	return closeFn, nil
}

// newLogger builds the logger. Caller information is only added at debug and trace level.
func newLogger(w io.Writer, format string, level zerolog.Level) zerolog.Logger {
	withCaller := level <= zerolog.DebugLevel

	if format == FormatJSON {
		ctx := zerolog.New(w).With().Timestamp()
		if withCaller {
			ctx = ctx.Caller()
		}
		return ctx.Logger()
	}

	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}
	if !withCaller {
		return zerolog.New(cw).With().Timestamp().Logger()
	}
	cw.PartsOrder = []string{"time", "level", "message", "caller"}
	cw.FormatCaller = func(i interface{}) string {
		return "(" + i.(string) + ")"
	}
	return zerolog.New(cw).With().Timestamp().Caller().Logger()
}

// shortCaller keeps the package directory and file name.
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
