package logger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

// Logger is the logging surface every long-lived component receives.
type Logger interface {
	LogLevel() int
	SetLogLevel(level string)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	New(service string) Logger
}

type Options struct {
	writer io.Writer
	level  string
	pretty bool
}

type Option func(*Options)

func WithWriter(w io.Writer) Option {
	return func(o *Options) { o.writer = w }
}

func WithLevel(level string) Option {
	return func(o *Options) { o.level = level }
}

func WithPretty(pretty bool) Option {
	return func(o *Options) { o.pretty = pretty }
}

func defaultOptions() *Options {
	return &Options{
		writer: colorable.NewColorableStdout(),
		level:  "INFO",
		pretty: true,
	}
}

type zLogger struct {
	zerolog.Logger
	service string
	opts    Options
}

// New creates a zerolog backed logger tagged with the service name.
func New(service string, options ...Option) Logger {
	opts := defaultOptions()
	for _, o := range options {
		o(opts)
	}
	return newZLogger(service, *opts)
}

func newZLogger(service string, opts Options) *zLogger {
	if service == "" {
		service = "wallet"
	}

	var w io.Writer = opts.writer
	if opts.pretty {
		cw := zerolog.ConsoleWriter{Out: opts.writer, TimeFormat: time.RFC3339}
		cw.FormatTimestamp = func(i interface{}) string {
			parse, _ := time.Parse(time.RFC3339, fmt.Sprintf("%v", i))
			return parse.Format("15:04:05")
		}
		cw.FormatLevel = func(i interface{}) string {
			return fmt.Sprintf("| %-6s|", strings.ToUpper(fmt.Sprintf("%v", i)))
		}
		cw.FormatMessage = func(i interface{}) string {
			return fmt.Sprintf("| %-8s| %v", service, i)
		}
		w = cw
	}

	z := &zLogger{
		Logger:  zerolog.New(w).With().Timestamp().Str("service", service).Logger(),
		service: service,
		opts:    opts,
	}
	z.SetLogLevel(opts.level)
	return z
}

func (z *zLogger) New(service string) Logger {
	return newZLogger(service, z.opts)
}

func (z *zLogger) LogLevel() int {
	return int(z.Logger.GetLevel())
}

func (z *zLogger) SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		z.Logger = z.Logger.Level(zerolog.DebugLevel)
	case "WARN":
		z.Logger = z.Logger.Level(zerolog.WarnLevel)
	case "ERROR":
		z.Logger = z.Logger.Level(zerolog.ErrorLevel)
	case "FATAL":
		z.Logger = z.Logger.Level(zerolog.FatalLevel)
	default:
		z.Logger = z.Logger.Level(zerolog.InfoLevel)
	}
	z.opts.level = level
}

func (z *zLogger) Debugf(format string, args ...interface{}) {
	z.Logger.Debug().Msgf(format, args...)
}

func (z *zLogger) Infof(format string, args ...interface{}) {
	z.Logger.Info().Msgf(format, args...)
}

func (z *zLogger) Warnf(format string, args ...interface{}) {
	z.Logger.Warn().Msgf(format, args...)
}

func (z *zLogger) Errorf(format string, args ...interface{}) {
	z.Logger.Error().Msgf(format, args...)
}

func (z *zLogger) Fatalf(format string, args ...interface{}) {
	z.Logger.Fatal().Msgf(format, args...)
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() Logger {
	return &zLogger{Logger: zerolog.Nop(), service: "nop", opts: Options{writer: io.Discard}}
}
