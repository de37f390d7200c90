package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Handler names.
const (
	HandlerConsole = "console"
	HandlerFile    = "file"
)

// DefaultDateLayout renders timestamps as "2006-01-02 15:04:05".
const DefaultDateLayout = "2006-01-02 15:04:05"

// Config describes where and how process logs are written.
type Config struct {
	Level      string
	Format     string
	Handlers   []string
	File       string
	Rotation   string // "1d", "12h"
	Retention  string // "7d": number of rotated files kept
	DateLayout string // Go time layout

	// Console overrides os.Stdout for the console handler.
	Console io.Writer
}

// DefaultConfig logs text at debug level to the console.
func DefaultConfig() Config {
	return Config{
		Level:      "debug",
		Format:     FormatText,
		Handlers:   []string{HandlerConsole},
		File:       "/var/log/app.log",
		Rotation:   "1d",
		Retention:  "7d",
		DateLayout: DefaultDateLayout,
	}
}

// New builds a logger from cfg. The returned closer stops file rotation and
// closes the log file; it is never nil.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	if cfg.DateLayout == "" {
		cfg.DateLayout = DefaultDateLayout
	}
	if len(cfg.Handlers) == 0 {
		cfg.Handlers = []string{HandlerConsole}
	}

	var (
		writers []io.Writer
		closers multiCloser
	)
	for _, h := range cfg.Handlers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case HandlerConsole:
			out := cfg.Console
			if out == nil {
				out = os.Stdout
			}
			writers = append(writers, formatWriter(cfg.Format, out, cfg.DateLayout))
		case HandlerFile:
			fw, err := newFileWriter(cfg)
			if err != nil {
				closers.Close()
				return zerolog.Nop(), nopCloser{}, err
			}
			closers = append(closers, fw)
			writers = append(writers, formatWriter(cfg.Format, fw, cfg.DateLayout))
		case "":
		default:
			closers.Close()
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log handler %q", h)
		}
	}

	var w io.Writer
	if len(writers) == 1 {
		w = writers[0]
	} else {
		w = zerolog.MultiLevelWriter(writers...)
	}

	layout := cfg.DateLayout
	logger := zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			e.Str(zerolog.TimestampFieldName, time.Now().Format(layout))
		}))

	return logger, closers, nil
}

// ParseLevel maps level names to zerolog levels. "warning" and "critical"
// are accepted; unknown names fall back to debug.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.DebugLevel
	}
}

func formatWriter(format string, out io.Writer, layout string) io.Writer {
	switch strings.ToLower(format) {
	case FormatJSON:
		return out
	case FormatCSV:
		return newCSVWriter(out)
	default:
		return zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    true,
			TimeFormat: layout,
		}
	}
}

// fileWriter is a lumberjack logger rotated on a fixed interval.
type fileWriter struct {
	*lumberjack.Logger
	stop chan struct{}
	done chan struct{}
}

func newFileWriter(cfg Config) (*fileWriter, error) {
	if cfg.File == "" {
		return nil, errors.New("file handler requires a log file path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	every, err := ParsePeriod(cfg.Rotation, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("log rotation: %w", err)
	}
	backups, maxAge, err := parseRetention(cfg.Retention)
	if err != nil {
		return nil, fmt.Errorf("log retention: %w", err)
	}

	fw := &fileWriter{
		Logger: &lumberjack.Logger{
			Filename:   cfg.File,
			MaxBackups: backups,
			MaxAge:     maxAge,
			LocalTime:  true,
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go fw.rotateEvery(every)
	return fw, nil
}

func (f *fileWriter) rotateEvery(every time.Duration) {
	defer close(f.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = f.Rotate()
		case <-f.stop:
			return
		}
	}
}

func (f *fileWriter) Close() error {
	close(f.stop)
	<-f.done
	return f.Logger.Close()
}

// ParsePeriod parses "<n>d", "<n>h" or any time.ParseDuration string. An
// empty string yields def.
func ParsePeriod(s string, def time.Duration) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def, nil
	}
	if n, ok := strings.CutSuffix(s, "d"); ok {
		var days int
		if _, err := fmt.Sscanf(n, "%d", &days); err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid period %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid period %q", s)
	}
	return d, nil
}

// parseRetention turns "7d" into seven kept files no older than seven days.
// Hour-based retention keeps n files and lets age pruning round up to a day.
func parseRetention(s string) (backups, maxAgeDays int, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 7, 7, nil
	}
	d, err := ParsePeriod(s, 0)
	if err != nil {
		return 0, 0, err
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimRight(s, "dh"), "%d", &n); err != nil || n <= 0 {
		return 0, 0, fmt.Errorf("invalid retention %q", s)
	}
	days := int((d + 24*time.Hour - 1) / (24 * time.Hour))
	return n, days, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
