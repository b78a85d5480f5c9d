// Package logging is the zerolog setup shared by every morningshift command.
// File output goes to one morningshift-YYYY-MM-DD.log per day; the active
// file follows the wall clock so a long-running daemon rolls over at midnight.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	logFilePrefix = "morningshift-"
	logFileSuffix = ".log"
	dateLayout    = "2006-01-02"
)

// Config holds logging configuration.
type Config struct {
	Level         string    // debug, info, warn, error
	Path          string    // directory for daily files; empty disables file output
	Format        string    // json, text
	RetentionDays int       // daily files older than this are removed (default 7)
	Output        io.Writer // extra sink; stderr when Path is empty and Output is nil
}

// Logger is a zerolog logger tagged with a component.
type Logger struct {
	zl        zerolog.Logger
	component string
	sink      *dailyFile
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Init replaces the process-wide logger returned by Get and Component.
func Init(cfg Config) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}

	globalMu.Lock()
	prev := globalLogger
	globalLogger = logger
	globalMu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, err
	}

	var (
		sink    *dailyFile
		writers []io.Writer
	)
	if cfg.Path != "" {
		retention := cfg.RetentionDays
		if retention <= 0 {
			retention = 7
		}
		sink, err = openDailyFile(expandPath(cfg.Path), retention, time.Now)
		if err != nil {
			return nil, err
		}
		writers = append(writers, sink)
	}
	if cfg.Output != nil {
		writers = append(writers, cfg.Output)
	}

	var out io.Writer = os.Stderr
	if len(writers) == 1 {
		out = writers[0]
	} else if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}
	if defaultString(cfg.Format, "json") == "text" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}

	return &Logger{
		zl:   zerolog.New(out).Level(level).With().Timestamp().Logger(),
		sink: sink,
	}, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// WithComponent returns a child logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl:        l.zl.With().Str("component", component).Logger(),
		component: component,
		sink:      l.sink,
	}
}

// WithRun returns a child logger tagged with a run id and preset id.
func (l *Logger) WithRun(runID, preset string) *Logger {
	return &Logger{
		zl:        l.zl.With().Str("run_id", runID).Str("preset", preset).Logger(),
		component: l.component,
		sink:      l.sink,
	}
}

func (l *Logger) Info(msg string)                       { l.zl.Info().Msg(msg) }
func (l *Logger) Debugf(format string, args ...any)     { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...any)      { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...any)      { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...any)     { l.zl.Error().Msgf(format, args...) }
func (l *Logger) DebugCtx(msg string, f map[string]any) { withFields(l.zl.Debug(), f).Msg(msg) }
func (l *Logger) InfoCtx(msg string, f map[string]any)  { withFields(l.zl.Info(), f).Msg(msg) }

func withFields(e *zerolog.Event, fields map[string]any) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

// Close closes the current log file. Child loggers share it.
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Get returns the process-wide logger, or a stderr logger before Init.
func Get() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return &Logger{zl: zerolog.New(os.Stderr).With().Timestamp().Logger()}
	}
	return globalLogger
}

// Component is Get().WithComponent(name).
func Component(name string) *Logger {
	return Get().WithComponent(name)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.InfoLevel, fmt.Errorf("invalid log level: %q", level)
}

// ListLogFiles returns the daily log files in dir, newest first.
func ListLogFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	dir = expandPath(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if _, ok := logDate(entry.Name()); ok && !entry.IsDir() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

// logDate extracts the day from a morningshift-YYYY-MM-DD.log name.
func logDate(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(dateLayout, name[len(logFilePrefix):len(name)-len(logFileSuffix)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// dailyFile is an io.Writer that appends to the file for the current day,
// reopening and pruning whenever the date changes.
type dailyFile struct {
	dir       string
	retention int
	now       func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func openDailyFile(dir string, retention int, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	d := &dailyFile{dir: dir, retention: retention, now: now}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotate(now()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.file == nil || now.Format(dateLayout) != d.day {
		if err := d.rotate(now); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

// rotate must be called with mu held.
func (d *dailyFile) rotate(now time.Time) error {
	day := now.Format(dateLayout)
	f, err := os.OpenFile(filepath.Join(d.dir, logFilePrefix+day+logFileSuffix), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file, d.day = f, day
	d.prune(now)
	return nil
}

func (d *dailyFile) prune(now time.Time) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	y, m, dd := now.AddDate(0, 0, -d.retention).Date()
	cutoff := time.Date(y, m, dd, 0, 0, 0, 0, time.Local)
	for _, entry := range entries {
		if day, ok := logDate(entry.Name()); ok && day.Before(cutoff) {
			_ = os.Remove(filepath.Join(d.dir, entry.Name()))
		}
	}
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
