// Package logger wires logrus with optional lumberjack file rotation.
// Pipeline components log through WithComponent so every line carries a
// stable "component" field.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide instance. Init replaces its output and
// level; callers may also use the package-level helpers below.
var Logger = logrus.New()

var initMu sync.Mutex

// Config controls destination and verbosity.
type Config struct {
	Level      string // debug, info, warn, error
	OutputFile string // empty = stderr only
	MaxSize    int    // MB per file before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Init configures the global logger. Safe to call more than once; the
// last call wins.
func Init(cfg Config) error {
	initMu.Lock()
	defer initMu.Unlock()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	Logger.SetLevel(level)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if cfg.OutputFile == "" {
		Logger.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.OutputFile,
		MaxSize:    orDefault(cfg.MaxSize, 50),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAge, 14),
		Compress:   cfg.Compress,
	}
	Logger.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// WithComponent returns an entry tagged for a pipeline component.
func WithComponent(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}

// WithFields mirrors logrus.WithFields on the global instance.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
