package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/scribe/pkg/paths"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
	current   Config
	output    io.Writer // overrides every sink when set (tests)
)

// Configure sets the logging section used by loggers created afterwards and
// resets the component cache so already-issued entries keep working while new
// calls pick up the change.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	current = cfg
	loggers = make(map[string]*logrus.Entry)
}

// SetOutput redirects every logger created afterwards to w. Pass nil to restore
// the configured sinks.
func SetOutput(w io.Writer) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	output = w
	loggers = make(map[string]*logrus.Entry)
}

// NewLogger returns the logger for a component. One entry is cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()
	logCfg := current

	levelStr := "info"
	if env := os.Getenv("SCRIBE_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("SCRIBE_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	if output != nil {
		logger.SetOutput(output)
	} else {
		logger.SetOutput(sinks(logger, component, logCfg))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

func sinks(logger *logrus.Logger, component string, logCfg Config) io.Writer {
	var writers []io.Writer

	if logCfg.File.Enabled {
		path := logCfg.File.Path
		if path == "" {
			path = filepath.Join(paths.StateDir(), "logs", component+".log")
		}
		path = paths.Expand(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		} else if file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		} else {
			writers = append(writers, file)
		}
	}

	if toStderr(logger, logCfg.Format.StructuredToStderr) {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

// toStderr decides whether structured logs reach stderr. In auto mode they do
// when debugging or when stderr is not a terminal (pipes, CI).
func toStderr(logger *logrus.Logger, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if logger.GetLevel() >= logrus.DebugLevel {
		return true
	}
	fd := os.Stderr.Fd()
	return !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}
