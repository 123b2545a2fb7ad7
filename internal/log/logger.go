// Package log provides logging functionality to both console and file.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes output to both console and a log file.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	writer io.Writer
	errOut io.Writer
	debug  bool
}

// New creates a new logger that writes to both console and a log file.
// The log file is created in the specified directory.
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "shiksha.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		file:   file,
		writer: io.MultiWriter(os.Stdout, file),
		errOut: io.MultiWriter(os.Stderr, file),
	}, nil
}

// NewWriter creates a logger that writes everything to w. Used by tests and
// by callers that already own an output stream.
func NewWriter(w io.Writer) *Logger {
	return &Logger{writer: w, errOut: w}
}

// SetDebug toggles Debugf output.
func (l *Logger) SetDebug(on bool) {
	l.mu.Lock()
	l.debug = on
	l.mu.Unlock()
}

func (l *Logger) write(w io.Writer, level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(w, "[%s] %s %s\n", timestamp, level, msg)
}

// Printf writes a formatted message to console and log file.
func (l *Logger) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprint(l.writer, msg)
}

// Println writes a message to console and log file with a newline.
func (l *Logger) Println(args ...interface{}) {
	msg := fmt.Sprintln(args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprint(l.writer, msg)
}

// Infof writes a timestamped informational line.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.write(l.writer, "INFO", format, args...)
}

// Debugf writes a timestamped debug line when debug output is on.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.mu.Lock()
	on := l.debug
	l.mu.Unlock()
	if on {
		l.write(l.writer, "DEBUG", format, args...)
	}
}

// Warnf writes a timestamped warning to stderr and log file.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.write(l.errOut, "WARN", format, args...)
}

// Errorf writes a formatted error message to stderr and log file.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.write(l.errOut, "ERROR", format, args...)
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Global logger instance
var globalLogger *Logger

// Init initializes the global logger.
// Also redirects Go's standard log package to the log file so library
// output (e.g. net/http server errors) lands there too.
func Init(logDir string) error {
	logger, err := New(logDir)
	if err != nil {
		return err
	}
	globalLogger = logger

	stdlog.SetOutput(logger.file)
	stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime)

	return nil
}

// Default returns the global logger, or a console-only logger before Init.
func Default() *Logger {
	if globalLogger != nil {
		return globalLogger
	}
	return &Logger{writer: os.Stdout, errOut: os.Stderr}
}

// SetDebug toggles debug output on the global logger.
func SetDebug(on bool) {
	if globalLogger != nil {
		globalLogger.SetDebug(on)
	}
}

// Printf uses the global logger to print formatted output.
func Printf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Printf(format, args...)
	} else {
		fmt.Printf(format, args...)
	}
}

// Println uses the global logger to print output with newline.
func Println(args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Println(args...)
	} else {
		fmt.Println(args...)
	}
}

// Infof uses the global logger to print an informational line.
func Infof(format string, args ...interface{}) {
	Default().Infof(format, args...)
}

// Debugf uses the global logger to print a debug line.
func Debugf(format string, args ...interface{}) {
	Default().Debugf(format, args...)
}

// Warnf uses the global logger to print a warning.
func Warnf(format string, args ...interface{}) {
	Default().Warnf(format, args...)
}

// Errorf uses the global logger to print formatted error output.
func Errorf(format string, args ...interface{}) {
	Default().Errorf(format, args...)
}

// Close closes the global logger.
func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}
