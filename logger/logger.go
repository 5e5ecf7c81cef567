// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	mu          sync.Mutex
	zl          zerolog.Logger
	file        *os.File
	initialized bool
)

// ensureInitialized creates a console-only logger if Init was never called.
func ensureInitialized() {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}
	zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Caller().Logger()
	initialized = true
}

// Init initializes the logger with optional file and console output.
// If filename is empty, logs only to console.
// If console is false, logs only to file.
func Init(filename string, console bool) error {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}

	var writers []io.Writer
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}
	if console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout})
	}
	if len(writers) == 0 {
		return fmt.Errorf("no output destination specified")
	}

	zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Caller().Logger()
	initialized = true
	return nil
}

// SetLevel sets the minimum log level. Messages below it are dropped.
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	switch level {
	case INFO:
		zl = zl.Level(zerolog.InfoLevel)
	case WARN:
		zl = zl.Level(zerolog.WarnLevel)
	case ERROR:
		zl = zl.Level(zerolog.ErrorLevel)
	default:
		zl = zl.Level(zerolog.DebugLevel)
	}
}

// ParseLevel maps a level name from configuration to a LogLevel.
// Unknown names fall back to DEBUG.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(name) {
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return DEBUG
	}
}

// Close closes the log file if one is open.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
}

// Debug logs a debug message
func Debug(v ...interface{}) {
	ensureInitialized()
	zl.Debug().Msg(fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) {
	ensureInitialized()
	zl.Debug().Msgf(format, v...)
}

// Info logs an info message
func Info(v ...interface{}) {
	ensureInitialized()
	zl.Info().Msg(fmt.Sprint(v...))
}

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) {
	ensureInitialized()
	zl.Info().Msgf(format, v...)
}

// Warn logs a warning message
func Warn(v ...interface{}) {
	ensureInitialized()
	zl.Warn().Msg(fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) {
	ensureInitialized()
	zl.Warn().Msgf(format, v...)
}

// Error logs an error message
func Error(v ...interface{}) {
	ensureInitialized()
	zl.Error().Msg(fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) {
	ensureInitialized()
	zl.Error().Msgf(format, v...)
}

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	ensureInitialized()
	zl.Error().Msg(fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	ensureInitialized()
	zl.Error().Msgf(format, v...)
	os.Exit(1)
}
