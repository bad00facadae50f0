package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	isDevelopment = false // if running in debug mode

	mu sync.Mutex

	output io.Writer = os.Stderr

	globalLogger *zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func base() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		return *globalLogger
	}

	var l zerolog.Logger
	if !isDevelopment {
		l = zerolog.New(output).With().Timestamp().Str("service", "wireflow").Logger()
	} else {
		// Set up zerolog for development mode (human-readable logs)
		consoleWriter := zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339,
			FormatLevel: func(i any) string {
				return strings.ToUpper(fmt.Sprintf("[%5s]", i))
			},
			FormatMessage: func(i any) string {
				return fmt.Sprintf("| %s |", i)
			},
			FormatCaller: func(i any) string {
				return filepath.Base(fmt.Sprintf("%s", i))
			},
			PartsExclude: []string{
				zerolog.TimestampFieldName,
			}}
		l = zerolog.New(consoleWriter).With().Timestamp().Str("service", "wireflow").Caller().Logger()
	}
	globalLogger = &l
	return l
}

// GetLogger returns a logger tagged with the component name.
func GetLogger(component string) zerolog.Logger {
	return base().With().Str("component", component).Logger()
}

// SetDevelopment switches to human-readable console output. It only affects
// loggers created afterwards.
func SetDevelopment(value bool) {
	mu.Lock()
	defer mu.Unlock()
	isDevelopment = value
	globalLogger = nil
}

// SetOutput redirects logs, e.g. to a file and stderr through zerolog.MultiLevelWriter.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	globalLogger = nil
}

// SetLevel sets the global level from a name such as "debug" or "info".
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// LeveledLogger adapts a component logger to libraries that log through
// Errorf, Warningf, Infof and Debugf, such as badger.
type LeveledLogger struct {
	l zerolog.Logger
}

// NewLeveledLogger returns a LeveledLogger for component.
func NewLeveledLogger(component string) *LeveledLogger {
	return &LeveledLogger{l: GetLogger(component)}
}

func (p *LeveledLogger) Errorf(format string, args ...interface{}) {
	p.l.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (p *LeveledLogger) Warningf(format string, args ...interface{}) {
	p.l.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (p *LeveledLogger) Infof(format string, args ...interface{}) {
	p.l.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (p *LeveledLogger) Debugf(format string, args ...interface{}) {
	p.l.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
