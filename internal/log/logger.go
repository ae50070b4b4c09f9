// Package log provides the leveled logger used by glv and its analysis packages.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DebugLevel, nil
	case "INFO", "":
		return InfoLevel, nil
	case "WARN", "WARNING":
		return WarnLevel, nil
	case "ERROR":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}

// Logger interface defines structured logging methods
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
	Colors     bool
}

// DefaultLogger is the default implementation of Logger
type DefaultLogger struct {
	mu         sync.Mutex
	level      Level
	jsonOutput bool
	out        io.Writer
	colors     bool
	now        func() time.Time
}

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	l := &DefaultLogger{
		level:      cfg.Level,
		jsonOutput: cfg.JSONOutput,
		out:        cfg.Output,
		colors:     cfg.Colors,
		now:        time.Now,
	}

	if l.out == nil {
		l.out = os.Stderr
		l.colors = cfg.Colors && IsTTY()
	}

	return l
}

// IsTTY reports whether colored output should be used on stderr.
func IsTTY() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// formatMessage formats the message with key-value args
func formatMessage(msg string, args ...interface{}) string {
	if len(args) == 0 {
		return msg
	}

	var sb strings.Builder
	sb.WriteString(msg)

	if len(args)%2 != 0 {
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprintf("%v", args[0]))
		args = args[1:]
	}

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", args[i+1]))
	}

	return sb.String()
}

// fields turns key-value args into a map for JSON output.
func fields(args ...interface{}) map[string]interface{} {
	m := make(map[string]interface{})
	if len(args)%2 != 0 {
		m["extra"] = fieldValue(args[0])
		args = args[1:]
	}
	for i := 0; i < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			m[key] = fieldValue(args[i+1])
		}
	}
	return m
}

// fieldValue renders errors and Stringers as text, since their fields are
// mostly unexported and would marshal as {}.
func fieldValue(v interface{}) interface{} {
	switch v := v.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

// colorize wraps the message with ANSI color codes if colors are enabled
func (l *DefaultLogger) colorize(level Level, msg string) string {
	if !l.colors {
		return msg
	}
	return getColor(level) + msg + "\033[0m"
}

// getColor returns the ANSI color code for the given level
func getColor(level Level) string {
	switch level {
	case DebugLevel:
		return "\033[36m" // Cyan
	case InfoLevel:
		return "\033[32m" // Green
	case WarnLevel:
		return "\033[33m" // Yellow
	case ErrorLevel:
		return "\033[31m" // Red
	default:
		return ""
	}
}

// write outputs the log message
func (l *DefaultLogger) write(level Level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().Format("2006-01-02 15:04:05")
	levelStr := level.String()

	if l.jsonOutput {
		entry := fields(args...)
		entry["timestamp"] = timestamp
		entry["level"] = levelStr
		entry["message"] = msg
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.out, string(data))
		return
	}

	line := formatMessage(msg, args...)
	fmt.Fprintf(l.out, "[%s] %s: %s\n", timestamp, levelStr, l.colorize(level, line))
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	if l.enabled(DebugLevel) {
		l.write(DebugLevel, msg, args...)
	}
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	if l.enabled(InfoLevel) {
		l.write(InfoLevel, msg, args...)
	}
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	if l.enabled(WarnLevel) {
		l.write(WarnLevel, msg, args...)
	}
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	if l.enabled(ErrorLevel) {
		l.write(ErrorLevel, msg, args...)
	}
}

func (l *DefaultLogger) enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level <= level
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Nop returns a logger that discards everything.
func Nop() Logger { return nopLogger{} }

// ProgressSpinner shows a spinner with a message on a terminal while work runs.
type ProgressSpinner struct {
	mu      sync.Mutex
	message string
	frames  []string
	current int
	writer  io.Writer
	colors  bool
	stop    chan struct{}
	done    chan struct{}
}

// NewProgressSpinner creates a new progress spinner writing to w.
func NewProgressSpinner(w io.Writer, message string) *ProgressSpinner {
	return &ProgressSpinner{
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		writer:  w,
		colors:  IsTTY(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation
func (p *ProgressSpinner) Start() {
	go p.animate()
}

// Stop stops the spinner and clears its line.
func (p *ProgressSpinner) Stop() {
	close(p.stop)
	<-p.done
	fmt.Fprint(p.writer, "\r\033[K")
}

// Message updates the spinner message
func (p *ProgressSpinner) Message(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
}

func (p *ProgressSpinner) animate() {
	defer close(p.done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.draw()
		case <-p.stop:
			return
		}
	}
}

func (p *ProgressSpinner) draw() {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := p.frames[p.current%len(p.frames)]
	p.current++

	if p.colors {
		fmt.Fprintf(p.writer, "\r\033[36m%s\033[0m %s", frame, p.message)
	} else {
		fmt.Fprintf(p.writer, "\r%s %s", frame, p.message)
	}
}
