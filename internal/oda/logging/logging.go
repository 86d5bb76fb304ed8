// Package logging provides the runtime's component logger: one
// colorized, level-gated logger per component name, in the style the
// teacher repo uses for its subsystem loggers.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
)

// LogLevel is the severity of a single log line.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger writes tagged, colorized lines for a single named component.
type Logger struct {
	mu       sync.Mutex
	name     string
	color    *color.Color
	minLevel LogLevel
	out      *log.Logger
}

// Config controls how a component logger is constructed.
type Config struct {
	ComponentName string
	Color         color.Attribute
	MinLevel      LogLevel
}

// New creates a component logger writing to os.Stderr.
func New(cfg Config) *Logger {
	return &Logger{
		name:     cfg.ComponentName,
		color:    color.New(cfg.Color),
		minLevel: cfg.MinLevel,
		out:      log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Named is a convenience constructor for the default palette used
// across the runtime's components.
func Named(component string) *Logger {
	c, ok := componentColors[component]
	if !ok {
		c = color.FgWhite
	}
	return New(Config{ComponentName: component, Color: c, MinLevel: INFO})
}

var componentColors = map[string]color.Attribute{
	"session":        color.FgCyan,
	"sessionmanager": color.FgBlue,
	"executor":       color.FgYellow,
	"mcp":            color.FgMagenta,
	"toolregistry":   color.FgGreen,
	"agentfactory":   color.FgHiCyan,
	"context":        color.FgHiWhite,
}

func (l *Logger) enabled(level LogLevel) bool {
	return level >= l.minLevel
}

func (l *Logger) log(level LogLevel, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tag := l.color.Sprintf("[%s]", l.name)
	l.out.Printf("%s [%s] %s", tag, level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

// SetMinLevel adjusts the logger's level gate after construction.
func (l *Logger) SetMinLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}
