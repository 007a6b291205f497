package core

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of a log record. Levels are ordered:
// Debug < Info < Warning < Error < Critical.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = [...]string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

// Returns the canonical upper-case level name
func (l Level) String() string {
	if l < LevelDebug || l > LevelCritical {
		return fmt.Sprintf("LEVEL(%d)", int8(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name to a Level. Matching is
// case-insensitive; "warn" is accepted as an alias for "warning".
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL", "FATAL":
		return LevelCritical, nil
	default:
		return LevelDebug, fmt.Errorf("unknown log level: %q", s)
	}
}

// LogRecord represents a single log record flowing through the pipeline.
// Records are immutable once created.
type LogRecord struct {
	Time    time.Time
	Level   Level
	Logger  string
	Message string
	Attrs   map[string]string
}
