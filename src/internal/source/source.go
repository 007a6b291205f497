package source

import (
	"strings"
	"time"

	"mqttlog/src/internal/core"
)

// Source represents an input stream of log records.
type Source interface {
	// Returns a channel that receives log records
	Subscribe() <-chan core.LogRecord

	// Begins reading from the source
	Start() error

	// Gracefully shuts down the source
	Stop()

	// Returns source statistics
	GetStats() SourceStats
}

// SourceStats contains statistics about a source
type SourceStats struct {
	Type           string
	TotalRecords   uint64
	DroppedRecords uint64
	StartTime      time.Time
	LastRecordTime time.Time
	Details        map[string]any
}

// extractLogLevel sniffs a severity from a raw log line.
func extractLogLevel(line string) core.Level {
	patterns := []struct {
		patterns []string
		level    core.Level
	}{
		{[]string{"FATAL:", "[FATAL]", "CRITICAL:", "[CRITICAL]"}, core.LevelCritical},
		{[]string{"[ERROR]", "ERROR:", " ERROR ", "ERR:", "[ERR]"}, core.LevelError},
		{[]string{"[WARN]", "WARN:", " WARN ", "WARNING:", "[WARNING]"}, core.LevelWarning},
		{[]string{"[DEBUG]", "DEBUG:", " DEBUG ", "[DBG]", "DBG:"}, core.LevelDebug},
	}

	upperLine := strings.ToUpper(line)
	for _, group := range patterns {
		for _, pattern := range group.patterns {
			if strings.Contains(upperLine, pattern) {
				return group.level
			}
		}
	}

	return core.LevelInfo
}
