package format

import (
	"fmt"

	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for transforming a LogRecord into a
// payload byte slice. Implementations must be deterministic: identical
// records produce byte-identical output.
type Formatter interface {
	// Format takes a LogRecord and returns the serialized payload.
	Format(record core.LogRecord) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// NewFormatter creates a new Formatter based on the pipeline configuration.
func NewFormatter(cfg *config.PipelineConfig, logger *log.Logger) (Formatter, error) {
	name := cfg.Format
	// Default to text if no format specified
	if name == "" {
		name = "text"
	}

	switch name {
	case "json":
		return NewJSONFormatter(logger)
	case "text":
		return NewTextFormatter(cfg.Text, logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", name)
	}
}
