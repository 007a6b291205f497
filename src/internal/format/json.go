package format

import (
	"encoding/json"
	"fmt"
	"time"

	"mqttlog/src/internal/core"

	"github.com/lixenwraith/log"
)

// JSONFormatter produces structured JSON payloads from log records.
type JSONFormatter struct {
	logger *log.Logger
}

// jsonPayload fixes the field order so that repeated encodings of the same
// record are byte-identical (encoding/json emits struct fields in
// declaration order and sorts map keys).
type jsonPayload struct {
	Time    string            `json:"time"`
	Level   string            `json:"level"`
	Logger  string            `json:"logger"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(logger *log.Logger) (*JSONFormatter, error) {
	return &JSONFormatter{logger: logger}, nil
}

// Format transforms a single LogRecord into a JSON byte slice.
func (f *JSONFormatter) Format(record core.LogRecord) ([]byte, error) {
	payload := jsonPayload{
		Time:    record.Time.Format(time.RFC3339Nano),
		Level:   record.Level.String(),
		Logger:  record.Logger,
		Message: record.Message,
		Attrs:   record.Attrs,
	}

	result, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return result, nil
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}
