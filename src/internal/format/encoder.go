package format

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"

	"github.com/lixenwraith/log"
)

// ErrEncoding indicates a record cannot be represented in the target
// encoding. Callers drop the record and count the failure; it is never
// re-submitted.
var ErrEncoding = errors.New("record encoding failed")

// Topic template placeholders
const (
	placeholderLogger = "{loggerName}"
	placeholderLevel  = "{level}"
)

// Encoder turns a log record into an MQTT wire message. Encoding is pure:
// the same record and configuration always produce the same EncodedMessage.
type Encoder struct {
	topicTemplate string
	constantTopic bool
	qos           byte
	retain        bool
	formatter     Formatter
}

// NewEncoder creates an encoder from the pipeline configuration.
func NewEncoder(cfg *config.PipelineConfig, logger *log.Logger) (*Encoder, error) {
	formatter, err := NewFormatter(cfg, logger)
	if err != nil {
		return nil, err
	}

	hasPlaceholder := strings.Contains(cfg.TopicTemplate, placeholderLogger) ||
		strings.Contains(cfg.TopicTemplate, placeholderLevel)

	return &Encoder{
		topicTemplate: cfg.TopicTemplate,
		constantTopic: !hasPlaceholder,
		qos:           byte(cfg.QoS),
		retain:        cfg.Retain,
		formatter:     formatter,
	}, nil
}

// Encode produces the wire message for a record.
func (e *Encoder) Encode(record core.LogRecord) (core.EncodedMessage, error) {
	if err := validateRecord(record); err != nil {
		return core.EncodedMessage{}, err
	}

	payload, err := e.formatter.Format(record)
	if err != nil {
		return core.EncodedMessage{}, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	return core.EncodedMessage{
		Topic:   e.Topic(record),
		Payload: payload,
		QoS:     e.qos,
		Retain:  e.retain,
	}, nil
}

// Topic renders the destination topic for a record. Dots in the logger name
// become topic level separators, matching the logger-hierarchy-to-topic-tree
// convention.
func (e *Encoder) Topic(record core.LogRecord) string {
	if e.constantTopic {
		return e.topicTemplate
	}

	loggerName := strings.ReplaceAll(record.Logger, ".", "/")
	topic := strings.ReplaceAll(e.topicTemplate, placeholderLogger, loggerName)
	return strings.ReplaceAll(topic, placeholderLevel, record.Level.String())
}

// FormatterName returns the name of the payload formatter in use.
func (e *Encoder) FormatterName() string {
	return e.formatter.Name()
}

// validateRecord rejects records that cannot survive the wire encoding.
// Strings holding invalid UTF-8 (e.g. unpaired surrogates smuggled in from
// a foreign encoding) would be silently mangled by the serializers.
func validateRecord(record core.LogRecord) error {
	if !utf8.ValidString(record.Logger) {
		return fmt.Errorf("%w: logger name contains invalid UTF-8", ErrEncoding)
	}
	if !utf8.ValidString(record.Message) {
		return fmt.Errorf("%w: message contains invalid UTF-8", ErrEncoding)
	}
	for k, v := range record.Attrs {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return fmt.Errorf("%w: attribute %q contains invalid UTF-8", ErrEncoding, k)
		}
	}
	return nil
}
