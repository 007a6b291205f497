package config

import (
	"fmt"
	"strings"
)

// Queue overflow policies
const (
	PolicyDropOldest = "drop_oldest"
	PolicyDropNewest = "drop_newest"
)

// PipelineConfig describes one forwarding pipeline: the broker it publishes
// to, how records are encoded, and the queue/batch/retry behavior. Immutable
// after pipeline construction; a later GetOrCreate with the same name ignores
// any newly supplied config.
type PipelineConfig struct {
	// Pipeline identifier, doubles as the logger name
	Name string `toml:"name"`

	// Broker connection settings
	Broker BrokerConfig `toml:"broker"`

	// Destination topic. {loggerName} and {level} placeholders are
	// substituted per record; without placeholders the topic is constant.
	TopicTemplate string `toml:"topic_template"`

	// MQTT publish options
	QoS    int64 `toml:"qos"`
	Retain bool  `toml:"retain"`

	// Payload format: "json" or "text"
	Format string `toml:"format"`

	// Text format settings (when Format is "text")
	Text *TextFormatOptions `toml:"text"`

	// Bounded queue settings
	QueueCapacity  int64  `toml:"queue_capacity"`
	OverflowPolicy string `toml:"overflow_policy"`

	// Delivery worker settings
	BatchSize       int64 `toml:"batch_size"`
	BatchIntervalMS int64 `toml:"batch_interval_ms"`
	MaxRetries      int64 `toml:"max_retries"`

	// Optional pre-enqueue rate limit
	RateLimit *RateLimitConfig `toml:"rate_limit"`
}

// BrokerConfig holds the MQTT connection settings for a pipeline. The
// backoff schedule is shared by connect retries and publish retries.
type BrokerConfig struct {
	Host             string `toml:"host"`
	Port             int64  `toml:"port"`
	ClientID         string `toml:"client_id"`
	KeepAliveSeconds int64  `toml:"keep_alive_seconds"`
	ConnectTimeoutMS int64  `toml:"connect_timeout_ms"`
	PublishTimeoutMS int64  `toml:"publish_timeout_ms"`
	BackoffBaseMS    int64  `toml:"backoff_base_ms"`
	BackoffCapMS     int64  `toml:"backoff_cap_ms"`
}

// TextFormatOptions configures the text payload formatter.
type TextFormatOptions struct {
	// Go text/template over Time, Level, Logger, Message, Attrs
	Template string `toml:"template"`

	// Timestamp layout used by the FmtTime template helper
	TimestampFormat string `toml:"timestamp_format"`
}

// RateLimitConfig caps the record rate accepted into a pipeline's queue.
type RateLimitConfig struct {
	// Records per second; zero or negative disables limiting
	Rate float64 `toml:"rate"`

	// Burst size; defaults to Rate when unset
	Burst int64 `toml:"burst"`
}

// DefaultPipelineConfig returns a pipeline config with defaults mirroring
// the conventional broker-side handler settings (qos 1, retained, 60s
// keepalive).
func DefaultPipelineConfig(name string) PipelineConfig {
	return PipelineConfig{
		Name: name,
		Broker: BrokerConfig{
			Host:             "localhost",
			Port:             1883,
			KeepAliveSeconds: 60,
			ConnectTimeoutMS: 10000,
			PublishTimeoutMS: 30000,
			BackoffBaseMS:    500,
			BackoffCapMS:     30000,
		},
		TopicTemplate:   "log/{loggerName}",
		QoS:             1,
		Retain:          true,
		Format:          "text",
		QueueCapacity:   1024,
		OverflowPolicy:  PolicyDropOldest,
		BatchSize:       64,
		BatchIntervalMS: 200,
		MaxRetries:      3,
	}
}

// Validate checks the pipeline configuration invariants.
func (p *PipelineConfig) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("missing pipeline name")
	}

	if p.Broker.Host == "" {
		return fmt.Errorf("pipeline %q: missing broker host", p.Name)
	}
	if p.Broker.Port < 1 || p.Broker.Port > 65535 {
		return fmt.Errorf("pipeline %q: invalid broker port: %d", p.Name, p.Broker.Port)
	}
	if p.Broker.KeepAliveSeconds < 1 {
		return fmt.Errorf("pipeline %q: keep_alive_seconds must be positive: %d", p.Name, p.Broker.KeepAliveSeconds)
	}
	if p.Broker.ConnectTimeoutMS < 1 {
		return fmt.Errorf("pipeline %q: connect_timeout_ms must be positive: %d", p.Name, p.Broker.ConnectTimeoutMS)
	}
	if p.Broker.PublishTimeoutMS < 1 {
		return fmt.Errorf("pipeline %q: publish_timeout_ms must be positive: %d", p.Name, p.Broker.PublishTimeoutMS)
	}
	if p.Broker.BackoffBaseMS < 1 {
		return fmt.Errorf("pipeline %q: backoff_base_ms must be positive: %d", p.Name, p.Broker.BackoffBaseMS)
	}
	if p.Broker.BackoffCapMS < p.Broker.BackoffBaseMS {
		return fmt.Errorf("pipeline %q: backoff_cap_ms must be >= backoff_base_ms: %d < %d",
			p.Name, p.Broker.BackoffCapMS, p.Broker.BackoffBaseMS)
	}

	if p.TopicTemplate == "" {
		return fmt.Errorf("pipeline %q: missing topic_template", p.Name)
	}
	if p.QoS < 0 || p.QoS > 2 {
		return fmt.Errorf("pipeline %q: invalid qos: %d", p.Name, p.QoS)
	}

	switch p.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("pipeline %q: unknown format: %q", p.Name, p.Format)
	}

	if p.QueueCapacity < 1 {
		return fmt.Errorf("pipeline %q: queue_capacity must be positive: %d", p.Name, p.QueueCapacity)
	}
	switch strings.ToLower(p.OverflowPolicy) {
	case "", PolicyDropOldest, PolicyDropNewest:
	default:
		return fmt.Errorf("pipeline %q: unknown overflow_policy: %q", p.Name, p.OverflowPolicy)
	}

	if p.BatchSize < 1 {
		return fmt.Errorf("pipeline %q: batch_size must be positive: %d", p.Name, p.BatchSize)
	}
	if p.BatchSize > p.QueueCapacity {
		return fmt.Errorf("pipeline %q: batch_size exceeds queue_capacity: %d > %d",
			p.Name, p.BatchSize, p.QueueCapacity)
	}
	if p.BatchIntervalMS < 1 {
		return fmt.Errorf("pipeline %q: batch_interval_ms must be positive: %d", p.Name, p.BatchIntervalMS)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("pipeline %q: max_retries cannot be negative: %d", p.Name, p.MaxRetries)
	}

	if p.RateLimit != nil && p.RateLimit.Burst < 0 {
		return fmt.Errorf("pipeline %q: rate limit burst cannot be negative: %d", p.Name, p.RateLimit.Burst)
	}

	return nil
}
