package format

import (
	"testing"
	"time"

	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func testPipelineConfig() config.PipelineConfig {
	cfg := config.DefaultPipelineConfig("sensor.kitchen")
	cfg.Format = "json"
	return cfg
}

func testRecord() core.LogRecord {
	return core.LogRecord{
		Time:    time.Date(2025, 3, 14, 9, 26, 53, 589000000, time.UTC),
		Level:   core.LevelInfo,
		Logger:  "sensor.kitchen",
		Message: "temperature reading",
		Attrs:   map[string]string{"unit": "celsius", "value": "21.4"},
	}
}

func TestEncodeDeterministic(t *testing.T) {
	for _, formatName := range []string{"json", "text"} {
		t.Run(formatName, func(t *testing.T) {
			cfg := testPipelineConfig()
			cfg.Format = formatName

			encoder, err := NewEncoder(&cfg, newTestLogger())
			require.NoError(t, err)

			record := testRecord()
			first, err := encoder.Encode(record)
			require.NoError(t, err)

			// Repeated encodings of the same record must be byte-identical
			for i := 0; i < 50; i++ {
				msg, err := encoder.Encode(record)
				require.NoError(t, err)
				assert.Equal(t, first.Topic, msg.Topic)
				assert.Equal(t, first.Payload, msg.Payload)
				assert.Equal(t, first.QoS, msg.QoS)
				assert.Equal(t, first.Retain, msg.Retain)
			}
		})
	}
}

func TestEncodeTopicTemplate(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		record   core.LogRecord
		expected string
	}{
		{
			name:     "LoggerPlaceholder",
			template: "log/{loggerName}",
			record:   core.LogRecord{Logger: "app", Level: core.LevelInfo},
			expected: "log/app",
		},
		{
			name:     "DottedLoggerBecomesTopicLevels",
			template: "log/{loggerName}",
			record:   core.LogRecord{Logger: "sensor.kitchen.temp", Level: core.LevelInfo},
			expected: "log/sensor/kitchen/temp",
		},
		{
			name:     "LevelPlaceholder",
			template: "log/{level}/{loggerName}",
			record:   core.LogRecord{Logger: "app", Level: core.LevelError},
			expected: "log/ERROR/app",
		},
		{
			name:     "ConstantTopic",
			template: "devices/dvt/log",
			record:   core.LogRecord{Logger: "anything", Level: core.LevelCritical},
			expected: "devices/dvt/log",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testPipelineConfig()
			cfg.TopicTemplate = tc.template

			encoder, err := NewEncoder(&cfg, newTestLogger())
			require.NoError(t, err)

			msg, err := encoder.Encode(tc.record)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, msg.Topic)
		})
	}
}

func TestEncodeCarriesPublishOptions(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.QoS = 2
	cfg.Retain = false

	encoder, err := NewEncoder(&cfg, newTestLogger())
	require.NoError(t, err)

	msg, err := encoder.Encode(testRecord())
	require.NoError(t, err)
	assert.Equal(t, byte(2), msg.QoS)
	assert.False(t, msg.Retain)
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	invalid := string([]byte{0xff, 0xfe, 'x'})

	testCases := []struct {
		name   string
		record core.LogRecord
	}{
		{"Message", core.LogRecord{Logger: "app", Message: invalid}},
		{"LoggerName", core.LogRecord{Logger: invalid, Message: "ok"}},
		{"AttrKey", core.LogRecord{Logger: "app", Message: "ok", Attrs: map[string]string{invalid: "v"}}},
		{"AttrValue", core.LogRecord{Logger: "app", Message: "ok", Attrs: map[string]string{"k": invalid}}},
	}

	cfg := testPipelineConfig()
	encoder, err := NewEncoder(&cfg, newTestLogger())
	require.NoError(t, err)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := encoder.Encode(tc.record)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEncoding)
		})
	}
}

func TestNewFormatter(t *testing.T) {
	logger := newTestLogger()

	testCases := []struct {
		name        string
		formatName  string
		expected    string
		expectError bool
	}{
		{
			name:       "JSONFormatter",
			formatName: "json",
			expected:   "json",
		},
		{
			name:       "TextFormatter",
			formatName: "text",
			expected:   "text",
		},
		{
			name:       "DefaultToText",
			formatName: "",
			expected:   "text",
		},
		{
			name:        "UnknownFormatter",
			formatName:  "xml",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testPipelineConfig()
			cfg.Format = tc.formatName

			formatter, err := NewFormatter(&cfg, logger)
			if tc.expectError {
				assert.Error(t, err)
				assert.Nil(t, formatter)
			} else {
				require.NoError(t, err)
				require.NotNil(t, formatter)
				assert.Equal(t, tc.expected, formatter.Name())
			}
		})
	}
}
