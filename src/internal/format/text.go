package format

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"

	"github.com/lixenwraith/log"
)

// Default layout mirrors the conventional "asctime - name - message" record
// line.
const (
	defaultTextTemplate    = "{{FmtTime .Time}} - {{.Logger}} - {{.Message}}"
	defaultTimestampFormat = "2006-01-02 15:04:05.000"
)

// TextFormatter produces human-readable text payloads using templates.
type TextFormatter struct {
	config   config.TextFormatOptions
	template *template.Template
	logger   *log.Logger
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(opts *config.TextFormatOptions, logger *log.Logger) (*TextFormatter, error) {
	cfg := config.TextFormatOptions{
		Template:        defaultTextTemplate,
		TimestampFormat: defaultTimestampFormat,
	}
	if opts != nil {
		if opts.Template != "" {
			cfg.Template = opts.Template
		}
		if opts.TimestampFormat != "" {
			cfg.TimestampFormat = opts.TimestampFormat
		}
	}

	f := &TextFormatter{
		config: cfg,
		logger: logger,
	}

	// Create template with helper functions
	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.config.TimestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("record").Funcs(funcMap).Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Format renders the log record through the template.
func (f *TextFormatter) Format(record core.LogRecord) ([]byte, error) {
	data := map[string]any{
		"Time":    record.Time,
		"Level":   record.Level.String(),
		"Logger":  record.Logger,
		"Message": record.Message,
		"Attrs":   formatAttrs(record.Attrs),
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("template execution failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Name returns the formatter's type name.
func (f *TextFormatter) Name() string {
	return "text"
}

// formatAttrs renders attributes as "k=v" pairs in sorted key order so that
// output stays deterministic across encodings.
func formatAttrs(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+attrs[k])
	}
	return strings.Join(pairs, " ")
}
