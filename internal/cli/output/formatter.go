// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"io"
	"strings"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter writes a value in one output format.
type Formatter interface {
	Write(w io.Writer, data any) error
}

// ParseFormat parses a format string. Unknown values fall back to table.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatTable
	}
}

// NewFormatter returns a formatter for format. columns only applies to
// tables; nil prints every JSON-tagged field.
func NewFormatter(format Format, columns ...Column) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{Columns: columns}
	}
}
