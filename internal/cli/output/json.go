package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats output as indented JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Write(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
