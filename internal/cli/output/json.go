package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes data as indented JSON. Deep links are printed
// verbatim rather than with &, < and > escaped.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
