package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"
)

// TableFormatter renders data as aligned columns.
//
// A struct becomes a FIELD/VALUE listing, a slice of structs gets one
// column per field, and a map becomes KEY/VALUE rows. Anything else is
// printed as JSON.
type TableFormatter struct {
	NoHeaders bool
}

// Format formats data as a table.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	var t *Table
	switch v := data.(type) {
	case *Table:
		t = v
	case Table:
		t = &v
	default:
		var ok bool
		if t, ok = toTable(reflect.ValueOf(data)); !ok {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		}
	}
	return t.RenderWithOptions(w, f.NoHeaders)
}

func toTable(v reflect.Value) (*Table, bool) {
	v = indirect(v)
	switch v.Kind() {
	case reflect.Struct:
		t := &Table{Headers: []string{"FIELD", "VALUE"}}
		for _, fld := range columns(v.Type()) {
			t.AddRow(fld.name, cell(v.Field(fld.index)))
		}
		return t, true

	case reflect.Map:
		t := &Table{Headers: []string{"KEY", "VALUE"}}
		iter := v.MapRange()
		for iter.Next() {
			t.AddRow(cell(iter.Key()), cell(iter.Value()))
		}
		return t, true

	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return &Table{}, true
		}
		elemType := v.Type().Elem()
		if elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}
		if elemType.Kind() != reflect.Struct {
			t := &Table{Headers: []string{"VALUE"}}
			for i := 0; i < v.Len(); i++ {
				t.AddRow(cell(v.Index(i)))
			}
			return t, true
		}

		cols := columns(elemType)
		t := &Table{}
		for _, c := range cols {
			t.Headers = append(t.Headers, strings.ToUpper(c.name))
		}
		for i := 0; i < v.Len(); i++ {
			elem := indirect(v.Index(i))
			row := make([]string, len(cols))
			if elem.IsValid() {
				for j, c := range cols {
					row[j] = cell(elem.Field(c.index))
				}
			}
			t.Rows = append(t.Rows, row)
		}
		return t, true
	}
	return nil, false
}

type column struct {
	name  string
	index int
}

// columns lists the exported fields of t, named by their json tag.
// Fields tagged table:"-" are left out.
func columns(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("table") == "-" {
			continue
		}
		name := f.Name
		if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
			name = tag
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

var timeType = reflect.TypeOf(time.Time{})

// cell renders a single value. Empty values print as "-".
func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return "-"
	}
	if v.Type() == timeType {
		ts := v.Interface().(time.Time)
		if ts.IsZero() {
			return "-"
		}
		return ts.Format(time.RFC3339)
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	default:
		return fmt.Sprint(v.Interface())
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table, optionally without its header row.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}
