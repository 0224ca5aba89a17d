package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Column selects one field for table output. Path uses JSON names and dots
// for nesting, e.g. "progress.stage".
type Column struct {
	Path  string
	Label string
}

// Col is shorthand for a column labelled with the upper-cased last path segment.
func Col(path string) Column {
	parts := strings.Split(path, ".")
	return Column{Path: path, Label: strings.ToUpper(parts[len(parts)-1])}
}

// TableFormatter formats structs and slices of structs as a borderless table.
type TableFormatter struct {
	Columns []Column
}

func (f *TableFormatter) Write(w io.Writer, data any) error {
	val := reflect.ValueOf(data)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			fmt.Fprintln(w, "No items found")
			return nil
		}
		val = val.Elem()
	}

	rows := []reflect.Value{val}
	if val.Kind() == reflect.Slice {
		rows = make([]reflect.Value, val.Len())
		for i := range rows {
			rows[i] = val.Index(i)
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No items found")
		return nil
	}

	columns := f.Columns
	if len(columns) == 0 {
		columns = defaultColumns(rows[0])
	}

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Label
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = formatValue(fieldByPath(row, c.Path))
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}

func defaultColumns(v reflect.Value) []Column {
	v = indirect(v)
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		columns := make([]Column, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if name := jsonName(field); name != "" && name != "-" {
				columns = append(columns, Col(name))
			}
		}
		return columns
	default:
		return []Column{{Path: "", Label: "VALUE"}}
	}
}

// fieldByPath walks struct fields and string-keyed maps by JSON name.
func fieldByPath(v reflect.Value, path string) reflect.Value {
	if path == "" {
		return v
	}
	for _, part := range strings.Split(path, ".") {
		v = indirect(v)
		switch v.Kind() {
		case reflect.Struct:
			v = structField(v, part)
		case reflect.Map:
			v = v.MapIndex(reflect.ValueOf(part))
		default:
			return reflect.Value{}
		}
		if !v.IsValid() {
			return v
		}
	}
	return v
}

func structField(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Name == name || jsonName(field) == name {
			return v.Field(i)
		}
	}
	return reflect.Value{}
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

func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch x := v.Interface().(type) {
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Local().Format("2006-01-02 15:04:05")
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", x), "0"), ".")
	}
	if v.Kind() == reflect.Slice {
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%v", v.Interface())
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

// WriteString writes s followed by a newline.
func WriteString(w io.Writer, s string) {
	fmt.Fprintln(w, s)
}
