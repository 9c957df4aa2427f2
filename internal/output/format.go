// Package output prints command results in the format picked with --output.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"
)

// Format is an output format name.
type Format string

const (
	// FormatText is the human-readable default.
	FormatText Format = "text"
	// FormatJSON is pretty-printed JSON.
	FormatJSON Format = "json"
	// FormatNDJSON prints one JSON value per line.
	FormatNDJSON Format = "ndjson"
	// FormatTable is tabular output for lists.
	FormatTable Format = "table"
	// FormatYAML is YAML.
	FormatYAML Format = "yaml"
	// FormatHTML is the markup a wiki page embeds.
	FormatHTML Format = "html"
)

// ParseFormat converts a flag value to a Format. Empty means FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatNDJSON, FormatTable, FormatYAML, FormatHTML:
		return f, nil
	default:
		return "", errors.New("invalid --output format (expected text|json|ndjson|table|yaml|html)")
	}
}

// IsStructured reports whether the format is meant for other programs.
func IsStructured(format Format) bool {
	switch format {
	case FormatJSON, FormatNDJSON, FormatYAML:
		return true
	default:
		return false
	}
}

// Markup is implemented by results that have an HTML rendering.
type Markup interface {
	HTML() (string, error)
}

// Texter is implemented by results with their own terminal rendering.
type Texter interface {
	Text() string
}

// Tabular is implemented by results that know their table layout.
type Tabular interface {
	Table() Table
}

// Printer writes results to w in one format.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a Printer.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Print writes data. List options and the jq query are taken from ctx.
func (p *Printer) Print(ctx context.Context, data interface{}) error {
	if data == nil {
		return nil
	}

	data = ApplyListOptions(ctx, data)

	switch p.format {
	case FormatJSON:
		return p.printJSON(ctx, data, true)
	case FormatNDJSON:
		return p.printJSON(ctx, data, false)
	case FormatYAML:
		return p.printYAML(data)
	case FormatTable:
		return p.printTable(data)
	case FormatHTML:
		return p.printHTML(data)
	case FormatText:
		return p.printText(data)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

func (p *Printer) printJSON(ctx context.Context, data interface{}, pretty bool) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)

	if query := QueryFromContext(ctx); query != "" {
		return runQuery(query, data, enc.Encode)
	}

	if pretty {
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	v := deref(reflect.ValueOf(data))
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		for i := 0; i < v.Len(); i++ {
			if err := enc.Encode(v.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	return enc.Encode(data)
}

// runQuery evaluates a jq query against the JSON form of data and passes
// every result to emit.
func runQuery(query string, data interface{}, emit func(interface{}) error) error {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}

	input, err := jqValue(data)
	if err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("query error: %w", err)
		}
		if err := emit(v); err != nil {
			return err
		}
	}
}

// jqValue converts data to the maps and slices gojq works on.
func jqValue(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return v, nil
}

func (p *Printer) printYAML(data interface{}) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(data)
}

func (p *Printer) printHTML(data interface{}) error {
	m, ok := data.(Markup)
	if !ok {
		return fmt.Errorf("html output is not available for %T", data)
	}
	html, err := m.HTML()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, html)
	return err
}

func (p *Printer) printText(data interface{}) error {
	switch d := data.(type) {
	case Texter:
		_, err := io.WriteString(p.w, d.Text())
		return err
	case Tabular:
		return p.printTable(d)
	}

	v := deref(reflect.ValueOf(data))
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, key := range keys {
			if _, err := fmt.Fprintf(p.w, "%v: %v\n", key.Interface(), v.MapIndex(key).Interface()); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for _, f := range structFields(v.Type()) {
			value := v.Field(f.idx)
			if f.omitEmpty && value.IsZero() {
				continue
			}
			if _, err := fmt.Fprintf(p.w, "%s: %v\n", f.name, value.Interface()); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if _, err := fmt.Fprintln(p.w, v.Index(i).Interface()); err != nil {
				return err
			}
		}
	default:
		_, err := fmt.Fprintln(p.w, v.Interface())
		return err
	}
	return nil
}

func (p *Printer) printTable(data interface{}) error {
	switch d := data.(type) {
	case Table:
		return p.printTableData(d.Headers, d.Rows)
	case Tabular:
		t := d.Table()
		return p.printTableData(t.Headers, t.Rows)
	}

	v := deref(reflect.ValueOf(data))
	if !v.IsValid() {
		return nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Errorf("table format requires a list of items")
	}
	if v.Len() == 0 {
		return nil
	}

	t := buildTable(v)
	return p.printTableData(t.Headers, t.Rows)
}

func (p *Printer) printTableData(headers []string, rows [][]string) error {
	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func buildTable(v reflect.Value) Table {
	first := deref(v.Index(0))
	if first.Kind() != reflect.Struct {
		t := Table{Headers: []string{"value"}}
		for i := 0; i < v.Len(); i++ {
			t.Rows = append(t.Rows, []string{fmt.Sprint(v.Index(i).Interface())})
		}
		return t
	}

	fields := structFields(first.Type())
	var t Table
	for _, f := range fields {
		t.Headers = append(t.Headers, strings.ToUpper(f.name))
	}
	for i := 0; i < v.Len(); i++ {
		item := deref(v.Index(i))
		if item.Kind() != reflect.Struct {
			continue
		}
		row := make([]string, 0, len(fields))
		for _, f := range fields {
			row = append(row, fmt.Sprint(item.Field(f.idx).Interface()))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

type field struct {
	name      string
	idx       int
	omitEmpty bool
}

// structFields lists the exported fields of t under their JSON names.
func structFields(t reflect.Type) []field {
	fields := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields = append(fields, field{name: name, idx: i, omitEmpty: strings.Contains(opts, "omitempty")})
	}
	return fields
}

func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
