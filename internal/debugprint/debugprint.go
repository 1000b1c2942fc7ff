// Package debugprint dumps nested values as indented text for quick
// inspection: slices as [ ] blocks, maps and structs as { } blocks and
// frames as a table head.
package debugprint

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

// Options controls Fprint. Limit caps the elements shown per slice, map or
// frame; zero shows everything.
type Options struct {
	Limit     int
	Indent    string
	PrintType bool
	PrintLen  bool
}

// DefaultOptions indents by two spaces and prints lengths.
func DefaultOptions() Options {
	return Options{Indent: "  ", PrintLen: true}
}

type printer struct {
	w    io.Writer
	opts Options
	err  error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

// Fprint writes data to w under name. A nil data writes nothing.
func Fprint(w io.Writer, name string, data any, opts Options) error {
	if data == nil {
		return nil
	}
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	p := &printer{w: w, opts: opts}
	v := deref(reflect.ValueOf(data))
	if !v.IsValid() {
		return nil
	}

	if kind(v) == kindScalar {
		tail := ""
		if opts.PrintType {
			tail = fmt.Sprintf(" (type = %s)", v.Type())
		}
		p.line("%s = %s%s", name, repr(v), tail)
		return p.err
	}
	p.line("%s = ", name)
	p.value(v, 0)
	return p.err
}

// Print is Fprint to standard output.
func Print(name string, data any, opts Options) {
	_ = Fprint(os.Stdout, name, data, opts)
}

type valueKind int

const (
	kindScalar valueKind = iota
	kindList
	kindDict
	kindFrame
)

var (
	frameType    = reflect.TypeOf((*table.Frame)(nil))
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)

func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.IsValid() && v.Kind() == reflect.Pointer && !v.IsNil() && v.Type() != frameType && !v.Type().Implements(stringerType) {
		return deref(v.Elem())
	}
	return v
}

func kind(v reflect.Value) valueKind {
	if v.Type() == frameType {
		if v.IsNil() {
			return kindScalar
		}
		return kindFrame
	}
	if v.Type().Implements(stringerType) || v.Type().Implements(errorType) {
		return kindScalar
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return kindList
	case reflect.Map, reflect.Struct:
		return kindDict
	}
	return kindScalar
}

func repr(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	switch {
	case v.Kind() == reflect.String:
		return strconv.Quote(v.String())
	case v.Kind() == reflect.Pointer && v.IsNil():
		return "nil"
	case v.CanInterface():
		return fmt.Sprint(v.Interface())
	}
	return v.String()
}

func (p *printer) shown(n int) int {
	if p.opts.Limit > 0 && n > p.opts.Limit {
		return p.opts.Limit
	}
	return n
}

func (p *printer) tail(v reflect.Value, n int) string {
	var parts []string
	if p.opts.PrintType {
		parts = append(parts, "type = "+v.Type().String())
	}
	if p.opts.PrintLen && n > 0 {
		parts = append(parts, "len = "+strconv.Itoa(n))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func (p *printer) value(v reflect.Value, depth int) {
	switch kind(v) {
	case kindList:
		p.list(v, depth)
	case kindDict:
		p.dict(v, depth)
	case kindFrame:
		p.frame(v.Interface().(*table.Frame), v, depth)
	default:
		p.line("%s%s,", strings.Repeat(p.opts.Indent, depth), repr(v))
	}
}

func (p *printer) list(v reflect.Value, depth int) {
	top := strings.Repeat(p.opts.Indent, depth)
	n := v.Len()
	shown := p.shown(n)
	p.line("%s[", top)
	for i := 0; i < shown; i++ {
		e := deref(v.Index(i))
		if !e.IsValid() {
			p.line("%s%snil,", top, p.opts.Indent)
			continue
		}
		if kind(e) == kindScalar {
			p.line("%s%s%s,", top, p.opts.Indent, repr(e))
			continue
		}
		p.value(e, depth+1)
	}
	if n > shown {
		p.line("%s%s...", top, p.opts.Indent)
	}
	p.line("%s],%s", top, p.tail(v, n))
}

type entry struct {
	key   string
	value reflect.Value
}

// entries returns map entries sorted by key, or the exported struct fields
// in declaration order.
func entries(v reflect.Value) []entry {
	var out []entry
	if v.Kind() == reflect.Map {
		for _, k := range v.MapKeys() {
			out = append(out, entry{repr(deref(k)), v.MapIndex(k)})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
		return out
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() {
			out = append(out, entry{f.Name, v.Field(i)})
		}
	}
	return out
}

func (p *printer) dict(v reflect.Value, depth int) {
	top := strings.Repeat(p.opts.Indent, depth)
	es := entries(v)
	shown := p.shown(len(es))
	p.line("%s{", top)
	for _, e := range es[:shown] {
		key := top + p.opts.Indent + e.key + " : "
		val := deref(e.value)
		if !val.IsValid() || kind(val) == kindScalar {
			p.line("%s%s,", key, repr(val))
			continue
		}
		p.line("%s", key)
		p.value(val, depth+1)
	}
	if len(es) > shown {
		p.line("%s%s...", top, p.opts.Indent)
	}
	n := 0
	if v.Kind() == reflect.Map {
		n = v.Len()
	}
	p.line("%s},%s", top, p.tail(v, n))
}

func (p *printer) frame(f *table.Frame, v reflect.Value, depth int) {
	top := strings.Repeat(p.opts.Indent, depth)
	n := f.Len()
	shown := p.shown(n)
	if p.err == nil {
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', tabwriter.AlignRight)
		cols := f.Columns()
		fmt.Fprintf(tw, "%s\t%s\t\n", top, strings.Join(cols, "\t"))
		for i := 0; i < shown; i++ {
			row := f.Row(i)
			cells := make([]string, len(cols))
			for j, c := range cols {
				cells[j] = table.FormatValue(row[c])
			}
			fmt.Fprintf(tw, "%s%d\t%s\t\n", top, i, strings.Join(cells, "\t"))
		}
		p.err = tw.Flush()
	}
	if n > shown {
		p.line("%s...", top)
	}
	var parts []string
	if p.opts.PrintType {
		parts = append(parts, "type = "+v.Type().String())
	}
	if p.opts.PrintLen {
		parts = append(parts, fmt.Sprintf("table = row:%d * col:%d", n, len(f.Columns())))
	}
	if len(parts) > 0 {
		p.line("%s(%s)", top, strings.Join(parts, ", "))
	}
}
