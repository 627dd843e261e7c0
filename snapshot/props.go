package snapshot

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
)

// Props are property matchers: field name → boolean expr expression over
// `value`, e.g. Props{"ID": "value > 0", "CreatedAt": "value != nil"}.
// Matched fields are snapshotted as Expr<expression> instead of their
// volatile contents.
type Props map[string]string

type propMatcher struct {
	expression string
}

func (m propMatcher) String() string { return "Expr<" + m.expression + ">" }

// propsView is the field view of a value after property matching.
type propsView struct {
	typeName string
	fields   map[string]any
}

func (v propsView) serialize(s *Serializer) string {
	keys := make(map[string]string, len(v.fields))
	for k := range v.fields {
		keys[k] = ""
	}
	var b strings.Builder
	b.WriteString(v.typeName)
	b.WriteString(" {\n")
	for _, k := range SortKeys(keys) {
		val := s.Serialize(v.fields[k])
		b.WriteString("  ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(strings.ReplaceAll(val, "\n", "\n  "))
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// apply checks every matcher against received. It returns the view to
// serialize and the names of failing properties; err is reserved for
// unusable matchers or values.
func (p Props) apply(received any) (propsView, []string, error) {
	view, err := fieldsOf(received)
	if err != nil {
		return propsView{}, nil, err
	}
	var failed []string
	for _, name := range SortKeys(p) {
		src := p[name]
		val, ok := view.fields[name]
		if !ok {
			failed = append(failed, name)
			continue
		}
		env := map[string]any{"value": val}
		program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
		if err != nil {
			return propsView{}, nil, fmt.Errorf("compile matcher %s: %w", name, err)
		}
		out, err := expr.Run(program, env)
		if err != nil {
			return propsView{}, nil, fmt.Errorf("run matcher %s: %w", name, err)
		}
		if pass, _ := out.(bool); !pass {
			failed = append(failed, name)
			continue
		}
		view.fields[name] = propMatcher{expression: src}
	}
	return view, failed, nil
}

// String renders the matchers the way a matched view renders them.
func (p Props) String() string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, name := range SortKeys(p) {
		fmt.Fprintf(&b, "  %s: %s\n", name, propMatcher{expression: p[name]})
	}
	b.WriteString("}")
	return b.String()
}

func fieldsOf(v any) (propsView, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return propsView{}, fmt.Errorf("property matchers need a struct or map, got nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	view := propsView{typeName: rv.Type().String(), fields: make(map[string]any)}
	switch rv.Kind() {
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			view.fields[f.Name] = rv.Field(i).Interface()
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return propsView{}, fmt.Errorf("property matchers need string map keys, got %s", rv.Type())
		}
		iter := rv.MapRange()
		for iter.Next() {
			view.fields[iter.Key().String()] = iter.Value().Interface()
		}
	default:
		return propsView{}, fmt.Errorf("property matchers need a struct or map, got %s", rv.Type())
	}
	return view, nil
}
