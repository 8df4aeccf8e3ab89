package templating

import (
	"fmt"
	"html"
	"reflect"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// FuncMap returns the functions available to template expressions: the sprig
// text function library, escape and raw (which interpolation compiles to),
// lookup, and a few registry helpers such as cltrid and authInfo.
func FuncMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["escape"] = escape
	funcs["raw"] = raw
	funcs["lookup"] = lookupFunc(funcs)
	funcs["cltrid"] = cltrid
	funcs["authInfo"] = authInfo
	funcs["eppDate"] = eppDate
	funcs["isSet"] = isSet
	return funcs
}

// escape formats v and replaces the characters that are significant in
// markup (& < > " ') with entities.
func escape(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return html.EscapeString(t)
	case fmt.Stringer:
		return html.EscapeString(t.String())
	default:
		return html.EscapeString(fmt.Sprint(v))
	}
}

// raw formats v for raw interpolation. A nil value prints nothing.
func raw(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// lookupFunc builds lookup(dot, name): the entry name of dot when dot is a
// map holding it, otherwise the result of calling funcs[name] without
// arguments. Bare names that are also function names compile to it.
func lookupFunc(funcs template.FuncMap) func(dot any, name string) (any, error) {
	return func(dot any, name string) (any, error) {
		if v, ok := mapEntry(dot, name); ok {
			return v, nil
		}
		fn, ok := funcs[name]
		if !ok {
			return nil, fmt.Errorf("map has no entry for key %q", name)
		}
		return callWithoutArgs(name, fn)
	}
}

func mapEntry(dot any, name string) (any, bool) {
	v := reflect.ValueOf(dot)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	e := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
	if !e.IsValid() {
		return nil, false
	}
	return e.Interface(), true
}

func callWithoutArgs(name string, fn any) (any, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() > 1 || (t.NumIn() == 1 && !t.IsVariadic()) {
		return nil, fmt.Errorf("map has no entry for key %q and function %s needs arguments", name, name)
	}
	out := v.Call(nil)
	switch {
	case len(out) == 0:
		return nil, nil
	case len(out) == 2 && !out[1].IsNil():
		return nil, out[1].Interface().(error)
	default:
		return out[0].Interface(), nil
	}
}
