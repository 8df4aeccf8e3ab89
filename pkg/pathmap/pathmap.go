package pathmap

import (
	"sort"
	"strconv"
	"strings"
)

// Wildcard is the suffix that turns a Get lookup into a prefix query.
const Wildcard = ".*"

// Flatten collapses a nested structure into a single level. Nested maps under
// named keys are merged using "parent.child" keys. Numeric keys (and the
// elements of []any values) keep their recursive result nested: under a named
// parent they are appended to a []any stored at the parent's key, at the top
// level they are stored as a flattened map under the index.
//
// Flatten is idempotent on maps it produced.
func Flatten(m map[string]any) map[string]any {
	return flattenEntries(sortedEntries(m)).toMap()
}

// Get returns m[key], or def when the key is absent. When key ends with ".*"
// Get returns a new map holding every entry whose key starts with the part of
// key before the "*", with that prefix stripped from the returned keys. def is
// returned when no key matches.
func Get(key string, m map[string]any, def any) any {
	if !strings.HasSuffix(key, Wildcard) {
		if v, ok := m[key]; ok {
			return v
		}
		return def
	}

	prefix := strings.TrimRight(key, "*")
	out := make(map[string]any)
	for k, v := range m {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		out[strings.TrimPrefix(k, prefix)] = v
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// HasKey reports whether any key in m starts with prefix.
func HasKey(prefix string, m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// GetString is Get for callers that expect a scalar. Non-string scalars are
// formatted, anything else yields def.
func GetString(key string, m map[string]any, def string) string {
	switch v := Get(key, m, nil).(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return def
	}
}

type entry struct {
	key   string
	value any
}

// ordered is an insertion-ordered map. Flattening appends to lists, so the
// order in which recursive results are merged has to be stable.
type ordered struct {
	keys []string
	vals map[string]any
}

func newOrdered() *ordered {
	return &ordered{vals: make(map[string]any)}
}

func (o *ordered) set(k string, v any) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

func (o *ordered) toMap() map[string]any {
	out := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		out[k] = o.vals[k]
	}
	return out
}

func flattenEntries(entries []entry) *ordered {
	out := newOrdered()
	for _, e := range entries {
		children, nested := childEntries(e.value)
		if !nested {
			out.set(e.key, e.value)
			continue
		}

		rec := flattenEntries(children)
		if isIndex(e.key) {
			out.set(e.key, rec.toMap())
			continue
		}

		for _, rk := range rec.keys {
			rv := rec.vals[rk]
			if isIndex(rk) {
				list, _ := out.vals[e.key].([]any)
				out.set(e.key, append(list, rv))
				continue
			}
			out.set(e.key+"."+rk, rv)
		}
	}
	return out
}

// childEntries returns the entries of a nested value. Lists are treated as
// maps keyed by their indexes.
func childEntries(v any) ([]entry, bool) {
	switch t := v.(type) {
	case map[string]any:
		return sortedEntries(t), true
	case []any:
		entries := make([]entry, len(t))
		for i, item := range t {
			entries[i] = entry{key: strconv.Itoa(i), value: item}
		}
		return entries, true
	default:
		return nil, false
	}
}

// sortedEntries orders numeric keys numerically ahead of named keys, which are
// ordered lexically.
func sortedEntries(m map[string]any) []entry {
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, entry{key: k, value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, aErr := strconv.Atoi(entries[i].key)
		b, bErr := strconv.Atoi(entries[j].key)
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return entries[i].key < entries[j].key
		}
	})
	return entries
}

func isIndex(key string) bool {
	_, err := strconv.Atoi(key)
	return err == nil
}
