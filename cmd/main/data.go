package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadData reads a render data file. JSON is accepted as a subset of YAML.
// "-" reads from r, and an empty path yields an empty map.
func loadData(path string, r io.Reader) (map[string]any, error) {
	data := map[string]any{}
	if path == "" {
		return data, nil
	}

	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(r)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	if err = yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// applySets merges key=value assignments into data. Dotted keys create
// nested maps, so "contact.email=a@b.c" sets data["contact"]["email"].
// Values are parsed as YAML scalars, so numbers and booleans keep their type.
func applySets(data map[string]any, sets []string) error {
	for _, set := range sets {
		key, raw, ok := strings.Cut(set, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid assignment %q, want key=value", set)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}

		parts := strings.Split(key, ".")
		m := data
		for _, part := range parts[:len(parts)-1] {
			next, ok := m[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[part] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = value
	}
	return nil
}
