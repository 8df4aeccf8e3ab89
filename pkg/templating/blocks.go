package templating

import (
	"sort"
	"strings"
)

// ParentMarker inside a block body is replaced by the content previously
// registered under the same name.
const ParentMarker = "@parent"

// Blocks maps block names to their content for a single compile. Block
// extraction writes to it and yield substitution reads from it, so a block
// declared in a deeply included template is visible to every yield of the
// same compile.
type Blocks struct {
	mode   ParentMode
	values map[string]string
	roots  map[string]string
}

// NewBlocks returns an empty registry.
func NewBlocks(mode ParentMode) *Blocks {
	return &Blocks{
		mode:   mode,
		values: make(map[string]string),
		roots:  make(map[string]string),
	}
}

// Declare registers content under name. Content without the parent marker
// replaces any previous value; otherwise the marker is expanded according to
// the registry's ParentMode.
func (b *Blocks) Declare(name, content string) {
	_, declared := b.values[name]

	if strings.Contains(content, ParentMarker) {
		parent := b.values[name]
		if b.mode == ParentRoot {
			parent = b.roots[name]
		}
		content = strings.ReplaceAll(content, ParentMarker, parent)
	}

	b.values[name] = content
	if !declared {
		b.roots[name] = content
	}
}

// Yield returns the content registered under name, or "" when there is none.
func (b *Blocks) Yield(name string) string {
	return b.values[name]
}

// Has reports whether name was declared.
func (b *Blocks) Has(name string) bool {
	_, ok := b.values[name]
	return ok
}

// Names returns the declared block names in sorted order.
func (b *Blocks) Names() []string {
	names := make([]string, 0, len(b.values))
	for name := range b.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
