package pathmap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// AttributesKey holds an element's attributes in the decoded map.
	AttributesKey = "@attributes"
	// ValueKey holds the text of an element that also carries attributes.
	ValueKey = "@value"
)

// ErrEmptyDocument is returned by FromXML when the input holds no element.
var ErrEmptyDocument = errors.New("pathmap: document has no root element")

type xmlNode struct {
	name     string
	attrs    map[string]any
	children []*xmlNode
	text     strings.Builder
}

// FromXML decodes a registry response into the nested map shape the other
// functions in this package work on. Element names keep their namespace
// prefix ("domain:name"). Attributes are stored under "@attributes". The text
// of an element that also has attributes or children is stored under
// "@value". Repeated sibling elements become a []any in document order, and
// elements holding only text decode to their trimmed text.
//
// The result is keyed by the root element's name, so
// Flatten(FromXML(r)) yields keys such as "epp.response.result.msg".
func FromXML(r io.Reader) (map[string]any, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var root *xmlNode
	var stack []*xmlNode
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: qualifiedName(t.Name)}
			for _, a := range t.Attr {
				if n.attrs == nil {
					n.attrs = make(map[string]any)
				}
				n.attrs[qualifiedName(a.Name)] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("decode xml: second root element <%s>", n.name)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			name := qualifiedName(t.Name)
			if len(stack) == 0 || stack[len(stack)-1].name != name {
				return nil, fmt.Errorf("decode xml: unexpected end element </%s>", name)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("decode xml: element <%s> is not closed", stack[len(stack)-1].name)
	}
	if root == nil {
		return nil, ErrEmptyDocument
	}
	return map[string]any{root.name: root.value()}, nil
}

func (n *xmlNode) value() any {
	text := strings.TrimSpace(n.text.String())
	if len(n.children) == 0 && n.attrs == nil {
		return text
	}

	out := make(map[string]any)
	if n.attrs != nil {
		out[AttributesKey] = n.attrs
	}
	if text != "" {
		out[ValueKey] = text
	}
	for _, c := range n.children {
		v := c.value()
		switch existing := out[c.name].(type) {
		case nil:
			out[c.name] = v
		case repeated:
			out[c.name] = append(existing, v)
		default:
			out[c.name] = repeated{existing, v}
		}
	}
	for k, v := range out {
		if list, ok := v.(repeated); ok {
			out[k] = []any(list)
		}
	}
	return out
}

// repeated marks a list built from sibling elements while a node is being
// converted, so a child that itself decodes to []any is never merged into.
type repeated []any

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
