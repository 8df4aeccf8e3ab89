package templating

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const defaultDeclaration = `<?xml version="1.0"?>`

var (
	errNoRoot       = errors.New("document has no root element")
	errTextOutside  = errors.New("text outside the root element")
	errSecondRoot   = errors.New("document has more than one root element")
	textReplacer    = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrReplacer    = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "\t", "&#9;", "\n", "&#10;", "\r", "&#13;")
	commentReplacer = strings.NewReplacer("--", "- -")
)

type nodeKind int

const (
	elementNode nodeKind = iota
	textNode
	commentNode
	procInstNode
	directiveNode
)

type xmlNode struct {
	kind     nodeKind
	name     string
	attrs    []xml.Attr
	text     string
	children []*xmlNode
}

// formatError carries the line an error was detected on.
type formatError struct {
	line int
	err  error
}

func (e *formatError) Error() string { return e.err.Error() }
func (e *formatError) Unwrap() error { return e.err }

// Normalize parses doc as an XML document and serializes it canonically:
// the source's XML declaration (or a default one), whitespace-only text
// removed, one element per line indented by indent per level, elements that
// hold text written inline, and empty elements self-closed.
//
// Any well-formedness violation is returned as an error; there is no
// best-effort output.
func Normalize(doc []byte, indent string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = true

	var (
		decl   string
		prolog []*xmlNode
		epilog []*xmlNode
		root   *xmlNode
		stack  []*xmlNode
	)
	lineErr := func(err error) error {
		line, _ := dec.InputPos()
		return &formatError{line: line, err: err}
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) {
				return "", &formatError{line: syntaxErr.Line, err: err}
			}
			return "", lineErr(err)
		}

		var n *xmlNode
		switch t := tok.(type) {
		case xml.StartElement:
			n = &xmlNode{kind: elementNode, name: xmlName(t.Name), attrs: t.Attr}
		case xml.EndElement:
			name := xmlName(t.Name)
			if len(stack) == 0 {
				return "", lineErr(fmt.Errorf("unexpected end element </%s>", name))
			}
			if open := stack[len(stack)-1].name; open != name {
				return "", lineErr(fmt.Errorf("element <%s> closed by </%s>", open, name))
			}
			stack = stack[:len(stack)-1]
			continue
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return "", lineErr(errTextOutside)
				}
				continue
			}
			parent := stack[len(stack)-1]
			if last := lastChild(parent); last != nil && last.kind == textNode {
				last.text += string(t)
				continue
			}
			n = &xmlNode{kind: textNode, text: string(t)}
		case xml.Comment:
			n = &xmlNode{kind: commentNode, text: string(t)}
		case xml.ProcInst:
			if t.Target == "xml" {
				if root != nil || len(prolog) > 0 || decl != "" {
					return "", lineErr(errors.New("misplaced XML declaration"))
				}
				decl = "<?xml " + strings.TrimSpace(string(t.Inst)) + "?>"
				continue
			}
			n = &xmlNode{kind: procInstNode, name: t.Target, text: string(t.Inst)}
		case xml.Directive:
			n = &xmlNode{kind: directiveNode, text: string(t)}
		default:
			continue
		}

		switch {
		case len(stack) > 0:
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
		case n.kind == elementNode && root != nil:
			return "", lineErr(errSecondRoot)
		case n.kind == elementNode:
			root = n
		case root == nil:
			prolog = append(prolog, n)
		default:
			epilog = append(epilog, n)
		}
		if n.kind == elementNode {
			stack = append(stack, n)
		}
	}

	if len(stack) > 0 {
		return "", lineErr(fmt.Errorf("element <%s> is not closed", stack[len(stack)-1].name))
	}
	if root == nil {
		return "", lineErr(errNoRoot)
	}

	if decl == "" {
		decl = defaultDeclaration
	}
	var b strings.Builder
	b.WriteString(decl)
	b.WriteByte('\n')
	for _, n := range prolog {
		writeNode(&b, n, indent, 0, false)
		b.WriteByte('\n')
	}
	writeNode(&b, root, indent, 0, false)
	b.WriteByte('\n')
	for _, n := range epilog {
		writeNode(&b, n, indent, 0, false)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func writeNode(b *strings.Builder, n *xmlNode, indent string, depth int, inline bool) {
	if !inline {
		b.WriteString(strings.Repeat(indent, depth))
	}

	switch n.kind {
	case textNode:
		b.WriteString(textReplacer.Replace(n.text))
	case commentNode:
		b.WriteString("<!--" + commentReplacer.Replace(n.text) + "-->")
	case procInstNode:
		b.WriteString("<?" + n.name)
		if inst := strings.TrimSpace(n.text); inst != "" {
			b.WriteString(" " + inst)
		}
		b.WriteString("?>")
	case directiveNode:
		b.WriteString("<!" + n.text + ">")
	case elementNode:
		b.WriteString("<" + n.name)
		for _, a := range n.attrs {
			b.WriteString(" " + xmlName(a.Name) + `="` + attrReplacer.Replace(a.Value) + `"`)
		}

		children := significantChildren(n)
		if len(children) == 0 {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')

		if inline || hasText(children) {
			for _, c := range children {
				writeNode(b, c, indent, 0, true)
			}
		} else {
			b.WriteByte('\n')
			for _, c := range children {
				writeNode(b, c, indent, depth+1, false)
				b.WriteByte('\n')
			}
			b.WriteString(strings.Repeat(indent, depth))
		}
		b.WriteString("</" + n.name + ">")
	}
}

// significantChildren drops whitespace-only text.
func significantChildren(n *xmlNode) []*xmlNode {
	out := n.children[:0:0]
	for _, c := range n.children {
		if c.kind == textNode && strings.TrimSpace(c.text) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasText(children []*xmlNode) bool {
	for _, c := range children {
		if c.kind == textNode {
			return true
		}
	}
	return false
}

func lastChild(n *xmlNode) *xmlNode {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[len(n.children)-1]
}

func xmlName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
