package templating

import (
	"regexp"
	"strings"
	"text/template"
)

// Delimiters of the host template language the compiler emits. They cannot
// start a well-formed markup construct, so they never clash with literal
// template text.
const (
	hostOpen  = "<%"
	hostClose = "%>"
)

var (
	blockRe   = regexp.MustCompile(`(?is)\{%\s*block\s+([\w.:-]+)\s*%\}(.*?)\{%\s*endblock\s*%\}`)
	yieldRe   = regexp.MustCompile(`(?i)\{%\s*yield\s+([\w.:-]+)\s*%\}`)
	escapedRe = regexp.MustCompile(`(?s)\{\{\{\s*(.+?)\s*\}\}\}`)
	rawRe     = regexp.MustCompile(`(?s)\{\{\s*(.+?)\s*\}\}`)
	stmtRe    = regexp.MustCompile(`(?s)\{%\s*(.+?)\s*%\}`)
)

// compiler turns inlined template source into host template text. It holds
// no per-compile state; blocks are passed in by the caller.
type compiler struct {
	funcs template.FuncMap
}

func newCompiler(funcs template.FuncMap) *compiler {
	return &compiler{funcs: funcs}
}

// compile runs the directive passes in order. Blocks and yields resolve
// before interpolation so block bodies keep their markers until they are
// placed; escaped interpolation runs before the narrower raw form.
func (c *compiler) compile(src string, blocks *Blocks) string {
	passes := []func(string, *Blocks) string{
		c.protectDelims,
		c.extractBlocks,
		c.substituteYields,
		c.compileEscaped,
		c.compileRaw,
		c.compileStatements,
	}
	for _, pass := range passes {
		src = pass(src, blocks)
	}
	return src
}

// protectDelims makes literal host delimiters in the source print as text.
func (c *compiler) protectDelims(src string, _ *Blocks) string {
	return strings.ReplaceAll(src, hostOpen, hostOpen+` "`+hostOpen+`" `+hostClose)
}

func (c *compiler) extractBlocks(src string, blocks *Blocks) string {
	return blockRe.ReplaceAllStringFunc(src, func(match string) string {
		sub := blockRe.FindStringSubmatch(match)
		blocks.Declare(sub[1], sub[2])
		return ""
	})
}

func (c *compiler) substituteYields(src string, blocks *Blocks) string {
	return c.expandYields(src, blocks, map[string]bool{})
}

// expandYields also resolves yields that appear inside block content. A block
// that yields itself, directly or indirectly, expands to nothing at the
// point of recursion.
func (c *compiler) expandYields(src string, blocks *Blocks, active map[string]bool) string {
	return yieldRe.ReplaceAllStringFunc(src, func(match string) string {
		name := yieldRe.FindStringSubmatch(match)[1]
		if active[name] {
			return ""
		}
		active[name] = true
		defer delete(active, name)
		return c.expandYields(blocks.Yield(name), blocks, active)
	})
}

func (c *compiler) compileEscaped(src string, _ *Blocks) string {
	return escapedRe.ReplaceAllStringFunc(src, func(match string) string {
		expr := escapedRe.FindStringSubmatch(match)[1]
		return hostOpen + " escape (" + rewriteExpr(expr, c.known) + ") " + hostClose
	})
}

func (c *compiler) compileRaw(src string, _ *Blocks) string {
	return rawRe.ReplaceAllStringFunc(src, func(match string) string {
		expr := rawRe.FindStringSubmatch(match)[1]
		return hostOpen + " raw (" + rewriteExpr(expr, c.known) + ") " + hostClose
	})
}

func (c *compiler) compileStatements(src string, _ *Blocks) string {
	return stmtRe.ReplaceAllStringFunc(src, func(match string) string {
		stmt := stmtRe.FindStringSubmatch(match)[1]
		return hostOpen + " " + rewriteStatement(stmt, c.known) + " " + hostClose
	})
}

// parse checks compiled text against the host template grammar.
func (c *compiler) parse(name, compiled string) (*template.Template, error) {
	return template.New(name).
		Delims(hostOpen, hostClose).
		Option("missingkey=error").
		Funcs(c.funcs).
		Parse(compiled)
}

func (c *compiler) known(word string) bool {
	if _, ok := hostKeywords[word]; ok {
		return true
	}
	if _, ok := hostBuiltins[word]; ok {
		return true
	}
	_, ok := c.funcs[word]
	return ok
}
