package templating

import (
	"strconv"
	"strings"
)

// Keywords of the host template language. They are never rewritten.
var hostKeywords = map[string]struct{}{
	"if": {}, "else": {}, "end": {}, "range": {}, "with": {}, "define": {},
	"template": {}, "block": {}, "break": {}, "continue": {},
	"nil": {}, "true": {}, "false": {},
}

// Builtin functions of the host template language.
var hostBuiltins = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "call": {}, "html": {}, "index": {},
	"slice": {}, "js": {}, "len": {}, "print": {}, "printf": {}, "println": {},
	"urlquery": {}, "eq": {}, "ne": {}, "lt": {}, "le": {}, "gt": {}, "ge": {},
}

// Keywords after which a new command starts.
var commandKeywords = map[string]struct{}{
	"if": {}, "range": {}, "with": {},
}

// statementAliases are accepted closing words for statement directives.
var statementAliases = map[string]string{
	"endif":    "end",
	"endrange": "end",
	"endwith":  "end",
	"endfor":   "end",
}

type tokenKind int

const (
	tokSpace tokenKind = iota
	tokLiteral
	tokRef
	tokIdent
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// rewriteExpr resolves bare names against the binding context, so
// "contact.email" reads .contact.email. Variables ($x), explicit fields (.x),
// literals and keywords pass through unchanged.
//
// A name that is also a function is a call only when it starts a command and
// has arguments ("upper name"). Anywhere else ("list" alone, or "title" as an
// argument) it compiles to lookup, which prefers a context entry of that name
// and falls back to calling the function without arguments. A function name
// followed by a field ("date.year") is always a context path.
func rewriteExpr(expr string, known func(string) bool) string {
	toks := tokenize(expr)

	var b strings.Builder
	b.Grow(len(expr) + 8)
	for i, t := range toks {
		if t.kind != tokIdent {
			b.WriteString(t.text)
			continue
		}
		word := t.text
		if _, ok := hostKeywords[word]; ok {
			b.WriteString(word)
			continue
		}
		followedByField := i+1 < len(toks) && toks[i+1].kind == tokRef && toks[i+1].text[0] == '.'
		switch {
		case !known(word) || followedByField:
			b.WriteString("." + word)
		case commandHead(toks, i) && hasArgs(toks, i):
			b.WriteString(word)
		default:
			b.WriteString(`(lookup . "` + word + `")`)
		}
	}
	return b.String()
}

// commandHead reports whether toks[i] is the first operand of a command.
func commandHead(toks []token, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch toks[j].kind {
		case tokSpace:
			continue
		case tokPunct:
			switch toks[j].text {
			case "(", "|", "=":
				return true
			}
			return false
		case tokIdent:
			_, ok := commandKeywords[toks[j].text]
			return ok
		default:
			return false
		}
	}
	return true
}

// hasArgs reports whether another operand follows toks[i] in its command.
func hasArgs(toks []token, i int) bool {
	for j := i + 1; j < len(toks); j++ {
		switch toks[j].kind {
		case tokSpace:
			continue
		case tokPunct:
			return toks[j].text == "("
		default:
			return true
		}
	}
	return false
}

// tokenize splits an expression into the pieces rewriteExpr cares about.
// Single-quoted strings are converted to double-quoted literals on the way.
func tokenize(expr string) []token {
	var toks []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == '"':
			j := scanQuoted(expr, i, c)
			toks = append(toks, token{tokLiteral, expr[i:j]})
			i = j
		case c == '\'':
			j := scanQuoted(expr, i, c)
			toks = append(toks, token{tokLiteral, singleToDouble(expr[i:j])})
			i = j
		case c == '`':
			j := strings.IndexByte(expr[i+1:], '`')
			if j < 0 {
				toks = append(toks, token{tokLiteral, expr[i:]})
				return toks
			}
			toks = append(toks, token{tokLiteral, expr[i : i+j+2]})
			i += j + 2
		case c == '$' || c == '.':
			j := i + 1
			for j < len(expr) && isIdentChar(expr[j]) {
				j++
			}
			toks = append(toks, token{tokRef, expr[i:j]})
			i = j
		case isDigit(c):
			j := scanNumber(expr, i)
			toks = append(toks, token{tokLiteral, expr[i:j]})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(expr) && isIdentChar(expr[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, expr[i:j]})
			i = j
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			j := i + 1
			for j < len(expr) && strings.IndexByte(" \t\n\r", expr[j]) >= 0 {
				j++
			}
			toks = append(toks, token{tokSpace, expr[i:j]})
			i = j
		default:
			toks = append(toks, token{tokPunct, expr[i : i+1]})
			i++
		}
	}
	return toks
}

// rewriteStatement applies rewriteExpr to a statement after resolving
// closing aliases such as "endif".
func rewriteStatement(stmt string, known func(string) bool) string {
	if alias, ok := statementAliases[strings.ToLower(strings.TrimSpace(stmt))]; ok {
		return alias
	}
	return rewriteExpr(stmt, known)
}

func scanQuoted(s string, start int, quote byte) int {
	i := start + 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		}
		i++
	}
	return len(s)
}

// singleToDouble turns a single-quoted string into a double-quoted one, since
// the host language reads single quotes as a rune.
func singleToDouble(lit string) string {
	inner := strings.TrimPrefix(lit, "'")
	inner = strings.TrimSuffix(inner, "'")
	return strconv.Quote(strings.ReplaceAll(inner, `\'`, "'"))
}

func scanNumber(s string, start int) int {
	i := start
	for i < len(s) {
		c := s[i]
		switch {
		case isIdentChar(c) || c == '.':
			i++
		case (c == '+' || c == '-') && i > start && (s[i-1] == 'e' || s[i-1] == 'E' || s[i-1] == 'p' || s[i-1] == 'P'):
			i++
		default:
			return i
		}
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
