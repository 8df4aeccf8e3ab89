package templating

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncludeCycle is wrapped by a LookupError when a template includes
	// itself, directly or through other templates.
	ErrIncludeCycle = errors.New("include cycle")
	// ErrIncludeDepth is wrapped by a LookupError when inclusion nests deeper
	// than Config.MaxIncludeDepth.
	ErrIncludeDepth = errors.New("include depth exceeded")
	// ErrInvalidID is wrapped by a LookupError when an identifier does not
	// name a valid path inside the template source.
	ErrInvalidID = errors.New("invalid template identifier")
)

// LookupError reports a template or include target that could not be loaded.
type LookupError struct {
	ID    string   // Identifier that failed to load
	Chain []string // Templates that were including ID, outermost first
	Err   error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("template %q: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("template %q (included from %s): %v", e.ID, strings.Join(e.Chain, " -> "), e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// ExpressionError reports an invalid expression or statement, or a failure
// while evaluating one (for example a reference to an undefined name).
type ExpressionError struct {
	ID    string
	Stage string // "parse" or "execute"
	Err   error
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	return fmt.Sprintf("template %q: %s: %v", e.ID, e.Stage, e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

// DocumentFormatError reports rendered output that is not a well-formed
// document. The output itself is discarded.
type DocumentFormatError struct {
	ID   string
	Line int // 1-based line in the rendered output, 0 when unknown
	Err  error
}

// Error implements the error interface.
func (e *DocumentFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("template %q: malformed output at line %d: %v", e.ID, e.Line, e.Err)
	}
	return fmt.Sprintf("template %q: malformed output: %v", e.ID, e.Err)
}

func (e *DocumentFormatError) Unwrap() error { return e.Err }
