package templating

import (
	"bytes"
	"errors"
	"text/template"

	"github.com/google/uuid"
)

// execute runs tmpl against data and normalizes the result. On any failure
// the partial output is dropped.
func (tm *TemplateManager) execute(id string, tmpl *template.Template, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", &ExpressionError{ID: id, Stage: "execute", Err: err}
	}

	out, err := Normalize(buf.Bytes(), tm.config.Indent)
	if err != nil {
		var fe *formatError
		if errors.As(err, &fe) {
			return "", &DocumentFormatError{ID: id, Line: fe.line, Err: fe.err}
		}
		return "", &DocumentFormatError{ID: id, Err: err}
	}
	return out, nil
}

// newRenderID tags the log lines of one render.
func newRenderID() string {
	return uuid.NewString()
}
