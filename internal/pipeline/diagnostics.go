package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blockext/internal/lint"
	"blockext/internal/models"
)

// Diagnostic is one message for an editor or terminal. Fatal errors and
// lint findings share this shape.
type Diagnostic struct {
	Severity string          `json:"severity"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Location models.Location `json:"location"`
}

// Check compiles code and reports everything worth showing the author. The
// returned error is non-nil only for failures that are not located in the
// source (internal errors).
func (c *Compiler) Check(ctx context.Context, code []byte) ([]Diagnostic, error) {
	res, err := c.Compile(ctx, code)
	if err != nil {
		var located *models.Error
		if errors.As(err, &located) {
			return []Diagnostic{FromError(located)}, nil
		}
		return nil, err
	}

	diags := []Diagnostic{}
	if res.Lint != nil {
		for _, f := range res.Lint.Findings {
			diags = append(diags, FromFinding(f))
		}
	}
	return diags, nil
}

// FromError converts a located fatal error.
func FromError(err *models.Error) Diagnostic {
	return Diagnostic{
		Severity: lint.SeverityError,
		Code:     string(err.Kind),
		Message:  err.Message,
		Location: err.Location,
	}
}

// FromFinding converts a lint finding. Findings carry a one-based line only,
// so the location spans that whole line start.
func FromFinding(f lint.Finding) Diagnostic {
	line := f.Line - 1
	if line < 0 {
		line = 0
	}
	return Diagnostic{
		Severity: f.Severity,
		Code:     f.Rule,
		Message:  f.Message,
		Location: models.Location{
			Start: models.Position{Line: line},
			End:   models.Position{Line: line, Column: 1},
		},
	}
}

// HasErrors reports whether any diagnostic is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == lint.SeverityError {
			return true
		}
	}
	return false
}

// Render formats d the way compilers do: a "file:line:col" header, the
// offending source line, and a caret line under the span.
func Render(path string, code []byte, d Diagnostic) string {
	start := d.Location.Start
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s: %s [%s]\n", path, start.Line+1, start.Column+1, d.Severity, d.Message, d.Code)

	lines := strings.Split(string(code), "\n")
	if start.Line < 0 || start.Line >= len(lines) {
		return b.String()
	}
	src := []rune(strings.TrimSuffix(lines[start.Line], "\r"))
	b.WriteString(string(src))
	b.WriteString("\n")

	col := start.Column
	if col > len(src) {
		col = len(src)
	}
	width := 1
	if d.Location.End.Line == start.Line && d.Location.End.Column > start.Column {
		width = d.Location.End.Column - start.Column
	}

	var pad strings.Builder
	for _, r := range src[:col] {
		// Keep tabs so the caret lines up in a terminal.
		if r == '\t' {
			pad.WriteRune('\t')
		} else {
			pad.WriteRune(' ')
		}
	}
	b.WriteString(pad.String() + "^" + strings.Repeat("~", width-1) + "\n")
	return b.String()
}
