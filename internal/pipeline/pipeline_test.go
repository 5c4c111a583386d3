package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"blockext/internal/models"
	"blockext/internal/synth"
)

const sampleSource = `//@menu(colors)
["red", "green"];

//@reporter(add five [val:NUMBER])
function addFiveReporter(val) {
  return val + 5;
}

//@command(paint [c:MENU:colors])
function paint(c) {}
`

func newCompiler(t *testing.T, opts Options) *Compiler {
	t.Helper()
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCompile(t *testing.T) {
	c := newCompiler(t, Options{Validate: true, Lint: true, Synth: synth.Options{ClassName: "Adder"}})

	res, err := c.Compile(context.Background(), []byte(sampleSource))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(res.Extension.Blocks) != 2 {
		t.Fatalf("blocks=%d, want 2", len(res.Extension.Blocks))
	}
	if !strings.Contains(res.Output, "class Adder {") {
		t.Fatalf("output missing class:\n%s", res.Output)
	}
	if res.Descriptor.ID != synth.DefaultExtensionID {
		t.Fatalf("Descriptor.ID=%q", res.Descriptor.ID)
	}
	if res.Lint == nil || len(res.Lint.Findings) != 0 {
		t.Fatalf("Lint=%+v, want an empty result", res.Lint)
	}
}

func TestCompileWithoutOptionalStages(t *testing.T) {
	c := newCompiler(t, Options{})

	res, err := c.Compile(context.Background(), []byte(sampleSource))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Lint != nil {
		t.Fatalf("Lint=%+v, want nil when disabled", res.Lint)
	}
}

func TestCompileReturnsLocatedErrors(t *testing.T) {
	c := newCompiler(t, Options{Lint: true})

	tests := []struct {
		name string
		src  string
		kind models.ErrorKind
		line int
	}{
		{"host syntax", "function (\n", models.ErrHostParse, -1},
		{"annotation syntax", "var a;\n//@reporter(x [a NUMBER])\nfunction x(a) {}\n", models.ErrSyntax, 1},
		{"arity", "//@reporter(x [a:NUMBER])\nfunction x(a, b) {}\n", models.ErrCorrelation, 0},
		{"detached", "//@init\n\nfunction s() {}\n", models.ErrCorrelation, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Compile(context.Background(), []byte(tt.src))
			if err == nil {
				t.Fatalf("Compile succeeded: %+v", res)
			}
			var located *models.Error
			if !errors.As(err, &located) {
				t.Fatalf("error type %T, want *models.Error", err)
			}
			if located.Kind != tt.kind {
				t.Fatalf("Kind=%q, want %q (%s)", located.Kind, tt.kind, located.Message)
			}
			if tt.line >= 0 && located.Location.Start.Line != tt.line {
				t.Fatalf("line=%d, want %d", located.Location.Start.Line, tt.line)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	c := newCompiler(t, Options{Lint: true})

	diags, err := c.Check(context.Background(), []byte("//@menu(spare)\n[1];\n//@hat(when [x:MENU:nope])\nfunction when(x) {}\n"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 2 {
		t.Fatalf("diagnostics=%+v, want unused-menu and unresolved-menu", diags)
	}
	if diags[0].Code != "unused-menu" || diags[0].Location.Start.Line != 0 {
		t.Fatalf("first diagnostic=%+v", diags[0])
	}
	if diags[1].Code != "unresolved-menu" || diags[1].Location.Start.Line != 2 {
		t.Fatalf("second diagnostic=%+v", diags[1])
	}
	if HasErrors(diags) {
		t.Fatalf("advisory findings should not count as errors")
	}

	diags, err = c.Check(context.Background(), []byte("//@bogus\nfunction f() {}\n"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 1 || diags[0].Code != string(models.ErrUnknownAnnotation) || !HasErrors(diags) {
		t.Fatalf("diagnostics=%+v, want one UnknownAnnotationKind error", diags)
	}
}

func TestRender(t *testing.T) {
	code := []byte("var a;\n//@reporter(x [a:TYPE])\nfunction x(a) {}\n")
	d := Diagnostic{
		Severity: "error",
		Code:     "UnknownArgumentType",
		Message:  "Unknown annotation argument type 'TYPE'",
		Location: models.Location{
			Start: models.Position{Line: 1, Column: 17},
			End:   models.Position{Line: 1, Column: 21},
		},
	}

	got := Render("ext.js", code, d)
	want := "ext.js:2:18: error: Unknown annotation argument type 'TYPE' [UnknownArgumentType]\n" +
		"//@reporter(x [a:TYPE])\n" +
		"                 ^~~~\n"
	if got != want {
		t.Fatalf("Render=\n%s\nwant\n%s", got, want)
	}
}

func TestRenderOutOfRangeLine(t *testing.T) {
	d := Diagnostic{Severity: "error", Code: "X", Message: "m", Location: models.Location{Start: models.Position{Line: 40}}}
	if got := Render("f.js", []byte("a\n"), d); got != "f.js:41:1: error: m [X]\n" {
		t.Fatalf("Render=%q", got)
	}
}
