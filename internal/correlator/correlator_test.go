package correlator

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"blockext/internal/annotation"
	"blockext/internal/models"
	"blockext/internal/parser"
)

func correlateSource(t *testing.T, src string) (*models.Extension, error) {
	t.Helper()
	file, err := parser.NewJavaScriptParser().ParseSource([]byte(src))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	return Correlate(file)
}

func mustFail(t *testing.T, src string, kind models.ErrorKind, fragment string) *models.Error {
	t.Helper()
	ext, err := correlateSource(t, src)
	if err == nil {
		t.Fatalf("Correlate succeeded with %+v, want error containing %q", ext, fragment)
	}
	if ext != nil {
		t.Fatalf("Correlate returned a partial model alongside %v", err)
	}
	var merr *models.Error
	if !errors.As(err, &merr) {
		t.Fatalf("error type %T, want *models.Error", err)
	}
	if merr.Kind != kind {
		t.Fatalf("Kind=%q, want %q (%s)", merr.Kind, kind, merr.Message)
	}
	if !strings.Contains(merr.Message, fragment) {
		t.Fatalf("Message=%q, want it to contain %q", merr.Message, fragment)
	}
	return merr
}

func TestCorrelateArgumentRoundTrip(t *testing.T) {
	t.Parallel()

	ext, err := correlateSource(t, `//@reporter(add five [val:NUMBER])
function addFiveReporter(val) {
  return val + 5;
}
`)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if len(ext.Blocks) != 1 {
		t.Fatalf("blocks=%d, want 1", len(ext.Blocks))
	}

	block := ext.Blocks[0]
	if block.Opcode != "addFiveReporter" {
		t.Fatalf("Opcode=%q", block.Opcode)
	}
	if block.BlockKind != annotation.BlockReporter {
		t.Fatalf("BlockKind=%q", block.BlockKind)
	}
	if block.Text != "add five [val]" {
		t.Fatalf("Text=%q, want %q", block.Text, "add five [val]")
	}
	want := []annotation.Arg{{Name: "val", Spec: annotation.ArgSpec{Type: annotation.ArgNumber}}}
	if !reflect.DeepEqual(block.Args, want) {
		t.Fatalf("Args=%+v, want %+v", block.Args, want)
	}
	if block.Source == nil || block.Source.Name != "addFiveReporter" {
		t.Fatalf("Source=%+v", block.Source)
	}
	if len(ext.Externals) != 0 {
		t.Fatalf("externals=%d, want 0", len(ext.Externals))
	}
}

func TestCorrelateFullExtension(t *testing.T) {
	t.Parallel()

	ext, err := correlateSource(t, `const base = 10;

//@init
function setup() {
  this.count = 0;
}

//@menu(colors)
["red", "green", "blue"];

// a regular comment
//@command(paint [target:STRING] [color:MENU:colors])
function paint(color, target) {
  log(target, color);
}

//@internal
function log(a, b) {
  console.log(a, b);
}

function helper() {}
`)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}

	if ext.Initializer == nil || ext.Initializer.Name != "setup" {
		t.Fatalf("Initializer=%+v", ext.Initializer)
	}
	if len(ext.Menus) != 1 || ext.Menus[0].Name != "colors" || ext.Menus[0].IsFunction() {
		t.Fatalf("Menus=%+v", ext.Menus)
	}
	if len(ext.Blocks) != 1 || ext.Blocks[0].Opcode != "paint" {
		t.Fatalf("Blocks=%+v", ext.Blocks)
	}
	if spec, _ := (&annotation.BlockAnnotation{Args: ext.Blocks[0].Args}).Arg("color"); spec.Default != "colors" {
		t.Fatalf("color arg=%+v", spec)
	}
	if len(ext.Internals) != 1 || ext.Internals[0].Name != "log" {
		t.Fatalf("Internals=%+v", ext.Internals)
	}

	if len(ext.Externals) != 2 {
		t.Fatalf("externals=%d, want 2", len(ext.Externals))
	}
	if ext.Externals[0].Text != "const base = 10;" || ext.Externals[1].Name != "helper" {
		t.Fatalf("externals out of order: %q, %q", ext.Externals[0].Text, ext.Externals[1].Name)
	}
}

func TestCorrelateArityMismatch(t *testing.T) {
	t.Parallel()

	mustFail(t, "//@reporter(sum [a:NUMBER])\nfunction sum(a, b) {}\n",
		models.ErrCorrelation, "requires exactly 1 arguments, but 2 were given")
}

func TestCorrelateMissingArgument(t *testing.T) {
	t.Parallel()

	mustFail(t, "//@command(go [a:NUMBER])\nfunction go(b) {}\n",
		models.ErrCorrelation, `missing argument "a"`)
}

func TestCorrelateRejectsNonSimpleParameters(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"//@command(go [a:NUMBER])\nfunction go(a = 1) {}\n",
		"//@command(go [a:NUMBER])\nfunction go(...a) {}\n",
		"//@command(go [a:NUMBER])\nfunction go({ a }) {}\n",
	} {
		mustFail(t, src, models.ErrCorrelation, "can only take named parameters")
	}
}

func TestCorrelateAdjacency(t *testing.T) {
	t.Parallel()

	err := mustFail(t, "//@init\n\nfunction setup() {}\n", models.ErrCorrelation, "Annotation isn't attached to a function")
	if err.Location.Start.Line != 0 {
		t.Fatalf("error line=%d, want the annotation line 0", err.Location.Start.Line)
	}
	if !strings.Contains(err.Message, "No declaration starts on line 2") {
		t.Fatalf("Message=%q should name the expected line", err.Message)
	}

	err = mustFail(t, "//@internal\nvar x = 1;\n", models.ErrCorrelation, "Annotation isn't attached to a function")
	if !strings.Contains(err.Message, "holds a other statement") {
		t.Fatalf("Message=%q should name what was found", err.Message)
	}

	mustFail(t, "//@reporter(x)\n// spacer\nfunction x() {}\n", models.ErrCorrelation, "Annotation isn't attached to a function")
}

func TestCorrelateMultipleInitializers(t *testing.T) {
	t.Parallel()

	mustFail(t, "//@init\nfunction a() {}\n//@init\nfunction b() {}\n",
		models.ErrCorrelation, "Multiple initializer annotations found")
}

func TestCorrelateMenus(t *testing.T) {
	t.Parallel()

	mustFail(t, "//@menu(colors)\nvar colors = [1];\n", models.ErrCorrelation, "Menu annotation must be attached to an array")
	mustFail(t, "//@menu(colors)\nfunction colors() { return []; }\n", models.ErrCorrelation, "function menus are not supported")
}

func TestCorrelateRedeclaredMenuLastWins(t *testing.T) {
	t.Parallel()

	ext, err := correlateSource(t, "//@menu(colors)\n[1];\n//@menu(sizes)\n[3];\n//@menu(colors)\n[2];\n")
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if len(ext.Menus) != 2 || ext.Menus[0].Name != "colors" || ext.Menus[1].Name != "sizes" {
		t.Fatalf("Menus=%+v, want colors then sizes", ext.Menus)
	}
	colors := ext.Menus[0]
	if colors.Source.Text != "[2];" || colors.Line != 4 {
		t.Fatalf("colors=%+v source=%q, want the declaration on line 4", colors, colors.Source.Text)
	}
	if !reflect.DeepEqual(colors.Redeclared, []int{0}) {
		t.Fatalf("Redeclared=%v, want [0]", colors.Redeclared)
	}
	if len(ext.Externals) != 0 {
		t.Fatalf("Externals=%d, want both arrays claimed", len(ext.Externals))
	}
}

func TestCorrelateTranslatesAnnotationErrors(t *testing.T) {
	t.Parallel()

	err := mustFail(t, "var x;\n  //@command(a : b)\nfunction f() {}\n", models.ErrSyntax, "Illegal token in block annotation")
	want := models.Location{
		Start: models.Position{Line: 1, Column: 15},
		End:   models.Position{Line: 1, Column: 16},
	}
	if err.Location != want {
		t.Fatalf("Location=%+v, want %+v", err.Location, want)
	}

	mustFail(t, "//@reporter(v [arg:TYPE])\nfunction r(arg) {}\n", models.ErrUnknownArgType, "'TYPE'")
	mustFail(t, "//@command(c [foo:MENU:])\nfunction c(foo) {}\n", models.ErrInvalidIdentifier, "menu name")
	mustFail(t, "//@widget(c)\nfunction c() {}\n", models.ErrUnknownAnnotation, "Unknown annotation type 'widget'")
}

func TestCorrelateIgnoresPlainComments(t *testing.T) {
	t.Parallel()

	ext, err := correlateSource(t, "// @reporter(x)\n/* @init */\n//\nfunction f() {}\n")
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if len(ext.Blocks) != 0 || ext.Initializer != nil || len(ext.Externals) != 1 {
		t.Fatalf("unexpected model %+v", ext)
	}
}

func TestCorrelateHandBuiltFile(t *testing.T) {
	t.Parallel()

	at := func(line int) models.Location {
		return models.Location{Start: models.Position{Line: line}, End: models.Position{Line: line, Column: 1}}
	}
	file := &models.SourceFile{
		Statements: []models.Statement{
			{Kind: models.StatementOther, Location: at(0), Text: "a;"},
			{Kind: models.StatementFunction, Location: at(2), Name: "f", Params: []models.Param{}},
			{Kind: models.StatementOther, Location: at(3), Text: "b;"},
		},
		Comments: []models.Comment{
			{Kind: models.CommentLine, Value: "@internal", Location: at(1)},
		},
	}

	ext, err := Correlate(file)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if len(ext.Internals) != 1 || ext.Internals[0] != &file.Statements[1] {
		t.Fatalf("Internals=%+v", ext.Internals)
	}
	if len(ext.Externals) != 2 || ext.Externals[0].Text != "a;" || ext.Externals[1].Text != "b;" {
		t.Fatalf("Externals=%+v", ext.Externals)
	}
}

func TestCorrelateIsDeterministic(t *testing.T) {
	t.Parallel()

	src := "//@command(say [msg:STRING:hi])\nfunction say(msg) {}\nvar z = 1;\n"
	a, errA := correlateSource(t, src)
	b, errB := correlateSource(t, src)
	if errA != nil || errB != nil {
		t.Fatalf("Correlate errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Correlate not deterministic:\n%+v\n%+v", a, b)
	}
}
