// Package synth renders a correlated extension model as a Scratch
// extension class.
package synth

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"blockext/internal/annotation"
	"blockext/internal/models"
)

const (
	DefaultExtensionID   = "myExtension"
	DefaultExtensionName = "My Extension"
	DefaultClassName     = "MyExtension"
)

// Options names the generated extension. Empty fields take the defaults.
type Options struct {
	ExtensionID   string
	ExtensionName string
	ClassName     string
}

// DefaultOptions returns the names used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ExtensionID:   DefaultExtensionID,
		ExtensionName: DefaultExtensionName,
		ClassName:     DefaultClassName,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ExtensionID == "" {
		o.ExtensionID = d.ExtensionID
	}
	if o.ExtensionName == "" {
		o.ExtensionName = d.ExtensionName
	}
	if o.ClassName == "" {
		o.ClassName = d.ClassName
	}
	return o
}

// Synthesize renders ext as extension source text. It never fails: every
// model the correlator accepts can be rendered.
func Synthesize(ext *models.Extension, opts Options) string {
	opts = opts.withDefaults()
	info := Descriptor(ext, opts)

	var b strings.Builder
	if len(ext.Externals) > 0 {
		texts := make([]string, len(ext.Externals))
		for i, stmt := range ext.Externals {
			texts[i] = stmt.Text
		}
		b.WriteString(strings.Join(texts, "\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("class " + opts.ClassName + " {\n")
	if ext.Initializer != nil {
		b.WriteString("  constructor() " + ext.Initializer.Body + "\n\n")
	}
	writeGetInfo(&b, ext, info)
	for _, block := range ext.Blocks {
		b.WriteString("\n")
		writeBlockMethod(&b, block)
	}
	for _, fn := range ext.Internals {
		b.WriteString("\n  " + methodHead(fn, fn.Name, strings.Join(fn.ParamNames(), ", ")) + " " + fn.Body + "\n")
	}
	b.WriteString("}\n\n")
	b.WriteString("Scratch.extensions.register(new " + opts.ClassName + "());\n")

	slog.Debug("synthesized extension",
		slog.String("class", opts.ClassName),
		slog.Int("blocks", len(info.Blocks)),
		slog.Int("menus", len(info.Menus)))
	return b.String()
}

func writeGetInfo(b *strings.Builder, ext *models.Extension, info *Info) {
	b.WriteString("  getInfo() {\n")
	b.WriteString("    return {\n")
	b.WriteString("      id: " + jsString(info.ID) + ",\n")
	b.WriteString("      name: " + jsString(info.Name) + ",\n")

	if len(info.Blocks) == 0 {
		b.WriteString("      blocks: [],\n")
	} else {
		b.WriteString("      blocks: [\n")
		for i, block := range info.Blocks {
			b.WriteString("        " + toJSON(block))
			if i < len(info.Blocks)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString("      ],\n")
	}

	// Declaration order, not map order.
	menus := staticMenus(ext)
	if len(menus) == 0 {
		b.WriteString("      menus: {}\n")
	} else {
		b.WriteString("      menus: {\n")
		for i, m := range menus {
			menu := info.Menus[m.Name]
			b.WriteString("        " + m.Name + ": {\n")
			b.WriteString("          acceptReporters: true,\n")
			b.WriteString("          items: " + menu.Items + "\n")
			b.WriteString("        }")
			if i < len(menus)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString("      }\n")
	}

	b.WriteString("    };\n")
	b.WriteString("  }\n")
}

// writeBlockMethod emits the block function as a method taking the runtime
// args object. The prologue unpacks each argument into a local of the
// original parameter name.
func writeBlockMethod(b *strings.Builder, block models.BlockEntry) {
	fn := block.Source
	b.WriteString("  " + methodHead(fn, block.Opcode, "args") + " {\n")
	for _, line := range Prologue(block.Args) {
		b.WriteString("    " + line + "\n")
	}
	if fn != nil {
		b.WriteString(strings.TrimPrefix(innerBody(fn.Body), "\n"))
	}
	b.WriteString("  }\n")
}

// Prologue returns the argument-unpacking statements for args, in
// declaration order. NUMBER arguments are coerced with unary plus.
func Prologue(args []annotation.Arg) []string {
	lines := make([]string, 0, len(args))
	for _, a := range args {
		if a.Spec.Type == annotation.ArgNumber {
			lines = append(lines, "var "+a.Name+" = +(args."+a.Name+");")
			continue
		}
		lines = append(lines, "var "+a.Name+" = args."+a.Name+";")
	}
	return lines
}

func methodHead(fn *models.Statement, name, params string) string {
	head := name + "(" + params + ")"
	if fn == nil {
		return head
	}
	if fn.Generator {
		head = "*" + head
	}
	if fn.Async {
		head = "async " + head
	}
	return head
}

// innerBody strips the braces of a statement block, keeping everything
// between them verbatim.
func innerBody(body string) string {
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body
}

func staticMenus(ext *models.Extension) []models.MenuEntry {
	menus := make([]models.MenuEntry, 0, len(ext.Menus))
	for _, m := range ext.Menus {
		if m.IsFunction() {
			slog.Warn("skipping function menu", slog.String("menu", m.Name))
			continue
		}
		menus = append(menus, m)
	}
	return menus
}

func menuItems(stmt *models.Statement) string {
	if stmt == nil {
		return "[]"
	}
	text := strings.TrimSpace(stmt.Text)
	return strings.TrimSpace(strings.TrimSuffix(text, ";"))
}

func toJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

var jsStringEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

func jsString(s string) string {
	return "'" + jsStringEscaper.Replace(s) + "'"
}
