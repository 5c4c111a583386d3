// Package lint runs advisory Rego rules over a correlated extension.
// Findings never change the model and are never fatal.
package lint

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"blockext/internal/annotation"
	"blockext/internal/models"
)

//go:embed rules.rego
var builtinRules string

const (
	queryViolations = "data.blockext.lint.all_violations"
	querySummary    = "data.blockext.lint.summary"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Engine holds the prepared rule queries. Prepared queries are safe for
// concurrent evaluation.
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
}

// Finding is one rule hit. Line is one-based.
type Finding struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

type Result struct {
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
}

type Summary struct {
	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Input is the JSON projection of an extension the rules see.
type Input struct {
	Blocks []Block `json:"blocks"`
	Menus  []Menu  `json:"menus"`
}

type Block struct {
	Opcode     string   `json:"opcode"`
	BlockType  string   `json:"block_type"`
	Text       string   `json:"text"`
	Line       int      `json:"line"`
	Args       []Arg    `json:"args"`
	Redeclared []string `json:"redeclared"`
}

type Arg struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default"`
	Menu    string `json:"menu"`
}

type Menu struct {
	Name       string `json:"name"`
	Line       int    `json:"line"`
	Redeclared []int  `json:"redeclared"`
}

// New prepares the built-in rules plus any *.rego files in extraDir.
// An empty extraDir uses the built-in rules only.
func New(extraDir string) (*Engine, error) {
	modules := []func(*rego.Rego){rego.Module("rules.rego", builtinRules)}

	if extraDir != "" {
		files, err := filepath.Glob(filepath.Join(extraDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding rule files: %w", err)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
		}
	}

	engine := &Engine{
		queries: make(map[string]rego.PreparedEvalQuery),
	}
	for name, q := range map[string]string{"violations": queryViolations, "summary": querySummary} {
		opts := append(append([]func(*rego.Rego){}, modules...), rego.Query(q))
		query, err := rego.New(opts...).PrepareForEval(context.Background())
		if err != nil {
			return nil, fmt.Errorf("preparing %s query: %w", name, err)
		}
		engine.queries[name] = query
	}

	return engine, nil
}

// InputFromExtension projects ext into the shape the rules expect.
func InputFromExtension(ext *models.Extension) Input {
	input := Input{Blocks: []Block{}, Menus: []Menu{}}
	for _, b := range ext.Blocks {
		block := Block{
			Opcode:     b.Opcode,
			BlockType:  string(b.BlockKind),
			Text:       b.Text,
			Line:       b.Line + 1,
			Args:       []Arg{},
			Redeclared: []string{},
		}
		block.Redeclared = append(block.Redeclared, b.Redeclared...)
		for _, a := range b.Args {
			arg := Arg{Name: a.Name, Type: string(a.Spec.Type), Default: a.Spec.Default}
			if a.Spec.Type == annotation.ArgMenu {
				arg.Menu = a.Spec.Default
			}
			block.Args = append(block.Args, arg)
		}
		input.Blocks = append(input.Blocks, block)
	}
	for _, m := range ext.Menus {
		menu := Menu{Name: m.Name, Line: m.Line + 1, Redeclared: []int{}}
		for _, line := range m.Redeclared {
			menu.Redeclared = append(menu.Redeclared, line+1)
		}
		input.Menus = append(input.Menus, menu)
	}
	return input
}

// Check lints a correlated extension.
func (e *Engine) Check(ctx context.Context, ext *models.Extension) (*Result, error) {
	return e.Evaluate(ctx, InputFromExtension(ext))
}

// Evaluate runs every rule over input. Findings are ordered by line, then rule.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{Findings: []Finding{}}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}

	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Findings = append(result.Findings, Finding{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					Line:     getInt(vmap, "line"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}
	sort.SliceStable(result.Findings, func(i, j int) bool {
		a, b := result.Findings[i], result.Findings[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}

	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		smap, ok := rs[0].Expressions[0].Value.(map[string]interface{})
		if ok {
			result.Summary = Summary{
				Total:    getInt(smap, "total"),
				Errors:   getInt(smap, "errors"),
				Warnings: getInt(smap, "warnings"),
				Info:     getInt(smap, "info"),
			}
		}
	}

	return result, nil
}

// HasErrors reports whether any finding has error severity.
func (r *Result) HasErrors() bool {
	return r.Summary.Errors > 0
}

func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
