// Package pipeline runs one compilation of an annotated extension file:
// host parse, correlation, synthesis, then the optional contract check and
// lint pass. Each run is independent; a Compiler only caches the compiled
// schema and prepared rules.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"blockext/internal/correlator"
	"blockext/internal/lint"
	"blockext/internal/models"
	"blockext/internal/parser"
	"blockext/internal/synth"
	"blockext/internal/validator"
)

// Options configures a Compiler.
type Options struct {
	Synth synth.Options
	// Validate checks every descriptor against the CUE contract.
	Validate bool
	// Lint runs the Rego rules after a successful correlation.
	Lint         bool
	LintRulesDir string
}

// Result is the outcome of a successful run.
type Result struct {
	Extension  *models.Extension
	Descriptor *synth.Info
	Output     string
	// Lint is nil when linting is disabled.
	Lint *lint.Result
}

type Compiler struct {
	opts   Options
	source parser.SourceParser
	engine *lint.Engine

	// cue.Context is not safe for concurrent use.
	mu        sync.Mutex
	validator *validator.Validator
}

// New creates a Compiler for JavaScript sources.
func New(opts Options) (*Compiler, error) {
	return NewWithParser(parser.NewJavaScriptParser(), opts)
}

// NewWithParser creates a Compiler over an arbitrary source provider.
func NewWithParser(source parser.SourceParser, opts Options) (*Compiler, error) {
	c := &Compiler{opts: opts, source: source}

	if opts.Validate {
		v, err := validator.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create descriptor validator: %w", err)
		}
		c.validator = v
	}

	if opts.Lint {
		e, err := lint.New(opts.LintRulesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load lint rules: %w", err)
		}
		c.engine = e
	}

	return c, nil
}

// Options returns the options the compiler was created with.
func (c *Compiler) Options() Options {
	return c.opts
}

// Correlate parses code and builds the extension model without rendering it.
func (c *Compiler) Correlate(code []byte) (*models.Extension, error) {
	file, err := c.source.ParseSource(code)
	if err != nil {
		return nil, err
	}
	return correlator.Correlate(file)
}

// Compile runs the whole pipeline. Located failures are returned as
// *models.Error unwrapped; anything else is an internal error.
func (c *Compiler) Compile(ctx context.Context, code []byte) (*Result, error) {
	ext, err := c.Correlate(code)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Extension:  ext,
		Descriptor: synth.Descriptor(ext, c.opts.Synth),
		Output:     synth.Synthesize(ext, c.opts.Synth),
	}

	if c.validator != nil {
		if err := c.validate(res.Descriptor); err != nil {
			return nil, fmt.Errorf("generated descriptor violates the runtime contract: %w", err)
		}
	}

	if c.engine != nil {
		lr, err := c.engine.Check(ctx, ext)
		if err != nil {
			return nil, fmt.Errorf("failed to lint extension: %w", err)
		}
		res.Lint = lr
	}

	slog.Debug("compiled extension",
		slog.Int("blocks", len(ext.Blocks)),
		slog.Int("menus", len(ext.Menus)),
		slog.Int("externals", len(ext.Externals)))
	return res, nil
}

func (c *Compiler) validate(info *synth.Info) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validator.Validate(info)
}
