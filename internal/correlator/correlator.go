// Package correlator pairs annotation comments with the declarations that
// follow them and folds the result into a models.Extension.
package correlator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"blockext/internal/annotation"
	"blockext/internal/models"
)

// commentMarkerWidth is the width of the "//" preceding the annotation text.
const commentMarkerWidth = 2

// Correlate matches every "//@..." comment of file with the statement on the
// line right below it. Any error aborts the run; no partial model is
// returned. Errors are *models.Error.
func Correlate(file *models.SourceFile) (*models.Extension, error) {
	c := &correlation{
		ext: &models.Extension{
			Blocks:    []models.BlockEntry{},
			Internals: []*models.Statement{},
			Menus:     []models.MenuEntry{},
		},
	}
	c.candidates = make([]*models.Statement, 0, len(file.Statements))
	for i := range file.Statements {
		c.candidates = append(c.candidates, &file.Statements[i])
	}

	for _, comment := range file.Comments {
		if !isAnnotation(comment) {
			continue
		}

		ann, err := annotation.Parse(comment.Value)
		if err != nil {
			return nil, translateParseError(comment, err)
		}

		switch a := ann.(type) {
		case *annotation.BlockAnnotation:
			err = c.addBlock(comment, a)
		case *annotation.MenuAnnotation:
			err = c.addMenu(comment, a)
		case *annotation.InitAnnotation:
			err = c.addInitializer(comment)
		case *annotation.InternalAnnotation:
			err = c.addInternal(comment)
		default:
			err = fmt.Errorf("unhandled annotation kind %v", ann.Kind())
		}
		if err != nil {
			return nil, err
		}
	}

	c.ext.Externals = c.candidates
	slog.Debug("correlated extension",
		slog.Int("blocks", len(c.ext.Blocks)),
		slog.Int("menus", len(c.ext.Menus)),
		slog.Int("internals", len(c.ext.Internals)),
		slog.Int("externals", len(c.ext.Externals)),
		slog.Bool("initializer", c.ext.Initializer != nil))
	return c.ext, nil
}

type correlation struct {
	// candidates holds unclaimed statements in source order.
	candidates []*models.Statement
	ext        *models.Extension
}

func isAnnotation(comment models.Comment) bool {
	return comment.Kind == models.CommentLine && strings.HasPrefix(comment.Value, "@")
}

// claim removes and returns the candidate starting on the line after the
// comment, if any.
func (c *correlation) claim(comment models.Comment, accept func(*models.Statement) bool) (*models.Statement, bool) {
	want := comment.Location.Start.Line + 1
	for i, stmt := range c.candidates {
		if stmt.StartLine() != want || !accept(stmt) {
			continue
		}
		c.candidates = append(c.candidates[:i:i], c.candidates[i+1:]...)
		return stmt, true
	}
	return nil, false
}

// peek returns the candidate starting on the line after the comment without
// claiming it.
func (c *correlation) peek(comment models.Comment) *models.Statement {
	want := comment.Location.Start.Line + 1
	for _, stmt := range c.candidates {
		if stmt.StartLine() == want {
			return stmt
		}
	}
	return nil
}

func isFunction(stmt *models.Statement) bool { return stmt.Kind == models.StatementFunction }
func isArray(stmt *models.Statement) bool    { return stmt.Kind == models.StatementArray }

func (c *correlation) claimFunction(comment models.Comment) (*models.Statement, error) {
	fn, ok := c.claim(comment, isFunction)
	if !ok {
		return nil, c.detachedError(comment, "Annotation isn't attached to a function.", "function")
	}
	return fn, nil
}

// detachedError explains why nothing could be claimed for comment.
func (c *correlation) detachedError(comment models.Comment, lead, want string) *models.Error {
	next := comment.Location.Start.Line + 1
	msg := fmt.Sprintf("%s (The %s must start on the next line immediately after the annotation).", lead, want)
	if found := c.peek(comment); found != nil {
		msg += fmt.Sprintf(" Line %d holds a %s statement instead.", next+1, found.Kind)
	} else {
		msg += fmt.Sprintf(" No declaration starts on line %d.", next+1)
	}
	return &models.Error{Kind: models.ErrCorrelation, Message: msg, Location: comment.Location}
}

func (c *correlation) addBlock(comment models.Comment, block *annotation.BlockAnnotation) error {
	fn, err := c.claimFunction(comment)
	if err != nil {
		return err
	}
	if err := checkSignature(comment, block, fn); err != nil {
		return err
	}

	c.ext.Blocks = append(c.ext.Blocks, models.BlockEntry{
		Opcode:     fn.Name,
		BlockKind:  block.BlockKind,
		Text:       block.Text,
		Args:       block.Args,
		Redeclared: block.Redeclared,
		Source:     fn,
		Line:       comment.Location.Start.Line,
	})
	slog.Debug("claimed block",
		slog.String("opcode", fn.Name),
		slog.String("kind", string(block.BlockKind)),
		slog.Int("line", comment.Location.Start.Line+1))
	return nil
}

// checkSignature requires the annotation's argument names to be exactly the
// function's parameter names, each a plain identifier.
func checkSignature(comment models.Comment, block *annotation.BlockAnnotation, fn *models.Statement) error {
	if len(block.Args) != len(fn.Params) {
		return models.NewError(models.ErrCorrelation, comment.Location,
			"Annotation requires exactly %d arguments, but %d were given in the function.", len(block.Args), len(fn.Params))
	}

	for _, p := range fn.Params {
		if !p.Simple {
			return models.NewError(models.ErrCorrelation, comment.Location,
				"Annotated functions can only take named parameters (no default values, rest parameters or destructuring), found %q", p.Name)
		}
	}

	params := make(map[string]bool, len(fn.Params))
	for _, p := range fn.Params {
		params[p.Name] = true
	}
	for _, arg := range block.Args {
		if !params[arg.Name] {
			return models.NewError(models.ErrCorrelation, comment.Location,
				"Annotated function is missing argument %q", arg.Name)
		}
	}
	return nil
}

func (c *correlation) addInitializer(comment models.Comment) error {
	fn, err := c.claimFunction(comment)
	if err != nil {
		return err
	}
	if c.ext.Initializer != nil {
		return models.NewError(models.ErrCorrelation, comment.Location,
			"Multiple initializer annotations found. Only one initializer is allowed.")
	}
	c.ext.Initializer = fn
	slog.Debug("claimed initializer", slog.String("function", fn.Name))
	return nil
}

func (c *correlation) addInternal(comment models.Comment) error {
	fn, err := c.claimFunction(comment)
	if err != nil {
		return err
	}
	c.ext.Internals = append(c.ext.Internals, fn)
	slog.Debug("claimed internal", slog.String("function", fn.Name))
	return nil
}

func (c *correlation) addMenu(comment models.Comment, menu *annotation.MenuAnnotation) error {
	if next := c.peek(comment); next != nil && isFunction(next) {
		// Function-valued menus are a recognized shape, disabled until the
		// runtime can call them.
		return models.NewError(models.ErrCorrelation, comment.Location,
			"Menu %q is attached to function %q; function menus are not supported yet, attach the menu annotation to an array", menu.Name, next.Name)
	}

	arr, ok := c.claim(comment, isArray)
	if !ok {
		return c.detachedError(comment, "Menu annotation must be attached to an array.", "array")
	}
	entry := models.MenuEntry{Name: menu.Name, Source: arr, Line: comment.Location.Start.Line}
	for i, prev := range c.ext.Menus {
		if prev.Name == menu.Name {
			entry.Redeclared = append(append([]int{}, prev.Redeclared...), prev.Line)
			c.ext.Menus[i] = entry
			slog.Debug("redeclared menu", slog.String("menu", menu.Name), slog.Int("previous_line", prev.Line))
			return nil
		}
	}

	c.ext.Menus = append(c.ext.Menus, entry)
	slog.Debug("claimed menu", slog.String("menu", menu.Name))
	return nil
}

// translateParseError moves an annotation-relative error onto the host file.
func translateParseError(comment models.Comment, err error) error {
	var perr *annotation.ParseError
	if !errors.As(err, &perr) {
		return fmt.Errorf("parsing annotation: %w", err)
	}

	base := comment.Location.Start
	col := func(offset int) models.Position {
		return models.Position{Line: base.Line, Column: base.Column + commentMarkerWidth + offset}
	}
	end := perr.Location.End
	if end <= perr.Location.Start {
		end = perr.Location.Start + 1
	}
	return &models.Error{
		Kind:     models.ErrorKind(perr.Kind),
		Message:  perr.Message,
		Location: models.Location{Start: col(perr.Location.Start), End: col(end)},
	}
}
