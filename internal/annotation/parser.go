package annotation

import (
	"strings"
)

// cursor is an immutable position in a token slice. Advancing returns a new
// cursor, so a parse step can be retried or inspected without rebuilding
// the token stream.
type cursor struct {
	tokens []Token
	pos    int
}

// current returns the token under the cursor, or the trailing TokenEnd once
// the slice is exhausted.
func (c cursor) current() Token {
	if c.pos >= len(c.tokens) {
		return c.tokens[len(c.tokens)-1]
	}
	return c.tokens[c.pos]
}

func (c cursor) is(kind TokenKind) bool {
	return c.current().Kind == kind
}

func (c cursor) advance() cursor {
	if c.pos < len(c.tokens) {
		c.pos++
	}
	return c
}

func (c cursor) skipWhitespace() cursor {
	for c.is(TokenWhitespace) {
		c = c.advance()
	}
	return c
}

// readString concatenates a run of text and whitespace tokens verbatim.
func (c cursor) readString() (string, Location, cursor) {
	var b strings.Builder
	loc := Location{Start: c.current().Location.Start, End: c.current().Location.Start}
	for c.is(TokenText) || c.is(TokenWhitespace) {
		tok := c.current()
		b.WriteString(tok.Value)
		loc.End = tok.Location.End
		c = c.advance()
	}
	return b.String(), loc, c
}

// Parse tokenizes and parses a single annotation such as
// "@reporter(add five [val:NUMBER])". Errors are *ParseError.
func Parse(annotation string) (Annotation, error) {
	return ParseTokens(Tokenize(annotation))
}

// ParseTokens parses a token sequence produced by Tokenize.
func ParseTokens(tokens []Token) (Annotation, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != TokenEnd {
		// Copy so the caller's backing array is never written.
		terminated := make([]Token, len(tokens), len(tokens)+1)
		copy(terminated, tokens)
		tokens = append(terminated, Token{Kind: TokenEnd})
	}

	c := cursor{tokens: tokens}.skipWhitespace()
	if !c.is(TokenAt) {
		return nil, newError(ErrSyntax, c.current().Location, "Annotation must start with '@'")
	}

	at := c.current()
	switch at.Value {
	case "menu":
		return parseMenu(c.advance())
	case "init":
		if err := parseBare(c.advance(), "initializer"); err != nil {
			return nil, err
		}
		return &InitAnnotation{}, nil
	case "internal":
		if err := parseBare(c.advance(), "internal"); err != nil {
			return nil, err
		}
		return &InternalAnnotation{}, nil
	}

	if kind, ok := blockKinds[at.Value]; ok {
		return parseBlock(c.advance(), kind)
	}

	// Point at the identifier, not the '@'.
	loc := Location{Start: at.Location.Start + 1, End: at.Location.End}
	return nil, newError(ErrUnknownAnnotation, loc, "Unknown annotation type '%s'", at.Value)
}

func parseBlock(c cursor, kind BlockKind) (Annotation, error) {
	c = c.skipWhitespace()
	if !c.is(TokenParenLeft) {
		return nil, newError(ErrSyntax, c.current().Location,
			"Block annotation must contain a block description in parentheses")
	}
	c = c.advance()

	block := &BlockAnnotation{BlockKind: kind, Args: []Arg{}}
	var text strings.Builder

loop:
	for {
		switch c.current().Kind {
		case TokenText, TokenWhitespace:
			var s string
			s, _, c = c.readString()
			text.WriteString(s)
		case TokenBracketLeft:
			var (
				arg Arg
				err error
			)
			arg, c, err = parseBlockArg(c.advance())
			if err != nil {
				return nil, err
			}
			text.WriteString("[" + arg.Name + "]")
			block.setArg(arg.Name, arg.Spec)
		case TokenParenRight, TokenEnd:
			break loop
		default:
			return nil, newError(ErrSyntax, c.current().Location, "Illegal token in block annotation")
		}
	}

	if !c.is(TokenParenRight) {
		return nil, newError(ErrSyntax, c.current().Location,
			"Unexpected end of block annotation. Block description must be contained in parentheses")
	}

	c = c.advance().skipWhitespace()
	if !c.is(TokenEnd) {
		return nil, newError(ErrSyntax, c.current().Location, "Unexpected token after block annotation")
	}

	block.Text = text.String()
	return block, nil
}

// parseBlockArg parses "name:TYPE[:default]]" with the cursor just past '['.
func parseBlockArg(c cursor) (Arg, cursor, error) {
	c = c.skipWhitespace()
	if !c.is(TokenText) {
		return Arg{}, c, newError(ErrSyntax, c.current().Location, "Expected argument name")
	}
	name := c.current()
	if !IsValidIdent(name.Value) {
		return Arg{}, c, newError(ErrInvalidIdentifier, name.Location,
			"Block argument must begin with letter or underscore and contain only letters, numbers, and underscores")
	}

	c = c.advance().skipWhitespace()
	if !c.is(TokenColon) {
		return Arg{}, c, newError(ErrSyntax, c.current().Location,
			"Argument name must be followed by ':' and an argument type")
	}

	c = c.advance().skipWhitespace()
	if !c.is(TokenText) {
		return Arg{}, c, newError(ErrSyntax, c.current().Location, "Expected argument type")
	}
	typeTok := c.current()
	argType, ok := lookupArgType(typeTok.Value)
	if !ok {
		return Arg{}, c, newError(ErrUnknownArgType, typeTok.Location,
			"Unknown annotation argument type '%s'. Must be one of: %s", typeTok.Value, joinArgTypes())
	}

	c = c.advance().skipWhitespace()
	spec := ArgSpec{Type: argType}
	if argType == ArgMenu {
		if !c.is(TokenColon) {
			return Arg{}, c, newError(ErrSyntax, c.current().Location, "Menu argument requires a menu name")
		}
		c = c.advance().skipWhitespace()
		if !c.is(TokenText) {
			return Arg{}, c, newError(ErrInvalidIdentifier, c.current().Location, "Menu argument requires a menu name")
		}
		var (
			menu string
			loc  Location
		)
		menu, loc, c = c.readString()
		menu = strings.TrimSpace(menu)
		if !IsValidIdent(menu) {
			return Arg{}, c, newError(ErrInvalidIdentifier, loc,
				"Menu name must begin with letter or underscore and contain only letters, numbers, and underscores")
		}
		spec.Default = menu
	} else if c.is(TokenColon) {
		c = c.advance()
		if !c.is(TokenText) && !c.is(TokenWhitespace) {
			return Arg{}, c, newError(ErrSyntax, c.current().Location, "Expected default value for argument")
		}
		spec.Default, _, c = c.readString()
	}

	if !c.is(TokenBracketRight) {
		return Arg{}, c, newError(ErrSyntax, c.current().Location, "Expected argument declaration to end with ]")
	}
	return Arg{Name: name.Value, Spec: spec}, c.advance(), nil
}

func parseMenu(c cursor) (Annotation, error) {
	const usage = "Menu annotation must be followed by a menu name in parentheses"

	c = c.skipWhitespace()
	if !c.is(TokenParenLeft) {
		return nil, newError(ErrSyntax, c.current().Location, usage)
	}

	c = c.advance().skipWhitespace()
	if !c.is(TokenText) {
		return nil, newError(ErrSyntax, c.current().Location, usage)
	}
	name := c.current()
	if !IsValidIdent(name.Value) {
		return nil, newError(ErrInvalidIdentifier, name.Location,
			"Menu name must begin with letter or underscore and contain only letters, numbers, and underscores")
	}

	c = c.advance().skipWhitespace()
	switch {
	case c.is(TokenEnd):
		return nil, newError(ErrSyntax, c.current().Location, "Unexpected end of menu annotation. Expected ')'")
	case !c.is(TokenParenRight):
		return nil, newError(ErrSyntax, c.current().Location, "Unexpected token in menu annotation. Expected ')'")
	}

	c = c.advance().skipWhitespace()
	if !c.is(TokenEnd) {
		return nil, newError(ErrSyntax, c.current().Location, "Unexpected token after menu annotation")
	}
	return &MenuAnnotation{Name: name.Value}, nil
}

// parseBare accepts only trailing whitespace after the keyword.
func parseBare(c cursor, what string) error {
	c = c.skipWhitespace()
	if !c.is(TokenEnd) {
		return newError(ErrSyntax, c.current().Location, "Unexpected token in %s annotation", what)
	}
	return nil
}

func joinArgTypes() string {
	names := make([]string, len(ArgTypes))
	for i, t := range ArgTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
