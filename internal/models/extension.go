package models

import "blockext/internal/annotation"

// BlockEntry is a block annotation joined with the function it decorates.
type BlockEntry struct {
	Opcode    string               `json:"opcode"`
	BlockKind annotation.BlockKind `json:"blockKind"`
	Text      string               `json:"text"`
	Args      []annotation.Arg     `json:"args"`
	// Redeclared carries argument names the annotation declared twice.
	Redeclared []string   `json:"redeclared,omitempty"`
	Source     *Statement `json:"-"`
	Line       int        `json:"line"`
}

// MenuEntry is a named menu. Only array literals can currently be
// synthesized; a function-shaped menu is a known shape that the correlator
// rejects until the runtime supports dynamic menus.
type MenuEntry struct {
	Name   string     `json:"name"`
	Source *Statement `json:"-"`
	Line   int        `json:"line"`
	// Redeclared holds the lines of earlier @menu annotations with the same
	// name that this entry replaced.
	Redeclared []int `json:"redeclared,omitempty"`
}

// IsFunction reports whether the menu is backed by a function declaration.
func (m MenuEntry) IsFunction() bool {
	return m.Source != nil && m.Source.Kind == StatementFunction
}

// Extension is the aggregate produced by one correlation run and consumed
// once by the synthesizer.
type Extension struct {
	Initializer *Statement
	Blocks      []BlockEntry
	Internals   []*Statement
	// Menus keeps first-declaration order; names are unique and a later
	// declaration replaces an earlier one in place.
	Menus     []MenuEntry
	Externals []*Statement
}
