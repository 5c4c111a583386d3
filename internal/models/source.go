package models

// Position is a zero-based line and column in a host source file. Columns
// count characters, not bytes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Location is the span between two positions.
type Location struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// StatementKind is the top-level declaration shape the correlator cares about.
type StatementKind int

const (
	StatementOther StatementKind = iota
	StatementFunction
	StatementArray
)

func (k StatementKind) String() string {
	switch k {
	case StatementFunction:
		return "function"
	case StatementArray:
		return "array"
	}
	return "other"
}

// Param is one formal parameter of a function declaration. Simple is true
// only for a bare identifier: defaults, rest and destructuring patterns are
// not simple.
type Param struct {
	Name   string `json:"name"`
	Simple bool   `json:"simple"`
}

// Statement is a top-level statement of the host file.
type Statement struct {
	Kind      StatementKind `json:"kind"`
	NodeType  string        `json:"node_type"`
	Location  Location      `json:"location"`
	StartByte int           `json:"start_byte"`
	EndByte   int           `json:"end_byte"`
	// Text is the statement exactly as written.
	Text string `json:"text"`

	// Function declarations only.
	Name      string  `json:"name,omitempty"`
	Params    []Param `json:"params,omitempty"`
	Body      string  `json:"body,omitempty"`
	Async     bool    `json:"async,omitempty"`
	Generator bool    `json:"generator,omitempty"`
}

// StartLine is the zero-based line the statement begins on.
func (s *Statement) StartLine() int {
	return s.Location.Start.Line
}

// ParamNames lists the declared parameter names in order.
func (s *Statement) ParamNames() []string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return names
}

// CommentKind distinguishes "//" comments from "/* */" comments.
type CommentKind int

const (
	CommentLine CommentKind = iota
	CommentBlock
)

// Comment is a comment anywhere in the host file, in source order.
type Comment struct {
	Kind CommentKind `json:"kind"`
	// Value is the text after the comment marker, untrimmed.
	Value    string   `json:"value"`
	Location Location `json:"location"`
}

// SourceFile is what a source parser hands to the correlator.
type SourceFile struct {
	Statements []Statement
	Comments   []Comment
}
