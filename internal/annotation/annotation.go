package annotation

import "regexp"

// Kind tags the four annotation variants.
type Kind int

const (
	KindBlock Kind = iota
	KindMenu
	KindInit
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindMenu:
		return "menu"
	case KindInit:
		return "init"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Annotation is one parsed annotation. The set of implementations is closed:
// *BlockAnnotation, *MenuAnnotation, *InitAnnotation and *InternalAnnotation.
type Annotation interface {
	Kind() Kind
	annotation()
}

// BlockKind is the block shape named by the annotation keyword.
type BlockKind string

const (
	BlockBoolean     BlockKind = "boolean"
	BlockCommand     BlockKind = "command"
	BlockConditional BlockKind = "conditional"
	BlockEvent       BlockKind = "event"
	BlockHat         BlockKind = "hat"
	BlockLoop        BlockKind = "loop"
	BlockReporter    BlockKind = "reporter"
)

var blockKinds = map[string]BlockKind{
	"boolean":     BlockBoolean,
	"command":     BlockCommand,
	"conditional": BlockConditional,
	"event":       BlockEvent,
	"hat":         BlockHat,
	"loop":        BlockLoop,
	"reporter":    BlockReporter,
}

// ArgType is the declared type of a block argument.
type ArgType string

const (
	ArgAngle   ArgType = "ANGLE"
	ArgBoolean ArgType = "BOOLEAN"
	ArgColor   ArgType = "COLOR"
	ArgNumber  ArgType = "NUMBER"
	ArgString  ArgType = "STRING"
	ArgMatrix  ArgType = "MATRIX"
	ArgNote    ArgType = "NOTE"
	ArgMenu    ArgType = "MENU"
)

// ArgTypes lists every legal argument type in the order error messages show them.
var ArgTypes = []ArgType{ArgAngle, ArgBoolean, ArgColor, ArgNumber, ArgString, ArgMatrix, ArgNote, ArgMenu}

func lookupArgType(s string) (ArgType, bool) {
	for _, t := range ArgTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// ArgSpec describes one argument. For ArgMenu, Default is the menu name and
// is always set; otherwise it is a free-form default value or empty.
type ArgSpec struct {
	Type    ArgType `json:"type"`
	Default string  `json:"default,omitempty"`
}

// Arg is a named argument in declaration order.
type Arg struct {
	Name string  `json:"name"`
	Spec ArgSpec `json:"spec"`
}

// BlockAnnotation declares a block backed by the function below it.
type BlockAnnotation struct {
	BlockKind BlockKind `json:"blockKind"`
	// Text is the label with a "[name]" placeholder per argument.
	Text string `json:"text"`
	Args []Arg  `json:"args"`
	// Redeclared names arguments declared more than once; the last
	// declaration wins but keeps the position of the first.
	Redeclared []string `json:"redeclared,omitempty"`
}

func (*BlockAnnotation) Kind() Kind { return KindBlock }

func (*BlockAnnotation) annotation() {}

// Arg returns the spec recorded for name.
func (b *BlockAnnotation) Arg(name string) (ArgSpec, bool) {
	for _, a := range b.Args {
		if a.Name == name {
			return a.Spec, true
		}
	}
	return ArgSpec{}, false
}

func (b *BlockAnnotation) setArg(name string, spec ArgSpec) {
	for i, a := range b.Args {
		if a.Name == name {
			b.Args[i].Spec = spec
			b.Redeclared = append(b.Redeclared, name)
			return
		}
	}
	b.Args = append(b.Args, Arg{Name: name, Spec: spec})
}

// MenuAnnotation names the array literal below it.
type MenuAnnotation struct {
	Name string `json:"name"`
}

func (*MenuAnnotation) Kind() Kind { return KindMenu }

func (*MenuAnnotation) annotation() {}

// InitAnnotation marks the extension constructor.
type InitAnnotation struct{}

func (*InitAnnotation) Kind() Kind { return KindInit }

func (*InitAnnotation) annotation() {}

// InternalAnnotation marks a helper copied into the extension class.
type InternalAnnotation struct{}

func (*InternalAnnotation) Kind() Kind { return KindInternal }

func (*InternalAnnotation) annotation() {}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdent reports whether s can name an argument or a menu.
func IsValidIdent(s string) bool {
	return identPattern.MatchString(s)
}
