package annotation

// Node is a flat, JSON-friendly view of any annotation, used by tooling
// that prints parse results.
type Node struct {
	Kind      string    `json:"kind"`
	BlockKind BlockKind `json:"blockKind,omitempty"`
	Text      string    `json:"text,omitempty"`
	Args      []Arg     `json:"args,omitempty"`
	Name      string    `json:"name,omitempty"`
}

// ToNode flattens a.
func ToNode(a Annotation) Node {
	n := Node{Kind: a.Kind().String()}
	switch a := a.(type) {
	case *BlockAnnotation:
		n.BlockKind = a.BlockKind
		n.Text = a.Text
		n.Args = a.Args
	case *MenuAnnotation:
		n.Name = a.Name
	case *InitAnnotation, *InternalAnnotation:
	}
	return n
}
