package annotation

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a ParseError.
type ErrorKind string

const (
	ErrSyntax            ErrorKind = "SyntaxError"
	ErrUnknownAnnotation ErrorKind = "UnknownAnnotationKind"
	ErrUnknownArgType    ErrorKind = "UnknownArgumentType"
	ErrInvalidIdentifier ErrorKind = "InvalidIdentifier"
)

// ParseError is a failure located in the annotation string itself.
type ParseError struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Location Location  `json:"location"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (at offset %d)", e.Message, e.Location.Start)
}

func newError(kind ErrorKind, loc Location, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

// RenderError shows the annotation with a caret under the failing offset.
func RenderError(annotation string, err *ParseError) string {
	var b strings.Builder
	b.WriteString("ERROR: ")
	b.WriteString(err.Message)
	b.WriteByte('\n')
	b.WriteString(annotation)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", err.Location.Start))
	b.WriteString("^~~~")
	return b.String()
}
