package models

import "fmt"

// ErrorKind classifies a fatal pipeline error.
type ErrorKind string

const (
	ErrSyntax            ErrorKind = "SyntaxError"
	ErrUnknownAnnotation ErrorKind = "UnknownAnnotationKind"
	ErrUnknownArgType    ErrorKind = "UnknownArgumentType"
	ErrInvalidIdentifier ErrorKind = "InvalidIdentifier"
	ErrCorrelation       ErrorKind = "CorrelationError"
	ErrHostParse         ErrorKind = "HostParseError"
)

// Error is a failure located in the host file. Every fatal error of a
// correlation run has this shape, whatever stage produced it.
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Location Location  `json:"location"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Location.Start.Line+1, e.Location.Start.Column+1, e.Message)
}

// NewError builds a located error.
func NewError(kind ErrorKind, loc Location, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}
