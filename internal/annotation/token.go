package annotation

// TokenKind identifies the lexical class of a Token.
type TokenKind int

const (
	TokenBracketLeft TokenKind = iota
	TokenBracketRight
	TokenParenLeft
	TokenParenRight
	TokenColon
	TokenAt
	TokenText
	TokenWhitespace
	TokenEnd
)

var tokenKindNames = [...]string{
	TokenBracketLeft:  "'['",
	TokenBracketRight: "']'",
	TokenParenLeft:    "'('",
	TokenParenRight:   "')'",
	TokenColon:        "':'",
	TokenAt:           "'@'",
	TokenText:         "text",
	TokenWhitespace:   "whitespace",
	TokenEnd:          "end of annotation",
}

func (k TokenKind) String() string {
	if k < 0 || int(k) >= len(tokenKindNames) {
		return "unknown"
	}
	return tokenKindNames[k]
}

// Location is a half-open range of character offsets into an annotation string.
type Location struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Token is one lexeme of an annotation. Value holds the identifier for
// TokenAt (without the '@') and the raw characters for text and whitespace.
// Location always covers the full source span, '@' included.
type Token struct {
	Kind     TokenKind
	Value    string
	Location Location
}
