package annotation

import "unicode/utf8"

// Tokenize splits an annotation into tokens. It never fails: characters that
// are not punctuation, whitespace or an '@' form are swept into text tokens,
// so labels such as "done?" or "go!" still lex. The result always ends with
// exactly one TokenEnd.
func Tokenize(annotation string) []Token {
	src := newSource(annotation)
	tokens := make([]Token, 0, 16)
	for cur := 0; ; {
		tok, next := scanToken(src, cur)
		tokens = append(tokens, tok)
		if tok.Kind == TokenEnd {
			return tokens
		}
		cur = next
	}
}

var punctuation = map[rune]TokenKind{
	'[': TokenBracketLeft,
	']': TokenBracketRight,
	'(': TokenParenLeft,
	')': TokenParenRight,
	':': TokenColon,
}

// source indexes an annotation by rune and keeps each rune's byte offset.
// Token values are sliced from the original bytes; an invalid byte counts
// as one rune.
type source struct {
	text    string
	runes   []rune
	offsets []int
}

func newSource(text string) source {
	s := source{text: text, offsets: make([]int, 0, len(text)+1)}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		s.runes = append(s.runes, r)
		s.offsets = append(s.offsets, i)
		i += size
	}
	s.offsets = append(s.offsets, len(text))
	return s
}

func (s source) slice(start, end int) string {
	return s.text[s.offsets[start]:s.offsets[end]]
}

// scanToken reads the token starting at cur and returns it with the cursor
// position just past it.
func scanToken(src source, cur int) (Token, int) {
	if cur >= len(src.runes) {
		return Token{Kind: TokenEnd, Location: Location{Start: cur, End: cur}}, cur
	}

	c := src.runes[cur]
	if kind, ok := punctuation[c]; ok {
		return Token{Kind: kind, Value: src.slice(cur, cur+1), Location: Location{Start: cur, End: cur + 1}}, cur + 1
	}

	switch {
	case c == '@':
		end := scanWhile(src, cur+1, isIdentChar)
		return Token{
			Kind:     TokenAt,
			Value:    src.slice(cur+1, end),
			Location: Location{Start: cur, End: end},
		}, end
	case isWhitespace(c):
		end := scanWhile(src, cur, isWhitespace)
		return Token{
			Kind:     TokenWhitespace,
			Value:    src.slice(cur, end),
			Location: Location{Start: cur, End: end},
		}, end
	default:
		end := scanWhile(src, cur, isText)
		return Token{
			Kind:     TokenText,
			Value:    src.slice(cur, end),
			Location: Location{Start: cur, End: end},
		}, end
	}
}

func scanWhile(src source, cur int, pred func(rune) bool) int {
	for cur < len(src.runes) && pred(src.runes[cur]) {
		cur++
	}
	return cur
}

func isIdentChar(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Newlines are deliberately not whitespace; a line comment never holds one.
func isWhitespace(c rune) bool {
	return c == ' ' || c == '\t'
}

func isText(c rune) bool {
	switch c {
	case '[', ']', '(', ')', ':', '@', ' ', '\t':
		return false
	}
	return true
}
