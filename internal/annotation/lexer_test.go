package annotation

import (
	"strings"
	"testing"
)

func TestTokenizeBlockAnnotation(t *testing.T) {
	t.Parallel()

	got := Tokenize("@reporter(add five [val:NUMBER])")
	want := []Token{
		{Kind: TokenAt, Value: "reporter", Location: Location{0, 9}},
		{Kind: TokenParenLeft, Value: "(", Location: Location{9, 10}},
		{Kind: TokenText, Value: "add", Location: Location{10, 13}},
		{Kind: TokenWhitespace, Value: " ", Location: Location{13, 14}},
		{Kind: TokenText, Value: "five", Location: Location{14, 18}},
		{Kind: TokenWhitespace, Value: " ", Location: Location{18, 19}},
		{Kind: TokenBracketLeft, Value: "[", Location: Location{19, 20}},
		{Kind: TokenText, Value: "val", Location: Location{20, 23}},
		{Kind: TokenColon, Value: ":", Location: Location{23, 24}},
		{Kind: TokenText, Value: "NUMBER", Location: Location{24, 30}},
		{Kind: TokenBracketRight, Value: "]", Location: Location{30, 31}},
		{Kind: TokenParenRight, Value: ")", Location: Location{31, 32}},
		{Kind: TokenEnd, Location: Location{32, 32}},
	}

	if len(got) != len(want) {
		t.Fatalf("Tokenize len=%d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d=%+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTokenizeIsLossless(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"@",
		"@foo",
		"sdfhu",
		"  @reporter ( foo sfw wue   weif [ arg  : tyype]  ) ",
		"@sdfbn/eiabn:()DF\"\"",
		"[[[[[[[[[[[[))))((((((((:shfuasnf123",
		"@command(name of command [foo:MENU:  bar ])",
		"@boolean(It's afternoon?\")",
		"@command(grüße ✓ [n:NUMBER]\t!)",
		"@@init\t\t",
		"@command(caf\xff [a:STRING])",
		"\xc3@reporter(\xe2\x9c [x:NUMBER:\xff\xfe])",
	}

	for _, in := range inputs {
		// One rune per invalid byte, as the tokenizer counts them.
		src := []rune(in)
		tokens := Tokenize(in)

		var rebuilt strings.Builder
		ends := 0
		for _, tok := range tokens {
			if tok.Kind == TokenEnd {
				ends++
				if tok.Location.Start != len(src) || tok.Location.End != len(src) {
					t.Fatalf("Tokenize(%q) end location=%+v, want zero width at %d", in, tok.Location, len(src))
				}
				continue
			}
			if tok.Kind == TokenAt {
				rebuilt.WriteByte('@')
			}
			rebuilt.WriteString(tok.Value)
		}
		if ends != 1 || tokens[len(tokens)-1].Kind != TokenEnd {
			t.Fatalf("Tokenize(%q) must end with exactly one end token, got %d", in, ends)
		}
		if rebuilt.String() != in {
			t.Fatalf("Tokenize(%q) spans rebuild %q", in, rebuilt.String())
		}
	}
}

func TestTokenizeLiberalText(t *testing.T) {
	t.Parallel()

	tokens := Tokenize("@sdfbn/eiabn:()DF\"\"")
	kinds := []TokenKind{TokenAt, TokenText, TokenColon, TokenParenLeft, TokenParenRight, TokenText, TokenEnd}
	if len(tokens) != len(kinds) {
		t.Fatalf("Tokenize len=%d, want %d: %+v", len(tokens), len(kinds), tokens)
	}
	for i, k := range kinds {
		if tokens[i].Kind != k {
			t.Fatalf("token %d kind=%v, want %v", i, tokens[i].Kind, k)
		}
	}
	if tokens[0].Value != "sdfbn" {
		t.Fatalf("at value=%q, want %q", tokens[0].Value, "sdfbn")
	}
	if tokens[1].Value != "/eiabn" {
		t.Fatalf("text value=%q, want %q", tokens[1].Value, "/eiabn")
	}
	if tokens[5].Value != `DF""` {
		t.Fatalf("text value=%q, want %q", tokens[5].Value, `DF""`)
	}
}

func TestTokenizeEmptyAtDeclaration(t *testing.T) {
	t.Parallel()

	tokens := Tokenize("@ x")
	if tokens[0].Kind != TokenAt || tokens[0].Value != "" {
		t.Fatalf("first token=%+v, want empty at-declaration", tokens[0])
	}
	if tokens[0].Location != (Location{0, 1}) {
		t.Fatalf("at location=%+v, want {0 1}", tokens[0].Location)
	}
	if tokens[1].Kind != TokenWhitespace || tokens[2].Kind != TokenText {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
}
