package compiler

import (
	"errors"
	"strings"
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) [ ] { } , . .. ..= : :: ; -> => ? | |> + - * ** / % & ^ ~ << >> = += -= *= /= %= == != < <= > >=`
	expected := []TokenType{
		TokenLParen, TokenRParen, TokenLBracket, TokenRBracket, TokenLBrace, TokenRBrace,
		TokenComma, TokenDot, TokenDotDot, TokenDotDotEq, TokenColon, TokenColonColon,
		TokenSemicolon, TokenArrow, TokenFatArrow, TokenQuestion, TokenPipe, TokenPipeGt,
		TokenPlus, TokenMinus, TokenStar, TokenStarStar, TokenSlash, TokenPercent,
		TokenAmp, TokenCaret, TokenTilde, TokenShl, TokenShr, TokenAssign, TokenPlusEq,
		TokenMinusEq, TokenStarEq, TokenSlashEq, TokenPercentEq, TokenEq, TokenNotEq,
		TokenLess, TokenLessEq, TokenGreater, TokenGreaterEq, TokenEOF,
	}

	tokens, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if len(tokens) != len(expected) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(expected))
	}
	for i, want := range expected {
		if tokens[i].Type != want {
			t.Errorf("token[%d] type = %v, want %v", i, tokens[i].Type, want)
		}
	}
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		lit   string
	}{
		{"let", TokenLet, "let"},
		{"match", TokenMatch, "match"},
		{"self", TokenSelf, "self"},
		{"letter", TokenIdentifier, "letter"},
		{"_private", TokenIdentifier, "_private"},
		{"ArithError!", TokenErrorType, "ArithError!"},
		{"naïve", TokenIdentifier, "naïve"},
	}

	for _, tc := range tests {
		tok, err := NewLexer(tc.input).Next()
		if err != nil {
			t.Errorf("Lexer(%q): unexpected error %v", tc.input, err)
			continue
		}
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.lit {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.lit)
		}
	}
}

func TestLexerNotEqualAfterIdentifier(t *testing.T) {
	tokens, err := Tokenize("a != b")
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	want := []TokenType{TokenIdentifier, TokenNotEq, TokenIdentifier, TokenEOF}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, tokens[i].Type, typ)
		}
	}
}

func TestLexerBangIsNot(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"!a", []TokenType{TokenNot, TokenIdentifier, TokenEOF}},
		{"! (x)", []TokenType{TokenNot, TokenLParen, TokenIdentifier, TokenRParen, TokenEOF}},
		{"a != b", []TokenType{TokenIdentifier, TokenNotEq, TokenIdentifier, TokenEOF}},
		{"E! !x", []TokenType{TokenErrorType, TokenNot, TokenIdentifier, TokenEOF}},
	}
	for _, tc := range tests {
		tokens, err := Tokenize(tc.input)
		if err != nil {
			t.Errorf("Tokenize(%q) error: %v", tc.input, err)
			continue
		}
		if len(tokens) != len(tc.want) {
			t.Errorf("Tokenize(%q) = %d tokens, want %d", tc.input, len(tokens), len(tc.want))
			continue
		}
		for i, typ := range tc.want {
			if tokens[i].Type != typ {
				t.Errorf("Tokenize(%q) token[%d] = %v, want %v", tc.input, i, tokens[i].Type, typ)
			}
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{"42", TokenInteger, "42"},
		{"1_000_000", TokenInteger, "1000000"},
		{"0xFF", TokenInteger, "0xFF"},
		{"0o17", TokenInteger, "0o17"},
		{"0b1010_1010", TokenInteger, "0b10101010"},
		{"3.14", TokenFloat, "3.14"},
		{"1e10", TokenFloat, "1e10"},
		{"1.5e-3", TokenFloat, "1.5e-3"},
		{"2.0E+5", TokenFloat, "2.0e+5"},
	}

	for _, tc := range tests {
		tok, err := NewLexer(tc.input).Next()
		if err != nil {
			t.Errorf("Lexer(%q): unexpected error %v", tc.input, err)
			continue
		}
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerRangeAfterInteger(t *testing.T) {
	tokens, err := Tokenize("1..5 2..=3 4.abs()")
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	want := []TokenType{
		TokenInteger, TokenDotDot, TokenInteger,
		TokenInteger, TokenDotDotEq, TokenInteger,
		TokenInteger, TokenDot, TokenIdentifier, TokenLParen, TokenRParen,
		TokenEOF,
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token[%d] = %v, want %v", i, tokens[i].Type, typ)
		}
	}
}

func TestLexerMalformedNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0x", "no digits"},
		{"0b", "no digits"},
		{"1_", "misplaced '_'"},
		{"1__0", "misplaced '_'"},
		{"0b12", "invalid digit '2'"},
		{"0o8", "invalid digit '8'"},
		{"1e", "malformed exponent"},
		{"1e+", "malformed exponent"},
		{"12abc", "invalid character 'a'"},
		{"99999999999999999999", "out of range"},
	}

	for _, tc := range tests {
		_, err := NewLexer(tc.input).Next()
		var lerr *LexError
		if !errors.As(err, &lerr) {
			t.Errorf("Lexer(%q): error = %v, want *LexError", tc.input, err)
			continue
		}
		if !strings.Contains(lerr.Message, tc.want) {
			t.Errorf("Lexer(%q): message = %q, want it to contain %q", tc.input, lerr.Message, tc.want)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		want  string
	}{
		{`"hello"`, TokenString, "hello"},
		{`"a\tb\nc"`, TokenString, "a\tb\nc"},
		{`"q\"q\\"`, TokenString, `q"q\`},
		{`"\u{41}\u{1F600}"`, TokenString, "A\U0001F600"},
		{`"\{x\}"`, TokenString, "{x}"},
		{`r"C:\path\n"`, TokenRawString, `C:\path\n`},
		{`f"hi {name}!"`, TokenFString, "hi {name}!"},
		{`f"{m["k"]}"`, TokenFString, `{m["k"]}`},
		{`f"\{literal\}"`, TokenFString, `\{literal\}`},
		{`"""  Adds two numbers.  """`, TokenDocstring, "Adds two numbers."},
		{"\"multi\nline\"", TokenString, "multi\nline"},
	}

	for _, tc := range tests {
		tok, err := NewLexer(tc.input).Next()
		if err != nil {
			t.Errorf("Lexer(%q): unexpected error %v", tc.input, err)
			continue
		}
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerStringErrors(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		offset int
	}{
		{`"abc`, "unterminated string", 0},
		{`x = "abc`, "unterminated string", 4},
		{`"a\qb"`, `invalid escape sequence '\q'`, 2},
		{`"\u{zz}"`, "invalid unicode escape", 1},
		{`r"abc`, "unterminated raw string", 0},
		{`f"{a"`, "unterminated", 0},
		{`f"a}"`, "unmatched '}'", 3},
		{`"""doc`, "unterminated docstring", 0},
	}

	for _, tc := range tests {
		_, err := Tokenize(tc.input)
		var lerr *LexError
		if !errors.As(err, &lerr) {
			t.Errorf("Tokenize(%q): error = %v, want *LexError", tc.input, err)
			continue
		}
		if !strings.Contains(lerr.Message, tc.want) {
			t.Errorf("Tokenize(%q): message = %q, want it to contain %q", tc.input, lerr.Message, tc.want)
		}
		if lerr.Offset != tc.offset {
			t.Errorf("Tokenize(%q): offset = %d, want %d", tc.input, lerr.Offset, tc.offset)
		}
	}
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	for _, input := range []string{"@", "$", "#"} {
		if _, err := Tokenize(input); err == nil {
			t.Errorf("Tokenize(%q): expected error", input)
		}
	}
}

func TestLexerErrorIsSticky(t *testing.T) {
	l := NewLexer(`"open`)
	_, first := l.Next()
	_, second := l.Next()
	if first == nil || second == nil {
		t.Fatalf("expected errors on both calls, got %v and %v", first, second)
	}
	if first.Error() != second.Error() {
		t.Errorf("second error = %v, want %v", second, first)
	}
}

func TestLexerComments(t *testing.T) {
	tokens, err := Tokenize("a // comment\n// another\nb")
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3", len(tokens))
	}
	if tokens[0].Literal != "a" || tokens[1].Literal != "b" {
		t.Errorf("tokens = %v, want a, b", tokens)
	}
}

func TestLexerPositions(t *testing.T) {
	tokens, err := Tokenize("let x = 1\n  print(x)")
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	tests := []struct {
		index  int
		line   int
		column int
		offset int
	}{
		{0, 1, 1, 0},  // let
		{1, 1, 5, 4},  // x
		{3, 1, 9, 8},  // 1
		{4, 2, 3, 12}, // print
		{6, 2, 9, 18}, // x
	}
	for _, tc := range tests {
		pos := tokens[tc.index].Pos
		if pos.Line != tc.line || pos.Column != tc.column || pos.Offset != tc.offset {
			t.Errorf("token[%d] %s pos = %+v, want line %d column %d offset %d",
				tc.index, tokens[tc.index].Literal, pos, tc.line, tc.column, tc.offset)
		}
	}
}
