package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for aiscript source
// ---------------------------------------------------------------------------

// LexError reports malformed input at a byte offset.
type LexError struct {
	Offset  int
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

// Lexer produces tokens from source text one at a time. It is forward-only:
// after an error the remaining input is not tokenized.
type Lexer struct {
	input     string
	pos       int // offset of the next unread byte
	line      int // current line (1-based)
	lineStart int // offset of current line start
	err       *LexError
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
	}
}

// Tokenize lexes the whole input, ending with a TokenEOF token.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// peek returns the rune at the current position without consuming it.
func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

// peekAt returns the rune n bytes ahead. Only used for ASCII lookahead.
func (l *Lexer) peekAt(n int) rune {
	if l.pos+n >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos+n:])
	return r
}

// advance consumes one rune and tracks line starts.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.lineStart = l.pos
	}
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: utf8.RuneCountInString(l.input[l.lineStart:l.pos]) + 1,
	}
}

func (l *Lexer) fail(offset int, format string, args ...any) (Token, error) {
	l.err = &LexError{Offset: offset, Message: fmt.Sprintf(format, args...)}
	return Token{}, l.err
}

// Next returns the next token. Once an error is returned, every later
// call returns the same error.
func (l *Lexer) Next() (Token, error) {
	if l.err != nil {
		return Token{}, l.err
	}
	l.skipWhitespaceAndComments()

	pos := l.position()
	ch := l.peek()

	switch {
	case l.pos >= len(l.input):
		return Token{Type: TokenEOF, Pos: pos}, nil

	case ch == 'r' && l.peekAt(1) == '"':
		l.advance()
		return l.readRawString(pos)

	case ch == 'f' && l.peekAt(1) == '"':
		l.advance()
		return l.readFString(pos)

	case isIdentStart(ch):
		return l.readIdentifier(pos)

	case isDigit(ch):
		return l.readNumber(pos)

	case ch == '"':
		if strings.HasPrefix(l.input[l.pos:], `"""`) {
			return l.readDocstring(pos)
		}
		return l.readString(pos)
	}

	return l.readOperator(pos)
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.advance()
		case ch == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier(pos Position) (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.peek()) {
		l.advance()
	}
	text := l.input[start:l.pos]

	// `Name!` names an error type; `name != x` is a comparison.
	if l.peek() == '!' && l.peekAt(1) != '=' {
		l.advance()
		return Token{Type: TokenErrorType, Literal: text + "!", Pos: pos}, nil
	}
	if kw, ok := reservedWords[text]; ok {
		return Token{Type: kw, Literal: text, Pos: pos}, nil
	}
	return Token{Type: TokenIdentifier, Literal: text, Pos: pos}, nil
}

// readNumber lexes integer and float literals. The token literal has
// digit separators removed and keeps any base prefix.
func (l *Lexer) readNumber(pos Position) (Token, error) {
	start := l.pos

	if l.peek() == '0' {
		base, name := 0, ""
		switch l.peekAt(1) {
		case 'x', 'X':
			base, name = 16, "hexadecimal"
		case 'o', 'O':
			base, name = 8, "octal"
		case 'b', 'B':
			base, name = 2, "binary"
		}
		if base != 0 {
			l.advance()
			l.advance()
			digits, err := l.readDigits(start, base, name)
			if err != nil {
				return Token{}, err
			}
			if ch := l.peek(); isIdentPart(ch) {
				return l.fail(l.pos, "invalid character %q in numeric literal", ch)
			}
			if _, perr := strconv.ParseInt(digits, base, 64); perr != nil {
				return l.fail(start, "integer literal %s out of range", l.input[start:l.pos])
			}
			return Token{Type: TokenInteger, Literal: l.input[start:start+2] + digits, Pos: pos}, nil
		}
	}

	intPart, err := l.readDigits(start, 10, "decimal")
	if err != nil {
		return Token{}, err
	}
	text := intPart
	isFloat := false

	// A fraction needs a digit after the dot so `1..5` and `1.abs()` lex as ints.
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		l.advance()
		frac, err := l.readDigits(start, 10, "decimal")
		if err != nil {
			return Token{}, err
		}
		text += "." + frac
		isFloat = true
	}

	if ch := l.peek(); ch == 'e' || ch == 'E' {
		l.advance()
		text += "e"
		if sign := l.peek(); sign == '+' || sign == '-' {
			l.advance()
			text += string(sign)
		}
		if !isDigit(l.peek()) {
			return l.fail(start, "malformed exponent in numeric literal %s", l.input[start:l.pos])
		}
		exp, err := l.readDigits(start, 10, "decimal")
		if err != nil {
			return Token{}, err
		}
		text += exp
		isFloat = true
	}

	if ch := l.peek(); isIdentStart(ch) {
		return l.fail(l.pos, "invalid character %q in numeric literal", ch)
	}

	if isFloat {
		if _, perr := strconv.ParseFloat(text, 64); perr != nil {
			return l.fail(start, "float literal %s out of range", l.input[start:l.pos])
		}
		return Token{Type: TokenFloat, Literal: text, Pos: pos}, nil
	}
	if _, perr := strconv.ParseInt(text, 10, 64); perr != nil {
		return l.fail(start, "integer literal %s out of range", l.input[start:l.pos])
	}
	return Token{Type: TokenInteger, Literal: text, Pos: pos}, nil
}

// readDigits consumes digits of the given base with `_` separators allowed
// only between digits. Returns the digits without separators.
func (l *Lexer) readDigits(start, base int, name string) (string, error) {
	var sb strings.Builder
	lastUnderscore := false
	for l.pos < len(l.input) {
		ch := l.peek()
		if ch == '_' {
			if sb.Len() == 0 || lastUnderscore {
				_, err := l.fail(l.pos, "misplaced '_' in numeric literal")
				return "", err
			}
			lastUnderscore = true
			l.advance()
			continue
		}
		d := digitValue(ch)
		if d < 0 || (base <= 10 && d >= 10) {
			break
		}
		if d >= base {
			_, err := l.fail(l.pos, "invalid digit %q in %s literal", ch, name)
			return "", err
		}
		sb.WriteRune(ch)
		lastUnderscore = false
		l.advance()
	}
	if lastUnderscore {
		_, err := l.fail(l.pos-1, "misplaced '_' in numeric literal")
		return "", err
	}
	if sb.Len() == 0 {
		_, err := l.fail(start, "%s literal %s has no digits", name, l.input[start:l.pos])
		return "", err
	}
	return sb.String(), nil
}

// readString lexes a "..." literal with escape processing.
func (l *Lexer) readString(pos Position) (Token, error) {
	start := l.pos
	l.advance() // opening quote
	bodyStart := l.pos
	for {
		if l.pos >= len(l.input) {
			return l.fail(start, "unterminated string")
		}
		ch := l.advance()
		if ch == '\\' {
			if l.pos >= len(l.input) {
				return l.fail(start, "unterminated string")
			}
			l.advance()
			continue
		}
		if ch == '"' {
			break
		}
	}
	body := l.input[bodyStart : l.pos-1]
	decoded, lerr := decodeEscapes(body, bodyStart)
	if lerr != nil {
		l.err = lerr
		return Token{}, lerr
	}
	return Token{Type: TokenString, Literal: decoded, Pos: pos}, nil
}

// readRawString lexes r"..." with no escape processing.
func (l *Lexer) readRawString(pos Position) (Token, error) {
	l.advance() // opening quote
	bodyStart := l.pos
	for {
		if l.pos >= len(l.input) {
			return l.fail(pos.Offset, "unterminated raw string")
		}
		if l.advance() == '"' {
			break
		}
	}
	return Token{Type: TokenRawString, Literal: l.input[bodyStart : l.pos-1], Pos: pos}, nil
}

// readFString lexes f"..." and returns its raw body. Splices may contain
// nested string literals; braces must balance.
func (l *Lexer) readFString(pos Position) (Token, error) {
	l.advance() // opening quote
	bodyStart := l.pos
	depth := 0
	for {
		if l.pos >= len(l.input) {
			if depth > 0 {
				return l.fail(pos.Offset, "unterminated '{' in f-string")
			}
			return l.fail(pos.Offset, "unterminated string")
		}
		ch := l.advance()
		switch {
		case ch == '\\':
			if l.pos < len(l.input) {
				l.advance()
			}
		case ch == '{':
			depth++
		case ch == '}':
			if depth == 0 {
				return l.fail(l.pos-1, "unmatched '}' in f-string")
			}
			depth--
		case ch == '"' && depth > 0:
			// nested string inside a splice
			for {
				if l.pos >= len(l.input) {
					return l.fail(pos.Offset, "unterminated string")
				}
				c := l.advance()
				if c == '\\' {
					l.advance()
					continue
				}
				if c == '"' {
					break
				}
			}
		case ch == '"':
			return Token{Type: TokenFString, Literal: l.input[bodyStart : l.pos-1], Pos: pos}, nil
		}
	}
}

// readDocstring lexes a """...""" block.
func (l *Lexer) readDocstring(pos Position) (Token, error) {
	for i := 0; i < 3; i++ {
		l.advance()
	}
	end := strings.Index(l.input[l.pos:], `"""`)
	if end < 0 {
		return l.fail(pos.Offset, "unterminated docstring")
	}
	body := l.input[l.pos : l.pos+end]
	for l.pos < pos.Offset+3+end+3 {
		l.advance()
	}
	return Token{Type: TokenDocstring, Literal: strings.TrimSpace(body), Pos: pos}, nil
}

// twoCharOps maps operators that extend a single-character prefix.
var twoCharOps = map[string]TokenType{
	"..": TokenDotDot,
	"::": TokenColonColon,
	"->": TokenArrow,
	"-=": TokenMinusEq,
	"=>": TokenFatArrow,
	"==": TokenEq,
	"!=": TokenNotEq,
	"|>": TokenPipeGt,
	"+=": TokenPlusEq,
	"**": TokenStarStar,
	"*=": TokenStarEq,
	"/=": TokenSlashEq,
	"%=": TokenPercentEq,
	"<<": TokenShl,
	"<=": TokenLessEq,
	">>": TokenShr,
	">=": TokenGreaterEq,
}

var oneCharOps = map[byte]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'{': TokenLBrace,
	'}': TokenRBrace,
	',': TokenComma,
	'.': TokenDot,
	':': TokenColon,
	';': TokenSemicolon,
	'?': TokenQuestion,
	'!': TokenNot,
	'|': TokenPipe,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'%': TokenPercent,
	'&': TokenAmp,
	'^': TokenCaret,
	'~': TokenTilde,
	'=': TokenAssign,
	'<': TokenLess,
	'>': TokenGreater,
}

func (l *Lexer) readOperator(pos Position) (Token, error) {
	rest := l.input[l.pos:]
	if strings.HasPrefix(rest, "..=") {
		l.pos += 3
		return Token{Type: TokenDotDotEq, Literal: "..=", Pos: pos}, nil
	}
	if len(rest) >= 2 {
		if tt, ok := twoCharOps[rest[:2]]; ok {
			l.pos += 2
			return Token{Type: tt, Literal: rest[:2], Pos: pos}, nil
		}
	}
	if tt, ok := oneCharOps[rest[0]]; ok {
		l.pos++
		return Token{Type: tt, Literal: rest[:1], Pos: pos}, nil
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return l.fail(pos.Offset, "unexpected character %q", r)
}

// decodeEscapes processes backslash escapes in a string body. offset is the
// body's position in the source, used for error reporting.
func decodeEscapes(body string, offset int) (string, *LexError) {
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}
	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(body) {
			return "", &LexError{Offset: offset + i, Message: "unterminated escape sequence"}
		}
		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\', '"', '\'', '{', '}':
			sb.WriteByte(body[i])
		case 'u':
			end := strings.IndexByte(body[i:], '}')
			if i+1 >= len(body) || body[i+1] != '{' || end < 0 {
				return "", &LexError{Offset: offset + i - 1, Message: `invalid unicode escape, expected \u{XXXX}`}
			}
			hex := body[i+2 : i+end]
			code, err := strconv.ParseUint(hex, 16, 32)
			if err != nil || hex == "" || !utf8.ValidRune(rune(code)) {
				return "", &LexError{Offset: offset + i - 1, Message: fmt.Sprintf("invalid unicode escape \\u{%s}", hex)}
			}
			sb.WriteRune(rune(code))
			i += end
		default:
			r, _ := utf8.DecodeRuneInString(body[i:])
			return "", &LexError{Offset: offset + i - 1, Message: fmt.Sprintf("invalid escape sequence '\\%c'", r)}
		}
	}
	return sb.String(), nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// digitValue returns the numeric value of a hex-range digit, or -1.
func digitValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	}
	return -1
}
