package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the aiscript lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Literals
	TokenInteger    // 42, 0xFF, 0b1010, 1_000
	TokenFloat      // 3.14, 1.5e10
	TokenString     // "hello"
	TokenRawString  // r"C:\path"
	TokenFString    // f"hi {name}" (raw body, split by the parser)
	TokenDocstring  // """docstring"""
	TokenIdentifier // foo, Bar
	TokenErrorType  // ArithError!

	// Delimiters
	TokenLParen     // (
	TokenRParen     // )
	TokenLBracket   // [
	TokenRBracket   // ]
	TokenLBrace     // {
	TokenRBrace     // }
	TokenComma      // ,
	TokenDot        // .
	TokenDotDot     // ..
	TokenDotDotEq   // ..=
	TokenColon      // :
	TokenColonColon // ::
	TokenSemicolon  // ;
	TokenArrow      // ->
	TokenFatArrow   // =>
	TokenQuestion   // ?
	TokenPipe       // |
	TokenPipeGt     // |>

	// Operators
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenStarStar  // **
	TokenSlash     // /
	TokenPercent   // %
	TokenAmp       // &
	TokenCaret     // ^
	TokenTilde     // ~
	TokenShl       // <<
	TokenShr       // >>
	TokenAssign    // =
	TokenPlusEq    // +=
	TokenMinusEq   // -=
	TokenStarEq    // *=
	TokenSlashEq   // /=
	TokenPercentEq // %=
	TokenEq        // ==
	TokenNotEq     // !=
	TokenLess      // <
	TokenLessEq    // <=
	TokenGreater   // >
	TokenGreaterEq // >=

	// Keywords
	TokenLet
	TokenConst
	TokenFn
	TokenReturn
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenIn
	TokenBreak
	TokenContinue
	TokenClass
	TokenEnum
	TokenMatch
	TokenRaise
	TokenTry
	TokenCatch
	TokenAnd
	TokenOr
	TokenNot
	TokenTrue
	TokenFalse
	TokenNil
	TokenSelf
	TokenSuper
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenRawString:  "RAW_STRING",
	TokenFString:    "FSTRING",
	TokenDocstring:  "DOCSTRING",
	TokenIdentifier: "IDENTIFIER",
	TokenErrorType:  "ERROR_TYPE",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenDot:        ".",
	TokenDotDot:     "..",
	TokenDotDotEq:   "..=",
	TokenColon:      ":",
	TokenColonColon: "::",
	TokenSemicolon:  ";",
	TokenArrow:      "->",
	TokenFatArrow:   "=>",
	TokenQuestion:   "?",
	TokenPipe:       "|",
	TokenPipeGt:     "|>",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenStarStar:   "**",
	TokenSlash:      "/",
	TokenPercent:    "%",
	TokenAmp:        "&",
	TokenCaret:      "^",
	TokenTilde:      "~",
	TokenShl:        "<<",
	TokenShr:        ">>",
	TokenAssign:     "=",
	TokenPlusEq:     "+=",
	TokenMinusEq:    "-=",
	TokenStarEq:     "*=",
	TokenSlashEq:    "/=",
	TokenPercentEq:  "%=",
	TokenEq:         "==",
	TokenNotEq:      "!=",
	TokenLess:       "<",
	TokenLessEq:     "<=",
	TokenGreater:    ">",
	TokenGreaterEq:  ">=",
	TokenLet:        "let",
	TokenConst:      "const",
	TokenFn:         "fn",
	TokenReturn:     "return",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenFor:        "for",
	TokenIn:         "in",
	TokenBreak:      "break",
	TokenContinue:   "continue",
	TokenClass:      "class",
	TokenEnum:       "enum",
	TokenMatch:      "match",
	TokenRaise:      "raise",
	TokenTry:        "try",
	TokenCatch:      "catch",
	TokenAnd:        "and",
	TokenOr:         "or",
	TokenNot:        "not",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenNil:        "nil",
	TokenSelf:       "self",
	TokenSuper:      "super",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // source text; decoded contents for strings
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// describe renders a token for error messages.
func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenString, TokenRawString, TokenFString, TokenDocstring:
		return "string"
	}
	return fmt.Sprintf("'%s'", t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":      TokenLet,
	"const":    TokenConst,
	"fn":       TokenFn,
	"return":   TokenReturn,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"for":      TokenFor,
	"in":       TokenIn,
	"break":    TokenBreak,
	"continue": TokenContinue,
	"class":    TokenClass,
	"enum":     TokenEnum,
	"match":    TokenMatch,
	"raise":    TokenRaise,
	"try":      TokenTry,
	"catch":    TokenCatch,
	"and":      TokenAnd,
	"or":       TokenOr,
	"not":      TokenNot,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"nil":      TokenNil,
	"self":     TokenSelf,
	"super":    TokenSuper,
}
