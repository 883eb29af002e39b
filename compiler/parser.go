package compiler

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for aiscript
// ---------------------------------------------------------------------------

// Parser parses aiscript source into an AST. The whole input is tokenized
// up front so the parser can look several tokens ahead.
type Parser struct {
	tokens    []Token
	pos       int
	curToken  Token
	peekToken Token
	prevToken Token
	errors    ErrorList
	panicking bool
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	return newParserAt(input, 1)
}

// newParserAt starts line numbering at line, for f-string splices.
func newParserAt(input string, line int) *Parser {
	l := NewLexer(input)
	l.line = line
	p := &Parser{}
	for {
		tok, err := l.Next()
		if err != nil {
			var lerr *LexError
			if errors.As(err, &lerr) {
				pos := positionAt(input, lerr.Offset, line)
				p.errors = append(p.errors, &CompileError{Line: pos.Line, Column: pos.Column, Message: lerr.Message})
			}
			p.tokens = append(p.tokens, Token{Type: TokenEOF, Pos: l.position()})
			break
		}
		p.tokens = append(p.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	p.curToken = p.tokens[0]
	p.peekToken = p.peekAt(1)
	return p
}

// positionAt converts a byte offset to a line and column.
func positionAt(input string, offset, firstLine int) Position {
	if offset > len(input) {
		offset = len(input)
	}
	line, lineStart := firstLine, 0
	for i := 0; i < offset; i++ {
		if input[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return Position{Offset: offset, Line: line, Column: utf8.RuneCountInString(input[lineStart:offset]) + 1}
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.curToken = p.tokens[p.pos]
	p.peekToken = p.peekAt(1)
}

// peekAt returns the token n positions after the current one.
func (p *Parser) peekAt(n int) Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType, context string) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("Expected '%s' %s, got %s.", t, context, p.curToken.describe())
	return false
}

// errorf records a parse error at the current token. Errors are suppressed
// until the parser resynchronizes at a statement boundary.
func (p *Parser) errorf(format string, args ...any) {
	p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...any) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.errors = append(p.errors, &CompileError{
		Line:    pos.Line,
		Column:  pos.Column,
		Message: fmt.Sprintf(format, args...),
	})
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() ErrorList {
	return p.errors
}

// synchronize skips tokens until a likely statement boundary.
func (p *Parser) synchronize() {
	p.panicking = false
	for !p.curTokenIs(TokenEOF) {
		if p.prevToken.Type == TokenSemicolon {
			return
		}
		switch p.curToken.Type {
		case TokenLet, TokenConst, TokenFn, TokenClass, TokenEnum, TokenFor,
			TokenIf, TokenWhile, TokenReturn, TokenRaise, TokenRBrace:
			return
		}
		p.nextToken()
	}
}

func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.prevToken.Pos}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// Parse parses a complete source unit.
func Parse(input string) (*Program, error) {
	p := NewParser(input)
	prog := p.ParseProgram()
	return prog, p.errors.Err()
}

// ParseProgram parses statements until end of input.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	if len(p.errors) > 0 {
		return prog
	}
	for !p.curTokenIs(TokenEOF) {
		before := p.pos
		if stmt := p.parseDeclaration(); stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if p.pos == before {
			p.nextToken()
		}
	}
	return prog
}

func (p *Parser) parseDeclaration() Stmt {
	stmt := p.parseStatement()
	if p.panicking {
		p.synchronize()
	}
	return stmt
}

// consumeTerminator skips an optional semicolon.
func (p *Parser) consumeTerminator() {
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
}

// ParseStatement parses a single statement.
func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLet, TokenConst:
		return p.parseLet()
	case TokenFn:
		if p.peekTokenIs(TokenIdentifier) {
			return p.parseFnStmt()
		}
	case TokenClass:
		return p.parseClass()
	case TokenEnum:
		return p.parseEnum()
	case TokenReturn:
		return p.parseReturn()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenFor:
		return p.parseFor()
	case TokenBreak:
		start := p.curToken.Pos
		p.nextToken()
		p.consumeTerminator()
		return &BreakStmt{SpanVal: p.span(start)}
	case TokenContinue:
		start := p.curToken.Pos
		p.nextToken()
		p.consumeTerminator()
		return &ContinueStmt{SpanVal: p.span(start)}
	case TokenRaise:
		start := p.curToken.Pos
		p.nextToken()
		value := p.parseExpression()
		p.consumeTerminator()
		return &RaiseStmt{SpanVal: p.span(start), Value: value}
	case TokenLBrace:
		return p.parseBlock()
	case TokenSemicolon, TokenDocstring:
		p.nextToken()
		return nil
	}

	start := p.curToken.Pos
	expr := p.parseExpression()
	p.consumeTerminator()
	return &ExprStmt{SpanVal: p.span(start), Expr: expr}
}

func (p *Parser) parseLet() Stmt {
	start := p.curToken.Pos
	isConst := p.curTokenIs(TokenConst)
	p.nextToken()

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("Expected variable name, got %s.", p.curToken.describe())
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	if p.curTokenIs(TokenColon) {
		p.nextToken()
		p.parseType(true)
	}

	var value Expr
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		value = p.parseExpression()
	} else if isConst {
		p.errorf("Constant '%s' must be initialized.", name)
	}
	p.consumeTerminator()
	return &LetStmt{SpanVal: p.span(start), Name: name, Value: value, Const: isConst}
}

// parseBlock parses { statements }.
func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	p.expect(TokenLBrace, "to start block")
	block := &Block{}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		before := p.pos
		if stmt := p.parseDeclaration(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.pos == before {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace, "after block")
	block.SpanVal = p.span(start)
	return block
}

func (p *Parser) parseReturn() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	ret := &ReturnStmt{}
	if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		ret.Values = append(ret.Values, p.parseExpression())
		for p.curTokenIs(TokenComma) {
			p.nextToken()
			ret.Values = append(ret.Values, p.parseExpression())
		}
	}
	p.consumeTerminator()
	ret.SpanVal = p.span(start)
	return ret
}

func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	stmt := &IfStmt{Cond: p.parseExpression()}
	stmt.Then = p.parseBlock()
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBlock()
		}
	}
	stmt.SpanVal = p.span(start)
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	cond := p.parseExpression()
	body := p.parseBlock()
	return &WhileStmt{SpanVal: p.span(start), Cond: cond, Body: body}
}

// parseFor parses both `for let i = 0; cond; post {}` and `for x in e {}`.
func (p *Parser) parseFor() Stmt {
	start := p.curToken.Pos
	p.nextToken()

	if p.curTokenIs(TokenLet) || p.curTokenIs(TokenSemicolon) {
		stmt := &ForStmt{}
		if p.curTokenIs(TokenLet) {
			stmt.Init = p.parseLet() // consumes the ';'
		} else {
			p.nextToken()
		}
		if !p.curTokenIs(TokenSemicolon) {
			stmt.Cond = p.parseExpression()
		}
		p.expect(TokenSemicolon, "after loop condition")
		if !p.curTokenIs(TokenLBrace) {
			stmt.Post = p.parseExpression()
		}
		stmt.Body = p.parseBlock()
		stmt.SpanVal = p.span(start)
		return stmt
	}

	stmt := &ForInStmt{}
	for {
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("Expected loop variable name, got %s.", p.curToken.describe())
			return nil
		}
		stmt.Vars = append(stmt.Vars, p.curToken.Literal)
		p.nextToken()
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if len(stmt.Vars) > 2 {
		p.errorAt(start, "For loops bind at most two variables.")
	}
	p.expect(TokenIn, "after loop variables")
	stmt.Iterable = p.parseExpression()
	stmt.Body = p.parseBlock()
	stmt.SpanVal = p.span(start)
	return stmt
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (p *Parser) parseFnStmt() Stmt {
	start := p.curToken.Pos
	fn := p.parseFunction()
	return &FnStmt{SpanVal: p.span(start), Func: fn}
}

// parseFunction parses `fn name(params) -> Type { body }`.
func (p *Parser) parseFunction() *FuncDecl {
	start := p.curToken.Pos
	p.nextToken() // fn

	fn := &FuncDecl{}
	if p.curTokenIs(TokenIdentifier) {
		fn.Name = p.curToken.Literal
		p.nextToken()
	}
	p.expect(TokenLParen, "after function name")
	fn.Params, fn.HasSelf = p.parseParams(TokenRParen)
	p.expect(TokenRParen, "after parameters")

	if p.curTokenIs(TokenArrow) {
		p.nextToken()
		fn.ReturnType, fn.Fallible = p.parseType(true)
	}

	fn.Body, fn.Doc = p.parseFunctionBody()
	fn.SpanVal = p.span(start)
	return fn
}

// parseFunctionBody parses a block whose first token may be a docstring.
func (p *Parser) parseFunctionBody() (*Block, string) {
	if !p.curTokenIs(TokenLBrace) {
		p.errorf("Expected '{' before function body, got %s.", p.curToken.describe())
		return &Block{}, ""
	}
	doc := ""
	if p.peekTokenIs(TokenDocstring) {
		doc = p.peekToken.Literal
	}
	return p.parseBlock(), doc
}

// parseParams parses parameters up to (not including) the closing token.
func (p *Parser) parseParams(closing TokenType) ([]ParamDecl, bool) {
	var params []ParamDecl
	hasSelf := false
	seenDefault := false
	for !p.curTokenIs(closing) && !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenSelf) {
			if len(params) > 0 || hasSelf {
				p.errorf("'self' must be the first parameter.")
			}
			hasSelf = true
			p.nextToken()
		} else {
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("Expected parameter name, got %s.", p.curToken.describe())
				return params, hasSelf
			}
			param := ParamDecl{Name: p.curToken.Literal, Pos: p.curToken.Pos}
			for _, prev := range params {
				if prev.Name == param.Name {
					p.errorf("Duplicate parameter '%s'.", param.Name)
				}
			}
			p.nextToken()
			if p.curTokenIs(TokenColon) {
				p.nextToken()
				param.Type, _ = p.parseType(false)
			}
			if p.curTokenIs(TokenAssign) {
				p.nextToken()
				param.Default = p.parseUnary()
				seenDefault = true
			} else if seenDefault {
				p.errorAt(param.Pos, "Non-default argument '%s' follows default argument.", param.Name)
			}
			params = append(params, param)
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if len(params) > 255 {
		p.errorf("Can't have more than 255 parameters.")
	}
	return params, hasSelf
}

// parseType parses a type annotation and reports whether it names an
// error type. Unions (a | b) are only allowed where `|` is unambiguous.
func (p *Parser) parseType(allowUnion bool) (string, bool) {
	var parts []string
	fallible := false
	for {
		switch p.curToken.Type {
		case TokenIdentifier, TokenNil:
			parts = append(parts, p.curToken.Literal)
			p.nextToken()
		case TokenErrorType:
			parts = append(parts, p.curToken.Literal)
			fallible = true
			p.nextToken()
		case TokenLBracket:
			p.nextToken()
			inner, f := p.parseType(true)
			fallible = fallible || f
			p.expect(TokenRBracket, "after element type")
			parts = append(parts, "["+inner+"]")
		default:
			p.errorf("Expected type, got %s.", p.curToken.describe())
			return strings.Join(parts, " | "), fallible
		}
		if !allowUnion || !p.curTokenIs(TokenPipe) {
			break
		}
		p.nextToken()
	}
	return strings.Join(parts, " | "), fallible
}

// parseTypeName accepts a class or enum name, with or without "!".
func (p *Parser) parseTypeName(what string) (string, bool) {
	switch p.curToken.Type {
	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		return name, false
	case TokenErrorType:
		name := p.curToken.Literal
		p.nextToken()
		return name, true
	}
	p.errorf("Expected %s name, got %s.", what, p.curToken.describe())
	return "", false
}

// parseClass parses `class Name(Super) { fields and methods }`.
func (p *Parser) parseClass() Stmt {
	start := p.curToken.Pos
	p.nextToken()

	decl := &ClassDecl{}
	decl.Name, decl.IsError = p.parseTypeName("class")
	if decl.Name == "" {
		return nil
	}
	if p.curTokenIs(TokenLParen) {
		p.nextToken()
		decl.Super, _ = p.parseTypeName("superclass")
		if decl.Super == decl.Name {
			p.errorf("A class can't inherit from itself.")
		}
		p.expect(TokenRParen, "after superclass name")
	}

	p.expect(TokenLBrace, "before class body")
	if p.curTokenIs(TokenDocstring) {
		decl.Doc = p.curToken.Literal
		p.nextToken()
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenFn:
			decl.Methods = append(decl.Methods, p.parseFunction())
		case TokenIdentifier:
			field := FieldDecl{Name: p.curToken.Literal, Pos: p.curToken.Pos}
			p.nextToken()
			if p.curTokenIs(TokenColon) {
				p.nextToken()
				field.Type, _ = p.parseType(true)
			}
			if p.curTokenIs(TokenAssign) {
				p.nextToken()
				field.Default = p.parseUnary()
			}
			decl.Fields = append(decl.Fields, field)
		case TokenComma, TokenSemicolon:
			p.nextToken()
		default:
			p.errorf("Expected field or method declaration, got %s.", p.curToken.describe())
			p.nextToken()
		}
		if p.panicking {
			p.synchronizeMember()
		}
	}
	p.expect(TokenRBrace, "after class body")
	decl.SpanVal = p.span(start)
	return decl
}

// parseEnum parses `enum Name { A, B = 2, fn m(self) {} }`.
func (p *Parser) parseEnum() Stmt {
	start := p.curToken.Pos
	p.nextToken()

	decl := &EnumDecl{}
	decl.Name, decl.IsError = p.parseTypeName("enum")
	if decl.Name == "" {
		return nil
	}
	p.expect(TokenLBrace, "before enum body")
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenFn:
			decl.Methods = append(decl.Methods, p.parseFunction())
		case TokenIdentifier:
			v := EnumVariant{Name: p.curToken.Literal, Pos: p.curToken.Pos}
			p.nextToken()
			if p.curTokenIs(TokenAssign) {
				p.nextToken()
				v.Value = p.parseUnary()
			}
			decl.Variants = append(decl.Variants, v)
		case TokenComma, TokenSemicolon:
			p.nextToken()
		default:
			p.errorf("Expected enum variant or method, got %s.", p.curToken.describe())
			p.nextToken()
		}
		if p.panicking {
			p.synchronizeMember()
		}
	}
	p.expect(TokenRBrace, "after enum body")
	decl.SpanVal = p.span(start)
	return decl
}

// synchronizeMember skips to the next class or enum member.
func (p *Parser) synchronizeMember() {
	p.panicking = false
	for !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenRBrace) {
		if p.curTokenIs(TokenFn) || p.curTokenIs(TokenComma) {
			return
		}
		p.nextToken()
	}
}
