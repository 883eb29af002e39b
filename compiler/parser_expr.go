package compiler

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Expression parsing (precedence climbing, lowest first)
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpression()
}

func (p *Parser) parseExpression() Expr {
	return p.parseAssignment()
}

var assignOps = map[TokenType]bool{
	TokenAssign:    true,
	TokenPlusEq:    true,
	TokenMinusEq:   true,
	TokenStarEq:    true,
	TokenSlashEq:   true,
	TokenPercentEq: true,
}

func (p *Parser) parseAssignment() Expr {
	start := p.curToken.Pos
	target := p.parsePipe()
	if !assignOps[p.curToken.Type] {
		return target
	}
	op := p.curToken.Type
	switch target.(type) {
	case *Identifier, *PropertyExpr, *IndexExpr:
	default:
		p.errorf("Invalid assignment target.")
	}
	p.nextToken()
	value := p.parseAssignment()
	return &AssignExpr{SpanVal: p.span(start), Target: target, Op: op, Value: value}
}

// parsePipe desugars `x |> f` to f(x) and `x |> f(y)` to f(x, y).
func (p *Parser) parsePipe() Expr {
	start := p.curToken.Pos
	left := p.parseTernary()
	for p.curTokenIs(TokenPipeGt) {
		p.nextToken()
		right := p.parseTernary()
		if call, ok := right.(*CallExpr); ok {
			call.Args = append([]Expr{left}, call.Args...)
			left = call
		} else {
			left = &CallExpr{SpanVal: p.span(start), Callee: right, Args: []Expr{left}}
		}
	}
	return left
}

// parseTernary parses `then if cond else other`. The `if` must sit on the
// same line as the end of `then` so a following if-statement is not
// swallowed when semicolons are omitted.
func (p *Parser) parseTernary() Expr {
	start := p.curToken.Pos
	then := p.parseOr()
	if p.curTokenIs(TokenIf) && p.curToken.Pos.Line == p.prevToken.Pos.Line {
		p.nextToken()
		cond := p.parseOr()
		p.expect(TokenElse, "in conditional expression")
		other := p.parseTernary()
		return &TernaryExpr{SpanVal: p.span(start), Then: then, Cond: cond, Else: other}
	}
	return then
}

func (p *Parser) parseOr() Expr {
	start := p.curToken.Pos
	left := p.parseAnd()
	for p.curTokenIs(TokenOr) {
		p.nextToken()
		right := p.parseAnd()
		left = &LogicalExpr{SpanVal: p.span(start), Op: TokenOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	start := p.curToken.Pos
	left := p.parseComparison()
	for p.curTokenIs(TokenAnd) {
		p.nextToken()
		right := p.parseComparison()
		left = &LogicalExpr{SpanVal: p.span(start), Op: TokenAnd, Left: left, Right: right}
	}
	return left
}

var comparisonOps = map[TokenType]bool{
	TokenEq:        true,
	TokenNotEq:     true,
	TokenLess:      true,
	TokenLessEq:    true,
	TokenGreater:   true,
	TokenGreaterEq: true,
	TokenIn:        true,
}

func (p *Parser) parseComparison() Expr {
	start := p.curToken.Pos
	left := p.parseRange()
	for comparisonOps[p.curToken.Type] {
		op := p.curToken.Type
		p.nextToken()
		right := p.parseRange()
		left = &BinaryExpr{SpanVal: p.span(start), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseRange() Expr {
	start := p.curToken.Pos
	left := p.parseBitOr()
	if !p.curTokenIs(TokenDotDot) && !p.curTokenIs(TokenDotDotEq) {
		return left
	}
	inclusive := p.curTokenIs(TokenDotDotEq)
	p.nextToken()
	var end Expr
	if canStartOperand(p.curToken.Type) {
		end = p.parseBitOr()
	} else if inclusive {
		p.errorf("Inclusive range needs an upper bound.")
	}
	return &RangeExpr{SpanVal: p.span(start), Start: left, End: end, Inclusive: inclusive}
}

// canStartOperand reports whether t can begin a range bound. Braces are
// excluded so `for i in 0.. {` reads the brace as the loop body.
func canStartOperand(t TokenType) bool {
	switch t {
	case TokenInteger, TokenFloat, TokenString, TokenRawString, TokenFString,
		TokenIdentifier, TokenErrorType, TokenLParen, TokenLBracket, TokenMinus,
		TokenTilde, TokenTrue, TokenFalse, TokenNil, TokenSelf, TokenSuper:
		return true
	}
	return false
}

// binaryLevels lists left-associative binary operator levels from
// loosest to tightest, between range and unary.
var binaryLevels = [][]TokenType{
	{TokenPipe},
	{TokenCaret},
	{TokenAmp},
	{TokenShl, TokenShr},
	{TokenPlus, TokenMinus},
	{TokenStar, TokenSlash, TokenPercent},
}

func (p *Parser) parseBitOr() Expr {
	return p.parseBinaryLevel(0)
}

func (p *Parser) parseBinaryLevel(level int) Expr {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	start := p.curToken.Pos
	left := p.parseBinaryLevel(level + 1)
	for {
		op, ok := p.matchAny(binaryLevels[level])
		if !ok {
			return left
		}
		p.nextToken()
		right := p.parseBinaryLevel(level + 1)
		left = &BinaryExpr{SpanVal: p.span(start), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) matchAny(types []TokenType) (TokenType, bool) {
	for _, t := range types {
		if p.curTokenIs(t) {
			return t, true
		}
	}
	return 0, false
}

func (p *Parser) parseUnary() Expr {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenMinus, TokenNot, TokenTilde:
		op := p.curToken.Type
		p.nextToken()
		operand := p.parseUnary()
		if op == TokenMinus {
			switch lit := operand.(type) {
			case *IntLiteral:
				return &IntLiteral{SpanVal: p.span(start), Value: -lit.Value}
			case *FloatLiteral:
				return &FloatLiteral{SpanVal: p.span(start), Value: -lit.Value}
			}
		}
		return &UnaryExpr{SpanVal: p.span(start), Op: op, Operand: operand}
	}
	return p.parsePower()
}

// parsePower parses the right-associative `**`, which binds tighter than
// unary minus on its left: -2 ** 2 is -(2 ** 2).
func (p *Parser) parsePower() Expr {
	start := p.curToken.Pos
	base := p.parsePostfix()
	if p.curTokenIs(TokenStarStar) {
		p.nextToken()
		exp := p.parseUnary()
		return &BinaryExpr{SpanVal: p.span(start), Op: TokenStarStar, Left: base, Right: exp}
	}
	return base
}

func (p *Parser) parsePostfix() Expr {
	start := p.curToken.Pos
	expr := p.parsePrimary()
	for {
		switch p.curToken.Type {
		case TokenLParen:
			expr = p.parseCall(expr, start)
		case TokenDot:
			p.nextToken()
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("Expected property name after '.', got %s.", p.curToken.describe())
				return expr
			}
			name := p.curToken.Literal
			p.nextToken()
			expr = &PropertyExpr{SpanVal: p.span(start), Object: expr, Name: name}
		case TokenColonColon:
			p.nextToken()
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("Expected variant name after '::', got %s.", p.curToken.describe())
				return expr
			}
			name := p.curToken.Literal
			p.nextToken()
			expr = &VariantExpr{SpanVal: p.span(start), Enum: expr, Name: name}
		case TokenLBracket:
			expr = p.parseIndex(expr, start)
		case TokenQuestion:
			p.nextToken()
			expr = &PropagateExpr{SpanVal: p.span(start), Operand: expr}
		case TokenPipe:
			// expr |err| { handler }
			if p.peekTokenIs(TokenIdentifier) && p.peekAt(2).Type == TokenPipe && p.peekAt(3).Type == TokenLBrace {
				name := p.peekToken.Literal
				p.nextToken()
				p.nextToken()
				p.nextToken()
				handler := p.parseBlock()
				expr = &CatchExpr{SpanVal: p.span(start), Operand: expr, Name: name, Handler: handler}
				continue
			}
			return expr
		default:
			return expr
		}
	}
}

func (p *Parser) parseCall(callee Expr, start Position) Expr {
	p.nextToken() // (
	call := &CallExpr{Callee: callee}
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenIdentifier) && p.peekTokenIs(TokenAssign) {
			name := p.curToken.Literal
			for _, kw := range call.Kwargs {
				if kw.Name == name {
					p.errorf("Duplicate keyword argument '%s'.", name)
				}
			}
			p.nextToken()
			p.nextToken()
			call.Kwargs = append(call.Kwargs, KeywordArg{Name: name, Value: p.parseExpression()})
		} else {
			if len(call.Kwargs) > 0 {
				p.errorf("Positional argument follows keyword argument.")
			}
			call.Args = append(call.Args, p.parseExpression())
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen, "after arguments")
	if len(call.Args) > 255 || len(call.Kwargs) > 255 {
		p.errorAt(start, "Can't have more than 255 arguments.")
	}
	call.SpanVal = p.span(start)
	return call
}

// parseIndex parses obj[i], obj[i:j], obj[:j] and obj[i:].
func (p *Parser) parseIndex(object Expr, start Position) Expr {
	p.nextToken() // [
	var lo Expr
	if !p.curTokenIs(TokenColon) {
		lo = p.parseExpression()
	}
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		var hi Expr
		if !p.curTokenIs(TokenRBracket) {
			hi = p.parseExpression()
		}
		p.expect(TokenRBracket, "after slice")
		return &SliceExpr{SpanVal: p.span(start), Object: object, Start: lo, End: hi}
	}
	p.expect(TokenRBracket, "after index")
	return &IndexExpr{SpanVal: p.span(start), Object: object, Index: lo}
}

// ---------------------------------------------------------------------------
// Primary expressions
// ---------------------------------------------------------------------------

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	start := tok.Pos
	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		v, err := strconv.ParseInt(tok.Literal, 0, 64)
		if err != nil {
			p.errorAt(start, "Invalid integer literal %s.", tok.Literal)
		}
		return &IntLiteral{SpanVal: p.span(start), Value: v}
	case TokenFloat:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorAt(start, "Invalid float literal %s.", tok.Literal)
		}
		return &FloatLiteral{SpanVal: p.span(start), Value: v}
	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: p.span(start), Value: tok.Literal}
	case TokenRawString:
		p.nextToken()
		return &StringLiteral{SpanVal: p.span(start), Value: tok.Literal, Raw: true}
	case TokenFString:
		p.nextToken()
		return p.parseFString(tok)
	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: p.span(start), Value: tok.Type == TokenTrue}
	case TokenNil:
		p.nextToken()
		return &NilLiteral{SpanVal: p.span(start)}
	case TokenIdentifier, TokenErrorType:
		p.nextToken()
		return &Identifier{SpanVal: p.span(start), Name: tok.Literal}
	case TokenSelf:
		p.nextToken()
		return &SelfExpr{SpanVal: p.span(start)}
	case TokenSuper:
		p.nextToken()
		if !p.expect(TokenDot, "after 'super'") {
			return &NilLiteral{SpanVal: p.span(start)}
		}
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("Expected superclass method name, got %s.", p.curToken.describe())
			return &NilLiteral{SpanVal: p.span(start)}
		}
		name := p.curToken.Literal
		p.nextToken()
		return &SuperExpr{SpanVal: p.span(start), Method: name}
	case TokenLParen:
		return p.parseParenOrTuple()
	case TokenLBracket:
		return p.parseArray()
	case TokenLBrace:
		return p.parseMap()
	case TokenPipe:
		return p.parseLambda()
	case TokenFn:
		fn := p.parseFunction()
		return &LambdaExpr{SpanVal: p.span(start), Func: fn}
	case TokenMatch:
		return p.parseMatch()
	case TokenTry:
		p.nextToken()
		operand := p.parseOr()
		p.expect(TokenCatch, "after try expression")
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("Expected error variable name after 'catch', got %s.", p.curToken.describe())
			return operand
		}
		name := p.curToken.Literal
		p.nextToken()
		handler := p.parseBlock()
		return &CatchExpr{SpanVal: p.span(start), Operand: operand, Name: name, Handler: handler}
	}

	p.errorf("Expected expression, got %s.", tok.describe())
	return &NilLiteral{SpanVal: p.span(start)}
}

func (p *Parser) parseParenOrTuple() Expr {
	start := p.curToken.Pos
	p.nextToken() // (
	if p.curTokenIs(TokenRParen) {
		p.nextToken()
		return &TupleLiteral{SpanVal: p.span(start)}
	}
	first := p.parseExpression()
	if !p.curTokenIs(TokenComma) {
		p.expect(TokenRParen, "after expression")
		return first
	}
	elems := []Expr{first}
	for p.curTokenIs(TokenComma) {
		p.nextToken()
		if p.curTokenIs(TokenRParen) {
			break
		}
		elems = append(elems, p.parseExpression())
	}
	p.expect(TokenRParen, "after tuple elements")
	return &TupleLiteral{SpanVal: p.span(start), Elements: elems}
}

func (p *Parser) parseArray() Expr {
	start := p.curToken.Pos
	p.nextToken() // [
	arr := &ArrayLiteral{}
	for !p.curTokenIs(TokenRBracket) && !p.curTokenIs(TokenEOF) {
		arr.Elements = append(arr.Elements, p.parseExpression())
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRBracket, "after array elements")
	arr.SpanVal = p.span(start)
	return arr
}

// parseMap parses {name: v, "key": v, [expr]: v, shorthand}.
func (p *Parser) parseMap() Expr {
	start := p.curToken.Pos
	p.nextToken() // {
	m := &MapLiteral{}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		var entry MapEntry
		keyTok := p.curToken
		switch {
		case keyTok.Type == TokenIdentifier && (p.peekTokenIs(TokenComma) || p.peekTokenIs(TokenRBrace)):
			p.nextToken()
			entry.Key = &StringLiteral{SpanVal: p.span(keyTok.Pos), Value: keyTok.Literal}
			entry.Value = &Identifier{SpanVal: p.span(keyTok.Pos), Name: keyTok.Literal}
		case keyTok.Type == TokenIdentifier && p.peekTokenIs(TokenColon):
			p.nextToken()
			entry.Key = &StringLiteral{SpanVal: p.span(keyTok.Pos), Value: keyTok.Literal}
		case keyTok.Type == TokenLBracket:
			p.nextToken()
			entry.Key = p.parseExpression()
			p.expect(TokenRBracket, "after computed key")
		default:
			entry.Key = p.parseOr()
		}
		if entry.Value == nil {
			p.expect(TokenColon, "after map key")
			entry.Value = p.parseExpression()
		}
		m.Entries = append(m.Entries, entry)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRBrace, "after map entries")
	m.SpanVal = p.span(start)
	return m
}

// parseLambda parses |params| expr and |params| { block }.
func (p *Parser) parseLambda() Expr {
	start := p.curToken.Pos
	p.nextToken() // |
	fn := &FuncDecl{}
	fn.Params, fn.HasSelf = p.parseParams(TokenPipe)
	if fn.HasSelf {
		p.errorAt(start, "Lambdas can't take 'self'.")
	}
	p.expect(TokenPipe, "after lambda parameters")
	if p.curTokenIs(TokenLBrace) {
		fn.Body, fn.Doc = p.parseFunctionBody()
	} else {
		fn.ExprBody = p.parseExpression()
	}
	fn.SpanVal = p.span(start)
	return &LambdaExpr{SpanVal: fn.SpanVal, Func: fn}
}

// ---------------------------------------------------------------------------
// Match expressions and patterns
// ---------------------------------------------------------------------------

func (p *Parser) parseMatch() Expr {
	start := p.curToken.Pos
	p.nextToken() // match
	m := &MatchExpr{Subject: p.parseExpression()}
	p.expect(TokenLBrace, "before match arms")
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		armStart := p.curToken.Pos
		arm := &MatchArm{}
		arm.Patterns = append(arm.Patterns, p.parsePattern())
		for p.curTokenIs(TokenPipe) {
			p.nextToken()
			arm.Patterns = append(arm.Patterns, p.parsePattern())
		}
		if p.curTokenIs(TokenIf) {
			p.nextToken()
			arm.Guard = p.parseExpression()
		}
		p.expect(TokenFatArrow, "after match pattern")
		if p.curTokenIs(TokenLBrace) {
			bodyStart := p.curToken.Pos
			block := p.parseBlock()
			arm.Body = &BlockExpr{SpanVal: p.span(bodyStart), Block: block}
		} else {
			arm.Body = p.parseExpression()
		}
		arm.SpanVal = p.span(armStart)
		m.Arms = append(m.Arms, arm)
		if p.panicking {
			return m
		}
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace, "after match arms")
	m.SpanVal = p.span(start)
	return m
}

func (p *Parser) parsePattern() Pattern {
	start := p.curToken.Pos
	tok := p.curToken

	if tok.Type == TokenDotDot || tok.Type == TokenDotDotEq {
		inclusive := tok.Type == TokenDotDotEq
		p.nextToken()
		hi := p.parsePatternValue()
		return &RangePattern{SpanVal: p.span(start), Hi: hi, Inclusive: inclusive}
	}
	if tok.Type == TokenIdentifier && !p.peekTokenIs(TokenColonColon) && !p.peekTokenIs(TokenDot) {
		p.nextToken()
		if tok.Literal == "_" {
			return &WildcardPattern{SpanVal: p.span(start)}
		}
		return &BindingPattern{SpanVal: p.span(start), Name: tok.Literal}
	}

	value := p.parsePatternValue()
	if p.curTokenIs(TokenDotDot) || p.curTokenIs(TokenDotDotEq) {
		inclusive := p.curTokenIs(TokenDotDotEq)
		p.nextToken()
		var hi Expr
		switch p.curToken.Type {
		case TokenFatArrow, TokenPipe, TokenIf, TokenComma:
			if inclusive {
				p.errorf("Inclusive range pattern needs an upper bound.")
			}
		default:
			hi = p.parsePatternValue()
		}
		return &RangePattern{SpanVal: p.span(start), Lo: value, Hi: hi, Inclusive: inclusive}
	}
	return &ValuePattern{SpanVal: p.span(start), Value: value}
}

// parsePatternValue parses a literal (optionally negated) or a path such
// as Enum::Variant, Enum.Variant or Err!::Kind.
func (p *Parser) parsePatternValue() Expr {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenMinus:
		p.nextToken()
		switch lit := p.parsePatternValue().(type) {
		case *IntLiteral:
			return &IntLiteral{SpanVal: p.span(start), Value: -lit.Value}
		case *FloatLiteral:
			return &FloatLiteral{SpanVal: p.span(start), Value: -lit.Value}
		}
		p.errorAt(start, "Only numbers can be negated in patterns.")
		return &NilLiteral{SpanVal: p.span(start)}
	case TokenInteger, TokenFloat, TokenString, TokenRawString, TokenTrue, TokenFalse, TokenNil:
		return p.parsePrimary()
	case TokenIdentifier, TokenErrorType:
		var expr Expr = &Identifier{SpanVal: p.span(start), Name: p.curToken.Literal}
		p.nextToken()
		for p.curTokenIs(TokenColonColon) || p.curTokenIs(TokenDot) {
			sep := p.curToken.Type
			p.nextToken()
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("Expected name in pattern path, got %s.", p.curToken.describe())
				return expr
			}
			name := p.curToken.Literal
			p.nextToken()
			if sep == TokenColonColon {
				expr = &VariantExpr{SpanVal: p.span(start), Enum: expr, Name: name}
			} else {
				expr = &PropertyExpr{SpanVal: p.span(start), Object: expr, Name: name}
			}
		}
		return expr
	}
	p.errorf("Expected pattern, got %s.", p.curToken.describe())
	p.nextToken()
	return &NilLiteral{SpanVal: p.span(start)}
}

// ---------------------------------------------------------------------------
// Interpolated strings
// ---------------------------------------------------------------------------

// parseFString splits the raw body of f"..." into text and expression
// parts. Each {splice} is parsed by a nested parser.
func (p *Parser) parseFString(tok Token) Expr {
	body := tok.Literal
	fs := &FString{SpanVal: Span{Start: tok.Pos, End: tok.Pos}}
	var text strings.Builder

	flush := func() {
		if text.Len() == 0 {
			return
		}
		decoded, lerr := decodeEscapes(text.String(), 0)
		if lerr != nil {
			p.errorAt(tok.Pos, "%s", lerr.Message)
		}
		fs.Parts = append(fs.Parts, &StringLiteral{SpanVal: fs.SpanVal, Value: decoded})
		text.Reset()
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '\\':
			text.WriteByte(c)
			if i+1 < len(body) {
				i++
				text.WriteByte(body[i])
			}
		case '{':
			end := matchingBrace(body, i)
			if end < 0 {
				p.errorAt(tok.Pos, "Unterminated '{' in f-string.")
				return fs
			}
			src := body[i+1 : end]
			if strings.TrimSpace(src) == "" {
				p.errorAt(tok.Pos, "Empty expression in f-string.")
				return fs
			}
			flush()
			fs.Parts = append(fs.Parts, p.parseSplice(src, tok))
			i = end
		default:
			text.WriteByte(c)
		}
	}
	flush()
	return fs
}

// parseSplice parses one f-string splice with a nested parser.
func (p *Parser) parseSplice(src string, tok Token) Expr {
	sub := newParserAt(src, tok.Pos.Line)
	expr := sub.parseExpression()
	if !sub.curTokenIs(TokenEOF) {
		sub.errorf("Unexpected %s in f-string expression.", sub.curToken.describe())
	}
	for _, e := range sub.errors {
		if !p.panicking {
			p.errors = append(p.errors, &CompileError{Line: tok.Pos.Line, Column: tok.Pos.Column, Message: e.Message})
			p.panicking = true
		}
	}
	return expr
}

// matchingBrace returns the index of the '}' closing the '{' at open,
// skipping nested braces and string literals, or -1.
func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"':
			for i++; i < len(s) && s[i] != '"'; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		}
	}
	return -1
}
