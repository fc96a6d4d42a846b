// Package parser implements a recursive-descent parser that turns a token
// stream into the internal/ast tree: a current/peek/advance/expect/match
// token cursor and a precedence-climbing ladder of one parseXxxExpr method
// per binding level calling the next tighter level.
//
// No identifier binding happens here at all — every PathExpr is left
// unresolved (Symbol == nil) for internal/sema's passes to fill in.
package parser

import (
	"fmt"

	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/lexer"
	"github.com/rustlite/rlc/internal/token"
)

// ParseError is a single syntax error, with the source position the lexer or
// parser had reached when it noticed something wrong.
type ParseError struct {
	Message string
	Line    int
	Col     int
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

// Parser holds the token cursor and accumulated errors for one source file.
type Parser struct {
	tokens []token.Token
	pos    int
	errors []ParseError
}

// New tokenizes source and returns a Parser ready to call Parse on. A lexer
// error is returned unchanged, together with a nil *Parser.
func New(source string) (*Parser, error) {
	lex := lexer.New(source)
	toks, err := lex.Tokenize()
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: toks}, nil
}

// Parse parses a full compilation unit. A non-nil error list means the
// returned module is a best-effort partial tree and should not be used for
// anything but error reporting.
func (p *Parser) Parse() (*ast.Module, []ParseError) {
	module := &ast.Module{}
	for p.current().Kind != token.EOF {
		if d := p.parseDecl(); d != nil {
			module.Decls = append(module.Decls, d)
		} else {
			// parseDecl already recorded an error; skip the offending token
			// so the loop makes progress instead of spinning forever.
			p.advance()
		}
	}
	return module, p.errors
}

// ----------------------------------------------------------------------------
// Token helpers
// ----------------------------------------------------------------------------

func (p *Parser) current() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(offset int) token.Token {
	pos := p.pos + offset
	if pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[pos]
}

func (p *Parser) advance() token.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind token.Kind) (token.Token, bool) {
	tok := p.current()
	if tok.Kind != kind {
		p.errorf("expected %s, got %s", kind, tok.Kind)
		return tok, false
	}
	p.advance()
	return tok, true
}

func (p *Parser) match(kind token.Kind) bool {
	if p.current().Kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) {
	tok := p.current()
	p.errors = append(p.errors, ParseError{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Col:     tok.Col,
	})
}

func (p *Parser) loc() ast.Loc {
	tok := p.current()
	return ast.Loc{Offset: tok.Offset, Line: tok.Line, Col: tok.Col}
}

// ----------------------------------------------------------------------------
// Declarations
// ----------------------------------------------------------------------------

func (p *Parser) parseDecl() ast.Decl {
	switch p.current().Kind {
	case token.KwFn:
		return p.parseFnDecl()
	case token.KwStruct:
		return p.parseStructDecl()
	case token.KwEnum:
		return p.parseEnumDecl()
	case token.KwTrait:
		return p.parseTraitDecl()
	case token.KwImpl:
		return p.parseImplDecl()
	case token.KwConst, token.KwLet:
		// Module-scope bindings are compile-time constants; `const` is the
		// canonical spelling, `let` is tolerated at module scope since a
		// module has no runtime initializer order to distinguish it.
		return p.parseConstDecl()
	default:
		p.errorf("expected an item (fn, struct, enum, trait, impl, or const), got %s", p.current().Kind)
		return nil
	}
}

func (p *Parser) parseFnDecl() *ast.FnDecl {
	loc := p.loc()
	p.expect(token.KwFn)
	name, _ := p.expect(token.Ident)
	p.expect(token.LParen)

	decl := &ast.FnDecl{Name: name.Text}
	decl.Loc = loc

	if self := p.tryParseSelfParam(); self != nil {
		decl.Self = self
		if p.current().Kind == token.Comma {
			p.advance()
		}
	}
	for p.current().Kind != token.RParen && p.current().Kind != token.EOF {
		pname, _ := p.expect(token.Ident)
		p.expect(token.Colon)
		ptype := p.parseType()
		decl.Params = append(decl.Params, ast.Param{Name: pname.Text, Type: ptype})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)

	if p.match(token.Arrow) {
		decl.ReturnType = p.parseType()
	}

	decl.Body = p.parseBlockExpr()
	return decl
}

// tryParseSelfParam consumes a leading `self`, `&self`, or `&mut self`
// receiver if present, returning nil without consuming anything otherwise.
func (p *Parser) tryParseSelfParam() *ast.SelfParam {
	loc := p.loc()
	switch p.current().Kind {
	case token.KwSelf:
		p.advance()
		return &ast.SelfParam{Loc: loc}
	case token.Amp:
		if p.peek(1).Kind == token.KwSelf {
			p.advance()
			p.advance()
			return &ast.SelfParam{IsRef: true, Loc: loc}
		}
		if p.peek(1).Kind == token.KwMut && p.peek(2).Kind == token.KwSelf {
			p.advance()
			p.advance()
			p.advance()
			return &ast.SelfParam{IsRef: true, IsMut: true, Loc: loc}
		}
	}
	return nil
}

func (p *Parser) parseStructDecl() *ast.StructDecl {
	loc := p.loc()
	p.expect(token.KwStruct)
	name, _ := p.expect(token.Ident)
	decl := &ast.StructDecl{Name: name.Text}
	decl.Loc = loc
	p.expect(token.LBrace)
	for p.current().Kind != token.RBrace && p.current().Kind != token.EOF {
		fname, _ := p.expect(token.Ident)
		p.expect(token.Colon)
		ftype := p.parseType()
		decl.Fields = append(decl.Fields, ast.StructField{Name: fname.Text, Type: ftype})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	return decl
}

func (p *Parser) parseEnumDecl() *ast.EnumDecl {
	loc := p.loc()
	p.expect(token.KwEnum)
	name, _ := p.expect(token.Ident)
	decl := &ast.EnumDecl{Name: name.Text}
	decl.Loc = loc
	p.expect(token.LBrace)
	for p.current().Kind != token.RBrace && p.current().Kind != token.EOF {
		variant, _ := p.expect(token.Ident)
		decl.Variants = append(decl.Variants, variant.Text)
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	return decl
}

func (p *Parser) parseTraitDecl() *ast.TraitDecl {
	loc := p.loc()
	p.expect(token.KwTrait)
	name, _ := p.expect(token.Ident)
	decl := &ast.TraitDecl{Name: name.Text}
	decl.Loc = loc
	p.expect(token.LBrace)
	for p.current().Kind != token.RBrace && p.current().Kind != token.EOF {
		decl.RequiredFuncs = append(decl.RequiredFuncs, p.parseFnSignature())
	}
	p.expect(token.RBrace)
	return decl
}

func (p *Parser) parseFnSignature() ast.FnSignature {
	loc := p.loc()
	p.expect(token.KwFn)
	name, _ := p.expect(token.Ident)
	p.expect(token.LParen)
	sig := ast.FnSignature{Name: name.Text, Loc: loc}
	if self := p.tryParseSelfParam(); self != nil {
		sig.Self = self
		if p.current().Kind == token.Comma {
			p.advance()
		}
	}
	for p.current().Kind != token.RParen && p.current().Kind != token.EOF {
		pname, _ := p.expect(token.Ident)
		p.expect(token.Colon)
		ptype := p.parseType()
		sig.Params = append(sig.Params, ast.Param{Name: pname.Text, Type: ptype})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	if p.match(token.Arrow) {
		sig.ReturnType = p.parseType()
	}
	p.expect(token.Semi)
	return sig
}

func (p *Parser) parseImplDecl() *ast.ImplDecl {
	loc := p.loc()
	p.expect(token.KwImpl)
	first, _ := p.expect(token.Ident)

	decl := &ast.ImplDecl{}
	decl.Loc = loc
	if p.match(token.KwFor) {
		trait := first.Text
		decl.TraitName = &trait
		typeName, _ := p.expect(token.Ident)
		decl.TypeName = typeName.Text
	} else {
		decl.TypeName = first.Text
	}

	p.expect(token.LBrace)
	for p.current().Kind != token.RBrace && p.current().Kind != token.EOF {
		switch p.current().Kind {
		case token.KwConst, token.KwLet:
			decl.Consts = append(decl.Consts, p.parseConstDecl())
		case token.KwFn:
			decl.Functions = append(decl.Functions, p.parseFnDecl())
		default:
			p.errorf("expected a const or fn item inside impl, got %s", p.current().Kind)
			p.advance()
		}
	}
	p.expect(token.RBrace)
	return decl
}

func (p *Parser) parseConstDecl() *ast.ConstDecl {
	loc := p.loc()
	if !p.match(token.KwConst) {
		p.expect(token.KwLet)
	}
	name, _ := p.expect(token.Ident)
	decl := &ast.ConstDecl{Name: name.Text}
	decl.Loc = loc
	p.expect(token.Colon)
	decl.Type = p.parseType()
	p.expect(token.Eq)
	decl.Value = p.parseExpr()
	p.expect(token.Semi)
	return decl
}

// ----------------------------------------------------------------------------
// Types
// ----------------------------------------------------------------------------

func (p *Parser) parseType() ast.TypeNode {
	loc := p.loc()
	switch p.current().Kind {
	case token.LParen:
		p.advance()
		p.expect(token.RParen)
		n := &ast.UnitTypeNode{}
		n.Loc = loc
		return n
	case token.Amp:
		p.advance()
		isMut := p.match(token.KwMut)
		inner := p.parseType()
		n := &ast.RefTypeNode{Inner: inner, IsMut: isMut}
		n.Loc = loc
		return n
	case token.LBracket:
		p.advance()
		elem := p.parseType()
		p.expect(token.Semi)
		length := p.parseExpr()
		p.expect(token.RBracket)
		n := &ast.ArrayTypeNode{Element: elem, Length: length}
		n.Loc = loc
		return n
	case token.Ident, token.KwSelfType:
		name, _ := p.expect(p.current().Kind)
		switch name.Text {
		case "i32", "u32", "isize", "usize", "bool", "char":
			n := &ast.PrimitiveTypeNode{Name: name.Text}
			n.Loc = loc
			return n
		default:
			n := &ast.NamedTypeNode{Name: name.Text}
			n.Loc = loc
			return n
		}
	default:
		p.errorf("expected a type, got %s", p.current().Kind)
		p.advance()
		n := &ast.UnitTypeNode{}
		n.Loc = loc
		return n
	}
}

// ----------------------------------------------------------------------------
// Statements and blocks
// ----------------------------------------------------------------------------

func (p *Parser) parseBlockExpr() *ast.BlockExpr {
	loc := p.loc()
	p.expect(token.LBrace)
	block := &ast.BlockExpr{}
	block.Loc = loc

	for p.current().Kind != token.RBrace && p.current().Kind != token.EOF {
		if p.current().Kind == token.KwLet {
			block.Stmts = append(block.Stmts, p.parseLetStmt())
			continue
		}
		if p.current().Kind == token.KwFn {
			// Function items are top-level only; parse and discard the nested
			// item so the token stream stays aligned for the rest of the block.
			p.errorf("nested function items are not supported")
			p.parseFnDecl()
			continue
		}

		stmtLoc := p.loc()
		isBlockLike := isBlockLikeExprStart(p.current().Kind)
		expr := p.parseExpr()

		if p.match(token.Semi) {
			block.Stmts = append(block.Stmts, newExprStmt(expr, stmtLoc, true))
			continue
		}
		if p.current().Kind == token.RBrace || p.current().Kind == token.EOF {
			block.Tail = expr
			break
		}
		if isBlockLike {
			block.Stmts = append(block.Stmts, newExprStmt(expr, stmtLoc, false))
			continue
		}
		p.errorf("expected `;` after expression statement, got %s", p.current().Kind)
		block.Stmts = append(block.Stmts, newExprStmt(expr, stmtLoc, false))
	}
	p.expect(token.RBrace)
	return block
}

func isBlockLikeExprStart(k token.Kind) bool {
	switch k {
	case token.LBrace, token.KwIf, token.KwLoop, token.KwWhile:
		return true
	default:
		return false
	}
}

func (p *Parser) parseLetStmt() *ast.LetStmt {
	loc := p.loc()
	p.expect(token.KwLet)
	isMut := p.match(token.KwMut)
	name, _ := p.expect(token.Ident)
	stmt := &ast.LetStmt{Pattern: ast.Pattern{Name: name.Text, IsMut: isMut}}
	stmt.Loc = loc
	if p.match(token.Colon) {
		stmt.Type = p.parseType()
	}
	p.expect(token.Eq)
	stmt.Value = p.parseExpr()
	p.expect(token.Semi)
	return stmt
}

// ----------------------------------------------------------------------------
// Expressions: precedence ladder, loosest to tightest
// ----------------------------------------------------------------------------

func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssignExpr()
}

func (p *Parser) parseAssignExpr() ast.Expr {
	left := p.parseLogicalOrExpr()
	loc := p.loc()

	if p.current().Kind == token.Eq {
		p.advance()
		right := p.parseAssignExpr()
		return withLoc(&ast.AssignExpr{Left: left, Right: right}, loc)
	}
	if op, ok := compoundAssignOp(p.current().Kind); ok {
		p.advance()
		right := p.parseAssignExpr()
		return withLoc(&ast.CompoundAssignExpr{Op: op, Left: left, Right: right}, loc)
	}
	return left
}

func compoundAssignOp(k token.Kind) (ast.BinaryOp, bool) {
	switch k {
	case token.PlusEq:
		return ast.OpAdd, true
	case token.MinusEq:
		return ast.OpSub, true
	case token.StarEq:
		return ast.OpMul, true
	case token.SlashEq:
		return ast.OpDiv, true
	case token.PercentEq:
		return ast.OpRem, true
	case token.AmpEq:
		return ast.OpAnd, true
	case token.PipeEq:
		return ast.OpOr, true
	case token.CaretEq:
		return ast.OpXor, true
	case token.ShlEq:
		return ast.OpShl, true
	case token.ShrEq:
		return ast.OpShr, true
	default:
		return 0, false
	}
}

func (p *Parser) parseLogicalOrExpr() ast.Expr {
	left := p.parseLogicalAndExpr()
	for p.current().Kind == token.PipePipe {
		loc := p.loc()
		p.advance()
		right := p.parseLogicalAndExpr()
		left = withLoc(&ast.LogicalExpr{Op: ast.LogicalOr, Left: left, Right: right}, loc)
	}
	return left
}

func (p *Parser) parseLogicalAndExpr() ast.Expr {
	left := p.parseEqualityExpr()
	for p.current().Kind == token.AmpAmp {
		loc := p.loc()
		p.advance()
		right := p.parseEqualityExpr()
		left = withLoc(&ast.LogicalExpr{Op: ast.LogicalAnd, Left: left, Right: right}, loc)
	}
	return left
}

func (p *Parser) parseEqualityExpr() ast.Expr {
	left := p.parseRelationalExpr()
	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case token.EqEq:
			op = ast.OpEq
		case token.Ne:
			op = ast.OpNe
		default:
			return left
		}
		loc := p.loc()
		p.advance()
		right := p.parseRelationalExpr()
		left = withLoc(&ast.BinaryExpr{Op: op, Left: left, Right: right}, loc)
	}
}

func (p *Parser) parseRelationalExpr() ast.Expr {
	left := p.parseBitwiseOrExpr()
	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case token.Lt:
			op = ast.OpLt
		case token.Le:
			op = ast.OpLe
		case token.Gt:
			op = ast.OpGt
		case token.Ge:
			op = ast.OpGe
		default:
			return left
		}
		loc := p.loc()
		p.advance()
		right := p.parseBitwiseOrExpr()
		left = withLoc(&ast.BinaryExpr{Op: op, Left: left, Right: right}, loc)
	}
}

func (p *Parser) parseBitwiseOrExpr() ast.Expr {
	left := p.parseBitwiseXorExpr()
	for p.current().Kind == token.Pipe {
		loc := p.loc()
		p.advance()
		right := p.parseBitwiseXorExpr()
		left = withLoc(&ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right}, loc)
	}
	return left
}

func (p *Parser) parseBitwiseXorExpr() ast.Expr {
	left := p.parseBitwiseAndExpr()
	for p.current().Kind == token.Caret {
		loc := p.loc()
		p.advance()
		right := p.parseBitwiseAndExpr()
		left = withLoc(&ast.BinaryExpr{Op: ast.OpXor, Left: left, Right: right}, loc)
	}
	return left
}

func (p *Parser) parseBitwiseAndExpr() ast.Expr {
	left := p.parseShiftExpr()
	for p.current().Kind == token.Amp {
		loc := p.loc()
		p.advance()
		right := p.parseShiftExpr()
		left = withLoc(&ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right}, loc)
	}
	return left
}

func (p *Parser) parseShiftExpr() ast.Expr {
	left := p.parseAdditiveExpr()
	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case token.Shl:
			op = ast.OpShl
		case token.Shr:
			op = ast.OpShr
		default:
			return left
		}
		loc := p.loc()
		p.advance()
		right := p.parseAdditiveExpr()
		left = withLoc(&ast.BinaryExpr{Op: op, Left: left, Right: right}, loc)
	}
}

func (p *Parser) parseAdditiveExpr() ast.Expr {
	left := p.parseMultiplicativeExpr()
	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case token.Plus:
			op = ast.OpAdd
		case token.Minus:
			op = ast.OpSub
		default:
			return left
		}
		loc := p.loc()
		p.advance()
		right := p.parseMultiplicativeExpr()
		left = withLoc(&ast.BinaryExpr{Op: op, Left: left, Right: right}, loc)
	}
}

func (p *Parser) parseMultiplicativeExpr() ast.Expr {
	left := p.parseCastExpr()
	for {
		var op ast.BinaryOp
		switch p.current().Kind {
		case token.Star:
			op = ast.OpMul
		case token.Slash:
			op = ast.OpDiv
		case token.Percent:
			op = ast.OpRem
		default:
			return left
		}
		loc := p.loc()
		p.advance()
		right := p.parseCastExpr()
		left = withLoc(&ast.BinaryExpr{Op: op, Left: left, Right: right}, loc)
	}
}

func (p *Parser) parseCastExpr() ast.Expr {
	value := p.parseUnaryExpr()
	for p.current().Kind == token.KwAs {
		loc := p.loc()
		p.advance()
		typeNode := p.parseType()
		value = withLoc(&ast.CastExpr{Value: value, Type: typeNode}, loc)
	}
	return value
}

func (p *Parser) parseUnaryExpr() ast.Expr {
	loc := p.loc()
	switch p.current().Kind {
	case token.Minus:
		p.advance()
		return withLoc(&ast.UnaryExpr{Op: ast.OpNeg, Operand: p.parseUnaryExpr()}, loc)
	case token.Bang:
		p.advance()
		return withLoc(&ast.UnaryExpr{Op: ast.OpNot, Operand: p.parseUnaryExpr()}, loc)
	case token.Star:
		p.advance()
		return withLoc(&ast.UnaryExpr{Op: ast.OpDeref, Operand: p.parseUnaryExpr()}, loc)
	case token.Amp:
		p.advance()
		if p.match(token.KwMut) {
			return withLoc(&ast.UnaryExpr{Op: ast.OpBorrowMut, Operand: p.parseUnaryExpr()}, loc)
		}
		return withLoc(&ast.UnaryExpr{Op: ast.OpBorrow, Operand: p.parseUnaryExpr()}, loc)
	default:
		return p.parsePostfixExpr()
	}
}

func (p *Parser) parsePostfixExpr() ast.Expr {
	expr := p.parsePrimaryExpr()
	for {
		switch p.current().Kind {
		case token.Dot:
			loc := p.loc()
			p.advance()
			field, _ := p.expect(token.Ident)
			if p.current().Kind == token.LParen {
				args := p.parseArgList()
				expr = withLoc(&ast.CallExpr{
					Callee:       withLoc(&ast.FieldExpr{Base: expr, Field: field.Text}, loc),
					Args:         args,
					IsMethodCall: true,
				}, loc)
			} else {
				expr = withLoc(&ast.FieldExpr{Base: expr, Field: field.Text}, loc)
			}
		case token.LBracket:
			loc := p.loc()
			p.advance()
			index := p.parseExpr()
			p.expect(token.RBracket)
			expr = withLoc(&ast.IndexExpr{Base: expr, Index: index}, loc)
		case token.LParen:
			loc := p.loc()
			args := p.parseArgList()
			expr = withLoc(&ast.CallExpr{Callee: expr, Args: args}, loc)
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgList() []ast.Expr {
	p.expect(token.LParen)
	var args []ast.Expr
	for p.current().Kind != token.RParen && p.current().Kind != token.EOF {
		args = append(args, p.parseExpr())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	return args
}

func (p *Parser) parsePrimaryExpr() ast.Expr {
	loc := p.loc()
	tok := p.current()
	switch tok.Kind {
	case token.IntLiteral:
		p.advance()
		return withLoc(&ast.IntLitExpr{Value: tok.IntValue, Suffix: tok.IntSuffix.String()}, loc)
	case token.KwTrue:
		p.advance()
		return withLoc(&ast.BoolLitExpr{Value: true}, loc)
	case token.KwFalse:
		p.advance()
		return withLoc(&ast.BoolLitExpr{Value: false}, loc)
	case token.CharLiteral:
		p.advance()
		return withLoc(&ast.CharLitExpr{Value: tok.CharValue}, loc)
	case token.LParen:
		p.advance()
		if p.current().Kind == token.RParen {
			// `()`, the unit value, parses as an empty block: both denote
			// the same single inhabitant of the unit type with no runtime
			// representation to construct.
			p.advance()
			return withLoc(&ast.BlockExpr{}, loc)
		}
		inner := p.parseExpr()
		p.expect(token.RParen)
		return inner
	case token.LBracket:
		return p.parseArrayLit(loc)
	case token.LBrace:
		return p.parseBlockExpr()
	case token.KwIf:
		return p.parseIfExpr()
	case token.KwLoop:
		return p.parseLoopExpr()
	case token.KwWhile:
		return p.parseWhileExpr()
	case token.KwBreak:
		p.advance()
		var value ast.Expr
		if p.current().Kind != token.Semi && p.current().Kind != token.RBrace {
			value = p.parseExpr()
		}
		return withLoc(&ast.BreakExpr{Value: value}, loc)
	case token.KwContinue:
		p.advance()
		return withLoc(&ast.ContinueExpr{}, loc)
	case token.KwReturn:
		p.advance()
		var value ast.Expr
		if p.current().Kind != token.Semi && p.current().Kind != token.RBrace {
			value = p.parseExpr()
		}
		return withLoc(&ast.ReturnExpr{Value: value}, loc)
	case token.KwSelf:
		p.advance()
		return withLoc(&ast.PathExpr{Segments: []ast.PathSegment{{Name: "self", Loc: loc}}}, loc)
	case token.Ident, token.KwSelfType:
		return p.parsePathOrStructLit(loc)
	default:
		p.errorf("expected an expression, got %s", tok.Kind)
		p.advance()
		return withLoc(&ast.IntLitExpr{Value: 0}, loc)
	}
}

func (p *Parser) parsePathOrStructLit(loc ast.Loc) ast.Expr {
	first, _ := p.expect(p.current().Kind)
	segments := []ast.PathSegment{{Name: first.Text, Loc: loc}}
	for p.current().Kind == token.ColonColon {
		p.advance()
		seg, _ := p.expect(token.Ident)
		segments = append(segments, ast.PathSegment{Name: seg.Text, Loc: p.loc()})
	}

	if len(segments) == 1 && p.current().Kind == token.LBrace && isCapitalized(first.Text) {
		return p.parseStructLitBody(loc, first.Text)
	}
	return withLoc(&ast.PathExpr{Segments: segments}, loc)
}

func isCapitalized(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

func (p *Parser) parseStructLitBody(loc ast.Loc, typeName string) ast.Expr {
	p.expect(token.LBrace)
	lit := &ast.StructLitExpr{TypeName: typeName}
	for p.current().Kind != token.RBrace && p.current().Kind != token.EOF {
		name, _ := p.expect(token.Ident)
		p.expect(token.Colon)
		value := p.parseExpr()
		lit.Fields = append(lit.Fields, ast.StructLitField{Name: name.Text, Value: value})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	return withLoc(lit, loc)
}

func (p *Parser) parseArrayLit(loc ast.Loc) ast.Expr {
	p.expect(token.LBracket)
	if p.current().Kind == token.RBracket {
		p.advance()
		return withLoc(&ast.ArrayLitExpr{}, loc)
	}
	first := p.parseExpr()
	if p.match(token.Semi) {
		length := p.parseExpr()
		p.expect(token.RBracket)
		return withLoc(&ast.RepeatArrayLitExpr{Value: first, Length: length}, loc)
	}
	elements := []ast.Expr{first}
	for p.match(token.Comma) {
		if p.current().Kind == token.RBracket {
			break
		}
		elements = append(elements, p.parseExpr())
	}
	p.expect(token.RBracket)
	return withLoc(&ast.ArrayLitExpr{Elements: elements}, loc)
}

func (p *Parser) parseIfExpr() ast.Expr {
	loc := p.loc()
	p.expect(token.KwIf)
	cond := p.parseExpr()
	then := p.parseBlockExpr()
	ifExpr := &ast.IfExpr{Cond: cond, Then: then}
	ifExpr.Loc = loc
	if p.match(token.KwElse) {
		if p.current().Kind == token.KwIf {
			ifExpr.Else = p.parseIfExpr()
		} else {
			ifExpr.Else = p.parseBlockExpr()
		}
	}
	return ifExpr
}

func (p *Parser) parseLoopExpr() ast.Expr {
	loc := p.loc()
	p.expect(token.KwLoop)
	body := p.parseBlockExpr()
	loopExpr := &ast.LoopExpr{Body: body}
	loopExpr.Loc = loc
	return loopExpr
}

func (p *Parser) parseWhileExpr() ast.Expr {
	loc := p.loc()
	p.expect(token.KwWhile)
	cond := p.parseExpr()
	body := p.parseBlockExpr()
	whileExpr := &ast.WhileExpr{Cond: cond, Body: body}
	whileExpr.Loc = loc
	return whileExpr
}

// ----------------------------------------------------------------------------
// Loc-stamping helpers
// ----------------------------------------------------------------------------

// withLoc stamps e's embedded ExprMeta.Loc and returns e, letting every
// constructor above be written as a single expression instead of a
// declare-then-assign pair.
func withLoc(e ast.Expr, loc ast.Loc) ast.Expr {
	e.Meta().Loc = loc
	return e
}

// newExprStmt builds an ExprStmt with its Loc stamped.
func newExprStmt(value ast.Expr, loc ast.Loc, hasSemi bool) *ast.ExprStmt {
	stmt := &ast.ExprStmt{Value: value, HasSemi: hasSemi}
	stmt.Loc = loc
	return stmt
}
