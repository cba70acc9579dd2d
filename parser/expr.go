package parser

import (
	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/lexer"
	"github.com/cyphersql/cyphersql/token"
)

// parseExpression is the entry point of the precedence-climbing
// expression grammar (spec §4.2 "expressions"), lowest precedence first:
// OR, XOR, AND, NOT, comparison, additive, multiplicative, unary, power,
// postfix property access, primary.
func (p *parser) parseExpression() (ast.Expression, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (ast.Expression, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}

	for p.peek().Kind == token.OR {
		start := p.peek().Pos
		p.advance()

		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}

		left = &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpOr, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseXor() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.peek().Kind == token.XOR {
		start := p.peek().Pos
		p.advance()

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpXor, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.peek().Kind == token.AND {
		start := p.peek().Pos
		p.advance()

		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		left = &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpAnd, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseNot() (ast.Expression, error) {
	if p.peek().Kind == token.NOT {
		start := p.peek().Pos
		p.advance()

		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return &ast.UnaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpNot, X: x}, nil
	}

	return p.parseComparison()
}

// parseComparison handles a single (non-chained, matching Cypher's own
// semantics) comparison or type-test operator: the usual six relational
// operators, IN, =~, STARTS WITH/ENDS WITH/CONTAINS, and the postfix IS
// NULL / IS NOT NULL tests.
func (p *parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	start := left.Span().Start

	switch p.peek().Kind {
	case token.Eq, token.NotEq, token.Lt, token.Gt, token.LtEq, token.GtEq, token.RegexMatch:
		op := map[token.Kind]ast.BinaryOp{
			token.Eq:         ast.OpEq,
			token.NotEq:      ast.OpNotEq,
			token.Lt:         ast.OpLt,
			token.Gt:         ast.OpGt,
			token.LtEq:       ast.OpLtEq,
			token.GtEq:       ast.OpGtEq,
			token.RegexMatch: ast.OpRegexMatch,
		}[p.peek().Kind]
		p.advance()

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: op, Left: left, Right: right}, nil

	case token.IN:
		p.advance()

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpIn, Left: left, Right: right}, nil

	case token.STARTS:
		p.advance()

		if !p.soft("WITH") {
			return nil, errs.NewParseError(p.peek().Pos, "WITH", p.peek().Kind.String())
		}

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpStartsWith, Left: left, Right: right}, nil

	case token.ENDS:
		p.advance()

		if !p.soft("WITH") {
			return nil, errs.NewParseError(p.peek().Pos, "WITH", p.peek().Kind.String())
		}

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpEndsWith, Left: left, Right: right}, nil

	case token.CONTAINS:
		p.advance()

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpContains, Left: left, Right: right}, nil

	case token.IS:
		p.advance()

		isNot := false
		if p.peek().Kind == token.NOT {
			p.advance()

			isNot = true
		}

		if _, err := p.expect(token.NULL); err != nil {
			return nil, err
		}

		op := ast.OpIsNull
		if isNot {
			op = ast.OpIsNotNull
		}

		return &ast.UnaryExpr{SpanV: span(start, p.peek().Pos), Op: op, X: left}, nil
	}

	return left, nil
}

func (p *parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for p.peek().Kind == token.Plus || p.peek().Kind == token.Minus {
		start := left.Span().Start

		op := ast.OpAdd
		if p.peek().Kind == token.Minus {
			op = ast.OpSub
		}

		p.advance()

		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		left = &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: op, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	ops := map[token.Kind]ast.BinaryOp{token.Star: ast.OpMul, token.Slash: ast.OpDiv, token.Percent: ast.OpMod}

	for {
		op, ok := ops[p.peek().Kind]
		if !ok {
			return left, nil
		}

		start := left.Span().Start
		p.advance()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (ast.Expression, error) {
	switch p.peek().Kind {
	case token.Minus:
		start := p.peek().Pos
		p.advance()

		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &ast.UnaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpNeg, X: x}, nil

	case token.Plus:
		start := p.peek().Pos
		p.advance()

		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &ast.UnaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpPos, X: x}, nil
	}

	return p.parsePower()
}

func (p *parser) parsePower() (ast.Expression, error) {
	left, err := p.parsePropertyAccess()
	if err != nil {
		return nil, err
	}

	if p.peek().Kind == token.Caret {
		start := left.Span().Start
		p.advance()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &ast.BinaryExpr{SpanV: span(start, p.peek().Pos), Op: ast.OpPow, Left: left, Right: right}, nil
	}

	return left, nil
}

// parsePropertyAccess parses a primary expression followed by zero or
// more ".prop" accesses, collapsed into one PropertyAccess chain (spec
// §4.2 "property access chains": n.address.city, not nested
// PropertyAccess-of-PropertyAccess nodes).
func (p *parser) parsePropertyAccess() (ast.Expression, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if p.peek().Kind != token.Dot {
		return base, nil
	}

	start := base.Span().Start

	var path []string

	for p.peek().Kind == token.Dot {
		p.advance()

		propTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}

		path = append(path, propTok.Text)
	}

	return &ast.PropertyAccess{SpanV: span(start, p.peek().Pos), Base: base, Path: path}, nil
}

// parsePrimary parses literals, variables, parenthesised expressions,
// list/map literals, function calls, and the soft-keyword-led forms
// (CASE, EXISTS, ALL/ANY/NONE/SINGLE quantifiers, list comprehensions,
// pattern expressions).
func (p *parser) parsePrimary() (ast.Expression, error) {
	t := p.peek()

	switch t.Kind {
	case token.Int:
		p.advance()

		n, err := parseIntLiteral(t)
		if err != nil {
			return nil, err
		}

		return &ast.IntegerLit{SpanV: span(t.Pos, p.peek().Pos), Value: n}, nil

	case token.Float:
		p.advance()

		f, err := parseFloatLiteral(t)
		if err != nil {
			return nil, err
		}

		return &ast.FloatLit{SpanV: span(t.Pos, p.peek().Pos), Value: f}, nil

	case token.String:
		p.advance()

		return &ast.StringLit{SpanV: span(t.Pos, p.peek().Pos), Value: lexer.Unescape(t.Text)}, nil

	case token.TRUE:
		p.advance()

		return &ast.BoolLit{SpanV: span(t.Pos, p.peek().Pos), Value: true}, nil

	case token.FALSE:
		p.advance()

		return &ast.BoolLit{SpanV: span(t.Pos, p.peek().Pos), Value: false}, nil

	case token.NULL:
		p.advance()

		return &ast.NullLit{SpanV: span(t.Pos, p.peek().Pos)}, nil

	case token.Param:
		p.advance()

		return &ast.Parameter{SpanV: span(t.Pos, p.peek().Pos), Name: t.Text[1:]}, nil

	case token.LBracket:
		return p.parseListExprOrComprehension()

	case token.LBrace:
		m, err := p.parseMapLiteral()
		if err != nil {
			return nil, err
		}

		return m, nil

	case token.LParen:
		return p.parseParenExpr()

	case token.ALL:
		// ALL is a reserved keyword (UNION ALL), so it never reaches the
		// Ident branch below.
		if p.peekAt(1).Kind == token.LParen {
			return p.parseQuantifiedExpr()
		}

	case token.Ident:
		switch {
		case equalFold(t.Text, "CASE"):
			return p.parseCaseExpr()
		case equalFold(t.Text, "EXISTS"):
			return p.parseExistsExpr()
		case equalFold(t.Text, "ALL"), equalFold(t.Text, "ANY"), equalFold(t.Text, "NONE"), equalFold(t.Text, "SINGLE"):
			if p.peekAt(1).Kind == token.LParen {
				return p.parseQuantifiedExpr()
			}
		}

		return p.parseIdentOrCall(t)
	}

	return nil, errs.NewParseError(t.Pos, "expression", t.Kind.String())
}

func (p *parser) parseParenExpr() (ast.Expression, error) {
	start := p.peek().Pos

	if pat, ok := p.tryParsePatternExpr(start); ok {
		return pat, nil
	}

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	return e, nil
}

// tryParsePatternExpr attempts to parse a node pattern (optionally
// chained with relationships) starting at the current "(" token,
// backtracking on failure. Used to disambiguate a parenthesised
// expression from a bare pattern expression like (a)-->(b) used in
// boolean context (spec §4.2, partially evaluated per spec §9).
func (p *parser) tryParsePatternExpr(start token.Position) (ast.Expression, bool) {
	mark := p.mark()

	pat, err := p.parsePattern()
	if err != nil {
		p.reset(mark)

		return nil, false
	}

	// A lone node pattern with no relationships is always a legitimate
	// parenthesised expression's content too (e.g. "(1 + 2)" never
	// reaches here, but "(n)" does); only treat it as a PatternExpr when
	// it was actually used in a context expecting one relationship or
	// more, otherwise fall through so plain variable/grouping parsing
	// still works via the RParen check below.
	if len(pat.Rels) == 0 && len(pat.Nodes) == 1 && pat.Nodes[0].Labels == nil && pat.Nodes[0].Props == nil {
		p.reset(mark)

		return nil, false
	}

	return &ast.PatternExpr{SpanV: span(start, p.peek().Pos), Pattern: pat}, true
}

func (p *parser) parseIdentOrCall(t token.Token) (ast.Expression, error) {
	p.advance()

	name := t.Text

	for p.peek().Kind == token.Dot && p.peekAt(1).Kind == token.Ident && p.peekAt(2).Kind == token.LParen {
		p.advance()

		part := p.advance()
		name += "." + part.Text
	}

	if p.peek().Kind != token.LParen {
		return &ast.Variable{SpanV: span(t.Pos, p.peek().Pos), Name: name}, nil
	}

	p.advance() // (

	call := &ast.FunctionCall{Name: name}

	if p.peek().Kind == token.DISTINCT {
		p.advance()

		call.Distinct = true
	}

	if p.peek().Kind != token.RParen {
		for {
			if p.peek().Kind == token.Star && name == "count" {
				p.advance()

				call.Args = append(call.Args, &ast.Variable{SpanV: span(p.peek().Pos, p.peek().Pos), Name: "*"})
			} else {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}

				call.Args = append(call.Args, arg)
			}

			if p.peek().Kind != token.Comma {
				break
			}

			p.advance()
		}
	}

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	call.SpanV = span(t.Pos, p.peek().Pos)

	return call, nil
}

func (p *parser) parseListExprOrComprehension() (ast.Expression, error) {
	start := p.peek().Pos
	p.advance() // [

	if p.peek().Kind == token.Ident && p.peekAt(1).Kind == token.IN {
		varTok := p.advance()
		p.advance() // IN

		list, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		lc := &ast.ListComprehension{Variable: varTok.Text, List: list}

		if p.peek().Kind == token.WHERE {
			p.advance()

			lc.Where, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}

		if p.peek().Kind == token.Pipe {
			p.advance()

			lc.Map, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}

		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}

		lc.SpanV = span(start, p.peek().Pos)

		return lc, nil
	}

	list := &ast.ListExpr{}

	if p.peek().Kind != token.RBracket {
		for {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			list.Items = append(list.Items, e)

			if p.peek().Kind != token.Comma {
				break
			}

			p.advance()
		}
	}

	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}

	list.SpanV = span(start, p.peek().Pos)

	return list, nil
}

func (p *parser) parseCaseExpr() (ast.Expression, error) {
	start := p.peek().Pos
	p.advance() // soft CASE

	ce := &ast.CaseExpr{}

	if !p.peekSoft("WHEN") {
		test, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		ce.Test = test
	}

	for p.soft("WHEN") {
		when, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if !p.soft("THEN") {
			return nil, errs.NewParseError(p.peek().Pos, "THEN", p.peek().Kind.String())
		}

		then, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		ce.Alternatives = append(ce.Alternatives, ast.CaseAlternative{When: when, Then: then})
	}

	if p.soft("ELSE") {
		els, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		ce.Else = els
	}

	if !p.soft("END") {
		return nil, errs.NewParseError(p.peek().Pos, "END", p.peek().Kind.String())
	}

	ce.SpanV = span(start, p.peek().Pos)

	return ce, nil
}

func (p *parser) parseExistsExpr() (ast.Expression, error) {
	start := p.peek().Pos
	p.advance() // soft EXISTS

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	if pat, ok := p.tryParsePatternExpr(p.peek().Pos); ok {
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}

		return &ast.ExistsExpr{SpanV: span(start, p.peek().Pos), X: pat}, nil
	}

	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	return &ast.ExistsExpr{SpanV: span(start, p.peek().Pos), X: x}, nil
}

func (p *parser) parseQuantifiedExpr() (ast.Expression, error) {
	start := p.peek().Pos

	kindTok := p.advance()

	var kind ast.QuantifierKind

	switch {
	case equalFold(kindTok.Text, "ALL"):
		kind = ast.QuantAll
	case equalFold(kindTok.Text, "ANY"):
		kind = ast.QuantAny
	case equalFold(kindTok.Text, "NONE"):
		kind = ast.QuantNone
	case equalFold(kindTok.Text, "SINGLE"):
		kind = ast.QuantSingle
	}

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	varTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}

	list, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	qe := &ast.QuantifiedExpr{Kind: kind, Variable: varTok.Text, List: list}

	if p.peek().Kind == token.WHERE {
		p.advance()

		qe.Where, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	qe.SpanV = span(start, p.peek().Pos)

	return qe, nil
}
