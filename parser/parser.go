// Package parser implements the hand-rolled recursive-descent Cypher
// parser described in spec §4.2: single-token lookahead over the
// package lexer's token stream, pratt-style precedence climbing for
// expressions, and clause dispatch by leading keyword.
//
// Structurally this follows the teacher's own parser.go (a thin
// Parse(src) entry point) generalised from a participle-driven call into
// a hand-written descent, cross-checked against
// dialects/cypher/grammar/parser_test.go for the clause/pattern grammar
// this spec names.
package parser

import (
	"strconv"

	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/lexer"
	"github.com/cyphersql/cyphersql/token"
)

// Parse scans and parses a complete Cypher statement into a Query AST.
// The parser never produces a partial AST (spec §4.2): on error it
// returns nil and a *errs.LexError or *errs.ParseError.
func Parse(src string) (*ast.Query, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}

	return p.parseQuery()
}

type parser struct {
	toks []token.Token
	pos  int
}

func (p *parser) peek() token.Token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}

	return p.toks[p.pos+n]
}

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}

	return t
}

// mark/reset support the limited backtracking EXISTS(pattern) and bare
// pattern expressions need to disambiguate from plain expressions.
func (p *parser) mark() int     { return p.pos }
func (p *parser) reset(m int)   { p.pos = m }

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if p.peek().Kind != k {
		return token.Token{}, errs.NewParseError(p.peek().Pos, k.String(), p.peek().Kind.String())
	}

	return p.advance(), nil
}

// soft returns true and consumes the current token if it is an
// identifier whose text case-insensitively matches word. Constructs
// like WITH, CASE/WHEN/THEN/ELSE/END, EXISTS, and the ANY/NONE/SINGLE
// quantifiers are not in spec §4.1's keyword enumeration, so the lexer
// never reserves them; the parser instead recognises them contextually
// as "soft" keywords, matching the literal wording of spec §4.1/§4.2.
func (p *parser) soft(word string) bool {
	t := p.peek()
	if t.Kind == token.Ident && equalFold(t.Text, word) {
		p.advance()

		return true
	}

	return false
}

func (p *parser) peekSoft(word string) bool {
	t := p.peek()

	return t.Kind == token.Ident && equalFold(t.Text, word)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}

		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}

		if ca != cb {
			return false
		}
	}

	return true
}

func span(start, end token.Position) ast.Span { return ast.Span{Start: start, End: end} }

// ---------------------------------------------------------------------
// Query / clause dispatch
// ---------------------------------------------------------------------

func (p *parser) parseQuery() (*ast.Query, error) {
	startPos := p.peek().Pos

	clauses, err := p.parseSingleQueryClauses()
	if err != nil {
		return nil, err
	}

	for p.peek().Kind == token.UNION {
		unionTok := p.advance()

		all := false
		if p.peek().Kind == token.ALL {
			p.advance()

			all = true
		}

		rhs, err := p.parseSingleQueryClauses()
		if err != nil {
			return nil, err
		}

		clauses = append(clauses, &ast.UnionClause{
			SpanV: span(unionTok.Pos, p.peek().Pos),
			All:   all,
			Clauses: rhs,
		})
	}

	if p.peek().Kind == token.Semi {
		p.advance()
	}

	if _, err := p.expect(token.EOF); err != nil {
		return nil, err
	}

	return &ast.Query{Span: span(startPos, p.peek().Pos), Clauses: clauses}, nil
}

func (p *parser) parseSingleQueryClauses() ([]ast.Clause, error) {
	var clauses []ast.Clause

	for {
		switch {
		case p.peek().Kind == token.MATCH || p.peek().Kind == token.OPTIONAL:
			c, err := p.parseMatch()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.CREATE:
			c, err := p.parseCreate()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.MERGE:
			c, err := p.parseMerge()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.DELETE || p.peek().Kind == token.DETACH:
			c, err := p.parseDelete()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.SET:
			c, err := p.parseSet()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.REMOVE:
			c, err := p.parseRemove()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.UNWIND:
			c, err := p.parseUnwind()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peekSoft("WITH"):
			c, err := p.parseWith()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.RETURN:
			c, err := p.parseReturn()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.WHERE:
			c, err := p.parseStandaloneWhere()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		case p.peek().Kind == token.CALL:
			c, err := p.parseCall()
			if err != nil {
				return nil, err
			}

			clauses = append(clauses, c)

		default:
			return clauses, nil
		}
	}
}

func (p *parser) parseMatch() (*ast.MatchClause, error) {
	start := p.peek().Pos

	optional := false
	if p.peek().Kind == token.OPTIONAL {
		p.advance()

		optional = true
	}

	if _, err := p.expect(token.MATCH); err != nil {
		return nil, err
	}

	pattern, err := p.parsePattern()
	if err != nil {
		return nil, err
	}

	var where ast.Expression

	if p.peek().Kind == token.WHERE {
		p.advance()

		where, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	return &ast.MatchClause{
		SpanV:    span(start, p.peek().Pos),
		Optional: optional,
		Pattern:  pattern,
		Where:    where,
	}, nil
}

func (p *parser) parseCreate() (*ast.CreateClause, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.CREATE); err != nil {
		return nil, err
	}

	pattern, err := p.parsePattern()
	if err != nil {
		return nil, err
	}

	return &ast.CreateClause{SpanV: span(start, p.peek().Pos), Pattern: pattern}, nil
}

func (p *parser) parseMerge() (*ast.MergeClause, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.MERGE); err != nil {
		return nil, err
	}

	pattern, err := p.parsePattern()
	if err != nil {
		return nil, err
	}

	m := &ast.MergeClause{Pattern: pattern}

	for p.peek().Kind == token.ON {
		p.advance()

		switch p.peek().Kind {
		case token.MATCH:
			p.advance()

			if _, err := p.expect(token.SET); err != nil {
				return nil, err
			}

			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}

			m.OnMatch = append(m.OnMatch, items...)

		case token.CREATE:
			p.advance()

			if _, err := p.expect(token.SET); err != nil {
				return nil, err
			}

			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}

			m.OnCreate = append(m.OnCreate, items...)

		default:
			return nil, errs.NewParseError(p.peek().Pos, "MATCH or CREATE", p.peek().Kind.String())
		}
	}

	m.SpanV = span(start, p.peek().Pos)

	return m, nil
}

func (p *parser) parseDelete() (*ast.DeleteClause, error) {
	start := p.peek().Pos

	detach := false
	if p.peek().Kind == token.DETACH {
		p.advance()

		detach = true
	}

	if _, err := p.expect(token.DELETE); err != nil {
		return nil, err
	}

	var exprs []ast.Expression

	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		exprs = append(exprs, e)

		if p.peek().Kind != token.Comma {
			break
		}

		p.advance()
	}

	return &ast.DeleteClause{SpanV: span(start, p.peek().Pos), Detach: detach, Expressions: exprs}, nil
}

func (p *parser) parseSet() (*ast.SetClause, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.SET); err != nil {
		return nil, err
	}

	items, err := p.parseSetItems()
	if err != nil {
		return nil, err
	}

	return &ast.SetClause{SpanV: span(start, p.peek().Pos), Items: items}, nil
}

// parseSetItems parses a comma-separated SET-item list, shared by SET
// and MERGE's ON MATCH/ON CREATE blocks.
func (p *parser) parseSetItems() ([]ast.SetItem, error) {
	var items []ast.SetItem

	for {
		item, err := p.parseSetItem()
		if err != nil {
			return nil, err
		}

		items = append(items, item)

		if p.peek().Kind != token.Comma {
			break
		}

		p.advance()
	}

	return items, nil
}

// parseSetItem disambiguates the four SET-item forms after an
// identifier, per spec §4.2: ":" -> LabelSet; "." -> PropertySet
// (requires "=" after the full path); "=" -> ReplaceProperties;
// "+=" -> MergeProperties.
func (p *parser) parseSetItem() (ast.SetItem, error) {
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return ast.SetItem{}, err
	}

	switch p.peek().Kind {
	case token.Colon:
		var labels []string

		for p.peek().Kind == token.Colon {
			p.advance()

			lbl, err := p.expect(token.Ident)
			if err != nil {
				return ast.SetItem{}, err
			}

			labels = append(labels, lbl.Text)
		}

		return ast.SetItem{Kind: ast.SetLabels, Variable: nameTok.Text, Labels: labels}, nil

	case token.Dot:
		base := &ast.Variable{SpanV: span(nameTok.Pos, nameTok.Pos), Name: nameTok.Text}

		var path []string

		for p.peek().Kind == token.Dot {
			p.advance()

			propTok, err := p.expect(token.Ident)
			if err != nil {
				return ast.SetItem{}, err
			}

			path = append(path, propTok.Text)
		}

		if _, err := p.expect(token.Eq); err != nil {
			return ast.SetItem{}, err
		}

		value, err := p.parseExpression()
		if err != nil {
			return ast.SetItem{}, err
		}

		return ast.SetItem{
			Kind:   ast.SetProperty,
			Target: &ast.PropertyAccess{SpanV: base.SpanV, Base: base, Path: path},
			Value:  value,
		}, nil

	case token.Eq:
		p.advance()

		value, err := p.parseExpression()
		if err != nil {
			return ast.SetItem{}, err
		}

		return ast.SetItem{Kind: ast.SetReplaceProperties, Variable: nameTok.Text, Value: value}, nil

	case token.PlusEq:
		p.advance()

		value, err := p.parseExpression()
		if err != nil {
			return ast.SetItem{}, err
		}

		return ast.SetItem{Kind: ast.SetMergeProperties, Variable: nameTok.Text, Value: value}, nil

	default:
		return ast.SetItem{}, errs.NewParseError(p.peek().Pos, "':', '.', '=' or '+='", p.peek().Kind.String())
	}
}

func (p *parser) parseRemove() (*ast.RemoveClause, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.REMOVE); err != nil {
		return nil, err
	}

	var items []ast.RemoveItem

	for {
		nameTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}

		if p.peek().Kind == token.Colon {
			var labels []string

			for p.peek().Kind == token.Colon {
				p.advance()

				lbl, err := p.expect(token.Ident)
				if err != nil {
					return nil, err
				}

				labels = append(labels, lbl.Text)
			}

			items = append(items, ast.RemoveItem{Kind: ast.RemoveLabels, Variable: nameTok.Text, Labels: labels})
		} else {
			base := &ast.Variable{SpanV: span(nameTok.Pos, nameTok.Pos), Name: nameTok.Text}

			var path []string

			for p.peek().Kind == token.Dot {
				p.advance()

				propTok, err := p.expect(token.Ident)
				if err != nil {
					return nil, err
				}

				path = append(path, propTok.Text)
			}

			if len(path) == 0 {
				return nil, errs.NewParseError(p.peek().Pos, "':' or '.'", p.peek().Kind.String())
			}

			items = append(items, ast.RemoveItem{
				Kind:   ast.RemoveProperty,
				Target: &ast.PropertyAccess{SpanV: base.SpanV, Base: base, Path: path},
			})
		}

		if p.peek().Kind != token.Comma {
			break
		}

		p.advance()
	}

	return &ast.RemoveClause{SpanV: span(start, p.peek().Pos), Items: items}, nil
}

func (p *parser) parseUnwind() (*ast.UnwindClause, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.UNWIND); err != nil {
		return nil, err
	}

	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.AS); err != nil {
		return nil, err
	}

	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	return &ast.UnwindClause{SpanV: span(start, p.peek().Pos), Expr: e, As: nameTok.Text}, nil
}

func (p *parser) parseStandaloneWhere() (*ast.WhereClause, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.WHERE); err != nil {
		return nil, err
	}

	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	return &ast.WhereClause{SpanV: span(start, p.peek().Pos), Expr: e}, nil
}

func (p *parser) parseReturn() (*ast.ReturnClause, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.RETURN); err != nil {
		return nil, err
	}

	distinct := false
	if p.peek().Kind == token.DISTINCT {
		p.advance()

		distinct = true
	}

	items, err := p.parseReturnItems()
	if err != nil {
		return nil, err
	}

	rc := &ast.ReturnClause{Distinct: distinct, Items: items}

	if err := p.parseOrderSkipLimit(&rc.OrderBy, &rc.Skip, &rc.Limit); err != nil {
		return nil, err
	}

	rc.SpanV = span(start, p.peek().Pos)

	return rc, nil
}

func (p *parser) parseWith() (*ast.WithClause, error) {
	start := p.peek().Pos
	p.advance() // soft "WITH"

	distinct := false
	if p.peek().Kind == token.DISTINCT {
		p.advance()

		distinct = true
	}

	items, err := p.parseReturnItems()
	if err != nil {
		return nil, err
	}

	wc := &ast.WithClause{Distinct: distinct, Items: items}

	if p.peek().Kind == token.WHERE {
		p.advance()

		wc.Where, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if err := p.parseOrderSkipLimit(&wc.OrderBy, &wc.Skip, &wc.Limit); err != nil {
		return nil, err
	}

	wc.SpanV = span(start, p.peek().Pos)

	return wc, nil
}

func (p *parser) parseReturnItems() ([]ast.ReturnItem, error) {
	var items []ast.ReturnItem

	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		alias := ""

		if p.peek().Kind == token.AS {
			p.advance()

			nameTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}

			alias = nameTok.Text
		}

		items = append(items, ast.ReturnItem{Expr: e, Alias: alias})

		if p.peek().Kind != token.Comma {
			break
		}

		p.advance()
	}

	return items, nil
}

// parseOrderSkipLimit parses the optional ORDER BY / SKIP / LIMIT suffix
// shared by RETURN and WITH.
func (p *parser) parseOrderSkipLimit(orderBy *[]ast.OrderItem, skip, limit *ast.Expression) error {
	if p.peek().Kind == token.ORDER {
		p.advance()

		if _, err := p.expect(token.BY); err != nil {
			return err
		}

		for {
			e, err := p.parseExpression()
			if err != nil {
				return err
			}

			desc := false

			switch p.peek().Kind {
			case token.ASC:
				p.advance()
			case token.DESC:
				p.advance()

				desc = true
			}

			*orderBy = append(*orderBy, ast.OrderItem{Expr: e, Descending: desc})

			if p.peek().Kind != token.Comma {
				break
			}

			p.advance()
		}
	}

	if p.peek().Kind == token.SKIP {
		p.advance()

		e, err := p.parseExpression()
		if err != nil {
			return err
		}

		*skip = e
	}

	if p.peek().Kind == token.LIMIT {
		p.advance()

		e, err := p.parseExpression()
		if err != nil {
			return err
		}

		*limit = e
	}

	return nil
}

func (p *parser) parseCall() (*ast.CallClause, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.CALL); err != nil {
		return nil, err
	}

	if p.peek().Kind == token.LBrace {
		return nil, errs.NewParseError(p.peek().Pos, "procedure name", "CALL { ... } subquery (unsupported construct)")
	}

	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	name := nameTok.Text

	for p.peek().Kind == token.Dot {
		p.advance()

		part, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}

		name += "." + part.Text
	}

	var args []ast.Expression

	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	if p.peek().Kind != token.RParen {
		for {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			args = append(args, e)

			if p.peek().Kind != token.Comma {
				break
			}

			p.advance()
		}
	}

	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	cc := &ast.CallClause{Procedure: name, Args: args}

	if p.peek().Kind == token.YIELD {
		p.advance()

		for {
			itemTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}

			item := ast.CallYieldItem{Name: itemTok.Text}

			if p.peek().Kind == token.AS {
				p.advance()

				aliasTok, err := p.expect(token.Ident)
				if err != nil {
					return nil, err
				}

				item.Alias = aliasTok.Text
			}

			cc.Yield = append(cc.Yield, item)

			if p.peek().Kind != token.Comma {
				break
			}

			p.advance()
		}
	}

	if p.peek().Kind == token.WHERE {
		p.advance()

		cc.Where, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	cc.SpanV = span(start, p.peek().Pos)

	return cc, nil
}

// ---------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------

func parseIntLiteral(tok token.Token) (int64, error) {
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil {
		return 0, errs.NewTypeError("invalid integer literal %q", tok.Text)
	}

	return n, nil
}

func parseFloatLiteral(tok token.Token) (float64, error) {
	f, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return 0, errs.NewTypeError("invalid float literal %q", tok.Text)
	}

	return f, nil
}
