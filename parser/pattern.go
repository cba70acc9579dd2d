package parser

import (
	"github.com/cyphersql/cyphersql/ast"
	"github.com/cyphersql/cyphersql/errs"
	"github.com/cyphersql/cyphersql/token"
)

// parsePattern parses a comma-separated pattern: a node, optionally
// followed by alternating relationship/node pairs, repeated after commas
// (spec §4.2 "patterns"). Subsequent comma-separated patterns are
// flattened into one Pattern's Nodes/Rels slices; the interpreter and
// SQL generator treat every node/relationship in a MATCH/CREATE/MERGE
// pattern as one shared binding scope regardless of which comma-grouped
// sub-pattern introduced it.
func (p *parser) parsePattern() (ast.Pattern, error) {
	var pat ast.Pattern

	for {
		node, err := p.parseNodePattern()
		if err != nil {
			return ast.Pattern{}, err
		}

		pat.Nodes = append(pat.Nodes, node)

		for p.peek().Kind == token.Minus || p.peek().Kind == token.ArrowLeft {
			rel, err := p.parseRelationshipPattern()
			if err != nil {
				return ast.Pattern{}, err
			}

			pat.Rels = append(pat.Rels, rel)

			node, err := p.parseNodePattern()
			if err != nil {
				return ast.Pattern{}, err
			}

			pat.Nodes = append(pat.Nodes, node)
		}

		if p.peek().Kind != token.Comma {
			break
		}

		p.advance()
	}

	return pat, nil
}

func (p *parser) parseNodePattern() (ast.NodePattern, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.LParen); err != nil {
		return ast.NodePattern{}, err
	}

	n := ast.NodePattern{}

	if p.peek().Kind == token.Ident {
		n.Variable = p.advance().Text
	}

	for p.peek().Kind == token.Colon {
		p.advance()

		lbl, err := p.expect(token.Ident)
		if err != nil {
			return ast.NodePattern{}, err
		}

		n.Labels = append(n.Labels, lbl.Text)
	}

	if p.peek().Kind == token.LBrace {
		props, err := p.parseMapLiteral()
		if err != nil {
			return ast.NodePattern{}, err
		}

		n.Props = props
	}

	if _, err := p.expect(token.RParen); err != nil {
		return ast.NodePattern{}, err
	}

	n.SpanV = span(start, p.peek().Pos)

	return n, nil
}

// parseRelationshipPattern parses one "-[...]-", "-[...]->", or
// "<-[...]-" segment, deriving Direction from which arrow tokens bracket
// it (spec §3.2/§4.2). The bracketed detail ("[r:TYPE|TYPE2*1..3
// {prop:1}]") is optional; a bare "--", "-->" or "<--" is a relationship
// pattern with no variable, type, or hop range.
func (p *parser) parseRelationshipPattern() (ast.RelationshipPattern, error) {
	start := p.peek().Pos

	leftArrow := false
	if p.peek().Kind == token.ArrowLeft {
		leftArrow = true

		p.advance()
	} else {
		if _, err := p.expect(token.Minus); err != nil {
			return ast.RelationshipPattern{}, err
		}
	}

	r := ast.RelationshipPattern{}

	if p.peek().Kind == token.LBracket {
		p.advance()

		if p.peek().Kind == token.Ident {
			r.Variable = p.advance().Text
		}

		if p.peek().Kind == token.Colon {
			p.advance()

			tname, err := p.expect(token.Ident)
			if err != nil {
				return ast.RelationshipPattern{}, err
			}

			r.Types = append(r.Types, tname.Text)

			for p.peek().Kind == token.Pipe {
				p.advance()

				// Accept an optional redundant leading ':' before each
				// further alternative, matching the common
				// "-[:A|:B]->" spelling alongside bare "-[:A|B]->".
				if p.peek().Kind == token.Colon {
					p.advance()
				}

				tname, err := p.expect(token.Ident)
				if err != nil {
					return ast.RelationshipPattern{}, err
				}

				r.Types = append(r.Types, tname.Text)
			}
		}

		if p.peek().Kind == token.Star {
			p.advance()

			r.VarLength = true

			if err := p.parseHopRange(&r); err != nil {
				return ast.RelationshipPattern{}, err
			}
		}

		if p.peek().Kind == token.LBrace {
			props, err := p.parseMapLiteral()
			if err != nil {
				return ast.RelationshipPattern{}, err
			}

			r.Props = props
		}

		if _, err := p.expect(token.RBracket); err != nil {
			return ast.RelationshipPattern{}, err
		}
	}

	rightArrow := false

	if p.peek().Kind == token.ArrowRight {
		rightArrow = true

		p.advance()
	} else {
		if _, err := p.expect(token.Minus); err != nil {
			return ast.RelationshipPattern{}, err
		}
	}

	switch {
	case leftArrow && rightArrow:
		return ast.RelationshipPattern{}, errs.NewParseError(start, "single arrow direction", "both '<-' and '->'")
	case leftArrow:
		r.Direction = ast.DirLeft
	case rightArrow:
		r.Direction = ast.DirRight
	default:
		r.Direction = ast.DirNone
	}

	r.SpanV = span(start, p.peek().Pos)

	return r, nil
}

// parseHopRange parses the "*", "*N", "*N..M", "*N..", "*..M" forms that
// follow a relationship-type list's Star token (spec §4.2 "variable-length
// relationships"). The lexer has no dedicated range-operator token, so
// "N..M" surfaces as Int Dot Dot Int; this mirrors
// TestTokenizeArrowsAndRelationshipPunctuation's token sequence.
func (p *parser) parseHopRange(r *ast.RelationshipPattern) error {
	if p.peek().Kind == token.Int {
		n, err := parseIntLiteral(p.advance())
		if err != nil {
			return err
		}

		minHops := int(n)
		r.MinHops = &minHops

		if p.peek().Kind != token.Dot {
			maxHops := int(n)
			r.MaxHops = &maxHops

			return nil
		}
	}

	if p.peek().Kind == token.Dot && p.peekAt(1).Kind == token.Dot {
		p.advance()
		p.advance()

		if p.peek().Kind == token.Int {
			n, err := parseIntLiteral(p.advance())
			if err != nil {
				return err
			}

			maxHops := int(n)
			r.MaxHops = &maxHops
		}
	}

	return nil
}

func (p *parser) parseMapLiteral() (*ast.MapLiteral, error) {
	start := p.peek().Pos

	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}

	m := &ast.MapLiteral{}

	if p.peek().Kind != token.RBrace {
		for {
			keyTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}

			if _, err := p.expect(token.Colon); err != nil {
				return nil, err
			}

			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			m.Entries = append(m.Entries, ast.MapEntry{Key: keyTok.Text, Value: val})

			if p.peek().Kind != token.Comma {
				break
			}

			p.advance()
		}
	}

	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}

	m.SpanV = span(start, p.peek().Pos)

	return m, nil
}
