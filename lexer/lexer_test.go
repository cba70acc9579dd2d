package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphersql/cyphersql/lexer"
	"github.com/cyphersql/cyphersql/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}

	return ks
}

func TestTokenizeKeywordsCaseInsensitive(t *testing.T) {
	toks, err := lexer.Tokenize("match (n) where n.age > 1 RETURN n")
	require.NoError(t, err)

	assert.Equal(t, []token.Kind{
		token.MATCH, token.LParen, token.Ident, token.RParen,
		token.WHERE, token.Ident, token.Dot, token.Ident, token.Gt, token.Int,
		token.RETURN, token.Ident, token.EOF,
	}, kinds(toks))
}

func TestTokenizeIdentifierCasePreserved(t *testing.T) {
	toks, err := lexer.Tokenize("MyVar")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, "MyVar", toks[0].Text)
}

func TestTokenizeParameter(t *testing.T) {
	toks, err := lexer.Tokenize("$name")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, token.Param, toks[0].Kind)
	assert.Equal(t, "$name", toks[0].Text)
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := lexer.Tokenize(`'it\'s a \\test\n'`)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, token.String, toks[0].Kind)
	assert.Equal(t, "it's a \\test\n", lexer.Unescape(toks[0].Text))
}

func TestTokenizeDoubleQuotedString(t *testing.T) {
	toks, err := lexer.Tokenize(`"hello \"world\""`)
	require.NoError(t, err)
	assert.Equal(t, `hello "world"`, lexer.Unescape(toks[0].Text))
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, err := lexer.Tokenize(`'unterminated`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated string")
}

func TestTokenizeUnknownCharacter(t *testing.T) {
	_, err := lexer.Tokenize("MATCH (n) RETURN n # foo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown character")
}

func TestTokenizeNumbers(t *testing.T) {
	toks, err := lexer.Tokenize("1 2.5 3e10 .5")
	require.NoError(t, err)
	assert.Equal(t, token.Int, toks[0].Kind)
	assert.Equal(t, token.Float, toks[1].Kind)
	assert.Equal(t, token.Float, toks[2].Kind)
	// A leading '.' with no integer part lexes as Dot then Int, per the
	// grammar's dotted-property-access precedence (spec §4.2).
	assert.Equal(t, token.Dot, toks[3].Kind)
	assert.Equal(t, token.Int, toks[4].Kind)
}

func TestTokenizeArrowsAndRelationshipPunctuation(t *testing.T) {
	toks, err := lexer.Tokenize("-[:KNOWS|FRIEND*1..3]->")
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{
		token.Minus, token.LBracket, token.Colon, token.Ident, token.Pipe,
		token.Ident, token.Star, token.Int, token.Dot, token.Dot, token.Int,
		token.RBracket, token.ArrowRight, token.EOF,
	}, kinds(toks))
}

func TestTokenizeOperators(t *testing.T) {
	toks, err := lexer.Tokenize("<> <= >= += =~ <- ->")
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{
		token.NotEq, token.LtEq, token.GtEq, token.PlusEq,
		token.RegexMatch, token.ArrowLeft, token.ArrowRight, token.EOF,
	}, kinds(toks))
}

func TestTokenizeCommentsAndWhitespaceStripped(t *testing.T) {
	toks, err := lexer.Tokenize("MATCH // a comment\n(n) RETURN n")
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{
		token.MATCH, token.LParen, token.Ident, token.RParen,
		token.RETURN, token.Ident, token.EOF,
	}, kinds(toks))
}

func TestPositionTracking(t *testing.T) {
	toks, err := lexer.Tokenize("MATCH\n  (n)")
	require.NoError(t, err)
	require.True(t, len(toks) >= 2)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 2, toks[1].Pos.Line)
	assert.Equal(t, 3, toks[1].Pos.Column)
}
