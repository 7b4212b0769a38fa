package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanKinds(t *testing.T, src string) []TokenKind {
	t.Helper()
	toks, err := newScanner(src).scanAll()
	require.NoError(t, err)
	kinds := make([]TokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func TestScannerBasicTokens(t *testing.T) {
	toks, err := newScanner(`MATCH (n:Person) RETURN n.name`).scanAll()
	require.NoError(t, err)

	want := []struct {
		kind TokenKind
		lit  string
	}{
		{TokenIdent, "MATCH"},
		{TokenLParen, ""},
		{TokenIdent, "n"},
		{TokenColon, ""},
		{TokenIdent, "Person"},
		{TokenRParen, ""},
		{TokenIdent, "RETURN"},
		{TokenIdent, "n"},
		{TokenDot, ""},
		{TokenIdent, "name"},
		{TokenEOF, ""},
	}
	require.Len(t, toks, len(want))
	for i, w := range want {
		assert.Equal(t, w.kind, toks[i].Kind, "token %d", i)
		assert.Equal(t, w.lit, toks[i].Lit, "token %d", i)
	}
}

func TestScannerNumbers(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind TokenKind
		lit  string
	}{
		{"integer", "42", TokenInt, "42"},
		{"float", "3.14", TokenFloat, "3.14"},
		{"float exponent", "1e10", TokenFloat, "1e10"},
		{"float signed exponent", "2.5e-3", TokenFloat, "2.5e-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := newScanner(tt.src).scanAll()
			require.NoError(t, err)
			require.Len(t, toks, 2) // value + EOF
			assert.Equal(t, tt.kind, toks[0].Kind)
			assert.Equal(t, tt.lit, toks[0].Lit)
		})
	}
}

// A range like *1..3 must not lex "1." as a float; the dots belong to the
// range operator.
func TestScannerHopRangeNotFloat(t *testing.T) {
	kinds := scanKinds(t, "*1..3")
	assert.Equal(t, []TokenKind{TokenStar, TokenInt, TokenDotDot, TokenInt, TokenEOF}, kinds)
}

func TestScannerStrings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"single quoted", `'hello'`, "hello"},
		{"double quoted", `"world"`, "world"},
		{"escaped quote", `'it\'s'`, "it's"},
		{"escaped newline", `"a\nb"`, "a\nb"},
		{"unicode escape", `"\u00e9"`, "é"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := newScanner(tt.src).scanAll()
			require.NoError(t, err)
			require.Equal(t, TokenString, toks[0].Kind)
			assert.Equal(t, tt.want, toks[0].Lit)
		})
	}
}

func TestScannerBacktickIdent(t *testing.T) {
	toks, err := newScanner("MATCH (`weird name`)").scanAll()
	require.NoError(t, err)
	assert.Equal(t, TokenIdent, toks[2].Kind)
	assert.Equal(t, "weird name", toks[2].Lit)
}

func TestScannerParams(t *testing.T) {
	toks, err := newScanner("WHERE n.age > $minAge").scanAll()
	require.NoError(t, err)
	last := toks[len(toks)-2]
	assert.Equal(t, TokenParam, last.Kind)
	assert.Equal(t, "minAge", last.Lit)
}

func TestScannerComments(t *testing.T) {
	kinds := scanKinds(t, `
		// line comment
		MATCH /* inline */ (n)
	`)
	assert.Equal(t, []TokenKind{TokenIdent, TokenLParen, TokenIdent, TokenRParen, TokenEOF}, kinds)
}

func TestScannerOperators(t *testing.T) {
	kinds := scanKinds(t, "= <> < <= > >= + - * / %")
	assert.Equal(t, []TokenKind{
		TokenEq, TokenNeq, TokenLt, TokenLe, TokenGt, TokenGe,
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent, TokenEOF,
	}, kinds)
}

func TestScannerErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated string", `'oops`},
		{"unterminated block comment", `/* nope`},
		{"unterminated backtick", "`oops"},
		{"bare dollar", "$ "},
		{"stray char", "MATCH ^"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newScanner(tt.src).scanAll()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}
