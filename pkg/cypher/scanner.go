package cypher

import (
	"fmt"
	"strconv"
	"strings"
)

// scanner splits a query string into tokens. It is byte-oriented: Cypher
// keywords and operators are ASCII, and multi-byte runes only ever appear
// inside string literals or backtick identifiers, where they pass through
// untouched.
type scanner struct {
	src string
	pos int
}

func newScanner(src string) *scanner {
	return &scanner{src: src}
}

// scanAll tokenizes the whole input. It stops at the first lexical error.
func (s *scanner) scanAll() ([]Token, error) {
	var toks []Token
	for {
		tok, err := s.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			return toks, nil
		}
	}
}

func (s *scanner) next() (Token, error) {
	s.skipSpaceAndComments()
	start := s.pos
	if s.pos >= len(s.src) {
		return Token{Kind: TokenEOF, Pos: start}, nil
	}

	c := s.src[s.pos]
	switch {
	case isIdentStart(c):
		return s.scanIdent(), nil
	case c >= '0' && c <= '9':
		return s.scanNumber()
	case c == '\'' || c == '"':
		return s.scanString(c)
	case c == '`':
		return s.scanBacktick()
	case c == '$':
		return s.scanParam()
	}

	s.pos++
	switch c {
	case '(':
		return Token{Kind: TokenLParen, Pos: start}, nil
	case ')':
		return Token{Kind: TokenRParen, Pos: start}, nil
	case '[':
		return Token{Kind: TokenLBracket, Pos: start}, nil
	case ']':
		return Token{Kind: TokenRBracket, Pos: start}, nil
	case '{':
		return Token{Kind: TokenLBrace, Pos: start}, nil
	case '}':
		return Token{Kind: TokenRBrace, Pos: start}, nil
	case ':':
		return Token{Kind: TokenColon, Pos: start}, nil
	case ',':
		return Token{Kind: TokenComma, Pos: start}, nil
	case '|':
		return Token{Kind: TokenPipe, Pos: start}, nil
	case '.':
		if s.pos < len(s.src) && s.src[s.pos] == '.' {
			s.pos++
			return Token{Kind: TokenDotDot, Pos: start}, nil
		}
		return Token{Kind: TokenDot, Pos: start}, nil
	case '=':
		return Token{Kind: TokenEq, Pos: start}, nil
	case '<':
		if s.pos < len(s.src) {
			switch s.src[s.pos] {
			case '=':
				s.pos++
				return Token{Kind: TokenLe, Pos: start}, nil
			case '>':
				s.pos++
				return Token{Kind: TokenNeq, Pos: start}, nil
			}
		}
		return Token{Kind: TokenLt, Pos: start}, nil
	case '>':
		if s.pos < len(s.src) && s.src[s.pos] == '=' {
			s.pos++
			return Token{Kind: TokenGe, Pos: start}, nil
		}
		return Token{Kind: TokenGt, Pos: start}, nil
	case '+':
		return Token{Kind: TokenPlus, Pos: start}, nil
	case '-':
		return Token{Kind: TokenMinus, Pos: start}, nil
	case '*':
		return Token{Kind: TokenStar, Pos: start}, nil
	case '/':
		return Token{Kind: TokenSlash, Pos: start}, nil
	case '%':
		return Token{Kind: TokenPercent, Pos: start}, nil
	}

	return Token{}, fmt.Errorf("%w: unexpected character %q at offset %d", ErrSyntax, string(c), start)
}

func (s *scanner) skipSpaceAndComments() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			s.pos += 2
			for s.pos+1 < len(s.src) && !(s.src[s.pos] == '*' && s.src[s.pos+1] == '/') {
				s.pos++
			}
			if s.pos+1 < len(s.src) {
				s.pos += 2
			} else {
				s.pos = len(s.src)
			}
		default:
			return
		}
	}
}

func (s *scanner) scanIdent() Token {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	return Token{Kind: TokenIdent, Lit: s.src[start:s.pos], Pos: start}
}

func (s *scanner) scanNumber() (Token, error) {
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
		s.pos++
	}
	isFloat := false
	// A '.' only continues the number when followed by a digit, so that
	// range syntax like *1..3 lexes as INT DOTDOT INT.
	if s.pos+1 < len(s.src) && s.src[s.pos] == '.' && s.src[s.pos+1] >= '0' && s.src[s.pos+1] <= '9' {
		isFloat = true
		s.pos++
		for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
			s.pos++
		}
	}
	// An exponent continues the number only when digits follow it.
	if s.pos < len(s.src) && (s.src[s.pos] == 'e' || s.src[s.pos] == 'E') {
		j := s.pos + 1
		if j < len(s.src) && (s.src[j] == '+' || s.src[j] == '-') {
			j++
		}
		if j < len(s.src) && s.src[j] >= '0' && s.src[j] <= '9' {
			isFloat = true
			s.pos = j
			for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
				s.pos++
			}
		}
	}
	if isFloat {
		return Token{Kind: TokenFloat, Lit: s.src[start:s.pos], Pos: start}, nil
	}
	return Token{Kind: TokenInt, Lit: s.src[start:s.pos], Pos: start}, nil
}

func (s *scanner) scanString(quote byte) (Token, error) {
	start := s.pos
	s.pos++ // opening quote
	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' && s.pos+1 < len(s.src) {
			esc := s.src[s.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			case 'u':
				if s.pos+6 <= len(s.src) {
					if r, err := strconv.ParseUint(s.src[s.pos+2:s.pos+6], 16, 32); err == nil {
						b.WriteRune(rune(r))
						s.pos += 6
						continue
					}
				}
				return Token{}, fmt.Errorf("%w: invalid unicode escape at offset %d", ErrSyntax, s.pos)
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			s.pos += 2
			continue
		}
		if c == quote {
			s.pos++
			return Token{Kind: TokenString, Lit: b.String(), Pos: start}, nil
		}
		b.WriteByte(c)
		s.pos++
	}
	return Token{}, fmt.Errorf("%w: unterminated string starting at offset %d", ErrSyntax, start)
}

// scanBacktick reads a `quoted` identifier. The backticks are stripped.
func (s *scanner) scanBacktick() (Token, error) {
	start := s.pos
	s.pos++
	end := strings.IndexByte(s.src[s.pos:], '`')
	if end < 0 {
		return Token{}, fmt.Errorf("%w: unterminated backtick identifier at offset %d", ErrSyntax, start)
	}
	lit := s.src[s.pos : s.pos+end]
	s.pos += end + 1
	return Token{Kind: TokenIdent, Lit: lit, Pos: start}, nil
}

func (s *scanner) scanParam() (Token, error) {
	start := s.pos
	s.pos++
	if s.pos >= len(s.src) || !isIdentStart(s.src[s.pos]) {
		return Token{}, fmt.Errorf("%w: expected parameter name after $ at offset %d", ErrSyntax, start)
	}
	nameStart := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	return Token{Kind: TokenParam, Lit: s.src[nameStart:s.pos], Pos: start}, nil
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
