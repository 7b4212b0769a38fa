package cypher

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser turns query text into a Statement. A Parser value is cheap and
// single-use; Parse is the usual entry point.
type Parser struct {
	toks []Token
	pos  int
}

// Parse tokenizes and parses one query.
func Parse(query string) (*Statement, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	toks, err := newScanner(query).scanAll()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseStatement()
}

func (p *Parser) peek() Token { return p.toks[p.pos] }

func (p *Parser) advance() Token {
	tok := p.toks[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) at(kind TokenKind) bool { return p.peek().Kind == kind }

// atKeyword reports whether the next token is the given bare keyword,
// matched case-insensitively.
func (p *Parser) atKeyword(kw string) bool {
	tok := p.peek()
	return tok.Kind == TokenIdent && strings.EqualFold(tok.Lit, kw)
}

func (p *Parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, fmt.Errorf("%w: expected %s, found %s at offset %d", ErrSyntax, kind, p.describe(tok), tok.Pos)
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		tok := p.peek()
		return fmt.Errorf("%w: expected %s, found %s at offset %d", ErrSyntax, kw, p.describe(tok), tok.Pos)
	}
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	tok, err := p.expect(TokenIdent)
	if err != nil {
		return "", err
	}
	return tok.Lit, nil
}

func (p *Parser) describe(tok Token) string {
	if tok.Kind == TokenEOF {
		return "end of query"
	}
	if tok.Lit != "" {
		return fmt.Sprintf("%q", tok.Lit)
	}
	return fmt.Sprintf("%q", tok.Kind.String())
}

func (p *Parser) parseStatement() (*Statement, error) {
	if p.acceptKeyword("CREATE") {
		return p.parseCreate()
	}

	stmt := &Statement{Kind: StatementMatch}
	for {
		switch {
		case p.atKeyword("MATCH"), p.atKeyword("OPTIONAL"):
			clause, err := p.parseMatch()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, clause)
		case p.atKeyword("UNWIND"):
			clause, err := p.parseUnwind()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, clause)
		case p.atKeyword("WITH"):
			clause, err := p.parseWith()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, clause)
		case p.atKeyword("RETURN"):
			clause, err := p.parseReturn()
			if err != nil {
				return nil, err
			}
			stmt.Clauses = append(stmt.Clauses, clause)
		case p.at(TokenEOF):
			if len(stmt.Clauses) == 0 {
				return nil, ErrEmptyQuery
			}
			return stmt, nil
		default:
			tok := p.peek()
			return nil, fmt.Errorf("%w: unexpected %s at offset %d", ErrSyntax, p.describe(tok), tok.Pos)
		}
	}
}

// parseCreate parses a write statement far enough to classify it. An
// optional trailing RETURN is parsed and kept for error reporting, but the
// planner rejects the whole statement.
func (p *Parser) parseCreate() (*Statement, error) {
	pattern, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	stmt := &Statement{Kind: StatementCreate, CreatePattern: pattern}
	if p.atKeyword("RETURN") {
		clause, err := p.parseReturn()
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, clause)
	}
	if !p.at(TokenEOF) {
		tok := p.peek()
		return nil, fmt.Errorf("%w: unexpected %s after CREATE pattern at offset %d", ErrSyntax, p.describe(tok), tok.Pos)
	}
	return stmt, nil
}

func (p *Parser) parseMatch() (*MatchClause, error) {
	optional := p.acceptKeyword("OPTIONAL")
	if err := p.expectKeyword("MATCH"); err != nil {
		return nil, err
	}
	pattern, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	clause := &MatchClause{Optional: optional, Pattern: pattern}
	if p.acceptKeyword("WHERE") {
		clause.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return clause, nil
}

func (p *Parser) parseUnwind() (*UnwindClause, error) {
	p.advance() // UNWIND
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	alias, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return &UnwindClause{Expr: expr, Alias: alias}, nil
}

func (p *Parser) parseWith() (*WithClause, error) {
	p.advance() // WITH
	clause := &WithClause{Distinct: p.acceptKeyword("DISTINCT")}
	items, err := p.parseReturnItems()
	if err != nil {
		return nil, err
	}
	clause.Items = items
	if clause.OrderBy, clause.Skip, clause.Limit, err = p.parseItemModifiers(); err != nil {
		return nil, err
	}
	if p.acceptKeyword("WHERE") {
		clause.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return clause, nil
}

func (p *Parser) parseReturn() (*ReturnClause, error) {
	p.advance() // RETURN
	clause := &ReturnClause{Distinct: p.acceptKeyword("DISTINCT")}
	items, err := p.parseReturnItems()
	if err != nil {
		return nil, err
	}
	clause.Items = items
	if clause.OrderBy, clause.Skip, clause.Limit, err = p.parseItemModifiers(); err != nil {
		return nil, err
	}
	return clause, nil
}

func (p *Parser) parseReturnItems() ([]*ReturnItem, error) {
	var items []*ReturnItem
	for {
		if p.at(TokenStar) {
			p.advance()
			items = append(items, &ReturnItem{Star: true})
		} else {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := &ReturnItem{Expr: expr, Alias: expr.String()}
			if p.acceptKeyword("AS") {
				alias, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				item.Alias = alias
			} else if v, ok := expr.(*Var); ok {
				item.Alias = v.Name
			} else if pr, ok := expr.(*Prop); ok {
				item.Alias = pr.Var + "." + pr.Key
			}
			items = append(items, item)
		}
		if !p.at(TokenComma) {
			return items, nil
		}
		p.advance()
	}
}

func (p *Parser) parseItemModifiers() (orderBy []*SortItem, skip, limit Expr, err error) {
	if p.acceptKeyword("ORDER") {
		if err = p.expectKeyword("BY"); err != nil {
			return nil, nil, nil, err
		}
		for {
			var expr Expr
			expr, err = p.parseExpr()
			if err != nil {
				return nil, nil, nil, err
			}
			item := &SortItem{Expr: expr}
			if p.acceptKeyword("DESC") || p.acceptKeyword("DESCENDING") {
				item.Desc = true
			} else if p.acceptKeyword("ASC") || p.acceptKeyword("ASCENDING") {
				item.Desc = false
			}
			orderBy = append(orderBy, item)
			if !p.at(TokenComma) {
				break
			}
			p.advance()
		}
	}
	if p.acceptKeyword("SKIP") {
		skip, err = p.parseExpr()
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if p.acceptKeyword("LIMIT") {
		limit, err = p.parseExpr()
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return orderBy, skip, limit, nil
}

// Pattern parsing

func (p *Parser) parsePattern() ([]*PatternPart, error) {
	var parts []*PatternPart
	for {
		part, err := p.parsePatternPart()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		if !p.at(TokenComma) {
			return parts, nil
		}
		p.advance()
	}
}

func (p *Parser) parsePatternPart() (*PatternPart, error) {
	part := &PatternPart{}

	// Path binding: ident '=' '('
	if p.at(TokenIdent) && !isReservedKeyword(p.peek().Lit) &&
		p.pos+1 < len(p.toks) && p.toks[p.pos+1].Kind == TokenEq {
		part.PathVar = p.advance().Lit
		p.advance() // '='
	}

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	part.Nodes = append(part.Nodes, node)

	for p.at(TokenMinus) || p.at(TokenLt) {
		rel, err := p.parseRelPattern()
		if err != nil {
			return nil, err
		}
		next, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		part.Rels = append(part.Rels, rel)
		part.Nodes = append(part.Nodes, next)
	}
	return part, nil
}

func (p *Parser) parseNodePattern() (*NodePattern, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	node := &NodePattern{}
	if p.at(TokenIdent) {
		node.Var = p.advance().Lit
	}
	for p.at(TokenColon) {
		p.advance()
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		node.Labels = append(node.Labels, label)
	}
	if p.at(TokenLBrace) {
		props, err := p.parsePropMap()
		if err != nil {
			return nil, err
		}
		node.Props = props
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseRelPattern() (*RelPattern, error) {
	rel := &RelPattern{MinHops: 1, MaxHops: 1}

	leftArrow := false
	if p.at(TokenLt) {
		leftArrow = true
		p.advance()
	}
	if _, err := p.expect(TokenMinus); err != nil {
		return nil, err
	}

	if p.at(TokenLBracket) {
		p.advance()
		if p.at(TokenIdent) {
			rel.Var = p.advance().Lit
		}
		if p.at(TokenColon) {
			p.advance()
			typ, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rel.Types = append(rel.Types, typ)
			for p.at(TokenPipe) {
				p.advance()
				// Tolerate both :A|B and :A|:B.
				if p.at(TokenColon) {
					p.advance()
				}
				typ, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				rel.Types = append(rel.Types, typ)
			}
		}
		if p.at(TokenStar) {
			p.advance()
			if err := p.parseHopRange(rel); err != nil {
				return nil, err
			}
		}
		if p.at(TokenLBrace) {
			props, err := p.parsePropMap()
			if err != nil {
				return nil, err
			}
			rel.Props = props
		}
		if _, err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenMinus); err != nil {
			return nil, err
		}
	} else {
		// Bare arrow: --, --> or <--.
		if _, err := p.expect(TokenMinus); err != nil {
			return nil, err
		}
	}

	rightArrow := false
	if p.at(TokenGt) {
		rightArrow = true
		p.advance()
	}

	switch {
	case leftArrow && rightArrow:
		return nil, fmt.Errorf("%w: relationship cannot point both ways", ErrSyntax)
	case leftArrow:
		rel.Direction = DirIn
	case rightArrow:
		rel.Direction = DirOut
	default:
		rel.Direction = DirBoth
	}
	return rel, nil
}

// parseHopRange parses what follows '*': nothing, N, N.., N..M or ..M.
func (p *Parser) parseHopRange(rel *RelPattern) error {
	rel.VarLength = true
	rel.MinHops = 1
	rel.MaxHops = -1

	if p.at(TokenInt) {
		n, err := strconv.Atoi(p.advance().Lit)
		if err != nil {
			return fmt.Errorf("%w: invalid hop count", ErrSyntax)
		}
		rel.MinHops = n
		rel.MaxHops = n
	}
	if p.at(TokenDotDot) {
		p.advance()
		rel.MaxHops = -1
		if p.at(TokenInt) {
			n, err := strconv.Atoi(p.advance().Lit)
			if err != nil {
				return fmt.Errorf("%w: invalid hop count", ErrSyntax)
			}
			rel.MaxHops = n
		}
	}
	if rel.MaxHops >= 0 && rel.MinHops > rel.MaxHops {
		return fmt.Errorf("%w: variable-length bounds out of order (*%d..%d)", ErrSyntax, rel.MinHops, rel.MaxHops)
	}
	return nil
}

func (p *Parser) parsePropMap() ([]*PropPair, error) {
	if _, err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}
	var props []*PropPair
	if !p.at(TokenRBrace) {
		for {
			key, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenColon); err != nil {
				return nil, err
			}
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			props = append(props, &PropPair{Key: key, Value: value})
			if !p.at(TokenComma) {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(TokenRBrace); err != nil {
		return nil, err
	}
	return props, nil
}

// Expression parsing, lowest precedence first.

func (p *Parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expr, error) {
	lhs, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		rhs, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		lhs = &Binary{Op: OpOr, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseXor() (Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("XOR") {
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &Binary{Op: OpXor, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	lhs, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		rhs, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		lhs = &Binary{Op: OpAnd, LHS: lhs, RHS: rhs}
	}
	return lhs, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.acceptKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expr, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if p.acceptKeyword("IS") {
		negated := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		op := OpIsNull
		if negated {
			op = OpIsNotNull
		}
		return &Unary{Op: op, Operand: lhs}, nil
	}
	if p.acceptKeyword("IN") {
		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: OpIn, LHS: lhs, RHS: rhs}, nil
	}

	var op BinaryOp
	switch p.peek().Kind {
	case TokenEq:
		op = OpEq
	case TokenNeq:
		op = OpNeq
	case TokenLt:
		op = OpLt
	case TokenLe:
		op = OpLe
	case TokenGt:
		op = OpGt
	case TokenGe:
		op = OpGe
	default:
		return lhs, nil
	}
	p.advance()
	rhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: op, LHS: lhs, RHS: rhs}, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.peek().Kind {
		case TokenPlus:
			op = OpAdd
		case TokenMinus:
			op = OpSub
		default:
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = &Binary{Op: op, LHS: lhs, RHS: rhs}
	}
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.peek().Kind {
		case TokenStar:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		default:
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &Binary{Op: op, LHS: lhs, RHS: rhs}
	}
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.at(TokenMinus) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold negation into numeric literals.
		if lit, ok := operand.(*Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &Literal{Value: -v}, nil
			case float64:
				return &Literal{Value: -v}, nil
			}
		}
		return &Unary{Op: OpNeg, Operand: operand}, nil
	}
	return p.parseAtom()
}

func (p *Parser) parseAtom() (Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case TokenInt:
		p.advance()
		v, err := strconv.ParseInt(tok.Lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrSyntax, tok.Lit)
		}
		return &Literal{Value: v}, nil
	case TokenFloat:
		p.advance()
		v, err := strconv.ParseFloat(tok.Lit, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid float %q", ErrSyntax, tok.Lit)
		}
		return &Literal{Value: v}, nil
	case TokenString:
		p.advance()
		return &Literal{Value: tok.Lit}, nil
	case TokenParam:
		p.advance()
		return &Param{Name: tok.Lit}, nil
	case TokenLBracket:
		return p.parseListLit()
	case TokenLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return expr, nil
	case TokenIdent:
		switch strings.ToUpper(tok.Lit) {
		case "TRUE":
			p.advance()
			return &Literal{Value: true}, nil
		case "FALSE":
			p.advance()
			return &Literal{Value: false}, nil
		case "NULL":
			p.advance()
			return &Literal{Value: nil}, nil
		}
		p.advance()
		if p.at(TokenLParen) {
			return p.parseFuncCall(tok.Lit)
		}
		if p.at(TokenDot) {
			p.advance()
			key, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return &Prop{Var: tok.Lit, Key: key}, nil
		}
		return &Var{Name: tok.Lit}, nil
	}
	return nil, fmt.Errorf("%w: unexpected %s at offset %d", ErrSyntax, p.describe(tok), tok.Pos)
}

func (p *Parser) parseListLit() (Expr, error) {
	p.advance() // '['
	list := &ListLit{}
	if !p.at(TokenRBracket) {
		for {
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
			if !p.at(TokenComma) {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(TokenRBracket); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *Parser) parseFuncCall(name string) (Expr, error) {
	p.advance() // '('
	call := &FuncCall{Name: strings.ToLower(name)}
	if p.at(TokenStar) {
		p.advance()
		call.Star = true
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return call, nil
	}
	call.Distinct = p.acceptKeyword("DISTINCT")
	if !p.at(TokenRParen) {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.at(TokenComma) {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return call, nil
}

// isReservedKeyword guards pattern parsing against treating a leading clause
// keyword as a path variable.
func isReservedKeyword(word string) bool {
	switch strings.ToUpper(word) {
	case "MATCH", "OPTIONAL", "WHERE", "WITH", "RETURN", "UNWIND", "AS",
		"DISTINCT", "ORDER", "BY", "SKIP", "LIMIT", "CREATE", "MERGE",
		"DELETE", "DETACH", "SET", "REMOVE", "AND", "OR", "XOR", "NOT",
		"IN", "IS", "NULL", "TRUE", "FALSE", "ASC", "DESC":
		return true
	}
	return false
}
