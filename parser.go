package verdict

import "strconv"

// parser is a recursive-descent parser over a token sequence.
// Precedence from loosest to tightest: OR, AND, NOT, primary.
type parser struct {
	tokens  []Token
	pos     int
	catalog *Catalog
}

// Parse consumes a token sequence (as produced by Tokenize) and returns
// the AST root. Attribute names and literal kinds are validated against
// the catalog during the parse, so malformed or mistyped rules are
// rejected before they can ever reach evaluation.
func Parse(tokens []Token, catalog *Catalog) (Node, error) {
	p := &parser{tokens: tokens, catalog: catalog}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Kind != TokenEOF {
		return nil, p.syntaxError("end of input", tok)
	}
	return root, nil
}

func (p *parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() {
	p.pos++
}

func (p *parser) syntaxError(expected string, found Token) error {
	return &ParseError{
		Code:     CodeSyntax,
		Pos:      found.Pos,
		Expected: expected,
		Found:    found.Kind.String(),
	}
}

// parseOr collects AND-expressions joined by OR. A run of two or more
// terms becomes a single n-ary Operator node rather than a cascade of
// binary pairs, which keeps the tree shallow and short-circuiting simple.
func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	terms := []Node{first}
	for p.current().Kind == TokenOr {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}

	if len(terms) == 1 {
		return first, nil
	}
	return Operator{Connective: ConnectiveOr, Operands: terms}, nil
}

// parseAnd collects unary expressions joined by AND, collapsing runs the
// same way parseOr does.
func (p *parser) parseAnd() (Node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	terms := []Node{first}
	for p.current().Kind == TokenAnd {
		p.advance()
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}

	if len(terms) == 1 {
		return first, nil
	}
	return Operator{Connective: ConnectiveAnd, Operands: terms}, nil
}

// parseUnary handles NOT, which is right-associative.
func (p *parser) parseUnary() (Node, error) {
	if p.current().Kind == TokenNot {
		p.advance()
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Negation{Expr: expr}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	switch tok := p.current(); tok.Kind {
	case TokenLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.current(); closing.Kind != TokenRParen {
			return nil, p.syntaxError("')'", closing)
		}
		p.advance()
		return expr, nil

	case TokenIdent:
		return p.parseComparison()

	default:
		return nil, p.syntaxError("identifier or '('", tok)
	}
}

// parseComparison parses an `attribute comparator literal` leaf and
// validates it against the catalog.
func (p *parser) parseComparison() (Node, error) {
	ident := p.current()
	p.advance()

	declared, known := p.catalog.Lookup(ident.Text)
	if !known {
		return nil, &ParseError{
			Code:      CodeUnknownAttribute,
			Pos:       ident.Pos,
			Attribute: ident.Text,
		}
	}

	compTok := p.current()
	if compTok.Kind != TokenComparator {
		return nil, p.syntaxError("comparator", compTok)
	}
	p.advance()
	comparator := comparatorFromSymbol(compTok.Text)

	litTok := p.current()
	literal, ok, err := p.parseLiteral(litTok)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, p.syntaxError("literal", litTok)
	}
	p.advance()

	if !compatible(declared, literal.Kind) {
		return nil, &ParseError{
			Code:      CodeParseTypeMismatch,
			Pos:       litTok.Pos,
			Attribute: ident.Text,
			Declared:  declared,
			Found:     string(literal.Kind),
		}
	}

	return Operand{
		Attribute:  ident.Text,
		Comparator: comparator,
		Literal:    literal,
	}, nil
}

func (p *parser) parseLiteral(tok Token) (Literal, bool, error) {
	switch tok.Kind {
	case TokenNumber:
		value, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			// The lexer only emits well-formed numbers; overflow is the
			// remaining failure mode.
			return Literal{}, false, p.syntaxError("numeric literal", tok)
		}
		return NumberLiteral(value), true, nil
	case TokenString:
		return TextLiteral(tok.Text), true, nil
	case TokenBool:
		return BoolLiteral(tok.Text == "true"), true, nil
	default:
		return Literal{}, false, nil
	}
}

func comparatorFromSymbol(symbol string) Comparator {
	switch symbol {
	case "=", "==":
		return ComparatorEQ
	case "!=":
		return ComparatorNEQ
	case ">":
		return ComparatorGT
	case ">=":
		return ComparatorGTE
	case "<":
		return ComparatorLT
	case "<=":
		return ComparatorLTE
	default:
		return ""
	}
}
