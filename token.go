package verdict

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenBool
	TokenComparator
	TokenAnd
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
)

// String returns a human-readable name for the kind, used in syntax errors.
func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenBool:
		return "boolean"
	case TokenComparator:
		return "comparator"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	default:
		return "unknown token"
	}
}

// Token is a classified lexical unit. Pos is the byte offset of the
// token's first character in the input, kept for error reporting.
// String tokens carry the unquoted, unescaped text.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}
