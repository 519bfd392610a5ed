package verdict

import "fmt"

// Machine-readable error codes carried by the typed engine errors.
// The HTTP layer maps these 1:1 to client-visible error responses.
const (
	CodeUnexpectedChar      = "LEX_UNEXPECTED_CHAR"
	CodeUnterminatedString  = "LEX_UNTERMINATED_STRING"
	CodeSyntax              = "PARSE_SYNTAX"
	CodeUnknownAttribute    = "PARSE_UNKNOWN_ATTRIBUTE"
	CodeParseTypeMismatch   = "PARSE_TYPE_MISMATCH"
	CodeDuplicateAttribute  = "CATALOG_DUPLICATE_ATTRIBUTE"
	CodeMissingAttribute    = "EVAL_MISSING_ATTRIBUTE"
	CodeEvalTypeMismatch    = "EVAL_TYPE_MISMATCH"
	CodeUnsupportedOperator = "EVAL_UNSUPPORTED_OPERATOR"
)

// LexError reports malformed source text. Pos is a byte offset into the
// rule string.
type LexError struct {
	Code string
	Pos  int
	Char rune
}

func (e *LexError) Error() string {
	switch e.Code {
	case CodeUnterminatedString:
		return fmt.Sprintf("unterminated string literal starting at offset %d", e.Pos)
	default:
		return fmt.Sprintf("unexpected character %q at offset %d", e.Char, e.Pos)
	}
}

// ParseError reports a grammar violation or a catalog validation failure.
// Expected/Found describe syntax errors; Attribute/Declared describe
// catalog failures.
type ParseError struct {
	Code      string
	Pos       int
	Expected  string
	Found     string
	Attribute string
	Declared  AttributeType
}

func (e *ParseError) Error() string {
	switch e.Code {
	case CodeUnknownAttribute:
		return fmt.Sprintf("unknown attribute %q at offset %d", e.Attribute, e.Pos)
	case CodeParseTypeMismatch:
		return fmt.Sprintf("attribute %q is declared %s but compared against a %s literal at offset %d",
			e.Attribute, e.Declared, e.Found, e.Pos)
	default:
		return fmt.Sprintf("expected %s but found %s at offset %d", e.Expected, e.Found, e.Pos)
	}
}

// CatalogError reports an attribute registration conflict.
type CatalogError struct {
	Code string
	Name string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("attribute %q is already registered", e.Name)
}

// EvalError reports a data record that is incompatible with the AST being
// evaluated. Evaluation failures are never coerced into a boolean verdict.
type EvalError struct {
	Code      string
	Attribute string
	Expected  string
	Actual    string
}

func (e *EvalError) Error() string {
	switch e.Code {
	case CodeEvalTypeMismatch:
		return fmt.Sprintf("attribute %q: expected %s value, record holds %s", e.Attribute, e.Expected, e.Actual)
	case CodeUnsupportedOperator:
		return fmt.Sprintf("attribute %q: ordering comparison is not defined for %s values", e.Attribute, e.Actual)
	default:
		return fmt.Sprintf("attribute %q is missing from the data record", e.Attribute)
	}
}
