package verdict

import (
	"strconv"
	"strings"
)

// Comparator is a relational operator applied between an attribute's
// runtime value and a literal.
type Comparator string

const (
	ComparatorEQ  Comparator = "EQ"
	ComparatorNEQ Comparator = "NEQ"
	ComparatorGT  Comparator = "GT"
	ComparatorGTE Comparator = "GTE"
	ComparatorLT  Comparator = "LT"
	ComparatorLTE Comparator = "LTE"
)

// Symbol returns the textual form of the comparator as written in rules.
func (c Comparator) Symbol() string {
	switch c {
	case ComparatorEQ:
		return "="
	case ComparatorNEQ:
		return "!="
	case ComparatorGT:
		return ">"
	case ComparatorGTE:
		return ">="
	case ComparatorLT:
		return "<"
	case ComparatorLTE:
		return "<="
	default:
		return string(c)
	}
}

func validComparator(c Comparator) bool {
	switch c {
	case ComparatorEQ, ComparatorNEQ, ComparatorGT, ComparatorGTE, ComparatorLT, ComparatorLTE:
		return true
	default:
		return false
	}
}

// Connective is a logical combinator joining two or more sibling
// conditions.
type Connective string

const (
	ConnectiveAnd Connective = "AND"
	ConnectiveOr  Connective = "OR"
)

// LiteralKind tags the runtime kind of a Literal or record value.
type LiteralKind string

const (
	LiteralNumber  LiteralKind = "number"
	LiteralText    LiteralKind = "text"
	LiteralBoolean LiteralKind = "boolean"
)

// Literal is a tagged constant appearing on the right side of a
// comparison. Exactly one payload field is meaningful, selected by Kind.
type Literal struct {
	Kind   LiteralKind
	Number float64
	Text   string
	Bool   bool
}

// NumberLiteral builds a number literal.
func NumberLiteral(v float64) Literal {
	return Literal{Kind: LiteralNumber, Number: v}
}

// TextLiteral builds a text literal.
func TextLiteral(v string) Literal {
	return Literal{Kind: LiteralText, Text: v}
}

// BoolLiteral builds a boolean literal.
func BoolLiteral(v bool) Literal {
	return Literal{Kind: LiteralBoolean, Bool: v}
}

// Equal reports structural equality of two literals.
func (l Literal) Equal(other Literal) bool {
	if l.Kind != other.Kind {
		return false
	}
	switch l.Kind {
	case LiteralNumber:
		return l.Number == other.Number
	case LiteralText:
		return l.Text == other.Text
	case LiteralBoolean:
		return l.Bool == other.Bool
	default:
		return false
	}
}

// String renders the literal as it would appear in a rule string.
func (l Literal) String() string {
	switch l.Kind {
	case LiteralNumber:
		return strconv.FormatFloat(l.Number, 'f', -1, 64)
	case LiteralText:
		return strconv.Quote(l.Text)
	case LiteralBoolean:
		return strconv.FormatBool(l.Bool)
	default:
		return ""
	}
}

// Node is the interface implemented by all AST nodes. Trees are immutable
// once constructed by the parser or combinator; evaluation never mutates
// them, so a tree is safely shareable across concurrent evaluators.
type Node interface {
	node() // marker method
	String() string
}

// Operand is a leaf predicate comparing one attribute against a literal.
type Operand struct {
	Attribute  string
	Comparator Comparator
	Literal    Literal
}

func (Operand) node() {}

func (o Operand) String() string {
	return o.Attribute + " " + o.Comparator.Symbol() + " " + o.Literal.String()
}

// Operator is an n-ary logical node. Operands always holds at least two
// children; consecutive same-connective terms collapse into one node
// instead of a cascade of binary pairs.
type Operator struct {
	Connective Connective
	Operands   []Node
}

func (Operator) node() {}

func (o Operator) String() string {
	parts := make([]string, 0, len(o.Operands))
	for _, child := range o.Operands {
		parts = append(parts, renderChild(child))
	}
	return strings.Join(parts, " "+string(o.Connective)+" ")
}

// Negation is the unary NOT node.
type Negation struct {
	Expr Node
}

func (Negation) node() {}

func (n Negation) String() string {
	return "NOT " + renderChild(n.Expr)
}

// renderChild parenthesizes operator children so the canonical rendering
// reparses to the identical tree shape.
func renderChild(n Node) string {
	if _, ok := n.(Operator); ok {
		return "(" + n.String() + ")"
	}
	return n.String()
}

// Equal reports structural equality of two trees.
func Equal(a, b Node) bool {
	switch an := a.(type) {
	case Operand:
		bn, ok := b.(Operand)
		return ok && an.Attribute == bn.Attribute &&
			an.Comparator == bn.Comparator &&
			an.Literal.Equal(bn.Literal)
	case Operator:
		bn, ok := b.(Operator)
		if !ok || an.Connective != bn.Connective || len(an.Operands) != len(bn.Operands) {
			return false
		}
		for i := range an.Operands {
			if !Equal(an.Operands[i], bn.Operands[i]) {
				return false
			}
		}
		return true
	case Negation:
		bn, ok := b.(Negation)
		return ok && Equal(an.Expr, bn.Expr)
	default:
		return false
	}
}
