package verdict

import (
	"encoding/json"
	"fmt"
)

// Wire format node kinds.
const (
	wireKindOperand  = "operand"
	wireKindOperator = "operator"
	wireKindNot      = "not"
)

type nodeWire struct {
	Kind       string            `json:"kind"`
	Attribute  string            `json:"attribute,omitempty"`
	Comparator Comparator        `json:"comparator,omitempty"`
	Literal    *literalWire      `json:"literal,omitempty"`
	Connective Connective        `json:"connective,omitempty"`
	Operands   []json.RawMessage `json:"operands,omitempty"`
	Operand    json.RawMessage   `json:"operand,omitempty"`
}

type literalWire struct {
	Type  LiteralKind `json:"type"`
	Value any         `json:"value"`
}

// MarshalNode serializes an AST into its tagged JSON transport form.
// The format round-trips exactly: UnmarshalNode(MarshalNode(n)) is
// structurally equal to n.
func MarshalNode(node Node) ([]byte, error) {
	wire, err := toWire(node)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

// UnmarshalNode reconstructs an AST from its tagged JSON form, validating
// structure as it goes: operator nodes need at least two operands and
// literal payloads must match their declared type tag.
func UnmarshalNode(data []byte) (Node, error) {
	var wire nodeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("verdict: decode node: %w", err)
	}
	return fromWire(wire)
}

func toWire(node Node) (nodeWire, error) {
	switch n := node.(type) {
	case Operand:
		lit, err := literalToWire(n.Literal)
		if err != nil {
			return nodeWire{}, err
		}
		return nodeWire{
			Kind:       wireKindOperand,
			Attribute:  n.Attribute,
			Comparator: n.Comparator,
			Literal:    &lit,
		}, nil

	case Operator:
		if len(n.Operands) < 2 {
			return nodeWire{}, fmt.Errorf("verdict: operator node has %d operands, need at least 2", len(n.Operands))
		}
		operands := make([]json.RawMessage, 0, len(n.Operands))
		for _, child := range n.Operands {
			raw, err := MarshalNode(child)
			if err != nil {
				return nodeWire{}, err
			}
			operands = append(operands, raw)
		}
		return nodeWire{
			Kind:       wireKindOperator,
			Connective: n.Connective,
			Operands:   operands,
		}, nil

	case Negation:
		raw, err := MarshalNode(n.Expr)
		if err != nil {
			return nodeWire{}, err
		}
		return nodeWire{
			Kind:    wireKindNot,
			Operand: raw,
		}, nil

	default:
		return nodeWire{}, fmt.Errorf("verdict: unsupported node type %T", node)
	}
}

func fromWire(wire nodeWire) (Node, error) {
	switch wire.Kind {
	case wireKindOperand:
		if wire.Attribute == "" {
			return nil, fmt.Errorf("verdict: operand node is missing an attribute")
		}
		if !validComparator(wire.Comparator) {
			return nil, fmt.Errorf("verdict: unknown comparator %q", wire.Comparator)
		}
		if wire.Literal == nil {
			return nil, fmt.Errorf("verdict: operand node is missing a literal")
		}
		literal, err := literalFromWire(*wire.Literal)
		if err != nil {
			return nil, err
		}
		return Operand{
			Attribute:  wire.Attribute,
			Comparator: wire.Comparator,
			Literal:    literal,
		}, nil

	case wireKindOperator:
		if wire.Connective != ConnectiveAnd && wire.Connective != ConnectiveOr {
			return nil, fmt.Errorf("verdict: unknown connective %q", wire.Connective)
		}
		if len(wire.Operands) < 2 {
			return nil, fmt.Errorf("verdict: operator node has %d operands, need at least 2", len(wire.Operands))
		}
		operands := make([]Node, 0, len(wire.Operands))
		for _, raw := range wire.Operands {
			child, err := UnmarshalNode(raw)
			if err != nil {
				return nil, err
			}
			operands = append(operands, child)
		}
		return Operator{Connective: wire.Connective, Operands: operands}, nil

	case wireKindNot:
		if len(wire.Operand) == 0 {
			return nil, fmt.Errorf("verdict: not node is missing its operand")
		}
		child, err := UnmarshalNode(wire.Operand)
		if err != nil {
			return nil, err
		}
		return Negation{Expr: child}, nil

	default:
		return nil, fmt.Errorf("verdict: unknown node kind %q", wire.Kind)
	}
}

func literalToWire(l Literal) (literalWire, error) {
	switch l.Kind {
	case LiteralNumber:
		return literalWire{Type: LiteralNumber, Value: l.Number}, nil
	case LiteralText:
		return literalWire{Type: LiteralText, Value: l.Text}, nil
	case LiteralBoolean:
		return literalWire{Type: LiteralBoolean, Value: l.Bool}, nil
	default:
		return literalWire{}, fmt.Errorf("verdict: unsupported literal kind %q", l.Kind)
	}
}

func literalFromWire(w literalWire) (Literal, error) {
	switch w.Type {
	case LiteralNumber:
		num, ok := w.Value.(float64)
		if !ok {
			return Literal{}, fmt.Errorf("verdict: number literal carries %T value", w.Value)
		}
		return NumberLiteral(num), nil
	case LiteralText:
		text, ok := w.Value.(string)
		if !ok {
			return Literal{}, fmt.Errorf("verdict: text literal carries %T value", w.Value)
		}
		return TextLiteral(text), nil
	case LiteralBoolean:
		b, ok := w.Value.(bool)
		if !ok {
			return Literal{}, fmt.Errorf("verdict: boolean literal carries %T value", w.Value)
		}
		return BoolLiteral(b), nil
	default:
		return Literal{}, fmt.Errorf("verdict: unknown literal type %q", w.Type)
	}
}
