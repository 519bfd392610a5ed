package verdict

import "fmt"

// Value is a runtime attribute value supplied in a Record. It shares the
// tagged representation of Literal; a missing attribute is simply an
// absent map key.
type Value = Literal

// Record maps attribute names to runtime values. Records are supplied
// fresh per evaluation call and are never mutated by the engine.
type Record map[string]Value

// RecordFromJSON converts a decoded JSON object into a Record. JSON
// numbers become number values, strings text, booleans boolean. Any
// other payload (nested objects, arrays, null) is rejected.
func RecordFromJSON(raw map[string]any) (Record, error) {
	rec := make(Record, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case float64:
			rec[name] = NumberLiteral(val)
		case int:
			rec[name] = NumberLiteral(float64(val))
		case string:
			rec[name] = TextLiteral(val)
		case bool:
			rec[name] = BoolLiteral(val)
		default:
			return nil, fmt.Errorf("attribute %q: unsupported value type %T", name, v)
		}
	}
	return rec, nil
}

// Evaluate walks an AST against a data record and produces a boolean
// verdict. It is a pure function of (node, record): no node mutates the
// record or any shared state, so concurrent evaluations over the same
// tree are safe.
//
// Operator children evaluate left to right with short-circuit semantics:
// AND returns false on the first false child and OR returns true on the
// first true child, skipping any error a later child would have raised.
func Evaluate(node Node, record Record) (bool, error) {
	switch n := node.(type) {
	case Operand:
		return evalOperand(n, record)

	case Operator:
		for _, child := range n.Operands {
			result, err := Evaluate(child, record)
			if err != nil {
				return false, err
			}
			if n.Connective == ConnectiveAnd && !result {
				return false, nil
			}
			if n.Connective == ConnectiveOr && result {
				return true, nil
			}
		}
		return n.Connective == ConnectiveAnd, nil

	case Negation:
		inner, err := Evaluate(n.Expr, record)
		if err != nil {
			return false, err
		}
		return !inner, nil

	default:
		return false, fmt.Errorf("verdict: unsupported node type %T", node)
	}
}

func evalOperand(op Operand, record Record) (bool, error) {
	value, present := record[op.Attribute]
	if !present {
		return false, &EvalError{Code: CodeMissingAttribute, Attribute: op.Attribute}
	}
	if value.Kind != op.Literal.Kind {
		return false, &EvalError{
			Code:      CodeEvalTypeMismatch,
			Attribute: op.Attribute,
			Expected:  string(op.Literal.Kind),
			Actual:    string(value.Kind),
		}
	}

	switch value.Kind {
	case LiteralNumber:
		return compareNumbers(value.Number, op.Comparator, op.Literal.Number), nil

	case LiteralText:
		switch op.Comparator {
		case ComparatorEQ:
			return value.Text == op.Literal.Text, nil
		case ComparatorNEQ:
			return value.Text != op.Literal.Text, nil
		default:
			return false, orderingError(op, value.Kind)
		}

	case LiteralBoolean:
		switch op.Comparator {
		case ComparatorEQ:
			return value.Bool == op.Literal.Bool, nil
		case ComparatorNEQ:
			return value.Bool != op.Literal.Bool, nil
		default:
			return false, orderingError(op, value.Kind)
		}

	default:
		return false, &EvalError{
			Code:      CodeEvalTypeMismatch,
			Attribute: op.Attribute,
			Expected:  string(op.Literal.Kind),
			Actual:    string(value.Kind),
		}
	}
}

// compareNumbers uses native IEEE-754 ordering; all six comparators are
// defined for numbers.
func compareNumbers(left float64, c Comparator, right float64) bool {
	switch c {
	case ComparatorEQ:
		return left == right
	case ComparatorNEQ:
		return left != right
	case ComparatorGT:
		return left > right
	case ComparatorGTE:
		return left >= right
	case ComparatorLT:
		return left < right
	case ComparatorLTE:
		return left <= right
	default:
		return false
	}
}

// orderingError reports a GT/GTE/LT/LTE comparison on a kind for which
// ordering is undefined.
func orderingError(op Operand, kind LiteralKind) error {
	return &EvalError{
		Code:      CodeUnsupportedOperator,
		Attribute: op.Attribute,
		Expected:  string(LiteralNumber),
		Actual:    string(kind),
	}
}
