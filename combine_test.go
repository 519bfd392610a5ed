package verdict

import (
	"strings"
	"testing"
)

func TestCombine(t *testing.T) {
	t.Run("flattens same connective", func(t *testing.T) {
		left := mustCompile(t, "a > 1 AND b > 1")
		right := mustCompile(t, "c > 1")

		combined, err := Combine(ConnectiveAnd, left, right)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		and, ok := combined.(Operator)
		if !ok || and.Connective != ConnectiveAnd {
			t.Fatalf("expected AND root, got %#v", combined)
		}
		if len(and.Operands) != 3 {
			t.Fatalf("expected a 3-child AND node, got %d children", len(and.Operands))
		}
	})

	t.Run("keeps different connective nested", func(t *testing.T) {
		left := mustCompile(t, "a > 1 OR b > 1")
		right := mustCompile(t, "c > 1")

		combined, err := Combine(ConnectiveAnd, left, right)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		and := combined.(Operator)
		if len(and.Operands) != 2 {
			t.Fatalf("expected 2 children, got %d", len(and.Operands))
		}
		if or, ok := and.Operands[0].(Operator); !ok || or.Connective != ConnectiveOr {
			t.Errorf("expected nested OR child, got %#v", and.Operands[0])
		}
	})

	t.Run("drops structural duplicates", func(t *testing.T) {
		first := mustCompile(t, "a > 1 AND b > 1")
		second := mustCompile(t, "b > 1 AND c > 1")

		combined, err := Combine(ConnectiveAnd, first, second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		and := combined.(Operator)
		if len(and.Operands) != 3 {
			t.Fatalf("expected duplicate 'b > 1' to be dropped, got %d children: %s", len(and.Operands), and)
		}
	})

	t.Run("collapses to single distinct child", func(t *testing.T) {
		first := mustCompile(t, "a > 1")
		second := mustCompile(t, "a > 1")

		combined, err := Combine(ConnectiveOr, first, second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := combined.(Operand); !ok {
			t.Errorf("expected the lone distinct child back, got %#v", combined)
		}
	})

	t.Run("requires two trees", func(t *testing.T) {
		_, err := Combine(ConnectiveAnd, mustCompile(t, "a > 1"))
		if err == nil || !strings.Contains(err.Error(), "at least 2") {
			t.Fatalf("expected arity error, got %v", err)
		}
	})

	t.Run("rejects unknown connective", func(t *testing.T) {
		_, err := Combine(Connective("XOR"), mustCompile(t, "a > 1"), mustCompile(t, "b > 1"))
		if err == nil {
			t.Fatalf("expected connective error")
		}
	})

	t.Run("combined trees evaluate", func(t *testing.T) {
		combined, err := Combine(ConnectiveAnd,
			mustCompile(t, "age > 30"),
			mustCompile(t, "salary > 50000"),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result, err := Evaluate(combined, Record{
			"age":    NumberLiteral(35),
			"salary": NumberLiteral(60000),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result {
			t.Errorf("expected combined rule to pass")
		}
	})
}
