package verdict

import (
	"errors"
	"testing"
)

// testCatalog returns a catalog covering the attributes used across the
// engine tests.
func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog := NewCatalog()
	entries := map[string]AttributeType{
		"a":          AttributeNumber,
		"b":          AttributeNumber,
		"c":          AttributeNumber,
		"age":        AttributeNumber,
		"salary":     AttributeNumber,
		"tenure":     AttributeNumber,
		"department": AttributeText,
		"active":     AttributeBoolean,
	}
	for name, typ := range entries {
		if err := catalog.Register(name, typ); err != nil {
			t.Fatalf("registering %s: %v", name, err)
		}
	}
	return catalog
}

func mustCompile(t *testing.T, rule string) Node {
	t.Helper()
	node, err := Compile(rule, testCatalog(t))
	if err != nil {
		t.Fatalf("compiling %q: %v", rule, err)
	}
	return node
}

func TestParsePrecedence(t *testing.T) {
	t.Run("AND binds tighter than OR", func(t *testing.T) {
		node := mustCompile(t, "a > 1 OR b > 2 AND c > 3")

		or, ok := node.(Operator)
		if !ok || or.Connective != ConnectiveOr {
			t.Fatalf("expected OR root, got %#v", node)
		}
		if len(or.Operands) != 2 {
			t.Fatalf("expected 2 OR operands, got %d", len(or.Operands))
		}
		if _, ok := or.Operands[0].(Operand); !ok {
			t.Errorf("expected left OR operand to be a comparison, got %#v", or.Operands[0])
		}
		and, ok := or.Operands[1].(Operator)
		if !ok || and.Connective != ConnectiveAnd {
			t.Fatalf("expected right OR operand to be an AND node, got %#v", or.Operands[1])
		}
		if len(and.Operands) != 2 {
			t.Errorf("expected 2 AND operands, got %d", len(and.Operands))
		}
	})

	t.Run("parentheses override precedence", func(t *testing.T) {
		node := mustCompile(t, "(a > 1 OR b > 2) AND c > 3")

		and, ok := node.(Operator)
		if !ok || and.Connective != ConnectiveAnd {
			t.Fatalf("expected AND root, got %#v", node)
		}
		or, ok := and.Operands[0].(Operator)
		if !ok || or.Connective != ConnectiveOr {
			t.Errorf("expected grouped OR child, got %#v", and.Operands[0])
		}
	})

	t.Run("NOT binds tighter than AND", func(t *testing.T) {
		node := mustCompile(t, "NOT a > 1 AND b > 2")

		and, ok := node.(Operator)
		if !ok || and.Connective != ConnectiveAnd {
			t.Fatalf("expected AND root, got %#v", node)
		}
		if _, ok := and.Operands[0].(Negation); !ok {
			t.Errorf("expected first AND operand to be a negation, got %#v", and.Operands[0])
		}
	})

	t.Run("NOT is right-associative", func(t *testing.T) {
		node := mustCompile(t, "NOT NOT a > 1")
		outer, ok := node.(Negation)
		if !ok {
			t.Fatalf("expected negation root, got %#v", node)
		}
		if _, ok := outer.Expr.(Negation); !ok {
			t.Errorf("expected nested negation, got %#v", outer.Expr)
		}
	})
}

func TestParseNaryCollapse(t *testing.T) {
	t.Run("AND chain", func(t *testing.T) {
		node := mustCompile(t, "a > 1 AND b > 1 AND c > 1")
		and, ok := node.(Operator)
		if !ok || and.Connective != ConnectiveAnd {
			t.Fatalf("expected AND root, got %#v", node)
		}
		if len(and.Operands) != 3 {
			t.Fatalf("expected a single AND node with 3 children, got %d children", len(and.Operands))
		}
		for i, child := range and.Operands {
			if _, ok := child.(Operand); !ok {
				t.Errorf("child %d: expected comparison leaf, got %#v", i, child)
			}
		}
	})

	t.Run("OR chain", func(t *testing.T) {
		node := mustCompile(t, "a > 1 OR b > 1 OR c > 1 OR age > 1")
		or, ok := node.(Operator)
		if !ok || or.Connective != ConnectiveOr {
			t.Fatalf("expected OR root, got %#v", node)
		}
		if len(or.Operands) != 4 {
			t.Errorf("expected 4 children, got %d", len(or.Operands))
		}
	})
}

func TestParseComparisons(t *testing.T) {
	tests := []struct {
		rule       string
		comparator Comparator
		literal    Literal
	}{
		{"age = 30", ComparatorEQ, NumberLiteral(30)},
		{"age == 30", ComparatorEQ, NumberLiteral(30)},
		{"age != 30", ComparatorNEQ, NumberLiteral(30)},
		{"age >= 21.5", ComparatorGTE, NumberLiteral(21.5)},
		{"age < -1", ComparatorLT, NumberLiteral(-1)},
		{`department = "sales"`, ComparatorEQ, TextLiteral("sales")},
		{"active = true", ComparatorEQ, BoolLiteral(true)},
		{"active != FALSE", ComparatorNEQ, BoolLiteral(false)},
	}

	for _, tc := range tests {
		t.Run(tc.rule, func(t *testing.T) {
			node := mustCompile(t, tc.rule)
			operand, ok := node.(Operand)
			if !ok {
				t.Fatalf("expected operand, got %#v", node)
			}
			if operand.Comparator != tc.comparator {
				t.Errorf("expected comparator %s, got %s", tc.comparator, operand.Comparator)
			}
			if !operand.Literal.Equal(tc.literal) {
				t.Errorf("expected literal %v, got %v", tc.literal, operand.Literal)
			}
		})
	}
}

func TestParseCatalogValidation(t *testing.T) {
	t.Run("unknown attribute", func(t *testing.T) {
		_, err := Compile("zzz > 1", testCatalog(t))
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected ParseError, got %v", err)
		}
		if parseErr.Code != CodeUnknownAttribute {
			t.Errorf("expected code %s, got %s", CodeUnknownAttribute, parseErr.Code)
		}
		if parseErr.Attribute != "zzz" {
			t.Errorf("expected attribute 'zzz', got %q", parseErr.Attribute)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		tests := []string{
			`age > "old"`,
			`department = 7`,
			`active = "yes"`,
			`age = true`,
		}
		for _, rule := range tests {
			_, err := Compile(rule, testCatalog(t))
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("%q: expected ParseError, got %v", rule, err)
			}
			if parseErr.Code != CodeParseTypeMismatch {
				t.Errorf("%q: expected code %s, got %s", rule, CodeParseTypeMismatch, parseErr.Code)
			}
		}
	})
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		rule string
	}{
		{"empty input", ""},
		{"missing closing paren", "(a > 1 AND b > 2"},
		{"trailing tokens", "a > 1 b > 2"},
		{"missing literal", "a >"},
		{"missing comparator", "a 1"},
		{"dangling connective", "a > 1 AND"},
		{"literal first", "30 > age"},
		{"lone NOT", "NOT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.rule, testCatalog(t))
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Code != CodeSyntax {
				t.Errorf("expected code %s, got %s", CodeSyntax, parseErr.Code)
			}
			if parseErr.Expected == "" {
				t.Errorf("expected a non-empty Expected description")
			}
		})
	}
}

func TestParseIdempotence(t *testing.T) {
	rules := []string{
		"a > 1",
		"a > 1 AND b > 1 AND c > 1",
		"a > 1 OR b > 2 AND c > 3",
		"(a > 1 OR b > 2) AND c > 3",
		`NOT (department = "sales" AND tenure >= 2) OR age <= 65`,
		"NOT active = true",
	}

	for _, rule := range rules {
		t.Run(rule, func(t *testing.T) {
			first := mustCompile(t, rule)
			second := mustCompile(t, first.String())
			if !Equal(first, second) {
				t.Errorf("reparsing %q produced a different tree:\n first: %s\nsecond: %s",
					first.String(), first, second)
			}
		})
	}
}
