package verdict

import "fmt"

// Combine merges existing trees under a single logical connective. An
// immediate child that already uses the same connective is flattened
// into the new node, and exact structural duplicates among the merged
// children are dropped, preserving the n-ary-collapse invariant the
// parser establishes.
//
// Combine operates purely on ASTs; it never consults rule strings or
// data records.
func Combine(connective Connective, trees ...Node) (Node, error) {
	if connective != ConnectiveAnd && connective != ConnectiveOr {
		return nil, fmt.Errorf("verdict: unsupported connective %q", connective)
	}
	if len(trees) < 2 {
		return nil, fmt.Errorf("verdict: combine requires at least 2 trees, got %d", len(trees))
	}

	merged := make([]Node, 0, len(trees))
	for _, tree := range trees {
		if tree == nil {
			return nil, fmt.Errorf("verdict: combine received a nil tree")
		}
		if op, ok := tree.(Operator); ok && op.Connective == connective {
			merged = append(merged, op.Operands...)
			continue
		}
		merged = append(merged, tree)
	}

	deduped := make([]Node, 0, len(merged))
	for _, candidate := range merged {
		duplicate := false
		for _, kept := range deduped {
			if Equal(kept, candidate) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			deduped = append(deduped, candidate)
		}
	}

	// Everything collapsed to one distinct child; an Operator node must
	// keep at least two, so return the child itself.
	if len(deduped) == 1 {
		return deduped[0], nil
	}
	return Operator{Connective: connective, Operands: deduped}, nil
}
