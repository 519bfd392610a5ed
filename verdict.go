// Package verdict evaluates boolean eligibility rules against structured
// data records without executing any user-supplied code.
//
// Rules are authored as strings such as
//
//	age > 30 AND salary > 50000 OR (department = "sales" AND tenure >= 2)
//
// and flow through a fixed pipeline: Tokenize produces a token sequence,
// Parse builds an immutable AST while validating attribute names and
// literal types against a Catalog, and Evaluate walks that AST against a
// Record to a boolean verdict. Comparisons dispatch over a closed set of
// comparators and literal kinds; no path interprets input text as logic.
//
// ASTs serialize to a tagged JSON form (MarshalNode/UnmarshalNode) for
// storage and transport, and Combine merges existing trees under a new
// connective. All operations are synchronous pure functions; parsed
// trees and catalog snapshots are safe for concurrent use.
package verdict

// Compile tokenizes and parses a rule string in one step.
func Compile(rule string, catalog *Catalog) (Node, error) {
	tokens, err := Tokenize(rule)
	if err != nil {
		return nil, err
	}
	return Parse(tokens, catalog)
}

// EvaluateRule compiles a rule string and evaluates it against a record.
// Callers evaluating the same rule repeatedly should Compile once and
// reuse the tree instead.
func EvaluateRule(rule string, catalog *Catalog, record Record) (bool, error) {
	node, err := Compile(rule, catalog)
	if err != nil {
		return false, err
	}
	return Evaluate(node, record)
}
