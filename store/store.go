// Package store persists eligibility rules alongside their serialized
// ASTs. Rules are validated by the engine before they are written; the
// store itself never parses or evaluates anything.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	ErrRuleExists   = errors.New("rule already exists")
	ErrRuleNotFound = errors.New("rule not found")
)

// RuleRecord is a stored rule: the authored string plus the serialized
// AST it parsed to. Valid/ValidationError/CheckedAt are maintained by the
// revalidation sweep, which re-parses stored rules after catalog changes.
type RuleRecord struct {
	ID              string          `json:"id"`
	Name            string          `json:"name,omitempty"`
	RuleString      string          `json:"rule"`
	AST             json.RawMessage `json:"ast,omitempty"`
	Valid           bool            `json:"valid"`
	ValidationError string          `json:"validation_error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CheckedAt       *time.Time      `json:"checked_at,omitempty"`
}

// RuleStore provides CRUD operations for rule records.
type RuleStore interface {
	List(ctx context.Context) ([]RuleRecord, error)
	Get(ctx context.Context, id string) (RuleRecord, bool, error)
	Create(ctx context.Context, rec RuleRecord) error
	Update(ctx context.Context, rec RuleRecord) error
	Delete(ctx context.Context, id string) error

	// SetValidation records the outcome of a revalidation pass without
	// touching the rule text or AST.
	SetValidation(ctx context.Context, id string, valid bool, message string, checkedAt time.Time) error
}

func cloneRecord(rec RuleRecord) RuleRecord {
	out := rec
	if rec.AST != nil {
		out.AST = make(json.RawMessage, len(rec.AST))
		copy(out.AST, rec.AST)
	}
	if rec.CheckedAt != nil {
		checked := *rec.CheckedAt
		out.CheckedAt = &checked
	}
	return out
}
