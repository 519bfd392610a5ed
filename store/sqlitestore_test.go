package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(SQLiteStoreConfig{
		DSN: filepath.Join(t.TempDir(), "rules.db"),
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := s.Create(ctx, sampleRecord("r1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, sampleRecord("r1", now)); !errors.Is(err, ErrRuleExists) {
		t.Fatalf("expected ErrRuleExists, got %v", err)
	}

	rec, found, err := s.Get(ctx, "r1")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if rec.RuleString != "age > 30" || !rec.Valid || len(rec.AST) == 0 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !rec.CreatedAt.Equal(now) {
		t.Errorf("expected created_at %v, got %v", now, rec.CreatedAt)
	}

	rec.RuleString = "age > 40"
	rec.UpdatedAt = now.Add(time.Minute)
	if err := s.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RuleString != "age > 40" {
		t.Errorf("expected updated rule, got %q", got.RuleString)
	}

	checked := now.Add(2 * time.Minute)
	if err := s.SetValidation(ctx, "r1", false, "catalog drift", checked); err != nil {
		t.Fatalf("set validation: %v", err)
	}
	got, _, err = s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Valid || got.ValidationError != "catalog drift" {
		t.Errorf("expected invalidated record, got %+v", got)
	}
	if got.CheckedAt == nil || !got.CheckedAt.Equal(checked) {
		t.Errorf("expected checked_at %v, got %v", checked, got.CheckedAt)
	}

	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "r1"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
	if err := s.SetValidation(ctx, "r1", true, "", now); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestSQLiteStoreListOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	now := time.Now().UTC()

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Create(ctx, sampleRecord(id, now)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	records, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// Insertion order, not lexical order.
	if records[0].ID != "c" || records[1].ID != "a" || records[2].ID != "b" {
		t.Errorf("unexpected order: %s %s %s", records[0].ID, records[1].ID, records[2].ID)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "rules.db")
	now := time.Now().UTC()

	first, err := NewSQLiteStore(SQLiteStoreConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	if err := first.Create(ctx, sampleRecord("r1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := NewSQLiteStore(SQLiteStoreConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer func() { _ = second.Close() }()

	rec, found, err := second.Get(ctx, "r1")
	if err != nil || !found {
		t.Fatalf("get after reopen: found=%v err=%v", found, err)
	}
	if rec.RuleString != "age > 30" {
		t.Errorf("unexpected record after reopen: %+v", rec)
	}
}
