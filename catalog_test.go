package verdict

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestCatalog(t *testing.T) {
	t.Run("register and lookup", func(t *testing.T) {
		catalog := NewCatalog()
		if err := catalog.Register("age", AttributeNumber); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		typ, ok := catalog.Lookup("age")
		if !ok || typ != AttributeNumber {
			t.Errorf("expected number type, got %v (found=%v)", typ, ok)
		}
		if _, ok := catalog.Lookup("salary"); ok {
			t.Errorf("expected salary to be unknown")
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		catalog := NewCatalog()
		if err := catalog.Register("age", AttributeNumber); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := catalog.Register("age", AttributeText)
		var catErr *CatalogError
		if !errors.As(err, &catErr) {
			t.Fatalf("expected CatalogError, got %v", err)
		}
		if catErr.Code != CodeDuplicateAttribute || catErr.Name != "age" {
			t.Errorf("unexpected error detail: %+v", catErr)
		}

		// The original declaration must survive the conflict.
		typ, _ := catalog.Lookup("age")
		if typ != AttributeNumber {
			t.Errorf("expected original type to stand, got %v", typ)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		catalog := NewCatalog()
		if err := catalog.Register("  ", AttributeNumber); err == nil {
			t.Fatalf("expected error for blank name")
		}
	})

	t.Run("remove", func(t *testing.T) {
		catalog := NewCatalog()
		if err := catalog.Register("age", AttributeNumber); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !catalog.Remove("age") {
			t.Errorf("expected remove to report existing attribute")
		}
		if catalog.Remove("age") {
			t.Errorf("expected second remove to report missing attribute")
		}
		if _, ok := catalog.Lookup("age"); ok {
			t.Errorf("expected age to be gone")
		}
	})

	t.Run("names are sorted", func(t *testing.T) {
		catalog := NewCatalog()
		for _, name := range []string{"salary", "age", "department"} {
			if err := catalog.Register(name, AttributeNumber); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		names := catalog.Names()
		want := []string{"age", "department", "salary"}
		for i := range want {
			if names[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, names)
			}
		}
	})
}

func TestParseAttributeType(t *testing.T) {
	tests := []struct {
		input string
		want  AttributeType
	}{
		{"number", AttributeNumber},
		{"Text", AttributeText},
		{"string", AttributeText},
		{"boolean", AttributeBoolean},
		{"bool", AttributeBoolean},
		{" NUMBER ", AttributeNumber},
	}
	for _, tc := range tests {
		got, err := ParseAttributeType(tc.input)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("%q: expected %v, got %v", tc.input, tc.want, got)
		}
	}

	if _, err := ParseAttributeType("date"); err == nil {
		t.Errorf("expected error for unsupported type")
	}
}

func TestCatalogConcurrentAccess(t *testing.T) {
	catalog := NewCatalog()
	if err := catalog.Register("age", AttributeNumber); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = catalog.Register(fmt.Sprintf("attr_%d", n), AttributeText)
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				catalog.Lookup("age")
			}
		}()
	}
	wg.Wait()

	if len(catalog.Names()) != 9 {
		t.Errorf("expected 9 attributes, got %d", len(catalog.Names()))
	}
}
