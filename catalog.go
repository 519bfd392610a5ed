package verdict

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AttributeType is the declared type of a catalog attribute.
type AttributeType string

const (
	AttributeNumber  AttributeType = "number"
	AttributeText    AttributeType = "text"
	AttributeBoolean AttributeType = "boolean"
)

// ParseAttributeType converts external input ("number", "text", "boolean")
// to an AttributeType. "string" and "bool" are accepted as aliases.
func ParseAttributeType(s string) (AttributeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "number":
		return AttributeNumber, nil
	case "text", "string":
		return AttributeText, nil
	case "boolean", "bool":
		return AttributeBoolean, nil
	default:
		return "", fmt.Errorf("unsupported attribute type %q", s)
	}
}

// Catalog is the registry of known attribute names and their declared
// types. The parser treats it as the single source of truth when
// validating rules. Registrations may happen concurrently with lookups;
// a reader/writer lock keeps both safe.
type Catalog struct {
	mu    sync.RWMutex
	attrs map[string]AttributeType
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{attrs: make(map[string]AttributeType)}
}

// Register declares an attribute. Re-registering an existing name fails
// with a CatalogError so conflicting type declarations cannot slip in
// silently.
func (c *Catalog) Register(name string, t AttributeType) error {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return fmt.Errorf("attribute name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.attrs[clean]; exists {
		return &CatalogError{Code: CodeDuplicateAttribute, Name: clean}
	}
	c.attrs[clean] = t
	return nil
}

// Lookup returns the declared type for an attribute name.
func (c *Catalog) Lookup(name string) (AttributeType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.attrs[name]
	return t, ok
}

// Remove deletes an attribute declaration and reports whether it existed.
// Rules already parsed against the old declaration are unaffected; the
// store's revalidation sweep surfaces them.
func (c *Catalog) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.attrs[name]
	delete(c.attrs, name)
	return ok
}

// Names returns all registered attribute names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.attrs))
	for name := range c.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// compatible reports whether a literal kind satisfies a declared
// attribute type. The two enumerations share their textual values, so
// this is a direct tag comparison, not a coercion.
func compatible(t AttributeType, k LiteralKind) bool {
	return string(t) == string(k)
}
