package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/petal-labs/verdict"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscoverConfigPathFrom(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()

	t.Run("nothing found", func(t *testing.T) {
		path, found, err := DiscoverConfigPathFrom("", cwd, home)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found || path != "" {
			t.Errorf("expected no config, got %q", path)
		}
	})

	t.Run("home config", func(t *testing.T) {
		homePath := filepath.Join(home, ".verdict", "config.yaml")
		writeFile(t, homePath, "attributes: []\n")
		path, found, err := DiscoverConfigPathFrom("", cwd, home)
		if err != nil || !found {
			t.Fatalf("found=%v err=%v", found, err)
		}
		if path != homePath {
			t.Errorf("expected %q, got %q", homePath, path)
		}
	})

	t.Run("project config wins over home", func(t *testing.T) {
		projectPath := filepath.Join(cwd, "verdict.yaml")
		writeFile(t, projectPath, "attributes: []\n")
		path, found, err := DiscoverConfigPathFrom("", cwd, home)
		if err != nil || !found {
			t.Fatalf("found=%v err=%v", found, err)
		}
		if path != projectPath {
			t.Errorf("expected %q, got %q", projectPath, path)
		}
	})

	t.Run("explicit path wins", func(t *testing.T) {
		explicit := filepath.Join(t.TempDir(), "custom.yaml")
		writeFile(t, explicit, "attributes: []\n")
		path, found, err := DiscoverConfigPathFrom(explicit, cwd, home)
		if err != nil || !found {
			t.Fatalf("found=%v err=%v", found, err)
		}
		if path != explicit {
			t.Errorf("expected %q, got %q", explicit, path)
		}
	})

	t.Run("missing explicit path is an error", func(t *testing.T) {
		_, _, err := DiscoverConfigPathFrom(filepath.Join(cwd, "no-such.yaml"), cwd, home)
		if err == nil {
			t.Fatal("expected error for missing explicit config")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdict.yaml")
	writeFile(t, path, `
attributes:
  - name: age
    type: number
  - name: department
    type: text
  - name: active
    type: boolean
revalidate_cron: "*/15 * * * *"
sqlite_path: ${VERDICT_TEST_DB}
`)
	t.Setenv("VERDICT_TEST_DB", "/tmp/rules.db")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Attributes) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(cfg.Attributes))
	}
	if cfg.Attributes[0].Name != "age" || cfg.Attributes[0].Type != "number" {
		t.Errorf("unexpected first attribute: %+v", cfg.Attributes[0])
	}
	if cfg.RevalidateCron != "*/15 * * * *" {
		t.Errorf("unexpected cron: %q", cfg.RevalidateCron)
	}
	if cfg.SQLitePath != "/tmp/rules.db" {
		t.Errorf("env expansion failed: %q", cfg.SQLitePath)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, bad, "attributes: {not a list\n")
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestBuildCatalog(t *testing.T) {
	cfg := Config{Attributes: []AttributeDeclaration{
		{Name: "age", Type: "number"},
		{Name: "department", Type: "string"},
		{Name: "active", Type: "bool"},
	}}

	catalog, err := BuildCatalog(cfg)
	if err != nil {
		t.Fatalf("BuildCatalog() error = %v", err)
	}
	if typ, ok := catalog.Lookup("department"); !ok || typ != verdict.AttributeText {
		t.Errorf("department type = %v, ok = %v", typ, ok)
	}
	if typ, ok := catalog.Lookup("active"); !ok || typ != verdict.AttributeBoolean {
		t.Errorf("active type = %v, ok = %v", typ, ok)
	}
}

func TestBuildCatalogErrors(t *testing.T) {
	if _, err := BuildCatalog(Config{Attributes: []AttributeDeclaration{
		{Name: "age", Type: "datetime"},
	}}); err == nil {
		t.Error("expected error for unknown type")
	}

	if _, err := BuildCatalog(Config{Attributes: []AttributeDeclaration{
		{Name: "age", Type: "number"},
		{Name: "age", Type: "text"},
	}}); err == nil {
		t.Error("expected error for duplicate attribute")
	}
}
