// Package daemon exposes the verdict engine over HTTP: rule CRUD backed
// by a RuleStore, ad-hoc parse/evaluate/combine operations, and catalog
// administration. It also hosts the cron-driven revalidation sweep.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/verdict"
)

const (
	projectConfigName = "verdict.yaml"
	homeConfigName    = "config.yaml"
)

// Config is the declarative startup configuration shape for verdict.yaml.
type Config struct {
	// Attributes seeds the attribute catalog at startup.
	Attributes []AttributeDeclaration `yaml:"attributes"`

	// RevalidateCron, when set, schedules the stored-rule revalidation
	// sweep (standard five-field cron, UTC).
	RevalidateCron string `yaml:"revalidate_cron,omitempty"`

	// SQLitePath overrides the rule database location.
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// AttributeDeclaration defines one catalog attribute in verdict.yaml.
type AttributeDeclaration struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// DiscoverConfigPath resolves the config location with first-match
// semantics: an explicit path, then ./verdict.yaml, then
// ~/.verdict/config.yaml.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".verdict", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// If explicit path is set, not found is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadConfig reads and parses a verdict.yaml file. Values pass through
// os.ExpandEnv so declarations can reference environment variables.
func LoadConfig(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg.RevalidateCron = strings.TrimSpace(os.ExpandEnv(cfg.RevalidateCron))
	cfg.SQLitePath = strings.TrimSpace(os.ExpandEnv(cfg.SQLitePath))
	for i := range cfg.Attributes {
		cfg.Attributes[i].Name = strings.TrimSpace(os.ExpandEnv(cfg.Attributes[i].Name))
		cfg.Attributes[i].Type = strings.TrimSpace(os.ExpandEnv(cfg.Attributes[i].Type))
	}
	return cfg, nil
}

// BuildCatalog registers the declared attributes into a fresh catalog.
func BuildCatalog(cfg Config) (*verdict.Catalog, error) {
	catalog := verdict.NewCatalog()
	for _, decl := range cfg.Attributes {
		typ, err := verdict.ParseAttributeType(decl.Type)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", decl.Name, err)
		}
		if err := catalog.Register(decl.Name, typ); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", decl.Name, err)
		}
	}
	return catalog, nil
}
