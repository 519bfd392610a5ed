package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/verdict"
	"github.com/petal-labs/verdict/daemon"
)

// checkDiagnostic is the per-rule result reported by "verdict check".
type checkDiagnostic struct {
	Rule    string `json:"rule"`
	Valid   bool   `json:"valid"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Pos     int    `json:"pos,omitempty"`
}

// NewCheckCmd creates the "check" subcommand.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <rule>...",
		Short: "Validate rules against the attribute catalog without evaluating",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}

	cmd.Flags().String("config", "", "Path to verdict.yaml")
	cmd.Flags().StringArray("attr", nil, "Declare an attribute as name:type (repeatable)")
	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	catalog, err := buildCLICatalog(cmd)
	if err != nil {
		return err
	}

	diags := make([]checkDiagnostic, 0, len(args))
	failed := 0
	for _, rule := range args {
		diag := checkDiagnostic{Rule: rule, Valid: true}
		if _, err := verdict.Compile(rule, catalog); err != nil {
			diag.Valid = false
			diag.Message = err.Error()
			diag.Code, diag.Pos = diagnosticDetail(err)
			failed++
		}
		diags = append(diags, diag)
	}

	printCheckDiagnostics(out, diags, format)

	if failed > 0 {
		return exitError(exitValidation, "%d of %d rules invalid", failed, len(args))
	}
	return nil
}

// diagnosticDetail extracts the machine code and position from a typed
// engine error.
func diagnosticDetail(err error) (string, int) {
	var lexErr *verdict.LexError
	if errors.As(err, &lexErr) {
		return lexErr.Code, lexErr.Pos
	}
	var parseErr *verdict.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Code, parseErr.Pos
	}
	return "", 0
}

func printCheckDiagnostics(w io.Writer, diags []checkDiagnostic, format string) {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(diags)
		return
	}

	invalid := 0
	for _, d := range diags {
		if d.Valid {
			fmt.Fprintf(w, "ok      %s\n", d.Rule)
			continue
		}
		invalid++
		if d.Code != "" {
			fmt.Fprintf(w, "invalid %s: [%s] %s\n", d.Rule, d.Code, d.Message)
		} else {
			fmt.Fprintf(w, "invalid %s: %s\n", d.Rule, d.Message)
		}
	}
	if invalid == 0 {
		fmt.Fprintln(w, "Valid!")
	}
}

// buildCLICatalog assembles the attribute catalog from the discovered
// config file plus any --attr declarations.
func buildCLICatalog(cmd *cobra.Command) (*verdict.Catalog, error) {
	explicitConfig, _ := cmd.Flags().GetString("config")
	attrFlags, _ := cmd.Flags().GetStringArray("attr")

	configPath, found, err := daemon.DiscoverConfigPath(explicitConfig)
	if err != nil {
		return nil, exitError(exitFileNotFound, "%v", err)
	}

	cfg := daemon.Config{}
	if found {
		cfg, err = daemon.LoadConfig(configPath)
		if err != nil {
			return nil, exitError(exitInputParse, "%v", err)
		}
	}

	catalog, err := daemon.BuildCatalog(cfg)
	if err != nil {
		return nil, exitError(exitInputParse, "%v", err)
	}

	for _, decl := range attrFlags {
		name, typeName, ok := strings.Cut(decl, ":")
		if !ok {
			return nil, exitError(exitInputParse, "invalid --attr %q, expected name:type", decl)
		}
		typ, err := verdict.ParseAttributeType(typeName)
		if err != nil {
			return nil, exitError(exitInputParse, "invalid --attr %q: %v", decl, err)
		}
		if err := catalog.Register(strings.TrimSpace(name), typ); err != nil {
			return nil, exitError(exitInputParse, "invalid --attr %q: %v", decl, err)
		}
	}
	return catalog, nil
}
