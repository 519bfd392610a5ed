package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petal-labs/verdict"
)

// NewEvalCmd creates the "eval" subcommand.
func NewEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <rule>",
		Short: "Evaluate a rule against a data record",
		Long: "Evaluate a rule against a JSON data record. " +
			"The exit status is the verdict: 0 for true, 1 for false.",
		Args: cobra.ExactArgs(1),
		RunE: runEval,
	}

	cmd.Flags().String("record", "", "Path to a JSON file with the data record (required)")
	cmd.Flags().String("config", "", "Path to verdict.yaml")
	cmd.Flags().StringArray("attr", nil, "Declare an attribute as name:type (repeatable)")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	recordPath, _ := cmd.Flags().GetString("record")
	out := cmd.OutOrStdout()

	catalog, err := buildCLICatalog(cmd)
	if err != nil {
		return err
	}

	record, err := loadRecord(recordPath)
	if err != nil {
		return err
	}

	node, err := verdict.Compile(args[0], catalog)
	if err != nil {
		return exitError(exitValidation, "invalid rule: %v", err)
	}

	result, err := verdict.Evaluate(node, record)
	if err != nil {
		return exitError(exitEval, "evaluation failed: %v", err)
	}

	fmt.Fprintln(out, result)
	if !result {
		return exitError(exitFalse, "")
	}
	return nil
}

// loadRecord reads a JSON object file and converts it to a typed record.
func loadRecord(path string) (verdict.Record, error) {
	// #nosec G304 -- path comes from the user's own --record flag.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, exitError(exitFileNotFound, "record file not found: %s", path)
		}
		return nil, fmt.Errorf("reading record: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, exitError(exitInputParse, "parsing record %s: %v", path, err)
	}
	record, err := verdict.RecordFromJSON(raw)
	if err != nil {
		return nil, exitError(exitInputParse, "record %s: %v", path, err)
	}
	return record, nil
}
