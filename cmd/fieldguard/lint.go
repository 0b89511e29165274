package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/fieldguard/pkg/cli"
	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

var lintFlags struct {
	rules  []string
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check rule documents",
	Long: `Check rule documents for syntax and semantic problems.

The lint command parses rule documents and reports:
  - YAML and JSON syntax errors
  - Missing ruleId, fieldId or conditions
  - Unknown condition types, operators, value types and actions
  - Malformed condition values and invalid regular expressions
  - CUSTOM expressions that do not compile
  - Duplicate rule IDs and dependency cycles

Examples:
  # Lint a single document
  fieldguard lint --rules rules.yaml

  # Lint every document in a directory
  fieldguard lint --rules rules/

  # Strict mode (warnings as errors)
  fieldguard lint --rules rules.yaml --strict

  # JSON output for CI/CD
  fieldguard lint --rules rules.yaml --format json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringSliceVarP(&lintFlags.rules, "rules", "r", nil, "rule document or directory (repeatable)")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

func lintRules(cmd *cobra.Command, args []string) error {
	if len(lintFlags.rules) == 0 {
		return fmt.Errorf("at least one --rules path must be specified")
	}

	format, err := cli.ParseFormat(lintFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := commandLogger(cfg, nil)
	if err != nil {
		return err
	}
	compiler, err := newCompiler(&cfg.Engine, logger)
	if err != nil {
		return err
	}

	files, err := lintTargets(lintFlags.rules)
	if err != nil {
		return err
	}

	parser := newParser(&cfg.Rules)
	linter := ruleset.NewLinter(engine.NewRegistry()).WithCompiler(compiler)

	problems := ruleset.NewErrorList()
	for _, file := range files {
		doc, err := parser.Parse(file)
		if err != nil {
			problems.Add(asLintError(err, file))
			continue
		}
		problems.Merge(linter.Lint(doc))
	}

	if err := cli.NewFormatter(format).FormatTo(commandOutput(cmd), problems); err != nil {
		return err
	}

	if problems.HasErrors() {
		return cli.NewExitError(1, fmt.Sprintf("found %d problem(s)", problems.Count()))
	}
	if lintFlags.strict && len(problems.Warnings()) > 0 {
		return cli.NewExitError(1, fmt.Sprintf("found %d warning(s) in strict mode", len(problems.Warnings())))
	}
	return nil
}

// lintTargets expands directories into the rule documents they contain.
func lintTargets(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		matches, err := ruleset.RuleFiles(path)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rule documents found")
	}
	return files, nil
}

func asLintError(err error, file string) *ruleset.Error {
	var lintErr *ruleset.Error
	if errors.As(err, &lintErr) {
		return lintErr
	}
	return &ruleset.Error{
		Type:     ruleset.ErrorTypeIO,
		Message:  err.Error(),
		Location: ruleset.Location{File: file},
	}
}
