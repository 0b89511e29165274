package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/fieldguard/pkg/cli"
	"mercator-hq/fieldguard/pkg/config"
	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/recorder"
	"mercator-hq/fieldguard/pkg/validation/engine"
	"mercator-hq/fieldguard/pkg/validation/ruleset"
)

var validateFlags struct {
	rules       []string
	fields      []string
	field       string
	value       string
	format      string
	failOnError bool
	record      bool
	progress    bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate field documents against rules",
	Long: `Validate one or more field documents against rule documents.

Field documents are YAML or JSON: either a list of {fieldId, value} records
or a mapping keyed by field ID. Rule documents may be files or directories;
their rules are concatenated in the order given.

With --field and --value only the conditions targeting that field are
evaluated, with the new value replacing the document's value.

Examples:
  # Validate a field document
  fieldguard validate --rules rules.yaml --fields fields.json

  # Re-validate one field with a new value
  fieldguard validate --rules rules.yaml --fields fields.json --field age --value 17

  # Validate a batch and fail the build on any error
  fieldguard validate --rules rules/ --fields a.json --fields b.json --fail-on-error

  # Archive the reports in the configured report store
  fieldguard validate --rules rules.yaml --fields fields.json --record`,
	RunE: validateFields,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringSliceVarP(&validateFlags.rules, "rules", "r", nil, "rule document or directory (repeatable)")
	validateCmd.Flags().StringSliceVarP(&validateFlags.fields, "fields", "f", nil, "field document (repeatable)")
	validateCmd.Flags().StringVar(&validateFlags.field, "field", "", "validate only this field")
	validateCmd.Flags().StringVar(&validateFlags.value, "value", "", "new value for --field, parsed as a YAML scalar")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
	validateCmd.Flags().BoolVar(&validateFlags.failOnError, "fail-on-error", false, "exit with status 1 when any field is invalid")
	validateCmd.Flags().BoolVar(&validateFlags.record, "record", false, "archive reports in the configured report store")
	validateCmd.Flags().BoolVar(&validateFlags.progress, "progress", false, "show progress on stderr for batches")
}

// documentReport pairs a field document with its report in batch output.
type documentReport struct {
	Source string         `json:"source"`
	Report *engine.Report `json:"report"`
}

func validateFields(cmd *cobra.Command, args []string) error {
	if len(validateFlags.rules) == 0 {
		return fmt.Errorf("at least one --rules path must be specified")
	}
	if len(validateFlags.fields) == 0 {
		return fmt.Errorf("at least one --fields document must be specified")
	}
	if validateFlags.value != "" && validateFlags.field == "" {
		return fmt.Errorf("--value requires --field")
	}

	format, err := cli.ParseFormat(validateFlags.format, cli.FormatText, cli.FormatJSON)
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

	parser := newParser(&cfg.Rules)
	rules, err := loadRuleDocuments(parser, validateFlags.rules)
	if err != nil {
		return err
	}

	var fieldValue any
	if validateFlags.field != "" {
		if fieldValue, err = parseScalar(validateFlags.value); err != nil {
			return fmt.Errorf("invalid --value: %w", err)
		}
	}

	compiler, err := newCompiler(&cfg.Engine, logger)
	if err != nil {
		return err
	}
	opts := []engine.Option{engine.WithExpressionCompiler(compiler)}

	if validateFlags.record {
		store, err := openStorage(&cfg.Reports, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		rec := newCLIRecorder(store, &cfg.Reports.Recorder, logger)
		defer rec.Close()
		opts = append(opts, engine.WithNotifier(rec))
	}

	eng, err := engine.NewEngine(engineConfig(&cfg.Engine), engine.DefaultRegistry(), logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	ctx := commandContext(cmd)

	var progress cli.ProgressReporter = cli.NoopProgress{}
	if validateFlags.progress && len(validateFlags.fields) > 1 {
		progress = cli.NewProgressReporter(nil, "documents")
	}
	progress.Start(int64(len(validateFlags.fields)))

	results := make([]documentReport, 0, len(validateFlags.fields))
	failed := false
	for i, path := range validateFlags.fields {
		fields, err := ruleset.ParseFieldsFile(path)
		if err != nil {
			progress.Error(err)
			return err
		}

		var report *engine.Report
		if validateFlags.field != "" {
			report, err = eng.ValidateField(ctx, fields, rules, validateFlags.field, fieldValue)
		} else {
			report, err = eng.Validate(ctx, fields, rules)
		}
		if err != nil {
			progress.Error(err)
			return fmt.Errorf("failed to validate %s: %w", path, err)
		}

		failed = failed || report.HasErrors
		results = append(results, documentReport{Source: path, Report: report})
		progress.Update(int64(i + 1))
	}
	progress.Finish()

	if err := writeReports(commandOutput(cmd), format, results); err != nil {
		return err
	}

	if failed && validateFlags.failOnError {
		return cli.NewExitError(1, "validation failed")
	}
	return nil
}

// loadRuleDocuments parses every path and concatenates the rules in order.
func loadRuleDocuments(parser *ruleset.Parser, paths []string) ([]engine.Rule, error) {
	var rules []engine.Rule
	for _, path := range paths {
		doc, err := parser.ParsePath(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		rules = append(rules, doc.Rules...)
	}
	return rules, nil
}

// parseScalar decodes a command-line value the way it would read in a YAML
// field document, so 17 is a number and true a boolean.
func parseScalar(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return raw, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// newCLIRecorder stamps records with the rule paths of this run.
func newCLIRecorder(store reports.Storage, cfg *config.RecorderConfig, logger *slog.Logger) *recorder.Recorder {
	version := strings.Join(validateFlags.rules, ",")
	return newRecorder(store, cfg, logger,
		recorder.WithVersion(func() (string, string) { return "cli", version }),
	)
}

func writeReports(w io.Writer, format cli.OutputFormat, results []documentReport) error {
	formatter := cli.NewFormatter(format)
	if len(results) == 1 {
		return formatter.FormatTo(w, results[0].Report)
	}
	if format == cli.FormatJSON {
		return formatter.FormatTo(w, results)
	}

	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:\n", res.Source)
		if err := formatter.FormatTo(w, res.Report); err != nil {
			return err
		}
	}
	return nil
}
