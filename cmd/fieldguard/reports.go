package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/fieldguard/pkg/cli"
	"mercator-hq/fieldguard/pkg/reports"
	"mercator-hq/fieldguard/pkg/reports/export"
	"mercator-hq/fieldguard/pkg/reports/query"
)

var reportsFlags struct {
	timeRange    string
	field        string
	rule         string
	pass         string
	status       string
	sort         string
	limit        int
	offset       int
	listFormat   string
	showFormat   string
	exportFormat string
	output       string
	days         int
	maxRecords   int64
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Query the report archive",
	Long: `Query, export and prune archived validation reports.

The report archive is configured in the reports section of the config file.
Every full validation pass of a running server, and every validate --record
run, is stored with its complete report.

Subcommands:
  list    - List records with filters
  show    - Show one record and its report
  export  - Export matching records as JSON or CSV
  prune   - Apply the retention policy once

Examples:
  # Failed passes in a time range
  fieldguard reports list --status failed --time-range "2026-03-01T00:00:00Z/2026-03-02T00:00:00Z"

  # Passes that failed a specific rule
  fieldguard reports list --rule age-min

  # Export to CSV
  fieldguard reports export --format csv --output reports.csv`,
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List report records",
	Long: `List report records, newest first.

Time Range Format:
  RFC3339 interval format: "start/end"
  Either side may be empty: "2026-03-01T00:00:00Z/" lists everything since then.`,
	RunE: listReports,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show a report record",
	Args:  cobra.ExactArgs(1),
	RunE:  showReport,
}

var reportsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export report records",
	Long: `Export every record matching the filters, oldest first.

Formats:
  json - a JSON array of records
  csv  - one row per error, with record columns repeated`,
	RunE: exportReports,
}

var reportsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy",
	Long: `Delete records older than the retention period, then the oldest records
beyond the record cap. When retention.archive_path is set every batch is
written there as JSON before it is deleted.`,
	RunE: pruneReports,
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsExportCmd, reportsPruneCmd)

	for _, cmd := range []*cobra.Command{reportsListCmd, reportsExportCmd} {
		cmd.Flags().StringVar(&reportsFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
		cmd.Flags().StringVar(&reportsFlags.field, "field", "", "filter by field with an error")
		cmd.Flags().StringVar(&reportsFlags.rule, "rule", "", "filter by rule that produced an error")
		cmd.Flags().StringVar(&reportsFlags.pass, "pass", "", "filter by pass ID")
		cmd.Flags().StringVar(&reportsFlags.status, "status", "", "filter by status: passed, failed")
		cmd.Flags().StringVarP(&reportsFlags.output, "output", "o", "", "output file (default: stdout)")
	}

	reportsListCmd.Flags().StringVar(&reportsFlags.sort, "sort", "desc", "sort by pass time: asc, desc")
	reportsListCmd.Flags().IntVar(&reportsFlags.limit, "limit", 0, "max results (default: reports.query.default_limit)")
	reportsListCmd.Flags().IntVar(&reportsFlags.offset, "offset", 0, "pagination offset")
	reportsListCmd.Flags().StringVar(&reportsFlags.listFormat, "format", "text", "output format: text, json, csv")

	reportsShowCmd.Flags().StringVar(&reportsFlags.showFormat, "format", "text", "output format: text, json")

	reportsExportCmd.Flags().StringVar(&reportsFlags.exportFormat, "format", "json", "export format: json, csv")

	reportsPruneCmd.Flags().IntVar(&reportsFlags.days, "days", -1, "override retention days (0 disables age pruning)")
	reportsPruneCmd.Flags().Int64Var(&reportsFlags.maxRecords, "max-records", -1, "override the record cap (0 disables it)")
}

// openReportStore opens the configured archive and returns its page limits.
func openReportStore() (reports.Storage, query.Limits, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, query.Limits{}, err
	}
	logger, err := commandLogger(cfg, nil)
	if err != nil {
		return nil, query.Limits{}, err
	}
	store, err := openStorage(&cfg.Reports, logger)
	if err != nil {
		return nil, query.Limits{}, err
	}
	return store, queryLimits(&cfg.Reports.Query), nil
}

func listReports(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(reportsFlags.listFormat, cli.FormatText, cli.FormatJSON, cli.FormatCSV)
	if err != nil {
		return err
	}

	store, limits, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := buildReportQuery()
	if err != nil {
		return err
	}
	q.SortOrder = reportsFlags.sort
	q.Limit = reportsFlags.limit
	q.Offset = reportsFlags.offset
	if err := query.Validate(q, limits); err != nil {
		return err
	}
	query.ApplyDefaults(q, limits)

	records, err := store.Query(commandContext(cmd), q)
	if err != nil {
		return fmt.Errorf("failed to query reports: %w", err)
	}

	return withOutput(cmd, reportsFlags.output, func(w io.Writer) error {
		return cli.NewFormatter(format).FormatTo(w, records)
	})
}

func showReport(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(reportsFlags.showFormat, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}

	store, _, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.Get(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(commandOutput(cmd), record)
}

func exportReports(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(reportsFlags.exportFormat, true)
	if err != nil {
		return err
	}

	store, limits, err := openReportStore()
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := buildReportQuery()
	if err != nil {
		return err
	}
	if err := query.Validate(q, limits); err != nil {
		return err
	}
	q.SortOrder = "asc"
	q.Limit = limits.Max
	if q.Limit <= 0 {
		q.Limit = query.MaxLimit
	}

	ctx := commandContext(cmd)
	var records []*reports.Record
	for {
		page, err := store.Query(ctx, q)
		if err != nil {
			return fmt.Errorf("failed to query reports: %w", err)
		}
		records = append(records, page...)
		if len(page) < q.Limit {
			break
		}
		q.Offset += len(page)
	}

	return withOutput(cmd, reportsFlags.output, func(w io.Writer) error {
		return exporter.Export(ctx, records, w)
	})
}

func pruneReports(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := commandLogger(cfg, nil)
	if err != nil {
		return err
	}
	store, err := openStorage(&cfg.Reports, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	retention := cfg.Reports.Retention
	if reportsFlags.days >= 0 {
		retention.Days = reportsFlags.days
	}
	if reportsFlags.maxRecords >= 0 {
		retention.MaxRecords = reportsFlags.maxRecords
	}

	deleted, err := newPruner(store, &retention, nil, logger).Prune(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to prune reports: %w", err)
	}
	fmt.Fprintf(commandOutput(cmd), "✓ Pruned %d %s\n", deleted, pluralRecords(deleted))
	return nil
}

func buildReportQuery() (*reports.Query, error) {
	q := &reports.Query{
		FieldID: reportsFlags.field,
		RuleID:  reportsFlags.rule,
		PassID:  reportsFlags.pass,
		Status:  reportsFlags.status,
	}
	if reportsFlags.timeRange != "" {
		start, end, err := parseTimeRange(reportsFlags.timeRange)
		if err != nil {
			return nil, err
		}
		q.StartTime, q.EndTime = start, end
	}
	return q, nil
}

// parseTimeRange parses an RFC3339 interval "start/end". Either side may be empty.
func parseTimeRange(value string) (start, end *time.Time, err error) {
	from, to, ok := strings.Cut(value, "/")
	if !ok {
		return nil, nil, fmt.Errorf("invalid time range %q: expected start/end", value)
	}
	if from = strings.TrimSpace(from); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start time: %w", err)
		}
		start = &t
	}
	if to = strings.TrimSpace(to); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end time: %w", err)
		}
		end = &t
	}
	if start == nil && end == nil {
		return nil, nil, fmt.Errorf("invalid time range %q: both ends are empty", value)
	}
	return start, end, nil
}

// withOutput runs write against the --output file, or the command output
// when path is empty.
func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(commandOutput(cmd))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func pluralRecords(n int64) string {
	if n == 1 {
		return "record"
	}
	return "records"
}
