/*
Package cli provides the output formatters, errors and signal helpers used by
the fieldguard command.

Output Formatting:

Commands accept --format and render validation reports, lint results and
archived report records through a Formatter:

	format, err := cli.ParseFormat(flagValue, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, report); err != nil {
		return err
	}

CSV output is available for report records only.

Exit Codes:

Commands return errors and main maps them with ExitCode. An ExitError lets a
command set the status after printing its own output:

	if report.HasErrors && failOnError {
		return cli.NewExitError(1, "validation failed")
	}

Progress Reporting:

Batch validation reports progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr, "documents")
	progress.Start(int64(len(files)))
	for i, f := range files {
		// validate f
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
*/
package cli
