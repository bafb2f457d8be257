/*
Package cli provides command-line helpers used by the infollama command.

Output Formatting:

Command results can be printed as text, JSON or aligned columns:

	formatter := cli.NewFormatter(cli.FormatTable)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Results printed as a table implement Table (Header and Rows).

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

ExitCode maps a command error to the process exit status: 0 on success,
1 for configuration, bind or runtime failures.
*/
package cli
