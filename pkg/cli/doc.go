/*
Package cli provides command-line helpers for the richhistory command.

Output Formatting:

Search results can be printed as an aligned table, JSON or CSV:

	format, err := cli.ParseFormat("json")
	if err != nil {
		return err
	}
	return cli.WriteResults(ctx, os.Stdout, format, results)

Other values, such as settings, go through a Formatter:

	cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, settings)

Warnings from the store are printed separately from errors with
PrintWarning, so scripts can tell a successful add with evictions from a
failed one.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
