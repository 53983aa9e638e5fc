/*
Package cli provides helpers shared by the warden commands.

Command results are printed through a Formatter chosen with --output:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, &cli.Table{Columns: cols, Data: rows}); err != nil {
		return err
	}

Text and CSV output render values implementing Tabular. JSON output encodes
the value as is, so commands usually pass the records rather than a Table.

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
