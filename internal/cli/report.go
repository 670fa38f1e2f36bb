package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tally-books/tally/internal/app/report"
	"github.com/tally-books/tally/internal/daemon"
	"github.com/tally-books/tally/internal/domain"
)

func init() {
	rootCmd.AddCommand(reportCmd, backupCmd)
	reportCmd.Flags().String("from", "", "First day, YYYY-MM-DD")
	reportCmd.Flags().String("to", "", "Last day, YYYY-MM-DD")
	reportCmd.Flags().String("xlsx", "", "Write the reports to this workbook instead of printing")

	backupCmd.AddCommand(backupExportCmd, backupImportCmd, backupRunCmd, backupListCmd)
	backupExportCmd.Flags().StringP("output", "o", "", "Write to this file (default stdout)")
	backupImportCmd.Flags().Bool("replace", false, "Clear every collection before loading")
}

// ─── report ─────────────────────────────────────────────────────────────────

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the general, category and item reports",
	Long:  `Show sales, cost, profit, expenses and payments in the base currency, overall and per category and item.`,
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	win, err := windowFlags(cmd)
	if err != nil {
		return err
	}
	xlsxPath, _ := cmd.Flags().GetString("xlsx")

	return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
		if xlsxPath != "" {
			f, err := os.Create(xlsxPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", xlsxPath, err)
			}
			defer f.Close()
			if err := d.Reports.WriteXLSX(ctx, win, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reports written to %s\n", xlsxPath)
			return nil
		}

		b, err := d.Reports.All(ctx, win)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), b)
		}
		return printBundle(cmd.OutOrStdout(), b)
	})
}

func windowFlags(cmd *cobra.Command) (report.Window, error) {
	fromRaw, _ := cmd.Flags().GetString("from")
	toRaw, _ := cmd.Flags().GetString("to")
	from, err := parseDate(fromRaw)
	if err != nil {
		return report.Window{}, fmt.Errorf("--from: %w", err)
	}
	to, err := parseDate(toRaw)
	if err != nil {
		return report.Window{}, fmt.Errorf("--to: %w", err)
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	return report.Window{From: from, To: to}, nil
}

func printBundle(out io.Writer, b report.Bundle) error {
	sym := b.Base.Symbol
	g := b.General
	tw := newTable(out)
	fmt.Fprintf(tw, "Sales\t%s\n", domain.FormatAmount(g.TotalSales, sym))
	fmt.Fprintf(tw, "Cost\t%s\n", domain.FormatAmount(g.TotalCost, sym))
	fmt.Fprintf(tw, "Gross profit\t%s\n", domain.FormatAmount(g.TotalProfit, sym))
	fmt.Fprintf(tw, "Expenses\t%s\n", domain.FormatAmount(g.TotalExpense, sym))
	fmt.Fprintf(tw, "Net profit\t%s\n", domain.FormatAmount(g.NetProfit, sym))
	fmt.Fprintf(tw, "Received\t%s\n", domain.FormatAmount(g.TotalReceived, sym))
	fmt.Fprintf(tw, "Paid\t%s\n", domain.FormatAmount(g.TotalPaid, sym))
	fmt.Fprintf(tw, "Transactions\t%d\n", g.Transactions)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = newTable(out)
	fmt.Fprintln(tw, "CATEGORY\tPRODUCTS\tSALES\tPROFIT\tSTOCK VALUE")
	for _, c := range b.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", c.Name, c.ProductCount,
			domain.FormatAmount(c.Sales, sym), domain.FormatAmount(c.Profit, sym), domain.FormatAmount(c.StockValue, sym))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = newTable(out)
	fmt.Fprintln(tw, "ITEM\tCATEGORY\tSOLD\tSALES\tCOST\tPROFIT\tSTOCK")
	for _, it := range b.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%d\n", it.Name, it.CategoryName, it.QuantitySold,
			domain.FormatAmount(it.TotalSales, sym), domain.FormatAmount(it.TotalCost, sym), domain.FormatAmount(it.Profit, sym), it.Stock)
	}
	return tw.Flush()
}

// ─── backup ─────────────────────────────────────────────────────────────────

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export, import and rotate snapshots",
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON snapshot of every collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("output")
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			var w io.Writer = cmd.OutOrStdout()
			if path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				defer f.Close()
				w = f
			}
			snap, err := d.Backup.Export(ctx, w)
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", snap.RecordCount(), path)
			}
			return nil
		})
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		replace, _ := cmd.Flags().GetBool("replace")
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			stats, err := d.Backup.ImportFile(ctx, args[0], replace)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records (%d references remapped).\n", stats.Records, stats.Remapped)
			return nil
		})
	},
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Write a backup file now and prune old ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			path, err := d.Backup.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup files, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			files, err := d.Backup.List()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), files)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CREATED\tSIZE\tNAME")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Created.Format("2006-01-02 15:04"), f.Size, f.Name)
			}
			return tw.Flush()
		})
	},
}
