package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tally-books/tally/internal/daemon"
	"github.com/tally-books/tally/internal/domain"
)

func init() {
	rootCmd.AddCommand(rateCmd, convertCmd)
	rateCmd.AddCommand(rateListCmd, rateSetCmd, rateBaseCmd, rateDeleteCmd)

	rateSetCmd.Flags().String("name", "", "Display name")
	rateSetCmd.Flags().Bool("base", false, "Make this the base currency")
	rateSetCmd.Flags().Float64("factor", 0, "Conversion factor shown for redenominated currencies")
}

var rateCmd = &cobra.Command{
	Use:     "rate",
	Aliases: []string{"rates"},
	Short:   "Manage exchange rates",
	Long: `Manage the exchange-rate table. A rate is how many units of the currency
make one unit of the base currency. Setting either side of the legacy pair
updates the other side by the fixed ratio.`,
}

var rateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currencies and rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			rates, err := d.Currency.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, rates)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tSYMBOL\tNAME\tRATE\tBASE")
			for _, c := range rates {
				base := ""
				if c.IsBase {
					base = "*"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%s\n", c.ID, c.Symbol, c.Name, c.Rate, base)
			}
			return tw.Flush()
		})
	},
}

var rateSetCmd = &cobra.Command{
	Use:   "set SYMBOL RATE",
	Short: "Create or update a currency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		base, _ := cmd.Flags().GetBool("base")
		factor, _ := cmd.Flags().GetFloat64("factor")
		symbol := strings.ToUpper(args[0])

		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			c := domain.Currency{Symbol: symbol, Rate: rate, IsBase: base, ConversionFactor: factor}
			rates, err := d.Currency.List(ctx)
			if err != nil {
				return err
			}
			for _, existing := range rates {
				if strings.EqualFold(existing.Symbol, symbol) {
					c.ID = existing.ID
					c.Name = existing.Name
					c.IsBase = base || existing.IsBase
					if factor == 0 {
						c.ConversionFactor = existing.ConversionFactor
					}
				}
			}
			if name != "" {
				c.Name = name
			}
			saved, err := d.Currency.Upsert(ctx, c)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %g per base unit\n", saved.Symbol, saved.Rate)
			return nil
		})
	},
}

var rateBaseCmd = &cobra.Command{
	Use:   "base SYMBOL",
	Short: "Make SYMBOL the base currency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			id, err := currencyID(ctx, d, args[0])
			if err != nil {
				return err
			}
			if err := d.Currency.SetBase(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Base currency is now %s.\n", strings.ToUpper(args[0]))
			return nil
		})
	},
}

var rateDeleteCmd = &cobra.Command{
	Use:   "delete SYMBOL",
	Short: "Delete a currency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			id, err := currencyID(ctx, d, args[0])
			if err != nil {
				return err
			}
			if err := d.Currency.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", strings.ToUpper(args[0]))
			return nil
		})
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert AMOUNT FROM TO",
	Short: "Convert an amount between currencies",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			out, err := d.Currency.ConvertSymbols(ctx, amount, args[1], args[2])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"amount": amount, "from": args[1], "to": args[2], "result": out,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n",
				domain.FormatAmount(amount, strings.ToUpper(args[1])),
				domain.FormatAmount(out, strings.ToUpper(args[2])))
			return nil
		})
	},
}
