package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tally-books/tally/internal/daemon"
	"github.com/tally-books/tally/internal/domain"
)

func init() {
	rootCmd.AddCommand(categoryCmd, productCmd, partyCmd)
	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd, categoryDeleteCmd)
	productCmd.AddCommand(productAddCmd, productListCmd)
	partyCmd.AddCommand(partyAddCmd, partyListCmd, partyStatementCmd)

	productAddCmd.Flags().String("brand", "", "Brand")
	productAddCmd.Flags().Int64("category", 0, "Category id")
	productAddCmd.Flags().Float64("cost", 0, "Cost price in base currency")
	productAddCmd.Flags().Float64("price", 0, "Selling price in base currency")
	productAddCmd.Flags().Int64("stock", 0, "Opening stock")
	productListCmd.Flags().StringP("query", "q", "", "Search name, brand or category")
	productListCmd.Flags().String("stock", "", "Only show products whose stock is ok, low or out")
	productListCmd.Flags().Bool("prices", false, "Also print cost and selling prices in every currency")

	partyAddCmd.Flags().String("phone", "", "Phone number")
	partyAddCmd.Flags().Float64("balance", 0, "Opening balance in base currency")
	partyListCmd.Flags().String("type", "", "debtor or creditor")
}

// ─── category ───────────────────────────────────────────────────────────────

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage product categories",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			c, err := d.Catalog.CreateCategory(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Category %q added with id %d.\n", c.Name, c.ID)
			return nil
		})
	},
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			cats, err := d.Catalog.Categories(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), cats)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tPRODUCTS")
			for _, c := range cats {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", c.ID, c.Name, c.ProductCount)
			}
			return tw.Flush()
		})
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete CATEGORY_ID",
	Short: "Delete an empty category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			return d.Catalog.DeleteCategory(ctx, id)
		})
	},
}

// ─── product ────────────────────────────────────────────────────────────────

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage products",
}

var productAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := domain.Product{Name: args[0]}
		p.Brand, _ = cmd.Flags().GetString("brand")
		p.CategoryID, _ = cmd.Flags().GetInt64("category")
		p.CostPrice, _ = cmd.Flags().GetFloat64("cost")
		p.SellingPrice, _ = cmd.Flags().GetFloat64("price")
		p.Stock, _ = cmd.Flags().GetInt64("stock")
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			saved, err := d.Catalog.SaveProduct(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product %q added with id %d.\n", saved.Name, saved.ID)
			return nil
		})
	},
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List or search products",
	Long: `List products with their stock status. Stock is "out" at zero and "low"
below the catalog.low_stock threshold (default 10).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _ := cmd.Flags().GetString("query")
		stock, _ := cmd.Flags().GetString("stock")
		withPrices, _ := cmd.Flags().GetBool("prices")
		switch domain.StockStatus(stock) {
		case "", domain.StockOK, domain.StockLow, domain.StockOut:
		default:
			return fmt.Errorf("invalid --stock %q: want ok, low or out", stock)
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			all, err := d.Catalog.Listings(ctx, q)
			if err != nil {
				return err
			}
			listings := all[:0]
			for _, l := range all {
				if stock == "" || l.StockStatus == domain.StockStatus(stock) {
					listings = append(listings, l)
				}
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, listings)
			}

			sym := baseSymbol(ctx, d)
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tNAME\tBRAND\tCOST\tPRICE\tSTOCK\tSTATUS")
			for _, l := range listings {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", l.ID, l.Name, l.Brand,
					domain.FormatAmount(l.CostPrice, sym), domain.FormatAmount(l.SellingPrice, sym), l.Stock, l.StockStatus)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if !withPrices {
				return nil
			}

			fmt.Fprintln(out)
			tw = newTable(out)
			fmt.Fprintln(tw, "ID\tNAME\tCURRENCY\tCOST\tPRICE")
			for _, l := range listings {
				for _, p := range l.Prices {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", l.ID, l.Name, p.Symbol,
						domain.FormatAmount(p.Cost, p.Symbol), domain.FormatAmount(p.Selling, p.Symbol))
				}
			}
			return tw.Flush()
		})
	},
}

// ─── party ──────────────────────────────────────────────────────────────────

var partyCmd = &cobra.Command{
	Use:   "party",
	Short: "Manage debtors and creditors",
}

var partyAddCmd = &cobra.Command{
	Use:   "add debtor|creditor NAME",
	Short: "Add a debtor or creditor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := domain.Party{Type: domain.PartyType(args[0]), Name: args[1]}
		p.Phone, _ = cmd.Flags().GetString("phone")
		p.Balance, _ = cmd.Flags().GetFloat64("balance")
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			saved, err := d.Catalog.SaveParty(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q added with id %d.\n", saved.Type, saved.Name, saved.ID)
			return nil
		})
	},
}

var partyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List parties and balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			parties, err := d.Catalog.Parties(ctx, domain.PartyType(typ))
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), parties)
			}
			sym := baseSymbol(ctx, d)
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tTYPE\tNAME\tPHONE\tBALANCE")
			for _, p := range parties {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Type, p.Name, p.Phone, domain.FormatAmount(p.Balance, sym))
			}
			return tw.Flush()
		})
	},
}

var partyStatementCmd = &cobra.Command{
	Use:   "statement PARTY_ID",
	Short: "Show a party's balance and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			st, err := d.Catalog.PartyStatement(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, st)
			}
			sym := baseSymbol(ctx, d)
			fmt.Fprintf(out, "%s (%s), balance %s\n", st.Party.Name, st.Party.Type, domain.FormatAmount(st.Party.Balance, sym))
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tDATE\tTYPE\tBASE AMOUNT")
			for _, t := range st.Transactions {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Date.Format("2006-01-02"), t.Type, domain.FormatAmount(t.BaseAmount, sym))
			}
			return tw.Flush()
		})
	},
}
