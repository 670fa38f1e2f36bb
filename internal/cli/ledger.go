package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tally-books/tally/internal/app/ledger"
	"github.com/tally-books/tally/internal/daemon"
	"github.com/tally-books/tally/internal/domain"
)

func init() {
	rootCmd.AddCommand(saleCmd, purchaseCmd, expenseCmd, payCmd, txCmd)
	txCmd.AddCommand(txListCmd, txDeleteCmd)

	for _, c := range []*cobra.Command{saleCmd, purchaseCmd, expenseCmd, payCmd} {
		c.Flags().StringP("currency", "c", "", "Currency symbol (default base)")
		c.Flags().StringP("note", "n", "", "Description")
		c.Flags().String("date", "", "Date as YYYY-MM-DD (default now)")
	}
	for _, c := range []*cobra.Command{saleCmd, purchaseCmd} {
		c.Flags().Int64P("party", "p", 0, "Party id")
	}

	txListCmd.Flags().String("type", "", "Only this type (sale, purchase, expense, payment_received, payment_paid)")
	txListCmd.Flags().String("date", "", "Date prefix, e.g. 2026-10 or 2026-10-17")
	txListCmd.Flags().Int64("party", 0, "Only this party id")
	txListCmd.Flags().Int64("product", 0, "Only this product id")
}

type txFlags struct {
	currency int64
	note     string
	party    int64
}

func readTxFlags(ctx context.Context, cmd *cobra.Command, d *daemon.Daemon) (txFlags, error) {
	symbol, _ := cmd.Flags().GetString("currency")
	id, err := currencyID(ctx, d, symbol)
	if err != nil {
		return txFlags{}, err
	}
	note, _ := cmd.Flags().GetString("note")
	var party int64
	if cmd.Flags().Lookup("party") != nil {
		party, _ = cmd.Flags().GetInt64("party")
	}
	return txFlags{currency: id, note: note, party: party}, nil
}

// ─── sale / purchase ────────────────────────────────────────────────────────

var saleCmd = &cobra.Command{
	Use:   "sale PRODUCT_ID QUANTITY AMOUNT",
	Short: "Record a sale",
	Long:  `Record a sale: stock goes down and, with --party, the debtor's balance goes up by the amount in base currency.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return recordTrade(cmd, args, func(ctx context.Context, d *daemon.Daemon, product, qty int64, amount float64, f txFlags) (domain.Transaction, error) {
			date, err := dateFlag(cmd)
			if err != nil {
				return domain.Transaction{}, err
			}
			return d.Ledger.RecordSale(ctx, ledger.SaleRequest{
				ProductID: product, Quantity: qty, Amount: amount, CurrencyID: f.currency,
				PartyID: f.party, Description: f.note, Date: date,
			})
		})
	},
}

var purchaseCmd = &cobra.Command{
	Use:   "purchase PRODUCT_ID QUANTITY AMOUNT",
	Short: "Record a purchase",
	Long:  `Record a purchase: stock goes up, the product's cost price drops to the unit cost in base currency when that is lower (or is set when it was zero) and, with --party, the creditor's balance goes down.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return recordTrade(cmd, args, func(ctx context.Context, d *daemon.Daemon, product, qty int64, amount float64, f txFlags) (domain.Transaction, error) {
			date, err := dateFlag(cmd)
			if err != nil {
				return domain.Transaction{}, err
			}
			return d.Ledger.RecordPurchase(ctx, ledger.PurchaseRequest{
				ProductID: product, Quantity: qty, Amount: amount, CurrencyID: f.currency,
				PartyID: f.party, Description: f.note, Date: date,
			})
		})
	},
}

type tradeFunc func(ctx context.Context, d *daemon.Daemon, product, qty int64, amount float64, f txFlags) (domain.Transaction, error)

func recordTrade(cmd *cobra.Command, args []string, record tradeFunc) error {
	product, err := parseID(args[0])
	if err != nil {
		return err
	}
	qty, err := parseID(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity %q", args[1])
	}
	amount, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
		f, err := readTxFlags(ctx, cmd, d)
		if err != nil {
			return err
		}
		t, err := record(ctx, d, product, qty, amount, f)
		if err != nil {
			return err
		}
		return printTransaction(ctx, cmd, d, t)
	})
}

func dateFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("date")
	return parseDate(raw)
}

// ─── expense / pay ──────────────────────────────────────────────────────────

var expenseCmd = &cobra.Command{
	Use:   "expense AMOUNT",
	Short: "Record an expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		date, err := dateFlag(cmd)
		if err != nil {
			return err
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			f, err := readTxFlags(ctx, cmd, d)
			if err != nil {
				return err
			}
			t, err := d.Ledger.RecordExpense(ctx, ledger.ExpenseRequest{
				Amount: amount, CurrencyID: f.currency, Description: f.note, Date: date,
			})
			if err != nil {
				return err
			}
			return printTransaction(ctx, cmd, d, t)
		})
	},
}

var payCmd = &cobra.Command{
	Use:   "pay PARTY_ID AMOUNT",
	Short: "Record a payment to or from a party",
	Long: `Record a payment. A debtor's payment is money received and lowers their
balance; a payment to a creditor is money paid and raises theirs.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		party, err := parseID(args[0])
		if err != nil {
			return err
		}
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		date, err := dateFlag(cmd)
		if err != nil {
			return err
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			f, err := readTxFlags(ctx, cmd, d)
			if err != nil {
				return err
			}
			t, err := d.Ledger.RecordPayment(ctx, ledger.PaymentRequest{
				PartyID: party, Amount: amount, CurrencyID: f.currency, Description: f.note, Date: date,
			})
			if err != nil {
				return err
			}
			return printTransaction(ctx, cmd, d, t)
		})
	},
}

// ─── tx ─────────────────────────────────────────────────────────────────────

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "List or delete transactions",
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		date, _ := cmd.Flags().GetString("date")
		party, _ := cmd.Flags().GetInt64("party")
		product, _ := cmd.Flags().GetInt64("product")
		f := domain.TxFilter{Type: domain.TxType(typ), DatePrefix: date, PartyID: party, ProductID: product}

		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			txs, err := d.Ledger.Transactions(ctx, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, txs)
			}
			if len(txs) == 0 {
				fmt.Fprintln(out, "No transactions.")
				return nil
			}
			table, err := d.Currency.Table(ctx)
			if err != nil {
				return err
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tPARTY\tNOTE")
			for _, t := range txs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Date.Format("2006-01-02"), t.Type, amountIn(table, t.Amount, t.CurrencyID), t.PartyName, t.Description)
			}
			return tw.Flush()
		})
	},
}

var txDeleteCmd = &cobra.Command{
	Use:   "delete TX_ID",
	Short: "Delete a transaction and reverse its effects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withDaemon(cmd, func(ctx context.Context, d *daemon.Daemon) error {
			t, err := d.Ledger.DeleteTransaction(ctx, id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s #%d and reversed its effects.\n", t.Type, t.ID)
			return nil
		})
	},
}

func printTransaction(ctx context.Context, cmd *cobra.Command, d *daemon.Daemon, t domain.Transaction) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, t)
	}
	fmt.Fprintf(out, "Recorded %s #%d (%s in base currency)\n", t.Type, t.ID, domain.FormatAmount(t.BaseAmount, baseSymbol(ctx, d)))
	return nil
}

func amountIn(table *domain.CurrencyTable, amount float64, currencyID int64) string {
	c, err := table.ByID(currencyID)
	if err != nil {
		return domain.FormatAmount(amount, "") + " ?"
	}
	return domain.FormatAmount(amount, c.Symbol)
}
