// Package cli implements the tally command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tally-books/tally/internal/daemon"
	"github.com/tally-books/tally/internal/domain"
)

var (
	configPath string
	envFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Bookkeeping for small shops with multi-currency ledgers",
	Long: `tally keeps the books of a small shop: products and stock, debtors and
creditors, sales, purchases, expenses and payments in any configured
currency, and reports in the base currency. Run 'tally serve' for the
HTTP API or use the subcommands directly against the local store.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default $TALLY_HOME/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// withDaemon loads the configuration, opens the store for the duration of
// fn and closes it afterwards.
func withDaemon(cmd *cobra.Command, fn func(ctx context.Context, d *daemon.Daemon) error) error {
	cfg, err := daemon.Load(configPath, envFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := daemon.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, d)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// currencyID resolves a currency symbol, or the base currency when symbol
// is empty.
func currencyID(ctx context.Context, d *daemon.Daemon, symbol string) (int64, error) {
	t, err := d.Currency.Table(ctx)
	if err != nil {
		return 0, err
	}
	var c domain.Currency
	if symbol == "" {
		c, err = t.Base()
	} else {
		c, err = t.BySymbol(symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("currency %q: %w", symbol, err)
	}
	return c.ID, nil
}

// baseSymbol returns the base currency's symbol, or "" when none is set so
// amounts print as plain numbers.
func baseSymbol(ctx context.Context, d *daemon.Daemon) string {
	base, err := d.Currency.Base(ctx)
	if err != nil {
		return ""
	}
	return base.Symbol
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseAmount(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty means now.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
