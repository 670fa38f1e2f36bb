package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tally-books/tally/internal/domain"
)

// ─── Bulk Export / Import ───────────────────────────────────────────────────

// ImportStats reports what an import wrote.
type ImportStats struct {
	Replaced bool `json:"replaced"`
	Records  int  `json:"records"`
	Remapped int  `json:"remapped"`
	Matched  int  `json:"matched"`
}

// Export reads every collection into one snapshot stamped with now.
func (db *DB) Export(ctx context.Context, now time.Time) (domain.Snapshot, error) {
	var (
		s   domain.Snapshot
		err error
	)
	if s.Users, err = db.ListUsers(ctx); err != nil {
		return s, fmt.Errorf("export users: %w", err)
	}
	if s.Categories, err = db.ListCategories(ctx); err != nil {
		return s, fmt.Errorf("export categories: %w", err)
	}
	if s.Products, err = db.ListProducts(ctx); err != nil {
		return s, fmt.Errorf("export products: %w", err)
	}
	if s.ExchangeRates, err = db.ListCurrencies(ctx); err != nil {
		return s, fmt.Errorf("export exchange_rates: %w", err)
	}
	if s.Transactions, err = db.ListTransactions(ctx); err != nil {
		return s, fmt.Errorf("export transactions: %w", err)
	}
	if s.CreditorsDebtors, err = db.ListParties(ctx); err != nil {
		return s, fmt.Errorf("export creditors_debtors: %w", err)
	}
	if s.Settings, err = db.ListSettings(ctx); err != nil {
		return s, fmt.Errorf("export settings: %w", err)
	}
	s.ExportDate = now.UTC()
	return s, nil
}

// Clear empties every collection and resets id sequences.
func (db *DB) Clear(ctx context.Context) error {
	for _, table := range Collections() {
		if _, err := db.q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		if _, err := db.q.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = ?`, table); err != nil {
			return fmt.Errorf("reset %s sequence: %w", table, err)
		}
	}
	return nil
}

// Import writes a snapshot in one transaction. With replace, every
// collection is cleared first. The store assigns fresh ids; references
// between imported records are rewritten to the new ids. A reference to a
// record outside the document is kept as-is.
//
// Currencies whose symbol already exists in the store are not inserted:
// the existing record is kept and references are mapped onto it. Only the
// first base currency survives, so a merge into a store that has a base
// never adds a second one.
func (db *DB) Import(ctx context.Context, s domain.Snapshot, replace bool) (ImportStats, error) {
	stats := ImportStats{Replaced: replace}
	err := db.RunInTx(ctx, func(tx domain.Records) error {
		view := tx.(*DB)
		if replace {
			if err := view.Clear(ctx); err != nil {
				return err
			}
		}
		n, err := view.importRecords(ctx, s, &stats)
		stats.Records = n
		return err
	})
	if err != nil {
		return ImportStats{}, err
	}
	return stats, nil
}

// idMap translates ids from the document to ids assigned by the store.
type idMap map[int64]int64

func (m idMap) get(old int64, remapped *int) int64 {
	if old == 0 {
		return 0
	}
	if id, ok := m[old]; ok {
		if id != old {
			*remapped++
		}
		return id
	}
	return old
}

func (db *DB) importRecords(ctx context.Context, s domain.Snapshot, stats *ImportStats) (n int, err error) {
	remapped := &stats.Remapped
	for _, u := range s.Users {
		if _, err := db.AddUser(ctx, u); err != nil {
			return n, fmt.Errorf("users: %w", err)
		}
		n++
	}
	for _, st := range s.Settings {
		if _, err := db.AddSettings(ctx, st); err != nil {
			return n, fmt.Errorf("settings: %w", err)
		}
		n++
	}

	categories := idMap{}
	for _, c := range s.Categories {
		id, err := db.AddCategory(ctx, c)
		if err != nil {
			return n, fmt.Errorf("categories: %w", err)
		}
		categories[c.ID] = id
		n++
	}

	currencies, added, err := db.importCurrencies(ctx, s.ExchangeRates, stats)
	n += added
	if err != nil {
		return n, err
	}

	parties := idMap{}
	for _, p := range s.CreditorsDebtors {
		id, err := db.AddParty(ctx, p)
		if err != nil {
			return n, fmt.Errorf("creditors_debtors: %w", err)
		}
		parties[p.ID] = id
		n++
	}

	products := idMap{}
	for _, p := range s.Products {
		p.CategoryID = categories.get(p.CategoryID, remapped)
		id, err := db.AddProduct(ctx, p)
		if err != nil {
			return n, fmt.Errorf("products: %w", err)
		}
		products[p.ID] = id
		n++
	}

	// Oldest first so reassigned ids keep chronological order.
	txs := append([]domain.Transaction(nil), s.Transactions...)
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
	for _, t := range txs {
		t.CurrencyID = currencies.get(t.CurrencyID, remapped)
		t.ProductID = products.get(t.ProductID, remapped)
		t.PartyID = parties.get(t.PartyID, remapped)
		if t.Date.IsZero() {
			t.Date = s.ExportDate
		}
		if _, err := db.AddTransaction(ctx, t); err != nil {
			return n, fmt.Errorf("transactions: %w", err)
		}
		n++
	}
	return n, nil
}

// importCurrencies inserts the document's currencies. An incoming symbol
// that matches a record already in the store maps onto that record. The
// base flag is dropped from incoming records once a base exists.
func (db *DB) importCurrencies(ctx context.Context, rates []domain.Currency, stats *ImportStats) (idMap, int, error) {
	existing, err := db.ListCurrencies(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("exchange_rates: %w", err)
	}
	bySymbol := make(map[string]int64, len(existing))
	hasBase := false
	for _, c := range existing {
		bySymbol[strings.ToUpper(c.Symbol)] = c.ID
		hasBase = hasBase || c.IsBase
	}

	ids := idMap{}
	n := 0
	for _, c := range rates {
		if id, ok := bySymbol[strings.ToUpper(c.Symbol)]; ok {
			ids[c.ID] = id
			stats.Matched++
			continue
		}
		if c.IsBase && hasBase {
			c.IsBase = false
		}
		id, err := db.AddCurrency(ctx, c)
		if err != nil {
			return ids, n, fmt.Errorf("exchange_rates %q: %w", c.Symbol, err)
		}
		hasBase = hasBase || c.IsBase
		ids[c.ID] = id
		n++
	}
	return ids, n, nil
}
