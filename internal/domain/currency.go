package domain

import "strings"

// ─── Legacy Redenomination ──────────────────────────────────────────────────

// LegacyPair links two currency records that denominate the same physical
// currency: Ratio units of Old make one unit of New (e.g. OSP/NSP, 100).
type LegacyPair struct {
	Old     string  `toml:"old" json:"old"`
	New     string  `toml:"new" json:"new"`
	Ratio   float64 `toml:"ratio" json:"ratio"`
	OldName string  `toml:"old_name" json:"oldName,omitempty"`
}

// DefaultLegacyPair returns the Syrian pound redenomination.
func DefaultLegacyPair() LegacyPair {
	return LegacyPair{Old: "OSP", New: "NSP", Ratio: 100, OldName: "Old Syrian Pound"}
}

// Enabled reports whether the pair is configured.
func (p LegacyPair) Enabled() bool {
	return p.Old != "" && p.New != "" && p.Ratio > 0
}

// Links reports whether {a, b} is exactly the pair, in either order.
func (p LegacyPair) Links(a, b string) bool {
	if !p.Enabled() {
		return false
	}
	return (symbolEq(a, p.Old) && symbolEq(b, p.New)) ||
		(symbolEq(a, p.New) && symbolEq(b, p.Old))
}

// IsOld reports whether symbol is the legacy side.
func (p LegacyPair) IsOld(symbol string) bool { return p.Enabled() && symbolEq(symbol, p.Old) }

// IsNew reports whether symbol is the current side.
func (p LegacyPair) IsNew(symbol string) bool { return p.Enabled() && symbolEq(symbol, p.New) }

func symbolEq(a, b string) bool { return strings.EqualFold(a, b) }

// ─── Currency Table ─────────────────────────────────────────────────────────

// CurrencyTable is an immutable view of the exchange-rate records together
// with the legacy pairing rule. It is what conversion runs against.
type CurrencyTable struct {
	rates  []Currency
	byID   map[int64]int
	legacy LegacyPair
}

// NewCurrencyTable builds a table from the stored records.
func NewCurrencyTable(rates []Currency, legacy LegacyPair) *CurrencyTable {
	t := &CurrencyTable{
		rates:  append([]Currency(nil), rates...),
		byID:   make(map[int64]int, len(rates)),
		legacy: legacy,
	}
	for i, r := range t.rates {
		t.byID[r.ID] = i
	}
	return t
}

// Rates returns a copy of the records.
func (t *CurrencyTable) Rates() []Currency {
	return append([]Currency(nil), t.rates...)
}

// Legacy returns the configured pair.
func (t *CurrencyTable) Legacy() LegacyPair { return t.legacy }

// Base returns the base currency record.
func (t *CurrencyTable) Base() (Currency, error) {
	for _, r := range t.rates {
		if r.IsBase {
			return r, nil
		}
	}
	return Currency{}, ErrNoBaseCurrency
}

// ByID looks a record up by id.
func (t *CurrencyTable) ByID(id int64) (Currency, error) {
	i, ok := t.byID[id]
	if !ok {
		return Currency{}, ErrCurrencyNotFound
	}
	return t.rates[i], nil
}

// BySymbol looks a record up by symbol, case-insensitively.
func (t *CurrencyTable) BySymbol(symbol string) (Currency, error) {
	for _, r := range t.rates {
		if symbolEq(r.Symbol, symbol) {
			return r, nil
		}
	}
	return Currency{}, ErrCurrencyNotFound
}

// Convert maps amount from one currency to another by id.
func (t *CurrencyTable) Convert(amount float64, fromID, toID int64) (float64, error) {
	if fromID == toID {
		return amount, nil
	}
	from, err := t.ByID(fromID)
	if err != nil {
		return 0, err
	}
	to, err := t.ByID(toID)
	if err != nil {
		return 0, err
	}
	return t.ConvertBetween(amount, from, to)
}

// ConvertBetween maps amount between two records.
//
// The legacy pair converts by its fixed ratio directly: both records store a
// rate against base, and routing through base would compound the link.
// Every other pair goes through base in two steps.
func (t *CurrencyTable) ConvertBetween(amount float64, from, to Currency) (float64, error) {
	if from.ID == to.ID && symbolEq(from.Symbol, to.Symbol) {
		return amount, nil
	}
	if t.legacy.Links(from.Symbol, to.Symbol) {
		if t.legacy.IsOld(from.Symbol) {
			return amount / t.legacy.Ratio, nil
		}
		return amount * t.legacy.Ratio, nil
	}
	base, err := t.Base()
	if err != nil {
		return 0, err
	}
	if from.Rate <= 0 || to.Rate <= 0 || base.Rate <= 0 {
		return 0, ErrInvalidRate
	}
	inBase := amount
	if from.ID != base.ID {
		inBase = amount * base.Rate / from.Rate
	}
	if to.ID == base.ID {
		return inBase, nil
	}
	return inBase * to.Rate / base.Rate, nil
}

// ToBase converts amount in currency fromID into the base currency.
func (t *CurrencyTable) ToBase(amount float64, fromID int64) (float64, error) {
	base, err := t.Base()
	if err != nil {
		return 0, err
	}
	return t.Convert(amount, fromID, base.ID)
}
