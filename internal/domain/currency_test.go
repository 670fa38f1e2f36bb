package domain

import (
	"errors"
	"math"
	"testing"
)

func testTable() *CurrencyTable {
	return NewCurrencyTable([]Currency{
		{ID: 1, Name: "Dollar", Symbol: "USD", Rate: 1, IsBase: true},
		{ID: 2, Name: "New Syrian Pound", Symbol: "NSP", Rate: 4500},
		{ID: 3, Name: "Old Syrian Pound", Symbol: "OSP", Rate: 450000, ConversionFactor: 100},
		{ID: 4, Name: "Euro", Symbol: "EUR", Rate: 0.92},
		{ID: 5, Name: "Lira", Symbol: "TRY", Rate: 34.2},
	}, DefaultLegacyPair())
}

func relClose(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// ─── Legacy Pair ────────────────────────────────────────────────────────────

func TestLegacyPair_Links(t *testing.T) {
	p := DefaultLegacyPair()
	if !p.Links("OSP", "NSP") || !p.Links("nsp", "osp") {
		t.Error("pair should link in both orders, case-insensitively")
	}
	if p.Links("USD", "NSP") {
		t.Error("USD/NSP is not the legacy pair")
	}
	if (LegacyPair{}).Links("OSP", "NSP") {
		t.Error("disabled pair should link nothing")
	}
}

// ─── Conversion ─────────────────────────────────────────────────────────────

func TestConvert_SameCurrency(t *testing.T) {
	got, err := testTable().Convert(123.45, 4, 4)
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if got != 123.45 {
		t.Errorf("Convert(same) = %v, want 123.45", got)
	}
}

func TestConvert_WorkedExample(t *testing.T) {
	table := testTable()

	nsp, err := table.Convert(10, 1, 2)
	if err != nil {
		t.Fatalf("Convert(USD→NSP) error: %v", err)
	}
	if nsp != 45000 {
		t.Errorf("10 USD → NSP = %v, want 45000", nsp)
	}

	osp, err := table.Convert(45000, 2, 3)
	if err != nil {
		t.Fatalf("Convert(NSP→OSP) error: %v", err)
	}
	if osp != 4500000 {
		t.Errorf("45000 NSP → OSP = %v, want 4500000", osp)
	}
}

func TestConvert_LegacyPairExact(t *testing.T) {
	table := testTable()
	for _, x := range []float64{0, 1, 250, 45000, 123456} {
		gotNew, _ := table.Convert(x, 3, 2)
		if gotNew != x/100 {
			t.Errorf("Convert(%v, OSP→NSP) = %v, want %v", x, gotNew, x/100)
		}
		gotOld, _ := table.Convert(x, 2, 3)
		if gotOld != x*100 {
			t.Errorf("Convert(%v, NSP→OSP) = %v, want %v", x, gotOld, x*100)
		}
		back, _ := table.Convert(gotOld, 3, 2)
		if back != x {
			t.Errorf("legacy round trip of %v = %v", x, back)
		}
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	table := testTable()
	ids := []int64{1, 2, 4, 5}
	amounts := []float64{0.01, 1, 99.99, 12345.678, 1e7}
	for _, a := range ids {
		for _, b := range ids {
			for _, x := range amounts {
				there, err := table.Convert(x, a, b)
				if err != nil {
					t.Fatalf("Convert(%d→%d) error: %v", a, b, err)
				}
				back, err := table.Convert(there, b, a)
				if err != nil {
					t.Fatalf("Convert(%d→%d) error: %v", b, a, err)
				}
				if !relClose(back, x) {
					t.Errorf("round trip %v via %d→%d = %v", x, a, b, back)
				}
			}
		}
	}
}

func TestConvert_ToBase(t *testing.T) {
	table := testTable()
	got, err := table.ToBase(9000, 2)
	if err != nil {
		t.Fatalf("ToBase() error: %v", err)
	}
	if got != 2 {
		t.Errorf("9000 NSP → USD = %v, want 2", got)
	}
	got, _ = table.ToBase(5, 1)
	if got != 5 {
		t.Errorf("5 USD → USD = %v, want 5", got)
	}
}

func TestConvert_NonUnitBase(t *testing.T) {
	// EUR as base with its own rate left at 2: the two-step path still
	// cancels to amount × to.rate / from.rate.
	table := NewCurrencyTable([]Currency{
		{ID: 1, Symbol: "EUR", Rate: 2, IsBase: true},
		{ID: 2, Symbol: "USD", Rate: 4},
		{ID: 3, Symbol: "TRY", Rate: 80},
	}, LegacyPair{})
	got, err := table.Convert(10, 2, 3)
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if !relClose(got, 200) {
		t.Errorf("Convert(10 USD→TRY) = %v, want 200", got)
	}
}

func TestConvert_Errors(t *testing.T) {
	table := testTable()
	if _, err := table.Convert(1, 1, 99); !errors.Is(err, ErrCurrencyNotFound) {
		t.Errorf("unknown target: err = %v, want ErrCurrencyNotFound", err)
	}
	if _, err := table.Convert(1, 99, 1); !errors.Is(err, ErrCurrencyNotFound) {
		t.Errorf("unknown source: err = %v, want ErrCurrencyNotFound", err)
	}

	noBase := NewCurrencyTable([]Currency{
		{ID: 1, Symbol: "USD", Rate: 1},
		{ID: 2, Symbol: "EUR", Rate: 0.9},
	}, LegacyPair{})
	if _, err := noBase.Convert(1, 1, 2); !errors.Is(err, ErrNoBaseCurrency) {
		t.Errorf("no base: err = %v, want ErrNoBaseCurrency", err)
	}

	zero := NewCurrencyTable([]Currency{
		{ID: 1, Symbol: "USD", Rate: 1, IsBase: true},
		{ID: 2, Symbol: "XXX", Rate: 0},
	}, LegacyPair{})
	if _, err := zero.Convert(1, 2, 1); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("zero rate: err = %v, want ErrInvalidRate", err)
	}
}

// ─── Lookups ────────────────────────────────────────────────────────────────

func TestCurrencyTable_Lookups(t *testing.T) {
	table := testTable()
	base, err := table.Base()
	if err != nil || base.Symbol != "USD" {
		t.Errorf("Base() = %v, %v; want USD", base.Symbol, err)
	}
	eur, err := table.BySymbol("eur")
	if err != nil || eur.ID != 4 {
		t.Errorf("BySymbol(eur) = %v, %v; want id 4", eur.ID, err)
	}
	if _, err := table.BySymbol("GBP"); !errors.Is(err, ErrCurrencyNotFound) {
		t.Errorf("BySymbol(GBP) err = %v, want ErrCurrencyNotFound", err)
	}
	rates := table.Rates()
	rates[0].Rate = 99
	if again, _ := table.ByID(1); again.Rate != 1 {
		t.Error("Rates() must return a copy")
	}
}
