package currency

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tally-books/tally/internal/domain"
	"github.com/tally-books/tally/internal/infra/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(DefaultConfig(), db, nil, nil), db
}

func mustUpsert(t *testing.T, s *Service, c domain.Currency) domain.Currency {
	t.Helper()
	saved, err := s.Upsert(context.Background(), c)
	if err != nil {
		t.Fatalf("Upsert(%s) error: %v", c.Symbol, err)
	}
	return saved
}

func rateOf(t *testing.T, s *Service, symbol string) domain.Currency {
	t.Helper()
	tbl, err := s.Table(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c, err := tbl.BySymbol(symbol)
	if err != nil {
		t.Fatalf("BySymbol(%s) error: %v", symbol, err)
	}
	return c
}

// ─── Upsert & Linker ────────────────────────────────────────────────────────

func TestUpsert_Validation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, domain.Currency{Symbol: " ", Rate: 1}); !errors.Is(err, domain.ErrMissingSymbol) {
		t.Errorf("empty symbol err = %v", err)
	}
	if _, err := s.Upsert(ctx, domain.Currency{Symbol: "EUR", Rate: 0}); !errors.Is(err, domain.ErrInvalidRate) {
		t.Errorf("zero rate err = %v", err)
	}
	mustUpsert(t, s, domain.Currency{Symbol: "eur", Rate: 0.9})
	if _, err := s.Upsert(ctx, domain.Currency{Symbol: "EUR", Rate: 1}); !errors.Is(err, domain.ErrDuplicateSymbol) {
		t.Errorf("duplicate symbol err = %v", err)
	}
	if _, err := s.Upsert(ctx, domain.Currency{ID: 99, Symbol: "GBP", Rate: 1}); !errors.Is(err, domain.ErrCurrencyNotFound) {
		t.Errorf("unknown id err = %v", err)
	}
	if rateOf(t, s, "EUR").Symbol != "EUR" {
		t.Error("symbol should be stored upper-case")
	}
}

func TestUpsert_CreatingNewSideSynthesizesOld(t *testing.T) {
	s, _ := newTestService(t)
	mustUpsert(t, s, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	mustUpsert(t, s, domain.Currency{Symbol: "NSP", Name: "New Syrian Pound", Rate: 4500})

	old := rateOf(t, s, "OSP")
	if old.Rate != 450000 {
		t.Errorf("OSP rate = %v, want 450000", old.Rate)
	}
	if old.ConversionFactor != 100 || old.Name != "Old Syrian Pound" {
		t.Errorf("synthesized OSP = %+v", old)
	}
}

func TestUpsert_EditNewUpdatesOld(t *testing.T) {
	s, _ := newTestService(t)
	mustUpsert(t, s, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	nsp := mustUpsert(t, s, domain.Currency{Symbol: "NSP", Rate: 4500})

	nsp.Rate = 5000
	mustUpsert(t, s, nsp)
	if got := rateOf(t, s, "OSP").Rate; got != 500000 {
		t.Errorf("OSP rate = %v, want 500000", got)
	}
}

func TestUpsert_EditOldUpdatesNew(t *testing.T) {
	s, _ := newTestService(t)
	mustUpsert(t, s, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	mustUpsert(t, s, domain.Currency{Symbol: "NSP", Rate: 4500})

	old := rateOf(t, s, "OSP")
	old.Rate = 600000
	mustUpsert(t, s, old)
	if got := rateOf(t, s, "NSP").Rate; got != 6000 {
		t.Errorf("NSP rate = %v, want 6000", got)
	}
}

func TestUpsert_OldSideAloneDoesNotSynthesize(t *testing.T) {
	s, db := newTestService(t)
	mustUpsert(t, s, domain.Currency{Symbol: "OSP", Rate: 450000})
	rates, _ := db.ListCurrencies(context.Background())
	if len(rates) != 1 {
		t.Errorf("rates = %d, want 1", len(rates))
	}
}

func TestUpsert_LegacyDisabled(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := New(Config{}, db, nil, nil)
	mustUpsert(t, s, domain.Currency{Symbol: "NSP", Rate: 4500})
	rates, _ := db.ListCurrencies(context.Background())
	if len(rates) != 1 {
		t.Errorf("with no legacy pair rates = %d, want 1", len(rates))
	}
}

// ─── Base Currency ──────────────────────────────────────────────────────────

func TestSetBase_ExactlyOne(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()
	db.AddSettings(ctx, domain.Settings{BaseCurrency: "USD"})
	mustUpsert(t, s, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	eur := mustUpsert(t, s, domain.Currency{Symbol: "EUR", Rate: 0.9})

	if err := s.SetBase(ctx, eur.ID); err != nil {
		t.Fatalf("SetBase() error: %v", err)
	}
	rates, _ := db.ListCurrencies(ctx)
	bases := 0
	for _, r := range rates {
		if r.IsBase {
			bases++
			if r.ID != eur.ID {
				t.Errorf("base = %s, want EUR", r.Symbol)
			}
		}
	}
	if bases != 1 {
		t.Errorf("base count = %d, want 1", bases)
	}
	st, _ := db.ListSettings(ctx)
	if st[0].BaseCurrency != "EUR" {
		t.Errorf("settings base = %q, want EUR", st[0].BaseCurrency)
	}

	if err := s.SetBase(ctx, 404); !errors.Is(err, domain.ErrCurrencyNotFound) {
		t.Errorf("SetBase(unknown) err = %v", err)
	}
}

func TestUpsert_IsBaseMovesFlag(t *testing.T) {
	s, db := newTestService(t)
	mustUpsert(t, s, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	mustUpsert(t, s, domain.Currency{Symbol: "TRY", Rate: 34, IsBase: true})

	rates, _ := db.ListCurrencies(context.Background())
	for _, r := range rates {
		if r.IsBase != (r.Symbol == "TRY") {
			t.Errorf("%s IsBase = %v", r.Symbol, r.IsBase)
		}
	}
}

func TestUpsert_CannotClearBase(t *testing.T) {
	s, _ := newTestService(t)
	usd := mustUpsert(t, s, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	usd.IsBase = false
	if _, err := s.Upsert(context.Background(), usd); !errors.Is(err, domain.ErrBaseRequired) {
		t.Errorf("clearing base err = %v, want ErrBaseRequired", err)
	}
}

func TestDelete_BaseForbidden(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	usd := mustUpsert(t, s, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	eur := mustUpsert(t, s, domain.Currency{Symbol: "EUR", Rate: 0.9})

	err := s.Delete(ctx, usd.ID)
	if !errors.Is(err, domain.ErrBaseCurrencyDelete) || !errors.Is(err, domain.ErrReferential) {
		t.Errorf("Delete(base) err = %v, want referential", err)
	}
	if err := s.Delete(ctx, eur.ID); err != nil {
		t.Fatalf("Delete(EUR) error: %v", err)
	}
	if err := s.Delete(ctx, eur.ID); !errors.Is(err, domain.ErrCurrencyNotFound) {
		t.Errorf("Delete(twice) err = %v", err)
	}
}

// ─── Conversion ─────────────────────────────────────────────────────────────

func TestConvert_WorkedExample(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	usd := mustUpsert(t, s, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	nsp := mustUpsert(t, s, domain.Currency{Symbol: "NSP", Rate: 4500})
	osp := rateOf(t, s, "OSP")

	got, err := s.Convert(ctx, 10, usd.ID, nsp.ID)
	if err != nil || got != 45000 {
		t.Errorf("10 USD -> NSP = %v, %v; want 45000", got, err)
	}
	got, err = s.Convert(ctx, 45000, nsp.ID, osp.ID)
	if err != nil || got != 4500000 {
		t.Errorf("45000 NSP -> OSP = %v, %v; want 4500000", got, err)
	}
	got, err = s.ConvertSymbols(ctx, 4500000, "osp", "usd")
	if err != nil || math.Abs(got-10) > 1e-9 {
		t.Errorf("4500000 OSP -> USD = %v, %v; want 10", got, err)
	}
	if _, err := s.ConvertSymbols(ctx, 1, "XXX", "USD"); !errors.Is(err, domain.ErrCurrencyNotFound) {
		t.Errorf("unknown symbol err = %v", err)
	}
}

func TestBase_None(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.Base(context.Background()); !errors.Is(err, domain.ErrNoBaseCurrency) {
		t.Errorf("Base() err = %v, want ErrNoBaseCurrency", err)
	}
}
