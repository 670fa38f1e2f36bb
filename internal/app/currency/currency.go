// Package currency maintains the exchange-rate records: the single base
// currency, rate edits, and the legacy pair linker that keeps an old and a
// new denomination of the same currency in lock-step.
package currency

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tally-books/tally/internal/domain"
	"github.com/tally-books/tally/internal/infra/observability"
)

// Config controls the currency service.
type Config struct {
	Legacy domain.LegacyPair
}

// DefaultConfig links OSP and NSP at 100:1.
func DefaultConfig() Config {
	return Config{Legacy: domain.DefaultLegacyPair()}
}

// Service owns every write to the exchange_rates collection.
type Service struct {
	cfg     Config
	store   domain.Store
	log     *zap.Logger
	journal *observability.Journal
}

// New creates a currency service. log and journal may be nil.
func New(cfg Config, store domain.Store, log *zap.Logger, journal *observability.Journal) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, store: store, log: log, journal: journal}
}

// Legacy returns the configured pair.
func (s *Service) Legacy() domain.LegacyPair { return s.cfg.Legacy }

// Load reads the rates visible through r into a conversion table.
func Load(ctx context.Context, r domain.CurrencyStore, legacy domain.LegacyPair) (*domain.CurrencyTable, error) {
	rates, err := r.ListCurrencies(ctx)
	if err != nil {
		return nil, domain.Storage("list currencies", err)
	}
	return domain.NewCurrencyTable(rates, legacy), nil
}

// Table returns the current conversion table.
func (s *Service) Table(ctx context.Context) (*domain.CurrencyTable, error) {
	return Load(ctx, s.store, s.cfg.Legacy)
}

// List returns every currency record.
func (s *Service) List(ctx context.Context) ([]domain.Currency, error) {
	rates, err := s.store.ListCurrencies(ctx)
	return rates, domain.Storage("list currencies", err)
}

// Base returns the base currency.
func (s *Service) Base(ctx context.Context) (domain.Currency, error) {
	t, err := s.Table(ctx)
	if err != nil {
		return domain.Currency{}, err
	}
	return t.Base()
}

// Convert maps amount between two currencies by id.
func (s *Service) Convert(ctx context.Context, amount float64, fromID, toID int64) (float64, error) {
	t, err := s.Table(ctx)
	if err != nil {
		return 0, err
	}
	return t.Convert(amount, fromID, toID)
}

// ConvertSymbols maps amount between two currencies by symbol.
func (s *Service) ConvertSymbols(ctx context.Context, amount float64, from, to string) (float64, error) {
	t, err := s.Table(ctx)
	if err != nil {
		return 0, err
	}
	f, err := t.BySymbol(from)
	if err != nil {
		return 0, err
	}
	g, err := t.BySymbol(to)
	if err != nil {
		return 0, err
	}
	return t.ConvertBetween(amount, f, g)
}

// SetBase makes id the base currency and clears the flag everywhere else.
// The settings record follows the new base symbol.
func (s *Service) SetBase(ctx context.Context, id int64) (err error) {
	op := s.journal.Begin("currency.set_base", map[string]string{"id": strconv.FormatInt(id, 10)})
	defer func() { s.journal.End(op, err) }()

	var symbol string
	err = s.store.RunInTx(ctx, func(tx domain.Records) error {
		rates, err := tx.ListCurrencies(ctx)
		if err != nil {
			return domain.Storage("list currencies", err)
		}
		found := false
		for _, r := range rates {
			if r.ID == id {
				found = true
				symbol = r.Symbol
			}
		}
		if !found {
			return domain.ErrCurrencyNotFound
		}
		for _, r := range rates {
			want := r.ID == id
			if r.IsBase == want {
				continue
			}
			r.IsBase = want
			if err := tx.UpdateCurrency(ctx, r); err != nil {
				return domain.Storage("update currency", err)
			}
		}
		return syncSettings(ctx, tx, symbol)
	})
	if err != nil {
		return err
	}
	s.log.Info("base currency changed", zap.Int64("id", id), zap.String("symbol", symbol))
	return nil
}

func syncSettings(ctx context.Context, tx domain.Records, symbol string) error {
	all, err := tx.ListSettings(ctx)
	if err != nil {
		return domain.Storage("list settings", err)
	}
	if len(all) == 0 {
		return nil
	}
	st := all[0]
	st.BaseCurrency = symbol
	return domain.Storage("update settings", tx.UpdateSettings(ctx, st))
}

// Upsert creates (ID == 0) or updates a currency and returns the stored
// record. Setting IsBase moves the base flag here. When the symbol is one
// side of the legacy pair, the other side's rate is recomputed; creating
// the new side while the old side is missing synthesizes the old record.
func (s *Service) Upsert(ctx context.Context, c domain.Currency) (saved domain.Currency, err error) {
	op := s.journal.Begin("currency.upsert", map[string]string{"symbol": c.Symbol})
	defer func() { s.journal.End(op, err) }()

	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	c.Name = strings.TrimSpace(c.Name)
	if c.Symbol == "" {
		return domain.Currency{}, domain.ErrMissingSymbol
	}
	if c.Rate <= 0 {
		return domain.Currency{}, domain.ErrInvalidRate
	}

	linked := 0
	err = s.store.RunInTx(ctx, func(tx domain.Records) error {
		rates, err := tx.ListCurrencies(ctx)
		if err != nil {
			return domain.Storage("list currencies", err)
		}

		creating := c.ID == 0
		for _, r := range rates {
			if r.ID != c.ID && strings.EqualFold(r.Symbol, c.Symbol) {
				return domain.ErrDuplicateSymbol
			}
		}
		if !creating {
			prev, ok := find(rates, func(r domain.Currency) bool { return r.ID == c.ID })
			if !ok {
				return domain.ErrCurrencyNotFound
			}
			if prev.IsBase && !c.IsBase {
				return domain.ErrBaseRequired
			}
		}

		if c.IsBase {
			for _, r := range rates {
				if r.IsBase && r.ID != c.ID {
					r.IsBase = false
					if err := tx.UpdateCurrency(ctx, r); err != nil {
						return domain.Storage("update currency", err)
					}
				}
			}
		}

		if creating {
			id, err := tx.AddCurrency(ctx, c)
			if err != nil {
				return domain.Storage("add currency", err)
			}
			c.ID = id
		} else if err := tx.UpdateCurrency(ctx, c); err != nil {
			return domain.Storage("update currency", err)
		}
		if c.IsBase {
			if err := syncSettings(ctx, tx, c.Symbol); err != nil {
				return err
			}
		}

		linked, err = s.link(ctx, tx, c, creating)
		return err
	})
	if err != nil {
		return domain.Currency{}, err
	}

	observability.RateUpdates.WithLabelValues("false").Inc()
	observability.RateUpdates.WithLabelValues("true").Add(float64(linked))
	s.log.Info("currency saved",
		zap.Int64("id", c.ID),
		zap.String("symbol", c.Symbol),
		zap.Float64("rate", c.Rate),
		zap.Int("linked", linked),
	)
	return c, nil
}

// link propagates a rate edit across the legacy pair. Returns the number of
// paired records written.
func (s *Service) link(ctx context.Context, tx domain.Records, c domain.Currency, creating bool) (int, error) {
	pair := s.cfg.Legacy
	if !pair.IsOld(c.Symbol) && !pair.IsNew(c.Symbol) {
		return 0, nil
	}
	rates, err := tx.ListCurrencies(ctx)
	if err != nil {
		return 0, domain.Storage("list currencies", err)
	}
	switch {
	case pair.IsNew(c.Symbol):
		old, ok := find(rates, bySymbol(pair.Old))
		if !ok {
			if !creating {
				return 0, nil
			}
			_, err := tx.AddCurrency(ctx, domain.Currency{
				Name:             pair.OldName,
				Symbol:           strings.ToUpper(pair.Old),
				Rate:             c.Rate * pair.Ratio,
				ConversionFactor: pair.Ratio,
			})
			if err != nil {
				return 0, domain.Storage("add legacy currency", err)
			}
			s.log.Info("legacy currency synthesized", zap.String("symbol", pair.Old), zap.Float64("rate", c.Rate*pair.Ratio))
			return 1, nil
		}
		old.Rate = c.Rate * pair.Ratio
		return 1, domain.Storage("update legacy currency", tx.UpdateCurrency(ctx, old))

	case pair.IsOld(c.Symbol):
		cur, ok := find(rates, bySymbol(pair.New))
		if !ok {
			return 0, nil
		}
		cur.Rate = c.Rate / pair.Ratio
		return 1, domain.Storage("update paired currency", tx.UpdateCurrency(ctx, cur))
	}
	return 0, nil
}

// Delete removes a currency. The base currency cannot be deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	cur, err := s.store.GetCurrency(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if cur.IsBase {
		return domain.ErrBaseCurrencyDelete
	}
	if err := s.store.DeleteCurrency(ctx, id); err != nil {
		return notFound(err)
	}
	s.log.Info("currency deleted", zap.Int64("id", id), zap.String("symbol", cur.Symbol))
	return nil
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrCurrencyNotFound
	}
	return domain.Storage("currency", err)
}

func bySymbol(symbol string) func(domain.Currency) bool {
	return func(r domain.Currency) bool { return strings.EqualFold(r.Symbol, symbol) }
}

func find(rates []domain.Currency, match func(domain.Currency) bool) (domain.Currency, bool) {
	for _, r := range rates {
		if match(r) {
			return r, true
		}
	}
	return domain.Currency{}, false
}
