// Package report derives read-only figures from the ledger. Nothing is
// materialized: every request folds over the full transaction set at the
// current exchange rates.
package report

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tally-books/tally/internal/app/currency"
	"github.com/tally-books/tally/internal/domain"
	"github.com/tally-books/tally/internal/infra/observability"
)

// Service computes reports from the record store.
type Service struct {
	store  domain.Records
	legacy domain.LegacyPair
	log    *zap.Logger
}

// New creates a report service. log may be nil.
func New(store domain.Records, legacy domain.LegacyPair, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, legacy: legacy, log: log}
}

// Bundle is every report at once.
type Bundle struct {
	Base       domain.Currency `json:"base"`
	Window     Window          `json:"window"`
	General    General         `json:"general"`
	Categories []CategoryLine  `json:"categories"`
	Items      []ItemLine      `json:"items"`
}

type inputs struct {
	txs      []domain.Transaction
	products []domain.Product
	cats     []domain.Category
	tbl      *domain.CurrencyTable
}

func (s *Service) load(ctx context.Context) (inputs, error) {
	var (
		in  inputs
		err error
	)
	if in.tbl, err = currency.Load(ctx, s.store, s.legacy); err != nil {
		return in, err
	}
	if in.txs, err = s.store.ListTransactions(ctx); err != nil {
		return in, domain.Storage("list transactions", err)
	}
	if in.products, err = s.store.ListProducts(ctx); err != nil {
		return in, domain.Storage("list products", err)
	}
	if in.cats, err = s.store.ListCategories(ctx); err != nil {
		return in, domain.Storage("list categories", err)
	}
	return in, nil
}

func observe(kind string, start time.Time) {
	observability.ReportDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// General returns the headline figures.
func (s *Service) General(ctx context.Context, w Window) (General, error) {
	defer observe("general", time.Now())
	in, err := s.load(ctx)
	if err != nil {
		return General{}, err
	}
	return FoldGeneral(in.txs, in.products, in.tbl, w), nil
}

// ByCategory returns the per-category report.
func (s *Service) ByCategory(ctx context.Context, w Window) ([]CategoryLine, error) {
	defer observe("categories", time.Now())
	in, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return FoldCategories(in.txs, in.products, in.cats, in.tbl, w), nil
}

// ByItem returns the per-product report.
func (s *Service) ByItem(ctx context.Context, w Window) ([]ItemLine, error) {
	defer observe("items", time.Now())
	in, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return FoldItems(in.txs, in.products, in.cats, in.tbl, w), nil
}

// All computes every report from one read of the store. The context is
// checked between folds.
func (s *Service) All(ctx context.Context, w Window) (Bundle, error) {
	defer observe("all", time.Now())
	in, err := s.load(ctx)
	if err != nil {
		return Bundle{}, err
	}
	b := Bundle{Window: w}
	if base, err := in.tbl.Base(); err == nil {
		b.Base = base
	}

	b.General = FoldGeneral(in.txs, in.products, in.tbl, w)
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}
	b.Categories = FoldCategories(in.txs, in.products, in.cats, in.tbl, w)
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}
	b.Items = FoldItems(in.txs, in.products, in.cats, in.tbl, w)

	s.log.Debug("reports computed",
		zap.Int("transactions", b.General.Transactions),
		zap.Int("items", len(b.Items)),
	)
	return b, nil
}
