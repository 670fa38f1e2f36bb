package catalog

import (
	"context"
	"errors"

	"github.com/tally-books/tally/internal/app/currency"
	"github.com/tally-books/tally/internal/domain"
)

// Price is a product's cost and selling price in one currency.
type Price struct {
	CurrencyID int64   `json:"currencyId"`
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name,omitempty"`
	Cost       float64 `json:"cost"`
	Selling    float64 `json:"selling"`
}

// Listing is a product as shown in inventory lists: the record, its stock
// status and its prices in every configured currency.
type Listing struct {
	domain.Product
	StockStatus domain.StockStatus `json:"stockStatus"`
	Prices      []Price            `json:"prices"`
}

// LowStock returns the configured low-stock threshold.
func (s *Service) LowStock() int64 { return s.cfg.LowStock }

// Prices converts a product's base-currency prices into every currency in
// the rate table, base first.
func (s *Service) Prices(ctx context.Context, productID int64) ([]Price, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	t, err := currency.Load(ctx, s.store, s.legacy)
	if err != nil {
		return nil, err
	}
	return priceTable(t, p)
}

// Listings lists products matching q (all when empty) with stock status
// and prices. Without a base currency the prices are left empty.
func (s *Service) Listings(ctx context.Context, q string) ([]Listing, error) {
	products, err := s.SearchProducts(ctx, q)
	if err != nil {
		return nil, err
	}
	t, err := currency.Load(ctx, s.store, s.legacy)
	if err != nil {
		return nil, err
	}

	out := make([]Listing, 0, len(products))
	for _, p := range products {
		prices, err := priceTable(t, p)
		if err != nil && !errors.Is(err, domain.ErrNoBaseCurrency) {
			return nil, err
		}
		out = append(out, Listing{
			Product:     p,
			StockStatus: p.StockStatus(s.cfg.LowStock),
			Prices:      prices,
		})
	}
	return out, nil
}

func priceTable(t *domain.CurrencyTable, p domain.Product) ([]Price, error) {
	base, err := t.Base()
	if err != nil {
		return nil, err
	}
	rates := t.Rates()
	out := make([]Price, 0, len(rates))
	out = append(out, Price{
		CurrencyID: base.ID, Symbol: base.Symbol, Name: base.Name,
		Cost: p.CostPrice, Selling: p.SellingPrice,
	})
	for _, r := range rates {
		if r.ID == base.ID {
			continue
		}
		cost, err := t.Convert(p.CostPrice, base.ID, r.ID)
		if err != nil {
			return nil, err
		}
		selling, err := t.Convert(p.SellingPrice, base.ID, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Price{CurrencyID: r.ID, Symbol: r.Symbol, Name: r.Name, Cost: cost, Selling: selling})
	}
	return out, nil
}
