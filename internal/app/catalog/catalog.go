// Package catalog manages the reference records the ledger works against:
// categories, products and parties. Stock, cost price and balance are
// owned by the ledger; direct edits here may still set them.
package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tally-books/tally/internal/domain"
)

// Config controls product listings.
type Config struct {
	// LowStock is the stock level below which a product is flagged low.
	LowStock int64 `toml:"low_stock"`
}

// DefaultConfig returns the catalog defaults.
func DefaultConfig() Config {
	return Config{LowStock: domain.DefaultLowStock}
}

// Service is the catalog.
type Service struct {
	cfg    Config
	store  domain.Store
	legacy domain.LegacyPair
	log    *zap.Logger
}

// New creates a catalog service. legacy is the redenomination pair used
// when pricing products in every currency. log may be nil.
func New(cfg Config, store domain.Store, legacy domain.LegacyPair, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.LowStock <= 0 {
		cfg.LowStock = domain.DefaultLowStock
	}
	return &Service{cfg: cfg, store: store, legacy: legacy, log: log}
}

// ─── Categories ─────────────────────────────────────────────────────────────

// Categories lists categories with their product counts.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	return cats, domain.Storage("list categories", err)
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.ErrMissingName
	}
	id, err := s.store.AddCategory(ctx, domain.Category{Name: name})
	if err != nil {
		return domain.Category{}, domain.Storage("add category", err)
	}
	s.log.Info("category created", zap.Int64("id", id), zap.String("name", name))
	return domain.Category{ID: id, Name: name}, nil
}

// RenameCategory changes a category's name.
func (s *Service) RenameCategory(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrMissingName
	}
	err := s.store.UpdateCategory(ctx, domain.Category{ID: id, Name: name})
	return classify(err, domain.ErrCategoryNotFound, "update category")
}

// DeleteCategory removes a category that no product references.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.RunInTx(ctx, func(tx domain.Records) error {
		if _, err := tx.GetCategory(ctx, id); err != nil {
			return classify(err, domain.ErrCategoryNotFound, "get category")
		}
		n, err := tx.CountProductsInCategory(ctx, id)
		if err != nil {
			return domain.Storage("count products", err)
		}
		if n > 0 {
			return domain.ErrCategoryInUse
		}
		return classify(tx.DeleteCategory(ctx, id), domain.ErrCategoryNotFound, "delete category")
	})
}

// ─── Products ───────────────────────────────────────────────────────────────

// Products lists every product.
func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	ps, err := s.store.ListProducts(ctx)
	return ps, domain.Storage("list products", err)
}

// Product returns one product.
func (s *Service) Product(ctx context.Context, id int64) (domain.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, classify(err, domain.ErrProductNotFound, "get product")
	}
	return *p, nil
}

// SaveProduct creates (ID == 0) or updates a product. A non-zero category
// must exist.
func (s *Service) SaveProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Brand = strings.TrimSpace(p.Brand)
	if p.Name == "" {
		return domain.Product{}, domain.ErrMissingName
	}
	if p.CostPrice < 0 || p.SellingPrice < 0 {
		return domain.Product{}, domain.ErrInvalidAmount
	}
	if p.CategoryID != 0 {
		if _, err := s.store.GetCategory(ctx, p.CategoryID); err != nil {
			return domain.Product{}, classify(err, domain.ErrCategoryNotFound, "get category")
		}
	}
	if p.ID == 0 {
		id, err := s.store.AddProduct(ctx, p)
		if err != nil {
			return domain.Product{}, domain.Storage("add product", err)
		}
		p.ID = id
		s.log.Info("product created", zap.Int64("id", id), zap.String("name", p.Name))
		return p, nil
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return domain.Product{}, classify(err, domain.ErrProductNotFound, "update product")
	}
	return p, nil
}

// DeleteProduct removes a product. Transactions keep their reference and
// are not invalidated.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return classify(s.store.DeleteProduct(ctx, id), domain.ErrProductNotFound, "delete product")
}

// SearchProducts matches q case-insensitively against name, brand and
// category name. An empty query returns everything.
func (s *Service) SearchProducts(ctx context.Context, q string) ([]domain.Product, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return products, nil
	}
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	catName := make(map[int64]string, len(cats))
	for _, c := range cats {
		catName[c.ID] = strings.ToLower(c.Name)
	}

	var out []domain.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Brand), q) ||
			strings.Contains(catName[p.CategoryID], q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ─── Parties ────────────────────────────────────────────────────────────────

// Parties lists parties, optionally only one type.
func (s *Service) Parties(ctx context.Context, typ domain.PartyType) ([]domain.Party, error) {
	all, err := s.store.ListParties(ctx)
	if err != nil {
		return nil, domain.Storage("list parties", err)
	}
	if typ == "" {
		return all, nil
	}
	out := make([]domain.Party, 0, len(all))
	for _, p := range all {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out, nil
}

// Party returns one party.
func (s *Service) Party(ctx context.Context, id int64) (domain.Party, error) {
	p, err := s.store.GetParty(ctx, id)
	if err != nil {
		return domain.Party{}, classify(err, domain.ErrPartyNotFound, "get party")
	}
	return *p, nil
}

// SaveParty creates (ID == 0) or updates a party. Updates never change the
// balance; a new party starts from the given balance.
func (s *Service) SaveParty(ctx context.Context, p domain.Party) (domain.Party, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.Party{}, domain.ErrMissingName
	}
	if !p.Type.Valid() {
		return domain.Party{}, domain.ErrInvalidPartyType
	}
	if p.ID == 0 {
		id, err := s.store.AddParty(ctx, p)
		if err != nil {
			return domain.Party{}, domain.Storage("add party", err)
		}
		p.ID = id
		s.log.Info("party created", zap.Int64("id", id), zap.String("name", p.Name), zap.String("type", string(p.Type)))
		return p, nil
	}

	err := s.store.RunInTx(ctx, func(tx domain.Records) error {
		cur, err := tx.GetParty(ctx, p.ID)
		if err != nil {
			return classify(err, domain.ErrPartyNotFound, "get party")
		}
		p.Balance = cur.Balance
		return domain.Storage("update party", tx.UpdateParty(ctx, p))
	})
	if err != nil {
		return domain.Party{}, err
	}
	return p, nil
}

// DeleteParty removes a party that no transaction references.
func (s *Service) DeleteParty(ctx context.Context, id int64) error {
	return s.store.RunInTx(ctx, func(tx domain.Records) error {
		if _, err := tx.GetParty(ctx, id); err != nil {
			return classify(err, domain.ErrPartyNotFound, "get party")
		}
		n, err := tx.CountTransactionsByParty(ctx, id)
		if err != nil {
			return domain.Storage("count transactions", err)
		}
		if n > 0 {
			return domain.ErrPartyHasTransactions
		}
		return classify(tx.DeleteParty(ctx, id), domain.ErrPartyNotFound, "delete party")
	})
}

// Statement is a party with its transactions, oldest first.
type Statement struct {
	Party        domain.Party         `json:"party"`
	Transactions []domain.Transaction `json:"transactions"`
}

// PartyStatement returns the party's statement.
func (s *Service) PartyStatement(ctx context.Context, id int64) (Statement, error) {
	p, err := s.Party(ctx, id)
	if err != nil {
		return Statement{}, err
	}
	all, err := s.store.ListTransactions(ctx)
	if err != nil {
		return Statement{}, domain.Storage("list transactions", err)
	}
	st := Statement{Party: p, Transactions: []domain.Transaction{}}
	for _, t := range all {
		if t.PartyID == id {
			st.Transactions = append(st.Transactions, t)
		}
	}
	sort.SliceStable(st.Transactions, func(i, j int) bool {
		return st.Transactions[i].Date.Before(st.Transactions[j].Date)
	})
	return st, nil
}

// classify maps a store not-found onto the record-specific error and wraps
// anything else as a storage failure.
func classify(err, notFound error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return notFound
	}
	return domain.Storage(op, err)
}
