// Package ledger applies business events to the record store. Each event
// (sale, purchase, expense, payment) mutates its dependent records and then
// appends one transaction, all inside a single store transaction. Deleting
// a transaction applies the inverse effect.
//
// Party balances and product cost prices are kept in the base currency.
// Every transaction stores its amount converted to base at write time
// (BaseAmount) so that reversal undoes exactly what was applied even if
// rates have moved since.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tally-books/tally/internal/app/currency"
	"github.com/tally-books/tally/internal/domain"
	"github.com/tally-books/tally/internal/infra/observability"
)

// Config controls reversal policy.
type Config struct {
	// ReversePayments undoes a payment's balance change when the payment
	// transaction is deleted.
	ReversePayments bool `toml:"reverse_payments"`

	// RestoreCostOnPurchaseDelete puts back the product's previous cost
	// price when a purchase is deleted, but only while the product still
	// carries the cost that purchase set.
	RestoreCostOnPurchaseDelete bool `toml:"restore_cost_on_purchase_delete"`

	// HubBuffer is the per-subscriber commit notification buffer.
	HubBuffer int `toml:"hub_buffer"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		ReversePayments:             true,
		RestoreCostOnPurchaseDelete: false,
		HubBuffer:                   64,
	}
}

// Engine is the ledger transaction engine.
type Engine struct {
	cfg     Config
	store   domain.Store
	legacy  domain.LegacyPair
	hub     *Hub
	log     *zap.Logger
	journal *observability.Journal
	now     func() time.Time
}

// New creates an engine over store. log and journal may be nil.
func New(cfg Config, store domain.Store, legacy domain.LegacyPair, log *zap.Logger, journal *observability.Journal) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		legacy:  legacy,
		hub:     NewHub(cfg.HubBuffer),
		log:     log,
		journal: journal,
		now:     time.Now,
	}
}

// Hub returns the commit notification hub.
func (e *Engine) Hub() *Hub { return e.hub }

// ─── Requests ───────────────────────────────────────────────────────────────

// SaleRequest records goods leaving stock. Amount is the total for the
// whole quantity, in CurrencyID.
type SaleRequest struct {
	ProductID   int64     `json:"productId"`
	Quantity    int64     `json:"quantity"`
	Amount      float64   `json:"amount"`
	CurrencyID  int64     `json:"currencyId"`
	PartyID     int64     `json:"partyId,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date,omitempty"`
}

// PurchaseRequest records goods entering stock.
type PurchaseRequest struct {
	ProductID   int64     `json:"productId"`
	Quantity    int64     `json:"quantity"`
	Amount      float64   `json:"amount"`
	CurrencyID  int64     `json:"currencyId"`
	PartyID     int64     `json:"partyId,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date,omitempty"`
}

// ExpenseRequest records money spent outside the stock cycle.
type ExpenseRequest struct {
	Amount      float64   `json:"amount"`
	CurrencyID  int64     `json:"currencyId"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date,omitempty"`
}

// PaymentRequest records money settled with a party. The party's type
// decides the direction.
type PaymentRequest struct {
	PartyID     int64     `json:"partyId"`
	Amount      float64   `json:"amount"`
	CurrencyID  int64     `json:"currencyId"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date,omitempty"`
}

// ─── Effects ────────────────────────────────────────────────────────────────

// RecordSale takes quantity out of stock and charges the party, if any.
// Selling more than is in stock is rejected without any mutation.
func (e *Engine) RecordSale(ctx context.Context, req SaleRequest) (domain.Transaction, error) {
	attrs := map[string]string{"product": strconv.FormatInt(req.ProductID, 10)}
	return e.apply(ctx, domain.TxSale, attrs, func(tx domain.Records, tbl *domain.CurrencyTable) (domain.Transaction, error) {
		if req.Quantity <= 0 {
			return domain.Transaction{}, domain.ErrInvalidQuantity
		}
		if req.Amount <= 0 {
			return domain.Transaction{}, domain.ErrInvalidAmount
		}
		base, err := tbl.ToBase(req.Amount, req.CurrencyID)
		if err != nil {
			return domain.Transaction{}, err
		}
		p, err := getProduct(ctx, tx, req.ProductID)
		if err != nil {
			return domain.Transaction{}, err
		}
		if p.Stock < req.Quantity {
			return domain.Transaction{}, fmt.Errorf("%w: %q has %d, need %d",
				domain.ErrInsufficientStock, p.Name, p.Stock, req.Quantity)
		}
		party, err := optionalParty(ctx, tx, req.PartyID)
		if err != nil {
			return domain.Transaction{}, err
		}

		p.Stock -= req.Quantity
		if err := tx.UpdateProduct(ctx, *p); err != nil {
			return domain.Transaction{}, domain.Storage("update product", err)
		}
		if party != nil {
			party.Balance += base
			if err := tx.UpdateParty(ctx, *party); err != nil {
				return domain.Transaction{}, domain.Storage("update party", err)
			}
		}
		return domain.Transaction{
			Type:        domain.TxSale,
			Amount:      req.Amount,
			CurrencyID:  req.CurrencyID,
			ProductID:   p.ID,
			Quantity:    req.Quantity,
			PartyID:     req.PartyID,
			PartyName:   partyName(party),
			Description: req.Description,
			Date:        req.Date,
			BaseAmount:  base,
		}, nil
	})
}

// RecordPurchase adds quantity to stock and credits the party, if any. The
// product's cost price only ever moves down automatically: it is set when
// the unit price is below it or when it is still zero.
func (e *Engine) RecordPurchase(ctx context.Context, req PurchaseRequest) (domain.Transaction, error) {
	attrs := map[string]string{"product": strconv.FormatInt(req.ProductID, 10)}
	return e.apply(ctx, domain.TxPurchase, attrs, func(tx domain.Records, tbl *domain.CurrencyTable) (domain.Transaction, error) {
		if req.Quantity <= 0 {
			return domain.Transaction{}, domain.ErrInvalidQuantity
		}
		if req.Amount <= 0 {
			return domain.Transaction{}, domain.ErrInvalidAmount
		}
		base, err := tbl.ToBase(req.Amount, req.CurrencyID)
		if err != nil {
			return domain.Transaction{}, err
		}
		p, err := getProduct(ctx, tx, req.ProductID)
		if err != nil {
			return domain.Transaction{}, err
		}
		party, err := optionalParty(ctx, tx, req.PartyID)
		if err != nil {
			return domain.Transaction{}, err
		}

		prevCost := p.CostPrice
		unit := base / float64(req.Quantity)
		p.Stock += req.Quantity
		if p.CostPrice == 0 || unit < p.CostPrice {
			p.CostPrice = unit
		}
		if err := tx.UpdateProduct(ctx, *p); err != nil {
			return domain.Transaction{}, domain.Storage("update product", err)
		}
		if party != nil {
			party.Balance -= base
			if err := tx.UpdateParty(ctx, *party); err != nil {
				return domain.Transaction{}, domain.Storage("update party", err)
			}
		}
		return domain.Transaction{
			Type:          domain.TxPurchase,
			Amount:        req.Amount,
			CurrencyID:    req.CurrencyID,
			ProductID:     p.ID,
			Quantity:      req.Quantity,
			PartyID:       req.PartyID,
			PartyName:     partyName(party),
			Description:   req.Description,
			Date:          req.Date,
			BaseAmount:    base,
			PrevCostPrice: prevCost,
		}, nil
	})
}

// RecordExpense appends an expense. No other record changes.
func (e *Engine) RecordExpense(ctx context.Context, req ExpenseRequest) (domain.Transaction, error) {
	return e.apply(ctx, domain.TxExpense, nil, func(tx domain.Records, tbl *domain.CurrencyTable) (domain.Transaction, error) {
		if req.Amount <= 0 {
			return domain.Transaction{}, domain.ErrInvalidAmount
		}
		base, err := tbl.ToBase(req.Amount, req.CurrencyID)
		if err != nil {
			return domain.Transaction{}, err
		}
		return domain.Transaction{
			Type:        domain.TxExpense,
			Amount:      req.Amount,
			CurrencyID:  req.CurrencyID,
			Description: req.Description,
			Date:        req.Date,
			BaseAmount:  base,
		}, nil
	})
}

// RecordPayment settles money with a party. A debtor paying lowers its
// balance (payment_received); paying a creditor raises it (payment_paid).
func (e *Engine) RecordPayment(ctx context.Context, req PaymentRequest) (domain.Transaction, error) {
	attrs := map[string]string{"party": strconv.FormatInt(req.PartyID, 10)}
	return e.apply(ctx, "", attrs, func(tx domain.Records, tbl *domain.CurrencyTable) (domain.Transaction, error) {
		if req.Amount <= 0 {
			return domain.Transaction{}, domain.ErrInvalidAmount
		}
		base, err := tbl.ToBase(req.Amount, req.CurrencyID)
		if err != nil {
			return domain.Transaction{}, err
		}
		party, err := getParty(ctx, tx, req.PartyID)
		if err != nil {
			return domain.Transaction{}, err
		}

		typ := domain.TxPaymentPaid
		switch party.Type {
		case domain.PartyDebtor:
			typ = domain.TxPaymentReceived
			party.Balance -= base
		case domain.PartyCreditor:
			party.Balance += base
		default:
			return domain.Transaction{}, domain.ErrInvalidPartyType
		}
		if err := tx.UpdateParty(ctx, *party); err != nil {
			return domain.Transaction{}, domain.Storage("update party", err)
		}
		return domain.Transaction{
			Type:        typ,
			Amount:      req.Amount,
			CurrencyID:  req.CurrencyID,
			PartyID:     party.ID,
			PartyName:   party.Name,
			Description: req.Description,
			Date:        req.Date,
			BaseAmount:  base,
		}, nil
	})
}

// apply runs build inside one store transaction, appends the transaction it
// returns, and publishes the commit. typ labels the operation; payments
// pass "" and are labelled by the built transaction.
func (e *Engine) apply(ctx context.Context, typ domain.TxType, attrs map[string]string,
	build func(tx domain.Records, tbl *domain.CurrencyTable) (domain.Transaction, error)) (domain.Transaction, error) {

	name := string(typ)
	if name == "" {
		name = "payment"
	}
	op := e.journal.Begin("ledger."+name, attrs)

	var out domain.Transaction
	err := e.store.RunInTx(ctx, func(tx domain.Records) error {
		tbl, err := currency.Load(ctx, tx, e.legacy)
		if err != nil {
			return err
		}
		t, err := build(tx, tbl)
		if err != nil {
			return err
		}
		if t.Date.IsZero() {
			t.Date = e.now()
		}
		id, err := tx.AddTransaction(ctx, t)
		if err != nil {
			return domain.Storage("add transaction", err)
		}
		t.ID = id
		out = t
		return nil
	})
	e.journal.End(op, err)
	if err != nil {
		observability.LedgerRejections.WithLabelValues(domain.Class(err)).Inc()
		e.log.Debug("ledger effect rejected", zap.String("op", name), zap.Error(err))
		return domain.Transaction{}, err
	}

	observability.LedgerEffects.WithLabelValues(string(out.Type)).Inc()
	e.log.Info("transaction recorded",
		zap.Int64("id", out.ID),
		zap.String("type", string(out.Type)),
		zap.Float64("amount", out.Amount),
		zap.Int64("currency", out.CurrencyID),
		zap.Float64("base_amount", out.BaseAmount),
	)
	e.publish(KindRecorded, out)
	return out, nil
}

func (e *Engine) publish(kind Kind, t domain.Transaction) {
	e.hub.Publish(Commit{ID: uuid.New(), Kind: kind, Transaction: t, At: e.now()})
}

// ─── Reversal ───────────────────────────────────────────────────────────────

// DeleteTransaction removes a transaction and undoes its effect. References
// to records that no longer exist are skipped. Returns the deleted record.
func (e *Engine) DeleteTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	op := e.journal.Begin("ledger.delete", map[string]string{"id": strconv.FormatInt(id, 10)})

	var deleted domain.Transaction
	err := e.store.RunInTx(ctx, func(tx domain.Records) error {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrTransactionNotFound
			}
			return domain.Storage("get transaction", err)
		}
		base, err := e.baseAmount(ctx, tx, *t)
		if err != nil {
			return err
		}
		if err := e.reverse(ctx, tx, *t, base); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return domain.Storage("delete transaction", err)
		}
		deleted = *t
		return nil
	})
	e.journal.End(op, err)
	if err != nil {
		observability.LedgerRejections.WithLabelValues(domain.Class(err)).Inc()
		return domain.Transaction{}, err
	}

	observability.LedgerReversals.WithLabelValues(string(deleted.Type)).Inc()
	e.log.Info("transaction deleted", zap.Int64("id", id), zap.String("type", string(deleted.Type)))
	e.publish(KindDeleted, deleted)
	return deleted, nil
}

// baseAmount returns the amount applied at write time. Records imported
// from documents that predate BaseAmount are converted at the current rate.
func (e *Engine) baseAmount(ctx context.Context, tx domain.Records, t domain.Transaction) (float64, error) {
	if t.BaseAmount != 0 || t.Amount == 0 {
		return t.BaseAmount, nil
	}
	tbl, err := currency.Load(ctx, tx, e.legacy)
	if err != nil {
		return 0, err
	}
	base, err := tbl.ToBase(t.Amount, t.CurrencyID)
	if err != nil {
		e.log.Warn("reversing unconverted amount", zap.Int64("id", t.ID), zap.Error(err))
		return t.Amount, nil
	}
	return base, nil
}

func (e *Engine) reverse(ctx context.Context, tx domain.Records, t domain.Transaction, base float64) error {
	if t.Type.IsPayment() && !e.cfg.ReversePayments {
		return nil
	}
	switch t.Type {
	case domain.TxSale:
		if err := adjustStock(ctx, tx, t.ProductID, t.Quantity, nil); err != nil {
			return err
		}
		return adjustBalance(ctx, tx, t.PartyID, -base)

	case domain.TxPurchase:
		var restore func(*domain.Product)
		if e.cfg.RestoreCostOnPurchaseDelete && t.Quantity > 0 {
			unit := base / float64(t.Quantity)
			restore = func(p *domain.Product) {
				if p.CostPrice == unit {
					p.CostPrice = t.PrevCostPrice
				}
			}
		}
		if err := adjustStock(ctx, tx, t.ProductID, -t.Quantity, restore); err != nil {
			return err
		}
		return adjustBalance(ctx, tx, t.PartyID, base)

	case domain.TxPaymentReceived:
		return adjustBalance(ctx, tx, t.PartyID, base)

	case domain.TxPaymentPaid:
		return adjustBalance(ctx, tx, t.PartyID, -base)
	}
	return nil
}

func adjustStock(ctx context.Context, tx domain.Records, productID, delta int64, edit func(*domain.Product)) error {
	if productID == 0 {
		return nil
	}
	p, err := tx.GetProduct(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.Storage("get product", err)
	}
	p.Stock += delta
	if edit != nil {
		edit(p)
	}
	return domain.Storage("update product", tx.UpdateProduct(ctx, *p))
}

func adjustBalance(ctx context.Context, tx domain.Records, partyID int64, delta float64) error {
	if partyID == 0 {
		return nil
	}
	p, err := tx.GetParty(ctx, partyID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.Storage("get party", err)
	}
	p.Balance += delta
	return domain.Storage("update party", tx.UpdateParty(ctx, *p))
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Transactions lists the transactions passing f, newest first.
func (e *Engine) Transactions(ctx context.Context, f domain.TxFilter) ([]domain.Transaction, error) {
	all, err := e.store.ListTransactions(ctx)
	if err != nil {
		return nil, domain.Storage("list transactions", err)
	}
	out := make([]domain.Transaction, 0, len(all))
	for _, t := range all {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Transaction returns one transaction.
func (e *Engine) Transaction(ctx context.Context, id int64) (domain.Transaction, error) {
	t, err := e.store.GetTransaction(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, domain.Storage("get transaction", err)
	}
	return *t, nil
}

// ─── Lookups ────────────────────────────────────────────────────────────────

func getProduct(ctx context.Context, tx domain.Records, id int64) (*domain.Product, error) {
	p, err := tx.GetProduct(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrProductNotFound
	}
	return p, domain.Storage("get product", err)
}

func getParty(ctx context.Context, tx domain.Records, id int64) (*domain.Party, error) {
	p, err := tx.GetParty(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrPartyNotFound
	}
	return p, domain.Storage("get party", err)
}

func optionalParty(ctx context.Context, tx domain.Records, id int64) (*domain.Party, error) {
	if id == 0 {
		return nil, nil
	}
	return getParty(ctx, tx, id)
}

func partyName(p *domain.Party) string {
	if p == nil {
		return ""
	}
	return p.Name
}
