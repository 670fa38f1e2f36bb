package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tally-books/tally/internal/domain"
	"github.com/tally-books/tally/internal/infra/sqlite"
)

type fixture struct {
	db       *sqlite.DB
	engine   *Engine
	usd, nsp int64
	product  int64
	debtor   int64
	creditor int64
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	f := &fixture{db: db, engine: New(cfg, db, domain.DefaultLegacyPair(), nil, nil)}
	f.usd, _ = db.AddCurrency(ctx, domain.Currency{Symbol: "USD", Rate: 1, IsBase: true})
	f.nsp, _ = db.AddCurrency(ctx, domain.Currency{Symbol: "NSP", Rate: 4500})
	db.AddCurrency(ctx, domain.Currency{Symbol: "OSP", Rate: 450000, ConversionFactor: 100})
	f.product, _ = db.AddProduct(ctx, domain.Product{Name: "Rice 5kg", CostPrice: 4, SellingPrice: 6, Stock: 10})
	f.debtor, _ = db.AddParty(ctx, domain.Party{Name: "Corner Shop", Type: domain.PartyDebtor})
	f.creditor, _ = db.AddParty(ctx, domain.Party{Name: "Mill", Type: domain.PartyCreditor})
	return f
}

func (f *fixture) loadProduct(t *testing.T) domain.Product {
	t.Helper()
	p, err := f.db.GetProduct(context.Background(), f.product)
	if err != nil {
		t.Fatal(err)
	}
	return *p
}

func (f *fixture) balance(t *testing.T, id int64) float64 {
	t.Helper()
	p, err := f.db.GetParty(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p.Balance
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ─── Sale ───────────────────────────────────────────────────────────────────

func TestRecordSale_ReducesStockAndChargesParty(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	tx, err := f.engine.RecordSale(ctx, SaleRequest{
		ProductID: f.product, Quantity: 3, Amount: 18, CurrencyID: f.usd, PartyID: f.debtor,
	})
	if err != nil {
		t.Fatalf("RecordSale() error: %v", err)
	}
	if tx.ID == 0 || tx.Type != domain.TxSale || tx.PartyName != "Corner Shop" {
		t.Errorf("RecordSale() = %+v", tx)
	}
	if tx.Date.IsZero() {
		t.Error("Date should default to now")
	}
	if got := f.loadProduct(t).Stock; got != 7 {
		t.Errorf("stock = %d, want 7", got)
	}
	if got := f.balance(t, f.debtor); got != 18 {
		t.Errorf("balance = %v, want 18", got)
	}
}

func TestRecordSale_ForeignCurrencyConvertsBalance(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	tx, err := f.engine.RecordSale(context.Background(), SaleRequest{
		ProductID: f.product, Quantity: 1, Amount: 27000, CurrencyID: f.nsp, PartyID: f.debtor,
	})
	if err != nil {
		t.Fatalf("RecordSale() error: %v", err)
	}
	if !approx(tx.BaseAmount, 6) {
		t.Errorf("BaseAmount = %v, want 6", tx.BaseAmount)
	}
	if got := f.balance(t, f.debtor); !approx(got, 6) {
		t.Errorf("balance = %v, want 6", got)
	}
}

func TestRecordSale_InsufficientStockNoMutation(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	_, err := f.engine.RecordSale(ctx, SaleRequest{
		ProductID: f.product, Quantity: 11, Amount: 66, CurrencyID: f.usd, PartyID: f.debtor,
	})
	if !errors.Is(err, domain.ErrInsufficientStock) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if got := f.loadProduct(t).Stock; got != 10 {
		t.Errorf("stock = %d, want 10 (unchanged)", got)
	}
	if got := f.balance(t, f.debtor); got != 0 {
		t.Errorf("balance = %v, want 0 (unchanged)", got)
	}
	txs, _ := f.db.ListTransactions(ctx)
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0", len(txs))
	}
}

func TestRecordSale_Rejections(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  SaleRequest
		want error
	}{
		{"zero quantity", SaleRequest{ProductID: f.product, Quantity: 0, Amount: 1, CurrencyID: f.usd}, domain.ErrInvalidQuantity},
		{"zero amount", SaleRequest{ProductID: f.product, Quantity: 1, Amount: 0, CurrencyID: f.usd}, domain.ErrInvalidAmount},
		{"unknown product", SaleRequest{ProductID: 404, Quantity: 1, Amount: 1, CurrencyID: f.usd}, domain.ErrProductNotFound},
		{"unknown party", SaleRequest{ProductID: f.product, Quantity: 1, Amount: 1, CurrencyID: f.usd, PartyID: 404}, domain.ErrPartyNotFound},
		{"unknown currency", SaleRequest{ProductID: f.product, Quantity: 1, Amount: 1, CurrencyID: 404}, domain.ErrCurrencyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.engine.RecordSale(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if got := f.loadProduct(t).Stock; got != 10 {
		t.Errorf("stock = %d after rejections, want 10", got)
	}
}

func TestDeleteSale_RestoresStockAndBalance(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	tx, err := f.engine.RecordSale(ctx, SaleRequest{
		ProductID: f.product, Quantity: 4, Amount: 36000, CurrencyID: f.nsp, PartyID: f.debtor,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Rates move after the sale; reversal still undoes exactly what was applied.
	nsp, _ := f.db.GetCurrency(ctx, f.nsp)
	nsp.Rate = 9000
	f.db.UpdateCurrency(ctx, *nsp)

	deleted, err := f.engine.DeleteTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("DeleteTransaction() error: %v", err)
	}
	if deleted.ID != tx.ID {
		t.Errorf("deleted id = %d, want %d", deleted.ID, tx.ID)
	}
	if got := f.loadProduct(t).Stock; got != 10 {
		t.Errorf("stock = %d, want 10", got)
	}
	if got := f.balance(t, f.debtor); !approx(got, 0) {
		t.Errorf("balance = %v, want 0", got)
	}
	if _, err := f.engine.Transaction(ctx, tx.ID); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("Transaction(deleted) err = %v", err)
	}
}

func TestDeleteSale_ProductGone(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	tx, _ := f.engine.RecordSale(ctx, SaleRequest{ProductID: f.product, Quantity: 1, Amount: 6, CurrencyID: f.usd, PartyID: f.debtor})
	f.db.DeleteProduct(ctx, f.product)

	if _, err := f.engine.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction() error: %v", err)
	}
	if got := f.balance(t, f.debtor); got != 0 {
		t.Errorf("balance = %v, want 0", got)
	}
}

func TestDeleteTransaction_NotFound(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	if _, err := f.engine.DeleteTransaction(context.Background(), 404); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("err = %v, want ErrTransactionNotFound", err)
	}
}

// ─── Purchase ───────────────────────────────────────────────────────────────

func TestRecordPurchase_CostPrice(t *testing.T) {
	tests := []struct {
		name     string
		cost     float64
		amount   float64
		qty      int64
		wantCost float64
	}{
		{"below current cost lowers it", 4, 30, 10, 3},
		{"above current cost keeps it", 4, 50, 10, 4},
		{"zero cost always set", 0, 50, 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			ctx := context.Background()
			p := f.loadProduct(t)
			p.CostPrice = tt.cost
			f.db.UpdateProduct(ctx, p)

			tx, err := f.engine.RecordPurchase(ctx, PurchaseRequest{
				ProductID: f.product, Quantity: tt.qty, Amount: tt.amount, CurrencyID: f.usd, PartyID: f.creditor,
			})
			if err != nil {
				t.Fatalf("RecordPurchase() error: %v", err)
			}
			got := f.loadProduct(t)
			if !approx(got.CostPrice, tt.wantCost) {
				t.Errorf("CostPrice = %v, want %v", got.CostPrice, tt.wantCost)
			}
			if got.Stock != 10+tt.qty {
				t.Errorf("Stock = %d, want %d", got.Stock, 10+tt.qty)
			}
			if tx.PrevCostPrice != tt.cost {
				t.Errorf("PrevCostPrice = %v, want %v", tx.PrevCostPrice, tt.cost)
			}
			if b := f.balance(t, f.creditor); !approx(b, -tt.amount) {
				t.Errorf("creditor balance = %v, want %v", b, -tt.amount)
			}
		})
	}
}

func TestRecordPurchase_ForeignCurrencyCostInBase(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	_, err := f.engine.RecordPurchase(context.Background(), PurchaseRequest{
		ProductID: f.product, Quantity: 2, Amount: 13500, CurrencyID: f.nsp,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.loadProduct(t).CostPrice; !approx(got, 1.5) {
		t.Errorf("CostPrice = %v, want 1.5 (base)", got)
	}
}

func TestDeletePurchase_CostPolicy(t *testing.T) {
	tests := []struct {
		name     string
		restore  bool
		wantCost float64
	}{
		{"default keeps lowered cost", false, 3},
		{"restore puts previous cost back", true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RestoreCostOnPurchaseDelete = tt.restore
			f := newFixture(t, cfg)
			ctx := context.Background()

			tx, err := f.engine.RecordPurchase(ctx, PurchaseRequest{
				ProductID: f.product, Quantity: 5, Amount: 15, CurrencyID: f.usd, PartyID: f.creditor,
			})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := f.engine.DeleteTransaction(ctx, tx.ID); err != nil {
				t.Fatalf("DeleteTransaction() error: %v", err)
			}
			p := f.loadProduct(t)
			if p.Stock != 10 {
				t.Errorf("Stock = %d, want 10", p.Stock)
			}
			if !approx(p.CostPrice, tt.wantCost) {
				t.Errorf("CostPrice = %v, want %v", p.CostPrice, tt.wantCost)
			}
			if b := f.balance(t, f.creditor); !approx(b, 0) {
				t.Errorf("creditor balance = %v, want 0", b)
			}
		})
	}
}

func TestDeletePurchase_RestoreSkippedWhenCostMoved(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RestoreCostOnPurchaseDelete = true
	f := newFixture(t, cfg)
	ctx := context.Background()

	first, _ := f.engine.RecordPurchase(ctx, PurchaseRequest{ProductID: f.product, Quantity: 1, Amount: 3, CurrencyID: f.usd})
	f.engine.RecordPurchase(ctx, PurchaseRequest{ProductID: f.product, Quantity: 1, Amount: 2, CurrencyID: f.usd})

	if _, err := f.engine.DeleteTransaction(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if got := f.loadProduct(t).CostPrice; got != 2 {
		t.Errorf("CostPrice = %v, want 2 (later purchase owns it)", got)
	}
}

// ─── Expense & Payment ──────────────────────────────────────────────────────

func TestRecordExpense(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	when := time.Date(2026, 10, 3, 9, 0, 0, 0, time.UTC)

	tx, err := f.engine.RecordExpense(ctx, ExpenseRequest{Amount: 45000, CurrencyID: f.nsp, Description: "rent", Date: when})
	if err != nil {
		t.Fatalf("RecordExpense() error: %v", err)
	}
	if !tx.Date.Equal(when) || !approx(tx.BaseAmount, 10) {
		t.Errorf("RecordExpense() = %+v", tx)
	}
	if _, err := f.engine.RecordExpense(ctx, ExpenseRequest{Amount: -1, CurrencyID: f.usd}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("negative expense err = %v", err)
	}
	if _, err := f.engine.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Errorf("delete expense error: %v", err)
	}
}

func TestRecordPayment_Direction(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	rx, err := f.engine.RecordPayment(ctx, PaymentRequest{PartyID: f.debtor, Amount: 5, CurrencyID: f.usd})
	if err != nil {
		t.Fatal(err)
	}
	if rx.Type != domain.TxPaymentReceived || f.balance(t, f.debtor) != -5 {
		t.Errorf("debtor payment: type %s balance %v", rx.Type, f.balance(t, f.debtor))
	}

	px, err := f.engine.RecordPayment(ctx, PaymentRequest{PartyID: f.creditor, Amount: 7, CurrencyID: f.usd})
	if err != nil {
		t.Fatal(err)
	}
	if px.Type != domain.TxPaymentPaid || f.balance(t, f.creditor) != 7 {
		t.Errorf("creditor payment: type %s balance %v", px.Type, f.balance(t, f.creditor))
	}

	if _, err := f.engine.RecordPayment(ctx, PaymentRequest{PartyID: 404, Amount: 1, CurrencyID: f.usd}); !errors.Is(err, domain.ErrPartyNotFound) {
		t.Errorf("unknown party err = %v", err)
	}
}

func TestDeletePayment_ReversalPolicy(t *testing.T) {
	tests := []struct {
		name     string
		reverse  bool
		creditor bool
		want     float64
	}{
		{"received reversed by default", true, false, 0},
		{"received kept when reversal off", false, false, -5},
		{"paid reversed by default", true, true, 0},
		{"paid kept when reversal off", false, true, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ReversePayments = tt.reverse
			f := newFixture(t, cfg)
			ctx := context.Background()

			party := f.debtor
			if tt.creditor {
				party = f.creditor
			}
			tx, err := f.engine.RecordPayment(ctx, PaymentRequest{PartyID: party, Amount: 5, CurrencyID: f.usd})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := f.engine.DeleteTransaction(ctx, tx.ID); err != nil {
				t.Fatal(err)
			}
			if got := f.balance(t, party); got != tt.want {
				t.Errorf("balance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDelete_LegacyRecordWithoutBaseAmount(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	p, _ := f.db.GetParty(ctx, f.debtor)
	p.Balance = 2
	f.db.UpdateParty(ctx, *p)
	id, _ := f.db.AddTransaction(ctx, domain.Transaction{
		Type: domain.TxSale, Amount: 9000, CurrencyID: f.nsp, PartyID: f.debtor, Date: time.Now(),
	})

	if _, err := f.engine.DeleteTransaction(ctx, id); err != nil {
		t.Fatal(err)
	}
	if got := f.balance(t, f.debtor); !approx(got, 0) {
		t.Errorf("balance = %v, want 0", got)
	}
}

// ─── Listing ────────────────────────────────────────────────────────────────

func TestTransactions_Filter(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	oct := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	sep := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)

	f.engine.RecordExpense(ctx, ExpenseRequest{Amount: 1, CurrencyID: f.usd, Date: sep})
	f.engine.RecordExpense(ctx, ExpenseRequest{Amount: 2, CurrencyID: f.usd, Date: oct})
	f.engine.RecordSale(ctx, SaleRequest{ProductID: f.product, Quantity: 1, Amount: 6, CurrencyID: f.usd, Date: oct.Add(time.Hour)})

	all, err := f.engine.Transactions(ctx, domain.TxFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Type != domain.TxSale {
		t.Errorf("all = %d, first %s; want 3 newest sale", len(all), all[0].Type)
	}
	exp, _ := f.engine.Transactions(ctx, domain.TxFilter{Type: domain.TxExpense})
	if len(exp) != 2 {
		t.Errorf("expenses = %d, want 2", len(exp))
	}
	octOnly, _ := f.engine.Transactions(ctx, domain.TxFilter{DatePrefix: "2026-10"})
	if len(octOnly) != 2 {
		t.Errorf("october = %d, want 2", len(octOnly))
	}
}

// ─── Commit Hub ─────────────────────────────────────────────────────────────

func TestEngine_PublishesCommits(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	events, cancel := f.engine.Hub().Subscribe()
	defer cancel()

	tx, err := f.engine.RecordExpense(ctx, ExpenseRequest{Amount: 1, CurrencyID: f.usd})
	if err != nil {
		t.Fatal(err)
	}
	f.engine.RecordExpense(ctx, ExpenseRequest{Amount: 0, CurrencyID: f.usd}) // rejected, no event
	f.engine.DeleteTransaction(ctx, tx.ID)

	first := <-events
	if first.Kind != KindRecorded || first.Transaction.ID != tx.ID {
		t.Errorf("first = %+v", first)
	}
	second := <-events
	if second.Kind != KindDeleted || second.Transaction.ID != tx.ID {
		t.Errorf("second = %+v", second)
	}
	select {
	case extra := <-events:
		t.Errorf("unexpected event %+v", extra)
	default:
	}
}
