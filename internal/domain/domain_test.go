package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/Rhymond/go-money"
)

// ─── Model Tests ────────────────────────────────────────────────────────────

func TestTxType_Valid(t *testing.T) {
	tests := []struct {
		typ  TxType
		want bool
	}{
		{TxSale, true},
		{TxPurchase, true},
		{TxExpense, true},
		{TxPaymentReceived, true},
		{TxPaymentPaid, true},
		{"refund", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := tt.typ.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTxType_IsPayment(t *testing.T) {
	if !TxPaymentReceived.IsPayment() || !TxPaymentPaid.IsPayment() {
		t.Error("payment types should report IsPayment")
	}
	if TxSale.IsPayment() {
		t.Error("sale should not report IsPayment")
	}
}

func TestPartyType_Valid(t *testing.T) {
	if !PartyDebtor.Valid() || !PartyCreditor.Valid() {
		t.Error("debtor and creditor must be valid")
	}
	if PartyType("supplier").Valid() {
		t.Error("unknown party type must be invalid")
	}
}

func TestProduct_StockValue(t *testing.T) {
	p := Product{CostPrice: 2.5, Stock: 4}
	if got := p.StockValue(); got != 10 {
		t.Errorf("StockValue() = %f, want 10", got)
	}
}

func TestTxFilter_Match(t *testing.T) {
	tx := Transaction{
		Type:      TxSale,
		PartyID:   7,
		ProductID: 3,
		Date:      time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		name   string
		filter TxFilter
		want   bool
	}{
		{"empty filter", TxFilter{}, true},
		{"type match", TxFilter{Type: TxSale}, true},
		{"type mismatch", TxFilter{Type: TxPurchase}, false},
		{"month prefix", TxFilter{DatePrefix: "2026-10"}, true},
		{"day prefix", TxFilter{DatePrefix: "2026-10-17"}, true},
		{"other month", TxFilter{DatePrefix: "2026-09"}, false},
		{"prefix too long", TxFilter{DatePrefix: "2026-10-17T09"}, false},
		{"party match", TxFilter{PartyID: 7}, true},
		{"party mismatch", TxFilter{PartyID: 8}, false},
		{"product mismatch", TxFilter{ProductID: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tx); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_RecordCount(t *testing.T) {
	s := Snapshot{
		Users:         []User{{ID: 1}},
		ExchangeRates: []Currency{{ID: 1}, {ID: 2}},
		Transactions:  []Transaction{{ID: 1}},
	}
	if got := s.RecordCount(); got != 4 {
		t.Errorf("RecordCount() = %d, want 4", got)
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class error
		label string
	}{
		{"ErrInsufficientStock", ErrInsufficientStock, ErrValidation, "validation"},
		{"ErrInvalidAmount", ErrInvalidAmount, ErrValidation, "validation"},
		{"ErrNoBaseCurrency", ErrNoBaseCurrency, ErrValidation, "validation"},
		{"ErrCategoryInUse", ErrCategoryInUse, ErrReferential, "referential"},
		{"ErrPartyHasTransactions", ErrPartyHasTransactions, ErrReferential, "referential"},
		{"ErrBaseCurrencyDelete", ErrBaseCurrencyDelete, ErrReferential, "referential"},
		{"ErrProductNotFound", ErrProductNotFound, ErrNotFound, "not_found"},
		{"ErrCurrencyNotFound", ErrCurrencyNotFound, ErrNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.class) {
				t.Errorf("%s should wrap %v", tt.name, tt.class)
			}
			if got := Class(tt.err); got != tt.label {
				t.Errorf("Class(%s) = %q, want %q", tt.name, got, tt.label)
			}
		})
	}
}

func TestStorage_Wraps(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := Storage("update product", cause)
	if !errors.Is(err, ErrStorage) {
		t.Fatal("Storage() result should match ErrStorage")
	}
	if !errors.Is(err, cause) {
		t.Error("Storage() result should keep the cause")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "update product" {
		t.Errorf("StorageError.Op = %v, want %q", se, "update product")
	}
}

func TestStorage_PassThrough(t *testing.T) {
	if Storage("get", nil) != nil {
		t.Error("Storage(nil) should be nil")
	}
	if err := Storage("get product", ErrNotFound); err != ErrNotFound {
		t.Errorf("not-found should pass through, got %v", err)
	}
	if Class(errors.New("x")) != "unknown" {
		t.Error("unclassified error should be unknown")
	}
}

// ─── Money Display Tests ────────────────────────────────────────────────────

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.005, 1.01},
		{2.344, 2.34},
		{-1.555, -1.56},
		{10, 10},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		v      float64
		symbol string
		want   string
	}{
		{1234.5, "USD", "$1,234.50"},
		{4500000, "OSP", "4,500,000.00 OSP"},
		{0.125, "nsp", "0.13 NSP"},
		{3.14159, "", "3.14"},
		{1234.5, "JPY", "¥1,234.50"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatAmount(tt.v, tt.symbol); got != tt.want {
				t.Errorf("FormatAmount(%v, %q) = %q, want %q", tt.v, tt.symbol, got, tt.want)
			}
		})
	}
}

func TestFormatAmount_LeavesRegistryAlone(t *testing.T) {
	FormatAmount(500, "JPY")
	FormatAmount(7, "XQZ")
	if c := money.GetCurrency("JPY"); c == nil || c.Fraction != 0 {
		t.Errorf("JPY registration changed: %+v", c)
	}
	if c := money.GetCurrency("XQZ"); c != nil {
		t.Errorf("XQZ should not be registered, got %+v", c)
	}
}

func TestProduct_StockStatus(t *testing.T) {
	tests := []struct {
		stock int64
		low   int64
		want  StockStatus
	}{
		{0, 10, StockOut},
		{-3, 10, StockOut},
		{1, 10, StockLow},
		{9, 10, StockLow},
		{10, 10, StockOK},
		{2, 2, StockOK},
	}
	for _, tt := range tests {
		if got := (Product{Stock: tt.stock}).StockStatus(tt.low); got != tt.want {
			t.Errorf("StockStatus(stock=%d, low=%d) = %q, want %q", tt.stock, tt.low, got, tt.want)
		}
	}
}
