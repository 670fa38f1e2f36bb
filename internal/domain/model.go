// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring: records, the currency table, conversion and
// the error taxonomy. Everything else depends on it; it depends on nothing.
package domain

import "time"

// ─── Categories & Products ──────────────────────────────────────────────────

// Category groups products. ProductCount is a cache filled at list time.
type Category struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ProductCount int    `json:"productCount"`
}

// Product is an inventory item. Prices are expressed in the base currency.
// Stock is maintained by the ledger engine and by direct edits; only a direct
// edit may drive it below zero.
type Product struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand"`
	CategoryID   int64   `json:"categoryId"`
	CostPrice    float64 `json:"costPrice"`
	SellingPrice float64 `json:"sellingPrice"`
	Stock        int64   `json:"stock"`
}

// StockValue returns cost price times stock on hand, in base currency.
func (p Product) StockValue() float64 {
	return p.CostPrice * float64(p.Stock)
}

// StockStatus classifies stock on hand.
type StockStatus string

const (
	StockOK  StockStatus = "ok"
	StockLow StockStatus = "low"
	StockOut StockStatus = "out"
)

// DefaultLowStock is the stock level below which a product counts as low.
const DefaultLowStock = 10

// StockStatus reports whether the product is out of stock (nothing on
// hand), low (below low) or ok.
func (p Product) StockStatus(low int64) StockStatus {
	switch {
	case p.Stock <= 0:
		return StockOut
	case p.Stock < low:
		return StockLow
	default:
		return StockOK
	}
}

// ─── Parties ────────────────────────────────────────────────────────────────

// PartyType distinguishes customers that owe us from suppliers we owe.
type PartyType string

const (
	PartyDebtor   PartyType = "debtor"
	PartyCreditor PartyType = "creditor"
)

// Valid reports whether t is a known party type.
func (t PartyType) Valid() bool {
	return t == PartyDebtor || t == PartyCreditor
}

// Party is a debtor or creditor. Balance is signed and in base currency:
// sales to a party raise it, purchases from a party lower it.
type Party struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Type    PartyType `json:"type"`
	Balance float64   `json:"balance"`
	Phone   string    `json:"phone,omitempty"`
	Address string    `json:"address,omitempty"`
	Notes   string    `json:"notes,omitempty"`
}

// ─── Currencies ─────────────────────────────────────────────────────────────

// Currency is an exchange-rate record. Rate is the number of units of this
// currency per one unit of the base currency; the base itself has rate 1.
type Currency struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Rate             float64 `json:"rate"`
	IsBase           bool    `json:"isBase,omitempty"`
	ConversionFactor float64 `json:"conversionFactor,omitempty"`
}

// ─── Transactions ───────────────────────────────────────────────────────────

// TxType is the business event a transaction records.
type TxType string

const (
	TxSale            TxType = "sale"
	TxPurchase        TxType = "purchase"
	TxExpense         TxType = "expense"
	TxPaymentReceived TxType = "payment_received"
	TxPaymentPaid     TxType = "payment_paid"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	switch t {
	case TxSale, TxPurchase, TxExpense, TxPaymentReceived, TxPaymentPaid:
		return true
	}
	return false
}

// IsPayment reports whether t is one of the two payment types.
func (t TxType) IsPayment() bool {
	return t == TxPaymentReceived || t == TxPaymentPaid
}

// Transaction is an immutable ledger record. Amount is in the transaction's
// own currency. BaseAmount is the same amount converted to base at write
// time and is what reversal undoes. A zero ProductID or PartyID means no
// reference.
type Transaction struct {
	ID            int64     `json:"id"`
	Type          TxType    `json:"type"`
	Amount        float64   `json:"amount"`
	CurrencyID    int64     `json:"currencyId"`
	ProductID     int64     `json:"productId,omitempty"`
	Quantity      int64     `json:"quantity,omitempty"`
	PartyID       int64     `json:"partyId,omitempty"`
	PartyName     string    `json:"partyName,omitempty"`
	Description   string    `json:"description,omitempty"`
	Date          time.Time `json:"date"`
	BaseAmount    float64   `json:"baseAmount,omitempty"`
	PrevCostPrice float64   `json:"prevCostPrice,omitempty"`
}

// TxFilter narrows a transaction listing. Zero values match everything.
// DatePrefix matches against the YYYY-MM-DD rendering of the date, so
// "2026-10" selects a month.
type TxFilter struct {
	Type       TxType
	DatePrefix string
	PartyID    int64
	ProductID  int64
}

// Match reports whether t passes the filter.
func (f TxFilter) Match(t Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.PartyID != 0 && t.PartyID != f.PartyID {
		return false
	}
	if f.ProductID != 0 && t.ProductID != f.ProductID {
		return false
	}
	if f.DatePrefix != "" {
		day := t.Date.Format(time.DateOnly)
		if len(f.DatePrefix) > len(day) || day[:len(f.DatePrefix)] != f.DatePrefix {
			return false
		}
	}
	return true
}

// ─── Users & Settings ───────────────────────────────────────────────────────

// User is a stored account. Only the hash is kept.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Settings holds application preferences.
type Settings struct {
	ID           int64  `json:"id"`
	BaseCurrency string `json:"baseCurrency"`
	Language     string `json:"language"`
	DateFormat   string `json:"dateFormat"`
}

// ─── Snapshot ───────────────────────────────────────────────────────────────

// Snapshot is the bulk export document: every collection plus a stamp.
type Snapshot struct {
	Users            []User        `json:"users"`
	Categories       []Category    `json:"categories"`
	Products         []Product     `json:"products"`
	ExchangeRates    []Currency    `json:"exchange_rates"`
	Transactions     []Transaction `json:"transactions"`
	CreditorsDebtors []Party       `json:"creditors_debtors"`
	Settings         []Settings    `json:"settings"`
	ExportDate       time.Time     `json:"exportDate"`
}

// RecordCount returns the number of records across all collections.
func (s Snapshot) RecordCount() int {
	return len(s.Users) + len(s.Categories) + len(s.Products) +
		len(s.ExchangeRates) + len(s.Transactions) +
		len(s.CreditorsDebtors) + len(s.Settings)
}
