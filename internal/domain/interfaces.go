package domain

import "context"

// ─── Record Store Interfaces ────────────────────────────────────────────────
// The record store is a set of keyed collections. Infrastructure implements
// them; the application layer depends on them. Get methods return
// ErrNotFound when the id is unknown. Add assigns and returns the id.

// CategoryStore is the categories collection.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	AddCategory(ctx context.Context, c Category) (int64, error)
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

// ProductStore is the products collection.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	AddProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id int64) error
	CountProductsInCategory(ctx context.Context, categoryID int64) (int, error)
}

// PartyStore is the creditors_debtors collection.
type PartyStore interface {
	ListParties(ctx context.Context) ([]Party, error)
	GetParty(ctx context.Context, id int64) (*Party, error)
	AddParty(ctx context.Context, p Party) (int64, error)
	UpdateParty(ctx context.Context, p Party) error
	DeleteParty(ctx context.Context, id int64) error
}

// CurrencyStore is the exchange_rates collection.
type CurrencyStore interface {
	ListCurrencies(ctx context.Context) ([]Currency, error)
	GetCurrency(ctx context.Context, id int64) (*Currency, error)
	AddCurrency(ctx context.Context, c Currency) (int64, error)
	UpdateCurrency(ctx context.Context, c Currency) error
	DeleteCurrency(ctx context.Context, id int64) error
}

// TransactionStore is the transactions collection.
type TransactionStore interface {
	ListTransactions(ctx context.Context) ([]Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	AddTransaction(ctx context.Context, t Transaction) (int64, error)
	DeleteTransaction(ctx context.Context, id int64) error
	CountTransactionsByParty(ctx context.Context, partyID int64) (int, error)
}

// UserStore is the users collection.
type UserStore interface {
	ListUsers(ctx context.Context) ([]User, error)
	AddUser(ctx context.Context, u User) (int64, error)
}

// SettingsStore is the settings collection.
type SettingsStore interface {
	ListSettings(ctx context.Context) ([]Settings, error)
	AddSettings(ctx context.Context, s Settings) (int64, error)
	UpdateSettings(ctx context.Context, s Settings) error
}

// Records is every collection at once.
type Records interface {
	CategoryStore
	ProductStore
	PartyStore
	CurrencyStore
	TransactionStore
	UserStore
	SettingsStore
}

// Store is the record store. RunInTx executes fn against a transactional
// view: when fn returns nil every write commits, otherwise none does.
type Store interface {
	Records
	RunInTx(ctx context.Context, fn func(tx Records) error) error
}
