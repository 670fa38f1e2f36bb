package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tally-books/tally/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullID stores a zero reference as NULL.
func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// mustAffect turns an UPDATE/DELETE that matched nothing into ErrNotFound.
func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func insertID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ─── Categories ─────────────────────────────────────────────────────────────

// ListCategories returns every category with its product count filled in.
func (db *DB) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := db.q.QueryContext(ctx, `
		SELECT c.id, c.name, COUNT(p.id)
		FROM categories c LEFT JOIN products p ON p.category_id = c.id
		GROUP BY c.id ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ProductCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory retrieves one category.
func (db *DB) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := db.q.QueryRowContext(ctx, `
		SELECT c.id, c.name, (SELECT COUNT(*) FROM products p WHERE p.category_id = c.id)
		FROM categories c WHERE c.id = ?
	`, id).Scan(&c.ID, &c.Name, &c.ProductCount)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// AddCategory inserts a category and returns its id.
func (db *DB) AddCategory(ctx context.Context, c domain.Category) (int64, error) {
	return insertID(db.q.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, c.Name))
}

// UpdateCategory renames a category.
func (db *DB) UpdateCategory(ctx context.Context, c domain.Category) error {
	return mustAffect(db.q.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, c.Name, c.ID))
}

// DeleteCategory removes a category.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	return mustAffect(db.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id))
}

// ─── Products ───────────────────────────────────────────────────────────────

const productColumns = `id, name, brand, category_id, cost_price, selling_price, stock`

func scanProduct(s interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := s.Scan(&p.ID, &p.Name, &p.Brand, &p.CategoryID, &p.CostPrice, &p.SellingPrice, &p.Stock)
	return p, err
}

// ListProducts returns every product.
func (db *DB) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct retrieves one product.
func (db *DB) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(db.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// AddProduct inserts a product and returns its id.
func (db *DB) AddProduct(ctx context.Context, p domain.Product) (int64, error) {
	return insertID(db.q.ExecContext(ctx, `
		INSERT INTO products (name, brand, category_id, cost_price, selling_price, stock)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.Brand, p.CategoryID, p.CostPrice, p.SellingPrice, p.Stock))
}

// UpdateProduct overwrites a product.
func (db *DB) UpdateProduct(ctx context.Context, p domain.Product) error {
	return mustAffect(db.q.ExecContext(ctx, `
		UPDATE products SET
			name = ?, brand = ?, category_id = ?,
			cost_price = ?, selling_price = ?, stock = ?
		WHERE id = ?
	`, p.Name, p.Brand, p.CategoryID, p.CostPrice, p.SellingPrice, p.Stock, p.ID))
}

// DeleteProduct removes a product. Transactions keep their snapshot.
func (db *DB) DeleteProduct(ctx context.Context, id int64) error {
	return mustAffect(db.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id))
}

// CountProductsInCategory counts products referencing a category.
func (db *DB) CountProductsInCategory(ctx context.Context, categoryID int64) (int, error) {
	var n int
	err := db.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE category_id = ?`, categoryID).Scan(&n)
	return n, err
}

// ─── Parties ────────────────────────────────────────────────────────────────

const partyColumns = `id, name, type, balance, phone, address, notes`

func scanParty(s interface{ Scan(...any) error }) (domain.Party, error) {
	var p domain.Party
	var typ string
	err := s.Scan(&p.ID, &p.Name, &typ, &p.Balance, &p.Phone, &p.Address, &p.Notes)
	p.Type = domain.PartyType(typ)
	return p, err
}

// ListParties returns every debtor and creditor.
func (db *DB) ListParties(ctx context.Context) ([]domain.Party, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT `+partyColumns+` FROM creditors_debtors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetParty retrieves one party.
func (db *DB) GetParty(ctx context.Context, id int64) (*domain.Party, error) {
	p, err := scanParty(db.q.QueryRowContext(ctx, `SELECT `+partyColumns+` FROM creditors_debtors WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// AddParty inserts a party and returns its id.
func (db *DB) AddParty(ctx context.Context, p domain.Party) (int64, error) {
	return insertID(db.q.ExecContext(ctx, `
		INSERT INTO creditors_debtors (name, type, balance, phone, address, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, string(p.Type), p.Balance, p.Phone, p.Address, p.Notes))
}

// UpdateParty overwrites a party.
func (db *DB) UpdateParty(ctx context.Context, p domain.Party) error {
	return mustAffect(db.q.ExecContext(ctx, `
		UPDATE creditors_debtors SET
			name = ?, type = ?, balance = ?, phone = ?, address = ?, notes = ?
		WHERE id = ?
	`, p.Name, string(p.Type), p.Balance, p.Phone, p.Address, p.Notes, p.ID))
}

// DeleteParty removes a party.
func (db *DB) DeleteParty(ctx context.Context, id int64) error {
	return mustAffect(db.q.ExecContext(ctx, `DELETE FROM creditors_debtors WHERE id = ?`, id))
}

// ─── Currencies ─────────────────────────────────────────────────────────────

const currencyColumns = `id, name, symbol, rate, is_base, conversion_factor`

func scanCurrency(s interface{ Scan(...any) error }) (domain.Currency, error) {
	var c domain.Currency
	var isBase int
	err := s.Scan(&c.ID, &c.Name, &c.Symbol, &c.Rate, &isBase, &c.ConversionFactor)
	c.IsBase = isBase == 1
	return c, err
}

// ListCurrencies returns every exchange-rate record.
func (db *DB) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT `+currencyColumns+` FROM exchange_rates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCurrency retrieves one exchange-rate record.
func (db *DB) GetCurrency(ctx context.Context, id int64) (*domain.Currency, error) {
	c, err := scanCurrency(db.q.QueryRowContext(ctx, `SELECT `+currencyColumns+` FROM exchange_rates WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// AddCurrency inserts an exchange-rate record and returns its id.
func (db *DB) AddCurrency(ctx context.Context, c domain.Currency) (int64, error) {
	return insertID(db.q.ExecContext(ctx, `
		INSERT INTO exchange_rates (name, symbol, rate, is_base, conversion_factor)
		VALUES (?, ?, ?, ?, ?)
	`, c.Name, c.Symbol, c.Rate, boolInt(c.IsBase), c.ConversionFactor))
}

// UpdateCurrency overwrites an exchange-rate record.
func (db *DB) UpdateCurrency(ctx context.Context, c domain.Currency) error {
	return mustAffect(db.q.ExecContext(ctx, `
		UPDATE exchange_rates SET
			name = ?, symbol = ?, rate = ?, is_base = ?, conversion_factor = ?
		WHERE id = ?
	`, c.Name, c.Symbol, c.Rate, boolInt(c.IsBase), c.ConversionFactor, c.ID))
}

// DeleteCurrency removes an exchange-rate record.
func (db *DB) DeleteCurrency(ctx context.Context, id int64) error {
	return mustAffect(db.q.ExecContext(ctx, `DELETE FROM exchange_rates WHERE id = ?`, id))
}

// ─── Transactions ───────────────────────────────────────────────────────────

const txColumns = `id, type, amount, currency_id, product_id, quantity, party_id,
	party_name, description, date, base_amount, prev_cost_price`

func scanTx(s interface{ Scan(...any) error }) (domain.Transaction, error) {
	var (
		t         domain.Transaction
		typ, date string
		productID sql.NullInt64
		partyID   sql.NullInt64
	)
	err := s.Scan(&t.ID, &typ, &t.Amount, &t.CurrencyID, &productID, &t.Quantity, &partyID,
		&t.PartyName, &t.Description, &date, &t.BaseAmount, &t.PrevCostPrice)
	t.Type = domain.TxType(typ)
	t.ProductID = productID.Int64
	t.PartyID = partyID.Int64
	t.Date = parseTime(date)
	return t, err
}

func (db *DB) queryTx(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactions returns every transaction, newest first.
func (db *DB) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return db.queryTx(ctx, `SELECT `+txColumns+` FROM transactions ORDER BY date DESC, id DESC`)
}

// ListTransactionsByParty returns a party's transactions, newest first.
func (db *DB) ListTransactionsByParty(ctx context.Context, partyID int64) ([]domain.Transaction, error) {
	return db.queryTx(ctx, `SELECT `+txColumns+` FROM transactions WHERE party_id = ? ORDER BY date DESC, id DESC`, partyID)
}

// GetTransaction retrieves one transaction.
func (db *DB) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	t, err := scanTx(db.q.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// AddTransaction appends a transaction and returns its id.
func (db *DB) AddTransaction(ctx context.Context, t domain.Transaction) (int64, error) {
	return insertID(db.q.ExecContext(ctx, `
		INSERT INTO transactions (type, amount, currency_id, product_id, quantity, party_id,
			party_name, description, date, base_amount, prev_cost_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(t.Type), t.Amount, t.CurrencyID, nullID(t.ProductID), t.Quantity, nullID(t.PartyID),
		t.PartyName, t.Description, formatTime(t.Date), t.BaseAmount, t.PrevCostPrice))
}

// DeleteTransaction removes a transaction row. Reversal is the engine's job.
func (db *DB) DeleteTransaction(ctx context.Context, id int64) error {
	return mustAffect(db.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id))
}

// CountTransactionsByParty counts transactions referencing a party.
func (db *DB) CountTransactionsByParty(ctx context.Context, partyID int64) (int, error) {
	var n int
	err := db.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE party_id = ?`, partyID).Scan(&n)
	return n, err
}

// ─── Users ──────────────────────────────────────────────────────────────────

// ListUsers returns every stored user.
func (db *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT id, email, password_hash, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		var created string
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTime(created)
		out = append(out, u)
	}
	return out, rows.Err()
}

// AddUser inserts a user and returns its id.
func (db *DB) AddUser(ctx context.Context, u domain.User) (int64, error) {
	return insertID(db.q.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)
	`, u.Email, u.PasswordHash, formatTime(u.CreatedAt)))
}

// ─── Settings ───────────────────────────────────────────────────────────────

// ListSettings returns the stored settings rows.
func (db *DB) ListSettings(ctx context.Context) ([]domain.Settings, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT id, base_currency, language, date_format FROM settings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Settings
	for rows.Next() {
		var s domain.Settings
		if err := rows.Scan(&s.ID, &s.BaseCurrency, &s.Language, &s.DateFormat); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddSettings inserts a settings row and returns its id.
func (db *DB) AddSettings(ctx context.Context, s domain.Settings) (int64, error) {
	return insertID(db.q.ExecContext(ctx, `
		INSERT INTO settings (base_currency, language, date_format) VALUES (?, ?, ?)
	`, s.BaseCurrency, s.Language, s.DateFormat))
}

// UpdateSettings overwrites a settings row.
func (db *DB) UpdateSettings(ctx context.Context, s domain.Settings) error {
	return mustAffect(db.q.ExecContext(ctx, `
		UPDATE settings SET base_currency = ?, language = ?, date_format = ? WHERE id = ?
	`, s.BaseCurrency, s.Language, s.DateFormat, s.ID))
}
