package report

import (
	"sort"
	"time"

	"github.com/tally-books/tally/internal/domain"
)

// Uncategorized names the bucket for products whose category is missing.
const Uncategorized = "uncategorized"

// Window limits a report to transactions dated in [From, To). A zero bound
// is open.
type Window struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// General is the headline report. Every figure is in the base currency.
type General struct {
	TotalSales    float64 `json:"totalSales"`
	TotalCost     float64 `json:"totalCost"`
	TotalExpense  float64 `json:"totalExpense"`
	TotalProfit   float64 `json:"totalProfit"`
	TotalReceived float64 `json:"totalReceived"`
	TotalPaid     float64 `json:"totalPaid"`
	NetProfit     float64 `json:"netProfit"`
	Transactions  int     `json:"transactions"`
}

// CategoryLine is one row of the per-category report.
type CategoryLine struct {
	CategoryID   int64   `json:"categoryId"`
	Name         string  `json:"name"`
	ProductCount int     `json:"productCount"`
	Sales        float64 `json:"sales"`
	Profit       float64 `json:"profit"`
	StockValue   float64 `json:"stockValue"`
}

// ItemLine is one row of the per-product report.
type ItemLine struct {
	ProductID    int64   `json:"productId"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand,omitempty"`
	CategoryName string  `json:"categoryName"`
	TotalCost    float64 `json:"totalCost"`
	TotalSales   float64 `json:"totalSales"`
	Profit       float64 `json:"profit"`
	QuantitySold int64   `json:"quantitySold"`
	Stock        int64   `json:"stock"`
}

// toBase converts at the table's current rates. A transaction whose
// currency no longer exists is counted unconverted.
func toBase(tbl *domain.CurrencyTable, amount float64, currencyID int64) float64 {
	v, err := tbl.ToBase(amount, currencyID)
	if err != nil {
		return amount
	}
	return v
}

// saleProfit is the sale's base amount minus its cost at the product's
// current cost price. Both sides use today's figures, so profit moves when
// rates or cost prices change after the sale.
func saleProfit(tbl *domain.CurrencyTable, t domain.Transaction, p domain.Product) float64 {
	return toBase(tbl, t.Amount, t.CurrencyID) - p.CostPrice*float64(t.Quantity)
}

func indexProducts(products []domain.Product) map[int64]domain.Product {
	m := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

// FoldGeneral computes the headline figures over txs.
func FoldGeneral(txs []domain.Transaction, products []domain.Product, tbl *domain.CurrencyTable, w Window) General {
	byID := indexProducts(products)
	var g General
	for _, t := range txs {
		if !w.Contains(t.Date) {
			continue
		}
		g.Transactions++
		amount := toBase(tbl, t.Amount, t.CurrencyID)
		switch t.Type {
		case domain.TxSale:
			g.TotalSales += amount
			if p, ok := byID[t.ProductID]; ok && t.ProductID != 0 {
				g.TotalProfit += saleProfit(tbl, t, p)
			}
		case domain.TxPurchase:
			g.TotalCost += amount
		case domain.TxExpense:
			g.TotalExpense += amount
		case domain.TxPaymentReceived:
			g.TotalReceived += amount
		case domain.TxPaymentPaid:
			g.TotalPaid += amount
		}
	}
	g.NetProfit = g.TotalProfit - g.TotalExpense
	return g
}

// FoldCategories groups sales and profit by the category of the product
// sold. Products whose category is missing share one Uncategorized line,
// present only when such products exist.
func FoldCategories(txs []domain.Transaction, products []domain.Product, cats []domain.Category, tbl *domain.CurrencyTable, w Window) []CategoryLine {
	lines := make(map[int64]*CategoryLine, len(cats)+1)
	order := make([]int64, 0, len(cats)+1)
	for _, c := range cats {
		lines[c.ID] = &CategoryLine{CategoryID: c.ID, Name: c.Name}
		order = append(order, c.ID)
	}
	lineFor := func(categoryID int64) *CategoryLine {
		if l, ok := lines[categoryID]; ok {
			return l
		}
		if l, ok := lines[0]; ok {
			return l
		}
		l := &CategoryLine{Name: Uncategorized}
		lines[0] = l
		order = append(order, 0)
		return l
	}

	byID := indexProducts(products)
	for _, p := range products {
		l := lineFor(p.CategoryID)
		l.ProductCount++
		l.StockValue += p.StockValue()
	}
	for _, t := range txs {
		if t.Type != domain.TxSale || t.ProductID == 0 || !w.Contains(t.Date) {
			continue
		}
		p, ok := byID[t.ProductID]
		if !ok {
			continue
		}
		l := lineFor(p.CategoryID)
		l.Sales += toBase(tbl, t.Amount, t.CurrencyID)
		l.Profit += saleProfit(tbl, t, p)
	}

	out := make([]CategoryLine, 0, len(order))
	for _, id := range order {
		out = append(out, *lines[id])
	}
	return out
}

// FoldItems computes per-product totals, sorted by sales, highest first.
func FoldItems(txs []domain.Transaction, products []domain.Product, cats []domain.Category, tbl *domain.CurrencyTable, w Window) []ItemLine {
	catName := make(map[int64]string, len(cats))
	for _, c := range cats {
		catName[c.ID] = c.Name
	}
	lines := make(map[int64]*ItemLine, len(products))
	for _, p := range products {
		name, ok := catName[p.CategoryID]
		if !ok {
			name = Uncategorized
		}
		lines[p.ID] = &ItemLine{
			ProductID:    p.ID,
			Name:         p.Name,
			Brand:        p.Brand,
			CategoryName: name,
			Stock:        p.Stock,
		}
	}

	byID := indexProducts(products)
	for _, t := range txs {
		if t.ProductID == 0 || !w.Contains(t.Date) {
			continue
		}
		l, ok := lines[t.ProductID]
		if !ok {
			continue
		}
		switch t.Type {
		case domain.TxSale:
			l.TotalSales += toBase(tbl, t.Amount, t.CurrencyID)
			l.Profit += saleProfit(tbl, t, byID[t.ProductID])
			l.QuantitySold += t.Quantity
		case domain.TxPurchase:
			l.TotalCost += toBase(tbl, t.Amount, t.CurrencyID)
		}
	}

	out := make([]ItemLine, 0, len(lines))
	for _, p := range products {
		out = append(out, *lines[p.ID])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalSales > out[j].TotalSales })
	return out
}
