package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tally-books/tally/internal/domain"
)

// XLSXContentType is the media type of WriteXLSX output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX renders every report as a workbook with the sheets General,
// Categories and Items.
func (s *Service) WriteXLSX(ctx context.Context, w Window, out io.Writer) error {
	b, err := s.All(ctx, w)
	if err != nil {
		return err
	}
	f, err := RenderXLSX(b)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// RenderXLSX builds the workbook for b.
func RenderXLSX(b Bundle) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "General"); err != nil {
		return nil, err
	}
	sym := b.Base.Symbol

	general := [][]any{
		{"Figure", "Amount", "Display"},
		{"Total sales", domain.Round2(b.General.TotalSales), domain.FormatAmount(b.General.TotalSales, sym)},
		{"Total cost", domain.Round2(b.General.TotalCost), domain.FormatAmount(b.General.TotalCost, sym)},
		{"Total expense", domain.Round2(b.General.TotalExpense), domain.FormatAmount(b.General.TotalExpense, sym)},
		{"Total profit", domain.Round2(b.General.TotalProfit), domain.FormatAmount(b.General.TotalProfit, sym)},
		{"Payments received", domain.Round2(b.General.TotalReceived), domain.FormatAmount(b.General.TotalReceived, sym)},
		{"Payments paid", domain.Round2(b.General.TotalPaid), domain.FormatAmount(b.General.TotalPaid, sym)},
		{"Net profit", domain.Round2(b.General.NetProfit), domain.FormatAmount(b.General.NetProfit, sym)},
		{"Transactions", b.General.Transactions, ""},
	}
	if err := writeRows(f, "General", general); err != nil {
		return nil, err
	}

	categories := [][]any{{"Category", "Products", "Sales", "Profit", "Stock value"}}
	for _, l := range b.Categories {
		categories = append(categories, []any{
			l.Name, l.ProductCount, domain.Round2(l.Sales), domain.Round2(l.Profit), domain.Round2(l.StockValue),
		})
	}
	if _, err := f.NewSheet("Categories"); err != nil {
		return nil, err
	}
	if err := writeRows(f, "Categories", categories); err != nil {
		return nil, err
	}

	items := [][]any{{"Product", "Brand", "Category", "Total cost", "Total sales", "Profit", "Sold", "Stock"}}
	for _, l := range b.Items {
		items = append(items, []any{
			l.Name, l.Brand, l.CategoryName, domain.Round2(l.TotalCost), domain.Round2(l.TotalSales),
			domain.Round2(l.Profit), l.QuantitySold, l.Stock,
		})
	}
	if _, err := f.NewSheet("Items"); err != nil {
		return nil, err
	}
	if err := writeRows(f, "Items", items); err != nil {
		return nil, err
	}

	f.SetColWidth("General", "A", "A", 20)
	f.SetColWidth("General", "C", "C", 22)
	f.SetColWidth("Categories", "A", "A", 20)
	f.SetColWidth("Items", "A", "C", 18)
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("%s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
