package report

import (
	"fmt"
	"io"

	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/xuri/excelize/v2"
)

const (
	comparisonSheet = "Perbandingan"
	marketSheet     = "Harga Pasar"
	summarySheet    = "Ringkasan"
)

var comparisonHeaders = []string{
	"ID Komoditas", "Komoditas", "Satuan", "Kategori",
	"Harga Nasional", "Tanggal Nasional", "Rata-rata Pasar", "Jumlah Pasar",
	"Selisih", "Selisih (%)",
}

var marketHeaders = []string{
	"ID Komoditas", "Komoditas", "Pasar", "Lokasi", "Kualitas", "Tanggal", "Harga",
}

// ComparisonExport comparison and the window it was computed over
type ComparisonExport struct {
	Comparison reconcile.Comparison
	StartDate  string
	EndDate    string
}

// WriteComparisonXLSX writes the comparison as a workbook with one row per
// commodity, one row per market observation, and a summary sheet.
func WriteComparisonXLSX(w io.Writer, export ComparisonExport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), comparisonSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(marketSheet); err != nil {
		return fmt.Errorf("failed to create market sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, comparisonSheet, 1, toRow(comparisonHeaders)); err != nil {
		return err
	}
	if err := writeRow(f, marketSheet, 1, toRow(marketHeaders)); err != nil {
		return err
	}

	marketRow := 2
	for i, res := range export.Comparison.Results {
		row := []interface{}{
			res.Commodity.ID,
			res.Commodity.Name,
			res.Commodity.Unit,
			string(res.Commodity.Category),
			cell(res.NationalPrice),
			res.NationalDate,
			cell(res.AverageMarketPrice),
			len(res.MarketPrices),
			cell(res.Difference),
			cell(res.DifferencePercentage),
		}
		if err := writeRow(f, comparisonSheet, i+2, row); err != nil {
			return err
		}

		for _, m := range res.MarketPrices {
			if err := writeRow(f, marketSheet, marketRow, []interface{}{
				res.Commodity.ID,
				res.Commodity.Name,
				m.MarketName,
				m.MarketLocation,
				string(m.Quality),
				m.DateKey(),
				m.Price,
			}); err != nil {
				return err
			}
			marketRow++
		}
	}

	summary := export.Comparison.Summary
	summaryRows := [][]interface{}{
		{"Periode", export.StartDate + " s/d " + export.EndDate},
		{"Jumlah Komoditas", summary.TotalCommodities},
		{"Terbandingkan", summary.Resolved},
		{"Tanpa Pembanding", summary.Unresolved},
		{"Pasar Lebih Mahal", summary.HigherInMarket},
		{"Pasar Lebih Murah", summary.LowerInMarket},
		{"Sama", summary.Equal},
		{"Rata-rata Selisih", cell(summary.AverageDifference)},
	}
	for i, row := range summaryRows {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}

	for sheet, width := range map[string]int{comparisonSheet: len(comparisonHeaders), marketSheet: len(marketHeaders)} {
		last, _ := excelize.ColumnNumberToName(width)
		if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "B", 24); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	addr, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, addr, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// cell leaves missing values blank
func cell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
