package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E07A5F"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
)

const noValue = "-"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeHeader(w io.Writer, columns ...string) {
	styled := make([]string, len(columns))
	for i, c := range columns {
		styled[i] = headerStyle.Render(c)
	}
	fmt.Fprintln(w, strings.Join(styled, "\t"))
}

// rupiah formats an amount as Rp 13.500 (or Rp 13.500,25 with a fraction)
func rupiah(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := int64(v)
	cents := int64((v-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole++
		cents = 0
	}

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	out := "Rp " + b.String()
	if cents > 0 {
		out += fmt.Sprintf(",%02d", cents)
	}
	if neg {
		out = "-" + out
	}
	return out
}

func optRupiah(v *float64) string {
	if v == nil {
		return noValue
	}
	return rupiah(*v)
}

func optPercent(v *float64) string {
	if v == nil {
		return noValue
	}
	return fmt.Sprintf("%+.2f%%", *v)
}

func renderComparison(w io.Writer, cmp reconcile.Comparison) error {
	if len(cmp.Results) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("Tidak ada data perbandingan."))
		return nil
	}

	tw := newTable(w)
	writeHeader(tw, "ID", "Komoditas", "Nasional", "Rata-rata Pasar", "Pasar", "Selisih", "Selisih (%)")
	for _, r := range cmp.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Commodity.ID,
			r.Commodity.Name,
			optRupiah(r.NationalPrice),
			optRupiah(r.AverageMarketPrice),
			len(r.MarketPrices),
			optRupiah(r.Difference),
			optPercent(r.DifferencePercentage),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := cmp.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %d komoditas, %d lengkap, %d tanpa pembanding\n",
		titleStyle.Render("Ringkasan:"), s.TotalCommodities, s.Resolved, s.Unresolved)
	fmt.Fprintf(w, "  lebih mahal di pasar: %d, lebih murah: %d, sama: %d, rata-rata selisih: %s\n",
		s.HigherInMarket, s.LowerInMarket, s.Equal, optRupiah(s.AverageDifference))
	return nil
}

func renderTrend(w io.Writer, points []reconcile.TrendPoint) error {
	if len(points) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("Tidak ada data tren."))
		return nil
	}

	tw := newTable(w)
	writeHeader(tw, "Tanggal", "Nasional", "Pasar")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Date, optRupiah(p.National), optRupiah(p.Market))
	}
	return tw.Flush()
}

func renderEvaluation(w io.Writer, eval reconcile.OverrideEvaluation, threshold float64) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Harga usulan:"), rupiah(eval.ProposedPrice))
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Harga saat ini:"), optRupiah(eval.CurrentPrice))
	if !eval.HasBaseline {
		fmt.Fprintln(w, warningStyle.Render("Belum ada harga pembanding, deviasi dihitung 0%."))
	}
	fmt.Fprintf(w, "%s %.2f%% (ambang %.0f%%)\n", headerStyle.Render("Deviasi:"), eval.DeviationPercent, threshold)

	if eval.Tier == reconcile.TierRequiresAdmin {
		fmt.Fprintln(w, warningStyle.Render("Perlu persetujuan admin."))
		return
	}
	fmt.Fprintln(w, successStyle.Render("Disetujui otomatis."))
}
