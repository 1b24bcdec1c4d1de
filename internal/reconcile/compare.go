package reconcile

import (
	"sort"
	"time"
)

// ComparisonResult national vs. market prices of one commodity in a window
type ComparisonResult struct {
	Commodity            Commodity     `json:"commodity"`
	NationalPrice        *float64      `json:"national_price"`
	NationalDate         string        `json:"national_date,omitempty"`
	MarketPrices         []PriceRecord `json:"market_prices"`
	AverageMarketPrice   *float64      `json:"average_market_price"`
	Difference           *float64      `json:"difference"`
	DifferencePercentage *float64      `json:"difference_percentage"`
}

// Resolved reports whether both sides were present.
func (r ComparisonResult) Resolved() bool {
	return r.Difference != nil
}

// ComparisonSummary aggregate over every emitted ComparisonResult
type ComparisonSummary struct {
	TotalCommodities  int      `json:"total_commodities"`
	Resolved          int      `json:"resolved"`
	Unresolved        int      `json:"unresolved"`
	HigherInMarket    int      `json:"higher_in_market"`
	LowerInMarket     int      `json:"lower_in_market"`
	Equal             int      `json:"equal"`
	AverageDifference *float64 `json:"average_difference"`
}

// CompareInput parameters of one comparison run. CommodityID 0 compares every
// commodity present in either source. Zero From/To leave that side of the window open.
type CompareInput struct {
	CommodityID uint
	From        time.Time
	To          time.Time
	National    []PriceRecord
	Market      []PriceRecord
}

// Comparison output of Compare
type Comparison struct {
	Results []ComparisonResult `json:"data"`
	Summary ComparisonSummary  `json:"summary"`
}

// Compare joins national and market prices per commodity and computes deltas.
// It does not mutate its input and its output depends only on the input.
func Compare(in CompareInput) Comparison {
	type bucket struct {
		commodity    Commodity
		national     *PriceRecord
		market       []PriceRecord
		hasCommodity bool
	}

	buckets := make(map[uint]*bucket)
	get := func(c Commodity) *bucket {
		b, ok := buckets[c.ID]
		if !ok {
			b = &bucket{commodity: c, hasCommodity: c.Name != ""}
			buckets[c.ID] = b
		} else if !b.hasCommodity && c.Name != "" {
			b.commodity = c
			b.hasCommodity = true
		}
		return b
	}

	for i := range in.National {
		rec := in.National[i]
		if !in.accepts(rec) {
			continue
		}
		b := get(rec.Commodity)
		// latest date wins; same date keeps the later record
		if b.national == nil || !rec.Date.Before(b.national.Date) {
			r := rec
			b.national = &r
		}
		if rec.Commodity.Source == CommodityNational {
			b.commodity = rec.Commodity
			b.hasCommodity = true
		}
	}

	for i := range in.Market {
		rec := in.Market[i]
		if !in.accepts(rec) {
			continue
		}
		b := get(rec.Commodity)
		b.market = append(b.market, rec)
	}

	results := make([]ComparisonResult, 0, len(buckets))
	for _, b := range buckets {
		if b.national == nil && len(b.market) == 0 {
			continue
		}

		res := ComparisonResult{
			Commodity:    b.commodity,
			MarketPrices: b.market,
		}
		if res.MarketPrices == nil {
			res.MarketPrices = []PriceRecord{}
		}

		var national float64
		if b.national != nil {
			national = b.national.Price
			res.NationalPrice = float64Ptr(national)
			res.NationalDate = b.national.DateKey()
		}

		if len(b.market) > 0 {
			sum := 0.0
			for _, m := range b.market {
				sum += m.Price
			}
			avg := sum / float64(len(b.market))
			res.AverageMarketPrice = float64Ptr(round2(avg))

			if b.national != nil {
				diff := avg - national
				res.Difference = float64Ptr(round2(diff))
				if national != 0 {
					res.DifferencePercentage = float64Ptr(round2(diff / national * 100))
				}
			}
		}

		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Commodity.Name != results[j].Commodity.Name {
			return results[i].Commodity.Name < results[j].Commodity.Name
		}
		return results[i].Commodity.ID < results[j].Commodity.ID
	})

	return Comparison{
		Results: results,
		Summary: Summarize(results),
	}
}

// Summarize scans resolved results; unresolved ones are counted but kept out of
// the average.
func Summarize(results []ComparisonResult) ComparisonSummary {
	summary := ComparisonSummary{TotalCommodities: len(results)}

	total := 0.0
	for _, r := range results {
		if !r.Resolved() {
			summary.Unresolved++
			continue
		}
		summary.Resolved++
		total += *r.Difference
		switch {
		case *r.Difference > 0:
			summary.HigherInMarket++
		case *r.Difference < 0:
			summary.LowerInMarket++
		default:
			summary.Equal++
		}
	}

	if summary.Resolved > 0 {
		summary.AverageDifference = float64Ptr(round2(total / float64(summary.Resolved)))
	}
	return summary
}

func (in CompareInput) accepts(rec PriceRecord) bool {
	if rec.Commodity.ID == 0 {
		return false
	}
	if in.CommodityID != 0 && rec.Commodity.ID != in.CommodityID {
		return false
	}
	day := Day(rec.Date)
	if !in.From.IsZero() && day.Before(Day(in.From)) {
		return false
	}
	if !in.To.IsZero() && day.After(Day(in.To)) {
		return false
	}
	return true
}
