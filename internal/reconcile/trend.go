package reconcile

import (
	"sort"
	"time"
)

// DefaultLookbackDays default window of the trend chart
const DefaultLookbackDays = 30

// TrendPoint one chart entry; nil means no observation for that side.
type TrendPoint struct {
	Date     string   `json:"date"`
	National *float64 `json:"national"`
	Market   *float64 `json:"market"`
}

// DatedPrice {date, price} pair of the trends endpoint
type DatedPrice struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// BuildTrend merges both date-keyed series into one ascending series over the
// union of their dates. Gaps stay nil.
func BuildTrend(national, market map[string]float64) []TrendPoint {
	dates := make([]string, 0, len(national)+len(market))
	seen := make(map[string]struct{}, len(national)+len(market))
	for d := range national {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}
	for d := range market {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}
	// YYYY-MM-DD sorts chronologically
	sort.Strings(dates)

	points := make([]TrendPoint, 0, len(dates))
	for _, d := range dates {
		p := TrendPoint{Date: d}
		if v, ok := national[d]; ok {
			p.National = float64Ptr(v)
		}
		if v, ok := market[d]; ok {
			p.Market = float64Ptr(v)
		}
		points = append(points, p)
	}
	return points
}

// SeriesFromPoints keys points by date. Points with an invalid or future date or
// a non-positive price are dropped and counted; duplicate dates are averaged.
func SeriesFromPoints(points []DatedPrice, now time.Time) (map[string]float64, int) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	dropped := 0

	for _, p := range points {
		d, err := ParseDate(p.Date)
		if err != nil || IsFutureDate(d, now) || !(p.Price > 0) {
			dropped++
			continue
		}
		key := d.Format(DateLayout)
		sums[key] += p.Price
		counts[key]++
	}

	series := make(map[string]float64, len(sums))
	for k, sum := range sums {
		series[k] = round2(sum / float64(counts[k]))
	}
	return series, dropped
}

// SeriesFromRecords averages record prices per observation date.
func SeriesFromRecords(records []PriceRecord) map[string]float64 {
	points := make([]DatedPrice, 0, len(records))
	for _, r := range records {
		points = append(points, DatedPrice{Date: r.DateKey(), Price: r.Price})
	}
	// records are already normalized, nothing is dropped
	series, _ := SeriesFromPoints(points, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
	return series
}

// Lookback keeps the points dated within the last days days, today included.
func Lookback(points []TrendPoint, days int, now time.Time) []TrendPoint {
	if days <= 0 {
		days = DefaultLookbackDays
	}
	cutoff := Day(now).AddDate(0, 0, -(days - 1)).Format(DateLayout)
	today := Day(now).Format(DateLayout)

	out := make([]TrendPoint, 0, len(points))
	for _, p := range points {
		if p.Date >= cutoff && p.Date <= today {
			out = append(out, p)
		}
	}
	return out
}
