package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Raw is a price payload as returned by one of the upstream endpoint families.
// Only NationalRaw and MarketRaw implement it.
type Raw interface {
	rawRecord()
}

// RawCommodity nested commodity object of upstream payloads
type RawCommodity struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Category string `json:"category"`
	Source   string `json:"source,omitempty"`
}

// NationalRaw item of GET /prices/current
type NationalRaw struct {
	ID            uint            `json:"id"`
	Price         json.RawMessage `json:"price"`
	Date          string          `json:"date,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
	GapChange     string          `json:"gap_change,omitempty"`
	GapPercentage json.RawMessage `json:"gap_percentage,omitempty"`
	Commodity     *RawCommodity   `json:"commodity,omitempty"`
}

// MarketRaw item of GET /market-prices
type MarketRaw struct {
	ID             uint            `json:"id"`
	Price          json.RawMessage `json:"price"`
	Date           string          `json:"date"`
	CommodityID    uint            `json:"commodity_id,omitempty"`
	CommodityName  string          `json:"commodity_name,omitempty"`
	Unit           string          `json:"unit,omitempty"`
	Category       string          `json:"category,omitempty"`
	Commodity      *RawCommodity   `json:"commodity,omitempty"`
	MarketName     string          `json:"market_name"`
	MarketLocation string          `json:"market_location,omitempty"`
	Quality        string          `json:"quality,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
}

func (NationalRaw) rawRecord() {}
func (MarketRaw) rawRecord()   {}

// Normalizer maps upstream payloads onto PriceRecord. The clock decides which
// dates count as future.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer returns a Normalizer using now as its clock (time.Now when nil).
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize converts one raw payload. It fails with ErrMalformedRecord when price,
// date or commodity reference are unusable.
func (n *Normalizer) Normalize(raw Raw) (PriceRecord, error) {
	switch r := raw.(type) {
	case NationalRaw:
		return n.national(r)
	case *NationalRaw:
		if r == nil {
			return PriceRecord{}, fmt.Errorf("%w: nil record", ErrMalformedRecord)
		}
		return n.national(*r)
	case MarketRaw:
		return n.market(r)
	case *MarketRaw:
		if r == nil {
			return PriceRecord{}, fmt.Errorf("%w: nil record", ErrMalformedRecord)
		}
		return n.market(*r)
	default:
		return PriceRecord{}, fmt.Errorf("%w: unsupported payload %T", ErrMalformedRecord, raw)
	}
}

// NormalizeAll converts every payload it can and reports how many were dropped.
func (n *Normalizer) NormalizeAll(raws []Raw) ([]PriceRecord, int) {
	records := make([]PriceRecord, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		rec, err := n.Normalize(raw)
		if err != nil {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

// NormalizeNational is NormalizeAll for a national feed page.
func (n *Normalizer) NormalizeNational(raws []NationalRaw) ([]PriceRecord, int) {
	in := make([]Raw, len(raws))
	for i := range raws {
		in[i] = raws[i]
	}
	return n.NormalizeAll(in)
}

// NormalizeMarket is NormalizeAll for a market submission page.
func (n *Normalizer) NormalizeMarket(raws []MarketRaw) ([]PriceRecord, int) {
	in := make([]Raw, len(raws))
	for i := range raws {
		in[i] = raws[i]
	}
	return n.NormalizeAll(in)
}

func (n *Normalizer) national(r NationalRaw) (PriceRecord, error) {
	price, err := parsePrice(r.Price)
	if err != nil {
		return PriceRecord{}, err
	}
	if r.Commodity == nil || r.Commodity.ID == 0 {
		return PriceRecord{}, fmt.Errorf("%w: missing commodity", ErrMalformedRecord)
	}

	rawDate := r.Date
	if rawDate == "" {
		rawDate = r.UpdatedAt
	}
	date, err := n.date(rawDate)
	if err != nil {
		return PriceRecord{}, err
	}

	rec := PriceRecord{
		ID:        r.ID,
		Commodity: commodityFrom(r.Commodity, CommodityNational),
		Price:     price,
		Date:      date,
		Source:    SourceNationalFeed,
		GapChange: r.GapChange,
	}
	if gap, err := parseNumber(r.GapPercentage); err == nil {
		rec.GapPercentage = float64Ptr(gap)
	}
	return rec, nil
}

func (n *Normalizer) market(r MarketRaw) (PriceRecord, error) {
	price, err := parsePrice(r.Price)
	if err != nil {
		return PriceRecord{}, err
	}

	var commodity Commodity
	switch {
	case r.Commodity != nil && r.Commodity.ID != 0:
		commodity = commodityFrom(r.Commodity, CommodityCustom)
	case r.CommodityID != 0:
		commodity = Commodity{
			ID:       r.CommodityID,
			Name:     r.CommodityName,
			Unit:     r.Unit,
			Category: ParseCategory(r.Category),
			Source:   CommodityCustom,
		}
	default:
		return PriceRecord{}, fmt.Errorf("%w: missing commodity", ErrMalformedRecord)
	}

	date, err := n.date(r.Date)
	if err != nil {
		return PriceRecord{}, err
	}

	marketName := strings.TrimSpace(r.MarketName)
	if marketName == "" {
		return PriceRecord{}, fmt.Errorf("%w: missing market name", ErrMalformedRecord)
	}

	return PriceRecord{
		ID:             r.ID,
		Commodity:      commodity,
		Price:          price,
		Date:           date,
		Source:         SourceMarketSubmission,
		MarketName:     marketName,
		MarketLocation: strings.TrimSpace(r.MarketLocation),
		Quality:        ParseQuality(r.Quality),
		Notes:          r.Notes,
		ImageURL:       r.ImageURL,
	}, nil
}

func (n *Normalizer) date(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("%w: missing date", ErrMalformedRecord)
	}
	d, err := ParseDate(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrMalformedRecord, s)
	}
	if IsFutureDate(d, n.now()) {
		return time.Time{}, fmt.Errorf("%w: future date %s", ErrMalformedRecord, d.Format(DateLayout))
	}
	return d, nil
}

func commodityFrom(c *RawCommodity, fallback CommoditySource) Commodity {
	source := CommoditySource(c.Source)
	if source != CommodityNational && source != CommodityCustom {
		source = fallback
	}
	return Commodity{
		ID:       c.ID,
		Name:     c.Name,
		Unit:     c.Unit,
		Category: ParseCategory(c.Category),
		Source:   source,
	}
}

func parsePrice(raw json.RawMessage) (float64, error) {
	price, err := parseNumber(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: price must be positive, got %v", ErrMalformedRecord, price)
	}
	return price, nil
}

// parseNumber accepts a JSON number or a JSON string holding a number.
func parseNumber(raw json.RawMessage) (float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, fmt.Errorf("missing number")
	}

	var v float64
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric value %q", s)
		}
		v = parsed
	} else if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, fmt.Errorf("non-numeric value %s", string(trimmed))
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return v, nil
}
