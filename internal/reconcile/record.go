package reconcile

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// DateLayout is the wire format of every observation date.
const DateLayout = "2006-01-02"

var (
	ErrMalformedRecord = errors.New("malformed price record")
)

// Category commodity category
type Category string

const (
	CategoryBeras   Category = "beras"
	CategorySayuran Category = "sayuran"
	CategoryBuah    Category = "buah"
	CategoryDaging  Category = "daging"
	CategoryIkan    Category = "ikan"
	CategoryBumbu   Category = "bumbu"
	CategoryTelur   Category = "telur"
	CategoryKacang  Category = "kacang"
	CategoryMinyak  Category = "minyak"
	CategoryLainnya Category = "lainnya"
)

// ParseCategory maps a raw category onto the known set; unknown values become lainnya.
func ParseCategory(s string) Category {
	switch c := Category(s); c {
	case CategoryBeras, CategorySayuran, CategoryBuah, CategoryDaging, CategoryIkan,
		CategoryBumbu, CategoryTelur, CategoryKacang, CategoryMinyak:
		return c
	default:
		return CategoryLainnya
	}
}

// CommoditySource tells whether a commodity comes from the national catalog.
type CommoditySource string

const (
	CommodityNational CommoditySource = "national"
	CommodityCustom   CommoditySource = "custom"
)

// Source origin of a price observation
type Source string

const (
	SourceNationalFeed     Source = "national-feed"
	SourceMarketSubmission Source = "market-submission"
	SourceManualOverride   Source = "manual-override"
)

// Quality grade of a market submission
type Quality string

const (
	QualityPremium  Quality = "premium"
	QualityStandard Quality = "standard"
	QualityEkonomis Quality = "ekonomis"
)

// ParseQuality accepts the canonical grades plus the economy aliases.
// Empty or unknown grades fall back to standard.
func ParseQuality(s string) Quality {
	switch s {
	case "premium":
		return QualityPremium
	case "ekonomis", "ekonomi", "economy":
		return QualityEkonomis
	default:
		return QualityStandard
	}
}

// Commodity identity of a priced item
type Commodity struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Category Category        `json:"category"`
	Source   CommoditySource `json:"source,omitempty"`
}

// PriceRecord canonical price observation
type PriceRecord struct {
	ID             uint      `json:"id,omitempty"`
	Commodity      Commodity `json:"commodity"`
	Price          float64   `json:"price"`
	Date           time.Time `json:"-"`
	Source         Source    `json:"source"`
	MarketName     string    `json:"market_name,omitempty"`
	MarketLocation string    `json:"market_location,omitempty"`
	Quality        Quality   `json:"quality,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`

	// national feed only
	GapChange     string   `json:"gap_change,omitempty"`
	GapPercentage *float64 `json:"gap_percentage,omitempty"`
}

// DateKey returns the observation date as YYYY-MM-DD.
func (r PriceRecord) DateKey() string {
	return r.Date.Format(DateLayout)
}

func (r PriceRecord) MarshalJSON() ([]byte, error) {
	type alias PriceRecord
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias(r), r.DateKey()})
}

func (r *PriceRecord) UnmarshalJSON(data []byte) error {
	type alias PriceRecord
	aux := struct {
		*alias
		Date string `json:"date"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Date == "" {
		return nil
	}
	d, err := ParseDate(aux.Date)
	if err != nil {
		return err
	}
	r.Date = d
	return nil
}

// ParseDate parses a YYYY-MM-DD date, or the date part of an RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsFutureDate reports whether d falls after the calendar day of now.
func IsFutureDate(d, now time.Time) bool {
	return Day(d).After(Day(now))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func float64Ptr(v float64) *float64 {
	return &v
}
