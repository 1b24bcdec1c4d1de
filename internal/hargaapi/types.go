package hargaapi

import (
	"encoding/json"
	"io"

	"github.com/hargapangan/pangan-monitor/internal/reconcile"
)

// Session carries the caller's credentials. It is passed explicitly to every
// call; the client never keeps a token of its own.
type Session struct {
	Token string
}

// Pagination represents the pagination block of list responses
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// envelope is the common response wrapper of the backend
type envelope struct {
	Success    *bool           `json:"success"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// CurrentPricesQuery represents the filters of GET /prices/current
type CurrentPricesQuery struct {
	Category string
	Page     int
	Limit    int
}

// CurrentPricesPage represents one page of national prices
type CurrentPricesPage struct {
	Items      []reconcile.NationalRaw
	Pagination Pagination
}

// MarketPricesQuery represents the filters of GET /market-prices
type MarketPricesQuery struct {
	CommodityID uint
	MarketName  string
	StartDate   string
	EndDate     string
	Page        int
	Limit       int
}

// MarketPricesPage represents one page of market submissions
type MarketPricesPage struct {
	Items      []reconcile.MarketRaw
	Pagination Pagination
}

// CompareQuery represents the filters of GET /market-prices/compare
type CompareQuery struct {
	CommodityID uint
	Date        string
}

// RemoteSummary represents the summary block of the backend comparison
type RemoteSummary struct {
	TotalCommodities  int      `json:"total_commodities"`
	AverageDifference *float64 `json:"average_difference"`
}

// RemoteComparison represents the backend's own comparison response
type RemoteComparison struct {
	Results []reconcile.ComparisonResult
	Summary RemoteSummary
}

// TrendData represents the data block of GET /market-prices/trends
type TrendData struct {
	NationalPrices []reconcile.DatedPrice `json:"national_prices"`
	MarketPrices   []reconcile.DatedPrice `json:"market_prices"`
}

// File represents an attachment sent as a multipart part
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// OverrideRequest represents the fields of POST /overrides
type OverrideRequest struct {
	CommodityID   uint
	OverridePrice float64
	Reason        string
	SourceInfo    string
	Date          string
	EvidenceKey   string
	Evidence      *File
}

// MarketPriceRequest represents the fields of POST/PUT /market-prices
type MarketPriceRequest struct {
	CommodityID    uint    `json:"commodity_id,omitempty"`
	CommodityName  string  `json:"commodity_name,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	Category       string  `json:"category,omitempty"`
	Price          float64 `json:"price"`
	Date           string  `json:"date"`
	MarketName     string  `json:"market_name"`
	MarketLocation string  `json:"market_location,omitempty"`
	Quality        string  `json:"quality,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	Image          *File   `json:"-"`
}

// SubmitResult represents the backend answer to a write
type SubmitResult struct {
	Message string
	Data    json.RawMessage
}
