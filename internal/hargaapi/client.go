package hargaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

// maxPages bounds ListAll* loops against a backend that never reports the last page
const maxPages = 500

// Client represents a price backend API client
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.PageSize == 0 {
		config.PageSize = defaultPageSize
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() Config {
	return c.config
}

// ListCurrentPrices fetches one page of national prices
func (c *Client) ListCurrentPrices(ctx context.Context, sess Session, q CurrentPricesQuery) (*CurrentPricesPage, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	setPaging(params, q.Page, q.Limit)

	env, err := c.doRequest(ctx, sess, http.MethodGet, "/prices/current", params, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list current prices: %w", err)
	}

	page := &CurrentPricesPage{}
	if err := decodeData(env.Data, &page.Items); err != nil {
		return nil, err
	}
	if env.Pagination != nil {
		page.Pagination = *env.Pagination
	}
	return page, nil
}

// ListAllCurrentPrices pages through every national price of a category
func (c *Client) ListAllCurrentPrices(ctx context.Context, sess Session, category string) ([]reconcile.NationalRaw, error) {
	var all []reconcile.NationalRaw
	for page := 1; page <= maxPages; page++ {
		res, err := c.ListCurrentPrices(ctx, sess, CurrentPricesQuery{
			Category: category,
			Page:     page,
			Limit:    c.config.PageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, res.Items...)
		if lastPage(res.Pagination, page, len(res.Items), c.config.PageSize) {
			break
		}
	}
	return all, nil
}

// ListMarketPrices fetches one page of market submissions
func (c *Client) ListMarketPrices(ctx context.Context, sess Session, q MarketPricesQuery) (*MarketPricesPage, error) {
	params := url.Values{}
	if q.CommodityID != 0 {
		params.Set("commodity_id", strconv.FormatUint(uint64(q.CommodityID), 10))
	}
	if q.MarketName != "" {
		params.Set("market_name", q.MarketName)
	}
	if q.StartDate != "" {
		params.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("end_date", q.EndDate)
	}
	setPaging(params, q.Page, q.Limit)

	env, err := c.doRequest(ctx, sess, http.MethodGet, "/market-prices", params, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list market prices: %w", err)
	}

	page := &MarketPricesPage{}
	if err := decodeData(env.Data, &page.Items); err != nil {
		return nil, err
	}
	if env.Pagination != nil {
		page.Pagination = *env.Pagination
	}
	return page, nil
}

// ListAllMarketPrices pages through every market submission matching q
func (c *Client) ListAllMarketPrices(ctx context.Context, sess Session, q MarketPricesQuery) ([]reconcile.MarketRaw, error) {
	var all []reconcile.MarketRaw
	q.Limit = c.config.PageSize
	for page := 1; page <= maxPages; page++ {
		q.Page = page
		res, err := c.ListMarketPrices(ctx, sess, q)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Items...)
		if lastPage(res.Pagination, page, len(res.Items), q.Limit) {
			break
		}
	}
	return all, nil
}

// CompareMarketPrices returns the backend's own comparison
func (c *Client) CompareMarketPrices(ctx context.Context, sess Session, q CompareQuery) (*RemoteComparison, error) {
	params := url.Values{}
	if q.CommodityID != 0 {
		params.Set("commodity_id", strconv.FormatUint(uint64(q.CommodityID), 10))
	}
	if q.Date != "" {
		params.Set("date", q.Date)
	}

	env, err := c.doRequest(ctx, sess, http.MethodGet, "/market-prices/compare", params, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to compare market prices: %w", err)
	}

	out := &RemoteComparison{}
	if err := decodeData(env.Data, &out.Results); err != nil {
		return nil, err
	}
	if len(env.Summary) > 0 {
		if err := json.Unmarshal(env.Summary, &out.Summary); err != nil {
			return nil, fmt.Errorf("%w: summary: %v", ErrUnexpectedResponse, err)
		}
	}
	return out, nil
}

// MarketPriceTrends returns the national and market series of a commodity
func (c *Client) MarketPriceTrends(ctx context.Context, sess Session, commodityID uint) (*TrendData, error) {
	params := url.Values{}
	params.Set("commodity_id", strconv.FormatUint(uint64(commodityID), 10))

	env, err := c.doRequest(ctx, sess, http.MethodGet, "/market-prices/trends", params, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market price trends: %w", err)
	}

	var data TrendData
	if err := decodeData(env.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SubmitOverride posts an override as multipart form data
func (c *Client) SubmitOverride(ctx context.Context, sess Session, req OverrideRequest) (*SubmitResult, error) {
	fields := map[string]string{
		"commodity_id":   strconv.FormatUint(uint64(req.CommodityID), 10),
		"override_price": formatPrice(req.OverridePrice),
		"reason":         req.Reason,
		"source_info":    req.SourceInfo,
		"date":           req.Date,
	}
	if req.EvidenceKey != "" {
		fields["evidence_key"] = req.EvidenceKey
	}

	body, contentType, err := buildMultipart(fields, "evidence", req.Evidence)
	if err != nil {
		return nil, err
	}

	env, err := c.doRequest(ctx, sess, http.MethodPost, "/overrides", nil, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to submit override: %w", err)
	}
	return &SubmitResult{Message: env.Message, Data: env.Data}, nil
}

// CreateMarketPrice posts a market submission
func (c *Client) CreateMarketPrice(ctx context.Context, sess Session, req MarketPriceRequest) (*reconcile.MarketRaw, error) {
	return c.writeMarketPrice(ctx, sess, http.MethodPost, "/market-prices", req)
}

// UpdateMarketPrice replaces a market submission
func (c *Client) UpdateMarketPrice(ctx context.Context, sess Session, id uint, req MarketPriceRequest) (*reconcile.MarketRaw, error) {
	return c.writeMarketPrice(ctx, sess, http.MethodPut, fmt.Sprintf("/market-prices/%d", id), req)
}

// DeleteMarketPrice deletes a market submission
func (c *Client) DeleteMarketPrice(ctx context.Context, sess Session, id uint) error {
	if _, err := c.doRequest(ctx, sess, http.MethodDelete, fmt.Sprintf("/market-prices/%d", id), nil, nil, ""); err != nil {
		return fmt.Errorf("failed to delete market price: %w", err)
	}
	return nil
}

func (c *Client) writeMarketPrice(ctx context.Context, sess Session, method, path string, req MarketPriceRequest) (*reconcile.MarketRaw, error) {
	var (
		body        io.Reader
		contentType string
	)

	if req.Image != nil {
		fields := map[string]string{
			"price":       formatPrice(req.Price),
			"date":        req.Date,
			"market_name": req.MarketName,
		}
		if req.CommodityID != 0 {
			fields["commodity_id"] = strconv.FormatUint(uint64(req.CommodityID), 10)
		}
		for k, v := range map[string]string{
			"commodity_name":  req.CommodityName,
			"unit":            req.Unit,
			"category":        req.Category,
			"market_location": req.MarketLocation,
			"quality":         req.Quality,
			"notes":           req.Notes,
		} {
			if v != "" {
				fields[k] = v
			}
		}
		b, ct, err := buildMultipart(fields, "image", req.Image)
		if err != nil {
			return nil, err
		}
		body, contentType = b, ct
	} else {
		payload, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	}

	env, err := c.doRequest(ctx, sess, method, path, nil, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to save market price: %w", err)
	}

	var raw reconcile.MarketRaw
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := decodeData(env.Data, &raw); err != nil {
			return nil, err
		}
	}
	return &raw, nil
}

// doRequest performs an HTTP request against the backend and unwraps the envelope
func (c *Client) doRequest(ctx context.Context, sess Session, method, path string, query url.Values, body io.Reader, contentType string) (*envelope, error) {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// the token only ever enters the request here
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	logger.Debug("Calling price backend", map[string]interface{}{
		"method": method,
		"path":   path,
		"query":  query.Encode(),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrNetwork, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		if decodeErr == nil && env.message() != "" {
			return nil, &RejectedError{StatusCode: resp.StatusCode, Message: env.message()}
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, truncate(raw))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, truncate(raw))
	}

	if len(bytes.TrimSpace(raw)) == 0 && resp.StatusCode == http.StatusNoContent {
		return &envelope{}, nil
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, decodeErr)
	}
	if env.Success != nil && !*env.Success {
		return nil, &RejectedError{StatusCode: resp.StatusCode, Message: env.message()}
	}
	return &env, nil
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

func buildMultipart(fields map[string]string, fileField string, file *File) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	if file != nil && file.Reader != nil {
		part, err := w.CreateFormFile(fileField, file.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, "", fmt.Errorf("failed to copy file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func setPaging(params url.Values, page, limit int) {
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
}

func lastPage(p Pagination, page, got, limit int) bool {
	if got == 0 {
		return true
	}
	if p.TotalPages > 0 {
		return page >= p.TotalPages
	}
	if p.Total > 0 && limit > 0 {
		return page*limit >= p.Total
	}
	return got < limit
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
