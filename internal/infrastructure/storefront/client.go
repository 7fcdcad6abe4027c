package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
)

// maxResponseSize is the maximum accepted response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

// apiPrefix is the WooCommerce REST API v3 root
const apiPrefix = "/wp-json/wc/v3"

const defaultTimeout = 30 * time.Second

// Config holds the address and credentials of one storefront site
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
}

// Validate checks credentials and fills defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" ||
		strings.TrimSpace(c.ConsumerKey) == "" ||
		strings.TrimSpace(c.ConsumerSecret) == "" {
		return integration.ErrStorefrontNotConfigured
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("%w: invalid base url: %v", integration.ErrStorefrontNotConfigured, err)
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

// Client implements integration.Storefront for a WooCommerce site
type Client struct {
	config     Config
	httpClient *http.Client
}

var _ integration.Storefront = (*Client)(nil)

// NewClient creates a storefront client
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// manageStock decodes manage_stock, which variations report as "parent"
// when the parent product manages stock.
type manageStock bool

func (m *manageStock) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "parent":
		*m = true
	default:
		*m = false
	}
	return nil
}

type wcProduct struct {
	ID            int64       `json:"id"`
	ParentID      int64       `json:"parent_id"`
	SKU           string      `json:"sku"`
	Name          string      `json:"name"`
	Type          string      `json:"type"`
	StockStatus   string      `json:"stock_status"`
	StockQuantity *int        `json:"stock_quantity"`
	ManageStock   manageStock `json:"manage_stock"`
}

func (p wcProduct) toDomain() integration.Product {
	return integration.Product{
		ID:            p.ID,
		ParentID:      p.ParentID,
		SKU:           p.SKU,
		Name:          p.Name,
		Type:          p.Type,
		StockStatus:   integration.StockStatus(p.StockStatus).Normalize(),
		StockQuantity: p.StockQuantity,
		ManageStock:   bool(p.ManageStock),
	}
}

type stockPayload struct {
	StockStatus   string `json:"stock_status"`
	ManageStock   *bool  `json:"manage_stock,omitempty"`
	StockQuantity *int   `json:"stock_quantity,omitempty"`
}

// ---------------------------------------------------------------------------
// Storefront
// ---------------------------------------------------------------------------

// FindProductBySku returns the product whose SKU equals sku, ignoring case.
// It returns nil, nil when there is none.
func (c *Client) FindProductBySku(ctx context.Context, sku string) (*integration.Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, integration.ErrInvalidSku
	}

	query := url.Values{}
	query.Set("sku", sku)

	var products []wcProduct
	if err := c.do(ctx, http.MethodGet, "/products", query, nil, &products); err != nil {
		return nil, err
	}
	for _, p := range products {
		if strings.EqualFold(strings.TrimSpace(p.SKU), sku) {
			product := p.toDomain()
			return &product, nil
		}
	}
	return nil, nil
}

// GetProduct reloads product from the site
func (c *Client) GetProduct(ctx context.Context, product *integration.Product) (*integration.Product, error) {
	var p wcProduct
	if err := c.do(ctx, http.MethodGet, productPath(product), nil, nil, &p); err != nil {
		return nil, err
	}
	out := p.toDomain()
	if out.ParentID == 0 {
		out.ParentID = product.ParentID
	}
	return &out, nil
}

// UpdateStock writes update to product
func (c *Client) UpdateStock(ctx context.Context, product *integration.Product, update integration.StockUpdate) (*integration.Product, error) {
	payload := stockPayload{
		StockStatus: update.Status.String(),
		ManageStock: update.ManageStock,
	}
	if update.ManageStock != nil && *update.ManageStock {
		payload.StockQuantity = update.Quantity
	}

	var p wcProduct
	if err := c.do(ctx, http.MethodPut, productPath(product), nil, payload, &p); err != nil {
		return nil, err
	}
	out := p.toDomain()
	if out.ParentID == 0 {
		out.ParentID = product.ParentID
	}
	return &out, nil
}

// ListProducts returns one page of products
func (c *Client) ListProducts(ctx context.Context, page, perPage int) ([]integration.Product, error) {
	var products []wcProduct
	if err := c.do(ctx, http.MethodGet, "/products", pageQuery(page, perPage), nil, &products); err != nil {
		return nil, err
	}
	out := make([]integration.Product, 0, len(products))
	for _, p := range products {
		out = append(out, p.toDomain())
	}
	return out, nil
}

// ListVariations returns one page of variations of parentID
func (c *Client) ListVariations(ctx context.Context, parentID int64, page, perPage int) ([]integration.Product, error) {
	path := "/products/" + strconv.FormatInt(parentID, 10) + "/variations"

	var variations []wcProduct
	if err := c.do(ctx, http.MethodGet, path, pageQuery(page, perPage), nil, &variations); err != nil {
		return nil, err
	}
	out := make([]integration.Product, 0, len(variations))
	for _, v := range variations {
		p := v.toDomain()
		p.ParentID = parentID
		if p.Type == "" {
			p.Type = "variation"
		}
		out = append(out, p)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func productPath(p *integration.Product) string {
	if p.IsVariation() {
		return "/products/" + strconv.FormatInt(p.ParentID, 10) + "/variations/" + strconv.FormatInt(p.ID, 10)
	}
	return "/products/" + strconv.FormatInt(p.ID, 10)
}

func pageQuery(page, perPage int) url.Values {
	query := url.Values{}
	query.Set("page", strconv.Itoa(max(page, 1)))
	query.Set("per_page", strconv.Itoa(min(max(perPage, 1), 100)))
	return query
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("storefront: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("storefront: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.config.ConsumerKey, c.config.ConsumerSecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: timeout: %v", integration.ErrUpstreamUnavailable, err)
		}
		return fmt.Errorf("%w: %v", integration.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", integration.ErrUpstreamUnavailable, err)
	}

	if err := statusError(resp.StatusCode, data); err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
	}
	return nil
}

// apiError is the WooCommerce error envelope
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusError(code int, body []byte) error {
	if code < 400 {
		return nil
	}

	detail := fmt.Sprintf("HTTP %d", code)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		detail = fmt.Sprintf("HTTP %d %s: %s", code, apiErr.Code, apiErr.Message)
	}

	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", integration.ErrProductNotFound, detail)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", integration.ErrRateLimited, detail)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", integration.ErrAuthFailed, detail)
	case code >= 500:
		return fmt.Errorf("%w: %s", integration.ErrUpstreamUnavailable, detail)
	default:
		return fmt.Errorf("%w: %s", integration.ErrRequestFailed, detail)
	}
}
