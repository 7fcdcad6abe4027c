package erp

import (
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

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/stocksync/internal/domain/integration"
)

// maxResponseSize is the maximum accepted response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 100
	defaultMaxPages = 500
)

// Config holds ERP API settings
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxPages          int
	RequestsPerSecond float64
}

// Validate checks credentials and fills defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" || strings.TrimSpace(c.APIKey) == "" {
		return integration.ErrErpNotConfigured
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	return nil
}

// Client implements integration.ErpService over the ERP's JSON REST API
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ integration.ErpService = (*Client)(nil)

// NewClient creates an ERP client. A zero RequestsPerSecond disables throttling.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger.With(zap.String("component", "erp_client")),
	}, nil
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type inventoryItem struct {
	SkuCode      string          `json:"sku_code"`
	Name         string          `json:"name"`
	SellableQty  decimal.Decimal `json:"sellable_qty"`
	BackorderQty decimal.Decimal `json:"backorder_qty"`
	WarehouseID  string          `json:"warehouse_id"`
	Category1    string          `json:"category1"`
	Category2    string          `json:"category2"`
	Category3    string          `json:"category3"`
}

type inventoryPage struct {
	Items   []inventoryItem `json:"items"`
	HasMore bool            `json:"has_more"`
}

type warehouseList struct {
	Warehouses []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"warehouses"`
}

type mappingList struct {
	Mappings []integration.SkuMapping `json:"mappings"`
}

func (i inventoryItem) toRecord() integration.ErpStockRecord {
	return integration.ErpStockRecord{
		SkuCode:      strings.TrimSpace(i.SkuCode),
		Name:         i.Name,
		SellableQty:  int(i.SellableQty.IntPart()),
		BackorderQty: int(i.BackorderQty.IntPart()),
		WarehouseID:  i.WarehouseID,
		Category1:    i.Category1,
		Category2:    i.Category2,
		Category3:    i.Category3,
	}
}

// ---------------------------------------------------------------------------
// ErpService
// ---------------------------------------------------------------------------

// FetchAllInventory pages through /inventory until has_more is false or
// MaxPages is reached.
func (c *Client) FetchAllInventory(ctx context.Context, pageSize int) ([]integration.ErpStockRecord, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	records := make([]integration.ErpStockRecord, 0, pageSize)
	for page := 1; ; page++ {
		if page > c.config.MaxPages {
			c.logger.Warn("Inventory page limit reached, result truncated",
				zap.Int("max_pages", c.config.MaxPages),
				zap.Int("records", len(records)))
			break
		}

		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("page_size", strconv.Itoa(pageSize))

		var resp inventoryPage
		if err := c.get(ctx, "/inventory", query, &resp); err != nil {
			return nil, fmt.Errorf("fetch inventory page %d: %w", page, err)
		}
		for _, item := range resp.Items {
			if strings.TrimSpace(item.SkuCode) == "" {
				continue
			}
			records = append(records, item.toRecord())
		}
		if !resp.HasMore || len(resp.Items) == 0 {
			break
		}
	}

	c.logger.Debug("Inventory fetched", zap.Int("records", len(records)))
	return records, nil
}

// FetchWarehouseNames resolves warehouse IDs. IDs the ERP does not know are
// left out of the result.
func (c *Client) FetchWarehouseNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	var resp warehouseList
	if err := c.get(ctx, "/warehouses", query, &resp); err != nil {
		return nil, fmt.Errorf("fetch warehouses: %w", err)
	}
	for _, w := range resp.Warehouses {
		if w.ID != "" && w.Name != "" {
			names[w.ID] = w.Name
		}
	}
	return names, nil
}

// FetchSkuMappings returns at most limit valid mapping rows.
func (c *Client) FetchSkuMappings(ctx context.Context, limit int) ([]integration.SkuMapping, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp mappingList
	if err := c.get(ctx, "/sku-mappings", query, &resp); err != nil {
		return nil, fmt.Errorf("fetch sku mappings: %w", err)
	}

	mappings := make([]integration.SkuMapping, 0, len(resp.Mappings))
	for _, m := range resp.Mappings {
		if !m.IsValid() {
			continue
		}
		mappings = append(mappings, m)
		if limit > 0 && len(mappings) >= limit {
			break
		}
	}
	return mappings, nil
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrUpstreamUnavailable, err)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("erp: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", integration.ErrUpstreamUnavailable, err)
	}

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
	}
	return nil
}

// statusError maps an HTTP status onto the integration error taxonomy
func statusError(code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", integration.ErrRateLimited, code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", integration.ErrAuthFailed, code)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", integration.ErrUpstreamUnavailable, code)
	default:
		return fmt.Errorf("%w: HTTP %d", integration.ErrRequestFailed, code)
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: timeout: %v", integration.ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%w: %v", integration.ErrUpstreamUnavailable, err)
}
