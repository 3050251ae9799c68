// Package supplier 代发货供应商 API 客户端
package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout      = 15 * time.Second
	errorBodyReadLimit  = 1024
	envelopeSuccessCode = 200
	headerAccessToken   = "Authorization"
	headerRetryAfter    = "Retry-After"
	pathAuthenticate    = "auth/token"
	pathOrders          = "orders"
)

// ErrUnauthorized 令牌无效或已过期，调用方需要重新鉴权
var ErrUnauthorized = errors.New("supplier: unauthorized")

// ErrThrottled 供应商返回限流
type ErrThrottled struct {
	RetryAfter time.Duration
}

func (e *ErrThrottled) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("supplier: throttled, retry after %s", e.RetryAfter)
	}
	return "supplier: throttled"
}

// APIError 供应商返回的业务错误或非 2xx 响应
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("supplier: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supplier: status %d: %s", e.StatusCode, e.Message)
}

// AsThrottled 判断是否为限流错误
func AsThrottled(err error) (*ErrThrottled, bool) {
	var throttled *ErrThrottled
	if errors.As(err, &throttled) {
		return throttled, true
	}
	return nil, false
}

// Token 访问令牌
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidAt 令牌在 now 之后至少还有 skew 的有效期
func (t *Token) ValidAt(now time.Time, skew time.Duration) bool {
	return t != nil && t.AccessToken != "" && t.ExpiresAt.After(now.Add(skew))
}

// OrderItem 下单商品
type OrderItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// SubmitOrderRequest 下单请求
type SubmitOrderRequest struct {
	OrderNumber  string      `json:"order_number"`
	CustomerName string      `json:"customer_name"`
	Phone        string      `json:"phone,omitempty"`
	CountryCode  string      `json:"country_code"`
	City         string      `json:"city"`
	Address      string      `json:"address"`
	Zip          string      `json:"zip,omitempty"`
	Items        []OrderItem `json:"items"`
}

// SubmitOrderResult 下单结果
type SubmitOrderResult struct {
	ExternalOrderID string `json:"order_id"`
}

// OrderStatus 供应商侧订单状态，Status 为供应商原始词汇
type OrderStatus struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
}

// Client 供应商 API
// 实现不做任何重试，每次调用最多发出一个请求
type Client interface {
	Authenticate(ctx context.Context) (*Token, error)
	SubmitOrder(ctx context.Context, token string, req *SubmitOrderRequest) (*SubmitOrderResult, error)
	GetOrderStatus(ctx context.Context, token, externalOrderID string) (*OrderStatus, error)
}

// Config HTTP 客户端配置
type Config struct {
	BaseURL string
	Email   string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient 基于 JSON 的供应商 API 客户端
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	email      string
	apiKey     string
}

// Option 客户端可选项
type Option func(*HTTPClient)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTPClient 创建供应商客户端
func NewHTTPClient(cfg Config, opts ...Option) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("supplier base url is required")
	}
	if strings.TrimSpace(cfg.Email) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("supplier credentials are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		email:      cfg.Email,
		apiKey:     cfg.APIKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Authenticate 获取访问令牌
func (c *HTTPClient) Authenticate(ctx context.Context) (*Token, error) {
	payload := map[string]string{
		"email":   c.email,
		"api_key": c.apiKey,
	}

	var token Token
	if err := c.do(ctx, http.MethodPost, pathAuthenticate, "", payload, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "empty access token"}
	}
	return &token, nil
}

// SubmitOrder 向供应商下单
func (c *HTTPClient) SubmitOrder(ctx context.Context, token string, req *SubmitOrderRequest) (*SubmitOrderResult, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, errors.New("supplier order has no items")
	}

	var result SubmitOrderResult
	if err := c.do(ctx, http.MethodPost, pathOrders, token, req, &result); err != nil {
		return nil, err
	}
	if result.ExternalOrderID == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "empty order id"}
	}
	return &result, nil
}

// GetOrderStatus 查询供应商订单状态
func (c *HTTPClient) GetOrderStatus(ctx context.Context, token, externalOrderID string) (*OrderStatus, error) {
	trimmed := strings.TrimSpace(externalOrderID)
	if trimmed == "" {
		return nil, errors.New("external order id is required")
	}

	var status OrderStatus
	path := pathOrders + "/" + url.PathEscape(trimmed)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal supplier request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return fmt.Errorf("build supplier request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(headerAccessToken, "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute supplier request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ErrThrottled{RetryAfter: parseRetryAfter(resp.Header.Get(headerRetryAfter), time.Now())}
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode supplier response: %w", err)
	}
	if env.Code != envelopeSuccessCode {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode supplier data: %w", err)
	}
	return nil
}

// parseRetryAfter 支持秒数和 HTTP 日期两种格式
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
