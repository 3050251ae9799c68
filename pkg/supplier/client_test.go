package supplier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(Config{
		BaseURL: server.URL + "/api/v2/",
		Email:   "ops@example.com",
		APIKey:  "secret",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"message": message,
		"data":    data,
	})
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("缺少地址", func(t *testing.T) {
		_, err := NewHTTPClient(Config{Email: "a", APIKey: "b"})
		assert.Error(t, err)
	})

	t.Run("缺少凭证", func(t *testing.T) {
		_, err := NewHTTPClient(Config{BaseURL: "http://supplier.test"})
		assert.Error(t, err)
	})

	t.Run("默认超时", func(t *testing.T) {
		c, err := NewHTTPClient(Config{BaseURL: "http://supplier.test", Email: "a", APIKey: "b"})
		require.NoError(t, err)
		assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
	})

	t.Run("自定义 http.Client", func(t *testing.T) {
		custom := &http.Client{Timeout: time.Second}
		c, err := NewHTTPClient(Config{BaseURL: "http://supplier.test", Email: "a", APIKey: "b"}, WithHTTPClient(custom))
		require.NoError(t, err)
		assert.Same(t, custom, c.httpClient)
	})
}

func TestHTTPClient_Authenticate(t *testing.T) {
	expires := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/auth/token", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ops@example.com", body["email"])
		assert.Equal(t, "secret", body["api_key"])

		writeEnvelope(w, 200, "success", map[string]interface{}{
			"access_token": "tok-1",
			"expires_at":   expires,
		})
	})

	token, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.AccessToken)
	assert.True(t, token.ExpiresAt.Equal(expires))
}

func TestHTTPClient_SubmitOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/orders", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var req SubmitOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ORD1", req.OrderNumber)
		if assert.Len(t, req.Items, 1) {
			assert.Equal(t, "SKU-1", req.Items[0].SKU)
		}

		writeEnvelope(w, 200, "success", map[string]string{"order_id": "EXT-1"})
	})

	result, err := client.SubmitOrder(context.Background(), "tok-1", &SubmitOrderRequest{
		OrderNumber: "ORD1",
		Items:       []OrderItem{{SKU: "SKU-1", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "EXT-1", result.ExternalOrderID)

	t.Run("没有商品不发请求", func(t *testing.T) {
		_, err := client.SubmitOrder(context.Background(), "tok-1", &SubmitOrderRequest{OrderNumber: "ORD1"})
		assert.Error(t, err)
	})
}

func TestHTTPClient_GetOrderStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v2/orders/EXT 1", r.URL.Path)
		writeEnvelope(w, 200, "success", map[string]string{
			"status":          "SHIPPED",
			"tracking_number": "YT123",
			"carrier":         "YunExpress",
		})
	})

	status, err := client.GetOrderStatus(context.Background(), "tok-1", "EXT 1")
	require.NoError(t, err)
	assert.Equal(t, "SHIPPED", status.Status)
	assert.Equal(t, "YT123", status.TrackingNumber)
	assert.Equal(t, "YunExpress", status.Carrier)
	assert.Empty(t, status.TrackingURL)
}

func TestHTTPClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("限流带 Retry-After", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := client.GetOrderStatus(ctx, "tok", "EXT-1")
		throttled, ok := AsThrottled(err)
		require.True(t, ok)
		assert.Equal(t, 2*time.Minute, throttled.RetryAfter)
	})

	t.Run("令牌失效", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := client.GetOrderStatus(ctx, "tok", "EXT-1")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("服务端错误", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		})
		_, err := client.Authenticate(ctx)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "upstream down", apiErr.Message)
	})

	t.Run("业务错误码", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 1600100, "sku not found", nil)
		})
		_, err := client.SubmitOrder(ctx, "tok", &SubmitOrderRequest{Items: []OrderItem{{SKU: "X", Quantity: 1}}})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 1600100, apiErr.Code)
		assert.Equal(t, "sku not found", apiErr.Message)
	})

	t.Run("令牌为空", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, 200, "success", map[string]string{})
		})
		_, err := client.Authenticate(ctx)
		assert.Error(t, err)
	})

	t.Run("超时", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		client, err := NewHTTPClient(Config{BaseURL: server.URL, Email: "a", APIKey: "b", Timeout: 50 * time.Millisecond})
		require.NoError(t, err)
		_, err = client.GetOrderStatus(ctx, "tok", "EXT-1")
		assert.Error(t, err)
		_, throttled := AsThrottled(err)
		assert.False(t, throttled)
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"空值", "", 0},
		{"秒数", "30", 30 * time.Second},
		{"负数", "-5", 0},
		{"HTTP 日期", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"过去的日期", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"无法解析", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseRetryAfter(tt.value, now))
		})
	}
}

func TestToken_ValidAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	token := &Token{AccessToken: "tok", ExpiresAt: now.Add(10 * time.Minute)}

	assert.True(t, token.ValidAt(now, time.Minute))
	assert.False(t, token.ValidAt(now, 10*time.Minute))
	assert.False(t, token.ValidAt(now.Add(11*time.Minute), 0))
	assert.False(t, (&Token{ExpiresAt: now.Add(time.Hour)}).ValidAt(now, 0))

	var nilToken *Token
	assert.False(t, nilToken.ValidAt(now, 0))
}
