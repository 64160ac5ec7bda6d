package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DefaultBaseURL 测试网 REST 地址。
const DefaultBaseURL = "https://api.etherealtest.net"

// EtherealRESTClient Ethereal REST 客户端。HTTPClient 可注入 httptest 以便测试；
// 限流器与熔断器保护传输层，核心引擎自身不做重试。
type EtherealRESTClient struct {
	BaseURL    string
	Address    string
	PrivateKey string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Breaker    *gobreaker.CircuitBreaker
}

// NewEtherealRESTClient 构造客户端；timeout 为单次调用超时。
func NewEtherealRESTClient(baseURL, address, privateKey string, timeout time.Duration) *EtherealRESTClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EtherealRESTClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Address:    address,
		PrivateKey: privateKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Limiter:    rate.NewLimiter(rate.Limit(10), 20),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ethereal-rest",
			Timeout: 30 * time.Second,
		}),
	}
}

// Place 提交限价单。
func (c *EtherealRESTClient) Place(ctx context.Context, req PlaceRequest) (PlaceResponse, error) {
	var resp PlaceResponse
	err := c.do(ctx, http.MethodPost, "/v1/order", nil, req, &resp)
	return resp, err
}

// Cancel 按 ID 列表批量撤单。
func (c *EtherealRESTClient) Cancel(ctx context.Context, req CancelRequest) (CancelResponse, error) {
	var resp CancelResponse
	err := c.do(ctx, http.MethodPost, "/v1/order/cancel", nil, req, &resp)
	return resp, err
}

// Positions 查询子账户在指定产品上的仓位。
func (c *EtherealRESTClient) Positions(ctx context.Context, subaccountID string, productIDs []string) (PositionsResponse, error) {
	q := url.Values{}
	q.Set("subaccountId", subaccountID)
	for _, id := range productIDs {
		q.Add("productIds", id)
	}
	var resp PositionsResponse
	err := c.do(ctx, http.MethodGet, "/v1/position", q, nil, &resp)
	return resp, err
}

// ListProducts 拉取产品目录（tick size、数量上下限、productId）。
func (c *EtherealRESTClient) ListProducts(ctx context.Context) (ProductsResponse, error) {
	var resp ProductsResponse
	err := c.do(ctx, http.MethodGet, "/v1/product", nil, nil, &resp)
	return resp, err
}

// ListOrders 查询子账户订单，statuses 可选。
func (c *EtherealRESTClient) ListOrders(ctx context.Context, subaccountID string, statuses []string) (OrdersResponse, error) {
	q := url.Values{}
	q.Set("subaccountId", subaccountID)
	for _, s := range statuses {
		q.Add("statuses", s)
	}
	var resp OrdersResponse
	err := c.do(ctx, http.MethodGet, "/v1/order", q, nil, &resp)
	return resp, err
}

func (c *EtherealRESTClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if c.HTTPClient == nil {
		return fmt.Errorf("%s: http client not set", path)
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: limiter: %w", path, err)
		}
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", path, err)
		}
	}

	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	call := func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.Address != "" {
			req.Header.Set("X-Ethereal-Address", c.Address)
		}
		if c.PrivateKey != "" && len(payload) > 0 {
			req.Header.Set("X-Ethereal-Signature", SignPayload(payload, c.PrivateKey))
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 {
			return nil, &APIError{Status: resp.StatusCode, Op: method + " " + path, Body: strings.TrimSpace(string(raw))}
		}
		return raw, nil
	}

	var raw interface{}
	var err error
	if c.Breaker != nil {
		raw, err = c.Breaker.Execute(call)
	} else {
		raw, err = call()
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw.([]byte), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
