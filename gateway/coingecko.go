package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinwatch-go/market"
)

// CoinGeckoEndpoint 公共行情快照源，无需鉴权。
const CoinGeckoEndpoint = "https://api.coingecko.com"

// ErrFetch 标记一次快照拉取失败（网络错误、超时或响应不可解析）。
// 调用方不在本轮内重试：下一个定时 tick 就是重试。
var ErrFetch = errors.New("snapshot fetch failed")

// coinMarket 对应 /api/v3/coins/markets 的单个元素；
// 数值字段可能为 null，用 NullFloat64 承接。
type coinMarket struct {
	ID        string             `json:"id"`
	Symbol    string             `json:"symbol"`
	Name      string             `json:"name"`
	Image     string             `json:"image"`
	Price     market.NullFloat64 `json:"current_price"`
	Change24h market.NullFloat64 `json:"price_change_percentage_24h"`
	MarketCap market.NullFloat64 `json:"market_cap"`
	Volume    market.NullFloat64 `json:"total_volume"`
}

// CoinGeckoClient 一个简化的快照客户端；HTTPClient 可注入 httptest。
type CoinGeckoClient struct {
	BaseURL    string
	VsCurrency string
	HTTPClient *http.Client
	Limiter    RateLimiter
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
// 超时视同拉取失败，语义与 ErrFetch 一致。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// FetchMarkets 拉取一轮完整快照。ids 为空时取源端默认页。
// 任何失败都包装为 ErrFetch，调用方保留上一轮映射不动。
func (c *CoinGeckoClient) FetchMarkets(ctx context.Context, ids []string) (map[string]market.Snapshot, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("%w: http client not set", ErrFetch)
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}

	vs := c.VsCurrency
	if vs == "" {
		vs = "usd"
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = CoinGeckoEndpoint
	}
	// 配置里带不带 /api/v3 版本段都接受，路径只拼一次
	base = strings.TrimSuffix(base, "/api/v3")
	q := url.Values{}
	q.Set("vs_currency", vs)
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	endpoint := base + "/api/v3/coins/markets?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	var coins []coinMarket
	if err := json.NewDecoder(resp.Body).Decode(&coins); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	now := time.Now().UTC()
	out := make(map[string]market.Snapshot, len(coins))
	for _, cm := range coins {
		if cm.ID == "" {
			continue
		}
		out[cm.ID] = market.Snapshot{
			CoinID:       cm.ID,
			Symbol:       cm.Symbol,
			Name:         cm.Name,
			Image:        cm.Image,
			Price:        cm.Price,
			Change24hPct: cm.Change24h,
			MarketCap:    cm.MarketCap,
			Volume:       cm.Volume,
			FetchedAt:    now,
		}
	}
	return out, nil
}
