package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coinwatch-go/market"
)

// BinanceWSEndpoint 公共 trade 推送端点，无需鉴权。
const BinanceWSEndpoint = "wss://stream.binance.com:9443"

// StreamState 订阅状态机：Closed → Opening → Open → Closing → Closed。
type StreamState int

const (
	StreamClosed StreamState = iota
	StreamOpening
	StreamOpen
	StreamClosing
)

func (s StreamState) String() string {
	switch s {
	case StreamOpening:
		return "OPENING"
	case StreamOpen:
		return "OPEN"
	case StreamClosing:
		return "CLOSING"
	default:
		return "CLOSED"
	}
}

// StreamConnector 管理到交易所 trade 频道的单一推送订阅。
// 任意时刻最多一个订阅处于 Open；对新币种 Open 会先把旧订阅完整关闭。
// 坏帧只丢弃不中断；传输层断开转为 Closed 并通过 OnStateChange 暴露，
// 不做自动重连，是否重连由调用方再次 Open 决定。
type StreamConnector struct {
	Endpoint string // 默认 BinanceWSEndpoint
	Quote    string // 计价币，默认 usdt
	Dialer   *websocket.Dialer
	Logger   *zap.Logger

	// OnTrade 在读循环 goroutine 上回调；Close 返回后不会再被调用。
	OnTrade func(market.TradeRecord)
	// OnStateChange 报告每次状态迁移，symbol 为当时的订阅币种。
	OnStateChange func(symbol string, state StreamState)
	// OnParseError 每丢弃一条坏帧回调一次。
	OnParseError func(symbol string, err error)

	mu        sync.Mutex
	state     StreamState
	symbol    string
	conn      *websocket.Conn
	gen       uint64
	done      chan struct{}
	lastMsg   time.Time
	parseErrs uint64
}

// State 返回当前状态与订阅币种。
func (c *StreamConnector) State() (StreamState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.symbol
}

// LastMessageAt 返回最近一条消息的到达时间；从未收到过则为零值。
func (c *StreamConnector) LastMessageAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMsg
}

// Stale 判断是否超过 threshold 没有收到消息。静默本身是合法的
// （低成交量币种），这里只是给展示层一个陈旧指示。
func (c *StreamConnector) Stale(threshold time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StreamOpen || c.lastMsg.IsZero() {
		return false
	}
	return time.Since(c.lastMsg) > threshold
}

// ParseErrors 返回累计丢弃的坏帧数。
func (c *StreamConnector) ParseErrors() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parseErrs
}

// Open 为 symbol（如 "btc"）建立 @trade 订阅。
// 若已有订阅处于 Open，先驱动其 Closing→Closed 再建新连接。
func (c *StreamConnector) Open(ctx context.Context, symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol required")
	}
	c.Close()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.symbol = symbol
	c.state = StreamOpening
	c.lastMsg = time.Time{}
	c.mu.Unlock()
	c.notify(symbol, StreamOpening)

	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, c.streamURL(symbol), nil)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StreamClosed
		}
		c.mu.Unlock()
		c.notify(symbol, StreamClosed)
		return fmt.Errorf("dial trade stream: %w", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		// 拨号期间被新的 Open/Close 抢占，放弃这条连接
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StreamOpen
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()
	c.notify(symbol, StreamOpen)

	go c.readLoop(conn, gen, symbol, done)
	return nil
}

// Close 同步关闭当前订阅：返回后账本不会再观察到任何 Append，
// 传输层已排队的消息按代号丢弃，不信任对端立即停发。
func (c *StreamConnector) Close() {
	c.mu.Lock()
	if c.state == StreamClosed {
		c.mu.Unlock()
		return
	}
	c.gen++ // 使在途消息的代号失效
	symbol := c.symbol
	conn := c.conn
	done := c.done
	c.conn = nil
	c.done = nil
	c.state = StreamClosing
	c.mu.Unlock()
	c.notify(symbol, StreamClosing)

	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.state = StreamClosed
	c.mu.Unlock()
	c.notify(symbol, StreamClosed)
}

func (c *StreamConnector) readLoop(conn *websocket.Conn, gen uint64, symbol string, done chan struct{}) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// 传输层断开：Open→Closed，交由调用方决定是否重连
			c.mu.Lock()
			current := c.gen == gen
			if current {
				c.conn = nil
				c.done = nil
				c.state = StreamClosed
			}
			c.mu.Unlock()
			if current {
				if c.Logger != nil {
					c.Logger.Warn("trade stream disconnected",
						zap.String("symbol", symbol), zap.Error(err))
				}
				c.notify(symbol, StreamClosed)
			}
			return
		}

		c.mu.Lock()
		if c.gen != gen {
			// 订阅已被关闭或替换，丢弃在途消息
			c.mu.Unlock()
			return
		}
		c.lastMsg = time.Now()
		c.mu.Unlock()

		rec, err := ParseTrade(raw)
		if err != nil {
			// 单条坏帧不杀死整个订阅
			c.mu.Lock()
			c.parseErrs++
			c.mu.Unlock()
			if c.Logger != nil {
				c.Logger.Warn("dropping malformed trade frame",
					zap.String("symbol", symbol), zap.Error(err))
			}
			if c.OnParseError != nil {
				c.OnParseError(symbol, err)
			}
			continue
		}
		if c.OnTrade != nil {
			c.OnTrade(rec)
		}
	}
}

func (c *StreamConnector) streamURL(symbol string) string {
	quote := c.Quote
	if quote == "" {
		quote = "usdt"
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = BinanceWSEndpoint
	}
	u := url.URL{
		Scheme: "wss",
		Host:   strings.TrimPrefix(endpoint, "wss://"),
		Path:   "/ws/" + strings.ToLower(symbol) + quote + "@trade",
	}
	if strings.HasPrefix(endpoint, "ws://") {
		u.Scheme = "ws"
		u.Host = strings.TrimPrefix(endpoint, "ws://")
	}
	return u.String()
}

func (c *StreamConnector) notify(symbol string, state StreamState) {
	if c.OnStateChange != nil {
		c.OnStateChange(symbol, state)
	}
}
