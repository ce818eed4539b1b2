package engine

import (
	"context"
	"sync"
	"time"

	"coinwatch-go/gateway"
	"coinwatch-go/infrastructure/logger"
	"coinwatch-go/infrastructure/monitor"
	"coinwatch-go/market"
)

// LiveView 把实时成交视图的生命周期收敛为两个显式入口：
// Show（视图展示，建订阅）与 Hide（视图隐藏，拆订阅）。
// 账本在 Show 与 Hide 时都会清空，上一个币种的残留成交
// 不会泄漏进新订阅的视图。
type LiveView struct {
	connector *gateway.StreamConnector
	ledger    *market.Ledger
	publisher *market.Publisher
	logger    *logger.Logger
	monitor   *monitor.Monitor

	mu       sync.Mutex
	wantOpen bool
	opened   bool
	closing  bool
	symbol   string
}

// NewLiveView 组装视图并接管 connector 的回调。
func NewLiveView(conn *gateway.StreamConnector, ledger *market.Ledger, pub *market.Publisher, lg *logger.Logger, mon *monitor.Monitor) *LiveView {
	v := &LiveView{
		connector: conn,
		ledger:    ledger,
		publisher: pub,
		logger:    lg,
		monitor:   mon,
	}
	conn.OnTrade = v.onTrade
	conn.OnStateChange = v.onStateChange
	conn.OnParseError = v.onParseError
	return v
}

// Show 打开 symbol 的实时成交订阅；已有订阅会被整个替换。
func (v *LiveView) Show(ctx context.Context, symbol string) error {
	// 先把旧订阅完整关掉再清账本，否则旧币种在途的成交
	// 可能在清空之后落进新视图
	v.connector.Close()

	v.mu.Lock()
	v.wantOpen = true
	v.symbol = symbol
	v.mu.Unlock()

	v.ledger.Clear()
	if v.monitor != nil {
		v.monitor.SetLedgerSize(0)
	}
	if err := v.connector.Open(ctx, symbol); err != nil {
		v.mu.Lock()
		v.wantOpen = false
		v.mu.Unlock()
		return err
	}
	if v.monitor != nil {
		v.monitor.RecordStreamOpen()
	}
	return nil
}

// Hide 关闭当前订阅并清空账本。Hide 返回后账本不会再有新记录。
func (v *LiveView) Hide() {
	v.mu.Lock()
	v.wantOpen = false
	v.mu.Unlock()

	v.connector.Close()
	v.ledger.Clear()
	if v.monitor != nil {
		v.monitor.SetLedgerSize(0)
	}
}

// Ledger 返回底层账本供展示层读取。
func (v *LiveView) Ledger() *market.Ledger {
	return v.ledger
}

// Stale 透传订阅的陈旧指示。
func (v *LiveView) Stale(threshold time.Duration) bool {
	return v.connector.Stale(threshold)
}

func (v *LiveView) onTrade(rec market.TradeRecord) {
	v.ledger.Append(rec)
	if v.publisher != nil {
		v.publisher.PublishTrade(rec)
	}
	if v.monitor != nil {
		v.monitor.RecordTrade()
		v.monitor.SetLedgerSize(v.ledger.Len())
	}
}

func (v *LiveView) onParseError(symbol string, err error) {
	if v.monitor != nil {
		v.monitor.RecordTradeParseError()
	}
	if v.logger != nil {
		v.logger.LogStream("trade_dropped", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
	}
}

func (v *LiveView) onStateChange(symbol string, state gateway.StreamState) {
	if v.monitor != nil {
		v.monitor.SetStreamState(int(state))
	}
	// 主动关闭会先经过 Closing；曾经 Open 的订阅不经 Closing 直接 Closed
	// 才是传输层断开，拨号失败的 Closed 不算。
	// 断开不自动重连，由调用方决定是否重新 Show。
	v.mu.Lock()
	var dropped bool
	switch state {
	case gateway.StreamOpen:
		v.opened = true
	case gateway.StreamClosing:
		v.closing = true
	case gateway.StreamClosed:
		dropped = v.opened && v.wantOpen && !v.closing
		if dropped {
			v.wantOpen = false
		}
		v.opened = false
		v.closing = false
	}
	v.mu.Unlock()

	if v.logger != nil {
		v.logger.LogStream("stream_state", map[string]interface{}{
			"symbol": symbol,
			"state":  state.String(),
		})
	}
	if dropped && v.monitor != nil {
		v.monitor.RecordStreamDisconnect()
	}
}
