package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"coinwatch-go/market"
)

// tradeEvent 对应 binance <symbol>@trade 推送。
// p/q 是十进制字符串；m 为 true 表示买方是 maker，即主动方在卖。
type tradeEvent struct {
	Event    string      `json:"e"`
	Symbol   string      `json:"s"`
	TradeID  int64       `json:"t"`
	Price    json.Number `json:"p"`
	Qty      json.Number `json:"q"`
	TradeTs  int64       `json:"T"`
	IsMaker  bool        `json:"m"`
}

// ParseTrade 把一条原始 @trade 帧规范化为 TradeRecord。
// maker 标志的方向必须严格保留：m=true → sell，m=false → buy。
func ParseTrade(raw []byte) (market.TradeRecord, error) {
	var ev tradeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return market.TradeRecord{}, fmt.Errorf("parse trade frame: %w", err)
	}
	if ev.Event != "" && ev.Event != "trade" {
		return market.TradeRecord{}, fmt.Errorf("unexpected event type %q", ev.Event)
	}
	price, err := ev.Price.Float64()
	if err != nil {
		return market.TradeRecord{}, fmt.Errorf("parse trade price %q: %w", ev.Price, err)
	}
	qty, err := ev.Qty.Float64()
	if err != nil {
		return market.TradeRecord{}, fmt.Errorf("parse trade qty %q: %w", ev.Qty, err)
	}
	side := market.SideBuy
	if ev.IsMaker {
		side = market.SideSell
	}
	ts := time.UnixMilli(ev.TradeTs).UTC()
	return market.NewTradeRecord(ev.TradeID, price, qty, ts, side), nil
}
