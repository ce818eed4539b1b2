package market

import "time"

// Side marks which side the taker was on.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// TradeRecord represents a normalized executed-trade tick. Immutable once
// constructed; Notional is fixed at construction as Price*Qty.
type TradeRecord struct {
	ID       int64
	Price    float64
	Qty      float64
	Notional float64
	Ts       time.Time
	Side     Side
}

// NewTradeRecord 构造成交记录并固化名义金额。
func NewTradeRecord(id int64, price, qty float64, ts time.Time, side Side) TradeRecord {
	return TradeRecord{
		ID:       id,
		Price:    price,
		Qty:      qty,
		Notional: price * qty,
		Ts:       ts,
		Side:     side,
	}
}
