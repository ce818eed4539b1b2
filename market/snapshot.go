package market

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// NullFloat64 区分「数值缺失」与 0：行情源对部分币种返回 null 字段，
// 缺失值渲染为 N/A，绝不能当作 0 参与展示或比较。
type NullFloat64 struct {
	Float64 float64
	Valid   bool
}

// Float 构造一个有效值。
func Float(v float64) NullFloat64 {
	return NullFloat64{Float64: v, Valid: true}
}

func (n *NullFloat64) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		n.Float64, n.Valid = 0, false
		return nil
	}
	if err := json.Unmarshal(data, &n.Float64); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

func (n NullFloat64) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// String 渲染展示值；缺失返回 N/A。
func (n NullFloat64) String() string {
	if !n.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

// Snapshot represents one coin's polled reference data. A snapshot is
// ephemeral: the whole coinId->Snapshot mapping is replaced on every poll
// cycle and never persisted.
type Snapshot struct {
	CoinID       string
	Symbol       string
	Name         string
	Image        string
	Price        NullFloat64
	Change24hPct NullFloat64
	MarketCap    NullFloat64
	Volume       NullFloat64
	FetchedAt    time.Time
}
