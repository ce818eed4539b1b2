package market

import "sync"

// DefaultLedgerCap 为最新一笔加上保留的 30 笔历史。
const DefaultLedgerCap = 31

// Ledger 维护一个容量受限、最新在前的成交缓冲，供展示层读取。
// Append 是唯一的写入口：头插与截断在同一临界区完成，
// 读者任何时刻都不会看到超过容量的序列。
type Ledger struct {
	mu      sync.RWMutex
	cap     int
	records []TradeRecord
}

// NewLedger 创建容量为 cap 的账本；cap <= 0 时使用 DefaultLedgerCap。
func NewLedger(cap int) *Ledger {
	if cap <= 0 {
		cap = DefaultLedgerCap
	}
	return &Ledger{
		cap:     cap,
		records: make([]TradeRecord, 0, cap),
	}
}

// Append 头插一条记录并截断到容量。
func (l *Ledger) Append(rec TradeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) < l.cap {
		l.records = append(l.records, TradeRecord{})
	}
	copy(l.records[1:], l.records)
	l.records[0] = rec
}

// Snapshot 返回最新在前的拷贝，长度不超过容量。
func (l *Ledger) Snapshot() []TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]TradeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Clear 清空账本。订阅关闭或切换币种时调用，
// 避免上一个币种的残留成交泄漏进新订阅的视图。
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = l.records[:0]
}

// Len 返回当前记录数。
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Cap 返回容量上限。
func (l *Ledger) Cap() int {
	return l.cap
}
