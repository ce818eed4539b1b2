package market

import "sync"

// Publisher 一个轻量事件分发器：成交与快照替换各自广播，
// 慢订阅者丢弃而不是阻塞发布方。
type Publisher struct {
	mu        sync.Mutex
	tradeSubs []chan TradeRecord
	snapSubs  []chan map[string]Snapshot
}

func NewPublisher() *Publisher {
	return &Publisher{
		tradeSubs: make([]chan TradeRecord, 0),
		snapSubs:  make([]chan map[string]Snapshot, 0),
	}
}

func (p *Publisher) SubscribeTrades() <-chan TradeRecord {
	ch := make(chan TradeRecord, 1)
	p.mu.Lock()
	p.tradeSubs = append(p.tradeSubs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) SubscribeSnapshots() <-chan map[string]Snapshot {
	ch := make(chan map[string]Snapshot, 1)
	p.mu.Lock()
	p.snapSubs = append(p.snapSubs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) PublishTrade(t TradeRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.tradeSubs {
		select {
		case ch <- t:
		default:
		}
	}
}

func (p *Publisher) PublishSnapshots(m map[string]Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.snapSubs {
		select {
		case ch <- m:
		default:
		}
	}
}
