package alerting

import (
	"fmt"

	"coinwatch-go/market"
	"coinwatch-go/notify"
)

// Firing 一次触发：命中的规则、当时的快照价、已构造好的通知。
type Firing struct {
	Rule         Rule
	Price        float64
	Notification notify.Notification
}

// Evaluate 把一轮新快照与规则集做一次对照。
// 只在价格向下穿越（price <= target）时触发；触发即把规则置为非激活，
// 同一规则不会产生第二次通知（fire-once）。快照里没有的币种跳过，
// 价格缺失的币种同样跳过，缺失不等于 0。
//
// 预警只吃轮询快照，不吃逐笔成交流：两条数据通路相互独立，
// 轮询间隔内穿越又回弹的价格不会被观察到。
func Evaluate(snapshots map[string]market.Snapshot, reg *Registry) []Firing {
	var out []Firing
	for _, rule := range reg.ListActive() {
		snap, ok := snapshots[rule.CoinID]
		if !ok {
			continue
		}
		if !snap.Price.Valid {
			continue
		}
		if snap.Price.Float64 <= rule.Target {
			name := snap.Name
			if name == "" {
				name = rule.CoinID
			}
			out = append(out, Firing{
				Rule:  rule,
				Price: snap.Price.Float64,
				Notification: notify.Notification{
					Title: fmt.Sprintf("%s Alert", name),
					Body:  fmt.Sprintf("%s has fallen below $%v", name, rule.Target),
				},
			})
			reg.Deactivate(rule.ID)
		}
	}
	return out
}
