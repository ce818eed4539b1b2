package alerting

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidTarget 目标价必须大于 0。
var ErrInvalidTarget = errors.New("target price must be > 0")

// Rule 一条用户定义的价格预警。触发一次后 Active 置为 false，
// 永不自动删除（留作历史）；同一币种允许多条并存，不去重。
type Rule struct {
	ID        int64
	CoinID    string
	Target    float64
	Active    bool
	CreatedAt time.Time
}

// Registry 进程内预警规则集，无任何 I/O。
// ListActive 返回扫描开始时刻的拷贝（copy-on-read），
// 评估器遍历期间不会锁住写入方。
type Registry struct {
	mu     sync.RWMutex
	nextID int64
	rules  []Rule
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add 注册一条规则。除 target > 0 外不做任何校验，重复规则照常接受。
func (r *Registry) Add(coinID string, target float64) (Rule, error) {
	if target <= 0 {
		return Rule{}, ErrInvalidTarget
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rule := Rule{
		ID:        r.nextID,
		CoinID:    coinID,
		Target:    target,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	r.rules = append(r.rules, rule)
	return rule, nil
}

// ListActive 返回所有仍处于激活状态的规则拷贝。
func (r *Registry) ListActive() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if rule.Active {
			out = append(out, rule)
		}
	}
	return out
}

// List 返回全部规则拷贝，含已触发的历史规则。
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Deactivate 把规则标记为已触发。规则不存在时静默返回。
func (r *Registry) Deactivate(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules[i].Active = false
			return
		}
	}
}

// Len 返回规则总数（含非激活）。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
