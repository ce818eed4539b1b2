package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coinwatch-go/alerting"
	"coinwatch-go/infrastructure/logger"
	"coinwatch-go/infrastructure/monitor"
	"coinwatch-go/market"
	"coinwatch-go/notify"
)

// State 引擎状态
type State int

const (
	// StateIdle 空闲状态
	StateIdle State = iota
	// StateRunning 运行状态
	StateRunning
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// SnapshotFetcher 抽象快照源，便于注入测试替身。
type SnapshotFetcher interface {
	FetchMarkets(ctx context.Context, ids []string) (map[string]market.Snapshot, error)
}

// Config 引擎配置
type Config struct {
	Universe           []string      // 追踪的 coin id 列表
	PollInterval       time.Duration // 轮询周期
	StalenessThreshold time.Duration // 流陈旧阈值
}

// Components 引擎依赖组件
type Components struct {
	Fetcher    SnapshotFetcher
	Store      *market.SnapshotStore
	Registry   *alerting.Registry
	Dispatcher *notify.Dispatcher
	Publisher  *market.Publisher
	Logger     *logger.Logger
	Monitor    *monitor.Monitor
}

// Watcher 轮询引擎：按固定节奏拉一轮完整快照，整体替换进程内映射，
// 对照预警规则扇出通知。拉取失败只记录并保留上一轮映射，
// 下一个 tick 就是重试；本轮内不做自动重试。
type Watcher struct {
	config Config

	fetcher    SnapshotFetcher
	store      *market.SnapshotStore
	registry   *alerting.Registry
	dispatcher *notify.Dispatcher
	publisher  *market.Publisher
	logger     *logger.Logger
	monitor    *monitor.Monitor
	clock      Clock

	// 状态
	state State
	mu    sync.RWMutex

	// 控制通道
	stopChan    chan struct{}
	doneChan    chan struct{}
	refreshChan chan struct{}

	// 运行期可热更的参数
	pollInterval   time.Duration
	staleThreshold time.Duration

	// 最近一次轮询失败，供展示层呈现瞬态错误
	lastErr error

	// 串行化 PollOnce：手动刷新与定时 tick 不并发拉取
	pollMu sync.Mutex
}

// New 创建轮询引擎
func New(cfg Config, components Components) (*Watcher, error) {
	if components.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if components.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if components.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if components.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	lg := components.Logger
	if lg == nil {
		var err error
		lg, err = logger.New(logger.DefaultConfig())
		if err != nil {
			return nil, err
		}
	}

	return &Watcher{
		config:         cfg,
		fetcher:        components.Fetcher,
		store:          components.Store,
		registry:       components.Registry,
		dispatcher:     components.Dispatcher,
		publisher:      components.Publisher,
		logger:         lg,
		monitor:        components.Monitor,
		clock:          NowUTC,
		state:          StateIdle,
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
		refreshChan:    make(chan struct{}, 1),
		pollInterval:   cfg.PollInterval,
		staleThreshold: cfg.StalenessThreshold,
	}, nil
}

// Start 启动引擎；立即做一次轮询，之后按周期 tick。
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateIdle && w.state != StateStopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started (state: %s)", w.state)
	}
	if w.state == StateStopped {
		w.stopChan = make(chan struct{})
		w.doneChan = make(chan struct{})
	}
	w.state = StateRunning
	w.mu.Unlock()

	w.logger.Info(fmt.Sprintf("watcher starting: %d coins, interval %s",
		len(w.config.Universe), w.PollInterval()))

	go w.run(ctx)
	return nil
}

// Stop 停止引擎；幂等。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return fmt.Errorf("watcher not running (state: %s)", w.state)
	}
	w.mu.Unlock()

	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}

	select {
	case <-w.doneChan:
	case <-time.After(10 * time.Second):
		w.logger.Warn("timeout waiting for watcher to stop")
	}

	w.mu.Lock()
	w.state = StateStopped
	w.mu.Unlock()
	w.logger.Info("watcher stopped")
	return nil
}

// State 返回当前状态。
func (w *Watcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Refresh 触发一次带外轮询（手动刷新）。已有刷新在途时合并。
func (w *Watcher) Refresh() {
	select {
	case w.refreshChan <- struct{}{}:
	default:
	}
}

// PollInterval 返回当前生效的轮询周期。
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

// SetPollInterval 热更轮询周期，下一轮 tick 生效。非法值忽略。
func (w *Watcher) SetPollInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	w.pollInterval = d
	w.mu.Unlock()
}

// StalenessThreshold 返回当前生效的陈旧阈值。
func (w *Watcher) StalenessThreshold() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.staleThreshold
}

// SetStalenessThreshold 热更陈旧阈值。负值忽略。
func (w *Watcher) SetStalenessThreshold(d time.Duration) {
	if d < 0 {
		return
	}
	w.mu.Lock()
	w.staleThreshold = d
	w.mu.Unlock()
}

// LastError 返回最近一次轮询失败；最近一轮成功则为 nil。
func (w *Watcher) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// run 主事件循环
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneChan)

	// 启动即拉一轮
	_ = w.PollOnce(ctx)

	for {
		timer := time.NewTimer(w.PollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("context done, stopping watcher")
			return
		case <-w.stopChan:
			timer.Stop()
			return
		case <-w.refreshChan:
			timer.Stop()
			_ = w.PollOnce(ctx)
		case <-timer.C:
			_ = w.PollOnce(ctx)
		}
	}
}

// PollOnce 执行一轮完整的「拉取→替换→评估→通知」。
// 测试可直接调用以确定性地驱动 tick。
func (w *Watcher) PollOnce(ctx context.Context) error {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	start := w.clock.Now()
	snapshots, err := w.fetcher.FetchMarkets(ctx, w.config.Universe)
	if err != nil {
		// 上一轮映射保持不动，下个 tick 自然重试
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		age := w.store.Staleness()
		if w.monitor != nil {
			w.monitor.RecordPollError()
			w.monitor.SetSnapshotAge(age.Seconds())
		}
		w.logger.LogPoll("poll_failed", map[string]interface{}{
			"error": err.Error(),
		})
		if threshold := w.StalenessThreshold(); threshold > 0 && age > threshold {
			w.logger.Warn(fmt.Sprintf("snapshot data stale for %s", age.Truncate(time.Second)))
		}
		return err
	}

	w.store.Replace(snapshots, w.clock.Now())
	if w.publisher != nil {
		w.publisher.PublishSnapshots(snapshots)
	}
	w.mu.Lock()
	w.lastErr = nil
	w.mu.Unlock()

	if w.monitor != nil {
		w.monitor.RecordPoll(len(snapshots))
		w.monitor.SetSnapshotAge(0)
	}
	w.logger.LogPoll("poll_ok", map[string]interface{}{
		"coins":     len(snapshots),
		"elapsedMs": w.clock.Now().Sub(start).Milliseconds(),
	})

	firings := alerting.Evaluate(snapshots, w.registry)
	for _, f := range firings {
		failed := w.dispatcher.Dispatch(f.Notification)
		if w.monitor != nil {
			w.monitor.RecordAlertFired()
			for i := 0; i < failed; i++ {
				w.monitor.RecordNotifyError()
			}
		}
		w.logger.LogAlert("alert_fired", map[string]interface{}{
			"coinId": f.Rule.CoinID,
			"target": f.Rule.Target,
			"price":  f.Price,
		})
	}
	if w.monitor != nil {
		w.monitor.SetActiveRules(len(w.registry.ListActive()))
	}
	return nil
}
