package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 轮询指标
	pollsTotal  prometheus.Counter
	pollErrors  prometheus.Counter
	pollCoins   prometheus.Gauge
	snapshotAge prometheus.Gauge

	// 预警指标
	alertsFired  prometheus.Counter
	notifyErrors prometheus.Counter
	activeRules  prometheus.Gauge

	// 成交流指标
	tradesTotal       prometheus.Counter
	tradeParseErrors  prometheus.Counter
	streamOpens       prometheus.Counter
	streamDisconnects prometheus.Counter
	streamState       prometheus.Gauge
	ledgerSize        prometheus.Gauge
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "coinwatch",
		Subsystem: "engine",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		pollsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "polls_total",
			Help:      "快照轮询总次数",
		}),
		pollErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "poll_errors_total",
			Help:      "快照轮询失败次数",
		}),
		pollCoins: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tracked_coins",
			Help:      "最近一轮快照覆盖的币种数",
		}),
		snapshotAge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshot_age_seconds",
			Help:      "距上次成功快照的秒数",
		}),

		alertsFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "alerts_fired_total",
			Help:      "预警触发总数",
		}),
		notifyErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "notify_errors_total",
			Help:      "通知投递失败次数",
		}),
		activeRules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "active_rules",
			Help:      "当前激活的预警规则数",
		}),

		tradesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trades_total",
			Help:      "规范化成交消息总数",
		}),
		tradeParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trade_parse_errors_total",
			Help:      "丢弃的坏帧总数",
		}),
		streamOpens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_opens_total",
			Help:      "订阅建立次数",
		}),
		streamDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_disconnects_total",
			Help:      "传输层断开次数",
		}),
		streamState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_state",
			Help:      "订阅状态（0=closed 1=opening 2=open 3=closing）",
		}),
		ledgerSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ledger_size",
			Help:      "当前账本内的成交记录数",
		}),
	}

	return m
}

// Handler 返回promhttp处理器
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层registry（测试用）
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) RecordPoll(coins int)       { m.pollsTotal.Inc(); m.pollCoins.Set(float64(coins)) }
func (m *Monitor) RecordPollError()           { m.pollErrors.Inc() }
func (m *Monitor) SetSnapshotAge(sec float64) { m.snapshotAge.Set(sec) }

func (m *Monitor) RecordAlertFired()    { m.alertsFired.Inc() }
func (m *Monitor) RecordNotifyError()   { m.notifyErrors.Inc() }
func (m *Monitor) SetActiveRules(n int) { m.activeRules.Set(float64(n)) }

func (m *Monitor) RecordTrade()            { m.tradesTotal.Inc() }
func (m *Monitor) RecordTradeParseError()  { m.tradeParseErrors.Inc() }
func (m *Monitor) RecordStreamOpen()       { m.streamOpens.Inc() }
func (m *Monitor) RecordStreamDisconnect() { m.streamDisconnects.Inc() }
func (m *Monitor) SetStreamState(s int)    { m.streamState.Set(float64(s)) }
func (m *Monitor) SetLedgerSize(n int)     { m.ledgerSize.Set(float64(n)) }
