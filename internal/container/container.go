package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"coinwatch-go/alerting"
	"coinwatch-go/config"
	"coinwatch-go/gateway"
	"coinwatch-go/infrastructure/logger"
	"coinwatch-go/infrastructure/monitor"
	"coinwatch-go/internal/engine"
	"coinwatch-go/market"
	"coinwatch-go/notify"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg        *config.AppConfig
	configPath string

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor

	// 数据源
	geckoClient *gateway.CoinGeckoClient
	connector   *gateway.StreamConnector

	// 核心服务
	store      *market.SnapshotStore
	registry   *alerting.Registry
	dispatcher *notify.Dispatcher
	publisher  *market.Publisher
	watcher    *engine.Watcher
	liveView   *engine.LiveView

	// HTTP服务器
	metricsServer *http.Server

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 创建新的Container实例
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	return &Container{
		cfg:        &cfg,
		configPath: configPath,
		lifecycle:  NewLifecycleManager(),
	}, nil
}

// Config 返回加载后的配置。
func (c *Container) Config() *config.AppConfig { return c.cfg }

// Logger 返回日志器；Build 之后可用。
func (c *Container) Logger() *logger.Logger { return c.logger }

// Watcher 返回轮询引擎；Build 之后可用。
func (c *Container) Watcher() *engine.Watcher { return c.watcher }

// LiveView 返回实时成交视图；Build 之后可用。
func (c *Container) LiveView() *engine.LiveView { return c.liveView }

// Registry 返回预警规则集；Build 之后可用。
func (c *Container) Registry() *alerting.Registry { return c.registry }

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildGateway(); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}

	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	monitorCfg := monitor.DefaultConfig()
	if c.cfg.Monitor.Namespace != "" {
		monitorCfg.Namespace = c.cfg.Monitor.Namespace
	}
	c.monitor = monitor.New(monitorCfg)

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildGateway() error {
	c.geckoClient = &gateway.CoinGeckoClient{
		BaseURL:    c.cfg.Gecko.BaseURL,
		VsCurrency: c.cfg.Poller.VsCurrency,
		HTTPClient: &http.Client{
			Timeout: time.Duration(c.cfg.Gecko.TimeoutSeconds) * time.Second,
		},
		Limiter: gateway.NewTokenBucketLimiter(c.cfg.Gecko.RateLimit, c.cfg.Gecko.RateBurst),
	}

	c.connector = &gateway.StreamConnector{
		Endpoint: c.cfg.Stream.Endpoint,
		Quote:    c.cfg.Stream.Quote,
		Logger:   c.logger.Logger,
	}

	c.logger.Info("gateway built")
	return nil
}

func (c *Container) buildCoreServices() error {
	c.store = market.NewSnapshotStore()
	c.registry = alerting.NewRegistry()
	c.publisher = market.NewPublisher()
	c.dispatcher = notify.NewDispatcher(c.logger.Logger,
		notify.NewLogSink("log", c.logger.Logger),
		notify.NewConsoleSink("console"),
	)

	ledger := market.NewLedger(c.cfg.Ledger.Cap)
	c.liveView = engine.NewLiveView(c.connector, ledger, c.publisher, c.logger, c.monitor)

	var err error
	c.watcher, err = engine.New(engine.Config{
		Universe:           c.cfg.Poller.Universe,
		PollInterval:       c.cfg.PollInterval(),
		StalenessThreshold: c.cfg.StalenessThreshold(),
	}, engine.Components{
		Fetcher:    c.geckoClient,
		Store:      c.store,
		Registry:   c.registry,
		Dispatcher: c.dispatcher,
		Publisher:  c.publisher,
		Logger:     c.logger,
		Monitor:    c.monitor,
	})
	if err != nil {
		return fmt.Errorf("create watcher failed: %w", err)
	}

	c.logger.Info("core services built")
	return nil
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle.Register("watcher", &watcherComponent{watcher: c.watcher})

	if c.monitor != nil && c.cfg.Monitor.Addr != "" {
		c.lifecycle.Register("metrics_server", &httpServerComponent{
			name:    "metrics_server",
			handler: c.monitor.Handler(),
			addr:    c.cfg.Monitor.Addr,
			logger:  c.logger,
			server:  &c.metricsServer,
		})
	}
}

// Start 启动所有组件；同时挂起配置热更新监听。
func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	go c.watchConfig(ctx)

	c.logger.Info("container started")
	return nil
}

// Stop 逆序停止所有组件并关掉实时订阅。
func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	if c.liveView != nil {
		c.liveView.Hide()
	}

	if err := c.lifecycle.StopAll(); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
		return err
	}

	if c.logger != nil {
		_ = c.logger.Close()
	}
	return nil
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// watchConfig 热更新：运行期只接受轮询周期的变化。
func (c *Container) watchConfig(ctx context.Context) {
	w := config.Watcher{Path: c.configPath}
	if w.Path == "" {
		return
	}
	err := w.Start(ctx, func(next config.AppConfig) {
		c.watcher.SetPollInterval(next.PollInterval())
		c.watcher.SetStalenessThreshold(next.StalenessThreshold())
		c.logger.Info(fmt.Sprintf("config reloaded: poll interval %s, staleness threshold %s",
			next.PollInterval(), next.StalenessThreshold()))
	})
	if err != nil && ctx.Err() == nil {
		c.logger.LogError(err, map[string]interface{}{"action": "watch_config"})
	}
}

// watcherComponent 轮询引擎的生命周期适配
type watcherComponent struct {
	watcher *engine.Watcher
}

func (w *watcherComponent) Start(ctx context.Context) error {
	return w.watcher.Start(ctx)
}

func (w *watcherComponent) Stop() error {
	return w.watcher.Stop()
}

func (w *watcherComponent) Health() error {
	if w.watcher.State() != engine.StateRunning {
		return fmt.Errorf("watcher not running (state: %s)", w.watcher.State())
	}
	return nil
}
