package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"coinwatch-go/internal/container"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("构建组件失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		log.Fatalf("启动失败: %v", err)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	// systemd watchdog：按间隔的一半上报存活
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if c.HealthCheck() == nil {
						_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
					}
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			// 手动刷新：立即执行一轮带外轮询
			c.Watcher().Refresh()
		default:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			cancel()
			if err := c.Stop(); err != nil {
				log.Printf("停止失败: %v", err)
			}
			return
		}
	}
}
