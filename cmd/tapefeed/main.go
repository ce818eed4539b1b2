package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"coinwatch-go/gateway"
	"coinwatch-go/internal/engine"
	"coinwatch-go/market"
)

// tapefeed 打开单个币种的实时成交订阅并滚动打印账本，
// 用于人工验证推送链路。
func main() {
	symbol := flag.String("symbol", "btc", "币种符号（如 btc、eth）")
	quote := flag.String("quote", "usdt", "计价币后缀")
	ledgerCap := flag.Int("cap", market.DefaultLedgerCap, "账本容量")
	staleSec := flag.Int("stale", 120, "陈旧阈值（秒）")
	flag.Parse()

	conn := &gateway.StreamConnector{Quote: *quote}
	pub := market.NewPublisher()
	trades := pub.SubscribeTrades()
	view := engine.NewLiveView(conn, market.NewLedger(*ledgerCap), pub, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err := view.Show(ctx, *symbol)
	cancel()
	if err != nil {
		log.Fatalf("订阅失败: %v", err)
	}
	defer view.Hide()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	staleTicker := time.NewTicker(5 * time.Second)
	defer staleTicker.Stop()

	threshold := time.Duration(*staleSec) * time.Second
	for {
		select {
		case rec := <-trades:
			fmt.Printf("%s  %s  price=%s qty=%s value=%s  #%d\n",
				rec.Ts.Local().Format("15:04:05"),
				rec.Side,
				fixed6(rec.Price),
				fixed6(rec.Qty),
				fixed6(rec.Notional),
				view.Ledger().Len(),
			)
		case <-staleTicker.C:
			if view.Stale(threshold) {
				fmt.Println("-- no trades for a while, feed may be stale --")
			}
		case <-sigCh:
			return
		}
	}
}

func fixed6(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
