package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronyhsoh33/market-maker-bot/config"
	"github.com/aaronyhsoh33/market-maker-bot/gateway"
	"github.com/aaronyhsoh33/market-maker-bot/infrastructure/logger"
	"github.com/aaronyhsoh33/market-maker-bot/internal/engine"
	"github.com/aaronyhsoh33/market-maker-bot/market"
	"github.com/aaronyhsoh33/market-maker-bot/metrics"
	"github.com/aaronyhsoh33/market-maker-bot/oracle"
	"github.com/aaronyhsoh33/market-maker-bot/quote"
)

func main() {
	cfgPath := flag.String("config", "", "可选 yaml 配置文件路径（环境变量优先）")
	dryRun := flag.Bool("dryRun", false, "仅日志输出，不真正下单")
	metricsAddr := flag.String("metricsAddr", ":9100", "metrics/health 监听地址，留空则关闭")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zl, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zl.Close()

	m := metrics.New("mm")

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	rest := gateway.NewEtherealRESTClient(cfg.BaseURL, cfg.Address, cfg.PrivateKey, timeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 产品目录：补齐 tick size / 数量上下限 / productId；缺失即启动失败
	catalogCtx, catalogCancel := context.WithTimeout(ctx, timeout)
	products, err := rest.ListProducts(catalogCtx)
	catalogCancel()
	if err != nil {
		zl.Fatal("拉取产品目录失败", zap.Error(err))
	}
	instruments, err := buildInstruments(cfg, products.Data)
	if err != nil {
		zl.Fatal("构建交易对配置失败", zap.Error(err))
	}

	var adapter engine.ExchangeAdapter = rest
	if *dryRun {
		zl.Warn("Dry-run mode: orders will not be sent")
		adapter = &dryRunAdapter{inner: rest, log: zl}
	}

	eng, err := engine.New(engine.Config{
		RefreshCycle: time.Duration(cfg.RefreshCycleMs) * time.Millisecond,
		Subaccount:   cfg.Subaccount,
		SubaccountID: cfg.SubaccountID,
		Instruments:  instruments,
	}, engine.Components{
		Adapter: adapter,
		Events:  gateway.NewEtherealEventsClient(cfg.WsURL),
		Feed:    oracle.NewFeed(cfg.OracleWsURL),
		Logger:  zl,
		Metrics: m,
	})
	if err != nil {
		zl.Fatal("初始化引擎失败", zap.Error(err))
	}
	eng.SetSnapshotObserver(func(t market.Tick, p quote.Projection) {
		zl.Cycle("snapshot", p.Instrument,
			zap.Float64("mid", p.Mid),
			zap.Float64("bid_proj", p.BidTarget),
			zap.Float64("ask_proj", p.AskTarget),
			zap.Float64("confidence", t.Confidence))
	})

	if *metricsAddr != "" {
		serveHTTP(*metricsAddr, m, eng, cfg)
	}

	if *cfgPath != "" {
		go func() {
			// 交易参数启动后不热生效，只提示需要重启
			_ = config.Watch(ctx, *cfgPath, 5*time.Second, func() {
				zl.Warn("Config file changed on disk; restart to apply", zap.String("path", *cfgPath))
			})
		}()
	}

	if err := eng.Start(ctx); err != nil {
		zl.Error("引擎启动失败", zap.Error(err))
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-sigCh
	zl.Info("Signal received, shutting down", zap.String("signal", sig.String()))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if err := eng.Stop(); err != nil {
		zl.Error("引擎停止失败", zap.Error(err))
	}
}

// buildInstruments 将全局/每交易对配置与产品目录合并为运行期参数。
func buildInstruments(cfg config.Config, products []gateway.Product) ([]config.Instrument, error) {
	byTicker := make(map[string]gateway.Product, len(products))
	for _, p := range products {
		byTicker[strings.ToUpper(p.Ticker)] = p
	}

	out := make([]config.Instrument, 0, len(cfg.Tickers))
	for _, ticker := range cfg.Tickers {
		p, ok := byTicker[ticker]
		if !ok {
			return nil, fmt.Errorf("ticker %s not found in product catalog", ticker)
		}
		tickSize, err := parseCatalogFloat(p.TickSize)
		if err != nil {
			return nil, fmt.Errorf("ticker %s tick size: %w", ticker, err)
		}
		minQty, err := parseCatalogFloat(p.MinQuantity)
		if err != nil {
			return nil, fmt.Errorf("ticker %s min quantity: %w", ticker, err)
		}
		maxQty, err := parseCatalogFloat(p.MaxQuantity)
		if err != nil {
			return nil, fmt.Errorf("ticker %s max quantity: %w", ticker, err)
		}

		size, spreadBp, maxDev := cfg.InstrumentParams(ticker)
		out = append(out, config.Instrument{
			Ticker:          ticker,
			ProductID:       p.ID,
			OrderSize:       size,
			SpreadBp:        spreadBp,
			MaxDeviationPct: maxDev,
			TickSize:        tickSize,
			MinQty:          minQty,
			MaxQty:          maxQty,
		})
	}
	return out, nil
}

func parseCatalogFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func serveHTTP(addr string, m *metrics.Metrics, eng *engine.QuotingEngine, cfg config.Config) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":                "ok",
			"state":                 eng.GetState().String(),
			"instruments":           eng.InstrumentCount(),
			"subaccount_configured": cfg.Subaccount != "",
		})
	})
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}

// dryRunAdapter 演练模式：下单/撤单只记日志，仓位查询原样透传。
type dryRunAdapter struct {
	inner engine.ExchangeAdapter
	log   *logger.Logger
}

func (d *dryRunAdapter) Place(ctx context.Context, req gateway.PlaceRequest) (gateway.PlaceResponse, error) {
	d.log.Info("dry-run place",
		zap.String("ticker", req.Ticker),
		zap.Int("side", req.Side),
		zap.Float64("price", req.Price),
		zap.Float64("quantity", req.Quantity))
	return gateway.PlaceResponse{OrderID: "dry-" + uuid.NewString(), Status: "NEW"}, nil
}

func (d *dryRunAdapter) Cancel(ctx context.Context, req gateway.CancelRequest) (gateway.CancelResponse, error) {
	d.log.Info("dry-run cancel", zap.Strings("order_ids", req.OrderIDs))
	return gateway.CancelResponse{Canceled: req.OrderIDs}, nil
}

func (d *dryRunAdapter) Positions(ctx context.Context, subaccountID string, productIDs []string) (gateway.PositionsResponse, error) {
	return d.inner.Positions(ctx, subaccountID, productIDs)
}
